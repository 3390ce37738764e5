package connection

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sansible/sansible/pkg/types"
)

// LocalConnection implements types.Connection by spawning processes on
// the host OS the control machine itself runs on.
type LocalConnection struct {
	connected bool
	info      types.ConnectionInfo
}

// NewLocalConnection creates an unconnected local connection.
func NewLocalConnection() *LocalConnection {
	return &LocalConnection{}
}

func (c *LocalConnection) Connect(ctx context.Context, info types.ConnectionInfo) error {
	c.info = info
	c.connected = true
	return nil
}

func (c *LocalConnection) Close() error {
	c.connected = false
	return nil
}

func (c *LocalConnection) IsConnected() bool {
	return c.connected
}

// Run executes command locally. On non-Windows hosts the command always
// runs through /bin/sh -c, whether or not opts.Shell is set. On Windows
// it runs through cmd.exe /c when opts.Shell is set; otherwise it is
// split on whitespace into argv and executed directly.
func (c *LocalConnection) Run(ctx context.Context, command string, opts types.RunOptions) (*types.RunResult, error) {
	if !c.connected {
		return nil, types.NewConnectionError("local", "not connected", nil)
	}

	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var cmd *exec.Cmd
	if opts.Shell || runtime.GOOS != "windows" {
		if runtime.GOOS == "windows" {
			cmd = exec.CommandContext(runCtx, "cmd.exe", "/c", command)
		} else {
			cmd = exec.CommandContext(runCtx, "/bin/sh", "-c", command)
		}
	} else {
		parts := strings.Fields(command)
		if len(parts) == 0 {
			return nil, types.NewValidationError("command", command, "empty command")
		}
		cmd = exec.CommandContext(runCtx, parts[0], parts[1:]...)
	}

	if opts.WorkingDir != "" {
		cmd.Dir = opts.WorkingDir
	}
	if len(opts.Environment) > 0 {
		env := os.Environ()
		for k, v := range opts.Environment {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &types.RunResult{Stdout: stdout.String(), Stderr: stderr.String()}

	if err == nil {
		result.RC = 0
		return result, nil
	}

	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		result.RC = exitErr.ExitCode()
		return result, nil
	}

	if runCtx.Err() != nil {
		result.RC = 124
		return result, nil
	}

	return nil, types.NewConnectionError("local", fmt.Sprintf("running command: %s", command), err)
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

func (c *LocalConnection) Put(ctx context.Context, local io.Reader, remote string, mode int) error {
	if !c.connected {
		return types.NewConnectionError("local", "not connected", nil)
	}
	remote = types.SanitizePath(remote)
	if err := os.MkdirAll(filepath.Dir(remote), 0755); err != nil {
		return types.NewConnectionError("local", fmt.Sprintf("creating parent of %s", remote), err)
	}
	f, err := os.OpenFile(remote, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(mode))
	if err != nil {
		return types.NewConnectionError("local", fmt.Sprintf("creating %s", remote), err)
	}
	defer f.Close()
	if _, err := io.Copy(f, local); err != nil {
		return types.NewConnectionError("local", fmt.Sprintf("writing %s", remote), err)
	}
	return nil
}

func (c *LocalConnection) Get(ctx context.Context, remote string) (io.ReadCloser, error) {
	if !c.connected {
		return nil, types.NewConnectionError("local", "not connected", nil)
	}
	remote = types.SanitizePath(remote)
	f, err := os.Open(remote)
	if err != nil {
		return nil, types.NewConnectionError("local", fmt.Sprintf("opening %s", remote), err)
	}
	return f, nil
}

func (c *LocalConnection) Mkdir(ctx context.Context, remote string, mode int) error {
	if !c.connected {
		return types.NewConnectionError("local", "not connected", nil)
	}
	remote = types.SanitizePath(remote)
	if err := os.MkdirAll(remote, os.FileMode(mode)); err != nil {
		return types.NewConnectionError("local", fmt.Sprintf("creating directory %s", remote), err)
	}
	return nil
}

func (c *LocalConnection) Stat(ctx context.Context, remote string) (*types.FileStat, error) {
	if !c.connected {
		return nil, types.NewConnectionError("local", "not connected", nil)
	}
	remote = types.SanitizePath(remote)
	info, err := os.Lstat(remote)
	if os.IsNotExist(err) {
		return &types.FileStat{Exists: false}, nil
	}
	if err != nil {
		return nil, types.NewConnectionError("local", fmt.Sprintf("stat %s", remote), err)
	}
	return &types.FileStat{
		Exists:  true,
		IsFile:  info.Mode().IsRegular(),
		IsDir:   info.IsDir(),
		IsLink:  info.Mode()&os.ModeSymlink != 0,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Mode:    uint32(info.Mode().Perm()),
	}, nil
}

// WrapBecome prepends sudo/su privilege escalation the way the teacher's
// runner already shelled out for become support, generalized to the
// method name (spec §4.1/§4.5: "sudo"/"su" become methods).
func (c *LocalConnection) WrapBecome(cmd string, become bool, becomeUser, becomeMethod string) string {
	if !become || runtime.GOOS == "windows" {
		return cmd
	}
	user := becomeUser
	if user == "" {
		user = "root"
	}
	switch becomeMethod {
	case "su":
		return fmt.Sprintf("su - %s -c %s", shellQuote(user), shellQuote(cmd))
	default: // "sudo" or unset
		return fmt.Sprintf("sudo -u %s -n -H sh -c %s", shellQuote(user), shellQuote(cmd))
	}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
