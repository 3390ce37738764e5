package connection

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/sansible/sansible/pkg/types"
)

// SSHConnection implements types.Connection over a single multiplexed
// golang.org/x/crypto/ssh client, matching spec §4.1's SSH variant.
type SSHConnection struct {
	client    *ssh.Client
	connected bool
	info      types.ConnectionInfo
}

// NewSSHConnection creates an unconnected SSH connection.
func NewSSHConnection() *SSHConnection {
	return &SSHConnection{}
}

func (c *SSHConnection) Connect(ctx context.Context, info types.ConnectionInfo) error {
	c.info = info

	timeout := info.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	port := info.Port
	if port == 0 {
		port = 22
	}

	hostKeyCallback, err := c.hostKeyCallback(info)
	if err != nil {
		return types.NewConnectionError(info.Host, "configuring host key checking", err)
	}

	config := &ssh.ClientConfig{
		User:            info.User,
		Timeout:         timeout,
		HostKeyCallback: hostKeyCallback,
		Auth:            c.authMethods(info),
	}
	if len(config.Auth) == 0 {
		return types.NewUnreachableError(info.Host, "no SSH authentication method available (key, password, or agent)", nil)
	}

	address := net.JoinHostPort(info.Host, strconv.Itoa(port))
	client, err := ssh.Dial("tcp", address, config)
	if err != nil {
		return types.NewUnreachableError(info.Host, fmt.Sprintf("dialing %s", address), err)
	}

	c.client = client
	c.connected = true
	return nil
}

// authMethods builds the auth method list in the spec's fixed order:
// explicit private key, then password, then ssh-agent.
func (c *SSHConnection) authMethods(info types.ConnectionInfo) []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	if info.PrivateKey != "" {
		if signer, err := parsePrivateKey(info.PrivateKey); err == nil {
			methods = append(methods, ssh.PublicKeys(signer))
		}
	}
	if info.Password != "" {
		methods = append(methods, ssh.Password(info.Password))
	}
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			agentClient := agent.NewClient(conn)
			methods = append(methods, ssh.PublicKeysCallback(agentClient.Signers))
		}
	}
	return methods
}

func parsePrivateKey(privateKey string) (ssh.Signer, error) {
	if data, err := os.ReadFile(privateKey); err == nil {
		return ssh.ParsePrivateKey(data)
	}
	return ssh.ParsePrivateKey([]byte(privateKey))
}

// hostKeyCallback implements the three host-key-checking modes from
// ansible_ssh_host_key_checking (SPEC_FULL.md "Supplemented features"):
// "true" (strict, the default), "false" (accept any, logs a warning at
// the caller), "accept-new" (TOFU: trust on first connection, verify on
// subsequent ones against the user's known_hosts file).
func (c *SSHConnection) hostKeyCallback(info types.ConnectionInfo) (ssh.HostKeyCallback, error) {
	mode := info.HostKeyChecking
	if mode == "" {
		mode = "true"
	}

	switch mode {
	case "false":
		return ssh.InsecureIgnoreHostKey(), nil
	case "true", "accept-new":
		path, err := defaultKnownHostsPath()
		if err != nil {
			return nil, err
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			if f, createErr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600); createErr == nil {
				f.Close()
			}
		}
		strictCallback, err := knownhosts.New(path)
		if err != nil {
			return nil, err
		}
		if mode == "true" {
			return strictCallback, nil
		}
		return tofuCallback(path, strictCallback), nil
	default:
		return nil, types.NewUnsupportedFeatureError("ansible_ssh_host_key_checking", fmt.Sprintf("unknown mode %q", mode))
	}
}

// tofuCallback accepts and records a host key never seen before, and
// otherwise defers to the strict known_hosts verifier.
func tofuCallback(path string, strict ssh.HostKeyCallback) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := strict(hostname, remote, key)
		if err == nil {
			return nil
		}
		var keyErr *knownhosts.KeyError
		if ok := isKnownHostsAppendable(err, &keyErr); ok {
			f, openErr := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
			if openErr != nil {
				return openErr
			}
			defer f.Close()
			line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
			_, writeErr := f.WriteString(line + "\n")
			return writeErr
		}
		return err
	}
}

func isKnownHostsAppendable(err error, target **knownhosts.KeyError) bool {
	ke, ok := err.(*knownhosts.KeyError)
	if !ok {
		return false
	}
	*target = ke
	// len(Want) == 0 means "never seen this host" rather than "key changed".
	return len(ke.Want) == 0
}

func defaultKnownHostsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".ssh")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "known_hosts"), nil
}

func (c *SSHConnection) Close() error {
	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		c.connected = false
		return err
	}
	c.connected = false
	return nil
}

func (c *SSHConnection) IsConnected() bool {
	return c.connected && c.client != nil
}

// Run executes command (through /bin/sh -c when opts.Shell is set),
// prefixing cd/env as spec §4.1 describes: "cd <cwd> && …" then
// shell-quoted KEY=VALUE pairs placed in front of the command.
func (c *SSHConnection) Run(ctx context.Context, command string, opts types.RunOptions) (*types.RunResult, error) {
	if !c.connected {
		return nil, types.NewConnectionError(c.info.Host, "not connected", nil)
	}

	session, err := c.client.NewSession()
	if err != nil {
		return nil, types.NewConnectionError(c.info.Host, "opening SSH session", err)
	}
	defer session.Close()

	full := c.buildCommand(command, opts)

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(full) }()

	var runCtx context.Context
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
	} else {
		runCtx, cancel = ctx, func() {}
	}
	defer cancel()

	var execErr error
	select {
	case execErr = <-done:
	case <-runCtx.Done():
		session.Signal(ssh.SIGKILL)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &types.RunResult{RC: 124, Stdout: stdout.String(), Stderr: stderr.String()}, nil
	}

	result := &types.RunResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if execErr == nil {
		result.RC = 0
		return result, nil
	}
	if exitErr, ok := execErr.(*ssh.ExitError); ok {
		result.RC = exitErr.ExitStatus()
		return result, nil
	}
	return nil, types.NewConnectionError(c.info.Host, fmt.Sprintf("running command: %s", command), execErr)
}

func (c *SSHConnection) buildCommand(command string, opts types.RunOptions) string {
	var parts []string
	if opts.WorkingDir != "" {
		parts = append(parts, fmt.Sprintf("cd %s", shellQuote(opts.WorkingDir)))
	}
	var env strings.Builder
	for k, v := range opts.Environment {
		fmt.Fprintf(&env, "%s=%s ", k, shellQuote(v))
	}
	if opts.Shell {
		parts = append(parts, env.String()+fmt.Sprintf("/bin/sh -c %s", shellQuote(command)))
	} else {
		parts = append(parts, env.String()+command)
	}
	return strings.Join(parts, " && ")
}

// Put uploads via a chunked base64 transfer, one shell session per
// chunk, avoiding SFTP subsystem dependence (mirrors the
// teacher's earlier approach; chunk size kept conservative against
// remote command-line limits).
func (c *SSHConnection) Put(ctx context.Context, local io.Reader, remote string, mode int) error {
	if !c.connected {
		return types.NewConnectionError(c.info.Host, "not connected", nil)
	}
	data, err := io.ReadAll(local)
	if err != nil {
		return types.NewConnectionError(c.info.Host, "reading local source", err)
	}

	remote = types.SanitizePath(remote)
	if _, err := c.Run(ctx, fmt.Sprintf("mkdir -p %s", shellQuote(filepath.Dir(remote))), types.RunOptions{}); err != nil {
		return types.NewConnectionError(c.info.Host, "creating destination directory", err)
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	tempFile := fmt.Sprintf("/tmp/.sansible-%d.b64", time.Now().UnixNano())

	const chunkSize = 64 * 1024
	for i := 0; i < len(encoded) || i == 0; i += chunkSize {
		end := i + chunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		chunk := encoded[i:end]
		redirect := ">>"
		if i == 0 {
			redirect = ">"
		}
		cmd := fmt.Sprintf("printf '%%s' %s %s %s", shellQuote(chunk), redirect, tempFile)
		if res, err := c.Run(ctx, cmd, types.RunOptions{}); err != nil || res.RC != 0 {
			c.Run(ctx, fmt.Sprintf("rm -f %s", tempFile), types.RunOptions{})
			return types.NewConnectionError(c.info.Host, fmt.Sprintf("transferring chunk to %s", remote), err)
		}
		if len(encoded) == 0 {
			break
		}
	}

	finalCmd := fmt.Sprintf("base64 -d %s > %s && rm -f %s && chmod %04o %s",
		tempFile, shellQuote(remote), tempFile, mode, shellQuote(remote))
	if res, err := c.Run(ctx, finalCmd, types.RunOptions{}); err != nil || res.RC != 0 {
		c.Run(ctx, fmt.Sprintf("rm -f %s", tempFile), types.RunOptions{})
		return types.NewConnectionError(c.info.Host, fmt.Sprintf("installing %s", remote), err)
	}
	return nil
}

func (c *SSHConnection) Get(ctx context.Context, remote string) (io.ReadCloser, error) {
	if !c.connected {
		return nil, types.NewConnectionError(c.info.Host, "not connected", nil)
	}
	remote = types.SanitizePath(remote)

	session, err := c.client.NewSession()
	if err != nil {
		return nil, types.NewConnectionError(c.info.Host, "opening SSH session", err)
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	if err := session.Run(fmt.Sprintf("base64 %s", shellQuote(remote))); err != nil {
		return nil, types.NewConnectionError(c.info.Host, fmt.Sprintf("fetching %s", remote), err)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(out.String(), "\n", ""))
	if err != nil {
		return nil, types.NewConnectionError(c.info.Host, fmt.Sprintf("decoding %s", remote), err)
	}
	return io.NopCloser(bytes.NewReader(decoded)), nil
}

func (c *SSHConnection) Mkdir(ctx context.Context, remote string, mode int) error {
	remote = types.SanitizePath(remote)
	cmd := fmt.Sprintf("mkdir -p %s && chmod %04o %s", shellQuote(remote), mode, shellQuote(remote))
	res, err := c.Run(ctx, cmd, types.RunOptions{})
	if err != nil {
		return err
	}
	if res.RC != 0 {
		return types.NewConnectionError(c.info.Host, fmt.Sprintf("creating directory %s: %s", remote, res.Stderr), nil)
	}
	return nil
}

// Stat shells out to `stat` with a portable format string and parses
// the pipe-separated fields, matching spec §4.1's permission-bit stat
// contract without requiring an SFTP subsystem.
func (c *SSHConnection) Stat(ctx context.Context, remote string) (*types.FileStat, error) {
	remote = types.SanitizePath(remote)
	cmd := fmt.Sprintf(
		"stat -c '%%F|%%s|%%Y|%%a' %s 2>/dev/null || stat -f '%%HT|%%z|%%m|%%Lp' %s",
		shellQuote(remote), shellQuote(remote))
	res, err := c.Run(ctx, cmd, types.RunOptions{Shell: true})
	if err != nil {
		return nil, err
	}
	if res.RC != 0 || strings.TrimSpace(res.Stdout) == "" {
		return &types.FileStat{Exists: false}, nil
	}
	fields := strings.Split(strings.TrimSpace(res.Stdout), "|")
	if len(fields) != 4 {
		return &types.FileStat{Exists: false}, nil
	}
	kind := strings.ToLower(fields[0])
	size, _ := strconv.ParseInt(fields[1], 10, 64)
	epoch, _ := strconv.ParseInt(fields[2], 10, 64)
	mode, _ := strconv.ParseUint(fields[3], 8, 32)

	return &types.FileStat{
		Exists:  true,
		IsFile:  strings.Contains(kind, "regular"),
		IsDir:   strings.Contains(kind, "directory"),
		IsLink:  strings.Contains(kind, "link"),
		Size:    size,
		ModTime: time.Unix(epoch, 0),
		Mode:    uint32(mode),
	}, nil
}

// WrapBecome mirrors LocalConnection's sudo/su wrapping; become runs on
// the remote shell, not the control machine.
func (c *SSHConnection) WrapBecome(cmd string, become bool, becomeUser, becomeMethod string) string {
	if !become {
		return cmd
	}
	user := becomeUser
	if user == "" {
		user = "root"
	}
	switch becomeMethod {
	case "su":
		return fmt.Sprintf("su - %s -c %s", shellQuote(user), shellQuote(cmd))
	default:
		return fmt.Sprintf("sudo -u %s -n -H sh -c %s", shellQuote(user), shellQuote(cmd))
	}
}
