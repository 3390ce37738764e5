package connection

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/masterzen/winrm"
	"github.com/sansible/sansible/pkg/types"
)

// winrmChunkSize is the base64 chunk size used for chunked file
// transfer, roughly 700 KiB per spec §4.1.
const winrmChunkSize = 700 * 1024

// WinRMConnection implements types.Connection over PowerShell remoting
// via github.com/masterzen/winrm.
type WinRMConnection struct {
	client    *winrm.Client
	connected bool
	info      types.ConnectionInfo
}

// NewWinRMConnection creates an unconnected WinRM connection.
func NewWinRMConnection() *WinRMConnection {
	return &WinRMConnection{}
}

func (c *WinRMConnection) Connect(ctx context.Context, info types.ConnectionInfo) error {
	c.info = info

	port := info.Port
	if port == 0 {
		if info.UseSSL {
			port = 5986
		} else {
			port = 5985
		}
	}

	endpoint := winrm.NewEndpoint(info.Host, port, info.UseSSL, info.SkipVerify, nil, nil, nil, 0)

	params := winrm.DefaultParameters
	params.TransportDecorator = func() winrm.Transporter { return &winrm.ClientNTLM{} }

	client, err := winrm.NewClientWithParameters(endpoint, info.User, info.Password, params)
	if err != nil {
		return types.NewConnectionError(info.Host, "creating WinRM client", err)
	}
	c.client = client
	c.connected = true

	if _, err := c.Run(ctx, "echo connected", types.RunOptions{}); err != nil {
		c.Close()
		return types.NewUnreachableError(info.Host, "WinRM connection test failed", err)
	}
	return nil
}

func (c *WinRMConnection) Close() error {
	c.connected = false
	c.client = nil
	return nil
}

func (c *WinRMConnection) IsConnected() bool {
	return c.connected && c.client != nil
}

// Run wraps the command as a PowerShell script unless opts.Shell is
// false, in which case it is wrapped in cmd.exe /c (spec §4.1: working
// directory emitted as Set-Location, environment as $env:KEY = 'VALUE').
func (c *WinRMConnection) Run(ctx context.Context, command string, opts types.RunOptions) (*types.RunResult, error) {
	if !c.connected {
		return nil, types.NewConnectionError(c.info.Host, "not connected", nil)
	}

	full := c.buildCommand(command, opts)

	shell, err := c.client.CreateShell()
	if err != nil {
		return nil, types.NewConnectionError(c.info.Host, "creating WinRM shell", err)
	}
	defer shell.Close()

	var stdout, stderr bytes.Buffer
	cmd, err := shell.ExecuteWithContext(ctx, full)
	if err != nil {
		return nil, types.NewConnectionError(c.info.Host, fmt.Sprintf("running command: %s", command), err)
	}

	done := make(chan struct{})
	go func() {
		io.Copy(&stdout, cmd.Stdout)
		io.Copy(&stderr, cmd.Stderr)
		cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		cmd.Close()
		return nil, ctx.Err()
	}

	return &types.RunResult{
		RC:     cmd.ExitCode(),
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}, nil
}

func (c *WinRMConnection) buildCommand(command string, opts types.RunOptions) string {
	var prefix strings.Builder
	if opts.WorkingDir != "" {
		fmt.Fprintf(&prefix, "Set-Location -LiteralPath '%s'; ", psQuote(opts.WorkingDir))
	}
	for k, v := range opts.Environment {
		fmt.Fprintf(&prefix, "$env:%s = '%s'; ", k, psQuote(v))
	}

	if !opts.Shell {
		return fmt.Sprintf("cmd.exe /c %s", command)
	}
	return prefix.String() + command
}

func psQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Put uploads via the chunked base64 scheme from spec §4.1: ensure the
// parent directory exists and remove any pre-existing target, then
// append successive base64-decoded chunks; an empty source takes a
// single create-empty branch.
func (c *WinRMConnection) Put(ctx context.Context, local io.Reader, remote string, mode int) error {
	data, err := io.ReadAll(local)
	if err != nil {
		return types.NewConnectionError(c.info.Host, "reading local source", err)
	}

	prep := fmt.Sprintf(`
$dest = '%s'
$dir = Split-Path -Parent $dest
if ($dir -and !(Test-Path $dir)) { New-Item -ItemType Directory -Path $dir -Force | Out-Null }
if (Test-Path $dest) { Remove-Item -Path $dest -Force }
`, psQuote(remote))
	if res, err := c.Run(ctx, prep, types.RunOptions{}); err != nil || res.RC != 0 {
		return types.NewConnectionError(c.info.Host, fmt.Sprintf("preparing destination %s", remote), err)
	}

	if len(data) == 0 {
		createEmpty := fmt.Sprintf("New-Item -ItemType File -Path '%s' -Force | Out-Null", psQuote(remote))
		if res, err := c.Run(ctx, createEmpty, types.RunOptions{}); err != nil || res.RC != 0 {
			return types.NewConnectionError(c.info.Host, fmt.Sprintf("creating empty file %s", remote), err)
		}
		return nil
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	for i := 0; i < len(encoded); i += winrmChunkSize {
		end := i + winrmChunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		chunk := encoded[i:end]
		script := fmt.Sprintf(`
$bytes = [System.Convert]::FromBase64String('%s')
$fs = [System.IO.File]::Open('%s', [System.IO.FileMode]::Append)
$fs.Write($bytes, 0, $bytes.Length)
$fs.Close()
`, chunk, psQuote(remote))
		if res, err := c.Run(ctx, script, types.RunOptions{}); err != nil || res.RC != 0 {
			return types.NewConnectionError(c.info.Host, fmt.Sprintf("transferring chunk to %s", remote), err)
		}
	}
	return nil
}

// Get downloads the inverse way: seek-and-read a chunk at a time via a
// PowerShell FileStream, matching Put's chunking (spec §4.1).
func (c *WinRMConnection) Get(ctx context.Context, remote string) (io.ReadCloser, error) {
	statScript := fmt.Sprintf(`
if (!(Test-Path '%s')) { Write-Output '-1' } else { (Get-Item '%s').Length }
`, psQuote(remote), psQuote(remote))
	res, err := c.Run(ctx, statScript, types.RunOptions{})
	if err != nil {
		return nil, types.NewConnectionError(c.info.Host, fmt.Sprintf("statting %s", remote), err)
	}
	size, _ := strconv.ParseInt(strings.TrimSpace(res.Stdout), 10, 64)
	if size < 0 {
		return nil, types.NewConnectionError(c.info.Host, fmt.Sprintf("file not found: %s", remote), nil)
	}

	var buf bytes.Buffer
	for offset := int64(0); offset < size || size == 0; offset += winrmChunkSize {
		length := int64(winrmChunkSize)
		if offset+length > size {
			length = size - offset
		}
		script := fmt.Sprintf(`
$fs = [System.IO.File]::Open('%s', [System.IO.FileMode]::Open, [System.IO.FileAccess]::Read)
$fs.Seek(%d, [System.IO.SeekOrigin]::Begin) | Out-Null
$buf = New-Object byte[] %d
$read = $fs.Read($buf, 0, %d)
$fs.Close()
[System.Convert]::ToBase64String($buf, 0, $read)
`, psQuote(remote), offset, length, length)
		chunkRes, err := c.Run(ctx, script, types.RunOptions{})
		if err != nil {
			return nil, types.NewConnectionError(c.info.Host, fmt.Sprintf("reading chunk of %s", remote), err)
		}
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(chunkRes.Stdout))
		if err != nil {
			return nil, types.NewConnectionError(c.info.Host, fmt.Sprintf("decoding chunk of %s", remote), err)
		}
		buf.Write(decoded)
		if size == 0 {
			break
		}
	}
	return io.NopCloser(&buf), nil
}

func (c *WinRMConnection) Mkdir(ctx context.Context, remote string, mode int) error {
	script := fmt.Sprintf(`
if (!(Test-Path '%s')) { New-Item -ItemType Directory -Path '%s' -Force | Out-Null }
`, psQuote(remote), psQuote(remote))
	res, err := c.Run(ctx, script, types.RunOptions{})
	if err != nil {
		return err
	}
	if res.RC != 0 {
		return types.NewConnectionError(c.info.Host, fmt.Sprintf("creating directory %s: %s", remote, res.Stderr), nil)
	}
	return nil
}

type winrmStatPayload struct {
	Exists bool   `json:"exists"`
	IsFile bool   `json:"isfile"`
	IsDir  bool   `json:"isdir"`
	IsLink bool   `json:"islink"`
	Size   int64  `json:"size"`
	Mtime  string `json:"mtime"`
}

// Stat emits a small PowerShell expression producing JSON and parses
// the result, per spec §4.1.
func (c *WinRMConnection) Stat(ctx context.Context, remote string) (*types.FileStat, error) {
	script := fmt.Sprintf(`
$p = '%s'
if (!(Test-Path -LiteralPath $p)) {
    ConvertTo-Json @{exists=$false}
} else {
    $i = Get-Item -LiteralPath $p -Force
    ConvertTo-Json @{
        exists = $true
        isfile = (!$i.PSIsContainer)
        isdir = $i.PSIsContainer
        islink = [bool]($i.Attributes -band [System.IO.FileAttributes]::ReparsePoint)
        size = $(if ($i.PSIsContainer) { 0 } else { $i.Length })
        mtime = $i.LastWriteTimeUtc.ToString("o")
    }
}
`, psQuote(remote))
	res, err := c.Run(ctx, script, types.RunOptions{})
	if err != nil {
		return nil, types.NewConnectionError(c.info.Host, fmt.Sprintf("statting %s", remote), err)
	}

	var payload winrmStatPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Stdout)), &payload); err != nil {
		return nil, types.NewConnectionError(c.info.Host, fmt.Sprintf("parsing stat result for %s", remote), err)
	}
	if !payload.Exists {
		return &types.FileStat{Exists: false}, nil
	}
	mtime, _ := time.Parse(time.RFC3339, payload.Mtime)
	return &types.FileStat{
		Exists:  true,
		IsFile:  payload.IsFile,
		IsDir:   payload.IsDir,
		IsLink:  payload.IsLink,
		Size:    payload.Size,
		ModTime: mtime,
	}, nil
}

// WrapBecome is a no-op: become (sudo/su) is a POSIX privilege-
// escalation concept with no WinRM equivalent wired here (spec §4.1).
func (c *WinRMConnection) WrapBecome(cmd string, become bool, becomeUser, becomeMethod string) string {
	return cmd
}

// Platforms reports this connection only targets Windows hosts,
// satisfying types.PlatformAware for callers that branch on it.
func (c *WinRMConnection) Platforms() []string {
	return []string{"windows"}
}
