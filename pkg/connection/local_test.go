package connection

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sansible/sansible/pkg/types"
)

func connectedLocal(t *testing.T) *LocalConnection {
	t.Helper()
	conn := NewLocalConnection()
	require.NoError(t, conn.Connect(context.Background(), types.ConnectionInfo{Host: "localhost"}))
	return conn
}

func TestLocalConnectionRunSuccess(t *testing.T) {
	conn := connectedLocal(t)
	defer conn.Close()

	res, err := conn.Run(context.Background(), "echo hello", types.RunOptions{Shell: true})
	require.NoError(t, err)
	assert.Equal(t, 0, res.RC)
	assert.Equal(t, "hello\n", res.Stdout)
}

func TestLocalConnectionRunNonZeroExit(t *testing.T) {
	conn := connectedLocal(t)
	defer conn.Close()

	res, err := conn.Run(context.Background(), "exit 3", types.RunOptions{Shell: true})
	require.NoError(t, err)
	assert.Equal(t, 3, res.RC)
}

func TestLocalConnectionNotConnected(t *testing.T) {
	conn := NewLocalConnection()
	_, err := conn.Run(context.Background(), "echo hi", types.RunOptions{Shell: true})
	assert.Error(t, err)
}

func TestLocalConnectionPutGet(t *testing.T) {
	conn := connectedLocal(t)
	defer conn.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "nested", "file.txt")

	err := conn.Put(context.Background(), strings.NewReader("payload"), dest, 0644)
	require.NoError(t, err)

	rc, err := conn.Get(context.Background(), dest)
	require.NoError(t, err)
	defer rc.Close()

	buf := make([]byte, 16)
	n, _ := rc.Read(buf)
	assert.Equal(t, "payload", string(buf[:n]))
}

func TestLocalConnectionStatMissing(t *testing.T) {
	conn := connectedLocal(t)
	defer conn.Close()

	stat, err := conn.Stat(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.False(t, stat.Exists)
}

func TestLocalConnectionStatExisting(t *testing.T) {
	conn := connectedLocal(t)
	defer conn.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	stat, err := conn.Stat(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, stat.Exists)
	assert.True(t, stat.IsFile)
	assert.Equal(t, int64(3), stat.Size)
}

func TestLocalConnectionMkdir(t *testing.T) {
	conn := connectedLocal(t)
	defer conn.Close()

	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, conn.Mkdir(context.Background(), dir, 0755))

	stat, err := conn.Stat(context.Background(), dir)
	require.NoError(t, err)
	assert.True(t, stat.IsDir)
}

func TestLocalConnectionWrapBecomeSudo(t *testing.T) {
	conn := NewLocalConnection()
	wrapped := conn.WrapBecome("whoami", true, "deploy", "sudo")
	assert.Contains(t, wrapped, "sudo -u")
	assert.Contains(t, wrapped, "deploy")
}

func TestLocalConnectionWrapBecomeNoop(t *testing.T) {
	conn := NewLocalConnection()
	assert.Equal(t, "whoami", conn.WrapBecome("whoami", false, "", ""))
}
