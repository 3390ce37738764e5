package connection

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sansible/sansible/pkg/types"
)

// fakeConnection is a minimal types.Connection double used to exercise
// the cache without touching the network.
type fakeConnection struct {
	connected  bool
	dialCalls  *int32
	failDials  int32
	dialAttempt int32
}

func newFakeConnection(dialCalls *int32) *fakeConnection {
	return &fakeConnection{dialCalls: dialCalls}
}

func (f *fakeConnection) Connect(ctx context.Context, info types.ConnectionInfo) error {
	atomic.AddInt32(f.dialCalls, 1)
	f.dialAttempt++
	if f.dialAttempt <= f.failDials {
		return types.NewUnreachableError(info.Host, "simulated failure", nil)
	}
	f.connected = true
	return nil
}
func (f *fakeConnection) Close() error                    { f.connected = false; return nil }
func (f *fakeConnection) IsConnected() bool                { return f.connected }
func (f *fakeConnection) Run(ctx context.Context, command string, opts types.RunOptions) (*types.RunResult, error) {
	return &types.RunResult{RC: 0}, nil
}
func (f *fakeConnection) Put(ctx context.Context, local io.Reader, remote string, mode int) error {
	return nil
}
func (f *fakeConnection) Get(ctx context.Context, remote string) (io.ReadCloser, error) {
	return io.NopCloser(nil), nil
}
func (f *fakeConnection) Mkdir(ctx context.Context, remote string, mode int) error { return nil }
func (f *fakeConnection) Stat(ctx context.Context, remote string) (*types.FileStat, error) {
	return &types.FileStat{Exists: false}, nil
}
func (f *fakeConnection) WrapBecome(cmd string, become bool, becomeUser, becomeMethod string) string {
	return cmd
}

func TestCacheGetReusesConnection(t *testing.T) {
	var dials int32
	manager := &Manager{plugins: map[types.ConnectionKind]ConnectionFactory{
		types.ConnectionSSH: func() types.Connection { return newFakeConnection(&dials) },
	}}
	cache := NewCache(DefaultCacheConfig(), manager)

	info := types.ConnectionInfo{Kind: types.ConnectionSSH, Host: "web01", User: "deploy"}

	c1, err := cache.Get(context.Background(), info)
	require.NoError(t, err)
	c2, err := cache.Get(context.Background(), info)
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&dials))
}

func TestCacheGetDifferentHostsDialSeparately(t *testing.T) {
	var dials int32
	manager := &Manager{plugins: map[types.ConnectionKind]ConnectionFactory{
		types.ConnectionSSH: func() types.Connection { return newFakeConnection(&dials) },
	}}
	cache := NewCache(DefaultCacheConfig(), manager)

	_, err := cache.Get(context.Background(), types.ConnectionInfo{Kind: types.ConnectionSSH, Host: "web01"})
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), types.ConnectionInfo{Kind: types.ConnectionSSH, Host: "web02"})
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&dials))
	assert.Equal(t, 2, cache.Size())
}

func TestCacheInvalidateForcesRedial(t *testing.T) {
	var dials int32
	manager := &Manager{plugins: map[types.ConnectionKind]ConnectionFactory{
		types.ConnectionSSH: func() types.Connection { return newFakeConnection(&dials) },
	}}
	cache := NewCache(DefaultCacheConfig(), manager)
	info := types.ConnectionInfo{Kind: types.ConnectionSSH, Host: "web01"}

	_, err := cache.Get(context.Background(), info)
	require.NoError(t, err)
	cache.Invalidate(info)
	_, err = cache.Get(context.Background(), info)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&dials))
}

func TestCacheCloseAll(t *testing.T) {
	var dials int32
	manager := &Manager{plugins: map[types.ConnectionKind]ConnectionFactory{
		types.ConnectionSSH: func() types.Connection { return newFakeConnection(&dials) },
	}}
	cache := NewCache(DefaultCacheConfig(), manager)
	_, err := cache.Get(context.Background(), types.ConnectionInfo{Kind: types.ConnectionSSH, Host: "web01"})
	require.NoError(t, err)

	require.NoError(t, cache.CloseAll())
	assert.Equal(t, 0, cache.Size())
}

func TestManagerUnknownKind(t *testing.T) {
	m := NewManager()
	_, err := m.Create(types.ConnectionKind("bogus"))
	assert.Error(t, err)
}

func TestManagerRegistersBuiltins(t *testing.T) {
	m := NewManager()
	kinds := m.ListPlugins()
	assert.Contains(t, kinds, types.ConnectionLocal)
	assert.Contains(t, kinds, types.ConnectionSSH)
	assert.Contains(t, kinds, types.ConnectionWinRM)
}
