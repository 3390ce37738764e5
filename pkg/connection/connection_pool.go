package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sansible/sansible/pkg/types"
)

// CacheConfig tunes the host-connection cache owned by the Runner
// (spec §3: "Connections are owned by the Runner and shared by
// reference to the HostContext").
type CacheConfig struct {
	ConnectionTimeout time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
}

// DefaultCacheConfig returns sane defaults for the connection cache.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		ConnectionTimeout: 30 * time.Second,
		RetryAttempts:     2,
		RetryDelay:        1 * time.Second,
	}
}

// entry pairs a live connection with the info it was dialed with, so a
// later lookup with different connection parameters (e.g. a delegated
// host) does not reuse a stale connection.
type entry struct {
	conn types.Connection
	info types.ConnectionInfo
}

// Cache holds at most one live Connection per host, exactly the model
// spec §3 describes: a single connection per HostContext, cached for
// the lifetime of the Runner rather than reconnected per task. This
// replaces the teacher's multi-connection-per-key pool, which modeled a
// server handling concurrent unrelated clients — not this system's
// single control-node-drives-N-hosts shape.
type Cache struct {
	config  CacheConfig
	manager *Manager
	mu      sync.Mutex
	entries map[string]*entry
}

// NewCache creates an empty connection cache backed by manager (or
// DefaultManager if nil).
func NewCache(config CacheConfig, manager *Manager) *Cache {
	if manager == nil {
		manager = DefaultManager
	}
	return &Cache{
		config:  config,
		manager: manager,
		entries: make(map[string]*entry),
	}
}

func cacheKey(info types.ConnectionInfo) string {
	return fmt.Sprintf("%s|%s|%d|%s", info.Kind, info.Host, info.Port, info.User)
}

// Get returns the cached connection for info, dialing (with retry) and
// caching a new one if none exists or the cached one has dropped.
func (c *Cache) Get(ctx context.Context, info types.ConnectionInfo) (types.Connection, error) {
	key := cacheKey(info)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.conn.IsConnected() {
		c.mu.Unlock()
		return e.conn, nil
	}
	c.mu.Unlock()

	conn, err := c.dial(ctx, info)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = &entry{conn: conn, info: info}
	c.mu.Unlock()

	return conn, nil
}

func (c *Cache) dial(ctx context.Context, info types.ConnectionInfo) (types.Connection, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.config.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		dialCtx := ctx
		var cancel context.CancelFunc
		if c.config.ConnectionTimeout > 0 {
			dialCtx, cancel = context.WithTimeout(ctx, c.config.ConnectionTimeout)
		} else {
			cancel = func() {}
		}

		conn, err := c.manager.Connect(dialCtx, info)
		cancel()
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, types.NewUnreachableError(info.Host, fmt.Sprintf("failed after %d attempts", c.config.RetryAttempts+1), lastErr)
}

// Invalidate drops and closes the cached connection for info, if any —
// used when a task observes the connection has gone bad.
func (c *Cache) Invalidate(info types.ConnectionInfo) {
	key := cacheKey(info)
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	if ok {
		e.conn.Close()
	}
}

// CloseAll closes every cached connection; called once the run ends.
func (c *Cache) CloseAll() error {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*entry)
	c.mu.Unlock()

	var lastErr error
	for _, e := range entries {
		if err := e.conn.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Size returns the number of currently cached connections.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
