// Package connection provides the connection plugins (local, SSH, WinRM)
// that execute commands and transfer files on behalf of a task.
package connection

import (
	"context"
	"fmt"

	"github.com/sansible/sansible/pkg/types"
)

// ConnectionFactory creates a fresh, unconnected Connection instance.
type ConnectionFactory func() types.Connection

// Manager resolves a types.ConnectionKind to a Connection plugin and
// connects it. One Manager is shared process-wide; the per-host cache is
// the separate Cache type, which pkg/runner owns.
type Manager struct {
	plugins map[types.ConnectionKind]ConnectionFactory
}

// NewManager creates a Manager with the local, SSH, and WinRM plugins
// registered.
func NewManager() *Manager {
	m := &Manager{plugins: make(map[types.ConnectionKind]ConnectionFactory)}
	m.RegisterPlugin(types.ConnectionLocal, func() types.Connection { return NewLocalConnection() })
	m.RegisterPlugin(types.ConnectionSSH, func() types.Connection { return NewSSHConnection() })
	m.RegisterPlugin(types.ConnectionWinRM, func() types.Connection { return NewWinRMConnection() })
	return m
}

// RegisterPlugin registers (or overrides) the factory for kind.
func (m *Manager) RegisterPlugin(kind types.ConnectionKind, factory ConnectionFactory) {
	m.plugins[kind] = factory
}

// Create returns a fresh, unconnected Connection for kind.
func (m *Manager) Create(kind types.ConnectionKind) (types.Connection, error) {
	factory, exists := m.plugins[kind]
	if !exists {
		return nil, types.NewUnsupportedFeatureError(string(kind), "no connection plugin registered for this kind")
	}
	return factory(), nil
}

// Connect creates and connects a Connection for info.Kind, defaulting to
// SSH when Kind is empty (matching the teacher's prior default).
func (m *Manager) Connect(ctx context.Context, info types.ConnectionInfo) (types.Connection, error) {
	kind := info.Kind
	if kind == "" {
		kind = types.ConnectionSSH
	}

	conn, err := m.Create(kind)
	if err != nil {
		return nil, err
	}

	if err := conn.Connect(ctx, info); err != nil {
		return nil, fmt.Errorf("connecting to %s via %s: %w", info.Host, kind, err)
	}

	return conn, nil
}

// ListPlugins returns the registered connection kinds.
func (m *Manager) ListPlugins() []types.ConnectionKind {
	kinds := make([]types.ConnectionKind, 0, len(m.plugins))
	for k := range m.plugins {
		kinds = append(kinds, k)
	}
	return kinds
}

// DefaultManager is the process-wide Manager used unless a caller needs
// an isolated registry (e.g. tests injecting a mock connection kind).
var DefaultManager = NewManager()
