package config

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Greg89/normaize-server-sub004/internal/chaos"
)

// Manager owns the live configuration: it loads the file, republishes an
// immutable engine snapshot on every successful reload, and keeps serving the
// previous snapshot when a reload fails. It implements chaos.ConfigSource.
type Manager struct {
	logger *zap.Logger
	path   string

	mu      sync.Mutex
	cfg     *Config
	watcher *Watcher

	snapshot atomic.Pointer[chaos.Snapshot]
}

// NewManager creates a manager for the file at path. Call Load before use.
func NewManager(logger *zap.Logger, path string) *Manager {
	return &Manager{logger: logger, path: path}
}

// Load reads and validates the file and publishes a fresh snapshot.
func (m *Manager) Load() error {
	cfg, err := Load(m.path)
	if err != nil {
		return err
	}
	snap, err := cfg.Snapshot()
	if err != nil {
		// Validate already parsed everything Snapshot parses.
		return fmt.Errorf("failed to build config snapshot: %w", err)
	}

	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	m.snapshot.Store(&snap)
	return nil
}

// Current returns the latest published snapshot. Before the first successful
// Load it returns a zero snapshot, which leaves the engine disabled.
func (m *Manager) Current() chaos.Snapshot {
	if s := m.snapshot.Load(); s != nil {
		return *s
	}
	return chaos.Snapshot{}
}

// Config returns the last successfully loaded file configuration.
func (m *Manager) Config() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Watch starts hot-reload: file changes trigger a reload, and a failed
// reload logs the error while the previous snapshot stays live.
func (m *Manager) Watch() error {
	w, err := NewWatcher(m.logger, m.path)
	if err != nil {
		return err
	}
	if err := w.Start(func() {
		if err := m.Load(); err != nil {
			m.logger.Error("config reload failed, keeping previous configuration", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	m.mu.Lock()
	m.watcher = w
	m.mu.Unlock()
	return nil
}

// Close stops the watcher if one is running.
func (m *Manager) Close() {
	m.mu.Lock()
	w := m.watcher
	m.watcher = nil
	m.mu.Unlock()
	if w != nil {
		w.Stop()
	}
}
