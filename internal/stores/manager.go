// Package stores manages per-scope goal state: one directory per retail
// store scope holding its cache database and metadata, with an engine
// lazily wired on first access.
package stores

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tillworks/quota/internal/engine"
)

// Config wires a Manager and the engines it creates.
type Config struct {
	// RootPath is the directory holding one subdirectory per scope.
	RootPath string

	// Shared collaborators injected into every scope's engine.
	Goals    engine.GoalStore
	Metrics  engine.MetricsSource
	Notifier engine.Notifier

	// Now overrides the engine clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Manager manages isolated per-scope handles with lazy loading.
type Manager struct {
	rootPath string
	deps     engineDeps

	mu      sync.RWMutex
	handles map[string]*Handle
}

// NewManager builds a Manager over cfg.RootPath, creating the directory
// when missing. A leading ~/ in the path is expanded.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Goals == nil {
		return nil, errors.New("Goals is required")
	}
	if cfg.Metrics == nil {
		return nil, errors.New("Metrics is required")
	}

	rootPath, err := expandHome(cfg.RootPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("create scopes root directory: %w", err)
	}

	return &Manager{
		rootPath: rootPath,
		deps: engineDeps{
			goals:    cfg.Goals,
			metrics:  cfg.Metrics,
			notifier: cfg.Notifier,
			now:      cfg.Now,
		},
		handles: make(map[string]*Handle),
	}, nil
}

// expandHome substitutes a leading ~/ with the user's home directory.
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, path[2:]), nil
}

// Get returns the handle for the given scope, loading it if necessary.
// Returns ErrScopeNotFound if the scope was never provisioned.
func (m *Manager) Get(ctx context.Context, scope string) (*Handle, error) {
	if err := ValidateScope(scope); err != nil {
		return nil, err
	}

	// Read lock first: the common case is an already loaded handle.
	m.mu.RLock()
	if h, ok := m.handles[scope]; ok {
		m.mu.RUnlock()
		h.TouchAccessed()
		return h, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another goroutine may have loaded it between the two locks.
	if h, ok := m.handles[scope]; ok {
		h.TouchAccessed()
		return h, nil
	}

	basePath := m.scopePath(scope)
	if _, err := os.Stat(basePath); os.IsNotExist(err) {
		return nil, ErrScopeNotFound
	}

	h, err := newHandle(scope, basePath, m.deps)
	if err != nil {
		return nil, fmt.Errorf("load scope %q: %w", scope, err)
	}

	m.handles[scope] = h

	slog.Info("scope loaded",
		"component", "stores",
		"action", "scope_loaded",
		"store_scope", scope,
	)

	h.TouchAccessed()
	return h, nil
}

// Create provisions a new scope directory and loads its handle.
// Returns ErrScopeAlreadyExists if the scope already exists.
func (m *Manager) Create(ctx context.Context, scope, description string) (*Handle, error) {
	if err := ValidateScope(scope); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	basePath := m.scopePath(scope)
	if _, err := os.Stat(basePath); err == nil {
		return nil, ErrScopeAlreadyExists
	}

	if err := m.createScopeDir(scope, description); err != nil {
		return nil, err
	}

	h, err := newHandle(scope, basePath, m.deps)
	if err != nil {
		return nil, fmt.Errorf("load new scope %q: %w", scope, err)
	}

	m.handles[scope] = h

	slog.Info("scope created",
		"component", "stores",
		"action", "scope_created",
		"store_scope", scope,
	)

	return h, nil
}

// Delete closes a scope's handle and removes its directory.
// Returns ErrScopeNotFound if the scope doesn't exist.
func (m *Manager) Delete(ctx context.Context, scope string) error {
	if err := ValidateScope(scope); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	basePath := m.scopePath(scope)
	if _, err := os.Stat(basePath); os.IsNotExist(err) {
		return ErrScopeNotFound
	}

	if h, ok := m.handles[scope]; ok {
		if err := h.Close(); err != nil {
			slog.Warn("close before delete failed", "store_scope", scope, "error", err)
		}
		delete(m.handles, scope)
	}

	if err := os.RemoveAll(basePath); err != nil {
		return fmt.Errorf("remove scope directory: %w", err)
	}

	slog.Info("scope deleted",
		"component", "stores",
		"action", "scope_deleted",
		"store_scope", scope,
	)

	return nil
}

// List returns metadata for all provisioned scopes.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	entries, err := os.ReadDir(m.rootPath)
	if err != nil {
		return nil, fmt.Errorf("read scopes directory: %w", err)
	}

	var result []Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		basePath := filepath.Join(m.rootPath, entry.Name())
		if _, err := os.Stat(filepath.Join(basePath, "meta.yaml")); err != nil {
			continue
		}

		info, err := m.scopeInfo(entry.Name(), basePath)
		if err != nil {
			slog.Warn("scope metadata unreadable", "store_scope", entry.Name(), "error", err)
			continue
		}
		result = append(result, info)
	}

	return result, nil
}

// scopeInfo collects summary information about a single scope.
func (m *Manager) scopeInfo(scope, basePath string) (Info, error) {
	meta, err := LoadMeta(filepath.Join(basePath, "meta.yaml"))
	if err != nil {
		return Info{}, err
	}

	var sizeBytes int64
	if info, err := os.Stat(filepath.Join(basePath, "cache.db")); err == nil {
		sizeBytes = info.Size()
	}

	return Info{
		Scope:        scope,
		Created:      meta.Created,
		LastAccessed: meta.LastAccessed,
		Description:  meta.Description,
		SizeBytes:    sizeBytes,
	}, nil
}

// scopePath returns the filesystem path for a scope.
func (m *Manager) scopePath(scope string) string {
	return filepath.Join(m.rootPath, scope)
}

// createScopeDir creates a new scope directory with metadata.
func (m *Manager) createScopeDir(scope, description string) error {
	basePath := m.scopePath(scope)

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return fmt.Errorf("create scope directory: %w", err)
	}

	meta := NewMeta(description)
	if err := SaveMeta(filepath.Join(basePath, "meta.yaml"), meta); err != nil {
		os.RemoveAll(basePath) // roll back the half-made scope
		return fmt.Errorf("write scope metadata: %w", err)
	}

	return nil
}

// Close closes all loaded handles.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var lastErr error
	for scope, h := range m.handles {
		if err := h.Close(); err != nil {
			slog.Error("scope close failed", "store_scope", scope, "error", err)
			lastErr = err
		}
	}

	return lastErr
}
