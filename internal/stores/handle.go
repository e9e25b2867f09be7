package stores

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/tillworks/quota/internal/cache"
	"github.com/tillworks/quota/internal/engine"
)

// Handle wraps one scope's engine and cache with metadata and access
// tracking.
type Handle struct {
	Scope    string
	Engine   *engine.Engine
	Cache    *cache.SQLiteCache
	Meta     *Meta
	BasePath string // Directory containing this scope

	mu        sync.Mutex
	metaDirty bool // metadata changed since the last save
}

type engineDeps struct {
	goals    engine.GoalStore
	metrics  engine.MetricsSource
	notifier engine.Notifier
	now      func() time.Time
}

// newHandle opens a scope from an existing directory: its metadata, its
// cache database, and a fresh engine wired to the shared collaborators.
func newHandle(scope, basePath string, deps engineDeps) (*Handle, error) {
	meta, err := LoadMeta(filepath.Join(basePath, "meta.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load scope metadata: %w", err)
	}

	c, err := cache.NewSQLiteCache(filepath.Join(basePath, "cache.db"), cache.WithScope(scope))
	if err != nil {
		return nil, fmt.Errorf("open scope cache: %w", err)
	}

	eng, err := engine.New(engine.Config{
		StoreScope: scope,
		Goals:      deps.goals,
		Metrics:    deps.metrics,
		Cache:      c,
		Notifier:   deps.notifier,
		Now:        deps.now,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("create scope engine: %w", err)
	}

	return &Handle{
		Scope:    scope,
		Engine:   eng,
		Cache:    c,
		Meta:     meta,
		BasePath: basePath,
	}, nil
}

// TouchAccessed stamps last_accessed now. The disk write is deferred to
// FlushMeta so hot paths never block on IO.
func (h *Handle) TouchAccessed() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.Meta.LastAccessed = time.Now().UTC()
	h.metaDirty = true
}

// FlushMeta writes the metadata out when it has pending changes.
func (h *Handle) FlushMeta() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.metaDirty {
		return nil
	}

	if err := SaveMeta(filepath.Join(h.BasePath, "meta.yaml"), h.Meta); err != nil {
		return err
	}

	h.metaDirty = false
	return nil
}

// Close tears down the engine, flushes metadata, and closes the cache.
func (h *Handle) Close() error {
	if err := h.Engine.Close(); err != nil {
		slog.Warn("engine close failed", "store_scope", h.Scope, "error", err)
	}
	if err := h.FlushMeta(); err != nil {
		slog.Warn("metadata flush failed on close", "store_scope", h.Scope, "error", err)
	}
	return h.Cache.Close()
}
