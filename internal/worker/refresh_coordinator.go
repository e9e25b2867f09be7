package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tillworks/quota/internal/engine"
	"github.com/tillworks/quota/internal/stores"
)

// RefreshableEngine defines the engine operations a refresh cycle runs.
// Implemented by engine.Engine.
type RefreshableEngine interface {
	LoadGoals(ctx context.Context) error
}

// RefreshScopeEnumerator provides access to all managed scopes for refresh cycles.
// This abstraction allows testing with mock engines while production uses stores.Manager.
type RefreshScopeEnumerator interface {
	ListScopes(ctx context.Context) ([]stores.Info, error)
	GetEngine(ctx context.Context, scope string) (RefreshableEngine, error)
}

// RefreshCoordinator runs goal reconciliation across all managed scopes.
type RefreshCoordinator struct {
	manager  RefreshScopeEnumerator
	interval time.Duration
}

// RefreshManagerAdapter adapts stores.Manager to RefreshScopeEnumerator.
type RefreshManagerAdapter struct {
	manager *stores.Manager
}

// NewRefreshManagerAdapter creates an adapter for the given Manager.
func NewRefreshManagerAdapter(manager *stores.Manager) *RefreshManagerAdapter {
	return &RefreshManagerAdapter{manager: manager}
}

// ListScopes returns all scopes from the underlying Manager.
func (a *RefreshManagerAdapter) ListScopes(ctx context.Context) ([]stores.Info, error) {
	return a.manager.List(ctx)
}

// GetEngine returns the scope's engine, which implements RefreshableEngine.
func (a *RefreshManagerAdapter) GetEngine(ctx context.Context, scope string) (RefreshableEngine, error) {
	h, err := a.manager.Get(ctx, scope)
	if err != nil {
		return nil, err
	}
	return h.Engine, nil
}

// NewRefreshCoordinator creates a coordinator for multi-scope goal refresh.
func NewRefreshCoordinator(manager RefreshScopeEnumerator, interval time.Duration) *RefreshCoordinator {
	return &RefreshCoordinator{
		manager:  manager,
		interval: interval,
	}
}

// refreshOutcome classifies one scope's refresh result.
type refreshOutcome int

const (
	refreshSucceeded refreshOutcome = iota
	refreshBusy
	refreshFailed
)

// Run starts the refresh coordinator loop. It blocks until ctx is cancelled.
//
// Unlike ArchiveCoordinator which waits for the first tick, this coordinator
// processes immediately on start. POS terminals read goal state as soon as the
// service is up, so stale or missing goals are reconciled promptly rather than
// waiting for the full interval.
func (c *RefreshCoordinator) Run(ctx context.Context) {
	slog.Info("refresh coordinator started",
		"component", "worker",
		"worker", "refresh-coordinator",
		"interval", c.interval.String(),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Refresh immediately on start so every scope has current goal state
	c.refreshAllScopes(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("refresh coordinator stopped",
				"component", "worker",
				"worker", "refresh-coordinator",
				"reason", "shutdown",
			)
			return
		case <-ticker.C:
			c.refreshAllScopes(ctx)
		}
	}
}

// refreshAllScopes reconciles each scope, continuing on individual failures.
func (c *RefreshCoordinator) refreshAllScopes(ctx context.Context) {
	scopes, err := c.manager.ListScopes(ctx)
	if err != nil {
		slog.Error("failed to list scopes for refresh",
			"component", "worker",
			"worker", "refresh-coordinator",
			"error", err,
		)
		return
	}

	var succeeded, busy, failed int
	for _, info := range scopes {
		if ctx.Err() != nil {
			return // shutdown mid-cycle
		}
		switch c.refreshScope(ctx, info.Scope) {
		case refreshSucceeded:
			succeeded++
		case refreshBusy:
			busy++
		case refreshFailed:
			failed++
		}
	}

	// Log summary only if we processed scopes (skip during mid-cycle shutdown)
	if succeeded > 0 || busy > 0 || failed > 0 {
		slog.Info("refresh cycle completed",
			"component", "worker",
			"worker", "refresh-coordinator",
			"scopes_total", len(scopes),
			"scopes_succeeded", succeeded,
			"scopes_busy", busy,
			"scopes_failed", failed,
		)
	}
}

// refreshScope runs one reconciliation cycle for a single scope.
func (c *RefreshCoordinator) refreshScope(ctx context.Context, scope string) refreshOutcome {
	start := time.Now()

	eng, err := c.manager.GetEngine(ctx, scope)
	if err != nil {
		slog.Warn("failed to get engine for refresh",
			"component", "worker",
			"worker", "refresh-coordinator",
			"store_scope", scope,
			"error", err,
		)
		return refreshFailed
	}

	if err := eng.LoadGoals(ctx); err != nil {
		if ctx.Err() != nil {
			return refreshFailed // shutting down, not a real failure
		}
		if errors.Is(err, engine.ErrBusy) {
			// Another caller (API or previous tick) holds the cycle; skip.
			slog.Debug("reconciliation already in flight, skipping scope",
				"component", "worker",
				"worker", "refresh-coordinator",
				"store_scope", scope,
			)
			return refreshBusy
		}
		slog.Error("refresh failed for scope",
			"component", "worker",
			"worker", "refresh-coordinator",
			"store_scope", scope,
			"error", err,
		)
		return refreshFailed
	}

	slog.Info("refresh completed for scope",
		"component", "worker",
		"worker", "refresh-coordinator",
		"store_scope", scope,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return refreshSucceeded
}
