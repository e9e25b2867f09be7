package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tillworks/quota/internal/archive"
	"github.com/tillworks/quota/internal/cache"
	"github.com/tillworks/quota/internal/stores"
)

// ArchiveCapableCache defines the cache operations an export cycle needs.
// Implemented by cache.SQLiteCache.
type ArchiveCapableCache interface {
	UnarchivedEvents(ctx context.Context, limit int) ([]cache.AuditEvent, error)
	MarkArchived(ctx context.Context, ids []string, at time.Time) error
}

// ArchiveScopeEnumerator provides access to all managed scopes for event export.
// This abstraction allows testing with mock caches while production uses stores.Manager.
type ArchiveScopeEnumerator interface {
	ListScopes(ctx context.Context) ([]stores.Info, error)
	GetArchiveCache(ctx context.Context, scope string) (ArchiveCapableCache, error)
}

// ArchiveCoordinator exports pending audit events across all managed scopes.
type ArchiveCoordinator struct {
	manager   ArchiveScopeEnumerator
	uploader  archive.Uploader
	interval  time.Duration
	batchSize int
}

// ArchiveManagerAdapter adapts stores.Manager to ArchiveScopeEnumerator.
type ArchiveManagerAdapter struct {
	manager *stores.Manager
}

// NewArchiveManagerAdapter creates an adapter for the given Manager.
func NewArchiveManagerAdapter(manager *stores.Manager) *ArchiveManagerAdapter {
	return &ArchiveManagerAdapter{manager: manager}
}

// ListScopes returns all scopes from the underlying Manager.
func (a *ArchiveManagerAdapter) ListScopes(ctx context.Context) ([]stores.Info, error) {
	return a.manager.List(ctx)
}

// GetArchiveCache returns the scope's cache, which implements ArchiveCapableCache.
func (a *ArchiveManagerAdapter) GetArchiveCache(ctx context.Context, scope string) (ArchiveCapableCache, error) {
	h, err := a.manager.Get(ctx, scope)
	if err != nil {
		return nil, err
	}
	return h.Cache, nil
}

// NewArchiveCoordinator creates a coordinator for multi-scope event export.
func NewArchiveCoordinator(
	manager ArchiveScopeEnumerator,
	uploader archive.Uploader,
	interval time.Duration,
	batchSize int,
) *ArchiveCoordinator {
	return &ArchiveCoordinator{
		manager:   manager,
		uploader:  uploader,
		interval:  interval,
		batchSize: batchSize,
	}
}

// archiveOutcome classifies one scope's export result.
type archiveOutcome int

const (
	archiveSucceeded archiveOutcome = iota
	archiveSkipped
	archiveFailed
)

// Run starts the archive coordinator loop. It blocks until ctx is cancelled.
//
// Unlike RefreshCoordinator which runs immediately on start, this coordinator
// waits for the first ticker interval before exporting. A fresh process has
// few or no pending events, and with a typical 1-hour interval the delay is
// negligible.
func (c *ArchiveCoordinator) Run(ctx context.Context) {
	slog.Info("archive coordinator started",
		"component", "worker",
		"worker", "archive-coordinator",
		"interval", c.interval.String(),
		"batch_size", c.batchSize,
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("archive coordinator stopped",
				"component", "worker",
				"worker", "archive-coordinator",
				"reason", "shutdown",
			)
			return
		case <-ticker.C:
			c.archiveAllScopes(ctx)
		}
	}
}

// archiveAllScopes exports each scope's events, continuing on individual failures.
func (c *ArchiveCoordinator) archiveAllScopes(ctx context.Context) {
	scopes, err := c.manager.ListScopes(ctx)
	if err != nil {
		slog.Error("failed to list scopes for archive",
			"component", "worker",
			"worker", "archive-coordinator",
			"error", err,
		)
		return
	}

	var succeeded, skipped, failed int
	for _, info := range scopes {
		if ctx.Err() != nil {
			return // shutdown mid-cycle
		}
		switch c.archiveScope(ctx, info.Scope) {
		case archiveSucceeded:
			succeeded++
		case archiveSkipped:
			skipped++
		case archiveFailed:
			failed++
		}
	}

	// Log summary only if we processed scopes (skip during mid-cycle shutdown)
	if succeeded > 0 || skipped > 0 || failed > 0 {
		slog.Info("archive cycle completed",
			"component", "worker",
			"worker", "archive-coordinator",
			"scopes_total", len(scopes),
			"scopes_succeeded", succeeded,
			"scopes_skipped", skipped,
			"scopes_failed", failed,
		)
	}
}

// archiveScope exports one batch of pending events for a single scope.
// Events are only marked archived after the upload succeeds, so a failed
// cycle re-exports them next time.
func (c *ArchiveCoordinator) archiveScope(ctx context.Context, scope string) archiveOutcome {
	start := time.Now()

	ac, err := c.manager.GetArchiveCache(ctx, scope)
	if err != nil {
		slog.Warn("failed to get cache for archive",
			"component", "worker",
			"worker", "archive-coordinator",
			"store_scope", scope,
			"error", err,
		)
		return archiveFailed
	}

	events, err := ac.UnarchivedEvents(ctx, c.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return archiveFailed // shutting down, not a real failure
		}
		slog.Error("failed to read pending events",
			"component", "worker",
			"worker", "archive-coordinator",
			"store_scope", scope,
			"error", err,
		)
		return archiveFailed
	}
	if len(events) == 0 {
		return archiveSkipped
	}

	data, err := archive.EncodeEvents(events)
	if err != nil {
		slog.Error("failed to encode events for archive",
			"component", "worker",
			"worker", "archive-coordinator",
			"store_scope", scope,
			"error", err,
		)
		return archiveFailed
	}

	exportedAt := time.Now().UTC()
	if err := c.uploader.Upload(ctx, scope, exportedAt, data); err != nil {
		if errors.Is(err, archive.ErrNotConfigured) {
			// Local-only mode: events stay pending in the cache.
			slog.Debug("archive storage not configured, keeping events local",
				"component", "worker",
				"worker", "archive-coordinator",
				"store_scope", scope,
				"events_pending", len(events),
			)
			return archiveSkipped
		}
		if ctx.Err() != nil {
			return archiveFailed
		}
		slog.Error("failed to upload event archive",
			"component", "worker",
			"worker", "archive-coordinator",
			"store_scope", scope,
			"error", err,
		)
		return archiveFailed
	}

	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	if err := ac.MarkArchived(ctx, ids, exportedAt); err != nil {
		// The batch was uploaded; next cycle re-exports it under a new key.
		slog.Error("uploaded events but failed to mark them archived",
			"component", "worker",
			"worker", "archive-coordinator",
			"store_scope", scope,
			"error", err,
		)
		return archiveFailed
	}

	slog.Info("events archived for scope",
		"component", "worker",
		"worker", "archive-coordinator",
		"store_scope", scope,
		"events_exported", len(events),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return archiveSucceeded
}
