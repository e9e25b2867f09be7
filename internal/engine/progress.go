package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tillworks/quota/internal/cache"
	"github.com/tillworks/quota/internal/goal"
	"github.com/tillworks/quota/internal/remote"
)

// UpdateProgress refreshes the sales totals for both tracks and recomputes
// progress. The rollover guard runs first so a new calendar day never
// inherits the previous day's celebration state. A totals failure keeps
// that track's previous progress.
func (e *Engine) UpdateProgress(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.computeProgress(ctx)
}

// computeProgress always issues two separate totals queries, one per
// window; an aggregate fetched for one window is never reused for the
// other.
func (e *Engine) computeProgress(ctx context.Context) error {
	now := e.now()
	if err := e.rolloverGuard(ctx, now); err != nil {
		return err
	}

	e.mu.RLock()
	daily, monthly := e.daily, e.monthly
	e.mu.RUnlock()

	var (
		dailyProgress, monthlyProgress *goal.Progress
		dailyOK, monthlyOK             bool
	)
	if daily != nil {
		total, err := e.metrics.Totals(ctx, e.scope, remote.WindowToday)
		if err != nil {
			slog.Warn("today totals unavailable, keeping previous progress",
				"component", "engine",
				"store_scope", e.scope,
				"error", err,
			)
		} else {
			dailyProgress = goal.NewProgress(daily, total, now)
			dailyOK = true
		}
	}
	if monthly != nil {
		total, err := e.metrics.Totals(ctx, e.scope, remote.WindowThisMonth)
		if err != nil {
			slog.Warn("month totals unavailable, keeping previous progress",
				"component", "engine",
				"store_scope", e.scope,
				"error", err,
			)
		} else {
			monthlyProgress = goal.NewProgress(monthly, total, now)
			monthlyOK = true
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	switch {
	case daily == nil:
		e.dailyProgress = nil
	case dailyOK:
		e.dailyProgress = dailyProgress
	}
	switch {
	case monthly == nil:
		e.monthlyProgress = nil
	case monthlyOK:
		e.monthlyProgress = monthlyProgress
	}
	return nil
}

// rolloverGuard detects a calendar-day transition since the last daily
// celebration: the persisted marker no longer matches today's key. It
// clears the pending celebration, zeroes the stale daily progress, and
// removes the marker. Monthly rollover needs no guard because the month
// key stops matching on its own.
func (e *Engine) rolloverGuard(ctx context.Context, now time.Time) error {
	marker, err := e.cache.Get(ctx, celebratedKey(goal.TrackDaily))
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			slog.Warn("celebration marker read failed",
				"component", "engine",
				"store_scope", e.scope,
				"error", err,
			)
		}
		return nil
	}
	if marker == goal.DayKey(now) {
		return nil
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.lastCelebration = nil
	if e.dailyProgress != nil {
		e.dailyProgress = e.dailyProgress.Reset(now)
	}
	e.mu.Unlock()

	if err := e.cache.Remove(ctx, celebratedKey(goal.TrackDaily)); err != nil {
		slog.Warn("stale celebration marker removal failed",
			"component", "engine",
			"store_scope", e.scope,
			"error", err,
		)
	}
	slog.Info("daily period rolled over, celebration state reset",
		"component", "engine",
		"store_scope", e.scope,
		"previous_day", marker,
	)
	return nil
}
