package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tillworks/quota/internal/cache"
	"github.com/tillworks/quota/internal/goal"
	"github.com/tillworks/quota/internal/notify"
)

// CheckAchievements evaluates both tracks and fires at most one celebration
// per track per period. The persisted marker, not in-memory state, decides
// whether a period was already celebrated, so detection is idempotent
// across restarts.
func (e *Engine) CheckAchievements(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.evaluateAchievements(ctx)
}

func (e *Engine) evaluateAchievements(ctx context.Context) error {
	now := e.now()

	e.mu.RLock()
	dailyProgress, monthlyProgress := e.dailyProgress, e.monthlyProgress
	e.mu.RUnlock()

	// Daily first, so a same-cycle double achievement celebrates the
	// narrower period before the wider one.
	if err := e.evaluateTrack(ctx, goal.TrackDaily, dailyProgress, now); err != nil {
		return err
	}
	return e.evaluateTrack(ctx, goal.TrackMonthly, monthlyProgress, now)
}

func (e *Engine) evaluateTrack(ctx context.Context, track goal.Track, p *goal.Progress, now time.Time) error {
	if p == nil || !p.Achieved {
		return nil
	}

	key := goal.PeriodKey(track, now)
	marker, err := e.cache.Get(ctx, celebratedKey(track))
	if err == nil && marker == key {
		return nil
	}
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		// An unreadable marker could mean this period was already
		// celebrated; skip rather than risk a duplicate.
		slog.Warn("celebration marker read failed, skipping evaluation",
			"component", "engine",
			"store_scope", e.scope,
			"track", string(track),
			"error", err,
		)
		return nil
	}

	// The marker is persisted before anything user-visible happens: a
	// crash or failed notification never produces a second celebration.
	if err := e.cache.Set(ctx, celebratedKey(track), key); err != nil {
		slog.Warn("celebration marker write failed, deferring celebration",
			"component", "engine",
			"store_scope", e.scope,
			"track", string(track),
			"error", err,
		)
		return nil
	}

	celebration := &goal.Celebration{
		ID:           ulid.Make().String(),
		Track:        track,
		Label:        track.Label(),
		TargetAmount: p.Goal.TargetAmount,
		ActualAmount: p.CurrentAmount,
		AchievedAt:   now,
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.lastCelebration = celebration
	e.mu.Unlock()

	slog.Info("goal achieved",
		"component", "engine",
		"store_scope", e.scope,
		"track", string(track),
		"target", p.Goal.TargetAmount,
		"actual", p.CurrentAmount,
	)
	e.appendEvent(ctx, cache.EventCelebration, map[string]any{
		"goal":       p.Goal.ID,
		"track":      string(track),
		"target":     p.Goal.TargetAmount,
		"actual":     p.CurrentAmount,
		"period_key": key,
	})
	e.sendNotification(ctx, celebration, key)
	return nil
}

// sendNotification announces a celebration. Best-effort: failures are
// logged and swallowed, the achievement stands regardless of delivery.
func (e *Engine) sendNotification(ctx context.Context, c *goal.Celebration, periodKey string) {
	if e.notifier == nil {
		return
	}

	title := "Daily goal achieved"
	if c.Track == goal.TrackMonthly {
		title = "Monthly goal achieved"
	}
	n := notify.Notification{
		ID:    c.ID,
		Title: title,
		Body:  fmt.Sprintf("You reached your %s: %.2f of %.2f", c.Label, c.ActualAmount, c.TargetAmount),
		Sound: true,
		Tag:   fmt.Sprintf("goal-%s-%s", c.Track, periodKey),
	}
	if err := e.notifier.Send(ctx, n); err != nil {
		slog.Warn("achievement notification failed",
			"component", "engine",
			"store_scope", e.scope,
			"track", string(c.Track),
			"error", err,
		)
	}
}
