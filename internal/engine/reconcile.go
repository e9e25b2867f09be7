package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/tillworks/quota/internal/cache"
	"github.com/tillworks/quota/internal/goal"
	"github.com/tillworks/quota/internal/remote"
)

// LoadGoals runs one full cycle: reconcile goals, refresh progress, and
// evaluate achievements. Remote failures degrade to the cache fallback and
// surface on the snapshot's error field rather than as a return value; only
// ErrBusy, ErrClosed, and ErrNotAuthenticated are returned.
func (e *Engine) LoadGoals(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.busy.CompareAndSwap(false, true) {
		slog.Debug("reconciliation already in flight, skipping",
			"component", "engine",
			"store_scope", e.scope,
		)
		return ErrBusy
	}
	defer e.busy.Store(false)

	e.setLoading(true)
	defer e.setLoading(false)

	if err := e.reconcile(ctx); err != nil {
		return err
	}
	if err := e.computeProgress(ctx); err != nil {
		return err
	}
	return e.evaluateAchievements(ctx)
}

// reconcile resolves the current daily and monthly goal for the scope:
// upstream listing with cache fallback on failure, window selection,
// monthly carry-over on the first of the month, daily derivation from the
// monthly target, write-through, then state apply.
func (e *Engine) reconcile(ctx context.Context) error {
	start := time.Now()
	now := e.now()

	e.mu.RLock()
	dailyPin, monthlyPin := e.dailyPin, e.monthlyPin
	e.mu.RUnlock()

	candidates, listErr := e.candidateGoals(ctx)
	fromRemote := listErr == nil

	dayStart, dayEnd := goal.DayWindow(now)
	monthStart, monthEnd := goal.MonthWindow(now)
	daily := selectGoal(candidates, goal.TrackDaily, dayStart, dayEnd)
	monthly := selectGoal(candidates, goal.TrackMonthly, monthStart, monthEnd)

	// Explicit overrides win over re-resolution for the period they name.
	daily, dailyPin = resolvePin(dailyPin, daily, candidates, fromRemote, now)
	monthly, monthlyPin = resolvePin(monthlyPin, monthly, candidates, fromRemote, now)

	// A daily goal is never created from nothing; an absent one stays
	// absent until a user sets it or a monthly goal exists to derive from.
	if monthly == nil && now.Day() == 1 {
		monthly = e.carryOverMonthly(ctx, candidates, now)
	}
	if daily == nil && monthly != nil {
		daily = e.deriveDaily(ctx, monthly, now)
	}

	e.writeThrough(ctx, goal.TrackDaily, daily)
	e.writeThrough(ctx, goal.TrackMonthly, monthly)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.daily, e.monthly = daily, monthly
	e.dailyPin, e.monthlyPin = dailyPin, monthlyPin
	if listErr != nil && daily == nil && monthly == nil {
		e.lastErr = "unable to load goals"
	} else {
		e.lastErr = ""
	}
	e.mu.Unlock()

	e.appendEvent(ctx, cache.EventReconcile, map[string]any{
		"daily_goal":   goalID(daily),
		"monthly_goal": goalID(monthly),
		"fallback":     !fromRemote,
	})
	slog.Debug("reconciliation complete",
		"component", "engine",
		"store_scope", e.scope,
		"daily_goal", goalID(daily),
		"monthly_goal", goalID(monthly),
		"fallback", !fromRemote,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// candidateGoals lists active goals upstream. Only on failure does it fall
// back to the cached per-track entries; an empty successful listing means
// the upstream genuinely has no goals.
func (e *Engine) candidateGoals(ctx context.Context) ([]goal.Goal, error) {
	goals, err := e.goals.ListGoals(ctx, e.scope, true)
	if err == nil {
		return goals, nil
	}

	level := slog.LevelWarn
	if errors.Is(err, remote.ErrUnauthorized) {
		level = slog.LevelError
	}
	slog.Log(ctx, level, "goal listing failed, falling back to cache",
		"component", "engine",
		"store_scope", e.scope,
		"error", err,
	)

	var cached []goal.Goal
	for _, track := range []goal.Track{goal.TrackDaily, goal.TrackMonthly} {
		if g := e.cachedGoal(ctx, track); g != nil {
			cached = append(cached, *g)
		}
	}
	return cached, err
}

func (e *Engine) cachedGoal(ctx context.Context, track goal.Track) *goal.Goal {
	raw, err := e.cache.Get(ctx, goalKey(track))
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			slog.Warn("cache read failed",
				"component", "engine",
				"store_scope", e.scope,
				"track", string(track),
				"error", err,
			)
		}
		return nil
	}

	var g goal.Goal
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		slog.Warn("malformed cached goal, treating as miss",
			"component", "engine",
			"store_scope", e.scope,
			"track", string(track),
			"error", err,
		)
		return nil
	}
	return &g
}

// carryOverMonthly looks for a monthly goal covering the previous calendar
// month and recreates it upstream for the current month's full window.
// Returns nil when there is nothing to carry or the create fails.
func (e *Engine) carryOverMonthly(ctx context.Context, candidates []goal.Goal, now time.Time) *goal.Goal {
	prevStart, prevEnd := goal.PrevMonthWindow(now)
	var prev *goal.Goal
	for i := range candidates {
		c := &candidates[i]
		if c.Track == goal.TrackMonthly && c.Active && c.Overlaps(prevStart, prevEnd) {
			prev = c
			break
		}
	}
	if prev == nil {
		return nil
	}

	monthStart, monthEnd := goal.MonthWindow(now)
	created, err := e.goals.CreateGoal(ctx, goal.NewGoal{
		Track:        goal.TrackMonthly,
		TargetAmount: prev.TargetAmount,
		PeriodStart:  &monthStart,
		PeriodEnd:    &monthEnd,
		StoreScope:   e.scope,
	})
	if err != nil {
		slog.Warn("monthly carry-over failed",
			"component", "engine",
			"store_scope", e.scope,
			"error", err,
		)
		return nil
	}

	slog.Info("carried monthly goal over",
		"component", "engine",
		"store_scope", e.scope,
		"from_goal", prev.ID,
		"goal", created.ID,
		"target", created.TargetAmount,
	)
	e.appendEvent(ctx, cache.EventCarryOver, map[string]any{
		"from_goal": prev.ID,
		"goal":      created.ID,
		"target":    created.TargetAmount,
	})
	return created
}

// deriveDaily creates today's daily goal upstream by spreading the monthly
// target over the days remaining in the month. Returns nil when the create
// fails; the track stays unresolved for the cycle.
func (e *Engine) deriveDaily(ctx context.Context, monthly *goal.Goal, now time.Time) *goal.Goal {
	target := goal.DailyTargetFromMonthly(monthly.TargetAmount, now)
	dayStart, dayEnd := goal.DayWindow(now)
	created, err := e.goals.CreateGoal(ctx, goal.NewGoal{
		Track:        goal.TrackDaily,
		TargetAmount: target,
		PeriodStart:  &dayStart,
		PeriodEnd:    &dayEnd,
		StoreScope:   e.scope,
	})
	if err != nil {
		slog.Warn("daily goal derivation failed",
			"component", "engine",
			"store_scope", e.scope,
			"error", err,
		)
		return nil
	}

	slog.Info("derived daily goal from monthly target",
		"component", "engine",
		"store_scope", e.scope,
		"monthly_goal", monthly.ID,
		"goal", created.ID,
		"target", created.TargetAmount,
		"days_remaining", goal.DaysRemainingInMonth(now),
	)
	e.appendEvent(ctx, cache.EventDeriveDaily, map[string]any{
		"monthly_goal":   monthly.ID,
		"goal":           created.ID,
		"target":         created.TargetAmount,
		"days_remaining": goal.DaysRemainingInMonth(now),
	})
	return created
}

// writeThrough backs a resolved goal up to the cache under its track key.
// Unresolved tracks leave the cache untouched. Write failures are logged;
// the cache is a fallback, never a source of truth.
func (e *Engine) writeThrough(ctx context.Context, track goal.Track, g *goal.Goal) {
	if g == nil {
		return
	}

	data, err := json.Marshal(g)
	if err != nil {
		slog.Warn("goal cache encode failed",
			"component", "engine",
			"store_scope", e.scope,
			"track", string(track),
			"error", err,
		)
		return
	}
	if err := e.cache.Set(ctx, goalKey(track), string(data)); err != nil {
		slog.Warn("goal cache write failed",
			"component", "engine",
			"store_scope", e.scope,
			"track", string(track),
			"error", err,
		)
	}
}

// selectGoal picks the first active candidate of the track whose period
// overlaps the window.
func selectGoal(candidates []goal.Goal, track goal.Track, windowStart, windowEnd time.Time) *goal.Goal {
	for i := range candidates {
		c := &candidates[i]
		if c.Track != track || !c.Active {
			continue
		}
		if c.Overlaps(windowStart, windowEnd) {
			out := *c
			return &out
		}
	}
	return nil
}

// resolvePin decides between a pinned override and the freshly selected
// goal. The pin expires when its period no longer contains now, or when the
// upstream listing itself carries the pinned goal.
func resolvePin(pin, selected *goal.Goal, candidates []goal.Goal, fromRemote bool, now time.Time) (*goal.Goal, *goal.Goal) {
	if pin == nil {
		return selected, nil
	}
	if !pin.Contains(now) {
		return selected, nil
	}
	if fromRemote {
		for i := range candidates {
			if candidates[i].ID == pin.ID {
				return selected, nil
			}
		}
	}
	return pin, pin
}
