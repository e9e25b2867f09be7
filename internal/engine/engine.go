// Package engine implements the goal reconciliation engine. One Engine
// instance per store scope owns the in-memory state for the daily and
// monthly goal tracks, resolves goals against the upstream store with a
// local cache fallback, computes progress from sales totals, and fires at
// most one achievement celebration per track per period.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tillworks/quota/internal/cache"
	"github.com/tillworks/quota/internal/goal"
	"github.com/tillworks/quota/internal/notify"
	"github.com/tillworks/quota/internal/remote"
)

// GoalStore is the upstream system of record for goals.
type GoalStore interface {
	ListGoals(ctx context.Context, storeScope string, activeOnly bool) ([]goal.Goal, error)
	CreateGoal(ctx context.Context, input goal.NewGoal) (*goal.Goal, error)
}

// MetricsSource supplies aggregate sales totals per window.
type MetricsSource interface {
	Totals(ctx context.Context, storeScope string, window remote.MetricsWindow) (float64, error)
}

// Cache is the durable per-scope store used for goal fallback reads,
// achievement markers, and the audit trail.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	AppendEvent(ctx context.Context, kind string, detail any) (*cache.AuditEvent, error)
}

// Notifier delivers achievement announcements. Delivery is best-effort;
// the engine logs and swallows failures.
type Notifier interface {
	Send(ctx context.Context, n notify.Notification) error
}

var (
	_ GoalStore     = (*remote.Client)(nil)
	_ MetricsSource = (*remote.Client)(nil)
	_ Cache         = (*cache.SQLiteCache)(nil)
)

// Config wires an Engine's collaborators.
type Config struct {
	// StoreScope identifies the owning store. An engine without a scope
	// refuses every operation with ErrNotAuthenticated.
	StoreScope string

	Goals   GoalStore
	Metrics MetricsSource
	Cache   Cache

	// Notifier may be nil, which disables achievement notifications.
	Notifier Notifier

	// Now overrides the engine clock, for tests. Defaults to time.Now.
	// All period windows are derived from the returned instant's location.
	Now func() time.Time
}

// Engine owns the goal state for one store scope.
type Engine struct {
	scope    string
	goals    GoalStore
	metrics  MetricsSource
	cache    Cache
	notifier Notifier
	now      func() time.Time

	// busy serializes reconciliation cycles; an overlapping trigger is a
	// no-op returning ErrBusy.
	busy atomic.Bool

	mu              sync.RWMutex
	closed          bool
	loading         bool
	lastErr         string
	daily           *goal.Goal
	monthly         *goal.Goal
	dailyPin        *goal.Goal
	monthlyPin      *goal.Goal
	dailyProgress   *goal.Progress
	monthlyProgress *goal.Progress
	lastCelebration *goal.Celebration
}

// New creates a goal engine for one store scope.
func New(cfg Config) (*Engine, error) {
	if cfg.Goals == nil {
		return nil, errors.New("Goals is required")
	}
	if cfg.Metrics == nil {
		return nil, errors.New("Metrics is required")
	}
	if cfg.Cache == nil {
		return nil, errors.New("Cache is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Engine{
		scope:    cfg.StoreScope,
		goals:    cfg.Goals,
		metrics:  cfg.Metrics,
		cache:    cfg.Cache,
		notifier: cfg.Notifier,
		now:      cfg.Now,
	}, nil
}

// Snapshot is a point-in-time copy of the engine's visible state.
type Snapshot struct {
	DailyGoal       *goal.Goal        `json:"daily_goal,omitempty"`
	MonthlyGoal     *goal.Goal        `json:"monthly_goal,omitempty"`
	DailyProgress   *goal.Progress    `json:"daily_progress,omitempty"`
	MonthlyProgress *goal.Progress    `json:"monthly_progress,omitempty"`
	LastCelebration *goal.Celebration `json:"last_celebration,omitempty"`
	Loading         bool              `json:"loading"`
	Error           string            `json:"error,omitempty"`
}

// Snapshot returns a copy of the engine's current state. It is always
// available, even on a closed engine.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := Snapshot{
		Loading: e.loading,
		Error:   e.lastErr,
	}
	if e.daily != nil {
		g := *e.daily
		snap.DailyGoal = &g
	}
	if e.monthly != nil {
		g := *e.monthly
		snap.MonthlyGoal = &g
	}
	if e.dailyProgress != nil {
		p := *e.dailyProgress
		snap.DailyProgress = &p
	}
	if e.monthlyProgress != nil {
		p := *e.monthlyProgress
		snap.MonthlyProgress = &p
	}
	if e.lastCelebration != nil {
		c := *e.lastCelebration
		snap.LastCelebration = &c
	}
	return snap
}

// SetDailyGoal applies g as an explicit daily override. The override pins
// the track: reconciliation keeps the pinned goal until its period no
// longer contains the current instant, or the upstream listing returns a
// goal with the same id.
func (e *Engine) SetDailyGoal(ctx context.Context, g goal.Goal) error {
	return e.setGoal(ctx, goal.TrackDaily, g)
}

// SetMonthlyGoal applies g as an explicit monthly override. See SetDailyGoal
// for the pinning rules.
func (e *Engine) SetMonthlyGoal(ctx context.Context, g goal.Goal) error {
	return e.setGoal(ctx, goal.TrackMonthly, g)
}

func (e *Engine) setGoal(ctx context.Context, track goal.Track, g goal.Goal) error {
	if err := e.ready(); err != nil {
		return err
	}
	if g.Track != track {
		return fmt.Errorf("goal track %q does not match %q", g.Track, track)
	}

	e.writeThrough(ctx, track, &g)

	now := e.now()
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	var prev *goal.Progress
	if track == goal.TrackDaily {
		prev = e.dailyProgress
		e.daily = &g
		e.dailyPin = &g
	} else {
		prev = e.monthlyProgress
		e.monthly = &g
		e.monthlyPin = &g
	}
	// Carry the last measured total forward against the new target; the
	// next progress refresh replaces it.
	var next *goal.Progress
	if prev != nil {
		next = goal.NewProgress(&g, prev.CurrentAmount, now)
	}
	if track == goal.TrackDaily {
		e.dailyProgress = next
	} else {
		e.monthlyProgress = next
	}
	e.mu.Unlock()

	e.appendEvent(ctx, cache.EventOverride, map[string]any{
		"goal":   g.ID,
		"track":  string(track),
		"target": g.TargetAmount,
	})
	slog.Info("goal override applied",
		"component", "engine",
		"store_scope", e.scope,
		"track", string(track),
		"goal", g.ID,
		"target", g.TargetAmount,
	)
	return nil
}

// ClearLastCelebration dismisses the pending celebration, if any.
func (e *Engine) ClearLastCelebration() error {
	if err := e.ready(); err != nil {
		return err
	}

	e.mu.Lock()
	e.lastCelebration = nil
	e.mu.Unlock()
	return nil
}

// Close tears the engine down. In-flight cycles may finish their network
// calls but their results are not applied. Close does not close the
// injected cache; its owner does. Safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	return nil
}

func (e *Engine) ready() error {
	if e.scope == "" {
		return ErrNotAuthenticated
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

func (e *Engine) setLoading(v bool) {
	e.mu.Lock()
	e.loading = v
	e.mu.Unlock()
}

func (e *Engine) appendEvent(ctx context.Context, kind string, detail any) {
	if _, err := e.cache.AppendEvent(ctx, kind, detail); err != nil {
		slog.Warn("audit event append failed",
			"component", "engine",
			"store_scope", e.scope,
			"kind", kind,
			"error", err,
		)
	}
}

// Cache keys are engine-owned; one entry per track for the goal fallback
// and one per track for the achievement marker.
func goalKey(track goal.Track) string {
	return "goal:" + string(track)
}

func celebratedKey(track goal.Track) string {
	return "celebrated:" + string(track)
}

func goalID(g *goal.Goal) string {
	if g == nil {
		return ""
	}
	return g.ID
}
