package goal

import (
	"time"
)

// Track represents the cadence a goal applies to
type Track string

const (
	TrackDaily   Track = "daily"
	TrackMonthly Track = "monthly"
)

// Valid reports whether t is a known track.
func (t Track) Valid() bool {
	return t == TrackDaily || t == TrackMonthly
}

// Label returns the user-facing name for the track's goal.
func (t Track) Label() string {
	if t == TrackDaily {
		return "daily sales goal"
	}
	return "monthly sales goal"
}

// Goal represents a sales target for a single period.
// Goals are immutable once created; a change is a new Goal superseding
// the old one by period.
type Goal struct {
	ID           string     `json:"id"`
	Track        Track      `json:"track"`
	TargetAmount float64    `json:"target_amount"`
	PeriodStart  *time.Time `json:"period_start,omitempty"`
	PeriodEnd    *time.Time `json:"period_end,omitempty"`
	StoreScope   string     `json:"store_scope"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewGoal is the input type for creating goals (without server-assigned fields).
type NewGoal struct {
	Track        Track      `json:"track"`
	TargetAmount float64    `json:"target_amount"`
	PeriodStart  *time.Time `json:"period_start,omitempty"`
	PeriodEnd    *time.Time `json:"period_end,omitempty"`
	StoreScope   string     `json:"store_scope"`
}

// Overlaps reports whether the goal's period intersects [windowStart, windowEnd].
// A goal missing either bound is unconditionally valid (legacy/manual entries).
func (g *Goal) Overlaps(windowStart, windowEnd time.Time) bool {
	if g.PeriodStart == nil || g.PeriodEnd == nil {
		return true
	}
	return !g.PeriodStart.After(windowEnd) && !g.PeriodEnd.Before(windowStart)
}

// Contains reports whether t falls inside the goal's period. A goal missing
// either bound contains every instant.
func (g *Goal) Contains(t time.Time) bool {
	if g.PeriodStart == nil || g.PeriodEnd == nil {
		return true
	}
	return !t.Before(*g.PeriodStart) && !t.After(*g.PeriodEnd)
}

// Progress pairs a goal with the latest sales measurement for its window.
// Derived each cycle, never persisted.
type Progress struct {
	Goal          *Goal   `json:"goal"`
	CurrentAmount float64 `json:"current_amount"`
	Percentage    float64 `json:"percentage"`
	Achieved      bool    `json:"achieved"`
	TimeRemaining int     `json:"time_remaining"`
}

// NewProgress computes progress for a goal given the current sales total.
// Percentage is clamped to [0, 999]. A zero-target goal is never achieved
// and reports 0%. TimeRemaining is hours left for daily goals and days left
// for monthly goals, floored at 0; a goal without period bounds falls back
// to the track's current window.
func NewProgress(g *Goal, current float64, now time.Time) *Progress {
	var pct float64
	if g.TargetAmount > 0 {
		pct = current / g.TargetAmount * 100
		if pct < 0 {
			pct = 0
		}
		if pct > 999 {
			pct = 999
		}
	}

	end := periodEndOrWindow(g, now)
	var remaining int
	if g.Track == TrackDaily {
		remaining = hoursRemaining(now, end)
	} else {
		remaining = daysRemaining(now, end)
	}

	return &Progress{
		Goal:          g,
		CurrentAmount: current,
		Percentage:    pct,
		Achieved:      g.TargetAmount > 0 && current >= g.TargetAmount,
		TimeRemaining: remaining,
	}
}

// Reset returns a zero-state copy of the progress: no sales, not achieved.
// Used by the rollover guard when a stale day's progress must be cleared.
func (p *Progress) Reset(now time.Time) *Progress {
	return NewProgress(p.Goal, 0, now)
}

// Celebration records a single achievement event. Held in memory until the
// consumer clears it; the persisted achievement marker, not this record, is
// what prevents duplicate celebrations.
type Celebration struct {
	ID           string    `json:"id"`
	Track        Track     `json:"track"`
	Label        string    `json:"label"`
	TargetAmount float64   `json:"target_amount"`
	ActualAmount float64   `json:"actual_amount"`
	AchievedAt   time.Time `json:"achieved_at"`
}

func periodEndOrWindow(g *Goal, now time.Time) time.Time {
	if g.PeriodEnd != nil {
		return *g.PeriodEnd
	}
	if g.Track == TrackDaily {
		_, end := DayWindow(now)
		return end
	}
	_, end := MonthWindow(now)
	return end
}
