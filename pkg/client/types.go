// Package client is a typed Go client for the Quota goal engine API, for
// POS front-ends and integration tests.
package client

import (
	"encoding/json"
	"time"
)

// Config configures a Client.
type Config struct {
	BaseURL string        // Quota service URL
	APIKey  string        // Bearer token for the authenticated API
	Timeout time.Duration // HTTP timeout (default: 30 seconds)
}

// Goal is a sales target for a single period.
type Goal struct {
	ID           string     `json:"id"`
	Track        string     `json:"track"`
	TargetAmount float64    `json:"target_amount"`
	PeriodStart  *time.Time `json:"period_start,omitempty"`
	PeriodEnd    *time.Time `json:"period_end,omitempty"`
	StoreScope   string     `json:"store_scope"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CreateGoalParams is the input for CreateGoal. Absent period bounds default
// server-side to the track's current period window.
type CreateGoalParams struct {
	Track        string     `json:"track"`
	TargetAmount float64    `json:"target_amount"`
	PeriodStart  *time.Time `json:"period_start,omitempty"`
	PeriodEnd    *time.Time `json:"period_end,omitempty"`
}

// Progress pairs a goal with its latest sales measurement.
type Progress struct {
	Goal          *Goal   `json:"goal"`
	CurrentAmount float64 `json:"current_amount"`
	Percentage    float64 `json:"percentage"`
	Achieved      bool    `json:"achieved"`
	TimeRemaining int     `json:"time_remaining"`
}

// Celebration records a goal achievement.
type Celebration struct {
	ID           string    `json:"id"`
	Track        string    `json:"track"`
	Label        string    `json:"label"`
	TargetAmount float64   `json:"target_amount"`
	ActualAmount float64   `json:"actual_amount"`
	AchievedAt   time.Time `json:"achieved_at"`
}

// Snapshot is the engine state for one store scope.
type Snapshot struct {
	DailyGoal       *Goal        `json:"daily_goal,omitempty"`
	MonthlyGoal     *Goal        `json:"monthly_goal,omitempty"`
	DailyProgress   *Progress    `json:"daily_progress,omitempty"`
	MonthlyProgress *Progress    `json:"monthly_progress,omitempty"`
	LastCelebration *Celebration `json:"last_celebration,omitempty"`
	Loading         bool         `json:"loading"`
	Error           string       `json:"error,omitempty"`
}

// AuditEvent is one entry from a scope's audit trail.
type AuditEvent struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Detail     json.RawMessage `json:"detail"`
	CreatedAt  time.Time       `json:"created_at"`
	ArchivedAt *time.Time      `json:"archived_at,omitempty"`
}

// StoreInfo describes one provisioned store scope.
type StoreInfo struct {
	Scope        string    `json:"scope"`
	Created      time.Time `json:"created"`
	LastAccessed time.Time `json:"last_accessed"`
	Description  string    `json:"description,omitempty"`
	SizeBytes    int64     `json:"size_bytes"`
}

// Health is the service health summary.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Scopes  int    `json:"scopes"`
}
