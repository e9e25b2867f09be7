// Package cache provides the durable per-store fallback cache and audit
// trail backing a goal engine. It is a small SQLite-backed key-value store:
// the engine decides what the keys mean.
package cache

import (
	"encoding/json"
	"time"
)

// Audit event kinds recorded by the engine.
const (
	EventReconcile   = "reconcile"
	EventCarryOver   = "carry_over"
	EventDeriveDaily = "derive_daily"
	EventOverride    = "override"
	EventCelebration = "celebration"
)

// AuditEvent is one append-only record of an engine decision.
type AuditEvent struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Detail     json.RawMessage `json:"detail"`
	CreatedAt  time.Time       `json:"created_at"`
	ArchivedAt *time.Time      `json:"archived_at,omitempty"`
}

// MarshalJSON ensures a nil Detail marshals as {} not null.
func (e AuditEvent) MarshalJSON() ([]byte, error) {
	if e.Detail == nil {
		e.Detail = json.RawMessage("{}")
	}
	type Alias AuditEvent
	return json.Marshal(Alias(e))
}
