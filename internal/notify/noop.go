package notify

import (
	"context"
	"log/slog"
)

// Noop logs notifications instead of delivering them.
// Used as the default backend and in development.
type Noop struct{}

// NewNoop creates a new noop backend.
func NewNoop() *Noop {
	return &Noop{}
}

// Name returns "noop".
func (n *Noop) Name() string {
	return "noop"
}

// Send logs the notification and reports success.
func (n *Noop) Send(_ context.Context, notification Notification) error {
	slog.Info("notification sent",
		"component", "notify",
		"backend", "noop",
		"title", notification.Title,
		"tag", notification.Tag,
	)
	return nil
}

var _ Backend = (*Noop)(nil)
