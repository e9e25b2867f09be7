// Package notify delivers achievement announcements. Delivery is
// best-effort: the engine records the achievement before notifying and
// swallows delivery failures, so backends only need to report errors, not
// retry.
package notify

import "context"

// Notification is a user-facing achievement announcement.
type Notification struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound bool   `json:"sound"`
	Tag   string `json:"tag"`
}

// Backend delivers notifications through one channel (webhook, email, ...).
type Backend interface {
	// Name returns the backend name used in configuration.
	Name() string

	// Send delivers the notification. Errors are logged by the caller and
	// never block the achievement from being recorded.
	Send(ctx context.Context, n Notification) error
}
