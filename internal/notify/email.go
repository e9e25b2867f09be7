package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v2"
)

// Email delivers notifications via Resend. In development, or when no API
// key is configured, the client stays nil and sends are logged instead.
type Email struct {
	client *resend.Client
	from   string
	to     []string
	isDev  bool
}

// NewEmail creates an email backend. The Resend client is only constructed
// when an API key is present and we are not in dev mode.
func NewEmail(apiKey, from string, to []string, isDev bool) *Email {
	var client *resend.Client
	if apiKey != "" && !isDev {
		client = resend.NewClient(apiKey)
	}

	return &Email{
		client: client,
		from:   from,
		to:     to,
		isDev:  isDev,
	}
}

// Name returns "email".
func (e *Email) Name() string {
	return "email"
}

// Send emails the notification title and body to the configured recipients.
func (e *Email) Send(ctx context.Context, n Notification) error {
	if e.isDev {
		slog.Info("notification sent (dev mode)",
			"component", "notify",
			"backend", "email",
			"to", strings.Join(e.to, ","),
			"title", n.Title,
		)
		return nil
	}

	if e.client == nil {
		return fmt.Errorf("email backend not configured (missing api key)")
	}
	if len(e.to) == 0 {
		return fmt.Errorf("email backend has no recipients configured")
	}

	params := &resend.SendEmailRequest{
		From:    e.from,
		To:      e.to,
		Subject: n.Title,
		Text:    n.Body,
	}

	_, err := e.client.Emails.SendWithContext(ctx, params)
	if err == nil {
		slog.Info("notification sent",
			"component", "notify",
			"backend", "email",
			"tag", n.Tag,
		)
	}
	return err
}

var _ Backend = (*Email)(nil)
