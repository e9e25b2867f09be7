package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
)

// Webhook delivers notifications as signed POST requests. Payloads are
// signed with the standard-webhooks scheme so receivers can verify origin.
type Webhook struct {
	url    string
	signer *standardwebhooks.Webhook
	client *http.Client
}

// NewWebhook creates a webhook backend posting to url, signing with secret.
func NewWebhook(url, secret string) (*Webhook, error) {
	signer, err := standardwebhooks.NewWebhookRaw([]byte(secret))
	if err != nil {
		return nil, fmt.Errorf("create webhook signer: %w", err)
	}

	return &Webhook{
		url:    url,
		signer: signer,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// Name returns "webhook".
func (w *Webhook) Name() string {
	return "webhook"
}

// Send posts the notification JSON with webhook-id, webhook-timestamp and
// webhook-signature headers. Non-2xx responses are delivery failures.
func (w *Webhook) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msgID := n.ID
	if msgID == "" {
		msgID = ulid.Make().String()
	}
	now := time.Now()

	signature, err := w.signer.Sign(msgID, now, payload)
	if err != nil {
		return fmt.Errorf("sign notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("webhook-id", msgID)
	req.Header.Set("webhook-timestamp", strconv.FormatInt(now.Unix(), 10))
	req.Header.Set("webhook-signature", signature)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

var _ Backend = (*Webhook)(nil)
