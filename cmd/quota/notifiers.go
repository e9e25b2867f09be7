package main

import (
	"log/slog"

	"github.com/tillworks/quota/internal/config"
	"github.com/tillworks/quota/internal/notify"
)

// initNotifiers registers the notification backends this configuration can
// actually drive. Called once in run() before any engine is built.
func initNotifiers(cfg *config.Config) error {
	notify.SetFallback(notify.NewNoop())
	notify.Register(notify.NewNoop())

	if cfg.Notify.Webhook.URL != "" {
		wh, err := notify.NewWebhook(cfg.Notify.Webhook.URL, cfg.Notify.Webhook.Secret)
		if err != nil {
			return err
		}
		notify.Register(wh)
	}

	if cfg.Notify.Email.From != "" {
		notify.Register(notify.NewEmail(
			cfg.Notify.Email.APIKey,
			cfg.Notify.Email.From,
			cfg.Notify.Email.To,
			config.DevMode(),
		))
	}

	return nil
}

// resolveNotifier returns the backend selected by notify.backend, falling
// back to noop when the selected backend has no usable configuration.
func resolveNotifier(cfg *config.Config) (notify.Backend, error) {
	if err := initNotifiers(cfg); err != nil {
		return nil, err
	}

	backend, found := notify.Get(cfg.Notify.Backend)
	if !found {
		slog.Warn("configured notification backend not available, using noop",
			"backend", cfg.Notify.Backend,
			"registered", notify.RegisteredNames(),
		)
	}
	return backend, nil
}
