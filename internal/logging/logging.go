package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
)

// Options controls process-wide logger setup.
type Options struct {
	Level       string // debug, info, warn, error
	Format      string // json or text
	SentryDSN   string // empty disables Sentry
	Environment string
	Release     string
}

// Setup installs the default slog logger. With a Sentry DSN, error-level
// records additionally fan out to Sentry; the returned flush drains pending
// events and must be called on shutdown.
func Setup(opts Options) (func(), error) {
	var handler slog.Handler = baseHandler(os.Stdout, opts.Format, parseLevel(opts.Level))
	flush := func() {}

	if opts.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         opts.SentryDSN,
			Environment: opts.Environment,
			Release:     opts.Release,
		})
		if err != nil {
			return nil, fmt.Errorf("sentry init: %w", err)
		}
		handler = slogmulti.Fanout(handler, slogsentry.Option{
			Level: slog.LevelError,
		}.NewSentryHandler())
		flush = func() { sentry.Flush(2 * time.Second) }
	}

	slog.SetDefault(slog.New(handler))
	return flush, nil
}

func baseHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	if format == "text" {
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

var levelNames = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// parseLevel maps a config string to a slog level. Unknown names fall back
// to info rather than failing startup.
func parseLevel(level string) slog.Level {
	if l, ok := levelNames[level]; ok {
		return l
	}
	return slog.LevelInfo
}
