package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tillworks/quota/internal/api"
	"github.com/tillworks/quota/internal/archive"
	"github.com/tillworks/quota/internal/config"
	"github.com/tillworks/quota/internal/logging"
	"github.com/tillworks/quota/internal/remote"
	"github.com/tillworks/quota/internal/stores"
	"github.com/tillworks/quota/internal/worker"
)

// Version is stamped by the release build through -X main.Version.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "quota",
	Short: "Quota - Retail Goal Engine",
	Long: `Quota keeps per-store sales goals reconciled with the retail platform
and serves them to registers, online or offline.`,
	RunE: run,
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	slog.Info("configuration loaded")

	flushLogs, err := logging.Setup(logging.Options{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		SentryDSN:   cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		Release:     Version,
	})
	if err != nil {
		return err
	}
	slog.Info("logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	upstream := remote.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.APIKey,
		time.Duration(cfg.Upstream.Timeout))
	slog.Info("upstream client initialized", "base_url", cfg.Upstream.BaseURL)

	notifier, err := resolveNotifier(cfg)
	if err != nil {
		return err
	}
	slog.Info("notifier initialized", "backend", cfg.Notify.Backend)

	manager, err := stores.NewManager(stores.Config{
		RootPath: cfg.Stores.RootPath,
		Goals:    upstream,
		Metrics:  upstream,
		Notifier: notifier,
	})
	if err != nil {
		return err
	}
	slog.Info("scope manager initialized", "root", cfg.Stores.RootPath)

	if err := bootstrapScopes(ctx, manager, cfg.Stores.Bootstrap); err != nil {
		return err
	}

	handler := api.NewHandler(manager, upstream, cfg.Server.APIKey, Version, config.DevMode())
	router := api.NewRouter(handler)
	slog.Info("router initialized")

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	uploader, err := archive.NewUploader(cfg.Archive)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	refresh := worker.NewRefreshCoordinator(
		worker.NewRefreshManagerAdapter(manager),
		time.Duration(cfg.Engine.RefreshInterval))
	startWorker(ctx, &wg, "refresh", refresh.Run)

	archiver := worker.NewArchiveCoordinator(
		worker.NewArchiveManagerAdapter(manager),
		uploader,
		time.Duration(cfg.Archive.Interval),
		cfg.Archive.BatchSize)
	startWorker(ctx, &wg, "archive", archiver.Run)

	go func() {
		slog.Info("server starting", "address", addr)
		// ListenAndServe reports ErrServerClosed after a graceful Shutdown.
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown initiated")

	drainCtx, drainCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer drainCancel()

	// Drain in-flight requests, stop workers, then release the scopes.
	if err := srv.Shutdown(drainCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	wg.Wait()
	if err := manager.Close(); err != nil {
		slog.Error("scope manager close error", "error", err)
	}

	slog.Info("shutdown complete")
	flushLogs()
	return nil
}

// bootstrapScopes provisions configured scopes that don't exist yet.
// Re-running against existing scopes is a no-op.
func bootstrapScopes(ctx context.Context, m *stores.Manager, scopes []string) error {
	for _, scope := range scopes {
		_, err := m.Create(ctx, scope, "")
		switch {
		case err == nil:
			slog.Info("scope provisioned", "store_scope", scope)
		case errors.Is(err, stores.ErrScopeAlreadyExists):
		default:
			return fmt.Errorf("bootstrap scope %q: %w", scope, err)
		}
	}
	return nil
}

// startWorker runs fn on its own goroutine until ctx is cancelled,
// tracked by wg so shutdown can wait for it.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer slog.Info("worker stopped", "worker", name)
		slog.Info("worker started", "worker", name)
		fn(ctx)
	}()
}
