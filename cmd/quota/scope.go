package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tillworks/quota/internal/config"
	"github.com/tillworks/quota/internal/goal"
	"github.com/tillworks/quota/internal/remote"
	"github.com/tillworks/quota/internal/stores"
)

var (
	scopeRootOverride string
	scopeJSONOutput   bool
)

var scopeCmd = &cobra.Command{
	Use:   "scope",
	Short: "Manage store scopes",
	Long:  "Create, list, inspect, and delete store scopes directly on disk, without a running server.",
}

func init() {
	scopeCmd.PersistentFlags().StringVar(&scopeRootOverride, "root", "",
		"Scope root path (overrides config and QUOTA_STORES_ROOT)")
	scopeCmd.PersistentFlags().BoolVar(&scopeJSONOutput, "json", false,
		"Output in JSON format")

	scopeCmd.AddCommand(scopeCreateCmd)
	scopeCmd.AddCommand(scopeListCmd)
	scopeCmd.AddCommand(scopeInfoCmd)
	scopeCmd.AddCommand(scopeDeleteCmd)

	rootCmd.AddCommand(scopeCmd)
}

// offlineUpstream satisfies the engine's collaborator interfaces for
// commands that only touch scope directories. Scope management needs no
// platform credentials; anything that tries to reconcile offline gets an
// unavailability error.
type offlineUpstream struct{}

func (offlineUpstream) ListGoals(ctx context.Context, storeScope string, activeOnly bool) ([]goal.Goal, error) {
	return nil, remote.ErrUnavailable
}

func (offlineUpstream) CreateGoal(ctx context.Context, input goal.NewGoal) (*goal.Goal, error) {
	return nil, remote.ErrUnavailable
}

func (offlineUpstream) Totals(ctx context.Context, storeScope string, window remote.MetricsWindow) (float64, error) {
	return 0, remote.ErrUnavailable
}

// resolveManager creates a Manager from config with optional --root override.
func resolveManager() (*stores.Manager, error) {
	rootPath := scopeRootOverride
	if rootPath == "" {
		storesCfg, err := config.LoadStoresConfig()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		rootPath = storesCfg.RootPath
	}

	return stores.NewManager(stores.Config{
		RootPath: rootPath,
		Goals:    offlineUpstream{},
		Metrics:  offlineUpstream{},
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatSize renders a byte count with a binary unit suffix.
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
