package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var scopeInfoCmd = &cobra.Command{
	Use:   "info <scope>",
	Short: "Show detailed information about a scope",
	Args:  cobra.ExactArgs(1),
	RunE:  runScopeInfo,
}

func runScopeInfo(cmd *cobra.Command, args []string) error {
	scope := args[0]

	mgr, err := resolveManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	handle, err := mgr.Get(context.Background(), scope)
	if err != nil {
		return err
	}

	var sizeBytes int64
	if fi, statErr := os.Stat(filepath.Join(handle.BasePath, "cache.db")); statErr == nil {
		sizeBytes = fi.Size()
	}

	out := cmd.OutOrStdout()

	if scopeJSONOutput {
		return writeJSON(out, map[string]any{
			"scope":         handle.Scope,
			"description":   handle.Meta.Description,
			"created":       handle.Meta.Created,
			"last_accessed": handle.Meta.LastAccessed,
			"size_bytes":    sizeBytes,
			"path":          handle.BasePath,
		})
	}

	const stamp = "2006-01-02 15:04:05 MST"
	rows := [][2]string{{"Scope", handle.Scope}}
	if handle.Meta.Description != "" {
		rows = append(rows, [2]string{"Description", handle.Meta.Description})
	}
	rows = append(rows,
		[2]string{"Created", handle.Meta.Created.Format(stamp)},
		[2]string{"Last Accessed", handle.Meta.LastAccessed.Format(stamp)},
		[2]string{"Size", formatSize(sizeBytes)},
		[2]string{"Path", handle.BasePath},
	)
	for _, row := range rows {
		fmt.Fprintf(out, "%-15s%s\n", row[0]+":", row[1])
	}

	return nil
}
