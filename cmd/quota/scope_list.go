package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tillworks/quota/internal/stores"
)

var scopeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all store scopes",
	Args:  cobra.NoArgs,
	RunE:  runScopeList,
}

func runScopeList(cmd *cobra.Command, args []string) error {
	mgr, err := resolveManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	infos, err := mgr.List(context.Background())
	if err != nil {
		return fmt.Errorf("list scopes: %w", err)
	}
	slices.SortFunc(infos, func(a, b stores.Info) int {
		return strings.Compare(a.Scope, b.Scope)
	})

	out := cmd.OutOrStdout()

	if scopeJSONOutput {
		if infos == nil {
			infos = []stores.Info{}
		}
		return writeJSON(out, map[string]any{
			"scopes": infos,
			"total":  len(infos),
		})
	}

	if len(infos) == 0 {
		fmt.Fprintln(out, "No scopes found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCOPE\tSIZE\tCREATED\tDESCRIPTION")
	for _, s := range infos {
		desc := s.Description
		if desc == "" {
			desc = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			s.Scope, formatSize(s.SizeBytes), s.Created.Format("2006-01-02 15:04"), desc)
	}
	return w.Flush()
}
