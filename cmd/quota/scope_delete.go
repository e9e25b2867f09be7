package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tillworks/quota/internal/stores"
)

var deleteForce bool

var scopeDeleteCmd = &cobra.Command{
	Use:   "delete <scope>",
	Short: "Delete a scope and all its data",
	Long:  "Permanently delete a scope, its cache database, and its audit trail. Requires --force or interactive confirmation.",
	Args:  cobra.ExactArgs(1),
	RunE:  runScopeDelete,
}

func init() {
	scopeDeleteCmd.Flags().BoolVar(&deleteForce, "force", false,
		"Delete without asking for confirmation")
}

// confirmDelete prompts on stderr and requires the scope name typed back.
func confirmDelete(cmd *cobra.Command, scope string) (bool, error) {
	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "WARNING: This will permanently delete scope %q and all its data.\n", scope)
	fmt.Fprint(errOut, "Type the scope name to confirm: ")

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	return strings.TrimSpace(line) == scope, nil
}

func runScopeDelete(cmd *cobra.Command, args []string) error {
	scope := args[0]

	if err := stores.ValidateScope(scope); err != nil {
		return err
	}

	mgr, err := resolveManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	if !deleteForce {
		ok, err := confirmDelete(cmd, scope)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.ErrOrStderr(), "Aborted. Scope name did not match.")
			return nil
		}
	}

	if err := mgr.Delete(context.Background(), scope); err != nil {
		return err
	}

	if scopeJSONOutput {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"scope":   scope,
			"deleted": true,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted scope %q\n", scope)
	return nil
}
