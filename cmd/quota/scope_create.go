package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tillworks/quota/internal/stores"
	"github.com/tillworks/quota/internal/validation"
)

const maxDescriptionLength = 256

var (
	createDescription string
	createIfNotExists bool
)

var scopeCreateCmd = &cobra.Command{
	Use:   "create <scope>",
	Short: "Create a new store scope",
	Long:  "Create a new store scope with the given name. Scope names are lowercase alphanumeric with hyphens (e.g., downtown, mall-east).",
	Args:  cobra.ExactArgs(1),
	RunE:  runScopeCreate,
}

func init() {
	scopeCreateCmd.Flags().StringVar(&createDescription, "description", "",
		"Human-readable description")
	scopeCreateCmd.Flags().BoolVar(&createIfNotExists, "if-not-exists", false,
		"Exit 0 if scope already exists")
}

func runScopeCreate(cmd *cobra.Command, args []string) error {
	scope := args[0]

	if verr := validation.ValidateMaxLength("description", createDescription, maxDescriptionLength); verr != nil {
		return fmt.Errorf("%s %s", verr.Field, verr.Message)
	}

	mgr, err := resolveManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	handle, err := mgr.Create(context.Background(), scope, createDescription)
	switch {
	case err == nil:
	case createIfNotExists && errors.Is(err, stores.ErrScopeAlreadyExists):
		return reportExistingScope(cmd, mgr, scope)
	default:
		return err
	}

	if scopeJSONOutput {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"scope":       handle.Scope,
			"created":     handle.Meta.Created,
			"description": handle.Meta.Description,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created scope %q\n", handle.Scope)
	return nil
}

// reportExistingScope makes --if-not-exists a success path: the scope that
// is already there gets reported, flagged with already_existed.
func reportExistingScope(cmd *cobra.Command, mgr *stores.Manager, scope string) error {
	existing, err := mgr.Get(context.Background(), scope)
	if err != nil {
		return fmt.Errorf("scope exists but could not be loaded: %w", err)
	}

	if scopeJSONOutput {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"scope":           existing.Scope,
			"created":         existing.Meta.Created,
			"description":     existing.Meta.Description,
			"already_existed": true,
		})
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Scope %q already exists\n", scope)
	return nil
}
