package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/projectops/internal/models"
	"github.com/joescharf/projectops/internal/output"
)

var credentialReveal bool

var credentialCmd = &cobra.Command{
	Use:     "credential",
	Aliases: []string{"cred"},
	Short:   "Manage key/value credentials stored with a project",
	Long: `Manage key/value credentials stored with a project.

Values are stored as plain text in the local database.`,
}

var credentialAddCmd = &cobra.Command{
	Use:   "add <project> <key> <value>",
	Short: "Add a credential",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return credentialAddRun(args[0], args[1], args[2])
	},
}

var credentialListCmd = &cobra.Command{
	Use:     "list <project>",
	Aliases: []string{"ls"},
	Short:   "List credentials (values hidden unless --reveal)",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return credentialListRun(args[0])
	},
}

var credentialRemoveCmd = &cobra.Command{
	Use:     "remove <project> <key-or-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a credential",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return credentialRemoveRun(args[0], args[1])
	},
}

func init() {
	credentialListCmd.Flags().BoolVar(&credentialReveal, "reveal", false, "Print credential values")

	credentialCmd.AddCommand(credentialAddCmd)
	credentialCmd.AddCommand(credentialListCmd)
	credentialCmd.AddCommand(credentialRemoveCmd)
	rootCmd.AddCommand(credentialCmd)
}

func credentialAddRun(projectRef, key, value string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, projectRef)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would add credential %s to %s", key, p.Name)
		return nil
	}

	c := &models.Credential{ProjectID: p.ID, Key: key, Value: value}
	if err := s.CreateCredential(ctx, c); err != nil {
		return fmt.Errorf("create credential: %w", err)
	}
	ui.Success("Added credential %s to %s", output.Cyan(key), p.Name)
	return nil
}

func credentialListRun(projectRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, projectRef)
	if err != nil {
		return err
	}
	creds, err := s.ListCredentials(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("list credentials: %w", err)
	}
	if len(creds) == 0 {
		ui.Info("No credentials for %s.", p.Name)
		return nil
	}

	table := ui.Table([]string{"ID", "Key", "Value"})
	for _, c := range creds {
		value := "********"
		if credentialReveal {
			value = c.Value
		}
		table.Append([]string{shortID(c.ID), output.Cyan(c.Key), value})
	}
	table.Render()
	return nil
}

func credentialRemoveRun(projectRef, ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, projectRef)
	if err != nil {
		return err
	}
	creds, err := s.ListCredentials(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("list credentials: %w", err)
	}

	var target *models.Credential
	for _, c := range creds {
		if c.Key == ref {
			target = c
			break
		}
	}
	if target == nil {
		target, err = matchID(creds, func(c *models.Credential) string { return c.ID }, ref, "credential")
		if err != nil {
			return err
		}
	}

	if dryRun {
		ui.DryRunMsg("Would delete credential %s from %s", target.Key, p.Name)
		return nil
	}

	if err := s.DeleteCredential(ctx, target.ID); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	ui.Success("Deleted credential %s from %s", target.Key, p.Name)
	return nil
}
