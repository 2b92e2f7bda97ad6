package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/projectops/internal/models"
	"github.com/joescharf/projectops/internal/output"
)

var (
	teamRole    string
	teamContact string
)

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Manage the people working on a project",
}

var teamAddCmd = &cobra.Command{
	Use:   "add <project> <name>",
	Short: "Add a team member",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return teamAddRun(args[0], args[1])
	},
}

var teamListCmd = &cobra.Command{
	Use:     "list <project>",
	Aliases: []string{"ls"},
	Short:   "List team members",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return teamListRun(args[0])
	},
}

var teamRemoveCmd = &cobra.Command{
	Use:     "remove <project> <member-id>",
	Aliases: []string{"rm"},
	Short:   "Remove a team member",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return teamRemoveRun(args[0], args[1])
	},
}

func init() {
	teamAddCmd.Flags().StringVar(&teamRole, "role", "", "Role on the project")
	teamAddCmd.Flags().StringVar(&teamContact, "contact", "", "Email or other contact")

	teamCmd.AddCommand(teamAddCmd)
	teamCmd.AddCommand(teamListCmd)
	teamCmd.AddCommand(teamRemoveCmd)
	rootCmd.AddCommand(teamCmd)
}

func teamAddRun(projectRef, name string) error {
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
		ui.DryRunMsg("Would add %s to %s", name, p.Name)
		return nil
	}

	m := &models.TeamMember{ProjectID: p.ID, Name: name, Role: teamRole, Contact: teamContact}
	if err := s.CreateTeamMember(ctx, m); err != nil {
		return fmt.Errorf("create team member: %w", err)
	}
	ui.Success("Added %s to %s", output.Cyan(name), p.Name)
	return nil
}

func teamListRun(projectRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, projectRef)
	if err != nil {
		return err
	}
	members, err := s.ListTeamMembers(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("list team members: %w", err)
	}
	if len(members) == 0 {
		ui.Info("No team members for %s.", p.Name)
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Role", "Contact"})
	for _, m := range members {
		table.Append([]string{shortID(m.ID), output.Cyan(m.Name), m.Role, m.Contact})
	}
	table.Render()
	return nil
}

func teamRemoveRun(projectRef, memberRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, projectRef)
	if err != nil {
		return err
	}
	members, err := s.ListTeamMembers(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("list team members: %w", err)
	}
	m, err := matchID(members, func(m *models.TeamMember) string { return m.ID }, memberRef, "team member")
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would remove %s from %s", m.Name, p.Name)
		return nil
	}

	if err := s.DeleteTeamMember(ctx, m.ID); err != nil {
		return fmt.Errorf("delete team member: %w", err)
	}
	ui.Success("Removed %s from %s", m.Name, p.Name)
	return nil
}
