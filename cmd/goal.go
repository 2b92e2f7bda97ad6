package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/projectops/internal/models"
	"github.com/joescharf/projectops/internal/output"
	"github.com/joescharf/projectops/internal/store"
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Manage a project's goal checklist",
}

var goalAddCmd = &cobra.Command{
	Use:   "add <project> <text>...",
	Short: "Add a goal",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return goalAddRun(args[0], strings.Join(args[1:], " "))
	},
}

var goalListCmd = &cobra.Command{
	Use:     "list <project>",
	Aliases: []string{"ls"},
	Short:   "List goals",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return goalListRun(args[0])
	},
}

var goalDoneCmd = &cobra.Command{
	Use:   "done <project> <goal-id>",
	Short: "Mark a goal completed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return goalDoneRun(args[0], args[1])
	},
}

var goalRemoveCmd = &cobra.Command{
	Use:     "remove <project> <goal-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a goal",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return goalRemoveRun(args[0], args[1])
	},
}

func init() {
	goalCmd.AddCommand(goalAddCmd)
	goalCmd.AddCommand(goalListCmd)
	goalCmd.AddCommand(goalDoneCmd)
	goalCmd.AddCommand(goalRemoveCmd)
	rootCmd.AddCommand(goalCmd)
}

// matchID picks the single item whose ID equals ref or starts with it.
func matchID[T any](items []T, id func(T) string, ref, kind string) (T, error) {
	var zero T
	upper := strings.ToUpper(ref)
	var matches []T
	for _, it := range items {
		if id(it) == ref {
			return it, nil
		}
		if strings.HasPrefix(id(it), upper) {
			matches = append(matches, it)
		}
	}
	switch len(matches) {
	case 0:
		return zero, fmt.Errorf("%s not found: %s", kind, ref)
	case 1:
		return matches[0], nil
	default:
		return zero, fmt.Errorf("ambiguous %s ID prefix %q matches %d", kind, ref, len(matches))
	}
}

func findGoal(ctx context.Context, s store.Store, projectRef, goalRef string) (*models.Goal, error) {
	p, err := resolveProject(ctx, s, projectRef)
	if err != nil {
		return nil, err
	}
	goals, err := s.ListGoals(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return matchID(goals, func(g *models.Goal) string { return g.ID }, goalRef, "goal")
}

func goalAddRun(projectRef, text string) error {
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
		ui.DryRunMsg("Would add goal to %s: %s", p.Name, text)
		return nil
	}

	g := &models.Goal{ProjectID: p.ID, Text: text}
	if err := s.CreateGoal(ctx, g); err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	ui.Success("Added goal %s: %s", output.Cyan(shortID(g.ID)), text)
	return nil
}

func goalListRun(projectRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, projectRef)
	if err != nil {
		return err
	}
	goals, err := s.ListGoals(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("list goals: %w", err)
	}
	if len(goals) == 0 {
		ui.Info("No goals for %s.", p.Name)
		return nil
	}

	done := 0
	table := ui.Table([]string{"ID", "Done", "Goal"})
	for _, g := range goals {
		mark := " "
		if g.Completed {
			mark = output.Green("x")
			done++
		}
		table.Append([]string{shortID(g.ID), mark, g.Text})
	}
	table.Render()
	ui.Info("%s complete", output.ProgressColor(done, len(goals)))
	return nil
}

func goalDoneRun(projectRef, goalRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	g, err := findGoal(ctx, s, projectRef, goalRef)
	if err != nil {
		return err
	}
	if g.Completed {
		ui.Info("Goal %s is already done", shortID(g.ID))
		return nil
	}

	if dryRun {
		ui.DryRunMsg("Would complete goal %s: %s", shortID(g.ID), g.Text)
		return nil
	}

	g.Completed = true
	if err := s.UpdateGoal(ctx, g); err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	ui.Success("Completed goal %s: %s", output.Cyan(shortID(g.ID)), g.Text)
	return nil
}

func goalRemoveRun(projectRef, goalRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	g, err := findGoal(ctx, s, projectRef, goalRef)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete goal %s: %s", shortID(g.ID), g.Text)
		return nil
	}

	if err := s.DeleteGoal(ctx, g.ID); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	ui.Success("Deleted goal %s", shortID(g.ID))
	return nil
}
