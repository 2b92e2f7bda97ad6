package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/projectops/internal/git"
	"github.com/joescharf/projectops/internal/health"
	"github.com/joescharf/projectops/internal/models"
	"github.com/joescharf/projectops/internal/output"
	"github.com/joescharf/projectops/internal/stack"
	"github.com/joescharf/projectops/internal/store"
)

var (
	projectDesc   string
	projectStatus string
	projectStart  string
	projectStack  []string
	projectRepo   string
	projectLive   string
	projectNotes  string
	projectRename string
	projectFrom   string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage tracked projects",
	Long:  "Add, update, remove, list, and show tracked projects.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun("")
	},
}

var projectAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectAddRun(args[0])
	},
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun(projectStatus)
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <name-or-id>",
	Short: "Show project details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectShowRun(args[0])
	},
}

var projectUpdateCmd = &cobra.Command{
	Use:   "update <name-or-id>",
	Short: "Update a project",
	Long:  "Update a project. Only the flags given are changed.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectUpdateRun(args[0])
	},
}

var projectRemoveCmd = &cobra.Command{
	Use:     "remove <name-or-id>",
	Aliases: []string{"rm"},
	Short:   "Remove a project and everything attached to it",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectRemoveRun(args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{projectAddCmd, projectUpdateCmd} {
		c.Flags().StringVar(&projectDesc, "desc", "", "Description")
		c.Flags().StringVar(&projectStatus, "status", "", "Status: planning, development, testing, live, maintenance, on hold")
		c.Flags().StringVar(&projectStart, "start", "", "Start date (YYYY-MM-DD)")
		c.Flags().StringSliceVar(&projectStack, "stack", nil, "Technology stack (comma separated)")
		c.Flags().StringVar(&projectRepo, "repo", "", "Repository URL")
		c.Flags().StringVar(&projectLive, "live", "", "Live URL")
		c.Flags().StringVar(&projectNotes, "notes", "", "Development notes")
	}
	projectAddCmd.Flags().StringVar(&projectFrom, "from", "", "Prefill repo URL, start date and stack from a local checkout")
	projectUpdateCmd.Flags().StringVar(&projectRename, "name", "", "New project name")
	projectListCmd.Flags().StringVar(&projectStatus, "status", "", "Filter by status")

	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectUpdateCmd)
	projectCmd.AddCommand(projectRemoveCmd)
	rootCmd.AddCommand(projectCmd)
}

// parseProjectStatus accepts any casing of a known status. Empty stays empty.
func parseProjectStatus(raw string) (models.ProjectStatus, error) {
	if raw == "" {
		return "", nil
	}
	for _, st := range models.ProjectStatuses {
		if strings.EqualFold(raw, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid status %q", raw)
}

func projectAddRun(name string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	status, err := parseProjectStatus(projectStatus)
	if err != nil {
		return err
	}
	if _, err := s.GetProjectByName(ctx, name); err == nil {
		return fmt.Errorf("project already exists: %s", name)
	}

	p := &models.Project{
		Name:        name,
		Description: projectDesc,
		Status:      status,
		StartDate:   projectStart,
		TechStack:   projectStack,
		RepoURL:     projectRepo,
		LiveURL:     projectLive,
		DevNotes:    projectNotes,
	}

	if projectFrom != "" {
		if err := prefillFromCheckout(p, projectFrom); err != nil {
			return err
		}
	}

	if dryRun {
		ui.DryRunMsg("Would add project: %s", name)
		return nil
	}

	if err := s.CreateProject(ctx, p); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	ui.Success("Added project %s (%s)", output.Cyan(p.Name), shortID(p.ID))
	return nil
}

// prefillFromCheckout fills the repo URL, start date and stack that were not
// given as flags from a local directory, using git when it is a repository.
func prefillFromCheckout(p *models.Project, dir string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if info, err := os.Stat(absDir); err != nil || !info.IsDir() {
		return fmt.Errorf("not a directory: %s", absDir)
	}

	gc := git.NewClient()
	root := absDir
	if r, err := gc.RepoRoot(absDir); err == nil {
		root = r
	} else {
		ui.VerboseLog("Not a git repository: %s", absDir)
	}

	if p.RepoURL == "" {
		if remote, _ := gc.RemoteURL(root); remote != "" {
			if u, err := git.WebURL(remote); err == nil {
				p.RepoURL = u
			} else {
				ui.VerboseLog("Skipping remote: %v", err)
			}
		}
	}
	if p.StartDate == "" {
		if first, err := gc.FirstCommitDate(root); err == nil {
			p.StartDate = first.UTC().Format(time.DateOnly)
		}
	}
	if len(p.TechStack) == 0 {
		p.TechStack = stack.Detect(root)
	}
	return nil
}

func projectListRun(statusFilter string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	status, err := parseProjectStatus(statusFilter)
	if err != nil {
		return err
	}

	projects, err := s.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	if len(projects) == 0 {
		ui.Info("No projects tracked. Use 'projectops project add <name>' to get started.")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Status", "Stack", "Open Issues", "Goals"})
	for _, p := range projects {
		if status != "" && p.Status != status {
			continue
		}
		open, goals := "-", "-"
		if st, err := s.ProjectStats(ctx, p.ID); err == nil {
			open = fmt.Sprintf("%d", st.OpenIssues)
			goals = output.ProgressColor(st.CompletedGoals, st.Goals)
		}
		table.Append([]string{
			shortID(p.ID),
			output.Cyan(p.Name),
			output.StatusColor(string(p.Status)),
			strings.Join(p.TechStack, ", "),
			open,
			goals,
		})
	}
	table.Render()
	return nil
}

func projectShowRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, ref)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(p.Name), output.StatusColor(string(p.Status)))
	fmt.Fprintf(ui.Out, "  ID:         %s\n", p.ID)
	if p.Description != "" {
		fmt.Fprintf(ui.Out, "  Desc:       %s\n", p.Description)
	}
	if p.StartDate != "" {
		fmt.Fprintf(ui.Out, "  Started:    %s\n", p.StartDate)
	}
	if len(p.TechStack) > 0 {
		fmt.Fprintf(ui.Out, "  Stack:      %s\n", strings.Join(p.TechStack, ", "))
	}
	if p.RepoURL != "" {
		fmt.Fprintf(ui.Out, "  Repo:       %s\n", p.RepoURL)
	}
	if p.LiveURL != "" {
		fmt.Fprintf(ui.Out, "  Live:       %s\n", p.LiveURL)
	}
	if p.DevNotes != "" {
		fmt.Fprintf(ui.Out, "  Notes:      %s\n", p.DevNotes)
	}

	if st, err := s.ProjectStats(ctx, p.ID); err == nil {
		fmt.Fprintln(ui.Out)
		fmt.Fprintf(ui.Out, "  Issues:     %d open of %d\n", st.OpenIssues, st.Issues)
		fmt.Fprintf(ui.Out, "  Goals:      %s done\n", output.ProgressColor(st.CompletedGoals, st.Goals))
		fmt.Fprintf(ui.Out, "  Team:       %d\n", st.TeamMembers)
		fmt.Fprintf(ui.Out, "  Secrets:    %d\n", st.Credentials)
	}

	issues, ierr := s.ListIssues(ctx, store.IssueListFilter{ProjectID: p.ID})
	goals, gerr := s.ListGoals(ctx, p.ID)
	if ierr == nil && gerr == nil {
		h := health.NewScorer(nil).Score(p, issues, goals)
		fmt.Fprintf(ui.Out, "  Health:     %s (issues %d/40, goals %d/30, activity %d/30)\n",
			output.ProgressColor(h.Total, 100), h.IssueHealth, h.GoalProgress, h.Activity)
	}
	return nil
}

func projectUpdateRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, ref)
	if err != nil {
		return err
	}

	status, err := parseProjectStatus(projectStatus)
	if err != nil {
		return err
	}

	var changes []string
	set := func(field string, dst *string, val string) {
		if val != "" {
			*dst = val
			changes = append(changes, field)
		}
	}
	set("name", &p.Name, projectRename)
	set("description", &p.Description, projectDesc)
	set("start date", &p.StartDate, projectStart)
	set("repo", &p.RepoURL, projectRepo)
	set("live", &p.LiveURL, projectLive)
	set("notes", &p.DevNotes, projectNotes)
	if status != "" {
		p.Status = status
		changes = append(changes, "status")
	}
	if len(projectStack) > 0 {
		p.TechStack = projectStack
		changes = append(changes, "stack")
	}

	if len(changes) == 0 {
		return fmt.Errorf("nothing to update; pass at least one flag")
	}

	if dryRun {
		ui.DryRunMsg("Would update %s: %s", p.Name, strings.Join(changes, ", "))
		return nil
	}

	if err := s.UpdateProject(ctx, p); err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	ui.Success("Updated %s: %s", output.Cyan(p.Name), strings.Join(changes, ", "))
	return nil
}

func projectRemoveRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, ref)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would remove project: %s (%s)", p.Name, p.ID)
		return nil
	}

	if err := s.DeleteProject(ctx, p.ID); err != nil {
		return fmt.Errorf("remove project: %w", err)
	}
	ui.Success("Removed project: %s", p.Name)
	return nil
}

// resolveProject finds a project by exact name, full ID, or ID prefix.
func resolveProject(ctx context.Context, s store.Store, ref string) (*models.Project, error) {
	if p, err := s.GetProjectByName(ctx, ref); err == nil {
		return p, nil
	}
	if p, err := s.GetProject(ctx, ref); err == nil {
		return p, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	projects, err := s.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	upper := strings.ToUpper(ref)
	var matches []*models.Project
	for _, p := range projects {
		if strings.HasPrefix(p.ID, upper) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("project not found: %s", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous project ID prefix %q matches %d projects", ref, len(matches))
	}
}

// shortID returns the first 12 characters of a ULID for display.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
