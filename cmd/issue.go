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

var (
	issueTitle    string
	issueDesc     string
	issuePriority string
	issueStatus   string
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Manage project issues",
	Long:  "Track bugs and tasks for your projects.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun("")
	},
}

var issueAddCmd = &cobra.Command{
	Use:   "add <project>",
	Short: "Add a new issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAddRun(args[0])
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list [project]",
	Aliases: []string{"ls"},
	Short:   "List issues",
	Long:    "List issues for one project, or for every project when none is given.",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var projectRef string
		if len(args) > 0 {
			projectRef = args[0]
		}
		return issueListRun(projectRef)
	},
}

var issueCloseCmd = &cobra.Command{
	Use:   "close <issue-id>",
	Short: "Close an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueSetStatusRun(args[0], models.IssueStatusClosed)
	},
}

var issueReopenCmd = &cobra.Command{
	Use:   "reopen <issue-id>",
	Short: "Reopen a closed issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueSetStatusRun(args[0], models.IssueStatusOpen)
	},
}

var issueRemoveCmd = &cobra.Command{
	Use:     "remove <issue-id>",
	Aliases: []string{"rm"},
	Short:   "Delete an issue",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueRemoveRun(args[0])
	},
}

func init() {
	issueAddCmd.Flags().StringVar(&issueTitle, "title", "", "Issue title (required)")
	issueAddCmd.Flags().StringVar(&issueDesc, "desc", "", "Issue description")
	issueAddCmd.Flags().StringVar(&issuePriority, "priority", "medium", "Priority: low, medium, high")
	_ = issueAddCmd.MarkFlagRequired("title")

	issueListCmd.Flags().StringVar(&issueStatus, "status", "", "Filter by status: open, closed")
	issueListCmd.Flags().StringVar(&issuePriority, "priority", "", "Filter by priority")

	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueCloseCmd)
	issueCmd.AddCommand(issueReopenCmd)
	issueCmd.AddCommand(issueRemoveCmd)
	rootCmd.AddCommand(issueCmd)
}

// titleCase turns "in progress" or "HIGH" into "In Progress" and "High".
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func parseIssuePriority(raw string) (models.IssuePriority, error) {
	if raw == "" {
		return "", nil
	}
	p := models.IssuePriority(titleCase(raw))
	if !p.Valid() {
		return "", fmt.Errorf("invalid priority %q", raw)
	}
	return p, nil
}

func parseIssueStatus(raw string) (models.IssueStatus, error) {
	if raw == "" {
		return "", nil
	}
	st := models.IssueStatus(titleCase(raw))
	if !st.Valid() {
		return "", fmt.Errorf("invalid status %q", raw)
	}
	return st, nil
}

func issueAddRun(projectRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, projectRef)
	if err != nil {
		return err
	}
	priority, err := parseIssuePriority(issuePriority)
	if err != nil {
		return err
	}
	if strings.TrimSpace(issueTitle) == "" {
		return fmt.Errorf("issue title is required")
	}

	issue := &models.Issue{
		ProjectID:   p.ID,
		Title:       issueTitle,
		Description: issueDesc,
		Priority:    priority,
		Status:      models.IssueStatusOpen,
	}

	if dryRun {
		ui.DryRunMsg("Would add issue: %s [%s] to %s", issueTitle, priority, p.Name)
		return nil
	}

	if err := s.CreateIssue(ctx, issue); err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	ui.Success("Created issue %s: %s", output.Cyan(shortID(issue.ID)), issueTitle)
	return nil
}

func issueListRun(projectRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	status, err := parseIssueStatus(issueStatus)
	if err != nil {
		return err
	}
	priority, err := parseIssuePriority(issuePriority)
	if err != nil {
		return err
	}
	filter := store.IssueListFilter{Status: status, Priority: priority}

	if projectRef != "" {
		p, err := resolveProject(ctx, s, projectRef)
		if err != nil {
			return err
		}
		filter.ProjectID = p.ID
	}

	issues, err := s.ListIssues(ctx, filter)
	if err != nil {
		return fmt.Errorf("list issues: %w", err)
	}
	if len(issues) == 0 {
		ui.Info("No issues found.")
		return nil
	}

	names := projectNames(ctx, s)
	table := ui.Table([]string{"ID", "Project", "Title", "Priority", "Status", "Created"})
	for _, i := range issues {
		table.Append([]string{
			shortID(i.ID),
			names[i.ProjectID],
			i.Title,
			output.PriorityColor(string(i.Priority)),
			output.StatusColor(string(i.Status)),
			i.CreatedAt.Local().Format("2006-01-02"),
		})
	}
	table.Render()
	return nil
}

func issueSetStatusRun(id string, status models.IssueStatus) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	issue, err := findIssue(ctx, s, id)
	if err != nil {
		return err
	}
	if issue.Status == status {
		ui.Info("Issue %s is already %s", shortID(issue.ID), status)
		return nil
	}

	if dryRun {
		ui.DryRunMsg("Would mark issue %s as %s", shortID(issue.ID), status)
		return nil
	}

	issue.Status = status
	if err := s.UpdateIssue(ctx, issue); err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	ui.Success("Issue %s is now %s", output.Cyan(shortID(issue.ID)), output.StatusColor(string(status)))
	return nil
}

func issueRemoveRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	issue, err := findIssue(ctx, s, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete issue %s: %s", shortID(issue.ID), issue.Title)
		return nil
	}

	if err := s.DeleteIssue(ctx, issue.ID); err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	ui.Success("Deleted issue %s", shortID(issue.ID))
	return nil
}

// findIssue finds an issue by full ID or prefix match.
func findIssue(ctx context.Context, s store.Store, id string) (*models.Issue, error) {
	if issue, err := s.GetIssue(ctx, id); err == nil {
		return issue, nil
	}

	upper := strings.ToUpper(id)
	issues, err := s.ListIssues(ctx, store.IssueListFilter{})
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	var matches []*models.Issue
	for _, i := range issues {
		if strings.HasPrefix(i.ID, upper) {
			matches = append(matches, i)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("issue not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous issue ID prefix %q matches %d issues", id, len(matches))
	}
}

// projectNames maps project IDs to names for listings that span projects.
func projectNames(ctx context.Context, s store.Store) map[string]string {
	names := make(map[string]string)
	projects, err := s.ListProjects(ctx)
	if err != nil {
		return names
	}
	for _, p := range projects {
		names[p.ID] = p.Name
	}
	return names
}
