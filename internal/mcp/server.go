package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/projectops/internal/backup"
	"github.com/joescharf/projectops/internal/health"
	"github.com/joescharf/projectops/internal/models"
	"github.com/joescharf/projectops/internal/store"
)

// Server wraps the projectops data layer and exposes it as MCP tools.
type Server struct {
	store   store.Store
	backups *backup.Service
	version string
}

// NewServer creates the MCP server wrapper. backups may be nil, in which
// case the backup tools report that no archive is configured.
func NewServer(s store.Store, backups *backup.Service, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{store: s, backups: backups, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("projectops", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listProjectsTool())
	srv.AddTool(s.projectSummaryTool())
	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.createIssueTool())
	srv.AddTool(s.updateIssueTool())
	srv.AddTool(s.listBackupsTool())
	srv.AddTool(s.exportBackupTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any, what string) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal %s: %v", what, err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// projectops_list_projects
func (s *Server) listProjectsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("projectops_list_projects",
		mcp.WithDescription("List all projects. Returns a JSON array with id, name, status, start date and technology stack."),
		mcp.WithString("status", mcp.Description("Filter by status: Planning, Development, Testing, Live, Maintenance, On Hold")),
	)
	return tool, s.handleListProjects
}

func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := request.GetString("status", "")
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list projects: %v", err)), nil
	}

	type projectOut struct {
		ID        string   `json:"id"`
		Name      string   `json:"name"`
		Status    string   `json:"status"`
		StartDate string   `json:"start_date"`
		TechStack []string `json:"technology_stack"`
	}

	out := make([]projectOut, 0, len(projects))
	for _, p := range projects {
		if status != "" && !strings.EqualFold(string(p.Status), status) {
			continue
		}
		out = append(out, projectOut{
			ID:        p.ID,
			Name:      p.Name,
			Status:    string(p.Status),
			StartDate: p.StartDate,
			TechStack: p.TechStack,
		})
	}
	return jsonResult(out, "projects")
}

// projectops_project_summary
func (s *Server) projectSummaryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("projectops_project_summary",
		mcp.WithDescription("Get a project with its links, notes, counters for issues, credentials, team members and goals, and a 0-100 health score. Resolves the project by name or ID."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or ID")),
	)
	return tool, s.handleProjectSummary
}

func (s *Server) handleProjectSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectName, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	p, err := s.resolveProject(ctx, projectName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectName)), nil
	}
	stats, err := s.store.ProjectStats(ctx, p.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load project stats: %v", err)), nil
	}
	goals, err := s.store.ListGoals(ctx, p.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list goals: %v", err)), nil
	}

	type goalOut struct {
		Text      string `json:"text"`
		Completed bool   `json:"completed"`
	}
	issues, err := s.store.ListIssues(ctx, store.IssueListFilter{ProjectID: p.ID})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list issues: %v", err)), nil
	}
	score := health.NewScorer(nil).Score(p, issues, goals)

	goalList := make([]goalOut, len(goals))
	for i, g := range goals {
		goalList[i] = goalOut{Text: g.Text, Completed: g.Completed}
	}

	result := map[string]any{
		"id":               p.ID,
		"name":             p.Name,
		"description":      p.Description,
		"status":           string(p.Status),
		"start_date":       p.StartDate,
		"technology_stack": p.TechStack,
		"repo_link":        p.RepoURL,
		"live_link":        p.LiveURL,
		"dev_notes":        p.DevNotes,
		"updated_at":       p.UpdatedAt.Format(time.RFC3339),
		"stats":            stats,
		"goals":            goalList,
		"health":           score,
	}
	return jsonResult(result, "project summary")
}

// projectops_list_issues
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("projectops_list_issues",
		mcp.WithDescription("List issues across projects, open issues first. Filter by project, status or priority."),
		mcp.WithString("project", mcp.Description("Project name or ID")),
		mcp.WithString("status", mcp.Description("Filter by status: Open, Closed")),
		mcp.WithString("priority", mcp.Description("Filter by priority: Low, Medium, High")),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.IssueListFilter{}

	if projectName := request.GetString("project", ""); projectName != "" {
		p, err := s.resolveProject(ctx, projectName)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectName)), nil
		}
		filter.ProjectID = p.ID
	}
	if status := request.GetString("status", ""); status != "" {
		filter.Status = models.IssueStatus(normalize(status))
	}
	if priority := request.GetString("priority", ""); priority != "" {
		filter.Priority = models.IssuePriority(normalize(priority))
	}

	issues, err := s.store.ListIssues(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list issues: %v", err)), nil
	}

	out := make([]map[string]any, len(issues))
	for i, issue := range issues {
		out[i] = issueJSON(issue)
	}
	return jsonResult(out, "issues")
}

// projectops_create_issue
func (s *Server) createIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("projectops_create_issue",
		mcp.WithDescription("Create an issue for a project. Returns the created issue as JSON."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or ID")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Issue title")),
		mcp.WithString("description", mcp.Description("Issue description")),
		mcp.WithString("priority", mcp.Description("Priority: Low, Medium (default), High")),
	)
	return tool, s.handleCreateIssue
}

func (s *Server) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectName, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}

	p, err := s.resolveProject(ctx, projectName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectName)), nil
	}

	priority := models.IssuePriority(normalize(request.GetString("priority", "Medium")))
	if !priority.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("invalid priority: %s", priority)), nil
	}

	issue := &models.Issue{
		ProjectID:   p.ID,
		Title:       title,
		Description: request.GetString("description", ""),
		Status:      models.IssueStatusOpen,
		Priority:    priority,
	}
	if err := s.store.CreateIssue(ctx, issue); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create issue: %v", err)), nil
	}

	result := issueJSON(issue)
	result["project"] = p.Name
	return jsonResult(result, "issue")
}

// projectops_update_issue
func (s *Server) updateIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("projectops_update_issue",
		mcp.WithDescription("Update an existing issue. Provide the issue ID (full or prefix) and at least one field to update. Returns the updated issue as JSON."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID (full ULID or unique prefix)")),
		mcp.WithString("status", mcp.Description("New status: Open, Closed")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("priority", mcp.Description("New priority: Low, Medium, High")),
	)
	return tool, s.handleUpdateIssue
}

func (s *Server) handleUpdateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}

	issue, err := s.findIssue(ctx, issueID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	updated := false
	if status := request.GetString("status", ""); status != "" {
		issue.Status = models.IssueStatus(normalize(status))
		if !issue.Status.Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("invalid status: %s", status)), nil
		}
		updated = true
	}
	if title := request.GetString("title", ""); title != "" {
		issue.Title = title
		updated = true
	}
	if desc := request.GetString("description", ""); desc != "" {
		issue.Description = desc
		updated = true
	}
	if priority := request.GetString("priority", ""); priority != "" {
		issue.Priority = models.IssuePriority(normalize(priority))
		if !issue.Priority.Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("invalid priority: %s", priority)), nil
		}
		updated = true
	}

	if !updated {
		return mcp.NewToolResultError("no fields provided to update; specify at least one of: status, title, description, priority"), nil
	}

	if err := s.store.UpdateIssue(ctx, issue); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update issue: %v", err)), nil
	}
	return jsonResult(issueJSON(issue), "issue")
}

// projectops_list_backups
func (s *Server) listBackupsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("projectops_list_backups",
		mcp.WithDescription("List the backups stored in the remote archive for a project, newest first."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or ID")),
	)
	return tool, s.handleListBackups
}

func (s *Server) handleListBackups(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.backups == nil {
		return mcp.NewToolResultError("remote archive is not configured"), nil
	}
	projectName, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	p, err := s.resolveProject(ctx, projectName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectName)), nil
	}

	list, err := s.backups.List(ctx, p.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list backups: %v", err)), nil
	}
	return jsonResult(list, "backups")
}

// projectops_export_backup
func (s *Server) exportBackupTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("projectops_export_backup",
		mcp.WithDescription("Export a JSON snapshot of a project (issues, team, goals) to the remote archive. Returns the file id, name, link and summary counters."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or ID")),
	)
	return tool, s.handleExportBackup
}

func (s *Server) handleExportBackup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.backups == nil {
		return mcp.NewToolResultError("remote archive is not configured"), nil
	}
	projectName, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	p, err := s.resolveProject(ctx, projectName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectName)), nil
	}

	res, err := s.backups.QuickExport(ctx, p.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to export backup: %v", err)), nil
	}
	return jsonResult(res, "export result")
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func issueJSON(issue *models.Issue) map[string]any {
	return map[string]any{
		"id":          issue.ID,
		"project_id":  issue.ProjectID,
		"title":       issue.Title,
		"description": issue.Description,
		"status":      string(issue.Status),
		"priority":    string(issue.Priority),
		"created_at":  issue.CreatedAt.Format(time.RFC3339),
	}
}

// normalize title-cases an enum value so "high" and "HIGH" match "High".
// "on hold" becomes "On Hold".
func normalize(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// resolveProject finds a project by name, then by ID.
func (s *Server) resolveProject(ctx context.Context, name string) (*models.Project, error) {
	if p, err := s.store.GetProjectByName(ctx, name); err == nil {
		return p, nil
	}
	if p, err := s.store.GetProject(ctx, name); err == nil {
		return p, nil
	}
	return nil, fmt.Errorf("project not found: %s", name)
}

// findIssue finds an issue by full ID or unique prefix.
func (s *Server) findIssue(ctx context.Context, id string) (*models.Issue, error) {
	if issue, err := s.store.GetIssue(ctx, id); err == nil {
		return issue, nil
	}

	upper := strings.ToUpper(id)
	issues, err := s.store.ListIssues(ctx, store.IssueListFilter{})
	if err != nil {
		return nil, err
	}

	var matches []*models.Issue
	for _, issue := range issues {
		if strings.HasPrefix(issue.ID, upper) {
			matches = append(matches, issue)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("issue not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous issue ID %s: matches %d issues", id, len(matches))
	}
}
