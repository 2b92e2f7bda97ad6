package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/projectops/internal/archive"
	"github.com/joescharf/projectops/internal/archive/archivetest"
	"github.com/joescharf/projectops/internal/backup"
	"github.com/joescharf/projectops/internal/models"
	"github.com/joescharf/projectops/internal/snapshot"
	"github.com/joescharf/projectops/internal/store"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestServer(t *testing.T) (*Server, *store.SQLiteStore, *archivetest.Remote) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	now := func() time.Time { return time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC) }
	remote := archivetest.NewRemote()
	svc := backup.NewService(snapshot.FromStore(s), archive.New(remote, archive.Options{Now: now}), now)
	return NewServer(s, svc, "test"), s, remote
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

func seedProject(t *testing.T, s store.Store, name string, status models.ProjectStatus) *models.Project {
	t.Helper()
	p := &models.Project{Name: name, Status: status}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return p
}

func seedIssue(t *testing.T, s store.Store, projectID, title string, status models.IssueStatus, priority models.IssuePriority) *models.Issue {
	t.Helper()
	i := &models.Issue{ProjectID: projectID, Title: title, Status: status, Priority: priority}
	require.NoError(t, s.CreateIssue(context.Background(), i))
	return i
}

// ---------------------------------------------------------------------------
// Tests: projects
// ---------------------------------------------------------------------------

func TestNewServer(t *testing.T) {
	srv, _, _ := newTestServer(t)
	require.NotNil(t, srv.MCPServer())
	assert.Equal(t, "dev", NewServer(nil, nil, "").version)
}

func TestHandleListProjects(t *testing.T) {
	srv, s, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleListProjects(ctx, callToolReq("projectops_list_projects", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "[]", resultText(t, result))

	seedProject(t, s, "alpha", models.ProjectStatusLive)
	seedProject(t, s, "beta", models.ProjectStatusPlanning)

	result, err = srv.handleListProjects(ctx, callToolReq("projectops_list_projects", nil))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "alpha")
	assert.Contains(t, text, "beta")

	result, err = srv.handleListProjects(ctx, callToolReq("projectops_list_projects", map[string]any{"status": "live"}))
	require.NoError(t, err)
	var out []map[string]any
	resultJSON(t, result, &out)
	require.Len(t, out, 1)
	assert.Equal(t, "alpha", out[0]["name"])
}

func TestHandleProjectSummary(t *testing.T) {
	srv, s, _ := newTestServer(t)
	ctx := context.Background()
	p := seedProject(t, s, "alpha", models.ProjectStatusDevelopment)
	seedIssue(t, s, p.ID, "bug", models.IssueStatusOpen, models.IssuePriorityHigh)
	require.NoError(t, s.CreateGoal(ctx, &models.Goal{ProjectID: p.ID, Text: "ship", Completed: true}))

	result, err := srv.handleProjectSummary(ctx, callToolReq("projectops_project_summary", map[string]any{"project": "alpha"}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out struct {
		Name  string             `json:"name"`
		Stats store.ProjectStats `json:"stats"`
		Goals []struct {
			Text      string `json:"text"`
			Completed bool   `json:"completed"`
		} `json:"goals"`
		Health struct {
			Total        int `json:"total"`
			GoalProgress int `json:"goalProgress"`
		} `json:"health"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, "alpha", out.Name)
	assert.Equal(t, 30, out.Health.GoalProgress)
	assert.Positive(t, out.Health.Total)
	assert.Equal(t, 1, out.Stats.OpenIssues)
	assert.Equal(t, 1, out.Stats.CompletedGoals)
	require.Len(t, out.Goals, 1)

	// Lookup by ID works too.
	result, err = srv.handleProjectSummary(ctx, callToolReq("projectops_project_summary", map[string]any{"project": p.ID}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestHandleProjectSummary_Errors(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleProjectSummary(ctx, callToolReq("projectops_project_summary", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleProjectSummary(ctx, callToolReq("projectops_project_summary", map[string]any{"project": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "project not found")
}

// ---------------------------------------------------------------------------
// Tests: issues
// ---------------------------------------------------------------------------

func TestHandleListIssues_Filters(t *testing.T) {
	srv, s, _ := newTestServer(t)
	ctx := context.Background()
	a := seedProject(t, s, "alpha", "")
	b := seedProject(t, s, "beta", "")
	seedIssue(t, s, a.ID, "a-open-high", models.IssueStatusOpen, models.IssuePriorityHigh)
	seedIssue(t, s, a.ID, "a-closed-low", models.IssueStatusClosed, models.IssuePriorityLow)
	seedIssue(t, s, b.ID, "b-open-low", models.IssueStatusOpen, models.IssuePriorityLow)

	tests := []struct {
		name string
		args map[string]any
		want []string
	}{
		{"all", nil, []string{"a-open-high", "b-open-low", "a-closed-low"}},
		{"project", map[string]any{"project": "alpha"}, []string{"a-open-high", "a-closed-low"}},
		{"status", map[string]any{"status": "closed"}, []string{"a-closed-low"}},
		{"priority", map[string]any{"priority": "LOW"}, []string{"b-open-low", "a-closed-low"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := srv.handleListIssues(ctx, callToolReq("projectops_list_issues", tt.args))
			require.NoError(t, err)
			require.False(t, result.IsError, resultText(t, result))

			var out []map[string]any
			resultJSON(t, result, &out)
			var titles []string
			for _, o := range out {
				titles = append(titles, o["title"].(string))
			}
			assert.Equal(t, tt.want, titles)
		})
	}

	result, err := srv.handleListIssues(ctx, callToolReq("projectops_list_issues", map[string]any{"project": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleCreateIssue(t *testing.T) {
	srv, s, _ := newTestServer(t)
	ctx := context.Background()
	p := seedProject(t, s, "alpha", "")

	result, err := srv.handleCreateIssue(ctx, callToolReq("projectops_create_issue", map[string]any{
		"project":     "alpha",
		"title":       "login broken",
		"description": "500 on submit",
		"priority":    "high",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Equal(t, "alpha", out["project"])
	assert.Equal(t, "High", out["priority"])
	assert.Equal(t, "Open", out["status"])

	issues, err := s.ListIssues(ctx, store.IssueListFilter{ProjectID: p.ID})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "login broken", issues[0].Title)
}

func TestHandleCreateIssue_DefaultPriority(t *testing.T) {
	srv, s, _ := newTestServer(t)
	seedProject(t, s, "alpha", "")

	result, err := srv.handleCreateIssue(context.Background(), callToolReq("projectops_create_issue", map[string]any{
		"project": "alpha", "title": "t",
	}))
	require.NoError(t, err)
	var out map[string]any
	resultJSON(t, result, &out)
	assert.Equal(t, "Medium", out["priority"])
}

func TestHandleCreateIssue_Errors(t *testing.T) {
	srv, s, _ := newTestServer(t)
	ctx := context.Background()
	seedProject(t, s, "alpha", "")

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing project", map[string]any{"title": "t"}, "project"},
		{"missing title", map[string]any{"project": "alpha"}, "title"},
		{"unknown project", map[string]any{"project": "nope", "title": "t"}, "project not found"},
		{"bad priority", map[string]any{"project": "alpha", "title": "t", "priority": "urgent"}, "invalid priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := srv.handleCreateIssue(ctx, callToolReq("projectops_create_issue", tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

func TestHandleUpdateIssue(t *testing.T) {
	srv, s, _ := newTestServer(t)
	ctx := context.Background()
	p := seedProject(t, s, "alpha", "")
	issue := seedIssue(t, s, p.ID, "old title", models.IssueStatusOpen, models.IssuePriorityLow)

	result, err := srv.handleUpdateIssue(ctx, callToolReq("projectops_update_issue", map[string]any{
		"issue_id": strings.ToLower(issue.ID[:10]),
		"status":   "closed",
		"title":    "new title",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusClosed, got.Status)
	assert.Equal(t, "new title", got.Title)
	assert.Equal(t, models.IssuePriorityLow, got.Priority)
}

func TestHandleUpdateIssue_Errors(t *testing.T) {
	srv, s, _ := newTestServer(t)
	ctx := context.Background()
	p := seedProject(t, s, "alpha", "")
	issue := seedIssue(t, s, p.ID, "t", models.IssueStatusOpen, models.IssuePriorityLow)

	result, err := srv.handleUpdateIssue(ctx, callToolReq("projectops_update_issue", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleUpdateIssue(ctx, callToolReq("projectops_update_issue", map[string]any{"issue_id": "ZZZZ", "status": "Closed"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "issue not found")

	result, err = srv.handleUpdateIssue(ctx, callToolReq("projectops_update_issue", map[string]any{"issue_id": issue.ID}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "no fields provided")

	result, err = srv.handleUpdateIssue(ctx, callToolReq("projectops_update_issue", map[string]any{"issue_id": issue.ID, "status": "pending"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// ---------------------------------------------------------------------------
// Tests: backups
// ---------------------------------------------------------------------------

func TestHandleExportAndListBackups(t *testing.T) {
	srv, s, remote := newTestServer(t)
	ctx := context.Background()
	p := seedProject(t, s, "alpha", "")
	seedIssue(t, s, p.ID, "t", models.IssueStatusOpen, models.IssuePriorityLow)

	result, err := srv.handleExportBackup(ctx, callToolReq("projectops_export_backup", map[string]any{"project": "alpha"}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var res backup.ExportResult
	resultJSON(t, result, &res)
	assert.Equal(t, "alpha-backup-2024-03-05T10-00-00-000Z.json", res.FileName)
	assert.Equal(t, 1, res.Summary.OpenIssues)
	assert.NotEmpty(t, remote.Data(res.FileID))

	result, err = srv.handleListBackups(ctx, callToolReq("projectops_list_backups", map[string]any{"project": "alpha"}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	assert.Equal(t, "[]", resultText(t, result), "quick exports live in the root folder")
}

func TestHandleBackups_NotConfigured(t *testing.T) {
	_, s, _ := newTestServer(t)
	seedProject(t, s, "alpha", "")
	srv := NewServer(s, nil, "test")

	result, err := srv.handleListBackups(context.Background(), callToolReq("projectops_list_backups", map[string]any{"project": "alpha"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not configured")
}

func TestHandleBackups_RemoteError(t *testing.T) {
	srv, s, remote := newTestServer(t)
	seedProject(t, s, "alpha", "")
	remote.Err = archive.ErrNotConnected

	result, err := srv.handleExportBackup(context.Background(), callToolReq("projectops_export_backup", map[string]any{"project": "alpha"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not connected")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "High", normalize("high"))
	assert.Equal(t, "Closed", normalize("CLOSED"))
	assert.Equal(t, "On Hold", normalize("on hold"))
	assert.Equal(t, "", normalize(""))
}

// ---------------------------------------------------------------------------
// Tests: Integration -- verify all tools are registered via HandleMessage
// ---------------------------------------------------------------------------

func TestMCPIntegration_ListTools(t *testing.T) {
	srv, _, _ := newTestServer(t)

	mcpSrv := srv.MCPServer()
	require.NotNil(t, mcpSrv)

	ctx := context.Background()
	reqJSON := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	respMsg := mcpSrv.HandleMessage(ctx, reqJSON)
	require.NotNil(t, respMsg)

	respBytes, err := json.Marshal(respMsg)
	require.NoError(t, err)

	var rpcResp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &rpcResp))

	toolNames := make(map[string]bool)
	for _, tool := range rpcResp.Result.Tools {
		toolNames[tool.Name] = true
	}

	expectedTools := []string{
		"projectops_list_projects",
		"projectops_project_summary",
		"projectops_list_issues",
		"projectops_create_issue",
		"projectops_update_issue",
		"projectops_list_backups",
		"projectops_export_backup",
	}
	for _, name := range expectedTools {
		assert.True(t, toolNames[name], "expected tool %q to be registered", name)
	}
}
