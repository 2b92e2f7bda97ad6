package api

import (
	"log/slog"
	"net/http"

	"github.com/joescharf/projectops/internal/models"
	"github.com/joescharf/projectops/internal/store"
)

// requireProject writes 404 and returns false when the path project is missing.
func (s *Server) requireProject(w http.ResponseWriter, r *http.Request, failMsg string) (string, bool) {
	projectID := r.PathValue("projectId")
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		writeStoreError(w, err, "Project not found", failMsg)
		return "", false
	}
	return projectID, true
}

func deleted(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- Issues ---

func validateIssue(i *models.Issue) string {
	if i.Title == "" {
		return "title is required"
	}
	if i.Priority != "" && !i.Priority.Valid() {
		return "invalid priority: " + string(i.Priority)
	}
	if i.Status != "" && !i.Status.Valid() {
		return "invalid status: " + string(i.Status)
	}
	return ""
}

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	filter := store.IssueListFilter{
		ProjectID: r.PathValue("projectId"),
		Status:    models.IssueStatus(r.URL.Query().Get("status")),
		Priority:  models.IssuePriority(r.URL.Query().Get("priority")),
	}
	issues, err := s.store.ListIssues(r.Context(), filter)
	if err != nil {
		slog.Error("list issues", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch issues")
		return
	}
	if issues == nil {
		issues = []*models.Issue{}
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	const failMsg = "Failed to create issue"
	projectID, ok := s.requireProject(w, r, failMsg)
	if !ok {
		return
	}
	var issue models.Issue
	if err := decodeJSON(r, &issue); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	issue.ID = ""
	issue.ProjectID = projectID
	if msg := validateIssue(&issue); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.store.CreateIssue(r.Context(), &issue); err != nil {
		slog.Error("create issue", "error", err)
		writeError(w, http.StatusInternalServerError, failMsg)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

func (s *Server) updateIssue(w http.ResponseWriter, r *http.Request) {
	const failMsg = "Failed to update issue"
	id := r.PathValue("id")
	existing, err := s.store.GetIssue(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "Issue not found", failMsg)
		return
	}
	projectID := existing.ProjectID
	if err := decodeJSON(r, existing); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	existing.ID, existing.ProjectID = id, projectID
	if msg := validateIssue(existing); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.store.UpdateIssue(r.Context(), existing); err != nil {
		writeStoreError(w, err, "Issue not found", failMsg)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) deleteIssue(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteIssue(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err, "Issue not found", "Failed to delete issue")
		return
	}
	deleted(w)
}

// --- Credentials ---

func (s *Server) listCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := s.store.ListCredentials(r.Context(), r.PathValue("projectId"))
	if err != nil {
		slog.Error("list credentials", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch credentials")
		return
	}
	if creds == nil {
		creds = []*models.Credential{}
	}
	writeJSON(w, http.StatusOK, creds)
}

func (s *Server) createCredential(w http.ResponseWriter, r *http.Request) {
	const failMsg = "Failed to create credential"
	projectID, ok := s.requireProject(w, r, failMsg)
	if !ok {
		return
	}
	var c models.Credential
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	c.ID = ""
	c.ProjectID = projectID
	if c.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	if err := s.store.CreateCredential(r.Context(), &c); err != nil {
		slog.Error("create credential", "error", err)
		writeError(w, http.StatusInternalServerError, failMsg)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) updateCredential(w http.ResponseWriter, r *http.Request) {
	const failMsg = "Failed to update credential"
	id := r.PathValue("id")
	existing, err := s.store.GetCredential(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "Credential not found", failMsg)
		return
	}
	projectID := existing.ProjectID
	if err := decodeJSON(r, existing); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	existing.ID, existing.ProjectID = id, projectID
	if existing.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	if err := s.store.UpdateCredential(r.Context(), existing); err != nil {
		writeStoreError(w, err, "Credential not found", failMsg)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) deleteCredential(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteCredential(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err, "Credential not found", "Failed to delete credential")
		return
	}
	deleted(w)
}

// --- Team ---

func (s *Server) listTeam(w http.ResponseWriter, r *http.Request) {
	team, err := s.store.ListTeamMembers(r.Context(), r.PathValue("projectId"))
	if err != nil {
		slog.Error("list team members", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch team members")
		return
	}
	if team == nil {
		team = []*models.TeamMember{}
	}
	writeJSON(w, http.StatusOK, team)
}

func (s *Server) createTeamMember(w http.ResponseWriter, r *http.Request) {
	const failMsg = "Failed to create team member"
	projectID, ok := s.requireProject(w, r, failMsg)
	if !ok {
		return
	}
	var m models.TeamMember
	if err := decodeJSON(r, &m); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	m.ID = ""
	m.ProjectID = projectID
	if m.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.store.CreateTeamMember(r.Context(), &m); err != nil {
		slog.Error("create team member", "error", err)
		writeError(w, http.StatusInternalServerError, failMsg)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) updateTeamMember(w http.ResponseWriter, r *http.Request) {
	const failMsg = "Failed to update team member"
	id := r.PathValue("id")
	existing, err := s.store.GetTeamMember(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "Team member not found", failMsg)
		return
	}
	projectID := existing.ProjectID
	if err := decodeJSON(r, existing); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	existing.ID, existing.ProjectID = id, projectID
	if existing.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.store.UpdateTeamMember(r.Context(), existing); err != nil {
		writeStoreError(w, err, "Team member not found", failMsg)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) deleteTeamMember(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTeamMember(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err, "Team member not found", "Failed to delete team member")
		return
	}
	deleted(w)
}

// --- Goals ---

func (s *Server) listGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.store.ListGoals(r.Context(), r.PathValue("projectId"))
	if err != nil {
		slog.Error("list goals", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch goals")
		return
	}
	if goals == nil {
		goals = []*models.Goal{}
	}
	writeJSON(w, http.StatusOK, goals)
}

func (s *Server) createGoal(w http.ResponseWriter, r *http.Request) {
	const failMsg = "Failed to create goal"
	projectID, ok := s.requireProject(w, r, failMsg)
	if !ok {
		return
	}
	var g models.Goal
	if err := decodeJSON(r, &g); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	g.ID = ""
	g.ProjectID = projectID
	if g.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if err := s.store.CreateGoal(r.Context(), &g); err != nil {
		slog.Error("create goal", "error", err)
		writeError(w, http.StatusInternalServerError, failMsg)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) updateGoal(w http.ResponseWriter, r *http.Request) {
	const failMsg = "Failed to update goal"
	id := r.PathValue("id")
	existing, err := s.store.GetGoal(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "Goal not found", failMsg)
		return
	}
	projectID := existing.ProjectID
	if err := decodeJSON(r, existing); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	existing.ID, existing.ProjectID = id, projectID
	if existing.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if err := s.store.UpdateGoal(r.Context(), existing); err != nil {
		writeStoreError(w, err, "Goal not found", failMsg)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) deleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteGoal(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err, "Goal not found", "Failed to delete goal")
		return
	}
	deleted(w)
}
