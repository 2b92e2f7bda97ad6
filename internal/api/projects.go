package api

import (
	"log/slog"
	"net/http"

	"github.com/joescharf/projectops/internal/models"
	"github.com/joescharf/projectops/internal/store"
)

func validateProject(p *models.Project) string {
	if p.Name == "" {
		return "projectName is required"
	}
	if p.Status != "" && !p.Status.Valid() {
		return "invalid status: " + string(p.Status)
	}
	return ""
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		slog.Error("list projects", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch projects")
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err, "Project not found", "Failed to fetch project")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var p models.Project
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	p.ID = ""
	if msg := validateProject(&p); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.store.CreateProject(r.Context(), &p); err != nil {
		slog.Error("create project", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create project")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// updateProject merges the fields present in the body over the stored
// project. Absent fields keep their values.
func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existing, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "Project not found", "Failed to update project")
		return
	}

	if err := decodeJSON(r, existing); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	existing.ID = id
	if msg := validateProject(existing); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := s.store.UpdateProject(r.Context(), existing); err != nil {
		writeStoreError(w, err, "Project not found", "Failed to update project")
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteProject(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err, "Project not found", "Failed to delete project")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- Dashboard ---

type dashboardProject struct {
	*models.Project
	Stats *store.ProjectStats `json:"stats"`
}

type dashboardResponse struct {
	TotalProjects int                          `json:"totalProjects"`
	ByStatus      map[models.ProjectStatus]int `json:"byStatus"`
	Projects      []dashboardProject           `json:"projects"`
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		slog.Error("dashboard", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch dashboard")
		return
	}

	resp := dashboardResponse{
		TotalProjects: len(projects),
		ByStatus:      make(map[models.ProjectStatus]int, len(models.ProjectStatuses)),
		Projects:      make([]dashboardProject, 0, len(projects)),
	}
	for _, st := range models.ProjectStatuses {
		resp.ByStatus[st] = 0
	}
	for _, p := range projects {
		resp.ByStatus[p.Status]++
		stats, err := s.store.ProjectStats(ctx, p.ID)
		if err != nil {
			slog.Error("dashboard stats", "project", p.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to fetch dashboard")
			return
		}
		resp.Projects = append(resp.Projects, dashboardProject{Project: p, Stats: stats})
	}
	writeJSON(w, http.StatusOK, resp)
}
