package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joescharf/projectops/internal/auth"
	"github.com/joescharf/projectops/internal/backup"
	"github.com/joescharf/projectops/internal/store"
)

// Options configures authentication for a Server.
type Options struct {
	Verifier      auth.Verifier
	Sessions      *auth.Sessions
	Limiter       *auth.LoginLimiter
	SecureCookies bool
}

// Server provides the REST API handlers.
type Server struct {
	store    store.Store
	backups  *backup.Service
	verifier auth.Verifier
	sessions *auth.Sessions
	limiter  *auth.LoginLimiter
	secure   bool
}

// NewServer creates a new API server. Missing auth options fall back to a
// verifier that rejects everyone, a fresh session table and the default
// login limiter.
func NewServer(s store.Store, backups *backup.Service, opts Options) *Server {
	srv := &Server{
		store:    s,
		backups:  backups,
		verifier: opts.Verifier,
		sessions: opts.Sessions,
		limiter:  opts.Limiter,
		secure:   opts.SecureCookies,
	}
	if srv.verifier == nil {
		srv.verifier = auth.StaticVerifier{}
	}
	if srv.sessions == nil {
		srv.sessions = auth.NewSessions(auth.DefaultTTL)
	}
	if srv.limiter == nil {
		srv.limiter = auth.NewLoginLimiter(auth.DefaultLoginRate, auth.DefaultLoginBurst)
	}
	return srv
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("POST /api/auth/logout", s.logout)
	mux.HandleFunc("GET /api/auth/status", s.authStatus)

	mux.Handle("GET /api/dashboard", s.protect(s.dashboard))

	mux.Handle("GET /api/projects", s.protect(s.listProjects))
	mux.Handle("POST /api/projects", s.protect(s.createProject))
	mux.Handle("GET /api/projects/{id}", s.protect(s.getProject))
	mux.Handle("PUT /api/projects/{id}", s.protect(s.updateProject))
	mux.Handle("DELETE /api/projects/{id}", s.protect(s.deleteProject))

	mux.Handle("GET /api/projects/{projectId}/issues", s.protect(s.listIssues))
	mux.Handle("POST /api/projects/{projectId}/issues", s.protect(s.createIssue))
	mux.Handle("PUT /api/issues/{id}", s.protect(s.updateIssue))
	mux.Handle("DELETE /api/issues/{id}", s.protect(s.deleteIssue))

	mux.Handle("GET /api/projects/{projectId}/credentials", s.protect(s.listCredentials))
	mux.Handle("POST /api/projects/{projectId}/credentials", s.protect(s.createCredential))
	mux.Handle("PUT /api/credentials/{id}", s.protect(s.updateCredential))
	mux.Handle("DELETE /api/credentials/{id}", s.protect(s.deleteCredential))

	mux.Handle("GET /api/projects/{projectId}/team", s.protect(s.listTeam))
	mux.Handle("POST /api/projects/{projectId}/team", s.protect(s.createTeamMember))
	mux.Handle("PUT /api/team/{id}", s.protect(s.updateTeamMember))
	mux.Handle("DELETE /api/team/{id}", s.protect(s.deleteTeamMember))

	mux.Handle("GET /api/projects/{projectId}/goals", s.protect(s.listGoals))
	mux.Handle("POST /api/projects/{projectId}/goals", s.protect(s.createGoal))
	mux.Handle("PUT /api/goals/{id}", s.protect(s.updateGoal))
	mux.Handle("DELETE /api/goals/{id}", s.protect(s.deleteGoal))

	mux.Handle("GET /api/backups/{projectId}", s.protect(s.listBackups))
	mux.Handle("POST /api/backups/upload", s.protect(s.uploadBackup))
	mux.Handle("GET /api/backups/{projectId}/download/{fileId}", s.protect(s.downloadBackup))
	mux.Handle("DELETE /api/backups/{projectId}/{fileId}", s.protect(s.deleteBackup))
	mux.Handle("POST /api/backup-to-drive", s.protect(s.backupToDrive))

	return corsMiddleware(mux)
}

func (s *Server) protect(h http.HandlerFunc) http.Handler {
	return s.sessions.RequireAuth(h)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError answers 404 for missing rows and a logged generic 500
// for everything else.
func writeStoreError(w http.ResponseWriter, err error, notFoundMsg, failMsg string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFoundMsg)
		return
	}
	slog.Error(failMsg, "error", err)
	writeError(w, http.StatusInternalServerError, failMsg)
}

// writeBackupError renders a backup.Error as {error, message?}.
func writeBackupError(w http.ResponseWriter, err error) {
	status := backup.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("backup operation failed", "kind", backup.KindOf(err).String(), "error", err)
	}
	body := map[string]string{"error": backup.PublicMessage(err)}
	var be *backup.Error
	if errors.As(err, &be) {
		if detail := be.Detail(); detail != "" {
			body["message"] = detail
		}
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Auth ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(r) {
		writeError(w, http.StatusTooManyRequests, "Too many login attempts")
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !s.verifier.Verify(req.Username, req.Password) {
		slog.Warn("login rejected", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	id, expires := s.sessions.Create(req.Username)
	auth.SetCookie(w, id, expires, s.secure)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged in successfully"})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Delete(auth.SessionID(r))
	auth.ClearCookie(w, s.secure)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out successfully"})
}

func (s *Server) authStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"isAuthenticated": s.sessions.Authenticated(r)})
}
