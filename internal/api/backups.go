package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

// maxUploadBytes caps a single backup upload.
const maxUploadBytes = 100 << 20

func (s *Server) listBackups(w http.ResponseWriter, r *http.Request) {
	list, err := s.backups.List(r.Context(), r.PathValue("projectId"))
	if err != nil {
		writeBackupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": list})
}

// uploadBackup accepts multipart fields file and projectId. A projectName
// field may be sent but is ignored; the folder comes from the stored project.
func (s *Server) uploadBackup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer func() { _ = file.Close() }()

	artifact, err := s.backups.Upload(r.Context(), r.FormValue("projectId"),
		header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeBackupError(w, err)
		return
	}
	slog.Info("backup uploaded", "project", r.FormValue("projectId"), "file", artifact.Name)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "file": artifact})
}

func (s *Server) downloadBackup(w http.ResponseWriter, r *http.Request) {
	d, err := s.backups.Download(r.Context(), r.PathValue("projectId"), r.PathValue("fileId"))
	if err != nil {
		writeBackupError(w, err)
		return
	}
	defer func() { _ = d.Body.Close() }()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.Name))
	w.Header().Set("Content-Type", d.MimeType)
	if d.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(d.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, d.Body); err != nil {
		// Headers are gone; all that is left is to log it.
		slog.Error("stream backup", "file", r.PathValue("fileId"), "error", err)
	}
}

func (s *Server) deleteBackup(w http.ResponseWriter, r *http.Request) {
	if err := s.backups.Delete(r.Context(), r.PathValue("projectId"), r.PathValue("fileId")); err != nil {
		writeBackupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type backupToDriveRequest struct {
	ProjectID string `json:"projectId"`
}

func (s *Server) backupToDrive(w http.ResponseWriter, r *http.Request) {
	var req backupToDriveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	res, err := s.backups.QuickExport(r.Context(), req.ProjectID)
	if err != nil {
		writeBackupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"fileId":        res.FileID,
		"fileName":      res.FileName,
		"webViewLink":   res.WebViewLink,
		"backupSummary": res.Summary,
	})
}
