// Package backup ties the relational store, the snapshot builder and the
// remote archive together behind the operations the API and CLI expose.
package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/joescharf/projectops/internal/archive"
	"github.com/joescharf/projectops/internal/models"
	"github.com/joescharf/projectops/internal/snapshot"
	"github.com/joescharf/projectops/internal/store"
)

// Client-facing messages.
const (
	msgProjectRequired = "Project ID is required"
	msgNoFile          = "No file uploaded"
	msgProjectNotFound = "Project not found"
	msgNotOwned        = "File does not belong to this project"
	msgGeneric         = "Internal server error"
)

// Archive is the subset of *archive.Client the service uses.
type Archive interface {
	ListArtifacts(ctx context.Context, projectName string) ([]*models.BackupArtifact, error)
	UploadArtifact(ctx context.Context, projectName, fileName, mimeType string, body io.Reader) (*models.BackupArtifact, error)
	UploadToRoot(ctx context.Context, name, mimeType string, body io.Reader) (*models.BackupArtifact, error)
	DownloadArtifact(ctx context.Context, fileID string) (*archive.Download, error)
	DeleteArtifact(ctx context.Context, fileID string) error
}

// ExportResult describes a completed quick export.
type ExportResult struct {
	FileID      string            `json:"fileId"`
	FileName    string            `json:"fileName"`
	WebViewLink string            `json:"webViewLink"`
	Summary     snapshot.Metadata `json:"backupSummary"`
}

// Service orchestrates backups for projects held in the store.
type Service struct {
	reader  snapshot.Reader
	builder *snapshot.Builder
	archive Archive
	now     func() time.Time
}

// NewService creates a Service. A nil clock defaults to time.Now.
func NewService(r snapshot.Reader, a Archive, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		reader:  r,
		builder: snapshot.NewBuilder(r, now),
		archive: a,
		now:     now,
	}
}

// project resolves the authoritative project record.
func (s *Service) project(ctx context.Context, projectID, failMsg string) (*models.Project, error) {
	if projectID == "" {
		return nil, &Error{Kind: KindValidation, Message: msgProjectRequired}
	}
	p, err := s.reader.GetProject(ctx, projectID)
	if err != nil {
		return nil, storeError(err, failMsg)
	}
	return p, nil
}

func storeError(err error, failMsg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return &Error{Kind: KindProjectNotFound, Message: msgProjectNotFound, Err: err}
	}
	return &Error{Kind: KindUnknown, Message: failMsg, Err: err}
}

func remoteError(err error, failMsg string) error {
	if errors.Is(err, archive.ErrNotConnected) {
		return &Error{Kind: KindRemoteNotConnected, Message: failMsg, Err: err}
	}
	return &Error{Kind: KindRemoteOperationFailed, Message: failMsg, Err: err}
}

// QuickExport snapshots the project and uploads it as JSON directly into the
// shared root folder, not the project's subfolder.
func (s *Service) QuickExport(ctx context.Context, projectID string) (*ExportResult, error) {
	const failMsg = "Failed to backup to Google Drive"

	p, err := s.project(ctx, projectID, failMsg)
	if err != nil {
		return nil, err
	}
	doc, err := s.builder.Build(ctx, p.ID)
	if err != nil {
		return nil, storeError(err, failMsg)
	}
	data, err := doc.MarshalIndent()
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Message: failMsg, Err: err}
	}

	name := archive.ExportFileName(s.now(), p.Name)
	a, err := s.archive.UploadToRoot(ctx, name, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, remoteError(err, failMsg)
	}
	return &ExportResult{
		FileID:      a.ID,
		FileName:    a.Name,
		WebViewLink: a.WebViewLink,
		Summary:     doc.Metadata,
	}, nil
}

// List returns the project's backups, newest first.
func (s *Service) List(ctx context.Context, projectID string) ([]*models.BackupArtifact, error) {
	const failMsg = "Failed to list backups"

	p, err := s.project(ctx, projectID, failMsg)
	if err != nil {
		return nil, err
	}
	list, err := s.archive.ListArtifacts(ctx, p.Name)
	if err != nil {
		return nil, remoteError(err, failMsg)
	}
	return list, nil
}

// Upload stores body in the project's folder. The folder is derived from
// the stored project name.
func (s *Service) Upload(ctx context.Context, projectID, fileName, mimeType string, body io.Reader) (*models.BackupArtifact, error) {
	const failMsg = "Failed to upload backup"

	if body == nil || fileName == "" {
		return nil, &Error{Kind: KindValidation, Message: msgNoFile}
	}
	p, err := s.project(ctx, projectID, failMsg)
	if err != nil {
		return nil, err
	}
	a, err := s.archive.UploadArtifact(ctx, p.Name, fileName, mimeType, body)
	if err != nil {
		return nil, remoteError(err, failMsg)
	}
	return a, nil
}

// owned checks that fileID is one of the project's artifacts.
func (s *Service) owned(ctx context.Context, projectID, fileID, failMsg string) error {
	p, err := s.project(ctx, projectID, failMsg)
	if err != nil {
		return err
	}
	list, err := s.archive.ListArtifacts(ctx, p.Name)
	if err != nil {
		return remoteError(err, failMsg)
	}
	for _, a := range list {
		if a.ID == fileID {
			return nil
		}
	}
	return &Error{Kind: KindOwnershipMismatch, Message: msgNotOwned}
}

// Download opens an artifact that belongs to the project. The caller must
// close the returned Body.
func (s *Service) Download(ctx context.Context, projectID, fileID string) (*archive.Download, error) {
	const failMsg = "Failed to download backup"

	if err := s.owned(ctx, projectID, fileID, failMsg); err != nil {
		return nil, err
	}
	d, err := s.archive.DownloadArtifact(ctx, fileID)
	if err != nil {
		return nil, remoteError(err, failMsg)
	}
	return d, nil
}

// Delete permanently removes an artifact that belongs to the project.
func (s *Service) Delete(ctx context.Context, projectID, fileID string) error {
	const failMsg = "Failed to delete backup"

	if err := s.owned(ctx, projectID, fileID, failMsg); err != nil {
		return err
	}
	if err := s.archive.DeleteArtifact(ctx, fileID); err != nil {
		return remoteError(err, failMsg)
	}
	return nil
}

// PublicMessage returns the text to show a client for err. The cause of an
// unknown failure is never included.
func PublicMessage(err error) string {
	var be *Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return msgGeneric
}
