package archive

import (
	"context"
	"io"

	"github.com/joescharf/projectops/internal/models"
)

// FolderMimeType marks a Drive file as a folder.
const FolderMimeType = "application/vnd.google-apps.folder"

// Remote is the set of object-storage primitives the archive is built on.
// Implementations must return errors wrapping ErrNotConnected when no
// credentials are available.
type Remote interface {
	// FindFolders returns ids of non-trashed folders with exactly this name,
	// oldest first. An empty parentID matches folders anywhere.
	FindFolders(ctx context.Context, name, parentID string) ([]string, error)
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	// ListChildren returns the non-trashed children of a folder, newest first.
	ListChildren(ctx context.Context, parentID string) ([]*models.BackupArtifact, error)
	CreateFile(ctx context.Context, name, parentID, mimeType string, body io.Reader) (*models.BackupArtifact, error)
	GetMedia(ctx context.Context, fileID string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, fileID string) error
	GetMetadata(ctx context.Context, fileID string) (*models.BackupArtifact, error)
}
