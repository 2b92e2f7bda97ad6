package archive

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/joescharf/projectops/internal/models"
)

const (
	folderFields   = "files(id, name, createdTime)"
	artifactFields = "id, name, createdTime, size, mimeType, webContentLink, webViewLink"
)

// DriveRemote implements Remote on the Google Drive v3 API.
//
// A fresh *drive.Service is built for every call from a freshly requested
// token.
type DriveRemote struct {
	tokens TokenProvider
	opts   []option.ClientOption
}

// NewDriveRemote creates a DriveRemote. Extra client options are appended to
// every service (tests use option.WithEndpoint).
func NewDriveRemote(tokens TokenProvider, opts ...option.ClientOption) *DriveRemote {
	return &DriveRemote{tokens: tokens, opts: opts}
}

func (r *DriveRemote) service(ctx context.Context) (*drive.Service, error) {
	if r.tokens == nil {
		return nil, fmt.Errorf("%w: no token provider", ErrNotConnected)
	}
	tok, err := r.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(tok))}, r.opts...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return svc, nil
}

func (r *DriveRemote) FindFolders(ctx context.Context, name, parentID string) ([]string, error) {
	svc, err := r.service(ctx)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", escapeQuery(name), FolderMimeType)
	if parentID != "" {
		q = fmt.Sprintf("name='%s' and '%s' in parents and mimeType='%s' and trashed=false",
			escapeQuery(name), escapeQuery(parentID), FolderMimeType)
	}

	list, err := svc.Files.List().Q(q).Fields(folderFields).OrderBy("createdTime").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("find folder %q: %w", name, err)
	}

	ids := make([]string, 0, len(list.Files))
	for _, f := range list.Files {
		ids = append(ids, f.Id)
	}
	return ids, nil
}

func (r *DriveRemote) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	svc, err := r.service(ctx)
	if err != nil {
		return "", err
	}

	meta := &drive.File{Name: name, MimeType: FolderMimeType}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	f, err := svc.Files.Create(meta).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}
	return f.Id, nil
}

func (r *DriveRemote) ListChildren(ctx context.Context, parentID string) ([]*models.BackupArtifact, error) {
	svc, err := r.service(ctx)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(parentID))
	var out []*models.BackupArtifact
	err = svc.Files.List().
		Q(q).
		Fields(googleapi.Field("nextPageToken, files("+artifactFields+")")).
		OrderBy("createdTime desc").
		PageSize(100).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				out = append(out, toArtifact(f))
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list folder %s: %w", parentID, err)
	}
	return out, nil
}

func (r *DriveRemote) CreateFile(ctx context.Context, name, parentID, mimeType string, body io.Reader) (*models.BackupArtifact, error) {
	svc, err := r.service(ctx)
	if err != nil {
		return nil, err
	}

	meta := &drive.File{Name: name, Parents: []string{parentID}}
	f, err := svc.Files.Create(meta).
		Media(body, googleapi.ContentType(mimeType)).
		Fields(artifactFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("upload %q: %w", name, err)
	}
	return toArtifact(f), nil
}

func (r *DriveRemote) GetMedia(ctx context.Context, fileID string) (io.ReadCloser, error) {
	svc, err := r.service(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", fileID, err)
	}
	return resp.Body, nil
}

func (r *DriveRemote) DeleteFile(ctx context.Context, fileID string) error {
	svc, err := r.service(ctx)
	if err != nil {
		return err
	}

	if err := svc.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete %s: %w", fileID, err)
	}
	return nil
}

func (r *DriveRemote) GetMetadata(ctx context.Context, fileID string) (*models.BackupArtifact, error) {
	svc, err := r.service(ctx)
	if err != nil {
		return nil, err
	}

	f, err := svc.Files.Get(fileID).Fields("id, name, createdTime, size, mimeType").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get metadata %s: %w", fileID, err)
	}
	return toArtifact(f), nil
}

func toArtifact(f *drive.File) *models.BackupArtifact {
	a := &models.BackupArtifact{
		ID:             f.Id,
		Name:           f.Name,
		Size:           f.Size,
		MimeType:       f.MimeType,
		WebViewLink:    f.WebViewLink,
		WebContentLink: f.WebContentLink,
	}
	if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
		a.CreatedTime = t
	}
	return a
}
