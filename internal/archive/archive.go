// Package archive organizes backups in a remote object store as a shared
// root folder, one subfolder per project, and artifact files inside it.
//
// Folder provisioning is query-then-create and is not atomic. Two concurrent
// callers can both create a folder; when that happens the oldest folder is
// used from then on and the newer one is left in place. Project folders are
// keyed by display name, so renaming a project orphans its earlier backups
// under the old name.
package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/joescharf/projectops/internal/models"
)

const (
	// DefaultRootFolder is the shared folder every backup lives under.
	DefaultRootFolder = "Project-Ops Backups"
	// DefaultTimeout bounds each archive operation end to end. Downloads are
	// bounded only until the stream is open.
	DefaultTimeout = 30 * time.Second
)

// Options configures a Client.
type Options struct {
	RootFolder string
	Timeout    time.Duration
	Now        func() time.Time
}

// Client implements folder-scoped backup operations on top of a Remote.
type Client struct {
	remote     Remote
	rootFolder string
	timeout    time.Duration
	now        func() time.Time
}

// New creates a Client. Zero-valued options take the package defaults.
func New(remote Remote, opts Options) *Client {
	c := &Client{
		remote:     remote,
		rootFolder: opts.RootFolder,
		timeout:    opts.Timeout,
		now:        opts.Now,
	}
	if c.rootFolder == "" {
		c.rootFolder = DefaultRootFolder
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Download is an open artifact stream plus its resolved metadata.
// The caller must close Body.
type Download struct {
	Name     string
	MimeType string
	Size     int64
	Body     io.ReadCloser
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// ensureFolder returns the id of the named folder under parentID, creating
// it when none exists.
func (c *Client) ensureFolder(ctx context.Context, name, parentID string) (string, error) {
	ids, err := c.remote.FindFolders(ctx, name, parentID)
	if err != nil {
		return "", err
	}
	if len(ids) > 1 {
		slog.Warn("duplicate archive folders, using oldest", "name", name, "count", len(ids))
	}
	if len(ids) > 0 {
		return ids[0], nil
	}

	id, err := c.remote.CreateFolder(ctx, name, parentID)
	if err != nil {
		return "", err
	}
	slog.Info("created archive folder", "name", name, "id", id)
	return id, nil
}

// EnsureRootFolder returns the id of the shared backup folder.
func (c *Client) EnsureRootFolder(ctx context.Context) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.ensureFolder(ctx, c.rootFolder, "")
}

func (c *Client) projectFolder(ctx context.Context, projectName string) (string, error) {
	rootID, err := c.ensureFolder(ctx, c.rootFolder, "")
	if err != nil {
		return "", err
	}
	return c.ensureFolder(ctx, projectName, rootID)
}

// EnsureProjectFolder returns the id of the project's subfolder of the root.
func (c *Client) EnsureProjectFolder(ctx context.Context, projectName string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.projectFolder(ctx, projectName)
}

// ListArtifacts returns the project's backups, newest first. Nothing is
// cached; every call goes to the remote.
func (c *Client) ListArtifacts(ctx context.Context, projectName string) ([]*models.BackupArtifact, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	folderID, err := c.projectFolder(ctx, projectName)
	if err != nil {
		return nil, err
	}
	artifacts, err := c.remote.ListChildren(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if artifacts == nil {
		artifacts = []*models.BackupArtifact{}
	}
	return artifacts, nil
}

// UploadArtifact stores body in the project's folder under
// BackupFileName(now, fileName).
func (c *Client) UploadArtifact(ctx context.Context, projectName, fileName, mimeType string, body io.Reader) (*models.BackupArtifact, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	folderID, err := c.projectFolder(ctx, projectName)
	if err != nil {
		return nil, err
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return c.remote.CreateFile(ctx, BackupFileName(c.now(), fileName), folderID, mimeType, body)
}

// UploadToRoot stores body directly in the shared root folder under name.
func (c *Client) UploadToRoot(ctx context.Context, name, mimeType string, body io.Reader) (*models.BackupArtifact, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	rootID, err := c.ensureFolder(ctx, c.rootFolder, "")
	if err != nil {
		return nil, err
	}
	return c.remote.CreateFile(ctx, name, rootID, mimeType, body)
}

// Metadata fetches name, creation time, size and mime type of an artifact.
func (c *Client) Metadata(ctx context.Context, fileID string) (*models.BackupArtifact, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.remote.GetMetadata(ctx, fileID)
}

// DownloadArtifact opens an artifact for reading. The timeout covers the
// metadata lookup and opening the stream, not reading Body; the stream stays
// tied to ctx until Body is closed.
func (c *Client) DownloadArtifact(ctx context.Context, fileID string) (*Download, error) {
	metaCtx, metaCancel := c.withTimeout(ctx)
	meta, err := c.remote.GetMetadata(metaCtx, fileID)
	metaCancel()
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(c.timeout, cancel)
	body, err := c.remote.GetMedia(streamCtx, fileID)
	if !timer.Stop() {
		if err == nil {
			_ = body.Close()
		}
		cancel()
		return nil, fmt.Errorf("open artifact %s: %w", fileID, context.DeadlineExceeded)
	}
	if err != nil {
		cancel()
		return nil, err
	}

	mimeType := meta.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &Download{
		Name:     meta.Name,
		MimeType: mimeType,
		Size:     meta.Size,
		Body:     &cancelOnClose{ReadCloser: body, cancel: cancel},
	}, nil
}

// DeleteArtifact removes an artifact permanently.
func (c *Client) DeleteArtifact(ctx context.Context, fileID string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.remote.DeleteFile(ctx, fileID); err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
