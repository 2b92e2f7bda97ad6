// Package archivetest provides an in-memory archive.Remote for tests.
package archivetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/joescharf/projectops/internal/archive"
	"github.com/joescharf/projectops/internal/models"
)

type entry struct {
	artifact *models.BackupArtifact
	parentID string
	folder   bool
	data     []byte
}

// Remote is an in-memory archive.Remote that records call counts.
// Set Err to make every call fail with it.
type Remote struct {
	mu      sync.Mutex
	seq     int
	clock   time.Time
	entries map[string]*entry

	Err   error
	Calls map[string]int
}

var _ archive.Remote = (*Remote)(nil)

// NewRemote returns an empty fake.
func NewRemote() *Remote {
	return &Remote{
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		entries: make(map[string]*entry),
		Calls:   make(map[string]int),
	}
}

// Count returns how many times the named method was called.
func (r *Remote) Count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Calls[method]
}

// Data returns the stored bytes of a file.
func (r *Remote) Data(id string) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		return e.data
	}
	return nil
}

// Folders returns the ids of folders with the given name under parentID.
func (r *Remote) Folders(name, parentID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findLocked(name, parentID)
}

func (r *Remote) call(method string) error {
	r.Calls[method]++
	return r.Err
}

func (r *Remote) add(e *entry) string {
	r.seq++
	r.clock = r.clock.Add(time.Second)
	id := fmt.Sprintf("f%03d", r.seq)
	e.artifact.ID = id
	e.artifact.CreatedTime = r.clock
	r.entries[id] = e
	return id
}

func (r *Remote) findLocked(name, parentID string) []string {
	var matches []*entry
	for _, e := range r.entries {
		if e.folder && e.artifact.Name == name && (parentID == "" || e.parentID == parentID) {
			matches = append(matches, e)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].artifact.CreatedTime.Before(matches[j].artifact.CreatedTime)
	})
	ids := make([]string, 0, len(matches))
	for _, e := range matches {
		ids = append(ids, e.artifact.ID)
	}
	return ids
}

func (r *Remote) FindFolders(_ context.Context, name, parentID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("FindFolders"); err != nil {
		return nil, err
	}
	return r.findLocked(name, parentID), nil
}

func (r *Remote) CreateFolder(_ context.Context, name, parentID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("CreateFolder"); err != nil {
		return "", err
	}
	return r.add(&entry{
		artifact: &models.BackupArtifact{Name: name, MimeType: archive.FolderMimeType},
		parentID: parentID,
		folder:   true,
	}), nil
}

func (r *Remote) ListChildren(_ context.Context, parentID string) ([]*models.BackupArtifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("ListChildren"); err != nil {
		return nil, err
	}
	var out []*models.BackupArtifact
	for _, e := range r.entries {
		if e.parentID == parentID {
			a := *e.artifact
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedTime.After(out[j].CreatedTime) })
	return out, nil
}

func (r *Remote) CreateFile(_ context.Context, name, parentID, mimeType string, body io.Reader) (*models.BackupArtifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("CreateFile"); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	e := &entry{
		artifact: &models.BackupArtifact{
			Name:     name,
			MimeType: mimeType,
			Size:     int64(len(data)),
		},
		parentID: parentID,
		data:     data,
	}
	id := r.add(e)
	e.artifact.WebViewLink = "https://drive.example/file/" + id + "/view"
	a := *e.artifact
	return &a, nil
}

func (r *Remote) GetMedia(_ context.Context, fileID string) (io.ReadCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("GetMedia"); err != nil {
		return nil, err
	}
	e, ok := r.entries[fileID]
	if !ok || e.folder {
		return nil, fmt.Errorf("file %s not found", fileID)
	}
	return io.NopCloser(bytes.NewReader(e.data)), nil
}

func (r *Remote) DeleteFile(_ context.Context, fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("DeleteFile"); err != nil {
		return err
	}
	if _, ok := r.entries[fileID]; !ok {
		return fmt.Errorf("file %s not found", fileID)
	}
	delete(r.entries, fileID)
	return nil
}

func (r *Remote) GetMetadata(_ context.Context, fileID string) (*models.BackupArtifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("GetMetadata"); err != nil {
		return nil, err
	}
	e, ok := r.entries[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s not found", fileID)
	}
	a := *e.artifact
	a.WebViewLink = ""
	a.WebContentLink = ""
	return &a, nil
}
