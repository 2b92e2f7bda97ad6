package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// fakeDrive is a minimal stand-in for the Drive v3 REST surface.
type fakeDrive struct {
	mu       sync.Mutex
	requests []*http.Request
	queries  []string
	auth     []string
	handler  func(w http.ResponseWriter, r *http.Request)
}

func newFakeDrive(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*fakeDrive, *DriveRemote) {
	t.Helper()
	fd := &fakeDrive{handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fd.mu.Lock()
		fd.requests = append(fd.requests, r)
		fd.queries = append(fd.queries, r.URL.Query().Get("q"))
		fd.auth = append(fd.auth, r.Header.Get("Authorization"))
		fd.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fd.handler(w, r)
	}))
	t.Cleanup(srv.Close)

	remote := NewDriveRemote(StaticTokenProvider{AccessToken: "tok-1"},
		option.WithEndpoint(srv.URL+"/drive/v3/"))
	return fd, remote
}

func TestDriveRemote_FindFoldersEscapesName(t *testing.T) {
	fd, remote := newFakeDrive(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"files":[{"id":"old","name":"Bob's"},{"id":"new","name":"Bob's"}]}`)
	})

	ids, err := remote.FindFolders(context.Background(), "Bob's", "root-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "new"}, ids)

	require.Len(t, fd.queries, 1)
	assert.Contains(t, fd.queries[0], `name='Bob\'s'`)
	assert.Contains(t, fd.queries[0], `'root-1' in parents`)
	assert.Contains(t, fd.queries[0], "mimeType='"+FolderMimeType+"'")
	assert.Contains(t, fd.queries[0], "trashed=false")
	assert.Equal(t, "createdTime", fd.requests[0].URL.Query().Get("orderBy"))
	assert.Equal(t, "Bearer tok-1", fd.auth[0])
}

func TestDriveRemote_ListChildrenPagesAndParses(t *testing.T) {
	fd, remote := newFakeDrive(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = io.WriteString(w, `{"nextPageToken":"p2","files":[
				{"id":"b","name":"backup-b","createdTime":"2024-03-05T10:00:01.000Z","size":"42","mimeType":"application/zip","webViewLink":"https://v/b"}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"files":[{"id":"a","name":"backup-a","createdTime":"2024-03-05T10:00:00.000Z","size":"7"}]}`)
	})

	list, err := remote.ListChildren(context.Background(), "folder-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, int64(42), list[0].Size)
	assert.Equal(t, "https://v/b", list[0].WebViewLink)
	assert.Equal(t, 2024, list[0].CreatedTime.Year())
	assert.Equal(t, "a", list[1].ID)

	assert.Equal(t, "'folder-1' in parents and trashed=false", fd.queries[0])
	assert.Equal(t, "createdTime desc", fd.requests[0].URL.Query().Get("orderBy"))
}

func TestDriveRemote_CreateFileSendsMetadataAndMedia(t *testing.T) {
	var gotMeta map[string]any
	var gotBody, gotType string
	_, remote := newFakeDrive(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		mr := multipart.NewReader(r.Body, params["boundary"])

		part, err := mr.NextPart()
		require.NoError(t, err)
		require.NoError(t, json.NewDecoder(part).Decode(&gotMeta))

		part, err = mr.NextPart()
		require.NoError(t, err)
		gotType = part.Header.Get("Content-Type")
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		gotBody = string(data)

		_, _ = io.WriteString(w, `{"id":"new-file","name":"backup-x","size":"5","webViewLink":"https://v/new-file"}`)
	})

	a, err := remote.CreateFile(context.Background(), "backup-x", "folder-1", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "new-file", a.ID)
	assert.Equal(t, "https://v/new-file", a.WebViewLink)

	assert.Equal(t, "backup-x", gotMeta["name"])
	assert.Equal(t, []any{"folder-1"}, gotMeta["parents"])
	assert.Equal(t, "hello", gotBody)
	assert.Contains(t, gotType, "text/plain")
}

func TestDriveRemote_GetMediaAndDelete(t *testing.T) {
	_, remote := newFakeDrive(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Query().Get("alt") == "media":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = io.WriteString(w, "payload")
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	ctx := context.Background()

	body, err := remote.GetMedia(ctx, "file-1")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "payload", string(data))

	assert.NoError(t, remote.DeleteFile(ctx, "file-1"))
}

func TestDriveRemote_APIErrorIsWrapped(t *testing.T) {
	_, remote := newFakeDrive(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"File not found: nope."}}`)
	})

	_, err := remote.GetMetadata(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get metadata nope")
	assert.Contains(t, err.Error(), "File not found")
}

type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) Token(context.Context) (*oauth2.Token, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &oauth2.Token{AccessToken: "fresh", TokenType: "Bearer"}, nil
}

func TestDriveRemote_TokenRequestedPerCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"files":[]}`)
	}))
	t.Cleanup(srv.Close)

	p := &countingProvider{}
	remote := NewDriveRemote(p, option.WithEndpoint(srv.URL+"/drive/v3/"))
	ctx := context.Background()

	_, err := remote.FindFolders(ctx, "x", "")
	require.NoError(t, err)
	_, err = remote.ListChildren(ctx, "y")
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls)
}

func TestDriveRemote_NotConnectedSkipsNetwork(t *testing.T) {
	fd, _ := newFakeDrive(t, func(w http.ResponseWriter, r *http.Request) {})

	remote := NewDriveRemote(&countingProvider{err: errors.Join(ErrNotConnected, errors.New("no token"))})
	_, err := remote.FindFolders(context.Background(), "x", "")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, fd.requests)

	_, err = NewDriveRemote(nil).ListChildren(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConnected)
}
