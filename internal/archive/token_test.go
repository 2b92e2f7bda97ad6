package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectorServer(t *testing.T, calls *int32, settings map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.Header.Get(DefaultConnectorHeader) != "repl abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		items := []any{}
		if settings != nil {
			items = append(items, map[string]any{"settings": settings})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStaticTokenProvider(t *testing.T) {
	tok, err := StaticTokenProvider{AccessToken: "abc"}.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok.AccessToken)

	_, err = StaticTokenProvider{}.Token(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestUnavailableTokenProvider(t *testing.T) {
	_, err := UnavailableTokenProvider{Err: errors.New("open creds.json: no such file")}.Token(context.Background())
	require.ErrorIs(t, err, ErrNotConnected)
	assert.Contains(t, err.Error(), "creds.json")

	wrapped := fmt.Errorf("%w: parse credentials", ErrNotConnected)
	_, err = UnavailableTokenProvider{Err: wrapped}.Token(context.Background())
	assert.Equal(t, wrapped, err)

	_, err = UnavailableTokenProvider{}.Token(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnectorTokenProvider_CachesUntilExpiry(t *testing.T) {
	var calls int32
	srv := connectorServer(t, &calls, map[string]any{
		"access_token": "tok-1",
		"expires_at":   time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})

	p := &ConnectorTokenProvider{URL: srv.URL, Identity: "repl abc"}
	for i := 0; i < 3; i++ {
		tok, err := p.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tok.AccessToken)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestConnectorTokenProvider_RefetchesExpired(t *testing.T) {
	var calls int32
	srv := connectorServer(t, &calls, map[string]any{
		"access_token": "tok-old",
		"expires_at":   time.Now().Add(-time.Minute).UTC().Format(time.RFC3339),
	})

	p := &ConnectorTokenProvider{URL: srv.URL, Identity: "repl abc"}
	_, err := p.Token(context.Background())
	require.NoError(t, err)
	_, err = p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestConnectorTokenProvider_NoExpiryNeverCached(t *testing.T) {
	var calls int32
	srv := connectorServer(t, &calls, map[string]any{
		"oauth": map[string]any{"credentials": map[string]any{"access_token": "nested"}},
	})

	p := &ConnectorTokenProvider{URL: srv.URL, Identity: "repl abc"}
	tok, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "nested", tok.AccessToken, "falls back to oauth credentials")

	_, err = p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestConnectorTokenProvider_NotConnected(t *testing.T) {
	var calls int32
	empty := connectorServer(t, &calls, nil)

	tests := []struct {
		name string
		p    *ConnectorTokenProvider
	}{
		{"no url", &ConnectorTokenProvider{Identity: "repl abc"}},
		{"no identity", &ConnectorTokenProvider{URL: empty.URL}},
		{"wrong identity", &ConnectorTokenProvider{URL: empty.URL, Identity: "nope"}},
		{"no items", &ConnectorTokenProvider{URL: empty.URL, Identity: "repl abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.p.Token(context.Background())
			assert.ErrorIs(t, err, ErrNotConnected)
		})
	}
}

func TestNewServiceAccountTokenProvider_BadJSON(t *testing.T) {
	_, err := NewServiceAccountTokenProvider(context.Background(), []byte("not json"))
	assert.ErrorIs(t, err, ErrNotConnected)
}
