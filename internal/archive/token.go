package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

// ErrNotConnected means no usable credentials exist for the remote archive.
var ErrNotConnected = errors.New("remote archive not connected")

// TokenProvider hands out a bearer token that is valid at the time of the call.
// Callers ask again for every remote operation instead of holding on to a client.
type TokenProvider interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// StaticTokenProvider serves a fixed access token, typically from config.
type StaticTokenProvider struct {
	AccessToken string
}

func (p StaticTokenProvider) Token(_ context.Context) (*oauth2.Token, error) {
	if p.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token configured", ErrNotConnected)
	}
	return &oauth2.Token{AccessToken: p.AccessToken, TokenType: "Bearer"}, nil
}

// ServiceAccountTokenProvider mints tokens from Google credentials JSON
// (service account or authorized user) scoped to Drive.
type ServiceAccountTokenProvider struct {
	src oauth2.TokenSource
}

// NewServiceAccountTokenProvider parses credentials JSON. The returned
// provider refreshes its token whenever the cached one expires.
func NewServiceAccountTokenProvider(ctx context.Context, credentialsJSON []byte) (*ServiceAccountTokenProvider, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("%w: parse credentials: %v", ErrNotConnected, err)
	}
	return &ServiceAccountTokenProvider{src: creds.TokenSource}, nil
}

func (p *ServiceAccountTokenProvider) Token(_ context.Context) (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return tok, nil
}

// UnavailableTokenProvider stands in when the configured credentials cannot
// be loaded. Every call fails with Err wrapped in ErrNotConnected.
type UnavailableTokenProvider struct {
	Err error
}

func (p UnavailableTokenProvider) Token(_ context.Context) (*oauth2.Token, error) {
	if p.Err == nil {
		return nil, ErrNotConnected
	}
	if errors.Is(p.Err, ErrNotConnected) {
		return nil, p.Err
	}
	return nil, fmt.Errorf("%w: %v", ErrNotConnected, p.Err)
}

// DefaultConnectorHeader carries the caller identity to the connector service.
const DefaultConnectorHeader = "X_REPLIT_TOKEN"

// ConnectorTokenProvider fetches an OAuth access token from an external
// connector service and reuses it only until it expires.
type ConnectorTokenProvider struct {
	URL        string
	Identity   string
	Header     string
	HTTPClient *http.Client

	mu     sync.Mutex
	cached *oauth2.Token
}

// connectorResponse mirrors the subset of the connector payload we read.
type connectorResponse struct {
	Items []struct {
		Settings struct {
			AccessToken string `json:"access_token"`
			ExpiresAt   string `json:"expires_at"`
			OAuth       struct {
				Credentials struct {
					AccessToken string `json:"access_token"`
				} `json:"credentials"`
			} `json:"oauth"`
		} `json:"settings"`
	} `json:"items"`
}

func (p *ConnectorTokenProvider) Token(ctx context.Context) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && p.cached.Valid() {
		return p.cached, nil
	}

	tok, err := p.fetch(ctx)
	if err != nil {
		return nil, err
	}
	// A token without a known expiry is never reused.
	if tok.Expiry.IsZero() {
		p.cached = nil
	} else {
		p.cached = tok
	}
	return tok, nil
}

func (p *ConnectorTokenProvider) fetch(ctx context.Context) (*oauth2.Token, error) {
	if p.URL == "" {
		return nil, fmt.Errorf("%w: connector URL not configured", ErrNotConnected)
	}
	if p.Identity == "" {
		return nil, fmt.Errorf("%w: connector identity token not found", ErrNotConnected)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build connector request: %w", err)
	}
	header := p.Header
	if header == "" {
		header = DefaultConnectorHeader
	}
	req.Header.Set("Accept", "application/json")
	// Set directly: the connector expects the exact, non-canonical header name.
	req.Header[header] = []string{p.Identity}

	client := p.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: connector request: %v", ErrNotConnected, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: connector returned %s", ErrNotConnected, resp.Status)
	}

	var payload connectorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode connector response: %v", ErrNotConnected, err)
	}
	if len(payload.Items) == 0 {
		return nil, fmt.Errorf("%w: no connection configured", ErrNotConnected)
	}

	settings := payload.Items[0].Settings
	access := settings.AccessToken
	if access == "" {
		access = settings.OAuth.Credentials.AccessToken
	}
	if access == "" {
		return nil, fmt.Errorf("%w: connection has no access token", ErrNotConnected)
	}

	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if settings.ExpiresAt != "" {
		if exp, err := time.Parse(time.RFC3339, settings.ExpiresAt); err == nil {
			tok.Expiry = exp
		}
	}
	return tok, nil
}
