// Package auth implements the single-user login used by the dashboard API:
// a credential Verifier, an in-memory session table and the middleware that
// guards every protected route.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// CookieName is the session cookie set on login.
	CookieName = "projectops_session"
	// DefaultTTL is how long a session stays valid after login.
	DefaultTTL = 7 * 24 * time.Hour
)

// Verifier decides whether a username/password pair may log in.
type Verifier interface {
	Verify(username, password string) bool
}

// StaticVerifier accepts exactly one configured credential pair.
// An empty password never verifies.
type StaticVerifier struct {
	Username string
	Password string
}

func (v StaticVerifier) Verify(username, password string) bool {
	if v.Password == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(v.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(v.Password)) == 1
	return userOK && passOK
}

type session struct {
	username string
	expires  time.Time
}

// Sessions is an in-memory session table. Sessions do not survive a restart.
type Sessions struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]session
}

// NewSessions creates a session table. A non-positive ttl uses DefaultTTL.
func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Sessions{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]session),
	}
}

// TTL returns the lifetime of new sessions.
func (s *Sessions) TTL() time.Duration { return s.ttl }

// Create starts a session for username and returns its id and expiry.
func (s *Sessions) Create(username string) (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	id := uuid.NewString()
	expires := s.now().Add(s.ttl)
	s.entries[id] = session{username: username, expires: expires}
	return id, expires
}

// Lookup returns the username of a live session.
func (s *Sessions) Lookup(id string) (string, bool) {
	if id == "" {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.entries[id]
	if !ok {
		return "", false
	}
	if !s.now().Before(sess.expires) {
		delete(s.entries, id)
		return "", false
	}
	return sess.username, true
}

// Delete ends a session. Unknown ids are ignored.
func (s *Sessions) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Len returns the number of stored sessions, expired or not.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Sessions) pruneLocked() {
	now := s.now()
	for id, sess := range s.entries {
		if !now.Before(sess.expires) {
			delete(s.entries, id)
		}
	}
}

// SessionID returns the session cookie value of r, if any.
func SessionID(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// Authenticated reports whether r carries a live session.
func (s *Sessions) Authenticated(r *http.Request) bool {
	_, ok := s.Lookup(SessionID(r))
	return ok
}

// RequireAuth rejects requests without a live session with 401.
func (s *Sessions) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Authenticated(r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Not authenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetCookie writes the session cookie.
func SetCookie(w http.ResponseWriter, id string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie on the client.
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
