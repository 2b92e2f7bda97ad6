package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticVerifier(t *testing.T) {
	v := StaticVerifier{Username: "admin", Password: "s3cret"}

	assert.True(t, v.Verify("admin", "s3cret"))
	assert.False(t, v.Verify("admin", "wrong"))
	assert.False(t, v.Verify("other", "s3cret"))
	assert.False(t, v.Verify("", ""))

	empty := StaticVerifier{Username: "admin"}
	assert.False(t, empty.Verify("admin", ""), "no password configured means no login")
}

func TestSessions_CreateLookupDelete(t *testing.T) {
	s := NewSessions(time.Hour)

	id, expires := s.Create("admin")
	require.NotEmpty(t, id)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	user, ok := s.Lookup(id)
	assert.True(t, ok)
	assert.Equal(t, "admin", user)

	s.Delete(id)
	_, ok = s.Lookup(id)
	assert.False(t, ok)

	_, ok = s.Lookup("")
	assert.False(t, ok)
}

func TestSessions_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSessions(time.Hour)
	s.now = func() time.Time { return now }

	id, _ := s.Create("admin")
	now = now.Add(59 * time.Minute)
	_, ok := s.Lookup(id)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = s.Lookup(id)
	assert.False(t, ok)
	assert.Zero(t, s.Len(), "expired session is dropped on lookup")
}

func TestSessions_CreatePrunesExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSessions(time.Minute)
	s.now = func() time.Time { return now }

	s.Create("a")
	s.Create("b")
	now = now.Add(2 * time.Minute)
	s.Create("c")
	assert.Equal(t, 1, s.Len())
}

func TestNewSessions_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewSessions(0).TTL())
	assert.Equal(t, 7*24*time.Hour, DefaultTTL)
}

func TestRequireAuth(t *testing.T) {
	s := NewSessions(time.Hour)
	h := s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Not authenticated"}`, w.Body.String())

	id, _ := s.Create("admin")
	req = httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: id})
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTeapot, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "forged"})
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSetAndClearCookie(t *testing.T) {
	w := httptest.NewRecorder()
	SetCookie(w, "abc", time.Now().Add(DefaultTTL), true)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, "abc", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	w = httptest.NewRecorder()
	ClearCookie(w, false)
	cookies = w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestLoginLimiter(t *testing.T) {
	l := NewLoginLimiter(DefaultLoginRate, DefaultLoginBurst)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < DefaultLoginBurst; i++ {
		assert.True(t, l.AllowAt("10.0.0.1", start), "attempt %d", i)
	}
	assert.False(t, l.AllowAt("10.0.0.1", start))
	assert.True(t, l.AllowAt("10.0.0.2", start), "addresses are limited separately")

	assert.True(t, l.AllowAt("10.0.0.1", start.Add(13*time.Second)), "one token refills every 12s")
}

func TestClientAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", clientAddr(req))

	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", clientAddr(req))
}
