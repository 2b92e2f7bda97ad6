package auth

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default login throttling: five attempts per minute per client address.
const (
	DefaultLoginRate  = rate.Limit(5.0 / 60.0)
	DefaultLoginBurst = 5
)

// LoginLimiter throttles login attempts per client address.
type LoginLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// NewLoginLimiter creates a limiter allowing burst attempts, refilled at limit.
func NewLoginLimiter(limit rate.Limit, burst int) *LoginLimiter {
	return &LoginLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether a login attempt from r may proceed.
func (l *LoginLimiter) Allow(r *http.Request) bool {
	return l.AllowAt(clientAddr(r), time.Now())
}

// AllowAt is Allow for an explicit key and time.
func (l *LoginLimiter) AllowAt(key string, t time.Time) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.AllowN(t, 1)
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
