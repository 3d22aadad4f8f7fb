package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

type window struct {
	hits    int
	resetAt time.Time
}

// limiter applies a fixed-window per-client cap. Windows are keyed by
// client IP; expired windows across all clients are swept whenever any
// client's own window rolls over, so idle clients do not accumulate.
type limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	per     time.Duration
}

func newLimiter(limit int, per time.Duration) *limiter {
	return &limiter{
		windows: make(map[string]*window),
		limit:   limit,
		per:     per,
	}
}

func (l *limiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	win, ok := l.windows[key]
	if !ok || now.After(win.resetAt) {
		l.sweep(now)
		win = &window{resetAt: now.Add(l.per)}
		l.windows[key] = win
	}
	win.hits++
	return win.hits <= l.limit
}

// sweep drops every expired window. Callers hold l.mu.
func (l *limiter) sweep(now time.Time) {
	for key, win := range l.windows {
		if now.After(win.resetAt) {
			delete(l.windows, key)
		}
	}
}

// RateLimit caps each client to limit requests per window.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	l := newLimiter(limit, per)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientIP(r), time.Now()) {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		first := strings.TrimSpace(strings.SplitN(xf, ",", 2)[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
