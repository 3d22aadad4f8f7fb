package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitCapsPerClient(t *testing.T) {
	handler := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string) int {
		r := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
		r.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w.Code
	}

	if send("10.0.0.1:1234") != http.StatusOK || send("10.0.0.1:1234") != http.StatusOK {
		t.Fatal("requests under the cap rejected")
	}
	if send("10.0.0.1:1234") != http.StatusTooManyRequests {
		t.Fatal("request over the cap allowed")
	}
	// Other clients have their own window.
	if send("10.0.0.2:1234") != http.StatusOK {
		t.Fatal("unrelated client throttled")
	}
}

func TestRateLimitWindowRollsOver(t *testing.T) {
	handler := RateLimit(1, 20*time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
	r.RemoteAddr = "10.0.0.1:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second hit = %d, want 429", w.Code)
	}

	time.Sleep(30 * time.Millisecond)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("post-rollover hit = %d, want 200", w.Code)
	}
}

func TestLimiterSweepsExpiredWindows(t *testing.T) {
	l := newLimiter(5, time.Minute)
	start := time.Now()

	for i := 0; i < 100; i++ {
		l.allow(string(rune('a'+i%26))+string(rune('0'+i/26)), start)
	}
	if len(l.windows) != 100 {
		t.Fatalf("windows = %d, want 100", len(l.windows))
	}

	// One request after every window expired sweeps the idle clients out.
	l.allow("fresh-client", start.Add(2*time.Minute))
	if len(l.windows) != 1 {
		t.Fatalf("windows after sweep = %d, want 1", len(l.windows))
	}
	if _, ok := l.windows["fresh-client"]; !ok {
		t.Fatal("active client swept")
	}
}

func TestClientIPPrefersForwardedHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := clientIP(r); got != "203.0.113.7" {
		t.Fatalf("clientIP = %q", got)
	}

	r.Header.Set("X-Forwarded-For", "garbage")
	if got := clientIP(r); got != "10.0.0.1" {
		t.Fatalf("clientIP fallback = %q", got)
	}
}
