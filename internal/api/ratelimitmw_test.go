package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"linkbio/internal/ratelimit"
)

func TestClientIP(t *testing.T) {
	cases := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"remote addr", "203.0.113.9:41234", "", "203.0.113.9"},
		{"remote addr no port", "203.0.113.9", "", "203.0.113.9"},
		{"forwarded single", "10.0.0.1:80", "198.51.100.7", "198.51.100.7"},
		{"forwarded chain", "10.0.0.1:80", "198.51.100.7, 10.0.0.2, 10.0.0.1", "198.51.100.7"},
		{"forwarded padded", "10.0.0.1:80", "  198.51.100.7  ", "198.51.100.7"},
		{"forwarded empty", "203.0.113.9:41234", "   ", "203.0.113.9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			if got := ClientIP(r); got != tc.want {
				t.Fatalf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIPRateLimitDeniesWithRetryAfter(t *testing.T) {
	lim := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Config{
		Max:    1,
		Window: time.Minute,
		Scope:  "public",
	})

	var served int
	h := IPRateLimit(lim)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served++
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/public/events", nil)
	req.RemoteAddr = "203.0.113.9:41234"

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
	if served != 1 {
		t.Fatalf("handler served %d times, want 1", served)
	}

	// Another address has its own budget.
	other := httptest.NewRequest(http.MethodGet, "/v1/public/events", nil)
	other.RemoteAddr = "198.51.100.7:5000"
	w = httptest.NewRecorder()
	h.ServeHTTP(w, other)
	if w.Code != http.StatusNoContent {
		t.Fatalf("other client status = %d", w.Code)
	}
}
