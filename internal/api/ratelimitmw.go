package api

import (
	"net"
	"net/http"
	"strings"

	"linkbio/internal/ratelimit"
)

// ClientIP is the identity public endpoints are rate-limited by: the first
// X-Forwarded-For hop when the edge proxy set one, else the connection's
// remote host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		if ip := strings.TrimSpace(xff); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IPRateLimit gates a route group per client address. Denials carry
// Retry-After; the limiter itself fails open if its store is unavailable.
func IPRateLimit(l *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if !l.Allow(r.Context(), ip) {
				WriteRateLimited(w, l.TimeUntilReset(r.Context(), ip))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
