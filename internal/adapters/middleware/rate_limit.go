package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/spaceko/resource-status-service/internal/core/ports"
	"github.com/spaceko/resource-status-service/internal/logging"
)

// RateLimit caps requests per client IP under the given key prefix. A
// limiter failure lets the request through.
func RateLimit(limiter ports.RateLimiter, prefix string, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logging.OrDefault(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			ok, err := limiter.Allow(r.Context(), prefix+":"+ip)
			if err != nil {
				logging.Component(r.Context(), logger, "RateLimit", prefix).
					WarnContext(r.Context(), "rate limiter unavailable, allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				logging.Component(r.Context(), logger, "RateLimit", prefix).
					InfoContext(r.Context(), "rate limit exceeded", "client_ip", ip)
				writeError(w, http.StatusTooManyRequests, "too many attempts, please try again later", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP prefers the first X-Forwarded-For hop, then RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
