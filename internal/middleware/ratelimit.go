package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sankalp/sankalp/internal/cache"
)

// RateLimitConfig describes one fixed-window limit.
type RateLimitConfig struct {
	// Name separates counters of different limits, e.g. "api" and "auth".
	Name   string
	Limit  int
	Window time.Duration
}

// RateLimit counts requests per client in a fixed window stored in the
// cache, keyed by client IP (chi's RealIP has already rewritten RemoteAddr).
//
// When the cache is unreachable the request is let through and a warning is
// logged. Losing the limiter is better than losing the API.
func RateLimit(store cache.Store, cfg RateLimitConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := fmt.Sprintf("ratelimit:%s:%s", cfg.Name, clientKey(r))

			count, ttl, err := store.Incr(r.Context(), key, cfg.Window)
			if err != nil {
				logger.Warn("rate limiter unavailable",
					slog.String("limit", cfg.Name),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if ttl <= 0 {
				ttl = cfg.Window
			}

			remaining := cfg.Limit - int(count)
			if remaining < 0 {
				remaining = 0
			}
			reset := time.Now().Add(ttl)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if count > int64(cfg.Limit) {
				retry := int(math.Ceil(ttl.Seconds()))
				h.Set("Retry-After", strconv.Itoa(retry))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = fmt.Fprintf(w, `{"error":"rate_limited","message":"too many requests, retry in %d seconds"}`+"\n", retry)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
