package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"brain2-extractor/pkg/errors"
)

// RateLimiter admits or rejects calls per client key
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	RetryAfter(key string) time.Duration
}

// RateLimit rejects requests from clients that exceeded the limiter with
// 429 and a Retry-After header. Clients are keyed by IP, so RealIP must run
// first when the service sits behind a proxy.
func RateLimit(limiter RateLimiter, errorHandler *errors.ErrorHandler, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("Rate limiter failed, allowing request",
					zap.String("client", key),
					zap.Error(err))
				allowed = true
			}
			if !allowed {
				seconds := int(math.Ceil(limiter.RetryAfter(key).Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				errorHandler.HandleStatus(w, r, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
