package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mediaforge/mediaforge-api/internal/pkg/logger"
	"github.com/mediaforge/mediaforge-api/internal/pkg/metrics"
	"github.com/mediaforge/mediaforge-api/internal/pkg/response"
)

// RateLimit implements a fixed-window limiter using Redis INCR/EXPIRE.
// A key found without a TTL gets one, so a counter can never outlive its window.
// Requests are keyed by authenticated user, falling back to the client address.
// Key format: rl:<scope>:<window_seconds>:<identifier>
// A nil client or a Redis error lets the request through.
func RateLimit(client *redis.Client, scope string, maxRequests int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if client == nil || maxRequests <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ident := GetUserID(r.Context())
			if ident == "" {
				ident = r.RemoteAddr
			}
			key := "rl:" + scope + ":" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + ident

			ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
			defer cancel()

			pipe := client.TxPipeline()
			incr := pipe.Incr(ctx, key)
			ttl := pipe.TTL(ctx, key)
			if _, err := pipe.Exec(ctx); err != nil {
				logger.FromContext(r.Context()).Warn().Err(err).Str("scope", scope).Msg("Rate limiter unavailable")
				w.Header().Set("X-RateLimit-Error", "redis-error")
				next.ServeHTTP(w, r)
				return
			}
			val := incr.Val()

			// also repairs a window whose earlier EXPIRE was lost
			if ttl.Val() < 0 {
				if err := client.Expire(ctx, key, window).Err(); err != nil {
					logger.FromContext(r.Context()).Warn().Err(err).Str("scope", scope).Msg("Rate limiter expire failed")
					w.Header().Set("X-RateLimit-Error", "redis-error")
					next.ServeHTTP(w, r)
					return
				}
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(maxRequests))
			remaining := int64(maxRequests) - val
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if val > int64(maxRequests) {
				metrics.RLBlocked.WithLabelValues(scope).Inc()
				response.TooManyRequests(w)
				return
			}

			metrics.RLRequests.WithLabelValues(scope).Inc()
			next.ServeHTTP(w, r)
		})
	}
}
