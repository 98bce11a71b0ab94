package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/infrastructure/redis"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/logger"
)

type RateLimiter interface {
	AllowFixedWindow(ctx context.Context, key string, limit int, window time.Duration) (redis.Decision, error)
}

// FixedWindowConfig defines the configuration for a fixed-window rate limit.
type FixedWindowConfig struct {
	RouteKey string
	Limit    int
	Window   time.Duration
}

// RateLimit uses the shared redis limiter when there is one and falls back to
// an in-process per-IP limiter otherwise.
func RateLimit(limiter RateLimiter, cfg FixedWindowConfig, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	if limiter != nil {
		return RateLimitFixedWindow(limiter, cfg, writeErr)
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return httprate.Limit(
		cfg.Limit,
		cfg.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeErr(w, r, domain.ErrRateLimited(cfg.RouteKey))
		}),
	)
}

func RateLimitFixedWindow(limiter RateLimiter, cfg FixedWindowConfig, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.RouteKey == "" {
		cfg.RouteKey = "unknown"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || cfg.Limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			identity := userOrIP(r)
			bucket := windowBucket(time.Now(), cfg.Window)
			key := fmt.Sprintf("rl:%s:%s:%d", cfg.RouteKey, identity, bucket)

			dec, err := limiter.AllowFixedWindow(r.Context(), key, cfg.Limit, cfg.Window)
			if err != nil {
				// fail-open
				logger.WithCtx(r.Context()).Warn().Err(err).Str("route", cfg.RouteKey).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))

			if !dec.Allowed {
				if dec.RetryAfter > 0 {
					secs := int(dec.RetryAfter.Seconds())
					if secs < 1 {
						secs = 1
					}
					w.Header().Set("Retry-After", strconv.Itoa(secs))
				}
				writeErr(w, r, domain.ErrRateLimited(cfg.RouteKey))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func windowBucket(now time.Time, window time.Duration) int64 {
	sec := int64(window.Seconds())
	if sec <= 0 {
		sec = 60
	}
	return now.Unix() / sec
}

// userOrIP prefers the gated identity if present; otherwise falls back to client IP.
func userOrIP(r *http.Request) string {
	if id, ok := IdentityFromContext(r.Context()); ok {
		return "u:" + id.ID
	}
	return "ip:" + clientIP(r)
}

// clientIP trusts RemoteAddr only; chi's RealIP runs first when the service
// sits behind a proxy that sets X-Forwarded-For.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
