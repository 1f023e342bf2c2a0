package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BHSajuu/Note-Taking-web-applications/internal/config"
	"github.com/BHSajuu/Note-Taking-web-applications/internal/httputil"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration for one bucket.
type RateLimitConfig struct {
	Bucket   string
	Requests int
	Window   time.Duration
	Logger   *slog.Logger
}

// RateLimit creates a per-client-IP rate limiter that answers 429 with the
// usual {"message"} body once the bucket is spent.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				cfg.Logger.Warn("rate limit exceeded",
					"bucket", cfg.Bucket,
					"ip", r.RemoteAddr,
					"path", r.URL.Path,
					"request_id", chimw.GetReqID(r.Context()),
				)
			}
			httputil.Error(w, http.StatusTooManyRequests, "Too many requests, please try again later.")
		}),
	)
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// Rate limiter buckets.
const (
	BucketAuth    = "auth"
	BucketVerify  = "verify"
	BucketOAuth   = "oauth"
	BucketProfile = "profile"
)

// CreateRateLimiters creates rate limiting middleware functions based on configuration.
func CreateRateLimiters(cfg config.RateLimitConfig, logger *slog.Logger) map[string]func(http.Handler) http.Handler {
	if !cfg.Enabled {
		noOp := NoRateLimit()
		return map[string]func(http.Handler) http.Handler{
			BucketAuth:    noOp,
			BucketVerify:  noOp,
			BucketOAuth:   noOp,
			BucketProfile: noOp,
		}
	}

	return map[string]func(http.Handler) http.Handler{
		BucketAuth: RateLimit(RateLimitConfig{
			Bucket:   BucketAuth,
			Requests: cfg.AuthRequestsPerMinute,
			Window:   time.Duration(cfg.AuthWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
		BucketVerify: RateLimit(RateLimitConfig{
			Bucket:   BucketVerify,
			Requests: cfg.VerifyRequestsPerWindow,
			Window:   time.Duration(cfg.VerifyWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
		BucketOAuth: RateLimit(RateLimitConfig{
			Bucket:   BucketOAuth,
			Requests: cfg.OAuthRequestsPerMinute,
			Window:   time.Duration(cfg.OAuthWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
		BucketProfile: RateLimit(RateLimitConfig{
			Bucket:   BucketProfile,
			Requests: cfg.ProfileRequestsPerMinute,
			Window:   time.Duration(cfg.ProfileWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
	}
}
