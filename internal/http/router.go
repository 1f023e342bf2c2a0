package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BHSajuu/Note-Taking-web-applications/internal/config"
	"github.com/BHSajuu/Note-Taking-web-applications/internal/http/features/google"
	"github.com/BHSajuu/Note-Taking-web-applications/internal/http/features/me"
	"github.com/BHSajuu/Note-Taking-web-applications/internal/http/features/otp"
	"github.com/BHSajuu/Note-Taking-web-applications/internal/http/middleware"
	"github.com/BHSajuu/Note-Taking-web-applications/internal/httputil"
	"github.com/BHSajuu/Note-Taking-web-applications/pkg/auth"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger     *slog.Logger
	Codes      otp.CodeService
	Identities me.IdentityGetter
	Tokens     *auth.TokenIssuer

	// Google routes are registered only when GoogleProvider is set.
	GoogleProvider google.Provider
	Linker         google.Linker
	StateStore     google.StateStore

	ClientURL           string
	SessionTTL          time.Duration
	MaxRequestBodyBytes int64
	RateLimitConfig     config.RateLimitConfig
	SecurityHeaders     config.SecurityHeadersConfig
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.CORS(cfg.ClientURL))
	if cfg.MaxRequestBodyBytes > 0 {
		r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodyBytes))
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Create rate limiters for different endpoint types
	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	otpHandler := otp.NewHandler(cfg.Codes, cfg.Logger)
	r.With(rateLimiters[middleware.BucketAuth]).Post("/api/auth/request-otp", otpHandler.RequestCode)
	r.With(rateLimiters[middleware.BucketVerify]).Post("/api/auth/verify-otp", otpHandler.VerifyCode)

	// Register Google OAuth routes (if configured)
	if cfg.GoogleProvider != nil {
		stateStore := cfg.StateStore
		if stateStore == nil {
			stateStore = google.NewMemoryStateStore()
			cfg.Logger.Warn("Google OAuth: using in-memory state storage (not safe for multi-replica)")
		}
		googleHandler := google.NewHandler(
			google.Config{
				ClientURL:  cfg.ClientURL,
				SessionTTL: cfg.SessionTTL,
			},
			cfg.GoogleProvider,
			cfg.Linker,
			cfg.Tokens,
			stateStore,
			cfg.Logger,
		)
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters[middleware.BucketOAuth])
			r.Get("/api/auth/google", googleHandler.Start)
			r.Get("/api/auth/google/callback", googleHandler.Callback)
		})
	}

	// Register profile routes
	meHandler := me.NewHandler(cfg.Logger, cfg.Identities)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Tokens))
		r.Use(rateLimiters[middleware.BucketProfile])
		r.Get("/api/auth/me", meHandler.GetMe)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, http.StatusNotFound, "Not found")
	})

	return r
}
