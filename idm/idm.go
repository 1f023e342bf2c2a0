// Package idm provides passwordless authentication for the notes app:
// one-time email codes and Google sign-in, both ending in a signed
// session token.
//
// Basic usage:
//
//	store := repository.NewIdentitiesRepository(db)
//	mailer := notification.NewEmailService(notification.EmailConfig{...})
//
//	auth, err := idm.New(ctx, idm.Config{
//	    Store:      store,
//	    Dispatcher: mailer,
//	    JWTSecret:  "your-secret-key-at-least-32-chars",
//	    ClientURL:  "http://localhost:5173",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":5000", auth.Handler())
//
// With Google sign-in:
//
//	auth, err := idm.New(ctx, idm.Config{
//	    ...
//	    Google: &idm.GoogleConfig{
//	        ClientID:     "your-client-id",
//	        ClientSecret: "your-client-secret",
//	        RedirectURI:  "http://localhost:5000/api/auth/google/callback",
//	    },
//	})
package idm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BHSajuu/Note-Taking-web-applications/internal/config"
	httpserver "github.com/BHSajuu/Note-Taking-web-applications/internal/http"
	"github.com/BHSajuu/Note-Taking-web-applications/internal/http/features/google"
	"github.com/BHSajuu/Note-Taking-web-applications/internal/http/middleware"
	"github.com/BHSajuu/Note-Taking-web-applications/pkg/auth"
	"github.com/BHSajuu/Note-Taking-web-applications/pkg/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds per-bucket request limits.
type RateLimitConfig = config.RateLimitConfig

// SecurityHeadersConfig holds response security header values.
type SecurityHeadersConfig = config.SecurityHeadersConfig

// Config holds the configuration for the IDM library.
type Config struct {
	// Store persists identities (required).
	Store auth.IdentityStore

	// Dispatcher delivers one-time codes (required).
	Dispatcher auth.Dispatcher

	// JWTSecret signs session tokens (required, min 32 bytes).
	JWTSecret string

	// JWTIssuer is the issuer claim in session tokens (default: "notes-auth").
	JWTIssuer string

	// SessionTTL is the default session lifetime (default: 7 days).
	SessionTTL time.Duration

	// ExtendedSessionTTL is used when the client asks to stay signed in (default: 30 days).
	ExtendedSessionTTL time.Duration

	// CodeTTL is how long a one-time code stays valid (default: 10 minutes).
	CodeTTL time.Duration

	// BcryptCost is the cost used to hash codes (default: 10).
	BcryptCost int

	StrictEmailValidation bool
	BlockDisposableEmail  bool

	// Google enables Google sign-in (optional).
	Google *GoogleConfig

	// GoogleProvider replaces the provider built from Google.
	GoogleProvider GoogleProvider

	// LinkByEmail attaches a Google account to an existing identity with
	// the same verified email instead of failing.
	LinkByEmail bool

	// Redis shares OAuth state between instances (optional).
	Redis redis.UniversalClient

	// ClientURL is the web client origin that OAuth redirects back to.
	ClientURL string

	MaxRequestBodyBytes int64
	RateLimit           RateLimitConfig
	SecurityHeaders     SecurityHeadersConfig

	// Logger is the structured logger (default: slog.Default()).
	Logger *slog.Logger
}

// GoogleConfig holds Google OAuth configuration.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// GoogleProvider runs the provider side of the Google sign-in flow.
type GoogleProvider interface {
	AuthCodeURL(state, nonce string) string
	Exchange(ctx context.Context, code, nonce string) (auth.ExternalProfile, error)
}

// IDM is the main identity management instance.
type IDM struct {
	config      Config
	tokens      *auth.TokenIssuer
	otpService  *auth.OTPService
	linker      *auth.LinkerService
	memoryState *google.MemoryStateStore
	handler     http.Handler
}

// New creates a new IDM instance with the given configuration. When
// Google is set and GoogleProvider is not, New fetches Google's discovery
// document using ctx.
func New(ctx context.Context, cfg Config) (*IDM, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.JWTIssuer,
	})
	if err != nil {
		return nil, err
	}

	otpService := auth.NewOTPService(auth.OTPConfig{
		CodeTTL:               cfg.CodeTTL,
		BcryptCost:            cfg.BcryptCost,
		SessionTTL:            cfg.SessionTTL,
		ExtendedSessionTTL:    cfg.ExtendedSessionTTL,
		StrictEmailValidation: cfg.StrictEmailValidation,
		BlockDisposableEmail:  cfg.BlockDisposableEmail,
	}, cfg.Store, cfg.Dispatcher, tokens, cfg.Logger)

	linker := auth.NewLinkerService(auth.LinkerConfig{LinkByEmail: cfg.LinkByEmail}, cfg.Store, cfg.Logger)

	i := &IDM{
		config:     cfg,
		tokens:     tokens,
		otpService: otpService,
		linker:     linker,
	}

	provider := cfg.GoogleProvider
	if provider == nil && cfg.Google != nil {
		provider, err = auth.NewGoogleProvider(ctx, auth.GoogleConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURI,
		})
		if err != nil {
			return nil, err
		}
	}

	var stateStore google.StateStore
	if provider != nil {
		if cfg.Redis != nil {
			stateStore = google.NewRedisStateStore(cfg.Redis)
			cfg.Logger.Info("Google OAuth: using Redis state storage")
		} else {
			i.memoryState = google.NewMemoryStateStore()
			stateStore = i.memoryState
			cfg.Logger.Warn("Google OAuth: using in-memory state storage (not safe for multi-replica)")
		}
	}

	i.handler = httpserver.NewRouter(httpserver.RouterConfig{
		Logger:              cfg.Logger,
		Codes:               otpService,
		Identities:          cfg.Store,
		Tokens:              tokens,
		GoogleProvider:      provider,
		Linker:              linker,
		StateStore:          stateStore,
		ClientURL:           cfg.ClientURL,
		SessionTTL:          cfg.SessionTTL,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		RateLimitConfig:     cfg.RateLimit,
		SecurityHeaders:     cfg.SecurityHeaders,
	})

	return i, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Store == nil {
		return errors.New("idm: Store is required")
	}
	if cfg.Dispatcher == nil {
		return errors.New("idm: Dispatcher is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("idm: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("idm: JWTSecret must be at least %d characters", auth.MinSecretLength)
	}
	if cfg.Google != nil && (cfg.Google.ClientID == "" || cfg.Google.ClientSecret == "" || cfg.Google.RedirectURI == "") {
		return errors.New("idm: Google requires ClientID, ClientSecret and RedirectURI")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "notes-auth"
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = auth.DefaultSessionTTL
	}
	if cfg.ExtendedSessionTTL == 0 {
		cfg.ExtendedSessionTTL = auth.DefaultExtendedSessionTTL
	}
	if cfg.CodeTTL == 0 {
		cfg.CodeTTL = auth.DefaultCodeTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = auth.DefaultBcryptCost
	}
	if cfg.ClientURL == "" {
		cfg.ClientURL = "http://localhost:5173"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}

// Handler returns the http.Handler serving /health and /api/auth/*.
func (i *IDM) Handler() http.Handler {
	return i.handler
}

// AuthMiddleware returns middleware that requires a valid bearer token.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(auth.AuthMiddleware())
//	    r.Get("/api/notes", listNotes)
//	})
func (i *IDM) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(i.tokens)
}

// GetIdentityID extracts the identity ID from a request.
// Use after AuthMiddleware.
func GetIdentityID(r *http.Request) (uuid.UUID, bool) {
	return middleware.GetIdentityID(r.Context())
}

// GetIdentity loads the signed-in identity.
// Use after AuthMiddleware.
func (i *IDM) GetIdentity(r *http.Request) (*domain.IdentitySummary, error) {
	id, ok := middleware.GetIdentityID(r.Context())
	if !ok {
		return nil, errors.New("identity not authenticated")
	}

	identity, err := i.config.Store.GetByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	summary := identity.Summary()
	return &summary, nil
}

// IdentityIDFromToken validates a session token outside of HTTP.
func (i *IDM) IdentityIDFromToken(token string) (uuid.UUID, error) {
	return i.tokens.IdentityIDFromToken(token)
}

// Close releases background resources.
func (i *IDM) Close() {
	if i.memoryState != nil {
		i.memoryState.Close()
	}
}
