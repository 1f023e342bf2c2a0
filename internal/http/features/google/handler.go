package google

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/BHSajuu/Note-Taking-web-applications/pkg/auth"
	"github.com/google/uuid"
)

// Provider runs the provider side of the authorization code flow.
type Provider interface {
	AuthCodeURL(state, nonce string) string
	Exchange(ctx context.Context, code, nonce string) (auth.ExternalProfile, error)
}

// Linker maps a provider profile to a local identity.
type Linker interface {
	Link(ctx context.Context, profile auth.ExternalProfile) (*auth.LinkResult, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(identityID uuid.UUID, ttl time.Duration) (*auth.SessionToken, error)
}

// Config holds the redirect targets and lifetimes for the OAuth flow.
type Config struct {
	ClientURL  string
	SessionTTL time.Duration
	StateTTL   time.Duration
}

// Handler handles Google OAuth endpoints.
type Handler struct {
	config     Config
	provider   Provider
	linker     Linker
	tokens     TokenIssuer
	stateStore StateStore
	logger     *slog.Logger
	now        func() time.Time
}

// NewHandler creates a new Google handler.
func NewHandler(
	config Config,
	provider Provider,
	linker Linker,
	tokens TokenIssuer,
	stateStore StateStore,
	logger *slog.Logger,
) *Handler {
	if config.SessionTTL == 0 {
		config.SessionTTL = auth.DefaultSessionTTL
	}
	if config.StateTTL == 0 {
		config.StateTTL = DefaultStateTTL
	}
	return &Handler{
		config:     config,
		provider:   provider,
		linker:     linker,
		tokens:     tokens,
		stateStore: stateStore,
		logger:     logger,
		now:        time.Now,
	}
}

// generateRandomString generates a cryptographically secure random string.
func generateRandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Start initiates the Google OAuth flow.
// GET /api/auth/google
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	state, err := generateRandomString(32)
	if err != nil {
		h.fail(w, r, "generate state", err)
		return
	}
	nonce, err := generateRandomString(32)
	if err != nil {
		h.fail(w, r, "generate nonce", err)
		return
	}

	entry := OAuthState{Nonce: nonce, ExpiresAt: h.now().Add(h.config.StateTTL)}
	if err := h.stateStore.Save(r.Context(), state, entry); err != nil {
		h.fail(w, r, "save state", err)
		return
	}

	http.Redirect(w, r, h.provider.AuthCodeURL(state, nonce), http.StatusFound)
}

// Callback completes the flow and hands the client a session token.
// GET /api/auth/google/callback?code=...&state=...
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if errorParam := query.Get("error"); errorParam != "" {
		h.fail(w, r, "provider returned error", errors.New(errorParam))
		return
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		h.fail(w, r, "callback", errors.New("missing code or state"))
		return
	}

	entry, ok, err := h.stateStore.Consume(r.Context(), state)
	if err != nil {
		h.fail(w, r, "consume state", err)
		return
	}
	if !ok {
		h.fail(w, r, "consume state", errors.New("invalid or expired state"))
		return
	}

	profile, err := h.provider.Exchange(r.Context(), code, entry.Nonce)
	if err != nil {
		h.fail(w, r, "exchange code", err)
		return
	}

	result, err := h.linker.Link(r.Context(), profile)
	if err != nil {
		h.fail(w, r, "link identity", err)
		return
	}

	token, err := h.tokens.Issue(result.Identity.ID, h.config.SessionTTL)
	if err != nil {
		h.fail(w, r, "issue token", err)
		return
	}

	h.logger.Info("google sign-in",
		"identity_id", result.Identity.ID,
		"created", result.Created,
		"linked", result.Linked,
	)

	target := fmt.Sprintf("%s/login/success?token=%s", h.config.ClientURL, url.QueryEscape(token.Token))
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, step string, err error) {
	h.logger.Warn("google sign-in failed", "step", step, "error", err)
	http.Redirect(w, r, h.config.ClientURL+"/login/failed", http.StatusFound)
}
