package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/BHSajuu/Note-Taking-web-applications/pkg/domain"
	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	googleIssuer       = "https://accounts.google.com"
	googleScopeEmail   = "email"
	googleScopeProfile = "profile"
)

// ErrNonceMismatch is returned when the ID token does not carry the nonce
// sent with the authorization request.
var ErrNonceMismatch = errors.New("id token nonce mismatch")

// GoogleConfig holds Google OAuth configuration.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type googleClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// GoogleProvider runs the authorization-code exchange with Google.
type GoogleProvider struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogleProvider discovers Google's OpenID configuration and returns a
// provider for the given client.
func NewGoogleProvider(ctx context.Context, config GoogleConfig) (*GoogleProvider, error) {
	p, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("new oidc provider: %w", err)
	}
	return newGoogleProvider(config, p.Verifier(&oidc.Config{ClientID: config.ClientID})), nil
}

func newGoogleProvider(config GoogleConfig, verifier *oidc.IDTokenVerifier) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, googleScopeProfile, googleScopeEmail},
			Endpoint:     endpoints.Google,
		},
		verifier: verifier,
	}
}

// AuthCodeURL returns the consent page URL carrying state and nonce.
func (g *GoogleProvider) AuthCodeURL(state, nonce string) string {
	return g.config.AuthCodeURL(state, oidc.Nonce(nonce))
}

// Exchange trades an authorization code for the caller's profile.
func (g *GoogleProvider) Exchange(ctx context.Context, code, nonce string) (ExternalProfile, error) {
	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return ExternalProfile{}, fmt.Errorf("exchange code: %w", err)
	}

	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return ExternalProfile{}, errors.New("token response has no id_token")
	}

	idTok, err := g.verifier.Verify(ctx, raw)
	if err != nil {
		return ExternalProfile{}, fmt.Errorf("verify id token: %w", err)
	}
	if idTok.Nonce != nonce {
		return ExternalProfile{}, ErrNonceMismatch
	}

	var claims googleClaims
	if err := idTok.Claims(&claims); err != nil {
		return ExternalProfile{}, fmt.Errorf("read claims: %w", err)
	}

	return ExternalProfile{
		Provider:      domain.ProviderGoogle,
		Subject:       idTok.Subject,
		DisplayName:   claims.Name,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
	}, nil
}
