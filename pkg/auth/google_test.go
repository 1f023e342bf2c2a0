package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/BHSajuu/Note-Taking-web-applications/pkg/domain"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testClientID = "client-123.apps.googleusercontent.com"

type fakeGoogle struct {
	t       *testing.T
	key     *rsa.PrivateKey
	server  *httptest.Server
	nonce   string
	noToken bool
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeGoogle{t: t, key: key}
	f.server = httptest.NewServer(http.HandlerFunc(f.token))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGoogle) token(w http.ResponseWriter, r *http.Request) {
	require.NoError(f.t, r.ParseForm())
	assert.Equal(f.t, "auth-code", r.PostForm.Get("code"))

	resp := map[string]any{
		"access_token": "access",
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if !f.noToken {
		now := time.Now()
		idToken, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
			"iss":            googleIssuer,
			"aud":            testClientID,
			"sub":            "google-sub-42",
			"iat":            now.Unix(),
			"exp":            now.Add(time.Hour).Unix(),
			"nonce":          f.nonce,
			"email":          "grace@example.com",
			"email_verified": true,
			"name":           "Grace Hopper",
		}).SignedString(f.key)
		require.NoError(f.t, err)
		resp["id_token"] = idToken
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeGoogle) provider() *GoogleProvider {
	keys := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&f.key.PublicKey}}
	verifier := oidc.NewVerifier(googleIssuer, keys, &oidc.Config{ClientID: testClientID})

	p := newGoogleProvider(GoogleConfig{
		ClientID:     testClientID,
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:5000/api/auth/google/callback",
	}, verifier)
	p.config.Endpoint = oauth2.Endpoint{
		AuthURL:   "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:  f.server.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	return p
}

func TestGoogleProvider_AuthCodeURL(t *testing.T) {
	p := newFakeGoogle(t).provider()

	raw := p.AuthCodeURL("state-abc", "nonce-xyz")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "state-abc", q.Get("state"))
	assert.Equal(t, "nonce-xyz", q.Get("nonce"))
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid profile email", q.Get("scope"))
}

func TestGoogleProvider_Exchange(t *testing.T) {
	fake := newFakeGoogle(t)
	fake.nonce = "nonce-xyz"

	profile, err := fake.provider().Exchange(context.Background(), "auth-code", "nonce-xyz")
	require.NoError(t, err)
	assert.Equal(t, ExternalProfile{
		Provider:      domain.ProviderGoogle,
		Subject:       "google-sub-42",
		DisplayName:   "Grace Hopper",
		Email:         "grace@example.com",
		EmailVerified: true,
	}, profile)
}

func TestGoogleProvider_ExchangeRejectsWrongNonce(t *testing.T) {
	fake := newFakeGoogle(t)
	fake.nonce = "replayed"

	_, err := fake.provider().Exchange(context.Background(), "auth-code", "nonce-xyz")
	assert.ErrorIs(t, err, ErrNonceMismatch)
}

func TestGoogleProvider_ExchangeRequiresIDToken(t *testing.T) {
	fake := newFakeGoogle(t)
	fake.noToken = true

	_, err := fake.provider().Exchange(context.Background(), "auth-code", "nonce-xyz")
	assert.Error(t, err)
}
