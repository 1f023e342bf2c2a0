package auth

import (
	"fmt"
	"time"

	"github.com/BHSajuu/Note-Taking-web-applications/pkg/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// MinSecretLength is the shortest HS256 signing secret accepted.
	MinSecretLength = 32

	DefaultSessionTTL         = 7 * 24 * time.Hour
	DefaultExtendedSessionTTL = 30 * 24 * time.Hour
)

// TokenConfig holds session token configuration.
type TokenConfig struct {
	Secret []byte
	Issuer string
}

// SessionClaims is the payload of a session token.
type SessionClaims struct {
	IdentityID string `json:"id"`
	jwt.RegisteredClaims
}

// SessionToken is a signed token and the moment it stops being valid.
type SessionToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenIssuer mints and validates stateless session tokens.
type TokenIssuer struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenIssuer creates a token issuer. The secret must be provisioned.
func NewTokenIssuer(config TokenConfig) (*TokenIssuer, error) {
	if len(config.Secret) < MinSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}
	return &TokenIssuer{config: config, now: time.Now}, nil
}

// Issue signs a token for identityID valid for ttl from now.
func (t *TokenIssuer) Issue(identityID uuid.UUID, ttl time.Duration) (*SessionToken, error) {
	now := t.now()
	claims := SessionClaims{
		IdentityID: identityID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.config.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &SessionToken{
		Token:     signed,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Validate checks signature and expiry and returns the claims.
func (t *TokenIssuer) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.config.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

// IdentityIDFromToken validates a token and returns the identity it names.
func (t *TokenIssuer) IdentityIDFromToken(tokenString string) (uuid.UUID, error) {
	claims, err := t.Validate(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(claims.IdentityID)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidToken
	}
	return id, nil
}
