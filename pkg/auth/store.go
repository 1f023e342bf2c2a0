package auth

import (
	"context"
	"time"

	"github.com/BHSajuu/Note-Taking-web-applications/pkg/domain"
	"github.com/google/uuid"
)

// IdentityStore persists identities. Implementations live in pkg/repository.
type IdentityStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.Identity, error)

	// Create inserts a new identity. It returns domain.ErrIdentityAlreadyExists
	// on an email conflict and domain.ErrExternalIDTaken on an external id conflict.
	Create(ctx context.Context, identity *domain.Identity) error

	// FindOrCreateForSignupChallenge creates the identity or refreshes the code
	// of one that is still pending. An existing identity without a pending
	// code yields domain.ErrIdentityAlreadyExists.
	FindOrCreateForSignupChallenge(ctx context.Context, challenge domain.SignupChallenge) (*domain.Identity, domain.ChallengeOutcome, error)

	// SetChallenge overwrites the pending code of an identity.
	SetChallenge(ctx context.Context, id uuid.UUID, codeHash string, expiresAt time.Time) error

	// ClearChallenge clears the pending code only if the stored hash still
	// equals expectedHash. It reports whether the clear happened. A non-nil
	// verifiedAt is recorded on the identity.
	ClearChallenge(ctx context.Context, id uuid.UUID, expectedHash string, verifiedAt *time.Time) (bool, error)

	// AttachExternalID links an OAuth subject to an identity that has none.
	AttachExternalID(ctx context.Context, id uuid.UUID, externalID string) error
}

// Dispatcher delivers one-time codes to their owners.
type Dispatcher interface {
	SendCode(ctx context.Context, msg domain.CodeMessage) error
}
