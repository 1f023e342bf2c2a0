package domain

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire format of a date of birth.
const DateLayout = "2006-01-02"

// Identity represents a registered person.
type Identity struct {
	ID          uuid.UUID
	Email       string
	Name        string
	DateOfBirth *time.Time
	// ExternalID is the OAuth provider subject, set only for identities
	// created or linked through OAuth.
	ExternalID *string
	// CodeHash and CodeExpiresAt hold the single outstanding one-time code.
	CodeHash      *string
	CodeExpiresAt *time.Time
	VerifiedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasPendingCode returns true if a one-time code is waiting to be verified.
func (i *Identity) HasPendingCode() bool {
	return i.CodeHash != nil && *i.CodeHash != ""
}

// CodeExpired returns true if the pending code is past its expiry at now.
// An identity without an expiry is treated as expired.
func (i *Identity) CodeExpired(now time.Time) bool {
	if i.CodeExpiresAt == nil {
		return true
	}
	return now.After(*i.CodeExpiresAt)
}

// Summary returns the projection that is safe to hand to clients.
func (i *Identity) Summary() IdentitySummary {
	return IdentitySummary{
		ID:          i.ID.String(),
		Name:        i.Name,
		Email:       i.Email,
		DateOfBirth: FormatDate(i.DateOfBirth),
	}
}

// FormatDate renders a date of birth in DateLayout, or nil when unset.
func FormatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(DateLayout)
	return &s
}

// IdentitySummary is the client-facing view of an identity.
type IdentitySummary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	DateOfBirth *string `json:"dateOfBirth,omitempty"`
}

// SignupChallenge carries everything needed to create or refresh an
// identity awaiting signup verification.
type SignupChallenge struct {
	Email         string
	Name          string
	DateOfBirth   *time.Time
	CodeHash      string
	CodeExpiresAt time.Time
}

// ChallengeOutcome tells whether a signup challenge created a new identity.
type ChallengeOutcome int

const (
	ChallengeCreated ChallengeOutcome = iota + 1
	ChallengeExisting
)

func (o ChallengeOutcome) String() string {
	switch o {
	case ChallengeCreated:
		return "created"
	case ChallengeExisting:
		return "existing"
	default:
		return "unknown"
	}
}

// ProviderGoogle names the only supported OAuth provider.
const ProviderGoogle = "google"

// CodeMessage is a one-time code ready to be delivered to its owner.
type CodeMessage struct {
	To     string
	Name   string
	Code   string
	Signin bool
	TTL    time.Duration
}
