package repository

import (
	"context"
	"sync"
	"time"

	"github.com/BHSajuu/Note-Taking-web-applications/pkg/domain"
	"github.com/google/uuid"
)

// MemoryIdentityStore keeps identities in process memory. It enforces the
// same uniqueness and conditional-update rules as the database stores.
type MemoryIdentityStore struct {
	mu         sync.RWMutex
	identities map[uuid.UUID]domain.Identity
	byEmail    map[string]uuid.UUID
	byExternal map[string]uuid.UUID
	now        func() time.Time
}

// NewMemoryIdentityStore creates an empty in-memory store.
func NewMemoryIdentityStore() *MemoryIdentityStore {
	return &MemoryIdentityStore{
		identities: make(map[uuid.UUID]domain.Identity),
		byEmail:    make(map[string]uuid.UUID),
		byExternal: make(map[string]uuid.UUID),
		now:        time.Now,
	}
}

// GetByID retrieves an identity by ID.
func (s *MemoryIdentityStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.identities[id]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	return &identity, nil
}

// GetByEmail retrieves an identity by email.
func (s *MemoryIdentityStore) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok || email == "" {
		return nil, domain.ErrIdentityNotFound
	}
	identity := s.identities[id]
	return &identity, nil
}

// GetByExternalID retrieves an identity by OAuth subject.
func (s *MemoryIdentityStore) GetByExternalID(ctx context.Context, externalID string) (*domain.Identity, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byExternal[externalID]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	identity := s.identities[id]
	return &identity, nil
}

// Create stores a new identity.
func (s *MemoryIdentityStore) Create(ctx context.Context, identity *domain.Identity) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(identity)
}

func (s *MemoryIdentityStore) insertLocked(identity *domain.Identity) error {
	if _, ok := s.identities[identity.ID]; ok {
		return domain.ErrIdentityAlreadyExists
	}
	if identity.Email != "" {
		if _, ok := s.byEmail[identity.Email]; ok {
			return domain.ErrIdentityAlreadyExists
		}
	}
	if identity.ExternalID != nil {
		if _, ok := s.byExternal[*identity.ExternalID]; ok {
			return domain.ErrExternalIDTaken
		}
	}

	now := s.now()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	if identity.UpdatedAt.IsZero() {
		identity.UpdatedAt = now
	}

	s.identities[identity.ID] = *identity
	if identity.Email != "" {
		s.byEmail[identity.Email] = identity.ID
	}
	if identity.ExternalID != nil {
		s.byExternal[*identity.ExternalID] = identity.ID
	}
	return nil
}

// FindOrCreateForSignupChallenge creates a pending identity or refreshes the
// code of an existing pending one.
func (s *MemoryIdentityStore) FindOrCreateForSignupChallenge(ctx context.Context, challenge domain.SignupChallenge) (*domain.Identity, domain.ChallengeOutcome, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := challenge.CodeHash
	expiresAt := challenge.CodeExpiresAt

	if id, ok := s.byEmail[challenge.Email]; ok {
		identity := s.identities[id]
		if !identity.HasPendingCode() {
			return nil, 0, domain.ErrIdentityAlreadyExists
		}
		identity.CodeHash = &hash
		identity.CodeExpiresAt = &expiresAt
		identity.UpdatedAt = s.now()
		s.identities[id] = identity
		return &identity, domain.ChallengeExisting, nil
	}

	identity := &domain.Identity{
		ID:            uuid.New(),
		Email:         challenge.Email,
		Name:          challenge.Name,
		DateOfBirth:   challenge.DateOfBirth,
		CodeHash:      &hash,
		CodeExpiresAt: &expiresAt,
	}
	if err := s.insertLocked(identity); err != nil {
		return nil, 0, err
	}
	created := *identity
	return &created, domain.ChallengeCreated, nil
}

// SetChallenge overwrites the pending code of an identity.
func (s *MemoryIdentityStore) SetChallenge(ctx context.Context, id uuid.UUID, codeHash string, expiresAt time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok {
		return domain.ErrIdentityNotFound
	}
	identity.CodeHash = &codeHash
	identity.CodeExpiresAt = &expiresAt
	identity.UpdatedAt = s.now()
	s.identities[id] = identity
	return nil
}

// ClearChallenge clears the pending code if it still equals expectedHash.
func (s *MemoryIdentityStore) ClearChallenge(ctx context.Context, id uuid.UUID, expectedHash string, verifiedAt *time.Time) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok || identity.CodeHash == nil || *identity.CodeHash != expectedHash {
		return false, nil
	}
	identity.CodeHash = nil
	identity.CodeExpiresAt = nil
	if verifiedAt != nil {
		at := *verifiedAt
		identity.VerifiedAt = &at
	}
	identity.UpdatedAt = s.now()
	s.identities[id] = identity
	return true, nil
}

// AttachExternalID links an OAuth subject to an identity that has none.
func (s *MemoryIdentityStore) AttachExternalID(ctx context.Context, id uuid.UUID, externalID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok {
		return domain.ErrIdentityNotFound
	}
	if identity.ExternalID != nil {
		return domain.ErrExternalIDTaken
	}
	if _, taken := s.byExternal[externalID]; taken {
		return domain.ErrExternalIDTaken
	}
	identity.ExternalID = &externalID
	identity.UpdatedAt = s.now()
	s.identities[id] = identity
	s.byExternal[externalID] = id
	return nil
}
