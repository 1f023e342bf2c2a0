package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BHSajuu/Note-Taking-web-applications/pkg/domain"
	"github.com/google/uuid"
)

// ExternalProfile is what an OAuth provider reports about a person.
type ExternalProfile struct {
	Provider      string
	Subject       string
	DisplayName   string
	Email         string
	EmailVerified bool
}

// LinkerConfig holds OAuth linking configuration.
type LinkerConfig struct {
	// LinkByEmail attaches a new external subject to an existing identity
	// holding the same provider-verified email instead of creating one.
	LinkByEmail bool
}

// LinkResult is the identity an external profile resolved to.
type LinkResult struct {
	Identity *domain.Identity
	Created  bool
	Linked   bool
}

// LinkError wraps every failure of the OAuth linking step.
type LinkError struct {
	Subject string
	Err     error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link external identity %q: %v", e.Subject, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// LinkerService maps OAuth subjects onto identities.
type LinkerService struct {
	config LinkerConfig
	store  IdentityStore
	logger *slog.Logger
	now    func() time.Time
}

// NewLinkerService creates a new linker service.
func NewLinkerService(config LinkerConfig, store IdentityStore, logger *slog.Logger) *LinkerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LinkerService{
		config: config,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Link returns the identity for profile, creating it on first sight.
func (s *LinkerService) Link(ctx context.Context, profile ExternalProfile) (*LinkResult, error) {
	subject := strings.TrimSpace(profile.Subject)
	if subject == "" {
		return nil, &LinkError{Err: errors.New("provider returned an empty subject")}
	}

	existing, err := s.store.GetByExternalID(ctx, subject)
	if err == nil {
		return &LinkResult{Identity: existing}, nil
	}
	if !errors.Is(err, domain.ErrIdentityNotFound) {
		return nil, &LinkError{Subject: subject, Err: err}
	}

	email := CleanEmail(profile.Email)

	if s.config.LinkByEmail && email != "" && profile.EmailVerified {
		result, err := s.linkByEmail(ctx, subject, email)
		if err != nil {
			return nil, &LinkError{Subject: subject, Err: err}
		}
		if result != nil {
			return result, nil
		}
	}

	now := s.now()
	identity := &domain.Identity{
		ID:         uuid.New(),
		Email:      email,
		Name:       SanitizeName(profile.DisplayName),
		ExternalID: &subject,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, identity); err != nil {
		return nil, &LinkError{Subject: subject, Err: err}
	}

	s.logger.Info("external identity created", "identity_id", identity.ID, "provider", profile.Provider)
	return &LinkResult{Identity: identity, Created: true}, nil
}

// linkByEmail attaches subject to the identity owning email. A nil result
// means there is nothing to attach to.
func (s *LinkerService) linkByEmail(ctx context.Context, subject, email string) (*LinkResult, error) {
	identity, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrIdentityNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if identity.ExternalID != nil {
		return nil, domain.ErrExternalIDTaken
	}

	if err := s.store.AttachExternalID(ctx, identity.ID, subject); err != nil {
		return nil, err
	}
	identity.ExternalID = &subject

	s.logger.Info("external identity linked by email", "identity_id", identity.ID)
	return &LinkResult{Identity: identity, Linked: true}, nil
}
