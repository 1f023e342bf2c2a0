package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/BHSajuu/Note-Taking-web-applications/pkg/domain"
	"golang.org/x/crypto/bcrypt"
)

const (
	codeMin = 100000
	codeMax = 999999

	DefaultCodeTTL    = 10 * time.Minute
	DefaultBcryptCost = 10
)

// OTPConfig holds one-time code configuration.
type OTPConfig struct {
	CodeTTL            time.Duration
	BcryptCost         int
	SessionTTL         time.Duration
	ExtendedSessionTTL time.Duration

	StrictEmailValidation bool
	BlockDisposableEmail  bool
}

// OTPService issues and verifies emailed one-time codes.
type OTPService struct {
	config     OTPConfig
	store      IdentityStore
	dispatcher Dispatcher
	tokens     *TokenIssuer
	logger     *slog.Logger
	now        func() time.Time
	generate   func() (string, error)
}

// NewOTPService creates a new OTP service.
func NewOTPService(
	config OTPConfig,
	store IdentityStore,
	dispatcher Dispatcher,
	tokens *TokenIssuer,
	logger *slog.Logger,
) *OTPService {
	if config.CodeTTL == 0 {
		config.CodeTTL = DefaultCodeTTL
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = DefaultBcryptCost
	}
	if config.SessionTTL == 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	if config.ExtendedSessionTTL == 0 {
		config.ExtendedSessionTTL = DefaultExtendedSessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OTPService{
		config:     config,
		store:      store,
		dispatcher: dispatcher,
		tokens:     tokens,
		logger:     logger,
		now:        time.Now,
		generate:   generateCode,
	}
}

// RequestResult describes an accepted code request.
type RequestResult struct {
	Identity domain.IdentitySummary
	Mode     Mode
	Created  bool
}

// RequestCode generates a fresh code for the request's email, stores its hash
// and emails the plaintext. Any earlier pending code stops working.
func (s *OTPService) RequestCode(ctx context.Context, req CodeRequest) (*RequestResult, error) {
	req = req.normalized()
	if err := req.Validate(s.config.StrictEmailValidation, s.config.BlockDisposableEmail); err != nil {
		return nil, err
	}

	var (
		identity *domain.Identity
		outcome  = domain.ChallengeExisting
	)

	// Signin must fail before any code exists.
	if req.Mode == ModeSignin {
		existing, err := s.store.GetByEmail(ctx, req.Email)
		if err != nil {
			return nil, err
		}
		identity = existing
	}

	code, err := s.generate()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash code: %w", err)
	}
	codeHash := string(hash)
	expiresAt := s.now().Add(s.config.CodeTTL)

	switch req.Mode {
	case ModeSignin:
		if err := s.store.SetChallenge(ctx, identity.ID, codeHash, expiresAt); err != nil {
			return nil, fmt.Errorf("store challenge: %w", err)
		}
	case ModeSignup:
		dob, _ := ParseDateOfBirth(req.DateOfBirth)
		identity, outcome, err = s.store.FindOrCreateForSignupChallenge(ctx, domain.SignupChallenge{
			Email:         req.Email,
			Name:          req.Name,
			DateOfBirth:   &dob,
			CodeHash:      codeHash,
			CodeExpiresAt: expiresAt,
		})
		if err != nil {
			return nil, err
		}
	}

	name := identity.Name
	if req.Mode == ModeSignup {
		name = req.Name
	}

	err = s.dispatcher.SendCode(ctx, domain.CodeMessage{
		To:     identity.Email,
		Name:   name,
		Code:   code,
		Signin: req.Mode == ModeSignin,
		TTL:    s.config.CodeTTL,
	})
	if err != nil {
		// The stored hash stays pending: nobody knows its plaintext, it keeps a
		// fresh signup retryable, and the next request overwrites it.
		s.logger.Error("failed to send verification code", "error", err, "identity_id", identity.ID)
		return nil, fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}

	s.logger.Info("verification code sent",
		"identity_id", identity.ID,
		"mode", string(req.Mode),
		"outcome", outcome.String(),
	)

	return &RequestResult{
		Identity: identity.Summary(),
		Mode:     req.Mode,
		Created:  outcome == domain.ChallengeCreated,
	}, nil
}

// VerifyResult is the outcome of a successful verification.
type VerifyResult struct {
	Token             string
	ExpiresAt         time.Time
	Identity          domain.IdentitySummary
	FirstVerification bool
}

// VerifyCode checks a submitted code and issues a session token. Only a
// successful match changes stored state.
func (s *OTPService) VerifyCode(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	req = req.normalized()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	identity, err := s.store.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if !identity.HasPendingCode() {
		return nil, domain.ErrNoPendingCode
	}

	now := s.now()
	if identity.CodeExpired(now) {
		return nil, domain.ErrCodeExpired
	}

	codeHash := *identity.CodeHash
	if err := bcrypt.CompareHashAndPassword([]byte(codeHash), []byte(req.Code)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, domain.ErrCodeMismatch
		}
		return nil, fmt.Errorf("compare code: %w", err)
	}

	cleared, err := s.store.ClearChallenge(ctx, identity.ID, codeHash, &now)
	if err != nil {
		return nil, fmt.Errorf("clear challenge: %w", err)
	}
	if !cleared {
		// A concurrent verification or a newer code got there first.
		return nil, domain.ErrNoPendingCode
	}

	ttl := s.config.SessionTTL
	if req.ExtendedSession {
		ttl = s.config.ExtendedSessionTTL
	}
	token, err := s.tokens.Issue(identity.ID, ttl)
	if err != nil {
		return nil, err
	}

	s.logger.Info("verification code accepted", "identity_id", identity.ID, "extended_session", req.ExtendedSession)

	return &VerifyResult{
		Token:             token.Token,
		ExpiresAt:         token.ExpiresAt,
		Identity:          identity.Summary(),
		FirstVerification: identity.VerifiedAt == nil,
	}, nil
}

// generateCode returns a uniformly random six-digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}
