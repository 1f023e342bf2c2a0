package domain

import "errors"

// Identity errors
var (
	ErrIdentityNotFound      = errors.New("identity not found")
	ErrIdentityAlreadyExists = errors.New("identity already exists")
	ErrExternalIDTaken       = errors.New("external identity already linked to another identity")
)

// One-time code errors
var (
	ErrNoPendingCode  = errors.New("no pending verification code")
	ErrCodeExpired    = errors.New("verification code expired")
	ErrCodeMismatch   = errors.New("invalid verification code")
	ErrDeliveryFailed = errors.New("verification code delivery failed")
)

// Session errors
var (
	ErrInvalidToken = errors.New("invalid token")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NewValidationError creates a validation error for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsNotFound returns true for both flavours of "sign up first".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrIdentityNotFound) || errors.Is(err, ErrNoPendingCode)
}
