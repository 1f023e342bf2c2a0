package auth

import (
	"strings"
	"time"

	"github.com/BHSajuu/Note-Taking-web-applications/pkg/domain"
)

// Mode selects the flow a code request belongs to.
type Mode string

const (
	ModeSignup Mode = "signup"
	ModeSignin Mode = "signin"
)

const maxNameLength = 100

// CodeRequest asks for a one-time code. Signup and signin share the shape
// but signup also requires Name and DateOfBirth.
type CodeRequest struct {
	Mode        Mode
	Email       string
	Name        string
	DateOfBirth string
}

// normalized returns a copy with trimmed fields.
func (r CodeRequest) normalized() CodeRequest {
	r.Email = CleanEmail(r.Email)
	r.Name = SanitizeName(r.Name)
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
	return r
}

// Validate checks the request before it reaches the service.
func (r CodeRequest) Validate(strict, blockDisposable bool) error {
	switch r.Mode {
	case ModeSignup, ModeSignin:
	default:
		return domain.NewValidationError("mode", "must be signup or signin")
	}

	if r.Email == "" {
		return domain.NewValidationError("email", "email is required")
	}
	if err := ValidateEmail(r.Email, strict, blockDisposable); err != nil {
		return domain.NewValidationError("email", err.Error())
	}

	if r.Mode == ModeSignin {
		return nil
	}

	if r.Name == "" || r.DateOfBirth == "" {
		return domain.NewValidationError("", "name, email, and date of birth are required")
	}
	if err := ValidateStringLength("name", r.Name, 1, maxNameLength); err != nil {
		return domain.NewValidationError("name", err.Error())
	}
	if _, err := ParseDateOfBirth(r.DateOfBirth); err != nil {
		return domain.NewValidationError("dateOfBirth", "invalid date of birth format")
	}
	return nil
}

// ParseDateOfBirth accepts a plain date or an RFC 3339 timestamp and returns
// the date at UTC midnight.
func ParseDateOfBirth(value string) (time.Time, error) {
	t, err := time.Parse(domain.DateLayout, value)
	if err != nil {
		ts, tsErr := time.Parse(time.RFC3339, value)
		if tsErr != nil {
			return time.Time{}, err
		}
		t = ts.UTC()
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// VerifyRequest submits a one-time code.
type VerifyRequest struct {
	Email           string
	Code            string
	ExtendedSession bool
}

func (r VerifyRequest) normalized() VerifyRequest {
	r.Email = CleanEmail(r.Email)
	r.Code = strings.TrimSpace(r.Code)
	return r
}

// Validate checks that both email and code are present.
func (r VerifyRequest) Validate() error {
	if r.Email == "" || r.Code == "" {
		return domain.NewValidationError("", "email and OTP are required")
	}
	return nil
}
