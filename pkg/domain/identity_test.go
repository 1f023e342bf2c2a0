package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIdentity_HasPendingCode(t *testing.T) {
	tests := []struct {
		name     string
		codeHash *string
		want     bool
	}{
		{
			name:     "no hash",
			codeHash: nil,
			want:     false,
		},
		{
			name:     "empty hash",
			codeHash: stringPtr(""),
			want:     false,
		},
		{
			name:     "hash set",
			codeHash: stringPtr("$2a$10$abc"),
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity := &Identity{ID: uuid.New(), CodeHash: tt.codeHash}
			if got := identity.HasPendingCode(); got != tt.want {
				t.Errorf("HasPendingCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIdentity_CodeExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(10 * time.Minute)

	tests := []struct {
		name   string
		expiry *time.Time
		at     time.Time
		want   bool
	}{
		{name: "no expiry", expiry: nil, at: now, want: true},
		{name: "before expiry", expiry: &expiry, at: now, want: false},
		{name: "exactly at expiry", expiry: &expiry, at: expiry, want: false},
		{name: "after expiry", expiry: &expiry, at: expiry.Add(time.Second), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity := &Identity{CodeExpiresAt: tt.expiry}
			if got := identity.CodeExpired(tt.at); got != tt.want {
				t.Errorf("CodeExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIdentity_SummaryOmitsSecrets(t *testing.T) {
	dob := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	identity := &Identity{
		ID:          uuid.New(),
		Email:       "a@x.com",
		Name:        "A",
		DateOfBirth: &dob,
		CodeHash:    stringPtr("hash"),
		ExternalID:  stringPtr("google-sub"),
	}

	summary := identity.Summary()
	if summary.ID != identity.ID.String() {
		t.Errorf("ID = %q, want %q", summary.ID, identity.ID.String())
	}
	if summary.Email != "a@x.com" || summary.Name != "A" {
		t.Errorf("unexpected summary %+v", summary)
	}
	if summary.DateOfBirth == nil || *summary.DateOfBirth != "2000-01-01" {
		t.Errorf("DateOfBirth = %v, want 2000-01-01", summary.DateOfBirth)
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(nil); got != nil {
		t.Errorf("FormatDate(nil) = %q, want nil", *got)
	}

	// A date read back in another zone still renders as the stored day.
	dob := time.Date(1990, 12, 10, 0, 0, 0, 0, time.UTC).In(time.FixedZone("PST", -8*60*60))
	got := FormatDate(&dob)
	if got == nil || *got != "1990-12-10" {
		t.Errorf("FormatDate() = %v, want 1990-12-10", got)
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(ErrIdentityNotFound) {
		t.Error("ErrIdentityNotFound should be not-found class")
	}
	if !IsNotFound(fmt.Errorf("wrapped: %w", ErrNoPendingCode)) {
		t.Error("wrapped ErrNoPendingCode should be not-found class")
	}
	if IsNotFound(ErrCodeMismatch) {
		t.Error("ErrCodeMismatch should not be not-found class")
	}
}

func TestValidationError(t *testing.T) {
	err := error(NewValidationError("email", "is required"))
	if err.Error() != "email: is required" {
		t.Errorf("Error() = %q", err.Error())
	}

	var verr *ValidationError
	if !errors.As(fmt.Errorf("request: %w", err), &verr) {
		t.Fatal("errors.As should find the validation error")
	}
	if verr.Field != "email" {
		t.Errorf("Field = %q, want %q", verr.Field, "email")
	}
}

func stringPtr(s string) *string {
	return &s
}
