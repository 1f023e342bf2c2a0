package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BHSajuu/Note-Taking-web-applications/pkg/domain"
)

func TestCodeRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     CodeRequest
		wantErr bool
		field   string
	}{
		{
			name: "valid signup",
			req:  CodeRequest{Mode: ModeSignup, Email: "ada@example.com", Name: "Ada", DateOfBirth: "1990-12-10"},
		},
		{
			name: "valid signup with timestamp date",
			req:  CodeRequest{Mode: ModeSignup, Email: "ada@example.com", Name: "Ada", DateOfBirth: "1990-12-10T00:00:00.000Z"},
		},
		{
			name: "signin ignores name and date of birth",
			req:  CodeRequest{Mode: ModeSignin, Email: "ada@example.com", DateOfBirth: "garbage"},
		},
		{
			name:    "unknown mode",
			req:     CodeRequest{Mode: "reset", Email: "ada@example.com"},
			wantErr: true,
			field:   "mode",
		},
		{
			name:    "missing email",
			req:     CodeRequest{Mode: ModeSignin},
			wantErr: true,
			field:   "email",
		},
		{
			name:    "display name form",
			req:     CodeRequest{Mode: ModeSignin, Email: "Ada <ada@example.com>"},
			wantErr: true,
			field:   "email",
		},
		{
			name:    "name too long",
			req:     CodeRequest{Mode: ModeSignup, Email: "ada@example.com", Name: strings.Repeat("a", 101), DateOfBirth: "1990-12-10"},
			wantErr: true,
		},
		{
			name:    "impossible date",
			req:     CodeRequest{Mode: ModeSignup, Email: "ada@example.com", Name: "Ada", DateOfBirth: "1990-02-30"},
			wantErr: true,
			field:   "dateOfBirth",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.normalized().Validate(false, false)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %T, want *domain.ValidationError", err)
			}
			if tt.field != "" && verr.Field != tt.field {
				t.Errorf("Validate() field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestCodeRequestNormalized(t *testing.T) {
	req := CodeRequest{
		Mode:        ModeSignup,
		Email:       "  Ada@Example.com\t",
		Name:        "  Ada \n Lovelace ",
		DateOfBirth: " 1990-12-10 ",
	}.normalized()

	if req.Email != "Ada@Example.com" {
		t.Errorf("Email = %q, want case preserved and trimmed", req.Email)
	}
	if req.Name != "Ada Lovelace" {
		t.Errorf("Name = %q, want %q", req.Name, "Ada Lovelace")
	}
	if req.DateOfBirth != "1990-12-10" {
		t.Errorf("DateOfBirth = %q, want trimmed", req.DateOfBirth)
	}
}

func TestParseDateOfBirth(t *testing.T) {
	dec10 := time.Date(1990, time.December, 10, 0, 0, 0, 0, time.UTC)
	dec11 := time.Date(1990, time.December, 11, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		value   string
		want    time.Time
		wantErr bool
	}{
		{name: "plain date", value: "1990-12-10", want: dec10},
		{name: "utc timestamp", value: "1990-12-10T00:00:00Z", want: dec10},
		{name: "timestamp with time of day", value: "1990-12-10T18:30:00Z", want: dec10},
		{name: "offset crossing midnight", value: "1990-12-10T23:00:00-02:00", want: dec11},
		{name: "empty", value: "", wantErr: true},
		{name: "us format", value: "12/10/1990", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDateOfBirth(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDateOfBirth(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseDateOfBirth(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestVerifyRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     VerifyRequest
		wantErr bool
	}{
		{name: "valid", req: VerifyRequest{Email: "ada@example.com", Code: "123456"}},
		{name: "missing code", req: VerifyRequest{Email: "ada@example.com", Code: "   "}, wantErr: true},
		{name: "missing email", req: VerifyRequest{Code: "123456"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.normalized().Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
