package auth

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

// Throwaway inbox providers rejected when BLOCK_DISPOSABLE_EMAIL is on.
var disposableDomains = map[string]bool{
	"tempmail.com":      true,
	"10minutemail.com":  true,
	"guerrillamail.com": true,
	"mailinator.com":    true,
	"throwaway.email":   true,
	"yopmail.com":       true,
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

const maxEmailLength = 254 // RFC 5321

// ValidateEmail validates an email address for format and length.
func ValidateEmail(email string, strict bool, blockDisposable bool) error {
	if email == "" {
		return fmt.Errorf("email address is required")
	}

	if len(email) > maxEmailLength {
		return fmt.Errorf("email address is too long (max %d characters)", maxEmailLength)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		// Display-name forms like "A <a@x.com>" are not accepted as identifiers.
		return fmt.Errorf("invalid email address format")
	}

	if strict && !emailRegex.MatchString(addr.Address) {
		return fmt.Errorf("invalid email address format")
	}

	if blockDisposable && disposableDomains[strings.ToLower(getDomain(addr.Address))] {
		return fmt.Errorf("disposable email addresses are not allowed")
	}

	return nil
}

// CleanEmail trims surrounding whitespace. Case is preserved: identities are
// keyed by the email exactly as it was first stored.
func CleanEmail(email string) string {
	return strings.TrimSpace(email)
}

func getDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
