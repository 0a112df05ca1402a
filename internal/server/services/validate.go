package services

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/taskmanager/internal/common"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
	maxEmailLength    = 255
	maxTitleLength    = 255

	defaultPageLimit = 50
	maxPageLimit     = 100
)

// NormalizeEmail trims and lowercases an address so uniqueness and lookups
// are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateEmail accepts a bare address ("user@example.com"), nothing with a
// display name or comments.
func validateEmail(email string) error {
	if email == "" || len(email) > maxEmailLength {
		return common.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return common.ErrInvalidEmail
	}
	return nil
}

// ValidatePassword enforces the length policy, counted in characters.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLength || n > maxPasswordLength {
		return common.ErrWeakCredential
	}
	return nil
}

// pageBounds applies the listing defaults: limit 50, at most 100, offset >= 0.
func pageBounds(limit, offset int) (int, int, error) {
	if limit == 0 {
		limit = defaultPageLimit
	}
	if limit < 1 || limit > maxPageLimit || offset < 0 {
		return 0, 0, common.ErrValidation
	}
	return limit, offset, nil
}
