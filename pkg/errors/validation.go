package errors

import (
	"strings"
	"unicode"
)

// maxTermLength bounds a search term. Longer terms are almost certainly not
// nouns and make poor image queries.
const maxTermLength = 64

// ValidateTerm validates a search term before it is sent to a provider.
//
// Rules:
//   - No empty or whitespace-only terms
//   - No control characters
//   - Maximum length of 64 characters
func ValidateTerm(term string) error {
	if strings.TrimSpace(term) == "" {
		return New(ErrCodeInvalidInput, "search term cannot be empty")
	}
	if len(term) > maxTermLength {
		return New(ErrCodeInvalidInput, "search term too long (max %d characters)", maxTermLength)
	}
	for _, r := range term {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "search term contains control characters")
		}
	}
	return nil
}

// ValidateRange checks that lo <= hi for a named configuration range.
func ValidateRange(name string, lo, hi float64) error {
	if lo > hi {
		return New(ErrCodeInvalidInput, "%s: min %v exceeds max %v", name, lo, hi)
	}
	return nil
}

// ValidatePositive checks that a named configuration value is greater than zero.
func ValidatePositive(name string, v float64) error {
	if v <= 0 {
		return New(ErrCodeInvalidInput, "%s must be positive, got %v", name, v)
	}
	return nil
}
