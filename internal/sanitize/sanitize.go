// Package sanitize normalizes chat message bodies before storage.
package sanitize

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxLength is the maximum allowed body length after trimming,
// counted in characters (runes), not bytes.
const MaxLength = 2000

// ErrLength is returned when a trimmed body is empty or over MaxLength.
var ErrLength = errors.New("message must be between 1 and 2000 characters")

var escaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// Validate trims the body and checks its length. It returns the trimmed
// body so callers don't trim twice. The length check runs here, during
// request shape validation, so an invalid body is rejected before it
// consumes rate-limit quota or triggers any lookup.
func Validate(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	// Rune count, not len(): a 1500-character message in a non-Latin
	// script can easily exceed 2000 bytes and must still be accepted.
	length := utf8.RuneCountInString(trimmed)
	if length == 0 || length > MaxLength {
		return "", ErrLength
	}
	return trimmed, nil
}

// Escape neutralizes HTML-significant characters in an already-validated
// body. Only '<' and '>' are replaced; every other character is stored
// as-is. Deliberately minimal — the clients render message bodies as
// text, this is a second line of defense, not full contextual encoding.
func Escape(body string) string {
	return escaper.Replace(body)
}
