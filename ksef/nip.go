package ksef

import "regexp"

var nipDigitsRe = regexp.MustCompile(`\D+`)

// NormalizeNip strips any non-digit characters (spaces, dashes, PL prefix)
// and validates the result is exactly 10 digits.
func NormalizeNip(nip string) (string, error) {
	digits := nipDigitsRe.ReplaceAllString(nip, "")
	if len(digits) != 10 {
		return "", NewValidationError("NIP must contain exactly 10 digits")
	}
	return digits, nil
}
