// Package iban validates International Bank Account Numbers.
package iban

import (
	"errors"
	"fmt"
	"strings"
)

// Kind names the rule an IBAN violated.
type Kind string

const (
	InvalidCharacters Kind = "invalid-characters"
	TooShort          Kind = "too-short"
	UnknownCountry    Kind = "unknown-country"
	WrongLength       Kind = "wrong-length"
	ChecksumMismatch  Kind = "checksum-mismatch"
)

// Sentinels for errors.Is checks against a *ValidationError.
var (
	ErrInvalidCharacters = errors.New("IBAN can only contain numbers (0-9) and letters (A-Z)")
	ErrTooShort          = errors.New("IBAN must be at least 4 characters long")
	ErrUnknownCountry    = errors.New("IBAN must begin with a valid country code")
	ErrWrongLength       = errors.New("IBAN is not of correct length for its country code")
	ErrChecksumMismatch  = errors.New("IBAN checksum is not valid")
)

var sentinels = map[Kind]error{
	InvalidCharacters: ErrInvalidCharacters,
	TooShort:          ErrTooShort,
	UnknownCountry:    ErrUnknownCountry,
	WrongLength:       ErrWrongLength,
	ChecksumMismatch:  ErrChecksumMismatch,
}

// ValidationError describes why an IBAN was rejected.
type ValidationError struct {
	Kind   Kind
	Detail string
}

func (e *ValidationError) Error() string {
	msg := sentinels[e.Kind].Error()
	if e.Detail == "" {
		return msg
	}
	return fmt.Sprintf("%s (%s)", msg, e.Detail)
}

// Unwrap returns the sentinel error for the violated rule.
func (e *ValidationError) Unwrap() error { return sentinels[e.Kind] }

// minLength is the shortest string that still carries a country code and
// check digits.
const minLength = 4

// Validate checks code against the country length table and the mod-97
// checksum. It returns nil or a *ValidationError.
func Validate(code string) error {
	for i := 0; i < len(code); i++ {
		if !isAlnum(code[i]) {
			return &ValidationError{Kind: InvalidCharacters, Detail: fmt.Sprintf("character at position %d", i+1)}
		}
	}
	if len(code) < minLength {
		return &ValidationError{Kind: TooShort, Detail: fmt.Sprintf("got %d characters", len(code))}
	}

	country := strings.ToUpper(code[:2])
	want, ok := countryLengths[country]
	if !ok {
		return &ValidationError{Kind: UnknownCountry, Detail: fmt.Sprintf("%q is not known", country)}
	}
	if len(code) != want {
		return &ValidationError{Kind: WrongLength, Detail: fmt.Sprintf("%s requires %d characters, got %d", country, want, len(code))}
	}

	if mod97(code[4:]+code[:4]) != 1 {
		return &ValidationError{Kind: ChecksumMismatch}
	}
	return nil
}

// Normalize strips spaces and upper-cases code, the way IBANs are usually
// printed ("DE89 3704 ...").
func Normalize(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), ""))
}

// CountryLength returns the IBAN length required for a country code.
func CountryLength(country string) (int, bool) {
	n, ok := countryLengths[strings.ToUpper(country)]
	return n, ok
}

// mod97 interprets s as a decimal numeral, with each letter replaced by its
// alphabet position + 10, and returns it modulo 97. The numeral is folded
// digit by digit so arbitrary lengths never overflow.
func mod97(s string) int {
	r := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			r = (r*10 + int(c-'0')) % 97
		case c >= 'A' && c <= 'Z':
			r = (r*100 + int(c-'A') + 10) % 97
		case c >= 'a' && c <= 'z':
			r = (r*100 + int(c-'a') + 10) % 97
		}
	}
	return r
}

func isAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}
