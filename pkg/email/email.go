// Package email normalises addresses used as login identifiers.
package email

import (
	"net/mail"
	"strings"
	"unicode"

	dErrors "landledger/pkg/domain-errors"
)

// Normalize trims and lowercases an address and checks it parses as a bare
// RFC 5322 address.
func Normalize(address string) (string, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return "", dErrors.New(dErrors.CodeValidation, "email is required")
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		return "", dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	return address, nil
}

// DisplayName derives a "First Last" name from the local part, for accounts
// created by OTP login before the user fills in a profile.
func DisplayName(address string) string {
	localPart := address
	if at := strings.IndexByte(address, '@'); at >= 0 {
		localPart = address[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "Land Owner"
	}
	if len(parts) == 1 {
		return capitalize(parts[0])
	}
	return capitalize(parts[0]) + " " + capitalize(parts[len(parts)-1])
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
