package utils

import (
	"fmt"
	"regexp"
)

var (
	roleCodeRegex = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
	controlChars  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateRoleCode validates an approval role code (upper snake case,
// e.g. HOD, PROCUREMENT_COMMITTEE).
func ValidateRoleCode(code string) error {
	if !roleCodeRegex.MatchString(code) {
		return fmt.Errorf("invalid role code format: %s", code)
	}
	return nil
}

// ValidateAmount validates a requisition or quotation amount
func ValidateAmount(amount float64) error {
	if amount < 0 {
		return fmt.Errorf("amount must not be negative: %.2f", amount)
	}
	return nil
}

// ValidateCurrency validates an ISO-4217 style currency code
func ValidateCurrency(currency string) error {
	if len(currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter code: %s", currency)
	}
	return nil
}

// SanitizeString removes control characters from free-form input
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}
