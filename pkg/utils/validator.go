package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// VINs exclude I, O and Q to avoid confusion with 1 and 0
	vinRegex      = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{11,17}$`)
	hexColorRegex = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.\-]{3,50}$`)
	controlChars  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// NormalizeVIN uppercases and trims a VIN before validation or lookup
func NormalizeVIN(vin string) string {
	return strings.ToUpper(strings.TrimSpace(vin))
}

// ValidateVIN validates a vehicle identification number
func ValidateVIN(vin string) error {
	if !vinRegex.MatchString(vin) {
		return fmt.Errorf("invalid VIN format: %q", vin)
	}
	return nil
}

// ValidateHexColor validates a #RRGGBB color code
func ValidateHexColor(code string) error {
	if !hexColorRegex.MatchString(code) {
		return fmt.Errorf("invalid hex color: %q", code)
	}
	return nil
}

// ValidateUsername validates a login name
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username must be 3-50 characters of letters, digits, '.', '_' or '-'")
	}
	return nil
}

// ValidatePassword enforces a minimum password length
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if len(password) > 72 {
		return fmt.Errorf("password must be at most 72 bytes")
	}
	return nil
}

// SanitizeString removes control characters and surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}
