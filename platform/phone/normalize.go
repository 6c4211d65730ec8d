// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const unknownRegion = "ZZ"

// ParseCountryCode turns "+31", "31" or "0031" into a calling code.
func ParseCountryCode(input string) (int, error) {
	trimmed := strings.TrimSpace(input)
	trimmed = strings.TrimPrefix(trimmed, "+")
	trimmed = strings.TrimLeft(trimmed, "0")
	if trimmed == "" {
		return 0, fmt.Errorf("country code is empty")
	}
	code, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("country code %q is not numeric", input)
	}
	if phonenumbers.GetRegionCodeForCountryCode(code) == unknownRegion {
		return 0, fmt.Errorf("country code %q is not assigned", input)
	}
	return code, nil
}

// IsValidCountryCode reports whether input is an assigned calling code.
func IsValidCountryCode(input string) bool {
	_, err := ParseCountryCode(input)
	return err == nil
}

// NormalizeE164 formats number to E.164 using countryCode for national
// numbers. Numbers already in international form keep their own prefix.
func NormalizeE164(number, countryCode string) (string, error) {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return "", fmt.Errorf("phone number is empty")
	}

	region := unknownRegion
	if !strings.HasPrefix(trimmed, "+") {
		code, err := ParseCountryCode(countryCode)
		if err != nil {
			return "", err
		}
		region = phonenumbers.GetRegionCodeForCountryCode(code)
	}

	parsed, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return "", fmt.Errorf("parse phone number: %w", err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", fmt.Errorf("phone number %q is not valid", trimmed)
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}
