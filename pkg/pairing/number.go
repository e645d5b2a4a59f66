// Copyright 2024-2026 Aiku AI

package pairing

import (
	"github.com/aiku/wa-pairing/pkg/connector"
)

// Number is a phone number reduced to its digits.
type Number string

// ParseNumber normalizes the raw query value. It fails with
// ErrMissingNumber for an empty value and ErrInvalidNumber when no digits
// remain.
func ParseNumber(raw string) (Number, error) {
	if raw == "" {
		return "", ErrMissingNumber
	}
	digits := connector.NormalizeNumber(raw)
	if digits == "" {
		return "", ErrInvalidNumber
	}
	return Number(digits), nil
}

// Masked returns the number with all but the last four digits hidden.
func (n Number) Masked() string {
	return connector.MaskNumber(string(n))
}
