// Copyright 2024-2026 Aiku AI

package connector

import (
	"strings"

	"go.mau.fi/whatsmeow/types"
)

// NormalizeNumber strips every non-digit character from a raw phone number.
// The result is empty if the input contained no digits.
func NormalizeNumber(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizedUserJID drops the device and agent parts of a JID so that
// messages go to the account rather than one linked device. It returns an
// empty string for a nil or empty JID.
func NormalizedUserJID(jid *types.JID) string {
	if jid == nil || jid.IsEmpty() {
		return ""
	}
	return jid.ToNonAD().String()
}

// ParseUserJID parses a JID string produced by NormalizedUserJID.
func ParseUserJID(s string) (types.JID, error) {
	return types.ParseJID(s)
}

// MaskNumber keeps the last four digits of a number for logs and
// notifications.
func MaskNumber(number string) string {
	if len(number) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}
