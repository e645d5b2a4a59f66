// Copyright 2024-2026 Aiku AI

package connector

import (
	"testing"

	"go.mau.fi/whatsmeow/types"
)

func TestNormalizeNumber(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"15551234567", "15551234567"},
		{"+1 (555) 123-4567", "15551234567"},
		{" 44 7700 900123 ", "447700900123"},
		{"abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeNumber(tt.in); got != tt.want {
			t.Errorf("NormalizeNumber(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizedUserJID(t *testing.T) {
	t.Parallel()
	device := types.JID{User: "15551234567", Device: 12, Server: types.DefaultUserServer}
	got := NormalizedUserJID(&device)
	if got != "15551234567@s.whatsapp.net" {
		t.Errorf("NormalizedUserJID: got %q, want %q", got, "15551234567@s.whatsapp.net")
	}
	if got := NormalizedUserJID(nil); got != "" {
		t.Errorf("NormalizedUserJID(nil): got %q, want empty", got)
	}
	if got := NormalizedUserJID(&types.JID{}); got != "" {
		t.Errorf("NormalizedUserJID(empty): got %q, want empty", got)
	}
}

func TestParseUserJID(t *testing.T) {
	t.Parallel()
	jid, err := ParseUserJID("15551234567@s.whatsapp.net")
	if err != nil {
		t.Fatalf("ParseUserJID: %v", err)
	}
	if jid.User != "15551234567" || jid.Server != types.DefaultUserServer {
		t.Errorf("ParseUserJID: got %v", jid)
	}
}

func TestMaskNumber(t *testing.T) {
	t.Parallel()
	if got := MaskNumber("15551234567"); got != "*******4567" {
		t.Errorf("MaskNumber: got %q, want %q", got, "*******4567")
	}
	if got := MaskNumber("123"); got != "****" {
		t.Errorf("MaskNumber short: got %q, want %q", got, "****")
	}
}
