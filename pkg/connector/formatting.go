// Copyright 2024-2026 Aiku AI

package connector

import (
	"github.com/aiku/wa-pairing/pkg/connector/whatsappfmt"
)

// formatOutgoing converts Markdown and simple HTML to WhatsApp markup.
func formatOutgoing(text string) string {
	return whatsappfmt.Parse(text)
}
