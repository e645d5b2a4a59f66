// Copyright 2024-2026 Aiku AI

package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"filippo.io/age"
)

// Sealer encrypts uploads to a set of age recipients before handing them to
// the wrapped uploader. Sealed objects get an extra .age extension.
type Sealer struct {
	next       Uploader
	recipients []age.Recipient
}

func NewSealer(next Uploader, recipientKeys []string) (*Sealer, error) {
	if len(recipientKeys) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := parseRecipient(key)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, recipient)
	}
	return &Sealer{next: next, recipients: recipients}, nil
}

func parseRecipient(key string) (*age.X25519Recipient, error) {
	recipient, err := age.ParseX25519Recipient(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse age recipient %q: %w", key, err)
	}
	return recipient, nil
}

func (s *Sealer) LinkPrefix() string {
	return s.next.LinkPrefix()
}

func (s *Sealer) Upload(ctx context.Context, name string, r io.Reader, _ int64) (Object, error) {
	var sealed bytes.Buffer
	w, err := age.Encrypt(&sealed, s.recipients...)
	if err != nil {
		return Object{}, fmt.Errorf("failed to create age encryptor: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return Object{}, fmt.Errorf("failed to seal upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return Object{}, fmt.Errorf("failed to finalize age encryption: %w", err)
	}
	return s.next.Upload(ctx, name+sealedExt, bytes.NewReader(sealed.Bytes()), int64(sealed.Len()))
}
