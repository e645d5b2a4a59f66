// Copyright 2024-2026 Aiku AI

package connector

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/util/keys"
	"google.golang.org/protobuf/proto"
)

// Creds is the exported credentials document written to creds.json. Byte
// fields are base64 encoded by encoding/json.
type Creds struct {
	Registered     bool          `json:"registered"`
	RegistrationID uint32        `json:"registrationId"`
	NoiseKey       *CredsKeyPair `json:"noiseKey,omitempty"`
	IdentityKey    *CredsKeyPair `json:"signedIdentityKey,omitempty"`
	SignedPreKey   *CredsPreKey  `json:"signedPreKey,omitempty"`
	AdvSecretKey   []byte        `json:"advSecretKey,omitempty"`
	Account        []byte        `json:"account,omitempty"` // protobuf ADVSignedDeviceIdentity
	Me             *CredsMe      `json:"me,omitempty"`
	Platform       string        `json:"platform,omitempty"`
	BusinessName   string        `json:"businessName,omitempty"`
}

type CredsKeyPair struct {
	Public  []byte `json:"public"`
	Private []byte `json:"private"`
}

type CredsPreKey struct {
	KeyPair   CredsKeyPair `json:"keyPair"`
	KeyID     uint32       `json:"keyId"`
	Signature []byte       `json:"signature,omitempty"`
}

type CredsMe struct {
	ID   string `json:"id"`
	LID  string `json:"lid,omitempty"`
	Name string `json:"name,omitempty"`
}

// BuildCreds extracts the credentials of a device store.
func BuildCreds(device *store.Device) (*Creds, error) {
	if device == nil {
		return nil, errors.New("no device")
	}
	creds := &Creds{
		Registered:     device.ID != nil,
		RegistrationID: device.RegistrationID,
		NoiseKey:       exportKeyPair(device.NoiseKey),
		IdentityKey:    exportKeyPair(device.IdentityKey),
		AdvSecretKey:   device.AdvSecretKey,
		Platform:       device.Platform,
		BusinessName:   device.BusinessName,
	}
	if device.SignedPreKey != nil {
		creds.SignedPreKey = &CredsPreKey{
			KeyID: device.SignedPreKey.KeyID,
		}
		if kp := exportKeyPair(&device.SignedPreKey.KeyPair); kp != nil {
			creds.SignedPreKey.KeyPair = *kp
		}
		if device.SignedPreKey.Signature != nil {
			creds.SignedPreKey.Signature = device.SignedPreKey.Signature[:]
		}
	}
	if device.Account != nil {
		account, err := proto.Marshal(device.Account)
		if err != nil {
			return nil, fmt.Errorf("failed to encode account identity: %w", err)
		}
		creds.Account = account
	}
	if device.ID != nil {
		creds.Me = &CredsMe{
			ID:   device.ID.String(),
			Name: device.PushName,
		}
		if !device.LID.IsEmpty() {
			creds.Me.LID = device.LID.String()
		}
	}
	return creds, nil
}

func exportKeyPair(kp *keys.KeyPair) *CredsKeyPair {
	if kp == nil || kp.Pub == nil || kp.Priv == nil {
		return nil
	}
	return &CredsKeyPair{
		Public:  kp.Pub[:],
		Private: kp.Priv[:],
	}
}

// WriteCreds writes creds to path atomically with owner-only permissions.
func WriteCreds(path string, creds *Creds) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode creds: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".creds-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp creds file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write creds: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync creds: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close creds file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("failed to chmod creds file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move creds file into place: %w", err)
	}
	return nil
}

// ExportCreds writes the current device credentials to creds.json in the
// session directory and returns the file path.
func (c *WhatsAppClient) ExportCreds() (string, error) {
	creds, err := BuildCreds(c.device)
	if err != nil {
		return "", err
	}
	path := filepath.Join(c.dir, CredsFileName)
	if err := WriteCreds(path, creds); err != nil {
		return "", err
	}
	return path, nil
}
