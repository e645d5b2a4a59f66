// Copyright 2024-2026 Aiku AI

package upload

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"filippo.io/age"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var objectNameRe = regexp.MustCompile(`^[A-Za-z0-9]{6}[0-9]{1,4}\.json$`)

func TestNewObjectName(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		name := NewObjectName()
		assert.Regexp(t, objectNameRe, name)
		seen[name] = struct{}{}
	}
	assert.Greater(t, len(seen), 1, "names should be random")
}

func TestObjectSessionID(t *testing.T) {
	obj := Object{Key: "sessions/abc1231.json", Link: "https://cdn.example.com/sessions/abc1231.json"}
	assert.Equal(t, "sessions/abc1231.json", obj.SessionID("https://cdn.example.com/"))
	assert.Equal(t, obj.Link, obj.SessionID("https://other.example.com/"))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disk ok", Config{Backend: BackendDisk, Disk: DiskConfig{Directory: "/tmp/x"}}, false},
		{"disk missing dir", Config{Backend: BackendDisk}, true},
		{"s3 ok", Config{Backend: BackendS3, S3: S3Config{Bucket: "b", Region: "us-east-1"}}, false},
		{"s3 missing region", Config{Backend: BackendS3, S3: S3Config{Bucket: "b"}}, true},
		{"minio missing bucket", Config{Backend: BackendMinIO, MinIO: MinIOConfig{Endpoint: "localhost:9000"}}, true},
		{"azure missing container", Config{Backend: BackendAzure, Azure: AzureConfig{Account: "acct"}}, true},
		{"unknown backend", Config{Backend: "mega"}, true},
		{"bad recipient", Config{Backend: BackendDisk, Disk: DiskConfig{Directory: "/tmp/x"}, AgeRecipients: []string{"age1nope"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDiskUpload(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(DiskConfig{Directory: dir, BaseURL: "https://files.example.com/creds/"}, "sessions")
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/creds/", d.LinkPrefix())

	payload := []byte(`{"registered":true}`)
	obj, err := d.Upload(context.Background(), "abcdef12.json", bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)

	assert.Equal(t, "sessions/abcdef12.json", obj.Key)
	assert.Equal(t, "https://files.example.com/creds/sessions/abcdef12.json", obj.Link)
	assert.Equal(t, "sessions/abcdef12.json", obj.SessionID(d.LinkPrefix()))

	written, err := os.ReadFile(filepath.Join(dir, "sessions", "abcdef12.json"))
	require.NoError(t, err)
	assert.Equal(t, payload, written)

	info, err := os.Stat(filepath.Join(dir, "sessions", "abcdef12.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestDiskUploadFileLink(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(DiskConfig{Directory: dir}, "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(d.LinkPrefix(), "file://"), "link prefix %q", d.LinkPrefix())

	obj, err := d.Upload(context.Background(), "x.json", strings.NewReader("{}"), 2)
	require.NoError(t, err)
	assert.Equal(t, "x.json", obj.SessionID(d.LinkPrefix()))
}

func TestDiskUploadRefusesOverwrite(t *testing.T) {
	d, err := NewDisk(DiskConfig{Directory: t.TempDir()}, "")
	require.NoError(t, err)

	_, err = d.Upload(context.Background(), "dup.json", strings.NewReader("{}"), 2)
	require.NoError(t, err)
	_, err = d.Upload(context.Background(), "dup.json", strings.NewReader("{}"), 2)
	assert.Error(t, err)
}

func TestDiskUploadRejectsTraversal(t *testing.T) {
	d, err := NewDisk(DiskConfig{Directory: t.TempDir()}, "")
	require.NoError(t, err)

	_, err = d.Upload(context.Background(), "../escape.json", strings.NewReader("{}"), 2)
	assert.Error(t, err)
}

func TestNewWrapsSealer(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	cfg := Config{
		Backend:       BackendDisk,
		Disk:          DiskConfig{Directory: t.TempDir()},
		AgeRecipients: []string{identity.Recipient().String()},
	}
	up, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Sealer{}, up)
}

func TestSealerRoundTrip(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	dir := t.TempDir()
	disk, err := NewDisk(DiskConfig{Directory: dir}, "")
	require.NoError(t, err)
	sealer, err := NewSealer(disk, []string{identity.Recipient().String()})
	require.NoError(t, err)

	plaintext := []byte(`{"noiseKey":{"public":"AAAA"}}`)
	obj, err := sealer.Upload(context.Background(), "sealed.json", bytes.NewReader(plaintext), int64(len(plaintext)))
	require.NoError(t, err)
	assert.Equal(t, "sealed.json.age", obj.Key)
	assert.Equal(t, disk.LinkPrefix(), sealer.LinkPrefix())

	ciphertext, err := os.ReadFile(filepath.Join(dir, "sealed.json.age"))
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "noiseKey")

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	require.NoError(t, err)
	decrypted, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestNewSealerRequiresRecipients(t *testing.T) {
	_, err := NewSealer(nil, nil)
	assert.Error(t, err)
}
