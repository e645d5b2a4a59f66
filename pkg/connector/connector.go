// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
)

const (
	// StoreFileName is the SQLite device store inside a session directory.
	StoreFileName = "session.db"
	// CredsFileName is the exported credentials document inside a session
	// directory.
	CredsFileName = "creds.json"
)

// WhatsAppConnector opens WhatsApp client sessions backed by a device store
// in a session directory.
type WhatsAppConnector struct {
	Config Config
	Log    zerolog.Logger

	// HTTPClient downloads images for SendImage. Defaults to a client with
	// a 30 second timeout.
	HTTPClient *http.Client
}

// NewWhatsAppConnector creates a connector from a post-processed config.
func NewWhatsAppConnector(cfg Config, log zerolog.Logger) *WhatsAppConnector {
	return &WhatsAppConnector{
		Config:     cfg,
		Log:        log.With().Str("component", "wa_connector").Logger(),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewSessionDir creates a fresh session directory named name under the
// configured sessions directory and returns its path.
func (wc *WhatsAppConnector) NewSessionDir(name string) (string, error) {
	dir := filepath.Join(wc.Config.SessionsDir, name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create session directory: %w", err)
	}
	return dir, nil
}

// Open loads (or creates) the device store in dir and returns a client for
// it. The client is not connected yet.
func (wc *WhatsAppConnector) Open(ctx context.Context, dir string) (*WhatsAppClient, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	log := wc.Log.With().Str("session_dir", dir).Logger()

	address := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", filepath.Join(dir, StoreFileName))
	container, err := sqlstore.New(ctx, "sqlite3", address, waLog.Zerolog(log.With().Str("component", "wa_store").Logger()))
	if err != nil {
		return nil, fmt.Errorf("failed to open device store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("failed to load device: %w", err)
	}

	cli := whatsmeow.NewClient(device, waLog.Zerolog(log.With().Str("component", "wa_client").Logger()))
	// Reconnects are driven by the caller's retry policy.
	cli.EnableAutoReconnect = false

	return newWhatsAppClient(wc, cli, device, container, dir, log), nil
}
