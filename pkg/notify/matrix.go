// Copyright 2024-2026 Aiku AI

package notify

import (
	"context"
	"fmt"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/format"
	"maunium.net/go/mautrix/id"
)

type MatrixConfig struct {
	Homeserver  string `yaml:"homeserver" koanf:"homeserver"`
	UserID      string `yaml:"user_id" koanf:"user_id"`
	AccessToken string `yaml:"access_token" koanf:"access_token"`
	RoomID      string `yaml:"room_id" koanf:"room_id"`
}

func (c MatrixConfig) Enabled() bool {
	return c.Homeserver != "" && c.AccessToken != "" && c.RoomID != ""
}

// Matrix posts notices to a Matrix room.
type Matrix struct {
	client *mautrix.Client
	roomID id.RoomID
}

func NewMatrix(cfg MatrixConfig) (*Matrix, error) {
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create matrix client: %w", err)
	}
	return &Matrix{client: client, roomID: id.RoomID(cfg.RoomID)}, nil
}

func (m *Matrix) Name() string {
	return "matrix"
}

func (m *Matrix) Send(ctx context.Context, markdown string) error {
	content := format.RenderMarkdown(markdown, true, false)
	content.MsgType = event.MsgNotice
	if _, err := m.client.SendMessageEvent(ctx, m.roomID, event.EventMessage, &content); err != nil {
		return fmt.Errorf("failed to send matrix notice: %w", err)
	}
	return nil
}
