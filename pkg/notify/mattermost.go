// Copyright 2024-2026 Aiku AI

package notify

import (
	"context"
	"fmt"

	"github.com/mattermost/mattermost/server/public/model"
)

type MattermostConfig struct {
	ServerURL string `yaml:"server_url" koanf:"server_url"`
	Token     string `yaml:"token" koanf:"token"`
	ChannelID string `yaml:"channel_id" koanf:"channel_id"`
}

func (c MattermostConfig) Enabled() bool {
	return c.ServerURL != "" && c.Token != "" && c.ChannelID != ""
}

// Mattermost posts messages to a Mattermost channel. Mattermost renders
// Markdown natively.
type Mattermost struct {
	client    *model.Client4
	channelID string
}

func NewMattermost(cfg MattermostConfig) *Mattermost {
	client := model.NewAPIv4Client(cfg.ServerURL)
	client.SetToken(cfg.Token)
	return &Mattermost{client: client, channelID: cfg.ChannelID}
}

func (m *Mattermost) Name() string {
	return "mattermost"
}

func (m *Mattermost) Send(ctx context.Context, markdown string) error {
	_, _, err := m.client.CreatePost(ctx, &model.Post{
		ChannelId: m.channelID,
		Message:   markdown,
	})
	if err != nil {
		return fmt.Errorf("failed to create mattermost post: %w", err)
	}
	return nil
}
