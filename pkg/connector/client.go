// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package connector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

// maxImageSize caps the confirmation image download.
const maxImageSize = 16 << 20

// waClient is the subset of *whatsmeow.Client used by WhatsAppClient. Tests
// inject a fake instead of a live websocket client.
type waClient interface {
	AddEventHandler(handler whatsmeow.EventHandler) uint32
	GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error)
	Connect() error
	Disconnect()
	PairPhone(ctx context.Context, phone string, showPushNotification bool, clientType whatsmeow.PairClientType, clientDisplayName string) (string, error)
	SendMessage(ctx context.Context, to types.JID, message *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error)
	Upload(ctx context.Context, plaintext []byte, appInfo whatsmeow.MediaType) (whatsmeow.UploadResponse, error)
}

// storeCloser is the device store container owning the session database.
type storeCloser interface {
	Close() error
}

// WhatsAppClient represents a single WhatsApp companion-device session.
// Library events are translated to Event values on the Events channel.
type WhatsAppClient struct {
	connector *WhatsAppConnector
	client    waClient
	device    *store.Device
	container storeCloser
	dir       string

	events chan Event
	qrChan <-chan whatsmeow.QRChannelItem

	stopOnce sync.Once
	stopChan chan struct{}
	log      zerolog.Logger
}

func newWhatsAppClient(wc *WhatsAppConnector, cli waClient, device *store.Device, container storeCloser, dir string, log zerolog.Logger) *WhatsAppClient {
	c := &WhatsAppClient{
		connector: wc,
		client:    cli,
		device:    device,
		container: container,
		dir:       dir,
		events:    make(chan Event, 32),
		stopChan:  make(chan struct{}),
		log:       log,
	}
	cli.AddEventHandler(c.handleEvent)
	return c
}

// Events returns the channel on which connection and credential updates are
// delivered. It is never closed; select on it together with a context.
func (c *WhatsAppClient) Events() <-chan Event {
	return c.events
}

// Registered reports whether the device store already holds a paired
// account.
func (c *WhatsAppClient) Registered() bool {
	return c.device != nil && c.device.ID != nil
}

// UserJID returns the normalized JID of the paired account, or an empty
// string before pairing completes.
func (c *WhatsAppClient) UserJID() string {
	if c.device == nil {
		return ""
	}
	return NormalizedUserJID(c.device.ID)
}

// Connect opens the websocket. For unregistered devices the QR channel is
// subscribed first so RequestPairingCode can wait until the server is ready
// to accept a pairing request.
func (c *WhatsAppClient) Connect(ctx context.Context) error {
	c.emit(ConnectionUpdate{State: StateConnecting})
	if !c.Registered() {
		qrChan, err := c.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("failed to subscribe to pairing events: %w", err)
		}
		c.qrChan = qrChan
	}
	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	return nil
}

func (c *WhatsAppClient) handleEvent(rawEvt any) {
	for _, evt := range translateEvent(rawEvt) {
		if update, ok := evt.(ConnectionUpdate); ok {
			c.log.Debug().Stringer("update", update).Msg("Connection update")
		}
		c.emit(evt)
	}
}

func (c *WhatsAppClient) emit(evt Event) {
	select {
	case c.events <- evt:
	case <-c.stopChan:
	}
}

// translateEvent maps whatsmeow events onto connection and credential
// updates. Events that don't affect the pairing flow are dropped.
func translateEvent(rawEvt any) []Event {
	switch evt := rawEvt.(type) {
	case *events.PairSuccess:
		return []Event{CredsUpdate{}}
	case *events.Connected:
		return []Event{CredsUpdate{}, ConnectionUpdate{State: StateOpen}}
	case *events.PairError:
		return []Event{ConnectionUpdate{State: StateClose, Err: fmt.Errorf("pairing failed: %w", evt.Error)}}
	case *events.LoggedOut:
		return []Event{ConnectionUpdate{State: StateClose, StatusCode: StatusLoggedOut, Err: fmt.Errorf("logged out (reason %d)", int(evt.Reason))}}
	case *events.ConnectFailure:
		return []Event{ConnectionUpdate{State: StateClose, StatusCode: int(evt.Reason), Err: fmt.Errorf("connect failure: %s", evt.Message)}}
	case *events.TemporaryBan:
		return []Event{ConnectionUpdate{State: StateClose, StatusCode: 402, Err: errors.New(evt.String())}}
	case *events.ClientOutdated:
		return []Event{ConnectionUpdate{State: StateClose, StatusCode: 405, Err: errors.New("client outdated")}}
	case *events.StreamReplaced:
		return []Event{ConnectionUpdate{State: StateClose, StatusCode: 440, Err: errors.New("stream replaced")}}
	case *events.Disconnected:
		return []Event{ConnectionUpdate{State: StateClose}}
	default:
		return nil
	}
}

// SendText sends a text message. Markdown in text is converted to WhatsApp
// markup first.
func (c *WhatsAppClient) SendText(ctx context.Context, to, text string) error {
	jid, err := ParseUserJID(to)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	_, err = c.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(formatOutgoing(text)),
	})
	if err != nil {
		return fmt.Errorf("failed to send text message: %w", err)
	}
	return nil
}

// SendImage downloads imageURL, uploads it as encrypted WhatsApp media and
// sends it with caption.
func (c *WhatsAppClient) SendImage(ctx context.Context, to, imageURL, caption string) error {
	jid, err := ParseUserJID(to)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	data, mimeType, err := c.downloadImage(ctx, imageURL)
	if err != nil {
		return err
	}
	uploaded, err := c.client.Upload(ctx, data, whatsmeow.MediaImage)
	if err != nil {
		return fmt.Errorf("failed to upload image: %w", err)
	}
	_, err = c.client.SendMessage(ctx, jid, &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{
			Caption:       proto.String(formatOutgoing(caption)),
			Mimetype:      proto.String(mimeType),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send image message: %w", err)
	}
	return nil
}

func (c *WhatsAppClient) downloadImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid image URL: %w", err)
	}
	httpClient := c.connector.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download image: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > maxImageSize {
		return nil, "", fmt.Errorf("image larger than %d bytes", maxImageSize)
	}
	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}

// Close disconnects the websocket and closes the device store. It is safe to
// call more than once.
func (c *WhatsAppClient) Close() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
		c.client.Disconnect()
		if c.container != nil {
			if err := c.container.Close(); err != nil {
				c.log.Warn().Err(err).Msg("Failed to close device store")
			}
		}
	})
}
