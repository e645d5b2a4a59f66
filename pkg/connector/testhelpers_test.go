// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package connector

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/util/keys"
)

// sentMessage records a SendMessage call on fakeWA.
type sentMessage struct {
	To      types.JID
	Message *waE2E.Message
}

// fakeWA is a waClient that records calls and lets tests inject library
// events and pairing channel items.
type fakeWA struct {
	mu        sync.Mutex
	handlers  []whatsmeow.EventHandler
	sent      []sentMessage
	uploads   [][]byte
	pairCalls []string

	QRChan     chan whatsmeow.QRChannelItem
	PairCode   string
	PairErr    error
	ConnectErr error
	SendErr    error

	connected    bool
	disconnected int
}

func newFakeWA() *fakeWA {
	return &fakeWA{
		QRChan:   make(chan whatsmeow.QRChannelItem, 4),
		PairCode: "ABCD-EFGH",
	}
}

func (f *fakeWA) AddEventHandler(handler whatsmeow.EventHandler) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, handler)
	return uint32(len(f.handlers))
}

func (f *fakeWA) GetQRChannel(_ context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	return f.QRChan, nil
}

func (f *fakeWA) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.connected = true
	return nil
}

func (f *fakeWA) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected++
}

func (f *fakeWA) PairPhone(_ context.Context, phone string, _ bool, _ whatsmeow.PairClientType, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairCalls = append(f.pairCalls, phone)
	return f.PairCode, f.PairErr
}

func (f *fakeWA) SendMessage(_ context.Context, to types.JID, message *waE2E.Message, _ ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return whatsmeow.SendResponse{}, f.SendErr
	}
	f.sent = append(f.sent, sentMessage{To: to, Message: message})
	return whatsmeow.SendResponse{}, nil
}

func (f *fakeWA) Upload(_ context.Context, plaintext []byte, _ whatsmeow.MediaType) (whatsmeow.UploadResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, plaintext)
	return whatsmeow.UploadResponse{
		URL:        "https://mmg.whatsapp.net/o1/test",
		DirectPath: "/o1/test",
		MediaKey:   []byte("media-key"),
		FileLength: uint64(len(plaintext)),
	}, nil
}

// Dispatch delivers a library event to every registered handler.
func (f *fakeWA) Dispatch(evt any) {
	f.mu.Lock()
	handlers := append([]whatsmeow.EventHandler(nil), f.handlers...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(evt)
	}
}

func (f *fakeWA) Sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

// fakeStore counts Close calls on the device store container.
type fakeStore struct {
	mu     sync.Mutex
	closed int
}

func (s *fakeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// newTestDevice returns an unregistered device with fresh keys.
func newTestDevice() *store.Device {
	identity := keys.NewKeyPair()
	return &store.Device{
		RegistrationID: 4242,
		NoiseKey:       keys.NewKeyPair(),
		IdentityKey:    identity,
		SignedPreKey:   identity.CreateSignedPreKey(1),
		AdvSecretKey:   []byte("adv-secret-key-32-bytes-long!!!!"),
	}
}

// newRegisteredDevice returns a device that completed pairing for number.
func newRegisteredDevice(number string) *store.Device {
	device := newTestDevice()
	jid := types.JID{User: number, Device: 7, Server: types.DefaultUserServer}
	device.ID = &jid
	device.PushName = "Tester"
	return device
}

// newTestClient builds a WhatsAppClient around a fake library client.
func newTestClient(t *testing.T, device *store.Device) (*WhatsAppClient, *fakeWA, *fakeStore) {
	t.Helper()
	cfg := Config{SessionsDir: t.TempDir(), CaptionTemplate: "{{.SessionID}}"}
	if err := cfg.PostProcess(); err != nil {
		t.Fatalf("PostProcess: %v", err)
	}
	wc := NewWhatsAppConnector(cfg, zerolog.Nop())
	fake := newFakeWA()
	st := &fakeStore{}
	c := newWhatsAppClient(wc, fake, device, st, t.TempDir(), zerolog.Nop())
	t.Cleanup(c.Close)
	return c, fake, st
}
