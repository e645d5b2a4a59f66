// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"errors"
	"fmt"

	"go.mau.fi/whatsmeow"
)

// RequestPairingCode asks the server for a pairing code for number. It must
// be called after Connect on an unregistered device.
func (c *WhatsAppClient) RequestPairingCode(ctx context.Context, number string) (string, error) {
	if c.qrChan == nil {
		return "", errors.New("pairing channel not available, connect first or device already registered")
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case item, ok := <-c.qrChan:
		if !ok {
			return "", errors.New("pairing channel closed before it was ready")
		}
		if item.Event != whatsmeow.QRChannelEventCode {
			if item.Error != nil {
				return "", fmt.Errorf("pairing channel reported %s: %w", item.Event, item.Error)
			}
			return "", fmt.Errorf("pairing channel reported %s", item.Event)
		}
	}
	go c.drainQR()

	clientType, displayName := c.connector.Config.PairClient()
	code, err := c.client.PairPhone(ctx, NormalizeNumber(number), c.connector.Config.PushNotification, clientType, displayName)
	if err != nil {
		return "", fmt.Errorf("failed to request pairing code: %w", err)
	}
	return code, nil
}

// drainQR consumes remaining QR channel items so the library never blocks
// on them. The library disconnects without a Disconnected event when the
// channel ends in anything but success, so that end is reported as a close.
func (c *WhatsAppClient) drainQR() {
	for {
		select {
		case <-c.stopChan:
			return
		case item, ok := <-c.qrChan:
			if !ok {
				return
			}
			c.log.Debug().Str("qr_event", item.Event).Msg("Pairing channel event")
			if update, ok := pairingChannelClose(item); ok {
				c.log.Debug().Stringer("update", update).Msg("Connection update")
				c.emit(update)
			}
		}
	}
}

// pairingChannelClose maps a terminal pairing channel item to a close update.
// Codes and success don't end the connection.
func pairingChannelClose(item whatsmeow.QRChannelItem) (ConnectionUpdate, bool) {
	switch item.Event {
	case whatsmeow.QRChannelEventCode, whatsmeow.QRChannelSuccess.Event:
		return ConnectionUpdate{}, false
	case whatsmeow.QRChannelTimeout.Event:
		return ConnectionUpdate{State: StateClose, StatusCode: StatusPairingTimeout, Err: errors.New("pairing code expired")}, true
	}
	err := item.Error
	if err == nil {
		err = fmt.Errorf("pairing channel reported %s", item.Event)
	}
	return ConnectionUpdate{State: StateClose, Err: err}, true
}
