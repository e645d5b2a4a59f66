// Copyright 2024-2026 Aiku AI

package connector

import "fmt"

// ConnectionState is the coarse state reported by a ConnectionUpdate.
type ConnectionState string

const (
	StateConnecting ConnectionState = "connecting"
	StateOpen       ConnectionState = "open"
	StateClose      ConnectionState = "close"
)

// StatusLoggedOut is the close status the server uses when the linked device
// was removed or the credentials were rejected.
const StatusLoggedOut = 401

// StatusPairingTimeout closes a connection whose pairing code expired before
// it was entered on the phone.
const StatusPairingTimeout = 408

// Event is emitted by a WhatsAppClient on its Events channel.
type Event interface {
	isEvent()
}

// ConnectionUpdate reports a change of the websocket connection state.
// StatusCode is only set for close updates where the server gave a reason.
type ConnectionUpdate struct {
	State      ConnectionState
	StatusCode int
	Err        error
}

// CredsUpdate reports that the device credentials changed and should be
// re-exported.
type CredsUpdate struct{}

func (ConnectionUpdate) isEvent() {}
func (CredsUpdate) isEvent()      {}

func (u ConnectionUpdate) String() string {
	if u.State != StateClose {
		return string(u.State)
	}
	if u.Err != nil {
		return fmt.Sprintf("close (%d): %v", u.StatusCode, u.Err)
	}
	return fmt.Sprintf("close (%d)", u.StatusCode)
}

// IsAuthFailure reports whether the update closed the connection because the
// credentials are no longer accepted.
func (u ConnectionUpdate) IsAuthFailure() bool {
	return u.State == StateClose && u.StatusCode == StatusLoggedOut
}
