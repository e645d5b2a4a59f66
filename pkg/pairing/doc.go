// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package pairing drives one WhatsApp companion-device pairing per request.
//
// A flow opens a session in its own directory, connects, and either asks the
// server for a pairing code (new device) or waits for the connection to open
// (device already paired). Once the connection opens, the exported
// credentials are uploaded, the user is sent their session ID, and the
// session directory is removed. Transient disconnects are retried with
// exponential backoff; an auth failure (401) ends the flow immediately.
//
// Each flow produces exactly one Outcome. The first outcome wins; anything
// the flow learns afterwards is only logged.
package pairing
