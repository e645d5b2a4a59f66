// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package connector wraps the whatsmeow WhatsApp multi-device client for
// phone-number pairing.
//
// # Core Types
//
// [WhatsAppConnector] opens one device store per session directory and
// builds clients for it. Every pairing request gets its own directory so
// concurrent requests never share credentials.
//
// [WhatsAppClient] represents a single companion-device session. Library
// events are translated to [ConnectionUpdate] and [CredsUpdate] values on
// a channel, so callers drive the pairing handshake with a plain select
// loop instead of callbacks.
//
// # Credentials
//
// The device store is a SQLite database owned by whatsmeow. After pairing,
// [WhatsAppClient.ExportCreds] writes the key material and account identity
// to creds.json in the session directory; that file is what gets uploaded.
//
// # Sub-packages
//
//   - whatsappfmt converts Markdown and simple HTML to WhatsApp markup.
package connector
