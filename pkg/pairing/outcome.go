// Copyright 2024-2026 Aiku AI

package pairing

import (
	"errors"
	"net/http"
)

var (
	ErrMissingNumber      = errors.New("missing number")
	ErrInvalidNumber      = errors.New("invalid phone number")
	ErrRateLimited        = errors.New("rate limited")
	ErrAdmissionFailed    = errors.New("admission check failed")
	ErrPairingCode        = errors.New("failed to request pairing code")
	ErrCredsNotFound      = errors.New("creds.json not found")
	ErrNoUserID           = errors.New("user id not available")
	ErrUploadFailed       = errors.New("failed to upload creds")
	ErrAuthFailure        = errors.New("authentication failure")
	ErrRetriesExhausted   = errors.New("unable to connect after retries")
	ErrSessionUnavailable = errors.New("session unavailable")
	ErrFlowTimeout        = errors.New("pairing flow timed out")
	ErrShuttingDown       = errors.New("shutting down")
	ErrInternal           = errors.New("internal error")
)

// Outcome is the single HTTP answer of a pairing flow.
type Outcome struct {
	Status int
	Body   any
}

// ErrorBody is the JSON body of every failed outcome.
type ErrorBody struct {
	Error string `json:"error"`
}

// PairingCodeBody is returned when the server issued a pairing code.
type PairingCodeBody struct {
	PairingCode string `json:"pairingCode"`
}

// SessionBody is returned when the session was uploaded before any pairing
// code was needed.
type SessionBody struct {
	OK          bool   `json:"ok"`
	SessionLink string `json:"sessionLink"`
}

func PairingCodeOutcome(code string) Outcome {
	return Outcome{Status: http.StatusOK, Body: PairingCodeBody{PairingCode: code}}
}

func SessionOutcome(sessionID string) Outcome {
	return Outcome{Status: http.StatusOK, Body: SessionBody{OK: true, SessionLink: sessionID}}
}

// IsSuccess reports whether the outcome is a 2xx answer.
func (o Outcome) IsSuccess() bool {
	return o.Status >= 200 && o.Status < 300
}

type outcomeMapping struct {
	err     error
	status  int
	message string
}

// outcomeMappings maps flow errors to what the client sees. First match wins
// (via errors.Is). Internal details never reach the client.
var outcomeMappings = []outcomeMapping{
	{ErrMissingNumber, http.StatusBadRequest, "Missing 'number' query parameter"},
	{ErrInvalidNumber, http.StatusBadRequest, "Invalid phone number"},

	{ErrAuthFailure, http.StatusUnauthorized, "Authentication failure"},

	{ErrRateLimited, http.StatusTooManyRequests, "Too many pairing requests"},

	{ErrPairingCode, http.StatusInternalServerError, "Failed to request pairing code"},
	{ErrCredsNotFound, http.StatusInternalServerError, "creds.json not found"},
	{ErrNoUserID, http.StatusInternalServerError, "user id not available"},
	{ErrUploadFailed, http.StatusInternalServerError, "Failed to upload creds"},
	{ErrInternal, http.StatusInternalServerError, "Internal server error"},

	{ErrRetriesExhausted, http.StatusServiceUnavailable, "Unable to connect after retries"},
	{ErrSessionUnavailable, http.StatusServiceUnavailable, "Service Unavailable"},
	{ErrAdmissionFailed, http.StatusServiceUnavailable, "Service Unavailable"},
	{ErrFlowTimeout, http.StatusServiceUnavailable, "Service Unavailable"},
	{ErrShuttingDown, http.StatusServiceUnavailable, "Service Unavailable"},
}

// OutcomeFor converts a flow error to its outcome. Unknown errors become
// 500 Internal server error.
func OutcomeFor(err error) Outcome {
	for _, m := range outcomeMappings {
		if errors.Is(err, m.err) {
			return Outcome{Status: m.status, Body: ErrorBody{Error: m.message}}
		}
	}
	return Outcome{Status: http.StatusInternalServerError, Body: ErrorBody{Error: "Internal server error"}}
}
