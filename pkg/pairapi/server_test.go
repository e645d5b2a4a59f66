// Copyright 2024-2026 Aiku AI

package pairapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/wa-pairing/pkg/pairing"
)

func newTestServer() *Server {
	pair := NewPairHandler(&fakePairer{outcome: outcomePtr(pairing.PairingCodeOutcome("ABCD-EFGH"))}, nil, time.Second)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "# HELP up\nup 1\n")
	})
	return NewServer(Config{Address: "127.0.0.1:0"}, pair, metrics, zerolog.Nop())
}

func TestServerRoutes(t *testing.T) {
	t.Parallel()
	s := newTestServer()
	tests := []struct {
		method     string
		target     string
		wantStatus int
		wantBody   string
	}{
		{http.MethodGet, "/pair?number=15551234567", http.StatusOK, `"pairingCode":"ABCD-EFGH"`},
		{http.MethodGet, "/?number=15551234567", http.StatusOK, `"pairingCode":"ABCD-EFGH"`},
		{http.MethodPost, "/pair?number=15551234567", http.StatusMethodNotAllowed, `{"error":"Method not allowed"}`},
		{http.MethodGet, "/nope", http.StatusNotFound, `{"error":"Not found"}`},
		{http.MethodGet, "/healthz", http.StatusOK, `"status":"healthy"`},
		{http.MethodGet, "/metrics", http.StatusOK, "up 1"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
		if rec.Code != tt.wantStatus {
			t.Errorf("%s %s status: got %d, want %d", tt.method, tt.target, rec.Code, tt.wantStatus)
		}
		if !strings.Contains(rec.Body.String(), tt.wantBody) {
			t.Errorf("%s %s body: got %q, want it to contain %q", tt.method, tt.target, rec.Body.String(), tt.wantBody)
		}
	}
}

func TestServerAccessLogOmitsNumber(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	pair := NewPairHandler(&fakePairer{outcome: outcomePtr(pairing.PairingCodeOutcome("ABCD-EFGH"))}, nil, time.Second)
	s := NewServer(Config{Address: "127.0.0.1:0"}, pair, nil, zerolog.New(&logs))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pair?number=15551234567", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	var access map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(logs.Bytes()), []byte("\n")) {
		var entry map[string]any
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if entry["message"] == "Access" {
			access = entry
		}
	}
	if access == nil {
		t.Fatalf("no access log entry in %s", logs.String())
	}
	if access["request_uri"] != "/pair" {
		t.Errorf("request_uri: got %v, want /pair", access["request_uri"])
	}
	if strings.Contains(logs.String(), "15551234567") {
		t.Errorf("phone number leaked into logs: %s", logs.String())
	}
}

func TestServerRequestID(t *testing.T) {
	t.Parallel()
	s := newTestServer()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestServerRunShutsDown(t *testing.T) {
	t.Parallel()
	s := newTestServer()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx, ln) }()

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", ln.Addr()))
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status: got %d, want %d", resp.StatusCode, http.StatusOK)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("healthz after shutdown: got %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	good := Config{Address: ":8000", WriteTimeout: 90 * time.Second, RequestTimeout: 75 * time.Second}
	if err := good.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	bad := good
	bad.WriteTimeout = time.Minute
	if err := bad.Validate(); err == nil {
		t.Error("expected error when write_timeout <= request_timeout")
	}
	if err := (&Config{}).Validate(); err == nil {
		t.Error("expected error for empty address")
	}
}
