// Copyright 2024-2026 Aiku AI

package upload

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBlobService accepts container creation and single-shot blob uploads.
type fakeBlobService struct {
	mu    sync.Mutex
	blobs map[string][]byte
	types map[string]string
}

func (f *fakeBlobService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Query().Get("restype") == "container" {
		w.WriteHeader(http.StatusCreated)
		return
	}
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.blobs[r.URL.Path] = body
	f.types[r.URL.Path] = r.Header.Get("x-ms-blob-content-type")
	f.mu.Unlock()
	w.Header().Set("ETag", `"0x8D000000000000"`)
	w.WriteHeader(http.StatusCreated)
}

func TestAzureUpload(t *testing.T) {
	fake := &fakeBlobService{blobs: make(map[string][]byte), types: make(map[string]string)}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	up, err := NewAzure(context.Background(), AzureConfig{
		Account:    "devstoreaccount1",
		AccountKey: base64.StdEncoding.EncodeToString([]byte("test-key")),
		Endpoint:   server.URL,
		Container:  "sessions",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/sessions/", up.LinkPrefix())

	obj, err := up.Upload(context.Background(), "abc1231.json", strings.NewReader(`{"a":1}`), 7)
	require.NoError(t, err)
	assert.Equal(t, "abc1231.json", obj.SessionID(up.LinkPrefix()))
	_, err = up.Upload(context.Background(), "abc1231.json.age", strings.NewReader("sealed"), 6)
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []byte(`{"a":1}`), fake.blobs["/sessions/abc1231.json"])
	assert.Equal(t, "application/json", fake.types["/sessions/abc1231.json"])
	assert.Equal(t, "application/octet-stream", fake.types["/sessions/abc1231.json.age"])
}

func TestNewAzureRequiresKey(t *testing.T) {
	_, err := NewAzure(context.Background(), AzureConfig{Account: "a", Container: "c"}, "")
	assert.Error(t, err)
}
