// Copyright 2024-2026 Aiku AI

package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitExposesMetrics(t *testing.T) {
	tel, err := Init(context.Background(), Config{ServiceName: "wa-pairing-test"}, "test", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, tel.Shutdown(context.Background()))
	})

	counter, err := otel.Meter("telemetry_test").Int64Counter("wapair_test_events")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	tel.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "wapair_test_events")
}

func TestShutdownTwice(t *testing.T) {
	tel, err := Init(context.Background(), Config{}, "test", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, tel.Shutdown(context.Background()))
	// Second shutdown reports already-shutdown errors but must not panic.
	_ = tel.Shutdown(context.Background())
}
