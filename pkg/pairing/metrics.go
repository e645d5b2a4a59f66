// Copyright 2024-2026 Aiku AI

package pairing

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/aiku/wa-pairing/pkg/pairing"

var tracer = otel.Tracer(instrumentationName)

type metrics struct {
	flows    metric.Int64Counter
	attempts metric.Int64Counter
	retries  metric.Int64Counter
	active   metric.Int64UpDownCounter
	duration metric.Float64Histogram
}

func newMetrics() *metrics {
	meter := otel.Meter(instrumentationName)
	m := &metrics{}
	// Instrument errors only happen for invalid names; the noop instrument
	// returned alongside the error is still usable.
	m.flows, _ = meter.Int64Counter("wapair_pairing_flows",
		metric.WithDescription("Pairing flows by final HTTP status"))
	m.attempts, _ = meter.Int64Counter("wapair_pairing_attempts",
		metric.WithDescription("Connection attempts made by pairing flows"))
	m.retries, _ = meter.Int64Counter("wapair_pairing_retries",
		metric.WithDescription("Reconnect attempts scheduled after a transient close"))
	m.active, _ = meter.Int64UpDownCounter("wapair_pairing_active_flows",
		metric.WithDescription("Pairing flows currently running"))
	m.duration, _ = meter.Float64Histogram("wapair_pairing_flow_duration",
		metric.WithDescription("Time until a pairing flow produced its outcome"),
		metric.WithUnit("s"))
	return m
}

func (m *metrics) flowStarted(ctx context.Context) {
	m.active.Add(ctx, 1)
}

func (m *metrics) flowFinished(ctx context.Context) {
	m.active.Add(ctx, -1)
}

func (m *metrics) outcome(ctx context.Context, o Outcome, started time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("status", strconv.Itoa(o.Status)),
		attribute.Bool("success", o.IsSuccess()),
	)
	m.flows.Add(ctx, 1, attrs)
	m.duration.Record(ctx, time.Since(started).Seconds(), attrs)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("pairing.status", o.Status))
}
