// Copyright 2024-2026 Aiku AI

package pairing

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aiku/wa-pairing/pkg/connector"
	"github.com/aiku/wa-pairing/pkg/upload"
)

// Deps are the collaborators of a Pairer. Opener and Uploader are required.
type Deps struct {
	Opener   SessionOpener
	Uploader upload.Uploader
	// Notifier and Restarter may be nil.
	Notifier  Notifier
	Restarter Restarter
	// Messages provides the confirmation image, caption template and
	// warning text.
	Messages *connector.Config
	// Backend and Sealed are reported in pairing notifications.
	Backend string
	Sealed  bool
}

// Pairer runs pairing flows in the background, one per request.
type Pairer struct {
	cfg       Config
	messages  *connector.Config
	opener    SessionOpener
	uploader  upload.Uploader
	notifier  Notifier
	restarter Restarter
	backend   string
	sealed    bool
	log       zerolog.Logger
	metrics   *metrics

	root    context.Context
	stop    context.CancelFunc
	mu      sync.Mutex
	closing atomic.Bool
	wg      sync.WaitGroup
}

// New creates a Pairer. Zero timings in cfg are taken from DefaultConfig.
func New(cfg Config, deps Deps, log zerolog.Logger) (*Pairer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Opener == nil || deps.Uploader == nil {
		return nil, errors.New("pairing needs a session opener and an uploader")
	}
	messages := deps.Messages
	if messages == nil {
		messages = &connector.Config{}
	}
	root, stop := context.WithCancel(context.Background())
	return &Pairer{
		cfg:       cfg,
		messages:  messages,
		opener:    deps.Opener,
		uploader:  deps.Uploader,
		notifier:  deps.Notifier,
		restarter: deps.Restarter,
		backend:   deps.Backend,
		sealed:    deps.Sealed,
		log:       log.With().Str("component", "pairing").Logger(),
		metrics:   newMetrics(),
		root:      root,
		stop:      stop,
	}, nil
}

// Pair starts a pairing flow for number and returns a channel that receives
// exactly one Outcome and is then closed. The flow is not bound to ctx; it
// keeps running after the outcome to finish pairing, until FlowTimeout or
// Shutdown. ctx only links logs and traces to the request.
func (p *Pairer) Pair(ctx context.Context, number Number) <-chan Outcome {
	lc := p.log.With().Str("number", number.Masked())
	if id, ok := hlog.IDFromCtx(ctx); ok {
		lc = lc.Str("request_id", id.String())
	}
	f := &flow{
		id:      uuid.NewString(),
		number:  number,
		started: time.Now(),
		out:     make(chan Outcome, 1),
		metrics: p.metrics,
	}
	f.log = lc.Str("flow_id", f.id).Logger()

	p.mu.Lock()
	if p.closing.Load() {
		p.mu.Unlock()
		f.fail(ctx, ErrShuttingDown)
		return f.out
	}
	p.wg.Add(1)
	p.mu.Unlock()

	flowCtx, cancel := context.WithTimeout(p.root, p.cfg.FlowTimeout)
	flowCtx = trace.ContextWithSpanContext(flowCtx, trace.SpanContextFromContext(ctx))
	go func() {
		defer p.wg.Done()
		defer cancel()
		p.run(flowCtx, f)
	}()
	return f.out
}

// Shutdown stops accepting flows and waits for running ones. When ctx
// expires first, running flows are cancelled and Shutdown returns once they
// have cleaned up.
func (p *Pairer) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closing.Store(true)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.stop()
		return nil
	case <-ctx.Done():
		p.log.Warn().Msg("Cancelling running pairing flows")
		p.stop()
		<-done
		return ctx.Err()
	}
}

func (p *Pairer) run(ctx context.Context, f *flow) {
	ctx, span := tracer.Start(ctx, "pairing.flow", trace.WithAttributes(
		attribute.String("pairing.flow_id", f.id),
	))
	defer span.End()
	p.metrics.flowStarted(ctx)
	defer p.metrics.flowFinished(ctx)
	defer f.removeDir()
	defer func() {
		if r := recover(); r != nil {
			f.log.Error().Any("panic", r).Bytes("stack", debug.Stack()).Msg("Pairing flow panicked")
			p.restart("panic in pairing flow")
			f.fail(ctx, ErrInternal)
		}
	}()

	f.log.Info().Msg("Starting pairing flow")
	dir, err := p.opener.NewSessionDir(f.id)
	if err != nil {
		f.log.Err(err).Msg("Failed to create session directory")
		p.restart("failed to create session directory")
		f.fail(ctx, ErrSessionUnavailable)
		return
	}
	f.dir = dir

	if err := p.loop(ctx, f); err != nil {
		f.fail(ctx, err)
	}
	f.log.Debug().Dur("elapsed", time.Since(f.started)).Msg("Pairing flow finished")
}

// loop runs attempts until one ends the flow. A nil error means the outcome
// was already delivered.
func (p *Pairer) loop(ctx context.Context, f *flow) error {
	bo := p.cfg.newBackOff()
	for attempt := 0; ; attempt++ {
		retry, err := p.attempt(ctx, f, attempt)
		if !retry {
			return err
		}
		if attempt+1 > p.cfg.MaxRetries {
			f.log.Warn().Int("attempts", attempt+1).Msg("Max retries reached")
			return ErrRetriesExhausted
		}
		delay := bo.NextBackOff()
		p.metrics.retries.Add(ctx, 1)
		f.log.Info().Int("next_attempt", attempt+1).Dur("delay", delay).Msg("Scheduling reconnect")
		if !sleepCtx(ctx, delay) {
			return p.interrupted()
		}
	}
}

// interrupted returns the error for a flow whose context ended.
func (p *Pairer) interrupted() error {
	if p.root.Err() != nil {
		return ErrShuttingDown
	}
	return ErrFlowTimeout
}

func (p *Pairer) restart(reason string) {
	if p.restarter != nil {
		p.restarter.Restart(reason)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func internalError(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, msg, err)
}
