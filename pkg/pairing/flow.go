// Copyright 2024-2026 Aiku AI

package pairing

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aiku/wa-pairing/pkg/connector"
	"github.com/aiku/wa-pairing/pkg/notify"
	"github.com/aiku/wa-pairing/pkg/upload"
)

// flow is the state of one pairing request.
type flow struct {
	id      string
	number  Number
	dir     string
	started time.Time
	log     zerolog.Logger
	metrics *metrics

	out  chan Outcome
	once sync.Once
}

// respond delivers o unless an outcome was already delivered, in which case
// o is only logged.
func (f *flow) respond(ctx context.Context, o Outcome) {
	sent := false
	f.once.Do(func() {
		f.out <- o
		close(f.out)
		sent = true
	})
	if !sent {
		f.log.Debug().Int("status", o.Status).Msg("Outcome already delivered, dropping")
		return
	}
	if f.metrics != nil {
		f.metrics.outcome(ctx, o, f.started)
	}
	if !o.IsSuccess() {
		f.log.Warn().Int("status", o.Status).Msg("Pairing failed")
		return
	}
	f.log.Info().Int("status", o.Status).Msg("Pairing outcome delivered")
}

func (f *flow) fail(ctx context.Context, err error) {
	trace.SpanFromContext(ctx).RecordError(err)
	f.respond(ctx, OutcomeFor(err))
}

func (f *flow) removeDir() {
	if f.dir == "" {
		return
	}
	if err := os.RemoveAll(f.dir); err != nil {
		f.log.Warn().Err(err).Str("session_dir", f.dir).Msg("Failed to remove session directory")
		return
	}
	f.log.Debug().Str("session_dir", f.dir).Msg("Removed session directory")
	f.dir = ""
}

// attempt opens the session once and follows it until the connection opens
// or closes. retry is true for transient closes.
func (p *Pairer) attempt(ctx context.Context, f *flow, n int) (retry bool, err error) {
	ctx, span := tracer.Start(ctx, "pairing.attempt", trace.WithAttributes(
		attribute.Int("pairing.attempt", n),
	))
	defer span.End()
	p.metrics.attempts.Add(ctx, 1)
	log := f.log.With().Int("attempt", n).Logger()

	sess, err := p.opener.Open(ctx, f.dir)
	if err != nil {
		log.Err(err).Msg("Failed to open session")
		p.restart("failed to open session")
		return false, ErrSessionUnavailable
	}
	defer sess.Close()

	events := sess.Events()
	if err := sess.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to connect")
		return true, nil
	}

	if !sess.Registered() {
		code, err := sess.RequestPairingCode(ctx, string(f.number))
		if err != nil {
			log.Err(err).Msg("Failed to request pairing code")
			return false, ErrPairingCode
		}
		log.Info().Msg("Pairing code issued")
		f.respond(ctx, PairingCodeOutcome(code))
	}

	for {
		select {
		case <-ctx.Done():
			return false, p.interrupted()
		case evt := <-events:
			switch evt := evt.(type) {
			case connector.CredsUpdate:
				if _, err := sess.ExportCreds(); err != nil {
					log.Warn().Err(err).Msg("Failed to export credentials")
				}
			case connector.ConnectionUpdate:
				switch evt.State {
				case connector.StateOpen:
					log.Info().Msg("Connection open")
					return false, p.complete(ctx, f, sess)
				case connector.StateClose:
					if evt.IsAuthFailure() {
						log.Warn().Stringer("update", evt).Msg("Authentication failure, not retrying")
						return false, ErrAuthFailure
					}
					log.Warn().Stringer("update", evt).Msg("Connection closed")
					return true, nil
				}
			}
		}
	}
}

// complete uploads the credentials of an open session and tells the user
// their session ID.
func (p *Pairer) complete(ctx context.Context, f *flow, sess Session) (err error) {
	ctx, span := tracer.Start(ctx, "pairing.complete")
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			f.log.Error().Any("panic", r).Bytes("stack", debug.Stack()).Msg("Panic while completing pairing")
			err = ErrInternal
		}
		if err == nil {
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrInternal) {
			p.restart("pairing completion failed")
			f.removeDir()
		}
	}()

	if !sleepCtx(ctx, p.cfg.FlushDelay) {
		return p.interrupted()
	}
	if _, err := sess.ExportCreds(); err != nil {
		f.log.Warn().Err(err).Msg("Failed to export credentials")
	}

	file, err := os.Open(filepath.Join(f.dir, connector.CredsFileName))
	if errors.Is(err, fs.ErrNotExist) {
		f.log.Error().Msg("Credentials file not found after connection opened")
		return ErrCredsNotFound
	} else if err != nil {
		return internalError("failed to open credentials", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return internalError("failed to stat credentials", err)
	}

	userJID := sess.UserJID()
	if userJID == "" {
		f.log.Error().Msg("Paired account has no user ID")
		return ErrNoUserID
	}

	obj, err := p.uploader.Upload(ctx, upload.NewObjectName(), file, info.Size())
	if err != nil {
		f.log.Err(err).Msg("Failed to upload credentials")
		return ErrUploadFailed
	}
	sessionID := obj.SessionID(p.uploader.LinkPrefix())
	f.log.Info().Str("object_key", obj.Key).Msg("Credentials uploaded")

	p.sendConfirmation(ctx, f, sess, userJID, sessionID)
	p.notify(ctx, f)

	f.removeDir()
	f.respond(ctx, SessionOutcome(sessionID))
	return nil
}

// sendConfirmation sends the session image, the bare session ID and the
// warning. Failures are logged per message and don't fail the flow.
func (p *Pairer) sendConfirmation(ctx context.Context, f *flow, sess Session, to, sessionID string) {
	caption := p.messages.FormatCaption(connector.CaptionParams{
		SessionID: sessionID,
		Number:    string(f.number),
	})
	messages := []struct {
		name string
		send func(ctx context.Context) error
	}{
		{"session_image", func(ctx context.Context) error {
			if p.messages.ImageURL == "" {
				return sess.SendText(ctx, to, caption)
			}
			return sess.SendImage(ctx, to, p.messages.ImageURL, caption)
		}},
		{"session_id", func(ctx context.Context) error {
			return sess.SendText(ctx, to, sessionID)
		}},
		{"warning", func(ctx context.Context) error {
			if p.messages.Warning == "" {
				return nil
			}
			return sess.SendText(ctx, to, p.messages.Warning)
		}},
	}
	for _, msg := range messages {
		sendCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.cfg.SendTimeout > 0 {
			sendCtx, cancel = context.WithTimeout(ctx, p.cfg.SendTimeout)
		}
		err := msg.send(sendCtx)
		cancel()
		if err != nil {
			f.log.Warn().Err(err).Str("message", msg.name).Msg("Failed to send confirmation message")
			continue
		}
		f.log.Debug().Str("message", msg.name).Msg("Sent confirmation message")
	}
}

func (p *Pairer) notify(ctx context.Context, f *flow) {
	if p.notifier == nil {
		return
	}
	err := p.notifier.Notify(ctx, notify.Paired{
		Number:  f.number.Masked(),
		Backend: p.backend,
		Sealed:  p.sealed,
		Time:    time.Now(),
	})
	if err != nil {
		f.log.Warn().Err(err).Msg("Pairing notification incomplete")
	}
}
