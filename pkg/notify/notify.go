// Copyright 2024-2026 Aiku AI

// Package notify tells operators when a phone number finished pairing. It
// never carries the session ID or any credential material.
package notify

import (
	"context"
	"errors"
	"fmt"
	"text/template"
	"time"

	"github.com/rs/zerolog"
)

const defaultTemplate = "**Paired** {{.Number}} via {{.Backend}} at {{.Time.Format \"2006-01-02 15:04:05 MST\"}}"

// Config holds the notification template and the sinks to deliver to. A sink
// without credentials is disabled.
type Config struct {
	Template   string           `yaml:"template" koanf:"template"`
	Matrix     MatrixConfig     `yaml:"matrix" koanf:"matrix"`
	Mattermost MattermostConfig `yaml:"mattermost" koanf:"mattermost"`

	template *template.Template `yaml:"-"`
}

// PostProcess compiles the message template.
func (c *Config) PostProcess() error {
	tmpl := c.Template
	if tmpl == "" {
		tmpl = defaultTemplate
	}
	var err error
	c.template, err = template.New("notify").Parse(tmpl)
	if err != nil {
		return fmt.Errorf("failed to parse notify template: %w", err)
	}
	return nil
}

// Paired describes a completed pairing.
type Paired struct {
	// Number is the masked phone number.
	Number  string
	Backend string
	Sealed  bool
	Time    time.Time
}

// Sink delivers a rendered Markdown message.
type Sink interface {
	Name() string
	Send(ctx context.Context, markdown string) error
}

// Notifier renders Paired events and fans them out to every sink.
type Notifier struct {
	sinks    []Sink
	template *template.Template
	log      zerolog.Logger
}

// New builds a Notifier with the sinks enabled in cfg. PostProcess must have
// been called on cfg.
func New(cfg Config, log zerolog.Logger) (*Notifier, error) {
	var sinks []Sink
	if cfg.Matrix.Enabled() {
		sink, err := NewMatrix(cfg.Matrix)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	if cfg.Mattermost.Enabled() {
		sinks = append(sinks, NewMattermost(cfg.Mattermost))
	}
	return NewWithSinks(cfg, log, sinks...), nil
}

// NewWithSinks builds a Notifier delivering to the given sinks.
func NewWithSinks(cfg Config, log zerolog.Logger, sinks ...Sink) *Notifier {
	tmpl := cfg.template
	if tmpl == nil {
		tmpl = template.Must(template.New("notify").Parse(defaultTemplate))
	}
	return &Notifier{
		sinks:    sinks,
		template: tmpl,
		log:      log.With().Str("component", "notify").Logger(),
	}
}

// Enabled reports whether any sink is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.sinks) > 0
}

// Render formats evt with the configured template.
func (n *Notifier) Render(evt Paired) (string, error) {
	var buf []byte
	if err := n.template.Execute((*templateBuffer)(&buf), evt); err != nil {
		return "", fmt.Errorf("failed to render notification: %w", err)
	}
	return string(buf), nil
}

// Notify delivers evt to every sink. Sink failures are logged and joined
// into the returned error; one failing sink doesn't stop the others.
func (n *Notifier) Notify(ctx context.Context, evt Paired) error {
	if !n.Enabled() {
		return nil
	}
	msg, err := n.Render(evt)
	if err != nil {
		n.log.Err(err).Msg("Failed to render notification")
		return err
	}
	var errs []error
	for _, sink := range n.sinks {
		if err := sink.Send(ctx, msg); err != nil {
			n.log.Warn().Err(err).Str("sink", sink.Name()).Msg("Failed to send notification")
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		n.log.Debug().Str("sink", sink.Name()).Msg("Notification sent")
	}
	return errors.Join(errs...)
}

type templateBuffer []byte

func (b *templateBuffer) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}
