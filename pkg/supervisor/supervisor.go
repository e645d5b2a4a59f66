// Copyright 2024-2026 Aiku AI

// Package supervisor asks an external process manager to restart the service
// after an unrecoverable pairing failure.
package supervisor

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the restart command. PM2ProcessName is a shorthand for
// ["pm2", "restart", name] used when RestartCommand is empty.
type Config struct {
	RestartCommand []string      `yaml:"restart_command" koanf:"restart_command"`
	PM2ProcessName string        `yaml:"pm2_process_name" koanf:"pm2_process_name"`
	Timeout        time.Duration `yaml:"timeout" koanf:"timeout"`
	// Cooldown suppresses restarts requested within this duration of the
	// previous one.
	Cooldown time.Duration `yaml:"cooldown" koanf:"cooldown"`
}

// Command returns the argv to run, or nil if restarts are disabled.
func (c *Config) Command() []string {
	if len(c.RestartCommand) > 0 {
		return c.RestartCommand
	}
	if name := strings.TrimSpace(c.PM2ProcessName); name != "" {
		return []string{"pm2", "restart", name}
	}
	return nil
}

// Hook runs the restart command in the background. Failures are logged and
// never reported to the caller.
type Hook struct {
	argv     []string
	timeout  time.Duration
	cooldown time.Duration
	log      zerolog.Logger

	// run executes argv and returns its combined output.
	run func(ctx context.Context, argv []string) ([]byte, error)

	mu   sync.Mutex
	last time.Time
	wg   sync.WaitGroup
}

func New(cfg Config, log zerolog.Logger) *Hook {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Hook{
		argv:     cfg.Command(),
		timeout:  timeout,
		cooldown: cfg.Cooldown,
		log:      log.With().Str("component", "supervisor").Logger(),
		run:      runCommand,
	}
}

// Enabled reports whether a restart command is configured.
func (h *Hook) Enabled() bool {
	return h != nil && len(h.argv) > 0
}

// Restart starts the restart command unless it is disabled or still cooling
// down. It returns immediately.
func (h *Hook) Restart(reason string) {
	if !h.Enabled() {
		return
	}
	h.mu.Lock()
	now := time.Now()
	if h.cooldown > 0 && !h.last.IsZero() && now.Sub(h.last) < h.cooldown {
		h.mu.Unlock()
		h.log.Debug().Str("reason", reason).Msg("Restart suppressed by cooldown")
		return
	}
	h.last = now
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()
		log := h.log.With().Strs("command", h.argv).Str("reason", reason).Logger()
		out, err := h.run(ctx, h.argv)
		if err != nil {
			log.Error().Err(err).Bytes("output", out).Msg("Restart command failed")
			return
		}
		log.Info().Bytes("output", out).Msg("Restart command finished")
	}()
}

// Wait blocks until started restart commands have finished.
func (h *Hook) Wait() {
	if h == nil {
		return
	}
	h.wg.Wait()
}

func runCommand(ctx context.Context, argv []string) ([]byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return bytes.TrimSpace(out.Bytes()), err
}
