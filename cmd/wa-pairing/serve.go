// Copyright 2024-2026 Aiku AI

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.mau.fi/util/exzerolog"

	"github.com/aiku/wa-pairing/pkg/config"
	"github.com/aiku/wa-pairing/pkg/connector"
	"github.com/aiku/wa-pairing/pkg/notify"
	"github.com/aiku/wa-pairing/pkg/pairapi"
	"github.com/aiku/wa-pairing/pkg/pairing"
	"github.com/aiku/wa-pairing/pkg/ratelimit"
	"github.com/aiku/wa-pairing/pkg/supervisor"
	"github.com/aiku/wa-pairing/pkg/telemetry"
	"github.com/aiku/wa-pairing/pkg/upload"
)

func newServeCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pairing HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cfg, err := config.Load(flags.configPath, !flags.noUpdate)
			if err != nil {
				return err
			}
			log, err := cfg.Logging.Compile()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			exzerolog.SetupDefaults(log)
			if err := serve(cmd.Context(), cfg, *log); err != nil {
				log.Err(err).Msg("Service failed")
				return err
			}
			return nil
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	log.Info().
		Str("version", Tag).
		Str("commit", Commit).
		Str("built", BuildTime).
		Msg("Starting wa-pairing")

	tel, err := telemetry.Init(ctx, cfg.Telemetry, Tag, log)
	if err != nil {
		return err
	}
	defer shutdownWithTimeout(log, "telemetry", tel.Shutdown)

	if err := os.MkdirAll(cfg.WhatsApp.SessionsDir, 0o700); err != nil {
		return fmt.Errorf("failed to create sessions directory: %w", err)
	}
	wc := connector.NewWhatsAppConnector(cfg.WhatsApp, log)

	uploader, err := upload.New(ctx, cfg.Upload, log)
	if err != nil {
		return fmt.Errorf("failed to initialize uploader: %w", err)
	}
	limiter, err := ratelimit.New(cfg.RateLimit, log)
	if err != nil {
		return fmt.Errorf("failed to initialize rate limiter: %w", err)
	}
	defer func() {
		if err := limiter.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close rate limiter")
		}
	}()
	notifier, err := notify.New(cfg.Notify, log)
	if err != nil {
		return fmt.Errorf("failed to initialize notifications: %w", err)
	}
	hook := supervisor.New(cfg.Supervisor, log)
	defer hook.Wait()
	if !hook.Enabled() {
		log.Debug().Msg("Restart hook disabled")
	}

	pairer, err := pairing.New(cfg.Pairing, pairing.Deps{
		Opener:    pairing.ConnectorOpener(wc),
		Uploader:  uploader,
		Notifier:  notifier,
		Restarter: hook,
		Messages:  &wc.Config,
		Backend:   cfg.Upload.Backend,
		Sealed:    len(cfg.Upload.AgeRecipients) > 0,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize pairing: %w", err)
	}
	defer shutdownWithTimeout(log, "pairing flows", pairer.Shutdown)

	handler := pairapi.NewPairHandler(pairer, limiter, cfg.HTTP.RequestTimeout)
	server := pairapi.NewServer(cfg.HTTP, handler, tel.MetricsHandler(), log)
	return server.Run(ctx, nil)
}

func shutdownWithTimeout(log zerolog.Logger, what string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Warn().Err(err).Str("component", what).Msg("Shutdown incomplete")
	}
}
