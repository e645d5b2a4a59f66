// Copyright 2024-2026 Aiku AI

package pairapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.mau.fi/util/exhttp"
	"go.mau.fi/util/requestlog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const serviceName = "wa-pairing"

var errorBodies = exhttp.ErrorBodies{
	NotFound:         json.RawMessage(`{"error":"Not found"}`),
	MethodNotAllowed: json.RawMessage(`{"error":"Method not allowed"}`),
}

// Server is the public HTTP surface: /pair, /healthz and /metrics.
type Server struct {
	cfg          Config
	log          zerolog.Logger
	handler      http.Handler
	shuttingDown atomic.Bool
}

// NewServer wires the routes. metrics may be nil to disable /metrics.
func NewServer(cfg Config, pair http.Handler, metrics http.Handler, log zerolog.Logger) *Server {
	s := &Server{
		cfg: cfg,
		log: log.With().Str("component", "http").Logger(),
	}

	mux := http.NewServeMux()
	mux.Handle("GET /pair", pair)
	mux.Handle("GET /{$}", pair)
	mux.HandleFunc("GET /healthz", s.healthz)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	handler := exhttp.ApplyMiddleware(
		mux,
		hlog.NewHandler(s.log),
		hlog.RequestIDHandler("request_id", "X-Request-ID"),
		redactQuery,
		requestlog.AccessLogger(requestlog.Options{
			TrustXForwardedFor: cfg.TrustForwardedFor,
			Recover:            true,
		}),
		exhttp.HandleErrors(errorBodies),
	)
	s.handler = otelhttp.NewHandler(handler, serviceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	if s.shuttingDown.Load() {
		exhttp.WriteJSONResponse(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "shutting_down",
			"service": serviceName,
		})
		return
	}
	exhttp.WriteJSONResponse(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}

// redactQuery keeps phone numbers out of access logs. Handlers read the
// query from r.URL, which is left untouched.
func redactQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			r = r.Clone(r.Context())
			r.RequestURI = r.URL.Path
		}
		next.ServeHTTP(w, r)
	})
}

// Run serves on ln (or cfg.Address when ln is nil) until ctx is cancelled,
// then drains in-flight requests.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	if ln == nil {
		var err error
		ln, err = (&net.ListenConfig{}).Listen(ctx, "tcp", s.cfg.Address)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err)
		}
	}
	server := &http.Server{
		Handler:      s,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info().Str("address", ln.Addr().String()).Msg("Starting HTTP server")
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.log.Info().Msg("Shutting down HTTP server")
		s.shuttingDown.Store(true)

		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Err(err).Msg("HTTP server shutdown error")
			return err
		}
		return nil
	})
	return g.Wait()
}
