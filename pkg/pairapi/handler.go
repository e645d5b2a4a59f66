// Copyright 2024-2026 Aiku AI

package pairapi

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.mau.fi/util/exhttp"

	"github.com/aiku/wa-pairing/pkg/pairing"
	"github.com/aiku/wa-pairing/pkg/ratelimit"
)

// Pairer starts pairing flows. *pairing.Pairer implements it.
type Pairer interface {
	Pair(ctx context.Context, number pairing.Number) <-chan pairing.Outcome
}

// PairHandler serves GET /pair?number=…
type PairHandler struct {
	pairer  Pairer
	limiter ratelimit.Limiter
	timeout time.Duration
}

// NewPairHandler creates the /pair handler. A nil limiter admits every
// request.
func NewPairHandler(pairer Pairer, limiter ratelimit.Limiter, timeout time.Duration) *PairHandler {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &PairHandler{
		pairer:  pairer,
		limiter: limiter,
		timeout: timeout,
	}
}

func (h *PairHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	number, err := pairing.ParseNumber(r.URL.Query().Get("number"))
	if err != nil {
		writeOutcome(w, pairing.OutcomeFor(err))
		return
	}
	log.UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("number", number.Masked())
	})

	allowed, err := h.limiter.Allow(r.Context(), string(number))
	if err != nil {
		log.Err(err).Msg("Rate limiter unavailable, rejecting request")
		writeOutcome(w, pairing.OutcomeFor(pairing.ErrAdmissionFailed))
		return
	} else if !allowed {
		log.Debug().Msg("Pairing request rate limited")
		writeOutcome(w, pairing.OutcomeFor(pairing.ErrRateLimited))
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	select {
	case outcome := <-h.pairer.Pair(r.Context(), number):
		writeOutcome(w, outcome)
	case <-ctx.Done():
		if r.Context().Err() != nil {
			log.Info().Msg("Client went away before the pairing outcome, flow continues")
			return
		}
		log.Warn().Dur("timeout", h.timeout).Msg("Timed out waiting for pairing outcome")
		writeOutcome(w, pairing.OutcomeFor(pairing.ErrFlowTimeout))
	}
}

func writeOutcome(w http.ResponseWriter, outcome pairing.Outcome) {
	exhttp.WriteJSONResponse(w, outcome.Status, outcome.Body)
}
