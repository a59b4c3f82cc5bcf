package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler assembles the router with the full middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(recoverer)

	// probes and metrics stay unauthenticated and un-ratelimited
	r.Get("/healthz", s.healthManager.ServeHealth)
	r.Get("/readyz", s.healthManager.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.cfg.RateRPS > 0 {
			// fixed window sized so the average stays at RateRPS while
			// allowing bursts up to RateBurst
			limit := s.cfg.RateBurst
			if limit < s.cfg.RateRPS {
				limit = s.cfg.RateRPS
			}
			window := time.Duration(limit/s.cfg.RateRPS) * time.Second
			if window < time.Second {
				window = time.Second
			}
			r.Use(httprate.LimitByIP(limit, window))
		}
		r.With(s.webhookAuth).Post("/webhook/notion", s.handleWebhook)
	})

	r.Get("/api/status", s.handleStatus)
	r.Get("/api/enrichments", s.handleEnrichments)

	var h http.Handler = r
	if s.cfg.OTLPEndpoint != "" {
		h = otelhttp.NewHandler(r, "enrichd-api")
	}
	return h
}

// parsePositive parses a positive integer query parameter.
func parsePositive(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("value must be positive, got %d", n)
	}
	return n, nil
}
