package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"
	applog "github.com/hokuto-m/enrichd/internal/log"
)

// requestIDHeader is honored from upstream proxies; otherwise an id is minted.
const requestIDHeader = "X-Request-ID"

// webhookTokenHeader carries the shared verification token when configured.
const webhookTokenHeader = "X-Enrichd-Token"

// requestID attaches a request id to the context and response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, rid)
		next.ServeHTTP(w, r.WithContext(applog.ContextWithRequestID(r.Context(), rid)))
	})
}

// statusRecorder captures the response code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogger emits one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger := applog.WithComponentFromContext(r.Context(), "api")
		logger.Info().
			Str("event", "http.request").
			Str("method", r.Method).
			Str(applog.FieldPath, r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request handled")
	})
}

// recoverer converts handler panics into 500s instead of dropping connections.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger := applog.WithComponentFromContext(r.Context(), "api")
				logger.Error().
					Str("event", "http.panic").
					Interface("panic", rec).
					Str(applog.FieldPath, r.URL.Path).
					Msg("handler panicked")
				writeFail(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// webhookAuth verifies the shared token when one is configured.
func (s *Server) webhookAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.WebhookToken != "" {
			got := r.Header.Get(webhookTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.WebhookToken)) != 1 {
				logger := applog.WithComponentFromContext(r.Context(), "api")
				logger.Warn().
					Str("event", "webhook.auth_failure").
					Str("remote", r.RemoteAddr).
					Msg("webhook token mismatch")
				writeUnauthorized(w)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
