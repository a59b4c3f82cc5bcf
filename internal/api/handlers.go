package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hokuto-m/enrichd/internal/enrich"
	applog "github.com/hokuto-m/enrichd/internal/log"
	"github.com/hokuto-m/enrichd/internal/metrics"
	"github.com/hokuto-m/enrichd/internal/notion"
)

// maxBodyBytes caps webhook bodies; Notion payloads are a few KB.
const maxBodyBytes = 1 << 20

// handleWebhook is the intake for Notion automation deliveries.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := applog.WithComponentFromContext(r.Context(), "webhook")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		metrics.IncWebhook("rejected")
		writeFail(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	payload, err := notion.ParsePayload(body)
	if err != nil {
		metrics.IncWebhook("rejected")
		logger.Warn().Err(err).Str("event", "webhook.bad_payload").Msg("rejecting webhook body")
		writeFail(w, http.StatusBadRequest, err.Error())
		return
	}

	company, website := payload.Extract(s.cfg.TitleProp, s.cfg.WebsiteProp)
	if company == "" && website == "" {
		metrics.IncWebhook("rejected")
		logger.Warn().
			Str("event", "webhook.no_company_info").
			Str(applog.FieldPageID, payload.PageID()).
			Msg("payload carries neither title nor website")
		writeFail(w, http.StatusUnprocessableEntity, enrich.ErrNoCompanyInfo.Error())
		return
	}

	if s.dedup != nil {
		seen, derr := s.dedup.Seen(payload.DedupKey())
		if derr != nil {
			logger.Error().Err(derr).Str("event", "webhook.dedup_error").Msg("dedup lookup failed, processing anyway")
		} else if seen {
			metrics.IncWebhook("duplicate")
			logger.Info().
				Str("event", "webhook.duplicate").
				Str(applog.FieldPageID, payload.PageID()).
				Msg("suppressing redelivery")
			writeOK(w, http.StatusOK, map[string]any{"duplicate": true})
			return
		}
	}

	job := enrich.Job{
		ID:       uuid.NewString(),
		Payload:  payload,
		Received: time.Now(),
	}

	if s.cfg.Sync {
		s.runSync(w, r, job)
		return
	}

	if err := s.pool.Enqueue(job); err != nil {
		if errors.Is(err, enrich.ErrQueueFull) {
			metrics.IncWebhook("shed")
			writeFail(w, http.StatusServiceUnavailable, "enrichment queue is full")
			return
		}
		metrics.IncWebhook("shed")
		writeFail(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	metrics.IncWebhook("accepted")
	logger.Info().
		Str("event", "webhook.accepted").
		Str(applog.FieldJobID, job.ID).
		Str(applog.FieldPageID, payload.PageID()).
		Msg("job enqueued")
	writeOK(w, http.StatusAccepted, map[string]any{"job_id": job.ID})
}

// runSync processes the job on the request goroutine (Lambda-parity mode).
func (s *Server) runSync(w http.ResponseWriter, r *http.Request, job enrich.Job) {
	metrics.IncWebhook("accepted")
	if err := s.pipeline.Run(r.Context(), job); err != nil {
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, http.StatusOK, nil)
}

// handleStatus reports the last-run status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.pipeline.Tracker().Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      st,
		"queue_depth": s.queueDepth(),
		"uptime":      time.Since(s.startTime).String(),
	})
}

// handleEnrichments lists recent runs from the history store.
func (s *Server) handleEnrichments(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeFail(w, http.StatusNotImplemented, "history store is not configured")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := parsePositive(v); err == nil {
			limit = n
		}
	}
	recs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		logger := applog.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).Str("event", "history.query_error").Msg("failed to list enrichments")
		writeFail(w, http.StatusInternalServerError, "failed to list enrichments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enrichments": recs, "count": len(recs)})
}

func (s *Server) queueDepth() int {
	if s.pool == nil {
		return 0
	}
	return s.pool.Depth()
}
