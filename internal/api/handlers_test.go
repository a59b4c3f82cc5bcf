// SPDX-License-Identifier: MIT
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hokuto-m/enrichd/internal/config"
	"github.com/hokuto-m/enrichd/internal/enrich"
	"github.com/hokuto-m/enrichd/internal/health"
	"github.com/hokuto-m/enrichd/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResearcher struct {
	summary string
	err     error
}

func (s *stubResearcher) Summarize(context.Context, string, string) (string, error) {
	return s.summary, s.err
}

type stubWriter struct {
	err error
}

func (s *stubWriter) UpdateRichText(context.Context, string, string, string) error {
	return s.err
}

type stubDeduper struct {
	seen bool
	err  error
}

func (s *stubDeduper) Seen(string) (bool, error) { return s.seen, s.err }

type stubHistory struct {
	mu   sync.Mutex
	recs []store.Record
	err  error
}

func (s *stubHistory) Recent(_ context.Context, limit int) ([]store.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit > len(s.recs) {
		limit = len(s.recs)
	}
	return s.recs[:limit], nil
}

func testConfig() config.Snapshot {
	cfg := config.Defaults()
	cfg.NotionAPIKey = "secret_test"
	cfg.OpenAIAPIKey = "sk-test"
	cfg.RateRPS = 0 // rate limiting off unless a test enables it
	return cfg
}

type serverEnv struct {
	srv  *Server
	pool *enrich.Pool
}

func newTestServer(t *testing.T, cfg config.Snapshot, researcher enrich.Researcher, writer enrich.PageWriter, dedup Deduper, history HistoryReader) *serverEnv {
	t.Helper()

	pipeline := enrich.NewPipeline(enrich.Options{
		TitleProp:   cfg.TitleProp,
		WebsiteProp: cfg.WebsiteProp,
		OutputProp:  cfg.OutputProp,
		SummaryMax:  cfg.SummaryMax,
	}, researcher, writer, nil, nil, nil)

	var pool *enrich.Pool
	if !cfg.Sync {
		pool = enrich.NewPool(pipeline, 1, cfg.QueueSize)
		pool.Start()
		t.Cleanup(func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = pool.Shutdown(shutdownCtx)
		})
	}

	hm := health.NewManager("test")
	return &serverEnv{srv: New(cfg, pipeline, pool, dedup, history, hm), pool: pool}
}

const webhookBody = `{
	"id": "evt-1",
	"data": {
		"id": "page-1",
		"properties": {
			"企業名": {"title": [{"plain_text": "Acme"}]},
			"Website": {"url": "https://acme.test"}
		}
	}
}`

func postWebhook(t *testing.T, h http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/notion", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestWebhookAcceptedAsync(t *testing.T) {
	env := newTestServer(t, testConfig(), &stubResearcher{summary: "ok"}, &stubWriter{}, nil, nil)
	h := env.srv.Handler()

	rr := postWebhook(t, h, webhookBody, nil)
	require.Equal(t, http.StatusAccepted, rr.Code)

	body := decode(t, rr)
	assert.Equal(t, true, body["ok"])
	assert.NotEmpty(t, body["job_id"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestWebhookBadPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", `{"broken`, http.StatusBadRequest},
		{"missing page id", `{"data": {"properties": {}}}`, http.StatusBadRequest},
		{"no company info", `{"data": {"id": "p1", "properties": {}}}`, http.StatusUnprocessableEntity},
	}

	env := newTestServer(t, testConfig(), &stubResearcher{summary: "ok"}, &stubWriter{}, nil, nil)
	h := env.srv.Handler()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postWebhook(t, h, tt.body, nil)
			assert.Equal(t, tt.want, rr.Code)
			body := decode(t, rr)
			assert.Equal(t, false, body["ok"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestWebhookDuplicate(t *testing.T) {
	env := newTestServer(t, testConfig(), &stubResearcher{summary: "ok"}, &stubWriter{}, &stubDeduper{seen: true}, nil)
	h := env.srv.Handler()

	rr := postWebhook(t, h, webhookBody, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode(t, rr)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, true, body["duplicate"])
}

func TestWebhookDedupLookupErrorStillProcesses(t *testing.T) {
	env := newTestServer(t, testConfig(), &stubResearcher{summary: "ok"}, &stubWriter{}, &stubDeduper{err: errors.New("badger closed")}, nil)
	h := env.srv.Handler()

	rr := postWebhook(t, h, webhookBody, nil)
	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestWebhookTokenAuth(t *testing.T) {
	cfg := testConfig()
	cfg.WebhookToken = "hunter2"
	env := newTestServer(t, cfg, &stubResearcher{summary: "ok"}, &stubWriter{}, nil, nil)
	h := env.srv.Handler()

	rr := postWebhook(t, h, webhookBody, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = postWebhook(t, h, webhookBody, map[string]string{"X-Enrichd-Token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = postWebhook(t, h, webhookBody, map[string]string{"X-Enrichd-Token": "hunter2"})
	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestWebhookSyncMode(t *testing.T) {
	cfg := testConfig()
	cfg.Sync = true

	t.Run("success", func(t *testing.T) {
		env := newTestServer(t, cfg, &stubResearcher{summary: "ok"}, &stubWriter{}, nil, nil)
		rr := postWebhook(t, env.srv.Handler(), webhookBody, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, true, decode(t, rr)["ok"])
	})

	t.Run("pipeline failure", func(t *testing.T) {
		env := newTestServer(t, cfg, &stubResearcher{err: errors.New("model unavailable")}, &stubWriter{}, nil, nil)
		rr := postWebhook(t, env.srv.Handler(), webhookBody, nil)
		require.Equal(t, http.StatusInternalServerError, rr.Code)
		body := decode(t, rr)
		assert.Equal(t, false, body["ok"])
		assert.Contains(t, body["error"], "research")
	})
}

func TestStatusEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Sync = true
	env := newTestServer(t, cfg, &stubResearcher{summary: "ok"}, &stubWriter{}, nil, nil)
	h := env.srv.Handler()

	// run one job through so the status is non-trivial
	rr := postWebhook(t, h, webhookBody, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	status := body["status"].(map[string]any)
	assert.Equal(t, float64(1), status["succeeded"])
	assert.Equal(t, "page-1", status["last_page_id"])
}

func TestEnrichmentsEndpoint(t *testing.T) {
	history := &stubHistory{recs: []store.Record{
		{ID: "job-2", PageID: "p2", Status: "success"},
		{ID: "job-1", PageID: "p1", Status: "failure", Error: "research: boom"},
	}}

	env := newTestServer(t, testConfig(), &stubResearcher{summary: "ok"}, &stubWriter{}, nil, history)
	h := env.srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/enrichments?limit=1", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode(t, rr)
	assert.Equal(t, float64(1), body["count"])
}

func TestEnrichmentsWithoutHistory(t *testing.T) {
	env := newTestServer(t, testConfig(), &stubResearcher{summary: "ok"}, &stubWriter{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/enrichments", nil)
	rr := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotImplemented, rr.Code)
}

func TestProbesWired(t *testing.T) {
	env := newTestServer(t, testConfig(), &stubResearcher{summary: "ok"}, &stubWriter{}, nil, nil)
	h := env.srv.Handler()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestWebhookBodyTooLarge(t *testing.T) {
	env := newTestServer(t, testConfig(), &stubResearcher{summary: "ok"}, &stubWriter{}, nil, nil)

	big := strings.Repeat("x", maxBodyBytes+1)
	rr := postWebhook(t, env.srv.Handler(), big, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}
