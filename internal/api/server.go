// Package api provides the HTTP surface of the enrichd daemon: webhook
// intake, status/history endpoints and operational probes.
package api

import (
	"context"
	"time"

	"github.com/hokuto-m/enrichd/internal/config"
	"github.com/hokuto-m/enrichd/internal/enrich"
	"github.com/hokuto-m/enrichd/internal/health"
	"github.com/hokuto-m/enrichd/internal/store"
)

// Deduper answers whether a delivery was already processed.
type Deduper interface {
	Seen(key string) (bool, error)
}

// HistoryReader lists recent enrichment runs.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]store.Record, error)
}

// Server is the HTTP API server for enrichd.
type Server struct {
	cfg           config.Snapshot
	pipeline      *enrich.Pipeline
	pool          *enrich.Pool
	dedup         Deduper       // optional
	history       HistoryReader // optional
	healthManager *health.Manager
	startTime     time.Time
}

// New wires a server. dedup and history may be nil (degraded feature set);
// pool may be nil only when cfg.Sync is true.
func New(cfg config.Snapshot, pipeline *enrich.Pipeline, pool *enrich.Pool, dedup Deduper, history HistoryReader, hm *health.Manager) *Server {
	return &Server{
		cfg:           cfg,
		pipeline:      pipeline,
		pool:          pool,
		dedup:         dedup,
		history:       history,
		healthManager: hm,
		startTime:     time.Now(),
	}
}
