package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/hokuto-m/enrichd/internal/notion"
	"github.com/hokuto-m/enrichd/internal/store"
)

// Job is one webhook delivery bound for the pipeline.
type Job struct {
	ID       string
	Payload  *notion.Payload
	Received time.Time
}

// Researcher produces a company summary.
type Researcher interface {
	Summarize(ctx context.Context, company, website string) (string, error)
}

// PageWriter writes the summary back to the source page.
type PageWriter interface {
	UpdateRichText(ctx context.Context, pageID, property, text string) error
}

// History records terminal runs.
type History interface {
	Insert(ctx context.Context, rec store.Record) error
}

// Marker remembers processed delivery keys for replay suppression.
type Marker interface {
	Mark(key string, t time.Time) error
}

// Status is the externally visible state of the last run plus totals.
type Status struct {
	LastRun    time.Time `json:"last_run"`
	LastPageID string    `json:"last_page_id,omitempty"`
	LastError  string    `json:"error,omitempty"`
	Succeeded  uint64    `json:"succeeded"`
	Failed     uint64    `json:"failed"`
}

// Tracker is a concurrency-safe Status holder.
type Tracker struct {
	mu     sync.RWMutex
	status Status
}

// Record folds one run outcome into the status.
func (t *Tracker) Record(pageID string, finished time.Time, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.LastRun = finished
	t.status.LastPageID = pageID
	if err != nil {
		t.status.LastError = err.Error()
		t.status.Failed++
		return
	}
	t.status.LastError = ""
	t.status.Succeeded++
}

// Current returns a copy of the status.
func (t *Tracker) Current() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// LastRun exposes the fields health checkers need.
func (t *Tracker) LastRun() (time.Time, string) {
	s := t.Current()
	return s.LastRun, s.LastError
}
