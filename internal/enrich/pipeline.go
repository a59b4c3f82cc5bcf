// Package enrich runs the company-enrichment pipeline: extract page fields
// from a webhook delivery, research the company, write the summary back.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	applog "github.com/hokuto-m/enrichd/internal/log"
	"github.com/hokuto-m/enrichd/internal/metrics"
	"github.com/hokuto-m/enrichd/internal/normalize"
	"github.com/hokuto-m/enrichd/internal/store"
	"github.com/rs/zerolog"
)

// ErrNoCompanyInfo indicates neither the title nor the website property
// carried a value; there is nothing to research.
var ErrNoCompanyInfo = errors.New("company info not found (title / website)")

// Pipeline stage names, used for error wrapping, metrics and logs.
const (
	StageExtract   = "extract"
	StageResearch  = "research"
	StageWriteback = "writeback"
)

// Options configures a Pipeline.
type Options struct {
	TitleProp   string
	WebsiteProp string
	OutputProp  string
	SummaryMax  int
}

// Pipeline executes enrichment runs and records their outcomes.
type Pipeline struct {
	opts       Options
	researcher Researcher
	writer     PageWriter
	history    History // optional
	marker     Marker  // optional
	tracker    *Tracker
	onStatus   func(Status) // optional, invoked after every terminal run
}

// NewPipeline wires a pipeline. history, marker and onStatus may be nil.
func NewPipeline(opts Options, researcher Researcher, writer PageWriter, history History, marker Marker, onStatus func(Status)) *Pipeline {
	return &Pipeline{
		opts:       opts,
		researcher: researcher,
		writer:     writer,
		history:    history,
		marker:     marker,
		tracker:    &Tracker{},
		onStatus:   onStatus,
	}
}

// Tracker exposes the status holder for API and health wiring.
func (p *Pipeline) Tracker() *Tracker { return p.tracker }

// Run executes one job to a terminal state. The returned error is the
// pipeline failure, already recorded in status, history and metrics.
func (p *Pipeline) Run(ctx context.Context, job Job) error {
	ctx = applog.ContextWithJobID(ctx, job.ID)
	logger := applog.WithComponentFromContext(ctx, "enrich")
	started := time.Now()
	pageID := job.Payload.PageID()

	logger.Info().
		Str("event", "enrich.start").
		Str(applog.FieldPageID, pageID).
		Msg("starting enrichment")

	rec := store.Record{
		ID:        job.ID,
		PageID:    pageID,
		StartedAt: started,
	}

	summaryLen, company, website, err := p.run(ctx, job, &logger)
	rec.Company = company
	rec.Website = website
	rec.SummaryLen = summaryLen
	rec.FinishedAt = time.Now()

	if err != nil {
		rec.Status = "failure"
		rec.Error = err.Error()
		metrics.IncEnrichment("failure")
		logger.Error().
			Err(err).
			Str("event", "enrich.failed").
			Str(applog.FieldPageID, pageID).
			Dur("duration", rec.FinishedAt.Sub(started)).
			Msg("enrichment failed")
	} else {
		rec.Status = "success"
		metrics.IncEnrichment("success")
		metrics.ObserveSummaryRunes(summaryLen)
		// Only successful runs are marked: a failed delivery should be
		// retried when the sender redelivers it.
		if p.marker != nil {
			if merr := p.marker.Mark(job.Payload.DedupKey(), rec.FinishedAt); merr != nil {
				logger.Warn().Err(merr).Str("event", "enrich.mark_error").Msg("failed to mark delivery as processed")
			}
		}
		logger.Info().
			Str("event", "enrich.done").
			Str(applog.FieldPageID, pageID).
			Int("summary_runes", summaryLen).
			Dur("duration", rec.FinishedAt.Sub(started)).
			Msg("enrichment complete")
	}

	metrics.ObserveEnrichment(rec.FinishedAt.Sub(started).Seconds())
	p.tracker.Record(pageID, rec.FinishedAt, err)

	if p.history != nil {
		if herr := p.history.Insert(ctx, rec); herr != nil {
			logger.Error().Err(herr).Str("event", "enrich.history_error").Msg("failed to record enrichment history")
		}
	}
	if p.onStatus != nil {
		p.onStatus(p.tracker.Current())
	}
	return err
}

// run executes the three stages and returns the summary length plus the
// extracted fields for the history row.
func (p *Pipeline) run(ctx context.Context, job Job, logger *zerolog.Logger) (int, string, string, error) {
	company, website := job.Payload.Extract(p.opts.TitleProp, p.opts.WebsiteProp)
	company = normalize.Name(company)
	if company == "" && website == "" {
		metrics.IncStageFailure(StageExtract)
		return 0, "", "", fmt.Errorf("%s: %w", StageExtract, ErrNoCompanyInfo)
	}

	logger.Debug().
		Str("event", "enrich.extracted").
		Str(applog.FieldCompany, company).
		Str(applog.FieldWebsite, website).
		Msg("extracted company info")

	summary, err := p.researcher.Summarize(ctx, company, website)
	if err != nil {
		metrics.IncStageFailure(StageResearch)
		metrics.IncUpstream("openai", "failure")
		return 0, company, website, fmt.Errorf("%s: %w", StageResearch, err)
	}
	metrics.IncUpstream("openai", "success")

	summary = normalize.Truncate(summary, p.opts.SummaryMax)

	if err := p.writer.UpdateRichText(ctx, job.Payload.PageID(), p.opts.OutputProp, summary); err != nil {
		metrics.IncStageFailure(StageWriteback)
		metrics.IncUpstream("notion", "failure")
		return 0, company, website, fmt.Errorf("%s: %w", StageWriteback, err)
	}
	metrics.IncUpstream("notion", "success")

	return utf8.RuneCountInString(summary), company, website, nil
}
