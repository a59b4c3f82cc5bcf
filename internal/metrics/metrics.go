// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook intake metrics
	webhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enrichd_webhook_requests_total",
		Help: "Webhook deliveries by outcome",
	}, []string{"outcome"}) // outcome=accepted|duplicate|rejected|shed

	// Enrichment pipeline metrics
	enrichmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enrichd_enrichments_total",
		Help: "Completed enrichment jobs by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	enrichmentFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enrichd_enrichment_failures_total",
		Help: "Enrichment failures by pipeline stage",
	}, []string{"stage"}) // stage=extract|research|writeback

	enrichmentDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "enrichd_enrichment_duration_seconds",
		Help:    "End-to-end enrichment duration",
		Buckets: []float64{1, 5, 10, 20, 30, 60, 90, 120, 180},
	})

	summaryRunes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "enrichd_summary_runes",
		Help:    "Length of summaries written back to Notion, in runes",
		Buckets: []float64{100, 250, 500, 1000, 1500, 1800, 1801},
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "enrichd_queue_depth",
		Help: "Jobs currently waiting in the enrichment queue",
	})

	// Upstream API metrics
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enrichd_upstream_requests_total",
		Help: "Upstream API calls by service and outcome",
	}, []string{"service", "outcome"}) // service=openai|notion outcome=success|failure
)

func IncWebhook(outcome string) { webhookRequestsTotal.WithLabelValues(outcome).Inc() }

func IncEnrichment(outcome string) { enrichmentsTotal.WithLabelValues(outcome).Inc() }

func IncStageFailure(stage string) { enrichmentFailuresTotal.WithLabelValues(stage).Inc() }

func ObserveEnrichment(secs float64) { enrichmentDurationSeconds.Observe(secs) }

func ObserveSummaryRunes(n int) { summaryRunes.Observe(float64(n)) }

func SetQueueDepth(n int) { queueDepth.Set(float64(n)) }

func IncUpstream(service, outcome string) {
	upstreamRequestsTotal.WithLabelValues(service, outcome).Inc()
}
