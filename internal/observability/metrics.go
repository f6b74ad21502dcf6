// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"prediction-feed/internal/domain"
)

// Refresh outcome labels.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Refresh metrics
	RefreshRunsTotal *prometheus.CounterVec
	RefreshDuration  prometheus.Histogram
	StageDuration    *prometheus.HistogramVec
	MarketsTotal     *prometheus.CounterVec

	// Semantic metrics
	SemanticMarkets   *prometheus.CounterVec
	LLMAttempts       prometheus.Counter
	LLMFailures       prometheus.Counter
	FailoverCooldown  prometheus.Gauge
	FailoverTriggered prometheus.Counter

	// Firehose metrics
	FirehoseUpdatesApplied prometheus.Counter

	// Feed metrics
	FeedCurated  prometheus.Gauge
	FeedRejected prometheus.Gauge

	// Health metrics
	LastSuccessfulRefresh prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on reg.
// A nil reg registers on the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "prediction_feed"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RefreshRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "runs_total",
			Help:      "Total number of refresh runs by status",
		}, []string{"status"}),
		RefreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "duration_seconds",
			Help:      "Refresh execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "stage_duration_seconds",
			Help:      "Refresh stage duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		MarketsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "markets_total",
			Help:      "Markets seen by refresh runs, by outcome",
		}, []string{"outcome"}),

		SemanticMarkets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "semantic",
			Name:      "markets_total",
			Help:      "Markets classified, by classification source",
		}, []string{"source"}),
		LLMAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "semantic",
			Name:      "llm_attempts_total",
			Help:      "Total number of LLM provider calls",
		}),
		LLMFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "semantic",
			Name:      "llm_failures_total",
			Help:      "Total number of failed LLM provider calls",
		}),
		FailoverCooldown: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "semantic",
			Name:      "failover_cooldown_runs",
			Help:      "Runs remaining before LLM calls resume",
		}),
		FailoverTriggered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "semantic",
			Name:      "failover_triggered_total",
			Help:      "Number of times the failure streak started a cooldown",
		}),

		FirehoseUpdatesApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "firehose",
			Name:      "updates_applied_total",
			Help:      "Live prices applied to snapshot markets",
		}),

		FeedCurated: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "curated_items",
			Help:      "Curated markets in the current snapshot",
		}),
		FeedRejected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "rejected_items",
			Help:      "Rejected markets in the current snapshot",
		}),

		LastSuccessfulRefresh: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_refresh_timestamp",
			Help:      "Unix timestamp of last successful refresh",
		}),
	}
}

// Handler returns an HTTP handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns an HTTP handler serving metrics from g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordRefresh records a completed refresh run.
func (m *Metrics) RecordRefresh(s domain.RefreshSummary) {
	m.RefreshRunsTotal.WithLabelValues(StatusSuccess).Inc()
	m.RefreshDuration.Observe(msToSeconds(s.Timings.TotalMs))

	stages := map[string]int64{
		"fetch":     s.Timings.FetchMs,
		"normalize": s.Timings.NormalizeMs,
		"classify":  s.Timings.ClassifyMs,
		"score":     s.Timings.ScoreMs,
		"dedup":     s.Timings.DedupMs,
		"persist":   s.Timings.PersistMs,
	}
	for stage, ms := range stages {
		m.StageDuration.WithLabelValues(stage).Observe(msToSeconds(ms))
	}

	m.MarketsTotal.WithLabelValues("fetched").Add(float64(s.RawCount))
	m.MarketsTotal.WithLabelValues("bounced").Add(float64(s.DroppedByBouncer))
	m.MarketsTotal.WithLabelValues("dropped").Add(float64(s.DroppedCount))
	m.MarketsTotal.WithLabelValues("curated").Add(float64(s.CuratedCount))
	m.MarketsTotal.WithLabelValues("rejected").Add(float64(s.RejectedCount))
	m.MarketsTotal.WithLabelValues("dedup_demoted").Add(float64(s.DedupDemotedCount))

	m.SemanticMarkets.WithLabelValues(domain.SourceCache.String()).Add(float64(s.Semantic.CacheHits))
	m.SemanticMarkets.WithLabelValues(domain.SourceLLM.String()).Add(float64(s.Semantic.LLMEvaluated))
	m.SemanticMarkets.WithLabelValues(domain.SourceHeuristic.String()).Add(float64(s.Semantic.HeuristicEvaluated))
	m.LLMAttempts.Add(float64(s.Semantic.LLMAttempts))
	m.LLMFailures.Add(float64(s.Semantic.LLMFailures))
	m.FailoverCooldown.Set(float64(s.Failover.CooldownRunsRemaining))
	if s.Failover.TriggeredThisRun {
		m.FailoverTriggered.Inc()
	}

	m.FirehoseUpdatesApplied.Add(float64(s.Firehose.UpdatesApplied))

	m.FeedCurated.Set(float64(s.CuratedCount))
	m.FeedRejected.Set(float64(s.RejectedCount))
	m.LastSuccessfulRefresh.Set(float64(s.FetchedAt.Unix()))
}

// RecordRefreshOutcome counts a refresh that did not complete.
func (m *Metrics) RecordRefreshOutcome(status string) {
	m.RefreshRunsTotal.WithLabelValues(status).Inc()
}

func msToSeconds(ms int64) float64 {
	return float64(ms) / 1000
}
