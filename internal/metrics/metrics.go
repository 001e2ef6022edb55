// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	articlesStoredTotal     *prometheus.CounterVec
	articlesSkippedTotal    *prometheus.CounterVec
	candidateFailuresTotal  *prometheus.CounterVec
	interstitialsDismissed  *prometheus.CounterVec
	scrollRoundsPerPass     prometheus.Histogram
	extractDurationSeconds  *prometheus.HistogramVec
	supervisorRestartsTotal *prometheus.CounterVec

	once sync.Once
)

// Skip reasons recorded on the skipped-articles counter.
const (
	SkipReasonDuplicate = "duplicate"
	SkipReasonEmptyBody = "empty_body"
)

// Restart reasons recorded on the supervisor counter.
const (
	RestartReasonExit  = "exit"
	RestartReasonStale = "stale"
)

// Init registers the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		articlesStoredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_articles_stored_total",
				Help: "Articles persisted to the store, labeled by source.",
			},
			[]string{"source"},
		)
		articlesSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_articles_skipped_total",
				Help: "Candidates skipped without persisting, labeled by source and reason.",
			},
			[]string{"source", "reason"},
		)
		candidateFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_candidate_failures_total",
				Help: "Per-candidate faults recovered during a crawl pass, labeled by source.",
			},
			[]string{"source"},
		)
		interstitialsDismissed = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_interstitials_dismissed_total",
				Help: "Interstitial dismissals that fired, labeled by description.",
			},
			[]string{"kind"},
		)
		scrollRoundsPerPass = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_scroll_rounds",
				Help:    "Scroll rounds needed to fully expand a listing page.",
				Buckets: prometheus.LinearBuckets(1, 2, 12),
			},
		)
		extractDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_extract_duration_seconds",
				Help:    "Latency of per-article extraction, labeled by source.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source"},
		)
		supervisorRestartsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_supervisor_restarts_total",
				Help: "Child restarts performed by the supervisor, labeled by reason.",
			},
			[]string{"reason"},
		)
	})
}

// ArticleStored increments the stored counter for a source.
func ArticleStored(source string) {
	if articlesStoredTotal != nil {
		articlesStoredTotal.WithLabelValues(source).Inc()
	}
}

// ArticleSkipped increments the skipped counter for a source and reason.
func ArticleSkipped(source, reason string) {
	if articlesSkippedTotal != nil {
		articlesSkippedTotal.WithLabelValues(source, reason).Inc()
	}
}

// CandidateFailed increments the recovered-fault counter for a source.
func CandidateFailed(source string) {
	if candidateFailuresTotal != nil {
		candidateFailuresTotal.WithLabelValues(source).Inc()
	}
}

// InterstitialDismissed records a dismissal that fired.
func InterstitialDismissed(kind string) {
	if interstitialsDismissed != nil {
		interstitialsDismissed.WithLabelValues(kind).Inc()
	}
}

// ScrollRounds records how many rounds a listing expansion took.
func ScrollRounds(rounds int) {
	if scrollRoundsPerPass != nil {
		scrollRoundsPerPass.Observe(float64(rounds))
	}
}

// ExtractDuration records per-article extraction latency.
func ExtractDuration(source string, d time.Duration) {
	if extractDurationSeconds != nil {
		extractDurationSeconds.WithLabelValues(source).Observe(d.Seconds())
	}
}

// SupervisorRestart records a child restart and its reason.
func SupervisorRestart(reason string) {
	if supervisorRestartsTotal != nil {
		supervisorRestartsTotal.WithLabelValues(reason).Inc()
	}
}
