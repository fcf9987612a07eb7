// Package metrics exposes job counters on a Prometheus registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records job metrics. A nil *Recorder discards everything.
type Recorder struct {
	registry     *prometheus.Registry
	processed    *prometheus.CounterVec
	fetchErrors  *prometheus.CounterVec
	refreshed    *prometheus.CounterVec
	registered   *prometheus.CounterVec
	triggered    *prometheus.CounterVec
	notifyErrors *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// New creates a recorder on its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		processed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendsentinel_instruments_processed_total",
				Help: "Instruments whose indicator was advanced",
			},
			[]string{"universe"},
		),
		fetchErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendsentinel_fetch_errors_total",
				Help: "Quote source requests that failed",
			},
			[]string{"universe", "kind"},
		),
		refreshed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendsentinel_quotes_refreshed_total",
				Help: "Live quotes merged into instruments",
			},
			[]string{"universe"},
		),
		registered: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendsentinel_alerts_registered_total",
				Help: "Alerts moved from created to registered",
			},
			[]string{"universe"},
		),
		triggered: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendsentinel_alerts_triggered_total",
				Help: "Alerts triggered",
			},
			[]string{"universe"},
		),
		notifyErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendsentinel_notification_errors_total",
				Help: "Notifications that could not be delivered",
			},
			[]string{"sink"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trendsentinel_job_duration_seconds",
				Help:    "Duration of scheduled jobs in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job", "universe"},
		),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) InstrumentsProcessed(universe string, n int) {
	if r == nil {
		return
	}
	r.processed.WithLabelValues(universe).Add(float64(n))
}

func (r *Recorder) FetchError(universe, kind string) {
	if r == nil {
		return
	}
	r.fetchErrors.WithLabelValues(universe, kind).Inc()
}

func (r *Recorder) QuotesRefreshed(universe string, n int) {
	if r == nil {
		return
	}
	r.refreshed.WithLabelValues(universe).Add(float64(n))
}

func (r *Recorder) AlertsRegistered(universe string, n int) {
	if r == nil {
		return
	}
	r.registered.WithLabelValues(universe).Add(float64(n))
}

func (r *Recorder) AlertsTriggered(universe string, n int) {
	if r == nil {
		return
	}
	r.triggered.WithLabelValues(universe).Add(float64(n))
}

func (r *Recorder) NotificationError(sink string) {
	if r == nil {
		return
	}
	r.notifyErrors.WithLabelValues(sink).Inc()
}

// JobDuration records how long a job took, in seconds.
func (r *Recorder) JobDuration(job, universe string, seconds float64) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(job, universe).Observe(seconds)
}
