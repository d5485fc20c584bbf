package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gamehall collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	SessionsStarted     *prometheus.CounterVec
	SessionsEnded       *prometheus.CounterVec
	RevenueTotal        prometheus.Counter
	ExpiryEvents        prometheus.Counter
	EvaluationsSkipped  prometheus.Counter
	EvaluationDuration  prometheus.Histogram
	Fallbacks           *prometheus.CounterVec
	PersistenceFailures prometheus.Counter
	Connected           prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		SessionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamehall_sessions_started_total",
				Help: "Sessions started, by authoritative source",
			},
			[]string{"mode"},
		),
		SessionsEnded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamehall_sessions_ended_total",
				Help: "Sessions ended, by authoritative source",
			},
			[]string{"mode"},
		),
		RevenueTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gamehall_revenue_total",
				Help: "Revenue of sessions closed by this process",
			},
		),
		ExpiryEvents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gamehall_expiry_events_total",
				Help: "Time-up events emitted by the timer engine",
			},
		),
		EvaluationsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gamehall_timer_evaluations_skipped_total",
				Help: "Timer passes skipped because another pass or a mutation was in progress",
			},
		),
		EvaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gamehall_timer_evaluation_duration_seconds",
				Help:    "Duration of one timer evaluation pass",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
			},
		),
		Fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamehall_offline_fallbacks_total",
				Help: "Actions rerouted to the local cache after a remote transport failure",
			},
			[]string{"action"},
		),
		PersistenceFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gamehall_persistence_failures_total",
				Help: "Failed writes to the local cache",
			},
		),
		Connected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gamehall_remote_connected",
				Help: "1 when the remote source is authoritative, 0 when offline",
			},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.SessionsStarted,
		m.SessionsEnded,
		m.RevenueTotal,
		m.ExpiryEvents,
		m.EvaluationsSkipped,
		m.EvaluationDuration,
		m.Fallbacks,
		m.PersistenceFailures,
		m.Connected,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionStarted(mode string) {
	if m == nil {
		return
	}
	m.SessionsStarted.WithLabelValues(mode).Inc()
}

func (m *Metrics) SessionEnded(mode string, cost int64) {
	if m == nil {
		return
	}
	m.SessionsEnded.WithLabelValues(mode).Inc()
	if cost > 0 {
		m.RevenueTotal.Add(float64(cost))
	}
}

func (m *Metrics) ExpiryEmitted() {
	if m == nil {
		return
	}
	m.ExpiryEvents.Inc()
}

func (m *Metrics) EvaluationSkipped() {
	if m == nil {
		return
	}
	m.EvaluationsSkipped.Inc()
}

func (m *Metrics) ObserveEvaluation(d time.Duration) {
	if m == nil {
		return
	}
	m.EvaluationDuration.Observe(d.Seconds())
}

func (m *Metrics) Fallback(action string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(action).Inc()
}

func (m *Metrics) PersistenceFailed() {
	if m == nil {
		return
	}
	m.PersistenceFailures.Inc()
}

func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.Connected.Set(1)
		return
	}
	m.Connected.Set(0)
}
