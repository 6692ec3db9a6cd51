package reminders

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the reminder sweep.
type Metrics struct {
	// SweepsTotal counts sweeps by result ("ok", "fetch_failed", "skipped").
	SweepsTotal *prometheus.CounterVec

	// RemindersProcessedTotal counts per-reminder outcomes.
	RemindersProcessedTotal *prometheus.CounterVec

	// SweepDuration is the time one sweep takes.
	SweepDuration prometheus.Histogram

	// RemindersChecked is the number of enabled reminders in the last sweep.
	RemindersChecked prometheus.Gauge

	// RateLimitWaits counts sends that had to wait for the rate limiter.
	RateLimitWaits prometheus.Counter
}

// NewMetrics creates and registers Prometheus metrics for the sweep.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SweepsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeps_total",
				Help:      "Total number of reminder sweeps by result",
			},
			[]string{"result"},
		),

		RemindersProcessedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminders_processed_total",
				Help:      "Total number of processed reminders by outcome",
			},
			[]string{"outcome"},
		),

		SweepDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Time to complete one reminder sweep",
				Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5, 10},
			},
		),

		RemindersChecked: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reminders_checked",
				Help:      "Number of enabled reminders in the last sweep",
			},
		),

		RateLimitWaits: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "send_rate_limit_waits_total",
				Help:      "Total number of sends that waited for the rate limiter",
			},
		),
	}
}

// IncSweep increments the sweep counter for a result.
func (m *Metrics) IncSweep(result string) {
	m.SweepsTotal.WithLabelValues(result).Inc()
}

// IncOutcome increments the per-reminder outcome counter.
func (m *Metrics) IncOutcome(outcome Outcome) {
	m.RemindersProcessedTotal.WithLabelValues(string(outcome)).Inc()
}

// ObserveSweepDuration records the time taken by one sweep.
func (m *Metrics) ObserveSweepDuration(seconds float64) {
	m.SweepDuration.Observe(seconds)
}

// SetChecked sets the enabled-reminder gauge.
func (m *Metrics) SetChecked(n int) {
	m.RemindersChecked.Set(float64(n))
}

// IncRateLimitWaits increments the rate limit wait counter.
func (m *Metrics) IncRateLimitWaits() {
	m.RateLimitWaits.Inc()
}
