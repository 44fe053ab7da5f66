// Package metrics exposes Prometheus instrumentation for anomaly detection
// and incident linkage. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the detection and linkage collectors.
type Metrics struct {
	// Detection
	AnomaliesDetected *prometheus.CounterVec
	DetectDuration    prometheus.Histogram
	StrategyDuration  *prometheus.HistogramVec
	BaselineMetrics   prometheus.Gauge

	// Linkage
	LinkagesEmitted    *prometheus.CounterVec
	LinkDuration       prometheus.Histogram
	CollaboratorErrors *prometheus.CounterVec
	PlaceholderSeeds   prometheus.Counter
}

// NewMetrics creates the collectors. Nothing is registered until Register.
func NewMetrics() *Metrics {
	return &Metrics{
		AnomaliesDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "incident_anomalies_detected_total",
			Help: "Total number of anomalies emitted, by category",
		}, []string{"category"}),
		DetectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "incident_detect_duration_seconds",
			Help:    "Wall time of a full detection pass",
			Buckets: prometheus.DefBuckets,
		}),
		StrategyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "incident_strategy_duration_seconds",
			Help:    "Wall time of a single detection or linkage strategy",
			Buckets: prometheus.DefBuckets,
		}, []string{"strategy"}),
		BaselineMetrics: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "incident_baseline_metrics",
			Help: "Number of named baselines currently held",
		}),

		LinkagesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "incident_linkages_emitted_total",
			Help: "Total number of linkage edges surviving dedup, by type",
		}, []string{"type"}),
		LinkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "incident_link_duration_seconds",
			Help:    "Wall time of a full linkage request",
			Buckets: prometheus.DefBuckets,
		}),
		CollaboratorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "incident_collaborator_errors_total",
			Help: "Total number of failed graph or search calls",
		}, []string{"collaborator"}),
		PlaceholderSeeds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "incident_placeholder_seeds_total",
			Help: "Total number of seed ids no collaborator could resolve",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.AnomaliesDetected,
		m.DetectDuration,
		m.StrategyDuration,
		m.BaselineMetrics,
		m.LinkagesEmitted,
		m.LinkDuration,
		m.CollaboratorErrors,
		m.PlaceholderSeeds,
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

// Register registers every collector with reg, or with the default registerer
// when reg is nil.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return reg.Register(m)
}

// AnomalyDetected counts one anomaly of the given category.
func (m *Metrics) AnomalyDetected(category string) {
	if m == nil {
		return
	}
	m.AnomaliesDetected.WithLabelValues(category).Inc()
}

// ObserveDetect records the duration of a detection pass started at start.
func (m *Metrics) ObserveDetect(start time.Time) {
	if m == nil {
		return
	}
	m.DetectDuration.Observe(time.Since(start).Seconds())
}

// ObserveStrategy records the duration of one strategy started at start.
func (m *Metrics) ObserveStrategy(strategy string, start time.Time) {
	if m == nil {
		return
	}
	m.StrategyDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
}

// SetBaselineCount sets the number of tracked baselines.
func (m *Metrics) SetBaselineCount(n int) {
	if m == nil {
		return
	}
	m.BaselineMetrics.Set(float64(n))
}

// LinkageEmitted counts one surviving edge of the given type.
func (m *Metrics) LinkageEmitted(linkType string) {
	if m == nil {
		return
	}
	m.LinkagesEmitted.WithLabelValues(linkType).Inc()
}

// ObserveLink records the duration of a linkage request started at start.
func (m *Metrics) ObserveLink(start time.Time) {
	if m == nil {
		return
	}
	m.LinkDuration.Observe(time.Since(start).Seconds())
}

// CollaboratorError counts one failed call to the named collaborator.
func (m *Metrics) CollaboratorError(collaborator string) {
	if m == nil {
		return
	}
	m.CollaboratorErrors.WithLabelValues(collaborator).Inc()
}

// PlaceholderSeed counts one seed resolved to a placeholder incident.
func (m *Metrics) PlaceholderSeed() {
	if m == nil {
		return
	}
	m.PlaceholderSeeds.Inc()
}
