// Package baseline maintains named statistical baselines (mean, standard
// deviation, min, max) and evaluates Z-scores against them.
//
// A Store is an explicit handle: callers create one at service start, pass it
// to the detector, and Reset it on demand.
package baseline

import (
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/incident.report/internal/timeutil"
)

// MinStdDev replaces a zero standard deviation so Z-scores never divide by zero.
const MinStdDev = 1.0

// BaselineMetric is the baseline for one named metric.
type BaselineMetric struct {
	Name        string    `json:"name"`
	Mean        float64   `json:"mean"`
	StdDev      float64   `json:"std_dev"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	SampleCount int       `json:"sample_count"`
	LastUpdated time.Time `json:"last_updated"`
	Seeded      bool      `json:"seeded,omitempty"` // true while only a hard-coded prior is held
}

// ZScore returns value's deviation from the baseline in standard deviations.
func (m BaselineMetric) ZScore(value float64) float64 {
	return ZScore(value, m.Mean, m.StdDev)
}

// ZScore returns (value-mean)/stddev, or 0 when stddev is zero or not finite.
func ZScore(value, mean, stddev float64) float64 {
	if stddev == 0 || math.IsNaN(stddev) || math.IsInf(stddev, 0) {
		return 0
	}
	return (value - mean) / stddev
}

// Compute builds a BaselineMetric from samples. The second return value is
// false when samples is empty. Standard deviation is the population value.
func Compute(name string, samples []float64, at time.Time) (BaselineMetric, bool) {
	if len(samples) == 0 {
		return BaselineMetric{}, false
	}
	mean, std := stat.PopMeanStdDev(samples, nil)
	if std == 0 || math.IsNaN(std) {
		std = MinStdDev
	}
	return BaselineMetric{
		Name:        name,
		Mean:        mean,
		StdDev:      std,
		Min:         floats.Min(samples),
		Max:         floats.Max(samples),
		SampleCount: len(samples),
		LastUpdated: at,
	}, true
}

// Store holds baselines keyed by metric name. It is safe for concurrent use;
// updates are serialised by the write lock.
type Store struct {
	mu      sync.RWMutex
	metrics map[string]BaselineMetric
	clock   timeutil.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for LastUpdated stamps.
func WithClock(c timeutil.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		metrics: make(map[string]BaselineMetric),
		clock:   timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update replaces the baseline for name with one recomputed from samples.
// It is a no-op on an empty sample list.
func (s *Store) Update(name string, samples []float64) (BaselineMetric, bool) {
	m, ok := Compute(name, samples, s.clock.Now())
	if !ok {
		return BaselineMetric{}, false
	}
	s.mu.Lock()
	s.metrics[name] = m
	s.mu.Unlock()
	return m, true
}

// Seed installs a prior for name unless a baseline already exists.
// It reports whether the prior was installed.
func (s *Store) Seed(name string, mean, stddev float64) bool {
	if stddev <= 0 || math.IsNaN(stddev) {
		stddev = MinStdDev
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.metrics[name]; exists {
		return false
	}
	s.metrics[name] = BaselineMetric{
		Name:        name,
		Mean:        mean,
		StdDev:      stddev,
		Min:         mean,
		Max:         mean,
		LastUpdated: s.clock.Now(),
		Seeded:      true,
	}
	return true
}

// Get returns the baseline for name.
func (s *Store) Get(name string) (BaselineMetric, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metrics[name]
	return m, ok
}

// ZScore evaluates value against the baseline for name; 0 when none exists.
func (s *Store) ZScore(name string, value float64) float64 {
	m, ok := s.Get(name)
	if !ok {
		return 0
	}
	return m.ZScore(value)
}

// Names returns the metric names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.metrics))
	for name := range s.metrics {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Len returns the number of baselines held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.metrics)
}

// Snapshot returns a copy of every baseline, sorted by name.
func (s *Store) Snapshot() []BaselineMetric {
	s.mu.RLock()
	out := make([]BaselineMetric, 0, len(s.metrics))
	for _, m := range s.metrics {
		out = append(out, m)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Restore loads baselines from a snapshot, replacing entries with the same name.
// Zero standard deviations are coerced to MinStdDev.
func (s *Store) Restore(metrics []BaselineMetric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range metrics {
		if m.Name == "" {
			continue
		}
		if m.StdDev == 0 || math.IsNaN(m.StdDev) {
			m.StdDev = MinStdDev
		}
		s.metrics[m.Name] = m
	}
}

// Reset drops every baseline.
func (s *Store) Reset() {
	s.mu.Lock()
	s.metrics = make(map[string]BaselineMetric)
	s.mu.Unlock()
}
