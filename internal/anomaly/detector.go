// Package anomaly runs six independent detection strategies over a batch of
// events and emits AnomalyRecords.
//
// Strategies never fail the batch: a record missing the fields a strategy
// needs is skipped by that strategy only, and an empty batch yields an empty
// result.
package anomaly

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/incident.report/internal/baseline"
	"github.com/banshee-data/incident.report/internal/cluster"
	"github.com/banshee-data/incident.report/internal/config"
	"github.com/banshee-data/incident.report/internal/event"
	"github.com/banshee-data/incident.report/internal/metrics"
	"github.com/banshee-data/incident.report/internal/monitoring"
	"github.com/banshee-data/incident.report/internal/timeutil"
)

// Baseline metric names.
const (
	MetricGunfireCellCount = "gunfire_cell_count"
	hourlyCountPrefix      = "hourly_count:"
	timelineHourPrefix     = "timeline_hour:"
)

// HourlyCountMetric is the baseline name for per-hour counts of an event type.
func HourlyCountMetric(eventType string) string { return hourlyCountPrefix + eventType }

// TimelineMetric is the baseline name for the event count in one UTC hour of day.
func TimelineMetric(hour int) string { return fmt.Sprintf("%s%02d", timelineHourPrefix, hour) }

var logf = monitoring.Prefixed("anomaly")

// Detector owns a baseline store and a bounded event history.
type Detector struct {
	store     *baseline.Store
	history   *baseline.History
	cfg       *config.TuningConfig
	clock     timeutil.Clock
	metrics   *metrics.Metrics
	clusterer cluster.Clusterer
	newID     func() string

	// updateMu serialises UpdateBaseline so the read-then-replace of
	// history-derived baselines has a single writer.
	updateMu sync.Mutex
}

// Option configures a Detector.
type Option func(*Detector)

// WithConfig sets the tuning config. A nil config uses the defaults.
func WithConfig(cfg *config.TuningConfig) Option {
	return func(d *Detector) {
		if cfg != nil {
			d.cfg = cfg
		}
	}
}

// WithClock sets the clock used for detection timestamps and retention.
func WithClock(c timeutil.Clock) Option {
	return func(d *Detector) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Detector) { d.metrics = m }
}

// WithClusterer replaces the DBSCAN clusterer built from the config.
func WithClusterer(c cluster.Clusterer) Option {
	return func(d *Detector) { d.clusterer = c }
}

// WithIDGenerator replaces uuid.NewString for record ids.
func WithIDGenerator(f func() string) Option {
	return func(d *Detector) {
		if f != nil {
			d.newID = f
		}
	}
}

// NewDetector creates a Detector around store. A nil store gets a fresh one.
// Priors are seeded immediately and again before every Detect, so a Reset
// store recovers its cold-start baselines.
func NewDetector(store *baseline.Store, opts ...Option) *Detector {
	d := &Detector{
		cfg:   config.EmptyTuningConfig(),
		clock: timeutil.RealClock{},
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	if store == nil {
		store = baseline.NewStore(baseline.WithClock(d.clock))
	}
	d.store = store
	d.history = baseline.NewHistory(d.cfg.GetHistoryRetention(), d.cfg.GetHistoryMaxPerType())
	if d.clusterer == nil {
		c := cluster.NewDBSCANClusterer(d.cfg.GetOffenderEpsilonMeters(), d.cfg.GetOffenderMinPoints())
		if d.cfg.GetUseGridIndex() {
			c = c.WithGridIndex()
		}
		d.clusterer = c
	}
	d.seedPriors()
	return d
}

// Store returns the baseline store the detector reads and writes.
func (d *Detector) Store() *baseline.Store { return d.store }

// History returns the bounded event history fed by UpdateBaseline.
func (d *Detector) History() *baseline.History { return d.history }

func (d *Detector) seedPriors() {
	d.store.Seed(MetricGunfireCellCount, d.cfg.GetGunfireBaselineMean(), d.cfg.GetGunfireBaselineStdDev())
	stddev := d.cfg.GetTimelineStdDev()
	for hour, mean := range d.cfg.GetDiurnalCurve() {
		d.store.Seed(TimelineMetric(hour), mean, stddev)
	}
}

// UpdateBaseline appends timestamped events to the history, then recomputes
// hourly_count:<type> for every type touched and, once the history spans at
// least a day, timeline_hour:<HH> from per-day counts. The retention window
// follows the newest event seen, not the wall clock. It returns the number of
// events retained in the history.
func (d *Detector) UpdateBaseline(events []event.Event) int {
	d.updateMu.Lock()
	defer d.updateMu.Unlock()

	byType := make(map[string][]time.Time)
	for _, e := range events {
		if e.HasTime() {
			byType[e.Kind()] = append(byType[e.Kind()], e.Timestamp)
		}
	}
	if len(byType) == 0 {
		return 0
	}
	kept := d.history.AppendBatch(byType)

	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, t := range types {
		d.store.Update(HourlyCountMetric(t), hourlyCounts(d.history.Timestamps(t)))
	}
	d.updateTimeline()
	d.metrics.SetBaselineCount(d.store.Len())
	return kept
}

// hourlyCounts buckets timestamps by UTC hour and returns the counts in
// chronological order.
func hourlyCounts(ts []time.Time) []float64 {
	buckets := make(map[time.Time]int)
	for _, t := range ts {
		buckets[timeutil.TruncateHour(t)]++
	}
	hours := make([]time.Time, 0, len(buckets))
	for h := range buckets {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })
	counts := make([]float64, len(hours))
	for i, h := range hours {
		counts[i] = float64(buckets[h])
	}
	return counts
}

func (d *Detector) updateTimeline() {
	var first, last time.Time
	perDayHour := make(map[string]*[24]int)
	for _, t := range d.history.Types() {
		for _, ts := range d.history.Timestamps(t) {
			ts = ts.UTC()
			if first.IsZero() || ts.Before(first) {
				first = ts
			}
			if ts.After(last) {
				last = ts
			}
			day := timeutil.DayKey(ts)
			counts, ok := perDayHour[day]
			if !ok {
				counts = new([24]int)
				perDayHour[day] = counts
			}
			counts[timeutil.HourOfDay(ts)]++
		}
	}
	if first.IsZero() || last.Sub(first) < 24*time.Hour {
		return
	}

	// Every calendar day in the span contributes a sample, including days
	// with no events in that hour.
	var days []string
	start := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
	for day := start; !day.After(last); day = day.AddDate(0, 0, 1) {
		days = append(days, timeutil.DayKey(day))
	}
	for hour := 0; hour < 24; hour++ {
		samples := make([]float64, len(days))
		for i, day := range days {
			if counts, ok := perDayHour[day]; ok {
				samples[i] = float64(counts[hour])
			}
		}
		d.store.Update(TimelineMetric(hour), samples)
	}
}

type strategy struct {
	category Category
	run      func(events []event.Event, now time.Time) []AnomalyRecord
}

func (d *Detector) strategies() []strategy {
	return []strategy{
		{CategoryVehicleBehavior, d.detectVehicleBehavior},
		{CategoryGunfireDensity, d.detectGunfireDensity},
		{CategoryOffenderClustering, d.detectOffenderClusters},
		{CategoryTimelineDeviation, d.detectTimelineDeviation},
		{CategoryCrimeSignatureShift, d.detectCrimeSignatureShift},
		{CategoryRepeatCaller, d.detectRepeatCallers},
	}
}

// Detect runs every strategy over events in parallel and concatenates their
// results in Categories order. Within a strategy records follow input scan
// order. Strategies not yet started when ctx is done are skipped. Detect never
// returns nil.
func (d *Detector) Detect(ctx context.Context, events []event.Event) []AnomalyRecord {
	out := make([]AnomalyRecord, 0)
	if len(events) == 0 {
		return out
	}
	start := time.Now()
	defer d.metrics.ObserveDetect(start)

	d.seedPriors()
	now := d.clock.Now()

	strategies := d.strategies()
	results := make([][]AnomalyRecord, len(strategies))
	var g errgroup.Group
	for i, s := range strategies {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				logf("skipping %s: %v", s.category, err)
				return nil
			}
			defer func() {
				if r := recover(); r != nil {
					logf("strategy %s panicked: %v", s.category, r)
					results[i] = nil
				}
			}()
			began := time.Now()
			results[i] = s.run(events, now)
			d.metrics.ObserveStrategy(string(s.category), began)
			return nil
		})
	}
	_ = g.Wait()

	for _, rs := range results {
		for _, r := range rs {
			r.ID = d.newID()
			d.metrics.AnomalyDetected(string(r.Category))
			out = append(out, r)
		}
	}
	return out
}
