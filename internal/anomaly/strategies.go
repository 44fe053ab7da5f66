package anomaly

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/banshee-data/incident.report/internal/baseline"
	"github.com/banshee-data/incident.report/internal/cluster"
	"github.com/banshee-data/incident.report/internal/event"
	"github.com/banshee-data/incident.report/internal/geo"
	"github.com/banshee-data/incident.report/internal/timeutil"
)

// groupOrdered groups items by key, returning keys in first-seen order.
func groupOrdered[T any](items []T, key func(T) (string, bool)) ([]string, map[string][]T) {
	var order []string
	groups := make(map[string][]T)
	for _, it := range items {
		k, ok := key(it)
		if !ok {
			continue
		}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], it)
	}
	return order, groups
}

func eventIDs(events []event.Event) []string {
	ids := make([]string, 0, len(events))
	for _, e := range events {
		if e.ID != "" {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func (d *Detector) baselineSnapshot(name string) *baseline.BaselineMetric {
	m, ok := d.store.Get(name)
	if !ok {
		return nil
	}
	return &m
}

// detectVehicleBehavior flags consecutive sightings of one plate whose
// implied speed exceeds the threshold.
func (d *Detector) detectVehicleBehavior(events []event.Event, now time.Time) []AnomalyRecord {
	threshold := d.cfg.GetVehicleSpeedThresholdKmh()
	scale := d.cfg.GetVehicleSpeedScaleKmh()
	confidence := d.cfg.GetVehicleConfidence()

	plates, byPlate := groupOrdered(events, func(e event.Event) (string, bool) {
		return e.Plate, e.IsVehicleRead() && e.HasTime() && e.HasLocation()
	})

	var out []AnomalyRecord
	for _, plate := range plates {
		sightings := byPlate[plate]
		sort.SliceStable(sightings, func(i, j int) bool {
			return sightings[i].Timestamp.Before(sightings[j].Timestamp)
		})
		for i := 1; i < len(sightings); i++ {
			prev, curr := sightings[i-1], sightings[i]
			hours := curr.Timestamp.Sub(prev.Timestamp).Hours()
			if hours <= 0 {
				continue
			}
			km := geo.HaversineKm(prev.Latitude, prev.Longitude, curr.Latitude, curr.Longitude)
			speed := km / hours
			if speed <= threshold {
				continue
			}
			out = append(out, AnomalyRecord{
				Category: CategoryVehicleBehavior,
				Severity: severity(speed, scale),
				Description: fmt.Sprintf("Plate %s moved %.1f km in %s (%.0f km/h)",
					plate, km, curr.Timestamp.Sub(prev.Timestamp), speed),
				Location:        &Location{Lat: curr.Latitude, Lon: curr.Longitude},
				RelatedEntities: append([]string{plate}, eventIDs([]event.Event{prev, curr})...),
				Metrics: map[string]any{
					"plate":          plate,
					"speed_kmh":      speed,
					"distance_km":    km,
					"time_delta_sec": curr.Timestamp.Sub(prev.Timestamp).Seconds(),
					"bearing_deg":    geo.BearingDeg(prev.Latitude, prev.Longitude, curr.Latitude, curr.Longitude),
				},
				Deviation:  speed - threshold,
				Confidence: confidence,
				DetectedAt: now,
			})
		}
	}
	return out
}

// detectGunfireDensity buckets acoustic detections into grid cells and flags
// cells whose count deviates from the gunfire baseline.
func (d *Detector) detectGunfireDensity(events []event.Event, now time.Time) []AnomalyRecord {
	size := d.cfg.GetGunfireCellSizeDeg()
	zThreshold := d.cfg.GetGunfireZThreshold()
	highZ := d.cfg.GetGunfireHighZ()
	scale := d.cfg.GetZSeverityScale()

	cellKey := func(e event.Event) (string, bool) {
		if !e.IsGunfire() || !e.HasLocation() {
			return "", false
		}
		c := geo.GridCell(e.Latitude, e.Longitude, size)
		return fmt.Sprintf("%d:%d", c.Row, c.Col), true
	}
	keys, byCell := groupOrdered(events, cellKey)

	var out []AnomalyRecord
	for _, key := range keys {
		members := byCell[key]
		count := float64(len(members))
		z := d.store.ZScore(MetricGunfireCellCount, count)
		if math.Abs(z) <= zThreshold {
			continue
		}
		confidence := d.cfg.GetGunfireConfidence()
		if math.Abs(z) > highZ {
			confidence = d.cfg.GetGunfireHighZConfidence()
		}
		cell := geo.GridCell(members[0].Latitude, members[0].Longitude, size)
		lat, lon := cell.Center(size)
		out = append(out, AnomalyRecord{
			Category:        CategoryGunfireDensity,
			Severity:        severity(z, scale),
			Description:     fmt.Sprintf("%d gunfire detections in one %.3f° cell (z=%.2f)", len(members), size, z),
			Location:        &Location{Lat: lat, Lon: lon},
			RelatedEntities: eventIDs(members),
			Metrics: map[string]any{
				"count":         len(members),
				"z_score":       z,
				"cell_row":      cell.Row,
				"cell_col":      cell.Col,
				"cell_size_deg": size,
			},
			Baseline:   d.baselineSnapshot(MetricGunfireCellCount),
			Deviation:  z,
			Confidence: confidence,
			DetectedAt: now,
		})
	}
	return out
}

// detectOffenderClusters clusters person-type events and flags clusters at or
// above the minimum size.
func (d *Detector) detectOffenderClusters(events []event.Event, now time.Time) []AnomalyRecord {
	minSize := d.cfg.GetOffenderMinClusterSize()
	scale := d.cfg.GetOffenderSizeScale()

	var people []event.Event
	var points []cluster.Point
	for _, e := range events {
		if !e.IsPerson() || !e.HasLocation() {
			continue
		}
		points = append(points, cluster.Point{Lat: e.Latitude, Lon: e.Longitude, Payload: len(people)})
		people = append(people, e)
	}
	if len(points) == 0 {
		return nil
	}

	var out []AnomalyRecord
	for _, c := range d.clusterer.Cluster(points) {
		if c.MemberCount < minSize {
			continue
		}
		members := make([]event.Event, 0, c.MemberCount)
		for _, p := range c.Members {
			members = append(members, people[p.Payload.(int)])
		}
		out = append(out, AnomalyRecord{
			Category: CategoryOffenderClustering,
			Severity: severity(float64(c.MemberCount), scale),
			Description: fmt.Sprintf("%d person records within %.0f m of (%.5f, %.5f)",
				c.MemberCount, c.RadiusMeters, c.CentroidLat, c.CentroidLon),
			Location:        &Location{Lat: c.CentroidLat, Lon: c.CentroidLon},
			RelatedEntities: eventIDs(members),
			Metrics: map[string]any{
				"cluster_id":    c.ID,
				"cluster_size":  c.MemberCount,
				"radius_meters": c.RadiusMeters,
				"density":       c.Density,
				"bounds":        []float64{c.Bound.Bottom(), c.Bound.Left(), c.Bound.Top(), c.Bound.Right()},
			},
			Deviation:  float64(c.MemberCount - minSize),
			Confidence: d.cfg.GetOffenderConfidence(),
			DetectedAt: now,
		})
	}
	return out
}

// detectTimelineDeviation compares the batch's count per UTC hour of day with
// the timeline baseline. Only hours present in the batch are evaluated.
func (d *Detector) detectTimelineDeviation(events []event.Event, now time.Time) []AnomalyRecord {
	zThreshold := d.cfg.GetTimelineZThreshold()
	scale := d.cfg.GetZSeverityScale()

	hours, byHour := groupOrdered(events, func(e event.Event) (string, bool) {
		if !e.HasTime() {
			return "", false
		}
		return TimelineMetric(timeutil.HourOfDay(e.Timestamp)), true
	})

	var out []AnomalyRecord
	for _, name := range hours {
		members := byHour[name]
		count := float64(len(members))
		z := d.store.ZScore(name, count)
		if math.Abs(z) <= zThreshold {
			continue
		}
		hour := timeutil.HourOfDay(members[0].Timestamp)
		direction := "above"
		if z < 0 {
			direction = "below"
		}
		snapshot := d.baselineSnapshot(name)
		values := map[string]any{
			"hour":    hour,
			"count":   len(members),
			"z_score": z,
		}
		if snapshot != nil {
			values["expected"] = snapshot.Mean
		}
		out = append(out, AnomalyRecord{
			Category:        CategoryTimelineDeviation,
			Severity:        severity(z, scale),
			Description:     fmt.Sprintf("%d events at %02d:00 UTC, %.1f standard deviations %s baseline", len(members), hour, math.Abs(z), direction),
			RelatedEntities: eventIDs(members),
			Metrics:         values,
			Baseline:        snapshot,
			Deviation:       z,
			Confidence:      d.cfg.GetTimelineConfidence(),
			DetectedAt:      now,
		})
	}
	return out
}

// detectCrimeSignatureShift compares each category's share of the batch with
// its expected share.
func (d *Detector) detectCrimeSignatureShift(events []event.Event, now time.Time) []AnomalyRecord {
	high := d.cfg.GetSignatureHighRatio()
	low := d.cfg.GetSignatureLowRatio()

	categories, byCategory := groupOrdered(events, func(e event.Event) (string, bool) {
		return e.Category, e.IsIncident()
	})
	total := 0
	for _, c := range categories {
		total += len(byCategory[c])
	}
	if total == 0 {
		return nil
	}

	var out []AnomalyRecord
	for _, c := range categories {
		members := byCategory[c]
		share := float64(len(members)) / float64(total)
		expected := d.cfg.GetExpectedShare(c)
		if expected <= 0 {
			continue
		}
		ratio := share / expected
		if ratio <= high && ratio >= low {
			continue
		}
		direction := "over"
		if ratio < low {
			direction = "under"
		}
		out = append(out, AnomalyRecord{
			Category: CategoryCrimeSignatureShift,
			Severity: severity(ratio-1, 2),
			Description: fmt.Sprintf("%s is %s-represented: %.1f%% of incidents against %.1f%% expected",
				c, direction, share*100, expected*100),
			RelatedEntities: eventIDs(members),
			Metrics: map[string]any{
				"category":       c,
				"count":          len(members),
				"total":          total,
				"observed_share": share,
				"expected_share": expected,
				"ratio":          ratio,
			},
			Deviation:  ratio - 1,
			Confidence: d.cfg.GetSignatureConfidence(),
			DetectedAt: now,
		})
	}
	return out
}

// detectRepeatCallers flags callers with at least the minimum number of calls
// whose call rate exceeds the threshold. A zero time span uses the call count
// as the rate.
func (d *Detector) detectRepeatCallers(events []event.Event, now time.Time) []AnomalyRecord {
	minCalls := d.cfg.GetRepeatCallerMinCalls()
	threshold := d.cfg.GetRepeatCallerRatePerHr()
	scale := d.cfg.GetRepeatCallerRateScale()

	callers, byCaller := groupOrdered(events, func(e event.Event) (string, bool) {
		return e.CallerID, e.IsCall() && e.HasTime()
	})

	var out []AnomalyRecord
	for _, caller := range callers {
		calls := byCaller[caller]
		if len(calls) < minCalls {
			continue
		}
		first, last := calls[0].Timestamp, calls[0].Timestamp
		for _, c := range calls[1:] {
			if c.Timestamp.Before(first) {
				first = c.Timestamp
			}
			if c.Timestamp.After(last) {
				last = c.Timestamp
			}
		}
		spanHours := last.Sub(first).Hours()
		rate := float64(len(calls))
		if spanHours > 0 {
			rate = float64(len(calls)) / spanHours
		}
		if rate <= threshold {
			continue
		}
		out = append(out, AnomalyRecord{
			Category:        CategoryRepeatCaller,
			Severity:        severity(rate, scale),
			Description:     fmt.Sprintf("Caller %s placed %d calls in %.1f h (%.1f/h)", caller, len(calls), spanHours, rate),
			RelatedEntities: append([]string{caller}, eventIDs(calls)...),
			Metrics: map[string]any{
				"caller_id":     caller,
				"call_count":    len(calls),
				"span_hours":    spanHours,
				"calls_per_hr":  rate,
				"first_call_at": first,
				"last_call_at":  last,
			},
			Deviation:  rate - threshold,
			Confidence: d.cfg.GetRepeatCallerConfidence(),
			DetectedAt: now,
		})
	}
	return out
}
