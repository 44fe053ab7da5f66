package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/incident.report/internal/anomaly"
	"github.com/banshee-data/incident.report/internal/baseline"
	"github.com/banshee-data/incident.report/internal/errors"
	"github.com/banshee-data/incident.report/internal/linkage"
	"github.com/banshee-data/incident.report/internal/testutil"
	"github.com/banshee-data/incident.report/internal/timeutil"
)

var now = time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) (*Store, *timeutil.MockClock) {
	t.Helper()
	testutil.MuteLogs(t)

	clock := timeutil.NewMockClock(now)
	s, err := Open(filepath.Join(t.TempDir(), "results.db"), WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, clock
}

func sampleRecords() []anomaly.AnomalyRecord {
	return []anomaly.AnomalyRecord{
		{
			ID:              "a-1",
			Category:        anomaly.CategoryVehicleBehavior,
			Severity:        1,
			Description:     "plate ABC123 implied 6671.7 km/h",
			Location:        &anomaly.Location{Lat: 0.5, Lon: 0},
			RelatedEntities: []string{"ABC123", "s1", "s2"},
			Metrics:         map[string]any{"speed_kmh": 6671.7},
			Deviation:       6471.7,
			Confidence:      0.85,
			DetectedAt:      now,
		},
		{
			ID:          "a-2",
			Category:    anomaly.CategoryTimelineDeviation,
			Severity:    0.8,
			Description: "hour 03 count 40",
			Metrics:     map[string]any{"hour": 3.0},
			Baseline:    &baseline.BaselineMetric{Name: "timeline_hour:03", Mean: 4, StdDev: 4, SampleCount: 1, Seeded: true},
			Deviation:   9,
			Confidence:  0.8,
			DetectedAt:  now,
		},
	}
}

func TestSaveDetection_RoundTrip(t *testing.T) {
	s, clock := setupStore(t)
	ctx := context.Background()

	run, err := s.SaveDetection(ctx, 42, sampleRecords())
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.Equal(t, 42, run.EventCount)
	assert.Equal(t, 2, run.AnomalyCount)
	assert.True(t, run.CreatedAt.Equal(now))

	got, err := s.ListAnomalies(ctx, run.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(sampleRecords(), got, cmpopts.EquateApproxTime(0)); diff != "" {
		t.Errorf("anomalies mismatch (-want +got):\n%s", diff)
	}

	clock.Advance(time.Hour)
	second, err := s.SaveDetection(ctx, 0, nil)
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, run.ID, runs[1].ID)

	empty, err := s.ListAnomalies(ctx, second.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	counts, err := s.CountByCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[anomaly.Category]int{
		anomaly.CategoryVehicleBehavior:   1,
		anomaly.CategoryTimelineDeviation: 1,
	}, counts)
}

func TestSaveDetection_DuplicateIDRollsBack(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	records := sampleRecords()
	records[1].ID = records[0].ID
	_, err := s.SaveDetection(ctx, 2, records)
	require.Error(t, err)

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs, "the run row is rolled back with its anomalies")
}

func TestLinkage_RoundTrip(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	result := linkage.LinkageResult{
		LinkedIncidents: []linkage.Incident{
			{ID: "I1", ResolvedBy: "graph"},
			{ID: "I2", Placeholder: true, ResolvedBy: "placeholder"},
		},
		Linkages: []linkage.LinkageEdge{{
			SourceID: "I1", TargetID: "I2", Type: linkage.TypeEntityOverlap, Confidence: 0.51,
			Explanation: "I1 and I2 share 3 entities", Metadata: map[string]any{"shared_entity_count": 3.0},
		}},
		Confidence:   map[string]float64{"I1": 0.51, "I2": 0.51},
		Explanations: []string{"I1 and I2 share 3 entities"},
	}
	id, err := s.SaveLinkage(ctx, []string{"I1"}, result)
	require.NoError(t, err)

	got, err := s.LoadLinkage(ctx, id)
	require.NoError(t, err)
	if diff := cmp.Diff(result, got); diff != "" {
		t.Errorf("linkage mismatch (-want +got):\n%s", diff)
	}

	_, err = s.LoadLinkage(ctx, "missing")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestBaselines_SaveLoadRestore(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	src := baseline.NewStore(baseline.WithClock(timeutil.NewMockClock(now)))
	src.Seed("gunfire_cell_count", 2, 1.5)
	src.Update("hourly_count:lpr", []float64{4, 6, 5})
	require.NoError(t, s.SaveBaselines(ctx, src.Snapshot()))

	// Upsert replaces existing rows.
	src.Update("hourly_count:lpr", []float64{10, 10})
	require.NoError(t, s.SaveBaselines(ctx, src.Snapshot()))

	loaded, err := s.LoadBaselines(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	if diff := cmp.Diff(src.Snapshot(), loaded, cmpopts.EquateApproxTime(0)); diff != "" {
		t.Errorf("baselines mismatch (-want +got):\n%s", diff)
	}

	dst := baseline.NewStore()
	dst.Restore(loaded)
	m, ok := dst.Get("hourly_count:lpr")
	require.True(t, ok)
	assert.Equal(t, 10.0, m.Mean)
	g, ok := dst.Get("gunfire_cell_count")
	require.True(t, ok)
	assert.True(t, g.Seeded)
}
