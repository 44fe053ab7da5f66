package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/incident.report/internal/anomaly"
	"github.com/banshee-data/incident.report/internal/errors"
	"github.com/banshee-data/incident.report/internal/store"
	"github.com/banshee-data/incident.report/internal/testutil"
)

const batch = `{"id":"s1","source":"lpr","plate_number":"ABC123","latitude":0,"longitude":0,"timestamp":"2025-03-10T10:00:00Z"}
{"id":"s2","source":"lpr","plate_number":"ABC123","latitude":1,"longitude":0,"timestamp":"2025-03-10T10:01:00Z"}
not json
{"id":"c1","source":"cad","event_type":"call","caller_id":"555-0100","timestamp":"2025-03-10T10:05:00Z"}
`

func TestRun_DetectsFromFile(t *testing.T) {
	testutil.MuteLogs(t)
	out, err := run(context.Background(), options{EventsPath: testutil.WriteFile(t, "events.jsonl", batch)})
	require.NoError(t, err)

	assert.Equal(t, 3, out.EventCount)
	assert.Empty(t, out.RunID)
	var vehicle []anomaly.AnomalyRecord
	for _, r := range out.Anomalies {
		if r.Category == anomaly.CategoryVehicleBehavior {
			vehicle = append(vehicle, r)
		}
	}
	require.Len(t, vehicle, 1)
	assert.Equal(t, "ABC123", vehicle[0].RelatedEntities[0])
}

func TestRun_PersistsRunAndBaselines(t *testing.T) {
	testutil.MuteLogs(t)
	dbPath := filepath.Join(t.TempDir(), "results.db")
	history := strings.Repeat(`{"source":"lpr","plate_number":"XYZ","timestamp":"2025-03-09T03:10:00Z"}`+"\n", 4)

	out, err := run(context.Background(), options{
		EventsPath:  testutil.WriteFile(t, "events.jsonl", batch),
		HistoryPath: testutil.WriteFile(t, "history.jsonl", history),
		ResultsDB:   dbPath,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, out.Learned)
	require.NotEmpty(t, out.RunID)

	results, err := store.Open(dbPath)
	require.NoError(t, err)
	defer results.Close()

	stored, err := results.ListAnomalies(context.Background(), out.RunID)
	require.NoError(t, err)
	assert.Len(t, stored, len(out.Anomalies))

	baselines, err := results.LoadBaselines(context.Background())
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, b := range baselines {
		names[b.Name] = true
	}
	assert.True(t, names[anomaly.MetricGunfireCellCount])
	assert.True(t, names[anomaly.HourlyCountMetric("lpr")])
}

func TestRun_ArrayInputAndConfig(t *testing.T) {
	testutil.MuteLogs(t)
	cfg := testutil.WriteFile(t, "tuning.yaml", "vehicle_speed_threshold_kmh: 10000\n")
	events := testutil.WriteFile(t, "events.json", `[
		{"id":"s1","source":"lpr","plate_number":"ABC123","latitude":0,"longitude":0,"timestamp":"2025-03-10T10:00:00Z"},
		{"id":"s2","source":"lpr","plate_number":"ABC123","latitude":1,"longitude":0,"timestamp":"2025-03-10T10:01:00Z"}
	]`)

	out, err := run(context.Background(), options{EventsPath: events, Array: true, ConfigPath: cfg})
	require.NoError(t, err)
	assert.Equal(t, 2, out.EventCount)
	for _, r := range out.Anomalies {
		assert.NotEqual(t, anomaly.CategoryVehicleBehavior, r.Category)
	}
}

func TestRun_Errors(t *testing.T) {
	testutil.MuteLogs(t)
	_, err := run(context.Background(), options{EventsPath: filepath.Join(t.TempDir(), "missing.jsonl")})
	assert.Error(t, err)

	_, err = run(context.Background(), options{EventsPath: "-", ConfigPath: testutil.WriteFile(t, "tuning.toml", "")})
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, writeJSON(path, &output{EventCount: 0, Anomalies: []anomaly.AnomalyRecord{}}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"anomalies": []`)
}

func TestWriteJSON_RejectsPathOutsideWorkspace(t *testing.T) {
	err := writeJSON("/proc/self/out.json", &output{})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}
