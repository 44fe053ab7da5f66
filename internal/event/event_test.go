package event

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/incident.report/internal/monitoring"
)

func TestParse_RecognisedKeys(t *testing.T) {
	e := Parse(map[string]any{
		"event_id":     "evt-1",
		"source":       "ALPR Camera",
		"created_at":   "2025-05-04T10:15:00Z",
		"lat":          "40.7128",
		"longitude":    -74.006,
		"plate":        " abc-123 ",
		"type":         "Vehicle",
		"crime_type":   "Theft",
		"caller_phone": "555-0100",
		"description":  "  white sedan  ",
		"unknown_key":  []int{1, 2, 3},
	})

	assert.Equal(t, "evt-1", e.ID)
	assert.Equal(t, "alpr_camera", e.Source)
	assert.Equal(t, "ABC123", e.Plate)
	assert.Equal(t, "vehicle", e.EntityType)
	assert.Equal(t, "theft", e.Category)
	assert.Equal(t, "555-0100", e.CallerID)
	assert.Equal(t, "white sedan", e.Narrative)
	require.True(t, e.HasTime())
	assert.Equal(t, time.Date(2025, 5, 4, 10, 15, 0, 0, time.UTC), e.Timestamp)
	require.True(t, e.HasLocation())
	assert.InDelta(t, 40.7128, e.Latitude, 1e-9)
	assert.InDelta(t, -74.006, e.Longitude, 1e-9)
	assert.True(t, e.IsVehicleRead())
}

func TestParse_KeyPriority(t *testing.T) {
	e := Parse(map[string]any{
		"timestamp":    "not a time",
		"created_at":   float64(1700000000),
		"plate_number": "XYZ9",
		"plate":        "IGNORED",
		"entity_type":  "",
		"type":         "suspect",
	})
	require.True(t, e.HasTime(), "falls through to created_at when timestamp is malformed")
	assert.Equal(t, int64(1700000000), e.Timestamp.Unix())
	assert.Equal(t, "XYZ9", e.Plate)
	assert.Equal(t, "suspect", e.EntityType)
}

func TestParse_MalformedValues(t *testing.T) {
	e := Parse(map[string]any{
		"timestamp": "yesterday-ish",
		"latitude":  "north",
		"longitude": 12.0,
	})
	assert.False(t, e.HasTime())
	assert.False(t, e.HasLocation())

	e = Parse(map[string]any{"latitude": 95.0, "longitude": 10.0})
	assert.False(t, e.HasLocation(), "out of range latitude")

	e = Parse(map[string]any{})
	assert.Equal(t, "unknown", e.Kind())
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		ok   bool
	}{
		{"rfc3339", "2024-01-02T03:04:05Z", true},
		{"offset", "2024-01-02T04:04:05+01:00", true},
		{"naive iso 8601", "2024-01-02T03:04:05", true},
		{"space separated", "2024-01-02 03:04:05", true},
		{"epoch seconds", float64(want.Unix()), true},
		{"epoch millis", float64(want.UnixMilli()), true},
		{"epoch string", "1704164645", true},
		{"json number", json.Number("1704164645"), true},
		{"int64", want.Unix(), true},
		{"time value", want, true},
		{"empty", "", false},
		{"garbage", "soon", false},
		{"negative", -5.0, false},
		{"bool", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, got.Equal(want), "got %v", got)
			}
		})
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name                                     string
		raw                                      map[string]any
		vehicle, gunfire, person, incident, call bool
	}{
		{name: "lpr read", raw: map[string]any{"source": "lpr", "plate": "A1"}, vehicle: true},
		{name: "lpr without plate", raw: map[string]any{"source": "lpr"}},
		{name: "shotspotter", raw: map[string]any{"source": "ShotSpotter"}, gunfire: true},
		{name: "acoustic type", raw: map[string]any{"event_type": "acoustic_detection"}, gunfire: true},
		{name: "offender", raw: map[string]any{"entity_type": "Offender"}, person: true},
		{name: "incident", raw: map[string]any{"incident_type": "burglary"}, incident: true},
		{name: "cad call", raw: map[string]any{"source": "cad", "caller_id": "c1"}, call: true},
		{name: "bare caller", raw: map[string]any{"reporting_party": "Jane"}, call: true},
		{name: "caller on lpr", raw: map[string]any{"source": "lpr", "caller_id": "c1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Parse(tt.raw)
			assert.Equal(t, tt.vehicle, e.IsVehicleRead(), "vehicle")
			assert.Equal(t, tt.gunfire, e.IsGunfire(), "gunfire")
			assert.Equal(t, tt.person, e.IsPerson(), "person")
			assert.Equal(t, tt.incident, e.IsIncident(), "incident")
			assert.Equal(t, tt.call, e.IsCall(), "call")
		})
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, "lpr_read", Parse(map[string]any{"event_type": "LPR Read", "source": "x"}).Kind())
	assert.Equal(t, "cad", Parse(map[string]any{"source": "CAD"}).Kind())
}

func TestReadJSONLines(t *testing.T) {
	original := monitoring.Logf
	defer func() { monitoring.Logf = original }()
	monitoring.SetLogger(nil)

	input := strings.Join([]string{
		`{"id":"a","source":"lpr","plate":"ABC123","timestamp":1700000000,"latitude":1,"longitude":2}`,
		``,
		`not json`,
		`null`,
		`{"id":"b","source":"cad","caller_id":"c9"}`,
	}, "\n")

	events, skipped, err := ReadJSONLines(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].ID)
	assert.True(t, events[0].HasTime())
	assert.True(t, events[0].HasLocation())
	assert.Equal(t, "b", events[1].ID)
}

func TestReadJSONArray(t *testing.T) {
	events, err := ReadJSONArray(strings.NewReader(`[{"id":"x","incident_type":"assault"},{"id":"y"}]`))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "assault", events[0].Category)

	_, err = ReadJSONArray(strings.NewReader(`{"id":"x"}`))
	assert.Error(t, err)
}
