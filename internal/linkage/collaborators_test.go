package linkage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordStrings(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"string slice", []string{"a", "b"}, []string{"a", "b"}},
		{"any slice skips non-strings", []any{"a", 3, "", "b"}, []string{"a", "b"}},
		{"group_concat", "a, b,,c ", []string{"a", "b", "c"}},
		{"empty string", "", nil},
		{"missing", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, recordStrings(Record{"k": tt.in}, "k"))
		})
	}
}

func TestRecordCount(t *testing.T) {
	assert.Equal(t, 4, recordCount(Record{"shared_count": int64(4), "plates": "A"}, "plates"))
	assert.Equal(t, 2, recordCount(Record{"plates": "A,B"}, "plates"))
	assert.Equal(t, 2, recordCount(Record{"shared_count": 0, "plates": []any{"A", "B"}}, "plates"))
	assert.Equal(t, 0, recordCount(Record{}, "plates"))
}

func TestRecordString(t *testing.T) {
	assert.Equal(t, "I1", recordString(Record{"id": "I1"}, "id"))
	assert.Equal(t, "I1", recordString(Record{"id": []byte("I1")}, "id"))
	assert.Equal(t, "42", recordString(Record{"id": int64(42)}, "id"))
	assert.Equal(t, "", recordString(Record{}, "id"))
}

func TestIncidentFromRecord(t *testing.T) {
	at := time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC)
	inc := incidentFromRecord(Record{
		"id":                  "I1",
		"incident_type":       "robbery",
		"occurred_at":         at.Format(time.RFC3339),
		"latitude":            "40.5",
		"longitude":           -74.25,
		"narrative":           "two suspects",
		"mo_attributes":       "forced entry,night",
		"suspect_description": "tall",
	}, "graph")

	assert.Equal(t, "I1", inc.ID)
	assert.Equal(t, "robbery", inc.Type)
	assert.True(t, inc.OccurredAt.Equal(at))
	assert.Equal(t, &Location{Lat: 40.5, Lon: -74.25}, inc.Location)
	assert.Equal(t, []string{"forced entry", "night"}, inc.MOAttributes)
	assert.Equal(t, "tall", inc.SuspectDescription)
	assert.Equal(t, "graph", inc.ResolvedBy)
	assert.False(t, inc.Placeholder)

	invalid := incidentFromRecord(Record{"id": "I2", "latitude": 91.0, "longitude": 0.0}, "graph")
	assert.Nil(t, invalid.Location)
	assert.True(t, invalid.OccurredAt.IsZero())
}
