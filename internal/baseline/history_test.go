package baseline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHistory_AppendSortsAndEvicts(t *testing.T) {
	h := NewHistory(7*24*time.Hour, 100)

	// Window is [newest-7d, newest]; old falls outside it.
	old := t0
	recent := t0.Add(5 * 24 * time.Hour)
	newest := t0.Add(9 * 24 * time.Hour)
	assert.Equal(t, 2, h.Append("lpr", newest, old, recent))

	assert.Equal(t, []time.Time{recent, newest}, h.Timestamps("lpr"))
	assert.Equal(t, newest.Add(-7*24*time.Hour), h.Cutoff())

	// A later event of another type moves the window for every type.
	later := newest.Add(6 * 24 * time.Hour)
	assert.Equal(t, 1, h.Append("cad", later))
	assert.Equal(t, []time.Time{newest}, h.Timestamps("lpr"))

	h.Append("cad", later.Add(30*24*time.Hour))
	assert.Equal(t, []string{"cad"}, h.Types())
}

func TestHistory_ArchivedDataIsRetained(t *testing.T) {
	h := NewHistory(0, 0)
	archived := time.Date(2019, 1, 1, 3, 0, 0, 0, time.UTC)

	kept := h.AppendBatch(map[string][]time.Time{
		"cad": {archived, archived.Add(24 * time.Hour)},
		"lpr": {archived.Add(-60 * 24 * time.Hour), archived.Add(time.Hour)},
	})

	assert.Equal(t, 3, kept, "the lpr event 60 days before the newest is outside the window")
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []time.Time{archived.Add(time.Hour)}, h.Timestamps("lpr"))
}

func TestHistory_CapPerType(t *testing.T) {
	h := NewHistory(0, 3)

	kept := 0
	for i := 0; i < 5; i++ {
		kept += h.Append("cad", t0.Add(time.Duration(i)*time.Minute))
	}
	assert.Equal(t, 5, kept)
	got := h.Timestamps("cad")
	assert.Len(t, got, 3)
	assert.Equal(t, t0.Add(2*time.Minute), got[0])
	assert.Equal(t, t0.Add(4*time.Minute), got[2])
}

func TestHistory_TypesLenReset(t *testing.T) {
	h := NewHistory(0, 0)
	h.Append("b", t0)
	h.Append("a", t0, t0)
	h.Append("c")

	assert.Equal(t, []string{"a", "b"}, h.Types())
	assert.Equal(t, 3, h.Len())

	// Returned slices are copies.
	ts := h.Timestamps("a")
	ts[0] = time.Time{}
	assert.Equal(t, t0, h.Timestamps("a")[0])

	h.Reset()
	assert.Equal(t, 0, h.Len())
	assert.True(t, h.Cutoff().IsZero())
}
