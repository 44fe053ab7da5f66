package baseline

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/incident.report/internal/timeutil"
)

var t0 = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func TestCompute(t *testing.T) {
	m, ok := Compute("calls", []float64{2, 4, 4, 4, 5, 5, 7, 9}, t0)
	require.True(t, ok)
	assert.Equal(t, "calls", m.Name)
	assert.InDelta(t, 5.0, m.Mean, 1e-12)
	assert.InDelta(t, 2.0, m.StdDev, 1e-12)
	assert.Equal(t, 2.0, m.Min)
	assert.Equal(t, 9.0, m.Max)
	assert.Equal(t, 8, m.SampleCount)
	assert.Equal(t, t0, m.LastUpdated)

	_, ok = Compute("empty", nil, t0)
	assert.False(t, ok)
}

func TestCompute_ZeroVarianceCoerced(t *testing.T) {
	m, ok := Compute("flat", []float64{3, 3, 3}, t0)
	require.True(t, ok)
	assert.Equal(t, MinStdDev, m.StdDev)

	m, ok = Compute("single", []float64{7}, t0)
	require.True(t, ok)
	assert.Equal(t, MinStdDev, m.StdDev)
	assert.Equal(t, 7.0, m.Mean)
}

func TestZScore_NeverDividesByZero(t *testing.T) {
	assert.Equal(t, 0.0, ZScore(10, 2, 0))
	assert.Equal(t, 0.0, ZScore(10, 2, math.NaN()))
	assert.Equal(t, 0.0, BaselineMetric{Mean: 1}.ZScore(100))
	assert.InDelta(t, 4.0, ZScore(10, 2, 2), 1e-12)
	assert.InDelta(t, -1.5, ZScore(-1, 2, 2), 1e-12)
}

func TestStore_UpdateReplacesNotAccumulates(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	s := NewStore(WithClock(clock))

	_, ok := s.Update("m", nil)
	assert.False(t, ok, "empty update is a no-op")
	_, exists := s.Get("m")
	assert.False(t, exists)

	s.Update("m", []float64{1, 2, 3})
	clock.Advance(time.Hour)
	s.Update("m", []float64{10, 10, 10, 10})

	m, ok := s.Get("m")
	require.True(t, ok)
	assert.Equal(t, 10.0, m.Mean)
	assert.Equal(t, 4, m.SampleCount)
	assert.Equal(t, t0.Add(time.Hour), m.LastUpdated)
}

func TestStore_ZScore(t *testing.T) {
	s := NewStore()
	assert.Equal(t, 0.0, s.ZScore("missing", 42), "no baseline yields 0")

	s.Update("m", []float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 2.5, s.ZScore("m", 10), 1e-12)
}

func TestStore_SeedDoesNotOverwrite(t *testing.T) {
	s := NewStore()
	assert.True(t, s.Seed("gunfire", 2.0, 1.5))
	assert.False(t, s.Seed("gunfire", 9.0, 9.0))

	m, _ := s.Get("gunfire")
	assert.Equal(t, 2.0, m.Mean)
	assert.Equal(t, 1.5, m.StdDev)
	assert.True(t, m.Seeded)

	s.Update("gunfire", []float64{1, 3})
	m, _ = s.Get("gunfire")
	assert.False(t, m.Seeded, "real samples replace the prior")

	assert.True(t, s.Seed("zero", 5, 0))
	m, _ = s.Get("zero")
	assert.Equal(t, MinStdDev, m.StdDev)
}

func TestStore_SnapshotRestoreReset(t *testing.T) {
	s := NewStore()
	s.Update("b", []float64{1, 2})
	s.Update("a", []float64{5})

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].Name)
	assert.Equal(t, []string{"a", "b"}, s.Names())

	s.Reset()
	assert.Equal(t, 0, s.Len())

	snap = append(snap, BaselineMetric{Name: "zero", Mean: 1, StdDev: 0}, BaselineMetric{})
	s.Restore(snap)
	assert.Equal(t, 3, s.Len())
	m, _ := s.Get("zero")
	assert.Equal(t, MinStdDev, m.StdDev)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Update("shared", []float64{float64(i), float64(i + 1)})
		}(i)
		go func() {
			defer wg.Done()
			_ = s.ZScore("shared", 3)
			_ = s.Snapshot()
		}()
	}
	wg.Wait()
	_, ok := s.Get("shared")
	assert.True(t, ok)
}
