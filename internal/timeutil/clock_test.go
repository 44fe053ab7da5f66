package timeutil

import (
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	before := time.Now()
	now := c.Now()
	if now.Before(before) {
		t.Errorf("RealClock.Now() = %v, before %v", now, before)
	}
	if c.Since(before) < 0 {
		t.Error("RealClock.Since should be non-negative")
	}
}

func TestMockClock(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	if !c.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", c.Now(), start)
	}

	c.Advance(90 * time.Minute)
	if got := c.Since(start); got != 90*time.Minute {
		t.Errorf("Since() = %v, want 90m", got)
	}

	later := start.Add(48 * time.Hour)
	c.Set(later)
	if !c.Now().Equal(later) {
		t.Errorf("Now() after Set = %v, want %v", c.Now(), later)
	}
}

func TestHourHelpers(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	ts := time.Date(2025, 3, 1, 22, 47, 13, 0, loc) // 03:47 UTC next day

	if got := TruncateHour(ts); !got.Equal(time.Date(2025, 3, 2, 3, 0, 0, 0, time.UTC)) {
		t.Errorf("TruncateHour = %v", got)
	}
	if got := HourOfDay(ts); got != 3 {
		t.Errorf("HourOfDay = %d, want 3", got)
	}
	if got := DayKey(ts); got != "2025-03-02" {
		t.Errorf("DayKey = %q, want 2025-03-02", got)
	}
}
