package baseline

import (
	"sort"
	"sync"
	"time"
)

// Default retention for historical event timestamps.
const (
	DefaultRetention  = 30 * 24 * time.Hour
	DefaultMaxPerType = 50000
)

// History keeps event timestamps per event type for baseline recomputation.
// The retention window is measured back from the newest timestamp recorded
// for any type, so archived data is windowed on its own timeline. Each type
// is also capped at maxPerType newest entries.
type History struct {
	mu         sync.Mutex
	retention  time.Duration
	maxPerType int
	newest     time.Time
	byType     map[string][]time.Time
}

// NewHistory creates a History. Non-positive limits fall back to the defaults.
func NewHistory(retention time.Duration, maxPerType int) *History {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if maxPerType <= 0 {
		maxPerType = DefaultMaxPerType
	}
	return &History{
		retention:  retention,
		maxPerType: maxPerType,
		byType:     make(map[string][]time.Time),
	}
}

// Append records timestamps for eventType and evicts expired entries of
// every type. It returns how many of ts were retained.
func (h *History) Append(eventType string, ts ...time.Time) int {
	return h.AppendBatch(map[string][]time.Time{eventType: ts})
}

// AppendBatch records timestamps for several event types at once, then
// evicts expired entries of every type. It returns how many of the given
// timestamps were retained.
func (h *History) AppendBatch(batch map[string][]time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	for t, ts := range batch {
		if len(ts) == 0 {
			continue
		}
		merged := append(h.byType[t], ts...)
		sort.Slice(merged, func(i, j int) bool { return merged[i].Before(merged[j]) })
		h.byType[t] = merged
		if last := merged[len(merged)-1]; last.After(h.newest) {
			h.newest = last
		}
	}
	h.evictLocked()

	kept := 0
	for t, ts := range batch {
		retained := h.byType[t]
		if len(retained) == 0 {
			continue
		}
		n := 0
		for _, v := range ts {
			if !v.Before(retained[0]) {
				n++
			}
		}
		if n > len(retained) {
			n = len(retained)
		}
		kept += n
	}
	return kept
}

// Cutoff returns the oldest timestamp still inside the retention window, or
// the zero time when nothing has been recorded.
func (h *History) Cutoff() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cutoffLocked()
}

func (h *History) cutoffLocked() time.Time {
	if h.newest.IsZero() {
		return time.Time{}
	}
	return h.newest.Add(-h.retention)
}

// trim drops entries before cutoff and beyond the cap. ts must be sorted
// ascending.
func (h *History) trim(ts []time.Time, cutoff time.Time) []time.Time {
	start := sort.Search(len(ts), func(i int) bool { return !ts[i].Before(cutoff) })
	if n := len(ts) - start; n > h.maxPerType {
		start = len(ts) - h.maxPerType
	}
	if start == 0 {
		return ts
	}
	out := make([]time.Time, len(ts)-start)
	copy(out, ts[start:])
	return out
}

// Evict applies the retention window to every type.
func (h *History) Evict() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evictLocked()
}

func (h *History) evictLocked() {
	cutoff := h.cutoffLocked()
	for t, ts := range h.byType {
		trimmed := h.trim(ts, cutoff)
		if len(trimmed) == 0 {
			delete(h.byType, t)
			continue
		}
		h.byType[t] = trimmed
	}
}

// Timestamps returns a copy of the retained timestamps for eventType.
func (h *History) Timestamps(eventType string) []time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	ts := h.byType[eventType]
	out := make([]time.Time, len(ts))
	copy(out, ts)
	return out
}

// Types returns the event types with retained history, sorted.
func (h *History) Types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	types := make([]string, 0, len(h.byType))
	for t := range h.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Len returns the total number of retained timestamps.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, ts := range h.byType {
		n += len(ts)
	}
	return n
}

// Reset drops all history.
func (h *History) Reset() {
	h.mu.Lock()
	h.byType = make(map[string][]time.Time)
	h.newest = time.Time{}
	h.mu.Unlock()
}
