// Package event turns loosely typed event maps into typed records.
//
// Parsing never fails: unknown keys are ignored and malformed values leave the
// corresponding field unset, so each consumer can skip just what it needs.
package event

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/incident.report/internal/geo"
)

// Event is one ingested record: a plate read, an acoustic detection, a call
// for service or an incident report.
type Event struct {
	ID         string    `json:"id,omitempty"`
	Source     string    `json:"source,omitempty"`
	EventType  string    `json:"event_type,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
	Latitude   float64   `json:"latitude,omitempty"`
	Longitude  float64   `json:"longitude,omitempty"`
	Plate      string    `json:"plate_number,omitempty"`
	EntityType string    `json:"entity_type,omitempty"`
	Category   string    `json:"category,omitempty"`
	CallerID   string    `json:"caller_id,omitempty"`
	Narrative  string    `json:"narrative,omitempty"`

	hasTime     bool
	hasLocation bool
}

// HasTime reports whether a timestamp was parsed.
func (e Event) HasTime() bool { return e.hasTime }

// HasLocation reports whether valid coordinates were parsed.
func (e Event) HasLocation() bool { return e.hasLocation }

// WithTime returns a copy of e with the timestamp set.
func (e Event) WithTime(t time.Time) Event {
	e.Timestamp = t
	e.hasTime = !t.IsZero()
	return e
}

// WithLocation returns a copy of e with coordinates set, if valid.
func (e Event) WithLocation(lat, lon float64) Event {
	if geo.ValidCoordinate(lat, lon) {
		e.Latitude, e.Longitude, e.hasLocation = lat, lon, true
	}
	return e
}

// Kind is the event type used for baseline bucketing: EventType, else
// Source, else "unknown".
func (e Event) Kind() string {
	switch {
	case e.EventType != "":
		return e.EventType
	case e.Source != "":
		return e.Source
	default:
		return "unknown"
	}
}

// Parse builds an Event from a loosely typed map. Recognised keys are listed
// in keys.go; everything else is ignored.
func Parse(raw map[string]any) Event {
	var e Event
	e.ID = firstString(raw, idKeys...)
	e.Source = normalizeTag(firstString(raw, sourceKeys...))
	e.EventType = normalizeTag(firstString(raw, eventTypeKeys...))
	e.Plate = NormalizePlate(firstString(raw, plateKeys...))
	e.EntityType = normalizeTag(firstString(raw, entityTypeKeys...))
	e.Category = normalizeTag(firstString(raw, categoryKeys...))
	e.CallerID = strings.TrimSpace(firstString(raw, callerKeys...))
	e.Narrative = strings.TrimSpace(firstString(raw, narrativeKeys...))

	for _, k := range timestampKeys {
		if v, ok := raw[k]; ok {
			if ts, ok := ParseTime(v); ok {
				e = e.WithTime(ts)
				break
			}
		}
	}

	lat, latOK := firstFloat(raw, latKeys...)
	lon, lonOK := firstFloat(raw, lonKeys...)
	if latOK && lonOK {
		e = e.WithLocation(lat, lon)
	}
	return e
}

// ParseAll parses every map in raws.
func ParseAll(raws []map[string]any) []Event {
	out := make([]Event, len(raws))
	for i, r := range raws {
		out[i] = Parse(r)
	}
	return out
}

// NormalizePlate upper-cases a plate and strips spaces and dashes.
func NormalizePlate(p string) string {
	p = strings.ToUpper(strings.TrimSpace(p))
	return strings.NewReplacer(" ", "", "-", "").Replace(p)
}

func normalizeTag(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "_")
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		if s := stringify(v); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case fmt.Stringer:
		return x.String()
	default:
		return ""
	}
}

func firstFloat(raw map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if f, ok := toFloat(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// ParseFloat converts numbers, json.Number and numeric strings to a finite
// float64.
func ParseFloat(v any) (float64, bool) { return toFloat(v) }

func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
const epochMillisThreshold = 1e11

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime accepts time.Time, epoch seconds or milliseconds (numeric or
// string) and ISO-8601 strings. Zone-less strings are taken as UTC.
func ParseTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return fromEpoch(f)
		}
		// Some producers append an explicit offset after "Z".
		s = strings.Replace(s, "Z+00:00", "Z", 1)
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), true
			}
		}
		return time.Time{}, false
	}
	if f, ok := toFloat(v); ok {
		return fromEpoch(f)
	}
	return time.Time{}, false
}

func fromEpoch(f float64) (time.Time, bool) {
	if f <= 0 {
		return time.Time{}, false
	}
	if f >= epochMillisThreshold {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}
