package linkage

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/incident.report/internal/event"
	"github.com/banshee-data/incident.report/internal/geo"
)

// QuerySpec names a graph query. Implementations map each name to their own
// query language.
type QuerySpec string

// Graph queries issued by the linker. Every query takes an "id" parameter;
// the remaining parameters and the keys of returned records are listed per
// query.
const (
	// QueryIncident returns at most one record with the incident fields:
	// id, incident_type, occurred_at, latitude, longitude, narrative,
	// mo_attributes, suspect_description.
	QueryIncident QuerySpec = "incident"
	// QueryIncidentsInWindow takes start and end (time.Time) and returns
	// id and occurred_at for other incidents in [start, end].
	QueryIncidentsInWindow QuerySpec = "incidents_in_window"
	// QueryIncidentsNear takes latitude, longitude and radius_km and returns
	// id, latitude and longitude of candidate incidents.
	QueryIncidentsNear QuerySpec = "incidents_near"
	// The shared_* queries return id, shared_count and the shared values
	// (entities, plates, weapon_types or callers) per related incident.
	QuerySharedEntities    QuerySpec = "shared_entities"
	QuerySharedVehicles    QuerySpec = "shared_vehicles"
	QuerySharedWeaponTypes QuerySpec = "shared_weapon_types"
	QuerySharedCallers     QuerySpec = "shared_callers"
	// QuerySharedBallistics returns id, caliber and evidence_id for each
	// piece of ballistic evidence shared with another incident.
	QuerySharedBallistics QuerySpec = "shared_ballistics"
)

// IncidentIndex is the search index holding incident documents.
const IncidentIndex = "incidents"

// Record is one row returned by a graph query.
type Record = map[string]any

// GraphClient runs named queries against the graph store.
type GraphClient interface {
	ExecuteQuery(ctx context.Context, spec QuerySpec, params map[string]any) ([]Record, error)
}

// Hit is one search result.
type Hit struct {
	ID     string         `json:"id"`
	Score  float64        `json:"score"`
	Source map[string]any `json:"source"`
}

// SearchClient runs queries against a text index.
type SearchClient interface {
	Search(ctx context.Context, index string, query map[string]any, size int) ([]Hit, error)
}

func recordString(r map[string]any, key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		if f, ok := event.ParseFloat(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return ""
	}
}

func recordFloat(r map[string]any, key string) (float64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	return event.ParseFloat(v)
}

func recordTime(r map[string]any, key string) (time.Time, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return time.Time{}, false
	}
	return event.ParseTime(v)
}

func recordStrings(r map[string]any, key string) []string {
	switch v := r[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return splitList(v)
	default:
		return nil
	}
}

// recordCount returns shared_count, falling back to the length of the
// values list under listKey.
func recordCount(r map[string]any, listKey string) int {
	if f, ok := recordFloat(r, "shared_count"); ok && f > 0 {
		return int(f)
	}
	return len(recordStrings(r, listKey))
}

func incidentFromRecord(r map[string]any, resolvedBy string) Incident {
	inc := Incident{
		ID:                 recordString(r, "id"),
		Type:               recordString(r, "incident_type"),
		Narrative:          recordString(r, "narrative"),
		MOAttributes:       recordStrings(r, "mo_attributes"),
		SuspectDescription: recordString(r, "suspect_description"),
		ResolvedBy:         resolvedBy,
	}
	if t, ok := recordTime(r, "occurred_at"); ok {
		inc.OccurredAt = t.UTC()
	}
	lat, latOK := recordFloat(r, "latitude")
	lon, lonOK := recordFloat(r, "longitude")
	if latOK && lonOK && geo.ValidCoordinate(lat, lon) {
		inc.Location = &Location{Lat: lat, Lon: lon}
	}
	return inc
}

// splitList splits a comma-separated value list, as produced by SQL
// group_concat, dropping blanks.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
