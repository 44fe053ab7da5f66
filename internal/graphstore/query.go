package graphstore

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/incident.report/internal/errors"
	"github.com/banshee-data/incident.report/internal/geo"
	"github.com/banshee-data/incident.report/internal/linkage"
)

// sharedQueries maps each shared_* query to its link table, value column and
// the record key the linker reads the values from.
var sharedQueries = map[linkage.QuerySpec]struct {
	table, column, listKey string
}{
	linkage.QuerySharedEntities:    {"incident_entities", "entity_id", "entities"},
	linkage.QuerySharedVehicles:    {"incident_vehicles", "plate", "plates"},
	linkage.QuerySharedWeaponTypes: {"incident_weapons", "weapon_type", "weapon_types"},
	linkage.QuerySharedCallers:     {"incident_callers", "caller_id", "callers"},
}

// ExecuteQuery implements linkage.GraphClient.
func (s *Store) ExecuteQuery(ctx context.Context, spec linkage.QuerySpec, params map[string]any) ([]linkage.Record, error) {
	id, err := stringParam(params, "id")
	if err != nil {
		return nil, err
	}
	switch spec {
	case linkage.QueryIncident:
		return s.incident(ctx, id)
	case linkage.QueryIncidentsInWindow:
		start, err := timeParam(params, "start")
		if err != nil {
			return nil, err
		}
		end, err := timeParam(params, "end")
		if err != nil {
			return nil, err
		}
		return s.incidentsInWindow(ctx, id, start, end)
	case linkage.QueryIncidentsNear:
		lat, err := floatParam(params, "latitude")
		if err != nil {
			return nil, err
		}
		lon, err := floatParam(params, "longitude")
		if err != nil {
			return nil, err
		}
		radius, err := floatParam(params, "radius_km")
		if err != nil {
			return nil, err
		}
		return s.incidentsNear(ctx, id, lat, lon, radius)
	case linkage.QuerySharedBallistics:
		return s.sharedBallistics(ctx, id)
	}
	if q, ok := sharedQueries[spec]; ok {
		return s.shared(ctx, id, q.table, q.column, q.listKey)
	}
	return nil, errors.Errorf(errors.KindValidation, "unknown graph query %q", spec)
}

func (s *Store) incident(ctx context.Context, id string) ([]linkage.Record, error) {
	var (
		incidentType, narrative, mo, suspect string
		occurredAt                           sql.NullString
		lat, lon                             sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT incident_type, occurred_at, latitude, longitude, narrative, mo_attributes, suspect_description
		FROM incidents WHERE id = ?`, id).
		Scan(&incidentType, &occurredAt, &lat, &lon, &narrative, &mo, &suspect)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindInternal, "load incident %s", id)
	}
	r := linkage.Record{
		"id":                  id,
		"incident_type":       incidentType,
		"narrative":           narrative,
		"mo_attributes":       mo,
		"suspect_description": suspect,
	}
	if occurredAt.Valid {
		r["occurred_at"] = occurredAt.String
	}
	if lat.Valid && lon.Valid {
		r["latitude"] = lat.Float64
		r["longitude"] = lon.Float64
	}
	return []linkage.Record{r}, nil
}

func (s *Store) incidentsInWindow(ctx context.Context, id string, start, end time.Time) ([]linkage.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, occurred_at FROM incidents
		WHERE id <> ? AND occurred_unix BETWEEN ? AND ?
		ORDER BY occurred_unix, id`, id, start.Unix(), end.Unix())
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "query incidents in window")
	}
	defer rows.Close()

	var out []linkage.Record
	for rows.Next() {
		var other, at string
		if err := rows.Scan(&other, &at); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "scan incident")
		}
		out = append(out, linkage.Record{"id": other, "occurred_at": at})
	}
	return out, rowsErr(rows)
}

// incidentsNear returns incidents inside the bounding box of the radius. The
// linker applies the exact great-circle cut.
func (s *Store) incidentsNear(ctx context.Context, id string, lat, lon, radiusKm float64) ([]linkage.Record, error) {
	if !geo.ValidCoordinate(lat, lon) || radiusKm <= 0 {
		return nil, errors.Errorf(errors.KindValidation, "invalid search area (%f, %f) radius %f", lat, lon, radiusKm)
	}
	north, _ := geo.Project(lat, lon, 0, radiusKm)
	south, _ := geo.Project(lat, lon, 180, radiusKm)
	_, east := geo.Project(lat, lon, 90, radiusKm)
	_, west := geo.Project(lat, lon, 270, radiusKm)

	query := `SELECT id, latitude, longitude FROM incidents WHERE id <> ? AND latitude BETWEEN ? AND ?`
	args := []any{id}
	switch {
	case north < lat || south > lat:
		// The circle covers a pole, so every longitude qualifies.
		if north < lat {
			north = 90
		}
		if south > lat {
			south = -90
		}
		args = append(args, south, north)
	case west > east:
		// The box straddles the antimeridian.
		query += ` AND (longitude >= ? OR longitude <= ?)`
		args = append(args, south, north, west, east)
	default:
		query += ` AND longitude BETWEEN ? AND ?`
		args = append(args, south, north, west, east)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "query incidents near")
	}
	defer rows.Close()

	var out []linkage.Record
	for rows.Next() {
		var other string
		var otherLat, otherLon float64
		if err := rows.Scan(&other, &otherLat, &otherLon); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "scan incident")
		}
		out = append(out, linkage.Record{"id": other, "latitude": otherLat, "longitude": otherLon})
	}
	return out, rowsErr(rows)
}

func (s *Store) shared(ctx context.Context, id, table, column, listKey string) ([]linkage.Record, error) {
	query := fmt.Sprintf(`
		SELECT b.incident_id, COUNT(DISTINCT b.%[2]s), group_concat(DISTINCT b.%[2]s)
		FROM %[1]s a
		JOIN %[1]s b ON b.%[2]s = a.%[2]s AND b.incident_id <> a.incident_id
		WHERE a.incident_id = ?
		GROUP BY b.incident_id
		ORDER BY b.incident_id`, table, column)
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindInternal, "query shared %s", listKey)
	}
	defer rows.Close()

	var out []linkage.Record
	for rows.Next() {
		var other, values string
		var count int64
		if err := rows.Scan(&other, &count, &values); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "scan shared row")
		}
		out = append(out, linkage.Record{"id": other, "shared_count": count, listKey: values})
	}
	return out, rowsErr(rows)
}

func (s *Store) sharedBallistics(ctx context.Context, id string) ([]linkage.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.incident_id, a.caliber, b.id
		FROM ballistic_evidence a
		JOIN ballistic_evidence b ON b.signature = a.signature AND b.incident_id <> a.incident_id
		WHERE a.incident_id = ?
		ORDER BY b.incident_id, b.id`, id)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "query shared ballistics")
	}
	defer rows.Close()

	var out []linkage.Record
	for rows.Next() {
		var other, caliber, evidence string
		if err := rows.Scan(&other, &caliber, &evidence); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "scan ballistic row")
		}
		out = append(out, linkage.Record{"id": other, "caliber": caliber, "evidence_id": evidence})
	}
	return out, rowsErr(rows)
}

func rowsErr(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, errors.KindInternal, "iterate rows")
	}
	return nil
}

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key].(string)
	if !ok || v == "" {
		return "", errors.Errorf(errors.KindValidation, "missing %s parameter", key)
	}
	return v, nil
}

func floatParam(params map[string]any, key string) (float64, error) {
	v, ok := params[key].(float64)
	if !ok || math.IsNaN(v) {
		return 0, errors.Errorf(errors.KindValidation, "missing %s parameter", key)
	}
	return v, nil
}

func timeParam(params map[string]any, key string) (time.Time, error) {
	v, ok := params[key].(time.Time)
	if !ok || v.IsZero() {
		return time.Time{}, errors.Errorf(errors.KindValidation, "missing %s parameter", key)
	}
	return v, nil
}
