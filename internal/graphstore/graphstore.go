// Package graphstore is a SQLite-backed incident graph. Incidents are nodes;
// shared entities, vehicles, weapons, callers and ballistic evidence are the
// relationships the linker queries through linkage.GraphClient.
package graphstore

import (
	"context"
	"embed"
	"io/fs"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/incident.report/internal/db"
	"github.com/banshee-data/incident.report/internal/errors"
	"github.com/banshee-data/incident.report/internal/linkage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations returns the embedded schema migrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

type Store struct {
	db *db.DB
}

// Open opens (creating if needed) the graph database at path and migrates it
// to the latest schema.
func Open(path string) (*Store, error) {
	database, err := db.OpenDB(path)
	if err != nil {
		return nil, err
	}
	s, err := New(database)
	if err != nil {
		database.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and applies pending migrations.
func New(database *db.DB) (*Store, error) {
	if err := database.MigrateUp(Migrations()); err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "migrate graph store")
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Entity is a person or organisation that can appear in several incidents.
type Entity struct {
	ID   string `json:"id" yaml:"id"`
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Ballistic is one piece of ballistic evidence. Two incidents share evidence
// when their pieces carry the same signature.
type Ballistic struct {
	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
	Caliber   string `json:"caliber,omitempty" yaml:"caliber,omitempty"`
	Signature string `json:"signature" yaml:"signature"`
}

// AddIncident inserts or updates an incident and returns its id. An empty id
// is assigned a new UUID.
func (s *Store) AddIncident(ctx context.Context, inc linkage.Incident) (string, error) {
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	var occurredAt, occurredUnix, lat, lon any
	if !inc.OccurredAt.IsZero() {
		occurredAt = inc.OccurredAt.UTC().Format(time.RFC3339Nano)
		occurredUnix = inc.OccurredAt.Unix()
	}
	if inc.Location != nil {
		lat, lon = inc.Location.Lat, inc.Location.Lon
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incidents (
			id, incident_type, occurred_at, occurred_unix, latitude, longitude,
			narrative, mo_attributes, suspect_description
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			incident_type = excluded.incident_type,
			occurred_at = excluded.occurred_at,
			occurred_unix = excluded.occurred_unix,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			narrative = excluded.narrative,
			mo_attributes = excluded.mo_attributes,
			suspect_description = excluded.suspect_description`,
		inc.ID, inc.Type, occurredAt, occurredUnix, lat, lon,
		inc.Narrative, strings.Join(inc.MOAttributes, ","), inc.SuspectDescription,
	)
	if err != nil {
		return "", errors.Wrapf(err, errors.KindInternal, "insert incident %s", inc.ID)
	}
	return inc.ID, nil
}

// AddEntity inserts or updates an entity and returns its id.
func (s *Store) AddEntity(ctx context.Context, e Entity) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Kind == "" {
		e.Kind = "person"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entities (id, kind, name) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET kind = excluded.kind, name = excluded.name`, e.ID, e.Kind, e.Name)
	if err != nil {
		return "", errors.Wrapf(err, errors.KindInternal, "insert entity %s", e.ID)
	}
	return e.ID, nil
}

// LinkEntity records that an entity is involved in an incident.
func (s *Store) LinkEntity(ctx context.Context, incidentID, entityID, role string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO incident_entities (incident_id, entity_id, role) VALUES (?, ?, ?)
		 ON CONFLICT (incident_id, entity_id) DO UPDATE SET role = excluded.role`,
		incidentID, entityID, role)
	if err != nil {
		return errors.Wrapf(err, errors.KindInternal, "link entity %s to %s", entityID, incidentID)
	}
	return nil
}

// AddVehicle records a plate seen at an incident. Plates are compared
// case-insensitively.
func (s *Store) AddVehicle(ctx context.Context, incidentID, plate string) error {
	return s.addValue(ctx, "incident_vehicles", "plate", incidentID, strings.ToUpper(strings.TrimSpace(plate)))
}

// AddWeapon records a weapon type used at an incident.
func (s *Store) AddWeapon(ctx context.Context, incidentID, weaponType string) error {
	return s.addValue(ctx, "incident_weapons", "weapon_type", incidentID, strings.ToLower(strings.TrimSpace(weaponType)))
}

// AddCaller records a caller who reported an incident.
func (s *Store) AddCaller(ctx context.Context, incidentID, callerID string) error {
	return s.addValue(ctx, "incident_callers", "caller_id", incidentID, strings.TrimSpace(callerID))
}

func (s *Store) addValue(ctx context.Context, table, column, incidentID, value string) error {
	if value == "" {
		return errors.Errorf(errors.KindValidation, "empty %s for incident %s", column, incidentID)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO `+table+` (incident_id, `+column+`) VALUES (?, ?)`, incidentID, value)
	if err != nil {
		return errors.Wrapf(err, errors.KindInternal, "insert %s for incident %s", column, incidentID)
	}
	return nil
}

// AddBallistic records ballistic evidence recovered at an incident and
// returns its id.
func (s *Store) AddBallistic(ctx context.Context, incidentID string, b Ballistic) (string, error) {
	if b.Signature == "" {
		return "", errors.Errorf(errors.KindValidation, "ballistic evidence for incident %s has no signature", incidentID)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO ballistic_evidence (id, incident_id, caliber, signature) VALUES (?, ?, ?, ?)`,
		b.ID, incidentID, b.Caliber, b.Signature)
	if err != nil {
		return "", errors.Wrapf(err, errors.KindInternal, "insert ballistic evidence %s", b.ID)
	}
	return b.ID, nil
}

// CountIncidents returns the number of stored incidents.
func (s *Store) CountIncidents(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, errors.KindInternal, "count incidents")
	}
	return n, nil
}
