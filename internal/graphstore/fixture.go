package graphstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/incident.report/internal/errors"
	"github.com/banshee-data/incident.report/internal/linkage"
)

// Fixture is a bulk-load document for seeding a graph store from JSON or
// YAML.
type Fixture struct {
	Entities  []Entity          `json:"entities,omitempty" yaml:"entities,omitempty"`
	Incidents []FixtureIncident `json:"incidents" yaml:"incidents"`
}

// FixtureIncident is one incident with its relationships inlined.
type FixtureIncident struct {
	ID                 string       `json:"id" yaml:"id"`
	Type               string       `json:"incident_type,omitempty" yaml:"incident_type,omitempty"`
	OccurredAt         time.Time    `json:"occurred_at,omitempty" yaml:"occurred_at,omitempty"`
	Latitude           *float64     `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude          *float64     `json:"longitude,omitempty" yaml:"longitude,omitempty"`
	Narrative          string       `json:"narrative,omitempty" yaml:"narrative,omitempty"`
	MOAttributes       []string     `json:"mo_attributes,omitempty" yaml:"mo_attributes,omitempty"`
	SuspectDescription string       `json:"suspect_description,omitempty" yaml:"suspect_description,omitempty"`
	Entities           []EntityRole `json:"entities,omitempty" yaml:"entities,omitempty"`
	Vehicles           []string     `json:"vehicles,omitempty" yaml:"vehicles,omitempty"`
	Weapons            []string     `json:"weapons,omitempty" yaml:"weapons,omitempty"`
	Callers            []string     `json:"callers,omitempty" yaml:"callers,omitempty"`
	Ballistics         []Ballistic  `json:"ballistics,omitempty" yaml:"ballistics,omitempty"`
}

// EntityRole ties an entity to an incident.
type EntityRole struct {
	ID   string `json:"id" yaml:"id"`
	Role string `json:"role,omitempty" yaml:"role,omitempty"`
}

func (fi FixtureIncident) incident() linkage.Incident {
	inc := linkage.Incident{
		ID:                 fi.ID,
		Type:               fi.Type,
		OccurredAt:         fi.OccurredAt,
		Narrative:          fi.Narrative,
		MOAttributes:       fi.MOAttributes,
		SuspectDescription: fi.SuspectDescription,
	}
	if fi.Latitude != nil && fi.Longitude != nil {
		inc.Location = &linkage.Location{Lat: *fi.Latitude, Lon: *fi.Longitude}
	}
	return inc
}

// LoadFixture reads a fixture from a .json, .yaml or .yml file.
func LoadFixture(path string) (*Fixture, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, errors.Errorf(errors.KindValidation, "fixture must have .json, .yaml or .yml extension, got %q", ext)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindNotFound, "read fixture")
	}
	var f Fixture
	if ext == ".json" {
		err = json.Unmarshal(data, &f)
	} else {
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "parse fixture")
	}
	return &f, nil
}

// Import writes every entity and incident in f, with their relationships,
// and returns the number of incidents written. Entities referenced by an
// incident but not declared are created with the default kind.
func (s *Store) Import(ctx context.Context, f *Fixture) (int, error) {
	known := make(map[string]bool, len(f.Entities))
	for _, e := range f.Entities {
		id, err := s.AddEntity(ctx, e)
		if err != nil {
			return 0, err
		}
		known[id] = true
	}

	for i, fi := range f.Incidents {
		id, err := s.AddIncident(ctx, fi.incident())
		if err != nil {
			return i, err
		}
		for _, er := range fi.Entities {
			if er.ID == "" {
				return i, errors.Errorf(errors.KindValidation, "incident %s references an entity without an id", id)
			}
			if !known[er.ID] {
				if _, err := s.AddEntity(ctx, Entity{ID: er.ID}); err != nil {
					return i, err
				}
				known[er.ID] = true
			}
			if err := s.LinkEntity(ctx, id, er.ID, er.Role); err != nil {
				return i, err
			}
		}
		for _, plate := range fi.Vehicles {
			if err := s.AddVehicle(ctx, id, plate); err != nil {
				return i, err
			}
		}
		for _, w := range fi.Weapons {
			if err := s.AddWeapon(ctx, id, w); err != nil {
				return i, err
			}
		}
		for _, c := range fi.Callers {
			if err := s.AddCaller(ctx, id, c); err != nil {
				return i, err
			}
		}
		for _, b := range fi.Ballistics {
			if _, err := s.AddBallistic(ctx, id, b); err != nil {
				return i, fmt.Errorf("incident %s: %w", id, err)
			}
		}
	}
	return len(f.Incidents), nil
}
