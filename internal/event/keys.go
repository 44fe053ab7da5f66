package event

import "strings"

// Recognised input keys, in priority order.
var (
	idKeys         = []string{"id", "event_id", "incident_id"}
	sourceKeys     = []string{"source"}
	eventTypeKeys  = []string{"event_type"}
	timestampKeys  = []string{"timestamp", "created_at", "occurred_at"}
	latKeys        = []string{"latitude", "lat"}
	lonKeys        = []string{"longitude", "lon", "lng"}
	plateKeys      = []string{"plate_number", "plate"}
	entityTypeKeys = []string{"entity_type", "type"}
	categoryKeys   = []string{"incident_type", "crime_type", "category"}
	callerKeys     = []string{"caller_id", "caller_phone", "reporting_party"}
	narrativeKeys  = []string{"narrative", "description"}
)

var (
	vehicleTags = []string{"lpr", "alpr", "plate", "vehicle"}
	gunfireTags = []string{"gunfire", "shotspotter", "acoustic", "shot"}
	callTags    = []string{"cad", "call", "911", "dispatch"}
	personTypes = map[string]bool{
		"person":     true,
		"offender":   true,
		"suspect":    true,
		"arrestee":   true,
		"individual": true,
		"subject":    true,
	}
)

func (e Event) tagged(tags []string) bool {
	for _, field := range []string{e.Source, e.EventType} {
		if field == "" {
			continue
		}
		for _, tag := range tags {
			if strings.Contains(field, tag) {
				return true
			}
		}
	}
	return false
}

// IsVehicleRead reports whether e is a plate/vehicle sighting with a plate.
func (e Event) IsVehicleRead() bool {
	return e.Plate != "" && e.tagged(vehicleTags)
}

// IsGunfire reports whether e is an acoustic gunfire detection.
func (e Event) IsGunfire() bool {
	return e.tagged(gunfireTags)
}

// IsPerson reports whether e describes a person-type entity.
func (e Event) IsPerson() bool {
	return personTypes[e.EntityType]
}

// IsIncident reports whether e carries a crime category.
func (e Event) IsIncident() bool {
	return e.Category != ""
}

// IsCall reports whether e is a call for service with a caller. Records with
// a caller but no source or type at all are treated as calls.
func (e Event) IsCall() bool {
	if e.CallerID == "" {
		return false
	}
	if e.Source == "" && e.EventType == "" {
		return true
	}
	return e.tagged(callTags)
}
