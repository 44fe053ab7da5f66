package linkage

import "time"

// LinkageType names the kind of evidence behind an edge.
type LinkageType string

const (
	TypeBallisticMatch      LinkageType = "ballistic_match"
	TypeEntityOverlap       LinkageType = "entity_overlap"
	TypeVehicleRecurrence   LinkageType = "vehicle_recurrence"
	TypeMOSimilarity        LinkageType = "mo_similarity"
	TypeSuspectDescription  LinkageType = "suspect_description"
	TypeWeaponType          LinkageType = "weapon_type"
	TypeGeographic          LinkageType = "geographic"
	TypeNarrativeSimilarity LinkageType = "narrative_similarity"
	TypeTemporal            LinkageType = "temporal"
	TypeRepeatCaller        LinkageType = "repeat_caller"
)

// LinkageTypes lists every type, strongest base weight first.
var LinkageTypes = []LinkageType{
	TypeBallisticMatch,
	TypeEntityOverlap,
	TypeVehicleRecurrence,
	TypeMOSimilarity,
	TypeSuspectDescription,
	TypeWeaponType,
	TypeGeographic,
	TypeNarrativeSimilarity,
	TypeTemporal,
	TypeRepeatCaller,
}

// Incident is the linker's view of one incident. Placeholder is set when no
// collaborator could resolve the id.
type Incident struct {
	ID                 string    `json:"id"`
	Type               string    `json:"incident_type,omitempty"`
	OccurredAt         time.Time `json:"occurred_at,omitempty"`
	Location           *Location `json:"location,omitempty"`
	Narrative          string    `json:"narrative,omitempty"`
	MOAttributes       []string  `json:"mo_attributes,omitempty"`
	SuspectDescription string    `json:"suspect_description,omitempty"`
	Placeholder        bool      `json:"placeholder"`
	ResolvedBy         string    `json:"resolved_by"`
}

// Location is a WGS84 position.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LinkageEdge asserts that two incidents are related by one kind of evidence.
// Edges are directed as produced but semantically symmetric.
type LinkageEdge struct {
	SourceID    string         `json:"source_id"`
	TargetID    string         `json:"target_id"`
	Type        LinkageType    `json:"type"`
	Confidence  float64        `json:"confidence"`
	Explanation string         `json:"explanation"`
	Metadata    map[string]any `json:"metadata"`
}

type edgeKey struct {
	source, target string
	linkType       LinkageType
}

func (e LinkageEdge) key() edgeKey {
	return edgeKey{source: e.SourceID, target: e.TargetID, linkType: e.Type}
}

// LinkageResult is the closure produced by one Link call.
type LinkageResult struct {
	LinkedIncidents []Incident         `json:"linked_incidents"`
	Linkages        []LinkageEdge      `json:"linkages"`
	Confidence      map[string]float64 `json:"confidence"`
	Explanations    []string           `json:"explanations"`
}
