package anomaly

import (
	"time"

	"github.com/banshee-data/incident.report/internal/baseline"
)

// Category enumerates the detection strategies.
type Category string

const (
	CategoryVehicleBehavior     Category = "vehicle_behavior"
	CategoryGunfireDensity      Category = "gunfire_density"
	CategoryOffenderClustering  Category = "offender_clustering"
	CategoryTimelineDeviation   Category = "timeline_deviation"
	CategoryCrimeSignatureShift Category = "crime_signature_shift"
	CategoryRepeatCaller        Category = "repeat_caller"
)

// Categories lists every category in the order Detect emits them.
var Categories = []Category{
	CategoryVehicleBehavior,
	CategoryGunfireDensity,
	CategoryOffenderClustering,
	CategoryTimelineDeviation,
	CategoryCrimeSignatureShift,
	CategoryRepeatCaller,
}

// Location is a WGS84 position.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// AnomalyRecord is one detected anomaly. Records are immutable; re-run
// detection for fresh results.
type AnomalyRecord struct {
	ID              string                   `json:"id"`
	Category        Category                 `json:"category"`
	Severity        float64                  `json:"severity"`
	Description     string                   `json:"description"`
	Location        *Location                `json:"location,omitempty"`
	RelatedEntities []string                 `json:"related_entities"`
	Metrics         map[string]any           `json:"metrics"`
	Baseline        *baseline.BaselineMetric `json:"baseline,omitempty"`
	Deviation       float64                  `json:"deviation"`
	Confidence      float64                  `json:"confidence"`
	DetectedAt      time.Time                `json:"detected_at"`
}

func severity(value, scale float64) float64 {
	if scale <= 0 {
		return 1
	}
	s := value / scale
	if s < 0 {
		s = -s
	}
	if s > 1 {
		return 1
	}
	return s
}
