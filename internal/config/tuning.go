package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds the detection and linkage thresholds. Every field is
// optional; the Get* accessors fall back to the reference values, so partial
// files are safe. The same schema is accepted as JSON or YAML.
type TuningConfig struct {
	// Vehicle behaviour
	VehicleSpeedThresholdKmh *float64 `json:"vehicle_speed_threshold_kmh,omitempty" yaml:"vehicle_speed_threshold_kmh,omitempty"`
	VehicleSpeedScaleKmh     *float64 `json:"vehicle_speed_scale_kmh,omitempty" yaml:"vehicle_speed_scale_kmh,omitempty"`
	VehicleConfidence        *float64 `json:"vehicle_confidence,omitempty" yaml:"vehicle_confidence,omitempty"`

	// Gunfire density
	GunfireCellSizeDeg     *float64 `json:"gunfire_cell_size_deg,omitempty" yaml:"gunfire_cell_size_deg,omitempty"`
	GunfireBaselineMean    *float64 `json:"gunfire_baseline_mean,omitempty" yaml:"gunfire_baseline_mean,omitempty"`
	GunfireBaselineStdDev  *float64 `json:"gunfire_baseline_stddev,omitempty" yaml:"gunfire_baseline_stddev,omitempty"`
	GunfireZThreshold      *float64 `json:"gunfire_z_threshold,omitempty" yaml:"gunfire_z_threshold,omitempty"`
	GunfireHighZ           *float64 `json:"gunfire_high_z,omitempty" yaml:"gunfire_high_z,omitempty"`
	GunfireConfidence      *float64 `json:"gunfire_confidence,omitempty" yaml:"gunfire_confidence,omitempty"`
	GunfireHighZConfidence *float64 `json:"gunfire_high_z_confidence,omitempty" yaml:"gunfire_high_z_confidence,omitempty"`

	// Offender clustering
	OffenderEpsilonMeters  *float64 `json:"offender_epsilon_meters,omitempty" yaml:"offender_epsilon_meters,omitempty"`
	OffenderMinPoints      *int     `json:"offender_min_points,omitempty" yaml:"offender_min_points,omitempty"`
	OffenderMinClusterSize *int     `json:"offender_min_cluster_size,omitempty" yaml:"offender_min_cluster_size,omitempty"`
	OffenderSizeScale      *float64 `json:"offender_size_scale,omitempty" yaml:"offender_size_scale,omitempty"`
	OffenderConfidence     *float64 `json:"offender_confidence,omitempty" yaml:"offender_confidence,omitempty"`
	UseGridIndex           *bool    `json:"use_grid_index,omitempty" yaml:"use_grid_index,omitempty"`

	// Timeline deviation
	DiurnalCurve       []float64 `json:"diurnal_curve,omitempty" yaml:"diurnal_curve,omitempty"` // 24 hourly means, UTC
	TimelineStdDev     *float64  `json:"timeline_stddev,omitempty" yaml:"timeline_stddev,omitempty"`
	TimelineZThreshold *float64  `json:"timeline_z_threshold,omitempty" yaml:"timeline_z_threshold,omitempty"`
	TimelineConfidence *float64  `json:"timeline_confidence,omitempty" yaml:"timeline_confidence,omitempty"`

	// Z-score severity: severity = min(1, |z| / ZSeverityScale)
	ZSeverityScale *float64 `json:"z_severity_scale,omitempty" yaml:"z_severity_scale,omitempty"`

	// Crime-signature shift
	ExpectedDistribution  map[string]float64 `json:"expected_distribution,omitempty" yaml:"expected_distribution,omitempty"`
	SignatureDefaultShare *float64           `json:"signature_default_share,omitempty" yaml:"signature_default_share,omitempty"`
	SignatureHighRatio    *float64           `json:"signature_high_ratio,omitempty" yaml:"signature_high_ratio,omitempty"`
	SignatureLowRatio     *float64           `json:"signature_low_ratio,omitempty" yaml:"signature_low_ratio,omitempty"`
	SignatureConfidence   *float64           `json:"signature_confidence,omitempty" yaml:"signature_confidence,omitempty"`

	// Repeat caller
	RepeatCallerMinCalls   *int     `json:"repeat_caller_min_calls,omitempty" yaml:"repeat_caller_min_calls,omitempty"`
	RepeatCallerRatePerHr  *float64 `json:"repeat_caller_rate_per_hr,omitempty" yaml:"repeat_caller_rate_per_hr,omitempty"`
	RepeatCallerRateScale  *float64 `json:"repeat_caller_rate_scale,omitempty" yaml:"repeat_caller_rate_scale,omitempty"`
	RepeatCallerConfidence *float64 `json:"repeat_caller_confidence,omitempty" yaml:"repeat_caller_confidence,omitempty"`

	// Baseline history
	HistoryRetention  *string `json:"history_retention,omitempty" yaml:"history_retention,omitempty"` // duration string like "720h"
	HistoryMaxPerType *int    `json:"history_max_per_type,omitempty" yaml:"history_max_per_type,omitempty"`

	// Linkage
	TemporalWindow        *string            `json:"temporal_window,omitempty" yaml:"temporal_window,omitempty"` // duration string like "72h"
	GeographicRadiusKm    *float64           `json:"geographic_radius_km,omitempty" yaml:"geographic_radius_km,omitempty"`
	MinLinkConfidence     *float64           `json:"min_link_confidence,omitempty" yaml:"min_link_confidence,omitempty"`
	CollaboratorTimeout   *string            `json:"collaborator_timeout,omitempty" yaml:"collaborator_timeout,omitempty"`
	SearchResultSize      *int               `json:"search_result_size,omitempty" yaml:"search_result_size,omitempty"`
	SearchScoreNormalizer *float64           `json:"search_score_normalizer,omitempty" yaml:"search_score_normalizer,omitempty"`
	LinkageWeights        map[string]float64 `json:"linkage_weights,omitempty" yaml:"linkage_weights,omitempty"`
	LinkMaxConcurrency    *int               `json:"link_max_concurrency,omitempty" yaml:"link_max_concurrency,omitempty"`
}

// DefaultDiurnalCurve is the expected event count per UTC hour of day used to
// seed the timeline baseline before real history exists.
var DefaultDiurnalCurve = []float64{
	8, 6, 5, 4, 3, 3, 4, 6, // 00-07
	8, 9, 10, 11, 12, 12, 12, 13, // 08-15
	14, 15, 15, 14, 13, 12, 11, 10, // 16-23
}

// DefaultExpectedDistribution is the expected share of each crime category.
// Categories not listed use the default share (5%).
var DefaultExpectedDistribution = map[string]float64{
	"theft":         0.25,
	"assault":       0.15,
	"burglary":      0.10,
	"vandalism":     0.10,
	"robbery":       0.08,
	"drug":          0.08,
	"fraud":         0.07,
	"vehicle_theft": 0.06,
}

// DefaultLinkageWeights is the base confidence per linkage type.
var DefaultLinkageWeights = map[string]float64{
	"ballistic_match":      0.95,
	"entity_overlap":       0.85,
	"vehicle_recurrence":   0.80,
	"mo_similarity":        0.75,
	"suspect_description":  0.70,
	"weapon_type":          0.65,
	"geographic":           0.60,
	"narrative_similarity": 0.55,
	"temporal":             0.50,
	"repeat_caller":        0.45,
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated with
// the reference values.
func DefaultTuningConfig() *TuningConfig {
	curve := make([]float64, len(DefaultDiurnalCurve))
	copy(curve, DefaultDiurnalCurve)
	dist := make(map[string]float64, len(DefaultExpectedDistribution))
	for k, v := range DefaultExpectedDistribution {
		dist[k] = v
	}
	weights := make(map[string]float64, len(DefaultLinkageWeights))
	for k, v := range DefaultLinkageWeights {
		weights[k] = v
	}

	return &TuningConfig{
		VehicleSpeedThresholdKmh: ptrFloat64(200),
		VehicleSpeedScaleKmh:     ptrFloat64(300),
		VehicleConfidence:        ptrFloat64(0.85),

		GunfireCellSizeDeg:     ptrFloat64(0.01),
		GunfireBaselineMean:    ptrFloat64(2.0),
		GunfireBaselineStdDev:  ptrFloat64(1.5),
		GunfireZThreshold:      ptrFloat64(2.5),
		GunfireHighZ:           ptrFloat64(3.5),
		GunfireConfidence:      ptrFloat64(0.75),
		GunfireHighZConfidence: ptrFloat64(0.9),

		OffenderEpsilonMeters:  ptrFloat64(500),
		OffenderMinPoints:      ptrInt(3),
		OffenderMinClusterSize: ptrInt(5),
		OffenderSizeScale:      ptrFloat64(10),
		OffenderConfidence:     ptrFloat64(0.7),
		UseGridIndex:           ptrBool(false),

		DiurnalCurve:       curve,
		TimelineStdDev:     ptrFloat64(4.0),
		TimelineZThreshold: ptrFloat64(2.5),
		TimelineConfidence: ptrFloat64(0.8),

		ZSeverityScale: ptrFloat64(5),

		ExpectedDistribution:  dist,
		SignatureDefaultShare: ptrFloat64(0.05),
		SignatureHighRatio:    ptrFloat64(2.0),
		SignatureLowRatio:     ptrFloat64(0.3),
		SignatureConfidence:   ptrFloat64(0.7),

		RepeatCallerMinCalls:   ptrInt(5),
		RepeatCallerRatePerHr:  ptrFloat64(2),
		RepeatCallerRateScale:  ptrFloat64(5),
		RepeatCallerConfidence: ptrFloat64(0.85),

		HistoryRetention:  ptrString("720h"),
		HistoryMaxPerType: ptrInt(50000),

		TemporalWindow:        ptrString("72h"),
		GeographicRadiusKm:    ptrFloat64(2.0),
		MinLinkConfidence:     ptrFloat64(0.3),
		CollaboratorTimeout:   ptrString("5s"),
		SearchResultSize:      ptrInt(20),
		SearchScoreNormalizer: ptrFloat64(10),
		LinkageWeights:        weights,
		LinkMaxConcurrency:    ptrInt(8),
	}
}

// LoadTuningConfig loads a TuningConfig from a .json, .yaml or .yml file.
// Fields omitted from the file retain their default values via the Get*
// accessors.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// defaultTuning backs the Get* accessors.
var defaultTuning = DefaultTuningConfig()

// Validate checks that every set field is within range.
func (c *TuningConfig) Validate() error {
	confidences := map[string]*float64{
		"vehicle_confidence":        c.VehicleConfidence,
		"gunfire_confidence":        c.GunfireConfidence,
		"gunfire_high_z_confidence": c.GunfireHighZConfidence,
		"offender_confidence":       c.OffenderConfidence,
		"timeline_confidence":       c.TimelineConfidence,
		"signature_confidence":      c.SignatureConfidence,
		"repeat_caller_confidence":  c.RepeatCallerConfidence,
		"min_link_confidence":       c.MinLinkConfidence,
		"signature_default_share":   c.SignatureDefaultShare,
	}
	for name, v := range confidences {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}

	positives := map[string]*float64{
		"vehicle_speed_threshold_kmh": c.VehicleSpeedThresholdKmh,
		"vehicle_speed_scale_kmh":     c.VehicleSpeedScaleKmh,
		"gunfire_cell_size_deg":       c.GunfireCellSizeDeg,
		"gunfire_z_threshold":         c.GunfireZThreshold,
		"gunfire_high_z":              c.GunfireHighZ,
		"offender_epsilon_meters":     c.OffenderEpsilonMeters,
		"offender_size_scale":         c.OffenderSizeScale,
		"timeline_stddev":             c.TimelineStdDev,
		"timeline_z_threshold":        c.TimelineZThreshold,
		"z_severity_scale":            c.ZSeverityScale,
		"signature_high_ratio":        c.SignatureHighRatio,
		"repeat_caller_rate_per_hr":   c.RepeatCallerRatePerHr,
		"repeat_caller_rate_scale":    c.RepeatCallerRateScale,
		"geographic_radius_km":        c.GeographicRadiusKm,
		"search_score_normalizer":     c.SearchScoreNormalizer,
	}
	for name, v := range positives {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}

	if c.GunfireBaselineStdDev != nil && *c.GunfireBaselineStdDev < 0 {
		return fmt.Errorf("gunfire_baseline_stddev must be non-negative, got %f", *c.GunfireBaselineStdDev)
	}
	if c.SignatureLowRatio != nil && *c.SignatureLowRatio < 0 {
		return fmt.Errorf("signature_low_ratio must be non-negative, got %f", *c.SignatureLowRatio)
	}

	counts := map[string]*int{
		"offender_min_points":       c.OffenderMinPoints,
		"offender_min_cluster_size": c.OffenderMinClusterSize,
		"repeat_caller_min_calls":   c.RepeatCallerMinCalls,
		"history_max_per_type":      c.HistoryMaxPerType,
		"search_result_size":        c.SearchResultSize,
		"link_max_concurrency":      c.LinkMaxConcurrency,
	}
	for name, v := range counts {
		if v != nil && *v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, *v)
		}
	}

	durations := map[string]*string{
		"history_retention":    c.HistoryRetention,
		"temporal_window":      c.TemporalWindow,
		"collaborator_timeout": c.CollaboratorTimeout,
	}
	for name, v := range durations {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *v)
		}
	}

	if len(c.DiurnalCurve) != 0 && len(c.DiurnalCurve) != 24 {
		return fmt.Errorf("diurnal_curve must have 24 entries, got %d", len(c.DiurnalCurve))
	}
	for i, v := range c.DiurnalCurve {
		if v < 0 {
			return fmt.Errorf("diurnal_curve[%d] must be non-negative, got %f", i, v)
		}
	}
	for k, v := range c.ExpectedDistribution {
		if v <= 0 || v > 1 {
			return fmt.Errorf("expected_distribution[%s] must be in (0, 1], got %f", k, v)
		}
	}
	for k, v := range c.LinkageWeights {
		if _, ok := DefaultLinkageWeights[k]; !ok {
			return fmt.Errorf("unknown linkage type %q in linkage_weights", k)
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("linkage_weights[%s] must be between 0 and 1, got %f", k, v)
		}
	}

	return nil
}

func floatOr(p *float64, def *float64) float64 {
	if p == nil {
		return *def
	}
	return *p
}

func intOr(p *int, def *int) int {
	if p == nil {
		return *def
	}
	return *p
}

func durationOr(p *string, def *string) time.Duration {
	fallback, _ := time.ParseDuration(*def)
	if p == nil || *p == "" {
		return fallback
	}
	d, err := time.ParseDuration(*p)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetVehicleSpeedThresholdKmh returns the implied speed above which a plate
// re-sighting is flagged.
func (c *TuningConfig) GetVehicleSpeedThresholdKmh() float64 {
	return floatOr(c.VehicleSpeedThresholdKmh, defaultTuning.VehicleSpeedThresholdKmh)
}

// GetVehicleSpeedScaleKmh returns the speed at which vehicle severity reaches 1.
func (c *TuningConfig) GetVehicleSpeedScaleKmh() float64 {
	return floatOr(c.VehicleSpeedScaleKmh, defaultTuning.VehicleSpeedScaleKmh)
}

func (c *TuningConfig) GetVehicleConfidence() float64 {
	return floatOr(c.VehicleConfidence, defaultTuning.VehicleConfidence)
}

// GetGunfireCellSizeDeg returns the grid cell edge, in degrees, used to bucket
// acoustic detections.
func (c *TuningConfig) GetGunfireCellSizeDeg() float64 {
	return floatOr(c.GunfireCellSizeDeg, defaultTuning.GunfireCellSizeDeg)
}

func (c *TuningConfig) GetGunfireBaselineMean() float64 {
	return floatOr(c.GunfireBaselineMean, defaultTuning.GunfireBaselineMean)
}

func (c *TuningConfig) GetGunfireBaselineStdDev() float64 {
	return floatOr(c.GunfireBaselineStdDev, defaultTuning.GunfireBaselineStdDev)
}

func (c *TuningConfig) GetGunfireZThreshold() float64 {
	return floatOr(c.GunfireZThreshold, defaultTuning.GunfireZThreshold)
}

// GetGunfireHighZ returns the Z-score above which gunfire anomalies use the
// high confidence value.
func (c *TuningConfig) GetGunfireHighZ() float64 {
	return floatOr(c.GunfireHighZ, defaultTuning.GunfireHighZ)
}

func (c *TuningConfig) GetGunfireConfidence() float64 {
	return floatOr(c.GunfireConfidence, defaultTuning.GunfireConfidence)
}

func (c *TuningConfig) GetGunfireHighZConfidence() float64 {
	return floatOr(c.GunfireHighZConfidence, defaultTuning.GunfireHighZConfidence)
}

func (c *TuningConfig) GetOffenderEpsilonMeters() float64 {
	return floatOr(c.OffenderEpsilonMeters, defaultTuning.OffenderEpsilonMeters)
}

func (c *TuningConfig) GetOffenderMinPoints() int {
	return intOr(c.OffenderMinPoints, defaultTuning.OffenderMinPoints)
}

// GetOffenderMinClusterSize returns the member count a cluster needs before it
// is reported.
func (c *TuningConfig) GetOffenderMinClusterSize() int {
	return intOr(c.OffenderMinClusterSize, defaultTuning.OffenderMinClusterSize)
}

func (c *TuningConfig) GetOffenderSizeScale() float64 {
	return floatOr(c.OffenderSizeScale, defaultTuning.OffenderSizeScale)
}

func (c *TuningConfig) GetOffenderConfidence() float64 {
	return floatOr(c.OffenderConfidence, defaultTuning.OffenderConfidence)
}

// GetUseGridIndex reports whether DBSCAN should use the grid neighbour index.
func (c *TuningConfig) GetUseGridIndex() bool {
	if c.UseGridIndex == nil {
		return *defaultTuning.UseGridIndex
	}
	return *c.UseGridIndex
}

// GetDiurnalCurve returns a copy of the 24-entry hourly prior.
func (c *TuningConfig) GetDiurnalCurve() []float64 {
	src := c.DiurnalCurve
	if len(src) != 24 {
		src = DefaultDiurnalCurve
	}
	out := make([]float64, len(src))
	copy(out, src)
	return out
}

func (c *TuningConfig) GetTimelineStdDev() float64 {
	return floatOr(c.TimelineStdDev, defaultTuning.TimelineStdDev)
}

func (c *TuningConfig) GetTimelineZThreshold() float64 {
	return floatOr(c.TimelineZThreshold, defaultTuning.TimelineZThreshold)
}

func (c *TuningConfig) GetTimelineConfidence() float64 {
	return floatOr(c.TimelineConfidence, defaultTuning.TimelineConfidence)
}

func (c *TuningConfig) GetZSeverityScale() float64 {
	return floatOr(c.ZSeverityScale, defaultTuning.ZSeverityScale)
}

// GetExpectedShare returns the expected share of a crime category. Categories
// absent from the configured distribution get the default share.
func (c *TuningConfig) GetExpectedShare(category string) float64 {
	dist := c.ExpectedDistribution
	if dist == nil {
		dist = DefaultExpectedDistribution
	}
	if v, ok := dist[category]; ok {
		return v
	}
	return c.GetSignatureDefaultShare()
}

func (c *TuningConfig) GetSignatureDefaultShare() float64 {
	return floatOr(c.SignatureDefaultShare, defaultTuning.SignatureDefaultShare)
}

func (c *TuningConfig) GetSignatureHighRatio() float64 {
	return floatOr(c.SignatureHighRatio, defaultTuning.SignatureHighRatio)
}

func (c *TuningConfig) GetSignatureLowRatio() float64 {
	return floatOr(c.SignatureLowRatio, defaultTuning.SignatureLowRatio)
}

func (c *TuningConfig) GetSignatureConfidence() float64 {
	return floatOr(c.SignatureConfidence, defaultTuning.SignatureConfidence)
}

func (c *TuningConfig) GetRepeatCallerMinCalls() int {
	return intOr(c.RepeatCallerMinCalls, defaultTuning.RepeatCallerMinCalls)
}

func (c *TuningConfig) GetRepeatCallerRatePerHr() float64 {
	return floatOr(c.RepeatCallerRatePerHr, defaultTuning.RepeatCallerRatePerHr)
}

func (c *TuningConfig) GetRepeatCallerRateScale() float64 {
	return floatOr(c.RepeatCallerRateScale, defaultTuning.RepeatCallerRateScale)
}

func (c *TuningConfig) GetRepeatCallerConfidence() float64 {
	return floatOr(c.RepeatCallerConfidence, defaultTuning.RepeatCallerConfidence)
}

// GetHistoryRetention parses and returns the HistoryRetention as a time.Duration.
func (c *TuningConfig) GetHistoryRetention() time.Duration {
	return durationOr(c.HistoryRetention, defaultTuning.HistoryRetention)
}

func (c *TuningConfig) GetHistoryMaxPerType() int {
	return intOr(c.HistoryMaxPerType, defaultTuning.HistoryMaxPerType)
}

// GetTemporalWindow parses and returns the TemporalWindow as a time.Duration.
func (c *TuningConfig) GetTemporalWindow() time.Duration {
	return durationOr(c.TemporalWindow, defaultTuning.TemporalWindow)
}

func (c *TuningConfig) GetGeographicRadiusKm() float64 {
	return floatOr(c.GeographicRadiusKm, defaultTuning.GeographicRadiusKm)
}

func (c *TuningConfig) GetMinLinkConfidence() float64 {
	return floatOr(c.MinLinkConfidence, defaultTuning.MinLinkConfidence)
}

// GetCollaboratorTimeout parses and returns the per-call graph/search timeout.
func (c *TuningConfig) GetCollaboratorTimeout() time.Duration {
	return durationOr(c.CollaboratorTimeout, defaultTuning.CollaboratorTimeout)
}

func (c *TuningConfig) GetSearchResultSize() int {
	return intOr(c.SearchResultSize, defaultTuning.SearchResultSize)
}

func (c *TuningConfig) GetSearchScoreNormalizer() float64 {
	return floatOr(c.SearchScoreNormalizer, defaultTuning.SearchScoreNormalizer)
}

// GetLinkageWeight returns the base confidence for a linkage type, or 0 for
// an unknown type.
func (c *TuningConfig) GetLinkageWeight(linkType string) float64 {
	if v, ok := c.LinkageWeights[linkType]; ok {
		return v
	}
	return DefaultLinkageWeights[linkType]
}

func (c *TuningConfig) GetLinkMaxConcurrency() int {
	return intOr(c.LinkMaxConcurrency, defaultTuning.LinkMaxConcurrency)
}
