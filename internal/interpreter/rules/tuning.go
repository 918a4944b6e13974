package rules

import "fmt"

// ============================================================
// Tuning
// ============================================================

// Tuning holds every threshold the pipeline uses. Lengths are in drawing
// units (millimetres on the sheets we receive), angles in degrees.
type Tuning struct {
	// View classification
	KeywordConfidence    float64 `koanf:"keyword_confidence" json:"keyword_confidence"`
	FallbackConfidence   float64 `koanf:"fallback_confidence" json:"fallback_confidence"`
	ElevationAspectRatio float64 `koanf:"elevation_aspect_ratio" json:"elevation_aspect_ratio"`
	SectionAspectRatio   float64 `koanf:"section_aspect_ratio" json:"section_aspect_ratio"`
	LongLineFraction     float64 `koanf:"long_line_fraction" json:"long_line_fraction"`
	MinDatumLines        int     `koanf:"min_datum_lines" json:"min_datum_lines"`
	StairTreadMinCount   int     `koanf:"stair_tread_min_count" json:"stair_tread_min_count"`

	// Levels
	HorizontalTolerance        float64 `koanf:"horizontal_tolerance" json:"horizontal_tolerance"`
	LevelAnnotationDistance    float64 `koanf:"level_annotation_distance" json:"level_annotation_distance"`
	DefaultFirstFloorElevation float64 `koanf:"default_first_floor_elevation" json:"default_first_floor_elevation"`

	// Pattern matching
	ParallelAngleTolerance float64 `koanf:"parallel_angle_tolerance" json:"parallel_angle_tolerance"`
	WallThicknessMin       float64 `koanf:"wall_thickness_min" json:"wall_thickness_min"`
	WallThicknessMax       float64 `koanf:"wall_thickness_max" json:"wall_thickness_max"`
	SingleLineMinLength    float64 `koanf:"single_line_min_length" json:"single_line_min_length"`
	SingleLineMaxLength    float64 `koanf:"single_line_max_length" json:"single_line_max_length"`
	SingleLinePenalty      float64 `koanf:"single_line_penalty" json:"single_line_penalty"`
	DefaultWallThickness   float64 `koanf:"default_wall_thickness" json:"default_wall_thickness"`
	DoorEndpointTolerance  float64 `koanf:"door_endpoint_tolerance" json:"door_endpoint_tolerance"`
	DimensionBoxTolerance  float64 `koanf:"dimension_box_tolerance" json:"dimension_box_tolerance"`
	EnforceRoomTags        bool    `koanf:"enforce_room_tags" json:"enforce_room_tags"`

	// Correlation
	AlignmentTolerance        float64 `koanf:"alignment_tolerance" json:"alignment_tolerance"`
	ElevationAlignment        bool    `koanf:"elevation_alignment" json:"elevation_alignment"`
	DefaultHeight             float64 `koanf:"default_height" json:"default_height"`
	DefaultSillHeight         float64 `koanf:"default_sill_height" json:"default_sill_height"`
	DefaultHeadHeight         float64 `koanf:"default_head_height" json:"default_head_height"`
	CorrelationBaseConfidence float64 `koanf:"correlation_base_confidence" json:"correlation_base_confidence"`
	SameTypeBonus             float64 `koanf:"same_type_bonus" json:"same_type_bonus"`
	WidthMatchBonus           float64 `koanf:"width_match_bonus" json:"width_match_bonus"`
	WidthMatchTolerance       float64 `koanf:"width_match_tolerance" json:"width_match_tolerance"`

	// Merging
	SectionWeight     float64 `koanf:"section_weight" json:"section_weight"`
	ElevationWeight   float64 `koanf:"elevation_weight" json:"elevation_weight"`
	MultiSourceBonus  float64 `koanf:"multi_source_bonus" json:"multi_source_bonus"`
	StandalonePenalty float64 `koanf:"standalone_penalty" json:"standalone_penalty"`

	// Validation
	UncorrelatedWarningRatio float64 `koanf:"uncorrelated_warning_ratio" json:"uncorrelated_warning_ratio"`
}

// DefaultTuning returns the production thresholds.
func DefaultTuning() Tuning {
	return Tuning{
		KeywordConfidence:    0.95,
		FallbackConfidence:   0.70,
		ElevationAspectRatio: 1.5,
		SectionAspectRatio:   2.0,
		LongLineFraction:     0.6,
		MinDatumLines:        2,
		StairTreadMinCount:   4,

		HorizontalTolerance:        1.0,
		LevelAnnotationDistance:    500,
		DefaultFirstFloorElevation: 3000,

		ParallelAngleTolerance: 1.0,
		WallThicknessMin:       100,
		WallThicknessMax:       600,
		SingleLineMinLength:    500,
		SingleLineMaxLength:    50000,
		SingleLinePenalty:      0.8,
		DefaultWallThickness:   200,
		DoorEndpointTolerance:  50,
		DimensionBoxTolerance:  1000,

		AlignmentTolerance:        500,
		DefaultHeight:             2700,
		DefaultSillHeight:         900,
		DefaultHeadHeight:         2100,
		CorrelationBaseConfidence: 0.5,
		SameTypeBonus:             0.3,
		WidthMatchBonus:           0.2,
		WidthMatchTolerance:       50,

		SectionWeight:     0.3,
		ElevationWeight:   0.2,
		MultiSourceBonus:  1.1,
		StandalonePenalty: 0.7,

		UncorrelatedWarningRatio: 0.30,
	}
}

// Validate rejects values that would make the pipeline meaningless.
func (t Tuning) Validate() error {
	confidences := map[string]float64{
		"keyword_confidence":          t.KeywordConfidence,
		"fallback_confidence":         t.FallbackConfidence,
		"correlation_base_confidence": t.CorrelationBaseConfidence,
		"standalone_penalty":          t.StandalonePenalty,
		"single_line_penalty":         t.SingleLinePenalty,
		"uncorrelated_warning_ratio":  t.UncorrelatedWarningRatio,
	}
	for name, v := range confidences {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
	}

	if t.ParallelAngleTolerance < 0 || t.ParallelAngleTolerance >= 90 {
		return fmt.Errorf("parallel_angle_tolerance must be within [0,90), got %v", t.ParallelAngleTolerance)
	}
	if t.WallThicknessMin <= 0 || t.WallThicknessMax < t.WallThicknessMin {
		return fmt.Errorf("invalid wall thickness range [%v,%v]", t.WallThicknessMin, t.WallThicknessMax)
	}
	if t.SingleLineMinLength <= 0 || t.SingleLineMaxLength < t.SingleLineMinLength {
		return fmt.Errorf("invalid single line length range [%v,%v]", t.SingleLineMinLength, t.SingleLineMaxLength)
	}
	if t.DefaultHeight <= 0 {
		return fmt.Errorf("default_height must be positive, got %v", t.DefaultHeight)
	}
	if t.MultiSourceBonus < 1 {
		return fmt.Errorf("multi_source_bonus must be >= 1, got %v", t.MultiSourceBonus)
	}
	return nil
}
