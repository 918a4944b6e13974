package models

import "time"

// ============================================================
// Input
// ============================================================

// Annotation is a text note or a dimension. Value is set only for dimensions.
type Annotation struct {
	Position Point    `json:"position"`
	Rotation float64  `json:"rotation,omitempty"`
	Text     string   `json:"text,omitempty"`
	Value    *float64 `json:"value,omitempty"`
	Unit     string   `json:"unit,omitempty"`
}

func (a Annotation) IsDimension() bool {
	return a.Value != nil
}

type DrawingViewInput struct {
	ViewName    string       `json:"view_name"`
	Geometry    Primitives   `json:"geometry"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

type DrawingSheetInput struct {
	SheetName string             `json:"sheet_name"`
	Views     []DrawingViewInput `json:"views"`
}

// ============================================================
// Views
// ============================================================

type ViewType string

const (
	ViewFloorPlan            ViewType = "FloorPlan"
	ViewSection              ViewType = "Section"
	ViewElevation            ViewType = "Elevation"
	ViewRoofPlan             ViewType = "RoofPlan"
	ViewReflectedCeilingPlan ViewType = "ReflectedCeilingPlan"
	ViewFoundationPlan       ViewType = "FoundationPlan"
	ViewDetail               ViewType = "DetailView"
	ViewUnknown              ViewType = "Unknown"
)

// IsPlan reports whether the view is drawn looking down on the building.
func (v ViewType) IsPlan() bool {
	switch v {
	case ViewFloorPlan, ViewRoofPlan, ViewReflectedCeilingPlan, ViewFoundationPlan:
		return true
	}
	return false
}

type ClassifiedView struct {
	DrawingViewInput
	ViewType    ViewType `json:"view_type"`
	Confidence  float64  `json:"confidence"`
	NameMatched bool     `json:"name_matched"` // type came from a name keyword
}

// ViewSummary is the classification of one view without its geometry.
type ViewSummary struct {
	ViewName    string   `json:"view_name"`
	ViewType    ViewType `json:"view_type"`
	Confidence  float64  `json:"confidence"`
	NameMatched bool     `json:"name_matched"`
}

func (v ClassifiedView) Summary() ViewSummary {
	return ViewSummary{
		ViewName:    v.ViewName,
		ViewType:    v.ViewType,
		Confidence:  v.Confidence,
		NameMatched: v.NameMatched,
	}
}

// ============================================================
// Elements
// ============================================================

type ElementType string

const (
	ElementWall   ElementType = "Wall"
	ElementDoor   ElementType = "Door"
	ElementWindow ElementType = "Window"
	ElementColumn ElementType = "Column"
	ElementStair  ElementType = "Stair"
	ElementRoom   ElementType = "Room"
)

// Property keys shared by matchers, correlator and merger.
const (
	PropThickness      = "Thickness"
	PropLength         = "Length"
	PropWidth          = "Width"
	PropDepth          = "Depth"
	PropDiameter       = "Diameter"
	PropHeight         = "Height"
	PropBaseOffset     = "BaseOffset"
	PropSillHeight     = "SillHeight"
	PropHeadHeight     = "HeadHeight"
	PropSwingDirection = "SwingDirection"
	PropSweepAngle     = "SweepAngle"
	PropArea           = "Area"
	PropPerimeter      = "Perimeter"
	PropTreadCount     = "TreadCount"
	PropTreadDepth     = "TreadDepth"
	PropRun            = "Run"
)

type ExtractedDimension struct {
	Value    float64 `json:"value"`
	Unit     string  `json:"unit,omitempty"`
	Text     string  `json:"text,omitempty"`
	Position Point   `json:"position"`
}

// RecognizedElement is one pattern match in one view. It is not modified
// after the matcher returns it.
type RecognizedElement struct {
	ID            string               `json:"id"`
	Type          ElementType          `json:"type"`
	ViewType      ViewType             `json:"view_type"`
	ViewName      string               `json:"view_name"`
	Layer         string               `json:"layer"`
	PatternID     string               `json:"pattern_id"`
	Confidence    float64              `json:"confidence"`
	Bounds        Box                  `json:"bounds"`
	Geometry      Primitives           `json:"geometry"`
	SourceIndices []int                `json:"source_indices"` // into the view's Geometry
	Properties    map[string]float64   `json:"properties"`
	Label         string               `json:"label,omitempty"`
	Dimensions    []ExtractedDimension `json:"dimensions,omitempty"`
}

// Property returns the named property and whether it was set.
func (e RecognizedElement) Property(key string) (float64, bool) {
	v, ok := e.Properties[key]
	return v, ok
}

type LevelDefinition struct {
	Name      string  `json:"name"`
	Elevation float64 `json:"elevation"`
	Index     int     `json:"index"`
}

type CorrelationKind string

const (
	PlanToSection   CorrelationKind = "PlanToSection"
	PlanToElevation CorrelationKind = "PlanToElevation"
)

type ViewCorrelation struct {
	ID             string          `json:"id"`
	Kind           CorrelationKind `json:"kind"`
	PlanElementID  string          `json:"plan_element_id"`
	OtherElementID string          `json:"other_element_id"`
	ElementType    ElementType     `json:"element_type"`
	Confidence     float64         `json:"confidence"`
	Height         *float64        `json:"height,omitempty"`
	BaseOffset     *float64        `json:"base_offset,omitempty"`
	SillHeight     *float64        `json:"sill_height,omitempty"`
	HeadHeight     *float64        `json:"head_height,omitempty"`
}

type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type BoundingVolume struct {
	Min Point3 `json:"min"`
	Max Point3 `json:"max"`
}

func (v BoundingVolume) Height() float64 {
	return v.Max.Z - v.Min.Z
}

// MergedElement is the pipeline's deliverable: one building element seen
// from up to one plan, one section and one elevation view.
type MergedElement struct {
	ID                 string             `json:"id"`
	Type               ElementType        `json:"type"`
	PlanElementID      string             `json:"plan_element_id,omitempty"`
	SectionElementID   string             `json:"section_element_id,omitempty"`
	ElevationElementID string             `json:"elevation_element_id,omitempty"`
	Level              *LevelDefinition   `json:"level,omitempty"`
	Volume             BoundingVolume     `json:"volume"`
	Height             float64            `json:"height"`
	Properties         map[string]float64 `json:"properties"`
	Label              string             `json:"label,omitempty"`
	Confidence         float64            `json:"confidence"`
	Standalone         bool               `json:"standalone,omitempty"`
}

// Sources counts the views that contributed.
func (m MergedElement) Sources() int {
	n := 0
	for _, id := range []string{m.PlanElementID, m.SectionElementID, m.ElevationElementID} {
		if id != "" {
			n++
		}
	}
	return n
}

// ============================================================
// Output
// ============================================================

type DrawingInterpretationResult struct {
	SessionID          string              `json:"session_id"`
	SheetName          string              `json:"sheet_name"`
	Success            bool                `json:"success"`
	Cancelled          bool                `json:"cancelled,omitempty"`
	ErrorMessage       string              `json:"error_message,omitempty"`
	Views              []ViewSummary       `json:"views,omitempty"`
	RecognizedElements []RecognizedElement `json:"recognized_elements"`
	ViewCorrelations   []ViewCorrelation   `json:"view_correlations"`
	LevelDefinitions   []LevelDefinition   `json:"level_definitions"`
	MergedElements     []MergedElement     `json:"merged_elements"`
	ElementCount       int                 `json:"element_count"`
	Warnings           []string            `json:"warnings"`
}

type InterpretationSession struct {
	ID           string    `json:"id"`
	SheetName    string    `json:"sheet_name"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	ElementCount int       `json:"element_count"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
}

func (s InterpretationSession) Duration() time.Duration {
	return s.EndedAt.Sub(s.StartedAt)
}
