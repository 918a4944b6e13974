package rules

import "drawing-interpreter/internal/interpreter/models"

// Pattern ids.
const (
	PatternWallParallel   = "WALL_PARALLEL_LINES"
	PatternWallSingle     = "WALL_SINGLE_LINE"
	PatternWallRectangle  = "WALL_RECTANGLE"
	PatternDoorArc        = "DOOR_ARC_LINE"
	PatternDoorRect       = "DOOR_RECTANGLE"
	PatternWindowParallel = "WINDOW_PARALLEL_LINES"
	PatternWindowRect     = "WINDOW_RECTANGLE"
	PatternColumnRect     = "COLUMN_FILLED_RECT"
	PatternColumnCircle   = "COLUMN_FILLED_CIRCLE"
	PatternStairTreads    = "STAIR_TREADS"
	PatternRoomPolyline   = "ROOM_CLOSED_POLYLINE"
)

const wallBaseConfidence = 0.95

// DefaultPatterns builds the pattern table with thresholds taken from t.
func DefaultPatterns(t Tuning) []ElementPattern {
	wallThickness := Range{Min: t.WallThicknessMin, Max: t.WallThicknessMax}

	return []ElementPattern{
		{
			ID:             PatternWallParallel,
			Target:         models.ElementWall,
			Shape:          ShapeParallelLines,
			BaseConfidence: wallBaseConfidence,
			AngleTolerance: t.ParallelAngleTolerance,
			Spacing:        wallThickness,
		},
		{
			ID:               PatternWallSingle,
			Target:           models.ElementWall,
			Shape:            ShapeSingleLine,
			BaseConfidence:   wallBaseConfidence * t.SingleLinePenalty,
			Length:           Range{Min: t.SingleLineMinLength, Max: t.SingleLineMaxLength},
			Spacing:          wallThickness,
			DefaultThickness: t.DefaultWallThickness,
		},
		{
			ID:             PatternWallRectangle,
			Target:         models.ElementWall,
			Shape:          ShapeRectangle,
			BaseConfidence: 0.85,
			Size:           wallThickness,
			Length:         Range{Min: 1000},
		},
		{
			ID:                PatternDoorArc,
			Target:            models.ElementDoor,
			Shape:             ShapeArcLine,
			BaseConfidence:    0.92,
			EndpointTolerance: t.DoorEndpointTolerance,
			Length:            Range{Min: 600, Max: 1200},
		},
		{
			ID:             PatternDoorRect,
			Target:         models.ElementDoor,
			Shape:          ShapeOpeningRectangle,
			BaseConfidence: 0.78,
			Length:         Range{Min: 600, Max: 2000},
			Height:         Range{Min: 1800, Max: 3000},
		},
		{
			ID:             PatternWindowParallel,
			Target:         models.ElementWindow,
			Shape:          ShapeParallelLines,
			BaseConfidence: 0.85,
			AngleTolerance: t.ParallelAngleTolerance,
			Spacing:        Range{Min: 50, Max: 400},
			Length:         Range{Min: 400, Max: 3000},
		},
		{
			ID:             PatternWindowRect,
			Target:         models.ElementWindow,
			Shape:          ShapeOpeningRectangle,
			BaseConfidence: 0.80,
			Length:         Range{Min: 400, Max: 3000},
			Height:         Range{Min: 300, Max: 3000},
		},
		{
			ID:             PatternColumnRect,
			Target:         models.ElementColumn,
			Shape:          ShapeFilledRectangle,
			BaseConfidence: 0.90,
			Size:           Range{Min: 200, Max: 1000},
		},
		{
			ID:             PatternColumnCircle,
			Target:         models.ElementColumn,
			Shape:          ShapeFilledCircle,
			BaseConfidence: 0.88,
			Size:           Range{Min: 200, Max: 1000},
		},
		{
			ID:             PatternStairTreads,
			Target:         models.ElementStair,
			Shape:          ShapeParallelSet,
			BaseConfidence: 0.80,
			AngleTolerance: t.ParallelAngleTolerance,
			Spacing:        Range{Min: 200, Max: 350},
			Length:         Range{Min: 600, Max: 3000},
			MinCount:       3,
		},
		{
			ID:              PatternRoomPolyline,
			Target:          models.ElementRoom,
			Shape:           ShapeClosedPolyline,
			BaseConfidence:  0.85,
			RequiresRoomTag: true,
		},
	}
}

// DefaultLayerMappings covers the AIA layer names plus loose keywords for
// drawings that do not follow the standard.
func DefaultLayerMappings() []LayerMapping {
	wall := []models.ElementType{models.ElementWall}
	door := []models.ElementType{models.ElementDoor}
	window := []models.ElementType{models.ElementWindow}
	column := []models.ElementType{models.ElementColumn}
	stair := []models.ElementType{models.ElementStair}
	room := []models.ElementType{models.ElementRoom}

	return []LayerMapping{
		{Layer: "A-WALL", Elements: wall, Category: "Architectural", Priority: 100},
		{Layer: "S-WALL", Elements: wall, Category: "Structural", Priority: 100},
		{Layer: "A-DOOR", Elements: door, Category: "Architectural", Priority: 100},
		{Layer: "A-GLAZ", Elements: window, Category: "Architectural", Priority: 100},
		{Layer: "A-WIND", Elements: window, Category: "Architectural", Priority: 100},
		{Layer: "A-COLS", Elements: column, Category: "Architectural", Priority: 100},
		{Layer: "S-COLS", Elements: column, Category: "Structural", Priority: 100},
		{Layer: "A-STRS", Elements: stair, Category: "Architectural", Priority: 100},
		{Layer: "A-FLOR-STRS", Elements: stair, Category: "Architectural", Priority: 100},
		{Layer: "A-AREA", Elements: room, Category: "Spaces", Priority: 100},
		{Layer: "A-ROOM", Elements: room, Category: "Spaces", Priority: 100},
		{Layer: "A-OPNG", Elements: []models.ElementType{models.ElementDoor, models.ElementWindow}, Category: "Architectural", Priority: 90},

		{Layer: "WALL", Elements: wall, Category: "Architectural", Priority: 10},
		{Layer: "DOOR", Elements: door, Category: "Architectural", Priority: 10},
		{Layer: "WINDOW", Elements: window, Category: "Architectural", Priority: 10},
		{Layer: "GLAZ", Elements: window, Category: "Architectural", Priority: 10},
		{Layer: "COL", Elements: column, Category: "Structural", Priority: 10},
		{Layer: "STAIR", Elements: stair, Category: "Architectural", Priority: 10},
		{Layer: "STRS", Elements: stair, Category: "Architectural", Priority: 10},
		{Layer: "ROOM", Elements: room, Category: "Spaces", Priority: 10},
		{Layer: "AREA", Elements: room, Category: "Spaces", Priority: 10},
	}
}

func DefaultViewRules(t Tuning) []ViewRule {
	return []ViewRule{
		{
			ViewType: models.ViewFloorPlan,
			Extract: []models.ElementType{
				models.ElementWall, models.ElementColumn, models.ElementDoor,
				models.ElementWindow, models.ElementStair, models.ElementRoom,
			},
			DefaultHeight: t.DefaultHeight,
		},
		{
			ViewType: models.ViewSection,
			Extract: []models.ElementType{
				models.ElementWall, models.ElementColumn, models.ElementStair,
			},
			Supplies:      []Attribute{AttrHeight, AttrBaseOffset},
			DefaultHeight: t.DefaultHeight,
		},
		{
			ViewType: models.ViewElevation,
			Extract: []models.ElementType{
				models.ElementWindow, models.ElementDoor, models.ElementWall,
			},
			Supplies: []Attribute{AttrSillHeight, AttrHeadHeight},
		},
		{
			ViewType: models.ViewRoofPlan,
			Extract:  []models.ElementType{models.ElementWall, models.ElementColumn, models.ElementRoom},
		},
		{
			ViewType: models.ViewReflectedCeilingPlan,
			Extract:  []models.ElementType{models.ElementRoom, models.ElementColumn},
		},
		{
			ViewType: models.ViewFoundationPlan,
			Extract:  []models.ElementType{models.ElementWall, models.ElementColumn},
		},
		{
			ViewType: models.ViewDetail,
		},
	}
}

// DefaultRegistry assembles the default tables for t.
func DefaultRegistry(t Tuning) (*Registry, error) {
	return NewRegistry(DefaultPatterns(t), DefaultLayerMappings(), DefaultViewRules(t))
}
