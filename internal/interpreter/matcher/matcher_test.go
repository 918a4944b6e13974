package matcher

import (
	"context"
	"testing"

	"drawing-interpreter/internal/interpreter/models"
	"drawing-interpreter/internal/interpreter/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func line(layer string, x1, y1, x2, y2 float64) models.Line {
	return models.Line{LayerName: layer, Start: models.Point{X: x1, Y: y1}, End: models.Point{X: x2, Y: y2}}
}

func dim(x, y, value float64) models.Annotation {
	return models.Annotation{Position: models.Point{X: x, Y: y}, Value: &value, Unit: "mm"}
}

func view(vt models.ViewType, geom models.Primitives, notes ...models.Annotation) models.ClassifiedView {
	return models.ClassifiedView{
		DrawingViewInput: models.DrawingViewInput{ViewName: "test view", Geometry: geom, Annotations: notes},
		ViewType:         vt,
		Confidence:       0.95,
	}
}

func newMatcher(t *testing.T, opts Options) *Matcher {
	t.Helper()
	tuning := rules.DefaultTuning()
	reg, err := rules.DefaultRegistry(tuning)
	require.NoError(t, err)
	return New(reg, tuning, opts, nil)
}

func match1(t *testing.T, m *Matcher, v models.ClassifiedView) []models.RecognizedElement {
	t.Helper()
	got, err := m.MatchView(context.Background(), v)
	require.NoError(t, err)
	return got
}

func assertDisjoint(t *testing.T, elements []models.RecognizedElement) {
	t.Helper()
	owner := map[string]map[int]string{}
	for _, e := range elements {
		if owner[e.Layer] == nil {
			owner[e.Layer] = map[int]string{}
		}
		for _, idx := range e.SourceIndices {
			prev, taken := owner[e.Layer][idx]
			assert.False(t, taken, "primitive %d claimed by %s and %s", idx, prev, e.PatternID)
			owner[e.Layer][idx] = e.PatternID
		}
	}
}

func TestParallelWall(t *testing.T) {
	m := newMatcher(t, Options{})

	got := match1(t, m, view(models.ViewFloorPlan, models.Primitives{
		line("A-WALL", 0, 0, 5000, 0),
		line("A-WALL", 0, 200, 5000, 200),
	}))

	require.Len(t, got, 1)
	wall := got[0]
	assert.Equal(t, models.ElementWall, wall.Type)
	assert.Equal(t, rules.PatternWallParallel, wall.PatternID)
	assert.InDelta(t, 0.95, wall.Confidence, 1e-9)
	assert.InDelta(t, 200, wall.Properties[models.PropThickness], 1)
	assert.InDelta(t, 5000, wall.Properties[models.PropLength], 1)
	assert.Equal(t, []int{0, 1}, wall.SourceIndices)
	assert.Equal(t, models.ViewFloorPlan, wall.ViewType)
	assert.NotEmpty(t, wall.ID)
}

func TestParallelLinesSpacingRange(t *testing.T) {
	tuning := rules.DefaultTuning()
	reg, err := rules.DefaultRegistry(tuning)
	require.NoError(t, err)
	wallPattern := reg.PatternsFor(models.ElementWall)[0]
	require.Equal(t, rules.PatternWallParallel, wallPattern.ID)

	v := view(models.ViewFloorPlan, nil)
	sc := &scope{view: &v, tuning: tuning}

	pair := func(spacing float64) []item {
		return []item{
			{index: 0, prim: line("A-WALL", 0, 0, 5000, 0)},
			{index: 1, prim: line("A-WALL", 0, spacing, 5000, spacing)},
		}
	}

	accepted, err := runPattern(sc, wallPattern, pair(150))
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.InDelta(t, 150, accepted[0].props[models.PropThickness], 1e-6)

	rejected, err := runPattern(sc, wallPattern, pair(650))
	require.NoError(t, err)
	assert.Empty(t, rejected)
}

func TestWideSpacingFallsBackToSingleLines(t *testing.T) {
	m := newMatcher(t, Options{})

	got := match1(t, m, view(models.ViewFloorPlan, models.Primitives{
		line("A-WALL", 0, 0, 5000, 0),
		line("A-WALL", 0, 650, 5000, 650),
	}))

	require.Len(t, got, 2)
	for _, e := range got {
		assert.Equal(t, rules.PatternWallSingle, e.PatternID)
		assert.InDelta(t, 0.76, e.Confidence, 1e-9)
		assert.Equal(t, 200.0, e.Properties[models.PropThickness])
	}
}

func TestSingleLineThicknessFromDimension(t *testing.T) {
	m := newMatcher(t, Options{})

	got := match1(t, m, view(models.ViewFloorPlan,
		models.Primitives{line("A-WALL", 0, 0, 5000, 0)},
		dim(2500, 300, 250),
		dim(2500, -400, 5000),
	))

	require.Len(t, got, 1)
	assert.Equal(t, 250.0, got[0].Properties[models.PropThickness])
	assert.Len(t, got[0].Dimensions, 2)
}

func TestDoorArcLine(t *testing.T) {
	m := newMatcher(t, Options{})

	got := match1(t, m, view(models.ViewFloorPlan, models.Primitives{
		models.Arc{LayerName: "A-DOOR", Center: models.Point{}, Radius: 900, StartAngle: 0, SweepAngle: 90},
		line("A-DOOR", 0, 0, 900, 0),
	}))

	require.Len(t, got, 1)
	door := got[0]
	assert.Equal(t, models.ElementDoor, door.Type)
	assert.InDelta(t, 900, door.Properties[models.PropWidth], 1e-6)
	assert.InDelta(t, 0.92, door.Confidence, 1e-9)
	assert.Equal(t, 1.0, door.Properties[models.PropSwingDirection])
}

func TestDoorArcClockwiseSwing(t *testing.T) {
	m := newMatcher(t, Options{})

	got := match1(t, m, view(models.ViewFloorPlan, models.Primitives{
		models.Arc{LayerName: "A-DOOR", Center: models.Point{}, Radius: 800, StartAngle: 90, SweepAngle: -90},
		line("A-DOOR", 0, 0, 0, 800),
	}))

	require.Len(t, got, 1)
	assert.Equal(t, -1.0, got[0].Properties[models.PropSwingDirection])
}

func TestDoorTooNarrowIsRejected(t *testing.T) {
	m := newMatcher(t, Options{})

	got := match1(t, m, view(models.ViewFloorPlan, models.Primitives{
		models.Arc{LayerName: "A-DOOR", Radius: 400, SweepAngle: 90},
		line("A-DOOR", 0, 0, 400, 0),
	}))
	assert.Empty(t, got)
}

func TestColumns(t *testing.T) {
	m := newMatcher(t, Options{})

	got := match1(t, m, view(models.ViewFloorPlan, models.Primitives{
		models.Rectangle{LayerName: "S-COLS", Min: models.Point{X: 0, Y: 0}, Max: models.Point{X: 400, Y: 400}, Filled: true},
		models.Rectangle{LayerName: "S-COLS", Min: models.Point{X: 0, Y: 0}, Max: models.Point{X: 400, Y: 400}},
		models.Circle{LayerName: "S-COLS", Center: models.Point{X: 6000, Y: 0}, Radius: 200, Filled: true},
		models.Circle{LayerName: "S-COLS", Center: models.Point{X: 9000, Y: 0}, Radius: 50, Filled: true},
	}))

	require.Len(t, got, 2)
	assert.Equal(t, rules.PatternColumnRect, got[0].PatternID)
	assert.Equal(t, 400.0, got[0].Properties[models.PropWidth])
	assert.Equal(t, rules.PatternColumnCircle, got[1].PatternID)
	assert.Equal(t, 400.0, got[1].Properties[models.PropDiameter])
}

func TestStairTreads(t *testing.T) {
	m := newMatcher(t, Options{})

	var geom models.Primitives
	for i := 0; i < 6; i++ {
		y := float64(i) * 280
		geom = append(geom, line("A-STRS", 0, y, 1000, y))
	}

	got := match1(t, m, view(models.ViewFloorPlan, geom))

	require.Len(t, got, 1)
	stair := got[0]
	assert.Equal(t, models.ElementStair, stair.Type)
	assert.Equal(t, 6.0, stair.Properties[models.PropTreadCount])
	assert.InDelta(t, 280, stair.Properties[models.PropTreadDepth], 1e-6)
	assert.InDelta(t, 1400, stair.Properties[models.PropRun], 1e-6)
	assert.InDelta(t, 1000, stair.Properties[models.PropWidth], 1e-6)
}

func TestRooms(t *testing.T) {
	room := models.Polyline{
		LayerName: "A-AREA",
		Vertices:  []models.Point{{X: 0, Y: 0}, {X: 4000, Y: 0}, {X: 4000, Y: 3000}, {X: 0, Y: 3000}},
		Closed:    true,
	}
	untagged := models.Polyline{
		LayerName: "A-AREA",
		Vertices:  []models.Point{{X: 5000, Y: 0}, {X: 7000, Y: 0}, {X: 7000, Y: 2000}, {X: 5000, Y: 2000}, {X: 5000, Y: 0}},
	}
	tag := models.Annotation{Position: models.Point{X: 2000, Y: 1500}, Text: "KITCHEN"}

	t.Run("tags are optional by default", func(t *testing.T) {
		m := newMatcher(t, Options{})
		got := match1(t, m, view(models.ViewFloorPlan, models.Primitives{room, untagged}, tag))

		require.Len(t, got, 2)
		assert.Equal(t, "KITCHEN", got[0].Label)
		assert.InDelta(t, 12e6, got[0].Properties[models.PropArea], 1e-6)
		assert.InDelta(t, 14000, got[0].Properties[models.PropPerimeter], 1e-6)
		assert.Empty(t, got[1].Label)
	})

	t.Run("enforced tags", func(t *testing.T) {
		tuning := rules.DefaultTuning()
		tuning.EnforceRoomTags = true
		reg, err := rules.DefaultRegistry(tuning)
		require.NoError(t, err)
		m := New(reg, tuning, Options{}, nil)

		got := match1(t, m, view(models.ViewFloorPlan, models.Primitives{room, untagged}, tag))
		require.Len(t, got, 1)
		assert.Equal(t, "KITCHEN", got[0].Label)
	})
}

func TestSectionWallRectangle(t *testing.T) {
	m := newMatcher(t, Options{})

	got := match1(t, m, view(models.ViewSection, models.Primitives{
		models.Rectangle{LayerName: "A-WALL", Min: models.Point{X: 1000, Y: 0}, Max: models.Point{X: 1200, Y: 2700}},
		models.Rectangle{LayerName: "A-WALL", Min: models.Point{X: 0, Y: 2700}, Max: models.Point{X: 6000, Y: 2900}},
	}))

	require.Len(t, got, 1)
	assert.Equal(t, rules.PatternWallRectangle, got[0].PatternID)
	assert.InDelta(t, 200, got[0].Properties[models.PropThickness], 1e-6)
	assert.InDelta(t, 2700, got[0].Properties[models.PropHeight], 1e-6)
}

func TestElevationWindow(t *testing.T) {
	m := newMatcher(t, Options{})

	got := match1(t, m, view(models.ViewElevation, models.Primitives{
		models.Rectangle{LayerName: "A-GLAZ", Min: models.Point{X: 1000, Y: 900}, Max: models.Point{X: 2200, Y: 2100}},
	}))

	require.Len(t, got, 1)
	win := got[0]
	assert.Equal(t, models.ElementWindow, win.Type)
	assert.Equal(t, 1200.0, win.Properties[models.PropWidth])
	assert.Equal(t, 900.0, win.Properties[models.PropSillHeight])
	assert.Equal(t, 2100.0, win.Properties[models.PropHeadHeight])
}

func TestGreedyConsumptionIsDisjoint(t *testing.T) {
	m := newMatcher(t, Options{})

	geom := models.Primitives{
		line("A-WALL", 0, 0, 5000, 0),
		line("A-WALL", 0, 150, 5000, 150),
		line("A-WALL", 0, 300, 5000, 300),
		line("A-WALL", 0, 450, 5000, 450),
		line("A-WALL", 0, 0, 0, 4000),
		line("A-WALL", 200, 0, 200, 4000),
		line("A-WALL", 8000, 0, 8000, 300),
		models.Rectangle{LayerName: "A-WALL", Min: models.Point{X: 9000, Y: 0}, Max: models.Point{X: 9200, Y: 3000}},
		models.Arc{LayerName: "A-DOOR", Radius: 900, SweepAngle: 90},
		line("A-DOOR", 0, 0, 900, 0),
		line("A-DOOR", 50, 0, 900, 0),
	}

	got := match1(t, m, view(models.ViewFloorPlan, geom))

	assertDisjoint(t, got)

	patterns := map[string]int{}
	for _, e := range got {
		patterns[e.PatternID]++
	}
	assert.Equal(t, 3, patterns[rules.PatternWallParallel])
	assert.Equal(t, 1, patterns[rules.PatternWallRectangle])
	assert.Equal(t, 1, patterns[rules.PatternDoorArc])
	assert.Zero(t, patterns[rules.PatternWallSingle])
}

func TestUnmappedLayers(t *testing.T) {
	geom := models.Primitives{
		line("MISC", 0, 0, 5000, 0),
		line("MISC", 0, 200, 5000, 200),
	}

	skipped := match1(t, newMatcher(t, Options{}), view(models.ViewFloorPlan, geom))
	assert.Empty(t, skipped)

	processed := match1(t, newMatcher(t, Options{ProcessUnmappedLayers: true}), view(models.ViewFloorPlan, geom))
	require.Len(t, processed, 1)
	assert.Equal(t, models.ElementWall, processed[0].Type)
}

func TestCategoryFailureIsIsolated(t *testing.T) {
	tuning := rules.DefaultTuning()
	var door rules.ElementPattern
	for _, p := range rules.DefaultPatterns(tuning) {
		if p.ID == rules.PatternDoorArc {
			door = p
		}
	}
	reg, err := rules.NewRegistry(
		[]rules.ElementPattern{
			{ID: "BROKEN", Target: models.ElementWall, Shape: "Bogus", BaseConfidence: 0.9},
			door,
		},
		rules.DefaultLayerMappings(),
		rules.DefaultViewRules(tuning),
	)
	require.NoError(t, err)

	core, logs := observer.New(zap.WarnLevel)
	var failures []Failure
	m := New(reg, tuning, Options{
		ProcessUnmappedLayers: true,
		OnFailure:             func(f Failure) { failures = append(failures, f) },
	}, zap.New(core))

	got := match1(t, m, view(models.ViewFloorPlan, models.Primitives{
		line("MISC", 0, 0, 5000, 0),
		line("MISC", 0, 200, 5000, 200),
		models.Arc{LayerName: "MISC", Center: models.Point{X: 8000}, Radius: 900, SweepAngle: 90},
		line("MISC", 8000, 0, 8900, 0),
	}))

	require.Len(t, got, 1)
	assert.Equal(t, models.ElementDoor, got[0].Type)

	require.Len(t, failures, 1)
	assert.Equal(t, models.ElementWall, failures[0].ElementType)
	assert.Equal(t, "MISC", failures[0].Layer)

	entries := logs.FilterMessage("pattern matching failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Wall", entries[0].ContextMap()["element_type"])
}

func TestMatchViewsKeepsViewOrder(t *testing.T) {
	m := newMatcher(t, Options{Workers: 4})

	views := []models.ClassifiedView{
		view(models.ViewFloorPlan, models.Primitives{line("A-WALL", 0, 0, 5000, 0), line("A-WALL", 0, 200, 5000, 200)}),
		view(models.ViewDetail, models.Primitives{line("A-WALL", 0, 0, 5000, 0)}),
		view(models.ViewFloorPlan, models.Primitives{models.Circle{LayerName: "S-COLS", Radius: 250, Filled: true}}),
	}

	got, err := m.MatchViews(context.Background(), views)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Len(t, got[0], 1)
	assert.Empty(t, got[1])
	require.Len(t, got[2], 1)
	assert.Equal(t, models.ElementColumn, got[2][0].Type)
}

func TestMatchViewsCancelled(t *testing.T) {
	m := newMatcher(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.MatchViews(ctx, []models.ClassifiedView{
		view(models.ViewFloorPlan, models.Primitives{line("A-WALL", 0, 0, 5000, 0)}),
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAssociateDimensions(t *testing.T) {
	elements := []models.RecognizedElement{{
		Bounds: models.Box{Min: models.Point{X: 0, Y: 0}, Max: models.Point{X: 5000, Y: 200}},
	}}

	AssociateDimensions(elements, []models.Annotation{
		dim(2500, -600, 5000),
		dim(2500, 5000, 3000),
		{Position: models.Point{X: 100, Y: 100}, Text: "note"},
	}, 1000)

	require.Len(t, elements[0].Dimensions, 1)
	assert.Equal(t, 5000.0, elements[0].Dimensions[0].Value)
	assert.Equal(t, "mm", elements[0].Dimensions[0].Unit)
}
