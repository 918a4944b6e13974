package correlate

import (
	"testing"

	"drawing-interpreter/internal/interpreter/models"
	"drawing-interpreter/internal/interpreter/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func element(id string, vt models.ViewType, et models.ElementType, minX, minY, maxX, maxY float64, props map[string]float64) models.RecognizedElement {
	return models.RecognizedElement{
		ID:         id,
		Type:       et,
		ViewType:   vt,
		Confidence: 0.9,
		Bounds:     models.Box{Min: models.Point{X: minX, Y: minY}, Max: models.Point{X: maxX, Y: maxY}},
		Properties: props,
	}
}

func newCorrelator(t *testing.T, reg *rules.Registry, tuning rules.Tuning) *Correlator {
	t.Helper()
	c, err := New(reg, tuning, nil)
	require.NoError(t, err)
	return c
}

// registryWith replaces the default rule for each given view type.
func registryWith(t *testing.T, tuning rules.Tuning, overrides ...rules.ViewRule) *rules.Registry {
	t.Helper()
	views := rules.DefaultViewRules(tuning)
	for _, o := range overrides {
		for i := range views {
			if views[i].ViewType == o.ViewType {
				views[i] = o
			}
		}
	}
	reg, err := rules.NewRegistry(rules.DefaultPatterns(tuning), rules.DefaultLayerMappings(), views)
	require.NoError(t, err)
	return reg
}

func TestSectionAlignment(t *testing.T) {
	c := newCorrelator(t, nil, rules.DefaultTuning())

	elements := []models.RecognizedElement{
		element("plan", models.ViewFloorPlan, models.ElementWall, 0, 0, 5000, 200, nil),
		element("near", models.ViewSection, models.ElementWall, 2300, 150, 2500, 2850, map[string]float64{models.PropHeight: 2700}),
		element("far", models.ViewSection, models.ElementWall, 4000, 0, 4200, 2700, nil),
		element("column", models.ViewSection, models.ElementColumn, 2300, 0, 2500, 2700, nil),
	}

	got := c.Correlate(elements)

	require.Len(t, got, 1)
	corr := got[0]
	assert.Equal(t, models.PlanToSection, corr.Kind)
	assert.Equal(t, "plan", corr.PlanElementID)
	assert.Equal(t, "near", corr.OtherElementID)
	assert.Equal(t, models.ElementWall, corr.ElementType)
	require.NotNil(t, corr.Height)
	assert.Equal(t, 2700.0, *corr.Height)
	require.NotNil(t, corr.BaseOffset)
	assert.Equal(t, 150.0, *corr.BaseOffset)
	assert.InDelta(t, 0.8, corr.Confidence, 1e-9)
	assert.NotEmpty(t, corr.ID)
	assert.Nil(t, corr.SillHeight)
}

func TestSectionHeightFallbacks(t *testing.T) {
	c := newCorrelator(t, nil, rules.DefaultTuning())

	got := c.Correlate([]models.RecognizedElement{
		element("plan", models.ViewFloorPlan, models.ElementWall, 0, 0, 1000, 200, nil),
		element("tall", models.ViewSection, models.ElementWall, 400, 0, 600, 3100, nil),
		element("flat", models.ViewSection, models.ElementWall, 0, 500, 1000, 500, nil),
	})

	require.Len(t, got, 2)
	assert.Equal(t, 3100.0, *got[0].Height)
	assert.Equal(t, 2700.0, *got[1].Height)
	assert.Equal(t, 500.0, *got[1].BaseOffset)
}

func TestWidthMatchBonus(t *testing.T) {
	c := newCorrelator(t, nil, rules.DefaultTuning())

	got := c.Correlate([]models.RecognizedElement{
		element("plan", models.ViewFloorPlan, models.ElementDoor, 0, 0, 900, 900, map[string]float64{models.PropWidth: 900}),
		element("match", models.ViewSection, models.ElementDoor, 0, 0, 930, 2100, map[string]float64{models.PropWidth: 930}),
		element("miss", models.ViewSection, models.ElementDoor, 0, 0, 1000, 2100, map[string]float64{models.PropWidth: 1000}),
	})

	require.Len(t, got, 2)
	assert.InDelta(t, 1.0, got[0].Confidence, 1e-9)
	assert.InDelta(t, 0.8, got[1].Confidence, 1e-9)
}

func TestElevationAlignmentIsOptIn(t *testing.T) {
	elements := []models.RecognizedElement{
		element("plan", models.ViewFloorPlan, models.ElementWindow, 1000, 0, 2200, 100, map[string]float64{models.PropWidth: 1200}),
		element("elev", models.ViewElevation, models.ElementWindow, 1000, 1000, 2200, 2200, map[string]float64{
			models.PropWidth:      1200,
			models.PropSillHeight: 1000,
			models.PropHeadHeight: 2200,
		}),
		element("bare", models.ViewElevation, models.ElementWindow, 1200, 900, 2000, 2100, nil),
	}

	off := newCorrelator(t, nil, rules.DefaultTuning())
	assert.Empty(t, off.Correlate(elements))

	tuning := rules.DefaultTuning()
	tuning.ElevationAlignment = true
	on := newCorrelator(t, nil, tuning)

	got := on.Correlate(elements)
	require.Len(t, got, 2)
	assert.Equal(t, models.PlanToElevation, got[0].Kind)
	assert.Equal(t, 1000.0, *got[0].SillHeight)
	assert.Equal(t, 2200.0, *got[0].HeadHeight)
	assert.InDelta(t, 1.0, got[0].Confidence, 1e-9)

	assert.Equal(t, 900.0, *got[1].SillHeight)
	assert.Equal(t, 2100.0, *got[1].HeadHeight)
	assert.Nil(t, got[1].Height)
}

func TestConfidenceIsClamped(t *testing.T) {
	tuning := rules.DefaultTuning()
	tuning.CorrelationBaseConfidence = 0.9
	c := newCorrelator(t, nil, tuning)

	got := c.Correlate([]models.RecognizedElement{
		element("plan", models.ViewFloorPlan, models.ElementWall, 0, 0, 100, 100, nil),
		element("sec", models.ViewSection, models.ElementWall, 0, 0, 100, 100, nil),
	})
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Confidence)
}

func TestSectionRuleSuppliesNothing(t *testing.T) {
	tuning := rules.DefaultTuning()
	reg := registryWith(t, tuning, rules.ViewRule{
		ViewType:      models.ViewSection,
		Extract:       []models.ElementType{models.ElementWall},
		DefaultHeight: 3500,
	})
	c := newCorrelator(t, reg, tuning)

	got := c.Correlate([]models.RecognizedElement{
		element("plan", models.ViewFloorPlan, models.ElementWall, 0, 0, 5000, 200, nil),
		element("sec", models.ViewSection, models.ElementWall, 2400, 0, 2600, 3200, nil),
	})

	require.Len(t, got, 1)
	assert.Equal(t, models.PlanToSection, got[0].Kind)
	assert.Nil(t, got[0].Height)
	assert.Nil(t, got[0].BaseOffset)
	assert.InDelta(t, 0.8, got[0].Confidence, 1e-9)
}

func TestSectionRuleDefaultHeight(t *testing.T) {
	tuning := rules.DefaultTuning()
	reg := registryWith(t, tuning, rules.ViewRule{
		ViewType:      models.ViewSection,
		Extract:       []models.ElementType{models.ElementWall},
		Supplies:      []rules.Attribute{rules.AttrHeight},
		DefaultHeight: 3500,
	})
	c := newCorrelator(t, reg, tuning)

	got := c.Correlate([]models.RecognizedElement{
		element("plan", models.ViewFloorPlan, models.ElementWall, 0, 0, 1000, 200, nil),
		element("flat", models.ViewSection, models.ElementWall, 0, 500, 1000, 500, nil),
	})

	require.Len(t, got, 1)
	require.NotNil(t, got[0].Height)
	assert.Equal(t, 3500.0, *got[0].Height, "flat section falls back to the rule height")
	assert.Nil(t, got[0].BaseOffset, "base offset not supplied")
}

func TestElevationRuleSuppliesHeadOnly(t *testing.T) {
	tuning := rules.DefaultTuning()
	tuning.ElevationAlignment = true
	reg := registryWith(t, tuning, rules.ViewRule{
		ViewType: models.ViewElevation,
		Extract:  []models.ElementType{models.ElementWindow},
		Supplies: []rules.Attribute{rules.AttrHeadHeight},
	})
	c := newCorrelator(t, reg, tuning)

	got := c.Correlate([]models.RecognizedElement{
		element("plan", models.ViewFloorPlan, models.ElementWindow, 1000, 0, 2200, 100, nil),
		element("elev", models.ViewElevation, models.ElementWindow, 1000, 1000, 2200, 2200, map[string]float64{
			models.PropSillHeight: 1000,
			models.PropHeadHeight: 2200,
		}),
	})

	require.Len(t, got, 1)
	assert.Nil(t, got[0].SillHeight)
	require.NotNil(t, got[0].HeadHeight)
	assert.Equal(t, 2200.0, *got[0].HeadHeight)
}
