package rules

import (
	"testing"

	"drawing-interpreter/internal/interpreter/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := DefaultRegistry(DefaultTuning())
	require.NoError(t, err)
	return reg
}

func TestPatternsOrderedByConfidence(t *testing.T) {
	reg := defaultRegistry(t)

	walls := reg.PatternsFor(models.ElementWall)
	require.Len(t, walls, 3)
	assert.Equal(t, PatternWallParallel, walls[0].ID)
	assert.Equal(t, PatternWallRectangle, walls[1].ID)
	assert.Equal(t, PatternWallSingle, walls[2].ID)
	assert.InDelta(t, 0.76, walls[2].BaseConfidence, 1e-9)

	for i := 1; i < len(walls); i++ {
		assert.GreaterOrEqual(t, walls[i-1].BaseConfidence, walls[i].BaseConfidence)
	}
}

func TestResolveLayer(t *testing.T) {
	reg := defaultRegistry(t)

	tests := []struct {
		layer string
		want  models.ElementType
		found bool
	}{
		{"A-WALL", models.ElementWall, true},
		{"a-wall", models.ElementWall, true},
		{"A-WALL-EXTR", models.ElementWall, true},
		{"A-DOOR", models.ElementDoor, true},
		{"A-GLAZ-SILL", models.ElementWindow, true},
		{"Interior Walls", models.ElementWall, true},
		{"S-COLS", models.ElementColumn, true},
		{"A-ANNO-DIMS", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.layer, func(t *testing.T) {
			m, ok := reg.ResolveLayer(tt.layer)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.True(t, m.Admits(tt.want), "mapping %s should admit %s", m.Layer, tt.want)
			}
		})
	}
}

func TestResolveLayerPrefersPriority(t *testing.T) {
	reg, err := NewRegistry(nil, []LayerMapping{
		{Layer: "WALL", Elements: []models.ElementType{models.ElementWall}, Priority: 1},
		{Layer: "DOOR", Elements: []models.ElementType{models.ElementDoor}, Priority: 5},
	}, nil)
	require.NoError(t, err)

	m, ok := reg.ResolveLayer("WALL-DOOR")
	require.True(t, ok)
	assert.Equal(t, "DOOR", m.Layer)
}

func TestNewRegistryRejectsBadInput(t *testing.T) {
	_, err := NewRegistry([]ElementPattern{{ID: "A", BaseConfidence: 0.5}, {ID: "A", BaseConfidence: 0.5}}, nil, nil)
	assert.Error(t, err)

	_, err = NewRegistry([]ElementPattern{{ID: "B", BaseConfidence: 1.5}}, nil, nil)
	assert.Error(t, err)

	_, err = NewRegistry(nil, []LayerMapping{{Layer: " "}}, nil)
	assert.Error(t, err)
}

func TestViewRules(t *testing.T) {
	reg := defaultRegistry(t)

	plan, ok := reg.ViewRule(models.ViewFloorPlan)
	require.True(t, ok)
	assert.Equal(t, models.ElementWall, plan.Extract[0])

	assert.True(t, reg.Supplies(models.ViewSection, AttrHeight))
	assert.True(t, reg.Supplies(models.ViewElevation, AttrSillHeight))
	assert.False(t, reg.Supplies(models.ViewFloorPlan, AttrHeight))
}

func TestRange(t *testing.T) {
	r := Range{Min: 100, Max: 600}
	assert.True(t, r.Contains(150))
	assert.True(t, r.Contains(600))
	assert.False(t, r.Contains(650))
	assert.True(t, r.Contains(600+1e-10), "boundary tolerance")
	assert.True(t, r.Contains(100-1e-10), "boundary tolerance")
	assert.False(t, r.Contains(99))

	open := Range{Min: 1000}
	assert.True(t, open.Contains(1e9))
	assert.False(t, open.Contains(999))
}

func TestTuningValidate(t *testing.T) {
	require.NoError(t, DefaultTuning().Validate())

	bad := DefaultTuning()
	bad.WallThicknessMax = 50
	assert.Error(t, bad.Validate())

	bad = DefaultTuning()
	bad.FallbackConfidence = 1.2
	assert.Error(t, bad.Validate())
}
