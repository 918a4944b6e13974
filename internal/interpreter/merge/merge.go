// Package merge folds correlated detections into 3D building elements.
package merge

import (
	"maps"

	"drawing-interpreter/internal/interpreter/geometry"
	"drawing-interpreter/internal/interpreter/models"
	"drawing-interpreter/internal/interpreter/rules"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Merger struct {
	registry *rules.Registry
	tuning   rules.Tuning
	log      *zap.Logger
}

// New merges with the view rules of registry; nil uses the default rules
// for tuning.
func New(registry *rules.Registry, tuning rules.Tuning, log *zap.Logger) (*Merger, error) {
	if registry == nil {
		var err error
		if registry, err = rules.DefaultRegistry(tuning); err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Merger{registry: registry, tuning: tuning, log: log}, nil
}

// Merge emits one element per plan detection, then a standalone element
// for every section or elevation detection no correlation claimed.
func (m *Merger) Merge(
	elements []models.RecognizedElement,
	correlations []models.ViewCorrelation,
	levels []models.LevelDefinition,
) []models.MergedElement {
	byID := make(map[string]*models.RecognizedElement, len(elements))
	for i := range elements {
		byID[elements[i].ID] = &elements[i]
	}
	byPlan := make(map[string][]models.ViewCorrelation)
	for _, c := range correlations {
		byPlan[c.PlanElementID] = append(byPlan[c.PlanElementID], c)
	}

	level := lowestLevel(levels)
	claimed := make(map[string]bool)
	var out []models.MergedElement

	for i := range elements {
		plan := &elements[i]
		if !plan.ViewType.IsPlan() {
			continue
		}
		for _, c := range byPlan[plan.ID] {
			claimed[c.OtherElementID] = true
		}
		out = append(out, m.mergePlan(plan, byPlan[plan.ID], byID, level))
	}

	standalone := 0
	for i := range elements {
		e := &elements[i]
		if e.ViewType.IsPlan() || claimed[e.ID] {
			continue
		}
		out = append(out, m.standalone(e, level))
		standalone++
	}

	m.log.Debug("elements merged",
		zap.Int("merged", len(out)),
		zap.Int("standalone", standalone))
	return out
}

func (m *Merger) mergePlan(
	plan *models.RecognizedElement,
	correlations []models.ViewCorrelation,
	byID map[string]*models.RecognizedElement,
	level *models.LevelDefinition,
) models.MergedElement {
	merged := models.MergedElement{
		ID:            uuid.NewString(),
		Type:          plan.Type,
		PlanElementID: plan.ID,
		Level:         level,
		Properties:    maps.Clone(plan.Properties),
		Label:         plan.Label,
	}
	if merged.Properties == nil {
		merged.Properties = map[string]float64{}
	}

	// A later correlation of the same kind replaces an earlier one.
	var section, elevation *models.ViewCorrelation
	for i := range correlations {
		switch correlations[i].Kind {
		case models.PlanToSection:
			section = &correlations[i]
		case models.PlanToElevation:
			elevation = &correlations[i]
		}
	}

	height := m.defaultHeight(plan.ViewType)
	baseOffset := 0.0
	confidence := plan.Confidence

	if section != nil {
		merged.SectionElementID = section.OtherElementID
		if section.Height != nil && *section.Height > 0 {
			height = *section.Height
		} else if rule, ok := m.registry.ViewRule(models.ViewSection); ok && rule.DefaultHeight > 0 {
			height = rule.DefaultHeight
		}
		if section.BaseOffset != nil {
			baseOffset = *section.BaseOffset
		}
		if src, ok := byID[section.OtherElementID]; ok {
			confidence += m.tuning.SectionWeight * src.Confidence
			fillMissing(merged.Properties, src.Properties)
		}
		merged.Properties[models.PropBaseOffset] = baseOffset
	}

	if elevation != nil {
		merged.ElevationElementID = elevation.OtherElementID
		if elevation.SillHeight != nil {
			merged.Properties[models.PropSillHeight] = *elevation.SillHeight
		}
		if elevation.HeadHeight != nil {
			merged.Properties[models.PropHeadHeight] = *elevation.HeadHeight
		}
		if src, ok := byID[elevation.OtherElementID]; ok {
			confidence += m.tuning.ElevationWeight * src.Confidence
		}
	}

	if merged.Sources() > 1 {
		confidence *= m.tuning.MultiSourceBonus
	}
	merged.Confidence = geometry.Clamp01(confidence)

	merged.Height = height
	merged.Properties[models.PropHeight] = height

	base := baseOffset
	if level != nil {
		base += level.Elevation
	}
	merged.Volume = models.BoundingVolume{
		Min: models.Point3{X: plan.Bounds.Min.X, Y: plan.Bounds.Min.Y, Z: base},
		Max: models.Point3{X: plan.Bounds.Max.X, Y: plan.Bounds.Max.Y, Z: base + height},
	}
	return merged
}

// standalone keeps a detection with no plan footprint. Its drawing Y axis
// is the vertical axis.
func (m *Merger) standalone(e *models.RecognizedElement, level *models.LevelDefinition) models.MergedElement {
	merged := models.MergedElement{
		ID:         uuid.NewString(),
		Type:       e.Type,
		Level:      level,
		Properties: maps.Clone(e.Properties),
		Label:      e.Label,
		Confidence: geometry.Clamp01(e.Confidence * m.tuning.StandalonePenalty),
		Standalone: true,
	}
	if merged.Properties == nil {
		merged.Properties = map[string]float64{}
	}

	switch e.ViewType {
	case models.ViewSection:
		merged.SectionElementID = e.ID
	case models.ViewElevation:
		merged.ElevationElementID = e.ID
	}

	height := e.Bounds.Height()
	if h, ok := e.Property(models.PropHeight); ok && h > 0 {
		height = h
	}
	merged.Height = height

	merged.Volume = models.BoundingVolume{
		Min: models.Point3{X: e.Bounds.Min.X, Z: e.Bounds.Min.Y},
		Max: models.Point3{X: e.Bounds.Max.X, Z: e.Bounds.Min.Y + height},
	}
	return merged
}

// defaultHeight prefers the view rule's height over the tuning fallback.
func (m *Merger) defaultHeight(vt models.ViewType) float64 {
	if rule, ok := m.registry.ViewRule(vt); ok && rule.DefaultHeight > 0 {
		return rule.DefaultHeight
	}
	return m.tuning.DefaultHeight
}

// lowestLevel returns the level with the smallest index.
func lowestLevel(levels []models.LevelDefinition) *models.LevelDefinition {
	if len(levels) == 0 {
		return nil
	}
	lowest := levels[0]
	for _, l := range levels[1:] {
		if l.Index < lowest.Index {
			lowest = l
		}
	}
	return &lowest
}

func fillMissing(dst, src map[string]float64) {
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
}
