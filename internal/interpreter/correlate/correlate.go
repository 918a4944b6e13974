// Package correlate links plan elements to the same element seen in
// section and elevation views.
package correlate

import (
	"math"

	"drawing-interpreter/internal/interpreter/geometry"
	"drawing-interpreter/internal/interpreter/models"
	"drawing-interpreter/internal/interpreter/rules"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Correlator struct {
	registry *rules.Registry
	tuning   rules.Tuning
	log      *zap.Logger
}

// New correlates with the view rules of registry; nil uses the default
// rules for tuning.
func New(registry *rules.Registry, tuning rules.Tuning, log *zap.Logger) (*Correlator, error) {
	if registry == nil {
		var err error
		if registry, err = rules.DefaultRegistry(tuning); err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Correlator{registry: registry, tuning: tuning, log: log}, nil
}

// Correlate tests every plan element against every section and elevation
// element of the same type. Output follows input order: plan element
// first, then the other element.
func (c *Correlator) Correlate(elements []models.RecognizedElement) []models.ViewCorrelation {
	byType := make(map[models.ElementType][]*models.RecognizedElement)
	for i := range elements {
		e := &elements[i]
		if e.ViewType == models.ViewSection || e.ViewType == models.ViewElevation {
			byType[e.Type] = append(byType[e.Type], e)
		}
	}

	var out []models.ViewCorrelation
	for i := range elements {
		plan := &elements[i]
		if !plan.ViewType.IsPlan() {
			continue
		}
		for _, other := range byType[plan.Type] {
			switch other.ViewType {
			case models.ViewSection:
				if c.alignedWithSection(plan, other) {
					out = append(out, c.sectionCorrelation(plan, other))
				}
			case models.ViewElevation:
				if c.alignedWithElevation(plan, other) {
					out = append(out, c.elevationCorrelation(plan, other))
				}
			}
		}
	}

	c.log.Debug("views correlated",
		zap.Int("elements", len(elements)),
		zap.Int("correlations", len(out)))
	return out
}

// alignedWithSection compares the horizontal centres of the two bounds.
func (c *Correlator) alignedWithSection(plan, section *models.RecognizedElement) bool {
	return math.Abs(plan.Bounds.Center().X-section.Bounds.Center().X) < c.tuning.AlignmentTolerance
}

// alignedWithElevation is off unless enabled in tuning; elevations are
// usually drawn with their own origin, so the plan X axis does not carry.
func (c *Correlator) alignedWithElevation(plan, elevation *models.RecognizedElement) bool {
	if !c.tuning.ElevationAlignment {
		return false
	}
	return math.Abs(plan.Bounds.Center().X-elevation.Bounds.Center().X) < c.tuning.AlignmentTolerance
}

// sectionCorrelation attaches only the attributes the section view rule
// supplies.
func (c *Correlator) sectionCorrelation(plan, section *models.RecognizedElement) models.ViewCorrelation {
	corr := models.ViewCorrelation{
		ID:             uuid.NewString(),
		Kind:           models.PlanToSection,
		PlanElementID:  plan.ID,
		OtherElementID: section.ID,
		ElementType:    plan.Type,
		Confidence:     c.confidence(plan, section),
	}

	if c.registry.Supplies(section.ViewType, rules.AttrHeight) {
		height := c.defaultHeight(section.ViewType)
		if h, ok := section.Property(models.PropHeight); ok && h > 0 {
			height = h
		} else if h := section.Bounds.Height(); h > 0 {
			height = h
		}
		corr.Height = &height
	}
	if c.registry.Supplies(section.ViewType, rules.AttrBaseOffset) {
		base := section.Bounds.Min.Y
		corr.BaseOffset = &base
	}
	return corr
}

func (c *Correlator) elevationCorrelation(plan, elevation *models.RecognizedElement) models.ViewCorrelation {
	corr := models.ViewCorrelation{
		ID:             uuid.NewString(),
		Kind:           models.PlanToElevation,
		PlanElementID:  plan.ID,
		OtherElementID: elevation.ID,
		ElementType:    plan.Type,
		Confidence:     c.confidence(plan, elevation),
	}

	if c.registry.Supplies(elevation.ViewType, rules.AttrSillHeight) {
		sill := c.tuning.DefaultSillHeight
		if v, ok := elevation.Property(models.PropSillHeight); ok {
			sill = v
		}
		corr.SillHeight = &sill
	}
	if c.registry.Supplies(elevation.ViewType, rules.AttrHeadHeight) {
		head := c.tuning.DefaultHeadHeight
		if v, ok := elevation.Property(models.PropHeadHeight); ok {
			head = v
		}
		corr.HeadHeight = &head
	}
	return corr
}

// defaultHeight prefers the view rule's height over the tuning fallback.
func (c *Correlator) defaultHeight(vt models.ViewType) float64 {
	if rule, ok := c.registry.ViewRule(vt); ok && rule.DefaultHeight > 0 {
		return rule.DefaultHeight
	}
	return c.tuning.DefaultHeight
}

func (c *Correlator) confidence(a, b *models.RecognizedElement) float64 {
	conf := c.tuning.CorrelationBaseConfidence
	if a.Type == b.Type {
		conf += c.tuning.SameTypeBonus
	}
	wa, okA := a.Property(models.PropWidth)
	wb, okB := b.Property(models.PropWidth)
	if okA && okB && math.Abs(wa-wb) <= c.tuning.WidthMatchTolerance {
		conf += c.tuning.WidthMatchBonus
	}
	return geometry.Clamp01(conf)
}
