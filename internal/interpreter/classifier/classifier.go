// Package classifier assigns a semantic view type to each drawing view,
// first from keywords in the view name and then from its geometry.
package classifier

import (
	"math"
	"sort"
	"strings"

	"drawing-interpreter/internal/interpreter/geometry"
	"drawing-interpreter/internal/interpreter/models"
	"drawing-interpreter/internal/interpreter/rules"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

var (
	planKeywords       = []string{"plan", "floor", "level"}
	roofKeywords       = []string{"roof"}
	ceilingKeywords    = []string{"ceiling", "rcp"}
	foundationKeywords = []string{"foundation", "footing"}
	sectionKeywords    = []string{"section", "sect"}
	elevationKeywords  = []string{"elevation", "elev", "north", "south", "east", "west"}
)

type Classifier struct {
	tuning rules.Tuning
	log    *zap.Logger
}

func New(tuning rules.Tuning, log *zap.Logger) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{tuning: tuning, log: log}
}

// ClassifyAll keeps the input order.
func (c *Classifier) ClassifyAll(views []models.DrawingViewInput) []models.ClassifiedView {
	out := make([]models.ClassifiedView, 0, len(views))
	for _, v := range views {
		out = append(out, c.Classify(v))
	}
	return out
}

// Classify never fails; a view with no usable name or geometry is a floor plan.
func (c *Classifier) Classify(view models.DrawingViewInput) models.ClassifiedView {
	result := models.ClassifiedView{DrawingViewInput: view}

	if vt, ok := classifyByName(view.ViewName); ok {
		result.ViewType = vt
		result.Confidence = c.tuning.KeywordConfidence
		result.NameMatched = true
	} else {
		result.ViewType = c.classifyByGeometry(view.Geometry)
		result.Confidence = c.tuning.FallbackConfidence
	}

	c.log.Debug("view classified",
		zap.String("view", view.ViewName),
		zap.String("type", string(result.ViewType)),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("name_matched", result.NameMatched))

	return result
}

func classifyByName(name string) (models.ViewType, bool) {
	lower := strings.ToLower(name)

	switch {
	case containsAny(lower, planKeywords):
		switch {
		case containsAny(lower, roofKeywords):
			return models.ViewRoofPlan, true
		case containsAny(lower, ceilingKeywords):
			return models.ViewReflectedCeilingPlan, true
		case containsAny(lower, foundationKeywords):
			return models.ViewFoundationPlan, true
		}
		return models.ViewFloorPlan, true
	case containsAny(lower, sectionKeywords):
		return models.ViewSection, true
	case containsAny(lower, elevationKeywords):
		return models.ViewElevation, true
	}
	return models.ViewUnknown, false
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// ============================================================
// Geometry fallback
// ============================================================

func (c *Classifier) classifyByGeometry(prims models.Primitives) models.ViewType {
	if len(prims) == 0 {
		return models.ViewFloorPlan
	}

	bounds := models.BoundsOf(prims)
	aspect := aspectRatio(bounds)

	var lines []models.Line
	hasArc := false
	for _, p := range prims {
		switch v := p.(type) {
		case models.Line:
			lines = append(lines, v)
		case models.Arc:
			hasArc = true
		}
	}

	if c.hasDatumLines(lines, bounds) && aspect >= c.tuning.SectionAspectRatio {
		return models.ViewSection
	}
	if hasArc || hasTreads(lines, c.tuning.ParallelAngleTolerance, c.tuning.StairTreadMinCount) {
		return models.ViewFloorPlan
	}
	if aspect > c.tuning.ElevationAspectRatio {
		return models.ViewElevation
	}
	return models.ViewFloorPlan
}

func aspectRatio(b models.Box) float64 {
	w, h := b.Width(), b.Height()
	if h <= 0 {
		if w <= 0 {
			return 0
		}
		return math.Inf(1)
	}
	return w / h
}

// hasDatumLines looks for near-horizontal lines spanning most of the view.
func (c *Classifier) hasDatumLines(lines []models.Line, bounds models.Box) bool {
	minLength := c.tuning.LongLineFraction * bounds.Width()
	count := 0
	for _, l := range lines {
		if geometry.AngleDifference(geometry.Angle(l), 0) > c.tuning.ParallelAngleTolerance {
			continue
		}
		if l.Length() >= minLength {
			count++
		}
	}
	return count >= c.tuning.MinDatumLines
}

// hasTreads reports a run of parallel lines of similar length with regular
// spacing, the way stair treads are drawn.
func hasTreads(lines []models.Line, tolerance float64, minCount int) bool {
	if minCount < 2 || len(lines) < minCount {
		return false
	}

	for _, ref := range lines {
		refLength := ref.Length()
		if refLength == 0 {
			continue
		}
		refAngle := geometry.Angle(ref)

		var offsets []float64
		for _, l := range lines {
			if !geometry.AreParallel(geometry.Angle(l), refAngle, tolerance) {
				continue
			}
			if math.Abs(l.Length()-refLength) > 0.1*refLength {
				continue
			}
			offsets = append(offsets, geometry.SignedOffset(geometry.Midpoint(l), ref))
		}
		if len(offsets) < minCount {
			continue
		}

		sort.Float64s(offsets)
		gaps := make([]float64, 0, len(offsets)-1)
		for i := 1; i < len(offsets); i++ {
			gaps = append(gaps, offsets[i]-offsets[i-1])
		}
		mean, std := stat.MeanStdDev(gaps, nil)
		if mean > 1 && std/mean < 0.15 {
			return true
		}
	}
	return false
}
