package matcher

import (
	"fmt"
	"math"
	"sort"

	"drawing-interpreter/internal/interpreter/geometry"
	"drawing-interpreter/internal/interpreter/models"
	"drawing-interpreter/internal/interpreter/rules"

	"gonum.org/v1/gonum/stat"
)

type item struct {
	index int
	prim  models.Primitive
}

type match struct {
	pattern    rules.ElementPattern
	items      []item
	props      map[string]float64
	confidence float64
	label      string
}

// scope is what a shape matcher may look at besides the unit's geometry.
type scope struct {
	view   *models.ClassifiedView
	tuning rules.Tuning
}

type shapeFunc func(sc *scope, p rules.ElementPattern, items []item) []match

var shapes = map[rules.ShapeClass]shapeFunc{
	rules.ShapeParallelLines:    matchParallelLines,
	rules.ShapeSingleLine:       matchSingleLine,
	rules.ShapeArcLine:          matchArcLine,
	rules.ShapeFilledRectangle:  matchFilledRectangle,
	rules.ShapeFilledCircle:     matchFilledCircle,
	rules.ShapeRectangle:        matchRectangle,
	rules.ShapeOpeningRectangle: matchOpeningRectangle,
	rules.ShapeClosedPolyline:   matchClosedPolygon,
	rules.ShapeParallelSet:      matchParallelSet,
}

// runPattern returns disjoint matches over items.
func runPattern(sc *scope, p rules.ElementPattern, items []item) ([]match, error) {
	fn, ok := shapes[p.Shape]
	if !ok {
		return nil, fmt.Errorf("unknown shape class %q", p.Shape)
	}
	return fn(sc, p, items), nil
}

type lineItem struct {
	item
	line models.Line
}

// linesOf skips degenerate lines.
func linesOf(items []item) []lineItem {
	var out []lineItem
	for _, it := range items {
		if l, ok := it.prim.(models.Line); ok && l.Length() > 0 {
			out = append(out, lineItem{item: it, line: l})
		}
	}
	return out
}

// ============================================================
// Lines
// ============================================================

// matchParallelLines pairs each line with its closest parallel partner whose
// spacing falls in the pattern range and which overlaps it along its length.
func matchParallelLines(_ *scope, p rules.ElementPattern, items []item) []match {
	ls := linesOf(items)
	used := make([]bool, len(ls))
	var out []match

	for i := range ls {
		if used[i] {
			continue
		}
		a := ls[i].line
		if !p.Length.Contains(a.Length()) {
			continue
		}

		best, bestSpacing := -1, math.Inf(1)
		for j := range ls {
			if j == i || used[j] {
				continue
			}
			b := ls[j].line
			if !p.Length.Contains(b.Length()) || !geometry.LinesParallel(a, b, p.AngleTolerance) {
				continue
			}
			if geometry.ProjectionOverlap(a, b) <= 0 {
				continue
			}
			s := geometry.LineSpacing(a, b)
			if p.Spacing.Contains(s) && s < bestSpacing {
				best, bestSpacing = j, s
			}
		}
		if best < 0 {
			continue
		}

		used[i], used[best] = true, true
		length := (a.Length() + ls[best].line.Length()) / 2

		props := map[string]float64{}
		switch p.Target {
		case models.ElementWindow, models.ElementDoor:
			props[models.PropWidth] = length
			props[models.PropDepth] = bestSpacing
		default:
			props[models.PropThickness] = bestSpacing
			props[models.PropLength] = length
		}

		out = append(out, match{
			items:      []item{ls[i].item, ls[best].item},
			props:      props,
			confidence: p.BaseConfidence,
		})
	}
	return out
}

// matchSingleLine takes a lone line as a wall centreline. Thickness comes
// from a nearby dimension when one is in range.
func matchSingleLine(sc *scope, p rules.ElementPattern, items []item) []match {
	var out []match
	for _, li := range linesOf(items) {
		length := li.line.Length()
		if !p.Length.Contains(length) {
			continue
		}

		thickness := p.DefaultThickness
		if v, ok := sc.nearestDimension(li.line.Bounds(), geometry.Midpoint(li.line), p.Spacing); ok {
			thickness = v
		}

		out = append(out, match{
			items: []item{li.item},
			props: map[string]float64{
				models.PropThickness: thickness,
				models.PropLength:    length,
			},
			confidence: p.BaseConfidence,
		})
	}
	return out
}

// matchArcLine pairs a swing arc with the leaf line touching the arc start.
func matchArcLine(_ *scope, p rules.ElementPattern, items []item) []match {
	var arcs []item
	for _, it := range items {
		if _, ok := it.prim.(models.Arc); ok {
			arcs = append(arcs, it)
		}
	}
	ls := linesOf(items)
	used := make([]bool, len(ls))
	var out []match

	for _, ai := range arcs {
		arc := ai.prim.(models.Arc)
		start := arc.StartPoint()

		best, bestDist := -1, math.Inf(1)
		for j, li := range ls {
			if used[j] || !p.Length.Contains(li.line.Length()) {
				continue
			}
			d := math.Min(geometry.Distance(li.line.Start, start), geometry.Distance(li.line.End, start))
			if d <= p.EndpointTolerance && d < bestDist {
				best, bestDist = j, d
			}
		}
		if best < 0 {
			continue
		}
		used[best] = true

		swing := 1.0
		if arc.SweepAngle < 0 {
			swing = -1
		}
		out = append(out, match{
			items: []item{ai, ls[best].item},
			props: map[string]float64{
				models.PropWidth:          ls[best].line.Length(),
				models.PropSwingDirection: swing,
				models.PropSweepAngle:     math.Abs(arc.SweepAngle),
			},
			confidence: p.BaseConfidence,
		})
	}
	return out
}

// matchParallelSet finds runs of similar parallel lines at regular spacing.
func matchParallelSet(_ *scope, p rules.ElementPattern, items []item) []match {
	type candidate struct {
		k      int
		offset float64
	}

	ls := linesOf(items)
	used := make([]bool, len(ls))
	minCount := max(p.MinCount, 2)
	var out []match

	for i := range ls {
		if used[i] {
			continue
		}
		ref := ls[i].line
		refLength := ref.Length()
		if !p.Length.Contains(refLength) {
			continue
		}

		var cands []candidate
		for k := range ls {
			if used[k] {
				continue
			}
			l := ls[k].line
			if !p.Length.Contains(l.Length()) || math.Abs(l.Length()-refLength) > 0.1*refLength {
				continue
			}
			if !geometry.LinesParallel(ref, l, p.AngleTolerance) {
				continue
			}
			if geometry.ProjectionOverlap(ref, l) < 0.5*refLength {
				continue
			}
			cands = append(cands, candidate{k: k, offset: geometry.SignedOffset(geometry.Midpoint(l), ref)})
		}
		if len(cands) < minCount {
			continue
		}
		sort.SliceStable(cands, func(a, b int) bool { return cands[a].offset < cands[b].offset })

		// longest run of consecutive gaps inside the spacing range
		bestStart, bestEnd, start := 0, 0, 0
		for x := 1; x <= len(cands); x++ {
			if x < len(cands) && p.Spacing.Contains(cands[x].offset-cands[x-1].offset) {
				continue
			}
			if x-start > bestEnd-bestStart {
				bestStart, bestEnd = start, x
			}
			start = x
		}
		run := cands[bestStart:bestEnd]
		if len(run) < minCount {
			continue
		}

		its := make([]item, 0, len(run))
		gaps := make([]float64, 0, len(run)-1)
		lengths := make([]float64, 0, len(run))
		for x, c := range run {
			used[c.k] = true
			its = append(its, ls[c.k].item)
			lengths = append(lengths, ls[c.k].line.Length())
			if x > 0 {
				gaps = append(gaps, c.offset-run[x-1].offset)
			}
		}

		out = append(out, match{
			items: its,
			props: map[string]float64{
				models.PropTreadCount: float64(len(run)),
				models.PropTreadDepth: stat.Mean(gaps, nil),
				models.PropWidth:      stat.Mean(lengths, nil),
				models.PropRun:        run[len(run)-1].offset - run[0].offset,
			},
			confidence: p.BaseConfidence,
		})
	}
	return out
}

// ============================================================
// Closed shapes
// ============================================================

func matchFilledRectangle(_ *scope, p rules.ElementPattern, items []item) []match {
	var out []match
	for _, it := range items {
		r, ok := it.prim.(models.Rectangle)
		if !ok || !r.Filled {
			continue
		}
		w, h := r.Width(), r.Height()
		if !p.Size.Contains(w) || !p.Size.Contains(h) {
			continue
		}
		out = append(out, match{
			items:      []item{it},
			props:      map[string]float64{models.PropWidth: w, models.PropDepth: h},
			confidence: p.BaseConfidence,
		})
	}
	return out
}

func matchFilledCircle(_ *scope, p rules.ElementPattern, items []item) []match {
	var out []match
	for _, it := range items {
		c, ok := it.prim.(models.Circle)
		if !ok || !c.Filled {
			continue
		}
		d := 2 * c.Radius
		if !p.Size.Contains(d) {
			continue
		}
		out = append(out, match{
			items:      []item{it},
			props:      map[string]float64{models.PropDiameter: d},
			confidence: p.BaseConfidence,
		})
	}
	return out
}

// matchRectangle reads an outlined wall. In plans the short side is the
// thickness; elsewhere only upright rectangles count and the vertical side
// is the height.
func matchRectangle(sc *scope, p rules.ElementPattern, items []item) []match {
	plan := sc.view.ViewType.IsPlan()
	var out []match

	for _, it := range items {
		r, ok := it.prim.(models.Rectangle)
		if !ok || r.Filled {
			continue
		}
		w, h := r.Width(), r.Height()

		var props map[string]float64
		if plan {
			short, long := math.Min(w, h), math.Max(w, h)
			if !p.Size.Contains(short) || !p.Length.Contains(long) {
				continue
			}
			props = map[string]float64{models.PropThickness: short, models.PropLength: long}
		} else {
			if h < w || !p.Size.Contains(w) || !p.Length.Contains(h) {
				continue
			}
			props = map[string]float64{models.PropThickness: w, models.PropHeight: h}
		}

		out = append(out, match{items: []item{it}, props: props, confidence: p.BaseConfidence})
	}
	return out
}

// matchOpeningRectangle reads a window or door outline in an elevation.
// Plans carry no vertical information, so they never match.
func matchOpeningRectangle(sc *scope, p rules.ElementPattern, items []item) []match {
	if sc.view.ViewType.IsPlan() {
		return nil
	}

	var out []match
	for _, it := range items {
		r, ok := it.prim.(models.Rectangle)
		if !ok || r.Filled {
			continue
		}
		w, h := r.Width(), r.Height()
		if !p.Length.Contains(w) || !p.Height.Contains(h) {
			continue
		}
		b := r.Bounds()
		out = append(out, match{
			items: []item{it},
			props: map[string]float64{
				models.PropWidth:      w,
				models.PropHeight:     h,
				models.PropSillHeight: b.Min.Y,
				models.PropHeadHeight: b.Max.Y,
			},
			confidence: p.BaseConfidence,
		})
	}
	return out
}

// matchClosedPolygon accepts closed outlines as rooms. The label is the
// first text annotation inside the outline.
func matchClosedPolygon(sc *scope, p rules.ElementPattern, items []item) []match {
	var out []match
	for _, it := range items {
		ring := ringOf(it.prim)
		if len(ring) < 3 {
			continue
		}
		area := geometry.PolygonArea(ring)
		if area <= 0 {
			continue
		}

		label := sc.roomLabel(ring)
		if p.RequiresRoomTag && sc.tuning.EnforceRoomTags && label == "" {
			continue
		}

		out = append(out, match{
			items: []item{it},
			props: map[string]float64{
				models.PropArea:      area,
				models.PropPerimeter: geometry.Perimeter(ring),
			},
			confidence: p.BaseConfidence,
			label:      label,
		})
	}
	return out
}

func ringOf(p models.Primitive) []models.Point {
	switch v := p.(type) {
	case models.Polyline:
		if v.IsClosed() {
			return v.Ring()
		}
	case models.Rectangle:
		if !v.Filled {
			b := v.Bounds()
			return []models.Point{
				b.Min,
				{X: b.Max.X, Y: b.Min.Y},
				b.Max,
				{X: b.Min.X, Y: b.Max.Y},
			}
		}
	}
	return nil
}

// ============================================================
// Annotations
// ============================================================

// nearestDimension returns the value of the dimension closest to at whose
// value lies in accept and whose position is near bounds.
func (sc *scope) nearestDimension(bounds models.Box, at models.Point, accept rules.Range) (float64, bool) {
	area := bounds.Expand(sc.tuning.DimensionBoxTolerance)
	best, bestDist, found := 0.0, math.Inf(1), false

	for _, a := range sc.view.Annotations {
		if !a.IsDimension() || !area.Contains(a.Position) || !accept.Contains(*a.Value) {
			continue
		}
		if d := geometry.Distance(a.Position, at); d < bestDist {
			best, bestDist, found = *a.Value, d, true
		}
	}
	return best, found
}

func (sc *scope) roomLabel(ring []models.Point) string {
	for _, a := range sc.view.Annotations {
		if a.IsDimension() || a.Text == "" {
			continue
		}
		if geometry.PointInPolygon(a.Position, ring) {
			return a.Text
		}
	}
	return ""
}
