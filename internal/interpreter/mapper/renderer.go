// Package mapper draws interpretation results back to SVG for review.
package mapper

import (
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	"drawing-interpreter/internal/interpreter/models"
)

// drawOrder puts large outlines below the small elements drawn over them.
var drawOrder = []models.ElementType{
	models.ElementRoom,
	models.ElementWall,
	models.ElementStair,
	models.ElementColumn,
	models.ElementWindow,
	models.ElementDoor,
}

var strokes = map[models.ElementType]string{
	models.ElementRoom:   "#888",
	models.ElementWall:   "#000",
	models.ElementStair:  "#9467bd",
	models.ElementColumn: "#444",
	models.ElementWindow: "#1f77b4",
	models.ElementDoor:   "#d62728",
}

// ============================================================
// Renderer
// ============================================================

type Renderer struct {
	margin float64
}

// NewRenderer pads the drawing by margin on every side; margin <= 0 uses 500.
func NewRenderer(margin float64) *Renderer {
	if margin <= 0 {
		margin = 500
	}
	return &Renderer{margin: margin}
}

// PlanViewName names the single view group of a rendered result.
const PlanViewName = "Merged Plan"

// Render draws the plan footprint of every merged element inside one view
// group, one layer group per element type. Standalone elements have no
// footprint and are skipped.
func (r *Renderer) Render(result *models.DrawingInterpretationResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("result is nil")
	}

	byType := make(map[models.ElementType][]models.MergedElement)
	var footprints []models.Box
	for _, m := range result.MergedElements {
		if m.Standalone {
			continue
		}
		byType[m.Type] = append(byType[m.Type], m)
		footprints = append(footprints, footprint(m))
	}

	minX, minY, width, height := r.viewBox(footprints)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" data-sheet="%s" viewBox="%s %s %s %s">`,
		html.EscapeString(result.SheetName),
		formatFloat(minX), formatFloat(minY), formatFloat(width), formatFloat(height))
	b.WriteString("\n")
	fmt.Fprintf(&b, `  <g data-view="%s">`+"\n", PlanViewName)

	for _, t := range drawOrder {
		elements := byType[t]
		if len(elements) == 0 {
			continue
		}
		fmt.Fprintf(&b, `    <g data-layer="%s" stroke="%s" fill="none">`+"\n", t, strokes[t])
		for _, m := range elements {
			for _, elem := range r.renderElement(m) {
				b.WriteString("      ")
				b.WriteString(elem)
				b.WriteString("\n")
			}
		}
		b.WriteString("    </g>\n")
	}

	b.WriteString("  </g>\n")
	b.WriteString(`</svg>`)
	return b.String(), nil
}

// ============================================================
// Element renderers
// ============================================================

func (r *Renderer) renderElement(m models.MergedElement) []string {
	fp := footprint(m)
	x, y := fp.Min.X, -fp.Max.Y
	w, h := fp.Width(), fp.Height()

	switch m.Type {
	case models.ElementColumn:
		if d, ok := m.Properties[models.PropDiameter]; ok && d > 0 {
			c := fp.Center()
			return []string{fmt.Sprintf(`<circle id="%s" cx="%s" cy="%s" r="%s" fill="%s" />`,
				m.ID, formatFloat(c.X), formatFloat(-c.Y), formatFloat(d/2), strokes[m.Type])}
		}
		return []string{rect(m.ID, x, y, w, h, fmt.Sprintf(` fill="%s"`, strokes[m.Type]))}

	case models.ElementRoom:
		out := []string{rect(m.ID, x, y, w, h, ` stroke-dasharray="100 50"`)}
		if m.Label != "" {
			c := fp.Center()
			out = append(out, fmt.Sprintf(`<text x="%s" y="%s" text-anchor="middle">%s</text>`,
				formatFloat(c.X), formatFloat(-c.Y), html.EscapeString(m.Label)))
		}
		return out
	}
	return []string{rect(m.ID, x, y, w, h, "")}
}

func rect(id string, x, y, w, h float64, extra string) string {
	return fmt.Sprintf(`<rect id="%s" x="%s" y="%s" width="%s" height="%s"%s />`,
		id, formatFloat(x), formatFloat(y), formatFloat(w), formatFloat(h), extra)
}

// ============================================================
// Geometry helpers
// ============================================================

func footprint(m models.MergedElement) models.Box {
	return models.Box{
		Min: models.Point{X: m.Volume.Min.X, Y: m.Volume.Min.Y},
		Max: models.Point{X: m.Volume.Max.X, Y: m.Volume.Max.Y},
	}
}

// viewBox returns the padded extent in SVG space, where Y runs down.
func (r *Renderer) viewBox(boxes []models.Box) (minX, minY, width, height float64) {
	if len(boxes) == 0 {
		return 0, 0, 1000, 1000
	}
	all := boxes[0]
	for _, b := range boxes[1:] {
		all = all.Union(b)
	}
	all = all.Expand(r.margin)

	width = math.Max(all.Width(), 1)
	height = math.Max(all.Height(), 1)
	return all.Min.X, -all.Max.Y, width, height
}

// ============================================================
// Formatting helpers
// ============================================================

func formatFloat(val float64) string {
	if val == 0 {
		return "0"
	}
	return strconv.FormatFloat(val, 'f', -1, 64)
}
