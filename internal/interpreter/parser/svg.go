// Package parser imports drawing sheets exported as SVG.
//
// Every top-level <g> is one view, named by data-view or id. Shapes inside
// a view become primitives; the layer comes from data-layer, then class,
// then the nearest enclosing group. <text> becomes an annotation, and a
// data-value attribute turns it into a dimension. SVG's Y axis runs down,
// so every Y coordinate is negated and model Y runs up. Transforms are not
// applied.
package parser

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"drawing-interpreter/internal/interpreter/models"
)

// ============================================================
// XML Structures
// ============================================================

// node keeps document order, which the element indices depend on.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []node     `xml:",any"`
}

func (n node) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// text concatenates character data of the node and its tspans.
func (n node) text() string {
	var sb strings.Builder
	sb.WriteString(n.Text)
	for _, c := range n.Children {
		sb.WriteString(c.text())
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// style is inherited from enclosing groups.
type style struct {
	layer string
	fill  string
}

func (s style) with(n node) style {
	if l := layerOf(n); l != "" {
		s.layer = l
	}
	if f := n.attr("fill"); f != "" {
		s.fill = f
	}
	return s
}

func (s style) filled() bool {
	return s.fill != "" && !strings.EqualFold(s.fill, "none")
}

func layerOf(n node) string {
	if l := n.attr("data-layer"); l != "" {
		return l
	}
	return n.attr("class")
}

// ============================================================
// Parser
// ============================================================

// ParseSVG reads one sheet. The sheet name comes from data-sheet on the root
// element, then <title>, then fallback.
func ParseSVG(r io.Reader, fallback string) (models.DrawingSheetInput, error) {
	var root node
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return models.DrawingSheetInput{}, fmt.Errorf("decode svg: %w", err)
	}
	if root.XMLName.Local != "svg" {
		return models.DrawingSheetInput{}, fmt.Errorf("root element is <%s>, want <svg>", root.XMLName.Local)
	}

	sheet := models.DrawingSheetInput{SheetName: root.attr("data-sheet")}
	var loose []node
	for _, c := range root.Children {
		switch c.XMLName.Local {
		case "title":
			if sheet.SheetName == "" {
				sheet.SheetName = c.text()
			}
		case "g":
			name := c.attr("data-view")
			if name == "" {
				name = c.attr("id")
			}
			if name == "" {
				name = fmt.Sprintf("View %d", len(sheet.Views)+1)
			}
			view, err := parseView(name, c.Children, style{}.with(c))
			if err != nil {
				return models.DrawingSheetInput{}, err
			}
			sheet.Views = append(sheet.Views, view)
		default:
			loose = append(loose, c)
		}
	}
	if sheet.SheetName == "" {
		sheet.SheetName = fallback
	}

	// a sheet without groups is a single view
	if len(sheet.Views) == 0 && len(loose) > 0 {
		view, err := parseView(sheet.SheetName, loose, style{}.with(root))
		if err != nil {
			return models.DrawingSheetInput{}, err
		}
		if len(view.Geometry) > 0 || len(view.Annotations) > 0 {
			sheet.Views = append(sheet.Views, view)
		}
	}
	return sheet, nil
}

func parseView(name string, children []node, inherited style) (models.DrawingViewInput, error) {
	view := models.DrawingViewInput{ViewName: name}
	if err := walk(&view, children, inherited); err != nil {
		return models.DrawingViewInput{}, fmt.Errorf("view %q: %w", name, err)
	}
	return view, nil
}

func walk(view *models.DrawingViewInput, children []node, inherited style) error {
	for _, n := range children {
		st := inherited.with(n)
		tag := n.XMLName.Local

		switch tag {
		case "g":
			if err := walk(view, n.Children, st); err != nil {
				return err
			}
			continue
		case "text":
			a, err := parseText(n)
			if err != nil {
				return fmt.Errorf("<text>: %w", err)
			}
			if a.Text != "" || a.IsDimension() {
				view.Annotations = append(view.Annotations, a)
			}
			continue
		}

		prims, err := parseShape(n, st)
		if err != nil {
			id := n.attr("id")
			if id != "" {
				return fmt.Errorf("<%s id=%q>: %w", tag, id, err)
			}
			return fmt.Errorf("<%s>: %w", tag, err)
		}
		for _, p := range prims {
			view.Geometry = append(view.Geometry, flip(p))
		}
	}
	return nil
}

// parseShape returns primitives in SVG space. Unknown tags yield nothing.
func parseShape(n node, st style) ([]models.Primitive, error) {
	switch n.XMLName.Local {
	case "line":
		v, err := numbers(n, "x1", "y1", "x2", "y2")
		if err != nil {
			return nil, err
		}
		return []models.Primitive{models.Line{
			LayerName: st.layer,
			Start:     models.Point{X: v[0], Y: v[1]},
			End:       models.Point{X: v[2], Y: v[3]},
		}}, nil

	case "rect":
		v, err := numbers(n, "x", "y", "width", "height")
		if err != nil {
			return nil, err
		}
		if v[2] < 0 || v[3] < 0 {
			return nil, fmt.Errorf("negative size %vx%v", v[2], v[3])
		}
		return []models.Primitive{models.Rectangle{
			LayerName: st.layer,
			Min:       models.Point{X: v[0], Y: v[1]},
			Max:       models.Point{X: v[0] + v[2], Y: v[1] + v[3]},
			Filled:    st.filled(),
		}}, nil

	case "circle":
		v, err := numbers(n, "cx", "cy", "r")
		if err != nil {
			return nil, err
		}
		if v[2] <= 0 {
			return nil, fmt.Errorf("radius must be positive, got %v", v[2])
		}
		return []models.Primitive{models.Circle{
			LayerName: st.layer,
			Center:    models.Point{X: v[0], Y: v[1]},
			Radius:    v[2],
			Filled:    st.filled(),
		}}, nil

	case "polyline", "polygon":
		coords, err := parseNumbers(n.attr("points"))
		if err != nil {
			return nil, err
		}
		if len(coords) < 4 || len(coords)%2 != 0 {
			return nil, fmt.Errorf("points needs at least two coordinate pairs")
		}
		pts := make([]models.Point, 0, len(coords)/2)
		for i := 0; i < len(coords); i += 2 {
			pts = append(pts, models.Point{X: coords[i], Y: coords[i+1]})
		}
		closed := n.XMLName.Local == "polygon"
		return []models.Primitive{models.Polyline{
			LayerName: st.layer,
			Vertices:  pts,
			Closed:    closed,
			Filled:    closed && st.filled(),
		}}, nil

	case "path":
		return ParsePath(n.attr("d"), st.layer, st.filled())
	}
	return nil, nil
}

func parseText(n node) (models.Annotation, error) {
	v, err := numbers(n, "x", "y")
	if err != nil {
		return models.Annotation{}, err
	}
	a := models.Annotation{
		Position: models.Point{X: v[0], Y: -v[1]},
		Text:     n.text(),
		Unit:     n.attr("data-unit"),
	}
	if s := n.attr("data-rotation"); s != "" {
		if a.Rotation, err = strconv.ParseFloat(s, 64); err != nil {
			return models.Annotation{}, fmt.Errorf("data-rotation: %w", err)
		}
	}
	if s := n.attr("data-value"); s != "" {
		value, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Annotation{}, fmt.Errorf("data-value: %w", err)
		}
		a.Value = &value
	}
	return a, nil
}

// numbers reads the named attributes. A missing attribute is zero, as in SVG.
func numbers(n node, names ...string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, name := range names {
		s := strings.TrimSuffix(n.attr(name), "px")
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: invalid number %q", name, s)
		}
		out[i] = v
	}
	return out, nil
}

// ============================================================
// Coordinates
// ============================================================

// flip mirrors a primitive from SVG space into model space.
func flip(p models.Primitive) models.Primitive {
	switch g := p.(type) {
	case models.Line:
		g.Start, g.End = flipPoint(g.Start), flipPoint(g.End)
		return g
	case models.Arc:
		g.Center = flipPoint(g.Center)
		g.StartAngle, g.SweepAngle = -g.StartAngle, -g.SweepAngle
		return g
	case models.Circle:
		g.Center = flipPoint(g.Center)
		return g
	case models.Rectangle:
		g.Min, g.Max = models.Point{X: g.Min.X, Y: -g.Max.Y}, models.Point{X: g.Max.X, Y: -g.Min.Y}
		return g
	case models.Polyline:
		pts := make([]models.Point, len(g.Vertices))
		for i, v := range g.Vertices {
			pts[i] = flipPoint(v)
		}
		g.Vertices = pts
		return g
	}
	return p
}

func flipPoint(p models.Point) models.Point {
	return models.Point{X: p.X, Y: -p.Y}
}
