package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// ============================================================
// Geometry primitives
// ============================================================

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Kind tags a primitive on the wire.
type Kind string

const (
	KindLine      Kind = "line"
	KindArc       Kind = "arc"
	KindCircle    Kind = "circle"
	KindRectangle Kind = "rectangle"
	KindPolyline  Kind = "polyline"
)

// Primitive is one immutable piece of source geometry. The set of
// implementations is closed: Line, Arc, Circle, Rectangle, Polyline.
type Primitive interface {
	Kind() Kind
	Layer() string
	Bounds() Box
	isPrimitive()
}

type Line struct {
	LayerName string `json:"layer"`
	Start     Point  `json:"start"`
	End       Point  `json:"end"`
}

// Arc angles are in degrees. A positive sweep runs counter-clockwise.
type Arc struct {
	LayerName  string  `json:"layer"`
	Center     Point   `json:"center"`
	Radius     float64 `json:"radius"`
	StartAngle float64 `json:"start_angle"`
	SweepAngle float64 `json:"sweep_angle"`
}

type Circle struct {
	LayerName string  `json:"layer"`
	Center    Point   `json:"center"`
	Radius    float64 `json:"radius"`
	Filled    bool    `json:"filled,omitempty"`
}

// Rectangle is axis aligned.
type Rectangle struct {
	LayerName string `json:"layer"`
	Min       Point  `json:"min"`
	Max       Point  `json:"max"`
	Filled    bool   `json:"filled,omitempty"`
}

type Polyline struct {
	LayerName string  `json:"layer"`
	Vertices  []Point `json:"vertices"`
	Closed    bool    `json:"closed,omitempty"`
	Filled    bool    `json:"filled,omitempty"`
}

func (Line) Kind() Kind      { return KindLine }
func (Arc) Kind() Kind       { return KindArc }
func (Circle) Kind() Kind    { return KindCircle }
func (Rectangle) Kind() Kind { return KindRectangle }
func (Polyline) Kind() Kind  { return KindPolyline }

func (l Line) Layer() string      { return l.LayerName }
func (a Arc) Layer() string       { return a.LayerName }
func (c Circle) Layer() string    { return c.LayerName }
func (r Rectangle) Layer() string { return r.LayerName }
func (p Polyline) Layer() string  { return p.LayerName }

func (Line) isPrimitive()      {}
func (Arc) isPrimitive()       {}
func (Circle) isPrimitive()    {}
func (Rectangle) isPrimitive() {}
func (Polyline) isPrimitive()  {}

func (l Line) Bounds() Box {
	return BoxOf(l.Start, l.End)
}

func (l Line) Length() float64 {
	return math.Hypot(l.End.X-l.Start.X, l.End.Y-l.Start.Y)
}

// Bounds samples the arc; exact extrema are not needed for tolerance tests.
func (a Arc) Bounds() Box {
	const steps = 16
	pts := make([]Point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		pts = append(pts, a.PointAt(a.StartAngle+a.SweepAngle*float64(i)/steps))
	}
	return BoxOf(pts...)
}

func (a Arc) StartPoint() Point {
	return a.PointAt(a.StartAngle)
}

func (a Arc) EndPoint() Point {
	return a.PointAt(a.StartAngle + a.SweepAngle)
}

// PointAt returns the point on the arc's circle at angle deg.
func (a Arc) PointAt(deg float64) Point {
	rad := deg * math.Pi / 180
	return Point{
		X: a.Center.X + a.Radius*math.Cos(rad),
		Y: a.Center.Y + a.Radius*math.Sin(rad),
	}
}

func (c Circle) Bounds() Box {
	return Box{
		Min: Point{X: c.Center.X - c.Radius, Y: c.Center.Y - c.Radius},
		Max: Point{X: c.Center.X + c.Radius, Y: c.Center.Y + c.Radius},
	}
}

func (r Rectangle) Bounds() Box {
	return BoxOf(r.Min, r.Max)
}

func (r Rectangle) Width() float64  { return math.Abs(r.Max.X - r.Min.X) }
func (r Rectangle) Height() float64 { return math.Abs(r.Max.Y - r.Min.Y) }

func (p Polyline) Bounds() Box {
	return BoxOf(p.Vertices...)
}

// IsClosed reports whether the polyline is flagged closed or ends where it starts.
func (p Polyline) IsClosed() bool {
	if p.Closed {
		return true
	}
	n := len(p.Vertices)
	return n > 3 && p.Vertices[0] == p.Vertices[n-1]
}

// Ring returns the vertices without a duplicated closing point.
func (p Polyline) Ring() []Point {
	pts := p.Vertices
	if n := len(pts); n > 1 && pts[0] == pts[n-1] {
		pts = pts[:n-1]
	}
	return pts
}

// ============================================================
// Bounding boxes
// ============================================================

type Box struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// BoxOf returns the smallest box containing pts. An empty list yields a zero box.
func BoxOf(pts ...Point) Box {
	if len(pts) == 0 {
		return Box{}
	}
	b := Box{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
	}
	return b
}

func (b Box) Width() float64  { return b.Max.X - b.Min.X }
func (b Box) Height() float64 { return b.Max.Y - b.Min.Y }

func (b Box) Center() Point {
	return Point{X: (b.Min.X + b.Max.X) / 2, Y: (b.Min.Y + b.Max.Y) / 2}
}

func (b Box) Union(o Box) Box {
	return BoxOf(b.Min, b.Max, o.Min, o.Max)
}

// Expand grows the box by d on every side.
func (b Box) Expand(d float64) Box {
	return Box{
		Min: Point{X: b.Min.X - d, Y: b.Min.Y - d},
		Max: Point{X: b.Max.X + d, Y: b.Max.Y + d},
	}
}

func (b Box) Contains(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// BoundsOf unions the bounds of every primitive.
func BoundsOf(prims []Primitive) Box {
	if len(prims) == 0 {
		return Box{}
	}
	b := prims[0].Bounds()
	for _, p := range prims[1:] {
		b = b.Union(p.Bounds())
	}
	return b
}

// ============================================================
// Wire format
// ============================================================

// Primitives is a list of primitives encoded as {"type": ..., ...} objects.
type Primitives []Primitive

func (ps Primitives) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(ps))
	for _, p := range ps {
		raw, err := encodePrimitive(p)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

func (ps *Primitives) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	list := make(Primitives, 0, len(raws))
	for i, raw := range raws {
		p, err := decodePrimitive(raw)
		if err != nil {
			return fmt.Errorf("geometry[%d]: %w", i, err)
		}
		list = append(list, p)
	}
	*ps = list
	return nil
}

func encodePrimitive(p Primitive) ([]byte, error) {
	switch v := p.(type) {
	case Line:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Line
		}{KindLine, v})
	case Arc:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Arc
		}{KindArc, v})
	case Circle:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Circle
		}{KindCircle, v})
	case Rectangle:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Rectangle
		}{KindRectangle, v})
	case Polyline:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			Polyline
		}{KindPolyline, v})
	}
	return nil, fmt.Errorf("unknown primitive %T", p)
}

func decodePrimitive(raw json.RawMessage) (Primitive, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}

	switch head.Type {
	case KindLine:
		var v Line
		err := json.Unmarshal(raw, &v)
		return v, err
	case KindArc:
		var v Arc
		err := json.Unmarshal(raw, &v)
		return v, err
	case KindCircle:
		var v Circle
		err := json.Unmarshal(raw, &v)
		return v, err
	case KindRectangle:
		var v Rectangle
		err := json.Unmarshal(raw, &v)
		return v, err
	case KindPolyline:
		var v Polyline
		err := json.Unmarshal(raw, &v)
		return v, err
	case "":
		return nil, fmt.Errorf("missing primitive type")
	}
	return nil, fmt.Errorf("unknown primitive type %q", head.Type)
}
