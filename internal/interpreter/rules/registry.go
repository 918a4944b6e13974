// Package rules holds the interpreter's configuration data: element
// patterns, layer mappings and per-view interpretation rules. A Registry is
// built once and only read afterwards, so it is safe for concurrent use.
package rules

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"drawing-interpreter/internal/interpreter/geometry"
	"drawing-interpreter/internal/interpreter/models"
)

// ============================================================
// Patterns
// ============================================================

type ShapeClass string

const (
	ShapeParallelLines    ShapeClass = "ParallelLines"
	ShapeSingleLine       ShapeClass = "SingleLine"
	ShapeArcLine          ShapeClass = "ArcLine"
	ShapeFilledRectangle  ShapeClass = "FilledRectangle"
	ShapeFilledCircle     ShapeClass = "FilledCircle"
	ShapeRectangle        ShapeClass = "Rectangle"
	ShapeOpeningRectangle ShapeClass = "OpeningRectangle"
	ShapeClosedPolyline   ShapeClass = "ClosedPolyline"
	ShapeParallelSet      ShapeClass = "ParallelSet"
)

// Range is inclusive. A zero Max leaves the range open above.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains is inclusive; a non-positive Max leaves the range open above.
func (r Range) Contains(v float64) bool {
	if r.Max <= 0 {
		return geometry.InRange(v, r.Min, math.Inf(1))
	}
	return geometry.InRange(v, r.Min, r.Max)
}

type ElementPattern struct {
	ID             string             `json:"id"`
	Target         models.ElementType `json:"target"`
	Shape          ShapeClass         `json:"shape"`
	BaseConfidence float64            `json:"base_confidence"`

	AngleTolerance    float64 `json:"angle_tolerance,omitempty"`
	EndpointTolerance float64 `json:"endpoint_tolerance,omitempty"`
	Spacing           Range   `json:"spacing"` // line gap: wall thickness, tread depth
	Length            Range   `json:"length"`  // line length or opening width
	Size              Range   `json:"size"`    // short side or diameter
	Height            Range   `json:"height"`  // vertical extent of openings
	MinCount          int     `json:"min_count,omitempty"`
	DefaultThickness  float64 `json:"default_thickness,omitempty"`

	RequiresRoomTag bool `json:"requires_room_tag,omitempty"`
}

// ============================================================
// Layers and views
// ============================================================

type LayerMapping struct {
	Layer    string               `json:"layer"`
	Elements []models.ElementType `json:"elements"`
	Category string               `json:"category"`
	Priority int                  `json:"priority"`
}

// Admits reports whether the layer may carry elements of type t.
func (m LayerMapping) Admits(t models.ElementType) bool {
	for _, e := range m.Elements {
		if e == t {
			return true
		}
	}
	return false
}

type Attribute string

const (
	AttrHeight     Attribute = "Height"
	AttrBaseOffset Attribute = "BaseOffset"
	AttrSillHeight Attribute = "SillHeight"
	AttrHeadHeight Attribute = "HeadHeight"
)

type ViewRule struct {
	ViewType models.ViewType `json:"view_type"`
	// Extract lists element types in recognition priority order.
	Extract       []models.ElementType `json:"extract"`
	Supplies      []Attribute          `json:"supplies,omitempty"`
	DefaultHeight float64              `json:"default_height,omitempty"`
}

// ============================================================
// Registry
// ============================================================

type Registry struct {
	patterns []ElementPattern
	byTarget map[models.ElementType][]ElementPattern
	exact    map[string]LayerMapping
	layers   []LayerMapping
	views    map[models.ViewType]ViewRule
}

func NewRegistry(patterns []ElementPattern, layers []LayerMapping, views []ViewRule) (*Registry, error) {
	r := &Registry{
		byTarget: make(map[models.ElementType][]ElementPattern),
		exact:    make(map[string]LayerMapping),
		views:    make(map[models.ViewType]ViewRule),
	}

	seen := make(map[string]bool)
	for _, p := range patterns {
		if p.ID == "" {
			return nil, fmt.Errorf("pattern without id")
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate pattern %q", p.ID)
		}
		seen[p.ID] = true
		if p.BaseConfidence < 0 || p.BaseConfidence > 1 {
			return nil, fmt.Errorf("pattern %q: base confidence %v outside [0,1]", p.ID, p.BaseConfidence)
		}
		r.patterns = append(r.patterns, p)
		r.byTarget[p.Target] = append(r.byTarget[p.Target], p)
	}

	for target, list := range r.byTarget {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].BaseConfidence != list[j].BaseConfidence {
				return list[i].BaseConfidence > list[j].BaseConfidence
			}
			return list[i].ID < list[j].ID
		})
		r.byTarget[target] = list
	}

	for _, m := range layers {
		key := strings.ToUpper(strings.TrimSpace(m.Layer))
		if key == "" {
			return nil, fmt.Errorf("layer mapping without layer name")
		}
		if _, dup := r.exact[key]; dup {
			return nil, fmt.Errorf("duplicate layer mapping %q", m.Layer)
		}
		m.Layer = key
		r.exact[key] = m
		r.layers = append(r.layers, m)
	}
	sort.SliceStable(r.layers, func(i, j int) bool {
		a, b := r.layers[i], r.layers[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if len(a.Layer) != len(b.Layer) {
			return len(a.Layer) > len(b.Layer)
		}
		return a.Layer < b.Layer
	})

	for _, v := range views {
		r.views[v.ViewType] = v
	}

	return r, nil
}

// PatternsFor returns the patterns targeting t by descending base confidence.
func (r *Registry) PatternsFor(t models.ElementType) []ElementPattern {
	return r.byTarget[t]
}

func (r *Registry) Patterns() []ElementPattern {
	return r.patterns
}

// ResolveLayer matches the layer name exactly, then by substring. Among
// substring matches the highest priority wins, then the longest key.
func (r *Registry) ResolveLayer(layer string) (LayerMapping, bool) {
	key := strings.ToUpper(strings.TrimSpace(layer))
	if key == "" {
		return LayerMapping{}, false
	}
	if m, ok := r.exact[key]; ok {
		return m, true
	}
	for _, m := range r.layers {
		if strings.Contains(key, m.Layer) {
			return m, true
		}
	}
	return LayerMapping{}, false
}

func (r *Registry) ViewRule(vt models.ViewType) (ViewRule, bool) {
	v, ok := r.views[vt]
	return v, ok
}

// Supplies reports whether views of type vt contribute attribute a.
func (r *Registry) Supplies(vt models.ViewType, a Attribute) bool {
	for _, s := range r.views[vt].Supplies {
		if s == a {
			return true
		}
	}
	return false
}
