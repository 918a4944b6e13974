// Package matcher recognizes building elements in the geometry of one view.
//
// Geometry is split into (view, layer) units. Inside a unit the element
// types of the view rule are tried in priority order, and for each type its
// patterns by descending base confidence. Every accepted match removes its
// primitives from the unit, so a later pattern never sees them. Units are
// independent and run on a bounded worker pool.
package matcher

import (
	"context"
	"fmt"
	"maps"
	"runtime"
	"sort"

	"drawing-interpreter/internal/interpreter/geometry"
	"drawing-interpreter/internal/interpreter/models"
	"drawing-interpreter/internal/interpreter/rules"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Failure describes one element category that failed inside a unit.
type Failure struct {
	ViewName    string
	Layer       string
	ElementType models.ElementType
	Err         error
}

type Options struct {
	// ProcessUnmappedLayers lets layers with no mapping try every element
	// type of the view rule.
	ProcessUnmappedLayers bool
	// Workers bounds concurrent units. Zero means GOMAXPROCS.
	Workers int
	// OnFailure is called for every failed category. It must not block.
	OnFailure func(Failure)
}

type Matcher struct {
	registry *rules.Registry
	tuning   rules.Tuning
	opts     Options
	log      *zap.Logger
}

func New(registry *rules.Registry, tuning rules.Tuning, opts Options, log *zap.Logger) *Matcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{registry: registry, tuning: tuning, opts: opts, log: log}
}

// Unit is the geometry of one layer in one view.
type Unit struct {
	View    *models.ClassifiedView
	Layer   string
	Indices []int
	Mapping rules.LayerMapping
	Mapped  bool
}

// Units groups a view's geometry by layer in order of first appearance.
func (m *Matcher) Units(view *models.ClassifiedView) []Unit {
	byLayer := make(map[string]int)
	var units []Unit

	for i, p := range view.Geometry {
		layer := p.Layer()
		pos, ok := byLayer[layer]
		if !ok {
			mapping, mapped := m.registry.ResolveLayer(layer)
			units = append(units, Unit{View: view, Layer: layer, Mapping: mapping, Mapped: mapped})
			pos = len(units) - 1
			byLayer[layer] = pos
		}
		units[pos].Indices = append(units[pos].Indices, i)
	}
	return units
}

// MatchViews returns the recognized elements of each view, in view order.
// Cancellation is checked before each unit starts.
func (m *Matcher) MatchViews(ctx context.Context, views []models.ClassifiedView) ([][]models.RecognizedElement, error) {
	type job struct {
		view int
		unit Unit
	}

	var jobs []job
	for i := range views {
		for _, u := range m.Units(&views[i]) {
			jobs = append(jobs, job{view: i, unit: u})
		}
	}

	results := make([][]models.RecognizedElement, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers())

	for j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[j] = m.MatchUnit(jobs[j].unit)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([][]models.RecognizedElement, len(views))
	for j, jb := range jobs {
		out[jb.view] = append(out[jb.view], results[j]...)
	}
	for i := range views {
		AssociateDimensions(out[i], views[i].Annotations, m.tuning.DimensionBoxTolerance)
	}
	return out, nil
}

// MatchView is MatchViews for a single view.
func (m *Matcher) MatchView(ctx context.Context, view models.ClassifiedView) ([]models.RecognizedElement, error) {
	out, err := m.MatchViews(ctx, []models.ClassifiedView{view})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (m *Matcher) workers() int {
	if m.opts.Workers > 0 {
		return m.opts.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// ============================================================
// Unit processing
// ============================================================

// MatchUnit runs greedy, priority ordered consumption over one unit.
func (m *Matcher) MatchUnit(u Unit) []models.RecognizedElement {
	rule, ok := m.registry.ViewRule(u.View.ViewType)
	if !ok || len(rule.Extract) == 0 {
		return nil
	}
	if !u.Mapped && !m.opts.ProcessUnmappedLayers {
		return nil
	}

	consumed := make(map[int]bool)
	var out []models.RecognizedElement

	for _, et := range rule.Extract {
		if u.Mapped && !u.Mapping.Admits(et) {
			continue
		}

		matches, err := m.matchCategory(u, et, consumed)
		if err != nil {
			m.log.Warn("pattern matching failed",
				zap.String("view", u.View.ViewName),
				zap.String("layer", u.Layer),
				zap.String("element_type", string(et)),
				zap.Error(err))
			if m.opts.OnFailure != nil {
				m.opts.OnFailure(Failure{ViewName: u.View.ViewName, Layer: u.Layer, ElementType: et, Err: err})
			}
			continue
		}

		for _, mt := range matches {
			for _, it := range mt.items {
				consumed[it.index] = true
			}
			out = append(out, m.newElement(u, mt))
		}
	}
	return out
}

// matchCategory works on a copy of consumed so a failed category leaves
// the unit untouched.
func (m *Matcher) matchCategory(u Unit, et models.ElementType, consumed map[int]bool) (matches []match, err error) {
	defer func() {
		if r := recover(); r != nil {
			matches, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	local := maps.Clone(consumed)
	sc := &scope{view: u.View, tuning: m.tuning}

	for _, p := range m.registry.PatternsFor(et) {
		found, err := runPattern(sc, p, remaining(u, local))
		if err != nil {
			return nil, fmt.Errorf("pattern %s: %w", p.ID, err)
		}
		for _, f := range found {
			f.pattern = p
			for _, it := range f.items {
				local[it.index] = true
			}
			matches = append(matches, f)
		}
	}
	return matches, nil
}

func remaining(u Unit, consumed map[int]bool) []item {
	items := make([]item, 0, len(u.Indices))
	for _, idx := range u.Indices {
		if consumed[idx] {
			continue
		}
		items = append(items, item{index: idx, prim: u.View.Geometry[idx]})
	}
	return items
}

func (m *Matcher) newElement(u Unit, mt match) models.RecognizedElement {
	geom := make(models.Primitives, 0, len(mt.items))
	indices := make([]int, 0, len(mt.items))
	for _, it := range mt.items {
		geom = append(geom, it.prim)
		indices = append(indices, it.index)
	}
	sort.Ints(indices)

	return models.RecognizedElement{
		ID:            uuid.NewString(),
		Type:          mt.pattern.Target,
		ViewType:      u.View.ViewType,
		ViewName:      u.View.ViewName,
		Layer:         u.Layer,
		PatternID:     mt.pattern.ID,
		Confidence:    geometry.Clamp01(mt.confidence),
		Bounds:        models.BoundsOf(geom),
		Geometry:      geom,
		SourceIndices: indices,
		Properties:    mt.props,
		Label:         mt.label,
	}
}
