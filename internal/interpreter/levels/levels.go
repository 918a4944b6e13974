// Package levels reads level datums out of section views.
package levels

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"drawing-interpreter/internal/interpreter/geometry"
	"drawing-interpreter/internal/interpreter/models"
	"drawing-interpreter/internal/interpreter/rules"

	"go.uber.org/zap"
)

const (
	GroundFloor = "Ground Floor"
	FirstFloor  = "First Floor"
	SecondFloor = "Second Floor"
	Roof        = "Roof"
	Basement    = "Basement"

	// RoofIndex sorts the roof above any numbered level.
	RoofIndex = 99
)

type fragment struct {
	pattern *regexp.Regexp
	name    string
	index   int
}

// Checked in order; the first hit wins. The short abbreviations must be
// whole words: "ff" inside "office" or "gl" inside "glazing" is not a
// level, and "FFL" is a finished floor level mark, not the first floor.
var fragments = []fragment{
	{regexp.MustCompile(`ground|\bgl\b|\bgf\b`), GroundFloor, 0},
	{regexp.MustCompile(`first|1st|\bff\b`), FirstFloor, 1},
	{regexp.MustCompile(`second|2nd`), SecondFloor, 2},
	{regexp.MustCompile(`roof`), Roof, RoofIndex},
	{regexp.MustCompile(`basement|\bbmt\b`), Basement, -1},
}

var numberedLevel = regexp.MustCompile(`level\s*(\d+)`)

// ParseLevelName maps annotation text to a level name and ordinal index.
func ParseLevelName(text string) (string, int, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return "", 0, false
	}
	for _, f := range fragments {
		if f.pattern.MatchString(lower) {
			return f.name, f.index, true
		}
	}
	if m := numberedLevel.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return fmt.Sprintf("Level %d", n), n, true
		}
	}
	return "", 0, false
}

// Defaults is returned when no section yields a level.
func Defaults(firstFloorElevation float64) []models.LevelDefinition {
	return []models.LevelDefinition{
		{Name: GroundFloor, Elevation: 0, Index: 0},
		{Name: FirstFloor, Elevation: firstFloorElevation, Index: 1},
	}
}

type Extractor struct {
	tuning rules.Tuning
	log    *zap.Logger
}

func NewExtractor(tuning rules.Tuning, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{tuning: tuning, log: log}
}

// Extract scans the section views among views and returns levels sorted
// by elevation. When a level index shows up more than once the first
// occurrence wins.
func (e *Extractor) Extract(views []models.ClassifiedView) []models.LevelDefinition {
	var found []models.LevelDefinition
	seen := make(map[int]bool)

	for _, v := range views {
		if v.ViewType != models.ViewSection {
			continue
		}
		for _, lvl := range e.fromSection(v) {
			if seen[lvl.Index] {
				e.log.Debug("duplicate level ignored",
					zap.String("view", v.ViewName),
					zap.String("level", lvl.Name),
					zap.Float64("elevation", lvl.Elevation))
				continue
			}
			seen[lvl.Index] = true
			found = append(found, lvl)
		}
	}

	if len(found) == 0 {
		e.log.Debug("no level datums found, using defaults")
		return Defaults(e.tuning.DefaultFirstFloorElevation)
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].Elevation != found[j].Elevation {
			return found[i].Elevation < found[j].Elevation
		}
		return found[i].Index < found[j].Index
	})
	return found
}

func (e *Extractor) fromSection(view models.ClassifiedView) []models.LevelDefinition {
	var datums []float64
	for _, p := range view.Geometry {
		l, ok := p.(models.Line)
		if !ok || l.Length() == 0 {
			continue
		}
		if geometry.IsHorizontal(l, e.tuning.HorizontalTolerance) {
			datums = append(datums, (l.Start.Y+l.End.Y)/2)
		}
	}
	sort.Float64s(datums)

	var out []models.LevelDefinition
	for _, y := range datums {
		text, ok := e.nearestText(view.Annotations, y)
		if !ok {
			continue
		}
		name, index, ok := ParseLevelName(text)
		if !ok {
			continue
		}
		out = append(out, models.LevelDefinition{Name: name, Elevation: y, Index: index})
	}
	return out
}

// nearestText returns the text annotation vertically closest to y within
// the configured distance.
func (e *Extractor) nearestText(annotations []models.Annotation, y float64) (string, bool) {
	best := math.Inf(1)
	text := ""
	for _, a := range annotations {
		if strings.TrimSpace(a.Text) == "" {
			continue
		}
		d := math.Abs(a.Position.Y - y)
		if d <= e.tuning.LevelAnnotationDistance && d < best {
			best = d
			text = a.Text
		}
	}
	return text, text != ""
}
