package parser

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"drawing-interpreter/internal/interpreter/models"
)

// ============================================================
// Path Parser
// ============================================================

var (
	commandRe = regexp.MustCompile(`([MmLlHhVvAaZz])([^MmLlHhVvAaZz]*)`)
	numberRe  = regexp.MustCompile(`[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`)
)

// pathBuilder collects primitives in SVG space while walking path data.
type pathBuilder struct {
	layer  string
	filled bool
	out    []models.Primitive
	run    []models.Point
	start  models.Point
	cur    models.Point
}

// ParsePath converts SVG path data into primitives. Straight runs become a
// Line (two points) or a Polyline; each circular arc becomes an Arc.
// Supported commands are M, L, H, V, A and Z in both cases. Coordinates
// stay in SVG space.
func ParsePath(d, layer string, filled bool) ([]models.Primitive, error) {
	d = strings.TrimSpace(d)
	if d == "" {
		return nil, fmt.Errorf("empty path")
	}

	b := &pathBuilder{layer: layer, filled: filled}
	for _, m := range commandRe.FindAllStringSubmatch(d, -1) {
		cmd := m[1]
		args, err := parseNumbers(m[2])
		if err != nil {
			return nil, err
		}
		if err := b.apply(cmd, args); err != nil {
			return nil, fmt.Errorf("path command %s: %w", cmd, err)
		}
	}
	b.flush(false)
	return b.out, nil
}

func (b *pathBuilder) apply(cmd string, args []float64) error {
	rel := cmd == strings.ToLower(cmd)

	switch strings.ToUpper(cmd) {
	case "M":
		if len(args) < 2 || len(args)%2 != 0 {
			return fmt.Errorf("want coordinate pairs, got %d values", len(args))
		}
		b.flush(false)
		b.cur = b.offset(rel, args[0], args[1])
		b.start = b.cur
		b.run = []models.Point{b.cur}
		// extra pairs are implicit line-tos
		for i := 2; i < len(args); i += 2 {
			b.lineTo(b.offset(rel, args[i], args[i+1]))
		}

	case "L":
		if len(args) < 2 || len(args)%2 != 0 {
			return fmt.Errorf("want coordinate pairs, got %d values", len(args))
		}
		for i := 0; i < len(args); i += 2 {
			b.lineTo(b.offset(rel, args[i], args[i+1]))
		}

	case "H":
		if len(args) == 0 {
			return fmt.Errorf("missing x")
		}
		for _, x := range args {
			if rel {
				x += b.cur.X
			}
			b.lineTo(models.Point{X: x, Y: b.cur.Y})
		}

	case "V":
		if len(args) == 0 {
			return fmt.Errorf("missing y")
		}
		for _, y := range args {
			if rel {
				y += b.cur.Y
			}
			b.lineTo(models.Point{X: b.cur.X, Y: y})
		}

	case "A":
		if len(args) == 0 || len(args)%7 != 0 {
			return fmt.Errorf("want groups of 7 values, got %d", len(args))
		}
		for i := 0; i < len(args); i += 7 {
			a := args[i : i+7]
			b.arcTo(a[0], a[1], a[3] != 0, a[4] != 0, b.offset(rel, a[5], a[6]))
		}

	case "Z":
		if len(b.run) > 0 {
			b.flush(true)
		}
		b.cur = b.start
		b.run = []models.Point{b.cur}
	}
	return nil
}

func (b *pathBuilder) offset(rel bool, x, y float64) models.Point {
	if rel {
		return models.Point{X: b.cur.X + x, Y: b.cur.Y + y}
	}
	return models.Point{X: x, Y: y}
}

func (b *pathBuilder) lineTo(p models.Point) {
	if len(b.run) == 0 {
		b.run = []models.Point{b.cur}
	}
	b.run = append(b.run, p)
	b.cur = p
}

// flush emits the pending straight run.
func (b *pathBuilder) flush(closed bool) {
	run := b.run
	b.run = nil
	if len(run) < 2 {
		return
	}
	if closed && run[0] != run[len(run)-1] {
		run = append(run, run[0])
	}
	if len(run) == 2 {
		b.out = append(b.out, models.Line{LayerName: b.layer, Start: run[0], End: run[1]})
		return
	}
	b.out = append(b.out, models.Polyline{
		LayerName: b.layer,
		Vertices:  run,
		Closed:    closed,
		Filled:    b.filled && closed,
	})
}

// arcTo converts an endpoint arc to center form. Elliptical arcs are
// treated as circular with the larger radius.
func (b *pathBuilder) arcTo(rx, ry float64, large, sweep bool, end models.Point) {
	from := b.cur
	r := math.Max(math.Abs(rx), math.Abs(ry))
	if from == end {
		return
	}
	if r == 0 {
		b.lineTo(end)
		return
	}

	b.flush(false)

	hx, hy := (from.X-end.X)/2, (from.Y-end.Y)/2
	if lambda := (hx*hx + hy*hy) / (r * r); lambda > 1 {
		r *= math.Sqrt(lambda)
	}

	q := hx*hx + hy*hy
	coef := math.Sqrt(math.Max(0, (r*r-q)/q))
	if large == sweep {
		coef = -coef
	}
	cxp, cyp := coef*hy, -coef*hx
	center := models.Point{X: cxp + (from.X+end.X)/2, Y: cyp + (from.Y+end.Y)/2}

	ux, uy := (hx-cxp)/r, (hy-cyp)/r
	vx, vy := (-hx-cxp)/r, (-hy-cyp)/r
	theta := math.Atan2(uy, ux)
	delta := math.Atan2(ux*vy-uy*vx, ux*vx+uy*vy)
	if !sweep && delta > 0 {
		delta -= 2 * math.Pi
	} else if sweep && delta < 0 {
		delta += 2 * math.Pi
	}

	b.out = append(b.out, models.Arc{
		LayerName:  b.layer,
		Center:     center,
		Radius:     r,
		StartAngle: theta * 180 / math.Pi,
		SweepAngle: delta * 180 / math.Pi,
	})
	b.cur = end
	b.run = []models.Point{end}
}

// parseNumbers reads every number in s; commas and whitespace separate them.
func parseNumbers(s string) ([]float64, error) {
	tokens := numberRe.FindAllString(s, -1)
	rest := strings.TrimSpace(numberRe.ReplaceAllString(s, ""))
	if strings.Trim(rest, ", \t\r\n") != "" {
		return nil, fmt.Errorf("invalid number list %q", strings.TrimSpace(s))
	}

	out := make([]float64, 0, len(tokens))
	for _, tok := range tokens {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", tok, err)
		}
		out = append(out, v)
	}
	return out, nil
}
