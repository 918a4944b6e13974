// Package geometry holds the tolerance-based tests the interpreter runs on
// drawing primitives. All angles are in degrees.
package geometry

import (
	"math"

	"drawing-interpreter/internal/interpreter/models"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r2"
)

const epsilon = 1e-9

func vec(p models.Point) r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

func Distance(p1, p2 models.Point) float64 {
	return r2.Norm(r2.Sub(vec(p1), vec(p2)))
}

// Angle returns the line direction folded into [0, 180).
func Angle(l models.Line) float64 {
	d := r2.Sub(vec(l.End), vec(l.Start))
	deg := math.Atan2(d.Y, d.X) * 180 / math.Pi
	deg = math.Mod(deg, 180)
	if deg < 0 {
		deg += 180
	}
	if AlmostEqual(deg, 180) {
		deg = 0
	}
	return deg
}

// AngleDifference is the undirected difference of two line angles, in [0, 90].
func AngleDifference(a, b float64) float64 {
	diff := math.Abs(math.Mod(a-b, 180))
	return math.Min(diff, 180-diff)
}

// AreParallel reports whether two line angles differ by at most tolerance.
func AreParallel(a, b, tolerance float64) bool {
	return AngleDifference(a, b) <= tolerance+epsilon
}

// LinesParallel is AreParallel for two lines.
func LinesParallel(a, b models.Line, tolerance float64) bool {
	return AreParallel(Angle(a), Angle(b), tolerance)
}

// PerpendicularDistance is the distance from p to the infinite line through l.
func PerpendicularDistance(p models.Point, l models.Line) float64 {
	d := r2.Sub(vec(l.End), vec(l.Start))
	n := r2.Norm(d)
	if n == 0 {
		return Distance(p, l.Start)
	}
	return math.Abs(r2.Cross(d, r2.Sub(vec(p), vec(l.Start)))) / n
}

// SignedOffset is PerpendicularDistance with the sign telling which side of l
// the point lies on.
func SignedOffset(p models.Point, l models.Line) float64 {
	d := r2.Sub(vec(l.End), vec(l.Start))
	n := r2.Norm(d)
	if n == 0 {
		return 0
	}
	return r2.Cross(d, r2.Sub(vec(p), vec(l.Start))) / n
}

// LineSpacing measures the gap between two parallel lines from b's midpoint.
func LineSpacing(a, b models.Line) float64 {
	return PerpendicularDistance(Midpoint(b), a)
}

func Midpoint(l models.Line) models.Point {
	return models.Point{X: (l.Start.X + l.End.X) / 2, Y: (l.Start.Y + l.End.Y) / 2}
}

// ProjectionOverlap is the length along a shared by a and b projected onto a.
func ProjectionOverlap(a, b models.Line) float64 {
	d := r2.Sub(vec(a.End), vec(a.Start))
	n := r2.Norm(d)
	if n == 0 {
		return 0
	}
	u := r2.Scale(1/n, d)
	origin := vec(a.Start)

	s1 := r2.Dot(r2.Sub(vec(b.Start), origin), u)
	s2 := r2.Dot(r2.Sub(vec(b.End), origin), u)
	if s1 > s2 {
		s1, s2 = s2, s1
	}
	return math.Max(0, math.Min(n, s2)-math.Max(0, s1))
}

// IsHorizontal reports whether the endpoints differ in Y by less than tolerance.
func IsHorizontal(l models.Line, tolerance float64) bool {
	return math.Abs(l.End.Y-l.Start.Y) < tolerance
}

// ============================================================
// Polygons
// ============================================================

// PolygonArea uses the shoelace formula; the result is unsigned.
func PolygonArea(pts []models.Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += r2.Cross(vec(pts[i]), vec(pts[j]))
	}
	return math.Abs(sum) / 2
}

func Perimeter(pts []models.Point) float64 {
	if len(pts) < 2 {
		return 0
	}
	var total float64
	for i := range pts {
		total += Distance(pts[i], pts[(i+1)%len(pts)])
	}
	return total
}

// PointInPolygon tests containment by ray casting.
func PointInPolygon(p models.Point, polygon []models.Point) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	n := len(polygon)
	for i := 0; i < n; i++ {
		pi, pj := polygon[i], polygon[(i+1)%n]
		if (pi.Y > p.Y) != (pj.Y > p.Y) &&
			p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X {
			inside = !inside
		}
	}
	return inside
}

// ============================================================
// Scalars
// ============================================================

func AlmostEqual(a, b float64) bool {
	return scalar.EqualWithinAbs(a, b, 1e-6)
}

func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Clamp01 clamps a confidence score.
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// InRange is an inclusive range test.
func InRange(v, lo, hi float64) bool {
	return v >= lo-epsilon && v <= hi+epsilon
}
