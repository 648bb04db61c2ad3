// Package geom holds the continuous 2D geometry shared by workers, tasks and
// the communication graph.
package geom

import "math"

// Pt is a convenience constructor for Point.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Point represents a position in continuous <X,Y> 2-space.
type Point struct{ X, Y float64 }

// Add returns the component-wise sum of two points.
func (pt Point) Add(other Point) Point {
	pt.X += other.X
	pt.Y += other.Y
	return pt
}

// Sub returns the component-wise difference of two points.
func (pt Point) Sub(other Point) Point {
	pt.X -= other.X
	pt.Y -= other.Y
	return pt
}

// Scale multiplies both components by f.
func (pt Point) Scale(f float64) Point {
	pt.X *= f
	pt.Y *= f
	return pt
}

// Dist returns the Euclidean distance between two points.
func (pt Point) Dist(other Point) float64 {
	return math.Hypot(other.X-pt.X, other.Y-pt.Y)
}

// Within reports whether other lies within r of pt (inclusive).
func (pt Point) Within(other Point, r float64) bool {
	return pt.Dist(other) <= r
}

// Equal reports whether two points coincide within Epsilon.
func (pt Point) Equal(other Point) bool {
	return pt.Dist(other) < Epsilon
}

// Epsilon is the arrival tolerance used for movement.
const Epsilon = 1e-8

// MoveToward advances from pt toward target by at most maxDist. It returns
// the new position, the distance actually covered and whether target was
// reached.
func MoveToward(pt, target Point, maxDist float64) (Point, float64, bool) {
	d := pt.Dist(target)
	if d < Epsilon {
		return target, 0, true
	}
	if maxDist <= 0 {
		return pt, 0, false
	}
	if d <= maxDist {
		return target, d, true
	}
	ratio := maxDist / d
	return pt.Add(target.Sub(pt).Scale(ratio)), maxDist, false
}

// Bounds is an axis aligned rectangle anchored at the origin.
type Bounds struct {
	Width  float64
	Height float64
}

// Contains reports whether pt lies inside the bounds (edges inclusive).
func (b Bounds) Contains(pt Point) bool {
	return pt.X >= 0 && pt.Y >= 0 && pt.X <= b.Width && pt.Y <= b.Height
}

// Diagonal returns the longest straight-line distance inside the bounds.
func (b Bounds) Diagonal() float64 {
	return math.Hypot(b.Width, b.Height)
}
