package math

import "math"

// Rect is an axis-aligned rectangle with its origin at the top-left corner.
// Rectangles are closed on their min edges and open on their max edges.
type Rect struct {
	X, Y, W, H float64
}

// NewRect builds a rectangle from its top-left corner and size.
func NewRect(x, y, w, h float64) Rect {
	return Rect{X: x, Y: y, W: w, H: h}
}

// RectFromPoints returns the smallest rectangle covering both corners.
func RectFromPoints(a, b Vec2) Rect {
	minX, maxX := math.Min(a.X, b.X), math.Max(a.X, b.X)
	minY, maxY := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// MaxX returns the exclusive right edge.
func (r Rect) MaxX() float64 { return r.X + r.W }

// MaxY returns the exclusive bottom edge.
func (r Rect) MaxY() float64 { return r.Y + r.H }

// Min returns the top-left corner.
func (r Rect) Min() Vec2 { return Vec2{r.X, r.Y} }

// Max returns the bottom-right corner.
func (r Rect) Max() Vec2 { return Vec2{r.MaxX(), r.MaxY()} }

// Center returns the midpoint.
func (r Rect) Center() Vec2 { return Vec2{r.X + r.W/2, r.Y + r.H/2} }

// Area returns W*H.
func (r Rect) Area() float64 { return r.W * r.H }

// Valid reports whether both dimensions are strictly positive.
func (r Rect) Valid() bool { return r.W > 0 && r.H > 0 }

// Translate returns r moved by v.
func (r Rect) Translate(v Vec2) Rect {
	return Rect{X: r.X + v.X, Y: r.Y + v.Y, W: r.W, H: r.H}
}

// ContainsPoint reports whether p lies inside r. A point on the right or
// bottom edge is outside.
func (r Rect) ContainsPoint(p Vec2) bool {
	return p.X >= r.X && p.X < r.MaxX() && p.Y >= r.Y && p.Y < r.MaxY()
}

// Within reports whether r lies entirely inside bounds, edges included.
func (r Rect) Within(bounds Rect) bool {
	return r.X >= bounds.X && r.Y >= bounds.Y && r.MaxX() <= bounds.MaxX() && r.MaxY() <= bounds.MaxY()
}

// Overlaps reports whether r and other share positive area. Edge contact
// alone does not count. A zero-extent axis on r is treated as a coordinate
// and tested against other's half-open span, so a zero-size rectangle
// overlaps exactly the rectangles that contain its origin.
func (r Rect) Overlaps(other Rect) bool {
	return spanOverlaps(r.X, r.MaxX(), other.X, other.MaxX()) &&
		spanOverlaps(r.Y, r.MaxY(), other.Y, other.MaxY())
}

func spanOverlaps(a0, a1, b0, b1 float64) bool {
	if a0 == a1 {
		return b0 <= a0 && a0 < b1
	}
	return a0 < b1 && b0 < a1
}

// Intersection returns the overlapping region, or an empty Rect.
func (r Rect) Intersection(other Rect) Rect {
	x0 := math.Max(r.X, other.X)
	y0 := math.Max(r.Y, other.Y)
	x1 := math.Min(r.MaxX(), other.MaxX())
	y1 := math.Min(r.MaxY(), other.MaxY())
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Union returns the bounding rectangle of r and other.
func (r Rect) Union(other Rect) Rect {
	x0 := math.Min(r.X, other.X)
	y0 := math.Min(r.Y, other.Y)
	x1 := math.Max(r.MaxX(), other.MaxX())
	y1 := math.Max(r.MaxY(), other.MaxY())
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Expand grows r by dx on the left and right and dy on the top and bottom.
func (r Rect) Expand(dx, dy float64) Rect {
	return Rect{X: r.X - dx, Y: r.Y - dy, W: r.W + 2*dx, H: r.H + 2*dy}
}

// Clamp limits value to the range [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// CircleOverlaps reports whether a circle intersects r with positive area.
func (r Rect) CircleOverlaps(center Vec2, radius float64) bool {
	closestX := Clamp(center.X, r.X, r.MaxX())
	closestY := Clamp(center.Y, r.Y, r.MaxY())
	dx := center.X - closestX
	dy := center.Y - closestY
	return dx*dx+dy*dy < radius*radius
}
