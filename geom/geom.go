// Package geom holds the plain value types shared by the canvas engine and
// the coordinate system that maps between screen, canvas and world space.
package geom

import "math"

const (
	MinScale = 0.1
	MaxScale = 5.0
)

type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }
func (p Point) Mul(s float64) Point {
	return Point{p.X * s, p.Y * s}
}

type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Empty reports whether the size has no area.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

type Transform struct {
	Scale  float64 `json:"scale"`
	Offset Point   `json:"offset"`
}

// Identity is the 1:1 transform with no translation.
var Identity = Transform{Scale: 1}

// ClampScale limits s to [MinScale, MaxScale]. NaN maps to 1.
func ClampScale(s float64) float64 {
	if math.IsNaN(s) {
		return 1
	}
	return math.Max(MinScale, math.Min(MaxScale, s))
}

// Rect is an axis-aligned rectangle with its origin at the top-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func RectFromPoints(a, b Point) Rect {
	minX, maxX := math.Min(a.X, b.X), math.Max(a.X, b.X)
	minY, maxY := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func (r Rect) Min() Point { return Point{r.X, r.Y} }
func (r Rect) Max() Point { return Point{r.X + r.Width, r.Y + r.Height} }

// Contains is an inclusive bounds test.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Inset grows the rectangle by m on every side (shrinks for negative m).
func (r Rect) Inset(m float64) Rect {
	return Rect{X: r.X - m, Y: r.Y - m, Width: r.Width + 2*m, Height: r.Height + 2*m}
}

// Union returns the smallest rectangle covering both r and o.
func (r Rect) Union(o Rect) Rect {
	return RectFromPoints(
		Point{math.Min(r.X, o.X), math.Min(r.Y, o.Y)},
		Point{math.Max(r.X+r.Width, o.X+o.Width), math.Max(r.Y+r.Height, o.Y+o.Height)},
	)
}

// Bounds accumulates points into a Rect.
type Bounds struct {
	minX, minY, maxX, maxY float64
	set                    bool
}

func (b *Bounds) AddPoint(p Point) {
	if !b.set {
		b.minX, b.maxX = p.X, p.X
		b.minY, b.maxY = p.Y, p.Y
		b.set = true
		return
	}
	b.minX = math.Min(b.minX, p.X)
	b.maxX = math.Max(b.maxX, p.X)
	b.minY = math.Min(b.minY, p.Y)
	b.maxY = math.Max(b.maxY, p.Y)
}

func (b *Bounds) AddRect(r Rect) {
	b.AddPoint(r.Min())
	b.AddPoint(r.Max())
}

// Rect returns the accumulated rectangle and whether anything was added.
func (b *Bounds) Rect() (Rect, bool) {
	if !b.set {
		return Rect{}, false
	}
	return Rect{X: b.minX, Y: b.minY, Width: b.maxX - b.minX, Height: b.maxY - b.minY}, true
}
