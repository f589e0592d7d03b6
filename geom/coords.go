package geom

import (
	"math"
	"sync"
)

// CoordinateSystem maps points between the three spaces the engine works in:
//
//   - screen: pixels relative to the host viewport
//   - canvas: pixels relative to the render surface origin
//   - world:  logical coordinates elements are stored in
//
// Canvas to world is p*scale + offset; the inverse applies the reciprocal.
// All methods are safe for concurrent use.
type CoordinateSystem struct {
	mu        sync.RWMutex
	transform Transform
	origin    Point
	container Size
	canvas    Size
}

func NewCoordinateSystem() *CoordinateSystem {
	return &CoordinateSystem{transform: Identity}
}

// SetOrigin records where the canvas top-left sits in screen space.
func (cs *CoordinateSystem) SetOrigin(p Point) {
	cs.mu.Lock()
	cs.origin = p
	cs.mu.Unlock()
}

func (cs *CoordinateSystem) Transform() Transform {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.transform
}

func (cs *CoordinateSystem) Sizes() (container, canvas Size) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.container, cs.canvas
}

// UpdateTransform stores a new transform. Out of range scales are clamped,
// never rejected.
func (cs *CoordinateSystem) UpdateTransform(scale float64, offset Point) {
	cs.mu.Lock()
	cs.transform = Transform{Scale: ClampScale(scale), Offset: offset}
	cs.mu.Unlock()
}

// UpdateSizes stores new container/canvas sizes and refits the transform.
// Any user pan or zoom is discarded.
func (cs *CoordinateSystem) UpdateSizes(container, canvas Size) {
	cs.mu.Lock()
	cs.container = container
	cs.canvas = canvas
	cs.transform = fit(container, canvas)
	cs.mu.Unlock()
}

// FitToContainer computes the transform that fits the canvas inside the
// container without upscaling past 1:1. State is not modified.
func (cs *CoordinateSystem) FitToContainer() Transform {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return fit(cs.container, cs.canvas)
}

// CenterCanvas computes a 1:1 transform centering the canvas in the container.
func (cs *CoordinateSystem) CenterCanvas() Transform {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return Transform{
		Scale: 1,
		Offset: Point{
			X: (cs.container.Width - cs.canvas.Width) / 2,
			Y: (cs.container.Height - cs.canvas.Height) / 2,
		},
	}
}

func fit(container, canvas Size) Transform {
	if canvas.Empty() {
		return Identity
	}
	scale := math.Min(math.Min(container.Width/canvas.Width, container.Height/canvas.Height), 1)
	scale = ClampScale(scale)
	return Transform{
		Scale: scale,
		Offset: Point{
			X: (container.Width - canvas.Width*scale) / 2,
			Y: (container.Height - canvas.Height*scale) / 2,
		},
	}
}

func (cs *CoordinateSystem) ScreenToCanvas(p Point) Point {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return p.Sub(cs.origin)
}

func (cs *CoordinateSystem) CanvasToScreen(p Point) Point {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return p.Add(cs.origin)
}

func (cs *CoordinateSystem) CanvasToWorld(p Point) Point {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return canvasToWorld(cs.transform, p)
}

func (cs *CoordinateSystem) WorldToCanvas(p Point) Point {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return worldToCanvas(cs.transform, p)
}

func (cs *CoordinateSystem) ScreenToWorld(p Point) Point {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return canvasToWorld(cs.transform, p.Sub(cs.origin))
}

func (cs *CoordinateSystem) WorldToScreen(p Point) Point {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return worldToCanvas(cs.transform, p).Add(cs.origin)
}

func canvasToWorld(t Transform, p Point) Point {
	return p.Mul(t.Scale).Add(t.Offset)
}

func worldToCanvas(t Transform, p Point) Point {
	return p.Sub(t.Offset).Mul(1 / t.Scale)
}

// VisibleArea returns the world rectangle covered by the container's two
// screen corners.
func (cs *CoordinateSystem) VisibleArea() Rect {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	tl := canvasToWorld(cs.transform, Point{}.Sub(cs.origin))
	br := canvasToWorld(cs.transform, Point{X: cs.container.Width, Y: cs.container.Height}.Sub(cs.origin))
	return RectFromPoints(tl, br)
}

// IsPointVisible reports whether a world point lies inside the visible area
// grown by margin. Edges count as visible.
func (cs *CoordinateSystem) IsPointVisible(p Point, margin float64) bool {
	return cs.VisibleArea().Inset(margin).Contains(p)
}
