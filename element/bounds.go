package element

import (
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"studyboard/geom"
)

var reported sync.Map

// Renderable reports whether e may be drawn or exported. Malformed and
// unknown elements are skipped; the first time a given element or unknown
// type is seen a warning is logged.
func Renderable(e Element) bool {
	if e == nil {
		return false
	}
	err := e.Validate()
	if err == nil {
		return true
	}
	key := e.Header().ID
	if u, ok := e.(*Unknown); ok {
		key = "type:" + u.Type
	}
	if _, seen := reported.LoadOrStore(key, struct{}{}); !seen {
		logrus.WithFields(logrus.Fields{
			"element_id": e.Header().ID,
			"type":       string(e.Kind()),
			"error":      err,
		}).Warn("Skipping element that cannot be rendered")
	}
	return false
}

// Bounds returns the world-space bounding rectangle of e, accounting for
// position, scale, rotation and stroke width.
func Bounds(e Element) (geom.Rect, bool) {
	h := e.Header()
	sx, sy := h.Scale.X, h.Scale.Y
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}

	var local []geom.Point
	switch v := e.(type) {
	case *Freehand, *Eraser:
		pts := v.(Stroked).Path()
		if validatePoints(pts) != nil {
			return geom.Rect{}, false
		}
		for i := 0; i+1 < len(pts); i += 2 {
			local = append(local, geom.Point{X: pts[i], Y: pts[i+1]})
		}
	case *Line:
		if validatePoints(v.Points) != nil {
			return geom.Rect{}, false
		}
		for i := 0; i+1 < len(v.Points); i += 2 {
			local = append(local, geom.Point{X: v.Points[i], Y: v.Points[i+1]})
		}
	case Sized:
		s := v.Dimensions()
		local = []geom.Point{{}, {X: s.Width}, {X: s.Width, Y: s.Height}, {Y: s.Height}}
	default:
		return geom.Rect{}, false
	}

	sin, cos := math.Sincos(h.Rotation * math.Pi / 180)
	var b geom.Bounds
	for _, p := range local {
		x, y := p.X*sx, p.Y*sy
		b.AddPoint(geom.Point{
			X: h.Position.X + x*cos - y*sin,
			Y: h.Position.Y + x*sin + y*cos,
		})
	}
	r, ok := b.Rect()
	if !ok {
		return r, false
	}
	if _, stroked := e.(Stroked); stroked {
		r = r.Inset(h.Style.StrokeWidth / 2)
	}
	return r, true
}

// Contains is a hit test in world space against the element bounds.
func Contains(e Element, p geom.Point, tolerance float64) bool {
	r, ok := Bounds(e)
	if !ok {
		return false
	}
	return r.Inset(tolerance).Contains(p)
}
