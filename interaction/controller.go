// Package interaction turns pointer and keyboard input into element
// mutations according to the active tool.
package interaction

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"studyboard/element"
	"studyboard/geom"
	"studyboard/lifecycle"
)

type Tool string

const (
	ToolSelect    Tool = "select"
	ToolFreehand  Tool = "freehand"
	ToolEraser    Tool = "eraser"
	ToolRectangle Tool = "rectangle"
	ToolCircle    Tool = "circle"
	ToolTriangle  Tool = "triangle"
	ToolLine      Tool = "line"
	ToolText      Tool = "text"
	ToolSticky    Tool = "sticky"
)

// Tools lists every tool in toolbar order.
var Tools = []Tool{ToolSelect, ToolFreehand, ToolEraser, ToolRectangle, ToolCircle, ToolTriangle, ToolLine, ToolText, ToolSticky}

func ParseTool(s string) (Tool, error) {
	for _, t := range Tools {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tool %q", s)
}

// kind maps placement tools to the element they create.
func (t Tool) kind() (element.Kind, bool) {
	switch t {
	case ToolRectangle:
		return element.KindRectangle, true
	case ToolCircle:
		return element.KindCircle, true
	case ToolTriangle:
		return element.KindTriangle, true
	case ToolLine:
		return element.KindLine, true
	case ToolText:
		return element.KindText, true
	case ToolSticky:
		return element.KindSticky, true
	}
	return "", false
}

func (t Tool) strokes() bool {
	return t == ToolFreehand || t == ToolEraser
}

type State int

const (
	StateIdle State = iota
	StateDrawing
	StateSelecting
	StateDragging
	StateTransforming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDrawing:
		return "drawing"
	case StateSelecting:
		return "selecting"
	case StateDragging:
		return "dragging"
	case StateTransforming:
		return "transforming"
	}
	return "unknown"
}

const (
	FreehandWidth = 2.0
	EraserWidth   = 20.0
	// HitTolerance widens element bounds for pointer hit tests, in world units.
	HitTolerance = 4.0
)

// PointerEvent is a pointer sample in screen space. Target optionally names
// the element the host already resolved under the pointer; when empty the
// controller hit-tests the store itself.
type PointerEvent struct {
	Screen geom.Point
	Target string
}

// TransformState is the final affine state of a transform-handle drag.
type TransformState struct {
	Position geom.Point
	Rotation float64
	ScaleX   float64
	ScaleY   float64
}

// Controller is the pointer state machine of one board.
type Controller struct {
	mu        sync.Mutex
	store     *element.Store
	coords    *geom.CoordinateSystem
	resources *lifecycle.Manager

	tool     Tool
	state    State
	attached bool
	style    element.Style
	author   string
	now      func() time.Time

	buffer    []float64
	draft     *lifecycle.Handle
	dragID    string
	dragStart geom.Point
	dragOrig  geom.Point

	keys *Keymap
}

func NewController(store *element.Store, coords *geom.CoordinateSystem, res *lifecycle.Manager) *Controller {
	c := &Controller{
		store:     store,
		coords:    coords,
		resources: res,
		tool:      ToolSelect,
		style:     element.Style{Stroke: "#000000", StrokeWidth: FreehandWidth},
		now:       time.Now,
	}
	c.keys = NewKeymap()
	c.keys.Bind("delete", c.deleteSelected)
	c.keys.Bind("backspace", c.deleteSelected)
	c.keys.Bind("esc", c.clearSelection)
	return c
}

// Attach marks whether a render surface is available to resolve pointer
// positions. Detached controllers ignore pointer input.
func (c *Controller) Attach(ok bool) {
	c.mu.Lock()
	c.attached = ok
	if !ok {
		c.discardLocked()
	}
	c.mu.Unlock()
}

func (c *Controller) SetAuthor(name string) {
	c.mu.Lock()
	c.author = name
	c.mu.Unlock()
}

// SetStyle sets the style new elements are created with.
func (c *Controller) SetStyle(s element.Style) {
	c.mu.Lock()
	c.style = s
	c.mu.Unlock()
}

func (c *Controller) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *Controller) Tool() Tool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tool
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetTool switches the active tool and discards any in-flight stroke.
func (c *Controller) SetTool(t Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tool == t {
		return
	}
	c.discardLocked()
	c.tool = t
}

// Draft returns the world-space points of the stroke being drawn.
func (c *Controller) Draft() (Tool, []float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDrawing {
		return c.tool, nil, false
	}
	return c.tool, append([]float64(nil), c.buffer...), true
}

func (c *Controller) discardLocked() {
	if c.draft != nil {
		c.resources.Release(c.draft.Name())
		c.draft = nil
	}
	c.buffer = nil
	c.state = StateIdle
	c.dragID = ""
}

func (c *Controller) resolve(ev PointerEvent) (geom.Point, bool) {
	if !c.attached {
		return geom.Point{}, false
	}
	p := ev.Screen
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return geom.Point{}, false
	}
	return c.coords.ScreenToWorld(p), true
}

func (c *Controller) PointerDown(ev PointerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	world, ok := c.resolve(ev)
	if !ok {
		return
	}

	switch {
	case c.tool == ToolSelect:
		target := ev.Target
		if target == "" {
			target, _ = c.store.ElementAt(world, HitTolerance)
		}
		if target == "" {
			c.store.ClearSelection()
			c.state = StateSelecting
			return
		}
		if err := c.store.Select(target); err != nil {
			c.store.ClearSelection()
			c.state = StateSelecting
			return
		}
		if e, ok := c.store.Get(target); ok {
			c.dragID = target
			c.dragStart = world
			c.dragOrig = e.Header().Position
			c.state = StateDragging
		}

	case c.tool.strokes():
		c.state = StateDrawing
		c.buffer = append(c.buffer[:0], world.X, world.Y)
		name := fmt.Sprintf("draft/%p", c)
		c.draft = c.resources.Register(lifecycle.KindShape, name, lifecycle.CloserFunc(func() error {
			return nil
		}))

	default:
		kind, _ := c.tool.kind()
		e, err := element.New(kind, world, c.styleFor(kind), c.author, c.now())
		if err != nil {
			logrus.WithField("error", err).Warn("Failed to create element")
			return
		}
		if err := c.store.Add(e); err != nil {
			logrus.WithField("error", err).Warn("Failed to add element")
		}
	}
}

func (c *Controller) styleFor(kind element.Kind) element.Style {
	s := c.style
	switch kind {
	case element.KindText:
		s.Stroke = ""
		s.StrokeWidth = 0
	case element.KindEraser:
		s.StrokeWidth = EraserWidth
	}
	return s
}

func (c *Controller) PointerMove(ev PointerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDrawing && c.state != StateDragging {
		return
	}
	world, ok := c.resolve(ev)
	if !ok {
		return
	}
	switch c.state {
	case StateDrawing:
		c.buffer = append(c.buffer, world.X, world.Y)
	case StateDragging:
		pos := c.dragOrig.Add(world.Sub(c.dragStart))
		if err := c.store.Update(c.dragID, func(e element.Element) {
			e.Header().Position = pos
		}); err != nil {
			c.state = StateIdle
			c.dragID = ""
		}
	}
}

func (c *Controller) PointerUp(ev PointerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateDrawing:
		c.finishStroke()
	case StateDragging, StateSelecting:
		c.dragID = ""
		c.state = StateIdle
	}
}

// finishStroke turns the buffer into an element when it holds at least two
// points; shorter buffers are dropped.
func (c *Controller) finishStroke() {
	points := c.buffer
	tool := c.tool
	c.buffer = nil
	c.state = StateIdle
	if c.draft != nil {
		c.resources.Release(c.draft.Name())
		c.draft = nil
	}
	if len(points) < 4 {
		return
	}

	kind := element.KindFreehand
	if tool == ToolEraser {
		kind = element.KindEraser
	}
	e, err := element.New(kind, geom.Point{}, c.styleFor(kind), c.author, c.now())
	if err != nil {
		return
	}
	switch v := e.(type) {
	case *element.Freehand:
		v.Points = points
	case *element.Eraser:
		v.Points = points
	}
	if err := c.store.Add(e); err != nil {
		logrus.WithField("error", err).Warn("Failed to add stroke")
	}
}

// BeginTransform marks the start of a transform-handle drag on the selected
// element.
func (c *Controller) BeginTransform() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.store.Selected(); ok && c.state == StateIdle {
		c.state = StateTransforming
	}
}

// ApplyTransform writes the final handle state to the selected element. The
// scale is folded into the element's geometry and reset to 1x1 so repeated
// transforms never compound.
func (c *Controller) ApplyTransform(ts TransformState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateTransforming {
		c.state = StateIdle
	}
	id, ok := c.store.Selected()
	if !ok {
		return nil
	}
	return c.store.Update(id, func(e element.Element) {
		Bake(e, ts)
	})
}

// Bake applies ts to e and resets its scale to 1x1.
func Bake(e element.Element, ts TransformState) {
	sx, sy := ts.ScaleX, ts.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	h := e.Header()
	h.Position = ts.Position
	h.Rotation = ts.Rotation

	switch v := e.(type) {
	case *element.Freehand:
		scalePoints(v.Points, sx, sy)
	case *element.Eraser:
		scalePoints(v.Points, sx, sy)
	case *element.Line:
		scalePoints(v.Points, sx, sy)
		v.Size = geom.Size{Width: v.Size.Width * math.Abs(sx), Height: v.Size.Height * math.Abs(sy)}
	case element.Sized:
		s := v.Dimensions()
		v.SetDimensions(geom.Size{Width: math.Max(5, s.Width*math.Abs(sx)), Height: math.Max(5, s.Height*math.Abs(sy))})
	}
	h.Scale = element.UnitScale
}

func scalePoints(pts []float64, sx, sy float64) {
	for i := 0; i+1 < len(pts); i += 2 {
		pts[i] *= sx
		pts[i+1] *= sy
	}
}

// HandleKey routes a key press through the board's keymap. It reports
// whether the key was bound.
func (c *Controller) HandleKey(key string) bool {
	return c.keys.Dispatch(key)
}

// Keys exposes the keymap so hosts can add board-scoped bindings.
func (c *Controller) Keys() *Keymap {
	return c.keys
}

func (c *Controller) deleteSelected() {
	c.mu.Lock()
	tool := c.tool
	c.mu.Unlock()
	if tool != ToolSelect {
		return
	}
	id, ok := c.store.Selected()
	if !ok {
		return
	}
	if err := c.store.Remove(id); err != nil {
		logrus.WithField("element_id", id).Debug("Selected element already gone")
	}
	c.store.ClearSelection()
}

func (c *Controller) clearSelection() {
	c.store.ClearSelection()
}
