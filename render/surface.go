// Package render rasterizes board elements with fogleman/gg.
//
// A Surface is the stage of one board. It owns a background layer, an
// element layer, one shape node per renderable element and the font faces
// text is drawn with; all of them are registered with a lifecycle.Manager so
// the board can release them deterministically.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"studyboard/element"
	"studyboard/geom"
	"studyboard/lifecycle"
	"studyboard/theme"
)

var (
	ErrReleased  = errors.New("render: surface released")
	ErrEmptySize = errors.New("render: surface has no area")
)

// MaxPixels bounds a single rasterization.
const MaxPixels = 64 << 20

// Node is the render-side projection of one element.
type Node struct {
	ID       string
	Element  element.Element
	Selected bool
	// ClientRect is the element's bounding box in canvas pixels.
	ClientRect geom.Rect
}

type Surface struct {
	mu        sync.Mutex
	resources *lifecycle.Manager
	released  bool

	size      geom.Size
	view      geom.Transform
	palette   theme.Palette
	font      *truetype.Font
	faces     map[float64]font.Face
	nodes     map[string]*Node
	order     []string
	layers    [2]*layer
	stageName string
}

// layer is a retained gg context sized to the surface.
type layer struct {
	name string
	dc   *gg.Context
}

func (l *layer) Close() error {
	l.dc = nil
	return nil
}

// NewSurface creates the stage and its layers and registers them with res.
func NewSurface(name string, size geom.Size, pal theme.Palette, res *lifecycle.Manager) (*Surface, error) {
	ttf, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %v", err)
	}
	s := &Surface{
		resources: res,
		view:      geom.Identity,
		palette:   pal,
		font:      ttf,
		faces:     make(map[float64]font.Face),
		nodes:     make(map[string]*Node),
		stageName: name,
	}
	res.Register(lifecycle.KindStage, name, lifecycle.CloserFunc(s.close))
	s.Resize(size)
	return s, nil
}

func (s *Surface) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	s.nodes = make(map[string]*Node)
	s.order = nil
	return nil
}

// Released reports whether the stage has been torn down.
func (s *Surface) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Resize recreates both layers at the new canvas size.
func (s *Surface) Resize(size geom.Size) {
	s.mu.Lock()
	s.size = size
	old := s.layers
	w, h := int(math.Ceil(size.Width)), int(math.Ceil(size.Height))
	for i, name := range []string{"background", "elements"} {
		l := &layer{name: s.stageName + "/" + name}
		if w > 0 && h > 0 {
			l.dc = gg.NewContext(w, h)
		}
		s.layers[i] = l
	}
	layers := s.layers
	s.mu.Unlock()

	for _, l := range old {
		if l != nil {
			s.resources.Release(l.name)
		}
	}
	for _, l := range layers {
		s.resources.Register(lifecycle.KindLayer, l.name, l)
	}
}

func (s *Surface) Size() geom.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// SetView sets the world to canvas transform used for drawing.
func (s *Surface) SetView(t geom.Transform) {
	s.mu.Lock()
	s.view = t
	s.refreshRects()
	s.mu.Unlock()
}

func (s *Surface) SetPalette(p theme.Palette) {
	s.mu.Lock()
	s.palette = p
	s.mu.Unlock()
}

func (s *Surface) Palette() theme.Palette {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.palette
}

// Sync rebuilds the shape nodes from the element collection. Nodes for
// elements that disappeared are released; malformed elements get no node.
func (s *Surface) Sync(elements []element.Element, selected string) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	live := make(map[string]bool, len(elements))
	var added []string
	s.order = s.order[:0]
	for _, e := range elements {
		if !element.Renderable(e) {
			continue
		}
		id := e.Header().ID
		live[id] = true
		s.order = append(s.order, id)
		n, ok := s.nodes[id]
		if !ok {
			n = &Node{ID: id}
			s.nodes[id] = n
			added = append(added, id)
		}
		n.Element = e
		n.Selected = id == selected
	}
	var gone []string
	for id := range s.nodes {
		if !live[id] {
			delete(s.nodes, id)
			gone = append(gone, id)
		}
	}
	s.refreshRects()
	s.mu.Unlock()

	for _, id := range gone {
		s.resources.Release(s.nodeName(id))
	}
	for _, id := range added {
		s.resources.Register(lifecycle.KindShape, s.nodeName(id), lifecycle.CloserFunc(func() error { return nil }))
	}
}

func (s *Surface) nodeName(id string) string {
	return s.stageName + "/node/" + id
}

func (s *Surface) refreshRects() {
	for _, n := range s.nodes {
		r, ok := element.Bounds(n.Element)
		if !ok {
			continue
		}
		a := worldToCanvas(s.view, r.Min())
		b := worldToCanvas(s.view, r.Max())
		n.ClientRect = geom.RectFromPoints(a, b)
	}
}

func worldToCanvas(t geom.Transform, p geom.Point) geom.Point {
	return p.Sub(t.Offset).Mul(1 / t.Scale)
}

// Nodes returns the shape nodes in paint order.
func (s *Surface) Nodes() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.nodes[id])
	}
	return out
}

// SelectedRect is the union of the client rects of all selected nodes.
func (s *Surface) SelectedRect() (geom.Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b geom.Bounds
	for _, id := range s.order {
		if n := s.nodes[id]; n.Selected {
			b.AddRect(n.ClientRect)
		}
	}
	return b.Rect()
}

// face returns a font face at size points, caching it on the stage.
func (s *Surface) face(size float64) font.Face {
	if f, ok := s.faces[size]; ok {
		return f
	}
	f := truetype.NewFace(s.font, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	s.faces[size] = f
	s.resources.Register(lifecycle.KindStage, fmt.Sprintf("%s/font/%g", s.stageName, size), f)
	return f
}

// RasterOptions controls a single rasterization.
type RasterOptions struct {
	PixelRatio float64
	// Region limits output to a canvas-space rectangle. Zero means the
	// whole surface.
	Region     geom.Rect
	Background bool
}

// Rasterize draws the current nodes into a new image. Full-frame 1:1
// requests reuse the retained layers.
func (s *Surface) Rasterize(opts RasterOptions) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, ErrReleased
	}
	ratio := opts.PixelRatio
	if ratio <= 0 {
		ratio = 1
	}
	region := opts.Region
	if region.Width <= 0 || region.Height <= 0 {
		region = geom.Rect{Width: s.size.Width, Height: s.size.Height}
	}
	w := int(math.Ceil(region.Width * ratio))
	h := int(math.Ceil(region.Height * ratio))
	if w <= 0 || h <= 0 {
		return nil, ErrEmptySize
	}
	if w*h > MaxPixels {
		return nil, fmt.Errorf("render: %dx%d exceeds pixel limit", w, h)
	}

	setup := func(dc *gg.Context) {
		dc.Scale(ratio, ratio)
		dc.Translate(-region.X, -region.Y)
		dc.Scale(1/s.view.Scale, 1/s.view.Scale)
		dc.Translate(-s.view.Offset.X, -s.view.Offset.Y)
	}

	out, ink, retained := s.contexts(w, h)
	if opts.Background {
		out.SetColor(theme.Color(s.palette.CanvasBackground, color.White))
		out.Clear()
	}

	setup(ink)
	for _, id := range s.order {
		n := s.nodes[id]
		if eraser, ok := n.Element.(*element.Eraser); ok {
			s.erase(ink, eraser, w, h, setup)
			continue
		}
		s.draw(ink, n.Element)
	}
	ink.Identity()
	out.DrawImage(ink.Image(), 0, 0)

	if !retained {
		return out.Image(), nil
	}
	src := out.Image()
	img := image.NewRGBA(src.Bounds())
	draw.Draw(img, img.Bounds(), src, src.Bounds().Min, draw.Src)
	return img, nil
}

func (s *Surface) contexts(w, h int) (out, ink *gg.Context, retained bool) {
	bg, el := s.layers[0], s.layers[1]
	if bg == nil || el == nil || bg.dc == nil || el.dc == nil ||
		bg.dc.Width() != w || bg.dc.Height() != h {
		return gg.NewContext(w, h), gg.NewContext(w, h), false
	}
	for _, dc := range []*gg.Context{bg.dc, el.dc} {
		dc.Identity()
		dc.SetColor(color.Transparent)
		dc.Clear()
	}
	return bg.dc, el.dc, true
}
