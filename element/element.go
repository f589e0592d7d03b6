// Package element defines the canvas element variants, their invariants and
// the collection that owns them.
package element

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/oklog/ulid/v2"

	"studyboard/geom"
)

type Kind string

const (
	KindFreehand  Kind = "freehand"
	KindEraser    Kind = "eraser-stroke"
	KindRectangle Kind = "rectangle"
	KindCircle    Kind = "circle"
	KindTriangle  Kind = "triangle"
	KindLine      Kind = "line"
	KindText      Kind = "text"
	KindSticky    Kind = "sticky-note"
)

var (
	ErrInvalidPoints = errors.New("element: points must hold at least two x,y pairs")
	ErrNegativeSize  = errors.New("element: size must not be negative")
	ErrUnknownType   = errors.New("element: unknown type")
	ErrMissingID     = errors.New("element: missing id")
	ErrNotFound      = errors.New("element: not found")
	ErrDuplicateID   = errors.New("element: duplicate id")
)

// NewID returns a fresh, globally unique element id.
func NewID() string {
	return ulid.Make().String()
}

type Style struct {
	Fill        string  `json:"fill,omitempty"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
}

type Scale struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

var UnitScale = Scale{X: 1, Y: 1}

// Base holds the fields every variant carries.
type Base struct {
	ID        string
	Position  geom.Point
	Rotation  float64
	Scale     Scale
	Style     Style
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy string
}

func (b *Base) Header() *Base { return b }

func (b *Base) validate() error {
	if b.ID == "" {
		return ErrMissingID
	}
	return nil
}

// Element is one of the variants declared in this package.
type Element interface {
	Kind() Kind
	Header() *Base
	Validate() error
	Clone() Element
}

// Sized is implemented by variants that have a width and height.
type Sized interface {
	Element
	Dimensions() geom.Size
	SetDimensions(geom.Size)
}

// Stroked is implemented by variants defined by a flattened point list.
type Stroked interface {
	Element
	Path() []float64
}

// Labeled is implemented by variants that carry text.
type Labeled interface {
	Element
	Label() (text string, fontSize float64)
}

type Box struct {
	Size geom.Size
}

func (b *Box) Dimensions() geom.Size     { return b.Size }
func (b *Box) SetDimensions(s geom.Size) { b.Size = s }

func (b *Box) validate() error {
	if b.Size.Width < 0 || b.Size.Height < 0 {
		return ErrNegativeSize
	}
	return nil
}

func validatePoints(points []float64) error {
	if len(points) < 4 || len(points)%2 != 0 {
		return ErrInvalidPoints
	}
	for _, v := range points {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidPoints
		}
	}
	return nil
}

type Freehand struct {
	Base
	Points []float64
}

func (e *Freehand) Kind() Kind      { return KindFreehand }
func (e *Freehand) Path() []float64 { return e.Points }
func (e *Freehand) Validate() error { return errors.Join(e.validate(), validatePoints(e.Points)) }
func (e *Freehand) Clone() Element  { c := *e; c.Points = cloneFloats(e.Points); return &c }

// Eraser strokes remove paint where they pass instead of adding color.
type Eraser struct {
	Base
	Points []float64
}

func (e *Eraser) Kind() Kind      { return KindEraser }
func (e *Eraser) Path() []float64 { return e.Points }
func (e *Eraser) Validate() error { return errors.Join(e.validate(), validatePoints(e.Points)) }
func (e *Eraser) Clone() Element  { c := *e; c.Points = cloneFloats(e.Points); return &c }

type Rectangle struct {
	Base
	Box
}

func (e *Rectangle) Kind() Kind      { return KindRectangle }
func (e *Rectangle) Validate() error { return errors.Join(e.Base.validate(), e.Box.validate()) }
func (e *Rectangle) Clone() Element  { c := *e; return &c }

type Circle struct {
	Base
	Box
}

func (e *Circle) Kind() Kind      { return KindCircle }
func (e *Circle) Validate() error { return errors.Join(e.Base.validate(), e.Box.validate()) }
func (e *Circle) Clone() Element  { c := *e; return &c }

type Triangle struct {
	Base
	Box
}

func (e *Triangle) Kind() Kind      { return KindTriangle }
func (e *Triangle) Validate() error { return errors.Join(e.Base.validate(), e.Box.validate()) }
func (e *Triangle) Clone() Element  { c := *e; return &c }

// Line points are relative to the element position.
type Line struct {
	Base
	Box
	Points []float64
}

func (e *Line) Kind() Kind      { return KindLine }
func (e *Line) Path() []float64 { return e.Points }
func (e *Line) Validate() error {
	return errors.Join(e.Base.validate(), e.Box.validate(), validatePoints(e.Points))
}
func (e *Line) Clone() Element { c := *e; c.Points = cloneFloats(e.Points); return &c }

// SetDimensions keeps the end point in step with the line's box.
func (e *Line) SetDimensions(s geom.Size) {
	e.Size = s
	if len(e.Points) == 4 {
		e.Points[2] = e.Points[0] + s.Width
		e.Points[3] = e.Points[1] + s.Height
	}
}

type Text struct {
	Base
	Box
	Text     string
	FontSize float64
}

func (e *Text) Kind() Kind               { return KindText }
func (e *Text) Label() (string, float64) { return e.Text, e.FontSize }
func (e *Text) Validate() error          { return errors.Join(e.Base.validate(), e.Box.validate()) }
func (e *Text) Clone() Element           { c := *e; return &c }

type StickyNote struct {
	Base
	Box
	Text     string
	FontSize float64
}

func (e *StickyNote) Kind() Kind               { return KindSticky }
func (e *StickyNote) Label() (string, float64) { return e.Text, e.FontSize }
func (e *StickyNote) Validate() error          { return errors.Join(e.Base.validate(), e.Box.validate()) }
func (e *StickyNote) Clone() Element           { c := *e; return &c }

// Unknown holds an element whose type tag this engine does not recognize.
// It is kept in the collection but never rendered.
type Unknown struct {
	Base
	Type string
	Raw  []byte
}

func (e *Unknown) Kind() Kind      { return Kind(e.Type) }
func (e *Unknown) Validate() error { return fmt.Errorf("%w %q", ErrUnknownType, e.Type) }
func (e *Unknown) Clone() Element {
	c := *e
	c.Raw = append([]byte(nil), e.Raw...)
	return &c
}

func cloneFloats(src []float64) []float64 {
	if src == nil {
		return nil
	}
	return append([]float64(nil), src...)
}

// Defaults for newly created elements.
const (
	DefaultFontSize = 16.0
	StickyFontSize  = 14.0
)

// DefaultSize returns the size a freshly placed element of kind k gets.
func DefaultSize(k Kind) geom.Size {
	switch k {
	case KindText:
		return geom.Size{Width: 200, Height: 30}
	case KindSticky:
		return geom.Size{Width: 150, Height: 150}
	case KindLine:
		return geom.Size{Width: 100, Height: 0}
	case KindFreehand, KindEraser:
		return geom.Size{}
	default:
		return geom.Size{Width: 100, Height: 100}
	}
}

// New builds an element of kind k at pos with its default size. Stroke kinds
// take their points from the caller.
func New(k Kind, pos geom.Point, style Style, createdBy string, now time.Time) (Element, error) {
	base := Base{
		ID:        NewID(),
		Position:  pos,
		Scale:     UnitScale,
		Style:     style,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: createdBy,
	}
	box := Box{Size: DefaultSize(k)}
	switch k {
	case KindRectangle:
		return &Rectangle{Base: base, Box: box}, nil
	case KindCircle:
		return &Circle{Base: base, Box: box}, nil
	case KindTriangle:
		return &Triangle{Base: base, Box: box}, nil
	case KindLine:
		return &Line{Base: base, Box: box, Points: []float64{0, 0, box.Size.Width, box.Size.Height}}, nil
	case KindText:
		return &Text{Base: base, Box: box, FontSize: DefaultFontSize}, nil
	case KindSticky:
		return &StickyNote{Base: base, Box: box, FontSize: StickyFontSize}, nil
	case KindFreehand:
		return &Freehand{Base: base}, nil
	case KindEraser:
		return &Eraser{Base: base}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownType, k)
}
