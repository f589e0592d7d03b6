package element

import (
	"encoding/json"
	"fmt"
	"time"

	"studyboard/geom"
)

// record is the JSON envelope elements travel in between the engine and the
// synchronization layer.
type record struct {
	Type      string     `json:"type"`
	ID        string     `json:"id"`
	Position  geom.Point `json:"position"`
	Size      *geom.Size `json:"size,omitempty"`
	Rotation  float64    `json:"rotation"`
	Scale     Scale      `json:"scale"`
	Style     Style      `json:"style"`
	Text      *string    `json:"text,omitempty"`
	FontSize  *float64   `json:"fontSize,omitempty"`
	Points    []float64  `json:"points,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	CreatedBy string     `json:"createdBy,omitempty"`
}

// Marshal encodes e in the envelope format.
func Marshal(e Element) ([]byte, error) {
	if u, ok := e.(*Unknown); ok && len(u.Raw) > 0 {
		return u.Raw, nil
	}
	h := e.Header()
	r := record{
		Type:      string(e.Kind()),
		ID:        h.ID,
		Position:  h.Position,
		Rotation:  h.Rotation,
		Scale:     h.Scale,
		Style:     h.Style,
		CreatedAt: h.CreatedAt,
		UpdatedAt: h.UpdatedAt,
		CreatedBy: h.CreatedBy,
	}
	if s, ok := e.(Sized); ok {
		size := s.Dimensions()
		r.Size = &size
	}
	if s, ok := e.(Stroked); ok {
		r.Points = s.Path()
	}
	if l, ok := e.(Labeled); ok {
		text, fontSize := l.Label()
		r.Text, r.FontSize = &text, &fontSize
	}
	return json.Marshal(r)
}

// Unmarshal decodes an envelope. Unrecognized type tags produce an *Unknown
// element rather than an error; only malformed JSON fails.
func Unmarshal(data []byte) (Element, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode element: %w", err)
	}
	base := Base{
		ID:        r.ID,
		Position:  r.Position,
		Rotation:  r.Rotation,
		Scale:     r.Scale,
		Style:     r.Style,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		CreatedBy: r.CreatedBy,
	}
	if base.Scale == (Scale{}) {
		base.Scale = UnitScale
	}
	var box Box
	if r.Size != nil {
		box.Size = *r.Size
	}
	var text string
	if r.Text != nil {
		text = *r.Text
	}
	fontSize := DefaultFontSize
	if r.FontSize != nil {
		fontSize = *r.FontSize
	}

	switch Kind(r.Type) {
	case KindFreehand:
		return &Freehand{Base: base, Points: r.Points}, nil
	case KindEraser:
		return &Eraser{Base: base, Points: r.Points}, nil
	case KindRectangle:
		return &Rectangle{Base: base, Box: box}, nil
	case KindCircle:
		return &Circle{Base: base, Box: box}, nil
	case KindTriangle:
		return &Triangle{Base: base, Box: box}, nil
	case KindLine:
		return &Line{Base: base, Box: box, Points: r.Points}, nil
	case KindText:
		return &Text{Base: base, Box: box, Text: text, FontSize: fontSize}, nil
	case KindSticky:
		return &StickyNote{Base: base, Box: box, Text: text, FontSize: fontSize}, nil
	}
	return &Unknown{Base: base, Type: r.Type, Raw: append([]byte(nil), data...)}, nil
}
