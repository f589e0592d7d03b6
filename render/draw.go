package render

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"studyboard/element"
	"studyboard/theme"
)

const (
	stickyPadding   = 10.0
	textLineSpacing = 1.2
)

func (s *Surface) draw(dc *gg.Context, e element.Element) {
	h := e.Header()
	dc.Push()
	defer dc.Pop()

	dc.Translate(h.Position.X, h.Position.Y)
	if h.Rotation != 0 {
		dc.Rotate(gg.Radians(h.Rotation))
	}
	if h.Scale.X != 0 && h.Scale.Y != 0 {
		dc.Scale(h.Scale.X, h.Scale.Y)
	}

	stroke := theme.Color(h.Style.Stroke, theme.Color(s.palette.StrokeColor, color.Black))
	fill := theme.Color(h.Style.Fill, color.Transparent)
	width := h.Style.StrokeWidth
	if width <= 0 {
		width = 2
	}
	dc.SetLineWidth(width)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()

	switch v := e.(type) {
	case *element.Freehand:
		tracePoints(dc, v.Points)
		dc.SetColor(stroke)
		dc.Stroke()

	case *element.Line:
		tracePoints(dc, v.Points)
		dc.SetColor(stroke)
		dc.Stroke()

	case *element.Rectangle:
		dc.DrawRectangle(0, 0, v.Size.Width, v.Size.Height)
		fillAndStroke(dc, fill, stroke)

	case *element.Circle:
		rx, ry := v.Size.Width/2, v.Size.Height/2
		dc.DrawEllipse(rx, ry, rx, ry)
		fillAndStroke(dc, fill, stroke)

	case *element.Triangle:
		dc.MoveTo(v.Size.Width/2, 0)
		dc.LineTo(v.Size.Width, v.Size.Height)
		dc.LineTo(0, v.Size.Height)
		dc.ClosePath()
		fillAndStroke(dc, fill, stroke)

	case *element.Text:
		dc.SetFontFace(s.face(v.FontSize))
		dc.SetColor(theme.Color(h.Style.Fill, theme.Color(s.palette.TextColor, color.Black)))
		dc.DrawString(v.Text, 0, v.FontSize)

	case *element.StickyNote:
		dc.DrawRectangle(0, 0, v.Size.Width, v.Size.Height)
		fillAndStroke(dc, theme.Color(h.Style.Fill, theme.Color(s.palette.StickyColor, color.White)), stroke)
		dc.SetFontFace(s.face(v.FontSize))
		dc.SetColor(theme.Color(s.palette.TextColor, color.Black))
		dc.DrawStringWrapped(v.Text, stickyPadding, stickyPadding, 0, 0,
			v.Size.Width-2*stickyPadding, textLineSpacing, gg.AlignLeft)
	}
}

func fillAndStroke(dc *gg.Context, fill, stroke color.Color) {
	if _, _, _, a := fill.RGBA(); a > 0 {
		dc.SetColor(fill)
		dc.FillPreserve()
	}
	dc.SetColor(stroke)
	dc.Stroke()
}

func tracePoints(dc *gg.Context, pts []float64) {
	dc.MoveTo(pts[0], pts[1])
	for i := 2; i+1 < len(pts); i += 2 {
		dc.LineTo(pts[i], pts[i+1])
	}
}

// erase removes paint from ink wherever the eraser stroke passes.
func (s *Surface) erase(ink *gg.Context, e *element.Eraser, w, h int, setup func(*gg.Context)) {
	mask := gg.NewContext(w, h)
	setup(mask)
	hd := e.Header()
	mask.Translate(hd.Position.X, hd.Position.Y)
	width := hd.Style.StrokeWidth
	if width <= 0 {
		width = 20
	}
	mask.SetLineWidth(width)
	mask.SetLineCapRound()
	mask.SetLineJoinRound()
	tracePoints(mask, e.Points)
	mask.SetColor(color.Black)
	mask.Stroke()

	// Redraw the ink through the inverted stroke mask: paint survives only
	// where the stroke did not pass.
	keep := gg.NewContext(w, h)
	if err := keep.SetMask(mask.AsMask()); err != nil {
		return
	}
	keep.InvertMask()
	keep.DrawImage(ink.Image(), 0, 0)

	dst, ok := ink.Image().(xdraw.Image)
	if !ok {
		return
	}
	xdraw.Draw(dst, dst.Bounds(), keep.Image(), image.Point{}, xdraw.Src)
}
