package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"studyboard/element"
	"studyboard/geom"
)

const (
	svgPadding      = 20.0
	stickyPadding   = 10.0
	stickyFill      = "#fff59d"
	lineSpacing     = 1.2
	charWidthFactor = 0.6
)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// escape makes s safe as XML character data. Runes XML 1.0 forbids are
// dropped and invalid UTF-8 becomes U+FFFD.
func escape(s string) string {
	return xmlEscaper.Replace(strings.Map(xmlRune, s))
}

func xmlRune(r rune) rune {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return r
	case r < 0x20, r == 0xFFFE, r == 0xFFFF:
		return -1
	}
	return r
}

func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// WriteSVG writes elements as a standalone SVG document sized to their
// bounds. Erasers and elements that cannot be rendered are left out.
func WriteSVG(w io.Writer, elements []element.Element) error {
	var b geom.Bounds
	var drawable []element.Element
	for _, e := range elements {
		if e.Kind() == element.KindEraser || !element.Renderable(e) {
			continue
		}
		drawable = append(drawable, e)
		if r, ok := element.Bounds(e); ok {
			b.AddRect(r)
		}
	}
	view, ok := b.Rect()
	if !ok {
		view = geom.Rect{Width: 1, Height: 1}
	}
	view = view.Inset(svgPadding)

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="%s %s %s %s">`+"\n",
		num(view.Width), num(view.Height), num(view.X), num(view.Y), num(view.Width), num(view.Height))
	for _, e := range drawable {
		writeElement(bw, e)
	}
	bw.WriteString("</svg>\n")
	return bw.Flush()
}

// ElementSVG returns the markup of a single element.
func ElementSVG(e element.Element) string {
	var sb strings.Builder
	bw := bufio.NewWriter(&sb)
	writeElement(bw, e)
	bw.Flush()
	return sb.String()
}

func writeElement(w *bufio.Writer, e element.Element) {
	h := e.Header()
	x, y := h.Position.X, h.Position.Y
	tf := transform(h)
	stroke := paint(h.Style.Stroke, "#000000")
	fill := paint(h.Style.Fill, "none")
	sw := h.Style.StrokeWidth
	if sw <= 0 {
		sw = 2
	}
	strokeAttrs := fmt.Sprintf(`stroke="%s" stroke-width="%s"`, escape(stroke), num(sw))

	switch v := e.(type) {
	case *element.Text:
		fmt.Fprintf(w, `<text x="%s" y="%s" font-size="%s" font-family="monospace" fill="%s"%s>%s</text>`+"\n",
			num(x), num(y+v.FontSize), num(v.FontSize), escape(paint(h.Style.Fill, "#000000")), tf, escape(v.Text))

	case *element.StickyNote:
		fmt.Fprintf(w, `<g%s>`+"\n", tf)
		fmt.Fprintf(w, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s" %s/>`+"\n",
			num(x), num(y), num(v.Size.Width), num(v.Size.Height), escape(paint(h.Style.Fill, stickyFill)), strokeAttrs)
		tx := x + stickyPadding
		fmt.Fprintf(w, `<text x="%s" y="%s" font-size="%s" font-family="monospace" fill="#000000">`,
			num(tx), num(y+stickyPadding+v.FontSize), num(v.FontSize))
		for i, line := range WrapText(v.Text, v.Size.Width-2*stickyPadding, v.FontSize) {
			dy := 0.0
			if i > 0 {
				dy = v.FontSize * lineSpacing
			}
			fmt.Fprintf(w, `<tspan x="%s" dy="%s">%s</tspan>`, num(tx), num(dy), escape(line))
		}
		w.WriteString("</text>\n</g>\n")

	case *element.Rectangle:
		fmt.Fprintf(w, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s" %s%s/>`+"\n",
			num(x), num(y), num(v.Size.Width), num(v.Size.Height), escape(fill), strokeAttrs, tf)

	case *element.Circle:
		rx, ry := v.Size.Width/2, v.Size.Height/2
		if rx == ry {
			fmt.Fprintf(w, `<circle cx="%s" cy="%s" r="%s" fill="%s" %s%s/>`+"\n",
				num(x+rx), num(y+ry), num(rx), escape(fill), strokeAttrs, tf)
		} else {
			fmt.Fprintf(w, `<ellipse cx="%s" cy="%s" rx="%s" ry="%s" fill="%s" %s%s/>`+"\n",
				num(x+rx), num(y+ry), num(rx), num(ry), escape(fill), strokeAttrs, tf)
		}

	case *element.Triangle:
		fmt.Fprintf(w, `<polygon points="%s,%s %s,%s %s,%s" fill="%s" %s%s/>`+"\n",
			num(x+v.Size.Width/2), num(y), num(x+v.Size.Width), num(y+v.Size.Height), num(x), num(y+v.Size.Height),
			escape(fill), strokeAttrs, tf)

	case *element.Line:
		p := v.Points
		fmt.Fprintf(w, `<line x1="%s" y1="%s" x2="%s" y2="%s" %s stroke-linecap="round"%s/>`+"\n",
			num(x+p[0]), num(y+p[1]), num(x+p[len(p)-2]), num(y+p[len(p)-1]), strokeAttrs, tf)

	case *element.Freehand:
		fmt.Fprintf(w, `<path d="%s" fill="none" %s stroke-linecap="round" stroke-linejoin="round"%s/>`+"\n",
			pathData(v.Points, h.Position), strokeAttrs, tf)
	}
}

// pathData turns a flattened x,y list into "M x y L x y ..." commands.
func pathData(pts []float64, offset geom.Point) string {
	var sb strings.Builder
	for i := 0; i+1 < len(pts); i += 2 {
		if i == 0 {
			sb.WriteString("M ")
		} else {
			sb.WriteString(" L ")
		}
		sb.WriteString(num(pts[i] + offset.X))
		sb.WriteByte(' ')
		sb.WriteString(num(pts[i+1] + offset.Y))
	}
	return sb.String()
}

// transform rotates and scales about the element position, the same way the
// raster renderer does.
func transform(h *element.Base) string {
	sx, sy := h.Scale.X, h.Scale.Y
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	if h.Rotation == 0 && sx == 1 && sy == 1 {
		return ""
	}
	x, y := num(h.Position.X), num(h.Position.Y)
	var parts []string
	parts = append(parts, "translate("+x+" "+y+")")
	if h.Rotation != 0 {
		parts = append(parts, "rotate("+num(h.Rotation)+")")
	}
	if sx != 1 || sy != 1 {
		parts = append(parts, "scale("+num(sx)+" "+num(sy)+")")
	}
	parts = append(parts, "translate("+num(-h.Position.X)+" "+num(-h.Position.Y)+")")
	return ` transform="` + strings.Join(parts, " ") + `"`
}

func paint(c, fallback string) string {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case "", "transparent":
		return fallback
	}
	return c
}

// WrapText breaks s on whitespace into lines of at most
// floor(maxWidth / (fontSize*0.6)) characters. Words longer than a line are
// placed on a line of their own.
func WrapText(s string, maxWidth, fontSize float64) []string {
	if fontSize <= 0 {
		fontSize = element.StickyFontSize
	}
	maxChars := int(math.Floor(maxWidth / (fontSize * charWidthFactor)))
	if maxChars < 1 {
		maxChars = 1
	}
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		var cur string
		for _, word := range strings.Fields(para) {
			switch {
			case cur == "":
				cur = word
			case utf8.RuneCountInString(cur)+1+utf8.RuneCountInString(word) <= maxChars:
				cur += " " + word
			default:
				lines = append(lines, cur)
				cur = word
			}
		}
		lines = append(lines, cur)
	}
	return lines
}
