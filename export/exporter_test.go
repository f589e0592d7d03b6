package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"studyboard/element"
	"studyboard/geom"
	"studyboard/lifecycle"
	"studyboard/render"
	"studyboard/theme"
)

type fakeSurface struct {
	opts     []render.RasterOptions
	selected geom.Rect
	hasSel   bool
	err      error
}

func (f *fakeSurface) Rasterize(o render.RasterOptions) (image.Image, error) {
	f.opts = append(f.opts, o)
	if f.err != nil {
		return nil, f.err
	}
	w := int(o.Region.Width * o.PixelRatio)
	h := int(o.Region.Height * o.PixelRatio)
	if w == 0 || h == 0 {
		w, h = int(300*o.PixelRatio), int(100*o.PixelRatio)
	}
	return image.NewNRGBA(image.Rect(0, 0, w, h)), nil
}

func (f *fakeSurface) SelectedRect() (geom.Rect, bool) { return f.selected, f.hasSel }

func realSurface(t *testing.T) *render.Surface {
	t.Helper()
	pal, _ := theme.NewProvider().Palette(theme.Light)
	s, err := render.NewSurface("export", geom.Size{Width: 120, Height: 80}, pal, lifecycle.NewManager())
	if err != nil {
		t.Fatal(err)
	}
	s.Sync([]element.Element{&element.Rectangle{
		Base: element.Base{ID: "r", Position: geom.Point{X: 10, Y: 10}, Scale: element.UnitScale,
			Style: element.Style{Fill: "#0000ff", Stroke: "#0000ff", StrokeWidth: 1}},
		Box: element.Box{Size: geom.Size{Width: 40, Height: 40}},
	}}, "r")
	return s
}

func TestExportPNG(t *testing.T) {
	var buf bytes.Buffer
	var stages []Progress
	err := New().Export(context.Background(), realSurface(t), &buf, Options{Format: PNG}, func(p Progress) {
		stages = append(stages, p)
	})
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 240 || b.Dy() != 160 {
		t.Fatalf("default multiplier not applied: %v", b)
	}

	want := []Stage{StagePreparing, StageProcessing, StageGenerating, StageGenerating, StageComplete}
	if len(stages) != len(want) {
		t.Fatalf("stages = %+v", stages)
	}
	last := 0
	for i, p := range stages {
		if p.Stage != want[i] || p.Percent < last || p.Message == "" {
			t.Fatalf("stage %d = %+v", i, p)
		}
		last = p.Percent
	}
	if last != 100 {
		t.Fatalf("final percent = %d", last)
	}
}

func TestExportJPG(t *testing.T) {
	var buf bytes.Buffer
	if err := New().Export(context.Background(), realSurface(t), &buf, Options{Format: "jpeg", Multiplier: 1, Quality: 80}, nil); err != nil {
		t.Fatal(err)
	}
	img, err := jpeg.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 120 || b.Dy() != 80 {
		t.Fatalf("bounds = %v", b)
	}
}

func TestExportPDF(t *testing.T) {
	var buf bytes.Buffer
	if err := New().Export(context.Background(), realSurface(t), &buf, Options{Format: PDF}, nil); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("not a PDF: %q", buf.Bytes()[:min(16, buf.Len())])
	}
}

func TestPageSize(t *testing.T) {
	w, h, landscape := PageSize(960, 480)
	if !landscape || w != 254 || h != 127 {
		t.Fatalf("PageSize(960,480) = %v, %v, %v", w, h, landscape)
	}
	if _, _, landscape := PageSize(480, 480); landscape {
		t.Fatal("square page is landscape")
	}
	if _, _, landscape := PageSize(100, 480); landscape {
		t.Fatal("tall page is landscape")
	}
}

func TestSelectedOnlyRegion(t *testing.T) {
	f := &fakeSurface{selected: geom.Rect{X: 5, Y: 5, Width: 10, Height: 20}, hasSel: true}
	var buf bytes.Buffer
	if err := New().Export(context.Background(), f, &buf, Options{Format: PNG, SelectedOnly: true, Multiplier: 3}, nil); err != nil {
		t.Fatal(err)
	}
	got := f.opts[0]
	if got.Region != f.selected || got.PixelRatio != 3 || got.Background {
		t.Fatalf("raster options = %+v", got)
	}

	f.hasSel = false
	buf.Reset()
	err := New().Export(context.Background(), f, &buf, Options{Format: PNG, SelectedOnly: true}, nil)
	if !errors.Is(err, ErrNothingToExport) || buf.Len() != 0 {
		t.Fatalf("err = %v, wrote %d bytes", err, buf.Len())
	}
}

func TestExportFailures(t *testing.T) {
	tests := []struct {
		name    string
		surface Surface
		opts    Options
		want    error
	}{
		{"unsupported", &fakeSurface{}, Options{Format: "gif"}, ErrUnsupportedFormat},
		{"no surface", nil, Options{Format: PNG}, ErrNoSurface},
		{"released", &fakeSurface{err: render.ErrReleased}, Options{Format: PDF}, ErrNoSurface},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := New().Export(context.Background(), tt.surface, &buf, tt.opts, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if buf.Len() != 0 {
				t.Fatalf("partial output of %d bytes", buf.Len())
			}
		})
	}
}

func TestExportFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "board.svg")
	opts := Options{Elements: []element.Element{&element.Text{
		Base: element.Base{ID: "t", Position: geom.Point{X: 10, Y: 10}},
		Text: "Hi", FontSize: 16,
	}}}
	if err := New().ExportFile(context.Background(), nil, path, opts, nil); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `<text x="10" y="26" font-size="16"`) {
		t.Fatalf("svg = %s", data)
	}

	bad := filepath.Join(dir, "board.png")
	if err := New().ExportFile(context.Background(), nil, bad, Options{}, nil); !errors.Is(err, ErrNoSurface) {
		t.Fatalf("err = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("failed export left files behind: %v", entries)
	}
}
