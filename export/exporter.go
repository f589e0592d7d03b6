// Package export serializes a board to PNG, JPG, PDF or SVG.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/go-pdf/fpdf"
	"github.com/sirupsen/logrus"

	"studyboard/element"
	"studyboard/geom"
	"studyboard/render"
)

type Format string

const (
	PNG Format = "png"
	JPG Format = "jpg"
	PDF Format = "pdf"
	SVG Format = "svg"
)

// Formats lists the supported formats in the order the host cycles them.
var Formats = []Format{PNG, JPG, PDF, SVG}

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(s, ".")))
	if f == "jpeg" {
		f = JPG
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

var (
	ErrUnsupportedFormat = errors.New("export: unsupported format")
	ErrNoSurface         = errors.New("export: no render surface")
	ErrNothingToExport   = errors.New("export: nothing to export")
)

const (
	DefaultMultiplier = 2.0
	DefaultQuality    = 92
	// Raster pixels are taken to be 96 DPI when sized on a PDF page.
	pdfDPI = 96
)

// Surface is the part of a render surface the exporter rasterizes.
type Surface interface {
	Rasterize(render.RasterOptions) (image.Image, error)
	SelectedRect() (geom.Rect, bool)
}

type Options struct {
	Format Format
	// Quality is the JPEG quality, 1 to 100.
	Quality int
	// Multiplier is the pixel ratio raster formats are drawn at.
	Multiplier        float64
	Filename          string
	IncludeBackground bool
	SelectedOnly      bool
	// Elements is the snapshot SVG export walks.
	Elements []element.Element
	// Selected names the selected element for SVG selected-only export.
	Selected string
}

// Stage names a step of an export.
type Stage string

const (
	StagePreparing  Stage = "preparing"
	StageProcessing Stage = "processing"
	StageGenerating Stage = "generating"
	StageComplete   Stage = "complete"
)

type Progress struct {
	Stage   Stage
	Percent int
	Message string
}

type ProgressFunc func(Progress)

type Exporter struct {
	log *logrus.Entry
}

func New() *Exporter {
	return &Exporter{log: logrus.WithField("component", "export")}
}

// Export writes the board in opts.Format to w. The output is assembled in
// memory first so a failed export writes nothing.
func (x *Exporter) Export(ctx context.Context, s Surface, w io.Writer, opts Options, onProgress ProgressFunc) error {
	report := func(stage Stage, pct int, msg string) {
		if onProgress != nil {
			onProgress(Progress{Stage: stage, Percent: pct, Message: msg})
		}
	}

	format := opts.Format
	if format == "" {
		format = PNG
	}
	format, err := ParseFormat(string(format))
	if err != nil {
		return err
	}
	report(StagePreparing, 10, "Preparing export")

	var buf bytes.Buffer
	switch format {
	case SVG:
		elements := opts.Elements
		if opts.SelectedOnly {
			elements = selectedOnly(elements, opts.Selected)
			if len(elements) == 0 {
				return ErrNothingToExport
			}
		}
		report(StageProcessing, 30, "Collecting elements")
		if err := ctx.Err(); err != nil {
			return err
		}
		report(StageGenerating, 70, "Writing SVG markup")
		if err := WriteSVG(&buf, elements); err != nil {
			return err
		}
	default:
		if s == nil {
			return ErrNoSurface
		}
		report(StageProcessing, 30, "Rendering canvas")
		img, err := x.rasterize(s, opts)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		report(StageGenerating, 70, fmt.Sprintf("Encoding %s", strings.ToUpper(string(format))))
		if err := encode(&buf, img, format, opts); err != nil {
			return fmt.Errorf("failed to encode %s: %w", format, err)
		}
	}
	report(StageGenerating, 90, "Saving file")

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	x.log.WithFields(logrus.Fields{
		"format": format,
		"bytes":  buf.Len(),
	}).Debug("Export complete")
	report(StageComplete, 100, "Export complete")
	return nil
}

// ExportFile exports to path, replacing it only once the export succeeded.
func (x *Exporter) ExportFile(ctx context.Context, s Surface, path string, opts Options, onProgress ProgressFunc) error {
	if opts.Format == "" {
		if f, err := ParseFormat(filepath.Ext(path)); err == nil {
			opts.Format = f
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := x.Export(ctx, s, tmp, opts, onProgress); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func (x *Exporter) rasterize(s Surface, opts Options) (image.Image, error) {
	ratio := opts.Multiplier
	if ratio <= 0 {
		ratio = DefaultMultiplier
	}
	ro := render.RasterOptions{PixelRatio: ratio, Background: opts.IncludeBackground}
	if opts.SelectedOnly {
		r, ok := s.SelectedRect()
		if !ok {
			return nil, ErrNothingToExport
		}
		ro.Region = r
	}
	img, err := s.Rasterize(ro)
	if errors.Is(err, render.ErrReleased) {
		return nil, fmt.Errorf("%w: %v", ErrNoSurface, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to rasterize: %w", err)
	}
	return img, nil
}

func encode(w io.Writer, img image.Image, format Format, opts Options) error {
	switch format {
	case PNG:
		return gg.NewContextForImage(img).EncodePNG(w)
	case JPG:
		q := opts.Quality
		if q <= 0 || q > 100 {
			q = DefaultQuality
		}
		return jpeg.Encode(w, flatten(img), &jpeg.Options{Quality: q})
	case PDF:
		return writePDF(w, img)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// flatten composites img over white; JPEG has no alpha channel.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	dc := gg.NewContext(b.Dx(), b.Dy())
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.DrawImage(img, -b.Min.X, -b.Min.Y)
	return dc.Image()
}

// PageSize returns the PDF page for a raster of w by h pixels.
func PageSize(w, h int) (width, height float64, landscape bool) {
	return float64(w) * 25.4 / pdfDPI, float64(h) * 25.4 / pdfDPI, w > h
}

func writePDF(w io.Writer, img image.Image) error {
	b := img.Bounds()
	width, height, landscape := PageSize(b.Dx(), b.Dy())

	var png bytes.Buffer
	if err := gg.NewContextForImage(img).EncodePNG(&png); err != nil {
		return err
	}

	orientation := "P"
	if landscape {
		orientation = "L"
	}
	// fpdf swaps the sides of landscape pages itself.
	size := fpdf.SizeType{Wd: min(width, height), Ht: max(width, height)}
	pdf := fpdf.NewCustom(&fpdf.InitType{OrientationStr: orientation, UnitStr: "mm", Size: size})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("board", opts, &png)
	pdf.ImageOptions("board", 0, 0, width, height, false, opts, 0, "")
	return pdf.Output(w)
}

func selectedOnly(elements []element.Element, selected string) []element.Element {
	if selected == "" {
		return nil
	}
	for _, e := range elements {
		if e.Header().ID == selected {
			return []element.Element{e}
		}
	}
	return nil
}
