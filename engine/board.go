// Package engine wires the canvas subsystems of one board together.
//
// A Board owns its element store, coordinate system, sizing manager,
// interaction controller, render surface and resource manager. Nothing is
// shared between boards, so several may be mounted side by side.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"studyboard/element"
	"studyboard/export"
	"studyboard/geom"
	"studyboard/interaction"
	"studyboard/lifecycle"
	"studyboard/render"
	"studyboard/sizing"
	"studyboard/theme"
)

var ErrClosed = errors.New("engine: board closed")

// ZoomStep is the factor one zoom in or out applies.
const ZoomStep = 1.2

type Options struct {
	Name   string
	Sizing sizing.Config
	// Theme is the palette id; empty selects theme.Light.
	Theme  string
	Themes *theme.Provider
	// PaletteFile is an optional YAML palette file watched for changes.
	PaletteFile string
	Author      string
	Sink        element.SyncSink
	SizingOpts  []sizing.Option
}

type Board struct {
	name       string
	store      *element.Store
	coords     *geom.CoordinateSystem
	sizer      *sizing.Manager
	controller *interaction.Controller
	resources  *lifecycle.Manager
	surface    *render.Surface
	exporter   *export.Exporter
	themes     *theme.Provider
	log        *logrus.Entry

	mu      sync.Mutex
	themeID string
	mounted bool
	closed  bool
}

func New(opts Options) (*Board, error) {
	if opts.Name == "" {
		opts.Name = "board-" + element.NewID()
	}
	if opts.Themes == nil {
		opts.Themes = theme.NewProvider()
	}
	if opts.Theme == "" {
		opts.Theme = theme.Light
	}
	if opts.Sizing == (sizing.Config{}) {
		opts.Sizing = sizing.DefaultConfig()
	}

	b := &Board{
		name:      opts.Name,
		store:     element.NewStore(),
		coords:    geom.NewCoordinateSystem(),
		sizer:     sizing.NewManager(opts.Sizing, opts.SizingOpts...),
		resources: lifecycle.NewManager(),
		exporter:  export.New(),
		themes:    opts.Themes,
		themeID:   opts.Theme,
		log:       logrus.WithField("board", opts.Name),
	}
	b.store.SetSink(opts.Sink)
	b.controller = interaction.NewController(b.store, b.coords, b.resources)
	b.controller.SetAuthor(opts.Author)

	if opts.PaletteFile != "" {
		if err := b.themes.LoadFile(opts.PaletteFile); err != nil {
			b.log.WithError(err).Warn("Failed to load palette file")
		}
		w, err := b.themes.Watch(opts.PaletteFile, theme.DefaultWatchDebounce)
		if err != nil {
			b.log.WithError(err).Warn("Failed to watch palette file")
		} else {
			b.resources.Register(lifecycle.KindSubscription, b.name+"/palette-watch", w)
		}
	}

	pal, err := b.themes.Palette(b.themeID)
	if err != nil {
		b.log.WithError(err).Warn("Falling back to light theme")
	}
	initial := geom.Size{Width: opts.Sizing.MinWidth, Height: opts.Sizing.MinHeight}
	b.surface, err = render.NewSurface(b.name, initial, pal, b.resources)
	if err != nil {
		return nil, fmt.Errorf("failed to create render surface: %w", err)
	}

	unsubStore := b.store.Subscribe(b.onChange)
	b.resources.Register(lifecycle.KindSubscription, b.name+"/store", lifecycle.CloserFunc(func() error {
		unsubStore()
		return nil
	}))
	unsubResize := b.sizer.OnResize(b.onResize)
	b.resources.Register(lifecycle.KindSubscription, b.name+"/resize", lifecycle.CloserFunc(func() error {
		unsubResize()
		return nil
	}))
	unsubTheme := b.themes.OnChange(b.refreshPalette)
	b.resources.Register(lifecycle.KindSubscription, b.name+"/theme", lifecycle.CloserFunc(func() error {
		unsubTheme()
		return nil
	}))
	return b, nil
}

// Mount attaches the board to its host container. Pointer input is ignored
// until the board is mounted.
func (b *Board) Mount(c sizing.Container) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.mu.Unlock()

	if err := b.sizer.Initialize(c); err != nil {
		return err
	}
	b.mu.Lock()
	b.mounted = true
	b.mu.Unlock()
	b.controller.Attach(true)
	return nil
}

func (b *Board) onResize(d sizing.Dimensions) {
	b.coords.SetOrigin(d.Offset)
	b.coords.UpdateSizes(d.Container, d.Canvas)
	b.surface.Resize(d.Canvas)
	b.surface.SetView(b.coords.Transform())
	b.log.WithField("canvas", d.Canvas).Debug("Board resized")
}

func (b *Board) onChange(c element.Change) {
	selected, _ := b.store.Selected()
	b.surface.Sync(b.store.List(), selected)
}

func (b *Board) refreshPalette() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	id := b.themeID
	b.mu.Unlock()
	pal, err := b.themes.Palette(id)
	if err != nil {
		b.log.WithError(err).Warn("Theme no longer available")
	}
	b.surface.SetPalette(pal)
}

// SetTheme switches palettes and re-derives the render colors.
func (b *Board) SetTheme(id string) error {
	if _, err := b.themes.Palette(id); err != nil {
		return err
	}
	b.mu.Lock()
	b.themeID = id
	b.mu.Unlock()
	b.refreshPalette()
	return nil
}

func (b *Board) Theme() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.themeID
}

func (b *Board) Palette() theme.Palette { return b.surface.Palette() }

func (b *Board) Name() string                            { return b.name }
func (b *Board) Store() *element.Store                   { return b.store }
func (b *Board) Coordinates() *geom.CoordinateSystem     { return b.coords }
func (b *Board) Controller() *interaction.Controller     { return b.controller }
func (b *Board) Surface() *render.Surface                { return b.surface }
func (b *Board) Resources() *lifecycle.Manager           { return b.resources }
func (b *Board) Dimensions() (sizing.Dimensions, bool)   { return b.sizer.Dimensions() }
func (b *Board) Notify(container geom.Size)              { b.sizer.Notify(container) }
func (b *Board) UpdateSizing(cfg sizing.Config)          { b.sizer.UpdateConfig(cfg) }
func (b *Board) SetTool(t interaction.Tool)              { b.controller.SetTool(t) }
func (b *Board) Tool() interaction.Tool                  { return b.controller.Tool() }
func (b *Board) HandleKey(key string) bool               { return b.controller.HandleKey(key) }
func (b *Board) PointerDown(ev interaction.PointerEvent) { b.controller.PointerDown(ev) }
func (b *Board) PointerMove(ev interaction.PointerEvent) { b.controller.PointerMove(ev) }
func (b *Board) PointerUp(ev interaction.PointerEvent)   { b.controller.PointerUp(ev) }
func (b *Board) SetStyle(s element.Style)                { b.controller.SetStyle(s) }
func (b *Board) ApplyRemote(e element.Element) error     { return b.store.ApplyRemote(e) }
func (b *Board) RemoveRemote(id string) error            { return b.store.RemoveRemote(id) }
func (b *Board) Elements() []element.Element             { return b.store.List() }
func (b *Board) Select(id string) error                  { return b.store.Select(id) }
func (b *Board) ApplyTransform(ts interaction.TransformState) error {
	return b.controller.ApplyTransform(ts)
}

// SetTransform sets the view transform; out of range scales are clamped.
func (b *Board) SetTransform(scale float64, offset geom.Point) {
	b.coords.UpdateTransform(scale, offset)
	b.surface.SetView(b.coords.Transform())
}

// Zoom scales the view by factor keeping the world point under the screen
// point at fixed.
func (b *Board) Zoom(factor float64, at geom.Point) {
	t := b.coords.Transform()
	world := b.coords.ScreenToWorld(at)
	scale := geom.ClampScale(t.Scale * factor)
	canvas := b.coords.ScreenToCanvas(at)
	b.SetTransform(scale, world.Sub(canvas.Mul(scale)))
}

// Pan moves the view by d screen pixels.
func (b *Board) Pan(d geom.Point) {
	t := b.coords.Transform()
	b.SetTransform(t.Scale, t.Offset.Sub(d.Mul(t.Scale)))
}

func (b *Board) FitToContainer() {
	t := b.coords.FitToContainer()
	b.SetTransform(t.Scale, t.Offset)
}

func (b *Board) CenterCanvas() {
	t := b.coords.CenterCanvas()
	b.SetTransform(t.Scale, t.Offset)
}

// Rasterize draws the board's canvas at ratio for the host to display.
func (b *Board) Rasterize(ratio float64, background bool) (image.Image, error) {
	return b.surface.Rasterize(render.RasterOptions{PixelRatio: ratio, Background: background})
}

// ExportCanvas exports a snapshot of the board taken at call time.
func (b *Board) ExportCanvas(ctx context.Context, w io.Writer, opts export.Options, onProgress export.ProgressFunc) error {
	s := b.snapshot(&opts)
	return b.exporter.Export(ctx, s, w, opts, onProgress)
}

// ExportFile exports a snapshot of the board to path.
func (b *Board) ExportFile(ctx context.Context, path string, opts export.Options, onProgress export.ProgressFunc) error {
	s := b.snapshot(&opts)
	return b.exporter.ExportFile(ctx, s, path, opts, onProgress)
}

func (b *Board) snapshot(opts *export.Options) export.Surface {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if opts.Elements == nil {
		opts.Elements = b.store.List()
	}
	if opts.Selected == "" {
		opts.Selected, _ = b.store.Selected()
	}
	if closed || b.surface.Released() {
		return nil
	}
	return b.surface
}

// Mounted reports whether the board is attached to a container.
func (b *Board) Mounted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mounted
}

// Close releases every resource of the board. Calling it again is a no-op.
func (b *Board) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mounted = false
	b.mu.Unlock()

	b.controller.Attach(false)
	b.sizer.Cleanup()
	b.resources.Cleanup()
	b.log.Debug("Board closed")
}
