package engine

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"studyboard/element"
	"studyboard/export"
	"studyboard/geom"
	"studyboard/interaction"
	"studyboard/sizing"
	"studyboard/theme"
)

type fakeContainer struct {
	mu    sync.Mutex
	size  geom.Size
	watch func(geom.Size)
}

func (c *fakeContainer) Size() geom.Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *fakeContainer) Watch(fn func(geom.Size)) func() {
	c.mu.Lock()
	c.watch = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.watch = nil
		c.mu.Unlock()
	}
}

type recordingSink struct {
	mu      sync.Mutex
	changes []element.Change
}

func (s *recordingSink) Publish(c element.Change) {
	s.mu.Lock()
	s.changes = append(s.changes, c)
	s.mu.Unlock()
}

func mounted(t *testing.T, opts Options) *Board {
	t.Helper()
	if opts.Sizing == (sizing.Config{}) {
		opts.Sizing = sizing.Config{MaintainAspectRatio: true, AspectRatio: 16.0 / 9.0, MinWidth: 400, MinHeight: 300, Padding: 20}
	}
	b, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(b.Close)
	if err := b.Mount(&fakeContainer{size: geom.Size{Width: 600, Height: 800}}); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestMountSizesEverything(t *testing.T) {
	b := mounted(t, Options{Name: "a"})
	d, ok := b.Dimensions()
	if !ok || d.Canvas != (geom.Size{Width: 560, Height: 315}) {
		t.Fatalf("dimensions = %+v", d)
	}
	if got := b.Surface().Size(); got != d.Canvas {
		t.Fatalf("surface size = %+v", got)
	}
	if _, canvas := b.Coordinates().Sizes(); canvas != d.Canvas {
		t.Fatalf("coordinate canvas = %+v", canvas)
	}
	if !b.Mounted() {
		t.Fatal("board not mounted")
	}
}

func TestPointerInputBeforeMountIsIgnored(t *testing.T) {
	b, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	b.SetTool(interaction.ToolRectangle)
	b.PointerDown(interaction.PointerEvent{Screen: geom.Point{X: 50, Y: 50}})
	if b.Store().Len() != 0 {
		t.Fatal("unmounted board created an element")
	}
}

func TestPointerCreatesRenderedElement(t *testing.T) {
	sink := &recordingSink{}
	b := mounted(t, Options{Author: "ana", Sink: sink})
	b.SetTool(interaction.ToolRectangle)
	at := geom.Point{X: 100, Y: 300}
	b.PointerDown(interaction.PointerEvent{Screen: at})
	b.PointerUp(interaction.PointerEvent{Screen: at})

	list := b.Elements()
	if len(list) != 1 {
		t.Fatalf("elements = %d", len(list))
	}
	if got, want := list[0].Header().Position, b.Coordinates().ScreenToWorld(at); got != want {
		t.Fatalf("position = %+v, want %+v", got, want)
	}
	if list[0].Header().CreatedBy != "ana" {
		t.Fatalf("author = %q", list[0].Header().CreatedBy)
	}
	if n := b.Surface().Nodes(); len(n) != 1 || n[0].ID != list[0].Header().ID {
		t.Fatalf("nodes = %+v", n)
	}
	if len(sink.changes) != 1 || sink.changes[0].Kind != element.ChangeAdded {
		t.Fatalf("sink saw %+v", sink.changes)
	}

	b.SetTool(interaction.ToolSelect)
	if err := b.Select(list[0].Header().ID); err != nil {
		t.Fatal(err)
	}
	b.HandleKey("Delete")
	if b.Store().Len() != 0 || len(b.Surface().Nodes()) != 0 {
		t.Fatal("delete did not reach the surface")
	}
}

func TestRemoteChangesAreRenderedButNotEchoed(t *testing.T) {
	sink := &recordingSink{}
	b := mounted(t, Options{Sink: sink})
	r := &element.Rectangle{Base: element.Base{ID: "remote", Scale: element.UnitScale}, Box: element.Box{Size: geom.Size{Width: 5, Height: 5}}}
	if err := b.ApplyRemote(r); err != nil {
		t.Fatal(err)
	}
	if len(b.Surface().Nodes()) != 1 {
		t.Fatal("remote element not rendered")
	}
	if len(sink.changes) != 0 {
		t.Fatalf("remote change echoed: %+v", sink.changes)
	}
	if err := b.RemoveRemote("remote"); err != nil {
		t.Fatal(err)
	}
	if len(b.Surface().Nodes()) != 0 {
		t.Fatal("remote removal not rendered")
	}
}

func TestSetTheme(t *testing.T) {
	b := mounted(t, Options{})
	if err := b.SetTheme(theme.Dark); err != nil {
		t.Fatal(err)
	}
	if b.Palette().CanvasBackground != "#1e1e1e" || b.Theme() != theme.Dark {
		t.Fatalf("palette = %+v", b.Palette())
	}
	if err := b.SetTheme("sepia"); !errors.Is(err, theme.ErrUnknownTheme) {
		t.Fatalf("err = %v", err)
	}
	if b.Theme() != theme.Dark {
		t.Fatal("failed theme switch changed the theme")
	}
}

func TestZoomKeepsPointFixed(t *testing.T) {
	b := mounted(t, Options{})
	at := geom.Point{X: 200, Y: 400}
	before := b.Coordinates().ScreenToWorld(at)
	b.Zoom(ZoomStep, at)
	after := b.Coordinates().ScreenToWorld(at)
	if math.Abs(before.X-after.X) > 1e-9 || math.Abs(before.Y-after.Y) > 1e-9 {
		t.Fatalf("point moved from %+v to %+v", before, after)
	}
	for i := 0; i < 50; i++ {
		b.Zoom(ZoomStep, at)
	}
	if s := b.Coordinates().Transform().Scale; s != geom.MaxScale {
		t.Fatalf("scale = %v, want clamped to %v", s, geom.MaxScale)
	}
}

func TestBoardsAreIndependent(t *testing.T) {
	a := mounted(t, Options{Name: "a"})
	b := mounted(t, Options{Name: "b"})
	a.SetTool(interaction.ToolCircle)
	a.PointerDown(interaction.PointerEvent{Screen: geom.Point{X: 100, Y: 300}})
	if a.Store().Len() != 1 || b.Store().Len() != 0 {
		t.Fatalf("stores = %d, %d", a.Store().Len(), b.Store().Len())
	}
	if b.Tool() != interaction.ToolSelect {
		t.Fatalf("tool leaked to second board: %s", b.Tool())
	}
}

func TestExportSnapshot(t *testing.T) {
	b := mounted(t, Options{})
	_ = b.Store().Add(&element.Text{Base: element.Base{ID: "t", Position: geom.Point{X: 10, Y: 10}, Scale: element.UnitScale},
		Box: element.Box{Size: geom.Size{Width: 200, Height: 30}}, Text: "Hi", FontSize: 16})

	var buf bytes.Buffer
	if err := b.ExportCanvas(context.Background(), &buf, export.Options{Format: export.SVG}, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `<text x="10" y="26" font-size="16"`) {
		t.Fatalf("svg = %s", buf.String())
	}

	buf.Reset()
	if err := b.ExportCanvas(context.Background(), &buf, export.Options{Format: export.PNG, Multiplier: 1}, nil); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Fatal("empty png")
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	b := mounted(t, Options{})
	b.SetTool(interaction.ToolFreehand)
	b.PointerDown(interaction.PointerEvent{Screen: geom.Point{X: 100, Y: 300}})

	b.Close()
	b.Close()
	if n := b.Resources().Len(); n != 0 {
		t.Fatalf("%d handles left after close", n)
	}
	if !b.Surface().Released() || b.Mounted() {
		t.Fatal("surface still live after close")
	}

	b.PointerMove(interaction.PointerEvent{Screen: geom.Point{X: 120, Y: 320}})
	b.PointerUp(interaction.PointerEvent{Screen: geom.Point{X: 120, Y: 320}})
	if b.Store().Len() != 0 {
		t.Fatal("closed board accepted a stroke")
	}

	err := b.ExportCanvas(context.Background(), &bytes.Buffer{}, export.Options{Format: export.PNG}, nil)
	if !errors.Is(err, export.ErrNoSurface) {
		t.Fatalf("err = %v, want ErrNoSurface", err)
	}
	if err := b.Mount(&fakeContainer{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("mount after close = %v", err)
	}
}

func TestSharedThemeProviderAfterClose(t *testing.T) {
	themes := theme.NewProvider()
	a := mounted(t, Options{Name: "a", Themes: themes})
	b := mounted(t, Options{Name: "b", Themes: themes})
	before := a.Palette().CanvasBackground
	a.Close()

	path := filepath.Join(t.TempDir(), "palettes.yaml")
	if err := os.WriteFile(path, []byte("light:\n  canvas_background: \"#abcdef\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := themes.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	if got := b.Palette().CanvasBackground; got != "#abcdef" {
		t.Errorf("open board background = %q, want #abcdef", got)
	}
	if got := a.Palette().CanvasBackground; got != before {
		t.Errorf("closed board background changed to %q", got)
	}
}
