// Package theme supplies named color palettes keyed by theme id.
package theme

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	Light = "light"
	Dark  = "dark"
)

var ErrUnknownTheme = errors.New("theme: unknown theme")

type Palette struct {
	CanvasBackground string `yaml:"canvas_background"`
	CanvasBorder     string `yaml:"canvas_border"`
	StrokeColor      string `yaml:"stroke_color"`
	StickyColor      string `yaml:"sticky_color"`
	GridColor        string `yaml:"grid_color"`
	SelectionColor   string `yaml:"selection_color"`
	TextColor        string `yaml:"text_color"`
}

var builtin = map[string]Palette{
	Light: {
		CanvasBackground: "#ffffff",
		CanvasBorder:     "#e0e0e0",
		StrokeColor:      "#000000",
		StickyColor:      "#ffeb3b",
		GridColor:        "#f0f0f0",
		SelectionColor:   "#2196f3",
		TextColor:        "#000000",
	},
	Dark: {
		CanvasBackground: "#1e1e1e",
		CanvasBorder:     "#3c3c3c",
		StrokeColor:      "#ffffff",
		StickyColor:      "#fbc02d",
		GridColor:        "#2a2a2a",
		SelectionColor:   "#64b5f6",
		TextColor:        "#ffffff",
	},
}

// Provider resolves palettes by id. Palettes loaded from a file override or
// extend the built-in ones.
type Provider struct {
	mu       sync.RWMutex
	palettes map[string]Palette
	subs     map[int]func()
	nextSub  int
}

func NewProvider() *Provider {
	p := &Provider{
		palettes: make(map[string]Palette, len(builtin)),
		subs:     make(map[int]func()),
	}
	for id, pal := range builtin {
		p.palettes[id] = pal
	}
	return p
}

// Palette returns the palette for id, filling unset colors from light.
func (p *Provider) Palette(id string) (Palette, error) {
	p.mu.RLock()
	pal, ok := p.palettes[id]
	p.mu.RUnlock()
	if !ok {
		return builtin[Light], fmt.Errorf("%w %q", ErrUnknownTheme, id)
	}
	return pal.withDefaults(builtin[Light]), nil
}

func (p *Provider) IDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.palettes))
	for id := range p.palettes {
		ids = append(ids, id)
	}
	return ids
}

// OnChange registers fn to run whenever palettes are reloaded.
func (p *Provider) OnChange(fn func()) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// LoadFile reads a YAML document mapping theme ids to palettes.
func (p *Provider) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read palette file: %w", err)
	}
	var loaded map[string]Palette
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse palette file: %w", err)
	}
	for id, pal := range loaded {
		for _, c := range pal.colors() {
			if c == "" {
				continue
			}
			if _, err := ParseHex(c); err != nil {
				return fmt.Errorf("theme %q: %w", id, err)
			}
		}
	}

	p.mu.Lock()
	for id, pal := range loaded {
		p.palettes[id] = pal
	}
	subs := make([]func(), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
	return nil
}

func (pal Palette) colors() []string {
	return []string{pal.CanvasBackground, pal.CanvasBorder, pal.StrokeColor, pal.StickyColor, pal.GridColor, pal.SelectionColor, pal.TextColor}
}

func (pal Palette) withDefaults(d Palette) Palette {
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&pal.CanvasBackground, d.CanvasBackground)
	fill(&pal.CanvasBorder, d.CanvasBorder)
	fill(&pal.StrokeColor, d.StrokeColor)
	fill(&pal.StickyColor, d.StickyColor)
	fill(&pal.GridColor, d.GridColor)
	fill(&pal.SelectionColor, d.SelectionColor)
	fill(&pal.TextColor, d.TextColor)
	return pal
}

// ParseHex parses #rgb, #rrggbb and #rrggbbaa colors.
func ParseHex(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// Color parses s, falling back to fallback when s is empty or invalid.
func Color(s string, fallback color.Color) color.Color {
	if s == "" || s == "none" || s == "transparent" {
		return fallback
	}
	c, err := ParseHex(s)
	if err != nil {
		return fallback
	}
	return c
}
