// Package sizing computes responsive canvas dimensions for a container and
// republishes them as the container is resized.
package sizing

import (
	"math"

	"studyboard/geom"
)

// Config constrains the canvas. Zero MaxWidth/MaxHeight means unbounded.
type Config struct {
	MaintainAspectRatio bool    `yaml:"maintain_aspect_ratio"`
	AspectRatio         float64 `yaml:"aspect_ratio"`
	MinWidth            float64 `yaml:"min_width"`
	MinHeight           float64 `yaml:"min_height"`
	MaxWidth            float64 `yaml:"max_width"`
	MaxHeight           float64 `yaml:"max_height"`
	Padding             float64 `yaml:"padding"`
	AutoResize          bool    `yaml:"auto_resize"`
}

func DefaultConfig() Config {
	return Config{
		MaintainAspectRatio: false,
		AspectRatio:         16.0 / 9.0,
		MinWidth:            400,
		MinHeight:           300,
		Padding:             20,
		AutoResize:          true,
	}
}

// Dimensions is the authoritative output of sizing.
type Dimensions struct {
	Container geom.Size  `json:"container"`
	Canvas    geom.Size  `json:"canvas"`
	Scale     float64    `json:"scale"`
	Offset    geom.Point `json:"offset"`
}

// CalculateDimensions sizes the canvas for a container.
//
// When the min/max bounds leave no room for the exact aspect ratio, the bounds
// win: the result is always inside [min, max] and never larger than the
// padded container (itself floored at the minimums).
func CalculateDimensions(container geom.Size, cfg Config) Dimensions {
	available := geom.Size{
		Width:  math.Max(container.Width-2*cfg.Padding, cfg.MinWidth),
		Height: math.Max(container.Height-2*cfg.Padding, cfg.MinHeight),
	}

	w, h := available.Width, available.Height
	if ratio := cfg.AspectRatio; cfg.MaintainAspectRatio && ratio > 0 && h > 0 {
		if available.Width/available.Height > ratio {
			h = available.Height
			w = h * ratio
		} else {
			w = available.Width
			h = w / ratio
		}
	}

	w = clamp(w, cfg.MinWidth, cfg.MaxWidth)
	h = clamp(h, cfg.MinHeight, cfg.MaxHeight)

	if w > available.Width || h > available.Height {
		f := math.Min(available.Width/w, available.Height/h)
		w = clamp(w*f, cfg.MinWidth, cfg.MaxWidth)
		h = clamp(h*f, cfg.MinHeight, cfg.MaxHeight)
	}

	scale := 1.0
	if cfg.MinWidth > 0 {
		scale = math.Min(scale, w/cfg.MinWidth)
	}
	if cfg.MinHeight > 0 {
		scale = math.Min(scale, h/cfg.MinHeight)
	}

	return Dimensions{
		Container: container,
		Canvas:    geom.Size{Width: w, Height: h},
		Scale:     scale,
		Offset: geom.Point{
			X: math.Round((container.Width - w) / 2),
			Y: math.Round((container.Height - h) / 2),
		},
	}
}

func clamp(v, lo, hi float64) float64 {
	if hi > 0 && v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

// changed reports whether any dimension moved by more than threshold pixels.
func changed(a, b Dimensions, threshold float64) bool {
	diffs := []float64{
		a.Container.Width - b.Container.Width,
		a.Container.Height - b.Container.Height,
		a.Canvas.Width - b.Canvas.Width,
		a.Canvas.Height - b.Canvas.Height,
		a.Offset.X - b.Offset.X,
		a.Offset.Y - b.Offset.Y,
	}
	for _, d := range diffs {
		if math.Abs(d) > threshold {
			return true
		}
	}
	return false
}
