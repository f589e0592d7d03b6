package main

import (
	"studyboard/engine"
	"studyboard/geom"
	"studyboard/interaction"
)

func (m *model) handleNavigation(key string) bool {
	b := m.board()
	if b == nil {
		return false
	}
	switch key {
	case "left", "h":
		b.Pan(geom.Point{X: -panStep})
	case "right", "l":
		b.Pan(geom.Point{X: panStep})
	case "up", "k":
		b.Pan(geom.Point{Y: -panStep})
	case "down", "j":
		b.Pan(geom.Point{Y: panStep})
	case "+", "=":
		b.Zoom(engine.ZoomStep, m.viewCenter())
	case "-", "_":
		b.Zoom(1/engine.ZoomStep, m.viewCenter())
	case "f":
		b.FitToContainer()
	case "0":
		b.CenterCanvas()
	default:
		return false
	}
	return true
}

// handleTransform rotates or scales the selected element.
func (m *model) handleTransform(key string) bool {
	b := m.board()
	if b == nil {
		return false
	}
	id, ok := b.Store().Selected()
	if !ok {
		return false
	}
	e, ok := b.Store().Get(id)
	if !ok {
		return false
	}
	h := e.Header()
	ts := interaction.TransformState{Position: h.Position, Rotation: h.Rotation, ScaleX: 1, ScaleY: 1}
	switch key {
	case "[":
		ts.Rotation -= rotateStep
	case "]":
		ts.Rotation += rotateStep
	case "<", ",":
		ts.ScaleX, ts.ScaleY = 1/scaleStep, 1/scaleStep
	case ">", ".":
		ts.ScaleX, ts.ScaleY = scaleStep, scaleStep
	default:
		return false
	}
	b.Controller().BeginTransform()
	if err := b.ApplyTransform(ts); err != nil {
		m.errorMessage = err.Error()
	}
	return true
}

// viewCenter is the screen point in the middle of the drawing area.
func (m *model) viewCenter() geom.Point {
	s := m.screen.Size()
	return geom.Point{X: s.Width / 2, Y: s.Height / 2}
}

// selectTool picks a tool by its 1-based position in the toolbar.
func (m *model) selectTool(key string) bool {
	if len(key) != 1 || key[0] < '1' || key[0] > '9' {
		return false
	}
	i := int(key[0] - '1')
	if i >= len(interaction.Tools) {
		return false
	}
	if b := m.board(); b != nil {
		b.SetTool(interaction.Tools[i])
	}
	return true
}
