package main

import (
	"sync"

	"studyboard/element"
	"studyboard/engine"
	"studyboard/export"
	"studyboard/geom"
)

type Buffer struct {
	board   *engine.Board
	history *history
	name    string
	unwatch func()
}

type model struct {
	width              int
	height             int
	screen             *terminal
	buffers            []Buffer
	currentBufferIndex int
	mode               Mode
	help               bool
	helpScroll         int
	confirmAction      ConfirmAction
	editID             string
	editText           string
	exportFormat       export.Format
	pointerDown        bool
	errorMessage       string
	successMessage     string
	config             *Config
}

// Action is one undoable change to a board. Data is the element after the
// change and Inverse the element before it.
type Action struct {
	Type    ActionType
	Data    element.Element
	Inverse element.Element
	gesture int
}

// terminal reports the size of the drawing area in screen pixels and fans
// resizes out to every mounted board.
type terminal struct {
	mu       sync.Mutex
	size     geom.Size
	watchers map[int]func(geom.Size)
	nextID   int
}

func newTerminal() *terminal {
	return &terminal{watchers: make(map[int]func(geom.Size))}
}

func (t *terminal) Size() geom.Size {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size
}

func (t *terminal) Watch(fn func(geom.Size)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.watchers[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.watchers, id)
		t.mu.Unlock()
	}
}

// resize sets the drawing area from a terminal of cols by rows cells, one
// row being kept for the status line and one for the buffer bar.
func (t *terminal) resize(cols, rows int) {
	rows -= barRows + 1
	if rows < 1 {
		rows = 1
	}
	s := geom.Size{Width: float64(cols) * cellWidth, Height: float64(rows) * cellHeight}
	t.mu.Lock()
	t.size = s
	fns := make([]func(geom.Size), 0, len(t.watchers))
	for _, fn := range t.watchers {
		fns = append(fns, fn)
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// mouseToScreen maps a terminal cell to the drawing area below the buffer bar.
func mouseToScreen(x, y int) geom.Point {
	return cellToScreen(x, y-barRows)
}

// cellToScreen returns the screen pixel at the center of a cell.
func cellToScreen(x, y int) geom.Point {
	return geom.Point{X: float64(x)*cellWidth + cellWidth/2, Y: float64(y)*cellHeight + cellHeight/2}
}
