package main

import (
	"github.com/sirupsen/logrus"

	"studyboard/element"
)

// history records local store changes as undoable actions. Updates made
// during one pointer gesture collapse into a single action.
type history struct {
	undoStack []Action
	redoStack []Action
	shadow    map[string]element.Element
	replaying bool
	gesture   int
	lastAdded string
}

func newHistory() *history {
	return &history{shadow: make(map[string]element.Element)}
}

// beginGesture starts a new pointer gesture.
func (h *history) beginGesture() {
	h.gesture++
}

func (h *history) observe(c element.Change) {
	var action Action
	switch c.Kind {
	case element.ChangeAdded:
		h.shadow[c.ID] = c.Element
		h.lastAdded = c.ID
		action = Action{Type: ActionAdd, Data: c.Element}
	case element.ChangeRemoved:
		delete(h.shadow, c.ID)
		action = Action{Type: ActionRemove, Inverse: c.Element}
	case element.ChangeUpdated:
		before := h.shadow[c.ID]
		h.shadow[c.ID] = c.Element
		if before == nil {
			return
		}
		action = Action{Type: ActionUpdate, Data: c.Element, Inverse: before}
	default:
		return
	}
	if c.Remote || h.replaying {
		return
	}
	action.gesture = h.gesture
	h.record(action)
}

func (h *history) record(a Action) {
	if n := len(h.undoStack); n > 0 && a.Type == ActionUpdate {
		last := &h.undoStack[n-1]
		if last.Type == ActionUpdate && last.gesture == a.gesture && last.Data.Header().ID == a.Data.Header().ID {
			last.Data = a.Data
			return
		}
	}
	h.undoStack = append(h.undoStack, a)
	h.redoStack = h.redoStack[:0]
}

func (h *history) canUndo() bool { return len(h.undoStack) > 0 }
func (h *history) canRedo() bool { return len(h.redoStack) > 0 }

func (h *history) undo(store *element.Store) {
	if len(h.undoStack) == 0 {
		return
	}
	lastIndex := len(h.undoStack) - 1
	action := h.undoStack[lastIndex]
	h.undoStack = h.undoStack[:lastIndex]

	h.replay(func() error {
		switch action.Type {
		case ActionAdd:
			return store.Remove(action.Data.Header().ID)
		case ActionRemove:
			return store.Add(action.Inverse)
		case ActionUpdate:
			return store.Replace(action.Inverse)
		}
		return nil
	})
	h.redoStack = append(h.redoStack, action)
}

func (h *history) redo(store *element.Store) {
	if len(h.redoStack) == 0 {
		return
	}
	lastIndex := len(h.redoStack) - 1
	action := h.redoStack[lastIndex]
	h.redoStack = h.redoStack[:lastIndex]

	h.replay(func() error {
		switch action.Type {
		case ActionAdd:
			return store.Add(action.Data)
		case ActionRemove:
			return store.Remove(action.Inverse.Header().ID)
		case ActionUpdate:
			return store.Replace(action.Data)
		}
		return nil
	})
	h.undoStack = append(h.undoStack, action)
}

func (h *history) replay(fn func() error) {
	h.replaying = true
	defer func() { h.replaying = false }()
	if err := fn(); err != nil {
		logrus.WithError(err).Warn("Failed to replay history")
	}
}
