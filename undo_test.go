package main

import (
	"testing"
	"time"

	"studyboard/element"
	"studyboard/geom"
)

func newTrackedStore(t *testing.T) (*element.Store, *history) {
	t.Helper()
	store := element.NewStore()
	h := newHistory()
	t.Cleanup(store.Subscribe(h.observe))
	return store, h
}

func addRect(t *testing.T, store *element.Store, pos geom.Point) string {
	t.Helper()
	e, err := element.New(element.KindRectangle, pos, element.Style{}, "ana", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Add(e); err != nil {
		t.Fatal(err)
	}
	return e.Header().ID
}

func moveTo(t *testing.T, store *element.Store, id string, p geom.Point) {
	t.Helper()
	if err := store.Update(id, func(e element.Element) { e.Header().Position = p }); err != nil {
		t.Fatal(err)
	}
}

func position(t *testing.T, store *element.Store, id string) geom.Point {
	t.Helper()
	e, ok := store.Get(id)
	if !ok {
		t.Fatalf("element %s missing", id)
	}
	return e.Header().Position
}

func TestUndoRedoAdd(t *testing.T) {
	store, h := newTrackedStore(t)
	id := addRect(t, store, geom.Point{X: 5, Y: 5})
	if h.lastAdded != id {
		t.Errorf("lastAdded = %q, want %q", h.lastAdded, id)
	}

	h.undo(store)
	if store.Len() != 0 {
		t.Fatalf("after undo Len = %d, want 0", store.Len())
	}
	if !h.canRedo() || h.canUndo() {
		t.Fatalf("canUndo=%v canRedo=%v after undo", h.canUndo(), h.canRedo())
	}

	h.redo(store)
	if got := position(t, store, id); got != (geom.Point{X: 5, Y: 5}) {
		t.Errorf("after redo position = %v", got)
	}
	if len(h.undoStack) != 1 {
		t.Errorf("undo stack = %d, want 1", len(h.undoStack))
	}
}

func TestUndoCoalescesGesture(t *testing.T) {
	store, h := newTrackedStore(t)
	id := addRect(t, store, geom.Point{})

	h.beginGesture()
	moveTo(t, store, id, geom.Point{X: 10})
	moveTo(t, store, id, geom.Point{X: 20})
	moveTo(t, store, id, geom.Point{X: 30})
	if len(h.undoStack) != 2 {
		t.Fatalf("undo stack = %d, want 2 (add + one drag)", len(h.undoStack))
	}

	h.undo(store)
	if got := position(t, store, id); got != (geom.Point{}) {
		t.Errorf("after undo position = %v, want origin", got)
	}
	h.redo(store)
	if got := position(t, store, id); got != (geom.Point{X: 30}) {
		t.Errorf("after redo position = %v, want {30 0}", got)
	}
}

func TestUndoSeparateGestures(t *testing.T) {
	store, h := newTrackedStore(t)
	id := addRect(t, store, geom.Point{})

	h.beginGesture()
	moveTo(t, store, id, geom.Point{X: 10})
	h.beginGesture()
	moveTo(t, store, id, geom.Point{X: 20})

	h.undo(store)
	if got := position(t, store, id); got != (geom.Point{X: 10}) {
		t.Errorf("after one undo position = %v, want {10 0}", got)
	}
}

func TestUndoRemoveRestores(t *testing.T) {
	store, h := newTrackedStore(t)
	id := addRect(t, store, geom.Point{X: 3, Y: 4})
	if err := store.Remove(id); err != nil {
		t.Fatal(err)
	}

	h.undo(store)
	if got := position(t, store, id); got != (geom.Point{X: 3, Y: 4}) {
		t.Errorf("restored position = %v", got)
	}
	h.redo(store)
	if store.Len() != 0 {
		t.Errorf("after redo Len = %d, want 0", store.Len())
	}
}

func TestRemoteChangesNotRecorded(t *testing.T) {
	store, h := newTrackedStore(t)
	e, _ := element.New(element.KindCircle, geom.Point{X: 1, Y: 1}, element.Style{}, "bo", time.Now())
	if err := store.ApplyRemote(e); err != nil {
		t.Fatal(err)
	}
	if h.canUndo() {
		t.Fatal("remote add was recorded")
	}

	// A local edit of a remote element still undoes to the remote state.
	id := e.Header().ID
	moveTo(t, store, id, geom.Point{X: 50})
	h.undo(store)
	if got := position(t, store, id); got != (geom.Point{X: 1, Y: 1}) {
		t.Errorf("after undo position = %v", got)
	}
}

func TestNewActionClearsRedo(t *testing.T) {
	store, h := newTrackedStore(t)
	addRect(t, store, geom.Point{})
	h.undo(store)
	addRect(t, store, geom.Point{X: 1})
	if h.canRedo() {
		t.Error("redo survived a new action")
	}
}
