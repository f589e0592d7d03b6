package element

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"studyboard/geom"
)

type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeUpdated
	ChangeRemoved
	ChangeSelected
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeUpdated:
		return "updated"
	case ChangeRemoved:
		return "removed"
	case ChangeSelected:
		return "selected"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// Change describes one mutation of the collection. Element is a copy; for
// removals it is the element as it was, for selection changes it is nil and
// ID holds the new selection ("" when cleared).
type Change struct {
	Kind    ChangeKind
	ID      string
	Element Element
	Remote  bool
}

// SyncSink receives local mutations for the synchronization layer.
type SyncSink interface {
	Publish(Change)
}

// Store is the single owning collection of a board's elements plus its
// single-element selection. Every operation is immediately consistent.
type Store struct {
	mu       sync.RWMutex
	elements []Element
	index    map[string]int
	selected string

	subs    map[int]func(Change)
	nextSub int
	sink    SyncSink
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		index: make(map[string]int),
		subs:  make(map[int]func(Change)),
		now:   time.Now,
	}
}

// SetSink wires the synchronization layer; nil disconnects it.
func (s *Store) SetSink(sink SyncSink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

// SetClock replaces the time source used for UpdatedAt.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Subscribe registers fn for every change. Callbacks run after the store's
// lock is released, on the goroutine that made the change.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) emit(c Change) {
	s.mu.RLock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	sink := s.sink
	s.mu.RUnlock()

	if sink != nil && !c.Remote {
		sink.Publish(c)
	}
	for _, fn := range fns {
		fn(c)
	}
}

// Add appends a new element. An empty id is filled with a fresh one.
func (s *Store) Add(e Element) error {
	return s.add(e, false)
}

func (s *Store) add(e Element, remote bool) error {
	e = e.Clone()
	h := e.Header()
	if h.ID == "" {
		h.ID = NewID()
	}

	s.mu.Lock()
	if _, exists := s.index[h.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateID, h.ID)
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = s.now()
	}
	if h.UpdatedAt.IsZero() {
		h.UpdatedAt = h.CreatedAt
	}
	s.index[h.ID] = len(s.elements)
	s.elements = append(s.elements, e)
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"element_id": h.ID,
		"type":       string(e.Kind()),
		"remote":     remote,
	}).Debug("Element added")

	s.emit(Change{Kind: ChangeAdded, ID: h.ID, Element: e.Clone(), Remote: remote})
	return nil
}

// Update applies fn to the stored element and stamps UpdatedAt.
func (s *Store) Update(id string, fn func(Element)) error {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e := s.elements[i]
	fn(e)
	e.Header().ID = id
	e.Header().UpdatedAt = s.now()
	snapshot := e.Clone()
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeUpdated, ID: id, Element: snapshot})
	return nil
}

// Replace swaps the stored element with the same id for e.
func (s *Store) Replace(e Element) error {
	return s.replace(e, false)
}

func (s *Store) replace(e Element, remote bool) error {
	e = e.Clone()
	id := e.Header().ID
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.elements[i] = e
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeUpdated, ID: id, Element: e.Clone(), Remote: remote})
	return nil
}

// Remove deletes an element, clearing the selection if it pointed at it.
func (s *Store) Remove(id string) error {
	return s.remove(id, false)
}

func (s *Store) remove(id string, remote bool) error {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	removed := s.elements[i]
	s.elements = append(s.elements[:i], s.elements[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.elements); j++ {
		s.index[s.elements[j].Header().ID] = j
	}
	deselected := s.selected == id
	if deselected {
		s.selected = ""
	}
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeRemoved, ID: id, Element: removed, Remote: remote})
	if deselected {
		s.emit(Change{Kind: ChangeSelected, Remote: remote})
	}
	return nil
}

// ApplyRemote upserts an element pushed by the synchronization layer without
// echoing it back to the sink.
func (s *Store) ApplyRemote(e Element) error {
	s.mu.RLock()
	_, exists := s.index[e.Header().ID]
	s.mu.RUnlock()
	if exists {
		return s.replace(e, true)
	}
	return s.add(e, true)
}

// RemoveRemote deletes an element on behalf of the synchronization layer.
func (s *Store) RemoveRemote(id string) error {
	return s.remove(id, true)
}

func (s *Store) Get(id string) (Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.elements[i].Clone(), true
}

// List returns copies of all elements in paint order.
func (s *Store) List() []Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Element, len(s.elements))
	for i, e := range s.elements {
		out[i] = e.Clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.elements)
}

// Select makes id the only selected element. An empty id clears the
// selection.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	if id != "" {
		if _, ok := s.index[id]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	}
	if s.selected == id {
		s.mu.Unlock()
		return nil
	}
	s.selected = id
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeSelected, ID: id})
	return nil
}

func (s *Store) ClearSelection() {
	_ = s.Select("")
}

func (s *Store) Selected() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected, s.selected != ""
}

// ElementAt returns the topmost renderable element whose bounds contain p.
func (s *Store) ElementAt(p geom.Point, tolerance float64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.elements) - 1; i >= 0; i-- {
		e := s.elements[i]
		if _, eraser := e.(*Eraser); eraser {
			continue
		}
		if Renderable(e) && Contains(e, p, tolerance) {
			return e.Header().ID, true
		}
	}
	return "", false
}
