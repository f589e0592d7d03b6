package element

import (
	"errors"
	"testing"
	"time"

	"studyboard/geom"
)

type recordingSink struct {
	changes []Change
}

func (r *recordingSink) Publish(c Change) { r.changes = append(r.changes, c) }

func rect(id string, x, y float64) *Rectangle {
	return &Rectangle{
		Base: Base{ID: id, Position: geom.Point{X: x, Y: y}, Scale: UnitScale},
		Box:  Box{Size: geom.Size{Width: 10, Height: 10}},
	}
}

func TestStoreCRUD(t *testing.T) {
	s := NewStore()
	fixed := time.Unix(1700000000, 0)
	s.SetClock(func() time.Time { return fixed })

	if err := s.Add(rect("a", 0, 0)); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(rect("a", 0, 0)); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("duplicate add err = %v", err)
	}
	if err := s.Add(rect("", 5, 5)); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d", s.Len())
	}
	if s.List()[1].Header().ID == "" {
		t.Fatal("empty id not assigned")
	}

	if err := s.Update("a", func(e Element) { e.Header().Position.X = 42 }); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Get("a")
	if got.Header().Position.X != 42 || !got.Header().UpdatedAt.Equal(fixed) {
		t.Fatalf("updated element = %+v", got.Header())
	}

	// Returned copies do not alias the store.
	got.Header().Position.X = -1
	again, _ := s.Get("a")
	if again.Header().Position.X != 42 {
		t.Fatal("Get returned an alias")
	}

	if err := s.Update("missing", func(Element) {}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing err = %v", err)
	}
	if err := s.Remove("a"); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Get("a"); ok {
		t.Fatal("removed element still present")
	}
	if err := s.Remove("a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove err = %v", err)
	}
}

func TestStoreSelectionExclusive(t *testing.T) {
	s := NewStore()
	_ = s.Add(rect("a", 0, 0))
	_ = s.Add(rect("b", 20, 0))

	var selections []string
	s.Subscribe(func(c Change) {
		if c.Kind == ChangeSelected {
			selections = append(selections, c.ID)
		}
	})

	if err := s.Select("a"); err != nil {
		t.Fatal(err)
	}
	if err := s.Select("b"); err != nil {
		t.Fatal(err)
	}
	if id, ok := s.Selected(); !ok || id != "b" {
		t.Fatalf("Selected = %q, %v", id, ok)
	}
	if err := s.Select("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("select missing err = %v", err)
	}
	if id, _ := s.Selected(); id != "b" {
		t.Fatalf("failed select changed selection to %q", id)
	}

	_ = s.Remove("b")
	if _, ok := s.Selected(); ok {
		t.Fatal("selection survived removal")
	}
	want := []string{"a", "b", ""}
	if len(selections) != len(want) {
		t.Fatalf("selections = %q, want %q", selections, want)
	}
	for i := range want {
		if selections[i] != want[i] {
			t.Fatalf("selections = %q, want %q", selections, want)
		}
	}
}

func TestStoreSinkSkipsRemote(t *testing.T) {
	s := NewStore()
	sink := &recordingSink{}
	s.SetSink(sink)

	_ = s.Add(rect("local", 0, 0))
	_ = s.ApplyRemote(rect("remote", 0, 0))
	_ = s.ApplyRemote(rect("remote", 50, 50))
	_ = s.RemoveRemote("remote")

	if len(sink.changes) != 1 || sink.changes[0].ID != "local" {
		t.Fatalf("sink got %+v", sink.changes)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestStoreUnsubscribe(t *testing.T) {
	s := NewStore()
	calls := 0
	unsubscribe := s.Subscribe(func(Change) { calls++ })
	_ = s.Add(rect("a", 0, 0))
	unsubscribe()
	unsubscribe()
	_ = s.Add(rect("b", 0, 0))
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestStoreElementAt(t *testing.T) {
	s := NewStore()
	_ = s.Add(rect("bottom", 0, 0))
	_ = s.Add(rect("top", 5, 5))
	_ = s.Add(&Eraser{Base: Base{ID: "eraser", Scale: UnitScale}, Points: []float64{0, 0, 20, 20}})
	_ = s.Add(&Unknown{Base: Base{ID: "ghost"}, Type: "blob"})

	tests := []struct {
		p    geom.Point
		want string
		ok   bool
	}{
		{geom.Point{X: 7, Y: 7}, "top", true},
		{geom.Point{X: 2, Y: 2}, "bottom", true},
		{geom.Point{X: 14, Y: 14}, "top", true},
		{geom.Point{X: 50, Y: 50}, "", false},
	}
	for _, tt := range tests {
		id, ok := s.ElementAt(tt.p, 0)
		if id != tt.want || ok != tt.ok {
			t.Errorf("ElementAt(%+v) = %q, %v; want %q, %v", tt.p, id, ok, tt.want, tt.ok)
		}
	}
}
