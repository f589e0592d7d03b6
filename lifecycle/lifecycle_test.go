package lifecycle

import (
	"errors"
	"testing"
)

type tracker struct {
	order []string
}

func (tr *tracker) closer(name string, err error) CloserFunc {
	return func() error {
		tr.order = append(tr.order, name)
		return err
	}
}

func TestCleanupReleasesInReverseOnce(t *testing.T) {
	tr := &tracker{}
	m := NewManager()
	m.Register(KindStage, "stage", tr.closer("stage", nil))
	m.Register(KindLayer, "layer", tr.closer("layer", nil))
	m.Register(KindShape, "shape", tr.closer("shape", errors.New("boom")))

	m.Cleanup()
	m.Cleanup()

	want := []string{"shape", "layer", "stage"}
	if len(tr.order) != len(want) {
		t.Fatalf("released %v, want %v", tr.order, want)
	}
	for i := range want {
		if tr.order[i] != want[i] {
			t.Fatalf("released %v, want %v", tr.order, want)
		}
	}
	if m.Len() != 0 {
		t.Fatalf("Len = %d after cleanup", m.Len())
	}
}

func TestHandleReleasedBeforeCleanup(t *testing.T) {
	tr := &tracker{}
	m := NewManager()
	h := m.Register(KindShape, "node", tr.closer("node", nil))
	h.Release()
	m.Cleanup()
	if len(tr.order) != 1 {
		t.Fatalf("node released %d times", len(tr.order))
	}
}

func TestReleaseKind(t *testing.T) {
	tr := &tracker{}
	m := NewManager()
	m.Register(KindLayer, "layer", tr.closer("layer", nil))
	m.Register(KindShape, "a", tr.closer("a", nil))
	m.Register(KindShape, "b", tr.closer("b", nil))

	m.ReleaseKind(KindShape)
	if len(tr.order) != 2 || tr.order[0] != "b" || tr.order[1] != "a" {
		t.Fatalf("released %v", tr.order)
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}

	m.Release("layer")
	m.Release("layer")
	if len(tr.order) != 3 || m.Len() != 0 {
		t.Fatalf("released %v, Len %d", tr.order, m.Len())
	}
}

func TestRegisterAfterCleanup(t *testing.T) {
	tr := &tracker{}
	m := NewManager()
	m.Cleanup()
	m.Register(KindStage, "stage", tr.closer("stage", nil))
	m.Cleanup()
	if len(tr.order) != 1 {
		t.Fatalf("released %v", tr.order)
	}
}
