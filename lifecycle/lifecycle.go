// Package lifecycle tracks render-surface handles so they are released
// exactly once, in reverse order of registration.
package lifecycle

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

type Kind int

const (
	KindStage Kind = iota
	KindLayer
	KindShape
	KindSubscription
)

func (k Kind) String() string {
	switch k {
	case KindStage:
		return "stage"
	case KindLayer:
		return "layer"
	case KindShape:
		return "shape"
	case KindSubscription:
		return "subscription"
	}
	return "unknown"
}

// CloserFunc adapts a plain func to io.Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }

// Handle is a registered resource.
type Handle struct {
	kind Kind
	name string
	res  io.Closer
	once sync.Once
}

func (h *Handle) Kind() Kind   { return h.kind }
func (h *Handle) Name() string { return h.name }

// Release closes the resource. Later calls do nothing.
func (h *Handle) Release() {
	h.once.Do(func() {
		if err := h.res.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"kind":  h.kind.String(),
				"name":  h.name,
				"error": err,
			}).Warn("Failed to release resource")
		}
	})
}

// Manager owns the handles of one board instance.
type Manager struct {
	mu      sync.Mutex
	handles []*Handle
}

func NewManager() *Manager {
	return &Manager{}
}

// Register records a resource for later release.
func (m *Manager) Register(kind Kind, name string, res io.Closer) *Handle {
	h := &Handle{kind: kind, name: name, res: res}
	m.mu.Lock()
	m.handles = append(m.handles, h)
	m.mu.Unlock()
	return h
}

// Release releases and forgets the named handles.
func (m *Manager) Release(name string) {
	m.releaseWhere(func(h *Handle) bool { return h.name == name })
}

// ReleaseKind releases and forgets every handle of the given kind, such as
// the in-flight shape nodes discarded on a tool change.
func (m *Manager) ReleaseKind(kind Kind) {
	m.releaseWhere(func(h *Handle) bool { return h.kind == kind })
}

func (m *Manager) releaseWhere(match func(*Handle) bool) {
	m.mu.Lock()
	var victims []*Handle
	kept := m.handles[:0]
	for _, h := range m.handles {
		if match(h) {
			victims = append(victims, h)
		} else {
			kept = append(kept, h)
		}
	}
	m.handles = kept
	m.mu.Unlock()

	for i := len(victims) - 1; i >= 0; i-- {
		victims[i].Release()
	}
}

// Len returns the number of live handles.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

// Cleanup releases everything, newest first. It never panics on handles that
// were already released and may be called repeatedly.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	handles := m.handles
	m.handles = nil
	m.mu.Unlock()

	for i := len(handles) - 1; i >= 0; i-- {
		handles[i].Release()
	}
	if len(handles) > 0 {
		logrus.WithField("count", len(handles)).Debug("Released render resources")
	}
}
