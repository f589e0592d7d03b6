package sizing

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"studyboard/geom"
)

const (
	// DefaultDebounce coalesces resize bursts into one recomputation per frame.
	DefaultDebounce = 16 * time.Millisecond
	// DefaultThreshold is the pixel change below which nothing is republished.
	DefaultThreshold = 1.0
)

var ErrNoContainer = errors.New("sizing: container is nil")

// Container is the host element the canvas lives in.
type Container interface {
	Size() geom.Size
	// Watch delivers size changes until the returned stop func is called.
	Watch(func(geom.Size)) (stop func())
}

type Option func(*Manager)

func WithDebounce(d time.Duration) Option {
	return func(m *Manager) { m.debounce = d }
}

func WithThreshold(px float64) Option {
	return func(m *Manager) { m.threshold = px }
}

// Manager watches a container and republishes Dimensions to subscribers.
type Manager struct {
	mu        sync.Mutex
	cfg       Config
	debounce  time.Duration
	threshold float64

	stopWatch func()
	timer     *time.Timer
	gen       int // bumped on every arm and on Cleanup
	pending   geom.Size
	current   Dimensions
	published bool

	subscribers map[int]func(Dimensions)
	nextID      int
}

func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:         cfg,
		debounce:    DefaultDebounce,
		threshold:   DefaultThreshold,
		subscribers: make(map[int]func(Dimensions)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize computes dimensions for the container's current size, publishes
// them, and subscribes to later resizes when AutoResize is enabled.
func (m *Manager) Initialize(c Container) error {
	if c == nil {
		return ErrNoContainer
	}
	m.mu.Lock()
	if m.stopWatch != nil {
		m.stopWatch()
		m.stopWatch = nil
	}
	autoResize := m.cfg.AutoResize
	m.mu.Unlock()

	m.apply(c.Size())

	if autoResize {
		stop := c.Watch(m.Notify)
		m.mu.Lock()
		m.stopWatch = stop
		m.mu.Unlock()
	}
	return nil
}

// Notify reports a new container size. Bursts are debounced.
func (m *Manager) Notify(size geom.Size) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = size
	if m.timer != nil {
		m.timer.Stop()
	}
	m.gen++
	gen := m.gen
	m.timer = time.AfterFunc(m.debounce, func() { m.fire(gen) })
}

// fire runs a debounced recompute unless a newer Notify or Cleanup
// superseded the timer that scheduled it.
func (m *Manager) fire(gen int) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	size := m.pending
	m.timer = nil
	m.mu.Unlock()
	m.apply(size)
}

func (m *Manager) apply(size geom.Size) {
	m.mu.Lock()
	dims := CalculateDimensions(size, m.cfg)
	if m.published && !changed(dims, m.current, m.threshold) {
		m.mu.Unlock()
		return
	}
	m.current = dims
	m.published = true
	subs := make([]func(Dimensions), 0, len(m.subscribers))
	for _, cb := range m.subscribers {
		subs = append(subs, cb)
	}
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"container": size,
		"canvas":    dims.Canvas,
	}).Debug("Canvas dimensions updated")

	for _, cb := range subs {
		cb(dims)
	}
}

// UpdateConfig swaps the constraints and recomputes for the last known size.
func (m *Manager) UpdateConfig(cfg Config) {
	m.mu.Lock()
	m.cfg = cfg
	size := m.current.Container
	m.published = false
	m.mu.Unlock()
	m.apply(size)
}

// Dimensions returns the last published dimensions.
func (m *Manager) Dimensions() (Dimensions, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.published
}

// OnResize registers cb for every republished Dimensions.
func (m *Manager) OnResize(cb func(Dimensions)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subscribers[id] = cb
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
		})
	}
}

// Cleanup stops watching, drops pending work and clears subscribers.
// It may be called any number of times.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopWatch != nil {
		m.stopWatch()
		m.stopWatch = nil
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
	clear(m.subscribers)
}
