package theme

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultWatchDebounce is how long a palette file must stay quiet before it
// is reloaded.
const DefaultWatchDebounce = 250 * time.Millisecond

// Watcher reloads a palette file into a Provider whenever it changes.
type Watcher struct {
	watcher   *fsnotify.Watcher
	provider  *Provider
	path      string
	debounce  time.Duration
	stopCh    chan struct{}
	stoppedCh chan struct{}
	mu        sync.Mutex
	running   bool
}

// Watch starts watching path. The directory is watched rather than the file
// so editors that save by rename are picked up.
func (p *Provider) Watch(path string, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	w := &Watcher{
		watcher:   fw,
		provider:  p,
		path:      path,
		debounce:  debounce,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
		running:   true,
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher and waits for its goroutine. Safe to call twice.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.stoppedCh
	return nil
}

func (w *Watcher) loop() {
	defer close(w.stoppedCh)
	defer w.watcher.Close()

	absPath, _ := filepath.Abs(w.path)
	base := filepath.Base(w.path)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			eventAbs, _ := filepath.Abs(event.Name)
			if filepath.Base(event.Name) != base && eventAbs != absPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			fire = timer.C

		case <-fire:
			timer, fire = nil, nil
			if err := w.provider.LoadFile(w.path); err != nil {
				logrus.WithField("error", err).Warn("Failed to reload palette file")
				continue
			}
			logrus.WithField("path", w.path).Info("Palette file reloaded")

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logrus.WithField("error", err).Warn("Palette watcher error")
		}
	}
}
