package interaction

import (
	"strings"
	"sync"
)

var keyAliases = map[string]string{
	"escape": "esc",
	"del":    "delete",
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	if alias, ok := keyAliases[k]; ok {
		return alias
	}
	return k
}

// Keymap holds the keyboard bindings of a single board, so several boards
// can live side by side without sharing shortcuts.
type Keymap struct {
	mu       sync.RWMutex
	bindings map[string]func()
}

func NewKeymap() *Keymap {
	return &Keymap{bindings: make(map[string]func())}
}

func (k *Keymap) Bind(key string, fn func()) {
	k.mu.Lock()
	k.bindings[normalizeKey(key)] = fn
	k.mu.Unlock()
}

func (k *Keymap) Unbind(key string) {
	k.mu.Lock()
	delete(k.bindings, normalizeKey(key))
	k.mu.Unlock()
}

// Dispatch runs the binding for key and reports whether one existed.
func (k *Keymap) Dispatch(key string) bool {
	k.mu.RLock()
	fn, ok := k.bindings[normalizeKey(key)]
	k.mu.RUnlock()
	if !ok {
		return false
	}
	fn()
	return true
}
