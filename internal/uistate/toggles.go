// Package uistate holds the open/closed state of named panels.
package uistate

import (
	"sort"
	"sync"
)

const (
	Sidebar      = "sidebar"
	AdminSidebar = "admin_sidebar"
)

type Toggles struct {
	mu    sync.RWMutex
	state map[string]bool
	known map[string]struct{}
}

// New returns a container that accepts only the given panel names, or any
// name when none are given.
func New(names ...string) *Toggles {
	t := &Toggles{state: make(map[string]bool)}
	if len(names) > 0 {
		t.known = make(map[string]struct{}, len(names))
		for _, n := range names {
			t.known[n] = struct{}{}
		}
	}
	return t
}

func (t *Toggles) Known(name string) bool {
	if t.known == nil {
		return name != ""
	}
	_, ok := t.known[name]
	return ok
}

// Toggle flips name and returns the new state. Unknown names stay closed.
func (t *Toggles) Toggle(name string) bool {
	if !t.Known(name) {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state[name] = !t.state[name]
	return t.state[name]
}

func (t *Toggles) Open(name string)  { t.set(name, true) }
func (t *Toggles) Close(name string) { t.set(name, false) }

func (t *Toggles) set(name string, open bool) {
	if !t.Known(name) {
		return
	}
	t.mu.Lock()
	t.state[name] = open
	t.mu.Unlock()
}

func (t *Toggles) IsOpen(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state[name]
}

// Snapshot lists every known panel, closed ones included.
func (t *Toggles) Snapshot() map[string]bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]bool, len(t.known)+len(t.state))
	for n := range t.known {
		out[n] = false
	}
	for n, v := range t.state {
		out[n] = v
	}
	return out
}

func (t *Toggles) Names() []string {
	snap := t.Snapshot()
	names := make([]string, 0, len(snap))
	for n := range snap {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (t *Toggles) Reset() {
	t.mu.Lock()
	t.state = make(map[string]bool)
	t.mu.Unlock()
}
