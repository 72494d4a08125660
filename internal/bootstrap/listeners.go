package bootstrap

import "sync"

// Index is what listeners are told about.
type Index interface {
	Name() string
}

// Listener observes bootstrap progress. Callbacks run on the dispatcher
// goroutine, one at a time.
type Listener interface {
	BootstrapDidStart(idx Index)
	BootstrapDidFinish(idx Index, err error)
}

// ListenerFuncs adapts plain functions to Listener. Use it by pointer.
type ListenerFuncs struct {
	OnStart  func(idx Index)
	OnFinish func(idx Index, err error)
}

func (f *ListenerFuncs) BootstrapDidStart(idx Index) {
	if f.OnStart != nil {
		f.OnStart(idx)
	}
}

func (f *ListenerFuncs) BootstrapDidFinish(idx Index, err error) {
	if f.OnFinish != nil {
		f.OnFinish(idx, err)
	}
}

// Listeners is a set of listeners compared by identity. Listener values must
// be comparable; pointers are the usual choice.
type Listeners struct {
	mu    sync.RWMutex
	items []Listener
}

// Add registers l. Adding the same listener twice has no effect.
func (s *Listeners) Add(l Listener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if existing == l {
			return
		}
	}
	s.items = append(s.items, l)
}

// Remove unregisters l. Returns false if it was not registered.
func (s *Listeners) Remove(l Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.items {
		if existing == l {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the current listeners.
func (s *Listeners) Snapshot() []Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Listener, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of registered listeners.
func (s *Listeners) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
