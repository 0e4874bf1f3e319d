package counter

import (
	"slices"
	"sync"
)

// Registry maps lookup names to counters. The zero value is not usable, use NewRegistry.
type Registry struct {
	mu       sync.Mutex
	counters map[string]*Counter
	created  int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{counters: map[string]*Counter{}}
}

// GetOrCreate returns the counter registered under name. When there is none, a counter is created
// with start and increment and registered. An existing counter is returned unchanged: the first
// registrant wins.
func (r *Registry) GetOrCreate(name string, start, increment int64) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.counters[name]; ok {
		return c
	}
	c := New(start, increment)
	r.counters[name] = c
	r.created++

	return c
}

// Get returns the counter registered under name, if any.
func (r *Registry) Get(name string) (*Counter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.counters[name]

	return c, ok
}

// Remove forgets name. Counters already handed out keep working. Removing an unknown name is a
// no-op.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.counters, name)
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.counters))
	for name := range r.counters {
		names = append(names, name)
	}
	r.mu.Unlock()

	slices.Sort(names)

	return names
}

// Created returns how many counters the registry has constructed since it was allocated.
func (r *Registry) Created() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.created
}

func (r *Registry) snapshot() map[string]*Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]*Counter, len(r.counters))
	for name, c := range r.counters {
		out[name] = c
	}

	return out
}
