package counter

import "sync"

// Counter is a shared integer cell advanced by a fixed increment.
type Counter struct {
	mu        sync.Mutex
	value     int64
	increment int64
}

// New returns a counter starting at start.
func New(start, increment int64) *Counter {
	return &Counter{value: start, increment: increment}
}

// ConditionalAdd adds the increment when advance is true and returns the resulting value.
// The read and the optional write happen in one critical section.
func (c *Counter) ConditionalAdd(advance bool) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if advance {
		c.value += c.increment
	}

	return c.value
}

// Value returns the current value.
func (c *Counter) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.value
}

// Increment returns the step added by ConditionalAdd.
func (c *Counter) Increment() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.increment
}
