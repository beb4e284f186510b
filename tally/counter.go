// Package tally provides small atomic counters shared between goroutines.
package tally

import "sync/atomic"

// Integer enumerates the numeric types a Counter can hold.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Counter is an atomic numeric cell. The zero value holds 0 and is ready
// to use. Updates are atomic on the counter itself only; no ordering of
// other memory is implied by reading or writing one.
type Counter[T Integer] struct {
	v atomic.Int64
}

// Inc adds 1 and returns the new value.
func (c *Counter[T]) Inc() T {
	return T(c.v.Add(1))
}

// Add adds delta and returns the new value. Signed instantiations may pass
// a negative delta. Values wrap around on overflow.
func (c *Counter[T]) Add(delta T) T {
	return T(c.v.Add(int64(delta)))
}

// Get returns the current value.
func (c *Counter[T]) Get() T {
	return T(c.v.Load())
}

// Swap stores v and returns the previous value.
func (c *Counter[T]) Swap(v T) T {
	return T(c.v.Swap(int64(v)))
}

// Reset stores 0.
func (c *Counter[T]) Reset() {
	c.v.Store(0)
}
