// Package ringbuf provides a fixed-capacity FIFO ring that evicts its oldest
// element when full. It is not safe for concurrent use; owners guard it with
// their own lock.
package ringbuf

// Ring holds at most Cap() values of T in insertion order.
type Ring[T any] struct {
	buf   []T
	head  int // index of the oldest element
	count int

	evicted uint64
}

// New creates a ring with the given capacity. Minimum capacity is 1.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v. When the ring is full the oldest element is dropped and
// Push returns true.
func (r *Ring[T]) Push(v T) (evicted bool) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = v
		r.count++
		return false
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	r.evicted++
	return true
}

// Last returns the most recently pushed element.
func (r *Ring[T]) Last() (T, bool) {
	if r.count == 0 {
		var zero T
		return zero, false
	}
	return r.buf[(r.head+r.count-1)%len(r.buf)], true
}

// Items returns a copy of the contents, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Len returns the current number of elements.
func (r *Ring[T]) Len() int { return r.count }

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Evicted returns the total number of elements dropped to make room.
func (r *Ring[T]) Evicted() uint64 { return r.evicted }

