// Package ringbuf provides a fixed-capacity FIFO that evicts its oldest entry
// on overflow.
package ringbuf

// Buffer holds at most Cap() values. It is not safe for concurrent use.
type Buffer[T any] struct {
	items []T
	head  int
	size  int
}

// New returns an empty buffer with the given capacity. A capacity below one is
// treated as one.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// From returns a buffer holding the last capacity values of vs.
func From[T any](capacity int, vs []T) *Buffer[T] {
	b := New[T](capacity)
	for _, v := range vs {
		b.Push(v)
	}
	return b
}

func (b *Buffer[T]) Cap() int { return len(b.items) }

func (b *Buffer[T]) Len() int { return b.size }

// Push appends v, evicting the oldest value when full. It reports whether a
// value was evicted.
func (b *Buffer[T]) Push(v T) bool {
	if b.size < len(b.items) {
		b.items[(b.head+b.size)%len(b.items)] = v
		b.size++
		return false
	}
	b.items[b.head] = v
	b.head = (b.head + 1) % len(b.items)
	return true
}

// At returns the i-th value, oldest first.
func (b *Buffer[T]) At(i int) T {
	if i < 0 || i >= b.size {
		panic("ringbuf: index out of range")
	}
	return b.items[(b.head+i)%len(b.items)]
}

// Slice copies the values out, oldest first.
func (b *Buffer[T]) Slice() []T {
	out := make([]T, b.size)
	for i := range out {
		out[i] = b.At(i)
	}
	return out
}

// Last copies out at most n of the newest values, oldest first.
func (b *Buffer[T]) Last(n int) []T {
	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return []T{}
	}
	out := make([]T, n)
	offset := b.size - n
	for i := range out {
		out[i] = b.At(offset + i)
	}
	return out
}

func (b *Buffer[T]) Reset() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head, b.size = 0, 0
}
