// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fifo

const minSlots = 8

// Ring is a FIFO backed by a power-of-2 slot array that doubles when full.
//
// The zero value is an empty ring ready to use.
type Ring[T any] struct {
	buffer []T
	head   uint64 // Next slot to pop
	tail   uint64 // Next slot to push
	mask   uint64
}

// NewRing creates a ring with room for at least hint elements before
// the first growth. Hint is a sizing hint, not a bound.
func NewRing[T any](hint int) *Ring[T] {
	r := &Ring[T]{}
	if hint > 0 {
		r.grow(roundToPow2(hint))
	}
	return r
}

// Len returns the number of queued elements.
func (r *Ring[T]) Len() int {
	return int(r.tail - r.head)
}

// Push appends elem at the tail.
func (r *Ring[T]) Push(elem T) {
	if r.tail-r.head == uint64(len(r.buffer)) {
		r.grow(max(minSlots, 2*len(r.buffer)))
	}
	r.buffer[r.tail&r.mask] = elem
	r.tail++
}

// Pop removes and returns the head element.
// Returns false if the ring is empty.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	if r.head == r.tail {
		return zero, false
	}
	idx := r.head & r.mask
	elem := r.buffer[idx]
	r.buffer[idx] = zero
	r.head++
	return elem, true
}

// Peek returns the head element without removing it.
func (r *Ring[T]) Peek() (T, bool) {
	if r.head == r.tail {
		var zero T
		return zero, false
	}
	return r.buffer[r.head&r.mask], true
}

// Drain removes every element in FIFO order, calling fn for each.
// fn may be nil, in which case elements are dropped.
func (r *Ring[T]) Drain(fn func(T)) int {
	n := 0
	for {
		elem, ok := r.Pop()
		if !ok {
			return n
		}
		if fn != nil {
			fn(elem)
		}
		n++
	}
}

// grow reallocates to size slots (a power of 2), compacting elements
// to the front.
func (r *Ring[T]) grow(size int) {
	buf := make([]T, size)
	n := r.tail - r.head
	for i := uint64(0); i < n; i++ {
		buf[i] = r.buffer[(r.head+i)&r.mask]
	}
	r.buffer = buf
	r.head = 0
	r.tail = n
	r.mask = uint64(size) - 1
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
