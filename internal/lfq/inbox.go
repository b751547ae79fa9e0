// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Inbox is a bounded lock-free ring with many producers and one consumer.
//
// Each cell carries a sequence number. A producer claims position p only
// when its cell's sequence equals p, and publishes by storing p+1; the
// consumer frees the cell for the next lap by storing p+size. A producer
// that finds the ring full claims nothing, so the consumer never waits on
// an unpublished cell left by a failed Offer.
type Inbox[T any] struct {
	_    pad
	tail atomix.Uint64 // Producers CAS here
	_    pad
	head uint64 // Consumer only
	_    pad
	cells []inboxCell[T]
	mask  uint64
}

type inboxCell[T any] struct {
	seq atomix.Uint64
	val T
	_   padShort
}

// NewInbox creates an inbox holding at least capacity values.
// Capacity rounds up to the next power of 2.
// Panics if capacity < 2.
func NewInbox[T any](capacity int) *Inbox[T] {
	if capacity < 2 {
		panic("lfq: capacity must be >= 2")
	}
	n := uint64(roundToPow2(capacity))
	q := &Inbox[T]{
		cells: make([]inboxCell[T], n),
		mask:  n - 1,
	}
	for i := range q.cells {
		q.cells[i].seq.StoreRelaxed(uint64(i))
	}
	return q
}

// Offer publishes v (any goroutine).
// Returns ErrWouldBlock if the ring is full.
func (q *Inbox[T]) Offer(v T) error {
	sw := spin.Wait{}
	for {
		pos := q.tail.LoadAcquire()
		cell := &q.cells[pos&q.mask]
		seq := cell.seq.LoadAcquire()

		switch diff := int64(seq - pos); {
		case diff == 0:
			if q.tail.CompareAndSwapAcqRel(pos, pos+1) {
				cell.val = v
				cell.seq.StoreRelease(pos + 1)
				return nil
			}
		case diff < 0:
			// The consumer has not freed this cell from the previous lap.
			return ErrWouldBlock
		}
		// Lost the race for pos.
		sw.Once()
	}
}

// Poll takes the oldest value (consumer only). ok is false when the ring
// is empty or the next value is claimed but not yet published.
func (q *Inbox[T]) Poll() (v T, ok bool) {
	cell := &q.cells[q.head&q.mask]
	if cell.seq.LoadAcquire() != q.head+1 {
		return v, false
	}
	v = cell.val
	var zero T
	cell.val = zero
	cell.seq.StoreRelease(q.head + q.mask + 1)
	q.head++
	return v, true
}

// PollBatch appends up to limit values to dst, oldest first
// (consumer only).
func (q *Inbox[T]) PollBatch(dst []T, limit int) []T {
	for n := 0; n < limit; n++ {
		v, ok := q.Poll()
		if !ok {
			break
		}
		dst = append(dst, v)
	}
	return dst
}
