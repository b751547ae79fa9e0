// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package loop

import (
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/tsfn/internal/lfq"
)

type task struct {
	fn func()
}

// ingress is the loop's task inbox: many posters, one consumer.
//
// Posts normally land in the lock-free ring. A post that finds the ring
// full appends to overflow and sets spilled; while spilled is set every
// post goes to overflow. The consumer empties the ring before overflow,
// and only clears spilled once overflow is empty, which keeps each
// poster's tasks in post order.
type ingress struct {
	ring     *lfq.Inbox[task]
	spilled  atomix.Bool
	mu       sync.Mutex
	overflow []task
}

func newIngress(capacity int) *ingress {
	return &ingress{ring: lfq.NewInbox[task](capacity)}
}

// push publishes t (any goroutine).
func (in *ingress) push(t task) {
	if !lfq.RaceEnabled && !in.spilled.Load() {
		if in.ring.Offer(t) == nil {
			return
		}
	}
	in.mu.Lock()
	in.overflow = append(in.overflow, t)
	in.spilled.Store(true)
	in.mu.Unlock()
}

// pop moves up to limit tasks into batch (consumer only).
func (in *ingress) pop(batch []task, limit int) []task {
	batch = in.ring.PollBatch(batch, limit-len(batch))
	if len(batch) >= limit || !in.spilled.Load() {
		return batch
	}

	in.mu.Lock()
	k := min(len(in.overflow), limit-len(batch))
	batch = append(batch, in.overflow[:k]...)
	rest := copy(in.overflow, in.overflow[k:])
	clear(in.overflow[rest:])
	in.overflow = in.overflow[:rest]
	if rest == 0 {
		in.spilled.Store(false)
	}
	in.mu.Unlock()

	return batch
}
