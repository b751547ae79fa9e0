// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tsfn

import (
	"errors"

	"code.hybscloud.com/tsfn/internal/fifo"
	"code.hybscloud.com/tsfn/loop"
	"github.com/sirupsen/logrus"
)

// Dispatch state bits. A send during a running pass sets pending instead
// of waking the host, and the pass picks it up on its next iteration.
const (
	dispatchIdle    uint64 = 0
	dispatchRunning uint64 = 1 << 0
	dispatchPending uint64 = 1 << 1
)

// send requests a dispatch pass (any goroutine).
func (f *Function[T]) send() {
	if f.dispatchState.OrAcqRel(dispatchPending)&dispatchRunning != 0 {
		return
	}
	if err := f.waker.Send(); err != nil && !errors.Is(err, loop.ErrHandleClosed) {
		f.log.WithFields(logrus.Fields{
			"function": "send",
			"error":    err.Error(),
		}).Warn("Failed to wake consumer")
	}
}

// dispatch is the wake handle's fire callback (consumer goroutine).
// It delivers at most maxIterations items, then re-arms the wake handle
// if work remains so other host tasks get a turn.
func (f *Function[T]) dispatch() {
	hasMore := true
	for i := 0; hasMore && i < f.maxIterations; i++ {
		f.dispatchState.StoreRelease(dispatchRunning)
		hasMore = f.dispatchOne()
		if f.dispatchState.SwapAcqRel(dispatchIdle) != dispatchRunning {
			hasMore = true
		}
	}
	if hasMore {
		f.send()
	}
}

// dispatchOne delivers at most one item and reports whether more are
// queued.
func (f *Function[T]) dispatchOne() bool {
	var (
		item    T
		popped  bool
		hasMore bool
		closing bool
	)

	f.mu.Lock()
	switch {
	case f.handlesClosing:
	case f.state == Closing && f.aborted:
		closing = true
	default:
		size := f.queue.Len()
		if size > 0 {
			item, popped = f.queue.Pop()
			if f.maxQueueSize > 0 && size == f.maxQueueSize {
				f.cond.Broadcast()
			}
			size--
		}
		if size > 0 {
			hasMore = true
		} else if f.threadCount == 0 {
			closing = true
		}
	}
	if closing {
		f.closeLocked()
	}
	f.mu.Unlock()

	if popped {
		f.invoke(item)
	}
	if closing {
		f.closeHandles()
	}
	return hasMore
}

func (f *Function[T]) invoke(item T) {
	defer func() {
		if r := recover(); r != nil {
			f.log.WithFields(logrus.Fields{
				"function": "dispatch",
				"panic":    r,
			}).Error("Recovered panic in call function")
		}
	}()
	f.call(f.target, f.context, item)
}

// closeLocked moves to Closed and wakes blocked callers. Caller holds mu.
func (f *Function[T]) closeLocked() {
	f.state = Closed
	f.handlesClosing = true
	f.cond.Broadcast()
}

// closeHandles closes the wake handle; finalize runs from its completion.
func (f *Function[T]) closeHandles() {
	f.log.WithField("function", "closeHandles").Debug("Thread-safe function closed")
	f.waker.Close(f.finalizeClosed)
}

// finalizeClosed runs once on the consumer goroutine after the wake
// handle has closed.
func (f *Function[T]) finalizeClosed() {
	if f.removeHook != nil {
		f.removeHook()
	}

	// No item can be queued once Closed, so the swap is final.
	f.mu.Lock()
	leftover := f.queue
	f.queue = fifo.NewRing[T](0)
	f.mu.Unlock()

	defer f.unref()

	if n := leftover.Drain(f.onDiscard); n > 0 {
		f.log.WithFields(logrus.Fields{
			"function":  "finalize",
			"discarded": n,
		}).Debug("Discarded undelivered items")
	}
	if f.finalize != nil {
		f.finalize(f.finalizeData, f.context)
	}
}

// teardown is the host cleanup hook: it closes the function without
// draining, as if every producer had aborted.
func (f *Function[T]) teardown() {
	f.mu.Lock()
	if f.handlesClosing {
		f.mu.Unlock()
		return
	}
	if f.state == Open {
		f.state = Closing
	}
	f.aborted = true
	f.closeLocked()
	f.mu.Unlock()

	f.log.WithField("function", "teardown").Debug("Host shutting down, aborting")
	f.closeHandles()
}
