// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tsfn

import "code.hybscloud.com/tsfn/loop"

// CallMode selects what Call does against a full bounded queue.
type CallMode int

const (
	// NonBlocking fails with ErrQueueFull when the queue is full.
	NonBlocking CallMode = iota
	// Blocking waits for space or for the function to leave Open.
	Blocking
)

func (m CallMode) String() string {
	switch m {
	case NonBlocking:
		return "NonBlocking"
	case Blocking:
		return "Blocking"
	default:
		return "CallMode(?)"
	}
}

// ReleaseMode selects how Release treats the function.
type ReleaseMode int

const (
	// Normal drops one reference. The last one starts a graceful drain.
	Normal ReleaseMode = iota
	// Abort drops one reference and closes the function at once,
	// regardless of other references. Queued items are discarded.
	Abort
)

func (m ReleaseMode) String() string {
	switch m {
	case Normal:
		return "Normal"
	case Abort:
		return "Abort"
	default:
		return "ReleaseMode(?)"
	}
}

// State is the lifecycle of a Function. It only moves forward.
type State int32

const (
	// Open accepts items.
	Open State = iota
	// Closing rejects items; the consumer is draining or discarding.
	Closing
	// Closed is terminal: the wake handle is closed and finalize is due
	// or done.
	Closed
)

func (s State) String() string {
	switch s {
	case Open:
		return "Open"
	case Closing:
		return "Closing"
	case Closed:
		return "Closed"
	default:
		return "State(?)"
	}
}

// CallFunc delivers one item on the consumer goroutine.
//
// target is the function value given at creation (may be nil) and
// context is the creation context, returned verbatim.
type CallFunc[T any] func(target func(), context any, item T)

// FinalizeFunc runs once on the consumer goroutine after the function is
// Closed and its queue is empty.
type FinalizeFunc func(data any, context any)

// Host is the scheduler that owns the consumer goroutine.
//
// *loop.Loop implements Host.
type Host interface {
	// NewWaker registers fire to run on the consumer goroutine whenever
	// the returned Waker is sent.
	NewWaker(fire func()) (loop.Waker, error)

	// AddCleanupHook registers fn to run on the consumer goroutine when
	// the host shuts down. The returned function unregisters it.
	// Fails once the host has started shutting down.
	AddCleanupHook(fn func()) (remove func(), err error)
}

var _ Host = (*loop.Loop)(nil)

// callTarget is the default CallFunc: it invokes target with no
// arguments and ignores the item.
func callTarget[T any](target func(), _ any, _ T) {
	if target != nil {
		target()
	}
}
