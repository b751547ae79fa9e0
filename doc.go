// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tsfn provides a thread-safe call queue.
//
// A [Function] lets any number of producer goroutines hand items to a
// single consumer goroutine, which alone invokes the registered call
// strategy. The consumer is the goroutine of a [Host], normally a
// [loop.Loop]. Use it when a single-threaded execution context (an
// interpreter, a UI thread, an event loop) has to be called into from
// unrelated goroutines.
//
// # Quick Start
//
//	l := loop.New().Build()
//
//	fn, err := tsfn.New[string]("greeter").
//	    Call(func(_ func(), _ any, name string) {
//	        fmt.Println("hello,", name) // Runs on the loop goroutine
//	    }).
//	    MaxQueueSize(16).
//	    Build(l)
//	if err != nil {
//	    return err
//	}
//
//	go func() {
//	    fn.Call("world", tsfn.Blocking)
//	    fn.Release(tsfn.Normal)
//	}()
//
//	l.Run(ctx) // Returns once fn has drained, finalized and closed
//
// # Reference Counting
//
// A function starts with ThreadCount producer references. A goroutine
// that wants to start producing later calls [Function.Acquire]; every
// producer calls [Function.Release] when done. The last Release moves
// the function from Open to Closing: nothing more is accepted, the
// consumer drains what is queued, then the function becomes Closed and
// the finalize callback runs on the consumer goroutine.
//
//	Open --(last Release, or Abort)--> Closing --(drained)--> Closed
//
// Release(Abort) closes at once regardless of other references: blocked
// callers fail with [ErrClosing], and queued items are handed to the
// OnDiscard hook instead of the call strategy.
//
// A producer that calls [Function.Call] after the function left Open has
// its reference released implicitly and gets [ErrClosing]. It must not
// call Release afterwards.
//
// # Backpressure
//
// With MaxQueueSize > 0 the queue is bounded:
//
//	err := fn.Call(item, tsfn.NonBlocking)
//	if tsfn.IsWouldBlock(err) {
//	    // Queue is full - retry later
//	}
//
//	err = fn.Call(item, tsfn.Blocking) // Waits for space
//
// Blocking calls must not be made from the consumer goroutine: nothing
// would drain the queue while it waits.
//
// # Delivery
//
// Items are delivered in the order their Calls acquired the function's
// lock. Each wake delivers at most MaxIterations items before yielding to
// the host; remaining work re-arms the wake handle. Wakes are coalesced:
// many Calls between two passes cost one host wake-up.
//
// # Destruction
//
// A function is destroyed exactly once, when it is Closed, finalize has
// run and no producer reference is left. That may happen on the consumer
// goroutine (after finalize) or on the producer goroutine whose Release
// drops the last reference. The OnDestroy hook runs there and
// [Function.Done] is closed.
//
// # Host Shutdown
//
// When the host shuts down, every live function is closed as if aborted:
// queued items are discarded and finalize runs.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] and [code.hybscloud.com/spin] for the
// dispatch state, [github.com/google/uuid] for identity and
// [github.com/sirupsen/logrus] for lifecycle logging.
package tsfn
