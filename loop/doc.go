// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package loop provides a single-goroutine task loop with coalescing
// wake handles.
//
// A [Loop] runs every posted task on one goroutine, locked to its OS
// thread for the duration of [Loop.Run]. Code that must only ever run on
// one thread (an interpreter, a UI toolkit, a non-reentrant library)
// owns the loop goroutine and is reached from other goroutines through
// [Loop.Post] or an [Async] handle.
//
// # Quick Start
//
//	l := loop.New().MaxBatch(256).Build()
//
//	go func() {
//	    _ = l.Post(func() {
//	        // Runs on the loop goroutine
//	    })
//	}()
//
//	if err := l.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Async Handles
//
// An [Async] is a wake handle: [Async.Send] may be called from any
// goroutine, any number of times, and the fire callback runs on the loop
// goroutine at least once after each Send. Sends that arrive before the
// callback runs are coalesced into one call.
//
//	a, _ := l.NewAsync(func() {
//	    // Drain whatever work the senders published
//	})
//	a.Send()
//	a.Send() // Coalesced with the previous Send
//	a.Close(func() {
//	    // Runs on the loop goroutine once the handle is fully closed
//	})
//
// # Liveness
//
// Run returns nil once no referenced handle is alive and no task is
// pending. A handle is referenced when created; [Async.Unref] lets Run
// return even though the handle is still open, [Async.Ref] undoes that.
//
// # Shutdown
//
// [Loop.Shutdown] runs cleanup hooks registered through
// [Loop.AddCleanupHook] on the loop goroutine (last registered first),
// drains every task they produce, then stops accepting posts and makes
// Run return nil.
//
// # Ingress
//
// Posts go through a lock-free MPSC ring. When the ring is full, posts
// spill to a mutex-guarded list; while that list is non-empty all posts
// go there, so tasks from one goroutine run in post order. Race builds
// always use the list.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomics,
// [code.hybscloud.com/iox] for backoff while posts finish publishing,
// [github.com/google/uuid] for loop identity and
// [github.com/sirupsen/logrus] for logging.
package loop
