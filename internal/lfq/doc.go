// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lfq provides the bounded lock-free ring used as the loop's
// task ingress.
//
// Only the multi-producer single-consumer shape is needed: any goroutine
// posts, the loop goroutine alone dequeues.
//
//	q := lfq.NewInbox[task](1024)
//
//	// Any goroutine
//	if err := q.Offer(t); lfq.IsWouldBlock(err) {
//	    // Ring is full - spill to the slow path
//	}
//
//	// Loop goroutine only
//	batch = q.PollBatch(batch[:0], 64)
//
// Capacity rounds up to the next power of 2. Minimum capacity is 2.
//
// # Race Detection
//
// The ring protects its non-atomic cells with per-cell sequence numbers.
// The race detector cannot observe that ordering and reports false
// positives, so callers consult [RaceEnabled] and bypass the ring in
// race builds.
package lfq
