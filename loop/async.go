// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package loop

import (
	"sync"

	"code.hybscloud.com/atomix"
	"github.com/sirupsen/logrus"
)

// Waker is the cross-goroutine side of a wake handle.
//
// Send may be called from any goroutine. The fire callback the handle
// was created with runs on the loop goroutine. Close's onClosed callback
// runs on the loop goroutine after the last fire.
type Waker interface {
	Send() error
	Close(onClosed func())
	Ref()
	Unref()
}

// Async is a coalescing wake handle bound to a Loop.
type Async struct {
	loop *Loop
	fire func()

	queued  atomix.Uint64 // 1 while a fire task is posted and not yet started
	closing atomix.Bool

	mu         sync.Mutex
	referenced bool
}

var _ Waker = (*Async)(nil)

// NewAsync creates a referenced wake handle whose fire callback runs on
// the loop goroutine.
func (l *Loop) NewAsync(fire func()) (*Async, error) {
	if fire == nil {
		return nil, ErrNilTask
	}
	if l.closed.Load() || l.closing.Load() {
		return nil, ErrLoopClosed
	}
	a := &Async{loop: l, fire: fire, referenced: true}
	l.refs.Add(1)
	return a, nil
}

// NewWaker is NewAsync returning the Waker interface.
func (l *Loop) NewWaker(fire func()) (Waker, error) {
	a, err := l.NewAsync(fire)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Send schedules the fire callback. Sends made before the callback starts
// are coalesced into one call.
// Returns ErrHandleClosed once Close has been called.
func (a *Async) Send() error {
	if a.closing.Load() {
		return ErrHandleClosed
	}
	if !a.queued.CompareAndSwapAcqRel(0, 1) {
		return nil
	}
	if err := a.loop.Post(a.run); err != nil {
		a.queued.StoreRelease(0)
		return err
	}
	return nil
}

func (a *Async) run() {
	// Clear before firing so a Send during fire schedules another run.
	a.queued.StoreRelease(0)
	if a.closing.Load() {
		return
	}
	a.fire()
}

// Close stops the handle. The fire callback is not called after Close
// returns on the loop goroutine, or after any queued fire task observes
// the close. onClosed, when non-nil, runs on the loop goroutine after
// every fire task posted before Close.
//
// Close is idempotent; only the first onClosed is kept.
func (a *Async) Close(onClosed func()) {
	a.mu.Lock()
	if a.closing.Load() {
		a.mu.Unlock()
		return
	}
	a.closing.Store(true)
	wasRef := a.referenced
	a.referenced = false
	a.mu.Unlock()

	done := func() {
		if wasRef {
			defer a.loop.refs.Add(-1)
		}
		if onClosed != nil {
			onClosed()
		}
	}

	if err := a.loop.Post(done); err != nil {
		// Nothing will run on the loop again.
		a.loop.log.WithFields(logrus.Fields{
			"function": "Close",
			"error":    err.Error(),
		}).Warn("Loop closed, running close callback on caller")
		a.loop.safeCall(done)
	}
}

// IsClosing reports whether Close has been called.
func (a *Async) IsClosing() bool {
	return a.closing.Load()
}

// Ref makes the handle keep Run alive. No-op once closing.
func (a *Async) Ref() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closing.Load() || a.referenced {
		return
	}
	a.referenced = true
	a.loop.refs.Add(1)
}

// Unref lets Run return while the handle is still open. No-op once closing.
func (a *Async) Unref() {
	a.mu.Lock()
	if a.closing.Load() || !a.referenced {
		a.mu.Unlock()
		return
	}
	a.referenced = false
	a.loop.refs.Add(-1)
	a.mu.Unlock()

	// Let an idle Run re-check liveness.
	a.loop.notify()
}

// HasRef reports whether the handle currently keeps Run alive.
func (a *Async) HasRef() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.referenced
}
