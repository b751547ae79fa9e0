// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tsfn_test

import (
	"slices"
	"sync"

	"code.hybscloud.com/tsfn"
	"code.hybscloud.com/tsfn/loop"
)

// manualHost is a Host whose consumer is the test goroutine: nothing is
// dispatched until the test calls Step or Drain.
type manualHost struct {
	mu      sync.Mutex
	wakers  []*manualWaker
	hooks   []*manualHook
	closing bool
	failNew error

	// onNewWaker runs after a waker is handed out, before the caller can
	// register its cleanup hook.
	onNewWaker func()
}

type manualHook struct {
	fn func()
}

var _ tsfn.Host = (*manualHost)(nil)

func newManualHost() *manualHost {
	return &manualHost{}
}

func (h *manualHost) NewWaker(fire func()) (loop.Waker, error) {
	h.mu.Lock()
	if h.failNew != nil {
		h.mu.Unlock()
		return nil, h.failNew
	}
	if h.closing {
		h.mu.Unlock()
		return nil, loop.ErrLoopClosed
	}
	w := &manualWaker{fire: fire, referenced: true}
	h.wakers = append(h.wakers, w)
	hook := h.onNewWaker
	h.mu.Unlock()

	if hook != nil {
		hook()
	}
	return w, nil
}

func (h *manualHost) AddCleanupHook(fn func()) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return nil, loop.ErrLoopClosed
	}
	hook := &manualHook{fn: fn}
	h.hooks = append(h.hooks, hook)
	return func() {
		h.mu.Lock()
		h.hooks = slices.DeleteFunc(h.hooks, func(x *manualHook) bool {
			return x == hook
		})
		h.mu.Unlock()
	}, nil
}

// Shutdown runs the cleanup hooks in reverse registration order and then
// drains, like loop teardown.
func (h *manualHost) Shutdown() {
	h.mu.Lock()
	hooks := h.hooks
	h.hooks = nil
	h.closing = true
	h.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i].fn()
	}
	h.Drain()
}

func (h *manualHost) hookCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.hooks)
}

// Step runs at most one pending fire or close completion per waker and
// reports whether anything ran.
func (h *manualHost) Step() bool {
	h.mu.Lock()
	wakers := append([]*manualWaker(nil), h.wakers...)
	h.mu.Unlock()

	ran := false
	for _, w := range wakers {
		if w.step() {
			ran = true
		}
	}
	return ran
}

// Drain steps until nothing is pending.
func (h *manualHost) Drain() {
	for h.Step() {
	}
}

type manualWaker struct {
	fire func()

	mu         sync.Mutex
	pending    bool
	sends      int
	closing    bool
	closed     bool
	onClosed   func()
	referenced bool
}

func (w *manualWaker) Send() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closing {
		return loop.ErrHandleClosed
	}
	w.sends++
	w.pending = true
	return nil
}

func (w *manualWaker) Close(onClosed func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closing {
		return
	}
	w.closing = true
	w.referenced = false
	w.onClosed = onClosed
}

func (w *manualWaker) Ref() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closing {
		w.referenced = true
	}
}

func (w *manualWaker) Unref() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.referenced = false
}

func (w *manualWaker) step() bool {
	w.mu.Lock()
	switch {
	case w.closing && !w.closed:
		w.closed = true
		w.pending = false
		onClosed := w.onClosed
		w.mu.Unlock()
		if onClosed != nil {
			onClosed()
		}
		return true
	case w.pending && !w.closing:
		w.pending = false
		w.mu.Unlock()
		w.fire()
		return true
	default:
		w.mu.Unlock()
		return false
	}
}

func (w *manualWaker) sendCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sends
}

func (w *manualWaker) isPending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

func (w *manualWaker) hasRef() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.referenced
}

func (w *manualWaker) isClosing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closing
}
