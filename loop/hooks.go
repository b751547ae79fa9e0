// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package loop

import (
	"context"
	"slices"

	"github.com/sirupsen/logrus"
)

type cleanupHook struct {
	fn func()
}

// AddCleanupHook registers fn to run on the loop goroutine during
// Shutdown. Hooks run in reverse registration order.
// The returned function unregisters the hook; it is safe to call more
// than once and from any goroutine.
//
// Returns ErrLoopClosed once Shutdown has started running hooks: fn would
// never run.
func (l *Loop) AddCleanupHook(fn func()) (remove func(), err error) {
	if fn == nil {
		return nil, ErrNilTask
	}
	h := &cleanupHook{fn: fn}

	l.mu.Lock()
	if l.closing.Load() {
		l.mu.Unlock()
		return nil, ErrLoopClosed
	}
	l.hooks = append(l.hooks, h)
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		l.hooks = slices.DeleteFunc(l.hooks, func(x *cleanupHook) bool {
			return x == h
		})
		l.mu.Unlock()
	}, nil
}

// Shutdown runs the cleanup hooks on the loop goroutine, drains the tasks
// they produce, and closes the loop. Run returns nil once this completes.
//
// Shutdown blocks until the loop has closed or ctx is done. It needs a
// Run in progress (or a later one) to make progress, and must not be
// called from a loop task.
func (l *Loop) Shutdown(ctx context.Context) error {
	var err error
	l.shutdownOnce.Do(func() {
		l.log.WithField("function", "Shutdown").Debug("Shutdown requested")
		err = l.Post(l.teardown)
	})
	if err != nil {
		return err
	}

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) teardown() {
	l.mu.Lock()
	hooks := l.hooks
	l.hooks = nil
	l.closing.Store(true)
	l.mu.Unlock()

	l.log.WithFields(logrus.Fields{
		"function": "teardown",
		"hooks":    len(hooks),
	}).Debug("Running cleanup hooks")

	for i := len(hooks) - 1; i >= 0; i-- {
		l.safeCall(hooks[i].fn)
	}
}
