// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package loop

import (
	"context"
	"runtime"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Loop runs posted tasks on a single goroutine.
//
// Post, NewAsync, AddCleanupHook and Shutdown are safe to call from any
// goroutine. Tasks, handle callbacks and cleanup hooks run only on the
// goroutine inside Run.
type Loop struct {
	id  uuid.UUID
	log *logrus.Entry

	in      *ingress
	batch   []task
	pending atomix.Int64 // Posted, not yet run
	refs    atomix.Int64 // Referenced live handles
	wake    chan struct{}

	mu      sync.Mutex
	running bool
	hooks   []*cleanupHook

	shutdownOnce sync.Once
	closing      atomix.Bool // Cleanup hooks taken; set under mu
	closed       atomix.Bool // Posts are rejected
	done         chan struct{}

	maxBatch int
	onPanic  func(v any)
}

func newLoop(cfg Config) *Loop {
	cfg = cfg.withDefaults()

	id := uuid.New()
	l := &Loop{
		id: id,
		log: cfg.Logger.WithFields(logrus.Fields{
			"loop": id.String(),
		}),
		in:       newIngress(cfg.IngressCapacity),
		batch:    make([]task, 0, cfg.MaxBatch),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		maxBatch: cfg.MaxBatch,
		onPanic:  cfg.OnPanic,
	}
	if l.onPanic == nil {
		l.onPanic = l.logPanic
	}
	return l
}

// ID returns the loop's unique identifier.
func (l *Loop) ID() uuid.UUID {
	return l.id
}

// Done returns a channel closed once Shutdown has completed.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post schedules fn to run on the loop goroutine.
// Returns ErrLoopClosed after shutdown.
func (l *Loop) Post(fn func()) error {
	if fn == nil {
		return ErrNilTask
	}
	// Count before checking closed: finish sets closed and then waits for
	// pending to reach zero, so a post that passes the check is always run.
	l.pending.Add(1)
	if l.closed.Load() {
		l.pending.Add(-1)
		return ErrLoopClosed
	}
	l.in.push(task{fn: fn})
	l.notify()
	return nil
}

func (l *Loop) notify() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run executes tasks on the calling goroutine, locked to its OS thread,
// until one of:
//   - no referenced handle is alive and no task is pending (returns nil)
//   - Shutdown completes (returns nil)
//   - ctx is done (returns ctx.Err())
//
// Run may be called again after it returns, unless the loop was shut down.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrLoopAlreadyRunning
	}
	if l.closed.Load() {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.log.WithField("function", "Run").Debug("Loop started")

	for {
		if l.tick() {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}

		if l.closing.Load() {
			if l.pending.Load() == 0 {
				l.finish()
				return nil
			}
		} else if l.refs.Load() == 0 && l.pending.Load() == 0 {
			l.log.WithField("function", "Run").Debug("Loop idle, returning")
			return nil
		}

		select {
		case <-l.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// tick runs one batch and reports whether the batch was full.
func (l *Loop) tick() bool {
	l.batch = l.in.pop(l.batch[:0], l.maxBatch)
	for i := range l.batch {
		l.runTask(l.batch[i].fn)
		l.batch[i] = task{}
	}
	return len(l.batch) == l.maxBatch
}

func (l *Loop) runTask(fn func()) {
	defer l.pending.Add(-1)
	l.safeCall(fn)
}

func (l *Loop) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.onPanic(r)
		}
	}()
	fn()
}

func (l *Loop) logPanic(v any) {
	l.log.WithFields(logrus.Fields{
		"function": "runTask",
		"panic":    v,
	}).Error("Recovered panic in loop task")
}

// finish stops accepting posts and runs every post that got in before.
func (l *Loop) finish() {
	l.closed.Store(true)

	backoff := iox.Backoff{}
	for l.pending.Load() > 0 {
		if l.tick() {
			backoff.Reset()
			continue
		}
		backoff.Wait()
	}

	close(l.done)
	l.log.WithField("function", "Run").Debug("Loop shut down")
}
