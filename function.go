// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tsfn

import (
	"context"
	"fmt"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/tsfn/internal/fifo"
	"code.hybscloud.com/tsfn/loop"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ownerShares is the producer share (held while threadCount > 0) plus
// the consumer share (held until finalize has run).
const ownerShares = 2

// Function is a thread-safe call queue: producers on any goroutine hand
// items to the host's consumer goroutine, which alone invokes the call
// strategy.
//
// All methods are safe for concurrent use. Methods on a nil *Function
// return ErrInvalidArgument.
type Function[T any] struct {
	id   uuid.UUID
	name string
	log  *logrus.Entry

	// Guarded by mu.
	mu             sync.Mutex
	cond           *sync.Cond
	state          State
	aborted        bool
	handlesClosing bool
	queue          *fifo.Ring[T]
	threadCount    int

	// Set at creation, read without the lock.
	maxQueueSize  int
	maxIterations int
	context       any

	// Consumer goroutine only.
	target       func()
	call         CallFunc[T]
	finalize     FinalizeFunc
	finalizeData any
	onDiscard    func(item T)

	onDestroy  func()
	waker      loop.Waker
	removeHook func()

	dispatchState atomix.Uint64
	owners        atomix.Int64
	done          chan struct{}
}

// Create registers a new function on host.
//
// Returns ErrInvalidArgument for a nil host or an invalid cfg, and
// ErrGenericFailure when the host refuses the wake handle or the cleanup
// hook. Nothing stays registered on failure.
func Create[T any](host Host, cfg Config[T]) (*Function[T], error) {
	if host == nil {
		return nil, fmt.Errorf("%w: nil host", ErrInvalidArgument)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	call := cfg.Call
	if call == nil {
		call = callTarget[T]
	}
	maxIterations := cfg.MaxIterations
	if maxIterations == 0 {
		maxIterations = DefaultMaxIterations
	}

	id := uuid.New()
	f := &Function[T]{
		id:   id,
		name: cfg.Name,
		log: logger.WithFields(logrus.Fields{
			"tsfn": cfg.Name,
			"id":   id.String(),
		}),
		queue:         fifo.NewRing[T](cfg.MaxQueueSize),
		threadCount:   cfg.ThreadCount,
		maxQueueSize:  cfg.MaxQueueSize,
		maxIterations: maxIterations,
		context:       cfg.Context,
		target:        cfg.Target,
		call:          call,
		finalize:      cfg.Finalize,
		finalizeData:  cfg.FinalizeData,
		onDiscard:     cfg.OnDiscard,
		onDestroy:     cfg.OnDestroy,
		done:          make(chan struct{}),
	}
	f.cond = sync.NewCond(&f.mu)
	f.owners.Add(ownerShares)

	w, err := host.NewWaker(f.dispatch)
	if err != nil {
		f.log.WithFields(logrus.Fields{
			"function": "Create",
			"error":    err.Error(),
		}).Error("Failed to register wake handle")
		return nil, fmt.Errorf("%w: %w", ErrGenericFailure, err)
	}
	f.waker = w

	remove, err := host.AddCleanupHook(f.teardown)
	if err != nil {
		w.Close(nil)
		f.log.WithFields(logrus.Fields{
			"function": "Create",
			"error":    err.Error(),
		}).Error("Failed to register cleanup hook")
		return nil, fmt.Errorf("%w: %w", ErrGenericFailure, err)
	}
	f.removeHook = remove

	f.log.WithFields(logrus.Fields{
		"function":       "Create",
		"max_queue_size": cfg.MaxQueueSize,
		"thread_count":   cfg.ThreadCount,
	}).Debug("Created thread-safe function")

	return f, nil
}

// ID returns the function's unique identifier.
func (f *Function[T]) ID() uuid.UUID {
	if f == nil {
		return uuid.Nil
	}
	return f.id
}

// Name returns the resource name given at creation.
func (f *Function[T]) Name() string {
	if f == nil {
		return ""
	}
	return f.name
}

// Context returns the creation context.
func (f *Function[T]) Context() (any, error) {
	if f == nil {
		return nil, ErrInvalidArgument
	}
	return f.context, nil
}

// State returns the current lifecycle state.
func (f *Function[T]) State() State {
	if f == nil {
		return Closed
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Len returns the number of queued items.
func (f *Function[T]) Len() int {
	if f == nil {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.Len()
}

// Done returns a channel closed when the function is destroyed.
func (f *Function[T]) Done() <-chan struct{} {
	if f == nil {
		return nil
	}
	return f.done
}

// Acquire adds a producer reference. Returns ErrClosing once the
// function has left Open; the caller must not use it afterwards.
func (f *Function[T]) Acquire() error {
	if f == nil {
		return ErrInvalidArgument
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != Open {
		return ErrClosing
	}
	f.threadCount++
	return nil
}

// Call queues item for delivery on the consumer goroutine.
//
// Against a full bounded queue, NonBlocking returns ErrQueueFull and
// Blocking waits until space frees or the function leaves Open.
//
// Once the function has left Open, Call releases the caller's reference
// and returns ErrClosing, or ErrInvalidArgument if no reference is left.
// This check comes before the capacity check: a call on a function that
// is not Open never reports ErrQueueFull.
func (f *Function[T]) Call(item T, mode CallMode) error {
	if f == nil {
		return ErrInvalidArgument
	}
	return f.push(nil, item, mode)
}

// CallContext is a Blocking Call that also gives up when ctx is done.
// On ctx expiry it returns ctx.Err(), the item is not queued and the
// caller keeps its reference.
func (f *Function[T]) CallContext(ctx context.Context, item T) error {
	if f == nil || ctx == nil {
		return ErrInvalidArgument
	}
	return f.push(ctx, item, Blocking)
}

func (f *Function[T]) push(ctx context.Context, item T, mode CallMode) error {
	if ctx != nil && ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			f.mu.Lock()
			f.cond.Broadcast()
			f.mu.Unlock()
		})
		defer stop()
	}

	f.mu.Lock()
	for f.state == Open && f.fullLocked() {
		if mode == NonBlocking {
			f.mu.Unlock()
			return ErrQueueFull
		}
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				f.mu.Unlock()
				return err
			}
		}
		f.cond.Wait()
	}

	if f.state == Open {
		f.queue.Push(item)
		f.send()
		f.mu.Unlock()
		return nil
	}

	if f.threadCount == 0 {
		f.mu.Unlock()
		return fmt.Errorf("%w: call without a thread reference", ErrInvalidArgument)
	}
	f.threadCount--
	last := f.threadCount == 0
	f.mu.Unlock()

	if last {
		f.unref()
	}
	return ErrClosing
}

func (f *Function[T]) fullLocked() bool {
	return f.maxQueueSize > 0 && f.queue.Len() >= f.maxQueueSize
}

// Release drops a producer reference.
//
// When the last reference goes, the function starts closing and the
// consumer drains what is queued. Abort closes immediately regardless of
// other references: blocked callers fail with ErrClosing and queued
// items are discarded.
//
// Returns ErrInvalidArgument if no reference is left.
func (f *Function[T]) Release(mode ReleaseMode) error {
	if f == nil {
		return ErrInvalidArgument
	}

	f.mu.Lock()
	if f.threadCount == 0 {
		f.mu.Unlock()
		return fmt.Errorf("%w: release without a thread reference", ErrInvalidArgument)
	}
	f.threadCount--

	if (f.threadCount == 0 || mode == Abort) && f.state == Open {
		f.state = Closing
		f.aborted = mode == Abort
		f.cond.Broadcast()
		f.send()

		f.log.WithFields(logrus.Fields{
			"function":     "Release",
			"mode":         mode.String(),
			"thread_count": f.threadCount,
			"queued":       f.queue.Len(),
		}).Debug("Thread-safe function closing")
	}
	last := f.threadCount == 0
	f.mu.Unlock()

	if last {
		f.unref()
	}
	return nil
}

// Ref makes the function's wake handle keep the host loop alive.
func (f *Function[T]) Ref() error {
	if f == nil {
		return ErrInvalidArgument
	}
	f.waker.Ref()
	return nil
}

// Unref lets the host loop exit while the function is still open.
func (f *Function[T]) Unref() error {
	if f == nil {
		return ErrInvalidArgument
	}
	f.waker.Unref()
	return nil
}

// unref drops one owner share; the last drop destroys the function.
func (f *Function[T]) unref() {
	if f.owners.Add(-1) != 0 {
		return
	}
	f.destroy()
}

func (f *Function[T]) destroy() {
	f.log.WithField("function", "destroy").Debug("Thread-safe function destroyed")

	if f.onDestroy != nil {
		f.onDestroy()
	}

	f.target = nil
	f.call = nil
	f.finalize = nil
	f.finalizeData = nil
	f.onDiscard = nil
	f.onDestroy = nil
	close(f.done)
}
