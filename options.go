// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tsfn

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// DefaultMaxIterations bounds the items delivered per wake.
const DefaultMaxIterations = 1000

// Config holds the creation parameters of a Function.
type Config[T any] struct {
	// Name identifies the function in diagnostics. Required; must be
	// valid UTF-8 without control characters.
	Name string

	// Target is the function value handed to Call. When Call is nil,
	// each item results in one Target() call.
	Target func()

	// Call delivers items. At least one of Target and Call is required.
	Call CallFunc[T]

	// Context is returned verbatim to every Call and by Function.Context.
	Context any

	// MaxQueueSize bounds the queue. 0 means unbounded.
	MaxQueueSize int

	// ThreadCount is the initial number of producer references (>= 1).
	ThreadCount int

	// Finalize runs once on the consumer goroutine after the last item is
	// delivered or discarded.
	Finalize FinalizeFunc

	// FinalizeData is passed to Finalize.
	FinalizeData any

	// OnDiscard receives items still queued when the function closes
	// without draining (Abort or host shutdown). Call is never invoked
	// for them.
	OnDiscard func(item T)

	// OnDestroy runs exactly once, on whichever goroutine drops the last
	// share of the function.
	OnDestroy func()

	// MaxIterations bounds the items delivered per wake before the
	// consumer yields to the host. 0 selects DefaultMaxIterations.
	MaxIterations int

	// Logger receives lifecycle diagnostics. Defaults to the logrus
	// standard logger.
	Logger *logrus.Logger
}

func (c *Config[T]) validate() error {
	switch {
	case c.ThreadCount < 1:
		return fmt.Errorf("%w: initial thread count must be >= 1, got %d", ErrInvalidArgument, c.ThreadCount)
	case c.Target == nil && c.Call == nil:
		return fmt.Errorf("%w: neither target nor call function given", ErrInvalidArgument)
	case c.MaxQueueSize < 0:
		return fmt.Errorf("%w: negative max queue size %d", ErrInvalidArgument, c.MaxQueueSize)
	case c.MaxIterations < 0:
		return fmt.Errorf("%w: negative max iterations %d", ErrInvalidArgument, c.MaxIterations)
	}
	return validName(c.Name)
}

func validName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty resource name", ErrInvalidArgument)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: resource name is not valid UTF-8", ErrInvalidArgument)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: resource name %q contains control characters", ErrInvalidArgument, name)
		}
	}
	return nil
}

// Builder creates functions with fluent configuration.
//
// Example:
//
//	fn, err := tsfn.New[*Job]("jobs").
//	    Call(func(_ func(), _ any, j *Job) { j.Run() }).
//	    MaxQueueSize(64).
//	    ThreadCount(4).
//	    Build(l)
type Builder[T any] struct {
	cfg Config[T]
}

// New creates a builder for a function named name with one initial
// producer reference and an unbounded queue.
func New[T any](name string) *Builder[T] {
	return &Builder[T]{cfg: Config[T]{Name: name, ThreadCount: 1}}
}

// Target sets the function value handed to the call strategy.
func (b *Builder[T]) Target(fn func()) *Builder[T] {
	b.cfg.Target = fn
	return b
}

// Call sets the call strategy that delivers items.
func (b *Builder[T]) Call(fn CallFunc[T]) *Builder[T] {
	b.cfg.Call = fn
	return b
}

// Context sets the opaque context returned to every call.
func (b *Builder[T]) Context(v any) *Builder[T] {
	b.cfg.Context = v
	return b
}

// MaxQueueSize bounds the queue. 0 means unbounded.
func (b *Builder[T]) MaxQueueSize(n int) *Builder[T] {
	b.cfg.MaxQueueSize = n
	return b
}

// ThreadCount sets the initial number of producer references.
func (b *Builder[T]) ThreadCount(n int) *Builder[T] {
	b.cfg.ThreadCount = n
	return b
}

// Finalize sets the finalize callback and its data.
func (b *Builder[T]) Finalize(fn FinalizeFunc, data any) *Builder[T] {
	b.cfg.Finalize = fn
	b.cfg.FinalizeData = data
	return b
}

// OnDiscard sets the hook for items dropped without delivery.
func (b *Builder[T]) OnDiscard(fn func(item T)) *Builder[T] {
	b.cfg.OnDiscard = fn
	return b
}

// OnDestroy sets the hook run when the function is destroyed.
func (b *Builder[T]) OnDestroy(fn func()) *Builder[T] {
	b.cfg.OnDestroy = fn
	return b
}

// MaxIterations bounds the items delivered per wake.
func (b *Builder[T]) MaxIterations(n int) *Builder[T] {
	b.cfg.MaxIterations = n
	return b
}

// Logger sets the logger for lifecycle diagnostics.
func (b *Builder[T]) Logger(l *logrus.Logger) *Builder[T] {
	b.cfg.Logger = l
	return b
}

// Config returns a copy of the accumulated configuration.
func (b *Builder[T]) Config() Config[T] {
	return b.cfg
}

// Build creates the function on host. See Create.
func (b *Builder[T]) Build(host Host) (*Function[T], error) {
	return Create(host, b.cfg)
}
