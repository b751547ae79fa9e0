// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package loop

import "github.com/sirupsen/logrus"

const (
	// DefaultMaxBatch is the number of tasks run per tick before the loop
	// checks liveness and cancellation again.
	DefaultMaxBatch = 1024

	// DefaultIngressCapacity is the lock-free ring size.
	DefaultIngressCapacity = 1024
)

// Config holds loop settings. Zero fields take defaults.
type Config struct {
	// MaxBatch bounds the tasks run per tick.
	MaxBatch int

	// IngressCapacity sizes the lock-free ingress ring
	// (rounds up to a power of 2, minimum 2).
	IngressCapacity int

	// Logger receives loop diagnostics. Defaults to the logrus standard logger.
	Logger *logrus.Logger

	// OnPanic is called on the loop goroutine with the value recovered
	// from a panicking task. Defaults to logging at Error level.
	OnPanic func(v any)
}

// Builder creates loops with fluent configuration.
//
// Example:
//
//	l := loop.New().MaxBatch(128).IngressCapacity(4096).Build()
type Builder struct {
	cfg Config
}

// New creates a loop builder with default settings.
func New() *Builder {
	return &Builder{}
}

// MaxBatch sets the maximum number of tasks run per tick.
// Values < 1 select the default.
func (b *Builder) MaxBatch(n int) *Builder {
	b.cfg.MaxBatch = n
	return b
}

// IngressCapacity sets the lock-free ring size.
// Values < 2 select the default.
func (b *Builder) IngressCapacity(n int) *Builder {
	b.cfg.IngressCapacity = n
	return b
}

// Logger sets the logger for loop diagnostics.
func (b *Builder) Logger(l *logrus.Logger) *Builder {
	b.cfg.Logger = l
	return b
}

// OnPanic sets the handler for values recovered from panicking tasks.
func (b *Builder) OnPanic(fn func(v any)) *Builder {
	b.cfg.OnPanic = fn
	return b
}

// Config returns a copy of the accumulated settings.
func (b *Builder) Config() Config {
	return b.cfg
}

// Build creates the loop.
func (b *Builder) Build() *Loop {
	return newLoop(b.cfg)
}

func (c Config) withDefaults() Config {
	if c.MaxBatch < 1 {
		c.MaxBatch = DefaultMaxBatch
	}
	if c.IngressCapacity < 2 {
		c.IngressCapacity = DefaultIngressCapacity
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	return c
}
