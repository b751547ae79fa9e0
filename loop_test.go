// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tsfn_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/tsfn"
	"code.hybscloud.com/tsfn/loop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type producerItem struct {
	producer int
	seq      int
}

func newTestLoop() *loop.Loop {
	return loop.New().Logger(quietLogger()).Build()
}

func runLoop(t *testing.T, l *loop.Loop) <-chan error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- l.Run(context.Background()) }()
	return errc
}

func waitRun(t *testing.T, errc <-chan error) {
	t.Helper()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("loop did not return")
	}
}

func TestLoopMultiProducerOrder(t *testing.T) {
	const (
		producers = 4
		perProd   = 2000
	)
	l := newTestLoop()

	// Consumer goroutine only.
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	var outOfOrder, delivered int
	finalized := make(chan struct{})

	fn, err := tsfn.New[producerItem]("multi").
		MaxQueueSize(16).
		ThreadCount(producers).
		Call(func(_ func(), _ any, it producerItem) {
			if it.seq != last[it.producer]+1 {
				outOfOrder++
			}
			last[it.producer] = it.seq
			delivered++
		}).
		Finalize(func(_, _ any) { close(finalized) }, nil).
		Logger(quietLogger()).
		Build(l)
	require.NoError(t, err)

	errc := runLoop(t, l)

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := range perProd {
				if err := fn.Call(producerItem{producer: p, seq: i}, tsfn.Blocking); err != nil {
					assert.NoError(t, err)
					return
				}
			}
			assert.NoError(t, fn.Release(tsfn.Normal))
		}(p)
	}
	wg.Wait()

	waitRun(t, errc)
	<-finalized
	<-fn.Done()

	assert.Equal(t, producers*perProd, delivered)
	assert.Zero(t, outOfOrder)
	assert.Equal(t, tsfn.Closed, fn.State())
}

func TestLoopNonBlockingRetry(t *testing.T) {
	l := newTestLoop()
	var sum int
	fn, err := tsfn.New[int]("retry").
		MaxQueueSize(2).
		Call(func(_ func(), _ any, v int) { sum += v }).
		Logger(quietLogger()).
		Build(l)
	require.NoError(t, err)

	errc := runLoop(t, l)

	backoff := iox.Backoff{}
	for i := 1; i <= 100; {
		err := fn.Call(i, tsfn.NonBlocking)
		if tsfn.IsWouldBlock(err) {
			backoff.Wait()
			continue
		}
		require.NoError(t, err)
		backoff.Reset()
		i++
	}
	require.NoError(t, fn.Release(tsfn.Normal))

	waitRun(t, errc)
	assert.Equal(t, 5050, sum)
}

func TestLoopShutdownAbortsLiveFunction(t *testing.T) {
	l := newTestLoop()
	gate := make(chan struct{})
	entered := make(chan struct{})
	var delivered, discarded []string
	destroyed := make(chan struct{})

	fn, err := tsfn.New[string]("live").
		MaxIterations(1).
		Call(func(_ func(), _ any, item string) {
			delivered = append(delivered, item)
			if item == "a" {
				close(entered)
				<-gate
			}
		}).
		OnDiscard(func(item string) { discarded = append(discarded, item) }).
		OnDestroy(func() { close(destroyed) }).
		Logger(quietLogger()).
		Build(l)
	require.NoError(t, err)

	errc := runLoop(t, l)
	require.NoError(t, fn.Call("a", tsfn.NonBlocking))
	<-entered

	// The consumer is inside the callback: these stay queued.
	require.NoError(t, fn.Call("b", tsfn.NonBlocking))
	require.NoError(t, fn.Call("c", tsfn.NonBlocking))

	shutdown := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdown <- l.Shutdown(ctx)
	}()
	// Let Shutdown post its teardown ahead of the next wake.
	time.Sleep(50 * time.Millisecond)
	close(gate)

	require.NoError(t, <-shutdown)
	waitRun(t, errc)
	assert.Equal(t, tsfn.Closed, fn.State())
	assert.Equal(t, []string{"a"}, delivered)
	assert.Equal(t, []string{"b", "c"}, discarded)

	// The producer still owns its reference.
	select {
	case <-destroyed:
		t.Fatal("destroyed while a producer reference is held")
	default:
	}
	assert.ErrorIs(t, fn.Call("late", tsfn.NonBlocking), tsfn.ErrClosing)
	<-destroyed
}

func TestLoopUnrefLetsRunReturn(t *testing.T) {
	l := newTestLoop()
	fn, err := tsfn.New[int]("background").
		Target(func() {}).
		Logger(quietLogger()).
		Build(l)
	require.NoError(t, err)

	require.NoError(t, fn.Unref())
	waitRun(t, runLoop(t, l))
	assert.Equal(t, tsfn.Open, fn.State())

	require.NoError(t, fn.Ref())
	require.NoError(t, fn.Release(tsfn.Normal))
	waitRun(t, runLoop(t, l))
	assert.Equal(t, tsfn.Closed, fn.State())
	<-fn.Done()
}

func TestLoopCreateAfterShutdown(t *testing.T) {
	l := newTestLoop()
	errc := runLoop(t, l)
	require.NoError(t, l.Shutdown(context.Background()))
	waitRun(t, errc)

	fn, err := tsfn.New[int]("late").Target(func() {}).Logger(quietLogger()).Build(l)
	assert.ErrorIs(t, err, tsfn.ErrGenericFailure)
	assert.ErrorIs(t, err, loop.ErrLoopClosed)
	assert.Nil(t, fn)
}

// shutdownOnWake shuts its loop down right after handing out a wake
// handle, before the caller can register a cleanup hook.
type shutdownOnWake struct {
	*loop.Loop
}

func (h shutdownOnWake) NewWaker(fire func()) (loop.Waker, error) {
	w, err := h.Loop.NewWaker(fire)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.Shutdown(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func TestLoopCreateRacingShutdown(t *testing.T) {
	l := newTestLoop()
	errc := runLoop(t, l)

	fn, err := tsfn.New[int]("racing").
		Target(func() {}).
		Logger(quietLogger()).
		Build(shutdownOnWake{l})
	require.ErrorIs(t, err, tsfn.ErrGenericFailure)
	assert.ErrorIs(t, err, loop.ErrLoopClosed)
	assert.Nil(t, fn)

	waitRun(t, errc)
}
