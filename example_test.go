// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tsfn_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"code.hybscloud.com/tsfn"
	"code.hybscloud.com/tsfn/loop"
	"github.com/sirupsen/logrus"
)

func exampleLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// ExampleNew shows producers on other goroutines feeding one consumer.
func ExampleNew() {
	l := loop.New().Logger(exampleLogger()).Build()

	var total int
	fn, err := tsfn.New[int]("sum").
		ThreadCount(3).
		MaxQueueSize(8).
		Call(func(_ func(), _ any, v int) { total += v }).
		Finalize(func(_, _ any) { fmt.Println("total:", total) }, nil).
		Logger(exampleLogger()).
		Build(l)
	if err != nil {
		fmt.Println(err)
		return
	}

	var wg sync.WaitGroup
	for p := range 3 {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 1; i <= 10; i++ {
				_ = fn.Call(p*10+i, tsfn.Blocking)
			}
			_ = fn.Release(tsfn.Normal)
		}(p)
	}

	// Run returns once the function is finalized.
	_ = l.Run(context.Background())
	wg.Wait()
	fmt.Println(fn.State())

	// Output:
	// total: 465
	// Closed
}

// ExampleFunction_Release shows an abort discarding queued items.
func ExampleFunction_Release() {
	l := loop.New().Logger(exampleLogger()).Build()

	fn, _ := tsfn.New[string]("jobs").
		ThreadCount(2).
		Call(func(_ func(), _ any, job string) { fmt.Println("run", job) }).
		OnDiscard(func(job string) { fmt.Println("discard", job) }).
		Finalize(func(_, _ any) { fmt.Println("finalized") }, nil).
		OnDestroy(func() { fmt.Println("destroyed") }).
		Logger(exampleLogger()).
		Build(l)

	_ = fn.Call("a", tsfn.NonBlocking)
	_ = fn.Call("b", tsfn.NonBlocking)
	_ = fn.Release(tsfn.Abort)

	_ = l.Run(context.Background())

	// The other producer learns about the abort on its next call.
	err := fn.Call("c", tsfn.NonBlocking)
	fmt.Println(errors.Is(err, tsfn.ErrClosing))

	// Output:
	// discard a
	// discard b
	// finalized
	// destroyed
	// true
}

// ExampleFunction_Call shows backpressure from a full queue.
func ExampleFunction_Call() {
	l := loop.New().Logger(exampleLogger()).Build()

	fn, _ := tsfn.New[int]("bounded").
		MaxQueueSize(1).
		Call(func(_ func(), _ any, v int) { fmt.Println("got", v) }).
		Logger(exampleLogger()).
		Build(l)

	fmt.Println(fn.Call(1, tsfn.NonBlocking))
	err := fn.Call(2, tsfn.NonBlocking)
	fmt.Println(errors.Is(err, tsfn.ErrQueueFull), tsfn.IsWouldBlock(err))

	_ = fn.Release(tsfn.Normal)
	_ = l.Run(context.Background())

	// Output:
	// <nil>
	// true true
	// got 1
}
