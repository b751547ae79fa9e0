// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tsfn

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

var (
	// ErrInvalidArgument reports malformed creation parameters, a release
	// without a matching reference, or a nil *Function.
	ErrInvalidArgument = errors.New("tsfn: invalid argument")

	// ErrQueueFull is returned by a NonBlocking Call against a full bounded
	// queue. The item is not enqueued.
	//
	// ErrQueueFull wraps [iox.ErrWouldBlock]: it is backpressure, not a
	// failure, and the caller may retry.
	ErrQueueFull = fmt.Errorf("tsfn: queue full: %w", iox.ErrWouldBlock)

	// ErrClosing is returned by operations attempted after the function
	// left the Open state.
	ErrClosing = errors.New("tsfn: closing")

	// ErrGenericFailure reports that the host refused to register the
	// function's wake handle.
	ErrGenericFailure = errors.New("tsfn: generic failure")
)

// IsWouldBlock reports whether err indicates backpressure (ErrQueueFull).
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Returns true for nil or backpressure.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
