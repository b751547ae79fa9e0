// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package loop

import "errors"

var (
	// ErrLoopClosed is returned when posting to a loop that has shut down.
	ErrLoopClosed = errors.New("loop: loop has been closed")

	// ErrLoopAlreadyRunning is returned when Run is called while another
	// Run is active.
	ErrLoopAlreadyRunning = errors.New("loop: loop is already running")

	// ErrHandleClosed is returned when sending on a closing handle.
	ErrHandleClosed = errors.New("loop: handle is closing")

	// ErrNilTask is returned when a nil function is posted or used as a
	// handle callback.
	ErrNilTask = errors.New("loop: nil task")
)
