// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fifo provides a growable ring buffer queue.
//
// Ring is not safe for concurrent use; callers hold their own lock.
package fifo
