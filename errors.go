// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package concq

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// For Enqueue: the queue is full (backpressure)
// For Dequeue: the queue is empty (no data available)
//
// ErrWouldBlock is a control flow signal, not a failure. The caller should
// retry the operation later (with backoff or yield) rather than propagating
// the error.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
//
// Example:
//
//	backoff := iox.Backoff{}
//	for {
//	    err := q.TryEnqueue(&item)
//	    if err == nil {
//	        backoff.Reset()
//	        break
//	    }
//	    if concq.IsWouldBlock(err) {
//	        backoff.Wait()  // Adaptive backpressure
//	        continue
//	    }
//	    return err  // Unexpected error
//	}
var ErrWouldBlock = iox.ErrWouldBlock

// ErrInvalidCapacity is returned by CopyTo when the index is negative or
// the destination is too small. Constructors (NewSPSC, NewMPSC, ...)
// panic on a capacity below 1 instead: programmer error (a bad literal
// capacity) is not worth an error return that would almost never be
// checked.
var ErrInvalidCapacity = errors.New("concq: invalid capacity")

// ErrFixedQueueFull is returned by Segmented.Enqueue — the entry point
// that reports a full fixed-size queue as an error instead of a bool —
// when the queue was constructed fixed-size and has no room left.
// TryEnqueue never returns this: it returns false instead.
var ErrFixedQueueFull = errors.New("concq: fixed-size queue is full")

// ErrConcurrentModification is raised by a running (non-snapshot)
// enumerator on SPSC, MPSC, or MPMC when the queue's Head has advanced
// since the enumerator was constructed. Segmented's snapshot enumerator
// never raises this: it freezes the segments it walks.
var ErrConcurrentModification = errors.New("concq: queue modified during enumeration")

// IsWouldBlock reports whether err indicates the operation would block.
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
// Returns true for nil, ErrWouldBlock, or ErrMore.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
