// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package concq

import "code.hybscloud.com/atomix"

// HeadAndTail is the counter pair shared by every ring-based queue in this
// package: a consumer-owned Head and a producer-owned Tail, each pinned to
// its own cache line so that producer writes to Tail never invalidate the
// line a consumer is spinning on for Head, and vice versa.
//
// Counters are monotonically increasing and interpreted modulo a ring's
// capacity via bitmask. Wrap is defined on the raw counter values, not on
// the masked index: a ring stays correct across many revolutions as long
// as at most capacity elements are ever in flight at once.
//
// SPSC does not use this type: its single-producer/single-consumer
// protocol needs no per-slot sequence number, just a reserved sentinel
// slot (see spsc.go).
type HeadAndTail struct {
	_    pad
	Head atomix.Uint32
	_    padShort32
	Tail atomix.Uint32
	_    padShort32
}

// Slot is one cell of a sequence-numbered ring. SequenceNumber implements
// the Lamport-style protocol described below: it encodes whether
// the next operation a producer or a consumer may perform on this slot is
// an enqueue or a dequeue, so that indices can be reused across revolutions
// without a separate "full" flag.
//
//   - empty, ready for the enqueue with counter t: SequenceNumber == t
//   - full, ready for the dequeue with counter h: SequenceNumber == h+1
//
// After a successful enqueue at counter t, the producer stores t+1. After a
// successful dequeue at counter h, the consumer stores h+capacity, pushing
// the slot's sequence number forward by exactly one revolution.
type Slot[T any] struct {
	SequenceNumber atomix.Uint32
	Item           T
	_              padShort32
}
