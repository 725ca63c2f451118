// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package concq

import (
	"code.hybscloud.com/spin"
)

// MPSC is a CAS-based multi-producer single-consumer bounded queue.
//
// Producers race a CAS on Tail to claim a counter, then publish their item
// by releasing the claimed slot's sequence number. The single consumer
// never needs CAS: only one goroutine ever advances Head, so a plain
// acquire/release pair suffices there.
type MPSC[T any] struct {
	HeadAndTail
	buffer   []Slot[T]
	mask     uint32
	capacity uint32
}

// NewMPSC creates a new MPSC queue. Capacity rounds up to the next power
// of two. Panics if capacity < 1.
func NewMPSC[T any](capacity int) *MPSC[T] {
	if capacity < 1 {
		panic("concq: capacity must be >= 1")
	}
	n := uint32(roundToPow2(capacity))
	q := &MPSC[T]{
		buffer:   make([]Slot[T], n),
		mask:     n - 1,
		capacity: n,
	}
	for i := uint32(0); i < n; i++ {
		q.buffer[i].SequenceNumber.StoreRelaxed(i)
	}
	return q
}

// NewMPSCFrom creates an MPSC queue of the given capacity and enqueues
// seed in order. Panics if capacity < 1 or len(seed) exceeds the rounded
// capacity.
func NewMPSCFrom[T any](capacity int, seed []T) *MPSC[T] {
	q := NewMPSC[T](capacity)
	for i := range seed {
		if err := q.TryEnqueue(&seed[i]); err != nil {
			panic("concq: seed longer than capacity")
		}
	}
	return q
}

// Cap returns the queue capacity (rounded up to a power of two).
func (q *MPSC[T]) Cap() int {
	return int(q.capacity)
}

// TryEnqueue adds an element to the queue. Safe for any number of
// concurrent producers. Returns ErrWouldBlock if the queue is full.
func (q *MPSC[T]) TryEnqueue(item *T) error {
	sw := spin.Wait{}
	for {
		tail := q.Tail.LoadAcquire()
		slot := &q.buffer[tail&q.mask]
		seq := slot.SequenceNumber.LoadAcquire()
		diff := int32(seq - tail)

		switch {
		case diff == 0:
			if q.Tail.CompareAndSwapAcqRel(tail, tail+1) {
				slot.Item = *item
				slot.SequenceNumber.StoreRelease(tail + 1)
				return nil
			}
		case diff < 0:
			return ErrWouldBlock
		}
		sw.Once()
	}
}

// TryDequeue removes and returns the head element. Single consumer only.
// Returns ErrWouldBlock if the queue is empty.
func (q *MPSC[T]) TryDequeue() (T, error) {
	head := q.Head.LoadAcquire()
	slot := &q.buffer[head&q.mask]
	seq := slot.SequenceNumber.LoadAcquire()
	diff := int32(seq - (head + 1))

	if diff != 0 {
		var zero T
		return zero, ErrWouldBlock
	}

	item := slot.Item
	var zero T
	slot.Item = zero
	q.Head.StoreRelease(head + 1)
	slot.SequenceNumber.StoreRelease(head + q.capacity)
	return item, nil
}

// TryPeek returns the head element without removing it. Single consumer
// only. Returns ErrWouldBlock if the queue is empty.
func (q *MPSC[T]) TryPeek() (T, error) {
	head := q.Head.LoadAcquire()
	slot := &q.buffer[head&q.mask]
	seq := slot.SequenceNumber.LoadAcquire()
	if seq != head+1 {
		var zero T
		return zero, ErrWouldBlock
	}
	return slot.Item, nil
}

// IsEmpty reports whether the queue currently holds no elements.
func (q *MPSC[T]) IsEmpty() bool {
	head := q.Head.LoadAcquire()
	slot := &q.buffer[head&q.mask]
	return slot.SequenceNumber.LoadAcquire() != head+1
}

// Count returns a best-effort snapshot of the number of queued elements.
func (q *MPSC[T]) Count() int {
	head := int64(q.Head.LoadAcquire())
	tail := int64(q.Tail.LoadAcquire())
	diff := tail - head
	if diff < 0 {
		diff = 0
	}
	return int(diff)
}

// Clear repeatedly dequeues until the queue is empty. It acts as the
// single consumer, so it must not run concurrently with TryDequeue or
// TryPeek; it is safe to call concurrently with producers, but it may run
// arbitrarily long under sustained production and may drain items
// produced during the clear itself.
func (q *MPSC[T]) Clear() {
	for {
		if _, err := q.TryDequeue(); err != nil {
			return
		}
	}
}

// ToArray returns a snapshot copy of the queued elements in FIFO order.
// Not a true snapshot under concurrent mutation: see Iterate.
func (q *MPSC[T]) ToArray() []T {
	out := make([]T, 0, q.Count())
	head := q.Head.LoadAcquire()
	tail := q.Tail.LoadAcquire()
	for i := head; int64(tail)-int64(i) > 0; i++ {
		slot := &q.buffer[i&q.mask]
		if slot.SequenceNumber.LoadAcquire() != i+1 {
			break
		}
		out = append(out, slot.Item)
	}
	return out
}

// CopyTo copies the queue's current elements into dest starting at index.
func (q *MPSC[T]) CopyTo(dest []T, index int) error {
	if index < 0 {
		return ErrInvalidCapacity
	}
	items := q.ToArray()
	if index+len(items) > len(dest) {
		return ErrInvalidCapacity
	}
	copy(dest[index:], items)
	return nil
}

// Iterate returns a running enumerator over the queue's current elements.
// Invalidated by any Dequeue that moves Head past the construction point.
func (q *MPSC[T]) Iterate() *MPSCIterator[T] {
	return &MPSCIterator[T]{
		q:         q,
		startHead: q.Head.LoadAcquire(),
		cursor:    q.Head.LoadAcquire(),
		endTail:   q.Tail.LoadAcquire(),
	}
}

// MPSCIterator is the running enumerator returned by MPSC.Iterate.
type MPSCIterator[T any] struct {
	q         *MPSC[T]
	startHead uint32
	cursor    uint32
	endTail   uint32
	exhausted bool
}

// Next advances the enumerator and returns the next element.
func (it *MPSCIterator[T]) Next() (T, error) {
	var zero T
	if it.exhausted {
		return zero, ErrWouldBlock
	}
	if it.q.Head.LoadAcquire() != it.startHead {
		return zero, ErrConcurrentModification
	}
	if int64(it.endTail)-int64(it.cursor) <= 0 {
		it.exhausted = true
		return zero, ErrWouldBlock
	}
	slot := &it.q.buffer[it.cursor&it.q.mask]
	item := slot.Item
	it.cursor++
	return item, nil
}
