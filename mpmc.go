// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package concq

import (
	"code.hybscloud.com/spin"
)

// MPMC is a CAS-based multi-producer multi-consumer bounded queue.
//
// Both ends use the same sequence-number protocol as MPSC, but Head is
// now also claimed by CAS since multiple consumers race for it. A slot's
// sequence number unambiguously tells a racing goroutine whether it won
// the slot, lost the race (retry), or found the queue full/empty.
type MPMC[T any] struct {
	HeadAndTail
	buffer   []Slot[T]
	mask     uint32
	capacity uint32
}

// NewMPMC creates a new MPMC queue. Capacity rounds up to the next power
// of two. Panics if capacity < 1.
func NewMPMC[T any](capacity int) *MPMC[T] {
	if capacity < 1 {
		panic("concq: capacity must be >= 1")
	}
	n := uint32(roundToPow2(capacity))
	q := &MPMC[T]{
		buffer:   make([]Slot[T], n),
		mask:     n - 1,
		capacity: n,
	}
	for i := uint32(0); i < n; i++ {
		q.buffer[i].SequenceNumber.StoreRelaxed(i)
	}
	return q
}

// NewMPMCFrom creates an MPMC queue of the given capacity and enqueues
// seed in order. Panics if capacity < 1 or len(seed) exceeds the rounded
// capacity.
func NewMPMCFrom[T any](capacity int, seed []T) *MPMC[T] {
	q := NewMPMC[T](capacity)
	for i := range seed {
		if err := q.TryEnqueue(&seed[i]); err != nil {
			panic("concq: seed longer than capacity")
		}
	}
	return q
}

// Cap returns the queue capacity (rounded up to a power of two).
func (q *MPMC[T]) Cap() int {
	return int(q.capacity)
}

// TryEnqueue adds an element to the queue. Safe for any number of
// concurrent producers. Returns ErrWouldBlock if the queue is full.
func (q *MPMC[T]) TryEnqueue(item *T) error {
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

// TryDequeue removes and returns the head element. Safe for any number of
// concurrent consumers. Returns ErrWouldBlock if the queue is empty.
func (q *MPMC[T]) TryDequeue() (T, error) {
	sw := spin.Wait{}
	for {
		head := q.Head.LoadAcquire()
		slot := &q.buffer[head&q.mask]
		seq := slot.SequenceNumber.LoadAcquire()
		diff := int32(seq - (head + 1))

		switch {
		case diff == 0:
			if q.Head.CompareAndSwapAcqRel(head, head+1) {
				item := slot.Item
				var zero T
				slot.Item = zero
				slot.SequenceNumber.StoreRelease(head + q.capacity)
				return item, nil
			}
		case diff < 0:
			tail := q.Tail.LoadAcquire()
			if int64(tail)-int64(head) <= 0 {
				var zero T
				return zero, ErrWouldBlock
			}
		}
		sw.Once()
	}
}

// TryPeek returns the head element without removing it.
// Returns ErrWouldBlock if the queue is empty.
func (q *MPMC[T]) TryPeek() (T, error) {
	head := q.Head.LoadAcquire()
	slot := &q.buffer[head&q.mask]
	seq := slot.SequenceNumber.LoadAcquire()
	if seq != head+1 {
		var zero T
		return zero, ErrWouldBlock
	}
	return slot.Item, nil
}

// IsEmpty reports whether the queue is empty. Probes the head slot as
// TryDequeue would, without CAS, and re-reads Tail afterward to rule out
// a producer having filled the slot in between.
func (q *MPMC[T]) IsEmpty() bool {
	head := q.Head.LoadAcquire()
	slot := &q.buffer[head&q.mask]
	seq := slot.SequenceNumber.LoadAcquire()
	if seq == head+1 {
		return false
	}
	tail := q.Tail.LoadAcquire()
	return int64(tail)-int64(head) <= 0
}

// Count returns a best-effort snapshot of the number of queued elements.
func (q *MPMC[T]) Count() int {
	head := int64(q.Head.LoadAcquire())
	tail := int64(q.Tail.LoadAcquire())
	diff := tail - head
	if diff < 0 {
		diff = 0
	}
	return int(diff)
}

// Clear repeatedly dequeues until the queue is empty. Safe to run
// concurrently with producers and consumers, but it may run arbitrarily
// long under sustained production and may drain items produced during
// the clear itself.
func (q *MPMC[T]) Clear() {
	for {
		if _, err := q.TryDequeue(); err != nil {
			return
		}
	}
}

// ToArray returns a snapshot copy of the queued elements in FIFO order.
// Not a true snapshot under concurrent mutation.
func (q *MPMC[T]) ToArray() []T {
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
func (q *MPMC[T]) CopyTo(dest []T, index int) error {
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
func (q *MPMC[T]) Iterate() *MPMCIterator[T] {
	return &MPMCIterator[T]{
		q:         q,
		startHead: q.Head.LoadAcquire(),
		cursor:    q.Head.LoadAcquire(),
		endTail:   q.Tail.LoadAcquire(),
	}
}

// MPMCIterator is the running enumerator returned by MPMC.Iterate.
type MPMCIterator[T any] struct {
	q         *MPMC[T]
	startHead uint32
	cursor    uint32
	endTail   uint32
	exhausted bool
}

// Next advances the enumerator and returns the next element.
func (it *MPMCIterator[T]) Next() (T, error) {
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
