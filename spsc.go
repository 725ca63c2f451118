// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package concq

import "code.hybscloud.com/atomix"

// SPSC is a single-producer single-consumer bounded queue.
//
// Based on Lamport's ring buffer: exactly one goroutine may call
// TryEnqueue, exactly one (possibly different) goroutine may call
// TryDequeue. Because
// each counter has exactly one writer, no CAS is needed — acquire/release
// fences on Head and Tail alone establish that an item write is visible
// before the consumer observes the new Tail.
//
// Unlike MPSC/MPMC/Segmented, SPSC reserves one extra slot instead of
// using a sequence-number protocol: the backing array holds capacity+1
// elements, and Head == Tail unambiguously means empty, reserving the
// otherwise-ambiguous all-slots-full state for (Tail+1)%length == Head.
//
// The producer and consumer each cache the peer's counter to avoid
// re-reading it (and the cross-core traffic that implies) once there is
// evidently room or data.
type SPSC[T any] struct {
	_          pad
	head       atomix.Uint32 // consumer writes here
	_          padShort32
	cachedTail uint32 // consumer's cached view of tail
	_          padShort32
	tail       atomix.Uint32 // producer writes here
	_          padShort32
	cachedHead uint32 // producer's cached view of head
	_          padShort32
	buffer     []T
	length     uint32 // capacity + 1
}

// NewSPSC creates a new SPSC queue able to hold capacity items.
// Panics if capacity < 1.
func NewSPSC[T any](capacity int) *SPSC[T] {
	if capacity < 1 {
		panic("concq: capacity must be >= 1")
	}
	return &SPSC[T]{
		buffer: make([]T, capacity+1),
		length: uint32(capacity + 1),
	}
}

// NewSPSCFrom creates an SPSC queue of the given capacity and enqueues
// seed in order. Panics if capacity < 1 or len(seed) > capacity.
func NewSPSCFrom[T any](capacity int, seed []T) *SPSC[T] {
	q := NewSPSC[T](capacity)
	for i := range seed {
		if err := q.TryEnqueue(&seed[i]); err != nil {
			panic("concq: seed longer than capacity")
		}
	}
	return q
}

// Cap returns the queue's usable capacity (backing array length minus the
// one reserved sentinel slot).
func (q *SPSC[T]) Cap() int {
	return int(q.length - 1)
}

// TryEnqueue adds an element to the queue (producer only).
// Returns ErrWouldBlock if the queue is full.
func (q *SPSC[T]) TryEnqueue(item *T) error {
	tail := q.tail.LoadAcquire()
	next := (tail + 1) % q.length

	if next == q.cachedHead {
		q.cachedHead = q.head.LoadAcquire()
		if next == q.cachedHead {
			return ErrWouldBlock
		}
	}

	q.buffer[tail] = *item
	q.tail.StoreRelease(next)
	return nil
}

// TryDequeue removes and returns the head element (consumer only).
// Returns ErrWouldBlock if the queue is empty.
func (q *SPSC[T]) TryDequeue() (T, error) {
	head := q.head.LoadAcquire()

	if head == q.cachedTail {
		q.cachedTail = q.tail.LoadAcquire()
		if head == q.cachedTail {
			var zero T
			return zero, ErrWouldBlock
		}
	}

	item := q.buffer[head]
	var zero T
	q.buffer[head] = zero
	q.head.StoreRelease((head + 1) % q.length)
	return item, nil
}

// TryPeek returns the head element without removing it.
// Returns ErrWouldBlock if the queue is empty.
func (q *SPSC[T]) TryPeek() (T, error) {
	head := q.head.LoadAcquire()
	tail := q.tail.LoadAcquire()
	if head == tail {
		var zero T
		return zero, ErrWouldBlock
	}
	return q.buffer[head], nil
}

// IsEmpty reports whether the queue currently holds no elements. The
// result is a snapshot and may be stale the instant it is returned.
func (q *SPSC[T]) IsEmpty() bool {
	return q.head.LoadAcquire() == q.tail.LoadAcquire()
}

// Count returns a best-effort snapshot of the number of queued elements.
func (q *SPSC[T]) Count() int {
	head := int64(q.head.LoadAcquire())
	tail := int64(q.tail.LoadAcquire())
	diff := tail - head
	if diff < 0 {
		diff += int64(q.length)
	}
	return int(diff)
}

// Clear removes all elements. Clear is NOT thread-safe: the caller must
// ensure no concurrent TryEnqueue or TryDequeue is in flight while it runs.
func (q *SPSC[T]) Clear() {
	var zero T
	for i := range q.buffer {
		q.buffer[i] = zero
	}
	q.head.StoreRelease(0)
	q.cachedTail = 0
	q.tail.StoreRelease(0)
	q.cachedHead = 0
}

// ToArray returns a snapshot copy of the queued elements in FIFO order.
// Not thread-safe against concurrent mutation; callers that need a
// consistent snapshot under concurrency should quiesce both parties first.
func (q *SPSC[T]) ToArray() []T {
	out := make([]T, 0, q.Count())
	head := q.head.LoadAcquire()
	tail := q.tail.LoadAcquire()
	for i := head; i != tail; i = (i + 1) % q.length {
		out = append(out, q.buffer[i])
	}
	return out
}

// CopyTo copies the queue's current elements into dest starting at index.
// Returns ErrInvalidCapacity if index is negative or dest is too small.
func (q *SPSC[T]) CopyTo(dest []T, index int) error {
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
// Unlike Segmented's snapshot enumerator, this one is invalidated by any
// Dequeue that moves Head past the enumerator's construction point: the
// next Next call after such a move returns ErrConcurrentModification.
func (q *SPSC[T]) Iterate() *SPSCIterator[T] {
	return &SPSCIterator[T]{
		q:         q,
		startHead: q.head.LoadAcquire(),
		cursor:    q.head.LoadAcquire(),
		endTail:   q.tail.LoadAcquire(),
	}
}

// SPSCIterator is the running enumerator returned by SPSC.Iterate.
type SPSCIterator[T any] struct {
	q         *SPSC[T]
	startHead uint32
	cursor    uint32
	endTail   uint32
	exhausted bool
}

// Next advances the enumerator and returns the next element.
// Returns ErrWouldBlock once the snapshot tail has been reached, or
// ErrConcurrentModification if Head moved since the enumerator was built.
func (it *SPSCIterator[T]) Next() (T, error) {
	var zero T
	if it.exhausted {
		return zero, ErrWouldBlock
	}
	if it.q.head.LoadAcquire() != it.startHead {
		return zero, ErrConcurrentModification
	}
	if it.cursor == it.endTail {
		it.exhausted = true
		return zero, ErrWouldBlock
	}
	item := it.q.buffer[it.cursor]
	it.cursor = (it.cursor + 1) % it.q.length
	return item, nil
}
