// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package concq

import (
	"sync"
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// InitialSegmentLength is the slot count of the segment Clear installs on
// a growable queue, and the slot count a newly allocated segment resets to
// after the previous tail segment was preserved for a snapshot. The first
// segment's length comes from NewSegmented's initialCapacity instead.
const InitialSegmentLength = 32

// MaxSegmentLength is the largest slot count a single segment may grow to.
// Beyond this, growth stops doubling and allocates segments of this size.
const MaxSegmentLength = 1 << 20

// segment is one ring in the Segmented queue's linked list. It runs the
// same CAS/sequence-number protocol as MPMC, plus two flags the segmented
// queue uses to coordinate transitions: frozen rejects further enqueues
// (the segment is no longer the tail) and preserved tells Dequeue not to
// zero out an item's slot so a concurrent snapshot can still read it.
//
// A segment's Head and Tail are raw counters, as in MPMC: while a segment
// is still the tail, slots vacated by dequeues accept new enqueues, so both
// counters can run past the segment's capacity. Index arithmetic masks
// them with the slot mask.
type segment[T any] struct {
	HeadAndTail
	frozen    atomix.Bool
	preserved atomix.Bool
	next      atomic.Pointer[segment[T]]
	buffer    []Slot[T]
	mask      uint32
	capacity  uint32
}

func newSegment[T any](capacity int) *segment[T] {
	n := uint32(capacity)
	s := &segment[T]{
		buffer:   make([]Slot[T], n),
		mask:     n - 1,
		capacity: n,
	}
	for i := uint32(0); i < n; i++ {
		s.buffer[i].SequenceNumber.StoreRelaxed(i)
	}
	return s
}

// tryEnqueue attempts the fast path on this segment alone. It returns
// false both when the segment is already frozen and when it is (not yet
// frozen but) physically full — either way the caller must go to the
// Segmented queue's slow path. An explicit frozen flag stands in for a
// sequence-number convention that would otherwise have to encode "frozen"
// as a special diff value: both failure cases drive the same caller
// action, so nothing is lost by not distinguishing them here.
func (s *segment[T]) tryEnqueue(item *T) bool {
	if s.frozen.LoadAcquire() {
		return false
	}
	sw := spin.Wait{}
	for {
		tail := s.Tail.LoadAcquire()
		slot := &s.buffer[tail&s.mask]
		seq := slot.SequenceNumber.LoadAcquire()
		diff := int32(seq - tail)

		switch {
		case diff == 0:
			if s.Tail.CompareAndSwapAcqRel(tail, tail+1) {
				slot.Item = *item
				slot.SequenceNumber.StoreRelease(tail + 1)
				return true
			}
		case diff < 0:
			return false
		}
		sw.Once()
	}
}

// tryDequeue attempts the fast path on this segment alone.
func (s *segment[T]) tryDequeue() (T, bool) {
	sw := spin.Wait{}
	for {
		head := s.Head.LoadAcquire()
		slot := &s.buffer[head&s.mask]
		seq := slot.SequenceNumber.LoadAcquire()
		diff := int32(seq - (head + 1))

		switch {
		case diff == 0:
			if s.Head.CompareAndSwapAcqRel(head, head+1) {
				item := slot.Item
				if !s.preserved.LoadAcquire() {
					var zero T
					slot.Item = zero
				}
				slot.SequenceNumber.StoreRelease(head + s.capacity)
				return item, true
			}
		case diff < 0:
			tail := s.Tail.LoadAcquire()
			if int64(tail)-int64(head) <= 0 {
				var zero T
				return zero, false
			}
		}
		sw.Once()
	}
}

func (s *segment[T]) tryPeek() (T, bool) {
	head := s.Head.LoadAcquire()
	slot := &s.buffer[head&s.mask]
	if slot.SequenceNumber.LoadAcquire() != head+1 {
		var zero T
		return zero, false
	}
	return slot.Item, true
}

// count is a best-effort element count for this segment alone: Tail minus
// Head, clamped to [0, capacity]. Freezing does not move Tail, so a frozen
// segment is counted the same way.
func (s *segment[T]) count() int64 {
	head := int64(s.Head.LoadAcquire())
	tail := int64(s.Tail.LoadAcquire())
	diff := tail - head
	if diff < 0 {
		diff = 0
	}
	if diff > int64(s.capacity) {
		diff = int64(s.capacity)
	}
	return diff
}

// Segmented is an unbounded (or capped fixed-size) multi-producer
// multi-consumer queue built from a singly linked list of power-of-two
// ring segments. The fast path on each segment is the same CAS/sequence
// protocol as MPMC; a cross-segment mutex guards only segment transitions
// (allocating/linking a new tail, advancing a drained head, and snapshot
// preparation), never the per-slot hot path.
type Segmented[T any] struct {
	mu        sync.Mutex
	head      atomic.Pointer[segment[T]]
	tail      atomic.Pointer[segment[T]]
	fixedSize bool
}

// NewSegmented creates a new Segmented queue. initialCapacity is rounded
// up to a power of two (capped at MaxSegmentLength) and becomes the first
// segment's length. When fixedSize is true, the queue never grows beyond
// that single segment: TryEnqueue returns false and Enqueue returns
// ErrFixedQueueFull once it fills. Panics if initialCapacity < 1.
func NewSegmented[T any](initialCapacity int, fixedSize bool) *Segmented[T] {
	if initialCapacity < 1 {
		panic("concq: capacity must be >= 1")
	}
	n := roundToPow2(initialCapacity)
	if n > MaxSegmentLength {
		n = MaxSegmentLength
	}
	s := newSegment[T](n)
	q := &Segmented[T]{fixedSize: fixedSize}
	q.head.Store(s)
	q.tail.Store(s)
	return q
}

// NewSegmentedFrom creates a Segmented queue and enqueues seed in order.
// Panics if len(seed) exceeds capacity on a fixed-size queue.
func NewSegmentedFrom[T any](initialCapacity int, fixedSize bool, seed []T) *Segmented[T] {
	q := NewSegmented[T](initialCapacity, fixedSize)
	for i := range seed {
		if err := q.Enqueue(&seed[i]); err != nil {
			panic("concq: seed exceeds fixed capacity")
		}
	}
	return q
}

// nextSegmentCapacity computes the length of the segment that replaces
// retiring. Growth doubles, capped at MaxSegmentLength, unless retiring
// was preserved for a snapshot — in which case growth resets to
// InitialSegmentLength so a single large burst doesn't pin the queue at
// its peak segment size forever.
func nextSegmentCapacity[T any](retiring *segment[T]) int {
	if retiring.preserved.LoadAcquire() {
		return InitialSegmentLength
	}
	c := int(retiring.capacity) * 2
	if c > MaxSegmentLength {
		c = MaxSegmentLength
	}
	return c
}

// TryEnqueue adds an element to the queue. On a growable queue it always
// returns true, allocating a new tail segment when the current one is
// full; on a fixed-size queue it returns false once the single segment is
// full.
func (q *Segmented[T]) TryEnqueue(item *T) bool {
	for {
		tail := q.tail.Load()
		if tail.tryEnqueue(item) {
			return true
		}

		q.mu.Lock()
		if q.tail.Load() != tail {
			// Another producer already grew the queue; retry against
			// the new tail without freezing anything ourselves.
			q.mu.Unlock()
			continue
		}
		if q.fixedSize {
			q.mu.Unlock()
			return false
		}
		tail.frozen.StoreRelease(true)
		next := newSegment[T](nextSegmentCapacity(tail))
		tail.next.Store(next)
		q.tail.Store(next)
		q.mu.Unlock()
	}
}

// Enqueue adds an element to the queue. Unlike TryEnqueue, it reports a
// full fixed-size queue as an error instead of a boolean.
func (q *Segmented[T]) Enqueue(item *T) error {
	if !q.TryEnqueue(item) {
		return ErrFixedQueueFull
	}
	return nil
}

// TryDequeue removes and returns the head element.
// Returns ErrWouldBlock if the queue is empty.
func (q *Segmented[T]) TryDequeue() (T, error) {
	for {
		head := q.head.Load()
		if item, ok := head.tryDequeue(); ok {
			return item, nil
		}
		next := head.next.Load()
		if next == nil {
			var zero T
			return zero, ErrWouldBlock
		}
		q.mu.Lock()
		if q.head.Load() == head {
			q.head.Store(next)
		}
		q.mu.Unlock()
	}
}

// TryPeek returns the head element without removing it, walking forward
// through segments until a non-empty one is found or the chain ends.
// Returns ErrWouldBlock if the queue is empty.
func (q *Segmented[T]) TryPeek() (T, error) {
	for s := q.head.Load(); s != nil; s = s.next.Load() {
		if item, ok := s.tryPeek(); ok {
			return item, nil
		}
	}
	var zero T
	return zero, ErrWouldBlock
}

// IsEmpty reports whether the queue currently holds no elements.
func (q *Segmented[T]) IsEmpty() bool {
	_, err := q.TryPeek()
	return err != nil
}

// IsFixedSize reports whether this queue was constructed fixed-size.
func (q *Segmented[T]) IsFixedSize() bool {
	return q.fixedSize
}

// Cap returns the queue's capacity, or -1 for a growable (unbounded)
// queue, which has no fixed capacity to report.
func (q *Segmented[T]) Cap() int {
	if !q.fixedSize {
		return -1
	}
	return int(q.tail.Load().capacity)
}

// Count returns a best-effort snapshot of the number of queued elements,
// computed lock-free when head and tail are the same or adjacent
// segments, falling back to the cross-segment lock for three or more.
func (q *Segmented[T]) Count() int64 {
	head := q.head.Load()
	tail := q.tail.Load()
	if head == tail {
		return head.count()
	}
	if head.next.Load() == tail {
		for i := 0; i < 3; i++ {
			c1, c2 := head.count(), tail.count()
			if head == q.head.Load() && tail == q.tail.Load() {
				return c1 + c2
			}
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	var total int64
	tail = q.tail.Load()
	for s := q.head.Load(); ; s = s.next.Load() {
		total += s.count()
		if s == tail || s == nil {
			break
		}
	}
	return total
}

// Clear empties the queue by freezing the current tail segment under the
// cross-segment lock and replacing both head and tail with a single fresh
// segment. Any producer that had already reserved a slot in the old tail
// completes into what is now unreachable, retired memory.
func (q *Segmented[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	oldTail := q.tail.Load()
	oldTail.frozen.StoreRelease(true)

	capacity := InitialSegmentLength
	if q.fixedSize {
		capacity = int(oldTail.capacity)
	}
	fresh := newSegment[T](capacity)
	q.head.Store(fresh)
	q.tail.Store(fresh)
}

// ToArray takes a consistent snapshot of the queue's contents in FIFO
// order. Under the cross-segment lock it marks every segment from head to
// tail as preserved (so concurrent dequeues stop clearing slot payloads)
// and freezes the tail against new enqueues for the duration of the walk,
// then walks the captured range outside the lock, waiting only for a
// slot's producer to finish publishing — not for the sequence number to
// equal i+1 exactly, since a concurrent dequeue of a preserved slot still
// advances it past i+1 to i+capacity (preserved only stops the payload
// from being zeroed, not the counter from moving).
//
// A fixed-size queue's sole segment is never replaced, so it cannot stay
// frozen after the walk like a growable tail segment can: freezing it is
// only to keep the snapshot range stable against concurrent enqueues
// while this method reads it, and is undone before returning so the
// segment goes back to being an ordinary reusable ring.
func (q *Segmented[T]) ToArray() []T {
	q.mu.Lock()
	head := q.head.Load()
	tail := q.tail.Load()
	for s := head; ; s = s.next.Load() {
		s.preserved.StoreRelease(true)
		if s == tail {
			break
		}
	}
	tail.frozen.StoreRelease(true)
	headHead := head.Head.LoadAcquire()
	tailTail := tail.Tail.LoadAcquire()
	q.mu.Unlock()

	var out []T
	sw := spin.Wait{}
	for s, first := head, true; ; s, first = s.next.Load(), false {
		start := uint32(0)
		if first {
			start = headHead
		}
		end := s.Tail.LoadAcquire()
		if s == tail {
			end = tailTail
		}
		for i := start; i < end; i++ {
			slot := &s.buffer[i&s.mask]
			for int32(slot.SequenceNumber.LoadAcquire()-(i+1)) < 0 {
				sw.Once()
			}
			out = append(out, slot.Item)
		}
		if s == tail {
			break
		}
	}

	if q.fixedSize {
		tail.frozen.StoreRelease(false)
	}
	return out
}

// CopyTo copies a ToArray snapshot into dest starting at index.
func (q *Segmented[T]) CopyTo(dest []T, index int) error {
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

// SegmentedIterator is the snapshot enumerator returned by
// Segmented.Iterate. Unlike SPSC/MPSC/MPMC's running enumerators, it
// never observes concurrent mutation: ToArray already froze and preserved
// everything it walks.
type SegmentedIterator[T any] struct {
	items []T
	idx   int
}

// Iterate takes a snapshot (via ToArray) and returns an enumerator over
// it.
func (q *Segmented[T]) Iterate() *SegmentedIterator[T] {
	return &SegmentedIterator[T]{items: q.ToArray()}
}

// Next returns the next element in the snapshot, or ErrWouldBlock once
// exhausted.
func (it *SegmentedIterator[T]) Next() (T, error) {
	if it.idx >= len(it.items) {
		var zero T
		return zero, ErrWouldBlock
	}
	v := it.items[it.idx]
	it.idx++
	return v, nil
}
