// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package concq

// Queue is the combined producer-consumer interface satisfied by the
// three bounded, fixed-capacity queues: SPSC, MPSC, and MPMC.
//
// Segmented does not implement Queue: its TryEnqueue returns a bool
// rather than an error (growth only fails a fixed-size instance), and its
// Cap reports -1 when unbounded. Call its methods directly; of the two
// halves it satisfies only Consumer, since its TryEnqueue does not match
// Producer.
//
// Example:
//
//	var q Queue[int] = NewMPMC[int](1024)
//	v := 42
//	if err := q.TryEnqueue(&v); err != nil {
//	    // full
//	}
//	item, err := q.TryDequeue()
type Queue[T any] interface {
	Producer[T]
	Consumer[T]
	Cap() int
}

// Producer is the enqueue half of Queue. The element is passed by
// pointer to avoid copying large structs; the queue copies the pointed-to
// value, so the caller may reuse or discard the original afterward.
type Producer[T any] interface {
	// TryEnqueue adds an element to the queue. Returns nil on success,
	// ErrWouldBlock if the queue is full.
	TryEnqueue(item *T) error
}

// Consumer is the dequeue half of Queue. The element is returned by
// value, copied out of the queue's internal buffer; the original slot is
// cleared so the queue does not retain a reference to it.
type Consumer[T any] interface {
	// TryDequeue removes and returns the head element.
	// Returns (zero-value, ErrWouldBlock) if the queue is empty.
	TryDequeue() (T, error)
}

// Enumerator is satisfied by every iterator this package returns
// (SPSCIterator, MPSCIterator, MPMCIterator, SegmentedIterator,
// HashSetIterator). Next returns ErrWouldBlock once exhausted, or
// ErrConcurrentModification for the running (non-snapshot) enumerators
// if the underlying queue's Head moved past the enumerator's starting
// point while it was in use.
type Enumerator[T any] interface {
	Next() (T, error)
}
