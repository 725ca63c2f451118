// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package concq

// Options configures queue creation and algorithm selection.
type Options struct {
	singleProducer bool
	singleConsumer bool
	capacity       int
}

// Builder creates queues with fluent configuration.
//
// Builder selects among SPSC, MPSC, and MPMC based on the producer and
// consumer constraints declared on it. Segmented is not reachable through
// Builder: its growable/fixed-size distinction and two-argument
// constructor don't fit the single-capacity fluent shape, so construct it
// directly with NewSegmented.
//
// Example:
//
//	// SPSC queue (optimal for single producer/consumer)
//	q := concq.BuildSPSC[Event](concq.New(1024).SingleProducer().SingleConsumer())
//
//	// MPMC queue (default, general purpose)
//	q := concq.BuildMPMC[Request](concq.New(4096))
type Builder struct {
	opts Options
}

// New creates a queue builder with the given capacity. MPSC and MPMC round
// it up to the next power of two; SPSC uses it as given. Panics if
// capacity < 1.
func New(capacity int) *Builder {
	if capacity < 1 {
		panic("concq: capacity must be >= 1")
	}
	return &Builder{opts: Options{capacity: capacity}}
}

// SingleProducer declares that only one goroutine will enqueue.
func (b *Builder) SingleProducer() *Builder {
	b.opts.singleProducer = true
	return b
}

// SingleConsumer declares that only one goroutine will dequeue.
func (b *Builder) SingleConsumer() *Builder {
	b.opts.singleConsumer = true
	return b
}

// Build creates a Queue[T] with automatic algorithm selection:
//
//	SingleProducer + SingleConsumer → SPSC
//	SingleConsumer only             → MPSC
//	Neither (or SingleProducer only) → MPMC
//
// There is no dedicated single-producer/multi-consumer algorithm in this
// package; a lone SingleProducer() falls back to MPMC, which is always
// safe for that access pattern, just not specialized for it.
func Build[T any](b *Builder) Queue[T] {
	switch {
	case b.opts.singleProducer && b.opts.singleConsumer:
		return NewSPSC[T](b.opts.capacity)
	case b.opts.singleConsumer:
		return NewMPSC[T](b.opts.capacity)
	default:
		return NewMPMC[T](b.opts.capacity)
	}
}

// BuildSPSC creates an SPSC queue with compile-time type safety.
// Panics if builder is not configured with SingleProducer().SingleConsumer().
func BuildSPSC[T any](b *Builder) *SPSC[T] {
	if !b.opts.singleProducer || !b.opts.singleConsumer {
		panic("concq: BuildSPSC requires SingleProducer().SingleConsumer()")
	}
	return NewSPSC[T](b.opts.capacity)
}

// BuildMPSC creates an MPSC queue with compile-time type safety.
// Panics if builder is not configured with SingleConsumer() only.
func BuildMPSC[T any](b *Builder) *MPSC[T] {
	if b.opts.singleProducer || !b.opts.singleConsumer {
		panic("concq: BuildMPSC requires SingleConsumer() without SingleProducer()")
	}
	return NewMPSC[T](b.opts.capacity)
}

// BuildMPMC creates an MPMC queue with compile-time type safety.
// Panics if builder is configured with SingleConsumer().
func BuildMPMC[T any](b *Builder) *MPMC[T] {
	if b.opts.singleConsumer {
		panic("concq: BuildMPMC requires no SingleConsumer() constraint")
	}
	return NewMPMC[T](b.opts.capacity)
}
