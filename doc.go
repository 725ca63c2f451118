// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package concq provides bounded and unbounded concurrent FIFO queues and
// a striped concurrent hash set.
//
// Five collections are available, each specialized for a different
// producer/consumer pattern:
//
//   - SPSC: Single-Producer Single-Consumer, bounded
//   - MPSC: Multi-Producer Single-Consumer, bounded
//   - MPMC: Multi-Producer Multi-Consumer, bounded
//   - Segmented: Multi-Producer Multi-Consumer, unbounded (or fixed-size)
//   - HashSet: concurrent set with striped locking and lock-free reads
//
// # Quick Start
//
//	q := concq.NewSPSC[Event](1024)
//	q := concq.NewMPMC[*Request](4096)
//	q := concq.NewSegmented[Job](32, false) // unbounded
//
// Builder API auto-selects among the three bounded ring queues:
//
//	q := concq.Build[Event](concq.New(1024).SingleProducer().SingleConsumer())  // → SPSC
//	q := concq.Build[Event](concq.New(1024).SingleConsumer())                   // → MPSC
//	q := concq.Build[Event](concq.New(1024))                                    // → MPMC
//
// # Basic Usage
//
// The bounded queues share the same non-blocking shape:
//
//	q := concq.NewMPMC[int](1024)
//
//	value := 42
//	if err := q.TryEnqueue(&value); concq.IsWouldBlock(err) {
//	    // full — handle backpressure
//	}
//
//	item, err := q.TryDequeue()
//	if concq.IsWouldBlock(err) {
//	    // empty — try again later
//	}
//
// Segmented differs in two ways: TryEnqueue returns a bool (growth only
// fails when the queue was constructed fixed-size), and it offers a
// checked Enqueue that returns [ErrFixedQueueFull] instead:
//
//	q := concq.NewSegmented[Job](32, true) // fixed-size, capacity 32
//	if err := q.Enqueue(&job); err != nil {
//	    // fixed and full
//	}
//
// # Common Patterns
//
// Pipeline stage (SPSC):
//
//	q := concq.NewSPSC[Data](1024)
//
//	go func() { // producer
//	    backoff := iox.Backoff{}
//	    for data := range input {
//	        for q.TryEnqueue(&data) != nil {
//	            backoff.Wait()
//	        }
//	        backoff.Reset()
//	    }
//	}()
//
//	go func() { // consumer
//	    backoff := iox.Backoff{}
//	    for {
//	        data, err := q.TryDequeue()
//	        if err != nil {
//	            backoff.Wait()
//	            continue
//	        }
//	        backoff.Reset()
//	        process(data)
//	    }
//	}()
//
// Event aggregation (MPSC), worker pool (MPMC), and unbounded work intake
// (Segmented) follow the same shape with the corresponding constructor.
//
// Deduplicating work set (HashSet):
//
//	seen := concq.NewHashSet[string]()
//	for url := range urls {
//	    if seen.ContainsOrAdd(url) {
//	        continue // already queued
//	    }
//	    submit(url)
//	}
//
// # Error Handling
//
// Queues return [ErrWouldBlock] when an operation cannot proceed. This
// error is sourced from [code.hybscloud.com/iox] for ecosystem
// consistency:
//
//	concq.IsWouldBlock(err)  // true if queue full/empty
//	concq.IsSemantic(err)    // true if control flow signal
//	concq.IsNonFailure(err)  // true if nil or ErrWouldBlock
//
// [ErrInvalidCapacity], [ErrFixedQueueFull], and
// [ErrConcurrentModification] are this package's own sentinel errors; they
// are ordinary errors.Is targets, not iox semantic errors.
//
// # Capacity
//
// MPSC and MPMC round capacity up to the next power of two. SPSC keeps
// the capacity as given and adds one reserved sentinel slot internally —
// Cap() still reports the usable capacity. Segmented rounds its initial
// segment length up to a power of two but has no overall capacity unless
// constructed fixed-size; Cap() reports -1 for a growable instance.
//
// Count is a best-effort snapshot on every queue: accurate counts under
// concurrent mutation would require synchronization beyond what the
// fast paths use. HashSet.Count takes every stripe lock and is exact.
//
// # Thread Safety
//
// Each collection enforces its own access pattern:
//
//   - SPSC: exactly one producer goroutine, one consumer goroutine
//   - MPSC: any number of producers, exactly one consumer goroutine
//   - MPMC, Segmented, HashSet: any number of producers and consumers
//
// Violating SPSC's or MPSC's constraints (e.g. two goroutines calling
// SPSC.TryEnqueue) causes undefined behavior, not a detected error.
//
// # Race Detection
//
// Go's race detector cannot observe the happens-before relationships this
// package establishes through acquire/release atomics on separate
// variables (a sequence number publishing a slot, say), so it reports
// false positives on code that stress-tests linearizability. Tests that
// rely on that property skip themselves when [RaceEnabled] is true.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomics with explicit memory ordering,
// and [code.hybscloud.com/spin] for escalating spin-wait backoff on the
// CAS retry paths. The hash set additionally uses the standard library's
// hash/maphash and sync/atomic.Pointer where atomix has no generic
// atomic-pointer type; see DESIGN.md for why.
package concq
