// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package concq_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"

	"github.com/arcspan/concq"
)

func TestSPSCBasic(t *testing.T) {
	q := concq.NewSPSC[int](3)

	if q.Cap() != 3 {
		t.Fatalf("Cap: got %d, want 3", q.Cap())
	}

	for i := range 3 {
		v := i + 100
		if err := q.TryEnqueue(&v); err != nil {
			t.Fatalf("TryEnqueue(%d): %v", i, err)
		}
	}

	v := 999
	if err := q.TryEnqueue(&v); !errors.Is(err, concq.ErrWouldBlock) {
		t.Fatalf("TryEnqueue on full: got %v, want ErrWouldBlock", err)
	}

	for i := range 3 {
		val, err := q.TryDequeue()
		if err != nil {
			t.Fatalf("TryDequeue(%d): %v", i, err)
		}
		if val != i+100 {
			t.Fatalf("TryDequeue(%d): got %d, want %d", i, val, i+100)
		}
	}

	if _, err := q.TryDequeue(); !errors.Is(err, concq.ErrWouldBlock) {
		t.Fatalf("TryDequeue on empty: got %v, want ErrWouldBlock", err)
	}
}

func TestSPSCPeekDoesNotRemove(t *testing.T) {
	q := concq.NewSPSC[string](2)
	v := "hello"
	if err := q.TryEnqueue(&v); err != nil {
		t.Fatalf("TryEnqueue: %v", err)
	}
	got, err := q.TryPeek()
	if err != nil || got != "hello" {
		t.Fatalf("TryPeek: got (%q, %v), want (hello, nil)", got, err)
	}
	got, err = q.TryDequeue()
	if err != nil || got != "hello" {
		t.Fatalf("TryDequeue after TryPeek: got (%q, %v), want (hello, nil)", got, err)
	}
}

func TestSPSCCount(t *testing.T) {
	q := concq.NewSPSC[int](8)
	if !q.IsEmpty() || q.Count() != 0 {
		t.Fatalf("new queue: IsEmpty=%v Count=%d, want true/0", q.IsEmpty(), q.Count())
	}
	for i := range 5 {
		v := i
		_ = q.TryEnqueue(&v)
	}
	if q.Count() != 5 {
		t.Fatalf("Count: got %d, want 5", q.Count())
	}
	if q.IsEmpty() {
		t.Fatal("IsEmpty: got true, want false")
	}
}

func TestSPSCToArrayAndCopyTo(t *testing.T) {
	q := concq.NewSPSCFrom[int](4, []int{1, 2, 3})
	arr := q.ToArray()
	if len(arr) != 3 || arr[0] != 1 || arr[1] != 2 || arr[2] != 3 {
		t.Fatalf("ToArray: got %v, want [1 2 3]", arr)
	}

	dest := make([]int, 5)
	if err := q.CopyTo(dest, 1); err != nil {
		t.Fatalf("CopyTo: %v", err)
	}
	if dest[1] != 1 || dest[2] != 2 || dest[3] != 3 {
		t.Fatalf("CopyTo: got %v", dest)
	}
	if err := q.CopyTo(dest, -1); !errors.Is(err, concq.ErrInvalidCapacity) {
		t.Fatalf("CopyTo negative index: got %v, want ErrInvalidCapacity", err)
	}
	if err := q.CopyTo(make([]int, 1), 0); !errors.Is(err, concq.ErrInvalidCapacity) {
		t.Fatalf("CopyTo undersized dest: got %v, want ErrInvalidCapacity", err)
	}
}

func TestSPSCClear(t *testing.T) {
	q := concq.NewSPSCFrom[int](4, []int{1, 2, 3})
	q.Clear()
	if !q.IsEmpty() {
		t.Fatal("Clear: queue not empty afterward")
	}
	v := 42
	if err := q.TryEnqueue(&v); err != nil {
		t.Fatalf("TryEnqueue after Clear: %v", err)
	}
}

func TestSPSCIterate(t *testing.T) {
	q := concq.NewSPSCFrom[int](4, []int{10, 20, 30})
	it := q.Iterate()
	var got []int
	for {
		v, err := it.Next()
		if err != nil {
			if !errors.Is(err, concq.ErrWouldBlock) {
				t.Fatalf("Next: %v", err)
			}
			break
		}
		got = append(got, v)
	}
	if len(got) != 3 || got[0] != 10 || got[1] != 20 || got[2] != 30 {
		t.Fatalf("Iterate: got %v, want [10 20 30]", got)
	}
}

func TestSPSCIterateConcurrentModification(t *testing.T) {
	q := concq.NewSPSCFrom[int](4, []int{1, 2, 3})
	it := q.Iterate()
	if _, err := q.TryDequeue(); err != nil {
		t.Fatalf("TryDequeue: %v", err)
	}
	if _, err := it.Next(); !errors.Is(err, concq.ErrConcurrentModification) {
		t.Fatalf("Next after concurrent dequeue: got %v, want ErrConcurrentModification", err)
	}
}

// retryWithTimeout retries f until it returns true or timeout expires.
func retryWithTimeout(t *testing.T, timeout time.Duration, f func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	backoff := iox.Backoff{}
	for !f() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout after %v: %s", timeout, msg)
		}
		backoff.Wait()
	}
}

func TestSPSCFIFOOrdering(t *testing.T) {
	if concq.RaceEnabled {
		t.Skip("skip: SPSC uses cross-variable memory ordering not understood by race detector")
	}

	q := concq.NewSPSC[int](64)
	const n = 5000

	var wg sync.WaitGroup
	results := make([]int, n)
	var count atomix.Int64
	var timedOut atomix.Bool

	wg.Add(1)
	go func() {
		defer wg.Done()
		deadline := time.Now().Add(5 * time.Second)
		backoff := iox.Backoff{}
		idx := 0
		for idx < n {
			if time.Now().After(deadline) {
				timedOut.Store(true)
				return
			}
			v, err := q.TryDequeue()
			if err == nil {
				results[idx] = v
				idx++
				count.Add(1)
				backoff.Reset()
			} else {
				backoff.Wait()
			}
		}
	}()

	for i := range n {
		v := i
		retryWithTimeout(t, 3*time.Second, func() bool {
			return q.TryEnqueue(&v) == nil
		}, fmt.Sprintf("producer: enqueue item %d", i))
	}

	wg.Wait()

	if timedOut.Load() {
		t.Fatalf("consumer timeout: consumed %d/%d", count.Load(), n)
	}
	for i := range n {
		if results[i] != i {
			t.Fatalf("FIFO violation at %d: got %d, want %d", i, results[i], i)
		}
	}
}
