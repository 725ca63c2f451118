// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package concq

import (
	"hash/maphash"
	"math"
	"math/bits"
	"runtime"
	"sync"
	"sync/atomic"

	"code.hybscloud.com/atomix"
)

// DefaultCapacity is the bucket count a new HashSet starts with, and the
// bucket count Clear resets to.
const DefaultCapacity = 31

// MaxLockNumber is the largest stripe count a HashSet's lock array may
// grow to.
const MaxLockNumber = 1024

// maxArraySize caps bucket-array growth, mirroring the historical runtime
// array-length ceiling this design is modeled on.
const maxArraySize = 0x7FEFFFFF

// node is one entry in a bucket's singly linked chain. A node's key and
// hashcode never change once published, and its next pointer changes only
// when TryRemove unlinks its successor. TryAdd builds a new node and links
// it ahead of the existing chain with a release-store, so a concurrent
// lock-free reader that acquire-loads the bucket head sees a fully formed
// node.
type node[T comparable] struct {
	key      T
	hashcode uint64
	next     atomic.Pointer[node[T]]
}

// countStripe is a single stripe's live-entry counter, cache-line padded
// so that concurrent increments under different stripe locks never false
// share. It is read both under its own stripe lock (TryAdd's budget
// check) and without any lock at all (IsEmpty's fast path, Grow's
// shrink-check aggregate), hence atomix rather than a plain int64.
type countStripe struct {
	count atomix.Int64
	_     padShort
}

// tables is one generation of a HashSet's bucket array, lock stripes, and
// per-stripe counters, swapped as a unit on resize. atomix has no generic
// atomic-pointer type, so this struct's publication, each bucket's
// head-of-chain pointer, and each node's next pointer use stdlib
// sync/atomic.Pointer directly (see package doc and DESIGN.md); the
// per-stripe counters are atomix types.
type tables[T comparable] struct {
	buckets      []atomic.Pointer[node[T]]
	locks        []*sync.Mutex
	countPerLock []countStripe
	budget       int64
}

func newTables[T comparable](capacity, concurrencyLevel int) *tables[T] {
	locks := make([]*sync.Mutex, concurrencyLevel)
	for i := range locks {
		locks[i] = &sync.Mutex{}
	}
	budget := int64(capacity / concurrencyLevel)
	if budget < 1 {
		budget = 1
	}
	return &tables[T]{
		buckets:      make([]atomic.Pointer[node[T]], capacity),
		locks:        locks,
		countPerLock: make([]countStripe, concurrencyLevel),
		budget:       budget,
	}
}

// fastMod reduces hashcode into [0, n) using Lemire's multiply-high
// trick: the top 64 bits of the 128-bit product of hashcode and n. .NET's
// ConcurrentDictionary precomputes a multiplier for this to avoid a
// native 128-bit multiply; Go doesn't need that workaround since
// math/bits exposes the 128-bit multiply (bits.Mul64) directly.
func fastMod(hashcode uint64, n int) int {
	hi, _ := bits.Mul64(hashcode, uint64(n))
	return int(hi)
}

func (tbl *tables[T]) locate(hashcode uint64) (bucketNo, lockNo int) {
	bucketNo = fastMod(hashcode, len(tbl.buckets))
	lockNo = bucketNo % len(tbl.locks)
	return
}

// expandSize computes the next bucket-array length the way HashHelpers
// does: double plus one, then step by two until the candidate isn't
// divisible by 3, 5, or 7, capped at maxArraySize.
func expandSize(oldLen int) int {
	newLen := 2*oldLen + 1
	for newLen%3 == 0 || newLen%5 == 0 || newLen%7 == 0 {
		newLen += 2
	}
	if newLen > maxArraySize {
		return maxArraySize
	}
	return newLen
}

// HashSet is a striped-locking concurrent set with lock-free containment
// checks and enumeration. Writers (TryAdd, TryRemove) hold one stripe
// lock for the duration of a bucket-chain walk; ContainsKey and Iterate
// take no lock at all, relying on acquire-loads of bucket heads and
// node.next to see a consistent (if possibly stale) view of the chain.
//
// Growth doubles the bucket array (subject to the 3/5/7 avoidance above)
// once a stripe's live-entry count exceeds its budget, unless the total
// entry count turns out to be below a quarter of the bucket count — in
// which case the budget alone doubles and the bucket array is left
// alone, the same short-circuit a sparse-after-deletes set gets upstream.
type HashSet[T comparable] struct {
	tbl           atomic.Pointer[tables[T]]
	seed          maphash.Seed
	growLockArray bool
}

type hashSetConfig struct {
	capacity         int
	concurrencyLevel int
	growLockArray    bool
}

// HashSetOption configures a HashSet built by NewHashSet.
type HashSetOption func(*hashSetConfig)

// WithCapacity sets the initial bucket count. Defaults to DefaultCapacity.
func WithCapacity(capacity int) HashSetOption {
	return func(c *hashSetConfig) { c.capacity = capacity }
}

// WithConcurrencyLevel sets the number of lock stripes. Defaults to
// runtime.NumCPU(), capped at MaxLockNumber.
func WithConcurrencyLevel(concurrencyLevel int) HashSetOption {
	return func(c *hashSetConfig) { c.concurrencyLevel = concurrencyLevel }
}

// WithGrowLockArray allows Grow to also double the lock-stripe array (up
// to MaxLockNumber) instead of always reusing the one it was built with.
func WithGrowLockArray() HashSetOption {
	return func(c *hashSetConfig) { c.growLockArray = true }
}

// NewHashSet creates an empty HashSet.
func NewHashSet[T comparable](opts ...HashSetOption) *HashSet[T] {
	cfg := hashSetConfig{capacity: DefaultCapacity, concurrencyLevel: runtime.NumCPU()}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.concurrencyLevel < 1 {
		cfg.concurrencyLevel = 1
	}
	if cfg.concurrencyLevel > MaxLockNumber {
		cfg.concurrencyLevel = MaxLockNumber
	}
	if cfg.capacity < cfg.concurrencyLevel {
		cfg.capacity = cfg.concurrencyLevel
	}

	s := &HashSet[T]{seed: maphash.MakeSeed(), growLockArray: cfg.growLockArray}
	s.tbl.Store(newTables[T](cfg.capacity, cfg.concurrencyLevel))
	return s
}

// NewHashSetFrom creates a HashSet and adds every element of seed.
func NewHashSetFrom[T comparable](seed []T, opts ...HashSetOption) *HashSet[T] {
	s := NewHashSet[T](opts...)
	for _, key := range seed {
		s.TryAdd(key)
	}
	return s
}

// TryAdd inserts key if not already present. Returns true if it was
// inserted, false if key was already a member.
func (s *HashSet[T]) TryAdd(key T) bool {
	hashcode := maphash.Comparable(s.seed, key)
	for {
		tbl := s.tbl.Load()
		bucketNo, lockNo := tbl.locate(hashcode)
		lock := tbl.locks[lockNo]

		lock.Lock()
		if s.tbl.Load() != tbl {
			lock.Unlock()
			continue
		}
		for n := tbl.buckets[bucketNo].Load(); n != nil; n = n.next.Load() {
			if n.hashcode == hashcode && n.key == key {
				lock.Unlock()
				return false
			}
		}

		fresh := &node[T]{key: key, hashcode: hashcode}
		fresh.next.Store(tbl.buckets[bucketNo].Load())
		tbl.buckets[bucketNo].Store(fresh)

		count := tbl.countPerLock[lockNo].count.AddAcqRel(1)
		needsGrow := count > tbl.budget
		lock.Unlock()

		if needsGrow {
			s.grow(tbl)
		}
		return true
	}
}

// TryRemove removes key if present. Returns true if it was removed.
func (s *HashSet[T]) TryRemove(key T) bool {
	hashcode := maphash.Comparable(s.seed, key)
	for {
		tbl := s.tbl.Load()
		bucketNo, lockNo := tbl.locate(hashcode)
		lock := tbl.locks[lockNo]

		lock.Lock()
		if s.tbl.Load() != tbl {
			lock.Unlock()
			continue
		}
		var prev *node[T]
		for n := tbl.buckets[bucketNo].Load(); n != nil; n = n.next.Load() {
			if n.hashcode == hashcode && n.key == key {
				next := n.next.Load()
				if prev == nil {
					tbl.buckets[bucketNo].Store(next)
				} else {
					prev.next.Store(next)
				}
				tbl.countPerLock[lockNo].count.AddAcqRel(-1)
				lock.Unlock()
				return true
			}
			prev = n
		}
		lock.Unlock()
		return false
	}
}

// Remove removes key if present. Returns true if it was removed; an
// alias of TryRemove kept for the collection-style name.
func (s *HashSet[T]) Remove(key T) bool {
	return s.TryRemove(key)
}

// ContainsKey reports whether key is a member. Lock-free: it acquire-loads
// the bucket head and walks next pointers without taking any stripe lock.
func (s *HashSet[T]) ContainsKey(key T) bool {
	hashcode := maphash.Comparable(s.seed, key)
	tbl := s.tbl.Load()
	bucketNo, _ := tbl.locate(hashcode)
	for n := tbl.buckets[bucketNo].Load(); n != nil; n = n.next.Load() {
		if n.hashcode == hashcode && n.key == key {
			return true
		}
	}
	return false
}

// ContainsOrAdd reports whether key was already a member, adding it if
// not.
func (s *HashSet[T]) ContainsOrAdd(key T) bool {
	return !s.TryAdd(key)
}

// grow is invoked after releasing the stripe lock whose insert pushed a
// counter over budget. It acquires locks[0] first to detect and yield to
// a resize some other goroutine already won, then the remaining stripe
// locks in ascending order, matching the deadlock-avoidance order TryAdd
// and TryRemove never have reason to violate (they only ever hold one
// stripe lock at a time).
func (s *HashSet[T]) grow(oldTbl *tables[T]) {
	oldTbl.locks[0].Lock()
	defer oldTbl.locks[0].Unlock()
	if s.tbl.Load() != oldTbl {
		return
	}

	var total int64
	for i := range oldTbl.countPerLock {
		total += oldTbl.countPerLock[i].count.LoadAcquire()
	}
	if total < int64(len(oldTbl.buckets))/4 {
		oldTbl.budget *= 2
		if oldTbl.budget > math.MaxInt32 {
			oldTbl.budget = math.MaxInt32
		}
		return
	}

	newLen := expandSize(len(oldTbl.buckets))

	newLocks := oldTbl.locks
	if s.growLockArray && len(oldTbl.locks) < MaxLockNumber {
		n := len(oldTbl.locks) * 2
		if n > MaxLockNumber {
			n = MaxLockNumber
		}
		newLocks = make([]*sync.Mutex, n)
		copy(newLocks, oldTbl.locks)
		for i := len(oldTbl.locks); i < n; i++ {
			newLocks[i] = &sync.Mutex{}
		}
	}

	for i := 1; i < len(oldTbl.locks); i++ {
		oldTbl.locks[i].Lock()
	}
	defer func() {
		for i := len(oldTbl.locks) - 1; i >= 1; i-- {
			oldTbl.locks[i].Unlock()
		}
	}()

	newBuckets := make([]atomic.Pointer[node[T]], newLen)
	newCountPerLock := make([]countStripe, len(newLocks))
	for i := range oldTbl.buckets {
		for n := oldTbl.buckets[i].Load(); n != nil; n = n.next.Load() {
			bucketNo := fastMod(n.hashcode, newLen)
			lockNo := bucketNo % len(newLocks)
			fresh := &node[T]{key: n.key, hashcode: n.hashcode}
			fresh.next.Store(newBuckets[bucketNo].Load())
			newBuckets[bucketNo].Store(fresh)
			newCountPerLock[lockNo].count.AddAcqRel(1)
		}
	}

	budget := int64(newLen / len(newLocks))
	if budget < 1 {
		budget = 1
	}
	s.tbl.Store(&tables[T]{
		buckets:      newBuckets,
		locks:        newLocks,
		countPerLock: newCountPerLock,
		budget:       budget,
	})
}

// Clear removes every element, replacing the table with a fresh one of
// DefaultCapacity buckets that reuses the existing lock array.
func (s *HashSet[T]) Clear() {
	tbl := s.tbl.Load()
	for _, l := range tbl.locks {
		l.Lock()
	}
	defer func() {
		for i := len(tbl.locks) - 1; i >= 0; i-- {
			tbl.locks[i].Unlock()
		}
	}()

	budget := int64(DefaultCapacity / len(tbl.locks))
	if budget < 1 {
		budget = 1
	}
	s.tbl.Store(&tables[T]{
		buckets:      make([]atomic.Pointer[node[T]], DefaultCapacity),
		locks:        tbl.locks,
		countPerLock: make([]countStripe, len(tbl.locks)),
		budget:       budget,
	})
}

// Count returns the exact number of members, taking every stripe lock.
func (s *HashSet[T]) Count() int {
	tbl := s.tbl.Load()
	for _, l := range tbl.locks {
		l.Lock()
	}
	defer func() {
		for i := len(tbl.locks) - 1; i >= 0; i-- {
			tbl.locks[i].Unlock()
		}
	}()
	var total int64
	for i := range tbl.countPerLock {
		total += tbl.countPerLock[i].count.LoadAcquire()
	}
	return int(total)
}

// IsEmpty reports whether the set currently holds no elements. It first
// checks every stripe counter without taking any lock; if that already
// finds a nonzero stripe, the set is definitely non-empty. Otherwise it
// re-checks under all locks, since the lock-free pass can race a
// concurrent insert into false-believing the set is empty.
func (s *HashSet[T]) IsEmpty() bool {
	tbl := s.tbl.Load()
	for i := range tbl.countPerLock {
		if tbl.countPerLock[i].count.LoadAcquire() != 0 {
			return false
		}
	}

	for _, l := range tbl.locks {
		l.Lock()
	}
	defer func() {
		for i := len(tbl.locks) - 1; i >= 0; i-- {
			tbl.locks[i].Unlock()
		}
	}()
	for i := range tbl.countPerLock {
		if tbl.countPerLock[i].count.LoadAcquire() != 0 {
			return false
		}
	}
	return true
}

// Cap returns the current bucket-array length.
func (s *HashSet[T]) Cap() int {
	return len(s.tbl.Load().buckets)
}

// ToArray returns a consistent snapshot of the set's members, taking
// every stripe lock for the duration of the walk.
func (s *HashSet[T]) ToArray() []T {
	tbl := s.tbl.Load()
	for _, l := range tbl.locks {
		l.Lock()
	}
	defer func() {
		for i := len(tbl.locks) - 1; i >= 0; i-- {
			tbl.locks[i].Unlock()
		}
	}()

	var out []T
	for i := range tbl.buckets {
		for n := tbl.buckets[i].Load(); n != nil; n = n.next.Load() {
			out = append(out, n.key)
		}
	}
	return out
}

// CopyTo copies a ToArray snapshot into dest starting at index.
func (s *HashSet[T]) CopyTo(dest []T, index int) error {
	if index < 0 {
		return ErrInvalidCapacity
	}
	items := s.ToArray()
	if index+len(items) > len(dest) {
		return ErrInvalidCapacity
	}
	copy(dest[index:], items)
	return nil
}

// HashSetIterator is the lock-free, non-snapshot enumerator returned by
// HashSet.Iterate. It may observe concurrent inserts and removes as it
// walks buckets left to right and each chain head to tail.
type HashSetIterator[T comparable] struct {
	tbl       *tables[T]
	bucketIdx int
	cur       *node[T]
}

// Iterate returns a lock-free enumerator over the set's current table
// generation. A concurrent Grow swaps in a new table that this
// enumerator will not see; it keeps walking the generation it started
// with.
func (s *HashSet[T]) Iterate() *HashSetIterator[T] {
	return &HashSetIterator[T]{tbl: s.tbl.Load(), bucketIdx: -1}
}

// Next advances the enumerator and returns the next member, or
// ErrWouldBlock once every bucket has been walked.
func (it *HashSetIterator[T]) Next() (T, error) {
	for {
		if it.cur != nil {
			key := it.cur.key
			it.cur = it.cur.next.Load()
			return key, nil
		}
		it.bucketIdx++
		if it.bucketIdx >= len(it.tbl.buckets) {
			var zero T
			return zero, ErrWouldBlock
		}
		it.cur = it.tbl.buckets[it.bucketIdx].Load()
	}
}
