// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package concq

// cacheLineSize is the assumed cache line size used for false-sharing
// padding. 64 bytes is typical; some 64-bit ARM designs use 128, but this
// package uses a fixed 64-byte pad rather than detecting the platform at
// runtime.
const cacheLineSize = 64

// pad is a full cache line of padding, placed ahead of a hot field so the
// struct's neighbors in memory don't share its line.
type pad [cacheLineSize]byte

// padShort fills a cache line after an 8-byte atomic field.
type padShort [cacheLineSize - 8]byte

// padShort32 fills a cache line after a 4-byte atomic field.
type padShort32 [cacheLineSize - 4]byte

// roundToPow2 rounds n up to the next power of 2. Used by every bounded
// ring (MPSC, MPMC, Segment) so that index-to-slot mapping reduces to a
// bitmask instead of a division.
func roundToPow2(n int) int {
	if n < 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
