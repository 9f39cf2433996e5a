// Package cuckoofilter is a small pure-Go approximate-membership filter.
// kmerindex uses it as a cheap prefilter ahead of its exact kmer dedup map:
// a definite miss here means the kmer is certainly new and skips the map
// lookup (the kmer is then recorded in the map), while a possible hit falls
// through to the exact check.
package cuckoofilter

import (
	"math/rand"
	"sync/atomic"

	"github.com/cespare/xxhash"
)

const (
	bucketSize = 4
	maxKicks   = 500
	fpBits     = 16
	fpMask     = (uint32(1) << fpBits) - 1
)

type bucket [bucketSize]uint32

// Filter is a fixed-size cuckoo filter. Zero value is not usable; use New.
type Filter struct {
	buckets []bucket
	mask    uint64
}

// New allocates a filter sized for roughly expectedItems entries at the
// cuckoo filter's usual load factor.
func New(expectedItems int) *Filter {
	n := upperPowerOfTwo(uint64(expectedItems)/bucketSize + 1)
	if n == 0 {
		n = 1
	}
	return &Filter{buckets: make([]bucket, n), mask: n - 1}
}

func upperPowerOfTwo(x uint64) uint64 {
	if x == 0 {
		return 1
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	x++
	return x
}

func fingerprint(data []byte) uint32 {
	fp := uint32(xxhash.Sum64(data)) & fpMask
	if fp == 0 {
		fp = 1
	}
	return fp
}

func (f *Filter) index1(data []byte) uint64 {
	return xxhash.Sum64(data) & f.mask
}

func (f *Filter) index2(i1 uint64, fp uint32) uint64 {
	var fb [4]byte
	fb[0] = byte(fp)
	fb[1] = byte(fp >> 8)
	fb[2] = byte(fp >> 16)
	fb[3] = byte(fp >> 24)
	return (i1 ^ xxhash.Sum64(fb[:])) & f.mask
}

func (f *Filter) insertAt(i uint64, fp uint32) bool {
	b := &f.buckets[i]
	for s := range b {
		if atomic.CompareAndSwapUint32(&b[s], 0, fp) {
			return true
		}
	}
	return false
}

func (f *Filter) containsAt(i uint64, fp uint32) bool {
	b := &f.buckets[i]
	for s := range b {
		if atomic.LoadUint32(&b[s]) == fp {
			return true
		}
	}
	return false
}

// Lookup reports whether data is possibly present. A false result is
// certain; a true result may be a false positive.
func (f *Filter) Lookup(data []byte) bool {
	fp := fingerprint(data)
	i1 := f.index1(data)
	i2 := f.index2(i1, fp)
	return f.containsAt(i1, fp) || f.containsAt(i2, fp)
}

// Insert adds data to the filter. It returns false only if the filter is
// full and a random-kick eviction chain failed to settle within the kick
// budget; callers should treat that as "filter saturated, stop relying on
// it" rather than an error.
func (f *Filter) Insert(data []byte) bool {
	fp := fingerprint(data)
	i1 := f.index1(data)
	i2 := f.index2(i1, fp)

	if f.insertAt(i1, fp) || f.insertAt(i2, fp) {
		return true
	}

	i := i1
	if rand.Intn(2) == 1 {
		i = i2
	}
	cur := fp
	for n := 0; n < maxKicks; n++ {
		slot := rand.Intn(bucketSize)
		old := atomic.SwapUint32(&f.buckets[i][slot], cur)
		if old == 0 {
			return true
		}
		cur = old
		i = f.index2(i, cur)
		if f.insertAt(i, cur) {
			return true
		}
	}
	return false
}
