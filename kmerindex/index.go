package kmerindex

import (
	"iter"

	"govbwt/fmindex"
	"govbwt/search"
)

// Index maps a forward-oriented kmer to the set of vBWT search states
// reached by backward-searching it alone from the full SA interval.
type Index struct {
	K       int
	entries map[string][]search.State
}

// Lookup implements search.Lookup.
func (idx *Index) Lookup(kmer []byte) ([]search.State, bool) {
	states, ok := idx.entries[string(kmer)]
	return states, ok
}

// Len returns the number of distinct indexed kmers.
func (idx *Index) Len() int { return len(idx.entries) }

func allDNAKmers(k int) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		if k <= 0 {
			return
		}
		digits := make([]byte, k)
		for i := range digits {
			digits[i] = 1
		}
		for {
			out := make([]byte, k)
			copy(out, digits)
			if !yield(out) {
				return
			}

			i := k - 1
			for i >= 0 {
				digits[i]++
				if digits[i] <= 4 {
					break
				}
				digits[i] = 1
				i--
			}
			if i < 0 {
				return
			}
		}
	}
}

func concatRegionKmers(prg []uint64, masks *fmindex.Masks, regions []Region, k int) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for _, r := range regions {
			stop := false
			EnumerateKmers(prg, masks, r, k)(func(kmer []byte) bool {
				if !yield(kmer) {
					stop = true
					return false
				}
				return true
			})
			if stop {
				return
			}
		}
	}
}

// BuildIndex enumerates every candidate kmer (or, in allKmers mode, every
// length-k DNA string) and backward-searches it from scratch, storing the
// resulting state set - possibly empty - under the forward kmer string.
func BuildIndex(prg []uint64, idx *fmindex.Index, masks *fmindex.Masks, k int, maxReadSize int, allKmers bool) (*Index, error) {
	out := &Index{K: k, entries: make(map[string][]search.State)}

	var source iter.Seq[[]byte]
	if allKmers {
		source = allDNAKmers(k)
	} else {
		regions := CandidateRegions(prg, maxReadSize)
		source = concatRegionKmers(prg, masks, regions, k)
	}

	for kmer := range source {
		key := string(kmer)
		if _, done := out.entries[key]; done {
			continue
		}

		states := []search.State{search.Initial(idx)}
		for i := len(kmer) - 1; i >= 0; i-- {
			if len(states) == 0 {
				break
			}
			states = search.Extend(states, uint64(kmer[i]), idx, masks)
		}

		out.entries[key] = states
	}

	return out, nil
}
