// Package fmindex builds the FM-index and its companion rank/select masks
// over an encoded PRG: suffix array, BWT, column counts, and per-base rank
// support, plus the variant-site/allele position masks layered on top.
package fmindex

import (
	"fmt"
	"sort"
)

// Terminator is the conceptual end-of-text symbol appended to the PRG
// before suffix-array construction. It sorts before every real symbol.
const Terminator uint64 = 0

// Index is the FM-index over an encoded PRG (with its terminator appended).
type Index struct {
	Text []uint64 // encoded PRG with Terminator appended
	SA   []int    // SA[i] = start offset in Text of the i-th suffix, lexicographically
	BWT  []uint64 // BWT[i] = Text[SA[i]-1], or Terminator-predecessor wraparound

	C map[uint64]int // C[c] = count of symbols strictly less than c in Text

	dnaRank        [5]*Bitvector // indices 1..4 used; 0 unused
	markerPosition map[uint64][]int
}

// Build constructs the FM-index over prg (the PRG, without a terminator;
// Build appends one). prg must use the alphabet documented in package prg.
func Build(prgSymbols []uint64) (*Index, error) {
	text := make([]uint64, len(prgSymbols)+1)
	copy(text, prgSymbols)
	text[len(prgSymbols)] = Terminator

	sa := buildSuffixArray(text)

	bwt := make([]uint64, len(text))
	for i, s := range sa {
		if s == 0 {
			bwt[i] = text[len(text)-1]
		} else {
			bwt[i] = text[s-1]
		}
	}

	idx := &Index{Text: text, SA: sa, BWT: bwt}
	idx.buildC()
	idx.buildRankSupport()
	return idx, nil
}

// buildSuffixArray sorts suffix start offsets lexicographically by
// comparing the integer symbol sequence from that offset onward. This is
// the same "sort the suffix offsets" approach vtphan-fmi's
// build_suffix_array takes, generalized from a byte alphabet to the wider
// marker alphabet.
func buildSuffixArray(text []uint64) []int {
	n := len(text)
	sa := make([]int, n)
	for i := range sa {
		sa[i] = i
	}
	sort.Slice(sa, func(i, j int) bool {
		return lessSuffix(text, sa[i], sa[j])
	})
	return sa
}

func lessSuffix(text []uint64, a, b int) bool {
	na, nb := len(text)-a, len(text)-b
	n := na
	if nb < n {
		n = nb
	}
	for k := 0; k < n; k++ {
		ca, cb := text[a+k], text[b+k]
		if ca != cb {
			return ca < cb
		}
	}
	return na < nb
}

func (idx *Index) buildC() {
	freq := make(map[uint64]int)
	for _, s := range idx.Text {
		freq[s]++
	}
	symbols := make([]uint64, 0, len(freq))
	for s := range freq {
		symbols = append(symbols, s)
	}
	sort.Slice(symbols, func(i, j int) bool { return symbols[i] < symbols[j] })

	idx.C = make(map[uint64]int, len(symbols))
	cum := 0
	for _, s := range symbols {
		idx.C[s] = cum
		cum += freq[s]
	}
}

func (idx *Index) buildRankSupport() {
	for base := uint64(1); base <= 4; base++ {
		bv := NewBitvector(len(idx.BWT))
		for i, c := range idx.BWT {
			if c == base {
				bv.Set(i)
			}
		}
		bv.Build()
		idx.dnaRank[base] = bv
	}

	idx.markerPosition = make(map[uint64][]int)
	for i, c := range idx.BWT {
		if c >= 5 {
			idx.markerPosition[c] = append(idx.markerPosition[c], i)
		}
	}
}

// RankBWT returns the number of occurrences of symbol c in BWT[0:i), the
// FM-index's rank_bwt(c, i) operation.
func (idx *Index) RankBWT(c uint64, i int) int {
	if i <= 0 {
		return 0
	}
	if c >= 1 && c <= 4 {
		return idx.dnaRank[c].Rank1(i)
	}
	positions := idx.markerPosition[c]
	return sort.SearchInts(positions, i)
}

// FirstSAIndex returns C[c], the row at which symbol c's suffix-array block
// begins.
func (idx *Index) FirstSAIndex(c uint64) (int, bool) {
	v, ok := idx.C[c]
	return v, ok
}

// Size returns the indexed text length, PRG length + 1 for the terminator.
func (idx *Index) Size() int { return len(idx.Text) }

// String implements fmt.Stringer for debugging small indexes.
func (idx *Index) String() string {
	return fmt.Sprintf("fmindex.Index{n=%d, alphabet=%d}", idx.Size(), len(idx.C))
}
