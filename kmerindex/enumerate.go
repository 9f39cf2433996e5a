package kmerindex

import (
	"iter"

	"govbwt/cuckoofilter"
	"govbwt/fmindex"
)

// segment is one part of a region-part list: a literal run has exactly one
// alternative, a variant site has one alternative per allele.
type segment struct {
	alleles [][]uint64
}

func (s segment) numAlts() int       { return len(s.alleles) }
func (s segment) alt(i int) []uint64 { return s.alleles[i] }

// siteAlleles splits a site's interior into its allele sequences on the
// even allele-marker separators.
func siteAlleles(prg []uint64, site siteSpan) [][]uint64 {
	var alleles [][]uint64
	var cur []uint64
	for i := site.Start + 1; i < site.End; i++ {
		if prg[i] == site.Marker+1 {
			alleles = append(alleles, cur)
			cur = nil
			continue
		}
		cur = append(cur, prg[i])
	}
	alleles = append(alleles, cur)
	return alleles
}

// reachableSitesDesc walks left from e consuming a budget of k-1 "collapsed
// distance" units: a literal base costs one unit, but an entire site -
// however long its alleles actually are - costs one unit too, since any
// allele could be the one realized on a haplotype. Returns reachable sites
// rightmost-first, the order they are discovered in.
func reachableSitesDesc(endByPos map[int]siteSpan, e, k, regionStart int) []siteSpan {
	var result []siteSpan
	remaining := k - 1
	pos := e
	for pos >= regionStart && remaining >= 0 {
		if sp, ok := endByPos[pos]; ok {
			result = append(result, sp)
			pos = sp.Start - 1
			remaining--
			continue
		}
		pos--
		remaining--
	}
	return result
}

// literalTail collects up to maxLen literal PRG bases ending at (and
// including) from, scanning leftward and stopping at a marker or
// regionStart, returned in ascending PRG order.
func literalTail(prg []uint64, masks *fmindex.Masks, from, regionStart, maxLen int) []uint64 {
	var rev []uint64
	pos := from
	for pos >= regionStart && len(rev) < maxLen {
		if masks.PRGMarkers.Get(pos) {
			break
		}
		rev = append(rev, prg[pos])
		pos--
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// buildSegments assembles the ordered region-part list R described in spec
// section 4.3: the pre-site tail, each reachable site's alleles separated
// by inter-site literal runs, then the post-site tail up to e.
func buildSegments(prg []uint64, masks *fmindex.Masks, asc []siteSpan, e, k, regionStart int) []segment {
	var segs []segment

	preTail := literalTail(prg, masks, asc[0].Start-1, 0, k)
	if len(preTail) > 0 {
		segs = append(segs, segment{alleles: [][]uint64{preTail}})
	}

	for i, sp := range asc {
		segs = append(segs, segment{alleles: siteAlleles(prg, sp)})
		if i < len(asc)-1 {
			next := asc[i+1]
			if next.Start > sp.End+1 {
				inter := append([]uint64(nil), prg[sp.End+1:next.Start]...)
				if len(inter) > 0 {
					segs = append(segs, segment{alleles: [][]uint64{inter}})
				}
			}
		}
	}

	last := asc[len(asc)-1]
	if e > last.End {
		post := append([]uint64(nil), prg[last.End+1:e+1]...)
		if len(post) > 0 {
			segs = append(segs, segment{alleles: [][]uint64{post}})
		}
	}

	return segs
}

// walkPaths is the mixed-radix counter driving path enumeration: the total
// number of paths is the product of each segment's allele count, accepted
// as the worst case per spec section 4.3. Returns false if yield asked to
// stop early.
func walkPaths(segments []segment, yield func([]uint64) bool) bool {
	n := len(segments)
	if n == 0 {
		return true
	}
	idx := make([]int, n)
	for {
		var path []uint64
		for i, seg := range segments {
			path = append(path, seg.alt(idx[i])...)
		}
		if !yield(path) {
			return false
		}

		i := n - 1
		for i >= 0 {
			idx[i]++
			if idx[i] < segments[i].numAlts() {
				break
			}
			idx[i] = 0
			i--
		}
		if i < 0 {
			return true
		}
	}
}

func plainKmer(prg []uint64, masks *fmindex.Masks, e, k, regionStart int) []byte {
	if e-k+1 < regionStart {
		return nil
	}
	for p := e - k + 1; p <= e; p++ {
		if masks.PRGMarkers.Get(p) {
			return nil
		}
	}
	out := make([]byte, k)
	for i := 0; i < k; i++ {
		out[i] = byte(prg[e-k+1+i])
	}
	return out
}

func reverseSpans(spans []siteSpan) []siteSpan {
	out := make([]siteSpan, len(spans))
	for i, sp := range spans {
		out[len(spans)-1-i] = sp
	}
	return out
}

// EnumerateKmers is a pull-model cold iterator over every distinct
// length-k forward-oriented kmer reachable within region, applying the
// cuckoo-filter prefilter ahead of an exact dedup set per spec section 4.3
// and the Design Notes' "coroutine-style lazy generation as a cold
// iterator" guidance.
func EnumerateKmers(prg []uint64, masks *fmindex.Masks, region Region, k int) iter.Seq[[]byte] {
	spans := siteSpans(prg)
	endByPos := make(map[int]siteSpan, len(spans))
	for _, sp := range spans {
		endByPos[sp.End] = sp
	}

	return func(yield func([]byte) bool) {
		filter := cuckoofilter.New(4096)
		seen := make(map[string]struct{})

		emit := func(kmer []byte) bool {
			key := string(kmer)
			if filter.Lookup(kmer) {
				if _, ok := seen[key]; ok {
					return true
				}
			}
			seen[key] = struct{}{}
			filter.Insert(kmer)
			return yield(kmer)
		}

		e := region.End
		for e >= region.Start {
			reachDesc := reachableSitesDesc(endByPos, e, k, region.Start)
			if len(reachDesc) == 0 {
				if kmer := plainKmer(prg, masks, e, k, region.Start); kmer != nil {
					if !emit(kmer) {
						return
					}
				}
				e--
				continue
			}

			asc := reverseSpans(reachDesc)
			segments := buildSegments(prg, masks, asc, e, k, region.Start)
			cont := walkPaths(segments, func(path []uint64) bool {
				for end := len(path); end >= k; end-- {
					window := path[end-k : end]
					fwd := make([]byte, k)
					for i, s := range window {
						fwd[i] = byte(s)
					}
					if !emit(fwd) {
						return false
					}
				}
				return true
			})
			if !cont {
				return
			}

			e = asc[0].Start - 1
		}
	}
}
