// Package kmerindex precomputes, for every kmer that can occur within
// max_read_size bases of a variant site, the set of vBWT search states
// backward-searching that kmer alone would reach.
package kmerindex

import "sort"

// Region is an inclusive PRG offset range worth enumerating kmers over.
type Region struct {
	Start, End int
}

type siteSpan struct {
	Marker     uint64
	Start, End int // PRG offsets of the entering and exiting marker occurrences
}

// siteSpans finds every site marker's (start, end) occurrence pair,
// ordered by Start.
func siteSpans(prg []uint64) []siteSpan {
	positions := make(map[uint64][]int)
	for i, s := range prg {
		if s >= 5 && s%2 == 1 {
			positions[s] = append(positions[s], i)
		}
	}

	spans := make([]siteSpan, 0, len(positions))
	for marker, pos := range positions {
		if len(pos) != 2 {
			continue // malformed PRG; fmindex.BuildMasks is the authority that rejects this
		}
		spans = append(spans, siteSpan{Marker: marker, Start: pos[0], End: pos[1]})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return spans
}

// CandidateRegions finds the PRG ranges a kmer of the index's length could
// possibly need to cover, per spec section 4.3: every site's span extended
// rightward by maxReadSize-1 bases (and further if that extension lands
// inside another site), with overlapping regions merged.
func CandidateRegions(prg []uint64, maxReadSize int) []Region {
	spans := siteSpans(prg)
	if len(spans) == 0 {
		return nil
	}

	regions := make([]Region, 0, len(spans))
	for _, sp := range spans {
		end := sp.End + maxReadSize - 1
		if end > len(prg)-1 {
			end = len(prg) - 1
		}
		end = extendPastEnclosingSites(end, spans)
		regions = append(regions, Region{Start: sp.Start, End: end})
	}

	return mergeRegions(regions)
}

// extendPastEnclosingSites grows end rightward while it falls strictly
// inside another site's span, so a region never ends mid-site.
func extendPastEnclosingSites(end int, spans []siteSpan) int {
	for {
		extended := false
		for _, sp := range spans {
			if end >= sp.Start && end < sp.End {
				end = sp.End
				extended = true
			}
		}
		if !extended {
			return end
		}
	}
}

func mergeRegions(regions []Region) []Region {
	if len(regions) == 0 {
		return nil
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Start < regions[j].Start })

	merged := []Region{regions[0]}
	for _, r := range regions[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End+1 {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
