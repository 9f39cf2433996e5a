// Package search implements vBWT backward search: extending a set of
// FM-index search states by one read base at a time, forking across
// alleles at variant-site boundaries and tracking which loci were
// traversed.
package search

import (
	"fmt"

	"govbwt/fmindex"
)

// SiteState records what a State currently knows about its relationship to
// a variant site.
type SiteState int

const (
	SiteOutside SiteState = iota
	SiteWithin
	SiteUnknown
)

// Locus is one (site marker, allele id) pair on a variant site path.
type Locus struct {
	SiteMarker uint64
	AlleleID   uint64
}

// Path is an ordered variant-site path, earliest-traversed locus first.
type Path []Locus

// Prepend returns a new Path with locus inserted at the front, the
// operation backward search uses every time it discovers a locus further
// left (earlier) in the PRG than anything already recorded.
func (p Path) Prepend(l Locus) Path {
	out := make(Path, 0, len(p)+1)
	out = append(out, l)
	out = append(out, p...)
	return out
}

// State is a single vBWT search state: an SA interval, the variant-site
// path taken to reach it, and what is currently known about site
// membership.
type State struct {
	Lo, Hi    int
	Path      Path
	SiteState SiteState
}

func (s State) String() string {
	return fmt.Sprintf("State{[%d,%d], path=%v, site=%v}", s.Lo, s.Hi, s.Path, s.SiteState)
}

// Empty reports whether the SA interval is empty (lo > hi).
func (s State) Empty() bool { return s.Lo > s.Hi }

// Initial is the full-PRG starting state: the whole SA interval, no path,
// outside any site.
func Initial(idx *fmindex.Index) State {
	return State{Lo: 0, Hi: idx.Size() - 1, SiteState: SiteOutside}
}

// SearchStats supplements a mapping with purely observational counters:
// how many post-marker-resolution states Extend fed into its backward-search
// step, and how many of those the SA-interval intersection pruned to empty.
// Never affects the mapping result itself.
type SearchStats struct {
	StatesConsidered int
	StatesPruned     int
}

func (s SearchStats) add(o SearchStats) SearchStats {
	return SearchStats{
		StatesConsidered: s.StatesConsidered + o.StatesConsidered,
		StatesPruned:     s.StatesPruned + o.StatesPruned,
	}
}

// Extend advances states by one read base c (c in {1,2,3,4}), moving
// right-to-left through the PRG. Phase A resolves any marker rows in each
// state's SA interval before Phase B applies the ordinary FM-index
// backward-search step, per spec section 4.4.
func Extend(states []State, c uint64, idx *fmindex.Index, masks *fmindex.Masks) []State {
	out, _ := ExtendWithStats(states, c, idx, masks)
	return out
}

// ExtendWithStats is Extend with an accompanying SearchStats for the step.
func ExtendWithStats(states []State, c uint64, idx *fmindex.Index, masks *fmindex.Masks) ([]State, SearchStats) {
	postMarkers := processMarkers(states, idx, masks)
	return extendDNA(postMarkers, c, idx)
}

// processMarkers implements Phase A: for every state, any BWT row within
// its SA interval that holds a marker is resolved into zero or more
// derived states (entering a site forks across alleles, exiting collapses
// to the boundary row). The original states are always preserved alongside
// whatever markers produce, since Phase B's rank-based extension is
// indifferent to marker rows mixed into an SA interval.
func processMarkers(states []State, idx *fmindex.Index, masks *fmindex.Masks) []State {
	out := make([]State, 0, len(states))
	out = append(out, states...)

	for _, s := range states {
		for i := s.Lo; i <= s.Hi; i++ {
			if !masks.BWTMarkers.Get(i) {
				continue
			}
			m := idx.BWT[i]
			if m%2 == 1 {
				out = append(out, processSiteMarker(m, i, s, idx, masks)...)
			} else {
				out = append(out, processAlleleMarker(m, i, s, idx, masks))
			}
		}
	}
	return out
}

// transition classifies a marker row per the Design Notes' tagged variant,
// folding what used to be a chain of boolean handler functions into one
// switch.
type transition int

const (
	transEndBoundary transition = iota // backward search is entering the site
	transStartBoundary
)

func siteBoundaryTransition(m uint64, sa int, idx *fmindex.Index) (transition, int) {
	first, _ := idx.FirstSAIndex(m)
	offset := idx.RankBWT(m, sa)
	markerSA := first + offset

	other := first
	if markerSA == first {
		other = first + 1
	}
	markerText := idx.SA[markerSA]
	otherText := idx.SA[other]

	if markerText <= otherText {
		return transStartBoundary, markerSA
	}
	return transEndBoundary, markerSA
}

func processSiteMarker(m uint64, sa int, s State, idx *fmindex.Index, masks *fmindex.Masks) []State {
	trans, markerSA := siteBoundaryTransition(m, sa, idx)

	switch trans {
	case transEndBoundary:
		return enteringSiteStates(m, s, idx, masks)
	default: // transStartBoundary
		return []State{exitingSiteState(m, markerSA, s)}
	}
}

// alleleMarkerSAInterval returns the full SA interval of allele marker
// m+1 for site marker m.
func alleleMarkerSAInterval(siteMarker uint64, idx *fmindex.Index) (int, int) {
	alleleMarker := siteMarker + 1
	start, _ := idx.FirstSAIndex(alleleMarker)

	nextSiteMarker := siteMarker + 2
	if nextStart, ok := idx.FirstSAIndex(nextSiteMarker); ok {
		return start, nextStart - 1
	}
	return start, idx.Size() - 1
}

func enteringSiteStates(siteMarker uint64, s State, idx *fmindex.Index, masks *fmindex.Masks) []State {
	lo, hi := alleleMarkerSAInterval(siteMarker, idx)

	states := make([]State, 0, hi-lo+2)
	for j := lo; j <= hi; j++ {
		alleleID := masks.Alleles[idx.SA[j]-1]
		states = append(states, State{
			Lo: j, Hi: j,
			Path:      s.Path.Prepend(Locus{SiteMarker: siteMarker, AlleleID: alleleID}),
			SiteState: SiteWithin,
		})
	}

	numAlleles := uint64(hi-lo+1) + 1
	markerSA := markerSAForEnd(siteMarker, s, idx)

	states = append(states, State{
		Lo: markerSA, Hi: markerSA,
		Path:      s.Path.Prepend(Locus{SiteMarker: siteMarker, AlleleID: numAlleles}),
		SiteState: SiteWithin,
	})
	return states
}

// markerSAForEnd recomputes which single SA row of siteMarker is the
// end-boundary occurrence seen within s's original interval, by rescanning
// for the marker row the same way processMarkers found it.
func markerSAForEnd(siteMarker uint64, s State, idx *fmindex.Index) int {
	for i := s.Lo; i <= s.Hi; i++ {
		if idx.BWT[i] != siteMarker {
			continue
		}
		_, markerSA := siteBoundaryTransition(siteMarker, i, idx)
		return markerSA
	}
	// Unreachable given processSiteMarker only calls this after finding the row.
	return s.Lo
}

func exitingSiteState(siteMarker uint64, markerSA int, s State) State {
	path := s.Path
	if s.SiteState != SiteWithin && len(path) == 0 {
		path = path.Prepend(Locus{SiteMarker: siteMarker, AlleleID: 1})
	}
	return State{
		Lo: markerSA, Hi: markerSA,
		Path:      path,
		SiteState: SiteOutside,
	}
}

func processAlleleMarker(m uint64, sa int, s State, idx *fmindex.Index, masks *fmindex.Masks) State {
	siteMarker := m - 1
	first, _ := idx.FirstSAIndex(siteMarker)
	second := first + 1

	boundaryStart := first
	if idx.SA[second] < idx.SA[first] {
		boundaryStart = second
	}

	path := s.Path
	if s.SiteState != SiteWithin && len(path) == 0 {
		alleleID := masks.Alleles[idx.SA[sa]]
		path = path.Prepend(Locus{SiteMarker: siteMarker, AlleleID: alleleID})
	}

	return State{
		Lo: boundaryStart, Hi: boundaryStart,
		Path:      path,
		SiteState: SiteOutside,
	}
}

// extendDNA implements Phase B: plain FM-index backward search by one DNA
// base, dropping any state whose resulting interval is empty.
func extendDNA(states []State, c uint64, idx *fmindex.Index) ([]State, SearchStats) {
	stats := SearchStats{StatesConsidered: len(states)}

	first, ok := idx.FirstSAIndex(c)
	if !ok {
		stats.StatesPruned = len(states)
		return nil, stats
	}

	out := make([]State, 0, len(states))
	for _, s := range states {
		lo := 0
		if s.Lo > 0 {
			lo = idx.RankBWT(c, s.Lo)
		}
		hi := idx.RankBWT(c, s.Hi+1)

		nextLo := first + lo
		nextHi := first + hi - 1
		if nextLo > nextHi {
			stats.StatesPruned++
			continue
		}
		out = append(out, State{Lo: nextLo, Hi: nextHi, Path: s.Path, SiteState: s.SiteState})
	}
	return out, stats
}

// ResolveAlleleEncapsulated handles the finalization spec section 4.4
// calls "allele-encapsulated finalization": a state with an empty path may
// still lie entirely inside one allele, discoverable only by inspecting
// each SA row's own site/allele mask value directly. Consecutive SA rows
// sharing the same locus are coalesced into a single output state.
func ResolveAlleleEncapsulated(states []State, idx *fmindex.Index, masks *fmindex.Masks) []State {
	out := make([]State, 0, len(states))
	for _, s := range states {
		if len(s.Path) != 0 {
			out = append(out, s)
			continue
		}
		out = append(out, resolveOne(s, idx, masks)...)
	}
	return out
}

func resolveOne(s State, idx *fmindex.Index, masks *fmindex.Masks) []State {
	var result []State
	var cur *State

	flush := func() {
		if cur != nil {
			result = append(result, *cur)
			cur = nil
		}
	}

	for sa := s.Lo; sa <= s.Hi; sa++ {
		prgIdx := idx.SA[sa]
		site, allele := masks.SiteAt(prgIdx)
		if site == 0 {
			flush()
			result = append(result, State{Lo: sa, Hi: sa, SiteState: SiteOutside})
			continue
		}

		locus := Locus{SiteMarker: site, AlleleID: allele}
		if cur == nil {
			flush()
			cur = &State{Lo: sa, Hi: sa, Path: Path{locus}, SiteState: SiteWithin}
			continue
		}
		if len(cur.Path) == 1 && cur.Path[0] == locus {
			cur.Hi = sa
			continue
		}
		flush()
		cur = &State{Lo: sa, Hi: sa, Path: Path{locus}, SiteState: SiteWithin}
	}
	flush()
	return result
}

// Lookup is satisfied by a kmer index: given the forward-oriented kmer
// that ends a read, it returns the precomputed post-backward-search
// states for that kmer, or ok=false if the kmer was never indexed.
type Lookup interface {
	Lookup(kmer []byte) ([]State, bool)
}

// MapRead backward-searches read (bases 1..4, forward orientation) using
// a kmer index to skip the trailing k bases, then iterating Extend over
// the remaining bases right-to-left.
func MapRead(read []byte, k int, lookup Lookup, idx *fmindex.Index, masks *fmindex.Masks) []State {
	states, _ := MapReadWithStats(read, k, lookup, idx, masks)
	return states
}

// MapReadWithStats is MapRead with an accompanying SearchStats accumulated
// across every Extend step.
func MapReadWithStats(read []byte, k int, lookup Lookup, idx *fmindex.Index, masks *fmindex.Masks) ([]State, SearchStats) {
	var stats SearchStats
	if len(read) < k {
		return nil, stats
	}

	kmer := make([]byte, k)
	copy(kmer, read[len(read)-k:])

	states, ok := lookup.Lookup(kmer)
	if !ok {
		return nil, stats
	}
	if len(states) == 0 {
		return states, stats
	}

	cur := append([]State(nil), states...)
	for i := len(read) - k - 1; i >= 0; i-- {
		var step SearchStats
		cur, step = ExtendWithStats(cur, uint64(read[i]), idx, masks)
		stats = stats.add(step)
		if len(cur) == 0 {
			return nil, stats
		}
	}

	return ResolveAlleleEncapsulated(cur, idx, masks), stats
}
