// Package coverage accumulates per-allele, per-base, and per-allele-group
// read-mapping statistics over a PRG, from the final search states each
// mapped read produces.
package coverage

import (
	"sort"
	"sync"
	"sync/atomic"

	"govbwt/fmindex"
	"govbwt/search"
)

// Coverage holds the three recorders described in spec section 4.5, sized
// against one PRG's variant sites at construction time. All mutation is
// through atomic fetch-adds; there is no coverage-wide lock.
type Coverage struct {
	siteOrder  []uint64
	siteIndex  map[uint64]int
	numAlleles []int

	baseOffset []int // baseOffset[prgPos] = 0-based offset within its allele, or -1

	alleleSum  [][]uint64 // [site][allele]
	alleleBase [][][]uint32

	grouped []sync.Map // one per site, key -> *uint64
}

type siteInfo struct {
	marker     uint64
	alleleLens []int
}

// scanSites walks the PRG once, finding every site's allele boundaries.
// Grounded on the same left-to-right marker scan fmindex.BuildMasks uses,
// specialized to produce per-allele lengths instead of position masks.
func scanSites(prg []uint64) []siteInfo {
	positions := make(map[uint64][]int)
	for i, s := range prg {
		if s >= 5 && s%2 == 1 {
			positions[s] = append(positions[s], i)
		}
	}

	markers := make([]uint64, 0, len(positions))
	for m := range positions {
		markers = append(markers, m)
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i] < markers[j] })

	infos := make([]siteInfo, 0, len(markers))
	for _, m := range markers {
		pos := positions[m]
		if len(pos) != 2 {
			continue
		}
		start, end := pos[0], pos[1]
		var lens []int
		cur := 0
		for i := start + 1; i < end; i++ {
			if prg[i] == m+1 {
				lens = append(lens, cur)
				cur = 0
				continue
			}
			cur++
		}
		lens = append(lens, cur)
		infos = append(infos, siteInfo{marker: m, alleleLens: lens})
	}
	return infos
}

// New builds an all-zero Coverage sized against prg's variant sites.
func New(prg []uint64) *Coverage {
	infos := scanSites(prg)

	c := &Coverage{
		siteIndex:  make(map[uint64]int, len(infos)),
		baseOffset: make([]int, len(prg)),
		grouped:    make([]sync.Map, len(infos)),
	}
	for i := range c.baseOffset {
		c.baseOffset[i] = -1
	}

	for i, info := range infos {
		c.siteOrder = append(c.siteOrder, info.marker)
		c.siteIndex[info.marker] = i
		c.numAlleles = append(c.numAlleles, len(info.alleleLens))

		c.alleleSum = append(c.alleleSum, make([]uint64, len(info.alleleLens)))
		baseRow := make([][]uint32, len(info.alleleLens))
		for a, l := range info.alleleLens {
			baseRow[a] = make([]uint32, l)
		}
		c.alleleBase = append(c.alleleBase, baseRow)
	}

	// fill baseOffset by re-walking the PRG's site interiors
	for _, info := range infos {
		pos := findSitePositions(prg, info.marker)
		if pos == nil {
			continue
		}
		start, end := pos[0], pos[1]
		offset := 0
		for i := start + 1; i < end; i++ {
			if prg[i] == info.marker+1 {
				offset = 0
				continue
			}
			c.baseOffset[i] = offset
			offset++
		}
	}

	return c
}

func findSitePositions(prg []uint64, marker uint64) []int {
	var pos []int
	for i, s := range prg {
		if s == marker {
			pos = append(pos, i)
		}
	}
	return pos
}

// RecordAlleleSum increments counts[site][allele] once per locus on the
// path of every passed state, per spec section 4.5.
func (c *Coverage) RecordAlleleSum(states []search.State) {
	for _, s := range states {
		for _, l := range s.Path {
			si, ok := c.siteIndex[l.SiteMarker]
			if !ok {
				continue
			}
			ai := int(l.AlleleID) - 1
			if ai < 0 || ai >= len(c.alleleSum[si]) {
				continue
			}
			atomic.AddUint64(&c.alleleSum[si][ai], 1)
		}
	}
}

// RecordGroupedAlleles increments, for every site touched by the read's
// search states, the counter for the distinct set of allele ids those
// states collectively passed through at that site.
func (c *Coverage) RecordGroupedAlleles(states []search.State) {
	perSite := make(map[int]map[uint64]struct{})
	for _, s := range states {
		for _, l := range s.Path {
			si, ok := c.siteIndex[l.SiteMarker]
			if !ok {
				continue
			}
			set, ok := perSite[si]
			if !ok {
				set = make(map[uint64]struct{})
				perSite[si] = set
			}
			set[l.AlleleID] = struct{}{}
		}
	}
	for si, set := range perSite {
		ids := make([]int, 0, len(set))
		for id := range set {
			ids = append(ids, int(id)-1) // output is 0-based
		}
		sort.Ints(ids)
		key := groupKey(ids)
		v, _ := c.grouped[si].LoadOrStore(key, new(uint64))
		atomic.AddUint64(v.(*uint64), 1)
	}
}

// RecordAlleleBase walks every occurrence of the read implied by states'
// SA rows forward over the PRG for readLen bases, incrementing per-base
// allele coverage. A transient per-call seen map prevents a single read
// from double-counting a locus it reaches via more than one SA row.
func (c *Coverage) RecordAlleleBase(states []search.State, readLen int, idx *fmindex.Index, masks *fmindex.Masks) {
	type locusKey struct{ site, allele int }
	seen := make(map[locusKey]int)

	for _, s := range states {
		for row := s.Lo; row <= s.Hi; row++ {
			start := idx.SA[row]
			for pos, consumed := start, 0; consumed < readLen; pos++ {
				if pos < 0 || pos >= len(c.baseOffset) {
					break
				}
				if masks.PRGMarkers.Get(pos) {
					continue
				}
				site, allele := masks.SiteAt(pos)
				offPath := false
				for _, l := range s.Path {
					if l.SiteMarker == site && l.AlleleID != allele {
						offPath = true
					}
				}
				if site != 0 && offPath {
					continue
				}
				consumed++
				if site == 0 {
					continue
				}
				si, ok := c.siteIndex[site]
				if !ok {
					continue
				}
				ai := int(allele) - 1
				if ai < 0 || ai >= len(c.alleleBase[si]) {
					continue
				}
				bi := c.baseOffset[pos]
				if bi < 0 || bi >= len(c.alleleBase[si][ai]) {
					continue
				}

				key := locusKey{site: si, allele: ai}
				if lastEnd, ok := seen[key]; ok && bi < lastEnd {
					continue
				}
				seen[key] = bi + 1
				incrSaturating(&c.alleleBase[si][ai][bi])
			}
		}
	}
}

// incrSaturating checks saturation non-atomically before the atomic add,
// per spec section 5: the rare race near the saturation boundary is
// tolerable loss of precision, not a correctness bug.
func incrSaturating(addr *uint32) {
	if atomic.LoadUint32(addr) >= 0xFFFF {
		return
	}
	atomic.AddUint32(addr, 1)
}

func groupKey(ids []int) string {
	if len(ids) == 0 {
		return ""
	}
	b := make([]byte, 0, len(ids)*3)
	for i, id := range ids {
		if i > 0 {
			b = append(b, ',')
		}
		b = appendInt(b, id)
	}
	return string(b)
}

func appendInt(b []byte, v int) []byte {
	if v == 0 {
		return append(b, '0')
	}
	neg := v < 0
	if neg {
		v = -v
	}
	start := len(b)
	for v > 0 {
		b = append(b, byte('0'+v%10))
		v /= 10
	}
	if neg {
		b = append(b, '-')
	}
	// reverse the digits just appended
	for i, j := start, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b
}
