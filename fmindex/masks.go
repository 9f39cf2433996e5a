package fmindex

import "fmt"

// MalformedPRGError signals a marker-pairing or mask-consistency violation
// discovered while scanning the PRG to build the site/allele masks.
type MalformedPRGError struct {
	Offset int
	Reason string
}

func (e *MalformedPRGError) Error() string {
	return fmt.Sprintf("fmindex: malformed prg at offset %d: %s", e.Offset, e.Reason)
}

// Masks bundles every bit-vector and per-position value array derived from
// the PRG and its BWT, per spec section 3.
type Masks struct {
	PRGMarkers *Bitvector // PRGMarkers[i] = 1 iff PRG[i] is a marker
	BWTMarkers *Bitvector // BWTMarkers[i] = 1 iff BWT[i] is a marker

	Sites   []uint64 // Sites[i] = odd site-marker value owning PRG position i, or 0
	Alleles []uint64 // Alleles[i] = 1-based allele index of i within its site, or 0
}

// scanState is the small state machine used to build Sites/Alleles in a
// single left-to-right pass: outside any site, or inside one tracking the
// owning site marker and which allele is currently open.
type scanState struct {
	inSite      bool
	siteMarker  uint64
	alleleIndex uint64
}

// BuildMasks builds the marker bit-vectors and the site/allele value arrays
// over the (terminator-free) PRG, per spec section 4.2.
func BuildMasks(prgSymbols []uint64, idx *Index) (*Masks, error) {
	n := len(prgSymbols)
	m := &Masks{
		PRGMarkers: NewBitvector(n),
		BWTMarkers: NewBitvector(len(idx.BWT)),
		Sites:      make([]uint64, n),
		Alleles:    make([]uint64, n),
	}

	st := scanState{}
	for i, s := range prgSymbols {
		if s >= 5 {
			m.PRGMarkers.Set(i)
		}

		switch {
		case s >= 5 && s%2 == 1: // site (odd) marker
			if !st.inSite {
				// entering a new site
				st = scanState{inSite: true, siteMarker: s, alleleIndex: 1}
			} else {
				if s != st.siteMarker {
					return nil, &MalformedPRGError{Offset: i, Reason: fmt.Sprintf("unexpected site marker %d while inside site %d", s, st.siteMarker)}
				}
				// exiting the site
				st = scanState{}
			}
		case s >= 5 && s%2 == 0: // allele (even) marker
			if !st.inSite {
				return nil, &MalformedPRGError{Offset: i, Reason: fmt.Sprintf("allele marker %d outside any site", s)}
			}
			if s != st.siteMarker+1 {
				return nil, &MalformedPRGError{Offset: i, Reason: fmt.Sprintf("allele marker %d does not match open site %d", s, st.siteMarker)}
			}
			st.alleleIndex++
		default: // DNA base
			if st.inSite {
				m.Sites[i] = st.siteMarker
				m.Alleles[i] = st.alleleIndex
			}
		}
	}
	if st.inSite {
		return nil, &MalformedPRGError{Offset: n, Reason: fmt.Sprintf("site %d never closed", st.siteMarker)}
	}

	for i, c := range idx.BWT {
		if c >= 5 {
			m.BWTMarkers.Set(i)
		}
	}

	m.PRGMarkers.Build()
	m.BWTMarkers.Build()

	if m.PRGMarkers.TotalSetBits() != m.BWTMarkers.TotalSetBits() {
		return nil, &MalformedPRGError{Reason: fmt.Sprintf(
			"prg marker count %d != bwt marker count %d",
			m.PRGMarkers.TotalSetBits(), m.BWTMarkers.TotalSetBits())}
	}

	return m, nil
}

// SiteAt returns (siteMarker, alleleID) for PRG position i, or (0, 0) if i
// lies outside any site or on a marker itself.
func (m *Masks) SiteAt(i int) (uint64, uint64) {
	return m.Sites[i], m.Alleles[i]
}

// NumMarkers returns the number of marker positions recorded in the PRG.
func (m *Masks) NumMarkers() int {
	return m.PRGMarkers.TotalSetBits()
}

// NthMarkerPRGPosition returns the PRG offset of the rank-th (1-indexed)
// marker symbol, or -1 if rank is out of range. Used to report variant-site
// locations without a second linear scan over the PRG.
func (m *Masks) NthMarkerPRGPosition(rank int) int {
	return m.PRGMarkers.Select1(rank)
}
