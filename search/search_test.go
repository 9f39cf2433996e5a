package search

import (
	"testing"

	"govbwt/fmindex"
)

// buildSingleSiteIndex builds the FM-index and masks for the PRG
// "A[C|G]T" encoded as symbols A=1 C=2 G=3 T=4 with site marker 5 /
// allele marker 6, i.e. [1,5,2,6,3,5,4]. It linearizes to two possible
// reads: "ACT" and "AGT".
func buildSingleSiteIndex(t *testing.T) (*fmindex.Index, *fmindex.Masks) {
	t.Helper()
	symbols := []uint64{1, 5, 2, 6, 3, 5, 4}
	idx, err := fmindex.Build(symbols)
	if err != nil {
		t.Fatalf("fmindex.Build: %v", err)
	}
	masks, err := fmindex.BuildMasks(symbols, idx)
	if err != nil {
		t.Fatalf("fmindex.BuildMasks: %v", err)
	}
	return idx, masks
}

func searchLiteral(idx *fmindex.Index, masks *fmindex.Masks, read []uint64) []State {
	states := []State{Initial(idx)}
	for i := len(read) - 1; i >= 0; i-- {
		states = Extend(states, read[i], idx, masks)
		if len(states) == 0 {
			return nil
		}
	}
	return ResolveAlleleEncapsulated(states, idx, masks)
}

func TestExtendMatchesFirstAllele(t *testing.T) {
	idx, masks := buildSingleSiteIndex(t)

	states := searchLiteral(idx, masks, []uint64{1, 2, 4}) // "ACT"
	if len(states) == 0 {
		t.Fatalf("expected at least one match for ACT, got none")
	}

	found := false
	for _, s := range states {
		for _, l := range s.Path {
			if l.SiteMarker == 5 && l.AlleleID == 1 {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("expected a state with locus (site=5, allele=1), states=%v", states)
	}
}

func TestExtendMatchesSecondAllele(t *testing.T) {
	idx, masks := buildSingleSiteIndex(t)

	states := searchLiteral(idx, masks, []uint64{1, 3, 4}) // "AGT"
	if len(states) == 0 {
		t.Fatalf("expected at least one match for AGT, got none")
	}

	found := false
	for _, s := range states {
		for _, l := range s.Path {
			if l.SiteMarker == 5 && l.AlleleID == 2 {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("expected a state with locus (site=5, allele=2), states=%v", states)
	}
}

func TestExtendRejectsAbsentSequence(t *testing.T) {
	idx, masks := buildSingleSiteIndex(t)

	// "TTT" never occurs in either linearization.
	states := searchLiteral(idx, masks, []uint64{4, 4, 4})
	if len(states) != 0 {
		t.Errorf("expected no states for an absent read, got %v", states)
	}
}

func TestPathPrependOrdersEarliestFirst(t *testing.T) {
	var p Path
	p = p.Prepend(Locus{SiteMarker: 9, AlleleID: 1})
	p = p.Prepend(Locus{SiteMarker: 5, AlleleID: 2})

	if len(p) != 2 || p[0].SiteMarker != 5 || p[1].SiteMarker != 9 {
		t.Errorf("expected earliest locus first, got %v", p)
	}
}

type fakeLookup struct {
	states []State
	ok     bool
}

func (f fakeLookup) Lookup(kmer []byte) ([]State, bool) { return f.states, f.ok }

func TestMapReadUsesLookupForTrailingKmer(t *testing.T) {
	idx, masks := buildSingleSiteIndex(t)

	lookup := fakeLookup{states: []State{Initial(idx)}, ok: true}
	read := []byte{1, 2, 4} // "ACT"
	states := MapRead(read, 2, lookup, idx, masks)
	if states == nil {
		t.Fatalf("expected MapRead to return states")
	}
}

// scenario1PRG is "gct5c6g6t5ac7cc8a7" from the end-to-end scenarios: site
// 5 offers alleles c/g/t, site 7 offers cc/a.
func scenario1PRG() []uint64 {
	return []uint64{3, 2, 4, 5, 2, 6, 3, 6, 4, 5, 1, 2, 7, 2, 2, 8, 1, 7}
}

func TestEndToEndScenario1(t *testing.T) {
	prg := scenario1PRG()
	idx, err := fmindex.Build(prg)
	if err != nil {
		t.Fatalf("fmindex.Build: %v", err)
	}
	masks, err := fmindex.BuildMasks(prg, idx)
	if err != nil {
		t.Fatalf("fmindex.BuildMasks: %v", err)
	}

	// read "gctc" = g,c,t,c against "gct[c|g|t]ac[cc|a]": should resolve to
	// allele 1 (c) of site 5.
	states := searchLiteral(idx, masks, []uint64{3, 2, 4, 2})
	if len(states) == 0 {
		t.Fatalf("expected gctc to map")
	}

	found := false
	for _, s := range states {
		if len(s.Path) == 1 && s.Path[0] == (Locus{SiteMarker: 5, AlleleID: 1}) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected path [(5,1)], got states=%v", states)
	}
}

func TestMapReadMissingKmerReturnsNil(t *testing.T) {
	idx, masks := buildSingleSiteIndex(t)

	lookup := fakeLookup{ok: false}
	read := []byte{1, 2, 4}
	if states := MapRead(read, 2, lookup, idx, masks); states != nil {
		t.Errorf("expected nil for an unindexed kmer, got %v", states)
	}
}
