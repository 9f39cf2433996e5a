package coverage

import (
	"strings"
	"testing"

	"govbwt/fmindex"
	"govbwt/search"
)

func mapLiteral(prg []uint64, read []uint64) ([]search.State, *fmindex.Index, *fmindex.Masks) {
	idx, err := fmindex.Build(prg)
	if err != nil {
		panic(err)
	}
	masks, err := fmindex.BuildMasks(prg, idx)
	if err != nil {
		panic(err)
	}

	states := []search.State{search.Initial(idx)}
	for i := len(read) - 1; i >= 0; i-- {
		states = search.Extend(states, read[i], idx, masks)
		if len(states) == 0 {
			return nil, idx, masks
		}
	}
	return search.ResolveAlleleEncapsulated(states, idx, masks), idx, masks
}

// TestScenario5AlleleBase mirrors end-to-end scenario 5: PRG "a5g6t5c",
// read "agc", k=1: allele base coverage at site 5 = [[1],[0]].
func TestScenario5AlleleBase(t *testing.T) {
	prg := []uint64{1, 5, 3, 6, 4, 5, 2} // a 5 g 6 t 5 c
	read := []uint64{1, 3, 2}            // a g c

	states, idx, masks := mapLiteral(prg, read)
	if len(states) == 0 {
		t.Fatalf("expected agc to map against a5g6t5c")
	}

	c := New(prg)
	c.RecordAlleleBase(states, len(read), idx, masks)

	si := c.siteIndex[5]
	got := c.alleleBase[si]
	if len(got) != 2 {
		t.Fatalf("expected 2 alleles at site 5, got %d", len(got))
	}
	if got[0][0] != 1 {
		t.Errorf("allele 0 (g) base 0 = %d, want 1", got[0][0])
	}
	if got[1][0] != 0 {
		t.Errorf("allele 1 (t) base 0 = %d, want 0", got[1][0])
	}
}

func TestRecordAlleleSum(t *testing.T) {
	prg := []uint64{1, 5, 3, 6, 4, 5, 2}
	c := New(prg)

	states := []search.State{
		{Path: search.Path{{SiteMarker: 5, AlleleID: 1}}},
		{Path: search.Path{{SiteMarker: 5, AlleleID: 2}}},
	}
	c.RecordAlleleSum(states)

	si := c.siteIndex[5]
	if c.alleleSum[si][0] != 1 || c.alleleSum[si][1] != 1 {
		t.Errorf("alleleSum = %v, want [1 1]", c.alleleSum[si])
	}
}

func TestRecordGroupedAllelesDedupesWithinARead(t *testing.T) {
	prg := []uint64{1, 5, 3, 6, 4, 5, 2}
	c := New(prg)

	states := []search.State{
		{Path: search.Path{{SiteMarker: 5, AlleleID: 1}}},
		{Path: search.Path{{SiteMarker: 5, AlleleID: 1}}}, // same allele, different SA row
	}
	c.RecordGroupedAlleles(states)

	si := c.siteIndex[5]
	v, ok := c.grouped[si].Load("0") // 0-based allele id
	if !ok {
		t.Fatalf("expected a group entry for allele set {0}")
	}
	if *(v.(*uint64)) != 1 {
		t.Errorf("group count = %d, want 1 (ambiguous states within one read count once)", *(v.(*uint64)))
	}
}

func TestDumpAlleleSumFormat(t *testing.T) {
	prg := []uint64{1, 5, 3, 6, 4, 5, 2}
	c := New(prg)
	c.RecordAlleleSum([]search.State{{Path: search.Path{{SiteMarker: 5, AlleleID: 2}}}})

	var buf strings.Builder
	if err := c.DumpAlleleSum(&buf); err != nil {
		t.Fatalf("DumpAlleleSum: %v", err)
	}
	if buf.String() != "0 1\n" {
		t.Errorf("DumpAlleleSum = %q, want %q", buf.String(), "0 1\n")
	}
}

func TestDumpAlleleBaseIsValidJSON(t *testing.T) {
	prg := []uint64{1, 5, 3, 6, 4, 5, 2}
	c := New(prg)

	var buf strings.Builder
	if err := c.DumpAlleleBase(&buf); err != nil {
		t.Fatalf("DumpAlleleBase: %v", err)
	}
	if !strings.Contains(buf.String(), "allele_base_counts") {
		t.Errorf("DumpAlleleBase output missing top-level key: %s", buf.String())
	}
}

func TestDumpGroupedAllelesIsValidJSON(t *testing.T) {
	prg := []uint64{1, 5, 3, 6, 4, 5, 2}
	c := New(prg)
	c.RecordGroupedAlleles([]search.State{{Path: search.Path{{SiteMarker: 5, AlleleID: 1}}}})

	var buf strings.Builder
	if err := c.DumpGroupedAlleles(&buf); err != nil {
		t.Fatalf("DumpGroupedAlleles: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "site_counts") || !strings.Contains(out, "allele_groups") {
		t.Errorf("DumpGroupedAlleles output missing expected keys: %s", out)
	}
}
