package kmerindex

import (
	"sort"
	"testing"

	"govbwt/fmindex"
)

// scenario1PRG is "gct5c6g6t5ac7cc8a7" from the end-to-end scenarios: site
// 5 offers alleles c/g/t, site 7 offers cc/a.
func scenario1PRG() []uint64 {
	return []uint64{3, 2, 4, 5, 2, 6, 3, 6, 4, 5, 1, 2, 7, 2, 2, 8, 1, 7}
}

func TestSiteSpans(t *testing.T) {
	spans := siteSpans(scenario1PRG())
	if len(spans) != 2 {
		t.Fatalf("expected 2 site spans, got %d: %v", len(spans), spans)
	}
	if spans[0].Marker != 5 || spans[0].Start != 3 || spans[0].End != 9 {
		t.Errorf("unexpected first span: %+v", spans[0])
	}
	if spans[1].Marker != 7 || spans[1].Start != 12 || spans[1].End != 17 {
		t.Errorf("unexpected second span: %+v", spans[1])
	}
}

func TestSiteAlleles(t *testing.T) {
	spans := siteSpans(scenario1PRG())
	prg := scenario1PRG()

	alleles5 := siteAlleles(prg, spans[0])
	if len(alleles5) != 3 {
		t.Fatalf("expected 3 alleles at site 5, got %d", len(alleles5))
	}
	want5 := [][]uint64{{2}, {3}, {4}} // c, g, t
	for i, a := range want5 {
		if !equalU64(alleles5[i], a) {
			t.Errorf("allele %d at site 5 = %v, want %v", i, alleles5[i], a)
		}
	}

	alleles7 := siteAlleles(prg, spans[1])
	if len(alleles7) != 2 {
		t.Fatalf("expected 2 alleles at site 7, got %d", len(alleles7))
	}
	if !equalU64(alleles7[0], []uint64{2, 2}) { // cc
		t.Errorf("allele 0 at site 7 = %v, want [2 2]", alleles7[0])
	}
	if !equalU64(alleles7[1], []uint64{1}) { // a
		t.Errorf("allele 1 at site 7 = %v, want [1]", alleles7[1])
	}
}

func equalU64(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCandidateRegionsCoversBothSites(t *testing.T) {
	prg := scenario1PRG()
	regions := CandidateRegions(prg, 4)
	if len(regions) == 0 {
		t.Fatalf("expected at least one region")
	}
	covered := func(pos int) bool {
		for _, r := range regions {
			if pos >= r.Start && pos <= r.End {
				return true
			}
		}
		return false
	}
	if !covered(3) || !covered(9) {
		t.Errorf("expected site 5's markers to be covered by a region: %v", regions)
	}
	if !covered(12) || !covered(17) {
		t.Errorf("expected site 7's markers to be covered by a region: %v", regions)
	}
}

func TestEnumerateKmersPlainWindowSkipsMarkers(t *testing.T) {
	prg := scenario1PRG()
	idx, err := fmindex.Build(prg)
	if err != nil {
		t.Fatalf("fmindex.Build: %v", err)
	}
	masks, err := fmindex.BuildMasks(prg, idx)
	if err != nil {
		t.Fatalf("fmindex.BuildMasks: %v", err)
	}

	var out []string
	for kmer := range EnumerateKmers(prg, masks, Region{Start: 0, End: len(prg) - 1}, 3) {
		out = append(out, string(kmer))
	}
	if len(out) == 0 {
		t.Fatalf("expected at least one enumerated kmer")
	}
	sort.Strings(out)
	for _, k := range out {
		if len(k) != 3 {
			t.Errorf("kmer %q has unexpected length", k)
		}
	}
}

func TestBuildIndexStoresEveryEnumeratedKmer(t *testing.T) {
	prg := scenario1PRG()
	fmIdx, err := fmindex.Build(prg)
	if err != nil {
		t.Fatalf("fmindex.Build: %v", err)
	}
	masks, err := fmindex.BuildMasks(prg, fmIdx)
	if err != nil {
		t.Fatalf("fmindex.BuildMasks: %v", err)
	}

	kidx, err := BuildIndex(prg, fmIdx, masks, 3, 4, false)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if kidx.Len() == 0 {
		t.Fatalf("expected a non-empty kmer index")
	}

	// "gct" (the literal prefix of the PRG) should have been indexed and
	// should map to at least one search state.
	states, ok := kidx.Lookup([]byte{3, 2, 4})
	if !ok {
		t.Fatalf("expected gct to be indexed")
	}
	if len(states) == 0 {
		t.Errorf("expected gct to map to at least one state")
	}
}

func TestAllKmersModeEnumeratesEveryLengthKString(t *testing.T) {
	count := 0
	for range allDNAKmers(2) {
		count++
	}
	if count != 16 { // 4^2
		t.Errorf("allDNAKmers(2) produced %d kmers, want 16", count)
	}
}
