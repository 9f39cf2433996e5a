package cuckoofilter

import "testing"

func TestInsertThenLookup(t *testing.T) {
	f := New(1000)
	items := [][]byte{[]byte("ACGT"), []byte("TTTT"), []byte("GGCC")}
	for _, it := range items {
		if !f.Insert(it) {
			t.Fatalf("Insert(%q) failed unexpectedly on a fresh filter", it)
		}
	}
	for _, it := range items {
		if !f.Lookup(it) {
			t.Errorf("Lookup(%q) = false, want true after insert", it)
		}
	}
}

func TestLookupMissOnEmptyFilter(t *testing.T) {
	f := New(1000)
	if f.Lookup([]byte("ACGT")) {
		t.Errorf("Lookup on empty filter returned true, want false")
	}
}

func TestManyInsertsKeepLookupTrue(t *testing.T) {
	f := New(4096)
	var keys [][]byte
	for i := 0; i < 2000; i++ {
		k := []byte{byte(i), byte(i >> 8), byte(i >> 16)}
		keys = append(keys, k)
		f.Insert(k)
	}
	for _, k := range keys {
		if !f.Lookup(k) {
			t.Errorf("Lookup(%v) = false after insert", k)
		}
	}
}
