package utils

import (
	"testing"
)

func TestByteArrInt(t *testing.T) {
	d, err := ByteArrInt([]byte("12345"))
	if err != nil {
		t.Fatalf("ByteArrInt: %v", err)
	}
	if d != 12345 {
		t.Errorf("ByteArrInt(12345) = %d, want 12345", d)
	}
}

func TestByteArrIntRejectsNonDigit(t *testing.T) {
	if _, err := ByteArrInt([]byte("12a45")); err == nil {
		t.Errorf("expected an error for a non-digit byte")
	}
}

func TestBytesEqual(t *testing.T) {
	a := []byte("Hello Gopher!")
	b := []byte("Hello Gopher!")
	if !BytesEqual(a, b) {
		t.Errorf("expected equal byte slices to compare equal")
	}
	if BytesEqual(a, []byte("Hello gopher!")) {
		t.Errorf("expected differing byte slices to compare unequal")
	}
}

func TestMaxMinInt(t *testing.T) {
	if MaxInt(3, 5) != 5 || MaxInt(5, 3) != 5 {
		t.Errorf("MaxInt incorrect")
	}
	if MinInt(3, 5) != 3 || MinInt(5, 3) != 3 {
		t.Errorf("MinInt incorrect")
	}
}

func Benchmark_Bytes2String(b *testing.B) {
	x := []byte("Hello Gopher! Hello Gopher! Hello Gopher!")
	for i := 0; i < b.N; i++ {
		_ = Bytes2String(x)
	}
}

func Benchmark_BytesEqual(b *testing.B) {
	x := []byte("Gopher!HelloGopher!HelloGopher!Gopher!HelloGopher!HelloGopher!")
	y := []byte("Gopher!HelloGopher!HelloGopher!Gopher!HelloGopher!HelloGopher!")
	for i := 0; i < b.N; i++ {
		BytesEqual(x, y)
	}
}

func Benchmark_ByteArrInt(b *testing.B) {
	x := []byte("5432786379334")
	for i := 0; i < b.N; i++ {
		ByteArrInt(x)
	}
}
