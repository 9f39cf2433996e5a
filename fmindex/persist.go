package fmindex

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// header precedes every persisted stream: the bit-width needed to hold the
// largest value in the stream, and the element count. The values that
// follow are written as full little-endian 64-bit words; the bit-width is
// recorded in the header but the values are not packed to it.
type header struct {
	BitWidth uint8
	Length   uint64
}

func writeHeader(w io.Writer, maxVal uint64, length int) error {
	bw := uint8(0)
	for v := maxVal; v > 0; v >>= 1 {
		bw++
	}
	h := header{BitWidth: bw, Length: uint64(length)}
	if err := binary.Write(w, binary.LittleEndian, h.BitWidth); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, h.Length)
}

func readHeader(r io.Reader) (header, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h.BitWidth); err != nil {
		return h, err
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Length); err != nil {
		return h, err
	}
	return h, nil
}

func writeUint64Slice(w io.Writer, vals []uint64, maxVal uint64) error {
	if err := writeHeader(w, maxVal, len(vals)); err != nil {
		return err
	}
	for _, v := range vals {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func readUint64Slice(r io.Reader) ([]uint64, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, h.Length)
	for i := range out {
		if err := binary.Read(r, binary.LittleEndian, &out[i]); err != nil {
			return nil, fmt.Errorf("fmindex: reading element %d: %w", i, err)
		}
	}
	return out, nil
}

func writeIntSlice(w io.Writer, vals []int) error {
	var maxVal uint64
	for _, v := range vals {
		if uint64(v) > maxVal {
			maxVal = uint64(v)
		}
	}
	if err := writeHeader(w, maxVal, len(vals)); err != nil {
		return err
	}
	for _, v := range vals {
		if err := binary.Write(w, binary.LittleEndian, int64(v)); err != nil {
			return err
		}
	}
	return nil
}

func readIntSlice(r io.Reader) ([]int, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	out := make([]int, h.Length)
	for i := range out {
		var v int64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, fmt.Errorf("fmindex: reading element %d: %w", i, err)
		}
		out[i] = int(v)
	}
	return out, nil
}

// WriteTo persists the FM-index (Text, SA, BWT) as a zstd-compressed
// stream, the same role zstd plays for the teacher's own big binary dumps
// in constructdbg.go/mapngs.go.
func (idx *Index) WriteTo(w io.Writer) (int64, error) {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return 0, fmt.Errorf("fmindex: opening zstd writer: %w", err)
	}
	defer zw.Close()

	if err := writeUint64Slice(zw, idx.Text, idx.maxText()); err != nil {
		return 0, err
	}
	if err := writeIntSlice(zw, idx.SA); err != nil {
		return 0, err
	}
	if err := writeUint64Slice(zw, idx.BWT, idx.maxText()); err != nil {
		return 0, err
	}
	return 0, zw.Close()
}

func (idx *Index) maxText() uint64 {
	var m uint64
	for _, v := range idx.Text {
		if v > m {
			m = v
		}
	}
	return m
}

// ReadIndexFrom reconstructs an Index from a stream written by WriteTo,
// rebuilding its rank-support structures rather than persisting them.
func ReadIndexFrom(r io.Reader) (*Index, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("fmindex: opening zstd reader: %w", err)
	}
	defer zr.Close()

	text, err := readUint64Slice(zr)
	if err != nil {
		return nil, fmt.Errorf("fmindex: reading text: %w", err)
	}
	sa, err := readIntSlice(zr)
	if err != nil {
		return nil, fmt.Errorf("fmindex: reading suffix array: %w", err)
	}
	bwt, err := readUint64Slice(zr)
	if err != nil {
		return nil, fmt.Errorf("fmindex: reading bwt: %w", err)
	}

	idx := &Index{Text: text, SA: sa, BWT: bwt}
	idx.buildC()
	idx.buildRankSupport()
	return idx, nil
}

// WriteMasks persists sites_mask and allele_mask as zstd-compressed
// streams. The marker bit-vectors are not persisted: they are cheap to
// rebuild from the decoded PRG and Index on load, and keeping them out of
// the on-disk form avoids duplicating PRGMarkers/BWTMarkers state that
// BuildMasks regenerates deterministically.
func WriteMasks(w io.Writer, m *Masks) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("fmindex: opening zstd writer: %w", err)
	}
	defer zw.Close()

	maxSite := maxOf(m.Sites)
	if err := writeUint64Slice(zw, m.Sites, maxSite); err != nil {
		return err
	}
	maxAllele := maxOf(m.Alleles)
	if err := writeUint64Slice(zw, m.Alleles, maxAllele); err != nil {
		return err
	}
	return zw.Close()
}

// ReadMasks reconstructs the Sites/Alleles arrays from a stream written by
// WriteMasks, then rebuilds the marker bit-vectors from prgSymbols/idx.
func ReadMasks(r io.Reader, prgSymbols []uint64, idx *Index) (*Masks, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("fmindex: opening zstd reader: %w", err)
	}
	defer zr.Close()

	sites, err := readUint64Slice(zr)
	if err != nil {
		return nil, fmt.Errorf("fmindex: reading sites mask: %w", err)
	}
	alleles, err := readUint64Slice(zr)
	if err != nil {
		return nil, fmt.Errorf("fmindex: reading allele mask: %w", err)
	}

	m := &Masks{
		PRGMarkers: NewBitvector(len(prgSymbols)),
		BWTMarkers: NewBitvector(len(idx.BWT)),
		Sites:      sites,
		Alleles:    alleles,
	}
	for i, s := range prgSymbols {
		if s >= 5 {
			m.PRGMarkers.Set(i)
		}
	}
	for i, c := range idx.BWT {
		if c >= 5 {
			m.BWTMarkers.Set(i)
		}
	}
	m.PRGMarkers.Build()
	m.BWTMarkers.Build()
	return m, nil
}

func maxOf(vals []uint64) uint64 {
	var m uint64
	for _, v := range vals {
		if v > m {
			m = v
		}
	}
	return m
}
