package kmerindex

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zstd"

	"govbwt/search"
)

// WriteTo persists the kmer index as a small header (the kmer length) plus
// four sequential zstd-compressed sections per spec section 6: a
// prefix-diffed Kmers stream, a Stats stream (state count and path-entry
// count per kmer), a flat SAIntervals stream, and a flat Paths stream.
func (idx *Index) WriteTo(w io.Writer) (int64, error) {
	if err := binary.Write(w, binary.LittleEndian, uint32(idx.K)); err != nil {
		return 0, fmt.Errorf("kmerindex: writing header: %w", err)
	}

	keys := make([]string, 0, len(idx.entries))
	for k := range idx.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if err := writeKmersStream(w, keys); err != nil {
		return 0, fmt.Errorf("kmerindex: writing kmers stream: %w", err)
	}
	if err := writeStatsStream(w, idx, keys); err != nil {
		return 0, fmt.Errorf("kmerindex: writing stats stream: %w", err)
	}
	if err := writeSAIntervalsStream(w, idx, keys); err != nil {
		return 0, fmt.Errorf("kmerindex: writing sa-intervals stream: %w", err)
	}
	if err := writePathsStream(w, idx, keys); err != nil {
		return 0, fmt.Errorf("kmerindex: writing paths stream: %w", err)
	}
	return 0, nil
}

func writeKmersStream(w io.Writer, keys []string) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	defer zw.Close()

	if err := binary.Write(zw, binary.LittleEndian, uint64(len(keys))); err != nil {
		return err
	}

	prev := ""
	for _, k := range keys {
		shared := sharedPrefixLen(prev, k)
		if err := binary.Write(zw, binary.LittleEndian, uint8(shared)); err != nil {
			return err
		}
		suffix := []byte(k[shared:])
		if err := binary.Write(zw, binary.LittleEndian, uint8(len(suffix))); err != nil {
			return err
		}
		if _, err := zw.Write(suffix); err != nil {
			return err
		}
		prev = k
	}
	return zw.Close()
}

func sharedPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func readKmersStream(r io.Reader) ([]string, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var n uint64
	if err := binary.Read(zr, binary.LittleEndian, &n); err != nil {
		return nil, err
	}

	keys := make([]string, n)
	prev := ""
	for i := range keys {
		var shared, suffixLen uint8
		if err := binary.Read(zr, binary.LittleEndian, &shared); err != nil {
			return nil, err
		}
		if err := binary.Read(zr, binary.LittleEndian, &suffixLen); err != nil {
			return nil, err
		}
		suffix := make([]byte, suffixLen)
		if _, err := io.ReadFull(zr, suffix); err != nil {
			return nil, err
		}
		keys[i] = prev[:shared] + string(suffix)
		prev = keys[i]
	}
	return keys, nil
}

func writeStatsStream(w io.Writer, idx *Index, keys []string) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	defer zw.Close()

	for _, k := range keys {
		states := idx.entries[k]
		pathEntries := 0
		for _, s := range states {
			pathEntries += len(s.Path)
		}
		if err := binary.Write(zw, binary.LittleEndian, uint32(len(states))); err != nil {
			return err
		}
		if err := binary.Write(zw, binary.LittleEndian, uint32(pathEntries)); err != nil {
			return err
		}
	}
	return zw.Close()
}

type statEntry struct {
	numStates   uint32
	pathEntries uint32
}

func readStatsStream(r io.Reader, count int) ([]statEntry, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out := make([]statEntry, count)
	for i := range out {
		if err := binary.Read(zr, binary.LittleEndian, &out[i].numStates); err != nil {
			return nil, err
		}
		if err := binary.Read(zr, binary.LittleEndian, &out[i].pathEntries); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeSAIntervalsStream(w io.Writer, idx *Index, keys []string) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	defer zw.Close()

	for _, k := range keys {
		for _, s := range idx.entries[k] {
			if err := binary.Write(zw, binary.LittleEndian, int64(s.Lo)); err != nil {
				return err
			}
			if err := binary.Write(zw, binary.LittleEndian, int64(s.Hi)); err != nil {
				return err
			}
			if err := binary.Write(zw, binary.LittleEndian, int32(s.SiteState)); err != nil {
				return err
			}
			if err := binary.Write(zw, binary.LittleEndian, int32(len(s.Path))); err != nil {
				return err
			}
		}
	}
	return zw.Close()
}

type saInterval struct {
	lo, hi    int
	siteState search.SiteState
	pathLen   int
}

func readSAIntervalsStream(r io.Reader, total int) ([]saInterval, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out := make([]saInterval, total)
	for i := range out {
		var lo, hi int64
		var ss, pl int32
		if err := binary.Read(zr, binary.LittleEndian, &lo); err != nil {
			return nil, err
		}
		if err := binary.Read(zr, binary.LittleEndian, &hi); err != nil {
			return nil, err
		}
		if err := binary.Read(zr, binary.LittleEndian, &ss); err != nil {
			return nil, err
		}
		if err := binary.Read(zr, binary.LittleEndian, &pl); err != nil {
			return nil, err
		}
		out[i] = saInterval{lo: int(lo), hi: int(hi), siteState: search.SiteState(ss), pathLen: int(pl)}
	}
	return out, nil
}

func writePathsStream(w io.Writer, idx *Index, keys []string) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	defer zw.Close()

	for _, k := range keys {
		for _, s := range idx.entries[k] {
			for _, l := range s.Path {
				if err := binary.Write(zw, binary.LittleEndian, l.SiteMarker); err != nil {
					return err
				}
				if err := binary.Write(zw, binary.LittleEndian, l.AlleleID); err != nil {
					return err
				}
			}
		}
	}
	return zw.Close()
}

func readPathsStream(r io.Reader, total int) ([]search.Locus, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out := make([]search.Locus, total)
	for i := range out {
		if err := binary.Read(zr, binary.LittleEndian, &out[i].SiteMarker); err != nil {
			return nil, err
		}
		if err := binary.Read(zr, binary.LittleEndian, &out[i].AlleleID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReadFrom reconstructs a kmer Index from a stream written by WriteTo,
// recovering the kmer length from the header WriteTo wrote.
func ReadFrom(r io.Reader) (*Index, error) {
	var k32 uint32
	if err := binary.Read(r, binary.LittleEndian, &k32); err != nil {
		return nil, fmt.Errorf("kmerindex: reading header: %w", err)
	}
	k := int(k32)

	keys, err := readKmersStream(r)
	if err != nil {
		return nil, fmt.Errorf("kmerindex: reading kmers stream: %w", err)
	}
	stats, err := readStatsStream(r, len(keys))
	if err != nil {
		return nil, fmt.Errorf("kmerindex: reading stats stream: %w", err)
	}

	totalStates, totalPaths := 0, 0
	for _, st := range stats {
		totalStates += int(st.numStates)
		totalPaths += int(st.pathEntries)
	}

	intervals, err := readSAIntervalsStream(r, totalStates)
	if err != nil {
		return nil, fmt.Errorf("kmerindex: reading sa-intervals stream: %w", err)
	}
	loci, err := readPathsStream(r, totalPaths)
	if err != nil {
		return nil, fmt.Errorf("kmerindex: reading paths stream: %w", err)
	}

	idx := &Index{K: k, entries: make(map[string][]search.State, len(keys))}
	intervalPos, lociPos := 0, 0
	for i, key := range keys {
		st := stats[i]
		states := make([]search.State, st.numStates)
		for j := range states {
			iv := intervals[intervalPos]
			intervalPos++
			var path search.Path
			if iv.pathLen > 0 {
				path = append(search.Path(nil), loci[lociPos:lociPos+iv.pathLen]...)
				lociPos += iv.pathLen
			}
			states[j] = search.State{Lo: iv.lo, Hi: iv.hi, SiteState: iv.siteState, Path: path}
		}
		idx.entries[key] = states
	}
	return idx, nil
}
