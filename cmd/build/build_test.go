package build

import (
	"os"
	"path/filepath"
	"testing"

	"govbwt/fmindex"
	"govbwt/kmerindex"
	"govbwt/utils"
)

func TestRunProducesPersistedFiles(t *testing.T) {
	dir := t.TempDir()
	prgFn := filepath.Join(dir, "test.prg")
	if err := os.WriteFile(prgFn, []byte("A5C6G5T"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	prefix := filepath.Join(dir, "out")
	opt := Options{
		ArgsOpt:     utils.ArgsOpt{Prefix: prefix, NumCPU: 1},
		PRGFile:     prgFn,
		KmersSize:   2,
		MaxReadSize: 4,
		AllKmers:    false,
	}

	if err := Run(opt); err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, suffix := range []string{".fmindex", ".masks", ".kmeridx"} {
		if _, err := os.Stat(prefix + suffix); err != nil {
			t.Errorf("expected %s to exist: %v", suffix, err)
		}
	}

	fp, err := os.Open(prefix + ".fmindex")
	if err != nil {
		t.Fatalf("open fmindex: %v", err)
	}
	defer fp.Close()
	idx, err := fmindex.ReadIndexFrom(fp)
	if err != nil {
		t.Fatalf("ReadIndexFrom: %v", err)
	}
	if idx.Size() == 0 {
		t.Errorf("expected a non-empty fm-index")
	}

	kfp, err := os.Open(prefix + ".kmeridx")
	if err != nil {
		t.Fatalf("open kmeridx: %v", err)
	}
	defer kfp.Close()
	kidx, err := kmerindex.ReadFrom(kfp)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if kidx.Len() == 0 {
		t.Errorf("expected a non-empty kmer index")
	}
}

func TestRunWithGraphWritesDotFile(t *testing.T) {
	dir := t.TempDir()
	prgFn := filepath.Join(dir, "test.prg")
	if err := os.WriteFile(prgFn, []byte("A5C6G5T"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	prefix := filepath.Join(dir, "out")
	opt := Options{
		ArgsOpt:     utils.ArgsOpt{Prefix: prefix, NumCPU: 1},
		PRGFile:     prgFn,
		KmersSize:   2,
		MaxReadSize: 4,
		Graph:       true,
	}
	if err := Run(opt); err != nil {
		t.Fatalf("run: %v", err)
	}

	data, err := os.ReadFile(prefix + ".dot")
	if err != nil {
		t.Fatalf("expected %s.dot to exist: %v", prefix, err)
	}
	if len(data) == 0 {
		t.Errorf("expected a non-empty dot file")
	}
}
