// Package quasimap implements the "quasimap" subcommand: it loads the
// persisted PRG state a prior build produced, maps a FASTA/FASTQ read set
// against it over a worker pool, and writes the three coverage outputs.
package quasimap

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/jwaldrip/odin/cli"

	"govbwt/coverage"
	"govbwt/fmindex"
	"govbwt/kmerindex"
	"govbwt/search"
	"govbwt/utils"
)

// Options holds the flags this subcommand reads, global and local.
type Options struct {
	utils.ArgsOpt
	ReadsFile string
	Seed      int64
	OutPrefix string // coverage dump prefix; defaults to ArgsOpt.Prefix when empty
	Verbose   bool
}

func checkArgs(c cli.Command) (opt Options, suc bool) {
	opt.ReadsFile = c.Flag("reads").String()
	if opt.ReadsFile == "" {
		utils.Fatalf(utils.ExitInvalidArgs, "[checkArgs] argument 'reads' not set\n")
	}
	seed, ok := c.Flag("seed").Get().(int)
	if !ok {
		utils.Fatalf(utils.ExitInvalidArgs, "[checkArgs] argument 'seed': %v set error\n", c.Flag("seed"))
	}
	opt.Seed = int64(seed)
	opt.OutPrefix = c.Flag("o").String()
	opt.Verbose, ok = c.Flag("v").Get().(bool)
	if !ok {
		utils.Fatalf(utils.ExitInvalidArgs, "[checkArgs] argument 'v': %v set error\n", c.Flag("v"))
	}
	return opt, true
}

// Quasimap is the entry point odin dispatches "quasimap" to.
func Quasimap(c cli.Command) {
	gOpt, suc := utils.CheckGlobalArgs(c.Parent())
	if !suc {
		utils.Fatalf(utils.ExitInvalidArgs, "[Quasimap] check global arguments error, opt: %v\n", gOpt)
	}
	local, suc := checkArgs(c)
	if !suc {
		utils.Fatalf(utils.ExitInvalidArgs, "[Quasimap] check arguments error, opt: %v\n", local)
	}
	opt := Options{
		ArgsOpt:   gOpt,
		ReadsFile: local.ReadsFile,
		Seed:      local.Seed,
		OutPrefix: local.OutPrefix,
		Verbose:   local.Verbose,
	}
	fmt.Printf("[Quasimap] opt: %+v\n", opt)

	t0 := time.Now()
	if err := Run(opt); err != nil {
		utils.Fatalf(utils.ExitIOError, "[Quasimap] %v\n", err)
	}
	fmt.Printf("[Quasimap] took %v to run\n", time.Since(t0))
}

// Run executes the quasimap pipeline for opt. Exported for the same reason
// as build.Run: it lets tests drive the pipeline without an odin cli.Command.
func Run(opt Options) error {
	idx, masks, kidx, err := loadPersisted(opt.Prefix)
	if err != nil {
		return fmt.Errorf("loadPersisted: %w", err)
	}
	prgSymbols := idx.Text[:len(idx.Text)-1] // strip the FM-index terminator

	cov := coverage.New(prgSymbols)

	concurrentNum := opt.NumCPU
	if concurrentNum <= 0 {
		concurrentNum = runtime.NumCPU()
	}
	rc := make(chan []byte, concurrentNum*4)

	var wg sync.WaitGroup
	var mapped, unmappable uint64
	var mu sync.Mutex
	for i := 0; i < concurrentNum; i++ {
		wg.Add(1)
		go mapWorker(rc, kidx.K, kidx, idx, masks, cov, opt.Verbose, &wg, &mu, &mapped, &unmappable)
	}

	if err := readRecords(opt.ReadsFile, rc); err != nil {
		close(rc)
		wg.Wait()
		return fmt.Errorf("readRecords: %w", err)
	}
	close(rc)
	wg.Wait()

	fmt.Printf("[Quasimap] mapped %d reads, %d unmappable\n", mapped, unmappable)

	outPrefix := opt.OutPrefix
	if outPrefix == "" {
		outPrefix = opt.Prefix
	}
	return dumpCoverage(outPrefix, cov)
}

func loadPersisted(prefix string) (*fmindex.Index, *fmindex.Masks, *kmerindex.Index, error) {
	idxfp, err := os.Open(prefix + ".fmindex")
	if err != nil {
		return nil, nil, nil, err
	}
	defer idxfp.Close()
	idx, err := fmindex.ReadIndexFrom(idxfp)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read fmindex: %w", err)
	}

	masksfp, err := os.Open(prefix + ".masks")
	if err != nil {
		return nil, nil, nil, err
	}
	defer masksfp.Close()
	masks, err := fmindex.ReadMasks(masksfp, idx.Text[:len(idx.Text)-1], idx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read masks: %w", err)
	}

	kidxfp, err := os.Open(prefix + ".kmeridx")
	if err != nil {
		return nil, nil, nil, err
	}
	defer kidxfp.Close()
	kidx, err := kmerindex.ReadFrom(kidxfp)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read kmer index: %w", err)
	}

	return idx, masks, kidx, nil
}

// mapWorker consumes reads from rc, maps each one, and records it into cov.
// A per-read panic is recovered and counted as unmappable rather than
// terminating the batch, per the isolation policy in spec section 7.
func mapWorker(rc <-chan []byte, k int, lookup search.Lookup, idx *fmindex.Index, masks *fmindex.Masks, cov *coverage.Coverage, verbose bool, wg *sync.WaitGroup, mu *sync.Mutex, mapped, unmappable *uint64) {
	defer wg.Done()
	for read := range rc {
		mapOneRead(read, k, lookup, idx, masks, cov, verbose, mu, mapped, unmappable)
	}
}

func mapOneRead(read []byte, k int, lookup search.Lookup, idx *fmindex.Index, masks *fmindex.Masks, cov *coverage.Coverage, verbose bool, mu *sync.Mutex, mapped, unmappable *uint64) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[mapOneRead] recovered from panic: %v\n", r)
			mu.Lock()
			*unmappable++
			mu.Unlock()
		}
	}()

	if len(read) < k {
		mu.Lock()
		*unmappable++
		mu.Unlock()
		return
	}

	var states []search.State
	if verbose {
		var stats search.SearchStats
		states, stats = search.MapReadWithStats(read, k, lookup, idx, masks)
		log.Printf("[mapOneRead] states considered=%d pruned=%d\n", stats.StatesConsidered, stats.StatesPruned)
	} else {
		states = search.MapRead(read, k, lookup, idx, masks)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) == 0 {
		*unmappable++
		return
	}
	*mapped++
	cov.RecordAlleleSum(states)
	cov.RecordGroupedAlleles(states)
	cov.RecordAlleleBase(states, len(read), idx, masks)
}

// readRecords parses the reads file, dispatching each record's sequence
// (re-encoded to the {1,2,3,4} alphabet) onto rc. FASTA is decoded with
// biogo; FASTQ with a plain four-line scanner, since biogo's own fastq
// reader is not part of this module's dependency set.
func readRecords(fn string, rc chan<- []byte) error {
	fp, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer fp.Close()

	lower := strings.ToLower(fn)
	switch {
	case strings.HasSuffix(lower, ".fq"), strings.HasSuffix(lower, ".fastq"):
		return readFastq(fp, rc)
	default:
		return readFasta(fp, rc)
	}
}

func readFasta(r io.Reader, rc chan<- []byte) error {
	fafp := fasta.NewReader(r, linear.NewSeq("", nil, alphabet.DNA))
	for {
		s, err := fafp.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("fasta read: %w", err)
		}
		l := s.(*linear.Seq)
		letters := make([]byte, len(l.Seq))
		for i, v := range l.Seq {
			letters[i] = byte(v)
		}
		if seq, ok := encodeRead(letters); ok {
			rc <- seq
		}
	}
}

func readFastq(r io.Reader, rc chan<- []byte) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		if line%4 == 1 {
			if seq, ok := encodeRead([]byte(sc.Text())); ok {
				rc <- seq
			}
		}
		line++
	}
	return sc.Err()
}

func encodeRead(letters []byte) ([]byte, bool) {
	out := make([]byte, len(letters))
	for i, l := range letters {
		switch l {
		case 'A', 'a':
			out[i] = 1
		case 'C', 'c':
			out[i] = 2
		case 'G', 'g':
			out[i] = 3
		case 'T', 't':
			out[i] = 4
		default:
			return nil, false // UnmappableRead: non-ACGT base
		}
	}
	return out, true
}

func dumpCoverage(prefix string, cov *coverage.Coverage) error {
	sumfp, err := os.Create(prefix + ".allele_sum")
	if err != nil {
		return err
	}
	defer sumfp.Close()
	if err := cov.DumpAlleleSum(sumfp); err != nil {
		return fmt.Errorf("DumpAlleleSum: %w", err)
	}

	basefp, err := os.Create(prefix + ".allele_base.json")
	if err != nil {
		return err
	}
	defer basefp.Close()
	if err := cov.DumpAlleleBase(basefp); err != nil {
		return fmt.Errorf("DumpAlleleBase: %w", err)
	}

	groupedfp, err := os.Create(prefix + ".grouped_alleles.json")
	if err != nil {
		return err
	}
	defer groupedfp.Close()
	if err := cov.DumpGroupedAlleles(groupedfp); err != nil {
		return fmt.Errorf("DumpGroupedAlleles: %w", err)
	}

	fmt.Printf("[dumpCoverage] wrote %s.{allele_sum,allele_base.json,grouped_alleles.json}\n", filepath.Base(prefix))
	return nil
}
