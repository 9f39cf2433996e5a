// Package build implements the "build" subcommand: it parses an ASCII PRG,
// constructs the FM-index and its masks, precomputes the kmer index, and
// writes all four as persisted state under the output prefix.
package build

import (
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/jwaldrip/odin/cli"

	"govbwt/fmindex"
	"govbwt/kmerindex"
	"govbwt/prg"
	"govbwt/utils"
)

// Options holds the flags this subcommand reads, global and local.
type Options struct {
	utils.ArgsOpt
	PRGFile     string
	KmersSize   int
	MaxReadSize int
	AllKmers    bool
	Graph       bool
}

func checkArgs(c cli.Command) (opt Options, suc bool) {
	opt.PRGFile = c.Flag("prg").String()
	if opt.PRGFile == "" {
		utils.Fatalf(utils.ExitInvalidArgs, "[checkArgs] argument 'prg' not set\n")
	}

	var ok bool
	opt.KmersSize, ok = c.Flag("K").Get().(int)
	if !ok || opt.KmersSize <= 0 {
		utils.Fatalf(utils.ExitInvalidArgs, "[checkArgs] argument 'K': %v set error\n", c.Flag("K"))
	}
	opt.MaxReadSize, ok = c.Flag("maxReadSize").Get().(int)
	if !ok || opt.MaxReadSize <= 0 {
		utils.Fatalf(utils.ExitInvalidArgs, "[checkArgs] argument 'maxReadSize': %v set error\n", c.Flag("maxReadSize"))
	}
	opt.AllKmers, ok = c.Flag("allKmers").Get().(bool)
	if !ok {
		utils.Fatalf(utils.ExitInvalidArgs, "[checkArgs] argument 'allKmers': %v set error\n", c.Flag("allKmers"))
	}
	opt.Graph, ok = c.Flag("graphviz").Get().(bool)
	if !ok {
		utils.Fatalf(utils.ExitInvalidArgs, "[checkArgs] argument 'graphviz': %v set error\n", c.Flag("graphviz"))
	}
	return opt, true
}

// Build is the entry point odin dispatches "build" to.
func Build(c cli.Command) {
	gOpt, suc := utils.CheckGlobalArgs(c.Parent())
	if !suc {
		utils.Fatalf(utils.ExitInvalidArgs, "[Build] check global arguments error, opt: %v\n", gOpt)
	}
	local, suc := checkArgs(c)
	if !suc {
		utils.Fatalf(utils.ExitInvalidArgs, "[Build] check arguments error, opt: %v\n", local)
	}
	opt := Options{
		ArgsOpt:     gOpt,
		PRGFile:     local.PRGFile,
		KmersSize:   local.KmersSize,
		MaxReadSize: local.MaxReadSize,
		AllKmers:    local.AllKmers,
		Graph:       local.Graph,
	}
	fmt.Printf("[Build] opt: %+v\n", opt)

	profileFn := opt.Prefix + ".build.prof"
	proffp, err := os.Create(profileFn)
	if err != nil {
		utils.Fatalf(utils.ExitIOError, "[Build] open cpuprofile file: %v failed: %v\n", profileFn, err)
	}
	pprof.StartCPUProfile(proffp)
	defer pprof.StopCPUProfile()

	t0 := time.Now()
	if err := Run(opt); err != nil {
		utils.Fatalf(utils.ExitInvariant, "[Build] %v\n", err)
	}
	fmt.Printf("[Build] took %v to run\n", time.Since(t0))
}

// Run executes the build pipeline for opt. It is exported so tests (and
// potential future callers outside the CLI) can drive it without an odin
// cli.Command.
func Run(opt Options) error {
	prgfp, err := os.Open(opt.PRGFile)
	if err != nil {
		utils.Fatalf(utils.ExitIOError, "[Build] open prg file: %v\n", err)
	}
	defer prgfp.Close()

	enc, err := prg.Encode(prgfp)
	if err != nil {
		utils.Fatalf(utils.ExitIOError, "[Build] encode: %v\n", err)
	}
	if err := prg.ValidateSiteMarkers(enc); err != nil {
		utils.Fatalf(utils.ExitIOError, "[Build] malformed PRG: %v\n", err)
	}
	fmt.Printf("[Build] encoded %d symbols (max symbol %d)\n", len(enc.Symbols), enc.MaxAlphabetNum)

	if opt.Graph {
		if err := writeGraphvizFile(opt.Prefix, enc); err != nil {
			return fmt.Errorf("writeGraphvizFile: %w", err)
		}
	}

	idx, err := fmindex.Build(enc.Symbols)
	if err != nil {
		return fmt.Errorf("fmindex.Build: %w", err)
	}
	masks, err := fmindex.BuildMasks(enc.Symbols, idx)
	if err != nil {
		return fmt.Errorf("fmindex.BuildMasks: %w", err)
	}
	if n := masks.NumMarkers(); n > 0 {
		fmt.Printf("[Build] %d variant-site markers, first at PRG position %d\n", n, masks.NthMarkerPRGPosition(1))
	}

	kidx, err := kmerindex.BuildIndex(enc.Symbols, idx, masks, opt.KmersSize, opt.MaxReadSize, opt.AllKmers)
	if err != nil {
		return fmt.Errorf("kmerindex.BuildIndex: %w", err)
	}
	fmt.Printf("[Build] indexed %d kmers\n", kidx.Len())

	if err := writePersisted(opt.Prefix, enc, idx, masks, kidx); err != nil {
		return fmt.Errorf("writePersisted: %w", err)
	}
	return nil
}

func writeGraphvizFile(prefix string, enc prg.Encoded) error {
	gfp, err := os.Create(prefix + ".dot")
	if err != nil {
		return err
	}
	defer gfp.Close()
	if err := prg.WriteGraphviz(enc, gfp); err != nil {
		return fmt.Errorf("write graphviz: %w", err)
	}
	fmt.Printf("[Build] wrote %s.dot\n", prefix)
	return nil
}

func writePersisted(prefix string, enc prg.Encoded, idx *fmindex.Index, masks *fmindex.Masks, kidx *kmerindex.Index) error {
	idxfp, err := os.Create(prefix + ".fmindex")
	if err != nil {
		return err
	}
	defer idxfp.Close()
	if _, err := idx.WriteTo(idxfp); err != nil {
		return fmt.Errorf("write fmindex: %w", err)
	}

	masksfp, err := os.Create(prefix + ".masks")
	if err != nil {
		return err
	}
	defer masksfp.Close()
	if err := fmindex.WriteMasks(masksfp, masks); err != nil {
		return fmt.Errorf("write masks: %w", err)
	}

	kidxfp, err := os.Create(prefix + ".kmeridx")
	if err != nil {
		return err
	}
	defer kidxfp.Close()
	if _, err := kidx.WriteTo(kidxfp); err != nil {
		return fmt.Errorf("write kmer index: %w", err)
	}

	return nil
}
