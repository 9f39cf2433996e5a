package main

import (
	"github.com/jwaldrip/odin/cli"

	"govbwt/cmd/build"
	"govbwt/cmd/quasimap"
)

const defaultKmerSize = 15

var app = cli.New("1.0.0", "vBWT search engine over a population reference graph", func(c cli.Command) {})

func init() {
	app.DefineStringFlag("p", "./vbwt", "prefix of the persisted build output / quasimap input")
	app.DefineIntFlag("t", 1, "number of worker threads")

	buildCmd := app.DefineSubCommand("build", "encode a PRG and precompute its FM-index, masks, and kmer index", build.Build)
	{
		buildCmd.DefineStringFlag("prg", "", "ASCII PRG input file")
		buildCmd.DefineIntFlag("K", defaultKmerSize, "kmer index kmer length")
		buildCmd.DefineIntFlag("maxReadSize", 150, "maximum read length the kmer index must stay reachable for")
		buildCmd.DefineBoolFlag("allKmers", false, "ignore the PRG and index every length-K DNA string")
		buildCmd.DefineBoolFlag("graphviz", false, "also write <prefix>.dot, a Graphviz rendering of the PRG's site structure")
	}

	quasimapCmd := app.DefineSubCommand("quasimap", "map reads against a built PRG and record coverage", quasimap.Quasimap)
	{
		quasimapCmd.DefineStringFlag("reads", "", "FASTA/FASTQ reads file")
		quasimapCmd.DefineIntFlag("seed", 0, "random seed (reserved for reproducible tie-breaking)")
		quasimapCmd.DefineStringFlag("o", "", "output prefix for the three coverage dumps (defaults to -p's prefix)")
		quasimapCmd.DefineBoolFlag("v", false, "log per-read SearchStats (states considered/pruned) at verbose level")
	}
}

func main() {
	app.Start()
}
