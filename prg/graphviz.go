package prg

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/awalterschulze/gographviz"
)

// WriteGraphviz renders enc as a Graphviz dot graph: a chain of literal-run
// nodes threaded through per-site nodes (one box node per allele,
// fanning out from the site's odd marker and rejoining at its close), in the
// same node/edge/attr-map style as the teacher's GraphvizDBGArr. Useful for
// visually inspecting a PRG's site structure before committing to a build.
func WriteGraphviz(enc Encoded, w io.Writer) error {
	g := gographviz.NewGraph()
	g.SetName("G")
	g.SetDir(true)
	g.SetStrict(false)

	nodeSeq := 0
	newNode := func(label, color string) string {
		name := "n" + strconv.Itoa(nodeSeq)
		nodeSeq++
		attr := map[string]string{
			"shape": "box",
			"color": color,
			"label": "\"" + label + "\"",
		}
		g.AddNode("G", name, attr)
		return name
	}
	edge := func(from, to, label string) {
		attr := map[string]string{}
		if label != "" {
			attr["label"] = "\"" + label + "\""
		}
		g.AddEdge(from, to, true, attr)
	}

	prev := newNode("start", "Black")
	var literal []uint64
	flushLiteral := func() string {
		if len(literal) == 0 {
			return prev
		}
		s, _ := Decode(Encoded{Symbols: literal})
		if len(s) > 20 {
			s = s[:17] + "..."
		}
		n := newNode(s, "Green")
		edge(prev, n, "")
		literal = literal[:0]
		return n
	}

	i := 0
	for i < len(enc.Symbols) {
		s := enc.Symbols[i]
		if !IsSiteMarker(s) {
			literal = append(literal, s)
			i++
			continue
		}
		prev = flushLiteral()

		siteMarker := s
		siteIn := newNode("site "+strconv.Itoa(int(siteMarker)), "Red")
		edge(prev, siteIn, "")
		i++

		siteOut := newNode("/site "+strconv.Itoa(int(siteMarker)), "Red")
		allele := 1
		var run []uint64
		closeAllele := func() {
			label := "allele " + strconv.Itoa(allele)
			if len(run) > 0 {
				sDec, _ := Decode(Encoded{Symbols: run})
				label += ": " + sDec
			}
			an := newNode(label, "Blue")
			edge(siteIn, an, "")
			edge(an, siteOut, "")
			run = run[:0]
			allele++
		}
		for i < len(enc.Symbols) {
			s = enc.Symbols[i]
			if IsSiteMarker(s) && s == siteMarker {
				closeAllele()
				i++
				break
			}
			if IsAlleleMarker(s) {
				closeAllele()
				i++
				continue
			}
			run = append(run, s)
			i++
		}
		prev = siteOut
	}
	flushLiteral()

	_, err := w.Write([]byte(strings.TrimSpace(g.String()) + "\n"))
	if err != nil {
		return fmt.Errorf("prg: write graphviz: %w", err)
	}
	return nil
}
