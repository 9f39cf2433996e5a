package coverage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"
)

// DumpAlleleSum writes counts[site][allele] as a line-oriented integer
// matrix: one line per site, space-separated allele counts in site order.
func (c *Coverage) DumpAlleleSum(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for si := range c.siteOrder {
		row := c.alleleSum[si]
		for a := range row {
			if a > 0 {
				if _, err := bw.WriteString(" "); err != nil {
					return err
				}
			}
			v := atomic.LoadUint64(&row[a])
			if _, err := fmt.Fprintf(bw, "%d", v); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString("\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

type alleleBaseDoc struct {
	AlleleBaseCounts [][][]uint32 `json:"allele_base_counts"`
}

// DumpAlleleBase writes bases[site][allele][base] as
// {"allele_base_counts": [[[...], ...], ...]}.
func (c *Coverage) DumpAlleleBase(w io.Writer) error {
	doc := alleleBaseDoc{AlleleBaseCounts: make([][][]uint32, len(c.siteOrder))}
	for si := range c.siteOrder {
		alleles := make([][]uint32, len(c.alleleBase[si]))
		for a := range c.alleleBase[si] {
			bases := make([]uint32, len(c.alleleBase[si][a]))
			for b := range bases {
				bases[b] = atomic.LoadUint32(&c.alleleBase[si][a][b])
			}
			alleles[a] = bases
		}
		doc.AlleleBaseCounts[si] = alleles
	}
	enc := json.NewEncoder(w)
	return enc.Encode(doc)
}

type groupedDoc struct {
	SiteCounts   map[string]uint64            `json:"site_counts"`
	AlleleGroups map[string]map[string]uint64 `json:"allele_groups"`
}

// DumpGroupedAlleles writes, per site, the total read count and the
// per-allele-set breakdown, as
// {"site_counts": {...}, "allele_groups": {...}}.
func (c *Coverage) DumpGroupedAlleles(w io.Writer) error {
	doc := groupedDoc{
		SiteCounts:   make(map[string]uint64, len(c.siteOrder)),
		AlleleGroups: make(map[string]map[string]uint64, len(c.siteOrder)),
	}

	for si, marker := range c.siteOrder {
		siteKey := fmt.Sprintf("%d", marker)
		groups := make(map[string]uint64)
		var total uint64

		c.grouped[si].Range(func(k, v any) bool {
			key := k.(string)
			count := atomic.LoadUint64(v.(*uint64))
			groups[key] = count
			total += count
			return true
		})

		doc.SiteCounts[siteKey] = total
		doc.AlleleGroups[siteKey] = groups
	}

	enc := json.NewEncoder(w)
	return enc.Encode(doc)
}
