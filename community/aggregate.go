package community

import (
	"sort"

	"github.com/reefgenomics/symbiomisc"
)

// AggregateByGroup sums the taxon columns that share a clade. Group columns are
// sorted by label. Each sample's total is conserved. Every taxon in m must
// have a clade in t.
func AggregateByGroup(m Matrix, t Taxonomy) (Matrix, error) {
	groupOf := make([]string, m.Cols())
	seen := make(map[string]struct{})
	for j, taxon := range m.Taxa {
		g, ok := t.Clade(taxon)
		if !ok {
			return Matrix{}, symbiomisc.Malformed("", "taxon %q has no clade", taxon)
		}
		groupOf[j] = g
		seen[g] = struct{}{}
	}

	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	col := make(map[string]int, len(groups))
	for k, g := range groups {
		col[g] = k
	}

	out := Matrix{
		Samples: append([]string(nil), m.Samples...),
		Taxa:    groups,
		Scale:   m.Scale,
		data:    make([]float64, m.Rows()*len(groups)),
	}

	for i := range m.Samples {
		for j := range m.Taxa {
			out.data[i*len(groups)+col[groupOf[j]]] += m.At(i, j)
		}
	}

	return out, nil
}

// LongRecord is one cell of a matrix in long layout.
type LongRecord struct {
	SampleID  string  `csv:"sample"`
	Group     string  `csv:"group"`
	Abundance float64 `csv:"abundance"`
}

// ToLong emits one record per sample x column, zeros included, in row-major
// order. A matrix with no columns has no long representation of its samples,
// so the bijection with FromLong holds for matrices with at least one column.
func ToLong(m Matrix) []LongRecord {
	out := make([]LongRecord, 0, m.Rows()*m.Cols())
	for i, s := range m.Samples {
		for j, g := range m.Taxa {
			out = append(out, LongRecord{SampleID: s, Group: g, Abundance: m.At(i, j)})
		}
	}
	return out
}

// FromLong rebuilds the wide matrix. Samples and groups keep their order of
// first appearance. Every sample x group cell must occur exactly once.
func FromLong(records []LongRecord, scale Scale) (Matrix, error) {
	sampleIdx := make(map[string]int)
	groupIdx := make(map[string]int)
	var samples, groups []string

	for _, r := range records {
		if _, ok := sampleIdx[r.SampleID]; !ok {
			sampleIdx[r.SampleID] = len(samples)
			samples = append(samples, r.SampleID)
		}
		if _, ok := groupIdx[r.Group]; !ok {
			groupIdx[r.Group] = len(groups)
			groups = append(groups, r.Group)
		}
	}

	if len(records) != len(samples)*len(groups) {
		return Matrix{}, symbiomisc.Malformed("", "long table has %d records for %d samples x %d groups", len(records), len(samples), len(groups))
	}

	data := make([]float64, len(records))
	filled := make([]bool, len(records))
	for _, r := range records {
		k := sampleIdx[r.SampleID]*len(groups) + groupIdx[r.Group]
		if filled[k] {
			return Matrix{}, symbiomisc.Malformed("", "duplicate long record for sample %q group %q", r.SampleID, r.Group)
		}
		filled[k] = true
		data[k] = r.Abundance
	}

	return NewMatrix(samples, groups, data, scale)
}
