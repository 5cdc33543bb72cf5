package community

import (
	"sort"

	"github.com/carbocation/runningvariance"
)

// TaxonSummary describes one column of a matrix across samples.
type TaxonSummary struct {
	Taxon      string  `csv:"taxon"`
	Mean       float64 `csv:"mean"`
	SD         float64 `csv:"sd"`
	Max        float64 `csv:"max"`
	Prevalence int     `csv:"prevalence"` // samples with a non-zero value
	N          int     `csv:"n"`
}

// Describe summarizes every taxon of m, most abundant (by mean) first, ties
// broken by name.
func Describe(m Matrix) []TaxonSummary {
	out := make([]TaxonSummary, 0, m.Cols())

	for j, taxon := range m.Taxa {
		rs := runningvariance.NewRunningStat()
		summary := TaxonSummary{Taxon: taxon, N: m.Rows()}

		for i := range m.Samples {
			v := m.At(i, j)
			rs.Push(v)
			if v > 0 {
				summary.Prevalence++
			}
			if v > summary.Max {
				summary.Max = v
			}
		}

		if m.Rows() > 0 {
			summary.Mean = rs.Mean()
		}
		if m.Rows() > 1 {
			summary.SD = rs.StandardDeviation()
		}

		out = append(out, summary)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Mean != out[j].Mean {
			return out[i].Mean > out[j].Mean
		}
		return out[i].Taxon < out[j].Taxon
	})

	return out
}
