// Package community holds the three tables of a symbiont community study
// (sample metadata, taxonomy and the abundance matrix) and the pure
// transformations over them: filtering, normalization and aggregation. None
// of the functions in this package mutate their inputs.
package community

import (
	"math"

	"github.com/reefgenomics/symbiomisc"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Scale records what the values of a Matrix represent.
type Scale int

const (
	Counts Scale = iota
	Relative
	SqrtRelative
)

func (s Scale) String() string {
	switch s {
	case Counts:
		return "counts"
	case Relative:
		return "relative"
	case SqrtRelative:
		return "sqrt-relative"
	}
	return "unknown"
}

// Matrix maps (sample, taxon) to a non-negative abundance. Rows are samples
// and columns are taxa (or groups, after aggregation). Zero-row and
// zero-column matrices are valid values.
type Matrix struct {
	Samples []string
	Taxa    []string
	Scale   Scale

	// row-major, len(Samples)*len(Taxa)
	data []float64
}

// NewMatrix builds a matrix from row-major data. Sample and taxon names must
// be unique and every value must be a finite, non-negative number.
func NewMatrix(samples, taxa []string, data []float64, scale Scale) (Matrix, error) {
	if len(data) != len(samples)*len(taxa) {
		return Matrix{}, symbiomisc.Malformed("", "%d values for %d samples x %d taxa", len(data), len(samples), len(taxa))
	}

	if dup := firstDuplicate(samples); dup != "" {
		return Matrix{}, symbiomisc.Malformed("", "duplicate sample identifier %q", dup)
	}
	if dup := firstDuplicate(taxa); dup != "" {
		return Matrix{}, symbiomisc.Malformed("", "duplicate taxon %q", dup)
	}

	for k, v := range data {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Matrix{}, symbiomisc.Malformed("", "invalid abundance %v for sample %q taxon %q", v, samples[k/len(taxa)], taxa[k%len(taxa)])
		}
	}

	return Matrix{
		Samples: append([]string(nil), samples...),
		Taxa:    append([]string(nil), taxa...),
		Scale:   scale,
		data:    append([]float64(nil), data...),
	}, nil
}

// MustMatrix is NewMatrix for literal tables in tests and examples.
func MustMatrix(samples, taxa []string, rows [][]float64, scale Scale) Matrix {
	data := make([]float64, 0, len(samples)*len(taxa))
	for _, row := range rows {
		data = append(data, row...)
	}

	m, err := NewMatrix(samples, taxa, data, scale)
	if err != nil {
		panic(err)
	}

	return m
}

func firstDuplicate(names []string) string {
	seen := make(map[string]struct{}, len(names))
	for _, v := range names {
		if _, exists := seen[v]; exists {
			return v
		}
		seen[v] = struct{}{}
	}
	return ""
}

func (m Matrix) Rows() int { return len(m.Samples) }
func (m Matrix) Cols() int { return len(m.Taxa) }

func (m Matrix) At(i, j int) float64 {
	return m.data[i*len(m.Taxa)+j]
}

// Row returns a copy of the i-th sample's abundances.
func (m Matrix) Row(i int) []float64 {
	out := make([]float64, len(m.Taxa))
	copy(out, m.data[i*len(m.Taxa):(i+1)*len(m.Taxa)])
	return out
}

func (m Matrix) RowSum(i int) float64 {
	return floats.Sum(m.data[i*len(m.Taxa) : (i+1)*len(m.Taxa)])
}

func (m Matrix) ColSum(j int) float64 {
	sum := 0.0
	for i := range m.Samples {
		sum += m.At(i, j)
	}
	return sum
}

// Value returns the abundance of taxon in sample, and false if either is
// absent from the matrix.
func (m Matrix) Value(sample, taxon string) (float64, bool) {
	i, ok := m.SampleIndex(sample)
	if !ok {
		return 0, false
	}
	j, ok := m.TaxonIndex(taxon)
	if !ok {
		return 0, false
	}
	return m.At(i, j), true
}

func (m Matrix) SampleIndex(id string) (int, bool) {
	for i, v := range m.Samples {
		if v == id {
			return i, true
		}
	}
	return -1, false
}

func (m Matrix) TaxonIndex(name string) (int, bool) {
	for j, v := range m.Taxa {
		if v == name {
			return j, true
		}
	}
	return -1, false
}

// Dense copies the matrix into a gonum Dense. It returns nil for empty
// matrices, which gonum cannot represent.
func (m Matrix) Dense() *mat.Dense {
	if m.Rows() == 0 || m.Cols() == 0 {
		return nil
	}
	return mat.NewDense(m.Rows(), m.Cols(), append([]float64(nil), m.data...))
}

// subset returns the rows and columns named by index, in the given order.
func (m Matrix) subset(rows, cols []int) Matrix {
	out := Matrix{
		Samples: make([]string, 0, len(rows)),
		Taxa:    make([]string, 0, len(cols)),
		Scale:   m.Scale,
		data:    make([]float64, 0, len(rows)*len(cols)),
	}

	for _, j := range cols {
		out.Taxa = append(out.Taxa, m.Taxa[j])
	}
	for _, i := range rows {
		out.Samples = append(out.Samples, m.Samples[i])
		for _, j := range cols {
			out.data = append(out.data, m.At(i, j))
		}
	}

	return out
}

// mapValues returns a copy of m with f applied to every value.
func (m Matrix) mapValues(scale Scale, f func(i, j int, v float64) float64) Matrix {
	out := Matrix{
		Samples: append([]string(nil), m.Samples...),
		Taxa:    append([]string(nil), m.Taxa...),
		Scale:   scale,
		data:    make([]float64, len(m.data)),
	}

	for k, v := range m.data {
		out.data[k] = f(k/len(m.Taxa), k%len(m.Taxa), v)
	}

	return out
}

// SelectSamples keeps the named samples, in the order given. Unknown
// identifiers are ignored.
func (m Matrix) SelectSamples(ids []string) Matrix {
	rows := make([]int, 0, len(ids))
	for _, id := range ids {
		if i, ok := m.SampleIndex(id); ok {
			rows = append(rows, i)
		}
	}
	return m.subset(rows, seq(m.Cols()))
}

// SelectTaxa keeps the named taxa, in the order given. Unknown names are
// ignored.
func (m Matrix) SelectTaxa(names []string) Matrix {
	cols := make([]int, 0, len(names))
	for _, name := range names {
		if j, ok := m.TaxonIndex(name); ok {
			cols = append(cols, j)
		}
	}
	return m.subset(seq(m.Rows()), cols)
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
