// Package ordination computes sample dissimilarities and low-dimensional
// embeddings of them, and compares distances within and between colonies.
package ordination

import (
	"fmt"
	"math"

	"github.com/reefgenomics/symbiomisc"
	"github.com/reefgenomics/symbiomisc/community"
	"gonum.org/v1/gonum/mat"
)

type Metric int

const (
	MetricBray Metric = iota
)

func (m Metric) String() string {
	switch m {
	case MetricBray:
		return "bray"
	}
	return "unknown"
}

// ParseMetric accepts the names used in run configurations.
func ParseMetric(name string) (Metric, error) {
	switch name {
	case "bray", "braycurtis", "bray-curtis", "":
		return MetricBray, nil
	}
	return 0, fmt.Errorf("unknown dissimilarity metric %q", name)
}

// BrayCurtis returns sum(|a_i - b_i|) / sum(a_i + b_i), or 0 when both
// vectors sum to zero. Inputs are assumed non-negative and of equal length.
func BrayCurtis(a, b []float64) float64 {
	num, den := 0.0, 0.0
	for i := range a {
		num += math.Abs(a[i] - b[i])
		den += a[i] + b[i]
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// Dissimilarity is a symmetric, zero-diagonal matrix of distances between
// labelled samples.
type Dissimilarity struct {
	Labels []string
	*mat.SymDense
}

// N is the number of samples. The zero Dissimilarity has none.
func (d Dissimilarity) N() int {
	return len(d.Labels)
}

func (d Dissimilarity) Index(label string) (int, bool) {
	for i, v := range d.Labels {
		if v == label {
			return i, true
		}
	}
	return -1, false
}

// Distance computes all pairwise dissimilarities between the rows of m.
func Distance(m community.Matrix, metric Metric) (Dissimilarity, error) {
	if metric != MetricBray {
		return Dissimilarity{}, fmt.Errorf("unsupported metric %s", metric)
	}

	n := m.Rows()
	if n == 0 {
		return Dissimilarity{}, &symbiomisc.EmptyDatasetError{Analysis: "distance", Have: 0, Need: 1}
	}

	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = m.Row(i)
	}

	out := Dissimilarity{
		Labels:   append([]string(nil), m.Samples...),
		SymDense: mat.NewSymDense(n, nil),
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out.SetSym(i, j, BrayCurtis(rows[i], rows[j]))
		}
	}

	return out, nil
}

// Subset returns the dissimilarities among the named samples, in the order
// given. Unknown labels are ignored.
func (d Dissimilarity) Subset(labels []string) Dissimilarity {
	idx := make([]int, 0, len(labels))
	for _, v := range labels {
		if i, ok := d.Index(v); ok {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return Dissimilarity{}
	}

	out := Dissimilarity{
		Labels:   make([]string, len(idx)),
		SymDense: mat.NewSymDense(len(idx), nil),
	}
	for a, i := range idx {
		out.Labels[a] = d.Labels[i]
		for b := a + 1; b < len(idx); b++ {
			out.SetSym(a, b, d.At(i, idx[b]))
		}
	}

	return out
}
