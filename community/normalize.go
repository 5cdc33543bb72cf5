package community

import "math"

// DefaultFloor is the relative abundance below which a taxon is treated as
// absent from a sample.
const DefaultFloor = 0.001

// ToRelativeAbundance divides each row by its sum. Rows that sum to zero
// should have been removed upstream; if not, they stay all-zero rather than
// becoming NaN.
func ToRelativeAbundance(m Matrix) Matrix {
	sums := make([]float64, m.Rows())
	for i := range sums {
		sums[i] = m.RowSum(i)
	}

	return m.mapValues(Relative, func(i, _ int, v float64) float64 {
		if sums[i] == 0 {
			return 0
		}
		return v / sums[i]
	})
}

// ApplyFloor zeroes every value below threshold and then prunes taxa that are
// left with no abundance. Rows are not renormalized.
func ApplyFloor(m Matrix, threshold float64) Matrix {
	floored := m.mapValues(m.Scale, func(_, _ int, v float64) float64 {
		if v < threshold {
			return 0
		}
		return v
	})

	return PruneEmptyTaxa(floored)
}

// VarianceStabilize takes the elementwise square root of a relative abundance
// matrix. It prepares data for distance computation only; dominance detection
// refuses the result.
func VarianceStabilize(m Matrix) Matrix {
	return m.mapValues(SqrtRelative, func(_, _ int, v float64) float64 {
		return math.Sqrt(v)
	})
}
