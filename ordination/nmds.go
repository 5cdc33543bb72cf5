package ordination

import (
	"math"
	"math/rand"
	"sort"

	"github.com/reefgenomics/symbiomisc"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// NMDSOptions controls the nonmetric multidimensional scaling. The same
// options, seed and input always produce the same embedding.
type NMDSOptions struct {
	Dims      int     `json:"dims"`
	Seed      int64   `json:"seed"`
	Restarts  int     `json:"restarts"`
	MaxIter   int     `json:"max_iter"`
	Tolerance float64 `json:"tolerance"`

	// Final Kruskal stress-1 above which the result is low confidence
	StressLimit float64 `json:"stress_limit"`
}

func DefaultNMDSOptions() NMDSOptions {
	return NMDSOptions{
		Dims:        2,
		Seed:        1,
		Restarts:    20,
		MaxIter:     200,
		Tolerance:   1e-7,
		StressLimit: 0.2,
	}
}

// Embedding is an ordination of labelled samples. Coords has one row per
// label and one column per dimension, centred and rotated to principal axes.
type Embedding struct {
	Labels []string
	Coords *mat.Dense

	Stress     float64
	Iterations int

	// Which start produced the result; 0 is the classical scaling start
	Start int

	LowConfidence bool
}

// Point returns the coordinates of the i-th sample.
func (e Embedding) Point(i int) []float64 {
	return mat.Row(nil, i, e.Coords)
}

// Ordinate embeds the samples of d in opts.Dims dimensions by minimizing
// Kruskal's stress-1 between the embedded distances and a monotone regression
// of them on the dissimilarities (SMACOF majorization). The first start is
// classical scaling; the remaining Restarts-1 starts are random configurations
// drawn from a generator seeded with opts.Seed. The lowest stress wins.
//
// If the winning stress exceeds opts.StressLimit, the embedding is returned
// together with a *symbiomisc.ConvergenceWarning and LowConfidence set.
func Ordinate(d Dissimilarity, opts NMDSOptions) (Embedding, error) {
	if opts.Dims < 1 {
		opts.Dims = 2
	}
	if opts.Restarts < 1 {
		opts.Restarts = 1
	}

	n := d.N()
	if need := opts.Dims + 2; n < need {
		return Embedding{}, &symbiomisc.EmptyDatasetError{Analysis: "NMDS", Have: n, Need: need}
	}

	pairs := newPairOrder(d)
	rng := rand.New(rand.NewSource(opts.Seed))

	var best *smacofResult
	for start := 0; start < opts.Restarts; start++ {
		var x []float64
		if start == 0 {
			x = classicalScaling(d, opts.Dims)
		} else {
			x = randomConfiguration(rng, n, opts.Dims)
		}

		res := smacof(pairs, x, n, opts.Dims, opts)
		res.start = start
		if best == nil || res.stress < best.stress {
			best = res
		}
	}

	out := Embedding{
		Labels:     append([]string(nil), d.Labels...),
		Coords:     principalAxes(best.x, n, opts.Dims),
		Stress:     best.stress,
		Iterations: best.iterations,
		Start:      best.start,
	}

	if opts.StressLimit > 0 && out.Stress > opts.StressLimit {
		out.LowConfidence = true
		return out, &symbiomisc.ConvergenceWarning{Stress: out.Stress, Limit: opts.StressLimit, Iterations: out.Iterations}
	}

	return out, nil
}

// pairOrder holds the upper triangle of the dissimilarities, sorted
// ascending, with the blocks of tied dissimilarities marked.
type pairOrder struct {
	i, j  []int
	delta []float64

	// tieEnd[k] is one past the last pair tied with pair k
	tieEnd []int
}

func newPairOrder(d Dissimilarity) pairOrder {
	n := d.N()
	type pair struct {
		i, j  int
		delta float64
	}
	all := make([]pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			all = append(all, pair{i, j, d.At(i, j)})
		}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].delta < all[b].delta })

	out := pairOrder{
		i:      make([]int, len(all)),
		j:      make([]int, len(all)),
		delta:  make([]float64, len(all)),
		tieEnd: make([]int, len(all)),
	}
	for k, p := range all {
		out.i[k], out.j[k], out.delta[k] = p.i, p.j, p.delta
	}
	for k := len(all) - 1; k >= 0; k-- {
		if k+1 < len(all) && all[k+1].delta == all[k].delta {
			out.tieEnd[k] = out.tieEnd[k+1]
		} else {
			out.tieEnd[k] = k + 1
		}
	}

	return out
}

type smacofResult struct {
	x          []float64
	stress     float64
	iterations int
	start      int
}

// smacof iterates Guttman transforms against monotone disparities until the
// stress improvement drops below the tolerance. x is n*p row-major and is
// consumed.
func smacof(pairs pairOrder, x []float64, n, p int, opts NMDSOptions) *smacofResult {
	m := len(pairs.delta)
	dist := make([]float64, m)
	dhat := make([]float64, m)
	order := make([]int, m)
	next := make([]float64, n*p)
	b := make([]float64, n*n)

	center(x, n, p)
	stress := disparities(pairs, x, p, dist, dhat, order)

	iter := 0
	for iter < opts.MaxIter && stress > 0 {
		iter++

		// Normalize disparities to n(n-1)/2 total squared magnitude to keep
		// the configuration from drifting in scale.
		ss := 0.0
		for _, v := range dhat {
			ss += v * v
		}
		if ss == 0 {
			break
		}
		scale := math.Sqrt(float64(m) / ss)

		for k := range b {
			b[k] = 0
		}
		for k := 0; k < m; k++ {
			if dist[k] == 0 {
				continue
			}
			i, j := pairs.i[k], pairs.j[k]
			v := -scale * dhat[k] / dist[k]
			b[i*n+j] = v
			b[j*n+i] = v
			b[i*n+i] -= v
			b[j*n+j] -= v
		}

		// Guttman transform with unit weights: X = B(X) X / n
		for i := 0; i < n; i++ {
			for c := 0; c < p; c++ {
				sum := 0.0
				for j := 0; j < n; j++ {
					sum += b[i*n+j] * x[j*p+c]
				}
				next[i*p+c] = sum / float64(n)
			}
		}
		x, next = next, x

		prev := stress
		stress = disparities(pairs, x, p, dist, dhat, order)
		if prev-stress < opts.Tolerance {
			break
		}
	}

	return &smacofResult{x: x, stress: stress, iterations: iter}
}

// disparities fills dist with the configuration distances, dhat with their
// monotone regression on the dissimilarity order, and returns stress-1.
// Within a block of tied dissimilarities the distances are ordered
// ascending before the regression.
func disparities(pairs pairOrder, x []float64, p int, dist, dhat []float64, order []int) float64 {
	m := len(dist)
	for k := 0; k < m; k++ {
		i, j := pairs.i[k], pairs.j[k]
		ss := 0.0
		for c := 0; c < p; c++ {
			diff := x[i*p+c] - x[j*p+c]
			ss += diff * diff
		}
		dist[k] = math.Sqrt(ss)
		order[k] = k
	}

	for k := 0; k < m; k = pairs.tieEnd[k] {
		block := order[k:pairs.tieEnd[k]]
		if len(block) > 1 {
			sort.SliceStable(block, func(a, b int) bool { return dist[block[a]] < dist[block[b]] })
		}
	}

	y := make([]float64, m)
	for k, idx := range order {
		y[k] = dist[idx]
	}
	fit := isotonic(y)
	for k, idx := range order {
		dhat[idx] = fit[k]
	}

	num, den := 0.0, 0.0
	for k := 0; k < m; k++ {
		diff := dist[k] - dhat[k]
		num += diff * diff
		den += dist[k] * dist[k]
	}
	if den == 0 {
		return 0
	}

	return math.Sqrt(num / den)
}

// isotonic returns the least-squares non-decreasing fit to y by pooling
// adjacent violators.
func isotonic(y []float64) []float64 {
	type block struct {
		sum   float64
		count int
	}
	blocks := make([]block, 0, len(y))

	for _, v := range y {
		blocks = append(blocks, block{v, 1})
		for len(blocks) > 1 {
			last, prev := blocks[len(blocks)-1], blocks[len(blocks)-2]
			if prev.sum/float64(prev.count) <= last.sum/float64(last.count) {
				break
			}
			blocks = blocks[:len(blocks)-1]
			blocks[len(blocks)-1] = block{prev.sum + last.sum, prev.count + last.count}
		}
	}

	out := make([]float64, 0, len(y))
	for _, b := range blocks {
		mean := b.sum / float64(b.count)
		for k := 0; k < b.count; k++ {
			out = append(out, mean)
		}
	}

	return out
}

// classicalScaling returns the Torgerson configuration: the top p
// eigenvectors of the doubly centred squared dissimilarities, scaled by the
// square roots of their eigenvalues. Non-positive eigenvalues give zero
// columns.
func classicalScaling(d Dissimilarity, p int) []float64 {
	n := d.N()

	sq := make([]float64, n*n)
	rowMean := make([]float64, n)
	grand := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := d.At(i, j)
			sq[i*n+j] = v * v
			rowMean[i] += v * v
		}
		grand += rowMean[i]
		rowMean[i] /= float64(n)
	}
	grand /= float64(n * n)

	b := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			b.SetSym(i, j, -0.5*(sq[i*n+j]-rowMean[i]-rowMean[j]+grand))
		}
	}

	var eig mat.EigenSym
	out := make([]float64, n*p)
	if !eig.Factorize(b, true) {
		return out
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Values are ascending
	for c := 0; c < p && c < n; c++ {
		k := n - 1 - c
		if values[k] <= 0 {
			continue
		}
		s := math.Sqrt(values[k])
		for i := 0; i < n; i++ {
			out[i*p+c] = vecs.At(i, k) * s
		}
	}

	return out
}

func randomConfiguration(rng *rand.Rand, n, p int) []float64 {
	out := make([]float64, n*p)
	for k := range out {
		out[k] = rng.NormFloat64()
	}
	return out
}

func center(x []float64, n, p int) {
	for c := 0; c < p; c++ {
		mean := 0.0
		for i := 0; i < n; i++ {
			mean += x[i*p+c]
		}
		mean /= float64(n)
		for i := 0; i < n; i++ {
			x[i*p+c] -= mean
		}
	}
}

// principalAxes centres the configuration and rotates it so that the first
// axis carries the most variance. Each axis is signed so that its largest
// absolute coordinate is positive.
func principalAxes(x []float64, n, p int) *mat.Dense {
	center(x, n, p)
	conf := mat.NewDense(n, p, append([]float64(nil), x...))

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, conf, nil)

	var eig mat.EigenSym
	if !eig.Factorize(&cov, true) {
		return conf
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Reverse to descending variance
	rot := mat.NewDense(p, p, nil)
	for c := 0; c < p; c++ {
		for r := 0; r < p; r++ {
			rot.Set(r, c, vecs.At(r, p-1-c))
		}
	}

	out := mat.NewDense(n, p, nil)
	out.Mul(conf, rot)

	for c := 0; c < p; c++ {
		largest := 0.0
		for i := 0; i < n; i++ {
			if v := out.At(i, c); math.Abs(v) > math.Abs(largest) {
				largest = v
			}
		}
		if largest < 0 {
			for i := 0; i < n; i++ {
				out.Set(i, c, -out.At(i, c))
			}
		}
	}

	return out
}
