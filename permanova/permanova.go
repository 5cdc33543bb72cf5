// Package permanova implements permutational multivariate analysis of variance
// on a dissimilarity matrix, and its pairwise form with multiple-comparison
// correction.
package permanova

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/reefgenomics/symbiomisc"
	"github.com/reefgenomics/symbiomisc/ordination"
)

// MinGroupSize is the smallest group a test can run on.
const MinGroupSize = 2

// Result of a one-way PERMANOVA.
type Result struct {
	F            float64
	R2           float64
	P            float64
	Permutations int
	N            int
	Groups       int
}

// Test runs a one-way PERMANOVA of d against labels, which are aligned with
// d.Labels. The p-value is (hits+1)/(permutations+1), where hits counts
// permuted pseudo-F values at least as large as the observed one. The
// permutations are drawn from a generator seeded with seed.
func Test(d ordination.Dissimilarity, labels []string, permutations int, seed int64) (Result, error) {
	n := d.N()
	if len(labels) != n {
		return Result{}, fmt.Errorf("%d labels for %d samples", len(labels), n)
	}

	codes, sizes, names := encode(labels)
	for k, size := range sizes {
		if size < MinGroupSize {
			return Result{}, &symbiomisc.InsufficientSampleSizeError{Group: names[k], N: size, Need: MinGroupSize}
		}
	}
	if len(sizes) < 2 {
		return Result{}, fmt.Errorf("need at least 2 groups, have %d", len(sizes))
	}

	sq := make([]float64, n*n)
	total := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := d.At(i, j)
			sq[i*n+j] = v * v
			total += v * v
		}
	}
	sst := total / float64(n)

	out := Result{N: n, Groups: len(sizes), Permutations: permutations}

	if sst == 0 {
		// Every sample is identical; there is nothing to partition.
		out.P = 1
		return out, nil
	}

	dfBetween := float64(len(sizes) - 1)
	dfWithin := float64(n - len(sizes))

	pseudoF := func(codes []int) (float64, float64) {
		within := make([]float64, len(sizes))
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if codes[i] == codes[j] {
					within[codes[i]] += sq[i*n+j]
				}
			}
		}

		ssw := 0.0
		for k, v := range within {
			ssw += v / float64(sizes[k])
		}
		ssa := sst - ssw

		if ssw == 0 {
			return math.Inf(1), ssa / sst
		}
		return (ssa / dfBetween) / (ssw / dfWithin), ssa / sst
	}

	out.F, out.R2 = pseudoF(codes)

	rng := rand.New(rand.NewSource(seed))
	permuted := append([]int(nil), codes...)
	hits := 0
	for p := 0; p < permutations; p++ {
		rng.Shuffle(len(permuted), func(i, j int) { permuted[i], permuted[j] = permuted[j], permuted[i] })
		if f, _ := pseudoF(permuted); f >= out.F {
			hits++
		}
	}
	out.P = float64(hits+1) / float64(permutations+1)

	return out, nil
}

// encode maps labels to dense codes. Groups are numbered in sorted label
// order.
func encode(labels []string) (codes, sizes []int, names []string) {
	index := make(map[string]int)
	for _, v := range labels {
		index[v] = 0
	}
	names = make([]string, 0, len(index))
	for k := range index {
		names = append(names, k)
	}
	sort.Strings(names)
	for k, v := range names {
		index[v] = k
	}

	codes = make([]int, len(labels))
	sizes = make([]int, len(names))
	for i, v := range labels {
		codes[i] = index[v]
		sizes[codes[i]]++
	}

	return codes, sizes, names
}
