package permanova

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/reefgenomics/symbiomisc"
	"github.com/reefgenomics/symbiomisc/community"
	"github.com/reefgenomics/symbiomisc/ordination"
	"golang.org/x/sync/errgroup"
)

type Correction int

const (
	NoCorrection Correction = iota
	Bonferroni
	FDR
)

func (c Correction) String() string {
	switch c {
	case NoCorrection:
		return "none"
	case Bonferroni:
		return "bonferroni"
	case FDR:
		return "fdr"
	}
	return "unknown"
}

func ParseCorrection(name string) (Correction, error) {
	switch strings.ToLower(name) {
	case "none":
		return NoCorrection, nil
	case "bonferroni", "":
		return Bonferroni, nil
	case "fdr", "bh", "benjamini-hochberg":
		return FDR, nil
	}
	return 0, fmt.Errorf("unknown correction %q", name)
}

type Options struct {
	Permutations int
	Seed         int64
	Correction   Correction
	Alpha        float64

	// Pairs tested concurrently; results do not depend on it
	Workers int
}

func DefaultOptions() Options {
	return Options{
		Permutations: 999,
		Seed:         1,
		Correction:   Bonferroni,
		Alpha:        0.05,
		Workers:      4,
	}
}

// PairResult is the comparison of two groups. When Tested is false, Reason
// says why and the statistics are zero.
type PairResult struct {
	GroupA      string  `csv:"group_a" db:"group_a"`
	GroupB      string  `csv:"group_b" db:"group_b"`
	NA          int     `csv:"n_a" db:"n_a"`
	NB          int     `csv:"n_b" db:"n_b"`
	Tested      bool    `csv:"tested" db:"tested"`
	F           float64 `csv:"pseudo_f" db:"pseudo_f"`
	R2          float64 `csv:"r2" db:"r2"`
	P           float64 `csv:"p" db:"p"`
	PAdjusted   float64 `csv:"p_adjusted" db:"p_adjusted"`
	Significant bool    `csv:"significant" db:"significant"`
	Reason      string  `csv:"reason" db:"reason"`

	Err error `csv:"-" db:"-"`
}

// PairSeed derives the generator seed of one pair from the batch seed, so
// that each pair's permutations do not depend on scheduling.
func PairSeed(seed int64, a, b string) int64 {
	h := fnv.New64a()
	h.Write([]byte(a))
	h.Write([]byte{0})
	h.Write([]byte(b))
	return seed ^ int64(h.Sum64())
}

// Pairwise tests every pair of distinct labels. A pair involving a group with
// fewer than MinGroupSize samples is reported untested, with its
// *symbiomisc.InsufficientSampleSizeError in Err, and never receives a
// p-value. Correction is applied across the tested pairs of this call only.
// Pairs are ordered by label.
func Pairwise(ctx context.Context, d ordination.Dissimilarity, labels []string, opts Options) ([]PairResult, error) {
	if len(labels) != d.N() {
		return nil, fmt.Errorf("%d labels for %d samples", len(labels), d.N())
	}

	members := make(map[string][]string)
	for i, v := range labels {
		members[v] = append(members[v], d.Labels[i])
	}
	groups := make([]string, 0, len(members))
	for k := range members {
		groups = append(groups, k)
	}
	sort.Strings(groups)

	out := make([]PairResult, 0, len(groups)*(len(groups)-1)/2)
	for x := 0; x < len(groups); x++ {
		for y := x + 1; y < len(groups); y++ {
			out = append(out, PairResult{
				GroupA: groups[x],
				GroupB: groups[y],
				NA:     len(members[groups[x]]),
				NB:     len(members[groups[y]]),
			})
		}
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for k := range out {
			select {
			case jobs <- k:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for k := range jobs {
				testPair(d, members, &out[k], opts)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	Adjust(out, opts.Correction, opts.Alpha)

	return out, nil
}

func testPair(d ordination.Dissimilarity, members map[string][]string, r *PairResult, opts Options) {
	ids := append(append([]string(nil), members[r.GroupA]...), members[r.GroupB]...)
	labels := make([]string, 0, len(ids))
	for range members[r.GroupA] {
		labels = append(labels, r.GroupA)
	}
	for range members[r.GroupB] {
		labels = append(labels, r.GroupB)
	}

	res, err := Test(d.Subset(ids), labels, opts.Permutations, PairSeed(opts.Seed, r.GroupA, r.GroupB))
	if err != nil {
		r.Err = err
		r.Reason = err.Error()
		return
	}

	r.Tested = true
	r.F, r.R2, r.P = res.F, res.R2, res.P
}

// Adjust fills PAdjusted and Significant for the tested results. FDR is the
// Benjamini-Hochberg step-up procedure.
func Adjust(results []PairResult, c Correction, alpha float64) {
	tested := make([]int, 0, len(results))
	for k, r := range results {
		if r.Tested {
			tested = append(tested, k)
		}
	}
	m := float64(len(tested))

	switch c {
	case Bonferroni:
		for _, k := range tested {
			results[k].PAdjusted = minFloat(1, results[k].P*m)
		}
	case FDR:
		sort.SliceStable(tested, func(a, b int) bool { return results[tested[a]].P < results[tested[b]].P })
		running := 1.0
		for rank := len(tested); rank >= 1; rank-- {
			k := tested[rank-1]
			running = minFloat(running, results[k].P*m/float64(rank))
			results[k].PAdjusted = running
		}
	default:
		for _, k := range tested {
			results[k].PAdjusted = results[k].P
		}
	}

	for _, k := range tested {
		results[k].Significant = results[k].PAdjusted < alpha
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Insufficient reports whether a pair was skipped for lack of samples.
func (r PairResult) Insufficient() bool {
	var small *symbiomisc.InsufficientSampleSizeError
	return errors.As(r.Err, &small)
}

// SamplesAbove returns, in row order, the samples where group exceeds
// threshold in the aggregated matrix m.
func SamplesAbove(m community.Matrix, group string, threshold float64) []string {
	j, ok := m.TaxonIndex(group)
	if !ok {
		return nil
	}

	out := make([]string, 0)
	for i, id := range m.Samples {
		if m.At(i, j) > threshold {
			out = append(out, id)
		}
	}
	return out
}
