package ordination

import (
	"sort"

	"github.com/carbocation/pfx"
	"github.com/montanaflynn/stats"
	"github.com/reefgenomics/symbiomisc/community"
)

// PairKind classifies a pair of samples from the same host species.
type PairKind string

const (
	// Same colony, any years
	WithinColony PairKind = "within_colony"

	// Different colonies sampled in the same year
	BetweenColony PairKind = "between_colony_same_year"
)

// Pair is the dissimilarity between two samples of one host species.
type Pair struct {
	A           string   `csv:"sample_a"`
	B           string   `csv:"sample_b"`
	HostSpecies string   `csv:"host_species"`
	Kind        PairKind `csv:"kind"`
	Distance    float64  `csv:"distance"`
}

// ComparePairs partitions every same-species sample pair of d into
// within-colony and between-colony-same-year pairs. Pairs of different
// colonies in different years, and samples without metadata, are left out.
func ComparePairs(d Dissimilarity, meta community.Metadata) []Pair {
	out := make([]Pair, 0)

	for i := 0; i < d.N(); i++ {
		a, ok := meta.Get(d.Labels[i])
		if !ok {
			continue
		}

		for j := i + 1; j < d.N(); j++ {
			b, ok := meta.Get(d.Labels[j])
			if !ok || a.HostSpecies != b.HostSpecies {
				continue
			}

			var kind PairKind
			switch {
			case a.ColonyID == b.ColonyID:
				kind = WithinColony
			case a.Year == b.Year:
				kind = BetweenColony
			default:
				continue
			}

			out = append(out, Pair{
				A:           a.ID,
				B:           b.ID,
				HostSpecies: a.HostSpecies,
				Kind:        kind,
				Distance:    d.At(i, j),
			})
		}
	}

	return out
}

// PairSummary aggregates the distances of one kind within one host species.
type PairSummary struct {
	HostSpecies string   `csv:"host_species"`
	Kind        PairKind `csv:"kind"`
	N           int      `csv:"n"`
	Median      float64  `csv:"median"`
	Mean        float64  `csv:"mean"`
}

// SummarizePairs reports the median and mean distance per species and kind,
// sorted by species with within-colony summaries first.
func SummarizePairs(pairs []Pair) ([]PairSummary, error) {
	type key struct {
		species string
		kind    PairKind
	}
	groups := make(map[key]stats.Float64Data)
	for _, p := range pairs {
		k := key{p.HostSpecies, p.Kind}
		groups[k] = append(groups[k], p.Distance)
	}

	out := make([]PairSummary, 0, len(groups))
	for k, distances := range groups {
		median, err := stats.Median(distances)
		if err != nil {
			return nil, pfx.Err(err)
		}
		mean, err := stats.Mean(distances)
		if err != nil {
			return nil, pfx.Err(err)
		}

		out = append(out, PairSummary{
			HostSpecies: k.species,
			Kind:        k.kind,
			N:           len(distances),
			Median:      median,
			Mean:        mean,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].HostSpecies != out[j].HostSpecies {
			return out[i].HostSpecies < out[j].HostSpecies
		}
		return out[i].Kind > out[j].Kind
	})

	return out, nil
}
