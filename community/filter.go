package community

// Predicate decides whether a sample is kept.
type Predicate func(Sample) bool

// Filter removes samples that do not satisfy keep and then prunes every taxon
// whose total across the remaining samples is zero. Samples in the matrix with
// no metadata row cannot be judged and are removed. The returned metadata
// holds exactly the retained samples, in matrix row order. An empty result is
// not an error.
func Filter(m Matrix, meta Metadata, keep Predicate) (Matrix, Metadata) {
	rows := make([]int, 0, m.Rows())
	kept := make([]Sample, 0, m.Rows())

	for i, id := range m.Samples {
		s, ok := meta.Get(id)
		if !ok || (keep != nil && !keep(s)) {
			continue
		}
		rows = append(rows, i)
		kept = append(kept, s)
	}

	// Sample removal must precede pruning so that the column sums reflect the
	// filtered sample set.
	out := PruneEmptyTaxa(m.subset(rows, seq(m.Cols())))

	// Identifiers are unique in meta, so this cannot fail.
	outMeta, _ := NewMetadata(kept)

	return out, outMeta
}

// PruneEmptyTaxa removes taxa whose column sum is zero.
func PruneEmptyTaxa(m Matrix) Matrix {
	cols := make([]int, 0, m.Cols())
	for j := range m.Taxa {
		if m.ColSum(j) > 0 {
			cols = append(cols, j)
		}
	}
	return m.subset(seq(m.Rows()), cols)
}

// All is satisfied when every predicate is.
func All(preds ...Predicate) Predicate {
	return func(s Sample) bool {
		for _, p := range preds {
			if p != nil && !p(s) {
				return false
			}
		}
		return true
	}
}

// ExcludeColonies drops samples from the named colonies; untagged colonies are
// recorded as "RANDOM" in the field sheets.
func ExcludeColonies(ids ...string) Predicate {
	excluded := make(map[string]struct{}, len(ids))
	for _, v := range ids {
		excluded[v] = struct{}{}
	}
	return func(s Sample) bool {
		_, drop := excluded[s.ColonyID]
		return !drop
	}
}

// MinReads keeps samples with at least n reads.
func MinReads(n float64) Predicate {
	return func(s Sample) bool {
		return s.ReadCount >= n
	}
}

func HostGenusIn(genera ...string) Predicate {
	allowed := make(map[string]struct{}, len(genera))
	for _, v := range genera {
		allowed[v] = struct{}{}
	}
	return func(s Sample) bool {
		_, ok := allowed[s.HostGenus]
		return ok
	}
}

func InYears(years ...int) Predicate {
	allowed := make(map[int]struct{}, len(years))
	for _, v := range years {
		allowed[v] = struct{}{}
	}
	return func(s Sample) bool {
		_, ok := allowed[s.Year]
		return ok
	}
}
