package community

import (
	"sort"

	"github.com/reefgenomics/symbiomisc"
)

// Sample is one observation of one tagged colony in one sampling year.
// ReadCount is the raw row sum of the sample's counts, filled in when the
// metadata is joined to an abundance table.
type Sample struct {
	ID          string  `csv:"sample" db:"sample_id"`
	ColonyID    string  `csv:"colony" db:"colony_id"`
	HostGenus   string  `csv:"host_genus" db:"host_genus"`
	HostSpecies string  `csv:"host_species" db:"host_species"`
	Site        string  `csv:"site" db:"site"`
	Year        int     `csv:"year" db:"year"`
	ReadCount   float64 `csv:"read_count" db:"read_count"`
}

// Metadata is the sample table, keyed by sample identifier.
type Metadata struct {
	samples []Sample
	index   map[string]int
}

// NewMetadata indexes samples by identifier. Duplicate identifiers are a
// schema violation, never a silent overwrite.
func NewMetadata(samples []Sample) (Metadata, error) {
	out := Metadata{
		samples: make([]Sample, 0, len(samples)),
		index:   make(map[string]int, len(samples)),
	}

	for _, s := range samples {
		if s.ID == "" {
			return Metadata{}, symbiomisc.Malformed("", "sample with empty identifier (colony %q)", s.ColonyID)
		}
		if _, exists := out.index[s.ID]; exists {
			return Metadata{}, symbiomisc.Malformed("", "duplicate sample identifier %q", s.ID)
		}
		out.index[s.ID] = len(out.samples)
		out.samples = append(out.samples, s)
	}

	return out, nil
}

func (m Metadata) Len() int { return len(m.samples) }

// Samples returns a copy of the sample table in its original order.
func (m Metadata) Samples() []Sample {
	return append([]Sample(nil), m.samples...)
}

func (m Metadata) Get(id string) (Sample, bool) {
	i, ok := m.index[id]
	if !ok {
		return Sample{}, false
	}
	return m.samples[i], true
}

func (m Metadata) IDs() []string {
	out := make([]string, 0, len(m.samples))
	for _, s := range m.samples {
		out = append(out, s.ID)
	}
	return out
}

// Series is a colony time series: every sample of one colony, ordered by year
// ascending. Years need not be contiguous.
type Series struct {
	ColonyID    string
	HostGenus   string
	HostSpecies string
	Samples     []Sample
}

func (s Series) Years() []int {
	out := make([]int, 0, len(s.Samples))
	for _, v := range s.Samples {
		out = append(out, v.Year)
	}
	return out
}

// Series groups samples by colony. Colonies are returned sorted by identifier.
// A colony with two samples in the same year violates the sample invariant
// and yields a MalformedInputError.
func (m Metadata) Series() ([]Series, error) {
	byColony := make(map[string][]Sample)
	for _, s := range m.samples {
		byColony[s.ColonyID] = append(byColony[s.ColonyID], s)
	}

	colonies := make([]string, 0, len(byColony))
	for k := range byColony {
		colonies = append(colonies, k)
	}
	sort.Strings(colonies)

	out := make([]Series, 0, len(colonies))
	for _, colony := range colonies {
		samples := byColony[colony]
		sort.SliceStable(samples, func(i, j int) bool { return samples[i].Year < samples[j].Year })

		for i := 1; i < len(samples); i++ {
			if samples[i].Year == samples[i-1].Year {
				return nil, symbiomisc.Malformed("", "colony %q has samples %q and %q in year %d", colony, samples[i-1].ID, samples[i].ID, samples[i].Year)
			}
		}

		out = append(out, Series{
			ColonyID:    colony,
			HostGenus:   samples[0].HostGenus,
			HostSpecies: samples[0].HostSpecies,
			Samples:     samples,
		})
	}

	return out, nil
}
