package report

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
	"github.com/reefgenomics/symbiomisc/community"
	"github.com/reefgenomics/symbiomisc/dominance"
	"github.com/reefgenomics/symbiomisc/ordination"
)

// WriteTSV writes a slice of csv-tagged structs as a tab-delimited table with
// a header.
func WriteTSV(w io.Writer, records interface{}) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := gocsv.MarshalCSV(records, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return pfx.Err(err)
	}
	cw.Flush()

	if err := cw.Error(); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// CrossTab counts distinct colonies per site (rows) and year (columns).
type CrossTab struct {
	Sites  []string
	Years  []int
	Counts [][]int
}

func ColonyCounts(meta community.Metadata) CrossTab {
	colonies := make(map[string]map[int]map[string]struct{})
	years := make(map[int]struct{})

	for _, s := range meta.Samples() {
		if colonies[s.Site] == nil {
			colonies[s.Site] = make(map[int]map[string]struct{})
		}
		if colonies[s.Site][s.Year] == nil {
			colonies[s.Site][s.Year] = make(map[string]struct{})
		}
		colonies[s.Site][s.Year][s.ColonyID] = struct{}{}
		years[s.Year] = struct{}{}
	}

	out := CrossTab{}
	for site := range colonies {
		out.Sites = append(out.Sites, site)
	}
	sort.Strings(out.Sites)
	for year := range years {
		out.Years = append(out.Years, year)
	}
	sort.Ints(out.Years)

	for _, site := range out.Sites {
		row := make([]int, len(out.Years))
		for k, year := range out.Years {
			row[k] = len(colonies[site][year])
		}
		out.Counts = append(out.Counts, row)
	}

	return out
}

// WriteCrossTab writes the table with one column per year. The column set
// depends on the data, so it is written without struct tags.
func WriteCrossTab(w io.Writer, ct CrossTab) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	header := []string{"site"}
	for _, year := range ct.Years {
		header = append(header, strconv.Itoa(year))
	}
	if err := cw.Write(header); err != nil {
		return pfx.Err(err)
	}

	for i, site := range ct.Sites {
		row := []string{site}
		for _, v := range ct.Counts[i] {
			row = append(row, strconv.Itoa(v))
		}
		if err := cw.Write(row); err != nil {
			return pfx.Err(err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// ChangeRecord is one colony of the dominance/change table.
type ChangeRecord struct {
	ColonyID             string `csv:"colony"`
	HostGenus            string `csv:"host_genus"`
	HostSpecies          string `csv:"host_species"`
	Years                string `csv:"years"`
	Groups               string `csv:"dominant_groups"`
	Profiles             string `csv:"dominant_profiles"`
	GenusChanged         bool   `csv:"genus_changed"`
	ProfileChanged       bool   `csv:"profile_changed"`
	ProfileChangedWithin string `csv:"profile_changed_within"`
}

// ChangeRecords flattens colony changes; per-year values are joined with ",",
// and undefined dominants are written as dominance.Undefined.
func ChangeRecords(changes []dominance.ColonyChange) []ChangeRecord {
	out := make([]ChangeRecord, 0, len(changes))
	for _, c := range changes {
		years := make([]string, 0, len(c.Years))
		for _, y := range c.Years {
			years = append(years, strconv.Itoa(y))
		}

		out = append(out, ChangeRecord{
			ColonyID:             c.ColonyID,
			HostGenus:            c.HostGenus,
			HostSpecies:          c.HostSpecies,
			Years:                strings.Join(years, ","),
			Groups:               dominance.JoinStates(c.Groups),
			Profiles:             dominance.JoinStates(c.Profiles),
			GenusChanged:         c.GenusChanged,
			ProfileChanged:       c.ProfileChanged,
			ProfileChangedWithin: strings.Join(c.ProfileChangedWithin, ","),
		})
	}
	return out
}

// GroupCountRecord is the number of groups above one threshold in one sample.
type GroupCountRecord struct {
	Sample    string  `csv:"sample"`
	Threshold float64 `csv:"threshold"`
	Groups    int     `csv:"groups"`
}

// GroupCountRecords flattens group counts to one row per sample and
// threshold.
func GroupCountRecords(counts []dominance.GroupCount) []GroupCountRecord {
	out := make([]GroupCountRecord, 0, len(counts))
	for _, c := range counts {
		for k, tau := range c.Thresholds {
			out = append(out, GroupCountRecord{Sample: c.SampleID, Threshold: tau, Groups: c.Counts[k]})
		}
	}
	return out
}

// MultiGroupRecord names a colony holding more than one group above
// Threshold in at least one sample.
type MultiGroupRecord struct {
	Threshold float64 `csv:"threshold"`
	ColonyID  string  `csv:"colony"`
}

// MultiGroupRecords lists the colonies by threshold, lowest threshold first.
func MultiGroupRecords(byThreshold map[float64][]string) []MultiGroupRecord {
	thresholds := make([]float64, 0, len(byThreshold))
	for tau := range byThreshold {
		thresholds = append(thresholds, tau)
	}
	sort.Float64s(thresholds)

	out := make([]MultiGroupRecord, 0)
	for _, tau := range thresholds {
		for _, colony := range byThreshold[tau] {
			out = append(out, MultiGroupRecord{Threshold: tau, ColonyID: colony})
		}
	}
	return out
}

// TransitionRecord counts the colonies that went through one sequence of
// dominant groups, such as C->D.
type TransitionRecord struct {
	Transition string `csv:"transition"`
	Colonies   int    `csv:"colonies"`
}

// TransitionRecords tallies the transitions of changed colonies, most
// frequent first.
func TransitionRecords(changes []dominance.ColonyChange) []TransitionRecord {
	tally := dominance.Transitions(changes)

	out := make([]TransitionRecord, 0, len(tally))
	for t, n := range tally {
		out = append(out, TransitionRecord{Transition: t, Colonies: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Colonies != out[j].Colonies {
			return out[i].Colonies > out[j].Colonies
		}
		return out[i].Transition < out[j].Transition
	})
	return out
}

// CoordinateRecord is one sample of an ordination, first two axes.
type CoordinateRecord struct {
	Sample      string  `csv:"sample"`
	HostSpecies string  `csv:"host_species"`
	Year        int     `csv:"year"`
	NMDS1       float64 `csv:"NMDS1"`
	NMDS2       float64 `csv:"NMDS2"`
}

// CoordinateRecords joins an embedding to the sample metadata. One-dimensional
// embeddings leave NMDS2 at zero.
func CoordinateRecords(e ordination.Embedding, meta community.Metadata) []CoordinateRecord {
	out := make([]CoordinateRecord, 0, len(e.Labels))
	for i, label := range e.Labels {
		s, _ := meta.Get(label)
		p := e.Point(i)

		r := CoordinateRecord{Sample: label, HostSpecies: s.HostSpecies, Year: s.Year, NMDS1: p[0]}
		if len(p) > 1 {
			r.NMDS2 = p[1]
		}
		out = append(out, r)
	}
	return out
}

// WriteDissimilarity writes a square labelled matrix.
func WriteDissimilarity(w io.Writer, d ordination.Dissimilarity) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write(append([]string{""}, d.Labels...)); err != nil {
		return pfx.Err(err)
	}

	for i, label := range d.Labels {
		row := make([]string, 0, d.N()+1)
		row = append(row, label)
		for j := 0; j < d.N(); j++ {
			row = append(row, strconv.FormatFloat(d.At(i, j), 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return pfx.Err(err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// WriteMatrix writes an abundance matrix with samples as rows.
func WriteMatrix(w io.Writer, m community.Matrix) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write(append([]string{"sample"}, m.Taxa...)); err != nil {
		return pfx.Err(err)
	}

	for i, id := range m.Samples {
		row := make([]string, 0, m.Cols()+1)
		row = append(row, id)
		for j := 0; j < m.Cols(); j++ {
			row = append(row, strconv.FormatFloat(m.At(i, j), 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return pfx.Err(err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return pfx.Err(err)
	}

	return nil
}
