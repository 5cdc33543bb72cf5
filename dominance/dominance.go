// Package dominance assigns a dominant symbiont taxon or group to each sample
// and flags colonies whose dominant assignment changed across years.
package dominance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/reefgenomics/symbiomisc"
	"github.com/reefgenomics/symbiomisc/community"
)

// DefaultTheta is the relative abundance a taxon must exceed to dominate a
// sample. Callers pass it explicitly.
const DefaultTheta = 0.5

// Assignment is the dominant taxon of one sample. When no taxon exceeds the
// threshold, Defined is false and Taxon is empty; Abundance still holds the
// largest value observed.
type Assignment struct {
	SampleID  string  `csv:"sample" db:"sample_id"`
	Taxon     string  `csv:"dominant" db:"taxon"`
	Abundance float64 `csv:"abundance" db:"abundance"`
	Defined   bool    `csv:"defined" db:"defined"`
}

// Dominant returns one assignment per sample, in row order. Values must be
// relative abundances (or groups aggregated from them); square-root
// transformed matrices are refused because the threshold would no longer mean
// a share of the community. Ties at the maximum go to the lexicographically
// smallest taxon name, independent of column order.
func Dominant(m community.Matrix, theta float64) ([]Assignment, error) {
	if m.Scale == community.SqrtRelative {
		return nil, symbiomisc.Malformed("", "dominance needs relative abundances, got %s", m.Scale)
	}

	out := make([]Assignment, 0, m.Rows())
	for i, id := range m.Samples {
		best := -1
		for j := range m.Taxa {
			switch {
			case best < 0, m.At(i, j) > m.At(i, best):
				best = j
			case m.At(i, j) == m.At(i, best) && m.Taxa[j] < m.Taxa[best]:
				best = j
			}
		}

		a := Assignment{SampleID: id}
		if best >= 0 {
			a.Abundance = m.At(i, best)
			if a.Abundance > theta {
				a.Taxon = m.Taxa[best]
				a.Defined = true
			}
		}
		out = append(out, a)
	}

	return out, nil
}

func byID(assignments []Assignment) map[string]Assignment {
	out := make(map[string]Assignment, len(assignments))
	for _, a := range assignments {
		out[a.SampleID] = a
	}
	return out
}

// ColonyChange summarizes the dominant assignments of one colony over time.
type ColonyChange struct {
	ColonyID    string
	HostGenus   string
	HostSpecies string
	Years       []int

	// Dominant group and profile per year; "" where undefined or where the
	// sample is missing from the corresponding matrix.
	Groups   []string
	Profiles []string

	GenusChanged   bool
	ProfileChanged bool

	// Groups within which more than one dominant profile was seen
	ProfileChangedWithin []string
}

// Transition renders the distinct dominant groups in year order, e.g. "C->D".
func (c ColonyChange) Transition() string {
	out := ""
	last := ""
	for _, g := range c.Groups {
		if g == "" || g == last {
			continue
		}
		if out != "" {
			out += "->"
		}
		out += g
		last = g
	}
	return out
}

// Undefined stands in for a sample without a dominant taxon wherever a
// colony's per-sample states are written out as text.
const Undefined = "none"

// JoinStates joins per-sample dominant taxa with ",", writing Undefined for
// samples that had none.
func JoinStates(states []string) string {
	out := make([]string, len(states))
	for k, s := range states {
		if s == "" {
			s = Undefined
		}
		out[k] = s
	}
	return strings.Join(out, ",")
}

// DetectChanges compares the dominant group (from the aggregated genus
// matrix) and the dominant profile (from the profile matrix) across each
// colony's samples. Colonies with fewer than two samples in the series are
// reported but never flagged. The profile matrix and taxonomy may be empty,
// in which case only genus changes are detected.
func DetectChanges(genus, profile community.Matrix, taxonomy community.Taxonomy, series []community.Series, theta float64) ([]ColonyChange, error) {
	genusDominant, err := Dominant(genus, theta)
	if err != nil {
		return nil, err
	}
	profileDominant, err := Dominant(profile, theta)
	if err != nil {
		return nil, err
	}

	return DetectChangesFrom(genusDominant, profileDominant, taxonomy, series)
}

// DetectChangesFrom is DetectChanges over assignments already made, for
// callers that assign groups and profiles at different thresholds.
func DetectChangesFrom(genusDominant, profileDominant []Assignment, taxonomy community.Taxonomy, series []community.Series) ([]ColonyChange, error) {
	genusByID, profileByID := byID(genusDominant), byID(profileDominant)

	out := make([]ColonyChange, 0, len(series))
	for _, s := range series {
		c := ColonyChange{
			ColonyID:    s.ColonyID,
			HostGenus:   s.HostGenus,
			HostSpecies: s.HostSpecies,
			Years:       s.Years(),
			Groups:      make([]string, len(s.Samples)),
			Profiles:    make([]string, len(s.Samples)),
		}

		distinctGroups := make(map[string]struct{})
		profilesByGroup := make(map[string]map[string]struct{})

		for k, sample := range s.Samples {
			if a, ok := genusByID[sample.ID]; ok && a.Defined {
				c.Groups[k] = a.Taxon
				distinctGroups[a.Taxon] = struct{}{}
			}

			a, ok := profileByID[sample.ID]
			if !ok || !a.Defined {
				continue
			}
			c.Profiles[k] = a.Taxon

			group, ok := taxonomy.Clade(a.Taxon)
			if !ok {
				return nil, symbiomisc.Malformed("", "profile %q has no clade", a.Taxon)
			}
			if profilesByGroup[group] == nil {
				profilesByGroup[group] = make(map[string]struct{})
			}
			profilesByGroup[group][a.Taxon] = struct{}{}
		}

		if len(s.Samples) >= 2 {
			c.GenusChanged = len(distinctGroups) > 1

			distinctProfiles := 0
			for group, profiles := range profilesByGroup {
				distinctProfiles += len(profiles)
				if len(profiles) > 1 {
					c.ProfileChangedWithin = append(c.ProfileChangedWithin, group)
				}
			}
			sort.Strings(c.ProfileChangedWithin)
			c.ProfileChanged = distinctProfiles > 1
		}

		out = append(out, c)
	}

	return out, nil
}

// Transitions tallies the group transitions of changed colonies, keyed by
// Transition().
func Transitions(changes []ColonyChange) map[string]int {
	out := make(map[string]int)
	for _, c := range changes {
		if c.GenusChanged {
			out[c.Transition()]++
		}
	}
	return out
}

// DefaultThresholds are the abundance levels used to characterize
// multi-symbiont samples: 0.1%, 1% and 10%.
var DefaultThresholds = []float64{0.001, 0.01, 0.1}

// GroupCount is the number of groups in one sample exceeding each threshold.
type GroupCount struct {
	SampleID   string
	Thresholds []float64
	Counts     []int
}

// At returns the count for threshold tau, and false if tau was not computed.
func (g GroupCount) At(tau float64) (int, bool) {
	for k, v := range g.Thresholds {
		if v == tau {
			return g.Counts[k], true
		}
	}
	return 0, false
}

// GroupCounts counts, per sample, how many columns of m exceed each threshold.
func GroupCounts(m community.Matrix, thresholds []float64) ([]GroupCount, error) {
	if m.Scale == community.SqrtRelative {
		return nil, symbiomisc.Malformed("", "group counts need relative abundances, got %s", m.Scale)
	}

	out := make([]GroupCount, 0, m.Rows())
	for i, id := range m.Samples {
		gc := GroupCount{
			SampleID:   id,
			Thresholds: append([]float64(nil), thresholds...),
			Counts:     make([]int, len(thresholds)),
		}
		for j := range m.Taxa {
			for k, tau := range thresholds {
				if m.At(i, j) > tau {
					gc.Counts[k]++
				}
			}
		}
		out = append(out, gc)
	}

	return out, nil
}

// MultiGroupColonies returns, sorted, the colonies with at least one sample
// holding more than one group above tau.
func MultiGroupColonies(counts []GroupCount, series []community.Series, tau float64) ([]string, error) {
	byID := make(map[string]GroupCount, len(counts))
	for _, c := range counts {
		byID[c.SampleID] = c
	}

	out := make([]string, 0)
	for _, s := range series {
		for _, sample := range s.Samples {
			c, ok := byID[sample.ID]
			if !ok {
				continue
			}
			n, ok := c.At(tau)
			if !ok {
				return nil, pfx.Err(fmt.Errorf("threshold %v was not counted", tau))
			}
			if n > 1 {
				out = append(out, s.ColonyID)
				break
			}
		}
	}
	sort.Strings(out)

	return out, nil
}
