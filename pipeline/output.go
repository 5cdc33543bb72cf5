package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/reefgenomics/symbiomisc/community"
	"github.com/reefgenomics/symbiomisc/compileinfo"
	"github.com/reefgenomics/symbiomisc/config"
	"github.com/reefgenomics/symbiomisc/report"
	"github.com/reefgenomics/symbiomisc/store"
)

// Write renders the results into cfg.OutputDir and, when cfg.Database is set,
// stores them there as well. A file that cannot be rendered is removed,
// recorded in res.Warnings, and the remaining files are still written; only
// an unusable output directory or database is returned as an error.
func Write(cfg config.Config, res *Results) error {
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return pfx.Err(err)
	}

	writeTables(cfg, res)

	if cfg.Database != "" {
		if err := save(cfg.Database, res); err != nil {
			return err
		}
	}

	return nil
}

// writeFile renders into path. On failure nothing is left at path.
func writeFile(path string, render func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}

	bufw := bufio.NewWriter(f)
	err = render(bufw)
	if ferr := bufw.Flush(); err == nil && ferr != nil {
		err = pfx.Err(ferr)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = pfx.Err(cerr)
	}
	if err != nil {
		os.Remove(path)
		return err
	}

	log.Printf("Wrote %s\n", path)

	return nil
}

type output struct {
	name   string
	skip   bool
	render func(io.Writer) error
}

func tsv(records interface{}) func(io.Writer) error {
	return func(w io.Writer) error { return report.WriteTSV(w, records) }
}

func writeTables(cfg config.Config, res *Results) {
	out := func(name string) string { return filepath.Join(cfg.OutputDir, name) }

	samples := res.Metadata.Samples()
	long := community.ToLong(res.Genus)
	describe := community.Describe(res.Relative)
	groupCounts := report.GroupCountRecords(res.GroupCounts)
	multiGroup := report.MultiGroupRecords(res.MultiGroupColonies)
	transitions := report.TransitionRecords(res.Changes)

	files := []output{
		{"provenance.txt", false, func(w io.Writer) error {
			if _, err := fmt.Fprintln(w, compileinfo.Get()); err != nil {
				return pfx.Err(err)
			}
			return nil
		}},
		{"colony_counts.tsv", false, func(w io.Writer) error { return report.WriteCrossTab(w, report.ColonyCounts(res.Metadata)) }},
		{"samples.tsv", len(samples) == 0, tsv(&samples)},
		{"read_counts.txt", false, func(w io.Writer) error { return report.ReadCountHistogram(w, res.Metadata, 20) }},
		{"relative_abundance.tsv", false, func(w io.Writer) error { return report.WriteMatrix(w, res.Relative) }},
		{"genus_relative_abundance.tsv", false, func(w io.Writer) error { return report.WriteMatrix(w, res.Genus) }},
		{"genus_long.tsv", len(long) == 0, tsv(&long)},
		{"profile_relative_abundance.tsv", res.Profiles.Cols() == 0, func(w io.Writer) error { return report.WriteMatrix(w, res.Profiles) }},
		{"taxa.tsv", len(describe) == 0, tsv(&describe)},
		{"genus_dominance.tsv", len(res.GenusDominance) == 0, tsv(&res.GenusDominance)},
		{"profile_dominance.tsv", len(res.ProfileDominance) == 0, tsv(&res.ProfileDominance)},
		{"colony_changes.tsv", len(res.Changes) == 0, func(w io.Writer) error {
			records := report.ChangeRecords(res.Changes)
			return report.WriteTSV(w, &records)
		}},
		{"group_counts.tsv", len(groupCounts) == 0, tsv(&groupCounts)},
		{"multi_group_colonies.tsv", len(multiGroup) == 0, tsv(&multiGroup)},
		{"transitions.tsv", len(transitions) == 0, tsv(&transitions)},
		{"pair_distances.tsv", len(res.Pairs) == 0, tsv(&res.Pairs)},
		{"pair_summary.tsv", len(res.PairSummaries) == 0, tsv(&res.PairSummaries)},
	}

	if res.Distance.N() > 0 {
		d := res.Distance
		if res.Clustering != nil {
			d = d.Subset(res.Clustering.OrderedLabels())
		}
		files = append(files, output{"braycurtis.tsv", false, func(w io.Writer) error { return report.WriteDissimilarity(w, d) }})

		if cfg.Numpy {
			files = append(files, output{"braycurtis.npy", false, func(w io.Writer) error { return report.WriteNumpy(w, res.Distance) }})
		}
	}

	if res.Ordination != nil {
		coords := report.CoordinateRecords(*res.Ordination, res.Metadata)
		files = append(files, output{"nmds.tsv", false, tsv(&coords)})

		if cfg.Numpy {
			files = append(files, output{"nmds.npy", false, func(w io.Writer) error { return report.WriteEmbeddingNumpy(w, *res.Ordination) }})
		}

		if err := report.Plottable(*res.Ordination); err != nil {
			res.warn("nmds.png", err)
		} else {
			files = append(files, output{"nmds.png", false, func(w io.Writer) error { return plotBySpecies(w, cfg, res) }})
		}
	}

	batches := make([]string, 0, len(res.Pairwise))
	for batch := range res.Pairwise {
		batches = append(batches, batch)
	}
	sort.Strings(batches)
	for _, batch := range batches {
		results := res.Pairwise[batch]
		files = append(files, output{"pairwise_" + fileSafe(batch) + ".tsv", len(results) == 0, tsv(&results)})
	}

	for _, f := range files {
		if f.skip {
			continue
		}
		if err := writeFile(out(f.name), f.render); err != nil {
			res.warn("writing "+f.name, err)
		}
	}
}

func plotBySpecies(w io.Writer, cfg config.Config, res *Results) error {
	species := make([]string, 0)
	seen := make(map[string]struct{})
	for _, s := range res.Metadata.Samples() {
		if _, ok := seen[s.HostSpecies]; ok {
			continue
		}
		seen[s.HostSpecies] = struct{}{}
		species = append(species, s.HostSpecies)
	}
	sort.Strings(species)

	palette, err := report.Palette(species, cfg.PaletteSeed)
	if err != nil {
		return err
	}

	groupOf := func(id string) string {
		s, _ := res.Metadata.Get(id)
		return s.HostSpecies
	}

	return report.PlotOrdination(w, "NMDS (Bray-Curtis)", *res.Ordination, groupOf, palette, cfg.Figure)
}

func fileSafe(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

func save(path string, res *Results) error {
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SaveSamples(res.Metadata); err != nil {
		return err
	}
	if err := db.SaveDominance("genus", res.GenusDominance); err != nil {
		return err
	}
	if err := db.SaveDominance("profile", res.ProfileDominance); err != nil {
		return err
	}
	if err := db.SaveChanges(res.Changes); err != nil {
		return err
	}
	if res.Ordination != nil {
		if err := db.SaveOrdination("nmds", *res.Ordination); err != nil {
			return err
		}
	}
	for batch, results := range res.Pairwise {
		if err := db.SavePairwise(batch, results); err != nil {
			return err
		}
	}

	log.Printf("Saved results to %s\n", path)

	return nil
}
