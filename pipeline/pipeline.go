// Package pipeline runs one complete analysis: load, join, filter, normalize,
// aggregate, then the dominance, ordination and PERMANOVA analyses. Input
// schema violations abort the run; an analysis that cannot run on the data it
// is given is skipped with a log line and the rest continue.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/reefgenomics/symbiomisc"
	"github.com/reefgenomics/symbiomisc/community"
	"github.com/reefgenomics/symbiomisc/config"
	"github.com/reefgenomics/symbiomisc/dominance"
	"github.com/reefgenomics/symbiomisc/ordination"
	"github.com/reefgenomics/symbiomisc/permanova"
	"github.com/reefgenomics/symbiomisc/table"
)

// Results are the public outputs of a run. Analyses that were skipped leave
// their fields at the zero value and are listed in Skipped.
type Results struct {
	// Joined and filtered samples
	Metadata community.Metadata
	Series   []community.Series

	// Filtered counts, relative abundances, and the floored relative
	// abundances used for distances
	Counts   community.Matrix
	Relative community.Matrix
	Floored  community.Matrix
	Taxonomy community.Taxonomy

	// Per-sample relative abundance of each clade
	Genus community.Matrix

	// Type profiles restricted to the filtered samples
	Profiles        community.Matrix
	ProfileTaxonomy community.Taxonomy

	GenusDominance     []dominance.Assignment
	ProfileDominance   []dominance.Assignment
	Changes            []dominance.ColonyChange
	GroupCounts        []dominance.GroupCount
	MultiGroupColonies map[float64][]string

	Distance      ordination.Dissimilarity
	Ordination    *ordination.Embedding
	Pairs         []ordination.Pair
	PairSummaries []ordination.PairSummary
	Clustering    *ordination.Dendrogram

	// Pairwise host species tests, keyed by genus batch
	Pairwise map[string][]permanova.PairResult

	Skipped  []string
	Warnings []string
}

func (r *Results) skip(analysis string, err error) {
	msg := fmt.Sprintf("%s: %v", analysis, err)
	log.Printf("Skipping %s\n", msg)
	r.Skipped = append(r.Skipped, msg)
}

func (r *Results) warn(analysis string, err error) {
	msg := fmt.Sprintf("%s: %v", analysis, err)
	log.Printf("Warning: %s\n", msg)
	r.Warnings = append(r.Warnings, msg)
}

// Run executes the analyses described by cfg. The returned error is non-nil
// only when the inputs cannot be trusted.
func Run(ctx context.Context, cfg config.Config) (*Results, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var client *storage.Client
	for _, path := range []string{cfg.Metadata, cfg.Variants, cfg.Profiles, cfg.Taxonomy} {
		if symbiomisc.IsGoogleStoragePath(path) {
			var err error
			client, err = storage.NewClient(ctx)
			if err != nil {
				return nil, pfx.Err(err)
			}
			defer client.Close()
			break
		}
	}

	in, err := load(ctx, cfg, client)
	if err != nil {
		return nil, err
	}

	res := &Results{
		Pairwise:           make(map[string][]permanova.PairResult),
		MultiGroupColonies: make(map[float64][]string),
	}

	if err := prepare(cfg, in, res); err != nil {
		return nil, err
	}

	analyzeDominance(cfg, res)
	analyzeOrdination(cfg, res)
	analyzePairwise(ctx, cfg, res)

	return res, nil
}

type inputs struct {
	meta     community.Metadata
	variants community.Matrix
	profiles table.Profiles
	override community.Taxonomy

	hasVariants, hasProfiles bool
}

func load(ctx context.Context, cfg config.Config, client *storage.Client) (inputs, error) {
	var in inputs
	var err error

	log.Printf("Loading metadata from %s\n", cfg.Metadata)
	if in.meta, err = table.LoadMetadata(ctx, cfg.Metadata, cfg.MetadataSchema, client); err != nil {
		return in, err
	}

	if cfg.Variants != "" {
		log.Printf("Loading sequence variants from %s\n", cfg.Variants)
		if in.variants, err = table.LoadVariants(ctx, cfg.Variants, cfg.VariantSchema, client); err != nil {
			return in, err
		}
		in.hasVariants = true
	}

	if cfg.Profiles != "" {
		log.Printf("Loading type profiles from %s\n", cfg.Profiles)
		if in.profiles, err = table.LoadProfiles(ctx, cfg.Profiles, cfg.ProfileSchema, client); err != nil {
			return in, err
		}
		in.hasProfiles = true
	}

	if cfg.Taxonomy != "" {
		log.Printf("Loading taxonomy overrides from %s\n", cfg.Taxonomy)
		if in.override, err = table.LoadTaxonomy(ctx, cfg.Taxonomy, client); err != nil {
			return in, err
		}
	}

	return in, nil
}

// prepare joins, filters and normalizes. Read counts come from the variant
// table when there is one, since profiles only account for the reads that were
// assigned to a profile.
func prepare(cfg config.Config, in inputs, res *Results) error {
	counts := in.variants
	taxonomy := community.Taxonomy{}
	if !in.hasVariants {
		counts = in.profiles.Matrix
	}

	joined, meta, err := table.Join(in.meta, counts)
	if err != nil {
		return err
	}

	res.Counts, res.Metadata = community.Filter(joined, meta, cfg.Filter())
	log.Printf("Kept %d of %d samples and %d of %d taxa after filtering\n",
		res.Counts.Rows(), joined.Rows(), res.Counts.Cols(), joined.Cols())

	if res.Series, err = res.Metadata.Series(); err != nil {
		return err
	}

	if in.hasVariants {
		// Overridden taxa need not have a clade in their name
		derive := make([]string, 0, res.Counts.Cols())
		for _, taxon := range res.Counts.Taxa {
			if _, ok := in.override[taxon]; !ok {
				derive = append(derive, taxon)
			}
		}
		if taxonomy, err = community.VariantTaxonomy(derive); err != nil {
			return err
		}
	} else {
		taxonomy = in.profiles.Taxonomy
	}
	res.Taxonomy = taxonomy.Merge(in.override)

	res.Relative = community.ToRelativeAbundance(res.Counts)
	res.Floored = community.ApplyFloor(res.Relative, cfg.Floor)

	if res.Genus, err = community.AggregateByGroup(res.Relative, res.Taxonomy); err != nil {
		return err
	}

	if in.hasProfiles {
		profiles := community.PruneEmptyTaxa(in.profiles.Matrix.SelectSamples(res.Metadata.IDs()))
		res.Profiles = community.ToRelativeAbundance(profiles)
		res.ProfileTaxonomy = in.profiles.Taxonomy.Merge(in.override)
	}

	return nil
}

func analyzeDominance(cfg config.Config, res *Results) {
	var err error

	if res.GenusDominance, err = dominance.Dominant(res.Genus, cfg.GenusTheta); err != nil {
		res.skip("genus dominance", err)
		return
	}
	if res.ProfileDominance, err = dominance.Dominant(res.Profiles, cfg.ProfileTheta); err != nil {
		res.skip("profile dominance", err)
		return
	}

	if res.Changes, err = dominance.DetectChangesFrom(res.GenusDominance, res.ProfileDominance, res.ProfileTaxonomy, res.Series); err != nil {
		res.skip("change detection", err)
		return
	}

	changed := 0
	for _, c := range res.Changes {
		if c.GenusChanged {
			changed++
		}
	}
	log.Printf("%d of %d colonies changed dominant genus\n", changed, len(res.Changes))

	if res.GroupCounts, err = dominance.GroupCounts(res.Genus, cfg.MultiGroupThresholds); err != nil {
		res.skip("group counts", err)
		return
	}
	for _, tau := range cfg.MultiGroupThresholds {
		colonies, err := dominance.MultiGroupColonies(res.GroupCounts, res.Series, tau)
		if err != nil {
			res.skip(fmt.Sprintf("multi-group colonies at %v", tau), err)
			continue
		}
		res.MultiGroupColonies[tau] = colonies
	}
}

func analyzeOrdination(cfg config.Config, res *Results) {
	metric, err := ordination.ParseMetric(cfg.Metric)
	if err != nil {
		res.skip("ordination", err)
		return
	}

	d, err := ordination.Distance(community.VarianceStabilize(res.Floored), metric)
	if err != nil {
		res.skip("dissimilarity", err)
		return
	}
	res.Distance = d

	res.Pairs = ordination.ComparePairs(d, res.Metadata)
	if res.PairSummaries, err = ordination.SummarizePairs(res.Pairs); err != nil {
		res.skip("pair summaries", err)
	}

	if dg, err := ordination.Cluster(d); err != nil {
		res.skip("clustering", err)
	} else {
		res.Clustering = &dg
	}

	e, err := ordination.Ordinate(d, cfg.NMDSOptions())
	var warning *symbiomisc.ConvergenceWarning
	switch {
	case errors.As(err, &warning):
		res.warn("NMDS", err)
		res.Ordination = &e
	case err != nil:
		res.skip("NMDS", err)
	default:
		log.Printf("NMDS stress %.4f after %d iterations\n", e.Stress, e.Iterations)
		res.Ordination = &e
	}
}

// analyzePairwise tests host species against each other once per genus. Each
// batch holds the samples where that genus exceeds the group threshold, and
// only that genus' variants, renormalized within the genus.
func analyzePairwise(ctx context.Context, cfg config.Config, res *Results) {
	opts := cfg.PermanovaOptions()

	groups := append([]string(nil), res.Genus.Taxa...)
	sort.Strings(groups)

	for _, group := range groups {
		batch := community.GenusName(group)

		ids := permanova.SamplesAbove(res.Genus, group, cfg.GroupThreshold)
		sub := res.Floored.SelectSamples(ids)
		sub = community.PruneEmptyTaxa(sub.SelectTaxa(res.Taxonomy.TaxaInGroup(sub, group)))
		sub = community.VarianceStabilize(community.ToRelativeAbundance(sub))

		d, err := ordination.Distance(sub, ordination.MetricBray)
		if err != nil {
			res.skip("pairwise PERMANOVA for "+batch, err)
			continue
		}

		labels := make([]string, 0, d.N())
		for _, id := range d.Labels {
			s, _ := res.Metadata.Get(id)
			labels = append(labels, s.HostSpecies)
		}

		results, err := permanova.Pairwise(ctx, d, labels, opts)
		if err != nil {
			res.skip("pairwise PERMANOVA for "+batch, err)
			continue
		}

		tested := 0
		for _, r := range results {
			if r.Tested {
				tested++
			}
		}
		log.Printf("%s: tested %d of %d host species pairs on %d samples\n", batch, tested, len(results), d.N())

		res.Pairwise[batch] = results
	}
}
