// Package config reads the JSON description of one analysis run.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/carbocation/pfx"
	"github.com/reefgenomics/symbiomisc"
	"github.com/reefgenomics/symbiomisc/community"
	"github.com/reefgenomics/symbiomisc/dominance"
	"github.com/reefgenomics/symbiomisc/ordination"
	"github.com/reefgenomics/symbiomisc/permanova"
	"github.com/reefgenomics/symbiomisc/report"
	"github.com/reefgenomics/symbiomisc/table"
)

// Config is one run. Every threshold belongs to one analysis and is set
// independently; none is shared.
type Config struct {
	ConfigPath string `json:"-"`

	// Inputs may be local paths (with ~) or gs:// URLs, optionally compressed
	Metadata string `json:"metadata"`
	Variants string `json:"variants"`
	Profiles string `json:"profiles"`
	Taxonomy string `json:"taxonomy"`

	OutputDir string `json:"output_dir"`
	Database  string `json:"database"`

	MetadataSchema table.MetadataSchema `json:"metadata_schema"`
	VariantSchema  table.VariantSchema  `json:"variant_schema"`
	ProfileSchema  table.ProfileSchema  `json:"profile_schema"`

	// Sample filter
	ExcludeColonies []string `json:"exclude_colonies"`
	MinReads        float64  `json:"min_reads"`
	Years           []int    `json:"years"`
	HostGenera      []string `json:"host_genera"`

	Floor float64 `json:"floor"`

	// Dominance
	GenusTheta           float64   `json:"genus_theta"`
	ProfileTheta         float64   `json:"profile_theta"`
	MultiGroupThresholds []float64 `json:"multi_group_thresholds"`

	// Ordination
	Metric string                 `json:"metric"`
	NMDS   ordination.NMDSOptions `json:"nmds"`

	// Pairwise PERMANOVA
	GroupThreshold float64 `json:"group_threshold"`
	Permutations   int     `json:"permutations"`
	Seed           int64   `json:"seed"`
	Correction     string  `json:"correction"`
	Alpha          float64 `json:"alpha"`
	Workers        int     `json:"workers"`

	// Reporting
	Figure      report.FigureSize `json:"figure"`
	PaletteSeed int64             `json:"palette_seed"`
	Numpy       bool              `json:"numpy"`
}

func Default() Config {
	perm := permanova.DefaultOptions()

	// NMDS follows the run seed unless the nmds block sets its own
	nmds := ordination.DefaultNMDSOptions()
	nmds.Seed = 0

	return Config{
		OutputDir:            ".",
		MetadataSchema:       table.DefaultMetadataSchema(),
		VariantSchema:        table.DefaultVariantSchema(),
		ProfileSchema:        table.DefaultProfileSchema(),
		ExcludeColonies:      []string{"RANDOM"},
		MinReads:             1000,
		Floor:                community.DefaultFloor,
		GenusTheta:           dominance.DefaultTheta,
		ProfileTheta:         dominance.DefaultTheta,
		MultiGroupThresholds: append([]float64(nil), dominance.DefaultThresholds...),
		Metric:               "bray",
		NMDS:                 nmds,
		GroupThreshold:       0.05,
		Permutations:         perm.Permutations,
		Seed:                 perm.Seed,
		Correction:           perm.Correction.String(),
		Alpha:                perm.Alpha,
		Workers:              perm.Workers,
		Figure:               report.DefaultFigureSize(),
		PaletteSeed:          1,
	}
}

// ParseJSONConfigFromPath reads a config file over the defaults, so the file
// only needs to name what differs.
func ParseJSONConfigFromPath(path string) (Config, error) {
	out := Default()
	out.ConfigPath = path

	f, err := os.Open(symbiomisc.ExpandHome(path))
	if err != nil {
		return out, pfx.Err(err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&out); err != nil {
		if e, ok := err.(*json.SyntaxError); ok {
			log.Printf("syntax error at byte offset %d", e.Offset)
		}
		return out, pfx.Err(err)
	}

	// Interpret ~ if present
	out.Metadata = symbiomisc.ExpandHome(out.Metadata)
	out.Variants = symbiomisc.ExpandHome(out.Variants)
	out.Profiles = symbiomisc.ExpandHome(out.Profiles)
	out.Taxonomy = symbiomisc.ExpandHome(out.Taxonomy)
	out.OutputDir = symbiomisc.ExpandHome(out.OutputDir)
	out.Database = symbiomisc.ExpandHome(out.Database)

	return out, out.Validate()
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	if c.Metadata == "" {
		return fmt.Errorf("no metadata table given")
	}
	if c.Variants == "" && c.Profiles == "" {
		return fmt.Errorf("neither a variant nor a profile table is given")
	}

	for name, v := range map[string]float64{
		"floor":           c.Floor,
		"genus_theta":     c.GenusTheta,
		"profile_theta":   c.ProfileTheta,
		"group_threshold": c.GroupThreshold,
		"alpha":           c.Alpha,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, v)
		}
	}
	for _, v := range c.MultiGroupThresholds {
		if v < 0 || v > 1 {
			return fmt.Errorf("multi_group_thresholds must be within [0, 1], got %v", v)
		}
	}

	if err := c.MetadataSchema.Validate(); err != nil {
		return err
	}
	if err := c.VariantSchema.Validate(); err != nil {
		return err
	}
	if err := c.ProfileSchema.Validate(); err != nil {
		return err
	}

	if c.Permutations < 1 {
		return fmt.Errorf("permutations must be positive, got %d", c.Permutations)
	}
	if c.NMDS.Dims < 1 {
		return fmt.Errorf("nmds dims must be positive, got %d", c.NMDS.Dims)
	}
	if _, err := ordination.ParseMetric(c.Metric); err != nil {
		return err
	}
	if _, err := permanova.ParseCorrection(c.Correction); err != nil {
		return err
	}

	return nil
}

// Filter is the sample predicate described by the config.
func (c Config) Filter() community.Predicate {
	preds := []community.Predicate{
		community.ExcludeColonies(c.ExcludeColonies...),
		community.MinReads(c.MinReads),
	}
	if len(c.Years) > 0 {
		preds = append(preds, community.InYears(c.Years...))
	}
	if len(c.HostGenera) > 0 {
		preds = append(preds, community.HostGenusIn(c.HostGenera...))
	}
	return community.All(preds...)
}

// PermanovaOptions converts the pairwise test settings. Validate has already
// checked the correction name.
func (c Config) PermanovaOptions() permanova.Options {
	correction, _ := permanova.ParseCorrection(c.Correction)
	return permanova.Options{
		Permutations: c.Permutations,
		Seed:         c.Seed,
		Correction:   correction,
		Alpha:        c.Alpha,
		Workers:      c.Workers,
	}
}

// NMDSOptions returns the ordination settings with the run seed applied when
// the nmds block has no seed of its own.
func (c Config) NMDSOptions() ordination.NMDSOptions {
	out := c.NMDS
	if out.Seed == 0 {
		out.Seed = c.Seed
	}
	return out
}
