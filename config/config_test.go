package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/reefgenomics/symbiomisc/community"
	"github.com/reefgenomics/symbiomisc/permanova"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "run.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"metadata": "meta.tsv",
		"variants": "gs://reef-its2/seqs.absolute.abund_only.txt.gz",
		"min_reads": 500,
		"correction": "fdr",
		"nmds": {"restarts": 5},
		"metadata_schema": {"sample_id": "sample_uid"}
	}`)

	cfg, err := ParseJSONConfigFromPath(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.MinReads != 500 {
		t.Errorf("Expected min_reads 500, got %v", cfg.MinReads)
	}
	if cfg.NMDS.Restarts != 5 || cfg.NMDS.Dims != 2 {
		t.Errorf("Expected restarts overridden and dims kept, got %+v", cfg.NMDS)
	}
	if cfg.MetadataSchema.SampleID != "sample_uid" || cfg.MetadataSchema.ColonyID != "colony_id" {
		t.Errorf("Expected a partial schema override, got %+v", cfg.MetadataSchema)
	}
	if cfg.PermanovaOptions().Correction != permanova.FDR {
		t.Errorf("Expected FDR correction, got %v", cfg.PermanovaOptions().Correction)
	}
	if cfg.GenusTheta != 0.5 || cfg.GroupThreshold != 0.05 || cfg.Floor != 0.001 {
		t.Errorf("Expected default thresholds, got %+v", cfg)
	}
	if cfg.Variants != "gs://reef-its2/seqs.absolute.abund_only.txt.gz" {
		t.Errorf("gs:// path was altered: %q", cfg.Variants)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"no metadata":     `{"variants": "v.tsv"}`,
		"no abundance":    `{"metadata": "m.tsv"}`,
		"bad theta":       `{"metadata": "m.tsv", "variants": "v.tsv", "genus_theta": 1.5}`,
		"bad correction":  `{"metadata": "m.tsv", "variants": "v.tsv", "correction": "holm"}`,
		"bad metric":      `{"metadata": "m.tsv", "variants": "v.tsv", "metric": "jaccard"}`,
		"no permutations": `{"metadata": "m.tsv", "variants": "v.tsv", "permutations": 0}`,
		"syntax error":    `{"metadata": `,
		"bad multi-group": `{"metadata": "m.tsv", "variants": "v.tsv", "multi_group_thresholds": [0.1, 2]}`,
		"negative skip":   `{"metadata": "m.tsv", "variants": "v.tsv", "variant_schema": {"skip_columns": -1}}`,
		"negative label":  `{"metadata": "m.tsv", "profiles": "p.tsv", "profile_schema": {"label_column": -1}}`,
		"no header rows":  `{"metadata": "m.tsv", "profiles": "p.tsv", "profile_schema": {"header_rows": 0}}`,
		"no colony key":   `{"metadata": "m.tsv", "variants": "v.tsv", "metadata_schema": {"colony_id": ""}}`,
	} {
		if _, err := ParseJSONConfigFromPath(writeConfig(t, body)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestNMDSFollowsRunSeed(t *testing.T) {
	cfg := Default()
	if got := cfg.NMDSOptions().Seed; got != cfg.Seed {
		t.Fatalf("Expected the NMDS seed to default to the run seed %d, got %d", cfg.Seed, got)
	}

	cfg.Seed = 42
	if got := cfg.NMDSOptions().Seed; got != 42 {
		t.Fatalf("Expected a changed run seed to reach NMDS, got %d", got)
	}
	if got := cfg.PermanovaOptions().Seed; got != 42 {
		t.Fatalf("Expected a changed run seed to reach PERMANOVA, got %d", got)
	}

	path := writeConfig(t, `{"metadata": "m.tsv", "variants": "v.tsv", "seed": 5, "nmds": {"seed": 7}}`)
	cfg, err := ParseJSONConfigFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.NMDSOptions().Seed != 7 || cfg.PermanovaOptions().Seed != 5 {
		t.Fatalf("Expected nmds seed 7 and run seed 5, got %d and %d", cfg.NMDSOptions().Seed, cfg.PermanovaOptions().Seed)
	}
}

func TestFilter(t *testing.T) {
	cfg := Default()
	cfg.Years = []int{2016}
	keep := cfg.Filter()

	for _, v := range []struct {
		Sample   community.Sample
		Expected bool
	}{
		{community.Sample{ColonyID: "12", Year: 2016, ReadCount: 1000}, true},
		{community.Sample{ColonyID: "RANDOM", Year: 2016, ReadCount: 5000}, false},
		{community.Sample{ColonyID: "12", Year: 2016, ReadCount: 999}, false},
		{community.Sample{ColonyID: "12", Year: 2015, ReadCount: 5000}, false},
	} {
		if got := keep(v.Sample); got != v.Expected {
			t.Errorf("%+v: expected %v, got %v", v.Sample, v.Expected, got)
		}
	}
}
