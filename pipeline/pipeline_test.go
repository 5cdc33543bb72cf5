package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/reefgenomics/symbiomisc"
	"github.com/reefgenomics/symbiomisc/config"
	"github.com/reefgenomics/symbiomisc/dominance"
	"github.com/reefgenomics/symbiomisc/store"
)

// writeInputs writes a metadata and a variant table into a fresh directory and
// returns a config that reads them.
func writeInputs(t *testing.T, meta, seqs string) config.Config {
	dir := t.TempDir()

	metaPath := filepath.Join(dir, "metadata.tsv")
	seqsPath := filepath.Join(dir, "seqs.absolute.abund_only.txt")
	if err := os.WriteFile(metaPath, []byte(meta), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(seqsPath, []byte(seqs), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Metadata = metaPath
	cfg.Variants = seqsPath
	cfg.MetadataSchema.Date = ""
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.Database = filepath.Join(dir, "results.sqlite")
	cfg.Permutations = 99
	cfg.NMDS.Restarts = 2
	cfg.Numpy = true
	cfg.Figure.DPI = 50

	return cfg
}

// profileHeader is a type-profile table header naming three Cladocopium
// profiles and one Durusdinium profile.
const profileHeader = "\tITS2 type profile UID\t1\t2\t3\t4\n" +
	"\tClade\tC\tC\tC\tD\n" +
	"\tMajority ITS2 sequence\tC3\tC3\tC15\tD1\n" +
	"\tITS2 type profile\tC3-C3cc\tC3-C3b\tC15-C15n\tD1-D4\n" +
	"sample_uid\tsample_name\t\t\t\t\n"

// writeStudy writes a two-species, two-year study with variant and
// type-profile tables. Colony 1 switches from Cladocopium to Durusdinium;
// colony 2 keeps Cladocopium but switches from C3-C3cc to C3-C3b; the RANDOM
// colony and the shallow sample are filtered out.
func writeStudy(t *testing.T, duplicate bool) config.Config {
	var meta, seqs, profiles strings.Builder
	meta.WriteString("sample_name\tcolony_id\thost_genus\thost_species\tsite\tyear\n")
	seqs.WriteString("sample_uid\tsample_name\tC3\tC15\tD1\tA1\n")
	profiles.WriteString(profileHeader)

	uid := 0
	for colony := 1; colony <= 8; colony++ {
		genus, species, site := "Montipora", "capitata", "HP"
		if colony > 4 {
			genus, species, site = "Porites", "lobata", "KB"
		}

		for _, year := range []int{2015, 2016} {
			uid++
			id := fmt.Sprintf("KI%d_%d", year%100, colony)
			fmt.Fprintf(&meta, "%s\t%d\t%s\t%s\t%s\t%d\n", id, colony, genus, species, site, year)

			// capitata hosts C3, lobata hosts C15
			c3, c15, d1, a1 := 1800+10*colony, 100+5*colony, 40+year%2*20, 0
			if colony > 4 {
				c3, c15 = c15, c3
			}
			if colony == 1 && year == 2016 {
				c3, d1 = 300, 1700
			}
			if colony == 6 {
				a1 = 150
			}
			fmt.Fprintf(&seqs, "%d\t%s\t%d\t%d\t%d\t%d\n", uid, id, c3, c15, d1, a1)

			// C3-C3cc, C3-C3b, C15-C15n, D1-D4
			p := [4]int{1500, 0, 0, 0}
			switch {
			case colony > 4:
				p = [4]int{0, 0, 1500, 0}
			case colony == 1 && year == 2016:
				p = [4]int{300, 0, 0, 1200}
			case colony == 2 && year == 2016:
				p = [4]int{0, 1500, 0, 0}
			}
			fmt.Fprintf(&profiles, "%d\t%s\t%d\t%d\t%d\t%d\n", uid, id, p[0], p[1], p[2], p[3])
		}
	}

	meta.WriteString("KI16_r\tRANDOM\tPorites\tlobata\tKB\t2016\n")
	seqs.WriteString("98\tKI16_r\t900\t900\t0\t0\n")
	profiles.WriteString("98\tKI16_r\t0\t0\t1800\t0\n")
	meta.WriteString("KI16_9\t9\tPorites\tlobata\tKB\t2016\n")
	seqs.WriteString("99\tKI16_9\t400\t0\t0\t0\n")
	profiles.WriteString("99\tKI16_9\t0\t0\t400\t0\n")
	if duplicate {
		meta.WriteString("KI16_9\t10\tPorites\tlobata\tKB\t2016\n")
	}

	cfg := writeInputs(t, meta.String(), seqs.String())

	cfg.Profiles = filepath.Join(filepath.Dir(cfg.Metadata), "profiles.absolute.abund_only.txt")
	if err := os.WriteFile(cfg.Profiles, []byte(profiles.String()), 0644); err != nil {
		t.Fatal(err)
	}
	cfg.ProfileSchema.HeaderRows = 4

	return cfg
}

func changesByColony(res *Results) map[string]dominance.ColonyChange {
	out := make(map[string]dominance.ColonyChange, len(res.Changes))
	for _, c := range res.Changes {
		out[c.ColonyID] = c
	}
	return out
}

// checkProfileChanges asserts the profile switches built into writeStudy.
func checkProfileChanges(t *testing.T, res *Results) {
	t.Helper()

	if len(res.ProfileDominance) != res.Metadata.Len() {
		t.Fatalf("Expected a profile assignment per sample, got %d for %d samples", len(res.ProfileDominance), res.Metadata.Len())
	}

	changes := changesByColony(res)
	if c := changes["1"]; !c.ProfileChanged || len(c.ProfileChangedWithin) != 0 {
		t.Fatalf("Expected colony 1 to change profile across genera, got %+v", c)
	}
	if c := changes["2"]; c.GenusChanged || !c.ProfileChanged || !reflect.DeepEqual(c.ProfileChangedWithin, []string{"C"}) {
		t.Fatalf("Expected colony 2 to change profile within C, got %+v", c)
	}
	if c := changes["3"]; c.ProfileChanged {
		t.Fatalf("Expected colony 3 to keep its profile, got %+v", c)
	}
	if c := changes["2"]; !reflect.DeepEqual(c.Profiles, []string{"C3-C3cc", "C3-C3b"}) {
		t.Fatalf("Unexpected colony 2 profiles %v", c.Profiles)
	}
}

func TestRun(t *testing.T) {
	cfg := writeStudy(t, false)

	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	if res.Metadata.Len() != 16 {
		t.Fatalf("Expected 16 samples after filtering, got %d", res.Metadata.Len())
	}
	if _, ok := res.Metadata.Get("KI16_r"); ok {
		t.Fatalf("RANDOM colony survived filtering")
	}

	changed := make(map[string]bool)
	for _, c := range res.Changes {
		changed[c.ColonyID] = c.GenusChanged
	}
	if !changed["1"] || changed["2"] || changed["5"] {
		t.Fatalf("Expected only colony 1 to change genus, got %v", changed)
	}

	checkProfileChanges(t, res)

	if colonies := res.MultiGroupColonies[0.01]; len(colonies) == 0 {
		t.Fatalf("Expected multi-group colonies at 1%%")
	}

	if res.Distance.N() != 16 || res.Ordination == nil || res.Clustering == nil {
		t.Fatalf("Expected distances, ordination and clustering over 16 samples")
	}

	clado, ok := res.Pairwise["Cladocopium"]
	if !ok || len(clado) != 1 || !clado[0].Tested {
		t.Fatalf("Expected one tested Cladocopium pair, got %+v", clado)
	}
	if clado[0].GroupA != "capitata" || clado[0].GroupB != "lobata" || clado[0].P >= 0.05 {
		t.Fatalf("Expected capitata and lobata to differ, got %+v", clado[0])
	}

	if err := Write(cfg, res); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{
		"provenance.txt", "colony_counts.tsv", "samples.tsv", "braycurtis.tsv", "braycurtis.npy",
		"nmds.tsv", "nmds.npy", "nmds.png", "colony_changes.tsv", "pairwise_Cladocopium.tsv",
		"profile_dominance.tsv", "group_counts.tsv", "multi_group_colonies.tsv", "transitions.tsv",
	} {
		if _, err := os.Stat(filepath.Join(cfg.OutputDir, name)); err != nil {
			t.Errorf("Expected %s: %v", name, err)
		}
	}

	db, err := store.Open(cfg.Database)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	rows, err := db.ChangedColonies()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].ColonyID != "1" {
		t.Fatalf("Unexpected stored changes %+v", rows)
	}
}

func TestRunAbortsOnMalformedInput(t *testing.T) {
	cfg := writeStudy(t, true)

	_, err := Run(context.Background(), cfg)

	var malformed *symbiomisc.MalformedInputError
	if !errors.As(err, &malformed) {
		t.Fatalf("Expected MalformedInputError, got %v", err)
	}
}

func TestRunSkipsAnalysesOnEmptyData(t *testing.T) {
	cfg := writeStudy(t, false)
	cfg.MinReads = 1e9

	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	if res.Metadata.Len() != 0 || res.Ordination != nil {
		t.Fatalf("Expected no samples and no ordination")
	}
	if len(res.Skipped) == 0 {
		t.Fatalf("Expected skipped analyses to be reported")
	}

	if err := Write(cfg, res); err != nil {
		t.Fatal(err)
	}
}

func TestRunFromProfilesOnly(t *testing.T) {
	cfg := writeStudy(t, false)
	cfg.Variants = ""

	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	if res.Metadata.Len() != 16 {
		t.Fatalf("Expected 16 samples after filtering, got %d", res.Metadata.Len())
	}
	if !reflect.DeepEqual(res.Genus.Taxa, []string{"C", "D"}) {
		t.Fatalf("Expected genera from profile clades, got %v", res.Genus.Taxa)
	}

	changes := changesByColony(res)
	if !changes["1"].GenusChanged || changes["2"].GenusChanged {
		t.Fatalf("Expected only colony 1 to change genus, got %+v", res.Changes)
	}
	checkProfileChanges(t, res)

	if _, ok := res.Pairwise["Cladocopium"]; !ok {
		t.Fatalf("Expected a Cladocopium batch, got %v", res.Pairwise)
	}

	if err := Write(cfg, res); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "profile_dominance.tsv")); err != nil {
		t.Fatal(err)
	}
}

// Identical communities collapse the ordination onto a point. The figure is
// skipped with a warning and everything else is still written.
func TestWriteIdenticalCommunities(t *testing.T) {
	var meta, seqs strings.Builder
	meta.WriteString("sample_name\tcolony_id\thost_genus\thost_species\tsite\tyear\n")
	seqs.WriteString("sample_uid\tsample_name\tC3\n")
	for colony := 1; colony <= 4; colony++ {
		species := "capitata"
		if colony > 2 {
			species = "lobata"
		}
		for _, year := range []int{2015, 2016} {
			id := fmt.Sprintf("KI%d_%d", year%100, colony)
			fmt.Fprintf(&meta, "%s\t%d\tMontipora\t%s\tHP\t%d\n", id, colony, species, year)
			fmt.Fprintf(&seqs, "%d\t%s\t2000\n", colony*10+year%10, id)
		}
	}
	cfg := writeInputs(t, meta.String(), seqs.String())

	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := Write(cfg, res); err != nil {
		t.Fatalf("Expected a collapsed ordination not to stop the output, got %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "nmds.png")); !os.IsNotExist(err) {
		t.Fatalf("Expected no nmds.png, got %v", err)
	}
	for _, path := range []string{
		filepath.Join(cfg.OutputDir, "braycurtis.tsv"),
		filepath.Join(cfg.OutputDir, "pairwise_Cladocopium.tsv"),
		cfg.Database,
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Expected %s: %v", path, err)
		}
	}

	if res.Ordination != nil {
		warned := false
		for _, w := range res.Warnings {
			if strings.HasPrefix(w, "nmds.png") {
				warned = true
			}
		}
		if !warned {
			t.Fatalf("Expected a warning for the skipped figure, got %v", res.Warnings)
		}
	}
}

func TestWriteFileRemovesFailedOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "figure.png")

	err := writeFile(path, func(w io.Writer) error {
		if _, err := io.WriteString(w, "partial"); err != nil {
			return err
		}
		return fmt.Errorf("render failed")
	})
	if err == nil {
		t.Fatalf("Expected the render error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("Expected %s to be removed, got %v", path, err)
	}

	if err := writeFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "done")
		return err
	}); err != nil {
		t.Fatal(err)
	}
	if b, err := os.ReadFile(path); err != nil || string(b) != "done" {
		t.Fatalf("Expected done, got %q (%v)", b, err)
	}
}
