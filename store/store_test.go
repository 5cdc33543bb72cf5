package store

import (
	"path/filepath"
	"testing"

	"github.com/reefgenomics/symbiomisc/community"
	"github.com/reefgenomics/symbiomisc/dominance"
	"github.com/reefgenomics/symbiomisc/ordination"
	"github.com/reefgenomics/symbiomisc/permanova"
	"gonum.org/v1/gonum/mat"
)

func openMemory(t *testing.T) *Store {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSamplesRoundTrip(t *testing.T) {
	s := openMemory(t)

	meta, err := community.NewMetadata([]community.Sample{
		{ID: "b", ColonyID: "2", HostGenus: "Porites", HostSpecies: "lobata", Site: "HP", Year: 2016, ReadCount: 1500},
		{ID: "a", ColonyID: "1", HostGenus: "Montipora", HostSpecies: "capitata", Site: "KB", Year: 2015, ReadCount: 2000},
	})
	if err != nil {
		t.Fatal(err)
	}

	// Saving twice replaces rather than duplicates
	for k := 0; k < 2; k++ {
		if err := s.SaveSamples(meta); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Samples()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ReadCount != 1500 || got[1].HostSpecies != "lobata" {
		t.Fatalf("Unexpected samples %+v", got)
	}
}

func TestDominanceAndChanges(t *testing.T) {
	s := openMemory(t)

	assignments := []dominance.Assignment{
		{SampleID: "a", Taxon: "C", Abundance: 0.9, Defined: true},
		{SampleID: "b", Abundance: 0.4},
	}
	if err := s.SaveDominance("genus", assignments); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveDominance("profile", assignments[:1]); err != nil {
		t.Fatal(err)
	}

	got, err := s.Dominance("genus")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || !got[0].Defined || got[1].Defined || got[0].Analysis != "genus" {
		t.Fatalf("Unexpected dominance rows %+v", got)
	}

	changes := []dominance.ColonyChange{
		{ColonyID: "1", Years: []int{2015, 2016}, Groups: []string{"C", "D"}, Profiles: []string{"", "D1"}, GenusChanged: true},
		{ColonyID: "2", Years: []int{2015}, Groups: []string{"C"}, Profiles: []string{"C3"}},
	}
	if err := s.SaveChanges(changes); err != nil {
		t.Fatal(err)
	}

	changed, err := s.ChangedColonies()
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 1 || changed[0].ColonyID != "1" || changed[0].Groups != "C,D" || changed[0].Years != "2015,2016" {
		t.Fatalf("Unexpected changed colonies %+v", changed)
	}

	// Undefined dominants are stored the same way the change table writes them
	if changed[0].Profiles != "none,D1" {
		t.Fatalf("Expected none,D1, got %q", changed[0].Profiles)
	}
}

func TestOrdinationAndPairwise(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "results.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	e := ordination.Embedding{
		Labels:        []string{"a", "b"},
		Coords:        mat.NewDense(2, 2, []float64{1, 2, 3, 4}),
		Stress:        0.25,
		LowConfidence: true,
	}
	if err := s.SaveOrdination("variants", e); err != nil {
		t.Fatal(err)
	}

	rows, err := s.Ordination("variants")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1].Axis2 != 4 || !rows[0].LowConfidence || rows[0].Stress != 0.25 {
		t.Fatalf("Unexpected ordination rows %+v", rows)
	}

	results := []permanova.PairResult{
		{GroupA: "capitata", GroupB: "lobata", NA: 4, NB: 5, Tested: true, F: 2, P: 0.01, PAdjusted: 0.02, Significant: true},
		{GroupA: "capitata", GroupB: "meandrina", NA: 4, NB: 1, Reason: "group \"meandrina\" has 1 samples, need at least 2"},
	}
	if err := s.SavePairwise("Cladocopium", results); err != nil {
		t.Fatal(err)
	}
	if err := s.SavePairwise("Durusdinium", results[1:]); err != nil {
		t.Fatal(err)
	}

	pairs, err := s.Pairwise("Cladocopium")
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 2 || pairs[1].Tested || pairs[1].Reason == "" || pairs[0].P != 0.01 {
		t.Fatalf("Unexpected pairs %+v", pairs)
	}

	significant, err := s.SignificantPairs()
	if err != nil {
		t.Fatal(err)
	}
	if len(significant) != 1 || significant[0].Batch != "Cladocopium" {
		t.Fatalf("Unexpected significant pairs %+v", significant)
	}
}
