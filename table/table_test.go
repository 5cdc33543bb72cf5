package table

import (
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/reefgenomics/symbiomisc"
	"github.com/reefgenomics/symbiomisc/community"
)

const metadataTSV = `sample_name	colony_id	host_genus	host_species	site	year	collection_date
KI15a_1	101	Montipora	capitata	KI	2015	
KI16_1	101	Montipora	capitata	KI	2016	
KI16_2	102	Porites	lobata	HP		2016-07-14
KI16_r	RANDOM	Porites	lobata	HP	2016.0	

`

const variantTSV = `sample_uid	sample_name	C3	D1	12345_C
1	KI15a_1	500	0	0
2	KI16_1	1000	400	100
3	KI16_2	0	2000	0
Sequence accession / SymPortal UID	
`

const profileTSV = `	ITS2 type profile UID	11	12
	Clade	C	D
	Majority ITS2 sequence	C3	D1
	ITS2 type profile	C3-C3cc	D1-D4-D6
sample_uid	sample_name		
1	KI15a_1	400	0
2	KI16_1	900	500
`

func testProfileSchema() ProfileSchema {
	schema := DefaultProfileSchema()
	schema.HeaderRows = 4
	return schema
}

func TestReadMetadata(t *testing.T) {
	meta, err := ReadMetadata([]byte(metadataTSV), DefaultMetadataSchema())
	if err != nil {
		t.Fatal(err)
	}

	if meta.Len() != 4 {
		t.Fatalf("Expected 4 samples, got %d", meta.Len())
	}

	for _, v := range []struct {
		ID   string
		Year int
	}{
		{"KI15a_1", 2015},
		{"KI16_2", 2016},
		{"KI16_r", 2016},
	} {
		s, ok := meta.Get(v.ID)
		if !ok || s.Year != v.Year {
			t.Errorf("%s: got %+v, expected year %d", v.ID, s, v.Year)
		}
	}

	s, _ := meta.Get("KI16_2")
	if s.HostGenus != "Porites" || s.HostSpecies != "lobata" || s.Site != "HP" || s.ColonyID != "102" {
		t.Errorf("Unexpected sample %+v", s)
	}
}

func TestReadMetadataSchemaViolations(t *testing.T) {
	for name, input := range map[string]string{
		"missing key column": "sample_name\thost_genus\tyear\nA\tPorites\t2016\n",
		"duplicate sample":   "sample_name\tcolony_id\tyear\nA\t1\t2016\nA\t2\t2016\n",
		"duplicate column":   "sample_name\tcolony_id\tcolony_id\tyear\nA\t1\t1\t2016\n",
		"no year or date":    "sample_name\tcolony_id\nA\t1\n",
	} {
		schema := DefaultMetadataSchema()
		schema.HostGenus, schema.HostSpecies, schema.Site = "", "", ""

		_, err := ReadMetadata([]byte(input), schema)

		var malformed *symbiomisc.MalformedInputError
		if !errors.As(err, &malformed) {
			t.Errorf("%s: expected MalformedInputError, got %v", name, err)
		}
	}
}

func TestReadVariants(t *testing.T) {
	m, err := ReadVariants([]byte(variantTSV), DefaultVariantSchema())
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(m.Samples, []string{"KI15a_1", "KI16_1", "KI16_2"}) {
		t.Fatalf("Unexpected samples %v", m.Samples)
	}
	if !reflect.DeepEqual(m.Taxa, []string{"C3", "D1", "12345_C"}) {
		t.Fatalf("Unexpected taxa %v", m.Taxa)
	}
	if v, _ := m.Value("KI16_1", "D1"); v != 400 {
		t.Fatalf("Expected 400, got %v", v)
	}
}

func TestReadVariantsRejectsDuplicateSamples(t *testing.T) {
	input := "sample_uid\tsample_name\tC3\n1\tA\t5\n2\tA\t6\n"

	_, err := ReadVariants([]byte(input), DefaultVariantSchema())

	var malformed *symbiomisc.MalformedInputError
	if !errors.As(err, &malformed) {
		t.Fatalf("Expected MalformedInputError, got %v", err)
	}
}

// Impossible column settings fail as malformed input instead of panicking
// while slicing rows.
func TestReadersRejectImpossibleSchemas(t *testing.T) {
	variants := DefaultVariantSchema()
	variants.SkipColumns = -1

	noSample := DefaultVariantSchema()
	noSample.SampleColumn = ""

	profileCases := map[string]func(*ProfileSchema){
		"negative skip":   func(s *ProfileSchema) { s.SkipColumns = -1 },
		"negative label":  func(s *ProfileSchema) { s.LabelColumn = -2 },
		"negative sample": func(s *ProfileSchema) { s.SampleColumn = -1 },
		"no header rows":  func(s *ProfileSchema) { s.HeaderRows = -1 },
		"no clade label":  func(s *ProfileSchema) { s.CladeLabel = "" },
	}

	var malformed *symbiomisc.MalformedInputError

	for name, schema := range map[string]VariantSchema{"negative skip": variants, "no sample column": noSample} {
		if _, err := ReadVariants([]byte(variantTSV), schema); !errors.As(err, &malformed) {
			t.Errorf("variants, %s: expected MalformedInputError, got %v", name, err)
		}
	}

	for name, mutate := range profileCases {
		schema := testProfileSchema()
		mutate(&schema)
		if _, err := ReadProfiles([]byte(profileTSV), schema); !errors.As(err, &malformed) {
			t.Errorf("profiles, %s: expected MalformedInputError, got %v", name, err)
		}
	}

	meta := DefaultMetadataSchema()
	meta.ColonyID = ""
	if _, err := ReadMetadata([]byte(metadataTSV), meta); !errors.As(err, &malformed) {
		t.Errorf("metadata without colony column: expected MalformedInputError, got %v", err)
	}
}

func TestReadVariantsRejectsBadCounts(t *testing.T) {
	input := "sample_uid\tsample_name\tC3\n1\tA\tlots\n"
	if _, err := ReadVariants([]byte(input), DefaultVariantSchema()); err == nil {
		t.Fatalf("Expected an error for a non-numeric count")
	}
}

func TestReadProfiles(t *testing.T) {
	p, err := ReadProfiles([]byte(profileTSV), testProfileSchema())
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(p.Matrix.Taxa, []string{"C3-C3cc", "D1-D4-D6"}) {
		t.Fatalf("Unexpected profiles %v", p.Matrix.Taxa)
	}
	if p.Matrix.Rows() != 2 {
		t.Fatalf("Expected 2 samples, got %d", p.Matrix.Rows())
	}
	if p.Taxonomy["D1-D4-D6"] != "D" {
		t.Fatalf("Unexpected taxonomy %v", p.Taxonomy)
	}
	if p.Tags["Majority ITS2 sequence"]["C3-C3cc"] != "C3" {
		t.Fatalf("Unexpected tags %v", p.Tags)
	}
	if v, _ := p.Matrix.Value("KI16_1", "D1-D4-D6"); v != 500 {
		t.Fatalf("Expected 500, got %v", v)
	}
}

func TestReadProfilesMissingCladeRow(t *testing.T) {
	input := strings.Replace(profileTSV, "\tClade\t", "\tLineage\t", 1)

	_, err := ReadProfiles([]byte(input), testProfileSchema())

	var malformed *symbiomisc.MalformedInputError
	if !errors.As(err, &malformed) {
		t.Fatalf("Expected MalformedInputError, got %v", err)
	}
}

func TestReadTaxonomy(t *testing.T) {
	tax, err := ReadTaxonomy([]byte("taxon\tclade\n12345_C\tD\nC3\tC\n"))
	if err != nil {
		t.Fatal(err)
	}
	if tax["12345_C"] != "D" || tax["C3"] != "C" {
		t.Fatalf("Unexpected taxonomy %v", tax)
	}

	if _, err := ReadTaxonomy([]byte("taxon\tclade\nC3\tC\nC3\tD\n")); err == nil {
		t.Fatalf("Expected an error for conflicting clades")
	}
}

func TestJoin(t *testing.T) {
	meta, err := ReadMetadata([]byte(metadataTSV), DefaultMetadataSchema())
	if err != nil {
		t.Fatal(err)
	}
	m, err := ReadVariants([]byte(variantTSV), DefaultVariantSchema())
	if err != nil {
		t.Fatal(err)
	}

	joined, joinedMeta, err := Join(meta, m)
	if err != nil {
		t.Fatal(err)
	}

	if joined.Rows() != 3 || joinedMeta.Len() != 3 {
		t.Fatalf("Expected 3 joined samples, got %d/%d", joined.Rows(), joinedMeta.Len())
	}

	s, _ := joinedMeta.Get("KI16_1")
	if s.ReadCount != 1500 {
		t.Fatalf("Expected 1500 reads, got %v", s.ReadCount)
	}

	filtered, _ := community.Filter(joined, joinedMeta, community.MinReads(1000))
	if !reflect.DeepEqual(filtered.Samples, []string{"KI16_1", "KI16_2"}) {
		t.Fatalf("Unexpected filtered samples %v", filtered.Samples)
	}
}

func TestJoinNoSharedIdentifiers(t *testing.T) {
	meta, _ := community.NewMetadata([]community.Sample{{ID: "x"}})
	m := community.MustMatrix([]string{"y"}, []string{"C3"}, [][]float64{{1}}, community.Counts)

	if _, _, err := Join(meta, m); err == nil {
		t.Fatalf("Expected an error when no identifiers are shared")
	}
}

func TestLoadVariantsGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seqs.txt.gz")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(variantTSV)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	m, err := LoadVariants(context.Background(), path, DefaultVariantSchema(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.Rows() != 3 || m.Cols() != 3 {
		t.Fatalf("Expected 3 x 3, got %d x %d", m.Rows(), m.Cols())
	}
}
