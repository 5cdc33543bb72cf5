package table

import (
	"context"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/reefgenomics/symbiomisc"
	"github.com/reefgenomics/symbiomisc/community"
)

// ProfileSchema describes a SymPortal type-profile table: a block of header
// rows carrying profile-level tags (label in LabelColumn, one value per
// profile column), then one row of counts per sample.
type ProfileSchema struct {
	HeaderRows   int    `json:"header_rows"`
	LabelColumn  int    `json:"label_column"`
	SampleColumn int    `json:"sample_column"`
	SkipColumns  int    `json:"skip_columns"`
	NameLabel    string `json:"name_label"`
	CladeLabel   string `json:"clade_label"`
	SampleHeader string `json:"sample_header"`
	FooterPrefix string `json:"footer_prefix"`
	Delimiter    rune   `json:"delimiter"`
}

func DefaultProfileSchema() ProfileSchema {
	return ProfileSchema{
		HeaderRows:   7,
		LabelColumn:  1,
		SampleColumn: 1,
		SkipColumns:  2,
		NameLabel:    "ITS2 type profile",
		CladeLabel:   "Clade",
		SampleHeader: "sample_name",
		FooterPrefix: "Sequence accession",
	}
}

// Validate rejects column positions and labels that no table can satisfy.
func (s ProfileSchema) Validate() error {
	switch {
	case s.HeaderRows < 1:
		return symbiomisc.Malformed("", "profile schema header_rows must be positive, got %d", s.HeaderRows)
	case s.LabelColumn < 0, s.SampleColumn < 0, s.SkipColumns < 0:
		return symbiomisc.Malformed("", "profile schema columns must not be negative (label %d, sample %d, skip %d)", s.LabelColumn, s.SampleColumn, s.SkipColumns)
	case s.NameLabel == "" || s.CladeLabel == "":
		return symbiomisc.Malformed("", "profile schema must name the profile and clade rows")
	}
	return nil
}

// VariantSchema describes a wide sequence-variant table: a header row, a
// fixed number of leading non-data columns, then one column per variant.
type VariantSchema struct {
	SampleColumn string `json:"sample_column"`
	SkipColumns  int    `json:"skip_columns"`
	FooterPrefix string `json:"footer_prefix"`
	Delimiter    rune   `json:"delimiter"`
}

func DefaultVariantSchema() VariantSchema {
	return VariantSchema{
		SampleColumn: "sample_name",
		SkipColumns:  2,
		FooterPrefix: "Sequence accession",
	}
}

// Validate rejects column settings that no table can satisfy.
func (s VariantSchema) Validate() error {
	if s.SampleColumn == "" {
		return symbiomisc.Malformed("", "variant schema does not name the sample column")
	}
	if s.SkipColumns < 0 {
		return symbiomisc.Malformed("", "variant schema skip_columns must not be negative, got %d", s.SkipColumns)
	}
	return nil
}

// Profiles is a loaded type-profile table.
type Profiles struct {
	Matrix   community.Matrix
	Taxonomy community.Taxonomy

	// label -> profile -> value, for every header row
	Tags map[string]map[string]string
}

func LoadProfiles(ctx context.Context, path string, schema ProfileSchema, client *storage.Client) (Profiles, error) {
	b, err := symbiomisc.ReadAll(ctx, path, client)
	if err != nil {
		return Profiles{}, err
	}
	return readProfiles(path, b, schema)
}

func ReadProfiles(b []byte, schema ProfileSchema) (Profiles, error) {
	return readProfiles("", b, schema)
}

func readProfiles(source string, b []byte, schema ProfileSchema) (Profiles, error) {
	if err := schema.Validate(); err != nil {
		return Profiles{}, err
	}

	rows, err := readDelimited(b, schema.Delimiter)
	if err != nil {
		return Profiles{}, err
	}

	if len(rows) < schema.HeaderRows {
		return Profiles{}, symbiomisc.Malformed(source, "expected %d header rows, found %d rows", schema.HeaderRows, len(rows))
	}

	tags := make(map[string][]string)
	for _, row := range rows[:schema.HeaderRows] {
		label := cell(row, schema.LabelColumn)
		if label == "" {
			continue
		}
		if _, exists := tags[label]; exists {
			return Profiles{}, symbiomisc.Malformed(source, "header label %q appears more than once", label)
		}
		tags[label] = valuesFrom(row, schema.SkipColumns)
	}

	names, ok := tags[schema.NameLabel]
	if !ok {
		return Profiles{}, symbiomisc.Malformed(source, "missing profile name row %q", schema.NameLabel)
	}
	clades, ok := tags[schema.CladeLabel]
	if !ok {
		return Profiles{}, symbiomisc.Malformed(source, "missing clade row %q", schema.CladeLabel)
	}
	names = trimTrailingBlanks(names)

	out := Profiles{
		Taxonomy: make(community.Taxonomy, len(names)),
		Tags:     make(map[string]map[string]string, len(tags)),
	}

	for k, name := range names {
		if name == "" {
			return Profiles{}, symbiomisc.Malformed(source, "profile column %d has no name", k+schema.SkipColumns)
		}
		clade := cell(clades, k)
		if clade == "" {
			return Profiles{}, symbiomisc.Malformed(source, "profile %q has no clade", name)
		}
		out.Taxonomy[name] = clade
	}

	for label, values := range tags {
		byProfile := make(map[string]string, len(names))
		for k, name := range names {
			byProfile[name] = cell(values, k)
		}
		out.Tags[label] = byProfile
	}

	data := rows[schema.HeaderRows:]
	if len(data) > 0 && schema.SampleHeader != "" && cell(data[0], schema.SampleColumn) == schema.SampleHeader {
		data = data[1:]
	}

	out.Matrix, err = parseCounts(source, data, schema.SampleColumn, schema.SkipColumns, names, schema.FooterPrefix)
	if err != nil {
		return Profiles{}, err
	}

	return out, nil
}

func LoadVariants(ctx context.Context, path string, schema VariantSchema, client *storage.Client) (community.Matrix, error) {
	b, err := symbiomisc.ReadAll(ctx, path, client)
	if err != nil {
		return community.Matrix{}, err
	}
	return readVariants(path, b, schema)
}

func ReadVariants(b []byte, schema VariantSchema) (community.Matrix, error) {
	return readVariants("", b, schema)
}

func readVariants(source string, b []byte, schema VariantSchema) (community.Matrix, error) {
	if err := schema.Validate(); err != nil {
		return community.Matrix{}, err
	}

	rows, err := readDelimited(b, schema.Delimiter)
	if err != nil {
		return community.Matrix{}, err
	}
	if len(rows) < 1 {
		return community.Matrix{}, symbiomisc.Malformed(source, "variant table has no header")
	}

	header, err := headerIndex(source, rows[0], schema.SampleColumn)
	if err != nil {
		return community.Matrix{}, err
	}
	sampleCol, ok := header[schema.SampleColumn]
	if !ok {
		return community.Matrix{}, symbiomisc.Malformed(source, "missing key column %q", schema.SampleColumn)
	}

	names := trimTrailingBlanks(valuesFrom(rows[0], schema.SkipColumns))
	for k, name := range names {
		if name == "" {
			return community.Matrix{}, symbiomisc.Malformed(source, "variant column %d has no name", k+schema.SkipColumns)
		}
	}

	return parseCounts(source, rows[1:], sampleCol, schema.SkipColumns, names, schema.FooterPrefix)
}

// parseCounts reads per-sample count rows until a blank or footer row.
func parseCounts(source string, rows [][]string, sampleCol, skip int, taxa []string, footerPrefix string) (community.Matrix, error) {
	samples := make([]string, 0, len(rows))
	data := make([]float64, 0, len(rows)*len(taxa))

	for lineNo, row := range rows {
		if isBlank(row) || (footerPrefix != "" && strings.HasPrefix(cell(row, 0), footerPrefix)) {
			break
		}

		id := cell(row, sampleCol)
		if id == "" {
			return community.Matrix{}, symbiomisc.Malformed(source, "count row %d has no sample identifier", lineNo+1)
		}
		samples = append(samples, id)

		for k, taxon := range taxa {
			raw := cell(row, skip+k)
			if raw == "" {
				data = append(data, 0)
				continue
			}

			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v < 0 {
				return community.Matrix{}, symbiomisc.Malformed(source, "sample %q taxon %q: invalid count %q", id, taxon, raw)
			}
			data = append(data, v)
		}
	}

	m, err := community.NewMatrix(samples, taxa, data, community.Counts)
	if err != nil {
		if e, ok := err.(*symbiomisc.MalformedInputError); ok {
			e.Source = source
		}
		return community.Matrix{}, err
	}

	return m, nil
}

func valuesFrom(row []string, skip int) []string {
	if skip >= len(row) {
		return nil
	}
	return row[skip:]
}

func trimTrailingBlanks(v []string) []string {
	end := len(v)
	for end > 0 && v[end-1] == "" {
		end--
	}
	return v[:end]
}
