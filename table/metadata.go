package table

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/araddon/dateparse"
	"github.com/carbocation/pfx"
	"github.com/extrame/xls"
	"github.com/reefgenomics/symbiomisc"
	"github.com/reefgenomics/symbiomisc/community"
)

// MetadataSchema names the metadata columns that play each role. Empty names
// are ignored, except that SampleID and ColonyID are required and at least
// one of Year and Date must be present in the file.
type MetadataSchema struct {
	SampleID    string `json:"sample_id"`
	ColonyID    string `json:"colony_id"`
	HostGenus   string `json:"host_genus"`
	HostSpecies string `json:"host_species"`
	Site        string `json:"site"`
	Year        string `json:"year"`
	Date        string `json:"date"`

	// Zero means detect from the file
	Delimiter rune `json:"delimiter"`
}

func DefaultMetadataSchema() MetadataSchema {
	return MetadataSchema{
		SampleID:    "sample_name",
		ColonyID:    "colony_id",
		HostGenus:   "host_genus",
		HostSpecies: "host_species",
		Site:        "site",
		Year:        "year",
		Date:        "collection_date",
	}
}

// Validate checks that the key columns are named.
func (s MetadataSchema) Validate() error {
	if s.SampleID == "" || s.ColonyID == "" {
		return symbiomisc.Malformed("", "metadata schema does not name the sample and colony columns")
	}
	return nil
}

// ole2Signature opens every legacy .xls workbook
var ole2Signature = []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}

// LoadMetadata reads a local or gs:// metadata table, delimited or .xls.
func LoadMetadata(ctx context.Context, path string, schema MetadataSchema, client *storage.Client) (community.Metadata, error) {
	b, err := symbiomisc.ReadAll(ctx, path, client)
	if err != nil {
		return community.Metadata{}, err
	}

	var rows [][]string
	if strings.EqualFold(filepath.Ext(path), ".xls") || bytes.HasPrefix(b, ole2Signature) {
		rows, err = readXLS(b)
	} else {
		rows, err = readDelimited(b, schema.Delimiter)
	}
	if err != nil {
		return community.Metadata{}, err
	}

	return parseMetadata(path, rows, schema)
}

// ReadMetadata parses a delimited metadata table.
func ReadMetadata(b []byte, schema MetadataSchema) (community.Metadata, error) {
	rows, err := readDelimited(b, schema.Delimiter)
	if err != nil {
		return community.Metadata{}, err
	}

	return parseMetadata("", rows, schema)
}

// readXLS returns the cells of the first worksheet.
func readXLS(b []byte) ([][]string, error) {
	spreadsheet, err := xls.OpenReader(bytes.NewReader(b), "utf-8")
	if err != nil {
		return nil, pfx.Err(err)
	}

	if spreadsheet.NumSheets() < 1 {
		return nil, symbiomisc.Malformed("", "workbook has no sheets")
	}

	sheet := spreadsheet.GetSheet(0)
	if sheet == nil {
		return nil, symbiomisc.Malformed("", "sheet 0 was nil")
	}

	rows := spreadsheet.ReadAllCells(int(sheet.MaxRow) + 1)
	for _, row := range rows {
		for k, v := range row {
			row[k] = strings.TrimSpace(v)
		}
	}

	return rows, nil
}

func parseMetadata(source string, rows [][]string, schema MetadataSchema) (community.Metadata, error) {
	if err := schema.Validate(); err != nil {
		return community.Metadata{}, err
	}
	if len(rows) < 1 {
		return community.Metadata{}, symbiomisc.Malformed(source, "metadata has no header")
	}

	header, err := headerIndex(source, rows[0],
		schema.SampleID, schema.ColonyID, schema.HostGenus, schema.HostSpecies,
		schema.Site, schema.Year, schema.Date)
	if err != nil {
		return community.Metadata{}, err
	}

	col := func(name string) int {
		if name == "" {
			return -1
		}
		if i, ok := header[name]; ok {
			return i
		}
		return -1
	}

	for _, required := range []string{schema.SampleID, schema.ColonyID} {
		if col(required) < 0 {
			return community.Metadata{}, symbiomisc.Malformed(source, "missing key column %q", required)
		}
	}
	for _, optional := range []string{schema.HostGenus, schema.HostSpecies, schema.Site} {
		if optional != "" && col(optional) < 0 {
			return community.Metadata{}, symbiomisc.Malformed(source, "missing column %q", optional)
		}
	}
	if col(schema.Year) < 0 && col(schema.Date) < 0 {
		return community.Metadata{}, symbiomisc.Malformed(source, "neither a year column %q nor a date column %q is present", schema.Year, schema.Date)
	}

	samples := make([]community.Sample, 0, len(rows)-1)
	for lineNo, row := range rows[1:] {
		if isBlank(row) {
			continue
		}

		s := community.Sample{
			ID:          cell(row, col(schema.SampleID)),
			ColonyID:    cell(row, col(schema.ColonyID)),
			HostGenus:   cell(row, col(schema.HostGenus)),
			HostSpecies: cell(row, col(schema.HostSpecies)),
			Site:        cell(row, col(schema.Site)),
		}

		if s.ID == "" {
			return community.Metadata{}, symbiomisc.Malformed(source, "line %d has no sample identifier", lineNo+2)
		}

		s.Year, err = parseYear(cell(row, col(schema.Year)), cell(row, col(schema.Date)))
		if err != nil {
			return community.Metadata{}, symbiomisc.Malformed(source, "sample %q: %v", s.ID, err)
		}

		samples = append(samples, s)
	}

	meta, err := community.NewMetadata(samples)
	if err != nil {
		return community.Metadata{}, err
	}

	return meta, nil
}

// parseYear prefers an explicit year and falls back to parsing a date.
// Spreadsheets tend to turn years into "2016.0", which is accepted.
func parseYear(year, date string) (int, error) {
	if year != "" {
		if y, err := strconv.Atoi(year); err == nil {
			return y, nil
		}
		f, err := strconv.ParseFloat(year, 64)
		if err != nil || f != math.Trunc(f) {
			return 0, fmt.Errorf("invalid year %q", year)
		}
		return int(f), nil
	}

	if date == "" {
		return 0, fmt.Errorf("no year or date")
	}

	t, err := dateparse.ParseAny(date)
	if err != nil {
		return 0, pfx.Err(err)
	}

	return t.Year(), nil
}
