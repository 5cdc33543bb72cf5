package table

import (
	"bytes"
	"context"
	"encoding/csv"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
	"github.com/reefgenomics/symbiomisc"
	"github.com/reefgenomics/symbiomisc/community"
)

type taxonRecord struct {
	Taxon string `csv:"taxon"`
	Clade string `csv:"clade"`
}

func LoadTaxonomy(ctx context.Context, path string, client *storage.Client) (community.Taxonomy, error) {
	b, err := symbiomisc.ReadAll(ctx, path, client)
	if err != nil {
		return nil, err
	}
	return readTaxonomy(path, b)
}

// ReadTaxonomy parses a two-column taxon/clade table that overrides the
// clades derived from names.
func ReadTaxonomy(b []byte) (community.Taxonomy, error) {
	return readTaxonomy("", b)
}

func readTaxonomy(source string, b []byte) (community.Taxonomy, error) {
	r := csv.NewReader(bytes.NewReader(b))
	r.Comma = symbiomisc.DetermineDelimiterBytes(b)
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	records := []*taxonRecord{}
	if err := gocsv.UnmarshalCSV(r, &records); err != nil {
		return nil, pfx.Err(err)
	}

	out := make(community.Taxonomy, len(records))
	for _, record := range records {
		if record.Taxon == "" || record.Clade == "" {
			return nil, symbiomisc.Malformed(source, "taxonomy row %+v is incomplete", *record)
		}
		if prior, exists := out[record.Taxon]; exists && prior != record.Clade {
			return nil, symbiomisc.Malformed(source, "taxon %q assigned to clades %q and %q", record.Taxon, prior, record.Clade)
		}
		out[record.Taxon] = record.Clade
	}

	return out, nil
}
