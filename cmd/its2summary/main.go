// its2summary prints a quick look at an ITS2 study before the full analysis:
// colonies per site and year, the read depth distribution and the most
// abundant sequence variants. Given the database of an earlier its2pipeline
// run, it also lists the colonies that switched symbionts and the significant
// pairwise comparisons.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/storage"
	"github.com/reefgenomics/symbiomisc"
	"github.com/reefgenomics/symbiomisc/community"
	_ "github.com/reefgenomics/symbiomisc/compileinfoprint"
	"github.com/reefgenomics/symbiomisc/report"
	"github.com/reefgenomics/symbiomisc/store"
	"github.com/reefgenomics/symbiomisc/table"
)

func main() {
	var metadataPath, variantsPath, database string
	var minReads float64
	var top, bins int

	flag.StringVar(&metadataPath, "metadata", "", "Sample metadata table (delimited or .xls; local or gs://)")
	flag.StringVar(&variantsPath, "variants", "", "Post-MED sequence variant count table (local or gs://)")
	flag.Float64Var(&minReads, "min-reads", 0, "(Optional) Drop samples with fewer reads than this before summarizing")
	flag.IntVar(&top, "top", 20, "Number of sequence variants to list")
	flag.IntVar(&bins, "bins", 20, "Number of histogram bins for read depth")
	flag.StringVar(&database, "db", "", "(Optional) SQLite database written by its2pipeline")
	flag.Parse()

	if metadataPath == "" || variantsPath == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(metadataPath, variantsPath, minReads, top, bins); err != nil {
		log.Fatalln(err)
	}

	if database != "" {
		if err := summarizeRun(database); err != nil {
			log.Fatalln(err)
		}
	}
}

func summarizeRun(path string) error {
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	changes, err := db.ChangedColonies()
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Colonies with a change in dominant symbiont (%d)\n", len(changes))
	for _, c := range changes {
		fmt.Printf("%s\t%s %s\t%s\t%s\n", c.ColonyID, c.HostGenus, c.HostSpecies, c.Years, c.Groups)
	}

	pairs, err := db.SignificantPairs()
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Significant pairwise PERMANOVA comparisons (%d)\n", len(pairs))
	for _, p := range pairs {
		fmt.Printf("%s\t%s vs %s\tF=%.3f\tp=%.4f\tp_adj=%.4f\n", p.Batch, p.GroupA, p.GroupB, p.F, p.P, p.PAdjusted)
	}

	return nil
}

func run(metadataPath, variantsPath string, minReads float64, top, bins int) error {
	ctx := context.Background()

	var client *storage.Client
	if symbiomisc.IsGoogleStoragePath(metadataPath) || symbiomisc.IsGoogleStoragePath(variantsPath) {
		var err error
		client, err = storage.NewClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()
	}

	meta, err := table.LoadMetadata(ctx, metadataPath, table.DefaultMetadataSchema(), client)
	if err != nil {
		return err
	}

	variants, err := table.LoadVariants(ctx, variantsPath, table.DefaultVariantSchema(), client)
	if err != nil {
		return err
	}

	counts, joined, err := table.Join(meta, variants)
	if err != nil {
		return err
	}

	if minReads > 0 {
		counts, joined = community.Filter(counts, joined, community.MinReads(minReads))
	}
	log.Printf("%d samples with metadata and counts\n", joined.Len())

	fmt.Println("Colonies per site and year")
	if err := report.WriteCrossTab(os.Stdout, report.ColonyCounts(joined)); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Reads per sample")
	if err := report.ReadCountHistogram(os.Stdout, joined, bins); err != nil {
		return err
	}

	summary := community.Describe(community.ToRelativeAbundance(community.PruneEmptyTaxa(counts)))
	if len(summary) == 0 {
		return nil
	}
	if top > 0 && top < len(summary) {
		summary = summary[:top]
	}

	fmt.Println()
	fmt.Println("Most abundant sequence variants (relative abundance)")
	return report.WriteTSV(os.Stdout, &summary)
}
