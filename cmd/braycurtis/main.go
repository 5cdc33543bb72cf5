// braycurtis computes the pairwise Bray-Curtis dissimilarity between the
// samples of one abundance table.
package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"os"

	"cloud.google.com/go/storage"
	"github.com/reefgenomics/symbiomisc"
	"github.com/reefgenomics/symbiomisc/community"
	_ "github.com/reefgenomics/symbiomisc/compileinfoprint"
	"github.com/reefgenomics/symbiomisc/ordination"
	"github.com/reefgenomics/symbiomisc/report"
	"github.com/reefgenomics/symbiomisc/table"
)

func main() {
	var variantsPath, npyPath string
	var floor float64
	var sqrt, cluster bool

	flag.StringVar(&variantsPath, "variants", "", "Post-MED sequence variant count table (local or gs://)")
	flag.Float64Var(&floor, "floor", community.DefaultFloor, "Relative abundances below this are set to zero")
	flag.BoolVar(&sqrt, "sqrt", true, "Square-root transform relative abundances before computing distances")
	flag.BoolVar(&cluster, "cluster", false, "Order rows and columns by complete-linkage clustering")
	flag.StringVar(&npyPath, "npy", "", "(Optional) Also write the matrix as a .npy file to this path")
	flag.Parse()

	if variantsPath == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(variantsPath, npyPath, floor, sqrt, cluster); err != nil {
		log.Fatalln(err)
	}
}

func run(variantsPath, npyPath string, floor float64, sqrt, cluster bool) error {
	ctx := context.Background()

	var client *storage.Client
	if symbiomisc.IsGoogleStoragePath(variantsPath) {
		var err error
		client, err = storage.NewClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()
	}

	counts, err := table.LoadVariants(ctx, variantsPath, table.DefaultVariantSchema(), client)
	if err != nil {
		return err
	}

	m := community.ApplyFloor(community.ToRelativeAbundance(counts), floor)
	if sqrt {
		m = community.VarianceStabilize(m)
	}

	d, err := ordination.Distance(m, ordination.MetricBray)
	if err != nil {
		return err
	}
	log.Printf("Computed %d x %d dissimilarities\n", d.N(), d.N())

	if cluster {
		dendro, err := ordination.Cluster(d)
		if err != nil {
			return err
		}
		d = d.Subset(dendro.OrderedLabels())
	}

	if npyPath != "" {
		if err := report.WriteNumpyFile(npyPath, d); err != nil {
			return err
		}
		log.Printf("Wrote %s\n", npyPath)
	}

	w := bufio.NewWriter(os.Stdout)
	if err := report.WriteDissimilarity(w, d); err != nil {
		return err
	}

	return w.Flush()
}
