// its2pipeline runs the full symbiont analysis described by a JSON config:
// dominance and switching, ordination, and pairwise PERMANOVA.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	_ "github.com/reefgenomics/symbiomisc/compileinfoprint"
	"github.com/reefgenomics/symbiomisc/config"
	"github.com/reefgenomics/symbiomisc/pipeline"
)

func main() {
	var configPath, outputDir, database string
	var seed int64
	var workers int

	flag.StringVar(&configPath, "config", "", "Path to the JSON config file")
	flag.StringVar(&outputDir, "output", "", "(Optional) Overrides output_dir from the config")
	flag.StringVar(&database, "db", "", "(Optional) Overrides database from the config")
	flag.Int64Var(&seed, "seed", 0, "(Optional) If nonzero, overrides the run seed used by PERMANOVA and by NMDS (unless the config's nmds block sets its own)")
	flag.IntVar(&workers, "workers", 0, "(Optional) If nonzero, overrides the number of PERMANOVA workers")
	flag.Parse()

	if configPath == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.ParseJSONConfigFromPath(configPath)
	if err != nil {
		log.Fatalln(err)
	}

	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if database != "" {
		cfg.Database = database
	}
	if seed != 0 {
		cfg.Seed = seed
	}
	if workers != 0 {
		cfg.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalln(err)
	}

	res, err := pipeline.Run(context.Background(), cfg)
	if err != nil {
		log.Fatalln(err)
	}

	if err := pipeline.Write(cfg, res); err != nil {
		log.Fatalln(err)
	}

	for _, msg := range res.Skipped {
		log.Println("Skipped:", msg)
	}
	for _, msg := range res.Warnings {
		log.Println("Warning:", msg)
	}

	log.Printf("Analyzed %d samples from %d colonies\n", res.Metadata.Len(), len(res.Series))
}
