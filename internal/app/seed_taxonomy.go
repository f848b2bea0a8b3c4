package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/cli"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/taxonomy"
)

func runSeedTaxonomy(args []string) int {
	fs := flag.NewFlagSet("seed-taxonomy", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	file := fs.String("file", "", "YAML seed file (empty uses the built-in seed)")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	dryRun := fs.Bool("dry-run", false, "Parse and validate the seed without writing")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	seed, err := taxonomy.Load(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid seed: %v\n", err)
		return 2
	}
	if *dryRun {
		fmt.Printf("seed valid categories=%d sources=%d\n", len(seed.Categories), len(seed.Sources))
		return 0
	}

	cfg, logger, ok := loadRuntime(envLoader)
	if !ok {
		return 1
	}

	pool, err := connectPool(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := taxonomy.Apply(ctx, pool, seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Seed failed: %v\n", err)
		return 1
	}

	logger.Info().Int("categories", result.Categories).Int("sources", result.Sources).Msg("taxonomy seeded")
	fmt.Printf("seeded categories=%d sources=%d\n", result.Categories, result.Sources)
	return 0
}
