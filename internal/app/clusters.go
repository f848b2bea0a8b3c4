package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/cli"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/cluster"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/prompt"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/synthesis"
)

func runClusters(args []string) int {
	fs := flag.NewFlagSet("clusters", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	threshold := fs.Float64("threshold", 0, "Similarity threshold in (0,1]; 0 uses SIMILARITY_THRESHOLD")
	out := fs.String("out", "", "Write the export to this file instead of stdout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *threshold < 0 || *threshold > 1 {
		fmt.Fprintln(os.Stderr, "--threshold must be within (0,1], or 0 for the configured value")
		return 2
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

	// Preview never calls the synthesis service.
	orch, err := newOrchestrator(cfg, pool, unusedSynthesizer{}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize orchestrator: %v\n", err)
		return 1
	}

	ctx, stop := signalContext()
	defer stop()

	doc, err := orch.PreviewClusters(ctx, *threshold)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cluster export failed: %v\n", err)
		return 1
	}

	if path := strings.TrimSpace(*out); path != "" {
		if err := writeExport(path, doc); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write export: %v\n", err)
			return 1
		}
		fmt.Printf("clusters=%d threshold=%.2f out=%s\n", doc.Meta.TotalClusters, doc.Meta.SimilarityThreshold, path)
		return 0
	}

	if err := printJSON(doc); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		return 1
	}
	return 0
}

func writeExport(path string, doc cluster.ExportDocument) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	return os.WriteFile(path, append(payload, '\n'), 0o644)
}

type unusedSynthesizer struct{}

func (unusedSynthesizer) Synthesize(context.Context, prompt.Request) synthesis.Result {
	return synthesis.Result{Status: synthesis.StatusFailed, Err: synthesis.ErrSynthesisFailed}
}
