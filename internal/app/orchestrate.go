package app

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/cli"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/orchestrator"
)

func runOrchestrate(args []string) int {
	fs := flag.NewFlagSet("orchestrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	includeResults := fs.Bool("results", false, "Include synthesized articles in the printed report")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "orchestrate does not accept positional arguments")
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

	gateway, err := newGateway(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize synthesis gateway: %v\n", err)
		return 1
	}
	orch, err := newOrchestrator(cfg, pool, gateway, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize orchestrator: %v\n", err)
		return 1
	}

	ctx, stop := signalContext()
	defer stop()

	report := orch.Run(ctx, orchestrator.TriggerCLI)
	if !*includeResults {
		report.Results = nil
	}
	if err := printJSON(report); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		return 1
	}
	return orchestrateExitCode(report)
}

func orchestrateExitCode(report orchestrator.Report) int {
	switch {
	case report.Outcome == orchestrator.OutcomeFailed:
		return 1
	case report.SynthesisFailed:
		return 3
	default:
		return 0
	}
}
