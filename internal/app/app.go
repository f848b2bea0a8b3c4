package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "serve":
		return runServe(args[1:])
	case "orchestrate", "run-once":
		return runOrchestrate(args[1:])
	case "clusters":
		return runClusters(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "seed-taxonomy":
		return runSeedTaxonomy(args[1:])
	case "hash-token":
		return runHashToken(args[1:])
	case "health":
		return runHealth(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "sustain-insight CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  sustain-insight <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  serve          Start the API server and the background fetch trigger")
	fmt.Fprintln(os.Stderr, "  orchestrate    Run one synthesis cycle over the unprocessed backlog")
	fmt.Fprintln(os.Stderr, "  run-once       Alias for orchestrate")
	fmt.Fprintln(os.Stderr, "  clusters       Export the current backlog clusters as JSON (read-only)")
	fmt.Fprintln(os.Stderr, "  ingest         Insert raw article payloads (one or a directory)")
	fmt.Fprintln(os.Stderr, "  validate       Validate raw article JSON files against the payload schema")
	fmt.Fprintln(os.Stderr, "  seed-taxonomy  Upsert categories and sources from a YAML seed file")
	fmt.Fprintln(os.Stderr, "  hash-token     Hash an admin bearer token for ADMIN_TOKEN_HASH")
	fmt.Fprintln(os.Stderr, "  health         Verify database connectivity")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"sustain-insight <command> -h\" for command-specific flags.")
}
