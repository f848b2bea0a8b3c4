package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/cli"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/ingest"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/reader"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/taxonomy"
)

type payloadIngester interface {
	IngestOne(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

type namedPayload struct {
	name string
	body json.RawMessage
}

// ingestTally counts results by status; Failed counts payloads that errored.
type ingestTally struct {
	ByStatus map[ingest.Status]int
	Failed   int
}

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Timeout per payload")
	payload := fs.String("payload", "", "Raw article payload JSON")
	payloadFile := fs.String("payload-file", "", "Path to payload JSON file (overrides --payload)")
	payloadDir := fs.String("payload-dir", "", "Directory of payload JSON files (overrides --payload and --payload-file)")
	fillContent := fs.Bool("fill-content", false, "Fetch the article page when the payload has no content")
	taxonomyFile := fs.String("taxonomy-file", "", "Seed YAML with relevance_keywords (default: built-in seed)")
	relevance := fs.Bool("relevance-filter", true, "Skip payloads that mention no relevance keyword")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	payloads, err := collectPayloads(*payload, *payloadFile, *payloadDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
	}

	var filter *ingest.RelevanceFilter
	if *relevance {
		seed, err := taxonomy.Load(*taxonomyFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load relevance keywords: %v\n", err)
			return 2
		}
		filter = ingest.NewRelevanceFilter(seed.RelevanceKeywords)
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

	svc := ingest.NewService(pool, reader.NewFiller(reader.Options{}), logger).WithRelevance(filter)
	tally := ingestPayloads(svc, payloads, *fillContent, *timeout, os.Stdout)
	if len(payloads) > 1 {
		fmt.Println(tally.summary())
	}
	if tally.Failed > 0 {
		return 1
	}
	return 0
}

func collectPayloads(inline, file, dir string) ([]namedPayload, error) {
	if root := strings.TrimSpace(dir); root != "" {
		files, err := collectJSONFiles(root, true)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no .json files found under %s", root)
		}
		payloads := make([]namedPayload, 0, len(files))
		for _, path := range files {
			body, err := loadJSONInput("", path, "payload")
			if err != nil {
				return nil, err
			}
			payloads = append(payloads, namedPayload{name: path, body: body})
		}
		return payloads, nil
	}

	body, err := loadJSONInput(inline, file, "payload")
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(file)
	if name == "" {
		name = "payload"
	}
	return []namedPayload{{name: name, body: body}}, nil
}

func ingestPayloads(svc payloadIngester, payloads []namedPayload, fillContent bool, timeout time.Duration, out io.Writer) ingestTally {
	tally := ingestTally{ByStatus: map[ingest.Status]int{}}
	for _, p := range payloads {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		result, err := svc.IngestOne(ctx, ingest.Request{Payload: p.body, FillContent: fillContent})
		cancel()
		if err != nil {
			tally.Failed++
			fmt.Fprintf(os.Stderr, "FAILED %s: %v\n", p.name, err)
			continue
		}
		tally.ByStatus[result.Status]++

		line := fmt.Sprintf("%s status=%s", p.name, result.Status)
		if result.RawArticleID != nil {
			line += fmt.Sprintf(" raw_article_id=%d language=%s filled=%t", *result.RawArticleID, result.Language, result.Filled)
		}
		if result.Reason != "" {
			line += fmt.Sprintf(" reason=%q", result.Reason)
		}
		fmt.Fprintln(out, line)
	}
	return tally
}

func (t ingestTally) summary() string {
	statuses := make([]string, 0, len(t.ByStatus))
	for status := range t.ByStatus {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)

	parts := []string{"ingest"}
	for _, status := range statuses {
		parts = append(parts, fmt.Sprintf("%s=%d", status, t.ByStatus[ingest.Status(status)]))
	}
	parts = append(parts, fmt.Sprintf("failed=%d", t.Failed))
	return strings.Join(parts, " ")
}
