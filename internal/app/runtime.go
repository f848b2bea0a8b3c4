package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/cli"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/cluster"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/config"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/db"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/logging"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/orchestrator"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/prompt"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/synthesis"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/trigger"
)

const defaultConnectTimeout = 10 * time.Second

// loadRuntime overlays the .env file, then loads config and the logger.
// Failures are printed; the caller only returns exit code 1.
func loadRuntime(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, bool) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, zerolog.Nop(), false
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return nil, zerolog.Nop(), false
	}
	return cfg, logger, true
}

func connectPool(cfg *config.Config, logger zerolog.Logger) (*db.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("database connection failed")
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return pool, nil
}

func newGateway(cfg *config.Config, logger zerolog.Logger) (*synthesis.Gateway, error) {
	return synthesis.NewGateway(synthesis.Options{
		Endpoint:        cfg.SynthesisEndpoint,
		APIKey:          cfg.SynthesisAPIKey,
		Timeout:         cfg.SynthesisTimeout,
		BreakerFailures: cfg.SynthesisBreakerFailures,
		BreakerCooldown: cfg.SynthesisBreakerCooldown,
	}, logger)
}

func newOrchestrator(cfg *config.Config, pool *db.Pool, gateway orchestrator.Synthesizer, logger zerolog.Logger) (*orchestrator.Service, error) {
	rule, err := cluster.ParsePrimaryRule(cfg.ClusterPrimaryRule)
	if err != nil {
		return nil, err
	}

	return orchestrator.NewService(orchestrator.Deps{
		Articles: pool,
		Taxonomy: pool,
		Ledger:   pool,
		Gateway:  gateway,
		Logger:   logger,
	}, orchestrator.Options{
		Threshold:       cfg.SimilarityThreshold,
		Workers:         cfg.SimilarityWorkers,
		PrimaryRule:     rule,
		ProcessedPolicy: cfg.ProcessedPolicy,
		Prompt: prompt.Options{
			ContentLimit:        cfg.PromptContentLimit,
			DefaultCategoryID:   cfg.PromptDefaultCategoryID,
			DefaultCategoryName: cfg.PromptDefaultCategoryName,
		},
	})
}

func newFetcher(cfg *config.Config, logger zerolog.Logger) (trigger.Fetcher, error) {
	if strings.TrimSpace(cfg.IngestWebhookURL) == "" {
		return trigger.NewNoopFetcher(logger), nil
	}
	return trigger.NewWebhookFetcher(trigger.WebhookOptions{
		URL:         cfg.IngestWebhookURL,
		MinInterval: cfg.IngestWebhookMinInterval,
	})
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func loadJSONInput(inlineValue, filePath, label string) (json.RawMessage, error) {
	if path := strings.TrimSpace(filePath); path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s file %q: %w", label, path, err)
		}
		trimmed := strings.TrimSpace(string(payload))
		if trimmed == "" {
			return nil, fmt.Errorf("%s file %q is empty", label, path)
		}
		return json.RawMessage(trimmed), nil
	}

	trimmed := strings.TrimSpace(inlineValue)
	if trimmed == "" {
		return nil, fmt.Errorf("%s JSON is empty", label)
	}
	return json.RawMessage(trimmed), nil
}
