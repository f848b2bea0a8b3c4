package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	ProcessedPolicyMarkAll          = "mark-all"
	ProcessedPolicyRetainOnFailure  = "retain-on-failure"
	ProcessedPolicyContributingOnly = "contributing-only"

	maxSynthesisTimeout = 30 * time.Minute
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"NP_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"NP_DB_MAX_CONNS" default:"8"`

	SimilarityThreshold float64 `envconfig:"SIMILARITY_THRESHOLD" default:"0.5"`
	SimilarityWorkers   int     `envconfig:"SIMILARITY_WORKERS" default:"4"`
	ClusterPrimaryRule  string  `envconfig:"CLUSTER_PRIMARY_RULE" default:"lowest-id"`

	SynthesisEndpoint        string        `envconfig:"SYNTHESIS_ENDPOINT" default:"https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-pro:generateContent"`
	SynthesisAPIKey          string        `envconfig:"SYNTHESIS_API_KEY" default:""`
	SynthesisTimeout         time.Duration `envconfig:"SYNTHESIS_TIMEOUT" default:"10m"`
	SynthesisBreakerFailures uint32        `envconfig:"SYNTHESIS_BREAKER_FAILURES" default:"3"`
	SynthesisBreakerCooldown time.Duration `envconfig:"SYNTHESIS_BREAKER_COOLDOWN" default:"15m"`

	PromptContentLimit        int    `envconfig:"PROMPT_CONTENT_LIMIT" default:"600"`
	PromptDefaultCategoryID   int64  `envconfig:"PROMPT_DEFAULT_CATEGORY_ID" default:"8"`
	PromptDefaultCategoryName string `envconfig:"PROMPT_DEFAULT_CATEGORY_NAME" default:"General Sustainability"`

	ProcessedPolicy string `envconfig:"PROCESSED_POLICY" default:"mark-all"`

	FetchingEnabled           bool          `envconfig:"FETCHING_ENABLED" default:"true"`
	FetchInterval             time.Duration `envconfig:"FETCH_INTERVAL" default:"15m"`
	FetchInitialDelay         time.Duration `envconfig:"FETCH_INITIAL_DELAY" default:"10s"`
	FetchScheduledLimit       int           `envconfig:"FETCH_SCHEDULED_LIMIT" default:"10"`
	FetchStartupLimit         int           `envconfig:"FETCH_STARTUP_LIMIT" default:"5"`
	SynthesisTriggerThreshold int64         `envconfig:"SYNTHESIS_TRIGGER_THRESHOLD" default:"100"`
	OrchestrateOnStartup      bool          `envconfig:"ORCHESTRATE_ON_STARTUP" default:"false"`

	IngestWebhookURL         string        `envconfig:"INGEST_WEBHOOK_URL" default:""`
	IngestWebhookMinInterval time.Duration `envconfig:"INGEST_WEBHOOK_MIN_INTERVAL" default:"1m"`

	AdminTokenHash     string  `envconfig:"ADMIN_TOKEN_HASH" default:""`
	AdminRateLimit     float64 `envconfig:"ADMIN_RATE_LIMIT" default:"2"`
	CORSAllowedOrigins string  `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("NP_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("NP_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("NP_DB_MIN_CONNS (%d) cannot exceed NP_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in (0, 1]")
	}
	if c.SimilarityWorkers < 1 {
		return fmt.Errorf("SIMILARITY_WORKERS must be >= 1")
	}
	switch strings.ToLower(strings.TrimSpace(c.ClusterPrimaryRule)) {
	case "lowest-id", "earliest-published":
	default:
		return fmt.Errorf("CLUSTER_PRIMARY_RULE must be lowest-id or earliest-published")
	}
	if strings.TrimSpace(c.SynthesisEndpoint) == "" {
		return fmt.Errorf("SYNTHESIS_ENDPOINT is required")
	}
	if c.SynthesisTimeout < time.Second || c.SynthesisTimeout > maxSynthesisTimeout {
		return fmt.Errorf("SYNTHESIS_TIMEOUT must be between 1s and %s", maxSynthesisTimeout)
	}
	if c.SynthesisBreakerFailures < 1 {
		return fmt.Errorf("SYNTHESIS_BREAKER_FAILURES must be >= 1")
	}
	if c.PromptContentLimit < 1 {
		return fmt.Errorf("PROMPT_CONTENT_LIMIT must be >= 1")
	}
	switch c.ProcessedPolicy {
	case ProcessedPolicyMarkAll, ProcessedPolicyRetainOnFailure, ProcessedPolicyContributingOnly:
	default:
		return fmt.Errorf("PROCESSED_POLICY must be one of %s, %s, %s",
			ProcessedPolicyMarkAll, ProcessedPolicyRetainOnFailure, ProcessedPolicyContributingOnly)
	}
	if c.FetchInterval <= 0 {
		return fmt.Errorf("FETCH_INTERVAL must be > 0")
	}
	if c.FetchScheduledLimit < 1 {
		return fmt.Errorf("FETCH_SCHEDULED_LIMIT must be >= 1")
	}
	if c.FetchStartupLimit < 0 {
		return fmt.Errorf("FETCH_STARTUP_LIMIT must be >= 0")
	}
	if c.SynthesisTriggerThreshold < 1 {
		return fmt.Errorf("SYNTHESIS_TRIGGER_THRESHOLD must be >= 1")
	}
	if c.AdminRateLimit <= 0 {
		return fmt.Errorf("ADMIN_RATE_LIMIT must be > 0")
	}
	return nil
}

func (c *Config) IsLocal() bool {
	return c != nil && strings.EqualFold(strings.TrimSpace(c.Environment), "local")
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
