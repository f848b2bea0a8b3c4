package db

import (
	"context"
	"fmt"
	"time"
)

type PipelineStats struct {
	RawArticles         int64      `json:"raw_articles"`
	UnprocessedArticles int64      `json:"unprocessed_articles"`
	CanonicalArticles   int64      `json:"canonical_articles"`
	Categories          int64      `json:"categories"`
	Sources             int64      `json:"sources"`
	SynthesisRuns       int64      `json:"synthesis_runs"`
	LastFetchedAt       *time.Time `json:"last_fetched_at,omitempty"`
	LastRunStartedAt    *time.Time `json:"last_run_started_at,omitempty"`
	LastRunStatus       *string    `json:"last_run_status,omitempty"`
}

func (p *Pool) QueryPipelineStats(ctx context.Context) (PipelineStats, error) {
	const q = `
WITH raw_counts AS (
	SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE processed = false) AS unprocessed,
		MAX(fetched_at) AS last_fetched_at
	FROM news.raw_articles
),
last_run AS (
	SELECT started_at, status
	FROM news.synthesis_runs
	ORDER BY started_at DESC, run_id DESC
	LIMIT 1
)
SELECT
	rc.total,
	rc.unprocessed,
	(SELECT COUNT(*) FROM news.articles),
	(SELECT COUNT(*) FROM news.categories),
	(SELECT COUNT(*) FROM news.sources),
	(SELECT COUNT(*) FROM news.synthesis_runs),
	rc.last_fetched_at,
	(SELECT started_at FROM last_run),
	(SELECT status FROM last_run)
FROM raw_counts rc
`

	var stats PipelineStats
	if err := p.QueryRow(ctx, q).Scan(
		&stats.RawArticles,
		&stats.UnprocessedArticles,
		&stats.CanonicalArticles,
		&stats.Categories,
		&stats.Sources,
		&stats.SynthesisRuns,
		&stats.LastFetchedAt,
		&stats.LastRunStartedAt,
		&stats.LastRunStatus,
	); err != nil {
		return PipelineStats{}, fmt.Errorf("query pipeline stats: %w", err)
	}
	return stats, nil
}
