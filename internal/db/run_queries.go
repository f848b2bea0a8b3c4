package db

import (
	"context"
	"fmt"
	"time"
)

const (
	RunStatusRunning    = "running"
	RunStatusCompleted  = "completed"
	RunStatusNoClusters = "no_clusters"
	RunStatusFailed     = "failed"
)

type FinishSynthesisRunParams struct {
	RunUUID          string
	Status           string
	FetchedCount     int
	EdgeCount        int
	ClusterCount     int
	SynthesizedCount int
	PersistedCount   int
	MarkedCount      int64
	SynthesisFailed  bool
	ErrorMessage     string
	FinishedAt       time.Time
}

type SynthesisRunRecord struct {
	RunUUID          string     `json:"run_uuid"`
	Trigger          string     `json:"trigger"`
	Status           string     `json:"status"`
	FetchedCount     int        `json:"fetched_count"`
	EdgeCount        int        `json:"edge_count"`
	ClusterCount     int        `json:"cluster_count"`
	SynthesizedCount int        `json:"synthesized_count"`
	PersistedCount   int        `json:"persisted_count"`
	MarkedCount      int64      `json:"marked_count"`
	SynthesisFailed  bool       `json:"synthesis_failed"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}

const maxRunErrorLength = 4000

func (p *Pool) StartSynthesisRun(ctx context.Context, runUUID, trigger string, startedAt time.Time) error {
	const q = `
INSERT INTO news.synthesis_runs (run_uuid, trigger_source, status, started_at)
VALUES ($1::uuid, $2, 'running', $3)
`

	if _, err := p.Exec(ctx, q, runUUID, trigger, startedAt); err != nil {
		return fmt.Errorf("insert synthesis run: %w", err)
	}
	return nil
}

func (p *Pool) FinishSynthesisRun(ctx context.Context, params FinishSynthesisRunParams) error {
	const q = `
UPDATE news.synthesis_runs
SET
	status = $2,
	fetched_count = $3,
	edge_count = $4,
	cluster_count = $5,
	synthesized_count = $6,
	persisted_count = $7,
	marked_count = $8,
	synthesis_failed = $9,
	error_message = NULLIF($10, ''),
	finished_at = $11
WHERE run_uuid = $1::uuid
`

	message := params.ErrorMessage
	if len(message) > maxRunErrorLength {
		message = message[:maxRunErrorLength]
	}

	tag, err := p.Exec(
		ctx,
		q,
		params.RunUUID,
		params.Status,
		params.FetchedCount,
		params.EdgeCount,
		params.ClusterCount,
		params.SynthesizedCount,
		params.PersistedCount,
		params.MarkedCount,
		params.SynthesisFailed,
		message,
		params.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("finish synthesis run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish synthesis run %s: %w", params.RunUUID, ErrNoRows)
	}
	return nil
}

func (p *Pool) ListSynthesisRuns(ctx context.Context, limit int) ([]SynthesisRunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	q, args, err := psql.Select(
		"run_uuid::text",
		"trigger_source",
		"status",
		"fetched_count",
		"edge_count",
		"cluster_count",
		"synthesized_count",
		"persisted_count",
		"marked_count",
		"synthesis_failed",
		"error_message",
		"started_at",
		"finished_at",
	).
		From("news.synthesis_runs").
		OrderBy("started_at DESC", "run_id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build synthesis runs query: %w", err)
	}

	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select synthesis runs: %w", err)
	}
	defer rows.Close()

	out := make([]SynthesisRunRecord, 0, limit)
	for rows.Next() {
		var rec SynthesisRunRecord
		if err := rows.Scan(
			&rec.RunUUID,
			&rec.Trigger,
			&rec.Status,
			&rec.FetchedCount,
			&rec.EdgeCount,
			&rec.ClusterCount,
			&rec.SynthesizedCount,
			&rec.PersistedCount,
			&rec.MarkedCount,
			&rec.SynthesisFailed,
			&rec.ErrorMessage,
			&rec.StartedAt,
			&rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan synthesis run: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate synthesis runs: %w", err)
	}
	return out, nil
}
