package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// markProcessedChunk bounds the IN list of a single UPDATE.
const markProcessedChunk = 1000

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// RawArticleRecord is a raw article as the synthesis pipeline consumes it.
type RawArticleRecord struct {
	RawArticleID int64
	APISource    string
	SourceName   string
	Title        string
	Description  string
	Content      string
	URL          string
	ImageURL     string
	Language     string
	PublishedAt  *time.Time
	FetchedAt    time.Time
}

type InsertRawArticleParams struct {
	APISource   string
	SourceName  *string
	Title       string
	Description *string
	Content     *string
	URL         *string
	ImageURL    *string
	Language    string
	PublishedAt *time.Time
	FetchedAt   time.Time
	RawPayload  json.RawMessage
}

func rawArticleColumns() []string {
	return []string{
		"raw_article_id",
		"api_source",
		"COALESCE(source_name, '')",
		"title",
		"COALESCE(description, '')",
		"COALESCE(content, '')",
		"COALESCE(url, '')",
		"COALESCE(image_url, '')",
		"language",
		"published_at",
		"fetched_at",
	}
}

// ListUnprocessedRawArticles returns the whole unprocessed backlog ordered by id.
func (p *Pool) ListUnprocessedRawArticles(ctx context.Context) ([]RawArticleRecord, error) {
	q, args, err := psql.Select(rawArticleColumns()...).
		From("news.raw_articles").
		Where(sq.Eq{"processed": false}).
		OrderBy("raw_article_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build unprocessed raw articles query: %w", err)
	}

	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select unprocessed raw articles: %w", err)
	}
	defer rows.Close()

	out := make([]RawArticleRecord, 0, 128)
	for rows.Next() {
		var rec RawArticleRecord
		if err := rows.Scan(
			&rec.RawArticleID,
			&rec.APISource,
			&rec.SourceName,
			&rec.Title,
			&rec.Description,
			&rec.Content,
			&rec.URL,
			&rec.ImageURL,
			&rec.Language,
			&rec.PublishedAt,
			&rec.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan raw article: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw articles: %w", err)
	}
	return out, nil
}

func (p *Pool) CountUnprocessedRawArticles(ctx context.Context) (int64, error) {
	const q = `SELECT COUNT(*) FROM news.raw_articles WHERE processed = false`

	var count int64
	if err := p.QueryRow(ctx, q).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unprocessed raw articles: %w", err)
	}
	return count, nil
}

// MarkRawArticlesProcessed flips processed for the given ids in one
// transaction. Rows that are already processed are left untouched, so the
// returned count only includes rows flipped by this call.
func (p *Pool) MarkRawArticlesProcessed(ctx context.Context, ids []int64, processedAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var total int64
	err := p.withTx(ctx, func(tx Tx) error {
		for start := 0; start < len(ids); start += markProcessedChunk {
			end := min(start+markProcessedChunk, len(ids))

			q, args, err := psql.Update("news.raw_articles").
				Set("processed", true).
				Set("processed_at", processedAt).
				Where(sq.Eq{"raw_article_id": ids[start:end]}).
				Where(sq.Eq{"processed": false}).
				ToSql()
			if err != nil {
				return fmt.Errorf("build mark processed query: %w", err)
			}

			tag, err := tx.Exec(ctx, q, args...)
			if err != nil {
				return fmt.Errorf("mark raw articles processed: %w", err)
			}
			total += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (p *Pool) RawArticleExistsByURL(ctx context.Context, url string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM news.raw_articles WHERE url = $1)`

	var exists bool
	if err := p.QueryRow(ctx, q, url).Scan(&exists); err != nil {
		return false, fmt.Errorf("check raw article url: %w", err)
	}
	return exists, nil
}

func (p *Pool) RawArticleExistsByTitleAndSource(ctx context.Context, title, sourceName string) (bool, error) {
	const q = `
SELECT EXISTS (
	SELECT 1
	FROM news.raw_articles
	WHERE title = $1
	  AND COALESCE(source_name, '') = $2
)
`

	var exists bool
	if err := p.QueryRow(ctx, q, title, sourceName).Scan(&exists); err != nil {
		return false, fmt.Errorf("check raw article title: %w", err)
	}
	return exists, nil
}

// InsertRawArticle stores one unprocessed raw article. It reports false when
// another row already owns the url.
func (p *Pool) InsertRawArticle(ctx context.Context, params InsertRawArticleParams) (int64, bool, error) {
	const q = `
INSERT INTO news.raw_articles (
	api_source,
	source_name,
	title,
	description,
	content,
	url,
	image_url,
	language,
	published_at,
	fetched_at,
	raw_payload,
	processed,
	created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, false, $10)
ON CONFLICT (url) WHERE url IS NOT NULL DO NOTHING
RETURNING raw_article_id
`

	var payload *string
	if len(params.RawPayload) > 0 {
		text := string(params.RawPayload)
		payload = &text
	}

	var id int64
	err := p.QueryRow(
		ctx,
		q,
		params.APISource,
		params.SourceName,
		params.Title,
		params.Description,
		params.Content,
		params.URL,
		params.ImageURL,
		params.Language,
		params.PublishedAt,
		params.FetchedAt,
		payload,
	).Scan(&id)
	if err != nil {
		if IsNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("insert raw article: %w", err)
	}
	return id, true, nil
}
