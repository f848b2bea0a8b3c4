package db

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

type InsertCanonicalArticleParams struct {
	Title              string
	Summary            string
	Content            string
	URL                *string
	ImageURL           *string
	PublishedAt        *time.Time
	OriginRawArticleID *int64
	SynthesisRunUUID   string
	CategoryIDs        []int64
	SourceIDs          []int64
	CreatedAt          time.Time
}

type InsertCanonicalArticleResult struct {
	ArticleID        int64
	LinkedCategories int64
	LinkedSources    int64
}

// InsertCanonicalArticles stores every synthesized article of one run and
// their taxonomy links in a single transaction: either all rows land or none
// do. Link ids are joined against the taxonomy tables, so ids that no longer
// exist are skipped.
func (p *Pool) InsertCanonicalArticles(ctx context.Context, batch []InsertCanonicalArticleParams) ([]InsertCanonicalArticleResult, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	results := make([]InsertCanonicalArticleResult, 0, len(batch))
	err := p.withTx(ctx, func(tx Tx) error {
		for i, params := range batch {
			result, err := insertCanonicalArticleTx(ctx, tx, params)
			if err != nil {
				return fmt.Errorf("canonical article %d of %d: %w", i+1, len(batch), err)
			}
			results = append(results, result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func insertCanonicalArticleTx(ctx context.Context, tx Tx, params InsertCanonicalArticleParams) (InsertCanonicalArticleResult, error) {
	const insertArticle = `
INSERT INTO news.articles (
	title,
	summary,
	content,
	url,
	image_url,
	published_at,
	origin_raw_article_id,
	synthesis_run_uuid,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, '')::uuid, $9, $9)
RETURNING article_id
`

	var result InsertCanonicalArticleResult
	if err := tx.QueryRow(
		ctx,
		insertArticle,
		params.Title,
		params.Summary,
		params.Content,
		params.URL,
		params.ImageURL,
		params.PublishedAt,
		params.OriginRawArticleID,
		params.SynthesisRunUUID,
		params.CreatedAt,
	).Scan(&result.ArticleID); err != nil {
		return InsertCanonicalArticleResult{}, fmt.Errorf("insert canonical article: %w", err)
	}

	linked, err := linkTaxonomyTx(ctx, tx, "news.article_categories", "category_id", categoriesTable, result.ArticleID, params.CategoryIDs)
	if err != nil {
		return InsertCanonicalArticleResult{}, err
	}
	result.LinkedCategories = linked

	linked, err = linkTaxonomyTx(ctx, tx, "news.article_sources", "source_id", sourcesTable, result.ArticleID, params.SourceIDs)
	if err != nil {
		return InsertCanonicalArticleResult{}, err
	}
	result.LinkedSources = linked
	return result, nil
}

func linkTaxonomyTx(
	ctx context.Context,
	tx Tx,
	joinTable string,
	joinColumn string,
	source taxonomyTable,
	articleID int64,
	ids []int64,
) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	// The inner select keeps '?' placeholders; the outer builder numbers them.
	existing := sq.Select().
		Column(sq.Expr("CAST(? AS bigint)", articleID)).
		Column(source.idColumn).
		From(source.table).
		Where(sq.Eq{source.idColumn: ids})

	q, args, err := psql.Insert(joinTable).
		Columns("article_id", joinColumn).
		Select(existing).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s insert: %w", joinTable, err)
	}

	tag, err := tx.Exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("insert %s article_id=%d: %w", joinTable, articleID, err)
	}
	return tag.RowsAffected(), nil
}

func (p *Pool) CountCanonicalArticles(ctx context.Context) (int64, error) {
	var count int64
	if err := p.QueryRow(ctx, `SELECT COUNT(*) FROM news.articles`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count canonical articles: %w", err)
	}
	return count, nil
}
