package db

import (
	"context"
	"fmt"
	"strings"
)

// TaxonomyEntry is one category or source as exposed to the model.
type TaxonomyEntry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type taxonomyTable struct {
	table    string
	idColumn string
}

var (
	categoriesTable = taxonomyTable{table: "news.categories", idColumn: "category_id"}
	sourcesTable    = taxonomyTable{table: "news.sources", idColumn: "source_id"}
)

func (p *Pool) ListCategories(ctx context.Context) ([]TaxonomyEntry, error) {
	return listTaxonomy(ctx, p, categoriesTable)
}

func (p *Pool) ListSources(ctx context.Context) ([]TaxonomyEntry, error) {
	return listTaxonomy(ctx, p, sourcesTable)
}

// UpsertCategories writes categories by explicit id and advances the id
// sequence past the highest seeded id.
func (p *Pool) UpsertCategories(ctx context.Context, entries []TaxonomyEntry) (int, error) {
	return upsertTaxonomy(ctx, p, categoriesTable, entries)
}

func (p *Pool) UpsertSources(ctx context.Context, entries []TaxonomyEntry) (int, error) {
	return upsertTaxonomy(ctx, p, sourcesTable, entries)
}

func listTaxonomy(ctx context.Context, q Querier, t taxonomyTable) ([]TaxonomyEntry, error) {
	query, args, err := psql.Select(t.idColumn, "name").
		From(t.table).
		OrderBy(t.idColumn).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", t.table, err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", t.table, err)
	}
	defer rows.Close()

	out := make([]TaxonomyEntry, 0, 32)
	for rows.Next() {
		var entry TaxonomyEntry
		if err := rows.Scan(&entry.ID, &entry.Name); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", t.table, err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.table, err)
	}
	return out, nil
}

func upsertTaxonomy(ctx context.Context, p *Pool, t taxonomyTable, entries []TaxonomyEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	written := 0
	err := p.withTx(ctx, func(tx Tx) error {
		for _, entry := range entries {
			name := strings.TrimSpace(entry.Name)
			if entry.ID <= 0 || name == "" {
				return fmt.Errorf("%s entry requires positive id and name (id=%d)", t.table, entry.ID)
			}

			query, args, err := psql.Insert(t.table).
				Columns(t.idColumn, "name").
				Values(entry.ID, name).
				Suffix(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET name = EXCLUDED.name", t.idColumn)).
				ToSql()
			if err != nil {
				return fmt.Errorf("build %s upsert: %w", t.table, err)
			}
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("upsert %s id=%d: %w", t.table, entry.ID, err)
			}
			written++
		}

		syncSeq := fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%s', '%s'), (SELECT COALESCE(MAX(%s), 1) FROM %s))`,
			t.table, t.idColumn, t.idColumn, t.table,
		)
		if _, err := tx.Exec(ctx, syncSeq); err != nil {
			return fmt.Errorf("sync %s sequence: %w", t.table, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}
