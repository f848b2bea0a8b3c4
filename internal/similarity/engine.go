// Package similarity scores raw articles against each other with
// term-frequency cosine similarity.
//
// Every unordered pair of a batch is compared, so a batch of n documents
// costs n(n-1)/2 comparisons, each linear in the two documents' distinct
// token counts. There is no index and no approximation: batch size is the
// scaling limit. Rows of the pairwise matrix are spread over a bounded
// worker pool; the emitted edges do not depend on the worker count.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultThreshold = 0.5
	DefaultWorkers   = 4
)

var ErrDuplicateDocument = errors.New("duplicate document id")

// Document is the text of one raw article.
type Document struct {
	ID          int64
	Title       string
	Description string
	Content     string
}

// Text joins the scored fields without weighting.
func (d Document) Text() string {
	return strings.Join([]string{d.Title, d.Description, d.Content}, " ")
}

// Edge links two documents whose similarity reached the threshold. A is
// always the smaller id.
type Edge struct {
	A     int64   `json:"id1"`
	B     int64   `json:"id2"`
	Score float64 `json:"similarity"`
}

type Options struct {
	Threshold float64
	Workers   int
}

type Engine struct {
	threshold float64
	workers   int
}

func NewEngine(opts Options) *Engine {
	threshold := opts.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Engine{threshold: threshold, workers: workers}
}

func (e *Engine) Threshold() float64 {
	return e.threshold
}

func (e *Engine) Workers() int {
	return e.workers
}

func (e *Engine) Vectorize(doc Document) Vector {
	return NewVector(Tokenize(doc.Text()))
}

// Similarity scores two documents directly. It is 0 for a document compared
// with itself by id, since self pairs are never part of the edge set.
func (e *Engine) Similarity(a, b Document) float64 {
	if a.ID == b.ID {
		return 0
	}
	return Cosine(e.Vectorize(a), e.Vectorize(b))
}

// FindEdges returns every pair with score >= threshold, sorted by (A, B).
func (e *Engine) FindEdges(ctx context.Context, docs []Document) ([]Edge, error) {
	if len(docs) < 2 {
		return nil, nil
	}

	sorted := make([]Document, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID == sorted[i-1].ID {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateDocument, sorted[i].ID)
		}
	}

	vectors := make([]Vector, len(sorted))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range sorted {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vectors[i] = e.Vectorize(sorted[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("vectorize documents: %w", err)
	}

	rows := make([][]Edge, len(sorted))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := 0; i < len(sorted)-1; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i] = e.scoreRow(sorted, vectors, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("score document pairs: %w", err)
	}

	var total int
	for _, row := range rows {
		total += len(row)
	}
	edges := make([]Edge, 0, total)
	for _, row := range rows {
		edges = append(edges, row...)
	}
	return edges, nil
}

func (e *Engine) scoreRow(docs []Document, vectors []Vector, i int) []Edge {
	if vectors[i].Empty() {
		return nil
	}

	var row []Edge
	for j := i + 1; j < len(docs); j++ {
		score := Cosine(vectors[i], vectors[j])
		if score >= e.threshold {
			row = append(row, Edge{A: docs[i].ID, B: docs[j].ID, Score: score})
		}
	}
	return row
}
