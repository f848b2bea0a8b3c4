package orchestrator

import (
	"context"
	"fmt"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/cluster"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/globaltime"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/similarity"
)

// PreviewClusters clusters the current backlog without taking the run guard
// or writing anything. A threshold of 0 uses the configured one.
func (s *Service) PreviewClusters(ctx context.Context, threshold float64) (cluster.ExportDocument, error) {
	engine := s.engine
	if threshold != 0 {
		if threshold < 0 || threshold > 1 {
			return cluster.ExportDocument{}, fmt.Errorf("threshold must be within (0,1]")
		}
		engine = similarity.NewEngine(similarity.Options{Threshold: threshold, Workers: s.engine.Workers()})
	}

	raws, err := s.articles.ListUnprocessedRawArticles(ctx)
	if err != nil {
		return cluster.ExportDocument{}, fmt.Errorf("fetch unprocessed raw articles: %w", err)
	}
	edges, err := engine.FindEdges(ctx, documents(raws))
	if err != nil {
		return cluster.ExportDocument{}, fmt.Errorf("score similarity: %w", err)
	}

	clusters := cluster.Build(edges, cluster.Options{Rule: s.rule, PublishedAt: publishedAt(raws)})
	return cluster.Export(clusters, clusterArticles(raws), engine.Threshold(), globaltime.UTC()), nil
}
