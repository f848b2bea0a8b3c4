package cluster

import (
	"time"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/similarity"
)

const ExportSource = "raw_articles"

// Article is the member shape shared by the export document and the
// synthesis prompt.
type Article struct {
	ID          int64      `json:"id"`
	APISource   string     `json:"api_source"`
	SourceName  string     `json:"source_name"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Content     string     `json:"content"`
	URL         string     `json:"url"`
	ImageURL    string     `json:"image_url"`
	PublishedAt *time.Time `json:"published_at"`
	FetchedAt   time.Time  `json:"fetched_at"`
}

type ExportMeta struct {
	Source              string  `json:"source"`
	TotalClusters       int     `json:"total_clusters"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	GeneratedAt         string  `json:"generated_at"`
}

type ExportCluster struct {
	ClusterID         string            `json:"cluster_id"`
	PrimaryArticleID  int64             `json:"primary_article_id"`
	RelatedArticleIDs []int64           `json:"related_article_ids"`
	Articles          []Article         `json:"articles"`
	Relations         []similarity.Edge `json:"relations"`
}

type ExportDocument struct {
	Meta     ExportMeta      `json:"meta"`
	Clusters []ExportCluster `json:"clusters"`
}

// Export attaches member articles to clusters. Members missing from articles
// are left out of the cluster's article list but stay in its id list.
func Export(clusters []Cluster, articles map[int64]Article, threshold float64, now time.Time) ExportDocument {
	out := ExportDocument{
		Meta: ExportMeta{
			Source:              ExportSource,
			TotalClusters:       len(clusters),
			SimilarityThreshold: threshold,
			GeneratedAt:         now.UTC().Format(time.RFC3339),
		},
		Clusters: ExportClusters(clusters, articles),
	}
	return out
}

func ExportClusters(clusters []Cluster, articles map[int64]Article) []ExportCluster {
	out := make([]ExportCluster, 0, len(clusters))
	for _, c := range clusters {
		members := make([]Article, 0, len(c.MemberIDs))
		for _, id := range c.MemberIDs {
			if article, ok := articles[id]; ok {
				members = append(members, article)
			}
		}
		relations := c.Edges
		if relations == nil {
			relations = []similarity.Edge{}
		}
		out = append(out, ExportCluster{
			ClusterID:         c.ID,
			PrimaryArticleID:  c.PrimaryID,
			RelatedArticleIDs: append([]int64(nil), c.MemberIDs...),
			Articles:          members,
			Relations:         relations,
		})
	}
	return out
}
