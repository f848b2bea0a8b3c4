// Package prompt builds the single generateContent request that asks the
// model to merge every cluster of a run into one canonical article.
package prompt

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/cluster"
)

const (
	FunctionName = "article_list_generator"

	DefaultContentLimit = 600
	DefaultCategoryID   = 8
	DefaultCategoryName = "General Sustainability"

	OutputSchemaName = "article_list.schema.json"
)

//go:embed article_list.schema.json
var outputSchemaJSON string

// OutputSchema returns the JSON Schema of the function call's articles array.
func OutputSchema() string {
	return outputSchemaJSON
}

var ErrNoClusters = errors.New("no clusters to synthesize")

type TaxonomyEntry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Taxonomy is the snapshot offered to the model.
type Taxonomy struct {
	Categories []TaxonomyEntry
	Sources    []TaxonomyEntry
}

type Options struct {
	ContentLimit        int
	DefaultCategoryID   int64
	DefaultCategoryName string
}

type Assembler struct {
	opts Options
}

func NewAssembler(opts Options) *Assembler {
	if opts.ContentLimit <= 0 {
		opts.ContentLimit = DefaultContentLimit
	}
	if opts.DefaultCategoryID <= 0 {
		opts.DefaultCategoryID = DefaultCategoryID
	}
	if strings.TrimSpace(opts.DefaultCategoryName) == "" {
		opts.DefaultCategoryName = DefaultCategoryName
	}
	return &Assembler{opts: opts}
}

func (a *Assembler) Options() Options {
	return a.opts
}

// Assemble renders one request covering all clusters.
func (a *Assembler) Assemble(clusters []cluster.Cluster, articles map[int64]cluster.Article, taxonomy Taxonomy) (Request, error) {
	if len(clusters) == 0 {
		return Request{}, ErrNoClusters
	}

	categoriesJSON, err := json.Marshal(nonNilEntries(taxonomy.Categories))
	if err != nil {
		return Request{}, fmt.Errorf("encode categories: %w", err)
	}
	sourcesJSON, err := json.Marshal(nonNilEntries(taxonomy.Sources))
	if err != nil {
		return Request{}, fmt.Errorf("encode sources: %w", err)
	}
	clustersJSON, err := json.Marshal(cluster.ExportClusters(clusters, articles))
	if err != nil {
		return Request{}, fmt.Errorf("encode clusters: %w", err)
	}

	var text strings.Builder
	text.WriteString(a.instructions())
	text.WriteString("\n\nAvailable Categories:\n")
	text.Write(categoriesJSON)
	text.WriteString("\nAvailable Sources:\n")
	text.Write(sourcesJSON)
	text.WriteString("\nArticle Clusters:\n")
	text.Write(clustersJSON)

	return Request{
		Contents: []Content{{
			Role:  "user",
			Parts: []Part{{Text: text.String()}},
		}},
		Tools: []Tool{{
			FunctionDeclarations: []FunctionDeclaration{a.declaration()},
		}},
		ToolConfig: ToolConfig{
			FunctionCallingConfig: FunctionCallingConfig{
				Mode:                 "ANY",
				AllowedFunctionNames: []string{FunctionName},
			},
		},
	}, nil
}

func (a *Assembler) instructions() string {
	lines := []string{
		"You are a news analyst merging clusters of overlapping articles into single canonical articles.",
		"Each cluster below lists articles that report the same story. Produce exactly one article per cluster.",
		"Follow these steps for each cluster:",
		"1. Identify the primary article using the `primary_article_id`.",
		"2. Summarize the content of all other articles in the cluster's `articles` array.",
		fmt.Sprintf("3. Merge that summary into the `content` of the primary article, keeping it to about %d characters, and write a new `title` and `summary` that reflect the merged content.", a.opts.ContentLimit),
		"4. Keep the `id`, `api_source`, `url`, `image_url` and `published_at` of the primary article unchanged. `published_at` must be an ISO 8601 timestamp.",
		fmt.Sprintf("5. Assign `category_ids` from Available Categories, defaulting to [%d] (%s) when none matches, and assign `source_ids` from Available Sources for the outlets that reported the story.", a.opts.DefaultCategoryID, a.opts.DefaultCategoryName),
		fmt.Sprintf("Finally, call the `%s` tool once with the list of processed primary articles.", FunctionName),
	}
	return strings.Join(lines, "\n")
}

func (a *Assembler) declaration() FunctionDeclaration {
	return FunctionDeclaration{
		Name:        FunctionName,
		Description: "Generates a list of processed articles, one per cluster.",
		Parameters: &Schema{
			Type: "OBJECT",
			Properties: map[string]*Schema{
				"articles": {
					Type: "ARRAY",
					Items: &Schema{
						Type: "OBJECT",
						Properties: map[string]*Schema{
							"id":         {Type: "INTEGER"},
							"api_source": {Type: "STRING"},
							"title":      {Type: "STRING"},
							"summary":    {Type: "STRING"},
							"content": {
								Type:        "STRING",
								Description: fmt.Sprintf("The merged article text in well-structured paragraphs, limited to %d characters.", a.opts.ContentLimit),
							},
							"url":       {Type: "STRING"},
							"image_url": {Type: "STRING"},
							"published_at": {
								Type:        "STRING",
								Description: "The publication timestamp in ISO 8601 format (e.g., '2025-10-09T12:00:00Z').",
							},
							"category_ids": {Type: "ARRAY", Items: &Schema{Type: "INTEGER"}},
							"source_ids":   {Type: "ARRAY", Items: &Schema{Type: "INTEGER"}},
						},
						Required: []string{"title", "summary", "content", "published_at"},
					},
				},
			},
			Required: []string{"articles"},
		},
	}
}

func nonNilEntries(entries []TaxonomyEntry) []TaxonomyEntry {
	if entries == nil {
		return []TaxonomyEntry{}
	}
	return entries
}
