package prompt

import (
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/cluster"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/similarity"
)

func sampleInput() ([]cluster.Cluster, map[int64]cluster.Article, Taxonomy) {
	clusters := cluster.Build([]similarity.Edge{{A: 1, B: 4, Score: 0.8}}, cluster.Options{})
	articles := map[int64]cluster.Article{
		1: {ID: 1, APISource: "newsapi", Title: "Kenya expands solar farm", Content: "Kenya doubled output."},
		4: {ID: 4, APISource: "guardian", Title: "Solar boost in Kenya", Content: "A new farm came online."},
	}
	taxonomy := Taxonomy{
		Categories: []TaxonomyEntry{{ID: 3, Name: "Renewable Energy"}, {ID: 8, Name: "General Sustainability"}},
		Sources:    []TaxonomyEntry{{ID: 1, Name: "Reuters"}},
	}
	return clusters, articles, taxonomy
}

func TestAssembleBuildsInstructionsTaxonomyAndClusters(t *testing.T) {
	t.Parallel()

	clusters, articles, taxonomy := sampleInput()
	req, err := NewAssembler(Options{}).Assemble(clusters, articles, taxonomy)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	text := req.Text()
	for _, want := range []string{
		"1. Identify the primary article using the `primary_article_id`.",
		"2. Summarize",
		"3. Merge",
		"about 600 characters",
		"4. Keep the `id`, `api_source`, `url`, `image_url` and `published_at`",
		"5. Assign `category_ids`",
		"defaulting to [8] (General Sustainability)",
		`[{"id":3,"name":"Renewable Energy"},{"id":8,"name":"General Sustainability"}]`,
		`[{"id":1,"name":"Reuters"}]`,
		`"cluster_id":"cluster_1"`,
		`"primary_article_id":1`,
		`"title":"Solar boost in Kenya"`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("prompt text missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "6.") {
		t.Fatalf("expected exactly five steps:\n%s", text)
	}
	if req.Contents[0].Role != "user" {
		t.Fatalf("unexpected role: %q", req.Contents[0].Role)
	}
}

func TestAssembleHonorsOptions(t *testing.T) {
	t.Parallel()

	clusters, articles, taxonomy := sampleInput()
	req, err := NewAssembler(Options{ContentLimit: 900, DefaultCategoryID: 12, DefaultCategoryName: "Climate"}).
		Assemble(clusters, articles, taxonomy)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if !strings.Contains(req.Text(), "about 900 characters") || !strings.Contains(req.Text(), "[12] (Climate)") {
		t.Fatalf("options not applied:\n%s", req.Text())
	}
}

func TestAssembleRejectsEmptyClusters(t *testing.T) {
	t.Parallel()

	_, err := NewAssembler(Options{}).Assemble(nil, nil, Taxonomy{})
	if !errors.Is(err, ErrNoClusters) {
		t.Fatalf("expected ErrNoClusters, got %v", err)
	}
}

func TestEncodeDeclaresFunctionAndForcesCall(t *testing.T) {
	t.Parallel()

	clusters, articles, _ := sampleInput()
	req, err := NewAssembler(Options{}).Assemble(clusters, articles, Taxonomy{})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	raw, err := req.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var body struct {
		Tools []struct {
			FunctionDeclarations []struct {
				Name       string `json:"name"`
				Parameters struct {
					Properties map[string]struct {
						Type  string `json:"type"`
						Items struct {
							Properties map[string]json.RawMessage `json:"properties"`
						} `json:"items"`
					} `json:"properties"`
				} `json:"parameters"`
			} `json:"function_declarations"`
		} `json:"tools"`
		ToolConfig struct {
			FunctionCallingConfig struct {
				Mode    string   `json:"mode"`
				Allowed []string `json:"allowed_function_names"`
			} `json:"function_calling_config"`
		} `json:"tool_config"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode encoded request: %v", err)
	}

	decl := body.Tools[0].FunctionDeclarations[0]
	if decl.Name != FunctionName {
		t.Fatalf("unexpected function name: %q", decl.Name)
	}
	if decl.Parameters.Properties["articles"].Type != "ARRAY" {
		t.Fatalf("articles parameter is not an array")
	}
	if body.ToolConfig.FunctionCallingConfig.Mode != "ANY" ||
		!reflect.DeepEqual(body.ToolConfig.FunctionCallingConfig.Allowed, []string{FunctionName}) {
		t.Fatalf("unexpected tool config: %+v", body.ToolConfig)
	}
	if !strings.Contains(req.Text(), "Available Categories:\n[]") {
		t.Fatalf("expected empty category list in prompt")
	}

	declared := keys(decl.Parameters.Properties["articles"].Items.Properties)
	if !reflect.DeepEqual(declared, outputSchemaProperties(t)) {
		t.Fatalf("declaration and output schema disagree: %v vs %v", declared, outputSchemaProperties(t))
	}
}

func outputSchemaProperties(t *testing.T) []string {
	t.Helper()

	var schema struct {
		Items struct {
			Properties map[string]json.RawMessage `json:"properties"`
		} `json:"items"`
	}
	if err := json.Unmarshal([]byte(OutputSchema()), &schema); err != nil {
		t.Fatalf("decode output schema: %v", err)
	}
	return keys(schema.Items.Properties)
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
