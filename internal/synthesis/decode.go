package synthesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/prompt"
)

// Article is one synthesized canonical article.
type Article struct {
	// ID echoes the cluster primary's raw article id; nil when the model
	// omitted it.
	ID          *int64    `json:"id"`
	APISource   string    `json:"api_source"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"image_url"`
	PublishedAt time.Time `json:"published_at"`
	CategoryIDs []int64   `json:"category_ids"`
	SourceIDs   []int64   `json:"source_ids"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				FunctionCall *struct {
					Name string          `json:"name"`
					Args json.RawMessage `json:"args"`
				} `json:"functionCall"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type wireArticle struct {
	ID          *json.Number  `json:"id"`
	APISource   string        `json:"api_source"`
	Title       string        `json:"title"`
	Summary     string        `json:"summary"`
	Content     string        `json:"content"`
	URL         *string       `json:"url"`
	ImageURL    *string       `json:"image_url"`
	PublishedAt string        `json:"published_at"`
	CategoryIDs []json.Number `json:"category_ids"`
	SourceIDs   []json.Number `json:"source_ids"`
}

func compileOutputSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true

	if err := compiler.AddResource(prompt.OutputSchemaName, strings.NewReader(prompt.OutputSchema())); err != nil {
		return nil, fmt.Errorf("add output schema resource: %w", err)
	}
	schema, err := compiler.Compile(prompt.OutputSchemaName)
	if err != nil {
		return nil, fmt.Errorf("compile output schema: %w", err)
	}
	return schema, nil
}

// decode extracts the function call's articles. Envelope and schema errors
// fail the whole response; items with an empty title or an unparseable
// published_at are dropped and counted.
func (g *Gateway) decode(body []byte) ([]Article, int, error) {
	var envelope generateContentResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, 0, fmt.Errorf("decode synthesis envelope: %w", err)
	}

	args, err := functionCallArgs(envelope)
	if err != nil {
		return nil, 0, err
	}

	var call struct {
		Articles json.RawMessage `json:"articles"`
	}
	if err := json.Unmarshal(args, &call); err != nil {
		return nil, 0, fmt.Errorf("decode function call args: %w", err)
	}
	if len(bytes.TrimSpace(call.Articles)) == 0 {
		return nil, 0, fmt.Errorf("function call args missing articles")
	}

	value, err := decodeStrictJSON(call.Articles)
	if err != nil {
		return nil, 0, fmt.Errorf("decode articles: %w", err)
	}
	if err := g.schema.Validate(value); err != nil {
		return nil, 0, fmt.Errorf("articles schema validation failed: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(call.Articles))
	decoder.UseNumber()
	var items []wireArticle
	if err := decoder.Decode(&items); err != nil {
		return nil, 0, fmt.Errorf("unmarshal articles: %w", err)
	}

	articles := make([]Article, 0, len(items))
	rejected := 0
	for i, item := range items {
		article, err := item.toArticle()
		if err != nil {
			rejected++
			g.logger.Warn().Err(err).Int("index", i).Msg("dropping synthesized article")
			continue
		}
		articles = append(articles, article)
	}
	return articles, rejected, nil
}

func functionCallArgs(envelope generateContentResponse) (json.RawMessage, error) {
	if len(envelope.Candidates) == 0 {
		if envelope.PromptFeedback != nil && envelope.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("prompt blocked: %s", envelope.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("synthesis response has no candidates")
	}
	for _, candidate := range envelope.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.FunctionCall == nil || part.FunctionCall.Name != prompt.FunctionName {
				continue
			}
			if len(bytes.TrimSpace(part.FunctionCall.Args)) == 0 {
				return nil, fmt.Errorf("function call %s has no args", prompt.FunctionName)
			}
			return part.FunctionCall.Args, nil
		}
	}
	return nil, fmt.Errorf("synthesis response has no %s call (finish reason %q)", prompt.FunctionName, envelope.Candidates[0].FinishReason)
}

func (w wireArticle) toArticle() (Article, error) {
	title := strings.TrimSpace(w.Title)
	if title == "" {
		return Article{}, fmt.Errorf("title must not be empty")
	}
	publishedAt, err := time.Parse(time.RFC3339, strings.TrimSpace(w.PublishedAt))
	if err != nil {
		return Article{}, fmt.Errorf("published_at must be RFC3339: %w", err)
	}

	article := Article{
		APISource:   strings.TrimSpace(w.APISource),
		Title:       title,
		Summary:     strings.TrimSpace(w.Summary),
		Content:     strings.TrimSpace(w.Content),
		URL:         optional(w.URL),
		ImageURL:    optional(w.ImageURL),
		PublishedAt: publishedAt.UTC(),
		CategoryIDs: integers(w.CategoryIDs),
		SourceIDs:   integers(w.SourceIDs),
	}
	if w.ID != nil {
		if id, ok := integer(*w.ID); ok {
			article.ID = &id
		}
	}
	return article, nil
}

func optional(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func integers(values []json.Number) []int64 {
	out := make([]int64, 0, len(values))
	seen := make(map[int64]struct{}, len(values))
	for _, value := range values {
		id, ok := integer(value)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// integer accepts 8 and 8.0 alike.
func integer(value json.Number) (int64, bool) {
	if id, err := value.Int64(); err == nil {
		return id, true
	}
	f, err := value.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}
	return value, nil
}
