// Package taxonomy loads the category and source seed file, along with the
// keywords ingest uses to decide whether an article is on topic.
package taxonomy

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/db"
)

//go:embed default_seed.yaml
var defaultSeedYAML []byte

type Entry struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

type Seed struct {
	Categories        []Entry  `yaml:"categories"`
	Sources           []Entry  `yaml:"sources"`
	RelevanceKeywords []string `yaml:"relevance_keywords"`
}

type Store interface {
	UpsertCategories(ctx context.Context, entries []db.TaxonomyEntry) (int, error)
	UpsertSources(ctx context.Context, entries []db.TaxonomyEntry) (int, error)
}

type ApplyResult struct {
	Categories int `json:"categories"`
	Sources    int `json:"sources"`
}

// Default returns the built-in seed. Category 8 is the fallback category.
func Default() (Seed, error) {
	return Parse(defaultSeedYAML)
}

// Load reads a seed file; an empty path selects the built-in seed.
func Load(path string) (Seed, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Seed, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var seed Seed
	if err := decoder.Decode(&seed); err != nil {
		return Seed{}, fmt.Errorf("decode seed yaml: %w", err)
	}
	if err := validateEntries("categories", seed.Categories); err != nil {
		return Seed{}, err
	}
	if err := validateEntries("sources", seed.Sources); err != nil {
		return Seed{}, err
	}
	keywords, err := normalizeKeywords(seed.RelevanceKeywords)
	if err != nil {
		return Seed{}, err
	}
	seed.RelevanceKeywords = keywords
	return seed, nil
}

// normalizeKeywords lowercases and trims keywords. Blank and repeated
// keywords are rejected.
func normalizeKeywords(keywords []string) ([]string, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for i, keyword := range keywords {
		key := strings.ToLower(strings.TrimSpace(keyword))
		if key == "" {
			return nil, fmt.Errorf("relevance_keywords[%d]: keyword must not be empty", i)
		}
		if _, exists := seen[key]; exists {
			return nil, fmt.Errorf("relevance_keywords[%d]: duplicate keyword %q", i, key)
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out, nil
}

func validateEntries(kind string, entries []Entry) error {
	ids := make(map[int64]struct{}, len(entries))
	names := make(map[string]struct{}, len(entries))
	for i, entry := range entries {
		if entry.ID < 1 {
			return fmt.Errorf("%s[%d]: id must be >= 1", kind, i)
		}
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return fmt.Errorf("%s[%d]: name must not be empty", kind, i)
		}
		if _, exists := ids[entry.ID]; exists {
			return fmt.Errorf("%s[%d]: duplicate id %d", kind, i, entry.ID)
		}
		key := strings.ToLower(name)
		if _, exists := names[key]; exists {
			return fmt.Errorf("%s[%d]: duplicate name %q", kind, i, name)
		}
		ids[entry.ID] = struct{}{}
		names[key] = struct{}{}
	}
	return nil
}

// Apply upserts the seed by id.
func Apply(ctx context.Context, store Store, seed Seed) (ApplyResult, error) {
	categories, err := store.UpsertCategories(ctx, toDB(seed.Categories))
	if err != nil {
		return ApplyResult{}, fmt.Errorf("upsert categories: %w", err)
	}
	sources, err := store.UpsertSources(ctx, toDB(seed.Sources))
	if err != nil {
		return ApplyResult{Categories: categories}, fmt.Errorf("upsert sources: %w", err)
	}
	return ApplyResult{Categories: categories, Sources: sources}, nil
}

func toDB(entries []Entry) []db.TaxonomyEntry {
	out := make([]db.TaxonomyEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, db.TaxonomyEntry{ID: entry.ID, Name: strings.TrimSpace(entry.Name)})
	}
	return out
}
