// Package ingest validates, normalizes and stores raw articles as
// unprocessed rows for the next orchestration run.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/db"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/globaltime"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/langdetect"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/payloadschema"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/textnorm"
)

type Store interface {
	RawArticleExistsByURL(ctx context.Context, url string) (bool, error)
	RawArticleExistsByTitleAndSource(ctx context.Context, title, sourceName string) (bool, error)
	InsertRawArticle(ctx context.Context, params db.InsertRawArticleParams) (int64, bool, error)
}

type ContentFiller interface {
	Fill(ctx context.Context, pageURL, title string) (string, error)
}

type Status string

const (
	StatusInserted       Status = "inserted"
	StatusDuplicateURL   Status = "duplicate_url"
	StatusDuplicateTitle Status = "duplicate_title"
	StatusNotRelevant    Status = "not_relevant"
)

type Request struct {
	Payload     json.RawMessage
	FillContent bool
}

type Result struct {
	RawArticleID *int64 `json:"raw_article_id,omitempty"`
	Status       Status `json:"status"`
	Language     string `json:"language,omitempty"`
	Filled       bool   `json:"filled"`
	Reason       string `json:"reason,omitempty"`
}

type Service struct {
	store     Store
	filler    ContentFiller
	relevance *RelevanceFilter
	logger    zerolog.Logger
}

// NewService builds an ingest service. filler may be nil, in which case
// content fill requests are ignored.
func NewService(store Store, filler ContentFiller, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		filler: filler,
		logger: logger.With().Str("component", "ingest").Logger(),
	}
}

// WithRelevance makes IngestOne skip payloads the filter rejects.
func (s *Service) WithRelevance(filter *RelevanceFilter) *Service {
	s.relevance = filter
	return s
}

func (s *Service) IngestOne(ctx context.Context, req Request) (Result, error) {
	if s == nil || s.store == nil {
		return Result{}, fmt.Errorf("ingest service is not initialized")
	}

	payload, err := payloadschema.ValidateRawArticlePayload(req.Payload)
	if err != nil {
		return Result{}, fmt.Errorf("validate payload: %w", err)
	}

	title := textnorm.Clean(payload.Title)
	if title == "" {
		return Result{}, fmt.Errorf("title is empty after normalization")
	}
	sourceName := cleanOptional(payload.SourceName)
	pageURL := trimOptional(payload.URL)
	description := cleanOptional(payload.Description)
	content := cleanOptional(payload.Content)

	if _, ok := s.relevance.Match(nonNil(title, description, content)...); !ok {
		s.logger.Info().
			Str("api_source", payload.APISource).
			Str("title", title).
			Msg("raw article skipped; no relevance keyword matched")
		return Result{Status: StatusNotRelevant, Reason: "no relevance keyword matched"}, nil
	}

	if pageURL != nil {
		exists, err := s.store.RawArticleExistsByURL(ctx, *pageURL)
		if err != nil {
			return Result{}, fmt.Errorf("check url duplicate: %w", err)
		}
		if exists {
			return Result{Status: StatusDuplicateURL}, nil
		}
	}
	if sourceName != nil {
		exists, err := s.store.RawArticleExistsByTitleAndSource(ctx, title, *sourceName)
		if err != nil {
			return Result{}, fmt.Errorf("check title duplicate: %w", err)
		}
		if exists {
			return Result{Status: StatusDuplicateTitle}, nil
		}
	}

	filled := false
	if content == nil && req.FillContent && s.filler != nil && pageURL != nil {
		text, err := s.filler.Fill(ctx, *pageURL, title)
		if err != nil {
			s.logger.Warn().Err(err).Str("url", *pageURL).Msg("content fill failed")
		} else if text != "" {
			content = &text
			filled = true
		}
	}

	declared := ""
	if payload.Language != nil {
		declared = *payload.Language
	}
	language := langdetect.Resolve(declared, strings.Join(nonNil(title, description, content), "\n"))

	id, inserted, err := s.store.InsertRawArticle(ctx, db.InsertRawArticleParams{
		APISource:   strings.TrimSpace(payload.APISource),
		SourceName:  sourceName,
		Title:       title,
		Description: description,
		Content:     content,
		URL:         pageURL,
		ImageURL:    trimOptional(payload.ImageURL),
		Language:    language,
		PublishedAt: payload.PublishedTime(),
		FetchedAt:   globaltime.UTC(),
		RawPayload:  req.Payload,
	})
	if err != nil {
		return Result{}, fmt.Errorf("insert raw article: %w", err)
	}
	if !inserted {
		// Lost a race against a concurrent insert of the same url.
		return Result{Status: StatusDuplicateURL}, nil
	}

	s.logger.Info().
		Int64("raw_article_id", id).
		Str("api_source", payload.APISource).
		Str("language", language).
		Bool("filled", filled).
		Msg("raw article ingested")

	return Result{RawArticleID: &id, Status: StatusInserted, Language: language, Filled: filled}, nil
}

func cleanOptional(value *string) *string {
	if value == nil {
		return nil
	}
	clean := textnorm.Clean(*value)
	if clean == "" {
		return nil
	}
	return &clean
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func nonNil(first string, rest ...*string) []string {
	out := []string{first}
	for _, value := range rest {
		if value != nil {
			out = append(out, *value)
		}
	}
	return out
}
