package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/globaltime"
)

var ErrFetchRateLimited = errors.New("fetch request rate limited")

// Fetcher asks an ingestion backend for more raw articles.
type Fetcher interface {
	Name() string
	FetchMore(ctx context.Context, perSourceLimit int) error
}

type NoopFetcher struct {
	logger zerolog.Logger
}

func NewNoopFetcher(logger zerolog.Logger) *NoopFetcher {
	return &NoopFetcher{logger: logger}
}

func (f *NoopFetcher) Name() string {
	return "noop"
}

func (f *NoopFetcher) FetchMore(_ context.Context, perSourceLimit int) error {
	f.logger.Debug().Int("per_source_limit", perSourceLimit).Msg("no ingest webhook configured; skipping fetch")
	return nil
}

type WebhookOptions struct {
	URL         string
	MinInterval time.Duration
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// WebhookFetcher POSTs fetch requests to an external ingestion service, at
// most once per MinInterval.
type WebhookFetcher struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

type fetchRequest struct {
	PerSourceLimit int    `json:"per_source_limit"`
	RequestedAt    string `json:"requested_at"`
}

func NewWebhookFetcher(opts WebhookOptions) (*WebhookFetcher, error) {
	target := strings.TrimSpace(opts.URL)
	if target == "" {
		return nil, fmt.Errorf("ingest webhook url is required")
	}

	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	if opts.HTTPClient != nil {
		client = opts.HTTPClient
	}

	return &WebhookFetcher{
		url:     target,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

func (f *WebhookFetcher) Name() string {
	return "webhook"
}

func (f *WebhookFetcher) FetchMore(ctx context.Context, perSourceLimit int) error {
	if !f.limiter.Allow() {
		return ErrFetchRateLimited
	}

	body, err := json.Marshal(fetchRequest{
		PerSourceLimit: perSourceLimit,
		RequestedAt:    globaltime.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal fetch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("send fetch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ingest webhook status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
