package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/prompt"
)

func testRequest() prompt.Request {
	return prompt.Request{Contents: []prompt.Content{{Role: "user", Parts: []prompt.Part{{Text: "merge"}}}}}
}

func functionCallBody(articles string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"functionCall":{"name":"article_list_generator","args":{"articles":%s}}}]},"finishReason":"STOP"}]}`, articles)
}

func newTestGateway(t *testing.T, url string, opts Options) *Gateway {
	t.Helper()

	opts.Endpoint = url
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	gateway, err := NewGateway(opts, zerolog.Nop())
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return gateway
}

func staticServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func requireFailed(t *testing.T, result Result) {
	t.Helper()

	if result.Status != StatusFailed || result.OK() {
		t.Fatalf("unexpected status: got %q want failed", result.Status)
	}
	if !errors.Is(result.Err, ErrSynthesisFailed) {
		t.Fatalf("expected ErrSynthesisFailed, got %v", result.Err)
	}
	if len(result.Articles) != 0 {
		t.Fatalf("failed result carries articles: %v", result.Articles)
	}
}

func TestSynthesizeParsesFunctionCall(t *testing.T) {
	t.Parallel()

	type captured struct {
		key, contentType string
		body             map[string]any
	}
	requests := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := captured{key: r.URL.Query().Get("key"), contentType: r.Header.Get("Content-Type")}
		_ = json.NewDecoder(r.Body).Decode(&c.body)
		requests <- c
		_, _ = io.WriteString(w, functionCallBody(`[
			{"id": 1, "api_source": "newsapi", "title": " Kenya doubles solar output ", "summary": "s", "content": "c",
			 "url": "https://example.com/a", "image_url": null, "published_at": "2025-10-09T12:00:00Z",
			 "category_ids": [3, 8.0, 3], "source_ids": [1]}
		]`))
	}))
	defer srv.Close()

	gateway := newTestGateway(t, srv.URL, Options{APIKey: "secret"})
	result := gateway.Synthesize(context.Background(), testRequest())
	if !result.OK() || result.Err != nil {
		t.Fatalf("unexpected failure: %v", result.Err)
	}
	got := <-requests
	if got.key != "secret" || got.contentType != "application/json" {
		t.Fatalf("unexpected request: key=%q content-type=%q", got.key, got.contentType)
	}
	if _, ok := got.body["contents"]; !ok {
		t.Fatalf("request body missing contents: %v", got.body)
	}
	if len(result.Articles) != 1 || result.Rejected != 0 {
		t.Fatalf("unexpected articles: %+v rejected=%d", result.Articles, result.Rejected)
	}

	article := result.Articles[0]
	if article.ID == nil || *article.ID != 1 {
		t.Fatalf("unexpected echoed id: %v", article.ID)
	}
	if article.Title != "Kenya doubles solar output" || article.ImageURL != "" {
		t.Fatalf("unexpected article fields: %+v", article)
	}
	if fmt.Sprint(article.CategoryIDs) != "[3 8]" {
		t.Fatalf("unexpected category ids: %v", article.CategoryIDs)
	}
	if !article.PublishedAt.Equal(time.Date(2025, 10, 9, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published_at: %v", article.PublishedAt)
	}
}

func TestSynthesizeEmptyArrayIsOK(t *testing.T) {
	t.Parallel()

	srv := staticServer(t, http.StatusOK, functionCallBody(`[]`))
	result := newTestGateway(t, srv.URL, Options{}).Synthesize(context.Background(), testRequest())
	if !result.OK() || len(result.Articles) != 0 || result.Err != nil {
		t.Fatalf("unexpected result for empty array: %+v", result)
	}
}

func TestSynthesizeDropsSemanticallyInvalidItems(t *testing.T) {
	t.Parallel()

	srv := staticServer(t, http.StatusOK, functionCallBody(`[
		{"id": 1, "title": "ok", "summary": "", "content": "", "published_at": "2025-10-09T12:00:00+02:00"},
		{"id": 2, "title": "   ", "summary": "", "content": "", "published_at": "2025-10-09T12:00:00Z"},
		{"id": 3, "title": "bad date", "summary": "", "content": "", "published_at": "yesterday"}
	]`))
	result := newTestGateway(t, srv.URL, Options{}).Synthesize(context.Background(), testRequest())
	if !result.OK() {
		t.Fatalf("unexpected failure: %v", result.Err)
	}
	if len(result.Articles) != 1 || result.Rejected != 2 {
		t.Fatalf("unexpected split: kept=%d rejected=%d", len(result.Articles), result.Rejected)
	}
	if got := result.Articles[0].PublishedAt; !got.Equal(time.Date(2025, 10, 9, 10, 0, 0, 0, time.UTC)) || got.Location() != time.UTC {
		t.Fatalf("published_at not normalized to UTC: %v", got)
	}
}

func TestSynthesizeFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "non-2xx", status: http.StatusInternalServerError, body: `{"error":{"message":"boom"}}`},
		{name: "malformed envelope", status: http.StatusOK, body: `{"candidates": [`},
		{name: "no candidates", status: http.StatusOK, body: `{"promptFeedback":{"blockReason":"SAFETY"}}`},
		{name: "text instead of call", status: http.StatusOK, body: `{"candidates":[{"content":{"parts":[{"text":"sorry"}]}}]}`},
		{name: "missing articles", status: http.StatusOK, body: `{"candidates":[{"content":{"parts":[{"functionCall":{"name":"article_list_generator","args":{}}}]}}]}`},
		{name: "schema violation", status: http.StatusOK, body: functionCallBody(`[{"id": "one", "title": 7}]`)},
		{name: "articles not an array", status: http.StatusOK, body: functionCallBody(`{"title": "x"}`)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := staticServer(t, tc.status, tc.body)
			result := newTestGateway(t, srv.URL, Options{}).Synthesize(context.Background(), testRequest())
			requireFailed(t, result)
			if errors.Is(result.Err, ErrCircuitOpen) {
				t.Fatalf("single failure must not open the circuit: %v", result.Err)
			}
		})
	}
}

func TestSynthesizeOpensCircuitAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	gateway := newTestGateway(t, srv.URL, Options{BreakerFailures: 2, BreakerCooldown: time.Hour})
	for i := 0; i < 2; i++ {
		requireFailed(t, gateway.Synthesize(context.Background(), testRequest()))
	}

	result := gateway.Synthesize(context.Background(), testRequest())
	requireFailed(t, result)
	if !errors.Is(result.Err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", result.Err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("unexpected endpoint hits: got %d want 2", got)
	}
	if gateway.BreakerState() != "open" {
		t.Fatalf("unexpected breaker state: %s", gateway.BreakerState())
	}
}

func TestSynthesizeMalformedOutputDoesNotOpenCircuit(t *testing.T) {
	t.Parallel()

	srv := staticServer(t, http.StatusOK, `{"candidates":[]}`)
	gateway := newTestGateway(t, srv.URL, Options{BreakerFailures: 1})
	for i := 0; i < 3; i++ {
		result := gateway.Synthesize(context.Background(), testRequest())
		requireFailed(t, result)
		if errors.Is(result.Err, ErrCircuitOpen) {
			t.Fatalf("malformed output opened the circuit")
		}
	}
}

func TestSynthesizeTimesOut(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	gateway := newTestGateway(t, srv.URL, Options{Timeout: 50 * time.Millisecond})
	started := time.Now()
	result := gateway.Synthesize(context.Background(), testRequest())
	requireFailed(t, result)
	if elapsed := time.Since(started); elapsed > 3*time.Second {
		t.Fatalf("timeout not enforced: took %v", elapsed)
	}
}

func TestNewGatewayRejectsBadEndpoint(t *testing.T) {
	t.Parallel()

	if _, err := NewGateway(Options{Endpoint: "not a url"}, zerolog.Nop()); err == nil {
		t.Fatalf("expected endpoint parse error")
	}
}

func TestRequestURLKeepsExistingQuery(t *testing.T) {
	t.Parallel()

	gateway := newTestGateway(t, "https://example.com/v1/models/x:generateContent?alt=json", Options{APIKey: "k"})
	got := gateway.requestURL()
	if !strings.Contains(got, "alt=json") || !strings.Contains(got, "key=k") {
		t.Fatalf("unexpected request url: %s", got)
	}
}
