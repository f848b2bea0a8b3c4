// Package synthesis calls the generative service with an assembled prompt
// and turns its function-call response into validated articles.
package synthesis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sony/gobreaker"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/globaltime"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/prompt"
)

const (
	DefaultEndpoint        = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-pro:generateContent"
	DefaultTimeout         = 10 * time.Minute
	DefaultBreakerFailures = 3
	DefaultBreakerCooldown = 15 * time.Minute

	maxErrorBody = 512
)

var (
	ErrSynthesisFailed = errors.New("synthesis failed")
	ErrCircuitOpen     = errors.New("synthesis circuit open")
)

type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Result is the outcome of one synthesis call. A failed call always carries
// Status=failed and an Err wrapping ErrSynthesisFailed; an ok call may still
// hold zero articles.
type Result struct {
	Articles []Article
	Rejected int
	Status   Status
	Err      error
}

func (r Result) OK() bool {
	return r.Status == StatusOK
}

func failed(err error) Result {
	if !errors.Is(err, ErrSynthesisFailed) {
		err = fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}
	return Result{Status: StatusFailed, Err: err}
}

type Options struct {
	Endpoint        string
	APIKey          string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
	HTTPClient      *http.Client
}

type Gateway struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	schema   *jsonschema.Schema
	logger   zerolog.Logger
}

func NewGateway(opts Options, logger zerolog.Logger) (*Gateway, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("parse synthesis endpoint: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = DefaultBreakerFailures
	}
	cooldown := opts.BreakerCooldown
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}

	schema, err := compileOutputSchema()
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: timeout}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		copied.Timeout = timeout
		client = &copied
	}

	logger = logger.With().Str("component", "synthesis").Logger()
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "synthesis",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("synthesis circuit breaker state changed")
		},
	})

	return &Gateway{
		endpoint: endpoint,
		apiKey:   strings.TrimSpace(opts.APIKey),
		timeout:  timeout,
		client:   client,
		breaker:  breaker,
		schema:   schema,
		logger:   logger,
	}, nil
}

// BreakerState reports closed, half-open or open.
func (g *Gateway) BreakerState() string {
	return g.breaker.State().String()
}

// Synthesize performs one bounded call. It never panics on bad input and
// never reports failure through an empty article list.
func (g *Gateway) Synthesize(ctx context.Context, req prompt.Request) Result {
	body, err := req.Encode()
	if err != nil {
		return failed(err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	started := globaltime.Now()
	raw, err := g.breaker.Execute(func() (any, error) {
		return g.post(ctx, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return failed(fmt.Errorf("%w: %w", ErrSynthesisFailed, ErrCircuitOpen))
		}
		return failed(err)
	}

	articles, rejected, err := g.decode(raw.([]byte))
	if err != nil {
		return failed(err)
	}

	g.logger.Info().
		Int("articles", len(articles)).
		Int("rejected", rejected).
		Int64("latency_ms", globaltime.Since(started).Milliseconds()).
		Msg("synthesis call completed")

	return Result{Articles: articles, Rejected: rejected, Status: StatusOK}
}

func (g *Gateway) post(ctx context.Context, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.requestURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build synthesis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send synthesis request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesis response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("synthesis endpoint status %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(respBody)), maxErrorBody))
	}
	return respBody, nil
}

func (g *Gateway) requestURL() string {
	if g.apiKey == "" {
		return g.endpoint
	}
	parsed, err := url.Parse(g.endpoint)
	if err != nil {
		return g.endpoint
	}
	query := parsed.Query()
	query.Set("key", g.apiKey)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
