// Package httpapi serves health, stats, metrics and the admin orchestration
// endpoints.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/cluster"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/db"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/globaltime"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/orchestrator"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200

	serviceName = "sustain-insight"
)

type Orchestrator interface {
	Run(ctx context.Context, trigger orchestrator.Trigger) orchestrator.Report
	PreviewClusters(ctx context.Context, threshold float64) (cluster.ExportDocument, error)
	State() *orchestrator.RunState
}

type Store interface {
	QueryPipelineStats(ctx context.Context) (db.PipelineStats, error)
	ListSynthesisRuns(ctx context.Context, limit int) ([]db.SynthesisRunRecord, error)
}

// BreakerReporter exposes the synthesis circuit breaker state for health.
type BreakerReporter interface {
	BreakerState() string
}

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// SyncRunWriteTimeout replaces WriteTimeout for synchronous
	// POST /admin/orchestrate, which waits for the whole run.
	SyncRunWriteTimeout time.Duration

	AdminTokenHash string
	// AllowOpenAdmin permits admin calls without a configured token hash.
	AllowOpenAdmin     bool
	AdminRateLimit     float64
	CORSAllowedOrigins []string
}

type Deps struct {
	Orchestrator Orchestrator
	Store        Store
	Breaker      BreakerReporter
	Gatherer     prometheus.Gatherer
	Logger       zerolog.Logger
}

type Server struct {
	orch     Orchestrator
	store    Store
	breaker  BreakerReporter
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
	opts     Options

	background sync.WaitGroup
}

func NewServer(deps Deps, opts Options) *Server {
	if strings.TrimSpace(opts.Host) == "" {
		opts.Host = "0.0.0.0"
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.SyncRunWriteTimeout <= 0 {
		opts.SyncRunWriteTimeout = 35 * time.Minute
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.AdminRateLimit <= 0 {
		opts.AdminRateLimit = 2
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.NewRegistry()
	}

	return &Server{
		orch:     deps.Orchestrator,
		store:    deps.Store,
		breaker:  deps.Breaker,
		gatherer: gatherer,
		logger:   deps.Logger.With().Str("component", "httpapi").Logger(),
		opts:     opts,
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.orch == nil || s.store == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.newEcho()
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("sustain-insight api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.background.Wait()
	s.logger.Info().Msg("sustain-insight api server stopped")
	return nil
}

func (s *Server) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if len(s.opts.CORSAllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: s.opts.CORSAllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
			MaxAge:       3600,
		}))
	}
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Info()
			msg := "http request"
			if v.Error != nil {
				event = s.logger.Error().Err(v.Error)
				msg = "http request failed"
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg(msg)
			return nil
		},
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)

	admin := api.Group("/admin", s.requireAdmin(), s.adminRateLimiter())
	admin.POST("/orchestrate", s.handleOrchestrate)
	admin.GET("/state", s.handleState)
	admin.GET("/clusters", s.handleClusters)
	admin.GET("/runs", s.handleRuns)

	return e
}

func (s *Server) adminRateLimiter() echo.MiddlewareFunc {
	burst := int(math.Ceil(s.opts.AdminRateLimit))
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(s.opts.AdminRateLimit),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, _ error) error {
			return fail(c, http.StatusForbidden, "Unable to identify client", nil)
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return fail(c, http.StatusTooManyRequests, "Too many admin requests", nil)
		},
	})
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if text, ok := he.Message.(string); ok && strings.TrimSpace(text) != "" {
			message = text
		} else if text := http.StatusText(status); text != "" {
			message = text
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	data := map[string]any{
		"service": serviceName,
		"time":    globaltime.UTC(),
		"state":   s.orch.State().State(),
	}
	if s.breaker != nil {
		data["synthesis_breaker"] = s.breaker.BreakerState()
	}
	return success(c, data)
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.store.QueryPipelineStats(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("query stats failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, stats)
}

func (s *Server) handleOrchestrate(c echo.Context) error {
	async, err := parseBool(c.QueryParam("async"))
	if err != nil {
		return failValidation(c, map[string]string{"async": err.Error()})
	}

	if async {
		if s.orch.State().Running() {
			return fail(c, http.StatusConflict, "Orchestration already running", nil)
		}
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			report := s.orch.Run(context.Background(), orchestrator.TriggerAdmin)
			if report.Skipped {
				s.logger.Info().Msg("async orchestration skipped; another run started first")
			}
		}()
		return successWithStatus(c, http.StatusAccepted, map[string]any{
			"accepted": true,
			"trigger":  orchestrator.TriggerAdmin,
		})
	}

	// Async is the expected mode; a synchronous caller holds the connection
	// for the whole run, so its write deadline is extended past the server's.
	deadline := time.Now().Add(s.opts.SyncRunWriteTimeout)
	if err := http.NewResponseController(c.Response()).SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Warn().Err(err).Msg("failed to extend write deadline for synchronous run")
	}

	report := s.orch.Run(c.Request().Context(), orchestrator.TriggerAdmin)
	switch {
	case report.Skipped:
		return fail(c, http.StatusConflict, "Orchestration already running", report)
	case report.Outcome == orchestrator.OutcomeFailed:
		return internalErrorWithData(c, "Orchestration failed", report)
	default:
		return success(c, report)
	}
}

func (s *Server) handleState(c echo.Context) error {
	return success(c, map[string]any{
		"state": s.orch.State().State(),
	})
}

func (s *Server) handleClusters(c echo.Context) error {
	threshold, err := parseThreshold(c.QueryParam("threshold"))
	if err != nil {
		return failValidation(c, map[string]string{"threshold": err.Error()})
	}

	doc, err := s.orch.PreviewClusters(c.Request().Context(), threshold)
	if err != nil {
		s.logger.Error().Err(err).Msg("cluster preview failed")
		return internalError(c, "Failed to build cluster preview")
	}
	return success(c, doc)
}

func (s *Server) handleRuns(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultRunsLimit, 1, maxRunsLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	runs, err := s.store.ListSynthesisRuns(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list synthesis runs failed")
		return internalError(c, "Failed to load runs")
	}
	return success(c, map[string]any{
		"items": runs,
	})
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}

// parseThreshold returns 0 for an empty value, meaning the configured one.
func parseThreshold(raw string) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(value) {
		return 0, fmt.Errorf("must be a number")
	}
	if value <= 0 || value > 1 {
		return 0, fmt.Errorf("must be within (0, 1]")
	}
	return value, nil
}

func parseBool(raw string) (bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(trimmed)
	if err != nil {
		return false, fmt.Errorf("must be a boolean")
	}
	return value, nil
}
