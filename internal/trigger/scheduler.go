// Package trigger decides, on a fixed delay, whether to run orchestration
// or ask the ingestion side for more raw articles.
package trigger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/orchestrator"
)

type Runner interface {
	Run(ctx context.Context, trigger orchestrator.Trigger) orchestrator.Report
}

type BacklogCounter interface {
	CountUnprocessedRawArticles(ctx context.Context) (int64, error)
}

type Action string

const (
	ActionDisabled       Action = "disabled"
	ActionSkippedRunning Action = "skipped_running"
	ActionOrchestrated   Action = "orchestrated"
	ActionFetched        Action = "fetched"
	ActionFailed         Action = "failed"
)

// Decision records what one tick did.
type Decision struct {
	Action      Action
	Unprocessed int64
	Report      *orchestrator.Report
	Err         error
}

type Options struct {
	Enabled              bool
	Interval             time.Duration
	InitialDelay         time.Duration
	ScheduledLimit       int
	StartupLimit         int
	Threshold            int64
	OrchestrateOnStartup bool
}

type Scheduler struct {
	runner  Runner
	state   *orchestrator.RunState
	backlog BacklogCounter
	fetcher Fetcher
	opts    Options
	logger  zerolog.Logger

	wg sync.WaitGroup
}

func NewScheduler(runner Runner, state *orchestrator.RunState, backlog BacklogCounter, fetcher Fetcher, opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Minute
	}
	if opts.InitialDelay < 0 {
		opts.InitialDelay = 0
	}
	if state == nil {
		state = &orchestrator.RunState{}
	}
	return &Scheduler{
		runner:  runner,
		state:   state,
		backlog: backlog,
		fetcher: fetcher,
		opts:    opts,
		logger:  logger.With().Str("component", "trigger").Logger(),
	}
}

// Start runs the startup actions and the tick loop on a background
// goroutine until ctx is done. Wait blocks until that goroutine exits.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.startup(ctx)
		s.loop(ctx)
	}()
}

func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) startup(ctx context.Context) {
	if s.opts.Enabled && s.opts.StartupLimit > 0 {
		if err := s.fetcher.FetchMore(ctx, s.opts.StartupLimit); err != nil {
			s.logger.Warn().Err(err).Str("fetcher", s.fetcher.Name()).Msg("startup fetch failed")
		} else {
			s.logger.Info().Int("per_source_limit", s.opts.StartupLimit).Msg("startup fetch requested")
		}
	}
	if s.opts.OrchestrateOnStartup && ctx.Err() == nil {
		s.runner.Run(ctx, orchestrator.TriggerStartup)
	}
}

// loop ticks with a fixed delay: the next tick is scheduled only after the
// previous one returns.
func (s *Scheduler) loop(ctx context.Context) {
	timer := time.NewTimer(s.opts.InitialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.Tick(ctx)
			timer.Reset(s.opts.Interval)
		}
	}
}

// Tick performs one scheduling decision.
func (s *Scheduler) Tick(ctx context.Context) Decision {
	if !s.opts.Enabled {
		return Decision{Action: ActionDisabled}
	}
	if s.state.Running() {
		s.logger.Info().Msg("orchestration in progress; skipping cycle")
		return Decision{Action: ActionSkippedRunning}
	}

	unprocessed, err := s.backlog.CountUnprocessedRawArticles(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduled cycle failed to count backlog")
		return Decision{Action: ActionFailed, Err: err}
	}
	logger := s.logger.With().Int64("unprocessed", unprocessed).Int64("threshold", s.opts.Threshold).Logger()

	if unprocessed >= s.opts.Threshold {
		logger.Info().Msg("backlog threshold reached; orchestrating")
		report := s.runner.Run(ctx, orchestrator.TriggerSchedule)
		if report.Skipped {
			return Decision{Action: ActionSkippedRunning, Unprocessed: unprocessed, Report: &report}
		}
		return Decision{Action: ActionOrchestrated, Unprocessed: unprocessed, Report: &report}
	}

	logger.Info().Int("per_source_limit", s.opts.ScheduledLimit).Msg("requesting more articles")
	if err := s.fetcher.FetchMore(ctx, s.opts.ScheduledLimit); err != nil {
		if errors.Is(err, ErrFetchRateLimited) {
			logger.Debug().Msg("fetch request rate limited")
		} else {
			logger.Warn().Err(err).Str("fetcher", s.fetcher.Name()).Msg("fetch request failed")
		}
		return Decision{Action: ActionFailed, Unprocessed: unprocessed, Err: err}
	}
	return Decision{Action: ActionFetched, Unprocessed: unprocessed}
}
