// Package orchestrator runs the synthesis pipeline: fetch the unprocessed
// backlog, cluster it, ask the model for one article per cluster, persist
// the results and flip the processed flags.
package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/cluster"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/config"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/db"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/globaltime"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/prompt"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/similarity"
	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/synthesis"
)

type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerAdmin    Trigger = "admin"
	TriggerCLI      Trigger = "cli"
	TriggerStartup  Trigger = "startup"
)

type Outcome string

const (
	OutcomeCompleted  Outcome = db.RunStatusCompleted
	OutcomeNoClusters Outcome = db.RunStatusNoClusters
	OutcomeFailed     Outcome = db.RunStatusFailed
	OutcomeSkipped    Outcome = "skipped"
)

type ArticleStore interface {
	ListUnprocessedRawArticles(ctx context.Context) ([]db.RawArticleRecord, error)
	MarkRawArticlesProcessed(ctx context.Context, ids []int64, processedAt time.Time) (int64, error)
	InsertCanonicalArticles(ctx context.Context, batch []db.InsertCanonicalArticleParams) ([]db.InsertCanonicalArticleResult, error)
}

type TaxonomyStore interface {
	ListCategories(ctx context.Context) ([]db.TaxonomyEntry, error)
	ListSources(ctx context.Context) ([]db.TaxonomyEntry, error)
}

type RunLedger interface {
	StartSynthesisRun(ctx context.Context, runUUID, trigger string, startedAt time.Time) error
	FinishSynthesisRun(ctx context.Context, params db.FinishSynthesisRunParams) error
}

type Synthesizer interface {
	Synthesize(ctx context.Context, req prompt.Request) synthesis.Result
}

// Report describes one Run call. Skipped reports carry no counters.
type Report struct {
	RunID               string              `json:"run_id,omitempty"`
	Trigger             Trigger             `json:"trigger"`
	Outcome             Outcome             `json:"outcome"`
	Skipped             bool                `json:"skipped"`
	Fetched             int                 `json:"fetched"`
	Edges               int                 `json:"edges"`
	Clusters            int                 `json:"clusters"`
	Categories          int                 `json:"categories"`
	Sources             int                 `json:"sources"`
	PromptLength        int                 `json:"prompt_length"`
	Synthesized         int                 `json:"synthesized"`
	Persisted           int                 `json:"persisted"`
	Rejected            int                 `json:"rejected"`
	DroppedCategoryRefs int                 `json:"dropped_category_refs"`
	DroppedSourceRefs   int                 `json:"dropped_source_refs"`
	Marked              int64               `json:"marked"`
	SynthesisFailed     bool                `json:"synthesis_failed"`
	Error               string              `json:"error,omitempty"`
	Results             []synthesis.Article `json:"results,omitempty"`
	StartedAt           time.Time           `json:"started_at,omitempty"`
	FinishedAt          time.Time           `json:"finished_at,omitempty"`
}

type Options struct {
	Threshold       float64
	Workers         int
	PrimaryRule     cluster.PrimaryRule
	ProcessedPolicy string
	Prompt          prompt.Options
}

type Deps struct {
	Articles ArticleStore
	Taxonomy TaxonomyStore
	Ledger   RunLedger
	Gateway  Synthesizer
	State    *RunState
	Metrics  *Metrics
	Logger   zerolog.Logger
}

type Service struct {
	articles  ArticleStore
	taxonomy  TaxonomyStore
	ledger    RunLedger
	gateway   Synthesizer
	engine    *similarity.Engine
	assembler *prompt.Assembler
	rule      cluster.PrimaryRule
	policy    string
	state     *RunState
	metrics   *Metrics
	logger    zerolog.Logger
	newRunID  func() string
}

func NewService(deps Deps, opts Options) (*Service, error) {
	if deps.Articles == nil || deps.Taxonomy == nil || deps.Ledger == nil || deps.Gateway == nil {
		return nil, fmt.Errorf("orchestrator requires article, taxonomy, ledger and gateway dependencies")
	}

	policy := opts.ProcessedPolicy
	switch policy {
	case "":
		policy = config.ProcessedPolicyMarkAll
	case config.ProcessedPolicyMarkAll, config.ProcessedPolicyRetainOnFailure, config.ProcessedPolicyContributingOnly:
	default:
		return nil, fmt.Errorf("unknown processed policy %q", policy)
	}

	rule := opts.PrimaryRule
	if rule == "" {
		rule = cluster.PrimaryLowestID
	}

	state := deps.State
	if state == nil {
		state = &RunState{}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	return &Service{
		articles:  deps.Articles,
		taxonomy:  deps.Taxonomy,
		ledger:    deps.Ledger,
		gateway:   deps.Gateway,
		engine:    similarity.NewEngine(similarity.Options{Threshold: opts.Threshold, Workers: opts.Workers}),
		assembler: prompt.NewAssembler(opts.Prompt),
		rule:      rule,
		policy:    policy,
		state:     state,
		metrics:   metrics,
		logger:    deps.Logger.With().Str("component", "orchestrator").Logger(),
		newRunID:  func() string { return uuid.NewString() },
	}, nil
}

func (s *Service) State() *RunState {
	return s.state
}

func (s *Service) Metrics() *Metrics {
	return s.metrics
}

// Run executes one orchestration pass. It never returns an error: failures
// are logged and described by the report. A call that finds another run in
// progress returns a skipped report without touching any store.
func (s *Service) Run(ctx context.Context, trigger Trigger) (report Report) {
	report = Report{Trigger: trigger}
	if !s.state.TryStart() {
		report.Skipped = true
		report.Outcome = OutcomeSkipped
		s.metrics.observe(report)
		s.logger.Info().Str("trigger", string(trigger)).Msg("orchestration already running; skipping")
		return report
	}
	defer s.state.Finish()

	s.metrics.inProgress.Set(1)
	defer s.metrics.inProgress.Set(0)

	ctx = context.WithoutCancel(ctx)
	report.RunID = s.newRunID()
	report.StartedAt = globaltime.UTC()
	logger := s.logger.With().Str("run_id", report.RunID).Str("trigger", string(trigger)).Logger()

	ledgerStarted := false
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error().
				Interface("panic", recovered).
				Str("stack", string(debug.Stack())).
				Msg("orchestration run panicked")
			report.Outcome = OutcomeFailed
			report.Error = fmt.Sprintf("panic: %v", recovered)
		}
		report.FinishedAt = globaltime.UTC()
		s.metrics.observe(report)
		if ledgerStarted {
			s.recordFinish(ctx, logger, report)
		}

		event := logger.Info()
		if report.Outcome == OutcomeFailed || report.SynthesisFailed {
			event = logger.Warn()
		}
		event.
			Str("outcome", string(report.Outcome)).
			Int("fetched", report.Fetched).
			Int("edges", report.Edges).
			Int("clusters", report.Clusters).
			Int("persisted", report.Persisted).
			Int64("marked", report.Marked).
			Bool("synthesis_failed", report.SynthesisFailed).
			Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
			Msg("orchestration run finished")
	}()

	if err := s.ledger.StartSynthesisRun(ctx, report.RunID, string(trigger), report.StartedAt); err != nil {
		logger.Warn().Err(err).Msg("failed to record run start")
	} else {
		ledgerStarted = true
	}

	s.execute(ctx, logger, &report)
	return report
}

func (s *Service) execute(ctx context.Context, logger zerolog.Logger, report *Report) {
	raws, err := s.articles.ListUnprocessedRawArticles(ctx)
	if err != nil {
		s.fail(logger, report, "fetch unprocessed raw articles", err)
		return
	}
	report.Fetched = len(raws)

	edges, err := s.engine.FindEdges(ctx, documents(raws))
	if err != nil {
		s.fail(logger, report, "score similarity", err)
		return
	}
	report.Edges = len(edges)

	clusters := cluster.Build(edges, cluster.Options{Rule: s.rule, PublishedAt: publishedAt(raws)})
	report.Clusters = len(clusters)
	if len(clusters) == 0 {
		report.Outcome = OutcomeNoClusters
		logger.Info().Int("fetched", report.Fetched).Msg("no clusters found; leaving backlog untouched")
		return
	}

	categories, err := s.taxonomy.ListCategories(ctx)
	if err != nil {
		s.fail(logger, report, "list categories", err)
		return
	}
	sources, err := s.taxonomy.ListSources(ctx)
	if err != nil {
		s.fail(logger, report, "list sources", err)
		return
	}
	report.Categories = len(categories)
	report.Sources = len(sources)

	articles := clusterArticles(raws)
	req, err := s.assembler.Assemble(clusters, articles, prompt.Taxonomy{
		Categories: promptEntries(categories),
		Sources:    promptEntries(sources),
	})
	if err != nil {
		s.fail(logger, report, "assemble prompt", err)
		return
	}
	report.PromptLength = len(req.Text())

	result := s.gateway.Synthesize(ctx, req)
	s.metrics.synthesisCalls.WithLabelValues(string(result.Status)).Inc()
	report.Synthesized = len(result.Articles)
	report.Rejected = result.Rejected
	if !result.OK() {
		report.SynthesisFailed = true
		if result.Err != nil {
			report.Error = result.Err.Error()
		}
		logger.Error().Err(result.Err).Msg("synthesis call failed")
	}

	matched, unmatched := matchClusters(result.Articles, clusters)
	if unmatched > 0 {
		report.Rejected += unmatched
		logger.Warn().
			Int("unmatched", unmatched).
			Int("clusters", len(clusters)).
			Msg("dropped synthesized articles without a cluster of their own")
	}
	report.Results = make([]synthesis.Article, 0, len(matched))
	for _, m := range matched {
		report.Results = append(report.Results, m.article)
	}

	contributing, err := s.persist(ctx, logger, report, matched, categories, sources)
	if err != nil {
		s.fail(logger, report, "persist canonical articles", err)
		return
	}

	ids := s.idsToMark(raws, clusters, report.SynthesisFailed, contributing)
	if len(ids) > 0 {
		marked, err := s.articles.MarkRawArticlesProcessed(ctx, ids, globaltime.UTC())
		if err != nil {
			s.fail(logger, report, "mark raw articles processed", err)
			return
		}
		report.Marked = marked
	}

	report.Outcome = OutcomeCompleted
}

// matchedArticle is a synthesized article paired with the cluster its echoed
// id belongs to.
type matchedArticle struct {
	article   synthesis.Article
	primaryID int64
}

// matchClusters keeps at most one synthesized article per cluster. An article
// is matched through its echoed id, which must be a member of some cluster.
// Articles without an id, with an id outside every cluster, or for a cluster
// that already has an article are counted as unmatched.
func matchClusters(results []synthesis.Article, clusters []cluster.Cluster) ([]matchedArticle, int) {
	primaryOf := make(map[int64]int64)
	for _, c := range clusters {
		for _, id := range c.MemberIDs {
			primaryOf[id] = c.PrimaryID
		}
	}

	taken := make(map[int64]struct{}, len(clusters))
	matched := make([]matchedArticle, 0, len(clusters))
	unmatched := 0
	for _, article := range results {
		if article.ID == nil {
			unmatched++
			continue
		}
		primary, ok := primaryOf[*article.ID]
		if !ok {
			unmatched++
			continue
		}
		if _, dup := taken[primary]; dup {
			unmatched++
			continue
		}
		taken[primary] = struct{}{}
		matched = append(matched, matchedArticle{article: article, primaryID: primary})
	}
	return matched, unmatched
}

// persist writes the matched articles in one store call and returns the
// primary ids of the clusters that now have a canonical article. A store
// error leaves nothing written.
func (s *Service) persist(
	ctx context.Context,
	logger zerolog.Logger,
	report *Report,
	matched []matchedArticle,
	categories []db.TaxonomyEntry,
	sources []db.TaxonomyEntry,
) (map[int64]struct{}, error) {
	contributing := make(map[int64]struct{}, len(matched))
	if len(matched) == 0 {
		return contributing, nil
	}

	knownCategories := idSet(categories)
	knownSources := idSet(sources)
	defaultCategory := s.assembler.Options().DefaultCategoryID
	createdAt := globaltime.UTC()

	batch := make([]db.InsertCanonicalArticleParams, 0, len(matched))
	droppedCategories, droppedSources := 0, 0
	for _, m := range matched {
		article := m.article
		categoryIDs, dropped := resolve(article.CategoryIDs, knownCategories)
		droppedCategories += dropped
		sourceIDs, dropped := resolve(article.SourceIDs, knownSources)
		droppedSources += dropped
		if len(categoryIDs) == 0 {
			if _, ok := knownCategories[defaultCategory]; ok {
				categoryIDs = []int64{defaultCategory}
			}
		}

		origin := *article.ID
		publishedAt := article.PublishedAt
		batch = append(batch, db.InsertCanonicalArticleParams{
			Title:              article.Title,
			Summary:            article.Summary,
			Content:            article.Content,
			URL:                optionalString(article.URL),
			ImageURL:           optionalString(article.ImageURL),
			PublishedAt:        &publishedAt,
			OriginRawArticleID: &origin,
			SynthesisRunUUID:   report.RunID,
			CategoryIDs:        categoryIDs,
			SourceIDs:          sourceIDs,
			CreatedAt:          createdAt,
		})
	}
	report.DroppedCategoryRefs += droppedCategories
	report.DroppedSourceRefs += droppedSources

	inserted, err := s.articles.InsertCanonicalArticles(ctx, batch)
	if err != nil {
		return nil, err
	}
	report.Persisted = len(inserted)
	for i, m := range matched {
		contributing[m.primaryID] = struct{}{}
		if i < len(inserted) {
			logger.Debug().
				Int64("article_id", inserted[i].ArticleID).
				Int64("primary_raw_article_id", m.primaryID).
				Int64("categories", inserted[i].LinkedCategories).
				Int64("sources", inserted[i].LinkedSources).
				Msg("canonical article stored")
		}
	}
	return contributing, nil
}

func (s *Service) idsToMark(raws []db.RawArticleRecord, clusters []cluster.Cluster, synthesisFailed bool, contributing map[int64]struct{}) []int64 {
	switch s.policy {
	case config.ProcessedPolicyRetainOnFailure:
		if synthesisFailed {
			return nil
		}
	case config.ProcessedPolicyContributingOnly:
		if synthesisFailed {
			return nil
		}
		var ids []int64
		for _, c := range clusters {
			if _, ok := contributing[c.PrimaryID]; ok {
				ids = append(ids, c.MemberIDs...)
			}
		}
		return ids
	}

	ids := make([]int64, 0, len(raws))
	for _, raw := range raws {
		ids = append(ids, raw.RawArticleID)
	}
	return ids
}

func (s *Service) fail(logger zerolog.Logger, report *Report, step string, err error) {
	report.Outcome = OutcomeFailed
	report.Error = fmt.Sprintf("%s: %v", step, err)
	logger.Error().Err(err).Str("step", step).Msg("orchestration run aborted")
}

func (s *Service) recordFinish(ctx context.Context, logger zerolog.Logger, report Report) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error().Interface("panic", recovered).Msg("recording run finish panicked")
		}
	}()

	err := s.ledger.FinishSynthesisRun(ctx, db.FinishSynthesisRunParams{
		RunUUID:          report.RunID,
		Status:           string(report.Outcome),
		FetchedCount:     report.Fetched,
		EdgeCount:        report.Edges,
		ClusterCount:     report.Clusters,
		SynthesizedCount: report.Synthesized,
		PersistedCount:   report.Persisted,
		MarkedCount:      report.Marked,
		SynthesisFailed:  report.SynthesisFailed,
		ErrorMessage:     report.Error,
		FinishedAt:       report.FinishedAt,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to record run finish")
	}
}

func documents(raws []db.RawArticleRecord) []similarity.Document {
	docs := make([]similarity.Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, similarity.Document{
			ID:          raw.RawArticleID,
			Title:       raw.Title,
			Description: raw.Description,
			Content:     raw.Content,
		})
	}
	return docs
}

func publishedAt(raws []db.RawArticleRecord) map[int64]time.Time {
	out := make(map[int64]time.Time, len(raws))
	for _, raw := range raws {
		if raw.PublishedAt != nil {
			out[raw.RawArticleID] = *raw.PublishedAt
		}
	}
	return out
}

func clusterArticles(raws []db.RawArticleRecord) map[int64]cluster.Article {
	out := make(map[int64]cluster.Article, len(raws))
	for _, raw := range raws {
		out[raw.RawArticleID] = cluster.Article{
			ID:          raw.RawArticleID,
			APISource:   raw.APISource,
			SourceName:  raw.SourceName,
			Title:       raw.Title,
			Description: raw.Description,
			Content:     raw.Content,
			URL:         raw.URL,
			ImageURL:    raw.ImageURL,
			PublishedAt: raw.PublishedAt,
			FetchedAt:   raw.FetchedAt,
		}
	}
	return out
}

func promptEntries(entries []db.TaxonomyEntry) []prompt.TaxonomyEntry {
	out := make([]prompt.TaxonomyEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, prompt.TaxonomyEntry{ID: entry.ID, Name: entry.Name})
	}
	return out
}

func idSet(entries []db.TaxonomyEntry) map[int64]struct{} {
	out := make(map[int64]struct{}, len(entries))
	for _, entry := range entries {
		out[entry.ID] = struct{}{}
	}
	return out
}

// resolve keeps ids present in known, in order, and counts the rest.
func resolve(ids []int64, known map[int64]struct{}) ([]int64, int) {
	kept := make([]int64, 0, len(ids))
	dropped := 0
	for _, id := range ids {
		if _, ok := known[id]; ok {
			kept = append(kept, id)
			continue
		}
		dropped++
	}
	return kept, dropped
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
