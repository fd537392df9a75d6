// Package pipeline sequences the comparison stages for one query:
// plan, search, scrape, assemble, synthesize.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/shopwise/internal/metrics"
	"github.com/FranksOps/shopwise/internal/model"
	"github.com/google/uuid"
)

// DefaultSiteFilter restricts search to PChome 24h product pages.
const DefaultSiteFilter = "24h.pchome.com.tw/prod"

// DefaultNumResults is how many search hits are scraped per run.
const DefaultNumResults = 10

type (
	// Planner produces search keywords; it never fails.
	Planner interface {
		Plan(ctx context.Context, query string) model.KeywordSet
	}
	// Searcher returns ranked hits; failures yield no hits.
	Searcher interface {
		Search(ctx context.Context, keywords string, numResults int, siteFilter string) []model.SearchHit
	}
	// Scraper returns one record per hit.
	Scraper interface {
		Scrape(ctx context.Context, hits []model.SearchHit) []model.ProductRecord
	}
	// Assembler builds the grounding context.
	Assembler interface {
		Assemble(records []model.ProductRecord, hits []model.SearchHit) model.AssembledContext
	}
	// Synthesizer makes the final model call.
	Synthesizer interface {
		Synthesize(ctx context.Context, query string, c model.AssembledContext) (string, model.Outcome, error)
	}
	// Recorder persists a finished run. It is only called for runs that
	// reached SynthesisDone.
	Recorder interface {
		Record(ctx context.Context, run *Run) error
	}
)

// Config parameterizes a Runner.
type Config struct {
	// NumResults caps search hits (default DefaultNumResults).
	NumResults int
	// SiteFilter is applied as an inurl restriction. Empty disables it.
	SiteFilter string
}

// Deps are the stage implementations. Recorder is optional.
type Deps struct {
	Planner     Planner
	Searcher    Searcher
	Scraper     Scraper
	Assembler   Assembler
	Synthesizer Synthesizer
	Recorder    Recorder
}

// Runner executes comparison runs. It holds no per-request state and is safe
// for concurrent use.
type Runner struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
}

// NewRunner validates deps and returns a Runner.
func NewRunner(deps Deps, cfg Config, logger *slog.Logger) (*Runner, error) {
	switch {
	case deps.Planner == nil:
		return nil, errors.New("pipeline: planner is nil")
	case deps.Searcher == nil:
		return nil, errors.New("pipeline: searcher is nil")
	case deps.Scraper == nil:
		return nil, errors.New("pipeline: scraper is nil")
	case deps.Assembler == nil:
		return nil, errors.New("pipeline: assembler is nil")
	case deps.Synthesizer == nil:
		return nil, errors.New("pipeline: synthesizer is nil")
	}
	if cfg.NumResults <= 0 {
		cfg.NumResults = DefaultNumResults
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{deps: deps, cfg: cfg, logger: logger}, nil
}

// Run executes every stage for query on behalf of caller.
//
// A blank query returns model.ErrInputInvalid and a nil Run before any
// external call. Otherwise the Run is always returned; the error is non-nil
// when synthesis failed hard or ctx was cancelled, and in both cases nothing
// is recorded.
func (r *Runner) Run(ctx context.Context, caller, query string) (*Run, error) {
	if err := model.ValidateQuery(query); err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	run := &Run{
		ID:        uuid.New(),
		Caller:    caller,
		Query:     strings.TrimSpace(query),
		State:     StatePending,
		StartedAt: time.Now().UTC(),
	}
	log := r.logger.With("run_id", run.ID, "caller", caller)
	log.Info("run started", "query", run.Query)

	stage := func(name string, next State, fn func()) error {
		start := time.Now()
		fn()
		metrics.ObserveStage(name, time.Since(start))
		if err := ctx.Err(); err != nil {
			return err
		}
		run.State = next
		log.Debug("stage done", "stage", name, "state", next, "duration", time.Since(start))
		return nil
	}

	steps := []struct {
		name string
		next State
		fn   func()
	}{
		{"plan", StateKeywordsReady, func() {
			run.Keywords = r.deps.Planner.Plan(ctx, run.Query)
		}},
		{"search", StateSearchDone, func() {
			run.Hits = r.deps.Searcher.Search(ctx, strings.Join(run.Keywords, " "), r.cfg.NumResults, r.cfg.SiteFilter)
		}},
		{"scrape", StateScrapeDone, func() {
			run.Records = r.deps.Scraper.Scrape(ctx, run.Hits)
		}},
		{"assemble", StateContextReady, func() {
			run.Context = r.deps.Assembler.Assemble(run.Records, run.Hits)
		}},
	}
	for _, s := range steps {
		if err := stage(s.name, s.next, s.fn); err != nil {
			return r.cancelled(run, log, err)
		}
	}

	start := time.Now()
	raw, outcome, err := r.deps.Synthesizer.Synthesize(ctx, run.Query, run.Context)
	metrics.ObserveStage("synthesize", time.Since(start))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return r.cancelled(run, log, ctxErr)
	}
	if err != nil {
		run.State = StateFailed
		run.FinishedAt = time.Now().UTC()
		metrics.PipelineRunsTotal.WithLabelValues("failed").Inc()
		log.Error("synthesis failed", "err", err)
		return run, fmt.Errorf("pipeline: %w", err)
	}

	run.RawText = raw
	run.Outcome = outcome
	run.State = StateSynthesisDone
	run.FinishedAt = time.Now().UTC()
	metrics.PipelineRunsTotal.WithLabelValues(outcome.Kind()).Inc()

	if r.deps.Recorder != nil {
		if err := r.deps.Recorder.Record(ctx, run); err != nil {
			log.Warn("failed to record run", "err", err)
		}
	}

	log.Info("run finished",
		"keywords", strings.Join(run.Keywords, " "),
		"hits", len(run.Hits),
		"records_ok", run.CountRecords(model.StatusOK),
		"records_failed", run.CountRecords(model.StatusFailed),
		"outcome", outcome.Kind(),
		"duration", run.FinishedAt.Sub(run.StartedAt),
	)
	return run, nil
}

func (r *Runner) cancelled(run *Run, log *slog.Logger, err error) (*Run, error) {
	run.FinishedAt = time.Now().UTC()
	metrics.PipelineRunsTotal.WithLabelValues("cancelled").Inc()
	log.Warn("run cancelled", "state", run.State, "err", err)
	return run, fmt.Errorf("pipeline: %w", err)
}
