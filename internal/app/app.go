// Package app builds the comparison pipeline from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/FranksOps/shopwise/internal/assemble"
	"github.com/FranksOps/shopwise/internal/config"
	"github.com/FranksOps/shopwise/internal/fingerprint"
	"github.com/FranksOps/shopwise/internal/llm"
	"github.com/FranksOps/shopwise/internal/pipeline"
	"github.com/FranksOps/shopwise/internal/planner"
	"github.com/FranksOps/shopwise/internal/scraper"
	"github.com/FranksOps/shopwise/internal/search"
	"github.com/FranksOps/shopwise/internal/storage"
	"github.com/FranksOps/shopwise/internal/storage/jsonbackend"
	"github.com/FranksOps/shopwise/internal/storage/postgres"
	"github.com/FranksOps/shopwise/internal/storage/sqlite"
	"github.com/FranksOps/shopwise/internal/synth"
	"github.com/FranksOps/shopwise/pkg/httpclient"
	"github.com/FranksOps/shopwise/pkg/ratelimit"
	"github.com/FranksOps/shopwise/pkg/useragent"
)

// RobotsAgent is the product token matched against robots.txt groups.
const RobotsAgent = "shopwise"

// App owns the runner and the resources behind it.
type App struct {
	Runner  *pipeline.Runner
	Backend storage.Backend // nil when history is disabled
}

// New wires every stage from cfg. The caller must Close the App.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	gen, err := NewGenerator(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	searcher, err := newSearcher(cfg.Search, logger)
	if err != nil {
		return nil, err
	}

	scr, err := newScraper(cfg.Scraper, logger)
	if err != nil {
		return nil, err
	}

	backend, err := OpenBackend(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Planner:     planner.New(gen, cfg.Planner.MaxKeywords, logger),
		Searcher:    searcher,
		Scraper:     scr,
		Assembler:   assemble.New(cfg.Context.Budget),
		Synthesizer: synth.New(gen, logger),
	}
	if backend != nil {
		deps.Recorder = Recorder{Backend: backend}
	}

	runner, err := pipeline.NewRunner(deps, pipeline.Config{
		NumResults: cfg.Search.NumResults,
		SiteFilter: cfg.Search.SiteFilter,
	}, logger)
	if err != nil {
		if backend != nil {
			backend.Close()
		}
		return nil, fmt.Errorf("app: %w", err)
	}

	return &App{Runner: runner, Backend: backend}, nil
}

// Close releases the storage backend.
func (a *App) Close() error {
	if a.Backend == nil {
		return nil
	}
	return a.Backend.Close()
}

// NewGenerator selects the LLM provider and wraps it with a single retry.
func NewGenerator(ctx context.Context, c config.LLM, logger *slog.Logger) (llm.Generator, error) {
	hc := &http.Client{Timeout: c.Timeout}

	var gen llm.Generator
	switch c.Provider {
	case "gemini", "":
		g, err := llm.NewGemini(ctx, llm.GeminiConfig{APIKey: c.APIKey, Model: c.Model, BaseURL: c.BaseURL, HTTPClient: hc})
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		gen = g
	case "openai":
		o, err := llm.NewOpenAI(llm.OpenAIConfig{APIKey: c.APIKey, Model: c.Model, BaseURL: c.BaseURL, HTTPClient: hc})
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		gen = o
	default:
		return nil, fmt.Errorf("app: unknown llm provider %q", c.Provider)
	}

	return llm.WithRetry(gen, c.RetryBackoff, logger), nil
}

// OpenBackend opens the history store named by s. It returns a nil Backend
// when history is disabled.
func OpenBackend(ctx context.Context, s config.Storage) (storage.Backend, error) {
	var (
		b   storage.Backend
		err error
	)
	switch s.Kind {
	case "", "none":
		return nil, nil
	case "sqlite":
		b, err = sqlite.New(s.DSN)
	case "postgres":
		b, err = postgres.New(ctx, s.DSN)
	case "json":
		b, err = jsonbackend.New(s.DSN)
	default:
		return nil, fmt.Errorf("app: unknown storage kind %q", s.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("app: open %s storage: %w", s.Kind, err)
	}
	return b, nil
}

func newSearcher(c config.Search, logger *slog.Logger) (*search.Client, error) {
	hc, err := httpclient.New(httpclient.Config{Timeout: c.Timeout})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	provider, err := search.NewGoogleCSE(search.GoogleCSEConfig{
		APIKey:   c.APIKey,
		EngineID: c.EngineID,
		Endpoint: c.Endpoint,
		Client:   hc,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return search.NewClient(provider, search.Config{
		Locale:   c.Locale,
		Language: c.Language,
		SafeMode: c.SafeMode,
	}, logger), nil
}

func newScraper(c config.Scraper, logger *slog.Logger) (*scraper.Scraper, error) {
	profile, err := fingerprint.ParseProfile(c.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	fc := scraper.FetchConfig{
		Timeout:      c.FetchTimeout,
		UseCookieJar: true,
		MaxBodyBytes: c.MaxBodyBytes,
		UAPool:       useragent.NewPool(c.UserAgents, c.AcceptLanguage),
		Fingerprint:  profile,
	}
	if c.RateLimit > 0 {
		fc.Limiter = ratelimit.NewHostLimiter(c.RateLimit, c.Jitter)
	}

	fetcher, err := scraper.NewFetcher(fc)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	sc := scraper.Config{
		Concurrency:  c.Concurrency,
		FetchTimeout: c.FetchTimeout,
		Selectors:    c.Selectors,
	}
	if c.RespectRobots {
		sc.Robots = scraper.NewRobotsPolicy(fetcher, RobotsAgent, logger)
	}
	return scraper.New(fetcher, sc, logger), nil
}
