package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsPolicy fetches and caches robots.txt per origin and answers whether
// a product URL may be fetched by agent. Distinct origins are fetched
// concurrently; callers for the same origin share one fetch.
type RobotsPolicy struct {
	fetcher PageFetcher
	agent   string
	logger  *slog.Logger
	mu      sync.Mutex
	cache   map[string]*robotsEntry
}

// robotsEntry is one origin's rules. done is closed once data and err are set.
type robotsEntry struct {
	done chan struct{}
	data *robotstxt.RobotsData
	err  error
}

// NewRobotsPolicy creates a policy that evaluates rules for agent.
func NewRobotsPolicy(fetcher PageFetcher, agent string, logger *slog.Logger) *RobotsPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	if agent == "" {
		agent = "*"
	}
	return &RobotsPolicy{
		fetcher: fetcher,
		agent:   agent,
		logger:  logger,
		cache:   make(map[string]*robotsEntry),
	}
}

// Allowed reports whether targetURL may be fetched. An unreachable or missing
// robots.txt allows everything.
func (r *RobotsPolicy) Allowed(ctx context.Context, targetURL string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}

	origin := u.Scheme + "://" + u.Host

	data, err := r.getOrFetch(ctx, origin)
	if err != nil {
		r.logger.Debug("robots.txt fetch failed, defaulting to allow", "origin", origin, "err", err)
		return true, nil
	}
	if data == nil {
		return true, nil
	}

	return data.FindGroup(r.agent).Test(u.Path), nil
}

func (r *RobotsPolicy) getOrFetch(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	r.mu.Lock()
	e, exists := r.cache[origin]
	if !exists {
		e = &robotsEntry{done: make(chan struct{})}
		r.cache[origin] = e
	}
	r.mu.Unlock()

	if !exists {
		var keep bool
		e.data, keep, e.err = r.fetch(ctx, origin)
		if !keep {
			// Transport failures are not cached so a later hit can retry.
			r.mu.Lock()
			delete(r.cache, origin)
			r.mu.Unlock()
		}
		close(e.done)
		return e.data, e.err
	}

	select {
	case <-e.done:
		return e.data, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetch retrieves and parses origin's robots.txt. keep reports whether the
// outcome should be cached for later lookups.
func (r *RobotsPolicy) fetch(ctx context.Context, origin string) (data *robotstxt.RobotsData, keep bool, err error) {
	page, err := r.fetcher.Fetch(ctx, origin+"/robots.txt")
	if err != nil {
		return nil, false, fmt.Errorf("fetch error: %w", err)
	}
	if page.StatusCode >= http.StatusBadRequest {
		// Treat 4xx/5xx as absent rules, like crawlers conventionally do.
		return nil, true, nil
	}
	if page.Error != "" {
		return nil, false, fmt.Errorf("fetch error: %s", page.Error)
	}

	parsed, err := robotstxt.FromBytes(page.Body)
	if err != nil {
		return nil, true, fmt.Errorf("parse error: %w", err)
	}
	return parsed, true, nil
}
