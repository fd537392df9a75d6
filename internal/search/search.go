// Package search turns keyword strings into ranked candidate product pages.
package search

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/shopwise/internal/metrics"
	"github.com/FranksOps/shopwise/internal/model"
)

// Request is one provider call.
type Request struct {
	Q               string
	SiteRestriction string
	Count           int
	Locale          string // country bias, e.g. "tw"
	Language        string // interface language, e.g. "zh-TW"
	SafeMode        string // "active" or "off"
}

// Item is a raw provider result.
type Item struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Snippet     string `json:"snippet"`
	DisplayLink string `json:"displayLink"`
}

// Provider abstracts a web search backend.
type Provider interface {
	Query(ctx context.Context, req Request) ([]Item, error)
}

// Config holds the fixed locale and safety settings applied to every search.
type Config struct {
	Locale   string
	Language string
	SafeMode string
}

// DefaultConfig biases results to the Taiwanese storefront.
var DefaultConfig = Config{Locale: "tw", Language: "zh-TW", SafeMode: "active"}

// Client runs searches through a Provider and normalizes the hits.
type Client struct {
	provider Provider
	cfg      Config
	logger   *slog.Logger
}

// NewClient creates a Client. Empty config fields take DefaultConfig values.
func NewClient(p Provider, cfg Config, logger *slog.Logger) *Client {
	if cfg.Locale == "" {
		cfg.Locale = DefaultConfig.Locale
	}
	if cfg.Language == "" {
		cfg.Language = DefaultConfig.Language
	}
	if cfg.SafeMode == "" {
		cfg.SafeMode = DefaultConfig.SafeMode
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{provider: p, cfg: cfg, logger: logger}
}

// Search returns at most numResults hits for keywords in provider order.
// Provider failures are logged and yield an empty slice; Search never errors.
func (c *Client) Search(ctx context.Context, keywords string, numResults int, siteFilter string) []model.SearchHit {
	keywords = strings.TrimSpace(keywords)
	if keywords == "" || numResults <= 0 {
		return []model.SearchHit{}
	}

	start := time.Now()
	items, err := c.provider.Query(ctx, Request{
		Q:               keywords,
		SiteRestriction: strings.TrimSpace(siteFilter),
		Count:           numResults,
		Locale:          c.cfg.Locale,
		Language:        c.cfg.Language,
		SafeMode:        c.cfg.SafeMode,
	})
	if err != nil {
		c.logger.Warn("search failed, continuing with no hits", "q", keywords, "err", err)
		metrics.RecordSearch(err, 0)
		return []model.SearchHit{}
	}

	hits := normalize(items, numResults)
	metrics.RecordSearch(nil, len(hits))
	c.logger.Debug("search done", "q", keywords, "items", len(items), "hits", len(hits), "duration", time.Since(start))
	return hits
}

func normalize(items []Item, limit int) []model.SearchHit {
	hits := make([]model.SearchHit, 0, min(len(items), limit))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		link := strings.TrimSpace(it.Link)
		if link == "" {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}

		hits = append(hits, model.SearchHit{
			Title:        strings.TrimSpace(it.Title),
			URL:          link,
			Snippet:      strings.TrimSpace(it.Snippet),
			SourceDomain: domainOf(it),
		})
		if len(hits) == limit {
			break
		}
	}
	return hits
}

func domainOf(it Item) string {
	if it.DisplayLink != "" {
		return it.DisplayLink
	}
	if u, err := url.Parse(it.Link); err == nil {
		return u.Hostname()
	}
	return ""
}
