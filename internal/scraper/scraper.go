// Package scraper fetches candidate product pages and normalizes them into
// product records.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/FranksOps/shopwise/internal/metrics"
	"github.com/FranksOps/shopwise/internal/model"
	"golang.org/x/sync/errgroup"
)

// Config tunes the fan-out.
type Config struct {
	// Concurrency caps in-flight fetches (default 4).
	Concurrency int
	// FetchTimeout bounds each fetch independently (default 10s).
	FetchTimeout time.Duration
	Selectors    Selectors
	// Robots, when set, is consulted before every fetch.
	Robots *RobotsPolicy
}

// ParseFunc turns a fetched body into a record.
type ParseFunc func(sourceURL string, body []byte, sel Selectors) (model.ProductRecord, error)

// Scraper fetches and parses product pages concurrently.
type Scraper struct {
	cfg     Config
	fetcher PageFetcher
	parse   ParseFunc
	logger  *slog.Logger
}

// New creates a Scraper backed by fetcher.
func New(fetcher PageFetcher, cfg Config, logger *slog.Logger) *Scraper {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{cfg: cfg, fetcher: fetcher, parse: Extract, logger: logger}
}

// Scrape returns one record per hit, in hit order. Individual failures become
// failed records and never abort the batch.
func (s *Scraper) Scrape(ctx context.Context, hits []model.SearchHit) []model.ProductRecord {
	records := make([]model.ProductRecord, len(hits))

	// A plain Group: one hit failing must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	for i, hit := range hits {
		if err := ctx.Err(); err != nil {
			records[i] = model.FailedRecord(hit.URL, err.Error())
			continue
		}
		g.Go(func() error {
			records[i] = s.scrapeOne(ctx, hit.URL)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range records {
		metrics.RecordsTotal.WithLabelValues(r.Status.String()).Inc()
	}
	return records
}

func (s *Scraper) scrapeOne(ctx context.Context, target string) (rec model.ProductRecord) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while scraping", "url", target, "panic", r)
			rec = model.FailedRecord(target, fmt.Sprintf("panic: %v", r))
		}
	}()

	if target == "" {
		return model.FailedRecord(target, "empty url")
	}

	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	if s.cfg.Robots != nil {
		allowed, err := s.cfg.Robots.Allowed(fctx, target)
		if err != nil {
			return model.FailedRecord(target, err.Error())
		}
		if !allowed {
			s.logger.Debug("url blocked by robots.txt", "url", target)
			return model.FailedRecord(target, "disallowed by robots.txt")
		}
	}

	page, err := s.fetcher.Fetch(fctx, target)
	if err != nil {
		s.logger.Warn("fetch error", "url", target, "err", err)
		return model.FailedRecord(target, err.Error())
	}
	s.record(target, page)

	if page.Failed() {
		s.logger.Warn("fetch failed", "url", target, "status", page.StatusCode, "err", page.Error, "bot", page.DetectionSrc)
		rec = model.FailedRecord(target, page.Error)
		rec.DetectedBot = page.DetectedBot
		rec.DetectionSrc = page.DetectionSrc
		return rec
	}

	rec, err = s.parse(target, page.Body, s.cfg.Selectors)
	if err != nil {
		s.logger.Warn("parse failed", "url", target, "err", err)
		return model.FailedRecord(target, err.Error())
	}
	rec.SourceURL = target
	rec.DetectedBot = page.DetectedBot
	rec.DetectionSrc = page.DetectionSrc
	return rec
}

func (s *Scraper) record(target string, page *Page) {
	domain := ""
	if u, err := url.Parse(target); err == nil {
		domain = u.Hostname()
	}
	metrics.RecordScrape(metrics.ScrapeSample{
		Domain:       domain,
		StatusCode:   page.StatusCode,
		Failed:       page.Failed(),
		DetectionSrc: page.DetectionSrc,
		Bytes:        len(page.Body),
		Duration:     page.Duration,
	})
}
