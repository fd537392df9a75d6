package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/FranksOps/shopwise/internal/bypass"
	"github.com/FranksOps/shopwise/internal/fingerprint"
	"github.com/FranksOps/shopwise/pkg/httpclient"
	"github.com/FranksOps/shopwise/pkg/ratelimit"
	"github.com/FranksOps/shopwise/pkg/useragent"
)

// DefaultMaxBodyBytes caps how much of a product page is read.
const DefaultMaxBodyBytes = 4 << 20

// Page is the outcome of fetching one URL. Transport failures are reported in
// Error instead of as a returned error so callers can record them per hit.
type Page struct {
	URL          string
	StatusCode   int
	Header       http.Header
	Body         []byte
	Duration     time.Duration
	Error        string
	DetectedBot  bool
	DetectionSrc string
}

// Failed reports whether the page cannot be parsed as a product.
func (p *Page) Failed() bool {
	return p.Error != "" || p.StatusCode >= http.StatusBadRequest
}

// PageFetcher retrieves a single page. Implementations must honor ctx.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// FetchConfig configures the HTTP fetcher.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	MaxBodyBytes int64
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	Limiter      *ratelimit.HostLimiter
	// InsecureSkipVerify disables certificate checks. Tests only.
	InsecureSkipVerify bool
}

// Fetcher performs single URL fetches with a browser identity.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
}

// NewFetcher initializes a Fetcher. The client and its transport are shared
// across fetches so connections and cookies are reused.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil, "")
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, fingerprint.Options{InsecureSkipVerify: cfg.InsecureSkipVerify})
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Fetcher{config: cfg, client: client}, nil
}

// Fetch executes a GET request to targetURL. The returned error is always
// nil; failures are captured on the Page.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	page := &Page{URL: targetURL}

	if f.config.Limiter != nil {
		if err := f.config.Limiter.WaitURL(ctx, targetURL); err != nil {
			page.Error = fmt.Sprintf("rate limiter failed: %v", err)
			return page, nil
		}
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		page.Error = fmt.Sprintf("failed to create request: %v", err)
		return page, nil
	}
	f.config.UAPool.Next().Apply(req.Header)

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		page.Error = fmt.Sprintf("request failed: %v", err)
		page.Duration = time.Since(start)
		return page, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
	if err != nil {
		page.Error = fmt.Sprintf("failed to read body: %v", err)
	}

	page.StatusCode = resp.StatusCode
	page.Header = resp.Header
	page.Body = body
	page.Duration = time.Since(start)

	if vendor, blocked := bypass.Detect(bypass.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil); blocked {
		page.DetectedBot = true
		page.DetectionSrc = vendor
	}
	if page.Error == "" && page.StatusCode >= http.StatusBadRequest {
		page.Error = fmt.Sprintf("http status %d", page.StatusCode)
	}

	return page, nil
}
