package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/FranksOps/shopwise/internal/model"
	"github.com/FranksOps/shopwise/pkg/httpclient"
)

const (
	DefaultCSEEndpoint = "https://www.googleapis.com/customsearch/v1"

	// The Custom Search JSON API returns at most 10 items per page and
	// refuses start offsets beyond 100.
	csePageSize = 10
	cseMaxStart = 91
)

// GoogleCSEConfig configures the Programmable Search adapter.
type GoogleCSEConfig struct {
	APIKey   string
	EngineID string
	Endpoint string
	Client   *httpclient.Client
}

// GoogleCSE implements Provider against the Custom Search JSON API.
type GoogleCSE struct {
	key      string
	cx       string
	endpoint string
	client   *httpclient.Client
}

// NewGoogleCSE validates cfg and returns the adapter.
func NewGoogleCSE(cfg GoogleCSEConfig) (*GoogleCSE, error) {
	if cfg.APIKey == "" || cfg.EngineID == "" {
		return nil, fmt.Errorf("google cse: api key and engine id are required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultCSEEndpoint
	}
	if cfg.Client == nil {
		c, err := httpclient.New(httpclient.Config{})
		if err != nil {
			return nil, fmt.Errorf("google cse: %w", err)
		}
		cfg.Client = c
	}
	return &GoogleCSE{key: cfg.APIKey, cx: cfg.EngineID, endpoint: cfg.Endpoint, client: cfg.Client}, nil
}

type cseResponse struct {
	Items []Item `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Query pages through results until req.Count items are collected or the
// engine runs dry.
func (g *GoogleCSE) Query(ctx context.Context, req Request) ([]Item, error) {
	q := req.Q
	if req.SiteRestriction != "" {
		q = "inurl:" + req.SiteRestriction + " " + q
	}

	var out []Item
	for start := 1; len(out) < req.Count && start <= cseMaxStart; start += csePageSize {
		n := min(req.Count-len(out), csePageSize)
		page, err := g.page(ctx, q, start, n, req)
		if err != nil {
			if len(out) > 0 {
				// Keep what earlier pages returned.
				return out, nil
			}
			return nil, err
		}
		out = append(out, page...)
		if len(page) < n {
			break
		}
	}
	return out, nil
}

func (g *GoogleCSE) page(ctx context.Context, q string, start, num int, req Request) ([]Item, error) {
	params := url.Values{}
	params.Set("key", g.key)
	params.Set("cx", g.cx)
	params.Set("q", q)
	params.Set("num", strconv.Itoa(num))
	if start > 1 {
		params.Set("start", strconv.Itoa(start))
	}
	if req.SafeMode != "" {
		params.Set("safe", req.SafeMode)
	}
	if req.Locale != "" {
		params.Set("gl", req.Locale)
	}
	if req.Language != "" {
		params.Set("hl", req.Language)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("google cse: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := g.client.DoRetry(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("google cse: %w: %w", model.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("google cse: read body: %w", err)
	}

	var parsed cseResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("google cse: status %d: decode: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("google cse: %w: status %d: %s", model.ErrUpstreamUnavailable, resp.StatusCode, msg)
	}
	return parsed.Items, nil
}
