package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	// Transport allows a fingerprinted or test RoundTripper.
	Transport http.RoundTripper
	// RetryBackoff is the pause before the single retry made by DoRetry.
	RetryBackoff time.Duration
}

// Client wraps http.Client with redirect limits, optional cookies and a
// bounded retry for idempotent calls.
type Client struct {
	*http.Client
	backoff time.Duration
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}

	c := &http.Client{
		Timeout: cfg.Timeout,
	}

	if cfg.MaxRedirects >= 0 {
		max := cfg.MaxRedirects
		if max == 0 {
			max = 10
		}
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= max {
				return fmt.Errorf("httpclient: stopped after %d redirects", max)
			}
			return nil
		}
	} else {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if cfg.UseCookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("httpclient: %w", err)
		}
		c.Jar = jar
	}

	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{Client: c, backoff: cfg.RetryBackoff}, nil
}

// Do executes req under ctx, which bounds the call independently of the
// client timeout.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: context cannot be nil")
	}

	resp, err := c.Client.Do(req.Clone(ctx))
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	return resp, nil
}

// DoRetry behaves like Do but retries once after the configured backoff when
// the first attempt times out or answers 429/5xx. Only use it for requests
// without a body.
func (c *Client) DoRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.Do(ctx, req)
	if !shouldRetry(resp, err) || ctx.Err() != nil {
		return resp, err
	}
	if resp != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	select {
	case <-time.After(c.backoff):
	case <-ctx.Done():
		return nil, fmt.Errorf("httpclient: %w", ctx.Err())
	}
	return c.Do(ctx, req)
}

func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		var netErr net.Error
		return errors.As(err, &netErr) && netErr.Timeout()
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
}
