package llm

import (
	"context"
	"log/slog"
	"time"
)

type retryGenerator struct {
	next    Generator
	backoff time.Duration
	logger  *slog.Logger
}

// WithRetry wraps g so that a transient failure is retried exactly once after
// backoff. Non-transient failures and cancellations return immediately.
func WithRetry(g Generator, backoff time.Duration, logger *slog.Logger) Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &retryGenerator{next: g, backoff: backoff, logger: logger}
}

func (r *retryGenerator) Generate(ctx context.Context, prompt string, cfg Config) (string, error) {
	text, err := r.next.Generate(ctx, prompt, cfg)
	if err == nil || !IsTransient(err) || ctx.Err() != nil {
		return text, err
	}

	r.logger.Warn("llm call failed, retrying once", "backoff", r.backoff, "err", err)

	select {
	case <-time.After(r.backoff):
	case <-ctx.Done():
		return "", err
	}
	return r.next.Generate(ctx, prompt, cfg)
}
