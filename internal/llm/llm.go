// Package llm is the text-generation primitive shared by the planner and the
// synthesizer. Providers are black boxes behind Generator.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/FranksOps/shopwise/internal/model"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// Config carries the sampling parameters for one call.
type Config struct {
	Temperature     float32
	TopP            float32
	TopK            int
	MaxOutputTokens int
}

var (
	// PlannerConfig keeps keyword synthesis short and near-deterministic.
	PlannerConfig = Config{Temperature: 0.2, TopP: 0.95, TopK: 40, MaxOutputTokens: 1024}
	// SynthesisConfig leaves room for a multi-product JSON answer.
	SynthesisConfig = Config{Temperature: 0.2, TopP: 0.95, TopK: 40, MaxOutputTokens: 4096}
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, cfg Config) (string, error)
}

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("llm: empty response")

// unavailable tags err as an upstream failure while keeping the provider error inspectable.
func unavailable(provider string, err error) error {
	return fmt.Errorf("%s: %w: %w", provider, model.ErrUpstreamUnavailable, err)
}

func checkText(provider, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", unavailable(provider, ErrEmptyResponse)
	}
	return text, nil
}

// IsTransient reports whether a failed call is worth one more attempt:
// timeouts, rate limiting and 5xx answers.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrEmptyResponse) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return retryableStatus(gErr.Code)
	}
	var oaErr *openai.APIError
	if errors.As(err, &oaErr) {
		return retryableStatus(oaErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
