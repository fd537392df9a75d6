// Package synth asks the model for a structured comparison and recovers the
// result from its reply.
package synth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FranksOps/shopwise/internal/llm"
	"github.com/FranksOps/shopwise/internal/metrics"
	"github.com/FranksOps/shopwise/internal/model"
)

// Synthesizer produces the final comparison.
type Synthesizer struct {
	gen    llm.Generator
	logger *slog.Logger
}

// New creates a Synthesizer.
func New(gen llm.Generator, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{gen: gen, logger: logger}
}

// Synthesize makes one model call and returns the raw reply with its
// interpreted outcome. Only a failed call is an error; unusable replies come
// back as fallbacks.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, c model.AssembledContext) (string, model.Outcome, error) {
	raw, err := s.gen.Generate(ctx, Prompt(query, c), llm.SynthesisConfig)
	metrics.RecordLLM("synthesis", err)
	if err != nil {
		return "", model.Outcome{}, fmt.Errorf("synthesize: %w", err)
	}

	out := Interpret(raw)
	metrics.ExtractionsTotal.WithLabelValues(out.Kind()).Inc()
	if !out.Structured() {
		s.logger.Warn("comparison reply not structured", "kind", out.Kind(), "bytes", len(raw))
	}
	return raw, out, nil
}
