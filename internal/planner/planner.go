// Package planner turns a free-text shopping request into search keywords.
package planner

import (
	"context"
	"log/slog"
	"strings"

	"github.com/FranksOps/shopwise/internal/llm"
	"github.com/FranksOps/shopwise/internal/metrics"
	"github.com/FranksOps/shopwise/internal/model"
)

// DefaultMaxKeywords caps the keywords kept from a reply.
const DefaultMaxKeywords = 5

// answerMarker prefixes the answer line in the few-shot examples.
const answerMarker = "最終關鍵字"

// Planner asks the model for search keywords.
type Planner struct {
	gen         llm.Generator
	maxKeywords int
	logger      *slog.Logger
}

// New creates a Planner. maxKeywords <= 0 means DefaultMaxKeywords.
func New(gen llm.Generator, maxKeywords int, logger *slog.Logger) *Planner {
	if maxKeywords <= 0 {
		maxKeywords = DefaultMaxKeywords
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{gen: gen, maxKeywords: maxKeywords, logger: logger}
}

// Plan returns keywords for query. Any model failure degrades to the raw
// query as the only keyword.
func (p *Planner) Plan(ctx context.Context, query string) model.KeywordSet {
	query = strings.TrimSpace(query)

	reply, err := p.gen.Generate(ctx, Prompt(query), llm.PlannerConfig)
	metrics.RecordLLM("planner", err)
	if err != nil {
		p.logger.Warn("keyword generation failed, using raw query", "err", err)
		return model.KeywordSet{query}
	}

	kw := ParseKeywords(reply, p.maxKeywords)
	if len(kw) == 0 {
		p.logger.Warn("keyword reply had no tokens, using raw query", "reply", reply)
		return model.KeywordSet{query}
	}
	p.logger.Info("keywords generated", "keywords", strings.Join(kw, " "))
	return kw
}

// worksheetLabels head the reasoning lines of the few-shot prompt. A reply that
// echoes them without an answer line must not leak them into keywords.
var worksheetLabels = []string{"提問", "品牌", "商品種類", "需求特徵", "規格參數"}

// ParseKeywords tokenizes a planner reply. When the reply echoes the answer
// line of the few-shot prompt, only the text after its last marker is used, or the
// next non-empty line when the marker ends its line. Otherwise worksheet
// lines are skipped and the rest is tokenized.
func ParseKeywords(reply string, max int) model.KeywordSet {
	var text string
	if i := strings.LastIndex(reply, answerMarker); i >= 0 {
		for _, line := range strings.Split(reply[i+len(answerMarker):], "\n") {
			if text = strings.TrimSpace(strings.TrimLeft(line, ":： \t")); text != "" {
				break
			}
		}
	} else {
		var kept []string
		for _, line := range strings.Split(reply, "\n") {
			if !isWorksheetLine(line) {
				kept = append(kept, line)
			}
		}
		text = strings.Join(kept, " ")
	}

	out := model.KeywordSet{}
	seen := map[string]bool{}
	for _, tok := range strings.Fields(text) {
		tok = strings.Trim(tok, "[]【】「」\"'“”`,，")
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
		if len(out) == max {
			break
		}
	}
	return out
}

func isWorksheetLine(line string) bool {
	line = strings.TrimSpace(line)
	for _, label := range worksheetLabels {
		if rest, ok := strings.CutPrefix(line, label); ok {
			rest = strings.TrimSpace(rest)
			if strings.HasPrefix(rest, ":") || strings.HasPrefix(rest, "：") {
				return true
			}
		}
	}
	return false
}
