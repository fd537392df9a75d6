package synth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/FranksOps/shopwise/internal/llm"
	"github.com/FranksOps/shopwise/internal/model"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const validResult = `{
  "comparison_results": {"best_choice": "ROG Strix G16", "best_value": "Acer Nitro 5", "best_quality": "ROG Strix G16", "most_features": "MSI Katana"},
  "product_comparisons": [
    {"product_name": "ROG Strix G16", "brand": "ASUS", "price": "$45,900", "pros": ["散熱佳"], "cons": ["偏重"], "key_features": ["RTX 4060"], "suitable_scenarios": ["3A遊戲"], "rating": 8.7, "link": "https://24h.pchome.com.tw/prod/A"},
    {"product_name": "Acer Nitro 5", "brand": "Acer", "price": "$29,900", "pros": [], "cons": [], "key_features": [], "suitable_scenarios": [], "rating": 7.5, "link": "https://24h.pchome.com.tw/prod/B"}
  ],
  "analysis": "預算充足選 ROG。"
}`

type stubGenerator struct {
	reply  string
	err    error
	prompt string
	cfg    llm.Config
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string, cfg llm.Config) (string, error) {
	s.prompt = prompt
	s.cfg = cfg
	return s.reply, s.err
}

func TestFencedJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"fenced", "說明\n```json\n{\"a\":1}\n```\n結尾", `{"a":1}`, false},
		{"upper tag", "```JSON\n{\"a\":1}\n```", `{"a":1}`, false},
		{"unclosed", "```json\n{\"a\":1}\n", `{"a":1}`, false},
		{"first block wins", "```json\n{\"a\":1}\n```\n```json\n{\"b\":2}\n```", `{"a":1}`, false},
		{"plain fence ignored", "```\n{\"a\":1}\n```", "", true},
		{"no fence", `{"a":1}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FencedJSON(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, model.ErrExtractionFailed) {
					t.Errorf("expected extraction error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("FencedJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInterpret_RoundTrip(t *testing.T) {
	out := Interpret("以下是分析結果：\n```json\n" + validResult + "\n```")

	if !out.Structured() {
		t.Fatalf("expected structured outcome, got %+v", out.Fallback)
	}

	var want model.ComparisonResult
	if err := json.Unmarshal([]byte(validResult), &want); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	got, _ := json.Marshal(out.Result)
	exp, _ := json.Marshal(want)
	if string(got) != string(exp) {
		t.Errorf("round trip mismatch:\n got %s\nwant %s", got, exp)
	}
	if out.Result.Comparisons[0].Link != "https://24h.pchome.com.tw/prod/A" {
		t.Errorf("unexpected link %q", out.Result.Comparisons[0].Link)
	}
}

func TestInterpret_NoFencePassesThrough(t *testing.T) {
	raw := "抱歉，目前找不到相關商品。"
	out := Interpret(raw)

	if out.Structured() || out.Fallback == nil {
		t.Fatal("expected fallback")
	}
	if out.Fallback.Error != "" || out.Fallback.Response != raw {
		t.Errorf("unexpected fallback %+v", out.Fallback)
	}
	body, _ := json.Marshal(out)
	if string(body) != `{"response":"抱歉，目前找不到相關商品。"}` {
		t.Errorf("unexpected wire form %s", body)
	}
}

func TestInterpret_ParseFailures(t *testing.T) {
	tests := map[string]string{
		"malformed json":   "```json\n{\"product_comparisons\": [\n```",
		"missing name":     "```json\n{\"product_comparisons\": [{\"brand\": \"ASUS\"}]}\n```",
		"rating too high":  "```json\n{\"product_comparisons\": [{\"product_name\": \"X\", \"rating\": 11}]}\n```",
		"rating as string": "```json\n{\"product_comparisons\": [{\"product_name\": \"X\", \"rating\": \"8\"}]}\n```",
		"unknown field":    "```json\n{\"product_comparisons\": [], \"extra\": true}\n```",
		"not an object":    "```json\n[1, 2]\n```",
		"empty block":      "```json\n```",
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			out := Interpret(raw)
			if out.Structured() {
				t.Fatalf("expected parse failure, got %+v", out.Result)
			}
			if out.Fallback.Error != "structured-parse-failed" || out.Fallback.Response != raw {
				t.Errorf("unexpected fallback %+v", out.Fallback)
			}
		})
	}
}

func TestParseResult_WrapsSentinel(t *testing.T) {
	_, err := ParseResult(`{"analysis": 3}`)
	if !errors.Is(err, model.ErrParseFailed) {
		t.Errorf("expected ErrParseFailed, got %v", err)
	}
}

func TestSynthesize(t *testing.T) {
	gen := &stubGenerator{reply: "```json\n" + validResult + "\n```"}
	s := New(gen, discard)

	c := model.AssembledContext{Text: "商品名稱: ROG\n購買連結: https://24h.pchome.com.tw/prod/A\n"}
	raw, out, err := s.Synthesize(context.Background(), "比較電競筆電", c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != gen.reply || !out.Structured() {
		t.Errorf("unexpected result raw=%q structured=%v", raw, out.Structured())
	}
	if gen.cfg != llm.SynthesisConfig {
		t.Errorf("expected synthesis config, got %+v", gen.cfg)
	}
	for _, want := range []string{"比較電競筆電", "https://24h.pchome.com.tw/prod/A", `"product_comparisons"`, "```json"} {
		if !strings.Contains(gen.prompt, want) {
			t.Errorf("expected prompt to contain %q", want)
		}
	}
}

func TestSynthesize_HardFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.Join(model.ErrUpstreamUnavailable, errors.New("503"))}

	raw, out, err := New(gen, discard).Synthesize(context.Background(), "q", model.AssembledContext{})
	if !errors.Is(err, model.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if raw != "" || out.Result != nil || out.Fallback != nil {
		t.Error("expected empty outcome on failure")
	}
}

func TestPrompt_ExampleIsValidResult(t *testing.T) {
	if _, err := ParseResult(exampleJSON); err != nil {
		t.Errorf("prompt example should satisfy the schema: %v", err)
	}
	p := Prompt("q", model.AssembledContext{})
	if !strings.Contains(p, "查無產品資訊") {
		t.Error("expected empty-context notice")
	}
}
