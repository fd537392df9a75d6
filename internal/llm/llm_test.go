package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/shopwise/internal/model"
)

const chatCompletionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "test-model",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": %q}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
}`

func newChatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestOpenAI_Generate(t *testing.T) {
	ts := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model       string  `json:"model"`
			Temperature float32 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
			Messages    []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Model != "test-model" || req.MaxTokens != 4096 {
			t.Errorf("unexpected request %+v", req)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
			t.Errorf("expected single prompt message, got %+v", req.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(strings.Replace(chatCompletionBody, "%q", `"電競 筆電"`, 1)))
	})

	gen, err := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: ts.URL + "/v1", Model: "test-model"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text, err := gen.Generate(context.Background(), "hello", SynthesisConfig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "電競 筆電" {
		t.Errorf("expected reply text, got %q", text)
	}
}

func TestOpenAI_EmptyReplyIsUpstreamFailure(t *testing.T) {
	ts := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(strings.Replace(chatCompletionBody, "%q", `"  "`, 1)))
	})

	gen, _ := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: ts.URL + "/v1"})
	_, err := gen.Generate(context.Background(), "hello", PlannerConfig)
	if !errors.Is(err, model.ErrUpstreamUnavailable) || !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected empty upstream error, got %v", err)
	}
	if IsTransient(err) {
		t.Error("empty reply should not be retried")
	}
}

func TestOpenAI_ServerErrorIsTransient(t *testing.T) {
	ts := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	})

	gen, _ := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: ts.URL + "/v1"})
	_, err := gen.Generate(context.Background(), "hello", PlannerConfig)
	if !errors.Is(err, model.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if !IsTransient(err) {
		t.Errorf("expected 503 to be transient: %v", err)
	}
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	if _, err := NewOpenAI(OpenAIConfig{}); err == nil {
		t.Fatal("expected missing key error")
	}
}

func TestNewGemini_RequiresKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), GeminiConfig{}); err == nil {
		t.Fatal("expected missing key error")
	}
}

func TestGenerateContentConfig(t *testing.T) {
	gc := generateContentConfig(SynthesisConfig)
	if gc.Temperature == nil || *gc.Temperature != 0.2 {
		t.Errorf("unexpected temperature %v", gc.Temperature)
	}
	if gc.TopP == nil || *gc.TopP != 0.95 {
		t.Errorf("unexpected topP %v", gc.TopP)
	}
	if gc.TopK == nil || *gc.TopK != 40 {
		t.Errorf("unexpected topK %v", gc.TopK)
	}
	if gc.MaxOutputTokens != 4096 {
		t.Errorf("unexpected max tokens %d", gc.MaxOutputTokens)
	}

	bare := generateContentConfig(Config{Temperature: 0.1})
	if bare.TopP != nil || bare.TopK != nil {
		t.Error("zero topP/topK should be left to the provider default")
	}
}

type scriptedGenerator struct {
	calls   atomic.Int32
	replies []string
	errs    []error
}

func (s *scriptedGenerator) Generate(ctx context.Context, prompt string, cfg Config) (string, error) {
	i := int(s.calls.Add(1)) - 1
	return s.replies[i], s.errs[i]
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestWithRetry(t *testing.T) {
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("transient then success", func(t *testing.T) {
		g := &scriptedGenerator{
			replies: []string{"", "ok"},
			errs:    []error{unavailable("test", timeoutErr{}), nil},
		}
		text, err := WithRetry(g, time.Millisecond, discard).Generate(context.Background(), "p", PlannerConfig)
		if err != nil || text != "ok" {
			t.Fatalf("expected retry success, got %q %v", text, err)
		}
		if g.calls.Load() != 2 {
			t.Errorf("expected 2 calls, got %d", g.calls.Load())
		}
	})

	t.Run("at most one retry", func(t *testing.T) {
		g := &scriptedGenerator{
			replies: []string{"", ""},
			errs:    []error{unavailable("test", timeoutErr{}), unavailable("test", timeoutErr{})},
		}
		_, err := WithRetry(g, time.Millisecond, discard).Generate(context.Background(), "p", PlannerConfig)
		if err == nil {
			t.Fatal("expected error after retry")
		}
		if g.calls.Load() != 2 {
			t.Errorf("expected exactly 2 calls, got %d", g.calls.Load())
		}
	})

	t.Run("permanent error not retried", func(t *testing.T) {
		g := &scriptedGenerator{
			replies: []string{""},
			errs:    []error{unavailable("test", errors.New("invalid api key"))},
		}
		_, err := WithRetry(g, time.Millisecond, discard).Generate(context.Background(), "p", PlannerConfig)
		if err == nil {
			t.Fatal("expected error")
		}
		if g.calls.Load() != 1 {
			t.Errorf("expected 1 call, got %d", g.calls.Load())
		}
	})
}
