package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// chdir isolates Load from any .env or shopwise.yaml in the package directory.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t)

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.Provider != "gemini" || cfg.LLM.Model != "gemini-1.5-flash" {
		t.Errorf("unexpected llm defaults %+v", cfg.LLM)
	}
	if cfg.Search.SiteFilter != "24h.pchome.com.tw/prod" || cfg.Search.NumResults != 10 {
		t.Errorf("unexpected search defaults %+v", cfg.Search)
	}
	if cfg.Search.Locale != "tw" || cfg.Search.Language != "zh-TW" || cfg.Search.SafeMode != "active" {
		t.Errorf("unexpected locale defaults %+v", cfg.Search)
	}
	if cfg.Scraper.Concurrency != 4 || cfg.Scraper.FetchTimeout != 10*time.Second {
		t.Errorf("unexpected scraper defaults %+v", cfg.Scraper)
	}
	if cfg.Planner.MaxKeywords != 5 || cfg.Context.Budget != 12000 {
		t.Errorf("unexpected planner/context defaults %+v %+v", cfg.Planner, cfg.Context)
	}
	if cfg.Storage.Kind != "none" {
		t.Errorf("expected storage disabled, got %q", cfg.Storage.Kind)
	}
}

func TestLoad_LegacyEnvNames(t *testing.T) {
	chdir(t)
	t.Setenv("gemini_api_key", "g-key")
	t.Setenv("google_search_api_key", "s-key")
	t.Setenv("google_cse_id", "cx-1")
	t.Setenv("model_name", "gemini-2.0-flash")

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.APIKey != "g-key" || cfg.LLM.Model != "gemini-2.0-flash" {
		t.Errorf("legacy llm vars not applied: %+v", cfg.LLM)
	}
	if cfg.Search.APIKey != "s-key" || cfg.Search.EngineID != "cx-1" {
		t.Errorf("legacy search vars not applied: %+v", cfg.Search)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoad_PrefixedEnvWins(t *testing.T) {
	chdir(t)
	t.Setenv("gemini_api_key", "legacy")
	t.Setenv("SHOPWISE_LLM_API_KEY", "prefixed")
	t.Setenv("SHOPWISE_SCRAPER_CONCURRENCY", "8")

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.APIKey != "prefixed" {
		t.Errorf("expected prefixed key, got %q", cfg.LLM.APIKey)
	}
	if cfg.Scraper.Concurrency != 8 {
		t.Errorf("expected concurrency 8, got %d", cfg.Scraper.Concurrency)
	}
}

func TestLoad_File(t *testing.T) {
	dir := chdir(t)
	yaml := `
llm:
  provider: openai
  api_key: file-key
  base_url: http://localhost:11434/v1
search:
  api_key: s
  engine_id: cx
  site_filter: ""
scraper:
  fetch_timeout: 3s
  user_agents:
    - "UA/1, with comma"
  selectors:
    title: h1.product-title
storage:
  kind: sqlite
  dsn: history.db
`
	if err := os.WriteFile(filepath.Join(dir, "shopwise.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("file llm not applied: %+v", cfg.LLM)
	}
	if cfg.Search.SiteFilter != "" {
		t.Errorf("expected empty site filter from file, got %q", cfg.Search.SiteFilter)
	}
	if cfg.Scraper.FetchTimeout != 3*time.Second {
		t.Errorf("expected 3s, got %v", cfg.Scraper.FetchTimeout)
	}
	if len(cfg.Scraper.UserAgents) != 1 || cfg.Scraper.UserAgents[0] != "UA/1, with comma" {
		t.Errorf("unexpected user agents %v", cfg.Scraper.UserAgents)
	}
	if cfg.Scraper.Selectors.Title != "h1.product-title" {
		t.Errorf("expected title selector override, got %q", cfg.Scraper.Selectors.Title)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdir(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("google_cse_id=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// godotenv writes into the process env; clear it after the test.
	t.Setenv("google_cse_id", "")
	os.Unsetenv("google_cse_id")

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Search.EngineID != "from-dotenv" {
		t.Errorf("expected engine id from .env, got %q", cfg.Search.EngineID)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	chdir(t)
	if _, err := Load(viper.New(), "nope.yaml"); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func clearCredentials(t *testing.T) {
	t.Helper()
	for _, names := range legacyEnv {
		for _, n := range names {
			t.Setenv(n, "")
		}
	}
	t.Setenv("SHOPWISE_LLM_API_KEY", "")
	t.Setenv("SHOPWISE_SEARCH_API_KEY", "")
	t.Setenv("SHOPWISE_SEARCH_ENGINE_ID", "")
}

func TestValidate(t *testing.T) {
	chdir(t)
	clearCredentials(t)
	cfg, _ := Load(viper.New(), "")

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected missing credentials error")
	}
	for _, want := range []string{"llm.api_key", "search.api_key", "search.engine_id"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}

	cfg.LLM.APIKey, cfg.Search.APIKey, cfg.Search.EngineID = "a", "b", "c"
	cfg.LLM.Provider = "claude"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "llm.provider") {
		t.Errorf("expected provider error, got %v", err)
	}
}

func TestStorageValidate(t *testing.T) {
	tests := []struct {
		storage Storage
		wantErr bool
	}{
		{Storage{Kind: "none"}, false},
		{Storage{}, false},
		{Storage{Kind: "sqlite", DSN: "x.db"}, false},
		{Storage{Kind: "postgres"}, true},
		{Storage{Kind: "mongo", DSN: "x"}, true},
	}
	for _, tt := range tests {
		if err := tt.storage.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("%+v: wantErr %v, got %v", tt.storage, tt.wantErr, err)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Log{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "url", "https://24h.pchome.com.tw/prod/A")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected json output, got %q", out)
	}

	buf.Reset()
	NewLogger(Log{Level: "bogus"}, &buf).Info("text")
	if !strings.Contains(buf.String(), "msg=text") {
		t.Errorf("expected text handler at info, got %q", buf.String())
	}
}
