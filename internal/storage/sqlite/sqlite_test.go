package sqlite

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/FranksOps/shopwise/internal/model"
	"github.com/FranksOps/shopwise/internal/storage"
)

func TestSQLiteBackend(t *testing.T) {
	b, err := New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	outcome := model.Outcome{Result: &model.ComparisonResult{
		Comparisons: []model.ProductComparison{{ProductName: "ROG Strix G16", Rating: 8.5, Link: "https://24h.pchome.com.tw/prod/A"}},
		Analysis:    "選 ROG",
	}}
	first, err := storage.NewRecord("run-1", "user-1", "比較電競筆電", []string{"電競", "筆電"}, []string{"https://24h.pchome.com.tw/prod/A"}, "```json\n{}\n```", outcome, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Failed to build record: %v", err)
	}
	second, _ := storage.NewRecord("run-2", "user-2", "藍牙耳機", nil, nil, "沒有資料", model.Outcome{Fallback: &model.Fallback{Response: "沒有資料"}}, now)
	third, _ := storage.NewRecord("run-3", "user-1", "掃地機器人", nil, nil, "raw", model.Outcome{Fallback: &model.Fallback{Response: "raw"}}, now.Add(time.Minute))

	for _, r := range []*storage.Record{first, second, third} {
		if err := b.Save(ctx, r); err != nil {
			t.Fatalf("Failed to save record: %v", err)
		}
	}

	results, err := b.Query(ctx, storage.Filter{Caller: "user-1"})
	if err != nil {
		t.Fatalf("Failed to query records: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(results))
	}
	if results[0].ID != "run-3" || results[1].ID != "run-1" {
		t.Errorf("Expected newest first, got %s, %s", results[0].ID, results[1].ID)
	}

	got := results[1]
	if got.Query != first.Query || got.RawText != first.RawText || got.Outcome != "structured" {
		t.Errorf("Unexpected record %+v", got)
	}
	if !slices.Equal(got.Keywords, first.Keywords) || !slices.Equal(got.Sources, first.Sources) {
		t.Errorf("Expected lists to round trip, got %v %v", got.Keywords, got.Sources)
	}
	if string(got.Response) != string(first.Response) {
		t.Errorf("Expected response %s, got %s", first.Response, got.Response)
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("Expected CreatedAt %v, got %v", first.CreatedAt, got.CreatedAt)
	}

	since := now.Add(-time.Minute)
	recent, err := b.Query(ctx, storage.Filter{Since: &since})
	if err != nil {
		t.Fatalf("Failed to query with Since: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("Expected 2 recent records, got %d", len(recent))
	}

	structured, _ := b.Query(ctx, storage.Filter{Outcome: "structured"})
	if len(structured) != 1 || structured[0].ID != "run-1" {
		t.Errorf("Expected only run-1 to be structured, got %d", len(structured))
	}

	paged, err := b.Query(ctx, storage.Filter{Offset: 1})
	if err != nil {
		t.Fatalf("Failed to query with Offset: %v", err)
	}
	if len(paged) != 2 || paged[0].ID != "run-2" {
		t.Errorf("Unexpected offset page %v", paged)
	}

	limited, _ := b.Query(ctx, storage.Filter{Limit: 1, Offset: 2})
	if len(limited) != 1 || limited[0].ID != "run-1" {
		t.Errorf("Unexpected limited page %v", limited)
	}

	if err := b.Save(ctx, first); err == nil {
		t.Error("Expected duplicate id to be rejected")
	}
}
