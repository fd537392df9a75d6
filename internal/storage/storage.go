// Package storage persists finished comparison runs keyed by caller and time.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FranksOps/shopwise/internal/model"
)

// Record is one persisted comparison: the raw model reply kept for audit and
// the response body that was returned to the caller.
type Record struct {
	ID        string          `json:"id"`
	Caller    string          `json:"caller"`
	Query     string          `json:"query"`
	Keywords  []string        `json:"keywords"`
	Sources   []string        `json:"sources"`
	RawText   string          `json:"raw_text"`
	Response  json.RawMessage `json:"response"`
	Outcome   string          `json:"outcome"` // see model.Outcome.Kind
	CreatedAt time.Time       `json:"created_at"`
}

// NewRecord serializes outcome into a Record.
func NewRecord(id, caller, query string, keywords, sources []string, raw string, outcome model.Outcome, createdAt time.Time) (*Record, error) {
	resp, err := json.Marshal(outcome)
	if err != nil {
		return nil, fmt.Errorf("storage: encode outcome: %w", err)
	}
	if keywords == nil {
		keywords = []string{}
	}
	if sources == nil {
		sources = []string{}
	}
	return &Record{
		ID:        id,
		Caller:    caller,
		Query:     query,
		Keywords:  keywords,
		Sources:   sources,
		RawText:   raw,
		Response:  resp,
		Outcome:   outcome.Kind(),
		CreatedAt: createdAt.UTC(),
	}, nil
}

// Filter selects records. Zero fields match everything.
type Filter struct {
	Caller  string
	Outcome string
	Since   *time.Time
	Limit   int
	Offset  int
}

// Match reports whether r passes the non-paging parts of f.
func (f Filter) Match(r *Record) bool {
	if f.Caller != "" && r.Caller != f.Caller {
		return false
	}
	if f.Outcome != "" && r.Outcome != f.Outcome {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Paginate applies Offset and Limit to records already in result order.
func (f Filter) Paginate(records []*Record) []*Record {
	if f.Offset > 0 {
		if f.Offset >= len(records) {
			return []*Record{}
		}
		records = records[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(records) {
		records = records[:f.Limit]
	}
	return records
}

// Backend defines the interface for storing and querying comparison history.
// Query returns newest records first.
type Backend interface {
	Save(ctx context.Context, record *Record) error
	Query(ctx context.Context, filter Filter) ([]*Record, error)
	Close() error
}
