package pipeline

import (
	"time"

	"github.com/FranksOps/shopwise/internal/model"
	"github.com/google/uuid"
)

// State is the position of a run in the stage sequence.
type State int

const (
	StatePending State = iota
	StateKeywordsReady
	StateSearchDone
	StateScrapeDone
	StateContextReady
	StateSynthesisDone
	StateFailed
)

var stateNames = [...]string{
	StatePending:       "pending",
	StateKeywordsReady: "keywords_ready",
	StateSearchDone:    "search_done",
	StateScrapeDone:    "scrape_done",
	StateContextReady:  "context_ready",
	StateSynthesisDone: "synthesis_done",
	StateFailed:        "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Run carries everything produced for one query. It is owned by a single
// Runner.Run call.
type Run struct {
	ID         uuid.UUID
	Caller     string
	Query      string
	Keywords   model.KeywordSet
	Hits       []model.SearchHit
	Records    []model.ProductRecord
	Context    model.AssembledContext
	RawText    string
	Outcome    model.Outcome
	State      State
	StartedAt  time.Time
	FinishedAt time.Time
}

// CountRecords returns how many records have status s.
func (r *Run) CountRecords(s model.Status) int {
	n := 0
	for _, rec := range r.Records {
		if rec.Status == s {
			n++
		}
	}
	return n
}
