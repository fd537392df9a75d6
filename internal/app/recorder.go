package app

import (
	"context"
	"fmt"

	"github.com/FranksOps/shopwise/internal/pipeline"
	"github.com/FranksOps/shopwise/internal/storage"
)

// Recorder saves finished runs into a storage backend.
type Recorder struct {
	Backend storage.Backend
}

// Record stores the raw reply and the response body of run under its caller.
func (r Recorder) Record(ctx context.Context, run *pipeline.Run) error {
	rec, err := storage.NewRecord(
		run.ID.String(),
		run.Caller,
		run.Query,
		run.Keywords,
		run.Context.Sources,
		run.RawText,
		run.Outcome,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := r.Backend.Save(ctx, rec); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}
