package stream

import (
	"context"
	"time"

	"github.com/sells-group/leadgen/internal/model"
)

// Event names.
const (
	EventInit  = "init"
	EventBatch = "batch"
	EventDone  = "done"
)

// DefaultTick is the polling interval between batch events.
const DefaultTick = time.Second

// InitEvent opens a stream.
type InitEvent struct {
	JobID string      `json:"job_id"`
	Query model.Query `json:"query"`
}

// BatchEvent carries the leads produced since the previous batch.
type BatchEvent struct {
	NewItems       []model.LeadRecord `json:"new_items"`
	TotalScraped   int                `json:"total_scraped"`
	ElapsedTime    float64            `json:"elapsed_time"`
	ProcessedCount int                `json:"processed_count"`
}

// DoneEvent closes a stream with the final summary.
type DoneEvent struct {
	JobID          string                `json:"job_id"`
	TotalScraped   int                   `json:"total_scraped"`
	ProcessedCount int                   `json:"processed_count"`
	ElapsedTime    float64               `json:"elapsed_time"`
	Failures       []model.SourceFailure `json:"failures,omitempty"`
}

// emitFunc delivers one event to a transport.
type emitFunc func(event string, payload any) error

// relay sends init, then a batch on every tick that has new leads, then
// done once the job completes. It returns nil after done, the context
// error if ctx ends first, or the first emit error.
func relay(ctx context.Context, job *JobState, tick time.Duration, emit emitFunc) error {
	if tick <= 0 {
		tick = DefaultTick
	}
	if err := emit(EventInit, InitEvent{JobID: job.ID(), Query: job.Query()}); err != nil {
		return err
	}

	var cur Cursor
	flush := func() (model.JobSnapshot, error) {
		snap := job.Snapshot()
		items := cur.Next(snap)
		if len(items) == 0 {
			return snap, nil
		}
		return snap, emit(EventBatch, BatchEvent{
			NewItems:       items,
			TotalScraped:   snap.TotalScraped,
			ElapsedTime:    snap.ElapsedSeconds,
			ProcessedCount: snap.ProcessedCount,
		})
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := flush(); err != nil {
				return err
			}
		case <-job.Done():
			snap, err := flush()
			if err != nil {
				return err
			}
			return emit(EventDone, DoneEvent{
				JobID:          snap.ID,
				TotalScraped:   snap.TotalScraped,
				ProcessedCount: snap.ProcessedCount,
				ElapsedTime:    snap.ElapsedSeconds,
				Failures:       snap.Failures,
			})
		}
	}
}
