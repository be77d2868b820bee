// Package stream exposes a running scrape as an append-only feed of leads.
// A JobState is written by the scraping task and read through snapshots;
// each reader keeps a Cursor so every lead is delivered exactly once, in
// production order.
package stream

import (
	"sync"
	"time"

	"github.com/sells-group/leadgen/internal/model"
)

// JobState is the live state of one scrape job. It implements
// orchestrator.Progress.
type JobState struct {
	id    string
	query model.Query
	start time.Time

	mu       sync.RWMutex
	scraped  int
	leads    []model.LeadRecord
	failures []model.SourceFailure
	complete bool
	finished time.Time
	done     chan struct{}
}

// NewJobState creates the state for a job that starts now.
func NewJobState(id string, q model.Query) *JobState {
	return &JobState{id: id, query: q, start: time.Now(), done: make(chan struct{})}
}

// ID returns the job id.
func (j *JobState) ID() string { return j.id }

// Query returns the job's query.
func (j *JobState) Query() model.Query { return j.query }

// AddScraped counts raw records seen before deduplication.
func (j *JobState) AddScraped(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.scraped += n
}

// Append adds newly merged leads. Leads are never modified or removed
// once appended. Appends after Finish are ignored.
func (j *JobState) Append(leads ...model.LeadRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.complete {
		return
	}
	j.leads = append(j.leads, leads...)
}

// Finish marks the job complete. Only the first call has effect.
func (j *JobState) Finish(failures []model.SourceFailure) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.complete {
		return
	}
	j.complete = true
	j.failures = failures
	j.finished = time.Now()
	close(j.done)
}

// Done is closed when the job finishes.
func (j *JobState) Done() <-chan struct{} { return j.done }

// Snapshot returns a consistent copy of the job state.
func (j *JobState) Snapshot() model.JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	elapsed := time.Since(j.start)
	if j.complete {
		elapsed = j.finished.Sub(j.start)
	}
	processed := make([]model.LeadRecord, len(j.leads))
	copy(processed, j.leads)

	var failures []model.SourceFailure
	if len(j.failures) > 0 {
		failures = append(failures, j.failures...)
	}
	return model.JobSnapshot{
		ID:             j.id,
		Query:          j.query,
		TotalScraped:   j.scraped,
		ProcessedCount: len(processed),
		Processed:      processed,
		Elapsed:        elapsed,
		ElapsedSeconds: elapsed.Seconds(),
		Complete:       j.complete,
		Failures:       failures,
	}
}

// finishedBefore reports whether the job completed before t.
func (j *JobState) finishedBefore(t time.Time) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.complete && j.finished.Before(t)
}

// Cursor tracks what one reader has already received.
type Cursor struct {
	sent int
}

// Next returns the leads in s that this cursor has not delivered yet and
// advances past them.
func (c *Cursor) Next(s model.JobSnapshot) []model.LeadRecord {
	if c.sent >= len(s.Processed) {
		return nil
	}
	out := s.Processed[c.sent:]
	c.sent = len(s.Processed)
	return out
}

// Sent returns how many leads have been delivered.
func (c *Cursor) Sent() int { return c.sent }
