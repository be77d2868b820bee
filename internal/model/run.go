package model

import "time"

// RunStatus represents the state of a scrape run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is a persisted record of one query's scrape.
type Run struct {
	ID        string      `json:"id"`
	Query     Query       `json:"query"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunSummary holds the outcome of a finished run.
type RunSummary struct {
	TotalScraped int             `json:"total_scraped"`
	Merged       int             `json:"merged"`
	Saved        int             `json:"saved"`
	Duplicates   int             `json:"duplicates"`
	Failures     []SourceFailure `json:"failures,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// SourceFailure records a source that ended without producing records.
type SourceFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// RunFilter controls which runs ListRuns returns.
type RunFilter struct {
	Status RunStatus
	Limit  int
	Offset int
}

// LeadFilter controls which stored leads ListLeads returns.
type LeadFilter struct {
	RunID    string
	Industry string
	City     string
	State    string
	Limit    int
	Offset   int
}
