package model

import "time"

// JobSnapshot is a read-only view of a streaming scrape job.
type JobSnapshot struct {
	ID             string          `json:"id"`
	Query          Query           `json:"query"`
	TotalScraped   int             `json:"total_scraped"`
	ProcessedCount int             `json:"processed_count"`
	Processed      []LeadRecord    `json:"processed_data"`
	Elapsed        time.Duration   `json:"-"`
	ElapsedSeconds float64         `json:"elapsed_time"`
	Complete       bool            `json:"is_complete"`
	Failures       []SourceFailure `json:"failures,omitempty"`
}
