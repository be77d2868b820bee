// Package store persists scrape runs and the leads they produced.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/merge"
	"github.com/sells-group/leadgen/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for scrape runs and leads.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, q model.Query) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)

	// Leads
	SaveLeads(ctx context.Context, runID string, leads []model.LeadRecord) (int, []DuplicateError, error)
	ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.LeadRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// DuplicateError reports a lead rejected because a unique field collides
// with a stored lead.
type DuplicateError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Company string `json:"company"`
}

func (e DuplicateError) Error() string {
	return "a lead with this " + e.Field + " already exists"
}

const defaultListLimit = 100

// completedStatus maps a run summary to its final status.
func completedStatus(summary *model.RunSummary) model.RunStatus {
	if summary != nil && summary.Error != "" {
		return model.RunStatusFailed
	}
	return model.RunStatusComplete
}

// leadArgs returns the insert arguments shared by both backends, in
// leadColumns order.
func leadArgs(runID string, l model.LeadRecord) []any {
	l.Fill()
	var run any
	if runID != "" {
		run = runID
	}
	return []any{
		run, merge.Key(l),
		l.Company, l.Industry, l.Street, l.City, l.State,
		l.Phone, l.Website, l.Rating, l.Revenue, l.Source,
	}
}

const leadColumns = `run_id, merge_key, company, industry, street, city, state, phone, website, rating, revenue, source`

const leadSelect = `SELECT company, industry, street, city, state, phone, website, rating, revenue, source FROM leads`

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (model.LeadRecord, error) {
	var l model.LeadRecord
	err := row.Scan(&l.Company, &l.Industry, &l.Street, &l.City, &l.State,
		&l.Phone, &l.Website, &l.Rating, &l.Revenue, &l.Source)
	return l, err
}

// leadQuery builds the ListLeads statement. ph renders the nth (1-based)
// placeholder for the backend.
func leadQuery(f model.LeadFilter, ph func(n int) string) (string, []any) {
	q := leadSelect + ` WHERE 1=1`
	var args []any
	add := func(clause, v string) {
		args = append(args, v)
		q += ` AND ` + clause + ph(len(args))
	}
	if f.RunID != "" {
		add(`run_id = `, f.RunID)
	}
	if f.Industry != "" {
		add(`lower(industry) = lower(`, f.Industry)
		q += `)`
	}
	if f.City != "" {
		add(`lower(city) = lower(`, f.City)
		q += `)`
	}
	if f.State != "" {
		add(`upper(state) = upper(`, f.State)
		q += `)`
	}
	q += ` ORDER BY id`

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	q += ` LIMIT ` + ph(len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += ` OFFSET ` + ph(len(args))
	}
	return q, args
}

// runQuery builds the ListRuns statement.
func runQuery(f model.RunFilter, ph func(n int) string) (string, []any) {
	q := `SELECT id, query, status, summary, created_at, updated_at FROM runs WHERE 1=1`
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += ` AND status = ` + ph(len(args))
	}
	q += ` ORDER BY created_at DESC`

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	q += ` LIMIT ` + ph(len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += ` OFFSET ` + ph(len(args))
	}
	return q, args
}
