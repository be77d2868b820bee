package main

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/orchestrator"
	"github.com/sells-group/leadgen/internal/source"
	"github.com/sells-group/leadgen/internal/store"
)

// fakeSource yields recs for every query. The first failFirst calls
// fail without records.
type fakeSource struct {
	name      string
	recs      []model.RawRecord
	err       error
	failFirst int32
	calls     *atomic.Int32
}

func (f fakeSource) Name() string      { return f.name }
func (f fakeSource) Kind() source.Kind { return source.KindHTTP }
func (f fakeSource) Stream(ctx context.Context, _ model.Query) (<-chan model.RawRecord, <-chan error) {
	out := make(chan model.RawRecord)
	errc := make(chan error, 1)
	call := int32(1)
	if f.calls != nil {
		call = f.calls.Add(1)
	}
	go func() {
		defer close(errc)
		defer close(out)
		if call <= f.failFirst {
			errc <- context.DeadlineExceeded
			return
		}
		for _, r := range f.recs {
			r.Source = f.name
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
		if f.err != nil {
			errc <- f.err
		}
	}()
	return out, errc
}

func plumbers() []model.RawRecord {
	return []model.RawRecord{
		{Company: "Acme Plumbing", Address: "123 Main St, Austin, TX 78701", Phone: "5125550100"},
		{Company: "Beta Drains", Address: "9 Oak Ave, Austin, TX 78702", Phone: "512.555.0199"},
	}
}

func newService(st store.Store, sources ...source.Source) *leadService {
	return &leadService{
		scraper:     orchestrator.NewScraper(sources, nil, 2),
		store:       st,
		concurrency: 2,
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(t.Context()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func quickOptions() orchestrator.Options {
	return orchestrator.Options{Name: "test", Concurrency: 1, BatchSize: 10, Retry: true}
}
