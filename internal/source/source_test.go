package source

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/fetcher"
	"github.com/sells-group/leadgen/internal/model"
)

// fastFetcher returns a real fetcher tuned for httptest servers.
func fastFetcher() *fetcher.HTTPFetcher {
	return fetcher.New(fetcher.Options{
		Rate:     1000,
		Burst:    100,
		Attempts: 2,
		Backoff:  time.Millisecond,
		Timeout:  2 * time.Second,
	})
}

// fakeFetcher serves canned pages by URL and records requests.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]*fetcher.Page
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) Get(_ context.Context, rawURL string) (*fetcher.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	if p, ok := f.pages[rawURL]; ok {
		return p, nil
	}
	return &fetcher.Page{URL: rawURL, Status: 404}, nil
}

func (f *fakeFetcher) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// stubSource yields fixed records and an optional error.
type stubSource struct {
	name string
	recs []model.RawRecord
	err  error
}

func (s stubSource) Name() string { return s.name }
func (s stubSource) Kind() Kind   { return KindHTTP }
func (s stubSource) Stream(ctx context.Context, _ model.Query) (<-chan model.RawRecord, <-chan error) {
	return produce(ctx, s.name, func(ctx context.Context, emit emitFunc) error {
		for _, r := range s.recs {
			if !emit(r) {
				return ctx.Err()
			}
		}
		return s.err
	})
}

func TestProduce_StampsSourceAndCloses(t *testing.T) {
	s := stubSource{name: "stub", recs: []model.RawRecord{{Company: "A"}, {Company: "B", Source: "other"}}}

	got, err := Collect(context.Background(), s, model.Query{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "stub", got[0].Source)
	assert.Equal(t, "stub", got[1].Source)
}

func TestProduce_PartialResultsWithError(t *testing.T) {
	boom := errors.New("boom")
	s := stubSource{name: "stub", recs: []model.RawRecord{{Company: "A"}}, err: boom}

	got, err := Collect(context.Background(), s, model.Query{})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, got, 1)
}

func TestProduce_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := stubSource{name: "stub", recs: make([]model.RawRecord, 100)}

	recs, errc := s.Stream(ctx, model.Query{})
	<-recs
	cancel()

	// drain; the producer must exit and close both channels
	for range recs {
	}
	assert.NoError(t, <-errc)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "http", KindHTTP.String())
	assert.Equal(t, "browser", KindBrowser.String())
}
