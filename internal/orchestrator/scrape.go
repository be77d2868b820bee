package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/merge"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/parse"
	"github.com/sells-group/leadgen/internal/source"
)

// Progress observes a scrape while it runs. Append receives leads the
// first time their merge key is seen, in arrival order.
type Progress interface {
	AddScraped(n int)
	Append(leads ...model.LeadRecord)
}

// ScrapeResult is the outcome of one multi-source query.
type ScrapeResult struct {
	Query model.Query
	// Leads is the priority-order merge with the query's offset and limit applied.
	Leads []model.LeadRecord
	// TotalScraped counts raw records before deduplication.
	TotalScraped int
	PerSource    map[string]int
	Failures     []model.SourceFailure
	Elapsed      time.Duration
}

// Scraper fans a query out to every source and merges the results.
type Scraper struct {
	sources     []source.Source
	parser      *parse.Parser
	concurrency int
}

// NewScraper creates a Scraper. sources must be in priority order.
func NewScraper(sources []source.Source, parser *parse.Parser, concurrency int) *Scraper {
	if parser == nil {
		parser = parse.NewParser(nil)
	}
	return &Scraper{sources: sources, parser: parser, concurrency: max(concurrency, 1)}
}

// Sources returns the configured source names in priority order.
func (s *Scraper) Sources() []string {
	out := make([]string, len(s.sources))
	for i, src := range s.sources {
		out[i] = src.Name()
	}
	return out
}

type sourced struct {
	idx  int
	lead model.LeadRecord
}

// Scrape runs every source for q. HTTP sources share a bounded pool and
// browser sources run serially. Records are normalized as they arrive and
// new leads are reported to progress, which may be nil.
//
// A source counts as failed only when it produced no records and reported
// an error. With ctx cancelled the partial result is returned with the
// context error.
func (s *Scraper) Scrape(ctx context.Context, q model.Query, progress Progress) (*ScrapeResult, error) {
	start := time.Now()
	log := zap.L().With(zap.String("query", q.String()))

	records := make(chan sourced)
	counts := make([]int, len(s.sources))
	errs := make([]error, len(s.sources))
	buffers := make([][]model.LeadRecord, len(s.sources))

	collected := make(chan struct{})
	go func() {
		defer close(collected)
		m := merge.NewMerger()
		for r := range records {
			counts[r.idx]++
			buffers[r.idx] = append(buffers[r.idx], r.lead)
			_, isNew := m.Add(r.lead)
			if progress != nil {
				progress.AddScraped(1)
				if isNew {
					progress.Append(r.lead)
				}
			}
		}
	}()

	pool := NewPool(s.concurrency)
	serial := NewSerial()
	for i, src := range s.sources {
		var exec Executor = pool
		if src.Kind() == source.KindBrowser {
			exec = serial
		}
		err := exec.Submit(ctx, func(ctx context.Context) {
			recs, errc := src.Stream(ctx, q)
			for raw := range recs {
				records <- sourced{idx: i, lead: s.parser.Record(raw)}
			}
			errs[i] = <-errc
		})
		if err != nil {
			errs[i] = err
		}
	}
	pool.Wait()
	serial.Wait()
	close(records)
	<-collected

	res := &ScrapeResult{Query: q, PerSource: make(map[string]int, len(s.sources))}
	for i, src := range s.sources {
		// a task skipped on cancellation never set its error
		if errs[i] == nil && counts[i] == 0 && ctx.Err() != nil {
			errs[i] = ctx.Err()
		}
		res.PerSource[src.Name()] = counts[i]
		res.TotalScraped += counts[i]
		switch {
		case errs[i] != nil && counts[i] == 0:
			res.Failures = append(res.Failures, model.SourceFailure{Source: src.Name(), Error: errs[i].Error()})
			log.Warn("orchestrator: source failed", zap.String("source", src.Name()), zap.Error(errs[i]))
		case errs[i] != nil:
			log.Warn("orchestrator: source ended early",
				zap.String("source", src.Name()),
				zap.Int("records", counts[i]),
				zap.Error(errs[i]),
			)
		default:
			log.Info("orchestrator: source done", zap.String("source", src.Name()), zap.Int("records", counts[i]))
		}
	}

	res.Leads = q.Page(merge.Merge(buffers...))
	res.Elapsed = time.Since(start)
	return res, ctx.Err()
}
