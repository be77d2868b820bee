package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/enrich"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/orchestrator"
	"github.com/sells-group/leadgen/internal/store"
)

// leadService runs one query end to end: scrape and merge, optional
// industry classification, optional persistence as a run.
type leadService struct {
	scraper     *orchestrator.Scraper
	classifier  enrich.Classifier // nil skips classification
	store       store.Store       // nil skips persistence
	concurrency int
}

// Scrape runs q. It fails when every source failed, so batch runs retry
// the query. A partial result is returned with any error.
func (s *leadService) Scrape(ctx context.Context, q model.Query, progress orchestrator.Progress) (*orchestrator.ScrapeResult, error) {
	if !q.Valid() {
		return nil, eris.New("industry and location are required")
	}

	var runID string
	if s.store != nil {
		run, err := s.store.CreateRun(ctx, q)
		if err != nil {
			return nil, eris.Wrap(err, "create run")
		}
		runID = run.ID
		if err := s.store.UpdateRunStatus(ctx, runID, model.RunStatusRunning); err != nil {
			return nil, eris.Wrap(err, "start run")
		}
	}

	res, err := s.scraper.Scrape(ctx, q, progress)
	if err == nil && len(res.Failures) > 0 && len(res.Failures) == len(s.scraper.Sources()) {
		err = eris.Errorf("all sources failed for %s", q)
	}

	if err == nil && s.classifier != nil {
		n, cerr := enrich.ClassifyMissing(ctx, s.classifier, res.Leads, s.concurrency)
		if cerr != nil {
			err = cerr
		}
		zap.L().Debug("classified leads", zap.String("query", q.String()), zap.Int("labelled", n))
	}

	if s.store != nil {
		if perr := s.persist(ctx, runID, res, err); perr != nil && err == nil {
			err = perr
		}
	}
	return res, err
}

// persist saves the leads of a successful scrape and records the run
// outcome. The run is completed even when ctx is already cancelled.
func (s *leadService) persist(ctx context.Context, runID string, res *orchestrator.ScrapeResult, scrapeErr error) error {
	summary := &model.RunSummary{}
	if res != nil {
		summary.TotalScraped = res.TotalScraped
		summary.Merged = len(res.Leads)
		summary.Failures = res.Failures
	}

	var saveErr error
	if scrapeErr == nil && res != nil {
		saved, dups, err := s.store.SaveLeads(ctx, runID, res.Leads)
		summary.Saved = saved
		summary.Duplicates = len(dups)
		for _, d := range dups {
			zap.L().Info("skipped duplicate lead",
				zap.String("run_id", runID),
				zap.String("company", d.Company),
				zap.String("field", d.Field),
			)
		}
		saveErr = err
	}

	switch {
	case scrapeErr != nil:
		summary.Error = scrapeErr.Error()
	case saveErr != nil:
		summary.Error = saveErr.Error()
	}

	if err := s.store.CompleteRun(context.WithoutCancel(ctx), runID, summary); err != nil {
		return eris.Wrap(err, "complete run")
	}
	if saveErr != nil {
		return eris.Wrap(saveErr, "save leads")
	}
	return nil
}
