package source

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/resilience"
)

// DefaultMaxPages caps pagination when no limit is configured.
const DefaultMaxPages = 5

// PageFunc loads one page, numbered from 1, and reports whether a next
// page affordance exists.
type PageFunc func(ctx context.Context, page int) (hasNext bool, err error)

// Paginator walks result pages. It stops when a page has no next
// affordance, when MaxPages is reached, or when one page fails to load
// twice.
//
// A transient page failure is retried once; if the retry also fails the
// walk ends quietly, so the page simply yields nothing. Any other error is
// a hard failure and is returned.
type Paginator struct {
	Source   string
	MaxPages int
}

// Run loads pages in order until a stop condition holds.
func (p Paginator) Run(ctx context.Context, load PageFunc) error {
	maxPages := p.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		next, err := load(ctx, page)
		if err != nil && resilience.IsTransient(err) && ctx.Err() == nil {
			logPageFailure(p.Source, page, err)
			next, err = load(ctx, page)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if resilience.IsTransient(err) {
				zap.L().Warn("source: page failed twice, stopping",
					zap.String("source", p.Source),
					zap.Int("page", page),
					zap.Error(err),
				)
				return nil
			}
			return eris.Wrapf(err, "source: %s page %d", p.Source, page)
		}
		if !next {
			return nil
		}
	}
	return nil
}
