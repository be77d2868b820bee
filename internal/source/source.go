// Package source scrapes business leads from directories, review sites,
// maps, professional networks and company data APIs, and resolves revenue
// estimates for single companies.
package source

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/model"
)

// Kind tells the orchestrator which executor a source needs.
type Kind int

const (
	// KindHTTP sources issue blocking HTTP requests and run on the pool executor.
	KindHTTP Kind = iota
	// KindBrowser sources drive a browser session and run on the serial executor.
	KindBrowser
)

func (k Kind) String() string {
	if k == KindBrowser {
		return "browser"
	}
	return "http"
}

// Source yields raw records for a query.
//
// Stream returns a lazy record sequence, produced page by page, and an
// error channel that carries at most one hard failure. Both channels close
// when the sequence ends. Records sent before a failure stay valid. Each
// call starts a fresh sequence.
type Source interface {
	Name() string
	Kind() Kind
	Stream(ctx context.Context, q model.Query) (<-chan model.RawRecord, <-chan error)
}

// emitFunc sends one record downstream. It returns false once the consumer
// is gone and production should stop.
type emitFunc func(model.RawRecord) bool

// produce runs fn on its own goroutine and exposes it as a Stream pair.
func produce(ctx context.Context, name string, fn func(ctx context.Context, emit emitFunc) error) (<-chan model.RawRecord, <-chan error) {
	out := make(chan model.RawRecord)
	errc := make(chan error, 1)

	go func() {
		defer close(errc)
		defer close(out)

		emit := func(r model.RawRecord) bool {
			r.Source = name
			select {
			case out <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}
		if err := fn(ctx, emit); err != nil && ctx.Err() == nil {
			errc <- err
		}
	}()
	return out, errc
}

// Collect drains a source into a slice. It returns whatever was produced
// along with the hard failure, if any.
func Collect(ctx context.Context, s Source, q model.Query) ([]model.RawRecord, error) {
	recs, errc := s.Stream(ctx, q)
	var out []model.RawRecord
	for r := range recs {
		out = append(out, r)
	}
	if err := <-errc; err != nil {
		return out, err
	}
	return out, ctx.Err()
}

func logPageFailure(source string, page int, err error) {
	zap.L().Warn("source: page failed",
		zap.String("source", source),
		zap.Int("page", page),
		zap.Error(err),
	)
}
