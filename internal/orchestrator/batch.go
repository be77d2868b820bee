// Package orchestrator runs work units concurrently: batch jobs with
// pacing and one retry pass, and multi-source scrapes.
package orchestrator

import (
	"context"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadgen/internal/resilience"
)

// Outcome is the result of one job. Err is set when the job failed;
// failures are data, not errors of the run.
type Outcome[In, Out any] struct {
	Index   int
	Input   In
	Output  Out
	Err     error
	Attempt int
}

// Failed reports whether the job failed.
func (o Outcome[In, Out]) Failed() bool { return o.Err != nil }

// Sink receives outcomes from a single writer goroutine, so
// implementations need no locking. Flush is called after every chunk.
type Sink[In, Out any] interface {
	Write(o Outcome[In, Out]) error
	Flush() error
}

// Options configures Run.
type Options struct {
	// Name labels log lines.
	Name        string
	Concurrency int
	BatchSize   int
	// PauseMin and PauseMax bound the random pause taken between chunks.
	PauseMin time.Duration
	PauseMax time.Duration
	// Retry re-runs failed jobs once after the first pass.
	Retry bool
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 20
	}
	if o.PauseMax < o.PauseMin {
		o.PauseMax = o.PauseMin
	}
	if o.Name == "" {
		o.Name = "batch"
	}
	return o
}

// Report summarizes a run. Succeeded and Failed are ordered by input index.
type Report[In, Out any] struct {
	Succeeded []Outcome[In, Out]
	Failed    []Outcome[In, Out]
	// Retried counts the jobs that went into the retry pass.
	Retried int
}

type job[In any] struct {
	index int
	input In
}

// Run applies fn to every input. Inputs are processed in chunks of
// BatchSize on at most Concurrency goroutines; after each chunk the sink is
// flushed and a random pause in [PauseMin, PauseMax] is taken.
//
// Successes are written as they complete. With Retry set, first-pass
// failures are held back and re-run once; the second pass writes both its
// successes and its permanent failures. When ctx is cancelled, jobs that
// never started are reported as failed with the context error, and every
// failure not yet written goes to the sink before Run returns the partial
// report with the error.
func Run[In, Out any](ctx context.Context, inputs []In, fn func(ctx context.Context, in In) (Out, error), sink Sink[In, Out], opts Options) (*Report[In, Out], error) {
	opts = opts.withDefaults()
	jobs := make([]job[In], len(inputs))
	for i, in := range inputs {
		jobs[i] = job[In]{index: i, input: in}
	}

	report := &Report[In, Out]{}
	pass, err := runPass(ctx, jobs, fn, sink, opts, 1, report)
	if err != nil {
		return finish(report, pass, sink, opts, err)
	}

	if opts.Retry && len(pass.failed) > 0 {
		report.Retried = len(pass.failed)
		zap.L().Info("orchestrator: retrying failed jobs",
			zap.String("run", opts.Name),
			zap.Int("failed", len(pass.failed)),
		)

		retry := make([]job[In], len(pass.failed))
		for i, o := range pass.failed {
			retry[i] = job[In]{index: o.Index, input: o.Input}
		}
		second := opts
		second.Retry = false
		pass, err = runPass(ctx, retry, fn, sink, second, 2, report)
	}
	return finish(report, pass, sink, opts, err)
}

// finish records the final failures, writes those the sink has not seen
// and logs the run.
func finish[In, Out any](report *Report[In, Out], pass passResult[In, Out], sink Sink[In, Out], opts Options, err error) (*Report[In, Out], error) {
	report.Failed = append(report.Failed, pass.failed...)
	sortReport(report)

	if len(pass.pending) > 0 && !pass.sinkFailed {
		werr := writeAll(sink, pass.pending)
		if err == nil && werr != nil {
			err = eris.Wrap(werr, "orchestrator: write outcome")
		}
	}

	zap.L().Info("orchestrator: run complete",
		zap.String("run", opts.Name),
		zap.Int("succeeded", len(report.Succeeded)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("retried", report.Retried),
	)
	return report, err
}

func writeAll[In, Out any](sink Sink[In, Out], outcomes []Outcome[In, Out]) error {
	for _, o := range outcomes {
		if err := sink.Write(o); err != nil {
			return err
		}
	}
	return sink.Flush()
}

// passResult holds the failures of one pass. pending is the subset not yet
// written to the sink: failures held back for a retry pass and jobs that
// never started.
type passResult[In, Out any] struct {
	failed     []Outcome[In, Out]
	pending    []Outcome[In, Out]
	sinkFailed bool
}

// skip records jobs that never ran as failed with err.
func (p *passResult[In, Out]) skip(jobs []job[In], err error, attempt int) {
	for _, j := range jobs {
		o := Outcome[In, Out]{Index: j.index, Input: j.input, Err: err, Attempt: attempt}
		p.failed = append(p.failed, o)
		p.pending = append(p.pending, o)
	}
}

// runPass processes jobs chunk by chunk. Failures are written to the sink
// only when no retry pass follows.
func runPass[In, Out any](ctx context.Context, jobs []job[In], fn func(context.Context, In) (Out, error), sink Sink[In, Out], opts Options, attempt int, report *Report[In, Out]) (passResult[In, Out], error) {
	var pass passResult[In, Out]

	for start := 0; start < len(jobs); start += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			pass.skip(jobs[start:], err, attempt)
			return pass, err
		}
		chunk := jobs[start:min(start+opts.BatchSize, len(jobs))]

		results := make(chan Outcome[In, Out], len(chunk))
		written := make(chan error, 1)
		go func() {
			var werr error
			for o := range results {
				if o.Failed() {
					pass.failed = append(pass.failed, o)
					if opts.Retry {
						pass.pending = append(pass.pending, o)
						continue
					}
				} else {
					report.Succeeded = append(report.Succeeded, o)
				}
				if werr == nil {
					werr = sink.Write(o)
				}
			}
			if werr == nil {
				werr = sink.Flush()
			}
			written <- werr
		}()

		var g errgroup.Group
		g.SetLimit(opts.Concurrency)
		started := 0
		for _, j := range chunk {
			if ctx.Err() != nil {
				break
			}
			started++
			g.Go(func() error {
				out, err := fn(ctx, j.input)
				results <- Outcome[In, Out]{Index: j.index, Input: j.input, Output: out, Err: err, Attempt: attempt}
				return nil
			})
		}
		_ = g.Wait()
		close(results)

		if err := <-written; err != nil {
			err = eris.Wrap(err, "orchestrator: write outcome")
			pass.sinkFailed = true
			pass.skip(jobs[start+started:], err, attempt)
			return pass, err
		}
		if started < len(chunk) {
			pass.skip(jobs[start+started:], ctx.Err(), attempt)
			return pass, ctx.Err()
		}

		zap.L().Debug("orchestrator: chunk done",
			zap.String("run", opts.Name),
			zap.Int("attempt", attempt),
			zap.Int("from", start),
			zap.Int("size", len(chunk)),
		)

		if start+opts.BatchSize < len(jobs) && opts.PauseMax > 0 {
			if err := resilience.Sleep(ctx, resilience.Between(opts.PauseMin, opts.PauseMax)); err != nil {
				pass.skip(jobs[start+opts.BatchSize:], err, attempt)
				return pass, err
			}
		}
	}
	return pass, ctx.Err()
}

func sortReport[In, Out any](r *Report[In, Out]) {
	byIndex := func(a, b Outcome[In, Out]) int { return a.Index - b.Index }
	slices.SortFunc(r.Succeeded, byIndex)
	slices.SortFunc(r.Failed, byIndex)
}

// SinkFuncs adapts plain functions to a Sink. Nil functions are no-ops.
type SinkFuncs[In, Out any] struct {
	WriteFunc func(Outcome[In, Out]) error
	FlushFunc func() error
}

// Write implements Sink.
func (s SinkFuncs[In, Out]) Write(o Outcome[In, Out]) error {
	if s.WriteFunc == nil {
		return nil
	}
	return s.WriteFunc(o)
}

// Flush implements Sink.
func (s SinkFuncs[In, Out]) Flush() error {
	if s.FlushFunc == nil {
		return nil
	}
	return s.FlushFunc()
}
