package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink captures writes and flushes. Run guarantees a single
// writer, so no locking is needed; the race detector checks that claim.
type recordingSink struct {
	writes  []Outcome[int, string]
	flushes int
	failOn  int
}

func (s *recordingSink) Write(o Outcome[int, string]) error {
	if s.failOn > 0 && len(s.writes)+1 == s.failOn {
		return errors.New("disk full")
	}
	s.writes = append(s.writes, o)
	return nil
}

func (s *recordingSink) Flush() error {
	s.flushes++
	return nil
}

func inputs(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func indexes(os []Outcome[int, string]) []int {
	out := make([]int, len(os))
	for i, o := range os {
		out[i] = o.Index
	}
	return out
}

func TestRun_RetriesPermanentFailuresOnce(t *testing.T) {
	var calls sync.Map
	fn := func(_ context.Context, in int) (string, error) {
		n, _ := calls.LoadOrStore(in, new(atomic.Int32))
		n.(*atomic.Int32).Add(1)
		if in == 3 || in == 7 {
			return "", fmt.Errorf("job %d failed", in)
		}
		return fmt.Sprintf("ok-%d", in), nil
	}

	sink := &recordingSink{}
	report, err := Run(context.Background(), inputs(10), fn, sink, Options{Concurrency: 3, BatchSize: 4, Retry: true})
	require.NoError(t, err)

	assert.Len(t, report.Succeeded, 8)
	assert.Equal(t, []int{3, 7}, indexes(report.Failed))
	assert.Equal(t, 2, report.Retried)
	for _, f := range report.Failed {
		assert.Equal(t, 2, f.Attempt)
		assert.Error(t, f.Err)
	}

	// every job written exactly once: 8 successes, then the 2 final failures
	require.Len(t, sink.writes, 10)
	seen := map[int]int{}
	for _, w := range sink.writes {
		seen[w.Index]++
	}
	for i := range 10 {
		assert.Equal(t, 1, seen[i], "index %d", i)
	}
	assert.True(t, sink.writes[8].Failed())
	assert.True(t, sink.writes[9].Failed())

	// failing jobs ran twice, the rest once
	calls.Range(func(k, v any) bool {
		want := int32(1)
		if k == 3 || k == 7 {
			want = 2
		}
		assert.Equal(t, want, v.(*atomic.Int32).Load(), "job %v", k)
		return true
	})

	// 3 chunks in the first pass, 1 in the retry pass
	assert.Equal(t, 4, sink.flushes)
}

func TestRun_RetryRecovers(t *testing.T) {
	var attempts sync.Map
	fn := func(_ context.Context, in int) (string, error) {
		n, _ := attempts.LoadOrStore(in, new(atomic.Int32))
		if n.(*atomic.Int32).Add(1) == 1 && in%2 == 0 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	}

	report, err := Run(context.Background(), inputs(6), fn, &recordingSink{}, Options{Concurrency: 2, BatchSize: 10, Retry: true})
	require.NoError(t, err)
	assert.Len(t, report.Succeeded, 6)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 3, report.Retried)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, indexes(report.Succeeded))
}

func TestRun_NoRetryWritesFailures(t *testing.T) {
	fn := func(_ context.Context, in int) (string, error) {
		if in == 1 {
			return "", errors.New("nope")
		}
		return "ok", nil
	}

	sink := &recordingSink{}
	report, err := Run(context.Background(), inputs(3), fn, sink, Options{Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, indexes(report.Failed))
	assert.Equal(t, 1, report.Failed[0].Attempt)
	assert.Len(t, sink.writes, 3)
	assert.Zero(t, report.Retried)
}

func TestRun_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	fn := func(_ context.Context, _ int) (string, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return "", nil
	}

	_, err := Run(context.Background(), inputs(20), fn, &recordingSink{}, Options{Concurrency: 3, BatchSize: 20})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRun_PausesBetweenChunks(t *testing.T) {
	fn := func(context.Context, int) (string, error) { return "", nil }

	start := time.Now()
	_, err := Run(context.Background(), inputs(3), fn, &recordingSink{}, Options{
		Concurrency: 3, BatchSize: 1, PauseMin: 20 * time.Millisecond, PauseMax: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	// two pauses: none after the last chunk
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRun_CancelDuringPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fn := func(context.Context, int) (string, error) {
		cancel()
		return "ok", nil
	}

	sink := &recordingSink{}
	report, err := Run(ctx, inputs(5), fn, sink, Options{Concurrency: 1, BatchSize: 1, PauseMin: time.Hour, PauseMax: time.Hour})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, report.Succeeded, 1)
	// jobs that never started are failures carrying the context error
	require.Len(t, report.Failed, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, indexes(report.Failed))
	for _, o := range report.Failed {
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, indexes(sink.writes))
}

func TestRun_CancelWritesHeldBackFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fn := func(ctx context.Context, in int) (string, error) {
		if in == 0 {
			cancel()
			return "", errors.New("boom")
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "ok", nil
	}

	sink := &recordingSink{}
	report, err := Run(ctx, inputs(4), fn, sink, Options{Concurrency: 1, BatchSize: 10, Retry: true})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Retried)
	assert.Empty(t, report.Succeeded)
	require.Equal(t, []int{0, 1, 2, 3}, indexes(report.Failed))
	assert.EqualError(t, report.Failed[0].Err, "boom")
	for _, o := range report.Failed[1:] {
		assert.ErrorIs(t, o.Err, context.Canceled)
	}

	// every job reaches the sink exactly once
	got := indexes(sink.writes)
	assert.ElementsMatch(t, []int{0, 1, 2, 3}, got)
}

func TestRun_SinkErrorStopsRun(t *testing.T) {
	fn := func(context.Context, int) (string, error) { return "ok", nil }

	report, err := Run(context.Background(), inputs(10), fn, &recordingSink{failOn: 2}, Options{Concurrency: 1, BatchSize: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	// the later chunk never ran
	assert.Len(t, report.Succeeded, 5)
	assert.Equal(t, []int{5, 6, 7, 8, 9}, indexes(report.Failed))
}

func TestSinkFuncs_NilIsNoop(t *testing.T) {
	var s SinkFuncs[int, string]
	assert.NoError(t, s.Write(Outcome[int, string]{}))
	assert.NoError(t, s.Flush())
}
