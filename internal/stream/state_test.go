package stream

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/model"
)

func lead(name string) model.LeadRecord {
	r := model.NewLeadRecord()
	r.Company = name
	return r
}

func TestJobState_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	job := NewJobState("j1", model.Query{Industry: "plumbers", Location: "Austin, TX"})
	job.AddScraped(3)
	job.Append(lead("A"), lead("B"))

	snap := job.Snapshot()
	snap.Processed[0].Company = "mutated"

	again := job.Snapshot()
	assert.Equal(t, "A", again.Processed[0].Company)
	assert.Equal(t, 3, again.TotalScraped)
	assert.Equal(t, 2, again.ProcessedCount)
	assert.False(t, again.Complete)
	assert.Equal(t, "j1", again.ID)
}

func TestJobState_FinishOnce(t *testing.T) {
	t.Parallel()

	job := NewJobState("j1", model.Query{})
	job.Append(lead("A"))
	job.Finish([]model.SourceFailure{{Source: "maps", Error: "timeout"}})
	job.Finish(nil)
	job.Append(lead("late"))

	select {
	case <-job.Done():
	default:
		t.Fatal("done not closed")
	}

	snap := job.Snapshot()
	assert.True(t, snap.Complete)
	assert.Equal(t, 1, snap.ProcessedCount)
	require.Len(t, snap.Failures, 1)
	assert.Equal(t, "maps", snap.Failures[0].Source)

	elapsed := snap.Elapsed
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, elapsed, job.Snapshot().Elapsed, "elapsed frozen after finish")
}

func TestCursor_ExactlyOnceInOrder(t *testing.T) {
	t.Parallel()

	job := NewJobState("j1", model.Query{})
	const total = 200

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i += 4 {
			job.Append(lead(fmt.Sprint(i)), lead(fmt.Sprint(i+1)), lead(fmt.Sprint(i+2)), lead(fmt.Sprint(i+3)))
			job.AddScraped(4)
		}
		job.Finish(nil)
	}()

	var cur Cursor
	var got []string
	for {
		snap := job.Snapshot()
		for _, l := range cur.Next(snap) {
			got = append(got, l.Company)
		}
		if snap.Complete {
			break
		}
	}
	wg.Wait()

	// A final read after completion yields nothing new.
	assert.Empty(t, cur.Next(job.Snapshot()))
	require.Len(t, got, total)
	for i, name := range got {
		assert.Equal(t, fmt.Sprint(i), name)
	}
	assert.Equal(t, total, cur.Sent())
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	a := reg.Start(model.Query{Industry: "plumbers", Location: "Austin, TX"})
	b := reg.Start(model.Query{Industry: "roofers", Location: "Dallas, TX"})
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, reg.Len())

	got, ok := reg.Get(a.ID())
	require.True(t, ok)
	assert.Same(t, a, got)
	_, ok = reg.Get("missing")
	assert.False(t, ok)

	a.Finish(nil)
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, reg.Prune(time.Millisecond))
	assert.Equal(t, 1, reg.Len())
	_, ok = reg.Get(b.ID())
	assert.True(t, ok, "running jobs are kept")
}
