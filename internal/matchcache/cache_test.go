package matchcache

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteCache(t *testing.T) *SQLiteCache {
	t.Helper()
	c, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// backends runs fn against every local Cache implementation.
func backends(t *testing.T, fn func(t *testing.T, c Cache)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestSQLiteCache(t)) })
}

func TestCacheGetSet(t *testing.T) {
	backends(t, func(t *testing.T, c Cache) {
		ctx := context.Background()

		_, ok, err := c.Get(ctx, "growjo", "Acme")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, c.Set(ctx, "growjo", "Acme", "Acme Inc"))
		got, ok, err := c.Get(ctx, "growjo", "Acme")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Acme Inc", got)

		// same company, other source is independent
		_, ok, err = c.Get(ctx, "apollo", "Acme")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, c.Set(ctx, "growjo", "Acme", "ACME Corp"))
		got, _, _ = c.Get(ctx, "growjo", "Acme")
		assert.Equal(t, "ACME Corp", got)
	})
}

func TestCacheSetRejectsEmptyKey(t *testing.T) {
	backends(t, func(t *testing.T, c Cache) {
		assert.Error(t, c.Set(context.Background(), "", "Acme", "x"))
		assert.Error(t, c.Set(context.Background(), "growjo", "  ", "x"))
	})
}

func TestCacheConcurrentSetsKeepEveryEntry(t *testing.T) {
	backends(t, func(t *testing.T, c Cache) {
		ctx := context.Background()
		const writers = 8
		const perWriter = 25

		var wg sync.WaitGroup
		for w := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range perWriter {
					name := fmt.Sprintf("company-%d-%d", w, i)
					assert.NoError(t, c.Set(ctx, "growjo", name, name+" Inc"))
				}
			}()
		}
		wg.Wait()

		snap, err := c.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, writers*perWriter, snap.Len())
	})
}

func TestCacheAll(t *testing.T) {
	backends(t, func(t *testing.T, c Cache) {
		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "growjo", "A&B", "AandB"))
		require.NoError(t, c.Set(ctx, "apollo", "Acme", "Acme Inc"))

		snap, err := c.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, Snapshot{
			"growjo": {"A&B": "AandB"},
			"apollo": {"Acme": "Acme Inc"},
		}, snap)
	})
}

func TestSnapshotEntriesSorted(t *testing.T) {
	snap := Snapshot{}
	snap.Put("growjo", "b", "B")
	snap.Put("apollo", "z", "Z")
	snap.Put("growjo", "a", "A")

	assert.Equal(t, []Entry{
		{Source: "apollo", Company: "z", Matched: "Z"},
		{Source: "growjo", Company: "a", Matched: "A"},
		{Source: "growjo", Company: "b", Matched: "B"},
	}, snap.Entries())
	assert.Equal(t, 3, snap.Len())
}
