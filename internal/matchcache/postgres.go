package matchcache

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/db"
)

// PostgresCache implements Cache on a shared Postgres database, for
// deployments where several workers resolve revenue concurrently.
type PostgresCache struct {
	pool db.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS match_cache (
	source       TEXT NOT NULL,
	company_name TEXT NOT NULL,
	matched_name TEXT NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (source, company_name)
);
`

// NewPostgres connects to dsn and ensures the cache table exists.
func NewPostgres(ctx context.Context, dsn string) (*PostgresCache, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "matchcache: connect postgres")
	}
	c := NewPostgresWithPool(pool)
	if err := c.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return c, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *PostgresCache {
	return &PostgresCache{pool: pool}
}

// Migrate creates the cache table.
func (c *PostgresCache) Migrate(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, postgresSchema)
	return eris.Wrap(err, "matchcache: migrate postgres")
}

func (c *PostgresCache) Get(ctx context.Context, source, company string) (string, bool, error) {
	var matched string
	err := c.pool.QueryRow(ctx,
		`SELECT matched_name FROM match_cache WHERE source = $1 AND company_name = $2`,
		source, company,
	).Scan(&matched)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "matchcache: get %s/%s", source, company)
	}
	return matched, true, nil
}

func (c *PostgresCache) Set(ctx context.Context, source, company, matched string) error {
	if !validKey(source, company) {
		return eris.New("matchcache: source and company are required")
	}
	_, err := c.pool.Exec(ctx,
		`INSERT INTO match_cache (source, company_name, matched_name, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (source, company_name)
		 DO UPDATE SET matched_name = EXCLUDED.matched_name, updated_at = EXCLUDED.updated_at`,
		source, company, matched, time.Now().UTC(),
	)
	return eris.Wrapf(err, "matchcache: set %s/%s", source, company)
}

func (c *PostgresCache) All(ctx context.Context) (Snapshot, error) {
	rows, err := c.pool.Query(ctx, `SELECT source, company_name, matched_name FROM match_cache`)
	if err != nil {
		return nil, eris.Wrap(err, "matchcache: list")
	}
	defer rows.Close()

	out := make(Snapshot)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Source, &e.Company, &e.Matched); err != nil {
			return nil, eris.Wrap(err, "matchcache: scan")
		}
		out.Put(e.Source, e.Company, e.Matched)
	}
	return out, eris.Wrap(rows.Err(), "matchcache: list rows")
}

// Load bulk-upserts a snapshot in one transaction.
func (c *PostgresCache) Load(ctx context.Context, snap Snapshot) (int64, error) {
	entries := snap.Entries()
	rows := make([][]any, 0, len(entries))
	now := time.Now().UTC()
	for _, e := range entries {
		if !validKey(e.Source, e.Company) {
			continue
		}
		rows = append(rows, []any{e.Source, e.Company, e.Matched, now})
	}
	n, err := db.BulkUpsert(ctx, c.pool, db.UpsertConfig{
		Table:        "match_cache",
		Columns:      []string{"source", "company_name", "matched_name", "updated_at"},
		ConflictKeys: []string{"source", "company_name"},
	}, rows)
	return n, eris.Wrap(err, "matchcache: load snapshot")
}

func (c *PostgresCache) Close() error {
	c.pool.Close()
	return nil
}
