package matchcache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteCache implements Cache on a local SQLite file.
type SQLiteCache struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS match_cache (
	source       TEXT NOT NULL,
	company_name TEXT NOT NULL,
	matched_name TEXT NOT NULL,
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (source, company_name)
);
`

// NewSQLite opens (and creates if needed) a cache database at dsn.
func NewSQLite(ctx context.Context, dsn string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "matchcache: open sqlite")
	}
	// one connection serializes writers; pragmas apply per connection
	db.SetMaxOpenConns(1)
	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		sqliteSchema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, eris.Wrap(err, "matchcache: init sqlite")
		}
	}
	return &SQLiteCache{db: db}, nil
}

func (c *SQLiteCache) Get(ctx context.Context, source, company string) (string, bool, error) {
	var matched string
	err := c.db.QueryRowContext(ctx,
		`SELECT matched_name FROM match_cache WHERE source = ? AND company_name = ?`,
		source, company,
	).Scan(&matched)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "matchcache: get %s/%s", source, company)
	}
	return matched, true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, source, company, matched string) error {
	if !validKey(source, company) {
		return eris.New("matchcache: source and company are required")
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO match_cache (source, company_name, matched_name, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (source, company_name)
		 DO UPDATE SET matched_name = excluded.matched_name, updated_at = excluded.updated_at`,
		source, company, matched, time.Now().UTC(),
	)
	return eris.Wrapf(err, "matchcache: set %s/%s", source, company)
}

func (c *SQLiteCache) All(ctx context.Context) (Snapshot, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT source, company_name, matched_name FROM match_cache`)
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

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
