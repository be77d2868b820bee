package matchcache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const lockRetry = 100 * time.Millisecond

// bulkLoader is implemented by backends that can import a snapshot in a
// single statement.
type bulkLoader interface {
	Load(ctx context.Context, snap Snapshot) (int64, error)
}

// ReadFile decodes a legacy {source: {company: matched}} JSON file under a
// shared lock. A missing file is an empty snapshot.
func ReadFile(ctx context.Context, path string) (Snapshot, error) {
	lock := flock.New(path + ".lock")
	if _, err := lock.TryRLockContext(ctx, lockRetry); err != nil {
		return nil, eris.Wrapf(err, "matchcache: lock %s", path)
	}
	defer lock.Unlock() //nolint:errcheck

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return make(Snapshot), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "matchcache: read %s", path)
	}

	snap := make(Snapshot)
	if len(data) == 0 {
		return snap, nil
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, eris.Wrapf(err, "matchcache: decode %s", path)
	}
	return snap, nil
}

// WriteFile writes snap as indented JSON under an exclusive lock. The file
// is replaced by rename so readers never see a partial document.
func WriteFile(ctx context.Context, path string, snap Snapshot) error {
	lock := flock.New(path + ".lock")
	if _, err := lock.TryLockContext(ctx, lockRetry); err != nil {
		return eris.Wrapf(err, "matchcache: lock %s", path)
	}
	defer lock.Unlock() //nolint:errcheck

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return eris.Wrap(err, "matchcache: encode snapshot")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "matchcache: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return eris.Wrap(err, "matchcache: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "matchcache: close temp file")
	}
	return eris.Wrapf(os.Rename(tmp.Name(), path), "matchcache: replace %s", path)
}

// Import copies every entry of a legacy cache file into c and returns the
// number of entries imported.
func Import(ctx context.Context, c Cache, path string) (int, error) {
	snap, err := ReadFile(ctx, path)
	if err != nil {
		return 0, err
	}

	if bl, ok := c.(bulkLoader); ok {
		if _, err := bl.Load(ctx, snap); err != nil {
			return 0, err
		}
		return snap.Len(), nil
	}

	n := 0
	for _, e := range snap.Entries() {
		if err := c.Set(ctx, e.Source, e.Company, e.Matched); err != nil {
			zap.L().Warn("matchcache: skip legacy entry",
				zap.String("source", e.Source),
				zap.String("company", e.Company),
				zap.Error(err),
			)
			continue
		}
		n++
	}
	return n, nil
}

// Export writes the full contents of c to a legacy cache file.
func Export(ctx context.Context, c Cache, path string) (int, error) {
	snap, err := c.All(ctx)
	if err != nil {
		return 0, err
	}
	if err := WriteFile(ctx, path, snap); err != nil {
		return 0, err
	}
	return snap.Len(), nil
}
