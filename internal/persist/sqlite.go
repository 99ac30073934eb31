package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"fieldsync/internal/entry"
	"fieldsync/internal/services"
)

const snapshotKey = "entries"

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLite persists the entry snapshot in a SQLite database guarded by an
// exclusive process lock.
type SQLite struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// OpenSQLite takes the process lock at lockPath and opens (or creates) the
// database at dbPath. It returns ErrLocked when another process holds the lock.
func OpenSQLite(ctx context.Context, dbPath, lockPath string) (*SQLite, error) {
	ctx = ensureContext(ctx)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure state directory: %w", err)
	}

	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire state lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, lockPath)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLite{db: db, path: dbPath, lock: lock}
	if err := store.initSchema(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *SQLite) Path() string {
	return s.path
}

// Load returns the saved collection, or nil when nothing was saved yet.
func (s *SQLite) Load(ctx context.Context) ([]entry.Entry, error) {
	ctx = ensureContext(ctx)
	var data string
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT data FROM snapshots WHERE key = ?", snapshotKey).Scan(&data)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "persist", "load snapshot", "", err)
	}
	var entries []entry.Entry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "persist", "decode snapshot", "", err)
	}
	return entries, nil
}

// Save rewrites the snapshot row with the full collection.
func (s *SQLite) Save(ctx context.Context, entries []entry.Entry) error {
	ctx = ensureContext(ctx)
	if entries == nil {
		entries = []entry.Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "persist", "encode snapshot", "", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err = retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, `
INSERT INTO snapshots (key, data, entry_count, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET data = excluded.data, entry_count = excluded.entry_count, updated_at = excluded.updated_at`,
			snapshotKey, string(data), len(entries), now)
		return execErr
	})
	if err != nil {
		return services.Wrap(services.ErrPersistence, "persist", "save snapshot", "", err)
	}
	return nil
}

// Close closes the database and releases the process lock.
func (s *SQLite) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.lock != nil {
		errs = append(errs, s.lock.Unlock())
	}
	return errors.Join(errs...)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := range busyRetryAttempts {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}
