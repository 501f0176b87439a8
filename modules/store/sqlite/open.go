// Package sqlite persists conversation memory in a SQLite database. It is
// the durable memory.Store used by the long-running service; the in-memory
// store covers tests and embedded use.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mbeaufort/mnemo/pkg/memory"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const defaultBusyTimeout = 5 * time.Second

// Store is a memory.Store backed by a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Compile-time interface check.
var _ memory.Store = (*Store)(nil)

// Open opens (creating if needed) a SQLite database at the given path.
//
// The database uses WAL mode, the given busy timeout (0 = 5 s default), and
// a single connection (SQLite serialises writes). The schema is migrated
// automatically.
func Open(path string, busyTimeout time.Duration) (*Store, error) {
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout.Milliseconds())); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// storeErr tags a failed database operation so callers can detect storage
// unavailability with errors.Is while keeping the underlying cause visible.
func storeErr(op string, err error) error {
	return fmt.Errorf("sqlite: %s: %w: %v", op, memory.ErrStorageUnavailable, err)
}
