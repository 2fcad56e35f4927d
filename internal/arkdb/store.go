package arkdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"arkimedes/internal/config"
)

// Store is the local mirror of registry records, kept in SQLite.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// ErrLocked reports that another process holds the mirror's batch lock.
var ErrLocked = errors.New("arkdb: mirror is locked by another arkimedes process")

// Open creates the configured directories and opens the mirror at
// cfg.Database.Path.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.Database.Path)
}

// OpenPath opens the mirror at path, creating the schema on first use.
// The pool holds a single connection so the pragmas below stay in effect.
func OpenPath(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mirror %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open mirror %s: %w", path, err)
	}

	s := &Store{db: db, path: path, lock: flock.New(path + ".lock")}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Lock takes the exclusive batch lock so two runs cannot mint against the
// same mirror at once. The returned function releases it.
func (s *Store) Lock() (func() error, error) {
	ok, err := s.lock.TryLock()
	switch {
	case err != nil:
		return nil, fmt.Errorf("acquire lock: %w", err)
	case !ok:
		return nil, ErrLocked
	}
	return s.lock.Unlock, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// busy reports SQLITE_BUSY and its extended codes.
func busy(err error) bool {
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		return coded.Code()&0xff == 5
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

// retryOnBusy runs op until it succeeds, fails with something other than
// SQLITE_BUSY, or has been tried five times. Waits double from 10ms.
func retryOnBusy(ctx context.Context, op func() error) error {
	wait := 10 * time.Millisecond
	for tries := 1; ; tries++ {
		err := op()
		if err == nil || !busy(err) || tries == 5 {
			return err
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		wait *= 2
	}
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := retryOnBusy(ctx, func() (err error) {
		res, err = s.db.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}
