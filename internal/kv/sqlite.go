package kv

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Kai-project-00/clipgo/internal/logger"
)

// SQLiteFile is the database file name inside the base directory.
const SQLiteFile = "clipgo.db"

// schemaMigrations holds one statement per schema version; entry i moves
// user_version from i to i+1. Append to add a migration.
var schemaMigrations = []string{
	`CREATE TABLE IF NOT EXISTS kv (
	  key        TEXT PRIMARY KEY,
	  value      BLOB NOT NULL,
	  updated_at INTEGER NOT NULL
	);`,
}

// SQLiteStore keeps every key as a row of a single table.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	notify *notifier

	// writeMu serializes this process's transactions with snapshot refreshes.
	writeMu sync.Mutex

	// snapshot mirrors the table while Watch is running, so foreign writes
	// can be diffed into changes. Guarded by writeMu.
	snapshot map[string]json.RawMessage

	closeMu   sync.RWMutex
	closed    bool
	stopWatch context.CancelFunc
	watchDone chan struct{}
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) baseDir/clipgo.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.clipgo.
func OpenSQLite(baseDir string, l *slog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	// _txlock=immediate makes BeginTx take the write lock up front, so
	// read-modify-write transactions from two processes never interleave.
	dbPath := filepath.Join(baseDir, SQLiteFile)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	_ = os.Chmod(dbPath, 0600)

	l = logger.OrDiscard(l)
	return &SQLiteStore{
		db:     db,
		path:   dbPath,
		logger: l,
		notify: newNotifier(l),
	}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := userVersion(db)
	if err != nil {
		return err
	}

	if version > len(schemaMigrations) {
		return fmt.Errorf("database schema version %d is newer than this build supports (%d)", version, len(schemaMigrations))
	}
	for v := version; v < len(schemaMigrations); v++ {
		if _, err := db.Exec(schemaMigrations[v]); err != nil {
			return fmt.Errorf("migration %d failed: %w", v+1, err)
		}
		if err := setUserVersion(db, v+1); err != nil {
			return err
		}
	}
	return nil
}

func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

func userVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d;", version)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadRows(ctx context.Context, q queryer, keys []string) (map[string]json.RawMessage, error) {
	query := "SELECT key, value FROM kv"
	args := make([]any, len(keys))
	if len(keys) > 0 {
		for i, k := range keys {
			args[i] = k
		}
		query += " WHERE key IN (" + placeholders(len(keys)) + ")"
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query kv: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan kv row: %w", err)
		}
		out[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate kv rows: %w", err)
	}
	return out, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (s *SQLiteStore) checkOpen() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Get returns the stored values of keys, or all values with no keys.
func (s *SQLiteStore) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return loadRows(ctx, s.db, dedupe(keys))
}

func (s *SQLiteStore) Set(ctx context.Context, items map[string]json.RawMessage) error {
	if len(items) == 0 {
		return nil
	}
	return s.Update(ctx, sortedKeys(items), setAll(items))
}

func (s *SQLiteStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.Update(ctx, keys, removeAll(keys))
}

// Clear removes every row in one transaction.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	return s.update(ctx, nil, true, func(current map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		next := make(map[string]json.RawMessage, len(current))
		for k := range current {
			next[k] = nil
		}
		return next, nil
	})
}

func (s *SQLiteStore) Update(ctx context.Context, keys []string, fn UpdateFunc) error {
	return s.update(ctx, dedupe(keys), false, fn)
}

// update runs fn in an immediate transaction. With all set, fn sees every row.
func (s *SQLiteStore) update(ctx context.Context, keys []string, all bool, fn UpdateFunc) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current map[string]json.RawMessage
	if all || len(keys) > 0 {
		current, err = loadRows(ctx, tx, keys)
		if err != nil {
			return err
		}
	} else {
		current = map[string]json.RawMessage{}
	}

	next, err := fn(cloneValues(current))
	if err != nil {
		return err
	}
	if len(next) == 0 {
		return nil
	}

	// Keys written outside the requested set still need their old values.
	var extra []string
	for k := range next {
		if _, requested := current[k]; !requested && !all && !slices.Contains(keys, k) {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		more, err := loadRows(ctx, tx, extra)
		if err != nil {
			return err
		}
		for k, v := range more {
			current[k] = v
		}
	}

	changes := diff(current, next)
	if len(changes) == 0 {
		return nil
	}

	now := time.Now().UnixMilli()
	for _, c := range changes {
		if c.NewValue == nil {
			if _, err := tx.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", c.Key); err != nil {
				return fmt.Errorf("failed to delete %s: %w", c.Key, err)
			}
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			c.Key, []byte(c.NewValue), now)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", c.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.applySnapshot(changes)
	s.notify.emit(changes)
	return nil
}

// BytesInUse sums byte lengths of keys and values.
func (s *SQLiteStore) BytesInUse(ctx context.Context, keys ...string) (int64, error) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	query := "SELECT COALESCE(SUM(length(CAST(key AS BLOB)) + length(value)), 0) FROM kv"
	keys = dedupe(keys)
	args := make([]any, len(keys))
	if len(keys) > 0 {
		for i, k := range keys {
			args[i] = k
		}
		query += " WHERE key IN (" + placeholders(len(keys)) + ")"
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to compute bytes in use: %w", err)
	}
	return total, nil
}

func (s *SQLiteStore) OnChanged(l Listener) func() {
	return s.notify.subscribe(l)
}

// Close stops watching, flushes pending notifications and closes the database.
func (s *SQLiteStore) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	stop, done := s.stopWatch, s.watchDone
	s.closeMu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
	s.notify.close()
	return s.db.Close()
}

// applySnapshot folds committed changes into the watch snapshot.
// The caller holds writeMu.
func (s *SQLiteStore) applySnapshot(changes []Change) {
	if s.snapshot == nil {
		return
	}
	for _, c := range changes {
		if c.NewValue == nil {
			delete(s.snapshot, c.Key)
		} else {
			s.snapshot[c.Key] = c.NewValue
		}
	}
}

func cloneValues(m map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func dedupe(keys []string) []string {
	if len(keys) < 2 {
		return keys
	}
	seen := make(map[string]bool, len(keys))
	out := keys[:0:0]
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
