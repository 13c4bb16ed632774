package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/Kai-project-00/clipgo/internal/logger"
)

// BadgerConfig holds configuration for a Badger-backed store.
type BadgerConfig struct {
	// Path is the directory for Badger files. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Useful for tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum discardable fraction that triggers GC.
	GCDiscardRatio float64

	// Logger receives Badger's internal logging. Nil silences it.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns production defaults for a store at path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryBadgerConfig returns a configuration for tests.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// maxConflictRetries bounds how often Update retries a transaction that
// lost a conflict.
const maxConflictRetries = 5

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore is a Store on an embedded Badger database. Badger locks its
// directory, so a BadgerStore is never shared between processes.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
	notify *notifier

	// writeMu keeps commit order and notification order identical.
	writeMu sync.Mutex

	closeMu sync.RWMutex
	closed  bool

	gcStop chan struct{}
	gcDone chan struct{}
}

var _ Store = (*BadgerStore)(nil)

// OpenBadger opens a Badger store with cfg.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0700); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	l := logger.OrDiscard(cfg.Logger)
	s := &BadgerStore{
		db:     db,
		logger: l,
		notify: newNotifier(l),
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

func (s *BadgerStore) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			// ErrNoRewrite means there was nothing to collect.
			if err := s.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("badger value log GC error", "error", err)
			}
		}
	}
}

func (s *BadgerStore) checkOpen() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

func readKeys(txn *badger.Txn, keys []string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return nil, err
			}
			out[string(item.KeyCopy(nil))] = value
		}
		return out, nil
	}

	for _, k := range keys {
		item, err := txn.Get([]byte(k))
		if errors.Is(err, badger.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		out[k] = value
	}
	return out, nil
}

func (s *BadgerStore) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out map[string]json.RawMessage
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = readKeys(txn, dedupe(keys))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("badger read: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) Set(ctx context.Context, items map[string]json.RawMessage) error {
	if len(items) == 0 {
		return nil
	}
	return s.Update(ctx, sortedKeys(items), setAll(items))
}

func (s *BadgerStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.Update(ctx, keys, removeAll(keys))
}

func (s *BadgerStore) Clear(ctx context.Context) error {
	return s.update(ctx, nil, true, func(current map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		next := make(map[string]json.RawMessage, len(current))
		for k := range current {
			next[k] = nil
		}
		return next, nil
	})
}

func (s *BadgerStore) Update(ctx context.Context, keys []string, fn UpdateFunc) error {
	return s.update(ctx, dedupe(keys), false, fn)
}

func (s *BadgerStore) update(ctx context.Context, keys []string, all bool, fn UpdateFunc) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		var changes []Change
		err := s.db.Update(func(txn *badger.Txn) error {
			var current map[string]json.RawMessage
			if all || len(keys) > 0 {
				var err error
				if current, err = readKeys(txn, keys); err != nil {
					return err
				}
			} else {
				current = map[string]json.RawMessage{}
			}

			next, err := fn(cloneValues(current))
			if err != nil {
				return err
			}

			var extra []string
			for k := range next {
				if _, ok := current[k]; !ok && !all {
					extra = append(extra, k)
				}
			}
			if len(extra) > 0 {
				more, err := readKeys(txn, extra)
				if err != nil {
					return err
				}
				for k, v := range more {
					current[k] = v
				}
			}

			changes = diff(current, next)
			for _, c := range changes {
				if c.NewValue == nil {
					err = txn.Delete([]byte(c.Key))
				} else {
					err = txn.Set([]byte(c.Key), c.NewValue)
				}
				if err != nil {
					return fmt.Errorf("badger write %s: %w", c.Key, err)
				}
			}
			return nil
		})

		if errors.Is(err, badger.ErrConflict) && attempt < maxConflictRetries {
			s.logger.Debug("badger transaction conflict, retrying", "attempt", attempt)
			continue
		}
		if err != nil {
			return err
		}
		s.notify.emit(changes)
		return nil
	}
}

func (s *BadgerStore) BytesInUse(ctx context.Context, keys ...string) (int64, error) {
	values, err := s.Get(ctx, keys...)
	if err != nil {
		return 0, err
	}
	var total int64
	for k, v := range values {
		total += int64(len(k) + len(v))
	}
	return total, nil
}

func (s *BadgerStore) OnChanged(l Listener) func() {
	return s.notify.subscribe(l)
}

// Close stops GC, flushes pending notifications and closes the database.
func (s *BadgerStore) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	s.closeMu.Unlock()

	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
	}
	s.notify.close()
	return s.db.Close()
}
