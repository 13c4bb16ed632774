package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchDebounce is how long the watcher waits after the last file event
// before rescanning the table.
const WatchDebounce = 100 * time.Millisecond

// ErrAlreadyWatching is returned by a second call to Watch.
var ErrAlreadyWatching = errors.New("kv: store is already being watched")

// Watch reports writes made by other processes sharing the database file.
// It watches the database directory with fsnotify and, once events settle,
// diffs the table against the last known contents. Foreign changes are
// delivered to OnChanged listeners like local ones. Watching stops when ctx
// is cancelled or the store is closed.
func (s *SQLiteStore) Watch(ctx context.Context) error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.stopWatch != nil {
		return ErrAlreadyWatching
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(s.path), err)
	}

	if err := s.prime(ctx); err != nil {
		watcher.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.stopWatch = cancel
	s.watchDone = make(chan struct{})
	go s.watchLoop(ctx, watcher, s.watchDone)

	s.logger.Debug("watching kv store", "path", s.path)
	return nil
}

// prime loads the snapshot that later refreshes diff against.
func (s *SQLiteStore) prime(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	rows, err := loadRows(ctx, s.db, nil)
	if err != nil {
		return err
	}
	s.snapshot = rows
	return nil
}

func (s *SQLiteStore) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	defer func() {
		s.writeMu.Lock()
		s.snapshot = nil
		s.writeMu.Unlock()
		s.closeMu.Lock()
		s.stopWatch = nil
		s.closeMu.Unlock()
	}()
	defer watcher.Close()

	var (
		mu    sync.Mutex
		timer *time.Timer
		wg    sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		if timer != nil && timer.Stop() {
			wg.Done()
		}
		mu.Unlock()
		wg.Wait()
	}()

	base := filepath.Base(s.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			// clipgo.db, clipgo.db-wal and clipgo.db-shm all signal writes.
			if !strings.HasPrefix(filepath.Base(event.Name), base) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			mu.Lock()
			if timer != nil && timer.Stop() {
				wg.Done()
			}
			wg.Add(1)
			timer = time.AfterFunc(WatchDebounce, func() {
				defer wg.Done()
				if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
					s.logger.Warn("kv refresh failed", "error", err)
				}
			})
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("kv watcher error", "error", err)
		}
	}
}

// Refresh rescans the table and emits changes for rows that differ from the
// snapshot, which primarily arise from other processes. Without an active
// Watch it is a no-op.
func (s *SQLiteStore) Refresh(ctx context.Context) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.snapshot == nil {
		return nil
	}

	rows, err := loadRows(ctx, s.db, nil)
	if err != nil {
		return err
	}

	next := make(map[string]json.RawMessage, len(rows)+len(s.snapshot))
	for k, v := range rows {
		next[k] = v
	}
	for k := range s.snapshot {
		if _, ok := rows[k]; !ok {
			next[k] = nil
		}
	}

	changes := diff(s.snapshot, next)
	s.snapshot = rows
	if len(changes) > 0 {
		s.logger.Debug("external kv changes detected", "count", len(changes))
		s.notify.emit(changes)
	}
	return nil
}
