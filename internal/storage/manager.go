// Package storage is the only gateway to the key-value store. It owns the
// persisted representation of categories, clips, settings and backups, and
// layers validation, caching, quota monitoring, backup/restore, import/export
// and event publication on top of it.
//
// Every write is a read-modify-write of whole collections run inside
// kv.Store.Update, so preconditions checked by a Guard hold at commit time
// even when several processes share the store.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Kai-project-00/clipgo/internal/cache"
	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/errors"
	"github.com/Kai-project-00/clipgo/internal/events"
	"github.com/Kai-project-00/clipgo/internal/kv"
	"github.com/Kai-project-00/clipgo/internal/logger"
)

// Persisted top-level keys.
const (
	KeyCategories = "categories"
	KeyClips      = "clips"
	KeySettings   = "settings"
	KeyBackups    = "backups"
	KeyVersion    = "version"
)

// AllKeys lists every key the storage manager owns.
var AllKeys = []string{KeyCategories, KeyClips, KeySettings, KeyBackups, KeyVersion}

// Defaults used when Options leaves a field zero.
const (
	DefaultQuotaBytes   int64 = 10 * 1024 * 1024
	DefaultCleanupCount       = 50
	DefaultMaxBackups         = 5
	DefaultCacheTTL           = 5 * time.Minute
)

// Options configures a Manager.
type Options struct {
	QuotaBytes   int64
	CleanupCount int
	MaxBackups   int

	// CacheTTL is the lifetime of cached collections. Negative disables caching.
	CacheTTL time.Duration

	Logger *slog.Logger

	// Bus receives domain events. A nil bus gets a private one.
	Bus *events.Bus

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Manager is the storage layer. Create it with New and call Init before use.
type Manager struct {
	store        kv.Store
	quotaBytes   int64
	cleanupCount int
	maxBackups   int
	logger       *slog.Logger
	bus          *events.Bus
	now          func() time.Time

	cache *cache.TTL[any]
	loads singleflight.Group
	gens  generations

	initMu        sync.Mutex
	initialized   atomic.Bool
	cancelChanges func()
}

// New creates a storage manager over store.
func New(store kv.Store, opts Options) *Manager {
	if opts.QuotaBytes <= 0 {
		opts.QuotaBytes = DefaultQuotaBytes
	}
	if opts.CleanupCount <= 0 {
		opts.CleanupCount = DefaultCleanupCount
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = DefaultMaxBackups
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := logger.OrDiscard(opts.Logger)
	if opts.Bus == nil {
		opts.Bus = events.NewBus(l)
	}

	return &Manager{
		store:        store,
		quotaBytes:   opts.QuotaBytes,
		cleanupCount: opts.CleanupCount,
		maxBackups:   opts.MaxBackups,
		logger:       l,
		bus:          opts.Bus,
		now:          opts.Now,
		cache:        cache.New[any](opts.CacheTTL, opts.Now),
	}
}

// Bus returns the event bus the manager publishes to.
func (m *Manager) Bus() *events.Bus { return m.bus }

// Initialized reports whether Init has completed.
func (m *Manager) Initialized() bool { return m.initialized.Load() }

// Now returns the manager's clock reading.
func (m *Manager) Now() time.Time { return m.now() }

// Init prepares the store: it writes default settings and empty collections
// where missing, migrates records written by older versions, subscribes to
// store changes, and runs the first quota check and auto-backup. Calling Init
// again is a no-op.
func (m *Manager) Init(ctx context.Context) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()
	if m.initialized.Load() {
		return nil
	}

	if err := m.initializeStorage(ctx); err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}

	m.cancelChanges = m.store.OnChanged(m.onStoreChanged)
	m.initialized.Store(true)
	m.logger.Info("storage manager initialized")

	if _, err := m.CheckStorageQuota(ctx); err != nil {
		m.logger.Warn("initial quota check failed", "error", err)
	}
	m.autoBackup(ctx)
	return nil
}

// initializeStorage fills in missing keys and migrates old data in one step.
func (m *Manager) initializeStorage(ctx context.Context) error {
	_, err := m.mutate(ctx, AllKeys, func(st *State) error {
		now := m.now().UnixMilli()
		if !st.present[KeySettings] {
			st.Settings = domain.DefaultSettings(m.now())
			st.markDirty(KeySettings)
		}
		for _, key := range []string{KeyCategories, KeyClips, KeyBackups} {
			if !st.present[key] {
				st.markDirty(key)
			}
		}
		if st.Version != domain.SchemaVersion {
			m.logger.Info("migrating schema", "from", versionOrZero(st.Version), "to", domain.SchemaVersion)
			migrate(st, now)
			st.Version = domain.SchemaVersion
			st.markDirty(KeyVersion, KeyCategories, KeyClips)
		}
		return nil
	})
	return err
}

func versionOrZero(v string) string {
	if v == "" {
		return "0.0.0"
	}
	return v
}

// Shutdown stops listening for store changes. The store itself is closed by
// its owner.
func (m *Manager) Shutdown() error {
	m.initMu.Lock()
	defer m.initMu.Unlock()
	if m.cancelChanges != nil {
		m.cancelChanges()
		m.cancelChanges = nil
	}
	m.initialized.Store(false)
	return nil
}

func (m *Manager) ensureInit() error {
	if !m.initialized.Load() {
		return errors.NewUninitialized("storage manager")
	}
	return nil
}

// onStoreChanged drops cached collections touched by any committed write,
// including writes from other processes, and republishes them as events.
func (m *Manager) onStoreChanged(changes []kv.Change) {
	for _, c := range changes {
		m.dropCached(c.Key)
		m.bus.Publish(events.StorageChanged{Key: c.Key, OldValue: c.OldValue, NewValue: c.NewValue})
	}
}

// invalidate drops cached collections. With no keys it clears everything.
func (m *Manager) invalidate(keys ...string) {
	if len(keys) == 0 {
		m.gens.bumpAll()
		m.cache.Clear()
		m.bus.Publish(events.CacheInvalidated{})
		return
	}
	for _, k := range keys {
		m.dropCached(k)
		m.bus.Publish(events.CacheInvalidated{Key: k})
	}
}

// dropCached removes key from the cache. Loads of key already in flight
// will not cache what they read, and later callers start a fresh load.
func (m *Manager) dropCached(key string) {
	m.gens.bump(key)
	m.cache.Delete(key)
	m.loads.Forget(key)
}

// generations counts invalidations per key. A load only caches its result
// when the count did not move while it was reading.
type generations struct {
	mu   sync.Mutex
	all  uint64
	keys map[string]uint64
}

func (g *generations) current(key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.all + g.keys[key]
}

func (g *generations) bump(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.keys == nil {
		g.keys = make(map[string]uint64)
	}
	g.keys[key]++
}

func (g *generations) bumpAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.all++
}

// CacheStats returns the collection cache counters.
func (m *Manager) CacheStats() cache.Stats { return m.cache.Stats() }

// State is the decoded data set a mutation or Guard runs against.
// Only the collections requested by the operation are populated.
type State struct {
	Categories []domain.Category
	Clips      []domain.Clip
	Settings   domain.Settings
	Backups    []domain.Backup
	Version    string

	present map[string]bool
	dirty   map[string]bool
	events  []events.Event
}

// Guard checks a precondition against the state an operation is about to
// modify. A non-nil error aborts the operation without writing.
type Guard func(st *State) error

func runGuards(st *State, guards []Guard) error {
	for _, g := range guards {
		if g == nil {
			continue
		}
		if err := g(st); err != nil {
			return err
		}
	}
	return nil
}

func (st *State) markDirty(keys ...string) {
	for _, k := range keys {
		st.dirty[k] = true
	}
}

func (st *State) emit(e events.Event) {
	st.events = append(st.events, e)
}

// FindCategory returns the index of the category with id, or -1.
func (st *State) FindCategory(id string) int {
	for i, c := range st.Categories {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// FindClip returns the index of the clip with id, or -1.
func (st *State) FindClip(id string) int {
	for i, c := range st.Clips {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) decodeState(current map[string]json.RawMessage, keys []string) (*State, error) {
	st := &State{
		present: make(map[string]bool, len(keys)),
		dirty:   make(map[string]bool, len(keys)),
	}
	for _, key := range keys {
		raw, ok := current[key]
		st.present[key] = ok
		if !ok {
			if key == KeySettings {
				st.Settings = domain.DefaultSettings(m.now())
			}
			continue
		}
		var target any
		switch key {
		case KeyCategories:
			target = &st.Categories
		case KeyClips:
			target = &st.Clips
		case KeySettings:
			target = &st.Settings
		case KeyBackups:
			target = &st.Backups
		case KeyVersion:
			target = &st.Version
		default:
			continue
		}
		if err := decodeValue(raw, target); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
	}
	if st.Categories == nil {
		st.Categories = []domain.Category{}
	}
	if st.Clips == nil {
		st.Clips = []domain.Clip{}
	}
	if st.Backups == nil {
		st.Backups = []domain.Backup{}
	}
	return st, nil
}

func (st *State) encode() (map[string]json.RawMessage, error) {
	compress := st.Settings.CompressData
	out := make(map[string]json.RawMessage, len(st.dirty))
	for key := range st.dirty {
		var (
			raw json.RawMessage
			err error
		)
		switch key {
		case KeyCategories:
			raw, err = encodeValue(st.Categories, compress)
		case KeyClips:
			raw, err = encodeValue(st.Clips, compress)
		case KeyBackups:
			raw, err = encodeValue(st.Backups, compress)
		case KeySettings:
			raw, err = encodeValue(st.Settings, false)
		case KeyVersion:
			raw, err = encodeValue(st.Version, false)
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		out[key] = raw
	}
	return out, nil
}

// mutate runs fn against the current values of keys inside one store
// transaction. Settings are always loaded because they decide compression.
// After a successful commit the touched cache entries are dropped and the
// events fn recorded are published in order.
func (m *Manager) mutate(ctx context.Context, keys []string, fn func(st *State) error) (*State, error) {
	keys = withKey(keys, KeySettings)

	var st *State
	err := m.store.Update(ctx, keys, func(current map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		var err error
		// Update may retry, so every attempt starts from a fresh state.
		st, err = m.decodeState(current, keys)
		if err != nil {
			return nil, err
		}
		if err := fn(st); err != nil {
			return nil, err
		}
		return st.encode()
	})
	if err != nil {
		return nil, err
	}

	for key := range st.dirty {
		m.dropCached(key)
	}
	for _, e := range st.events {
		m.bus.Publish(e)
	}
	return st, nil
}

func withKey(keys []string, key string) []string {
	for _, k := range keys {
		if k == key {
			return keys
		}
	}
	return append(append([]string(nil), keys...), key)
}

// load returns the decoded value of key, from cache when fresh. Concurrent
// misses for the same key share one store read. A read that overlaps a
// commit to key is returned but not cached.
func load[T any](ctx context.Context, m *Manager, key string, missing func() T) (T, error) {
	if v, ok := m.cache.Get(key); ok {
		return v.(T), nil
	}

	v, err, _ := m.loads.Do(key, func() (any, error) {
		gen := m.gens.current(key)
		values, err := m.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		raw, ok := values[key]
		if !ok {
			return missing(), nil
		}
		var out T
		if err := decodeValue(raw, &out); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		if m.gens.current(key) == gen {
			m.cache.Set(key, out)
		}
		return out, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (m *Manager) loadCategories(ctx context.Context) ([]domain.Category, error) {
	cats, err := load(ctx, m, KeyCategories, func() []domain.Category { return nil })
	return domain.CloneCategories(cats), err
}

func (m *Manager) loadClips(ctx context.Context) ([]domain.Clip, error) {
	clips, err := load(ctx, m, KeyClips, func() []domain.Clip { return nil })
	return domain.CloneClips(clips), err
}

func (m *Manager) loadBackups(ctx context.Context) ([]domain.Backup, error) {
	backups, err := load(ctx, m, KeyBackups, func() []domain.Backup { return nil })
	if err != nil {
		return nil, err
	}
	return append([]domain.Backup(nil), backups...), nil
}

func (m *Manager) loadSettings(ctx context.Context) (domain.Settings, error) {
	return load(ctx, m, KeySettings, func() domain.Settings { return domain.DefaultSettings(m.now()) })
}
