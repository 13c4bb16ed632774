// Package kv is the key-value store the storage layer persists to.
//
// A Store holds JSON documents under string keys. Besides get, set, remove
// and clear it offers Update, an atomic read-modify-write over a set of keys,
// and OnChanged, which reports every committed change to subscribers.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kv: store is closed")

// Change describes one key mutated by a committed write.
// OldValue is nil when the key was created; NewValue is nil when it was removed.
type Change struct {
	Key      string          `json:"key"`
	OldValue json.RawMessage `json:"oldValue,omitempty"`
	NewValue json.RawMessage `json:"newValue,omitempty"`
}

// Listener receives the changes of one committed write.
type Listener func([]Change)

// UpdateFunc receives the current values of the requested keys (absent keys
// are missing from the map) and returns the values to write. A nil value
// removes the key; keys not in the returned map are left untouched.
// Returning an error aborts the update without writing.
type UpdateFunc func(current map[string]json.RawMessage) (map[string]json.RawMessage, error)

// Store is the contract shared by the SQLite and Badger backends.
type Store interface {
	// Get returns the values of keys that exist. With no keys it returns everything.
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)

	// Set writes every item in one atomic step.
	Set(ctx context.Context, items map[string]json.RawMessage) error

	// Remove deletes keys. Missing keys are ignored.
	Remove(ctx context.Context, keys ...string) error

	// Clear deletes every key.
	Clear(ctx context.Context) error

	// Update runs fn against the current values of keys and commits its result
	// atomically with respect to other writers.
	Update(ctx context.Context, keys []string, fn UpdateFunc) error

	// BytesInUse reports len(key)+len(value) summed over keys, or over the
	// whole store when no keys are given.
	BytesInUse(ctx context.Context, keys ...string) (int64, error)

	// OnChanged registers l for every committed change, including this
	// process's own writes. Delivery is asynchronous and in commit order.
	OnChanged(l Listener) (cancel func())

	// Close releases the store. Pending notifications are delivered first.
	Close() error
}

// diff computes the changes between old and next, where next uses nil values
// for removals. Unchanged values produce no Change.
func diff(old, next map[string]json.RawMessage) []Change {
	changes := make([]Change, 0, len(next))
	for _, key := range sortedKeys(next) {
		newValue := next[key]
		oldValue, existed := old[key]
		switch {
		case newValue == nil && !existed:
			continue
		case newValue != nil && existed && string(oldValue) == string(newValue):
			continue
		}
		changes = append(changes, Change{Key: key, OldValue: oldValue, NewValue: newValue})
	}
	return changes
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// setAll adapts Set to an UpdateFunc.
func setAll(items map[string]json.RawMessage) UpdateFunc {
	return func(map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		return items, nil
	}
}

// removeAll adapts Remove to an UpdateFunc.
func removeAll(keys []string) UpdateFunc {
	return func(map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		next := make(map[string]json.RawMessage, len(keys))
		for _, k := range keys {
			next[k] = nil
		}
		return next, nil
	}
}
