// Package events defines the typed change notifications published by the
// storage layer and a publish/subscribe bus to deliver them in-process.
//
// Every event kind is its own struct implementing the sealed Event
// interface, so subscribers switch on the concrete type.
package events

import (
	"encoding/json"

	"github.com/Kai-project-00/clipgo/internal/domain"
)

// Kind names an event type.
type Kind string

const (
	KindClipCreated      Kind = "clip.created"
	KindClipUpdated      Kind = "clip.updated"
	KindClipDeleted      Kind = "clip.deleted"
	KindCategoryCreated  Kind = "category.created"
	KindCategoryUpdated  Kind = "category.updated"
	KindCategoryDeleted  Kind = "category.deleted"
	KindSettingsUpdated  Kind = "settings.updated"
	KindBackupCreated    Kind = "backup.created"
	KindBackupRestored   Kind = "backup.restored"
	KindDataImported     Kind = "data.imported"
	KindDataCleared      Kind = "data.cleared"
	KindQuotaRemediated  Kind = "storage.quota_remediated"
	KindStorageChanged   Kind = "storage.changed"
	KindCacheInvalidated Kind = "cache.invalidated"
)

// Event is implemented only by the types in this package.
type Event interface {
	Kind() Kind
	isEvent()
}

// ClipCreated is published after a clip is persisted.
type ClipCreated struct {
	Clip domain.Clip `json:"clip"`
}

// ClipUpdated is published after a clip is modified.
type ClipUpdated struct {
	Clip     domain.Clip `json:"clip"`
	Previous domain.Clip `json:"previous"`
}

// ClipDeleted is published for every removed clip, including removals by
// cleanup and category cascades.
type ClipDeleted struct {
	Clip   domain.Clip `json:"clip"`
	Reason string      `json:"reason,omitempty"`
}

// CategoryCreated is published after a category is persisted.
type CategoryCreated struct {
	Category domain.Category `json:"category"`
}

// CategoryUpdated is published after a category is renamed, recoloured,
// reordered or moved.
type CategoryUpdated struct {
	Category domain.Category `json:"category"`
	Previous domain.Category `json:"previous"`
}

// CategoryDeleted is published for every removed category. Cascading deletes
// publish children before their parent.
type CategoryDeleted struct {
	Category domain.Category `json:"category"`
}

// SettingsUpdated is published after the settings record changes.
type SettingsUpdated struct {
	Settings domain.Settings `json:"settings"`
}

// BackupCreated is published after a backup is stored.
type BackupCreated struct {
	BackupID string `json:"backupId"`
	Reason   string `json:"reason"`
}

// BackupRestored is published after a backup has been imported.
type BackupRestored struct {
	BackupID       string `json:"backupId"`
	SafetyBackupID string `json:"safetyBackupId"`
}

// DataImported is published after an import replaced the data set.
type DataImported struct {
	Categories int `json:"categories"`
	Clips      int `json:"clips"`
	Dropped    int `json:"dropped"`
}

// DataCleared is published after every key was removed.
type DataCleared struct{}

// QuotaRemediated is published when a quota check took corrective action.
type QuotaRemediated struct {
	Status       string `json:"status"`
	Compressed   bool   `json:"compressed"`
	RemovedClips int    `json:"removedClips"`
	BackupID     string `json:"backupId,omitempty"`
}

// StorageChanged mirrors one key-value store change notification, whether the
// write came from this process or another one.
type StorageChanged struct {
	Key      string          `json:"key"`
	OldValue json.RawMessage `json:"oldValue,omitempty"`
	NewValue json.RawMessage `json:"newValue,omitempty"`
}

// CacheInvalidated is published when a cached collection is dropped.
type CacheInvalidated struct {
	Key string `json:"key"`
}

func (ClipCreated) Kind() Kind      { return KindClipCreated }
func (ClipUpdated) Kind() Kind      { return KindClipUpdated }
func (ClipDeleted) Kind() Kind      { return KindClipDeleted }
func (CategoryCreated) Kind() Kind  { return KindCategoryCreated }
func (CategoryUpdated) Kind() Kind  { return KindCategoryUpdated }
func (CategoryDeleted) Kind() Kind  { return KindCategoryDeleted }
func (SettingsUpdated) Kind() Kind  { return KindSettingsUpdated }
func (BackupCreated) Kind() Kind    { return KindBackupCreated }
func (BackupRestored) Kind() Kind   { return KindBackupRestored }
func (DataImported) Kind() Kind     { return KindDataImported }
func (DataCleared) Kind() Kind      { return KindDataCleared }
func (QuotaRemediated) Kind() Kind  { return KindQuotaRemediated }
func (StorageChanged) Kind() Kind   { return KindStorageChanged }
func (CacheInvalidated) Kind() Kind { return KindCacheInvalidated }

func (ClipCreated) isEvent()      {}
func (ClipUpdated) isEvent()      {}
func (ClipDeleted) isEvent()      {}
func (CategoryCreated) isEvent()  {}
func (CategoryUpdated) isEvent()  {}
func (CategoryDeleted) isEvent()  {}
func (SettingsUpdated) isEvent()  {}
func (BackupCreated) isEvent()    {}
func (BackupRestored) isEvent()   {}
func (DataImported) isEvent()     {}
func (DataCleared) isEvent()      {}
func (QuotaRemediated) isEvent()  {}
func (StorageChanged) isEvent()   {}
func (CacheInvalidated) isEvent() {}
