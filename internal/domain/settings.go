package domain

import (
	"time"

	"github.com/Kai-project-00/clipgo/internal/validation"
)

// SchemaVersion is the current persisted data version.
const SchemaVersion = "1.0.0"

// Settings is the singleton preferences record.
type Settings struct {
	Language string `json:"language" validate:"required,oneof=en ko"`
	Theme    string `json:"theme" validate:"required,oneof=light dark auto"`
	Version  string `json:"version" validate:"required"`

	BackupEnabled bool `json:"backupEnabled"`

	// AutoBackupInterval is in milliseconds.
	AutoBackupInterval int64 `json:"autoBackupInterval" validate:"gte=0"`

	// MaxClipsPerCategory caps clips per category; 0 disables the cap.
	MaxClipsPerCategory int `json:"maxClipsPerCategory" validate:"gte=0"`

	CompressData bool `json:"compressData"`
	AutoCleanup  bool `json:"autoCleanup"`

	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

// DefaultSettings returns the settings written on first run.
func DefaultSettings(now time.Time) Settings {
	ms := now.UnixMilli()
	return Settings{
		Language:            LanguageKorean,
		Theme:               "auto",
		Version:             SchemaVersion,
		BackupEnabled:       true,
		AutoBackupInterval:  (24 * time.Hour).Milliseconds(),
		MaxClipsPerCategory: 1000,
		CompressData:        false,
		AutoCleanup:         true,
		CreatedAt:           ms,
		UpdatedAt:           ms,
	}
}

// Validate checks the settings against their field rules.
func (s Settings) Validate() error {
	return validation.Struct("settings", s)
}

// SettingsPatch is a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	Language            *string `json:"language,omitempty"`
	Theme               *string `json:"theme,omitempty"`
	BackupEnabled       *bool   `json:"backupEnabled,omitempty"`
	AutoBackupInterval  *int64  `json:"autoBackupInterval,omitempty"`
	MaxClipsPerCategory *int    `json:"maxClipsPerCategory,omitempty"`
	CompressData        *bool   `json:"compressData,omitempty"`
	AutoCleanup         *bool   `json:"autoCleanup,omitempty"`
}

// Apply merges the patch into s.
func (p SettingsPatch) Apply(s *Settings) {
	if p.Language != nil {
		s.Language = *p.Language
	}
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.BackupEnabled != nil {
		s.BackupEnabled = *p.BackupEnabled
	}
	if p.AutoBackupInterval != nil {
		s.AutoBackupInterval = *p.AutoBackupInterval
	}
	if p.MaxClipsPerCategory != nil {
		s.MaxClipsPerCategory = *p.MaxClipsPerCategory
	}
	if p.CompressData != nil {
		s.CompressData = *p.CompressData
	}
	if p.AutoCleanup != nil {
		s.AutoCleanup = *p.AutoCleanup
	}
}

// Backup is a stored snapshot of the data set.
type Backup struct {
	ID string `json:"id"`

	// Data is a serialized export document.
	Data      string `json:"data"`
	Timestamp int64  `json:"timestamp"`
	Version   string `json:"version"`

	// Reason records why the backup was taken, e.g. "manual" or "pre_restore".
	Reason string `json:"reason,omitempty"`
}

// Backup reasons.
const (
	BackupManual       = "manual"
	BackupAuto         = "auto"
	BackupPreRestore   = "pre_restore"
	BackupPreImport    = "pre_import"
	BackupQuotaCleanup = "storage_quota_cleanup"
)
