package storage

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/errors"
	"github.com/Kai-project-00/clipgo/internal/events"
	"github.com/Kai-project-00/clipgo/internal/id"
)

// BackupInfo describes a stored backup without its payload.
type BackupInfo struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Version   string `json:"version"`
	Reason    string `json:"reason,omitempty"`
	Size      int    `json:"size"`
}

// InfoOf summarizes b without its data.
func InfoOf(b domain.Backup) BackupInfo {
	return BackupInfo{ID: b.ID, Timestamp: b.Timestamp, Version: b.Version, Reason: b.Reason, Size: len(b.Data)}
}

// sortBackupsNewestFirst orders backups by timestamp, newest first. Among
// equal timestamps the one added last comes first.
func sortBackupsNewestFirst(backups []domain.Backup) {
	sortBackupsOldestFirst(backups)
	slices.Reverse(backups)
}

func sortBackupsOldestFirst(backups []domain.Backup) {
	slices.SortStableFunc(backups, func(a, b domain.Backup) int { return cmp.Compare(a.Timestamp, b.Timestamp) })
}

// pushBackup adds b to the ring, evicting the oldest beyond maxBackups.
func (m *Manager) pushBackup(st *State, b domain.Backup) {
	st.Backups = append(st.Backups, b)
	st.Backups = trimBackups(st.Backups, m.maxBackups)
	st.markDirty(KeyBackups)
	st.emit(events.BackupCreated{BackupID: b.ID, Reason: b.Reason})
}

// trimBackups keeps the keep most recent backups, stored oldest first.
func trimBackups(backups []domain.Backup, keep int) []domain.Backup {
	sortBackupsOldestFirst(backups)
	if keep >= 0 && len(backups) > keep {
		backups = backups[len(backups)-keep:]
	}
	return backups
}

// snapshotDocument builds the export document a backup embeds. Backups
// themselves are left out so backups never nest.
func (m *Manager) snapshotDocument(st *State) ExportDocument {
	settings := st.Settings
	return ExportDocument{
		Categories: domain.CloneCategories(st.Categories),
		Clips:      domain.CloneClips(st.Clips),
		Settings:   &settings,
		ExportInfo: &ExportInfo{
			Version:    domain.SchemaVersion,
			ExportedAt: m.now().UnixMilli(),
			ExportedBy: ExportedBy,
			Statistics: m.computeStatistics(st.Categories, st.Clips, 0),
		},
	}
}

// CreateBackup snapshots categories, clips and settings into the backup ring.
func (m *Manager) CreateBackup(ctx context.Context, reason string) (domain.Backup, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Backup{}, err
	}
	if reason == "" {
		reason = domain.BackupManual
	}
	return m.createBackup(ctx, reason)
}

func (m *Manager) createBackup(ctx context.Context, reason string) (domain.Backup, error) {
	backupID, err := id.Prefixed("backup")
	if err != nil {
		return domain.Backup{}, errors.NewInternal(err)
	}

	var backup domain.Backup
	_, err = m.mutate(ctx, []string{KeyCategories, KeyClips, KeyBackups}, func(st *State) error {
		data, err := json.Marshal(m.snapshotDocument(st))
		if err != nil {
			return err
		}
		backup = domain.Backup{
			ID:        backupID,
			Data:      string(data),
			Timestamp: m.now().UnixMilli(),
			Version:   domain.SchemaVersion,
			Reason:    reason,
		}
		m.pushBackup(st, backup)
		return nil
	})
	if err != nil {
		return domain.Backup{}, err
	}
	m.logger.Debug("backup created", "id", backup.ID, "reason", reason)
	return backup, nil
}

// ListBackups returns backup descriptions, newest first.
func (m *Manager) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	if err := m.ensureInit(); err != nil {
		return nil, err
	}
	backups, err := m.loadBackups(ctx)
	if err != nil {
		return nil, err
	}
	sortBackupsNewestFirst(backups)
	out := make([]BackupInfo, 0, len(backups))
	for _, b := range backups {
		out = append(out, InfoOf(b))
	}
	return out, nil
}

// GetBackup returns the backup with id, payload included.
func (m *Manager) GetBackup(ctx context.Context, backupID string) (domain.Backup, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Backup{}, err
	}
	backups, err := m.loadBackups(ctx)
	if err != nil {
		return domain.Backup{}, err
	}
	for _, b := range backups {
		if b.ID == backupID {
			return b, nil
		}
	}
	return domain.Backup{}, errors.NewNotFound("backup", backupID)
}

// DeleteBackup removes the backup with id.
func (m *Manager) DeleteBackup(ctx context.Context, backupID string) error {
	if err := m.ensureInit(); err != nil {
		return err
	}
	_, err := m.mutate(ctx, []string{KeyBackups}, func(st *State) error {
		i := slices.IndexFunc(st.Backups, func(b domain.Backup) bool { return b.ID == backupID })
		if i < 0 {
			return errors.NewNotFound("backup", backupID)
		}
		st.Backups = slices.Delete(st.Backups, i, i+1)
		st.markDirty(KeyBackups)
		return nil
	})
	return err
}

// CleanOldBackups keeps only the keep most recent backups and returns how
// many were removed.
func (m *Manager) CleanOldBackups(ctx context.Context, keep int) (int, error) {
	if err := m.ensureInit(); err != nil {
		return 0, err
	}
	if keep < 0 {
		return 0, errors.NewInvalidRequest("keep must not be negative")
	}
	removed := 0
	_, err := m.mutate(ctx, []string{KeyBackups}, func(st *State) error {
		removed = 0
		if len(st.Backups) <= keep {
			return nil
		}
		removed = len(st.Backups) - keep
		st.Backups = trimBackups(st.Backups, keep)
		st.markDirty(KeyBackups)
		return nil
	})
	return removed, err
}

// RestoreResult reports a restore.
type RestoreResult struct {
	BackupID       string        `json:"backupId"`
	RestoredFrom   int64         `json:"restoredFrom"`
	SafetyBackupID string        `json:"safetyBackupId"`
	Import         *ImportResult `json:"import,omitempty"`

	// RestoredClips counts clips put back from a quota cleanup backup.
	RestoredClips int `json:"restoredClips,omitempty"`
}

// RestoreBackup first snapshots the current data (pre_restore), then
// imports the chosen backup. A storage_quota_cleanup backup holds only the
// clips it removed; restoring it adds those clips back without touching
// anything else.
func (m *Manager) RestoreBackup(ctx context.Context, backupID string) (RestoreResult, error) {
	if err := m.ensureInit(); err != nil {
		return RestoreResult{}, err
	}
	backup, err := m.GetBackup(ctx, backupID)
	if err != nil {
		return RestoreResult{}, err
	}

	safety, err := m.createBackup(ctx, domain.BackupPreRestore)
	if err != nil {
		return RestoreResult{}, fmt.Errorf("pre-restore backup: %w", err)
	}
	result := RestoreResult{BackupID: backup.ID, RestoredFrom: backup.Timestamp, SafetyBackupID: safety.ID}

	if backup.Reason == domain.BackupQuotaCleanup {
		n, err := m.restoreCleanup(ctx, backup)
		if err != nil {
			return RestoreResult{}, err
		}
		result.RestoredClips = n
	} else {
		imported, err := m.importData(ctx, []byte(backup.Data), false)
		if err != nil {
			return RestoreResult{}, err
		}
		result.Import = &imported
	}

	m.bus.Publish(events.BackupRestored{BackupID: backup.ID, SafetyBackupID: safety.ID})
	m.logger.Info("backup restored", "id", backup.ID, "safety_backup", safety.ID)
	return result, nil
}

func (m *Manager) restoreCleanup(ctx context.Context, backup domain.Backup) (int, error) {
	var doc CleanupBackup
	if err := json.Unmarshal([]byte(backup.Data), &doc); err != nil {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("backup %s is corrupt: %v", backup.ID, err))
	}

	restored := 0
	_, err := m.mutate(ctx, []string{KeyClips}, func(st *State) error {
		restored = 0
		for _, c := range doc.DeletedClips {
			if st.FindClip(c.ID) >= 0 {
				continue
			}
			st.Clips = append(st.Clips, c.Clone())
			st.emit(events.ClipCreated{Clip: c.Clone()})
			restored++
		}
		if restored > 0 {
			st.markDirty(KeyClips)
		}
		return nil
	})
	return restored, err
}

// autoBackup creates a backup when backups are enabled and the newest one
// is older than the configured interval. Failures are logged.
func (m *Manager) autoBackup(ctx context.Context) {
	settings, err := m.loadSettings(ctx)
	if err != nil {
		m.logger.Warn("auto backup skipped", "error", err)
		return
	}
	if !settings.BackupEnabled {
		return
	}
	backups, err := m.loadBackups(ctx)
	if err != nil {
		m.logger.Warn("auto backup skipped", "error", err)
		return
	}

	var newest int64
	for _, b := range backups {
		newest = max(newest, b.Timestamp)
	}
	if len(backups) > 0 && m.now().UnixMilli()-newest <= settings.AutoBackupInterval {
		return
	}
	if _, err := m.createBackup(ctx, domain.BackupAuto); err != nil {
		m.logger.Warn("auto backup failed", "error", err)
		return
	}
	m.logger.Info("auto backup created")
}

// afterWrite runs the lazy maintenance that follows a mutating call.
func (m *Manager) afterWrite(ctx context.Context) {
	m.autoBackup(ctx)
}
