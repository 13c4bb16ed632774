package storage

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/events"
	"github.com/Kai-project-00/clipgo/internal/id"
)

// QuotaStatus is the usage tier of the store.
type QuotaStatus string

const (
	QuotaHealthy  QuotaStatus = "healthy"  // below 60%
	QuotaModerate QuotaStatus = "moderate" // below 80%
	QuotaWarning  QuotaStatus = "warning"  // below 95%
	QuotaCritical QuotaStatus = "critical" // 95% and above
)

// StatusFor maps a usage percentage to its tier.
func StatusFor(percent float64) QuotaStatus {
	switch {
	case percent >= 95:
		return QuotaCritical
	case percent >= 80:
		return QuotaWarning
	case percent >= 60:
		return QuotaModerate
	default:
		return QuotaHealthy
	}
}

// QuotaInfo reports storage usage against the quota.
type QuotaInfo struct {
	Usage        int64       `json:"usage"`
	Quota        int64       `json:"quota"`
	Available    int64       `json:"available"`
	UsagePercent float64     `json:"usagePercent"`
	Status       QuotaStatus `json:"status"`

	// Remediation is set when the check took corrective action.
	Remediation *Remediation `json:"remediation,omitempty"`
}

// Remediation describes what a quota check did about high usage.
type Remediation struct {
	Compressed   bool   `json:"compressed"`
	RemovedClips int    `json:"removedClips"`
	BackupID     string `json:"backupId,omitempty"`
}

// CleanupBackup is the document stored in a storage_quota_cleanup backup:
// exactly the clips that were removed.
type CleanupBackup struct {
	DeletedClips []domain.Clip `json:"deletedClips"`
	DeletedAt    int64         `json:"deletedAt"`
	Reason       string        `json:"reason"`
}

func (m *Manager) quotaInfo(ctx context.Context) (QuotaInfo, error) {
	usage, err := m.store.BytesInUse(ctx)
	if err != nil {
		return QuotaInfo{}, err
	}
	percent := float64(usage) / float64(m.quotaBytes) * 100
	return QuotaInfo{
		Usage:        usage,
		Quota:        m.quotaBytes,
		Available:    m.quotaBytes - usage,
		UsagePercent: percent,
		Status:       StatusFor(percent),
	}, nil
}

// CheckStorageQuota measures usage and remediates at the warning and
// critical tiers. Warning turns on compression; critical additionally
// removes the oldest clips after backing up exactly those clips.
// Remediation failures are logged and do not fail the check.
func (m *Manager) CheckStorageQuota(ctx context.Context) (QuotaInfo, error) {
	if err := m.ensureInit(); err != nil {
		return QuotaInfo{}, err
	}
	info, err := m.quotaInfo(ctx)
	if err != nil {
		return QuotaInfo{}, err
	}
	if info.Status != QuotaWarning && info.Status != QuotaCritical {
		return info, nil
	}

	m.logger.Warn("storage quota high", "status", string(info.Status), "percent", fmt.Sprintf("%.1f", info.UsagePercent))
	rem, err := m.remediate(ctx, info.Status)
	if err != nil {
		m.logger.Error("quota remediation failed", "status", string(info.Status), "error", err)
		return info, nil
	}
	info.Remediation = &rem
	m.bus.Publish(events.QuotaRemediated{
		Status:       string(info.Status),
		Compressed:   rem.Compressed,
		RemovedClips: rem.RemovedClips,
		BackupID:     rem.BackupID,
	})
	return info, nil
}

func (m *Manager) remediate(ctx context.Context, status QuotaStatus) (Remediation, error) {
	var rem Remediation

	compressed, err := m.enableCompression(ctx)
	if err != nil {
		return rem, fmt.Errorf("enable compression: %w", err)
	}
	rem.Compressed = compressed

	if status == QuotaCritical {
		removed, backupID, err := m.CleanupOldClips(ctx, m.cleanupCount)
		if err != nil {
			return rem, fmt.Errorf("cleanup old clips: %w", err)
		}
		rem.RemovedClips = len(removed)
		rem.BackupID = backupID
	}
	return rem, nil
}

// enableCompression turns on compress-on-write and rewrites the collections.
// It reports whether compression was newly enabled.
func (m *Manager) enableCompression(ctx context.Context) (bool, error) {
	changed := false
	_, err := m.mutate(ctx, []string{KeyCategories, KeyClips, KeyBackups}, func(st *State) error {
		changed = !st.Settings.CompressData
		if !changed {
			return nil
		}
		st.Settings.CompressData = true
		st.Settings.UpdatedAt = m.now().UnixMilli()
		st.markDirty(KeySettings, KeyCategories, KeyClips, KeyBackups)
		st.emit(events.SettingsUpdated{Settings: st.Settings})
		return nil
	})
	if err == nil && changed {
		m.logger.Info("compression enabled to relieve storage quota")
	}
	return changed, err
}

// CleanupOldClips removes the count oldest clips and, in the same write,
// stores a backup holding exactly those clips. Nothing happens when the
// store holds count clips or fewer.
func (m *Manager) CleanupOldClips(ctx context.Context, count int) ([]domain.Clip, string, error) {
	if err := m.ensureInit(); err != nil {
		return nil, "", err
	}
	if count <= 0 {
		return nil, "", nil
	}
	backupID, err := id.Prefixed("cleanup")
	if err != nil {
		return nil, "", err
	}

	var removed []domain.Clip
	_, err = m.mutate(ctx, []string{KeyClips, KeyBackups}, func(st *State) error {
		removed = nil
		if len(st.Clips) <= count {
			return nil
		}

		oldest := slices.Clone(st.Clips)
		slices.SortStableFunc(oldest, func(a, b domain.Clip) int { return cmp.Compare(a.CreatedAt, b.CreatedAt) })
		doomed := make(map[string]bool, count)
		for _, c := range oldest[:count] {
			doomed[c.ID] = true
		}

		now := m.now().UnixMilli()
		data, err := json.Marshal(CleanupBackup{
			DeletedClips: domain.CloneClips(oldest[:count]),
			DeletedAt:    now,
			Reason:       domain.BackupQuotaCleanup,
		})
		if err != nil {
			return err
		}
		m.pushBackup(st, domain.Backup{
			ID:        backupID,
			Data:      string(data),
			Timestamp: now,
			Version:   domain.SchemaVersion,
			Reason:    domain.BackupQuotaCleanup,
		})

		removed = removeClips(st, doomed, domain.BackupQuotaCleanup)
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	if len(removed) == 0 {
		return nil, "", nil
	}
	m.logger.Warn("removed oldest clips to relieve storage quota", "count", len(removed), "backup", backupID)
	return removed, backupID, nil
}
