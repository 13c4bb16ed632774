package storage

import (
	"context"

	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/events"
)

// GetSettings returns the settings record, or defaults if none is stored.
func (m *Manager) GetSettings(ctx context.Context) (domain.Settings, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Settings{}, err
	}
	return m.loadSettings(ctx)
}

// UpdateSettings merges patch into the stored settings. Turning compression
// on or off rewrites the collections in the new encoding.
func (m *Manager) UpdateSettings(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Settings{}, err
	}

	var updated domain.Settings
	_, err := m.mutate(ctx, []string{KeyCategories, KeyClips, KeyBackups}, func(st *State) error {
		next := st.Settings
		patch.Apply(&next)
		next.UpdatedAt = m.now().UnixMilli()
		if err := next.Validate(); err != nil {
			return err
		}
		if next.CompressData != st.Settings.CompressData {
			st.markDirty(KeyCategories, KeyClips, KeyBackups)
		}
		st.Settings = next
		st.markDirty(KeySettings)
		st.emit(events.SettingsUpdated{Settings: next})
		updated = next
		return nil
	})
	if err != nil {
		return domain.Settings{}, err
	}
	m.afterWrite(ctx)
	return updated, nil
}
