package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/errors"
	"github.com/Kai-project-00/clipgo/internal/events"
	"github.com/Kai-project-00/clipgo/internal/id"
	"github.com/Kai-project-00/clipgo/internal/textutil"
)

// ExportedBy identifies documents written by this package.
const ExportedBy = "ClipGo"

// UnnamedCategory replaces a blank category name on import.
const UnnamedCategory = "Unnamed Category"

// ExportDocument is the export and import shape. ExportInfo is ignored on
// import.
type ExportDocument struct {
	Categories []domain.Category `json:"categories"`
	Clips      []domain.Clip     `json:"clips"`
	Settings   *domain.Settings  `json:"settings"`
	Backups    []domain.Backup   `json:"backups,omitempty"`
	ExportInfo *ExportInfo       `json:"exportInfo,omitempty"`
}

// ExportInfo is the metadata embedded in an export.
type ExportInfo struct {
	Version    string     `json:"version"`
	ExportedAt int64      `json:"exportedAt"`
	ExportedBy string     `json:"exportedBy"`
	Statistics Statistics `json:"statistics"`
}

// ExportData dumps the whole store, backups included, as indented JSON.
func (m *Manager) ExportData(ctx context.Context) ([]byte, error) {
	if err := m.ensureInit(); err != nil {
		return nil, err
	}
	values, err := m.store.Get(ctx, AllKeys...)
	if err != nil {
		return nil, err
	}
	st, err := m.decodeState(values, AllKeys)
	if err != nil {
		return nil, err
	}
	usage, err := m.store.BytesInUse(ctx)
	if err != nil {
		return nil, err
	}

	settings := st.Settings
	doc := ExportDocument{
		Categories: st.Categories,
		Clips:      st.Clips,
		Settings:   &settings,
		Backups:    st.Backups,
		ExportInfo: &ExportInfo{
			Version:    domain.SchemaVersion,
			ExportedAt: m.now().UnixMilli(),
			ExportedBy: ExportedBy,
			Statistics: m.computeStatistics(st.Categories, st.Clips, usage),
		},
	}
	return json.MarshalIndent(doc, "", "  ")
}

// ImportResult reports what an import accepted, repaired and dropped.
type ImportResult struct {
	Categories int `json:"categories"`
	Clips      int `json:"clips"`
	Backups    int `json:"backups"`

	// Repaired and Dropped list record descriptions such as "clip 01H...".
	Repaired []string `json:"repaired,omitempty"`
	Dropped  []string `json:"dropped,omitempty"`

	SettingsReset  bool   `json:"settingsReset,omitempty"`
	SafetyBackupID string `json:"safetyBackupId,omitempty"`
}

// ImportData replaces categories, clips and settings with those in data,
// after taking a pre_import backup. Existing backups are kept and imported
// ones are added to the ring. Records missing required fields are repaired
// where a value can be synthesized and dropped otherwise.
func (m *Manager) ImportData(ctx context.Context, data []byte) (ImportResult, error) {
	if err := m.ensureInit(); err != nil {
		return ImportResult{}, err
	}
	return m.importData(ctx, data, true)
}

// rawDocument keeps per-record JSON so one malformed record cannot fail
// the whole import.
type rawDocument struct {
	Categories []json.RawMessage `json:"categories"`
	Clips      []json.RawMessage `json:"clips"`
	Settings   json.RawMessage   `json:"settings"`
	Backups    []json.RawMessage `json:"backups"`
}

func parseImport(data []byte) (rawDocument, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return rawDocument{}, errors.NewInvalidRequest(fmt.Sprintf("import data is not a JSON object: %v", err))
	}
	for _, key := range []string{KeyCategories, KeyClips, KeySettings} {
		if v, ok := top[key]; !ok || string(v) == "null" {
			return rawDocument{}, errors.NewInvalidRequest(fmt.Sprintf("import data is missing %q", key))
		}
	}
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return rawDocument{}, errors.NewInvalidRequest(fmt.Sprintf("import data has invalid structure: %v", err))
	}
	return doc, nil
}

func (m *Manager) importData(ctx context.Context, data []byte, safetyBackup bool) (ImportResult, error) {
	doc, err := parseImport(data)
	if err != nil {
		return ImportResult{}, err
	}

	var result ImportResult
	if safetyBackup {
		b, err := m.createBackup(ctx, domain.BackupPreImport)
		if err != nil {
			return ImportResult{}, fmt.Errorf("pre-import backup: %w", err)
		}
		result.SafetyBackupID = b.ID
	}

	now := m.now()
	cats := m.repairCategories(doc.Categories, now.UnixMilli(), &result)
	clips := m.repairClips(doc.Clips, now.UnixMilli(), &result)
	settings, reset := repairSettings(doc.Settings, now)
	result.SettingsReset = reset
	imported := repairBackups(doc.Backups, &result)

	_, err = m.mutate(ctx, AllKeys, func(st *State) error {
		st.Categories = cats
		st.Clips = clips
		st.Settings = settings
		st.Version = domain.SchemaVersion

		backups := append([]domain.Backup(nil), st.Backups...)
		for _, b := range imported {
			if slices.ContainsFunc(backups, func(x domain.Backup) bool { return x.ID == b.ID }) {
				continue
			}
			backups = append(backups, b)
		}
		st.Backups = trimBackups(backups, m.maxBackups)
		st.markDirty(AllKeys...)
		st.emit(events.DataImported{Categories: len(cats), Clips: len(clips), Dropped: len(result.Dropped)})
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	m.invalidate()

	result.Categories = len(cats)
	result.Clips = len(clips)
	result.Backups = len(imported)
	for _, d := range result.Dropped {
		m.logger.Warn("import dropped record", "record", d)
	}
	m.logger.Info("data imported", "categories", result.Categories, "clips", result.Clips,
		"repaired", len(result.Repaired), "dropped", len(result.Dropped))
	return result, nil
}

func (m *Manager) repairCategories(raws []json.RawMessage, now int64, result *ImportResult) []domain.Category {
	out := make([]domain.Category, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for i, raw := range raws {
		var c domain.Category
		if err := json.Unmarshal(raw, &c); err != nil {
			result.Dropped = append(result.Dropped, fmt.Sprintf("category #%d: %v", i, err))
			continue
		}
		if c.Validate() != nil {
			repaired := false
			if c.ID == "" {
				c.ID = id.New()
				repaired = true
			}
			if textutil.CollapseSpace(c.Name) == "" {
				c.Name = UnnamedCategory
				repaired = true
			}
			if c.Color == "" {
				c.Color = domain.RandomColor()
				repaired = true
			}
			if c.Order < 0 {
				c.Order = 0
				repaired = true
			}
			if repaired {
				result.Repaired = append(result.Repaired, "category "+c.ID)
			}
		}
		if c.ID == "" {
			c.ID = id.New()
		}
		if c.CreatedAt == 0 {
			c.CreatedAt = now
		}
		if c.UpdatedAt == 0 {
			c.UpdatedAt = c.CreatedAt
		}
		if err := c.Validate(); err != nil {
			result.Dropped = append(result.Dropped, fmt.Sprintf("category %s: %v", c.ID, err))
			continue
		}
		if seen[c.ID] {
			result.Dropped = append(result.Dropped, fmt.Sprintf("category %s: duplicate id", c.ID))
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

func (m *Manager) repairClips(raws []json.RawMessage, now int64, result *ImportResult) []domain.Clip {
	out := make([]domain.Clip, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for i, raw := range raws {
		var c domain.Clip
		if err := json.Unmarshal(raw, &c); err != nil {
			result.Dropped = append(result.Dropped, fmt.Sprintf("clip #%d: %v", i, err))
			continue
		}
		c.Text = textutil.Clean(c.Text)
		idMissing := c.ID == ""
		if idMissing {
			c.ID = id.New()
		}
		c.Tags = textutil.NormalizeTags(c.Tags)
		if repairClip(&c, now) || idMissing {
			result.Repaired = append(result.Repaired, "clip "+c.ID)
		}
		if err := c.Validate(); err != nil {
			result.Dropped = append(result.Dropped, fmt.Sprintf("clip %s: %v", c.ID, err))
			continue
		}
		if seen[c.ID] {
			result.Dropped = append(result.Dropped, fmt.Sprintf("clip %s: duplicate id", c.ID))
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

// repairSettings decodes settings over the defaults so missing fields take
// default values. Invalid settings are replaced by defaults.
func repairSettings(raw json.RawMessage, now time.Time) (domain.Settings, bool) {
	defaults := domain.DefaultSettings(now)
	s := defaults
	if err := json.Unmarshal(raw, &s); err != nil {
		return defaults, true
	}
	s.Version = domain.SchemaVersion
	if s.Validate() != nil {
		return defaults, true
	}
	return s, false
}

func repairBackups(raws []json.RawMessage, result *ImportResult) []domain.Backup {
	out := make([]domain.Backup, 0, len(raws))
	for i, raw := range raws {
		var b domain.Backup
		if err := json.Unmarshal(raw, &b); err != nil || b.ID == "" || b.Data == "" {
			result.Dropped = append(result.Dropped, fmt.Sprintf("backup #%d", i))
			continue
		}
		out = append(out, b)
	}
	return out
}
