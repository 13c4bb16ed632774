package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/errors"
	"github.com/Kai-project-00/clipgo/internal/events"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		percent float64
		want    QuotaStatus
	}{
		{0, QuotaHealthy},
		{59.9, QuotaHealthy},
		{60, QuotaModerate},
		{79.9, QuotaModerate},
		{80, QuotaWarning},
		{94.9, QuotaWarning},
		{95, QuotaCritical},
		{120, QuotaCritical},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.percent); got != tt.want {
			t.Errorf("StatusFor(%v) = %q, want %q", tt.percent, got, tt.want)
		}
	}
}

func createClips(t *testing.T, m *Manager, n int) []domain.Clip {
	t.Helper()
	out := make([]domain.Clip, 0, n)
	for i := range n {
		c, err := m.CreateClip(context.Background(), testClip(fmt.Sprintf("stored clip number %d", i), int64(1_000_000+i*1000)))
		if err != nil {
			t.Fatalf("CreateClip #%d failed: %v", i, err)
		}
		out = append(out, c)
	}
	return out
}

func backupsWithReason(t *testing.T, m *Manager, reason string) []BackupInfo {
	t.Helper()
	all, err := m.ListBackups(context.Background())
	require.NoError(t, err)
	var out []BackupInfo
	for _, b := range all {
		if b.Reason == reason {
			out = append(out, b)
		}
	}
	return out
}

func TestQuota_CriticalRemovesOldestAndBacksUpExactlyThose(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	created := createClips(t, m, 60)

	var remediated []events.QuotaRemediated
	unsubscribe := events.On(m.Bus(), func(e events.QuotaRemediated) { remediated = append(remediated, e) })
	defer unsubscribe()

	store.usage.Store(DefaultQuotaBytes * 96 / 100)
	info, err := m.CheckStorageQuota(ctx)
	require.NoError(t, err)
	assert.Equal(t, QuotaCritical, info.Status)
	require.NotNil(t, info.Remediation)
	assert.True(t, info.Remediation.Compressed)
	assert.Equal(t, 50, info.Remediation.RemovedClips)
	assert.True(t, strings.HasPrefix(info.Remediation.BackupID, "cleanup_"), "backup id %q", info.Remediation.BackupID)
	require.Len(t, remediated, 1)

	clips, err := m.GetClips(ctx, ClipFilter{})
	require.NoError(t, err)
	require.Len(t, clips, 10)
	kept := make(map[string]bool)
	for _, c := range clips {
		kept[c.ID] = true
	}
	for i, c := range created {
		assert.Equal(t, i >= 50, kept[c.ID], "clip #%d kept = %v", i, kept[c.ID])
	}

	cleanup := backupsWithReason(t, m, domain.BackupQuotaCleanup)
	require.Len(t, cleanup, 1)
	backup, err := m.GetBackup(ctx, cleanup[0].ID)
	require.NoError(t, err)

	var doc CleanupBackup
	require.NoError(t, json.Unmarshal([]byte(backup.Data), &doc))
	require.Len(t, doc.DeletedClips, 50)
	for i, c := range doc.DeletedClips {
		assert.Equal(t, created[i].ID, c.ID)
	}

	settings, err := m.GetSettings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.CompressData)
}

func TestQuota_CriticalSkipsCleanupWithFewClips(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	createClips(t, m, DefaultCleanupCount)

	store.usage.Store(DefaultQuotaBytes * 99 / 100)
	info, err := m.CheckStorageQuota(ctx)
	require.NoError(t, err)
	require.NotNil(t, info.Remediation)
	assert.Zero(t, info.Remediation.RemovedClips)
	assert.Empty(t, info.Remediation.BackupID)

	clips, err := m.GetClips(ctx, ClipFilter{})
	require.NoError(t, err)
	assert.Len(t, clips, DefaultCleanupCount)
	assert.Empty(t, backupsWithReason(t, m, domain.BackupQuotaCleanup))
}

func TestQuota_WarningOnlyCompresses(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	createClips(t, m, 60)

	store.usage.Store(DefaultQuotaBytes * 85 / 100)
	info, err := m.CheckStorageQuota(ctx)
	require.NoError(t, err)
	assert.Equal(t, QuotaWarning, info.Status)
	require.NotNil(t, info.Remediation)
	assert.True(t, info.Remediation.Compressed)
	assert.Zero(t, info.Remediation.RemovedClips)

	values, err := store.Get(ctx, KeyClips)
	require.NoError(t, err)
	assert.Contains(t, string(values[KeyClips]), `"codec":"zstd"`)

	clips, err := m.GetClips(ctx, ClipFilter{})
	require.NoError(t, err)
	assert.Len(t, clips, 60)

	// Already compressed: a second check changes nothing.
	info, err = m.CheckStorageQuota(ctx)
	require.NoError(t, err)
	assert.False(t, info.Remediation.Compressed)
}

func TestQuota_HealthyDoesNothing(t *testing.T) {
	m, _, _ := newTestManager(t)

	info, err := m.CheckStorageQuota(context.Background())
	if err != nil {
		t.Fatalf("CheckStorageQuota failed: %v", err)
	}
	if info.Status != QuotaHealthy {
		t.Errorf("Status = %q, want %q", info.Status, QuotaHealthy)
	}
	if info.Remediation != nil {
		t.Errorf("Remediation = %+v, want nil", info.Remediation)
	}
	if info.Quota != DefaultQuotaBytes {
		t.Errorf("Quota = %d, want %d", info.Quota, DefaultQuotaBytes)
	}
}

func TestTransfer_ExportImportRoundTrip(t *testing.T) {
	src, _, _ := newTestManager(t)
	ctx := context.Background()

	work, err := src.CreateCategory(ctx, testCategory(t, "Work", nil), nil)
	require.NoError(t, err)
	_, err = src.CreateCategory(ctx, testCategory(t, "Research", &work.ID), nil)
	require.NoError(t, err)
	c := testClip("exported clip body", 42)
	c.Tags = []string{"go", "export"}
	c.CategoryIDs = []string{work.ID}
	_, err = src.CreateClip(ctx, c)
	require.NoError(t, err)

	data, err := src.ExportData(ctx)
	require.NoError(t, err)

	var doc ExportDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	require.NotNil(t, doc.ExportInfo)
	assert.Equal(t, ExportedBy, doc.ExportInfo.ExportedBy)
	assert.Equal(t, 2, doc.ExportInfo.Statistics.TotalCategories)
	assert.Equal(t, 1, doc.ExportInfo.Statistics.TotalClips)

	dst, _, _ := newTestManager(t)
	result, err := dst.ImportData(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Categories)
	assert.Equal(t, 1, result.Clips)
	assert.Empty(t, result.Dropped)
	assert.Empty(t, result.Repaired)
	assert.NotEmpty(t, result.SafetyBackupID)

	srcCats, err := src.GetCategories(ctx)
	require.NoError(t, err)
	dstCats, err := dst.GetCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, srcCats, dstCats)

	srcClips, err := src.GetClips(ctx, ClipFilter{})
	require.NoError(t, err)
	dstClips, err := dst.GetClips(ctx, ClipFilter{})
	require.NoError(t, err)
	assert.Equal(t, srcClips, dstClips)

	// The import was preceded by a safety snapshot of the destination.
	assert.NotEmpty(t, backupsWithReason(t, dst, domain.BackupPreImport))
}

func TestTransfer_ImportRepairsAndDrops(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	data := []byte(`{
		"categories": [
			{"id": "k1", "name": "   "},
			{"id": "k2", "name": "bad/name"},
			{"id": "k3", "name": "Fine", "color": "#abcdef"}
		],
		"clips": [
			{"id": "c1", "text": "  repaired   clip text ", "url": "https://chatgpt.com/c/1"},
			{"id": "c2", "text": ""},
			"not a clip"
		],
		"settings": {"language": "fr"}
	}`)

	result, err := m.ImportData(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Categories)
	assert.Equal(t, 1, result.Clips)
	assert.True(t, result.SettingsReset)
	assert.Len(t, result.Dropped, 3)
	assert.Contains(t, result.Repaired, "clip c1")
	assert.Contains(t, result.Repaired, "category k1")

	k1, err := m.GetCategory(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, UnnamedCategory, k1.Name)
	assert.NotEmpty(t, k1.Color)

	c1, err := m.GetClip(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "repaired clip text", c1.Text)
	assert.Equal(t, "repaired clip text", c1.Title)
	assert.Equal(t, domain.SourceChatGPT, c1.Source)
	assert.Equal(t, domain.ImportanceNormal, c1.Importance)

	settings, err := m.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.LanguageKorean, settings.Language)
}

func TestTransfer_ImportRejectsIncompleteDocuments(t *testing.T) {
	m, _, _ := newTestManager(t)

	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"array", `[]`},
		{"missing settings", `{"categories": [], "clips": []}`},
		{"null clips", `{"categories": [], "clips": null, "settings": {}}`},
		{"wrong type", `{"categories": {}, "clips": [], "settings": {}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.ImportData(context.Background(), []byte(tt.data))
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Fatalf("ImportData: err = %v, want INVALID_REQUEST", err)
			}
		})
	}

	if got := backupsWithReason(t, m, domain.BackupPreImport); len(got) != 0 {
		t.Errorf("rejected imports left %d pre_import backups, want 0", len(got))
	}
}

func TestBackups_RingKeepsNewest(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	var ids []string
	for range DefaultMaxBackups + 2 {
		b, err := m.CreateBackup(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, domain.BackupManual, b.Reason)
		ids = append(ids, b.ID)
		clock.Advance(time.Second)
	}

	backups, err := m.ListBackups(ctx)
	require.NoError(t, err)
	require.Len(t, backups, DefaultMaxBackups)
	assert.Equal(t, ids[len(ids)-1], backups[0].ID, "newest first")
	assert.Equal(t, ids[len(ids)-DefaultMaxBackups], backups[len(backups)-1].ID)

	removed, err := m.CleanOldBackups(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxBackups-2, removed)
	backups, err = m.ListBackups(ctx)
	require.NoError(t, err)
	assert.Len(t, backups, 2)

	require.NoError(t, m.DeleteBackup(ctx, backups[0].ID))
	err = m.DeleteBackup(ctx, backups[0].ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound), "err = %v", err)
}

func TestBackups_RingKeepsNewestWithEqualTimestamps(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	var last string
	for range DefaultMaxBackups + 1 {
		b, err := m.CreateBackup(ctx, domain.BackupManual)
		require.NoError(t, err)
		last = b.ID
	}
	backups, err := m.ListBackups(ctx)
	require.NoError(t, err)
	require.Len(t, backups, DefaultMaxBackups)
	assert.Equal(t, last, backups[0].ID)
}

func TestBackups_RestoreReplacesData(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	keep, err := m.CreateClip(ctx, testClip("present at backup time", 0))
	require.NoError(t, err)
	backup, err := m.CreateBackup(ctx, domain.BackupManual)
	require.NoError(t, err)
	clock.Advance(time.Minute)

	_, err = m.CreateClip(ctx, testClip("added after the backup", 0))
	require.NoError(t, err)

	result, err := m.RestoreBackup(ctx, backup.ID)
	require.NoError(t, err)
	assert.Equal(t, backup.ID, result.BackupID)
	require.NotNil(t, result.Import)
	assert.Equal(t, 1, result.Import.Clips)

	clips, err := m.GetClips(ctx, ClipFilter{})
	require.NoError(t, err)
	require.Len(t, clips, 1)
	assert.Equal(t, keep.ID, clips[0].ID)

	// The safety snapshot holds the pre-restore state and can undo the restore.
	safety, err := m.GetBackup(ctx, result.SafetyBackupID)
	require.NoError(t, err)
	assert.Equal(t, domain.BackupPreRestore, safety.Reason)
	var doc ExportDocument
	require.NoError(t, json.Unmarshal([]byte(safety.Data), &doc))
	assert.Len(t, doc.Clips, 2)
	assert.Empty(t, doc.Backups, "backups never nest")

	_, err = m.RestoreBackup(ctx, "backup_missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound), "err = %v", err)
}

func TestBackups_RestoreCleanupBackupReaddsClips(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	createClips(t, m, 12)

	removed, backupID, err := m.CleanupOldClips(ctx, 10)
	require.NoError(t, err)
	require.Len(t, removed, 10)

	result, err := m.RestoreBackup(ctx, backupID)
	require.NoError(t, err)
	assert.Equal(t, 10, result.RestoredClips)
	assert.Nil(t, result.Import)

	clips, err := m.GetClips(ctx, ClipFilter{})
	require.NoError(t, err)
	assert.Len(t, clips, 12)
}

func TestAutoBackup_FollowsInterval(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	_, err := m.CreateClip(ctx, testClip("within the interval", 0))
	require.NoError(t, err)
	assert.Len(t, backupsWithReason(t, m, domain.BackupAuto), 1)

	clock.Advance(25 * time.Hour)
	_, err = m.CreateClip(ctx, testClip("after the interval", 0))
	require.NoError(t, err)
	assert.Len(t, backupsWithReason(t, m, domain.BackupAuto), 2)

	off := false
	_, err = m.UpdateSettings(ctx, domain.SettingsPatch{BackupEnabled: &off})
	require.NoError(t, err)
	clock.Advance(25 * time.Hour)
	_, err = m.CreateClip(ctx, testClip("backups disabled", 0))
	require.NoError(t, err)
	assert.Len(t, backupsWithReason(t, m, domain.BackupAuto), 2)
}

func TestStatistics(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	a := testClip("the quick brown fox jumps over the lazy dog", 100)
	a.Tags = []string{"animals", "classic"}
	a.Source = domain.SourceClaude
	b := testClip("the quick brown fox jumps over the lazy dog again", 300)
	b.Tags = []string{"animals"}
	_, err := m.CreateClip(ctx, a)
	require.NoError(t, err)
	_, err = m.CreateClip(ctx, b)
	require.NoError(t, err)
	_, err = m.CreateClip(ctx, testClip("completely unrelated words here", 200))
	require.NoError(t, err)

	stats, err := m.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalClips)
	assert.Equal(t, 2, stats.TotalTags)
	assert.Equal(t, map[string]int{"claude": 1, "other": 2}, stats.ClipsBySource)
	require.NotNil(t, stats.OldestClip)
	require.NotNil(t, stats.NewestClip)
	assert.Equal(t, int64(100), *stats.OldestClip)
	assert.Equal(t, int64(300), *stats.NewestClip)
	assert.Equal(t, 1, stats.DuplicateClips)
	assert.Positive(t, stats.StorageUsage)
	assert.Positive(t, stats.AverageLength)

	pairs, err := m.FindDuplicateClips(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.InDelta(t, 8.0/9.0, pairs[0].Similarity, 1e-9)

	info, err := m.GetStorageInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, QuotaHealthy, info.Quota.Status)
	assert.Equal(t, 1, info.BackupCount)
	assert.NotNil(t, info.LatestBackup)
	assert.Equal(t, "10 MiB", info.QuotaHuman)
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1536, "1.5 KiB"},
		{10 * 1024 * 1024, "10 MiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestPerformAutoCleanup(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	old := clock.Now().Add(-40 * 24 * time.Hour).UnixMilli()
	var oldest []string
	for i := range 20 {
		createdAt := clock.Now().UnixMilli()
		if i < 5 {
			createdAt = old + int64(i)
		}
		c, err := m.CreateClip(ctx, testClip(fmt.Sprintf("aging clip %d", i), createdAt))
		require.NoError(t, err)
		if i < 2 {
			oldest = append(oldest, c.ID)
		}
	}

	removed, err := m.PerformAutoCleanup(ctx)
	require.NoError(t, err)
	require.Len(t, removed, 2, "a tenth of 20 clips")
	assert.Equal(t, oldest, []string{removed[0].ID, removed[1].ID})

	off := false
	_, err = m.UpdateSettings(ctx, domain.SettingsPatch{AutoCleanup: &off})
	require.NoError(t, err)
	removed, err = m.PerformAutoCleanup(ctx)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestClearAllData(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	createClips(t, m, 3)

	cleared := false
	unsubscribe := events.On(m.Bus(), func(events.DataCleared) { cleared = true })
	defer unsubscribe()

	require.NoError(t, m.ClearAllData(ctx))
	assert.True(t, cleared)

	clips, err := m.GetClips(ctx, ClipFilter{})
	require.NoError(t, err)
	assert.Empty(t, clips)
	backups, err := m.ListBackups(ctx)
	require.NoError(t, err)
	assert.Empty(t, backups)
	_, err = m.GetSettings(ctx)
	require.NoError(t, err)
}
