package storage

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Kai-project-00/clipgo/internal/cache"
	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/events"
	"github.com/Kai-project-00/clipgo/internal/textutil"
)

// Maintenance tuning.
const (
	DuplicateScanThreshold = 0.8
	AutoCleanupAge         = 30 * 24 * time.Hour
	AutoCleanupFraction    = 0.1
)

// Statistics summarises the stored data set.
type Statistics struct {
	TotalCategories int            `json:"totalCategories"`
	TotalClips      int            `json:"totalClips"`
	TotalTags       int            `json:"totalTags"`
	ClipsBySource   map[string]int `json:"clipsBySource"`
	StorageUsage    int64          `json:"storageUsage"`
	OldestClip      *int64         `json:"oldestClip,omitempty"`
	NewestClip      *int64         `json:"newestClip,omitempty"`
	DuplicateClips  int            `json:"duplicateClips"`
	AverageLength   int            `json:"averageClipLength"`

	// CompressionRatio is compressed/plain size of the clip collection.
	CompressionRatio float64 `json:"compressionRatio"`
	PotentialSavings int64   `json:"potentialSavings"`
}

// DuplicatePair is two clips whose texts are similar.
type DuplicatePair struct {
	First      string  `json:"first"`
	Second     string  `json:"second"`
	Similarity float64 `json:"similarity"`
}

func (m *Manager) computeStatistics(cats []domain.Category, clips []domain.Clip, usage int64) Statistics {
	stats := Statistics{
		TotalCategories: len(cats),
		TotalClips:      len(clips),
		ClipsBySource:   make(map[string]int),
		StorageUsage:    usage,
	}

	tags := make(map[string]struct{})
	totalLen := 0
	for _, c := range clips {
		stats.ClipsBySource[string(c.Source)]++
		for _, t := range c.Tags {
			tags[t] = struct{}{}
		}
		totalLen += textutil.CountChars(c.Text)
		created := c.CreatedAt
		if stats.OldestClip == nil || created < *stats.OldestClip {
			stats.OldestClip = &created
		}
		if stats.NewestClip == nil || created > *stats.NewestClip {
			stats.NewestClip = &created
		}
	}
	stats.TotalTags = len(tags)
	if len(clips) > 0 {
		stats.AverageLength = totalLen / len(clips)
	}
	stats.DuplicateClips = len(findDuplicates(clips, DuplicateScanThreshold))

	if len(clips) > 0 {
		plain, compressed, err := compressedSize(clips)
		if err != nil {
			m.logger.Debug("compression estimate failed", "error", err)
		} else if plain > 0 {
			stats.CompressionRatio = float64(compressed) / float64(plain)
			stats.PotentialSavings = int64(max(plain-compressed, 0))
		}
	}
	return stats
}

// findDuplicates compares every pair of clips and returns those whose word
// sets overlap above threshold.
func findDuplicates(clips []domain.Clip, threshold float64) []DuplicatePair {
	sets := make([]map[string]struct{}, len(clips))
	for i, c := range clips {
		sets[i] = textutil.WordSet(c.Text)
	}
	var pairs []DuplicatePair
	for i := range clips {
		for j := i + 1; j < len(clips); j++ {
			if s := textutil.Jaccard(sets[i], sets[j]); s > threshold {
				pairs = append(pairs, DuplicatePair{First: clips[i].ID, Second: clips[j].ID, Similarity: s})
			}
		}
	}
	return pairs
}

// FindDuplicateClips returns every pair of clips more similar than
// threshold. A non-positive threshold uses DuplicateScanThreshold.
func (m *Manager) FindDuplicateClips(ctx context.Context, threshold float64) ([]DuplicatePair, error) {
	if err := m.ensureInit(); err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = DuplicateScanThreshold
	}
	clips, err := m.loadClips(ctx)
	if err != nil {
		return nil, err
	}
	return findDuplicates(clips, threshold), nil
}

// GetStatistics computes statistics over the current data set.
func (m *Manager) GetStatistics(ctx context.Context) (Statistics, error) {
	if err := m.ensureInit(); err != nil {
		return Statistics{}, err
	}
	cats, err := m.loadCategories(ctx)
	if err != nil {
		return Statistics{}, err
	}
	clips, err := m.loadClips(ctx)
	if err != nil {
		return Statistics{}, err
	}
	usage, err := m.store.BytesInUse(ctx)
	if err != nil {
		return Statistics{}, err
	}
	return m.computeStatistics(cats, clips, usage), nil
}

// StorageInfo is the full storage report shown by the CLI and web UI.
type StorageInfo struct {
	Quota      QuotaInfo  `json:"quota"`
	Statistics Statistics `json:"statistics"`

	BackupCount  int    `json:"backupCount"`
	LatestBackup *int64 `json:"latestBackup,omitempty"`

	Cache        cache.Stats `json:"cache"`
	CacheHitRate float64     `json:"cacheHitRate"`

	// Human-readable sizes.
	UsageHuman string `json:"usageHuman"`
	QuotaHuman string `json:"quotaHuman"`
}

// GetStorageInfo reports usage, statistics, backups and cache counters. It
// never remediates.
func (m *Manager) GetStorageInfo(ctx context.Context) (StorageInfo, error) {
	if err := m.ensureInit(); err != nil {
		return StorageInfo{}, err
	}
	quota, err := m.quotaInfo(ctx)
	if err != nil {
		return StorageInfo{}, err
	}
	stats, err := m.GetStatistics(ctx)
	if err != nil {
		return StorageInfo{}, err
	}
	backups, err := m.loadBackups(ctx)
	if err != nil {
		return StorageInfo{}, err
	}

	info := StorageInfo{
		Quota:       quota,
		Statistics:  stats,
		BackupCount: len(backups),
		UsageHuman:  FormatBytes(quota.Usage),
		QuotaHuman:  FormatBytes(quota.Quota),
	}
	for _, b := range backups {
		ts := b.Timestamp
		if info.LatestBackup == nil || ts > *info.LatestBackup {
			info.LatestBackup = &ts
		}
	}
	info.Cache = m.cache.Stats()
	info.CacheHitRate = info.Cache.HitRate()
	return info, nil
}

// FormatBytes renders n in IEC units, e.g. "1.5 KiB".
func FormatBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

// PerformAutoCleanup removes up to a tenth of all clips, oldest first, among
// those older than AutoCleanupAge. It does nothing unless autoCleanup is on.
func (m *Manager) PerformAutoCleanup(ctx context.Context) ([]domain.Clip, error) {
	if err := m.ensureInit(); err != nil {
		return nil, err
	}
	settings, err := m.loadSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.AutoCleanup {
		return nil, nil
	}

	cutoff := m.now().Add(-AutoCleanupAge).UnixMilli()
	var removed []domain.Clip
	_, err = m.mutate(ctx, []string{KeyClips}, func(st *State) error {
		removed = nil
		limit := int(float64(len(st.Clips)) * AutoCleanupFraction)
		if limit == 0 {
			return nil
		}
		var old []domain.Clip
		for _, c := range st.Clips {
			if c.CreatedAt < cutoff {
				old = append(old, c)
			}
		}
		slices.SortStableFunc(old, func(a, b domain.Clip) int { return cmp.Compare(a.CreatedAt, b.CreatedAt) })
		if len(old) > limit {
			old = old[:limit]
		}
		doomed := make(map[string]bool, len(old))
		for _, c := range old {
			doomed[c.ID] = true
		}
		removed = removeClips(st, doomed, "auto_cleanup")
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		m.logger.Info("auto cleanup removed old clips", "count", len(removed))
	}
	return removed, nil
}

// ClearAllData removes every key and reinitializes the store with defaults.
func (m *Manager) ClearAllData(ctx context.Context) error {
	if err := m.ensureInit(); err != nil {
		return err
	}
	if err := m.store.Clear(ctx); err != nil {
		return err
	}
	m.invalidate()
	if err := m.initializeStorage(ctx); err != nil {
		return err
	}
	m.bus.Publish(events.DataCleared{})
	m.logger.Warn("all data cleared")
	return nil
}
