// Package clip manages the clip lifecycle on top of storage: derived fields,
// duplicate detection, the per-category cap, listing with filters and sort
// orders, similarity search and statistics.
package clip

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/text/language"

	"github.com/Kai-project-00/clipgo/internal/cache"
	"github.com/Kai-project-00/clipgo/internal/category"
	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/errors"
	"github.com/Kai-project-00/clipgo/internal/events"
	"github.com/Kai-project-00/clipgo/internal/id"
	"github.com/Kai-project-00/clipgo/internal/logger"
	"github.com/Kai-project-00/clipgo/internal/storage"
	"github.com/Kai-project-00/clipgo/internal/textutil"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultDuplicateThreshold = 0.85
	DefaultCacheTTL           = 3 * time.Minute
	DefaultRecentLimit        = 10
	DefaultSimilarLimit       = 5
	DefaultOldClipDays        = 30
)

// SimilarityFloor is the similarity a clip needs to be listed by
// FindSimilarClips.
const SimilarityFloor = 0.3

// Options configures a Manager.
type Options struct {
	// DuplicateThreshold is the word-set similarity above which a new text
	// counts as a duplicate of a stored one.
	DuplicateThreshold float64

	// CacheTTL is the lifetime of cached lookups. Negative disables caching.
	CacheTTL time.Duration

	Logger *slog.Logger
}

// Manager is the clip service.
type Manager struct {
	storage    *storage.Manager
	categories *category.Manager
	threshold  float64
	logger     *slog.Logger
	cache      *cache.TTL[any]

	initialized atomic.Bool
	unsubscribe func()
}

// New creates a clip manager. Both dependencies must be initialized before
// Init is called.
func New(s *storage.Manager, categories *category.Manager, opts Options) *Manager {
	if opts.DuplicateThreshold <= 0 {
		opts.DuplicateThreshold = DefaultDuplicateThreshold
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	return &Manager{
		storage:    s,
		categories: categories,
		threshold:  opts.DuplicateThreshold,
		logger:     logger.OrDiscard(opts.Logger),
		cache:      cache.New[any](opts.CacheTTL, s.Now),
	}
}

// Init subscribes to storage events.
func (m *Manager) Init(ctx context.Context) error {
	if m.initialized.Load() {
		return nil
	}
	if !m.storage.Initialized() {
		return errors.NewUninitialized("storage manager")
	}
	if m.categories == nil || !m.categories.Initialized() {
		return errors.NewUninitialized("category manager")
	}

	m.unsubscribe = m.storage.Bus().Subscribe(m.onEvent,
		events.KindClipCreated,
		events.KindClipUpdated,
		events.KindClipDeleted,
		events.KindDataImported,
		events.KindDataCleared,
		events.KindBackupRestored,
		events.KindQuotaRemediated,
		events.KindSettingsUpdated,
		events.KindStorageChanged,
		events.KindCacheInvalidated,
	)
	m.initialized.Store(true)
	m.logger.Info("clip manager initialized")
	return nil
}

// Initialized reports whether Init has completed.
func (m *Manager) Initialized() bool { return m.initialized.Load() }

// Shutdown stops listening for storage events.
func (m *Manager) Shutdown() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.initialized.Store(false)
}

func (m *Manager) onEvent(e events.Event) {
	if sc, ok := e.(events.StorageChanged); ok && sc.Key != storage.KeyClips && sc.Key != storage.KeySettings {
		return
	}
	m.cache.Clear()
}

func (m *Manager) ensureInit() error {
	if !m.initialized.Load() {
		return errors.NewUninitialized("clip manager")
	}
	return nil
}

// CreateInput contains parameters for CreateClip.
type CreateInput struct {
	Text string

	// Title is generated from the text when empty.
	Title string
	URL   string

	// Source is derived from URL when empty.
	Source      domain.Source
	Tags        []string
	CategoryIDs []string

	// Importance defaults to normal.
	Importance domain.Importance

	// Language is detected from the text when empty.
	Language string

	// SelectionLength is the length of the raw selection, when known.
	SelectionLength int
}

// CreateClip stores a new clip after filling in derived fields. It fails
// with DuplicateError when a stored clip has the same text and URL or a
// text more similar than the duplicate threshold, with NotFoundError for an
// unknown category, and with ConstraintError when a category is full.
func (m *Manager) CreateClip(ctx context.Context, in CreateInput) (domain.Clip, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Clip{}, err
	}

	c := m.build(in)
	if err := c.Validate(); err != nil {
		return domain.Clip{}, err
	}
	if err := m.checkCategories(ctx, c.CategoryIDs); err != nil {
		return domain.Clip{}, err
	}

	created, err := m.storage.CreateClip(ctx, c,
		m.duplicateGuard(c.Text, c.URL, ""),
		capGuard(c.ID, c.CategoryIDs))
	if err != nil {
		return domain.Clip{}, err
	}
	m.logger.Debug("clip created", "id", created.ID, "source", string(created.Source))
	return created, nil
}

func (m *Manager) build(in CreateInput) domain.Clip {
	text := textutil.Clean(in.Text)
	c := domain.Clip{
		ID:          id.New(),
		Text:        text,
		Title:       textutil.CollapseSpace(in.Title),
		URL:         strings.TrimSpace(in.URL),
		Source:      in.Source,
		Tags:        textutil.NormalizeTags(in.Tags),
		CategoryIDs: textutil.Dedupe(in.CategoryIDs),
		Importance:  in.Importance,
		Language:    in.Language,
		Metadata:    domain.MetadataFor(text),
	}
	c.Metadata.SelectionLength = in.SelectionLength
	if c.Title == "" {
		c.Title = textutil.GenerateTitle(text)
	}
	if c.Source == "" {
		c.Source = domain.SourceFromURL(c.URL)
	}
	if c.Importance == "" {
		c.Importance = domain.ImportanceNormal
	}
	if c.Language == "" {
		c.Language = textutil.DetectLanguage(text)
	}
	return c
}

// SelectionOptions carries the optional fields of CreateClipFromSelection.
type SelectionOptions struct {
	Tags        []string
	CategoryIDs []string
	Importance  domain.Importance
}

// CreateClipFromSelection stores text selected on the page at url. The
// source comes from the URL and auto tags are added to opts.Tags.
func (m *Manager) CreateClipFromSelection(ctx context.Context, text, url, title string, opts SelectionOptions) (domain.Clip, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Clip{}, errors.NewInvalidRequest("selected text is required")
	}
	source := domain.SourceFromURL(url)
	return m.CreateClip(ctx, CreateInput{
		Text:            text,
		Title:           title,
		URL:             url,
		Source:          source,
		Tags:            append(slices.Clone(opts.Tags), AutoTags(text, source)...),
		CategoryIDs:     opts.CategoryIDs,
		Importance:      opts.Importance,
		SelectionLength: textutil.CountChars(text),
	})
}

func (m *Manager) checkCategories(ctx context.Context, ids []string) error {
	for _, catID := range ids {
		if _, err := m.categories.GetCategory(ctx, catID); err != nil {
			return err
		}
	}
	return nil
}

// duplicateGuard rejects text that duplicates a stored clip other than
// excludeID.
func (m *Manager) duplicateGuard(text, url, excludeID string) storage.Guard {
	return func(st *storage.State) error {
		if existing, sim, ok := m.findDuplicate(st.Clips, text, url, excludeID); ok {
			return errors.NewDuplicate(existing, sim)
		}
		return nil
	}
}

func (m *Manager) findDuplicate(clips []domain.Clip, text, url, excludeID string) (string, float64, bool) {
	words := textutil.WordSet(text)
	for _, c := range clips {
		if c.ID == excludeID {
			continue
		}
		if c.Text == text && c.URL == url {
			return c.ID, 1, true
		}
		if sim := textutil.Jaccard(words, textutil.WordSet(c.Text)); sim > m.threshold {
			return c.ID, sim, true
		}
	}
	return "", 0, false
}

// capGuard rejects adding clipID to a category that already holds
// maxClipsPerCategory other clips.
func capGuard(clipID string, categoryIDs []string) storage.Guard {
	return func(st *storage.State) error {
		limit := st.Settings.MaxClipsPerCategory
		if limit <= 0 || len(categoryIDs) == 0 {
			return nil
		}
		for _, catID := range categoryIDs {
			n := 0
			for _, c := range st.Clips {
				if c.ID != clipID && c.HasCategory(catID) {
					n++
				}
			}
			if n >= limit {
				return errors.NewConstraint(
					fmt.Sprintf("category %s already holds the maximum of %d clips", catID, limit),
					map[string]any{"category_id": catID, "max_clips_per_category": limit})
			}
		}
		return nil
	}
}

// IsDuplicateClip reports whether text and url duplicate a stored clip other
// than excludeID.
func (m *Manager) IsDuplicateClip(ctx context.Context, text, url, excludeID string) (bool, error) {
	if err := m.ensureInit(); err != nil {
		return false, err
	}
	clips, err := m.all(ctx)
	if err != nil {
		return false, err
	}
	_, _, dup := m.findDuplicate(clips, textutil.Clean(text), strings.TrimSpace(url), excludeID)
	return dup, nil
}

// GetClip returns the clip with id.
func (m *Manager) GetClip(ctx context.Context, clipID string) (domain.Clip, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Clip{}, err
	}
	key := "clip_" + clipID
	if v, ok := m.cache.Get(key); ok {
		return v.(domain.Clip).Clone(), nil
	}
	c, err := m.storage.GetClip(ctx, clipID)
	if err != nil {
		return domain.Clip{}, err
	}
	m.cache.Set(key, c.Clone())
	return c, nil
}

func (m *Manager) all(ctx context.Context) ([]domain.Clip, error) {
	return m.storage.GetClips(ctx, storage.ClipFilter{})
}

// Query combines a filter with a sort order.
type Query struct {
	Filter
	Sort
}

// GetClips returns the clips matching q.Filter, ordered by q.Sort. The limit
// applies to the filtered clips in storage order, newest first, before they
// are sorted.
func (m *Manager) GetClips(ctx context.Context, q Query) ([]domain.Clip, error) {
	if err := m.ensureInit(); err != nil {
		return nil, err
	}
	key := cacheKey("clips", q)
	if v, ok := m.cache.Get(key); ok {
		return domain.CloneClips(v.([]domain.Clip)), nil
	}

	clips, err := m.all(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := m.storage.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	out := ApplySorting(ApplyFilters(clips, q.Filter), q.Sort, language.Make(settings.Language))
	m.cache.Set(key, domain.CloneClips(out))
	return out, nil
}

func cacheKey(prefix string, q Query) string {
	b, err := json.Marshal(q)
	if err != nil || string(b) == "{}" {
		return prefix
	}
	return prefix + "_" + string(b)
}

// GetClipsByCategory returns the clips filed under categoryID.
func (m *Manager) GetClipsByCategory(ctx context.Context, categoryID string) ([]domain.Clip, error) {
	return m.GetClips(ctx, Query{Filter: Filter{CategoryIDs: []string{categoryID}}})
}

// GetClipsByTags returns the clips carrying any of tags.
func (m *Manager) GetClipsByTags(ctx context.Context, tags ...string) ([]domain.Clip, error) {
	return m.GetClips(ctx, Query{Filter: Filter{Tags: textutil.NormalizeTags(tags)}})
}

// GetRecentClips returns the newest clips. A non-positive limit means
// DefaultRecentLimit.
func (m *Manager) GetRecentClips(ctx context.Context, limit int) ([]domain.Clip, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return m.GetClips(ctx, Query{
		Filter: Filter{Limit: limit},
		Sort:   Sort{Field: SortCreatedAt, Order: OrderDesc},
	})
}

// SearchClips is GetClips with q.SearchQuery set to query.
func (m *Manager) SearchClips(ctx context.Context, query string, q Query) ([]domain.Clip, error) {
	q.SearchQuery = query
	return m.GetClips(ctx, q)
}

// GetClipsInCategoryTree returns the clips filed under categoryID or any
// of its descendants.
func (m *Manager) GetClipsInCategoryTree(ctx context.Context, categoryID string) ([]domain.Clip, error) {
	if err := m.ensureInit(); err != nil {
		return nil, err
	}
	ids, err := m.categories.GetSubtreeIDs(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	return m.GetClips(ctx, Query{Filter: Filter{CategoryIDs: ids}})
}

// UpdateInput lists the fields UpdateClip may change. Nil fields are left
// alone.
type UpdateInput struct {
	Text        *string
	Title       *string
	URL         *string
	Tags        []string
	CategoryIDs []string
	Importance  *domain.Importance
	Language    *string
}

// UpdateClip changes a clip. A changed text refreshes the metadata and is
// checked against the other clips for duplicates.
func (m *Manager) UpdateClip(ctx context.Context, clipID string, in UpdateInput) (domain.Clip, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Clip{}, err
	}
	if in.CategoryIDs != nil {
		if err := m.checkCategories(ctx, in.CategoryIDs); err != nil {
			return domain.Clip{}, err
		}
	}
	return m.update(ctx, clipID, func(c *domain.Clip) {
		if in.Text != nil {
			c.Text = *in.Text
		}
		if in.Title != nil {
			c.Title = textutil.CollapseSpace(*in.Title)
		}
		if in.URL != nil {
			c.URL = strings.TrimSpace(*in.URL)
		}
		if in.Tags != nil {
			c.Tags = textutil.NormalizeTags(in.Tags)
		}
		if in.CategoryIDs != nil {
			c.CategoryIDs = textutil.Dedupe(in.CategoryIDs)
		}
		if in.Importance != nil {
			c.Importance = *in.Importance
		}
		if in.Language != nil {
			c.Language = *in.Language
		}
	})
}

// update runs change against the stored clip. Duplicates are checked only
// when the text changes, the cap only for newly added categories.
func (m *Manager) update(ctx context.Context, clipID string, change func(c *domain.Clip)) (domain.Clip, error) {
	var (
		textChanged bool
		next        domain.Clip
		added       []string
	)
	guard := func(st *storage.State) error {
		if textChanged {
			if err := m.duplicateGuard(next.Text, next.URL, clipID)(st); err != nil {
				return err
			}
		}
		return capGuard(clipID, added)(st)
	}

	return m.storage.UpdateClip(ctx, clipID, func(c *domain.Clip) error {
		before := c.Clone()
		change(c)
		c.Text = textutil.Clean(c.Text)

		textChanged = c.Text != before.Text
		if textChanged {
			selection := c.Metadata.SelectionLength
			c.Metadata = domain.MetadataFor(c.Text)
			c.Metadata.SelectionLength = selection
		}
		added = added[:0]
		for _, catID := range c.CategoryIDs {
			if !before.HasCategory(catID) {
				added = append(added, catID)
			}
		}
		next = c.Clone()
		return nil
	}, guard)
}

// AddTag adds tag to a clip. Adding a tag it already has is a no-op write.
func (m *Manager) AddTag(ctx context.Context, clipID, tag string) (domain.Clip, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Clip{}, err
	}
	return m.update(ctx, clipID, func(c *domain.Clip) {
		c.Tags = textutil.NormalizeTags(append(c.Tags, tag))
	})
}

// RemoveTag removes tag from a clip.
func (m *Manager) RemoveTag(ctx context.Context, clipID, tag string) (domain.Clip, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Clip{}, err
	}
	tag = strings.ToLower(strings.TrimSpace(tag))
	return m.update(ctx, clipID, func(c *domain.Clip) {
		c.Tags = slices.DeleteFunc(c.Tags, func(t string) bool { return t == tag })
	})
}

// AddToCategory files a clip under categoryID.
func (m *Manager) AddToCategory(ctx context.Context, clipID, categoryID string) (domain.Clip, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Clip{}, err
	}
	if err := m.checkCategories(ctx, []string{categoryID}); err != nil {
		return domain.Clip{}, err
	}
	return m.update(ctx, clipID, func(c *domain.Clip) {
		c.CategoryIDs = textutil.Dedupe(append(c.CategoryIDs, categoryID))
	})
}

// RemoveFromCategory takes a clip out of categoryID.
func (m *Manager) RemoveFromCategory(ctx context.Context, clipID, categoryID string) (domain.Clip, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Clip{}, err
	}
	return m.update(ctx, clipID, func(c *domain.Clip) {
		c.CategoryIDs = slices.DeleteFunc(c.CategoryIDs, func(id string) bool { return id == categoryID })
	})
}

// DeleteClip removes a clip. Deleting a missing or already deleted clip
// fails with NotFoundError.
func (m *Manager) DeleteClip(ctx context.Context, clipID string) error {
	if err := m.ensureInit(); err != nil {
		return err
	}
	return m.storage.DeleteClip(ctx, clipID)
}

// DeleteClipsByCategory removes every clip filed under categoryID and
// returns how many were removed.
func (m *Manager) DeleteClipsByCategory(ctx context.Context, categoryID string) (int, error) {
	clips, err := m.GetClipsByCategory(ctx, categoryID)
	if err != nil {
		return 0, err
	}
	removed, err := m.storage.DeleteClips(ctx, clipIDs(clips), "category_clear")
	if err != nil {
		return 0, err
	}
	return len(removed), nil
}

// DeleteOldClips removes clips created more than days ago and returns how
// many were removed. A non-positive days means DefaultOldClipDays.
func (m *Manager) DeleteOldClips(ctx context.Context, days int) (int, error) {
	if err := m.ensureInit(); err != nil {
		return 0, err
	}
	if days <= 0 {
		days = DefaultOldClipDays
	}
	cutoff := m.storage.Now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()

	clips, err := m.all(ctx)
	if err != nil {
		return 0, err
	}
	old := slices.DeleteFunc(clips, func(c domain.Clip) bool { return c.CreatedAt >= cutoff })
	removed, err := m.storage.DeleteClips(ctx, clipIDs(old), "age")
	if err != nil {
		return 0, err
	}
	if len(removed) > 0 {
		m.logger.Info("old clips deleted", "count", len(removed), "days", days)
	}
	return len(removed), nil
}

func clipIDs(clips []domain.Clip) []string {
	ids := make([]string, len(clips))
	for i, c := range clips {
		ids[i] = c.ID
	}
	return ids
}
