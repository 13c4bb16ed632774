package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/errors"
	"github.com/Kai-project-00/clipgo/internal/events"
	"github.com/Kai-project-00/clipgo/internal/id"
	"github.com/Kai-project-00/clipgo/internal/textutil"
)

// ClipFilter narrows GetClips. Zero fields match everything.
type ClipFilter struct {
	// CategoryIDs matches clips in any of the categories.
	CategoryIDs []string

	// Tags matches clips carrying any of the tags.
	Tags []string

	Source domain.Source

	// SearchQuery is a case-insensitive substring of title, text or a tag.
	SearchQuery string

	// Limit caps the result after sorting newest first. Zero means no limit.
	Limit int
}

// Match reports whether c satisfies the filter.
func (f ClipFilter) Match(c domain.Clip) bool {
	if len(f.CategoryIDs) > 0 && !slices.ContainsFunc(f.CategoryIDs, c.HasCategory) {
		return false
	}
	if len(f.Tags) > 0 && !slices.ContainsFunc(f.Tags, c.HasTag) {
		return false
	}
	if f.Source != "" && c.Source != f.Source {
		return false
	}
	if q := strings.ToLower(f.SearchQuery); q != "" {
		return MatchesQuery(c, q)
	}
	return true
}

// MatchesQuery reports whether the lowercase query occurs in the clip's
// title, text or any tag.
func MatchesQuery(c domain.Clip, query string) bool {
	if strings.Contains(strings.ToLower(c.Title), query) || strings.Contains(strings.ToLower(c.Text), query) {
		return true
	}
	return slices.ContainsFunc(c.Tags, func(t string) bool {
		return strings.Contains(strings.ToLower(t), query)
	})
}

// SortNewestFirst orders clips by creation time, newest first. Ties keep
// their storage order.
func SortNewestFirst(clips []domain.Clip) {
	slices.SortStableFunc(clips, func(a, b domain.Clip) int {
		return cmp.Compare(b.CreatedAt, a.CreatedAt)
	})
}

// CreateClip validates and persists c. Text is cleaned, a missing id is
// generated, a provided CreatedAt is kept. Guards run against the current
// clips and settings before insertion.
func (m *Manager) CreateClip(ctx context.Context, c domain.Clip, guards ...Guard) (domain.Clip, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Clip{}, err
	}

	c = c.Clone()
	c.Text = textutil.Clean(c.Text)
	now := m.now().UnixMilli()
	if c.ID == "" {
		c.ID = id.New()
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.CategoryIDs == nil {
		c.CategoryIDs = []string{}
	}
	if err := c.Validate(); err != nil {
		return domain.Clip{}, err
	}

	_, err := m.mutate(ctx, []string{KeyClips}, func(st *State) error {
		if st.FindClip(c.ID) >= 0 {
			return errors.NewConstraint(fmt.Sprintf("clip id already exists: %s", c.ID), map[string]any{"id": c.ID})
		}
		if err := runGuards(st, guards); err != nil {
			return err
		}
		st.Clips = append(st.Clips, c)
		st.markDirty(KeyClips)
		st.emit(events.ClipCreated{Clip: c.Clone()})
		return nil
	})
	if err != nil {
		return domain.Clip{}, err
	}

	m.afterWrite(ctx)
	if _, err := m.CheckStorageQuota(ctx); err != nil {
		m.logger.Warn("quota check after clip creation failed", "error", err)
	}
	return c, nil
}

// GetClip returns the clip with id.
func (m *Manager) GetClip(ctx context.Context, clipID string) (domain.Clip, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Clip{}, err
	}
	clips, err := m.loadClips(ctx)
	if err != nil {
		return domain.Clip{}, err
	}
	for _, c := range clips {
		if c.ID == clipID {
			return c, nil
		}
	}
	return domain.Clip{}, errors.NewNotFound("clip", clipID)
}

// GetClips returns the clips matching f, newest first. The result is a copy;
// the cached collection is never modified.
func (m *Manager) GetClips(ctx context.Context, f ClipFilter) ([]domain.Clip, error) {
	if err := m.ensureInit(); err != nil {
		return nil, err
	}
	clips, err := m.loadClips(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Clip, 0, len(clips))
	for _, c := range clips {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	SortNewestFirst(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// UpdateClip applies fn to the stored clip and persists the result. The id
// and creation time cannot change; text is re-cleaned. Guards run after fn
// and see the state without the update applied.
func (m *Manager) UpdateClip(ctx context.Context, clipID string, fn func(*domain.Clip) error, guards ...Guard) (domain.Clip, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Clip{}, err
	}

	var updated domain.Clip
	_, err := m.mutate(ctx, []string{KeyClips}, func(st *State) error {
		i := st.FindClip(clipID)
		if i < 0 {
			return errors.NewNotFound("clip", clipID)
		}

		previous := st.Clips[i].Clone()
		next := previous.Clone()
		if err := fn(&next); err != nil {
			return err
		}
		next.ID = previous.ID
		next.CreatedAt = previous.CreatedAt
		next.Text = textutil.Clean(next.Text)
		next.UpdatedAt = m.now().UnixMilli()
		if err := next.Validate(); err != nil {
			return err
		}
		if err := runGuards(st, guards); err != nil {
			return err
		}

		st.Clips[i] = next
		st.markDirty(KeyClips)
		st.emit(events.ClipUpdated{Clip: next.Clone(), Previous: previous})
		updated = next
		return nil
	})
	if err != nil {
		return domain.Clip{}, err
	}
	m.afterWrite(ctx)
	return updated, nil
}

// DeleteClip removes the clip with id. A missing id is a NotFoundError.
func (m *Manager) DeleteClip(ctx context.Context, clipID string) error {
	if err := m.ensureInit(); err != nil {
		return err
	}

	_, err := m.mutate(ctx, []string{KeyClips}, func(st *State) error {
		i := st.FindClip(clipID)
		if i < 0 {
			return errors.NewNotFound("clip", clipID)
		}
		removed := st.Clips[i]
		st.Clips = slices.Delete(st.Clips, i, i+1)
		st.markDirty(KeyClips)
		st.emit(events.ClipDeleted{Clip: removed})
		return nil
	})
	if err != nil {
		return err
	}
	m.afterWrite(ctx)
	return nil
}

// DeleteClips removes every existing clip among ids in one write and
// returns the removed clips. Unknown ids are skipped.
func (m *Manager) DeleteClips(ctx context.Context, ids []string, reason string) ([]domain.Clip, error) {
	if err := m.ensureInit(); err != nil {
		return nil, err
	}
	removed, err := m.deleteClips(ctx, ids, reason)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		m.afterWrite(ctx)
	}
	return removed, nil
}

func (m *Manager) deleteClips(ctx context.Context, ids []string, reason string) ([]domain.Clip, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	doomed := make(map[string]bool, len(ids))
	for _, clipID := range ids {
		doomed[clipID] = true
	}

	var removed []domain.Clip
	_, err := m.mutate(ctx, []string{KeyClips}, func(st *State) error {
		removed = removeClips(st, doomed, reason)
		return nil
	})
	return removed, err
}

// removeClips drops doomed clips from st and records a ClipDeleted event
// for each.
func removeClips(st *State, doomed map[string]bool, reason string) []domain.Clip {
	var removed []domain.Clip
	kept := st.Clips[:0:0]
	for _, c := range st.Clips {
		if doomed[c.ID] {
			removed = append(removed, c)
			st.emit(events.ClipDeleted{Clip: c.Clone(), Reason: reason})
			continue
		}
		kept = append(kept, c)
	}
	if len(removed) > 0 {
		st.Clips = kept
		st.markDirty(KeyClips)
	}
	return removed
}
