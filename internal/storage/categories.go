package storage

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/errors"
	"github.com/Kai-project-00/clipgo/internal/events"
	"github.com/Kai-project-00/clipgo/internal/id"
	"github.com/Kai-project-00/clipgo/internal/textutil"
)

// CategoryFunc adjusts a category against the state it is about to be
// written into. A non-nil error aborts the write.
type CategoryFunc func(st *State, c *domain.Category) error

// CreateCategory validates and persists c. A missing id is generated and the
// timestamps are stamped. prepare, when set, runs inside the write and sees
// the categories before insertion; the result is validated again.
func (m *Manager) CreateCategory(ctx context.Context, c domain.Category, prepare CategoryFunc) (domain.Category, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Category{}, err
	}

	c = c.Clone()
	now := m.now().UnixMilli()
	if c.ID == "" {
		c.ID = id.New()
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if err := c.Validate(); err != nil {
		return domain.Category{}, err
	}

	var created domain.Category
	_, err := m.mutate(ctx, []string{KeyCategories}, func(st *State) error {
		next := c.Clone()
		if st.FindCategory(next.ID) >= 0 {
			return errors.NewConstraint(fmt.Sprintf("category id already exists: %s", next.ID), map[string]any{"id": next.ID})
		}
		if prepare != nil {
			if err := prepare(st, &next); err != nil {
				return err
			}
			next.ID = c.ID
			if err := next.Validate(); err != nil {
				return err
			}
		}
		st.Categories = append(st.Categories, next)
		st.markDirty(KeyCategories)
		st.emit(events.CategoryCreated{Category: next.Clone()})
		created = next
		return nil
	})
	if err != nil {
		return domain.Category{}, err
	}
	m.afterWrite(ctx)
	return created, nil
}

// GetCategory returns the category with id.
func (m *Manager) GetCategory(ctx context.Context, categoryID string) (domain.Category, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Category{}, err
	}
	cats, err := m.loadCategories(ctx)
	if err != nil {
		return domain.Category{}, err
	}
	for _, c := range cats {
		if c.ID == categoryID {
			return c, nil
		}
	}
	return domain.Category{}, errors.NewNotFound("category", categoryID)
}

// GetCategories returns every category in storage order. The slice is a copy.
func (m *Manager) GetCategories(ctx context.Context) ([]domain.Category, error) {
	if err := m.ensureInit(); err != nil {
		return nil, err
	}
	cats, err := m.loadCategories(ctx)
	if cats == nil && err == nil {
		cats = []domain.Category{}
	}
	return cats, err
}

// UpdateCategory applies fn to the stored category and persists the result.
// fn sees the state with the category unchanged. The id and creation time
// cannot change.
func (m *Manager) UpdateCategory(ctx context.Context, categoryID string, fn CategoryFunc) (domain.Category, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Category{}, err
	}

	var updated domain.Category
	_, err := m.mutate(ctx, []string{KeyCategories}, func(st *State) error {
		i := st.FindCategory(categoryID)
		if i < 0 {
			return errors.NewNotFound("category", categoryID)
		}

		previous := st.Categories[i].Clone()
		next := previous.Clone()
		if err := fn(st, &next); err != nil {
			return err
		}
		next.ID = previous.ID
		next.CreatedAt = previous.CreatedAt
		next.UpdatedAt = m.now().UnixMilli()
		if err := next.Validate(); err != nil {
			return err
		}

		st.Categories[i] = next
		st.markDirty(KeyCategories)
		st.emit(events.CategoryUpdated{Category: next.Clone(), Previous: previous})
		updated = next
		return nil
	})
	if err != nil {
		return domain.Category{}, err
	}
	m.afterWrite(ctx)
	return updated, nil
}

// SetCategoryOrders assigns order values to several categories at once.
// Unknown ids fail the whole call with NotFoundError.
func (m *Manager) SetCategoryOrders(ctx context.Context, orders map[string]int, guards ...Guard) ([]domain.Category, error) {
	if err := m.ensureInit(); err != nil {
		return nil, err
	}

	var changed []domain.Category
	_, err := m.mutate(ctx, []string{KeyCategories}, func(st *State) error {
		changed = nil
		if err := runGuards(st, guards); err != nil {
			return err
		}
		now := m.now().UnixMilli()
		for _, catID := range slices.Sorted(maps.Keys(orders)) {
			order := orders[catID]
			i := st.FindCategory(catID)
			if i < 0 {
				return errors.NewNotFound("category", catID)
			}
			if st.Categories[i].Order == order {
				continue
			}
			previous := st.Categories[i].Clone()
			st.Categories[i].Order = order
			st.Categories[i].UpdatedAt = now
			if err := st.Categories[i].Validate(); err != nil {
				return err
			}
			st.emit(events.CategoryUpdated{Category: st.Categories[i].Clone(), Previous: previous})
			changed = append(changed, st.Categories[i].Clone())
		}
		if len(changed) > 0 {
			st.markDirty(KeyCategories)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(changed) > 0 {
		m.afterWrite(ctx)
	}
	return changed, nil
}

// DeleteCategory removes a single category. It fails with ConstraintError
// while any category lists it as parent or any clip references it.
func (m *Manager) DeleteCategory(ctx context.Context, categoryID string, guards ...Guard) error {
	_, err := m.DeleteCategories(ctx, []string{categoryID}, guards...)
	return err
}

// DeleteCategories removes a set of categories in one write, for cascading
// deletes. Events are published in the order of ids, so callers pass
// children before parents. Every id must exist; no clip may reference any
// of them and no category outside the set may have a parent inside it.
func (m *Manager) DeleteCategories(ctx context.Context, ids []string, guards ...Guard) ([]domain.Category, error) {
	if err := m.ensureInit(); err != nil {
		return nil, err
	}
	ids = textutil.Dedupe(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	var removed []domain.Category
	_, err := m.mutate(ctx, []string{KeyCategories, KeyClips}, func(st *State) error {
		doomed := make(map[string]bool, len(ids))
		for _, catID := range ids {
			if st.FindCategory(catID) < 0 {
				return errors.NewNotFound("category", catID)
			}
			doomed[catID] = true
		}

		for _, c := range st.Categories {
			if !doomed[c.ID] && doomed[c.Parent()] {
				return errors.NewConstraint(
					fmt.Sprintf("category %s has child categories", c.Parent()),
					map[string]any{"id": c.Parent(), "child_id": c.ID})
			}
		}
		for _, clip := range st.Clips {
			for _, catID := range clip.CategoryIDs {
				if doomed[catID] {
					return errors.NewConstraint(
						fmt.Sprintf("category %s is referenced by clips", catID),
						map[string]any{"id": catID, "clip_id": clip.ID})
				}
			}
		}
		if err := runGuards(st, guards); err != nil {
			return err
		}

		byID := make(map[string]domain.Category, len(ids))
		kept := st.Categories[:0:0]
		for _, c := range st.Categories {
			if doomed[c.ID] {
				byID[c.ID] = c
				continue
			}
			kept = append(kept, c)
		}
		st.Categories = kept
		st.markDirty(KeyCategories)

		removed = removed[:0]
		for _, catID := range ids {
			c := byID[catID]
			removed = append(removed, c)
			st.emit(events.CategoryDeleted{Category: c.Clone()})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.afterWrite(ctx)
	return removed, nil
}
