// Package category layers tree semantics over the category collection:
// sibling-unique names, a depth limit, cycle-free moves, cascading deletes,
// paths and per-category statistics.
//
// Every structural check runs inside the storage write it protects, so two
// surfaces sharing a store cannot together break the tree.
package category

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Kai-project-00/clipgo/internal/cache"
	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/errors"
	"github.com/Kai-project-00/clipgo/internal/events"
	"github.com/Kai-project-00/clipgo/internal/logger"
	"github.com/Kai-project-00/clipgo/internal/storage"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultMaxDepth = 3
	DefaultCacheTTL = 5 * time.Minute
)

// Cache keys.
const (
	keyTree = "category_tree"
	keyAll  = "all_categories"
)

func keyCategory(id string) string { return "category_" + id }

// Options configures a Manager.
type Options struct {
	// MaxDepth is the number of levels the tree may have.
	MaxDepth int

	// CacheTTL is the lifetime of cached lookups. Negative disables caching.
	CacheTTL time.Duration

	// DefaultCategories are created as roots when the store has none.
	DefaultCategories []string

	Logger *slog.Logger
}

// Manager is the category tree service.
type Manager struct {
	storage  *storage.Manager
	maxDepth int
	defaults []string
	logger   *slog.Logger
	cache    *cache.TTL[any]

	initialized atomic.Bool
	unsubscribe func()
}

// New creates a category manager on top of an initialized storage manager.
func New(s *storage.Manager, opts Options) *Manager {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	return &Manager{
		storage:  s,
		maxDepth: opts.MaxDepth,
		defaults: opts.DefaultCategories,
		logger:   logger.OrDiscard(opts.Logger),
		cache:    cache.New[any](opts.CacheTTL, s.Now),
	}
}

// Init subscribes to storage events and seeds the default categories when
// none exist. Seeding failures are logged.
func (m *Manager) Init(ctx context.Context) error {
	if m.initialized.Load() {
		return nil
	}
	if !m.storage.Initialized() {
		return errors.NewUninitialized("storage manager")
	}

	m.unsubscribe = m.storage.Bus().Subscribe(m.onEvent,
		events.KindCategoryCreated,
		events.KindCategoryUpdated,
		events.KindCategoryDeleted,
		events.KindDataImported,
		events.KindDataCleared,
		events.KindStorageChanged,
		events.KindCacheInvalidated,
	)
	m.initialized.Store(true)

	if err := m.ensureDefaults(ctx); err != nil {
		m.logger.Warn("default categories not created", "error", err)
	}
	m.logger.Info("category manager initialized")
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
	if sc, ok := e.(events.StorageChanged); ok && sc.Key != storage.KeyCategories {
		return
	}
	m.cache.Clear()
}

func (m *Manager) ensureInit() error {
	if !m.initialized.Load() {
		return errors.NewUninitialized("category manager")
	}
	return nil
}

func (m *Manager) ensureDefaults(ctx context.Context) error {
	if len(m.defaults) == 0 {
		return nil
	}
	cats, err := m.storage.GetCategories(ctx)
	if err != nil {
		return err
	}
	if len(cats) > 0 {
		return nil
	}
	for i, name := range m.defaults {
		order := i
		if _, err := m.CreateCategory(ctx, CreateInput{Name: name, Order: &order}); err != nil {
			return fmt.Errorf("create %q: %w", name, err)
		}
	}
	m.logger.Info("default categories created", "count", len(m.defaults))
	return nil
}

// CreateInput contains parameters for CreateCategory.
type CreateInput struct {
	Name     string
	ParentID string // empty for a root
	Color    string // random palette color when empty

	// Order defaults to after the last sibling.
	Order *int
}

// CreateCategory adds a category. It fails with ConstraintError when a
// sibling already has the name or the parent is already at the deepest
// level, and with NotFoundError when the parent does not exist.
func (m *Manager) CreateCategory(ctx context.Context, in CreateInput) (domain.Category, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Category{}, err
	}
	c, err := domain.NewCategory(in.Name, domain.StringPtr(in.ParentID), in.Color)
	if err != nil {
		return domain.Category{}, err
	}
	if in.Order != nil {
		c.Order = *in.Order
	}

	return m.storage.CreateCategory(ctx, c, func(st *storage.State, c *domain.Category) error {
		f := newForest(st.Categories)
		parentID := c.Parent()
		if parentID != "" {
			if _, ok := f.byID[parentID]; !ok {
				return errors.NewNotFound("category", parentID)
			}
			if depth := f.depth(parentID); depth >= m.maxDepth {
				return m.depthError(parentID, depth)
			}
		}
		if f.nameTaken(parentID, c.Name, "") {
			return errors.NewConstraint(
				fmt.Sprintf("a category named %q already exists at this level", c.Name),
				map[string]any{"name": c.Name, "parent_id": parentID})
		}
		if in.Order == nil {
			c.Order = f.nextOrder(parentID, "")
		}
		return nil
	})
}

func (m *Manager) depthError(parentID string, depth int) error {
	return errors.NewConstraint(
		fmt.Sprintf("maximum category depth (%d) exceeded", m.maxDepth),
		map[string]any{"parent_id": parentID, "parent_depth": depth, "max_depth": m.maxDepth})
}

// GetCategory returns the category with id.
func (m *Manager) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Category{}, err
	}
	if v, ok := m.cache.Get(keyCategory(id)); ok {
		return v.(domain.Category).Clone(), nil
	}
	c, err := m.storage.GetCategory(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}
	m.cache.Set(keyCategory(id), c.Clone())
	return c, nil
}

// GetAllCategories returns every category in storage order.
func (m *Manager) GetAllCategories(ctx context.Context) ([]domain.Category, error) {
	if err := m.ensureInit(); err != nil {
		return nil, err
	}
	return m.all(ctx)
}

func (m *Manager) all(ctx context.Context) ([]domain.Category, error) {
	if v, ok := m.cache.Get(keyAll); ok {
		return domain.CloneCategories(v.([]domain.Category)), nil
	}
	cats, err := m.storage.GetCategories(ctx)
	if err != nil {
		return nil, err
	}
	m.cache.Set(keyAll, domain.CloneCategories(cats))
	return cats, nil
}

// GetCategoryTree returns the categories nested by parent.
func (m *Manager) GetCategoryTree(ctx context.Context) ([]*Node, error) {
	if err := m.ensureInit(); err != nil {
		return nil, err
	}
	// Trees are rebuilt from the cached flat list; callers may modify them.
	if v, ok := m.cache.Get(keyTree); ok {
		return BuildTree(v.([]domain.Category)), nil
	}
	cats, err := m.storage.GetCategories(ctx)
	if err != nil {
		return nil, err
	}
	m.cache.Set(keyTree, domain.CloneCategories(cats))
	return BuildTree(cats), nil
}

// GetCategoriesByParent returns the children of parentID sorted by order.
// An empty parentID lists the roots.
func (m *Manager) GetCategoriesByParent(ctx context.Context, parentID string) ([]domain.Category, error) {
	if err := m.ensureInit(); err != nil {
		return nil, err
	}
	cats, err := m.all(ctx)
	if err != nil {
		return nil, err
	}
	kids := newForest(cats).siblings(parentID)
	if kids == nil {
		return []domain.Category{}, nil
	}
	return kids, nil
}

// GetRootCategories returns the top-level categories.
func (m *Manager) GetRootCategories(ctx context.Context) ([]domain.Category, error) {
	return m.GetCategoriesByParent(ctx, "")
}

// GetChildren returns the direct children of id.
func (m *Manager) GetChildren(ctx context.Context, id string) ([]domain.Category, error) {
	if _, err := m.GetCategory(ctx, id); err != nil {
		return nil, err
	}
	return m.GetCategoriesByParent(ctx, id)
}

// GetCategoryPath returns the categories from the root down to id, for
// breadcrumbs. A dangling parent reference cuts the path short instead of
// failing; an unknown id yields an empty path.
func (m *Manager) GetCategoryPath(ctx context.Context, id string) ([]domain.Category, error) {
	if err := m.ensureInit(); err != nil {
		return nil, err
	}
	cats, err := m.all(ctx)
	if err != nil {
		return nil, err
	}
	path := newForest(cats).path(id)
	if path == nil {
		path = []domain.Category{}
	}
	return path, nil
}

// GetCategoryDepth returns the number of categories on the path from the
// root to id: 1 for a root, 0 for an unknown id.
func (m *Manager) GetCategoryDepth(ctx context.Context, id string) (int, error) {
	path, err := m.GetCategoryPath(ctx, id)
	return len(path), err
}

// GetSubtreeIDs returns id and all of its descendants, children first.
func (m *Manager) GetSubtreeIDs(ctx context.Context, id string) ([]string, error) {
	if _, err := m.GetCategory(ctx, id); err != nil {
		return nil, err
	}
	cats, err := m.all(ctx)
	if err != nil {
		return nil, err
	}
	return newForest(cats).subtree(id), nil
}

// UpdateInput lists the fields UpdateCategory may change. Nil fields are
// left alone. Use MoveCategory to change the parent.
type UpdateInput struct {
	Name  *string
	Color *string
	Order *int
}

// UpdateCategory renames, recolours or reorders a category. A new name must
// not clash with a sibling.
func (m *Manager) UpdateCategory(ctx context.Context, id string, in UpdateInput) (domain.Category, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Category{}, err
	}
	return m.storage.UpdateCategory(ctx, id, func(st *storage.State, c *domain.Category) error {
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name != c.Name && newForest(st.Categories).nameTaken(c.Parent(), name, c.ID) {
				return errors.NewConstraint(
					fmt.Sprintf("a category named %q already exists at this level", name),
					map[string]any{"name": name, "parent_id": c.Parent()})
			}
			c.Name = name
		}
		if in.Color != nil {
			c.Color = *in.Color
		}
		if in.Order != nil {
			c.Order = *in.Order
		}
		return nil
	})
}

// MoveCategory re-parents id under newParentID, or makes it a root when
// newParentID is empty, placing it after its new siblings. It fails with
// ConstraintError when the move would create a cycle, push any node of the
// moved subtree past the depth limit, or duplicate a sibling name.
func (m *Manager) MoveCategory(ctx context.Context, id, newParentID string) (domain.Category, error) {
	if err := m.ensureInit(); err != nil {
		return domain.Category{}, err
	}
	return m.storage.UpdateCategory(ctx, id, func(st *storage.State, c *domain.Category) error {
		f := newForest(st.Categories)
		if newParentID != "" {
			if newParentID == id || f.isAncestor(id, newParentID) {
				return errors.NewConstraint("cannot move a category under itself or its descendant",
					map[string]any{"id": id, "parent_id": newParentID})
			}
			if _, ok := f.byID[newParentID]; !ok {
				return errors.NewNotFound("category", newParentID)
			}
			if depth := f.depth(newParentID); depth+f.height(id) > m.maxDepth {
				return m.depthError(newParentID, depth)
			}
		}
		if f.nameTaken(newParentID, c.Name, id) {
			return errors.NewConstraint(
				fmt.Sprintf("a category named %q already exists at this level", c.Name),
				map[string]any{"name": c.Name, "parent_id": newParentID})
		}
		c.ParentID = domain.StringPtr(newParentID)
		c.Order = f.nextOrder(newParentID, id)
		return nil
	})
}

// ReorderCategories sets the order of the children of parentID to their
// position in orderedIDs. Every id must be a child of parentID.
func (m *Manager) ReorderCategories(ctx context.Context, parentID string, orderedIDs []string) ([]domain.Category, error) {
	if err := m.ensureInit(); err != nil {
		return nil, err
	}
	orders := make(map[string]int, len(orderedIDs))
	for i, id := range orderedIDs {
		if _, dup := orders[id]; dup {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("category %s listed twice", id))
		}
		orders[id] = i
	}
	return m.storage.SetCategoryOrders(ctx, orders, func(st *storage.State) error {
		for _, id := range orderedIDs {
			i := st.FindCategory(id)
			if i < 0 {
				return errors.NewNotFound("category", id)
			}
			if st.Categories[i].Parent() != parentID {
				return errors.NewConstraint(
					fmt.Sprintf("category %s is not a child of %q", id, parentID),
					map[string]any{"id": id, "parent_id": parentID})
			}
		}
		return nil
	})
}

// DeleteCategory removes a leaf category that no clip references.
// Categories with children need DeleteCategoryWithChildren.
func (m *Manager) DeleteCategory(ctx context.Context, id string) error {
	if err := m.ensureInit(); err != nil {
		return err
	}
	return m.storage.DeleteCategory(ctx, id)
}

// DeleteCategoryWithChildren removes id and its whole subtree in one write,
// children before parents. No clip may reference any category in the
// subtree.
func (m *Manager) DeleteCategoryWithChildren(ctx context.Context, id string) ([]domain.Category, error) {
	if err := m.ensureInit(); err != nil {
		return nil, err
	}
	cats, err := m.storage.GetCategories(ctx)
	if err != nil {
		return nil, err
	}
	f := newForest(cats)
	if _, ok := f.byID[id]; !ok {
		return nil, errors.NewNotFound("category", id)
	}
	removed, err := m.storage.DeleteCategories(ctx, f.subtree(id))
	if err != nil {
		return nil, err
	}
	m.logger.Info("category subtree deleted", "id", id, "count", len(removed))
	return removed, nil
}

// SearchCategories returns the categories whose name contains query,
// ignoring case.
func (m *Manager) SearchCategories(ctx context.Context, query string) ([]domain.Category, error) {
	if err := m.ensureInit(); err != nil {
		return nil, err
	}
	cats, err := m.all(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := []domain.Category{}
	for _, c := range cats {
		if strings.Contains(strings.ToLower(c.Name), q) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Stats counts what a category holds.
type Stats struct {
	ClipCount        int `json:"clipCount"`
	SubcategoryCount int `json:"subcategoryCount"`

	// TotalClips counts distinct clips anywhere in the subtree.
	TotalClips int `json:"totalClipsIncludingSubcategories"`
}

// GetCategoryStats returns the clip and subcategory counts of id.
func (m *Manager) GetCategoryStats(ctx context.Context, id string) (Stats, error) {
	all, err := m.GetAllStats(ctx)
	if err != nil {
		return Stats{}, err
	}
	s, ok := all[id]
	if !ok {
		return Stats{}, errors.NewNotFound("category", id)
	}
	return s, nil
}

// GetAllStats returns Stats for every category, keyed by id.
func (m *Manager) GetAllStats(ctx context.Context) (map[string]Stats, error) {
	if err := m.ensureInit(); err != nil {
		return nil, err
	}
	cats, err := m.all(ctx)
	if err != nil {
		return nil, err
	}
	clips, err := m.storage.GetClips(ctx, storage.ClipFilter{})
	if err != nil {
		return nil, err
	}

	f := newForest(cats)
	out := make(map[string]Stats, len(cats))
	for _, c := range cats {
		subtree := make(map[string]bool)
		for _, id := range f.subtree(c.ID) {
			subtree[id] = true
		}
		s := Stats{SubcategoryCount: len(f.siblings(c.ID))}
		for _, clip := range clips {
			if clip.HasCategory(c.ID) {
				s.ClipCount++
			}
			for _, catID := range clip.CategoryIDs {
				if subtree[catID] {
					s.TotalClips++
					break
				}
			}
		}
		out[c.ID] = s
	}
	return out, nil
}
