package domain

import (
	"math/rand/v2"
	"strings"

	"github.com/Kai-project-00/clipgo/internal/validation"
)

// CategoryPalette is the set of colors assigned to categories created without one.
var CategoryPalette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FFEAA7",
	"#DDA0DD", "#98D8C8", "#F7DC6F", "#BB8FCE", "#85C1E9",
}

// DefaultCategoryColor fills in categories persisted before colors existed.
const DefaultCategoryColor = "#4b3baf"

// Category is a node in the category forest.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name" validate:"required,notblank,max=50,catname"`

	// ParentID is nil for root categories.
	ParentID *string `json:"parentId"`

	// Order positions the category among its siblings.
	Order int    `json:"order" validate:"gte=0"`
	Color string `json:"color" validate:"omitempty,hexcolor6"`

	// CreatedAt and UpdatedAt are Unix milliseconds.
	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

// NewCategory builds a validated category. Name is trimmed; an empty color is
// replaced by a random palette color.
func NewCategory(name string, parentID *string, color string) (Category, error) {
	c := Category{
		Name:     strings.TrimSpace(name),
		ParentID: cloneString(parentID),
		Color:    color,
	}
	if c.Color == "" {
		c.Color = RandomColor()
	}
	if err := c.Validate(); err != nil {
		return Category{}, err
	}
	return c, nil
}

// Validate checks the category against its field rules.
func (c Category) Validate() error {
	return validation.Struct("category", c)
}

// IsRoot reports whether the category has no parent.
func (c Category) IsRoot() bool {
	return c.ParentID == nil || *c.ParentID == ""
}

// Parent returns the parent id, or "" for roots.
func (c Category) Parent() string {
	if c.ParentID == nil {
		return ""
	}
	return *c.ParentID
}

// Clone returns a copy that shares no pointers with c.
func (c Category) Clone() Category {
	c.ParentID = cloneString(c.ParentID)
	return c
}

// RandomColor picks a color from CategoryPalette.
func RandomColor() string {
	return CategoryPalette[rand.IntN(len(CategoryPalette))]
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func cloneString(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
