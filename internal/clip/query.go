package clip

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/errors"
	"github.com/Kai-project-00/clipgo/internal/storage"
)

// Filter narrows a clip listing. Zero fields match everything.
type Filter struct {
	// SearchQuery is a case-insensitive substring of title, text or a tag.
	SearchQuery string `json:"searchQuery,omitempty"`

	// CategoryIDs and Tags match clips sharing at least one element.
	CategoryIDs []string `json:"categoryIds,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	Source     domain.Source     `json:"source,omitempty"`
	Importance domain.Importance `json:"importance,omitempty"`

	// Language "unknown" matches clips without a language.
	Language string `json:"language,omitempty"`

	// DateFrom and DateTo bound CreatedAt inclusively, in Unix milliseconds.
	DateFrom int64 `json:"dateFrom,omitempty"`
	DateTo   int64 `json:"dateTo,omitempty"`

	// Limit truncates the filtered result before sorting. Zero means no limit.
	Limit int `json:"limit,omitempty"`
}

// Match reports whether c passes every predicate of f.
func (f Filter) Match(c domain.Clip) bool {
	if q := strings.ToLower(f.SearchQuery); q != "" && !storage.MatchesQuery(c, q) {
		return false
	}
	if len(f.CategoryIDs) > 0 && !slices.ContainsFunc(f.CategoryIDs, c.HasCategory) {
		return false
	}
	if len(f.Tags) > 0 && !slices.ContainsFunc(f.Tags, c.HasTag) {
		return false
	}
	if f.Source != "" && c.Source != f.Source {
		return false
	}
	if f.Importance != "" && c.Importance != f.Importance {
		return false
	}
	if f.Language != "" {
		lang := c.Language
		if lang == "" {
			lang = "unknown"
		}
		if lang != f.Language {
			return false
		}
	}
	if f.DateFrom != 0 && c.CreatedAt < f.DateFrom {
		return false
	}
	if f.DateTo != 0 && c.CreatedAt > f.DateTo {
		return false
	}
	return true
}

// ApplyFilters returns the clips matching f in their input order, truncated
// to f.Limit. The input slice is not modified.
func ApplyFilters(clips []domain.Clip, f Filter) []domain.Clip {
	out := make([]domain.Clip, 0, len(clips))
	for _, c := range clips {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// SortField names the clip attribute a listing is ordered by.
type SortField string

const (
	SortCreatedAt  SortField = "createdAt"
	SortUpdatedAt  SortField = "updatedAt"
	SortTitle      SortField = "title"
	SortSource     SortField = "source"
	SortImportance SortField = "importance"
)

// Order is the sort direction.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// Sort selects the ordering of a listing. The zero value sorts by creation
// time, newest first.
type Sort struct {
	Field SortField `json:"sort,omitempty"`
	Order Order     `json:"order,omitempty"`
}

// ParseSort validates a field and direction given as strings, as they
// arrive from the CLI or a tool call. Empty values take the defaults.
func ParseSort(field, order string) (Sort, error) {
	s := Sort{Field: SortField(field), Order: Order(order)}
	switch s.Field {
	case "", SortCreatedAt, SortUpdatedAt, SortTitle, SortSource, SortImportance:
	default:
		return Sort{}, errors.NewInvalidRequest(fmt.Sprintf("unknown sort field %q", field))
	}
	switch s.Order {
	case "", OrderAsc, OrderDesc:
	default:
		return Sort{}, errors.NewInvalidRequest(fmt.Sprintf("unknown sort order %q (want asc or desc)", order))
	}
	return s, nil
}

// ApplySorting returns a sorted copy of clips. Titles and sources compare
// with the collation rules of locale. Ties keep their input order.
func ApplySorting(clips []domain.Clip, s Sort, locale language.Tag) []domain.Clip {
	out := slices.Clone(clips)

	var compare func(a, b domain.Clip) int
	switch s.Field {
	case SortUpdatedAt:
		compare = func(a, b domain.Clip) int { return cmp.Compare(a.UpdatedAt, b.UpdatedAt) }
	case SortTitle:
		col := collate.New(locale)
		compare = func(a, b domain.Clip) int { return col.CompareString(a.Title, b.Title) }
	case SortSource:
		col := collate.New(locale)
		compare = func(a, b domain.Clip) int { return col.CompareString(string(a.Source), string(b.Source)) }
	case SortImportance:
		compare = func(a, b domain.Clip) int { return cmp.Compare(rank(a.Importance), rank(b.Importance)) }
	default:
		compare = func(a, b domain.Clip) int { return cmp.Compare(a.CreatedAt, b.CreatedAt) }
	}

	if s.Order == OrderAsc {
		slices.SortStableFunc(out, compare)
	} else {
		slices.SortStableFunc(out, func(a, b domain.Clip) int { return compare(b, a) })
	}
	return out
}

// rank treats a missing importance as normal.
func rank(i domain.Importance) int {
	if i == "" {
		return domain.ImportanceNormal.Rank()
	}
	return i.Rank()
}
