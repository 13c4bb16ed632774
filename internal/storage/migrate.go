package storage

import (
	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/textutil"
)

// migrate fills in fields that records written before the current schema
// version may lack.
func migrate(st *State, now int64) {
	for i := range st.Categories {
		c := &st.Categories[i]
		if c.Color == "" {
			c.Color = domain.DefaultCategoryColor
		}
		if c.CreatedAt == 0 {
			c.CreatedAt = now
		}
		if c.UpdatedAt == 0 {
			c.UpdatedAt = c.CreatedAt
		}
	}

	for i := range st.Clips {
		repairClip(&st.Clips[i], now)
	}
}

// repairClip synthesizes missing derived or defaulted clip fields. It
// reports whether anything changed. Text is never synthesized.
func repairClip(c *domain.Clip, now int64) bool {
	changed := false
	if c.Tags == nil {
		c.Tags = []string{}
		changed = true
	}
	if c.CategoryIDs == nil {
		c.CategoryIDs = []string{}
		changed = true
	}
	if c.Source == "" {
		c.Source = domain.SourceFromURL(c.URL)
		changed = true
	}
	if c.Importance == "" {
		c.Importance = domain.ImportanceNormal
		changed = true
	}
	if c.Title == "" && c.Text != "" {
		c.Title = textutil.GenerateTitle(c.Text)
		changed = true
	}
	if c.Language == "" && c.Text != "" {
		c.Language = textutil.DetectLanguage(c.Text)
		changed = true
	}
	if c.Metadata == (domain.Metadata{}) && c.Text != "" {
		c.Metadata = domain.MetadataFor(c.Text)
		changed = true
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = now
		changed = true
	}
	if c.UpdatedAt == 0 {
		c.UpdatedAt = c.CreatedAt
		changed = true
	}
	return changed
}
