package domain

import (
	"slices"
	"strings"

	"github.com/Kai-project-00/clipgo/internal/textutil"
	"github.com/Kai-project-00/clipgo/internal/validation"
)

// Source identifies the site a clip was captured from.
type Source string

const (
	SourceChatGPT Source = "chatgpt"
	SourceClaude  Source = "claude"
	SourceOther   Source = "other"
)

// IsAI reports whether the source is an AI chat product.
func (s Source) IsAI() bool {
	return s == SourceChatGPT || s == SourceClaude
}

// SourceFromURL derives the clip source by substring match on the URL.
func SourceFromURL(url string) Source {
	u := strings.ToLower(url)
	switch {
	case strings.Contains(u, "chat.openai.com"), strings.Contains(u, "chatgpt.com"):
		return SourceChatGPT
	case strings.Contains(u, "claude.ai"):
		return SourceClaude
	default:
		return SourceOther
	}
}

// Importance is a user-assigned priority.
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceNormal Importance = "normal"
	ImportanceLow    Importance = "low"
)

// Rank orders importance values: high=3, normal=2, low=1, unknown=0.
func (i Importance) Rank() int {
	switch i {
	case ImportanceHigh:
		return 3
	case ImportanceNormal:
		return 2
	case ImportanceLow:
		return 1
	default:
		return 0
	}
}

// Language codes produced by language detection.
const (
	LanguageKorean  = textutil.LanguageKorean
	LanguageEnglish = textutil.LanguageEnglish
)

// Metadata holds attributes derived from a clip's text.
type Metadata struct {
	WordCount            int `json:"wordCount"`
	CharacterCount       int `json:"characterCount"`
	EstimatedReadingTime int `json:"estimatedReadingTime"`
	SelectionLength      int `json:"selectionLength,omitempty"`
}

// MetadataFor derives metadata from cleaned text.
func MetadataFor(text string) Metadata {
	words := textutil.WordCount(text)
	return Metadata{
		WordCount:            words,
		CharacterCount:       textutil.CountChars(text),
		EstimatedReadingTime: textutil.ReadingTime(words),
	}
}

// Clip is a saved piece of selected text.
type Clip struct {
	ID          string     `json:"id"`
	Text        string     `json:"text" validate:"required,notblank,max=10000"`
	Title       string     `json:"title" validate:"required,notblank,max=200"`
	Tags        []string   `json:"tags" validate:"dive,required,lowercase,max=50"`
	CategoryIDs []string   `json:"categoryIds" validate:"dive,required"`
	URL         string     `json:"url,omitempty" validate:"max=2048"`
	Source      Source     `json:"source" validate:"required,oneof=chatgpt claude other"`
	Language    string     `json:"language,omitempty" validate:"max=16"`
	Importance  Importance `json:"importance" validate:"required,oneof=high normal low"`
	Metadata    Metadata   `json:"metadata"`

	// CreatedAt and UpdatedAt are Unix milliseconds.
	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

// Validate checks the clip against its field rules.
func (c Clip) Validate() error {
	return validation.Struct("clip", c)
}

// Clone returns a deep copy of c.
func (c Clip) Clone() Clip {
	c.Tags = slices.Clone(c.Tags)
	c.CategoryIDs = slices.Clone(c.CategoryIDs)
	return c
}

// HasCategory reports whether the clip belongs to categoryID.
func (c Clip) HasCategory(categoryID string) bool {
	return slices.Contains(c.CategoryIDs, categoryID)
}

// HasTag reports whether the clip carries tag.
func (c Clip) HasTag(tag string) bool {
	return slices.Contains(c.Tags, tag)
}

// CloneClips deep-copies a slice of clips.
func CloneClips(clips []Clip) []Clip {
	if clips == nil {
		return nil
	}
	out := make([]Clip, len(clips))
	for i, c := range clips {
		out[i] = c.Clone()
	}
	return out
}

// CloneCategories deep-copies a slice of categories.
func CloneCategories(cats []Category) []Category {
	if cats == nil {
		return nil
	}
	out := make([]Category, len(cats))
	for i, c := range cats {
		out[i] = c.Clone()
	}
	return out
}
