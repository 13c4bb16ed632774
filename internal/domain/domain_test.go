package domain

import (
	stderrors "errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/Kai-project-00/clipgo/internal/errors"
)

func stringPtr(s string) *string { return &s }

func asClipError(err error, target **errors.ClipError) bool {
	return stderrors.As(err, target)
}

func validClip() Clip {
	return Clip{
		Text:       "Hello world",
		Title:      "Hello",
		Tags:       []string{"ai"},
		Source:     SourceChatGPT,
		Importance: ImportanceNormal,
	}
}

func TestNewCategory(t *testing.T) {
	tests := []struct {
		name      string
		catName   string
		color     string
		wantError bool
	}{
		{"simple", "Work", "#FF6B6B", false},
		{"korean letters", "업무 노트", "", false},
		{"hyphen and underscore", "side-project_2", "", false},
		{"trimmed", "  Ideas  ", "", false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"too long", strings.Repeat("a", 51), "", true},
		{"max length", strings.Repeat("a", 50), "", false},
		{"punctuation", "work!", "", true},
		{"short color", "Work", "#FFF", true},
		{"not a color", "Work", "red", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCategory(tt.catName, nil, tt.color)
			if tt.wantError {
				if !errors.Is(err, errors.ErrValidation) {
					t.Fatalf("NewCategory() error = %v, want VALIDATION", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewCategory() error = %v", err)
			}
			if c.Name != strings.TrimSpace(tt.catName) {
				t.Errorf("Name = %q, want %q", c.Name, strings.TrimSpace(tt.catName))
			}
			if tt.color == "" && !slices.Contains(CategoryPalette, c.Color) {
				t.Errorf("Color = %q, want a palette color", c.Color)
			}
		})
	}
}

func TestCategoryValidate_ListsAllViolations(t *testing.T) {
	err := Category{Name: "bad!", Color: "blue", Order: -1}.Validate()

	var cErr *errors.ClipError
	if !asClipError(err, &cErr) {
		t.Fatalf("Validate() error = %v, want *ClipError", err)
	}
	if len(cErr.Violations) != 3 {
		t.Fatalf("Violations = %v, want 3 (name, color, order)", cErr.Violations)
	}
}

func TestClipValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Clip)
		violations int
	}{
		{"valid", func(*Clip) {}, 0},
		{"empty text", func(c *Clip) { c.Text = "" }, 1},
		{"text too long", func(c *Clip) { c.Text = strings.Repeat("x", 10001) }, 1},
		{"title too long", func(c *Clip) { c.Title = strings.Repeat("t", 201) }, 1},
		{"bad source", func(c *Clip) { c.Source = "bard" }, 1},
		{"bad importance", func(c *Clip) { c.Importance = "urgent" }, 1},
		{"uppercase tag", func(c *Clip) { c.Tags = []string{"AI"} }, 1},
		{"several", func(c *Clip) { c.Text = ""; c.Title = ""; c.Source = "" }, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validClip()
			tt.mutate(&c)
			err := c.Validate()
			if tt.violations == 0 {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			var cErr *errors.ClipError
			if !asClipError(err, &cErr) {
				t.Fatalf("Validate() error = %v, want *ClipError", err)
			}
			if len(cErr.Violations) != tt.violations {
				t.Errorf("Violations = %v, want %d", cErr.Violations, tt.violations)
			}
		})
	}
}

func TestClipValidate_CountsRunesNotBytes(t *testing.T) {
	c := validClip()
	c.Title = strings.Repeat("가", 200) // 600 bytes, 200 runes
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestSourceFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want Source
	}{
		{"https://chat.openai.com/c/1", SourceChatGPT},
		{"https://chatgpt.com/c/abc", SourceChatGPT},
		{"https://claude.ai/chat/xyz", SourceClaude},
		{"https://example.com", SourceOther},
		{"", SourceOther},
	}
	for _, tt := range tests {
		if got := SourceFromURL(tt.url); got != tt.want {
			t.Errorf("SourceFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestImportanceRank(t *testing.T) {
	if !(ImportanceHigh.Rank() > ImportanceNormal.Rank() && ImportanceNormal.Rank() > ImportanceLow.Rank()) {
		t.Fatalf("ranks not ordered: high=%d normal=%d low=%d",
			ImportanceHigh.Rank(), ImportanceNormal.Rank(), ImportanceLow.Rank())
	}
	if Importance("").Rank() != 0 {
		t.Errorf("empty Rank() = %d, want 0", Importance("").Rank())
	}
}

func TestClipClone_Independent(t *testing.T) {
	c := validClip()
	c.CategoryIDs = []string{"a"}
	cp := c.Clone()
	cp.Tags[0] = "changed"
	cp.CategoryIDs[0] = "b"

	if c.Tags[0] != "ai" || c.CategoryIDs[0] != "a" {
		t.Errorf("Clone shares slices with original: tags=%v cats=%v", c.Tags, c.CategoryIDs)
	}
}

func TestCategoryClone_Independent(t *testing.T) {
	c := Category{Name: "A", ParentID: stringPtr("p")}
	cp := c.Clone()
	*cp.ParentID = "q"
	if *c.ParentID != "p" {
		t.Errorf("ParentID = %q, want %q", *c.ParentID, "p")
	}
}

func TestDefaultSettings(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	s := DefaultSettings(now)

	if err := s.Validate(); err != nil {
		t.Fatalf("DefaultSettings().Validate() error = %v", err)
	}
	if s.AutoBackupInterval != 86_400_000 {
		t.Errorf("AutoBackupInterval = %d, want 86400000", s.AutoBackupInterval)
	}
	if s.Language != "ko" || s.Theme != "auto" || s.MaxClipsPerCategory != 1000 {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if s.CreatedAt != now.UnixMilli() {
		t.Errorf("CreatedAt = %d, want %d", s.CreatedAt, now.UnixMilli())
	}
}

func TestSettingsPatchApply(t *testing.T) {
	s := DefaultSettings(time.Now())
	theme := "dark"
	compress := true
	SettingsPatch{Theme: &theme, CompressData: &compress}.Apply(&s)

	if s.Theme != "dark" || !s.CompressData {
		t.Errorf("Apply() = %+v, want theme dark and compression on", s)
	}
	if s.Language != "ko" {
		t.Errorf("Language = %q, want untouched %q", s.Language, "ko")
	}

	bad := "sepia"
	SettingsPatch{Theme: &bad}.Apply(&s)
	if err := s.Validate(); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("Validate() after bad theme = %v, want VALIDATION", err)
	}
}
