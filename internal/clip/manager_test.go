package clip

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kai-project-00/clipgo/internal/category"
	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/errors"
	"github.com/Kai-project-00/clipgo/internal/kv"
	"github.com/Kai-project-00/clipgo/internal/storage"
	"github.com/Kai-project-00/clipgo/internal/textutil"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	clips      *Manager
	categories *category.Manager
	storage    *storage.Manager
	clock      *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := kv.OpenSQLite(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clock := &testClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	s := storage.New(store, storage.Options{Now: clock.Now})
	require.NoError(t, s.Init(ctx))
	t.Cleanup(func() { s.Shutdown() })

	cats := category.New(s, category.Options{})
	require.NoError(t, cats.Init(ctx))
	t.Cleanup(cats.Shutdown)

	m := New(s, cats, Options{})
	require.NoError(t, m.Init(ctx))
	t.Cleanup(m.Shutdown)

	return &fixture{clips: m, categories: cats, storage: s, clock: clock}
}

func (f *fixture) create(t *testing.T, text string) domain.Clip {
	t.Helper()
	f.clock.Advance(time.Second)
	c, err := f.clips.CreateClip(context.Background(), CreateInput{Text: text})
	if err != nil {
		t.Fatalf("CreateClip(%q) failed: %v", text, err)
	}
	return c
}

// words returns n distinct words with the given prefix.
func words(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%02d", prefix, i)
	}
	return out
}

func joinWords(parts ...[]string) string {
	var all []string
	for _, p := range parts {
		all = append(all, p...)
	}
	return strings.Join(all, " ")
}

func TestManager_RequiresInitChain(t *testing.T) {
	store, err := kv.OpenBadger(kv.InMemoryBadgerConfig())
	require.NoError(t, err)
	defer store.Close()

	s := storage.New(store, storage.Options{})
	require.NoError(t, s.Init(context.Background()))
	defer s.Shutdown()

	cats := category.New(s, category.Options{})
	m := New(s, cats, Options{})
	if err := m.Init(context.Background()); !errors.Is(err, errors.ErrUninitialized) {
		t.Fatalf("Init before categories: err = %v, want UNINITIALIZED", err)
	}
	if _, err := m.GetClips(context.Background(), Query{}); !errors.Is(err, errors.ErrUninitialized) {
		t.Fatalf("GetClips before Init: err = %v, want UNINITIALIZED", err)
	}
}

func TestManager_CreateDerivesFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.clips.CreateClip(ctx, CreateInput{
		Text:  "Hello world, this is a test of clip saving.",
		Title: "Hello Test",
		URL:   "https://chat.openai.com/c/1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.SourceChatGPT, c.Source)
	assert.Equal(t, domain.ImportanceNormal, c.Importance)
	assert.Equal(t, domain.LanguageEnglish, c.Language)
	assert.Equal(t, 9, c.Metadata.WordCount)
	assert.Equal(t, 1, c.Metadata.EstimatedReadingTime)

	found, err := f.clips.GetClips(ctx, Query{Filter: Filter{SearchQuery: "hello"}})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, c.ID, found[0].ID)

	found, err = f.clips.GetClips(ctx, Query{Filter: Filter{Source: domain.SourceClaude}})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestManager_CreateKeepsLineStructure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.clips.CreateClip(ctx, CreateInput{Text: "## Plan\n\n- write   tests  \n- ship"})
	require.NoError(t, err)

	assert.Equal(t, "## Plan\n- write tests\n- ship", c.Text)
	assert.Equal(t, "## Plan - write tests - ship", c.Title)
	assert.Equal(t, 7, c.Metadata.WordCount)
}

func TestManager_CreateFromSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.clips.CreateClipFromSelection(ctx, "  안녕하세요 파이썬 python 코드 예제입니다  ", "https://claude.ai/chat/42", "",
		SelectionOptions{Tags: []string{"Mine"}, Importance: domain.ImportanceHigh})
	require.NoError(t, err)

	assert.Equal(t, domain.SourceClaude, c.Source)
	assert.Equal(t, domain.LanguageKorean, c.Language)
	assert.Equal(t, domain.ImportanceHigh, c.Importance)
	assert.Equal(t, []string{"mine", "claude", "ai", "short", "python"}, c.Tags)
	assert.Equal(t, c.Text, c.Title, "short texts are their own title")
	assert.Greater(t, c.Metadata.SelectionLength, textutil.CountChars(c.Text))

	_, err = f.clips.CreateClipFromSelection(ctx, "   ", "", "", SelectionOptions{})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("empty selection: err = %v, want INVALID_REQUEST", err)
	}
}

func TestManager_RejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	text := "Hello world, this is a test of clip saving."
	in := CreateInput{Text: text, URL: "https://chat.openai.com/c/1"}
	_, err := f.clips.CreateClip(ctx, in)
	require.NoError(t, err)

	_, err = f.clips.CreateClip(ctx, in)
	if !errors.Is(err, errors.ErrDuplicate) {
		t.Fatalf("exact duplicate: err = %v, want DUPLICATE", err)
	}

	_, err = f.clips.CreateClip(ctx, CreateInput{Text: text + " extra"})
	if !errors.Is(err, errors.ErrDuplicate) {
		t.Fatalf("near duplicate: err = %v, want DUPLICATE", err)
	}

	dup, err := f.clips.IsDuplicateClip(ctx, text+" extra", "", "")
	require.NoError(t, err)
	assert.True(t, dup)
}

func TestManager_DuplicateThresholdBoundary(t *testing.T) {
	tests := []struct {
		name      string
		shared    int
		onlyA     int
		onlyB     int
		duplicate bool
	}{
		// 43 shared words of 50 in the union.
		{"0.86 rejected", 43, 4, 3, true},
		// 42 shared words of 50 in the union.
		{"0.84 accepted", 42, 4, 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			shared := words("s", tt.shared)
			a := joinWords(shared, words("a", tt.onlyA))
			b := joinWords(shared, words("b", tt.onlyB))

			sim := textutil.Similarity(a, b)
			if tt.duplicate && sim <= DefaultDuplicateThreshold || !tt.duplicate && sim > DefaultDuplicateThreshold {
				t.Fatalf("Similarity = %v, fixture does not straddle the threshold", sim)
			}

			f.create(t, a)
			_, err := f.clips.CreateClip(ctx, CreateInput{Text: b})
			if tt.duplicate && !errors.Is(err, errors.ErrDuplicate) {
				t.Errorf("err = %v, want DUPLICATE", err)
			}
			if !tt.duplicate && err != nil {
				t.Errorf("err = %v, want nil", err)
			}
		})
	}
}

func TestManager_UpdateRechecksChangedText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.create(t, "the quick brown fox jumps over the lazy dog")
	second := f.create(t, "an entirely different sentence about storage quotas")

	_, err := f.clips.UpdateClip(ctx, second.ID, UpdateInput{Text: &first.Text})
	if !errors.Is(err, errors.ErrDuplicate) {
		t.Fatalf("update onto existing text: err = %v, want DUPLICATE", err)
	}

	title := "Renamed"
	updated, err := f.clips.UpdateClip(ctx, second.ID, UpdateInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, second.Metadata, updated.Metadata)

	f.clock.Advance(time.Second)
	text := "a  new\n\ntext for the second clip"
	updated, err = f.clips.UpdateClip(ctx, second.ID, UpdateInput{Text: &text})
	require.NoError(t, err)
	assert.Equal(t, "a new\ntext for the second clip", updated.Text)
	assert.Equal(t, 7, updated.Metadata.WordCount)
	assert.Greater(t, updated.UpdatedAt, second.UpdatedAt)

	_, err = f.clips.UpdateClip(ctx, "missing", UpdateInput{Title: &title})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("update missing clip: err = %v, want NOT_FOUND", err)
	}
}

func TestManager_DeleteIsNotFoundTheSecondTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.create(t, "short lived clip")
	require.NoError(t, f.clips.DeleteClip(ctx, c.ID))

	for range 2 {
		if err := f.clips.DeleteClip(ctx, c.ID); !errors.Is(err, errors.ErrNotFound) {
			t.Fatalf("repeat delete: err = %v, want NOT_FOUND", err)
		}
	}
	if _, err := f.clips.GetClip(ctx, c.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetClip after delete: err = %v, want NOT_FOUND", err)
	}
}

func TestManager_TagsAndCategories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	work, err := f.categories.CreateCategory(ctx, category.CreateInput{Name: "Work"})
	require.NoError(t, err)
	c := f.create(t, "meeting notes from monday")

	c, err = f.clips.AddTag(ctx, c.ID, " Meeting ")
	require.NoError(t, err)
	c, err = f.clips.AddTag(ctx, c.ID, "meeting")
	require.NoError(t, err)
	assert.Equal(t, []string{"meeting"}, c.Tags)

	c, err = f.clips.AddToCategory(ctx, c.ID, work.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{work.ID}, c.CategoryIDs)

	_, err = f.clips.AddToCategory(ctx, c.ID, "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("AddToCategory(missing): err = %v, want NOT_FOUND", err)
	}

	tagged, err := f.clips.GetClipsByTags(ctx, "MEETING")
	require.NoError(t, err)
	assert.Len(t, tagged, 1)

	c, err = f.clips.RemoveTag(ctx, c.ID, "meeting")
	require.NoError(t, err)
	assert.Empty(t, c.Tags)

	c, err = f.clips.RemoveFromCategory(ctx, c.ID, work.ID)
	require.NoError(t, err)
	assert.Empty(t, c.CategoryIDs)
}

func TestManager_CategoryCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	capacity := 1
	_, err := f.storage.UpdateSettings(ctx, domain.SettingsPatch{MaxClipsPerCategory: &capacity})
	require.NoError(t, err)

	full, err := f.categories.CreateCategory(ctx, category.CreateInput{Name: "Full"})
	require.NoError(t, err)

	first, err := f.clips.CreateClip(ctx, CreateInput{Text: "first clip in the category", CategoryIDs: []string{full.ID}})
	require.NoError(t, err)

	_, err = f.clips.CreateClip(ctx, CreateInput{Text: "second one should not fit", CategoryIDs: []string{full.ID}})
	if !errors.Is(err, errors.ErrConstraint) {
		t.Fatalf("create into full category: err = %v, want CONSTRAINT", err)
	}

	other := f.create(t, "unfiled clip waiting")
	_, err = f.clips.AddToCategory(ctx, other.ID, full.ID)
	if !errors.Is(err, errors.ErrConstraint) {
		t.Fatalf("add into full category: err = %v, want CONSTRAINT", err)
	}

	// Edits to a clip already in the category are unaffected.
	title := "still fine"
	_, err = f.clips.UpdateClip(ctx, first.ID, UpdateInput{Title: &title})
	require.NoError(t, err)
}

func TestManager_LimitAppliesBeforeSort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, "oldest alpha entry")
	middle := f.create(t, "middle bravo entry")
	newest := f.create(t, "newest charlie entry")

	got, err := f.clips.GetClips(ctx, Query{
		Filter: Filter{Limit: 2},
		Sort:   Sort{Field: SortCreatedAt, Order: OrderAsc},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{middle.ID, newest.ID}, clipIDs(got))

	recent, err := f.clips.GetRecentClips(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
	assert.Equal(t, newest.ID, recent[0].ID)
}

func TestManager_CacheFollowsWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, "first cached clip")
	before, err := f.clips.GetClips(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, before, 1)

	// Mutating the returned slice must not leak into the cache.
	before[0].Title = "changed by caller"

	f.create(t, "second clip arrives")
	after, err := f.clips.GetClips(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, after, 2)
	for _, c := range after {
		assert.NotEqual(t, "changed by caller", c.Title)
	}
}

func TestManager_DeleteOldAndByCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	work, err := f.categories.CreateCategory(ctx, category.CreateInput{Name: "Work"})
	require.NoError(t, err)

	f.create(t, "ancient history clip")
	f.clock.Advance(31 * 24 * time.Hour)
	f.create(t, "fresh clip from today")
	_, err = f.clips.CreateClip(ctx, CreateInput{Text: "filed work clip", CategoryIDs: []string{work.ID}})
	require.NoError(t, err)

	n, err := f.clips.DeleteOldClips(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.clips.DeleteClipsByCategory(ctx, work.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	left, err := f.clips.GetClips(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "fresh clip from today", left[0].Text)
}

func TestManager_ClipsInCategoryTree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	work, err := f.categories.CreateCategory(ctx, category.CreateInput{Name: "Work"})
	require.NoError(t, err)
	research, err := f.categories.CreateCategory(ctx, category.CreateInput{Name: "Research", ParentID: work.ID})
	require.NoError(t, err)

	deep, err := f.clips.CreateClip(ctx, CreateInput{Text: "a paper worth reading", CategoryIDs: []string{research.ID}})
	require.NoError(t, err)
	f.create(t, "unfiled thought")

	got, err := f.clips.GetClipsInCategoryTree(ctx, work.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, deep.ID, got[0].ID)

	direct, err := f.clips.GetClipsByCategory(ctx, work.ID)
	require.NoError(t, err)
	assert.Empty(t, direct)
}

func TestManager_FindSimilarAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	target := f.create(t, "go channels make concurrent programs easy to write")
	near := f.create(t, "go channels make concurrent code simple")
	f.create(t, "recipe for a lemon cake")

	similar, err := f.clips.FindSimilarClips(ctx, target.ID, 0)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, near.ID, similar[0].Clip.ID)
	assert.Greater(t, similar[0].Similarity, SimilarityFloor)

	stats, err := f.clips.GetClipStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalClips)
	assert.Equal(t, 3, stats.Sources["other"])
	assert.Equal(t, 3, stats.Languages["en"])
	assert.Equal(t, 3, stats.Importance["normal"])
	assert.Equal(t, 19, stats.TotalWords)
	assert.InDelta(t, 1.0, stats.AverageReadingTime, 1e-9)
}
