package web

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Kai-project-00/clipgo/internal/app"
	"github.com/Kai-project-00/clipgo/internal/category"
	"github.com/Kai-project-00/clipgo/internal/clip"
	"github.com/Kai-project-00/clipgo/internal/config"
	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/logger"
	"github.com/Kai-project-00/clipgo/internal/storage"
)

const markdownText = `## Objective
Build a user authentication system with **JWT** tokens.

- login endpoint
- refresh endpoint
`

func setupTest(t *testing.T) (*Handlers, *app.App) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DefaultCategories = nil
	a, err := app.New(context.Background(), app.Options{
		BaseDir: t.TempDir(),
		Config:  cfg,
		Logger:  logger.Discard(),
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}

	return &Handlers{
		clips:      a.Clips,
		categories: a.Categories,
		storage:    a.Storage,
		renderer:   NewRenderer(templateSub, "test", logger.Discard()),
	}, a
}

// seedClip stores a clip and returns it.
func seedClip(t *testing.T, a *app.App, in clip.CreateInput) domain.Clip {
	t.Helper()
	c, err := a.Clips.CreateClip(context.Background(), in)
	if err != nil {
		t.Fatalf("seed clip %q: %v", in.Title, err)
	}
	return c
}

func seedCategory(t *testing.T, a *app.App, name, parentID string) string {
	t.Helper()
	c, err := a.Categories.CreateCategory(context.Background(), category.CreateInput{Name: name, ParentID: parentID})
	if err != nil {
		t.Fatalf("seed category %q: %v", name, err)
	}
	return c.ID
}

// --- HandleClips ---

func TestHandleClips_Default(t *testing.T) {
	h, a := setupTest(t)
	seedClip(t, a, clip.CreateInput{Title: "alpha clip", Text: "first saved answer about goroutines"})

	req := httptest.NewRequest("GET", "/clips", nil)
	rec := httptest.NewRecorder()
	h.HandleClips(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "alpha clip") {
		t.Error("expected clip title 'alpha clip' in response")
	}
	if !strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("expected full layout")
	}
}

func TestHandleClips_Empty(t *testing.T) {
	h, _ := setupTest(t)

	req := httptest.NewRequest("GET", "/clips", nil)
	rec := httptest.NewRecorder()
	h.HandleClips(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No clips found") {
		t.Error("expected empty state message")
	}
}

func TestHandleClips_Search(t *testing.T) {
	h, a := setupTest(t)
	seedClip(t, a, clip.CreateInput{Title: "auth notes", Text: markdownText})
	seedClip(t, a, clip.CreateInput{Title: "recipe", Text: "slow cooked tomato sauce with basil"})

	req := httptest.NewRequest("GET", "/clips?q=authentication", nil)
	rec := httptest.NewRecorder()
	h.HandleClips(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "auth notes") {
		t.Error("expected matching clip in search results")
	}
	if strings.Contains(body, ">recipe<") {
		t.Error("did not expect non-matching clip in search results")
	}
}

func TestHandleClips_CategoryFilterCoversSubtree(t *testing.T) {
	h, a := setupTest(t)
	work := seedCategory(t, a, "Work", "")
	research := seedCategory(t, a, "Research", work)
	personal := seedCategory(t, a, "Personal", "")
	seedClip(t, a, clip.CreateInput{Title: "in-research", Text: "papers on consensus protocols", CategoryIDs: []string{research}})
	seedClip(t, a, clip.CreateInput{Title: "in-personal", Text: "birthday gift ideas for a friend", CategoryIDs: []string{personal}})

	req := httptest.NewRequest("GET", "/clips?category="+work, nil)
	rec := httptest.NewRecorder()
	h.HandleClips(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "in-research") {
		t.Error("expected clip from subcategory")
	}
	if strings.Contains(body, "in-personal") {
		t.Error("did not expect clip from another category")
	}
	if !strings.Contains(body, "Work/Research") {
		t.Error("expected category path badge")
	}
}

func TestHandleClips_UnknownCategory(t *testing.T) {
	h, _ := setupTest(t)

	req := httptest.NewRequest("GET", "/clips?category=NOPE", nil)
	rec := httptest.NewRecorder()
	h.HandleClips(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleClips_TagAndSourceFilter(t *testing.T) {
	h, a := setupTest(t)
	seedClip(t, a, clip.CreateInput{Title: "tagged", Text: "channels and select statements", Tags: []string{"go"}, URL: "https://claude.ai/chat/1"})
	seedClip(t, a, clip.CreateInput{Title: "untagged", Text: "notes on sourdough starters"})

	req := httptest.NewRequest("GET", "/clips?tag=go&source=claude", nil)
	rec := httptest.NewRecorder()
	h.HandleClips(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "tagged") || strings.Contains(body, "untagged") {
		t.Errorf("expected only the tagged claude clip, got body:\n%s", body)
	}
}

func TestHandleClips_InvalidSort(t *testing.T) {
	h, _ := setupTest(t)

	req := httptest.NewRequest("GET", "/clips?sort=length", nil)
	rec := httptest.NewRecorder()
	h.HandleClips(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleClips_HtmxTargetResults_ReturnsFragment(t *testing.T) {
	h, a := setupTest(t)
	seedClip(t, a, clip.CreateInput{Title: "frag-test", Text: markdownText})

	req := httptest.NewRequest("GET", "/clips?q=jwt", nil)
	req.Header.Set("HX-Request", "true")
	req.Header.Set("HX-Target", "results")
	rec := httptest.NewRecorder()
	h.HandleClips(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, `class="filters"`) {
		t.Error("results fragment should not contain the filter form")
	}
	if !strings.Contains(body, "frag-test") {
		t.Error("results fragment should contain the clip")
	}
}

func TestHandleClips_HtmxReturnsContentOnly(t *testing.T) {
	h, a := setupTest(t)
	seedClip(t, a, clip.CreateInput{Title: "htmx-test", Text: markdownText})

	req := httptest.NewRequest("GET", "/clips", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleClips(rec, req)

	body := rec.Body.String()
	if strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("htmx response should not contain full layout")
	}
	if !strings.Contains(body, "htmx-test") {
		t.Error("htmx response should contain clip data")
	}
}

// --- HandleDetail ---

func TestHandleDetail_Found(t *testing.T) {
	h, a := setupTest(t)
	c := seedClip(t, a, clip.CreateInput{Title: "detail-clip", Text: markdownText, Tags: []string{"auth"}})

	req := httptest.NewRequest("GET", "/clips/"+c.ID, nil)
	req.SetPathValue("id", c.ID)
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"detail-clip", "<h2>Objective</h2>", "<strong>JWT</strong>", "<li>login endpoint</li>", "Raw clip text", "#auth"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in detail page", want)
		}
	}
}

func TestHandleDetail_EscapesRawHTML(t *testing.T) {
	h, a := setupTest(t)
	c := seedClip(t, a, clip.CreateInput{Title: "xss", Text: "before <script>alert(1)</script> after"})

	req := httptest.NewRequest("GET", "/clips/"+c.ID, nil)
	req.SetPathValue("id", c.ID)
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "<script>alert(1)</script>") {
		t.Error("raw HTML in clip text must not reach the page")
	}
}

func TestHandleDetail_ListsSimilarClips(t *testing.T) {
	h, a := setupTest(t)
	base := seedClip(t, a, clip.CreateInput{Title: "fox one", Text: "the quick brown fox jumps over the lazy dog near the river bank today"})
	seedClip(t, a, clip.CreateInput{Title: "fox two", Text: "the quick brown fox jumps over the lazy cat near the river"})

	req := httptest.NewRequest("GET", "/clips/"+base.ID, nil)
	req.SetPathValue("id", base.ID)
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "Similar clips") || !strings.Contains(body, "fox two") {
		t.Error("expected similar clip section")
	}
}

func TestHandleDetail_NotFound(t *testing.T) {
	h, _ := setupTest(t)

	req := httptest.NewRequest("GET", "/clips/NONEXISTENT", nil)
	req.SetPathValue("id", "NONEXISTENT")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDetail_EmptyID(t *testing.T) {
	h, _ := setupTest(t)

	req := httptest.NewRequest("GET", "/clips/", nil)
	req.SetPathValue("id", "")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// --- HandleDelete ---

func TestHandleDelete_HtmxRequest(t *testing.T) {
	h, a := setupTest(t)
	c := seedClip(t, a, clip.CreateInput{Title: "del-htmx", Text: markdownText})

	req := httptest.NewRequest("DELETE", "/clips/"+c.ID, nil)
	req.SetPathValue("id", c.ID)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("HX-Redirect"); got != "/clips" {
		t.Errorf("HX-Redirect = %q, want /clips", got)
	}
	if _, err := a.Clips.GetClip(context.Background(), c.ID); err == nil {
		t.Error("clip should be gone after delete")
	}
}

func TestHandleDelete_JSONRequest(t *testing.T) {
	h, a := setupTest(t)
	c := seedClip(t, a, clip.CreateInput{Title: "del-json", Text: markdownText})

	req := httptest.NewRequest("DELETE", "/clips/"+c.ID, nil)
	req.SetPathValue("id", c.ID)
	req.Header.Set("Accept", "text/html, application/json")
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp["deleted"] != true || resp["id"] != c.ID {
		t.Errorf("response = %v, want deleted=true id=%s", resp, c.ID)
	}
}

func TestHandleDelete_DefaultRedirect(t *testing.T) {
	h, a := setupTest(t)
	c := seedClip(t, a, clip.CreateInput{Title: "del-form", Text: markdownText})

	req := httptest.NewRequest("POST", "/clips/"+c.ID+"/delete", nil)
	req.SetPathValue("id", c.ID)
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/clips" {
		t.Errorf("Location = %q, want /clips", got)
	}
}

func TestHandleDelete_NotFound_JSON(t *testing.T) {
	h, _ := setupTest(t)

	req := httptest.NewRequest("DELETE", "/clips/NONEXISTENT", nil)
	req.SetPathValue("id", "NONEXISTENT")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	errObj, ok := resp["error"].(map[string]any)
	if !ok {
		t.Fatal("expected error object in JSON response")
	}
	if errObj["code"] != "NOT_FOUND" {
		t.Errorf("error.code = %v, want NOT_FOUND", errObj["code"])
	}
}

// --- HandleCategories ---

func TestHandleCategories_Tree(t *testing.T) {
	h, a := setupTest(t)
	work := seedCategory(t, a, "Work", "")
	research := seedCategory(t, a, "Research", work)
	seedClip(t, a, clip.CreateInput{Title: "paper", Text: "raft and paxos compared", CategoryIDs: []string{research}})

	req := httptest.NewRequest("GET", "/categories", nil)
	rec := httptest.NewRecorder()
	h.HandleCategories(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Work") || !strings.Contains(body, "Research") {
		t.Error("expected both categories in tree")
	}
	if !strings.Contains(body, "1 with subcategories") {
		t.Error("expected subtree clip count on the parent")
	}
}

func TestHandleCategories_JSON(t *testing.T) {
	h, a := setupTest(t)
	work := seedCategory(t, a, "Work", "")
	seedCategory(t, a, "Research", work)

	req := httptest.NewRequest("GET", "/categories", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleCategories(rec, req)

	var resp struct {
		Tree  []*category.Node          `json:"tree"`
		Stats map[string]category.Stats `json:"stats"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(resp.Tree) != 1 || len(resp.Tree[0].Children) != 1 {
		t.Fatalf("tree = %+v, want one root with one child", resp.Tree)
	}
	if got := resp.Stats[work].SubcategoryCount; got != 1 {
		t.Errorf("subcategoryCount = %d, want 1", got)
	}
}

// --- HandleStorage ---

func TestHandleStorage_Page(t *testing.T) {
	h, a := setupTest(t)
	seedClip(t, a, clip.CreateInput{Text: markdownText})
	if _, err := a.Storage.CreateBackup(context.Background(), domain.BackupManual); err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}

	req := httptest.NewRequest("GET", "/storage", nil)
	rec := httptest.NewRecorder()
	h.HandleStorage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Usage", "healthy", "manual", "Settings"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in storage page", want)
		}
	}
}

func TestHandleStorage_JSON(t *testing.T) {
	h, a := setupTest(t)
	seedClip(t, a, clip.CreateInput{Text: markdownText})

	req := httptest.NewRequest("GET", "/storage", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleStorage(rec, req)

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	stats, ok := resp["statistics"].(map[string]any)
	if !ok {
		t.Fatal("expected statistics object")
	}
	if stats["totalClips"] != float64(1) {
		t.Errorf("totalClips = %v, want 1", stats["totalClips"])
	}
}

func TestHandleBackup_JSON(t *testing.T) {
	h, a := setupTest(t)

	req := httptest.NewRequest("POST", "/storage/backups", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleBackup(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var created struct {
		ID     string `json:"id"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if created.Reason != domain.BackupManual {
		t.Errorf("reason = %q, want %q", created.Reason, domain.BackupManual)
	}

	// Init may already have taken an automatic backup; only manual ones count.
	backups, err := a.Storage.ListBackups(context.Background())
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	var manual []storage.BackupInfo
	for _, b := range backups {
		if b.Reason == domain.BackupManual {
			manual = append(manual, b)
		}
	}
	if len(manual) != 1 || manual[0].ID != created.ID {
		t.Errorf("manual backups = %+v, want just %s", manual, created.ID)
	}
}

// --- HandleCleanup ---

func TestHandleCleanup_MissingConfirm(t *testing.T) {
	h, _ := setupTest(t)

	req := httptest.NewRequest("POST", "/storage/cleanup", nil)
	rec := httptest.NewRecorder()
	h.HandleCleanup(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleCleanup_JSONResponse(t *testing.T) {
	h, _ := setupTest(t)

	form := url.Values{"confirm": {"true"}}
	req := httptest.NewRequest("POST", "/storage/cleanup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleCleanup(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp["removed"] != float64(0) {
		t.Errorf("removed = %v, want 0 with auto cleanup off", resp["removed"])
	}
}

func TestHandleCleanup_HtmxResponse(t *testing.T) {
	h, _ := setupTest(t)

	form := url.Values{"confirm": {"true"}}
	req := httptest.NewRequest("POST", "/storage/cleanup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleCleanup(rec, req)

	if !strings.Contains(rec.Body.String(), `<div class="cleanup-result">Removed 0 clips</div>`) {
		t.Errorf("body = %q, want cleanup-result fragment", rec.Body.String())
	}
}

// --- Error rendering ---

func TestErrorRendering_HtmxFragment(t *testing.T) {
	h, _ := setupTest(t)

	req := httptest.NewRequest("GET", "/clips/NONEXISTENT", nil)
	req.SetPathValue("id", "NONEXISTENT")
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "error-message") {
		t.Error("expected error-message div in htmx error response")
	}
	if strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("htmx error should not contain full layout")
	}
}

func TestErrorRendering_FullErrorPage(t *testing.T) {
	h, _ := setupTest(t)

	req := httptest.NewRequest("GET", "/clips/NONEXISTENT", nil)
	req.SetPathValue("id", "NONEXISTENT")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("full error page should contain layout")
	}
	if !strings.Contains(body, "404") {
		t.Error("error page should show status code")
	}
}

// --- Routing ---

func TestRoutes(t *testing.T) {
	_, a := setupTest(t)
	handler, err := newHandler(a, "test")
	if err != nil {
		t.Fatalf("newHandler: %v", err)
	}
	c := seedClip(t, a, clip.CreateInput{Title: "routed", Text: markdownText})

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"GET", "/", http.StatusFound},
		{"GET", "/clips", http.StatusOK},
		{"GET", "/clips/" + c.ID, http.StatusOK},
		{"GET", "/categories", http.StatusOK},
		{"GET", "/storage", http.StatusOK},
		{"GET", "/static/style.css", http.StatusOK},
		{"GET", "/static/app.js", http.StatusOK},
		{"PUT", "/clips/" + c.ID, http.StatusMethodNotAllowed},
		{"DELETE", "/clips/" + c.ID, http.StatusSeeOther},
		{"GET", "/clips/" + c.ID, http.StatusNotFound},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tt.status {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, rec.Code, tt.status)
		}
		if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
			t.Errorf("%s %s: X-Frame-Options = %q, want DENY", tt.method, tt.path, got)
		}
	}
}

// --- Helper functions ---

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query    string
		name     string
		def      int
		expected int
	}{
		{"", "limit", 100, 100},
		{"limit=50", "limit", 100, 50},
		{"limit=bad", "limit", 100, 100},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/?"+tt.query, nil)
		got := parseIntParam(req, tt.name, tt.def)
		if got != tt.expected {
			t.Errorf("parseIntParam(%q, %q, %d) = %d, want %d", tt.query, tt.name, tt.def, got, tt.expected)
		}
	}
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		in       string
		n        int
		expected string
	}{
		{"short", 10, "short"},
		{"line one\n\nline   two", 20, "line one line two"},
		{"안녕하세요 세계", 3, "안녕하…"},
	}
	for _, tt := range tests {
		if got := excerpt(tt.in, tt.n); got != tt.expected {
			t.Errorf("excerpt(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.expected)
		}
	}
}

func TestFormatTime(t *testing.T) {
	if got := formatTime(1700000000000); got != "2023-11-14 22:13" {
		t.Errorf("formatTime = %q, want 2023-11-14 22:13", got)
	}
}
