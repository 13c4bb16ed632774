package web

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/Kai-project-00/clipgo/internal/category"
	"github.com/Kai-project-00/clipgo/internal/clip"
	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/errors"
	"github.com/Kai-project-00/clipgo/internal/storage"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	clips      *clip.Manager
	categories *category.Manager
	storage    *storage.Manager
	renderer   *Renderer
}

// HandleClips handles GET /clips: list clips, optionally filtered and searched.
// A category filter covers the category's whole subtree.
func (h *Handlers) HandleClips(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	data := ClipsPageData{
		PageData: PageData{
			Title:   "Clips",
			Version: h.renderer.version,
			Nav:     "clips",
		},
		Query:      params.Get("q"),
		CategoryID: params.Get("category"),
		Tag:        params.Get("tag"),
		Source:     params.Get("source"),
		Importance: params.Get("importance"),
		Sort:       params.Get("sort"),
		Order:      params.Get("order"),
	}

	s, err := clip.ParseSort(data.Sort, data.Order)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	q := clip.Query{
		Filter: clip.Filter{
			Source:     domain.Source(data.Source),
			Importance: domain.Importance(data.Importance),
			Limit:      parseIntParam(r, "limit", 100),
		},
		Sort: s,
	}
	if data.Tag != "" {
		q.Tags = []string{data.Tag}
	}
	if data.CategoryID != "" {
		ids, err := h.categories.GetSubtreeIDs(r.Context(), data.CategoryID)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		q.CategoryIDs = ids
	}

	if data.Query != "" {
		data.Items, err = h.clips.SearchClips(r.Context(), data.Query, q)
	} else {
		data.Items, err = h.clips.GetClips(r.Context(), q)
	}
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	tree, err := h.categories.GetCategoryTree(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	data.Categories = flatten(tree)
	data.CategoryNames = pathNames(data.Categories)
	if data.Query != "" {
		data.Title = "Search: " + data.Query
	}

	// Live search swaps only the result list.
	if r.Header.Get("HX-Target") == "results" {
		h.renderer.renderBlock(w, http.StatusOK, "clips", "clip-results", data)
		return
	}
	h.renderer.renderPage(w, r, "clips", data)
}

// HandleDetail handles GET /clips/{id}: one clip with its text rendered as markdown.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("clip id is required"))
		return
	}

	c, err := h.clips.GetClip(r.Context(), id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	similar, err := h.clips.FindSimilarClips(r.Context(), id, clip.DefaultSimilarLimit)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	tree, err := h.categories.GetCategoryTree(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   c.Title,
			Version: h.renderer.version,
			Nav:     "clips",
		},
		Clip:          c,
		RenderedHTML:  renderMarkdown(c.Text),
		CategoryNames: pathNames(flatten(tree)),
		Similar:       similar,
	})
}

// HandleDelete handles DELETE /clips/{id} and POST /clips/{id}/delete.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("clip id is required"))
		return
	}

	if err := h.clips.DeleteClip(r.Context(), id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/clips")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"deleted": true,
			"id":      id,
		})
		return
	}

	http.Redirect(w, r, "/clips", http.StatusSeeOther)
}

// HandleCategories handles GET /categories: the category tree with clip counts.
func (h *Handlers) HandleCategories(w http.ResponseWriter, r *http.Request) {
	tree, err := h.categories.GetCategoryTree(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	stats, err := h.categories.GetAllStats(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"tree":  tree,
			"stats": stats,
		})
		return
	}

	h.renderer.renderPage(w, r, "categories", CategoriesPageData{
		PageData: PageData{
			Title:   "Categories",
			Version: h.renderer.version,
			Nav:     "categories",
		},
		Tree: categoryViews(tree, stats),
	})
}

// HandleStorage handles GET /storage: usage, quota tier, backups and settings.
func (h *Handlers) HandleStorage(w http.ResponseWriter, r *http.Request) {
	info, err := h.storage.GetStorageInfo(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, info)
		return
	}

	backups, err := h.storage.ListBackups(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	settings, err := h.storage.GetSettings(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "storage", StoragePageData{
		PageData: PageData{
			Title:   "Storage",
			Version: h.renderer.version,
			Nav:     "storage",
		},
		Info:     info,
		Backups:  backups,
		Settings: settings,
	})
}

// HandleBackup handles POST /storage/backups: create a manual backup.
func (h *Handlers) HandleBackup(w http.ResponseWriter, r *http.Request) {
	b, err := h.storage.CreateBackup(r.Context(), domain.BackupManual)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if isHTMX(r) {
		writeFragment(w, "backup-result", "Created backup "+b.ID)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusCreated, map[string]any{
			"id":        b.ID,
			"timestamp": b.Timestamp,
			"reason":    b.Reason,
		})
		return
	}

	http.Redirect(w, r, "/storage", http.StatusSeeOther)
}

// HandleCleanup handles POST /storage/cleanup: run the age-based auto cleanup.
// It requires confirm=true and does nothing unless autoCleanup is enabled.
func (h *Handlers) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest(`confirm parameter must be "true"`))
		return
	}

	removed, err := h.storage.PerformAutoCleanup(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	message := fmt.Sprintf("Removed %d clips", len(removed))

	if isHTMX(r) {
		writeFragment(w, "cleanup-result", message)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"removed": len(removed),
			"message": message,
		})
		return
	}

	http.Redirect(w, r, "/storage", http.StatusSeeOther)
}

func writeFragment(w http.ResponseWriter, class, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `<div class="%s">%s</div>`, class, template.HTMLEscapeString(message))
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// flatten lists tree nodes depth-first, parents before children.
func flatten(roots []*category.Node) []*category.Node {
	var out []*category.Node
	var walk func(nodes []*category.Node)
	walk = func(nodes []*category.Node) {
		for _, n := range nodes {
			out = append(out, n)
			walk(n.Children)
		}
	}
	walk(roots)
	return out
}

// pathNames maps category ids to their slash-joined path.
func pathNames(nodes []*category.Node) map[string]string {
	names := make(map[string]string, len(nodes))
	for _, n := range nodes {
		names[n.ID] = n.Path
	}
	return names
}
