package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Kai-project-00/clipgo/internal/app"
	"github.com/Kai-project-00/clipgo/internal/category"
	"github.com/Kai-project-00/clipgo/internal/clip"
	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/errors"
	"github.com/Kai-project-00/clipgo/internal/storage"
	"github.com/Kai-project-00/clipgo/internal/transfer"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	clips      *clip.Manager
	categories *category.Manager
	storage    *storage.Manager
	files      *transfer.Files
}

// NewHandlers creates handlers over the managers of a.
func NewHandlers(a *app.App) *Handlers {
	return &Handlers{
		clips:      a.Clips,
		categories: a.Categories,
		storage:    a.Storage,
		files:      a.Files,
	}
}

// Request types for each tool

// ClipCreateRequest represents the arguments for clip_create.
type ClipCreateRequest struct {
	Text          string   `json:"text"`
	Title         string   `json:"title,omitempty"`
	URL           string   `json:"url,omitempty"`
	Source        string   `json:"source,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	CategoryIDs   []string `json:"category_ids,omitempty"`
	Importance    string   `json:"importance,omitempty"`
	Language      string   `json:"language,omitempty"`
	FromSelection bool     `json:"from_selection,omitempty"`
}

// IDRequest is the argument of tools addressing one record.
type IDRequest struct {
	ID string `json:"id"`
}

// ClipListRequest represents the arguments for clip_list and clip_search.
type ClipListRequest struct {
	Query       string   `json:"query,omitempty"`
	CategoryIDs []string `json:"category_ids,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Source      string   `json:"source,omitempty"`
	Importance  string   `json:"importance,omitempty"`
	Language    string   `json:"language,omitempty"`
	DateFrom    int64    `json:"date_from,omitempty"`
	DateTo      int64    `json:"date_to,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	SortBy      string   `json:"sort_by,omitempty"`
	Order       string   `json:"order,omitempty"`
}

func (r ClipListRequest) query() (clip.Query, error) {
	s, err := clip.ParseSort(r.SortBy, r.Order)
	if err != nil {
		return clip.Query{}, err
	}
	return clip.Query{
		Filter: clip.Filter{
			SearchQuery: r.Query,
			CategoryIDs: r.CategoryIDs,
			Tags:        r.Tags,
			Source:      domain.Source(r.Source),
			Importance:  domain.Importance(r.Importance),
			Language:    r.Language,
			DateFrom:    r.DateFrom,
			DateTo:      r.DateTo,
			Limit:       r.Limit,
		},
		Sort: s,
	}, nil
}

// LimitRequest carries an optional limit.
type LimitRequest struct {
	ID    string `json:"id,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// ClipUpdateRequest represents the arguments for clip_update.
type ClipUpdateRequest struct {
	ID          string    `json:"id"`
	Text        *string   `json:"text,omitempty"`
	Title       *string   `json:"title,omitempty"`
	URL         *string   `json:"url,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	CategoryIDs *[]string `json:"category_ids,omitempty"`
	Importance  *string   `json:"importance,omitempty"`
	Language    *string   `json:"language,omitempty"`
}

// ChangeSetRequest adds and removes members of a clip's tags or categories.
type ChangeSetRequest struct {
	ID     string   `json:"id"`
	Add    []string `json:"add,omitempty"`
	Remove []string `json:"remove,omitempty"`
}

// ClipDeleteRequest represents the arguments for clip_delete.
type ClipDeleteRequest struct {
	ID         string `json:"id,omitempty"`
	CategoryID string `json:"category_id,omitempty"`
}

// ClipDeleteOldRequest represents the arguments for clip_delete_old.
type ClipDeleteOldRequest struct {
	Days int `json:"days,omitempty"`
}

// CategoryCreateRequest represents the arguments for category_create.
type CategoryCreateRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
	Color    string `json:"color,omitempty"`
	Order    *int   `json:"order,omitempty"`
}

// CategoryUpdateRequest represents the arguments for category_update.
type CategoryUpdateRequest struct {
	ID    string  `json:"id"`
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
	Order *int    `json:"order,omitempty"`
}

// CategoryMoveRequest represents the arguments for category_move.
type CategoryMoveRequest struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
}

// CategoryReorderRequest represents the arguments for category_reorder.
type CategoryReorderRequest struct {
	ParentID string   `json:"parent_id,omitempty"`
	IDs      []string `json:"ids"`
}

// CategoryDeleteRequest represents the arguments for category_delete.
type CategoryDeleteRequest struct {
	ID           string `json:"id"`
	WithChildren bool   `json:"with_children,omitempty"`
}

// QueryRequest carries a search string.
type QueryRequest struct {
	Query string `json:"query"`
}

// DuplicatesRequest represents the arguments for storage_duplicates.
type DuplicatesRequest struct {
	Threshold float64 `json:"threshold,omitempty"`
}

// PathRequest carries a file path.
type PathRequest struct {
	Path string `json:"path,omitempty"`
}

// SettingsUpdateRequest represents the arguments for settings_update.
type SettingsUpdateRequest struct {
	Language            *string `json:"language,omitempty"`
	Theme               *string `json:"theme,omitempty"`
	BackupEnabled       *bool   `json:"backup_enabled,omitempty"`
	AutoBackupInterval  *int64  `json:"auto_backup_interval,omitempty"`
	MaxClipsPerCategory *int    `json:"max_clips_per_category,omitempty"`
	CompressData        *bool   `json:"compress_data,omitempty"`
	AutoCleanup         *bool   `json:"auto_cleanup,omitempty"`
}

// Output types

// ClipsOutput is a list of clips.
type ClipsOutput struct {
	Items []domain.Clip `json:"items"`
	Count int           `json:"count"`
}

func clipsOutput(clips []domain.Clip) ClipsOutput {
	if clips == nil {
		clips = []domain.Clip{}
	}
	return ClipsOutput{Items: clips, Count: len(clips)}
}

// CategoriesOutput is a list of categories.
type CategoriesOutput struct {
	Items []domain.Category `json:"items"`
	Count int               `json:"count"`
}

func categoriesOutput(cats []domain.Category) CategoriesOutput {
	if cats == nil {
		cats = []domain.Category{}
	}
	return CategoriesOutput{Items: cats, Count: len(cats)}
}

// DeletedOutput reports how many records a delete removed.
type DeletedOutput struct {
	Deleted int      `json:"deleted"`
	IDs     []string `json:"ids,omitempty"`
}

// CategoryDetail is the output of category_get.
type CategoryDetail struct {
	Category domain.Category   `json:"category"`
	Path     []string          `json:"path"`
	Depth    int               `json:"depth"`
	Children []domain.Category `json:"children"`
	Stats    category.Stats    `json:"stats"`
}

// Clip handlers

// HandleClipCreate handles the clip_create tool call.
func (h *Handlers) HandleClipCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClipCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var result domain.Clip
	if input.FromSelection {
		result, err = h.clips.CreateClipFromSelection(ctx, input.Text, input.URL, input.Title, clip.SelectionOptions{
			Tags:        input.Tags,
			CategoryIDs: input.CategoryIDs,
			Importance:  domain.Importance(input.Importance),
		})
	} else {
		result, err = h.clips.CreateClip(ctx, clip.CreateInput{
			Text:        input.Text,
			Title:       input.Title,
			URL:         input.URL,
			Source:      domain.Source(input.Source),
			Tags:        input.Tags,
			CategoryIDs: input.CategoryIDs,
			Importance:  domain.Importance(input.Importance),
			Language:    input.Language,
		})
	}
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleClipGet handles the clip_get tool call.
func (h *Handlers) HandleClipGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeID(req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.clips.GetClip(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleClipList handles the clip_list tool call.
func (h *Handlers) HandleClipList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClipListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	q, err := input.query()
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.clips.GetClips(ctx, q)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(clipsOutput(result))
}

// HandleClipSearch handles the clip_search tool call.
func (h *Handlers) HandleClipSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClipListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Query == "" {
		return errorResult(errors.NewInvalidRequest("query is required")), nil
	}
	q, err := input.query()
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.clips.SearchClips(ctx, input.Query, q)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(clipsOutput(result))
}

// HandleClipRecent handles the clip_recent tool call.
func (h *Handlers) HandleClipRecent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LimitRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.clips.GetRecentClips(ctx, input.Limit)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(clipsOutput(result))
}

// HandleClipUpdate handles the clip_update tool call.
func (h *Handlers) HandleClipUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClipUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	update := clip.UpdateInput{
		Text:     input.Text,
		Title:    input.Title,
		URL:      input.URL,
		Language: input.Language,
	}
	if input.Tags != nil {
		update.Tags = nonNil(*input.Tags)
	}
	if input.CategoryIDs != nil {
		update.CategoryIDs = nonNil(*input.CategoryIDs)
	}
	if input.Importance != nil {
		imp := domain.Importance(*input.Importance)
		update.Importance = &imp
	}

	result, err := h.clips.UpdateClip(ctx, input.ID, update)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleClipTag handles the clip_tag tool call.
func (h *Handlers) HandleClipTag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.changeSet(ctx, req, h.clips.AddTag, h.clips.RemoveTag)
}

// HandleClipCategorize handles the clip_categorize tool call.
func (h *Handlers) HandleClipCategorize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.changeSet(ctx, req, h.clips.AddToCategory, h.clips.RemoveFromCategory)
}

type clipEdit func(ctx context.Context, clipID, value string) (domain.Clip, error)

func (h *Handlers) changeSet(ctx context.Context, req mcp.CallToolRequest, add, remove clipEdit) (*mcp.CallToolResult, error) {
	input, err := decode[ChangeSetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}
	if len(input.Add) == 0 && len(input.Remove) == 0 {
		return errorResult(errors.NewInvalidRequest("add or remove is required")), nil
	}

	var result domain.Clip
	for _, v := range input.Add {
		if result, err = add(ctx, input.ID, v); err != nil {
			return errorResult(err), nil
		}
	}
	for _, v := range input.Remove {
		if result, err = remove(ctx, input.ID, v); err != nil {
			return errorResult(err), nil
		}
	}

	return successResult(result)
}

// HandleClipDelete handles the clip_delete tool call.
func (h *Handlers) HandleClipDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClipDeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	switch {
	case input.ID != "" && input.CategoryID != "":
		return errorResult(errors.NewInvalidRequest("id and category_id are mutually exclusive")), nil
	case input.ID != "":
		if err := h.clips.DeleteClip(ctx, input.ID); err != nil {
			return errorResult(err), nil
		}
		return successResult(DeletedOutput{Deleted: 1, IDs: []string{input.ID}})
	case input.CategoryID != "":
		n, err := h.clips.DeleteClipsByCategory(ctx, input.CategoryID)
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(DeletedOutput{Deleted: n})
	default:
		return errorResult(errors.NewInvalidRequest("id or category_id is required")), nil
	}
}

// HandleClipDeleteOld handles the clip_delete_old tool call.
func (h *Handlers) HandleClipDeleteOld(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClipDeleteOldRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Days < 0 {
		return errorResult(errors.NewInvalidRequest("days must be non-negative")), nil
	}

	n, err := h.clips.DeleteOldClips(ctx, input.Days)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(DeletedOutput{Deleted: n})
}

// HandleClipSimilar handles the clip_similar tool call.
func (h *Handlers) HandleClipSimilar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LimitRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	result, err := h.clips.FindSimilarClips(ctx, input.ID, input.Limit)
	if err != nil {
		return errorResult(err), nil
	}
	if result == nil {
		result = []clip.Similar{}
	}

	return successResult(map[string]any{"items": result, "count": len(result)})
}

// HandleClipStats handles the clip_stats tool call.
func (h *Handlers) HandleClipStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.clips.GetClipStats(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Category handlers

// HandleCategoryCreate handles the category_create tool call.
func (h *Handlers) HandleCategoryCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CategoryCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.categories.CreateCategory(ctx, category.CreateInput{
		Name:     input.Name,
		ParentID: input.ParentID,
		Color:    input.Color,
		Order:    input.Order,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCategoryGet handles the category_get tool call.
func (h *Handlers) HandleCategoryGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeID(req)
	if err != nil {
		return errorResult(err), nil
	}

	c, err := h.categories.GetCategory(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	path, err := h.categories.GetCategoryPath(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	children, err := h.categories.GetChildren(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	stats, err := h.categories.GetCategoryStats(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	names := make([]string, len(path))
	for i, p := range path {
		names[i] = p.Name
	}
	if children == nil {
		children = []domain.Category{}
	}
	return successResult(CategoryDetail{
		Category: c,
		Path:     names,
		Depth:    len(path),
		Children: children,
		Stats:    stats,
	})
}

// HandleCategoryTree handles the category_tree tool call.
func (h *Handlers) HandleCategoryTree(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tree, err := h.categories.GetCategoryTree(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"roots": tree})
}

// HandleCategoryUpdate handles the category_update tool call.
func (h *Handlers) HandleCategoryUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CategoryUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	result, err := h.categories.UpdateCategory(ctx, input.ID, category.UpdateInput{
		Name:  input.Name,
		Color: input.Color,
		Order: input.Order,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCategoryMove handles the category_move tool call.
func (h *Handlers) HandleCategoryMove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CategoryMoveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	result, err := h.categories.MoveCategory(ctx, input.ID, input.ParentID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCategoryReorder handles the category_reorder tool call.
func (h *Handlers) HandleCategoryReorder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CategoryReorderRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if len(input.IDs) == 0 {
		return errorResult(errors.NewInvalidRequest("ids is required")), nil
	}

	result, err := h.categories.ReorderCategories(ctx, input.ParentID, input.IDs)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(categoriesOutput(result))
}

// HandleCategoryDelete handles the category_delete tool call.
func (h *Handlers) HandleCategoryDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CategoryDeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	if !input.WithChildren {
		if err := h.categories.DeleteCategory(ctx, input.ID); err != nil {
			return errorResult(err), nil
		}
		return successResult(DeletedOutput{Deleted: 1, IDs: []string{input.ID}})
	}

	removed, err := h.categories.DeleteCategoryWithChildren(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	ids := make([]string, len(removed))
	for i, c := range removed {
		ids[i] = c.ID
	}
	return successResult(DeletedOutput{Deleted: len(ids), IDs: ids})
}

// HandleCategorySearch handles the category_search tool call.
func (h *Handlers) HandleCategorySearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[QueryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.categories.SearchCategories(ctx, input.Query)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(categoriesOutput(result))
}

// HandleCategoryStats handles the category_stats tool call.
func (h *Handlers) HandleCategoryStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if input.ID != "" {
		result, err := h.categories.GetCategoryStats(ctx, input.ID)
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(result)
	}

	result, err := h.categories.GetAllStats(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Storage handlers

// HandleStorageInfo handles the storage_info tool call.
func (h *Handlers) HandleStorageInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.storage.GetStorageInfo(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleStorageQuota handles the storage_quota tool call.
func (h *Handlers) HandleStorageQuota(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.storage.CheckStorageQuota(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleStorageDuplicates handles the storage_duplicates tool call.
func (h *Handlers) HandleStorageDuplicates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DuplicatesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Threshold < 0 || input.Threshold > 1 {
		return errorResult(errors.NewInvalidRequest("threshold must be between 0 and 1")), nil
	}

	pairs, err := h.storage.FindDuplicateClips(ctx, input.Threshold)
	if err != nil {
		return errorResult(err), nil
	}
	if pairs == nil {
		pairs = []storage.DuplicatePair{}
	}

	return successResult(map[string]any{"pairs": pairs, "count": len(pairs)})
}

// HandleStorageCleanup handles the storage_cleanup tool call.
func (h *Handlers) HandleStorageCleanup(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	removed, err := h.storage.PerformAutoCleanup(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	ids := make([]string, len(removed))
	for i, c := range removed {
		ids[i] = c.ID
	}
	return successResult(DeletedOutput{Deleted: len(ids), IDs: ids})
}

// HandleStorageBackup handles the storage_backup tool call.
func (h *Handlers) HandleStorageBackup(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := h.storage.CreateBackup(ctx, domain.BackupManual)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(storage.BackupInfo{
		ID:        b.ID,
		Timestamp: b.Timestamp,
		Version:   b.Version,
		Reason:    b.Reason,
		Size:      len(b.Data),
	})
}

// HandleStorageBackups handles the storage_backups tool call.
func (h *Handlers) HandleStorageBackups(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.storage.ListBackups(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	if result == nil {
		result = []storage.BackupInfo{}
	}

	return successResult(map[string]any{"items": result, "count": len(result)})
}

// HandleStorageRestore handles the storage_restore tool call.
func (h *Handlers) HandleStorageRestore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeID(req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.storage.RestoreBackup(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleStorageExport handles the storage_export tool call.
func (h *Handlers) HandleStorageExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PathRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.files.Export(ctx, input.Path)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleStorageImport handles the storage_import tool call.
func (h *Handlers) HandleStorageImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PathRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Path == "" {
		return errorResult(errors.NewInvalidRequest("path is required")), nil
	}

	result, err := h.files.Import(ctx, input.Path)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSettingsGet handles the settings_get tool call.
func (h *Handlers) HandleSettingsGet(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.storage.GetSettings(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSettingsUpdate handles the settings_update tool call.
func (h *Handlers) HandleSettingsUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SettingsUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.storage.UpdateSettings(ctx, domain.SettingsPatch{
		Language:            input.Language,
		Theme:               input.Theme,
		BackupEnabled:       input.BackupEnabled,
		AutoBackupInterval:  input.AutoBackupInterval,
		MaxClipsPerCategory: input.MaxClipsPerCategory,
		CompressData:        input.CompressData,
		AutoCleanup:         input.AutoCleanup,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

func decodeID(req mcp.CallToolRequest) (IDRequest, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return input, errors.NewInvalidRequest(err.Error())
	}
	if input.ID == "" {
		return input, errors.NewInvalidRequest("id is required")
	}
	return input, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if clipErr, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    clipErr.Code,
			"message": errors.Message(err),
			"status":  clipErr.Status,
		}
		if clipErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if clipErr.Details != nil {
			errorObj["details"] = clipErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
