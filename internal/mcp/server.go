// Package mcp exposes the clip, category and storage managers as MCP tools
// over stdio, so AI assistants can save and look up clips.
package mcp

import (
	"context"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Kai-project-00/clipgo/internal/app"
)

// KnownTypes lists the tool name prefixes.
var KnownTypes = []string{"clip", "category", "storage", "settings"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"clip_create":     {clipCreateToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleClipCreate }},
	"clip_get":        {clipGetToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleClipGet }},
	"clip_list":       {clipListToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleClipList }},
	"clip_search":     {clipSearchToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleClipSearch }},
	"clip_recent":     {clipRecentToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleClipRecent }},
	"clip_update":     {clipUpdateToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleClipUpdate }},
	"clip_tag":        {clipTagToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleClipTag }},
	"clip_categorize": {clipCategorizeToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleClipCategorize }},
	"clip_delete":     {clipDeleteToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleClipDelete }},
	"clip_delete_old": {clipDeleteOldToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleClipDeleteOld }},
	"clip_similar":    {clipSimilarToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleClipSimilar }},
	"clip_stats":      {clipStatsToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleClipStats }},

	"category_create":  {categoryCreateToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleCategoryCreate }},
	"category_get":     {categoryGetToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleCategoryGet }},
	"category_tree":    {categoryTreeToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleCategoryTree }},
	"category_update":  {categoryUpdateToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleCategoryUpdate }},
	"category_move":    {categoryMoveToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleCategoryMove }},
	"category_reorder": {categoryReorderToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleCategoryReorder }},
	"category_delete":  {categoryDeleteToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleCategoryDelete }},
	"category_search":  {categorySearchToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleCategorySearch }},
	"category_stats":   {categoryStatsToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleCategoryStats }},

	"storage_info":       {storageInfoToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleStorageInfo }},
	"storage_quota":      {storageQuotaToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleStorageQuota }},
	"storage_duplicates": {storageDuplicatesToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleStorageDuplicates }},
	"storage_cleanup":    {storageCleanupToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleStorageCleanup }},
	"storage_backup":     {storageBackupToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleStorageBackup }},
	"storage_backups":    {storageBackupsToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleStorageBackups }},
	"storage_restore":    {storageRestoreToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleStorageRestore }},
	"storage_export":     {storageExportToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleStorageExport }},
	"storage_import":     {storageImportToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleStorageImport }},

	"settings_get":    {settingsGetToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleSettingsGet }},
	"settings_update": {settingsUpdateToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleSettingsUpdate }},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "clip_create" → "clip").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// NewServer creates an MCP server with the ClipGo tools registered. Tools
// listed in the config's disabled_tools are skipped; unknown names there are
// logged.
func NewServer(a *app.App, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"clipgo",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(a)

	disabled := make(map[string]bool)
	for _, name := range a.Config.DisabledTools {
		disabled[name] = true
	}
	if unknown := ValidateDisabledTools(a.Config.DisabledTools); len(unknown) > 0 {
		a.Logger.Warn("unknown tools in disabled_tools", "tools", unknown)
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run serves MCP over stdio until the client disconnects.
func Run(a *app.App, version string) error {
	s := NewServer(a, version)
	a.Logger.Info("mcp server starting", "version", version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
