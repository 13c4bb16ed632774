package mcp

import "github.com/mark3labs/mcp-go/mcp"

var stringItems = map[string]any{"type": "string"}

// Shared filter arguments of clip_list and clip_search.
var clipFilterOptions = []mcp.ToolOption{
	mcp.WithArray("category_ids", mcp.Items(stringItems), mcp.Description("Match clips in any of these categories")),
	mcp.WithArray("tags", mcp.Items(stringItems), mcp.Description("Match clips carrying any of these tags")),
	mcp.WithString("source", mcp.Enum("chatgpt", "claude", "other")),
	mcp.WithString("importance", mcp.Enum("high", "normal", "low")),
	mcp.WithString("language", mcp.Description(`Language code; "unknown" matches clips without one`)),
	mcp.WithNumber("date_from", mcp.Description("Earliest createdAt, Unix milliseconds")),
	mcp.WithNumber("date_to", mcp.Description("Latest createdAt, Unix milliseconds")),
	mcp.WithNumber("limit", mcp.Description("Keep at most this many of the newest matches")),
	mcp.WithString("sort_by", mcp.Enum("createdAt", "updatedAt", "title", "source", "importance")),
	mcp.WithString("order", mcp.Enum("asc", "desc")),
}

var (
	clipCreateToolDef = mcp.NewTool("clip_create",
		mcp.WithDescription("Save a clip. Fails with DUPLICATE when a stored clip has the same text or a very similar one."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Clip text")),
		mcp.WithString("title", mcp.Description("Title; generated from the text when omitted")),
		mcp.WithString("url", mcp.Description("Page the text came from; sets the source")),
		mcp.WithString("source", mcp.Enum("chatgpt", "claude", "other")),
		mcp.WithArray("tags", mcp.Items(stringItems)),
		mcp.WithArray("category_ids", mcp.Items(stringItems)),
		mcp.WithString("importance", mcp.Enum("high", "normal", "low")),
		mcp.WithString("language", mcp.Description("Language code; detected when omitted")),
		mcp.WithBoolean("from_selection", mcp.Description("Treat text as a page selection and add automatic tags")),
	)

	clipGetToolDef = mcp.NewTool("clip_get",
		mcp.WithDescription("Get a clip by id"),
		mcp.WithString("id", mcp.Required()),
	)

	clipListToolDef = mcp.NewTool("clip_list", append([]mcp.ToolOption{
		mcp.WithDescription("List clips matching optional filters"),
	}, clipFilterOptions...)...)

	clipSearchToolDef = mcp.NewTool("clip_search", append([]mcp.ToolOption{
		mcp.WithDescription("Search clip titles, texts and tags (case-insensitive substring)"),
		mcp.WithString("query", mcp.Required()),
	}, clipFilterOptions...)...)

	clipRecentToolDef = mcp.NewTool("clip_recent",
		mcp.WithDescription("Most recently created clips"),
		mcp.WithNumber("limit", mcp.Description("Default 10")),
	)

	clipUpdateToolDef = mcp.NewTool("clip_update",
		mcp.WithDescription("Change fields of a clip. Omitted fields are left alone; arrays replace the stored ones."),
		mcp.WithString("id", mcp.Required()),
		mcp.WithString("text"),
		mcp.WithString("title"),
		mcp.WithString("url"),
		mcp.WithArray("tags", mcp.Items(stringItems)),
		mcp.WithArray("category_ids", mcp.Items(stringItems)),
		mcp.WithString("importance", mcp.Enum("high", "normal", "low")),
		mcp.WithString("language"),
	)

	clipTagToolDef = mcp.NewTool("clip_tag",
		mcp.WithDescription("Add and remove tags on a clip"),
		mcp.WithString("id", mcp.Required()),
		mcp.WithArray("add", mcp.Items(stringItems)),
		mcp.WithArray("remove", mcp.Items(stringItems)),
	)

	clipCategorizeToolDef = mcp.NewTool("clip_categorize",
		mcp.WithDescription("Add a clip to categories or remove it from them"),
		mcp.WithString("id", mcp.Required()),
		mcp.WithArray("add", mcp.Items(stringItems)),
		mcp.WithArray("remove", mcp.Items(stringItems)),
	)

	clipDeleteToolDef = mcp.NewTool("clip_delete",
		mcp.WithDescription("Delete one clip by id, or every clip in a category"),
		mcp.WithString("id"),
		mcp.WithString("category_id"),
	)

	clipDeleteOldToolDef = mcp.NewTool("clip_delete_old",
		mcp.WithDescription("Delete clips older than a number of days"),
		mcp.WithNumber("days", mcp.Description("Default 30")),
	)

	clipSimilarToolDef = mcp.NewTool("clip_similar",
		mcp.WithDescription("Clips whose text resembles the given clip"),
		mcp.WithString("id", mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Default 5")),
	)

	clipStatsToolDef = mcp.NewTool("clip_stats",
		mcp.WithDescription("Counts of clips by source, language, importance, tag and category"),
	)

	categoryCreateToolDef = mcp.NewTool("category_create",
		mcp.WithDescription("Create a category, optionally under a parent"),
		mcp.WithString("name", mcp.Required()),
		mcp.WithString("parent_id"),
		mcp.WithString("color", mcp.Description("#rrggbb; random when omitted")),
		mcp.WithNumber("order"),
	)

	categoryGetToolDef = mcp.NewTool("category_get",
		mcp.WithDescription("Get a category with its path, children and counts"),
		mcp.WithString("id", mcp.Required()),
	)

	categoryTreeToolDef = mcp.NewTool("category_tree",
		mcp.WithDescription("The whole category tree"),
	)

	categoryUpdateToolDef = mcp.NewTool("category_update",
		mcp.WithDescription("Rename, recolour or reorder a category"),
		mcp.WithString("id", mcp.Required()),
		mcp.WithString("name"),
		mcp.WithString("color"),
		mcp.WithNumber("order"),
	)

	categoryMoveToolDef = mcp.NewTool("category_move",
		mcp.WithDescription("Move a category under a new parent, or to the root when parent_id is empty"),
		mcp.WithString("id", mcp.Required()),
		mcp.WithString("parent_id"),
	)

	categoryReorderToolDef = mcp.NewTool("category_reorder",
		mcp.WithDescription("Set the order of a parent's children"),
		mcp.WithString("parent_id", mcp.Description("Empty for root categories")),
		mcp.WithArray("ids", mcp.Required(), mcp.Items(stringItems)),
	)

	categoryDeleteToolDef = mcp.NewTool("category_delete",
		mcp.WithDescription("Delete a category. Without with_children it must have no subcategories; clips must not reference it either way."),
		mcp.WithString("id", mcp.Required()),
		mcp.WithBoolean("with_children"),
	)

	categorySearchToolDef = mcp.NewTool("category_search",
		mcp.WithDescription("Categories whose name contains the query"),
		mcp.WithString("query", mcp.Required()),
	)

	categoryStatsToolDef = mcp.NewTool("category_stats",
		mcp.WithDescription("Clip and subcategory counts for one category, or all when id is omitted"),
		mcp.WithString("id"),
	)

	storageInfoToolDef = mcp.NewTool("storage_info",
		mcp.WithDescription("Storage usage, statistics, backups and cache counters"),
	)

	storageQuotaToolDef = mcp.NewTool("storage_quota",
		mcp.WithDescription("Check usage against the quota, compressing or cleaning up when it is high"),
	)

	storageDuplicatesToolDef = mcp.NewTool("storage_duplicates",
		mcp.WithDescription("Pairs of stored clips with similar text"),
		mcp.WithNumber("threshold", mcp.Description("Similarity above which a pair is reported; default 0.8")),
	)

	storageCleanupToolDef = mcp.NewTool("storage_cleanup",
		mcp.WithDescription("Remove up to 10% of clips older than 30 days when auto cleanup is enabled"),
	)

	storageBackupToolDef = mcp.NewTool("storage_backup",
		mcp.WithDescription("Create a manual backup"),
	)

	storageBackupsToolDef = mcp.NewTool("storage_backups",
		mcp.WithDescription("List backups, newest first"),
	)

	storageRestoreToolDef = mcp.NewTool("storage_restore",
		mcp.WithDescription("Restore a backup. Current data is backed up first."),
		mcp.WithString("id", mcp.Required()),
	)

	storageExportToolDef = mcp.NewTool("storage_export",
		mcp.WithDescription("Export all data to a JSON file"),
		mcp.WithString("path", mcp.Description("Default ~/.clipgo/exports/clipgo-<timestamp>.json")),
	)

	storageImportToolDef = mcp.NewTool("storage_import",
		mcp.WithDescription("Replace all data with an export file. Current data is backed up first."),
		mcp.WithString("path", mcp.Required()),
	)

	settingsGetToolDef = mcp.NewTool("settings_get",
		mcp.WithDescription("Current settings"),
	)

	settingsUpdateToolDef = mcp.NewTool("settings_update",
		mcp.WithDescription("Change settings. Omitted fields are left alone."),
		mcp.WithString("language", mcp.Enum("en", "ko")),
		mcp.WithString("theme", mcp.Enum("light", "dark", "auto")),
		mcp.WithBoolean("backup_enabled"),
		mcp.WithNumber("auto_backup_interval", mcp.Description("Milliseconds between automatic backups")),
		mcp.WithNumber("max_clips_per_category"),
		mcp.WithBoolean("compress_data"),
		mcp.WithBoolean("auto_cleanup"),
	)
)
