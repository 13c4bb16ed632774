package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Backend names accepted by Config.Backend.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config holds application configuration.
type Config struct {
	// Backend selects the key-value store implementation: "sqlite" or "badger".
	Backend string `json:"backend"`

	// QuotaBytes is the storage budget used for quota tiering.
	// Mirrors the 10 MiB local-storage quota of a browser extension.
	QuotaBytes int64 `json:"quota_bytes"`

	// CleanupCount is how many of the oldest clips are removed at the critical tier.
	CleanupCount int `json:"cleanup_count"`

	// MaxBackups is the size of the backup ring buffer.
	MaxBackups int `json:"max_backups"`

	// StorageCacheTTLSeconds is the TTL of the storage manager's collection cache.
	StorageCacheTTLSeconds int `json:"storage_cache_ttl_seconds"`

	// CategoryCacheTTLSeconds is the TTL of the category manager's cache.
	CategoryCacheTTLSeconds int `json:"category_cache_ttl_seconds"`

	// ClipCacheTTLSeconds is the TTL of the clip manager's cache.
	ClipCacheTTLSeconds int `json:"clip_cache_ttl_seconds"`

	// DuplicateThreshold is the Jaccard similarity above which a clip is a duplicate.
	DuplicateThreshold float64 `json:"duplicate_threshold"`

	// MaxCategoryDepth is the number of levels the category tree may have.
	MaxCategoryDepth int `json:"max_category_depth"`

	// DefaultCategories are created at startup when the store holds no categories.
	DefaultCategories []string `json:"default_categories,omitempty"`

	// WatchExternal enables detection of writes made by other processes.
	// Long-running modes (serve, ui) turn it on regardless.
	WatchExternal bool `json:"watch_external,omitempty"`

	// AllowedPaths are extra directories export and import files may live in,
	// besides <baseDir>/exports.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths lifts the directory restriction on export and import
	// paths. Symlinks are still rejected.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`

	// LogFormat is "pretty" or "json".
	LogFormat string `json:"log_format"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend:                 BackendSQLite,
		QuotaBytes:              10 * 1024 * 1024,
		CleanupCount:            50,
		MaxBackups:              5,
		StorageCacheTTLSeconds:  300,
		CategoryCacheTTLSeconds: 300,
		ClipCacheTTLSeconds:     180,
		DuplicateThreshold:      0.85,
		MaxCategoryDepth:        3,
		DefaultCategories:       []string{"General", "Work", "Personal", "Ideas"},
		LogLevel:                "info",
		LogFormat:               "pretty",
	}
}

// StorageCacheTTL returns StorageCacheTTLSeconds as a duration.
func (c *Config) StorageCacheTTL() time.Duration {
	return time.Duration(c.StorageCacheTTLSeconds) * time.Second
}

// CategoryCacheTTL returns CategoryCacheTTLSeconds as a duration.
func (c *Config) CategoryCacheTTL() time.Duration {
	return time.Duration(c.CategoryCacheTTLSeconds) * time.Second
}

// ClipCacheTTL returns ClipCacheTTLSeconds as a duration.
func (c *Config) ClipCacheTTL() time.Duration {
	return time.Duration(c.ClipCacheTTLSeconds) * time.Second
}

// Validate reports configuration values that cannot work.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendBadger:
	default:
		return fmt.Errorf("unknown backend %q (want %q or %q)", c.Backend, BackendSQLite, BackendBadger)
	}
	if c.QuotaBytes <= 0 {
		return fmt.Errorf("quota_bytes must be positive, got %d", c.QuotaBytes)
	}
	if c.DuplicateThreshold <= 0 || c.DuplicateThreshold > 1 {
		return fmt.Errorf("duplicate_threshold must be in (0, 1], got %v", c.DuplicateThreshold)
	}
	if c.MaxCategoryDepth < 1 {
		return fmt.Errorf("max_category_depth must be at least 1, got %d", c.MaxCategoryDepth)
	}
	return nil
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.clipgo.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	merged := Merge(DefaultConfig(), cfg)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.Backend = pick(overlay.Backend, base.Backend)
	result.QuotaBytes = pick(overlay.QuotaBytes, base.QuotaBytes)
	result.CleanupCount = pick(overlay.CleanupCount, base.CleanupCount)
	result.MaxBackups = pick(overlay.MaxBackups, base.MaxBackups)
	result.StorageCacheTTLSeconds = pick(overlay.StorageCacheTTLSeconds, base.StorageCacheTTLSeconds)
	result.CategoryCacheTTLSeconds = pick(overlay.CategoryCacheTTLSeconds, base.CategoryCacheTTLSeconds)
	result.ClipCacheTTLSeconds = pick(overlay.ClipCacheTTLSeconds, base.ClipCacheTTLSeconds)
	result.DuplicateThreshold = pick(overlay.DuplicateThreshold, base.DuplicateThreshold)
	result.MaxCategoryDepth = pick(overlay.MaxCategoryDepth, base.MaxCategoryDepth)
	result.LogLevel = pick(overlay.LogLevel, base.LogLevel)
	result.LogFormat = pick(overlay.LogFormat, base.LogFormat)

	// Booleans: overlay wins if true, else base
	result.WatchExternal = base.WatchExternal || overlay.WatchExternal
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Default categories are a list of names, not a set of switches: overlay replaces.
	result.DefaultCategories = base.DefaultCategories
	if overlay.DefaultCategories != nil {
		result.DefaultCategories = mergeStringSlice(nil, overlay.DefaultCategories)
	}

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
