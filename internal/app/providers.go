package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/Kai-project-00/clipgo/internal/category"
	"github.com/Kai-project-00/clipgo/internal/clip"
	"github.com/Kai-project-00/clipgo/internal/config"
	"github.com/Kai-project-00/clipgo/internal/kv"
	"github.com/Kai-project-00/clipgo/internal/logger"
	"github.com/Kai-project-00/clipgo/internal/storage"
	"github.com/Kai-project-00/clipgo/internal/transfer"
)

const contextKey = "app.context"

// StoreHandle wraps the key-value store with shutdown capability.
type StoreHandle struct {
	kv.Store
}

// Shutdown implements do.ShutdownerWithError.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

func provideConfig(i do.Injector) (*config.Config, error) {
	opts := do.MustInvoke[Options](i)
	if opts.Config != nil {
		if err := opts.Config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return opts.Config, nil
	}
	cfg, err := config.Load(opts.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(i do.Injector) (*slog.Logger, error) {
	opts := do.MustInvoke[Options](i)
	if opts.Logger != nil {
		return opts.Logger, nil
	}
	cfg := do.MustInvoke[*config.Config](i)
	return logger.New(logger.Config{
		Writer: opts.LogWriter,
		Format: cfg.LogFormat,
		Level:  logger.ParseLevel(cfg.LogLevel),
	}), nil
}

func provideStore(i do.Injector) (*StoreHandle, error) {
	opts := do.MustInvoke[Options](i)
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)
	ctx := do.MustInvokeNamed[context.Context](i, contextKey)

	switch cfg.Backend {
	case config.BackendBadger:
		bc := kv.DefaultBadgerConfig(filepath.Join(opts.BaseDir, BadgerDir))
		bc.Logger = log
		store, err := kv.OpenBadger(bc)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		// Badger holds an exclusive directory lock, so no other process can
		// write behind our back.
		log.Info("kv store opened", "backend", cfg.Backend, "path", bc.Path)
		return &StoreHandle{Store: store}, nil

	default:
		store, err := kv.OpenSQLite(opts.BaseDir, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		if opts.Watch || cfg.WatchExternal {
			if err := store.Watch(ctx); err != nil {
				store.Close()
				return nil, fmt.Errorf("failed to watch store: %w", err)
			}
		}
		log.Info("kv store opened", "backend", config.BackendSQLite, "path", store.Path())
		return &StoreHandle{Store: store}, nil
	}
}

func provideStorage(i do.Injector) (*storage.Manager, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)
	handle := do.MustInvoke[*StoreHandle](i)
	ctx := do.MustInvokeNamed[context.Context](i, contextKey)

	m := storage.New(handle.Store, storage.Options{
		QuotaBytes:   cfg.QuotaBytes,
		CleanupCount: cfg.CleanupCount,
		MaxBackups:   cfg.MaxBackups,
		CacheTTL:     cfg.StorageCacheTTL(),
		Logger:       log.With("component", "storage"),
	})
	if err := m.Init(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func provideCategories(i do.Injector) (*category.Manager, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)
	s := do.MustInvoke[*storage.Manager](i)
	ctx := do.MustInvokeNamed[context.Context](i, contextKey)

	m := category.New(s, category.Options{
		MaxDepth:          cfg.MaxCategoryDepth,
		CacheTTL:          cfg.CategoryCacheTTL(),
		DefaultCategories: cfg.DefaultCategories,
		Logger:            log.With("component", "category"),
	})
	if err := m.Init(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func provideClips(i do.Injector) (*clip.Manager, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)
	s := do.MustInvoke[*storage.Manager](i)
	categories := do.MustInvoke[*category.Manager](i)
	ctx := do.MustInvokeNamed[context.Context](i, contextKey)

	m := clip.New(s, categories, clip.Options{
		DuplicateThreshold: cfg.DuplicateThreshold,
		CacheTTL:           cfg.ClipCacheTTL(),
		Logger:             log.With("component", "clip"),
	})
	if err := m.Init(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func provideFiles(i do.Injector) (*transfer.Files, error) {
	opts := do.MustInvoke[Options](i)
	cfg := do.MustInvoke[*config.Config](i)
	s := do.MustInvoke[*storage.Manager](i)
	return transfer.New(s, opts.BaseDir, cfg), nil
}
