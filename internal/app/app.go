// Package app wires the ClipGo layers together: config, logger, key-value
// store, storage manager, category manager, clip manager and file transfer.
// Every surface (CLI, MCP server, web UI) builds one App and works through
// its managers.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/Kai-project-00/clipgo/internal/category"
	"github.com/Kai-project-00/clipgo/internal/clip"
	"github.com/Kai-project-00/clipgo/internal/config"
	"github.com/Kai-project-00/clipgo/internal/storage"
	"github.com/Kai-project-00/clipgo/internal/transfer"
)

// BadgerDir is the directory under the base dir used by the badger backend.
const BadgerDir = "badger"

// Options configures New.
type Options struct {
	// BaseDir holds the database, config.json and the exports directory.
	BaseDir string

	// Config overrides loading BaseDir/config.json.
	Config *config.Config

	// Logger overrides the logger built from the config.
	Logger *slog.Logger

	// LogWriter receives log output when Logger is nil. Defaults to stderr.
	LogWriter io.Writer

	// Watch detects writes made by other processes sharing the store.
	Watch bool
}

// App is a fully initialized set of managers.
type App struct {
	BaseDir    string
	Config     *config.Config
	Logger     *slog.Logger
	Storage    *storage.Manager
	Categories *category.Manager
	Clips      *clip.Manager
	Files      *transfer.Files

	injector *do.RootScope
	cancel   context.CancelFunc
}

// DefaultBaseDir returns ~/.clipgo.
func DefaultBaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".clipgo"), nil
}

// New builds and initializes every layer. Close releases them in reverse
// order.
func New(ctx context.Context, opts Options) (*App, error) {
	if opts.BaseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	ctx, cancel := context.WithCancel(ctx)

	injector := newContainer(ctx, opts)
	a := &App{BaseDir: opts.BaseDir, injector: injector, cancel: cancel}

	var err error
	if a.Config, err = do.Invoke[*config.Config](injector); err != nil {
		return nil, a.fail(err)
	}
	if a.Logger, err = do.Invoke[*slog.Logger](injector); err != nil {
		return nil, a.fail(err)
	}
	if a.Clips, err = do.Invoke[*clip.Manager](injector); err != nil {
		return nil, a.fail(err)
	}
	// Already built as dependencies of the clip manager.
	a.Storage = do.MustInvoke[*storage.Manager](injector)
	a.Categories = do.MustInvoke[*category.Manager](injector)
	if a.Files, err = do.Invoke[*transfer.Files](injector); err != nil {
		return nil, a.fail(err)
	}
	return a, nil
}

func (a *App) fail(err error) error {
	a.Close()
	return err
}

// Close shuts every layer down, dependents first.
func (a *App) Close() error {
	a.cancel()
	if report := a.injector.Shutdown(); report != nil && !report.Succeed {
		return report
	}
	return nil
}

func newContainer(ctx context.Context, opts Options) *do.RootScope {
	injector := do.New()
	do.ProvideValue(injector, opts)
	do.ProvideNamedValue(injector, contextKey, ctx)

	do.Provide(injector, provideConfig)
	do.Provide(injector, provideLogger)
	do.Provide(injector, provideStore)
	do.Provide(injector, provideStorage)
	do.Provide(injector, provideCategories)
	do.Provide(injector, provideClips)
	do.Provide(injector, provideFiles)
	return injector
}
