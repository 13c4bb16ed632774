package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kai-project-00/clipgo/internal/clip"
	"github.com/Kai-project-00/clipgo/internal/config"
	"github.com/Kai-project-00/clipgo/internal/logger"
)

func TestNew_RequiresBaseDir(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for empty base dir")
	}
}

func TestNew_WiresEveryLayer(t *testing.T) {
	for _, backend := range []string{config.BackendSQLite, config.BackendBadger} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			cfg := config.DefaultConfig()
			cfg.Backend = backend

			a, err := New(ctx, Options{BaseDir: t.TempDir(), Config: cfg, Logger: logger.Discard()})
			require.NoError(t, err)
			t.Cleanup(func() { a.Close() })

			assert.True(t, a.Storage.Initialized())
			assert.True(t, a.Categories.Initialized())
			assert.True(t, a.Clips.Initialized())

			cats, err := a.Categories.GetAllCategories(ctx)
			require.NoError(t, err)
			assert.Len(t, cats, len(cfg.DefaultCategories))

			c, err := a.Clips.CreateClip(ctx, clip.CreateInput{
				Text:        "wired through every layer",
				CategoryIDs: []string{cats[0].ID},
			})
			require.NoError(t, err)

			got, err := a.Storage.GetClip(ctx, c.ID)
			require.NoError(t, err)
			assert.Equal(t, c.Text, got.Text)
		})
	}
}

func TestNew_LoadsConfigFromBaseDir(t *testing.T) {
	baseDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(baseDir, "config.json"),
		[]byte(`{"default_categories": ["Inbox"], "log_format": "json"}`), 0600))

	a, err := New(context.Background(), Options{BaseDir: baseDir, LogWriter: io.Discard})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, logger.FormatJSON, a.Config.LogFormat)
	assert.Contains(t, a.Config.DefaultCategories, "Inbox")
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Backend = "postgres"
	if _, err := New(context.Background(), Options{BaseDir: t.TempDir(), Config: cfg}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestClose_ReleasesStore(t *testing.T) {
	ctx := context.Background()
	baseDir := t.TempDir()

	a, err := New(ctx, Options{BaseDir: baseDir, Logger: logger.Discard()})
	require.NoError(t, err)
	require.NoError(t, a.Close())
	assert.False(t, a.Storage.Initialized())

	// The same directory opens again once the first App is gone.
	b, err := New(ctx, Options{BaseDir: baseDir, Logger: logger.Discard()})
	require.NoError(t, err)
	defer b.Close()
	assert.True(t, b.Clips.Initialized())
}

func TestNew_WatchExternal(t *testing.T) {
	a, err := New(context.Background(), Options{BaseDir: t.TempDir(), Logger: logger.Discard(), Watch: true})
	require.NoError(t, err)
	require.NoError(t, a.Close())
}
