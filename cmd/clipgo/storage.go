package main

import (
	"github.com/urfave/cli/v2"

	"github.com/Kai-project-00/clipgo/internal/app"
	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/errors"
	"github.com/Kai-project-00/clipgo/internal/mcp"
	"github.com/Kai-project-00/clipgo/internal/storage"
	"github.com/Kai-project-00/clipgo/internal/web"
)

// backupCmd groups the backup commands.
func backupCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Create, list and restore backups",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a manual backup",
				Action: func(c *cli.Context) error {
					b, err := a.Storage.CreateBackup(c.Context, domain.BackupManual)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, storage.InfoOf(b))
				},
			},
			{
				Name:  "list",
				Usage: "List backups, newest first",
				Action: func(c *cli.Context) error {
					backups, err := a.Storage.ListBackups(c.Context)
					if err != nil {
						return outputError(err)
					}
					if backups == nil {
						backups = []storage.BackupInfo{}
					}
					return outputJSON(c, backups)
				},
			},
			{
				Name:      "restore",
				Usage:     "Restore a backup; current data is backed up first",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, "backup id")
					if err != nil {
						return outputError(err)
					}
					result, err := a.Storage.RestoreBackup(c.Context, id)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, result)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a backup",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, "backup id")
					if err != nil {
						return outputError(err)
					}
					if err := a.Storage.DeleteBackup(c.Context, id); err != nil {
						return outputError(err)
					}
					return outputJSON(c, map[string]any{"deleted": 1, "ids": []string{id}})
				},
			},
		},
	}
}

// storageCmd groups the storage maintenance commands.
func storageCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "storage",
		Usage: "Inspect and maintain the store",
		Subcommands: []*cli.Command{
			{
				Name:  "info",
				Usage: "Usage, statistics, backups and cache counters",
				Action: func(c *cli.Context) error {
					info, err := a.Storage.GetStorageInfo(c.Context)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, info)
				},
			},
			{
				Name:  "quota",
				Usage: "Check usage against the quota, compressing or cleaning up when it is high",
				Action: func(c *cli.Context) error {
					quota, err := a.Storage.CheckStorageQuota(c.Context)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, quota)
				},
			},
			{
				Name:  "duplicates",
				Usage: "Pairs of stored clips with similar text",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "threshold", Value: storage.DuplicateScanThreshold, Usage: "Similarity above which a pair is reported"},
				},
				Action: func(c *cli.Context) error {
					pairs, err := a.Storage.FindDuplicateClips(c.Context, c.Float64("threshold"))
					if err != nil {
						return outputError(err)
					}
					if pairs == nil {
						pairs = []storage.DuplicatePair{}
					}
					return outputJSON(c, pairs)
				},
			},
			{
				Name:  "cleanup",
				Usage: "Remove old clips when auto cleanup is enabled",
				Action: func(c *cli.Context) error {
					removed, err := a.Storage.PerformAutoCleanup(c.Context)
					if err != nil {
						return outputError(err)
					}
					ids := make([]string, len(removed))
					for i, r := range removed {
						ids[i] = r.ID
					}
					return outputJSON(c, map[string]any{"deleted": len(ids), "ids": ids})
				},
			},
			{
				Name:  "clear",
				Usage: "Remove every clip, category and backup",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "confirm", Usage: "Required"},
				},
				Action: func(c *cli.Context) error {
					if !c.Bool("confirm") {
						return outputError(errors.NewInvalidRequest("--confirm is required to clear all data"))
					}
					if err := a.Storage.ClearAllData(c.Context); err != nil {
						return outputError(err)
					}
					return outputJSON(c, map[string]any{"cleared": true})
				},
			},
		},
	}
}

// settingsCmd groups the settings commands.
func settingsCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show or change settings",
		Subcommands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Show the current settings",
				Action: func(c *cli.Context) error {
					settings, err := a.Storage.GetSettings(c.Context)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, settings)
				},
			},
			{
				Name:  "set",
				Usage: "Change settings; flags that are not given are left alone",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "language", Usage: "en|ko"},
					&cli.StringFlag{Name: "theme", Usage: "light|dark|auto"},
					&cli.BoolFlag{Name: "backup", Usage: "Automatic backups"},
					&cli.DurationFlag{Name: "backup-interval", Usage: "Time between automatic backups (e.g., 24h)"},
					&cli.IntFlag{Name: "max-clips-per-category", Usage: "0 for no limit"},
					&cli.BoolFlag{Name: "compress", Usage: "Compress stored clips"},
					&cli.BoolFlag{Name: "auto-cleanup", Usage: "Remove old clips when storage runs low"},
				},
				Action: func(c *cli.Context) error {
					patch := settingsPatch(c)
					if patch == (domain.SettingsPatch{}) {
						return outputError(errors.NewInvalidRequest("no settings given"))
					}
					settings, err := a.Storage.UpdateSettings(c.Context, patch)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, settings)
				},
			},
		},
	}
}

// settingsPatch collects the flags the user set.
func settingsPatch(c *cli.Context) domain.SettingsPatch {
	var p domain.SettingsPatch
	if c.IsSet("language") {
		v := c.String("language")
		p.Language = &v
	}
	if c.IsSet("theme") {
		v := c.String("theme")
		p.Theme = &v
	}
	if c.IsSet("backup") {
		v := c.Bool("backup")
		p.BackupEnabled = &v
	}
	if c.IsSet("backup-interval") {
		v := c.Duration("backup-interval").Milliseconds()
		p.AutoBackupInterval = &v
	}
	if c.IsSet("max-clips-per-category") {
		v := c.Int("max-clips-per-category")
		p.MaxClipsPerCategory = &v
	}
	if c.IsSet("compress") {
		v := c.Bool("compress")
		p.CompressData = &v
	}
	if c.IsSet("auto-cleanup") {
		v := c.Bool("auto-cleanup")
		p.AutoCleanup = &v
	}
	return p
}

// exportCmd creates the export command.
func exportCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export all data to a JSON file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.clipgo/exports/clipgo-<timestamp>.json)"},
		},
		Action: func(c *cli.Context) error {
			output, err := a.Files.Export(c.Context, c.String("path"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Replace all data with an export file; current data is backed up first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
		},
		Action: func(c *cli.Context) error {
			output, err := a.Files.Import(c.Context, c.String("path"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the MCP server over stdio",
		Action: func(_ *cli.Context) error {
			return mcp.Run(a, Version)
		},
	}
}

// uiCmd creates the ui command.
func uiCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "ui",
		Usage: "Serve the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to listen on"},
			&cli.IntFlag{Name: "port", Value: web.DefaultPort, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(a, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return err
			}
			return web.Run(c.Context, srv, a.Logger)
		},
	}
}
