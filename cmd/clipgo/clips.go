package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Kai-project-00/clipgo/internal/app"
	"github.com/Kai-project-00/clipgo/internal/clip"
	"github.com/Kai-project-00/clipgo/internal/domain"
	"github.com/Kai-project-00/clipgo/internal/errors"
)

// clipList is the JSON shape of commands returning several clips.
type clipList struct {
	Items []domain.Clip `json:"items"`
	Count int           `json:"count"`
}

func listOf(clips []domain.Clip) clipList {
	if clips == nil {
		clips = []domain.Clip{}
	}
	return clipList{Items: clips, Count: len(clips)}
}

// clipCmd groups the clip commands.
func clipCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "clip",
		Usage: "Save, find and change clips",
		Subcommands: []*cli.Command{
			clipAddCmd(a),
			clipGetCmd(a),
			clipListCmd(a),
			clipSearchCmd(a),
			clipRecentCmd(a),
			clipUpdateCmd(a),
			clipTagCmd(a),
			clipCategorizeCmd(a),
			clipDeleteCmd(a),
			clipDeleteOldCmd(a),
			clipSimilarCmd(a),
			clipStatsCmd(a),
		},
	}
}

// clipAddCmd creates the clip add command.
func clipAddCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Save a clip (text from --text or stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "text", Usage: "Clip text (defaults to stdin)"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Title (generated from the text when omitted)"},
			&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "Page the text came from"},
			&cli.StringFlag{Name: "source", Usage: "chatgpt|claude|other (derived from --url when omitted)"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
			&cli.StringSliceFlag{Name: "category", Aliases: []string{"c"}, Usage: "Category id (repeatable)"},
			&cli.StringFlag{Name: "importance", Aliases: []string{"i"}, Usage: "high|normal|low"},
			&cli.StringFlag{Name: "language", Usage: "Language code (detected when omitted)"},
			&cli.BoolFlag{Name: "selection", Usage: "Treat the text as a page selection and add automatic tags"},
		},
		Action: func(c *cli.Context) error {
			text, err := inputText(c)
			if err != nil {
				return outputError(err)
			}

			var created domain.Clip
			if c.Bool("selection") {
				created, err = a.Clips.CreateClipFromSelection(c.Context, text, c.String("url"), c.String("title"), clip.SelectionOptions{
					Tags:        parseTags(c.String("tags")),
					CategoryIDs: c.StringSlice("category"),
					Importance:  domain.Importance(c.String("importance")),
				})
			} else {
				created, err = a.Clips.CreateClip(c.Context, clip.CreateInput{
					Text:        text,
					Title:       c.String("title"),
					URL:         c.String("url"),
					Source:      domain.Source(c.String("source")),
					Tags:        parseTags(c.String("tags")),
					CategoryIDs: c.StringSlice("category"),
					Importance:  domain.Importance(c.String("importance")),
					Language:    c.String("language"),
				})
			}
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, created)
		},
	}
}

// clipGetCmd creates the clip get command.
func clipGetCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show a clip",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "clip id")
			if err != nil {
				return outputError(err)
			}

			got, err := a.Clips.GetClip(c.Context, id)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, got)
		},
	}
}

// clipFilterFlags are shared by clip list and clip search.
func clipFilterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{Name: "category", Aliases: []string{"c"}, Usage: "Match clips in any of these categories"},
		&cli.BoolFlag{Name: "subtree", Usage: "Widen --category to every subcategory"},
		&cli.StringFlag{Name: "tags", Usage: "Comma-separated; match clips with any of them"},
		&cli.StringFlag{Name: "source", Usage: "chatgpt|claude|other"},
		&cli.StringFlag{Name: "importance", Aliases: []string{"i"}, Usage: "high|normal|low"},
		&cli.StringFlag{Name: "language", Usage: `Language code, or "unknown"`},
		&cli.StringFlag{Name: "since", Usage: "Only clips created in the last N days (e.g., 7d)"},
		&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Keep at most this many of the newest matches"},
		&cli.StringFlag{Name: "sort", Usage: "createdAt|updatedAt|title|source|importance"},
		&cli.StringFlag{Name: "order", Usage: "asc|desc"},
	}
}

// clipQuery builds a query from the filter flags.
func clipQuery(c *cli.Context, a *app.App) (clip.Query, error) {
	s, err := clip.ParseSort(c.String("sort"), c.String("order"))
	if err != nil {
		return clip.Query{}, err
	}
	q := clip.Query{
		Filter: clip.Filter{
			CategoryIDs: c.StringSlice("category"),
			Tags:        parseTags(c.String("tags")),
			Source:      domain.Source(c.String("source")),
			Importance:  domain.Importance(c.String("importance")),
			Language:    c.String("language"),
			Limit:       c.Int("limit"),
		},
		Sort: s,
	}
	if since := c.String("since"); since != "" {
		days, err := parseDuration(since)
		if err != nil {
			return clip.Query{}, errors.NewInvalidRequest(err.Error())
		}
		q.DateFrom = a.Storage.Now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
	}
	if c.Bool("subtree") {
		var ids []string
		for _, id := range q.CategoryIDs {
			sub, err := a.Categories.GetSubtreeIDs(c.Context, id)
			if err != nil {
				return clip.Query{}, err
			}
			ids = append(ids, sub...)
		}
		q.CategoryIDs = ids
	}
	return q, nil
}

// clipListCmd creates the clip list command.
func clipListCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List clips matching optional filters",
		Flags: clipFilterFlags(),
		Action: func(c *cli.Context) error {
			q, err := clipQuery(c, a)
			if err != nil {
				return outputError(err)
			}

			clips, err := a.Clips.GetClips(c.Context, q)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, listOf(clips))
		},
	}
}

// clipSearchCmd creates the clip search command.
func clipSearchCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search clip titles, texts and tags",
		ArgsUsage: "<query>",
		Flags:     clipFilterFlags(),
		Action: func(c *cli.Context) error {
			query, err := requireArg(c, "query")
			if err != nil {
				return outputError(err)
			}
			q, err := clipQuery(c, a)
			if err != nil {
				return outputError(err)
			}

			clips, err := a.Clips.SearchClips(c.Context, query, q)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, listOf(clips))
		},
	}
}

// clipRecentCmd creates the clip recent command.
func clipRecentCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "recent",
		Usage: "Most recently created clips",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: clip.DefaultRecentLimit, Usage: "Number of clips"},
		},
		Action: func(c *cli.Context) error {
			clips, err := a.Clips.GetRecentClips(c.Context, c.Int("limit"))
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, listOf(clips))
		},
	}
}

// clipUpdateCmd creates the clip update command.
func clipUpdateCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Change fields of a clip; flags that are not given are left alone",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "text", Usage: "New text (use --stdin to read it from stdin)"},
			&cli.BoolFlag{Name: "stdin", Usage: "Read the new text from stdin"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}},
			&cli.StringFlag{Name: "url", Aliases: []string{"u"}},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated; replaces the stored tags"},
			&cli.StringSliceFlag{Name: "category", Aliases: []string{"c"}, Usage: "Replaces the stored categories (repeatable)"},
			&cli.StringFlag{Name: "importance", Aliases: []string{"i"}, Usage: "high|normal|low"},
			&cli.StringFlag{Name: "language"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "clip id")
			if err != nil {
				return outputError(err)
			}

			var in clip.UpdateInput
			switch {
			case c.Bool("stdin"):
				text, err := inputText(c)
				if err != nil {
					return outputError(err)
				}
				in.Text = &text
			case c.IsSet("text"):
				text := c.String("text")
				in.Text = &text
			}
			if c.IsSet("title") {
				title := c.String("title")
				in.Title = &title
			}
			if c.IsSet("url") {
				u := c.String("url")
				in.URL = &u
			}
			if c.IsSet("tags") {
				in.Tags = parseTags(c.String("tags"))
				if in.Tags == nil {
					in.Tags = []string{}
				}
			}
			if c.IsSet("category") {
				in.CategoryIDs = c.StringSlice("category")
			}
			if c.IsSet("importance") {
				importance := domain.Importance(c.String("importance"))
				in.Importance = &importance
			}
			if c.IsSet("language") {
				language := c.String("language")
				in.Language = &language
			}

			updated, err := a.Clips.UpdateClip(c.Context, id, in)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, updated)
		},
	}
}

type clipEdit func(ctx *cli.Context, clipID, value string) (domain.Clip, error)

// changeSetCmd builds a command that applies --add and --remove values one at a time.
func changeSetCmd(name, usage string, add, remove clipEdit) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "add", Aliases: []string{"a"}},
			&cli.StringSliceFlag{Name: "remove", Aliases: []string{"r"}},
		},
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "clip id")
			if err != nil {
				return outputError(err)
			}
			adds, removes := c.StringSlice("add"), c.StringSlice("remove")
			if len(adds) == 0 && len(removes) == 0 {
				return outputError(errors.NewInvalidRequest("--add or --remove is required"))
			}

			var result domain.Clip
			for _, v := range adds {
				if result, err = add(c, id, v); err != nil {
					return outputError(err)
				}
			}
			for _, v := range removes {
				if result, err = remove(c, id, v); err != nil {
					return outputError(err)
				}
			}

			return outputJSON(c, result)
		},
	}
}

// clipTagCmd creates the clip tag command.
func clipTagCmd(a *app.App) *cli.Command {
	return changeSetCmd("tag", "Add and remove tags on a clip",
		func(c *cli.Context, id, v string) (domain.Clip, error) { return a.Clips.AddTag(c.Context, id, v) },
		func(c *cli.Context, id, v string) (domain.Clip, error) { return a.Clips.RemoveTag(c.Context, id, v) },
	)
}

// clipCategorizeCmd creates the clip categorize command.
func clipCategorizeCmd(a *app.App) *cli.Command {
	return changeSetCmd("categorize", "Add a clip to categories or remove it from them",
		func(c *cli.Context, id, v string) (domain.Clip, error) { return a.Clips.AddToCategory(c.Context, id, v) },
		func(c *cli.Context, id, v string) (domain.Clip, error) { return a.Clips.RemoveFromCategory(c.Context, id, v) },
	)
}

// clipDeleteCmd creates the clip delete command.
func clipDeleteCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a clip, or every clip in a category with --category",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Delete every clip filed under this category"},
		},
		Action: func(c *cli.Context) error {
			categoryID := c.String("category")
			switch {
			case c.NArg() > 0 && categoryID != "":
				return outputError(errors.NewInvalidRequest("give either a clip id or --category, not both"))
			case categoryID != "":
				n, err := a.Clips.DeleteClipsByCategory(c.Context, categoryID)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c, map[string]any{"deleted": n})
			}

			id, err := requireArg(c, "clip id")
			if err != nil {
				return outputError(err)
			}
			if err := a.Clips.DeleteClip(c.Context, id); err != nil {
				return outputError(err)
			}

			return outputJSON(c, map[string]any{"deleted": 1, "ids": []string{id}})
		},
	}
}

// clipDeleteOldCmd creates the clip delete-old command.
func clipDeleteOldCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "delete-old",
		Usage: "Delete clips older than a number of days",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "older-than", Value: "30d", Usage: "Age in days (e.g., 30d)"},
		},
		Action: func(c *cli.Context) error {
			days, err := parseDuration(c.String("older-than"))
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			n, err := a.Clips.DeleteOldClips(c.Context, days)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, map[string]any{"deleted": n})
		},
	}
}

// clipSimilarCmd creates the clip similar command.
func clipSimilarCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:      "similar",
		Usage:     "Clips whose text resembles the given clip",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: clip.DefaultSimilarLimit},
		},
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, "clip id")
			if err != nil {
				return outputError(err)
			}

			similar, err := a.Clips.FindSimilarClips(c.Context, id, c.Int("limit"))
			if err != nil {
				return outputError(err)
			}
			if similar == nil {
				similar = []clip.Similar{}
			}

			return outputJSON(c, similar)
		},
	}
}

// clipStatsCmd creates the clip stats command.
func clipStatsCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Counts of clips by source, language, importance, tag and category",
		Action: func(c *cli.Context) error {
			stats, err := a.Clips.GetClipStats(c.Context)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c, stats)
		},
	}
}
