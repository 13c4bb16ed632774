package main

import (
	"github.com/urfave/cli/v2"

	"github.com/Kai-project-00/clipgo/internal/app"
	"github.com/Kai-project-00/clipgo/internal/category"
	"github.com/Kai-project-00/clipgo/internal/domain"
)

// categoryDetail is the output of category get.
type categoryDetail struct {
	Category domain.Category   `json:"category"`
	Path     []string          `json:"path"`
	Depth    int               `json:"depth"`
	Children []domain.Category `json:"children"`
	Stats    category.Stats    `json:"stats"`
}

// categoryCmd groups the category commands.
func categoryCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:    "category",
		Aliases: []string{"cat"},
		Usage:   "Manage the category tree",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a category",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "parent", Aliases: []string{"p"}, Usage: "Parent category id"},
					&cli.StringFlag{Name: "color", Usage: "#rrggbb (random when omitted)"},
					&cli.IntFlag{Name: "order", Usage: "Position among siblings"},
				},
				Action: func(c *cli.Context) error {
					name, err := requireArg(c, "name")
					if err != nil {
						return outputError(err)
					}
					in := category.CreateInput{
						Name:     name,
						ParentID: c.String("parent"),
						Color:    c.String("color"),
					}
					if c.IsSet("order") {
						order := c.Int("order")
						in.Order = &order
					}

					created, err := a.Categories.CreateCategory(c.Context, in)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, created)
				},
			},
			{
				Name:      "get",
				Usage:     "Show a category with its path, children and counts",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, "category id")
					if err != nil {
						return outputError(err)
					}

					cat, err := a.Categories.GetCategory(c.Context, id)
					if err != nil {
						return outputError(err)
					}
					path, err := a.Categories.GetCategoryPath(c.Context, id)
					if err != nil {
						return outputError(err)
					}
					children, err := a.Categories.GetChildren(c.Context, id)
					if err != nil {
						return outputError(err)
					}
					stats, err := a.Categories.GetCategoryStats(c.Context, id)
					if err != nil {
						return outputError(err)
					}

					names := make([]string, len(path))
					for i, p := range path {
						names[i] = p.Name
					}
					if children == nil {
						children = []domain.Category{}
					}
					return outputJSON(c, categoryDetail{
						Category: cat,
						Path:     names,
						Depth:    len(path),
						Children: children,
						Stats:    stats,
					})
				},
			},
			{
				Name:  "tree",
				Usage: "Print the whole category tree",
				Action: func(c *cli.Context) error {
					tree, err := a.Categories.GetCategoryTree(c.Context)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, tree)
				},
			},
			{
				Name:      "update",
				Usage:     "Rename, recolour or reorder a category",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}},
					&cli.StringFlag{Name: "color"},
					&cli.IntFlag{Name: "order"},
				},
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, "category id")
					if err != nil {
						return outputError(err)
					}
					var in category.UpdateInput
					if c.IsSet("name") {
						name := c.String("name")
						in.Name = &name
					}
					if c.IsSet("color") {
						color := c.String("color")
						in.Color = &color
					}
					if c.IsSet("order") {
						order := c.Int("order")
						in.Order = &order
					}

					updated, err := a.Categories.UpdateCategory(c.Context, id, in)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, updated)
				},
			},
			{
				Name:      "move",
				Usage:     "Move a category under a new parent, or to the root without --parent",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "parent", Aliases: []string{"p"}, Usage: "New parent category id"},
				},
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, "category id")
					if err != nil {
						return outputError(err)
					}

					moved, err := a.Categories.MoveCategory(c.Context, id, c.String("parent"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, moved)
				},
			},
			{
				Name:      "reorder",
				Usage:     "Set the order of a parent's children",
				ArgsUsage: "<id>...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "parent", Aliases: []string{"p"}, Usage: "Parent category id (root when omitted)"},
				},
				Action: func(c *cli.Context) error {
					if _, err := requireArg(c, "category ids"); err != nil {
						return outputError(err)
					}

					reordered, err := a.Categories.ReorderCategories(c.Context, c.String("parent"), c.Args().Slice())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, reordered)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a category; clips must not reference it",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "with-children", Usage: "Also delete every subcategory"},
				},
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, "category id")
					if err != nil {
						return outputError(err)
					}

					if !c.Bool("with-children") {
						if err := a.Categories.DeleteCategory(c.Context, id); err != nil {
							return outputError(err)
						}
						return outputJSON(c, map[string]any{"deleted": 1, "ids": []string{id}})
					}

					removed, err := a.Categories.DeleteCategoryWithChildren(c.Context, id)
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
				Name:      "search",
				Usage:     "Categories whose name contains the query",
				ArgsUsage: "<query>",
				Action: func(c *cli.Context) error {
					query, err := requireArg(c, "query")
					if err != nil {
						return outputError(err)
					}

					found, err := a.Categories.SearchCategories(c.Context, query)
					if err != nil {
						return outputError(err)
					}
					if found == nil {
						found = []domain.Category{}
					}
					return outputJSON(c, found)
				},
			},
			{
				Name:      "stats",
				Usage:     "Clip and subcategory counts for one category, or all",
				ArgsUsage: "[id]",
				Action: func(c *cli.Context) error {
					if c.NArg() > 0 {
						stats, err := a.Categories.GetCategoryStats(c.Context, c.Args().First())
						if err != nil {
							return outputError(err)
						}
						return outputJSON(c, stats)
					}

					all, err := a.Categories.GetAllStats(c.Context)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, all)
				},
			},
		},
	}
}
