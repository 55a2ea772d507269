package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/nikbrunner/marks/internal/app"
	"github.com/nikbrunner/marks/internal/apperr"
	"github.com/nikbrunner/marks/internal/backup"
	"github.com/nikbrunner/marks/internal/checker"
	"github.com/nikbrunner/marks/internal/dedupe"
	"github.com/nikbrunner/marks/internal/exporter"
	"github.com/nikbrunner/marks/internal/importer"
	"github.com/nikbrunner/marks/internal/model"
	"github.com/nikbrunner/marks/internal/picker"
	"github.com/nikbrunner/marks/internal/repository"
	"github.com/nikbrunner/marks/internal/search"
)

func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a bookmark",
		ArgsUsage: "<url> [title]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "parent", Aliases: []string{"p"}, Usage: "parent folder (id or title)"},
			&cli.StringFlag{Name: "category", Usage: "category name, created on first use"},
			&cli.StringSliceFlag{Name: "tag", Aliases: []string{"t"}, Usage: "tag, repeatable"},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "free-form description"},
			&cli.BoolFlag{Name: "quick", Aliases: []string{"q"}, Usage: "file under the quick-add folder"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			url := cmd.Args().First()
			if url == "" {
				return errors.New("usage: marks add <url> [title]")
			}
			title := cmd.Args().Get(1)
			if title == "" {
				title = url
			}

			var parentID *string
			switch {
			case cmd.String("parent") != "":
				folder, err := resolveNode(a.Repo, cmd.String("parent"))
				if err != nil {
					return err
				}
				if !folder.IsFolder() {
					return fmt.Errorf("%s is not a folder", folder.Title)
				}
				parentID = &folder.ID
			case cmd.Bool("quick"):
				id, err := ensureFolder(a, a.Config.App.QuickAddFolder)
				if err != nil {
					return err
				}
				parentID = &id
			}

			categoryID, err := ensureCategory(a, cmd.String("category"))
			if err != nil {
				return err
			}

			node, err := a.Repo.Add(model.NewNodeParams{
				Type:        model.TypeBookmark,
				Title:       title,
				URL:         url,
				ParentID:    parentID,
				CategoryID:  categoryID,
				Tags:        dedupeTags(cmd.StringSlice("tag")),
				Description: cmd.String("description"),
			})
			if err != nil {
				return err
			}
			fmt.Printf("Added %s (%s)\n", node.Title, shortID(node.ID))
			return nil
		}),
	}
}

func folderCommand() *cli.Command {
	return &cli.Command{
		Name:      "folder",
		Usage:     "Add a folder",
		ArgsUsage: "<title>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "parent", Aliases: []string{"p"}, Usage: "parent folder (id or title)"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			title := cmd.Args().First()
			if title == "" {
				return errors.New("usage: marks folder <title>")
			}

			var parentID *string
			if cmd.String("parent") != "" {
				folder, err := resolveNode(a.Repo, cmd.String("parent"))
				if err != nil {
					return err
				}
				if !folder.IsFolder() {
					return fmt.Errorf("%s is not a folder", folder.Title)
				}
				parentID = &folder.ID
			}

			node, err := a.Repo.Add(model.NewNodeParams{
				Type:     model.TypeFolder,
				Title:    title,
				ParentID: parentID,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Added folder %s (%s)\n", node.Title, shortID(node.ID))
			return nil
		}),
	}
}

func lsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ls",
		Usage: "List the bookmark tree",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "folder", Usage: "list only this folder's subtree"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			nodes := a.Repo.GetAll()
			if len(nodes) == 0 {
				fmt.Println("No bookmarks yet. Add one with: marks add <url>")
				return nil
			}

			var parent *string
			depth := 0
			if cmd.String("folder") != "" {
				folder, err := resolveNode(a.Repo, cmd.String("folder"))
				if err != nil {
					return err
				}
				if !folder.IsFolder() {
					return fmt.Errorf("%s is not a folder", folder.Title)
				}
				parent = &folder.ID
				depth = 1
				fmt.Printf("%s  %s/\n", shortID(folder.ID), folder.Title)
			}

			printTree(a, nodes, parent, depth)
			return nil
		}),
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Fuzzy-search bookmarks and open the pick",
		ArgsUsage: "[query]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "print", Usage: "print matches instead of picking"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			query := strings.Join(cmd.Args().Slice(), " ")
			nodes := a.Repo.GetAll()

			if cmd.Bool("print") {
				for _, r := range search.Bookmarks(nodes, query) {
					fmt.Printf("%s  %s  %s\n", shortID(r.Node.ID), r.Node.Title, r.Node.URL)
				}
				return nil
			}

			if query != "" {
				results := search.Bookmarks(nodes, query)
				if len(results) == 0 {
					fmt.Printf("No bookmarks match %q\n", query)
					return nil
				}
				if len(results) == 1 {
					return openNode(a, results[0].Node)
				}
			}

			p := picker.New(nodes, query)
			finalModel, err := tea.NewProgram(p).Run()
			if err != nil {
				return fmt.Errorf("running picker: %w", err)
			}
			final := finalModel.(picker.Picker)
			if final.Cancelled() {
				return nil
			}
			node, ok := final.SelectedNode()
			if !ok {
				return nil
			}
			return openNode(a, node)
		}),
	}
}

func openCommand() *cli.Command {
	return &cli.Command{
		Name:      "open",
		Usage:     "Open a bookmark in the browser",
		ArgsUsage: "<id>",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			if cmd.Args().First() == "" {
				return errors.New("usage: marks open <id>")
			}
			node, err := resolveNode(a.Repo, cmd.Args().First())
			if err != nil {
				return err
			}
			if node.IsFolder() {
				return fmt.Errorf("%s is a folder", node.Title)
			}
			return openNode(a, node)
		}),
	}
}

func rmCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Delete bookmarks or folders (folders take their contents along)",
		ArgsUsage: "<id>...",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			args := cmd.Args().Slice()
			if len(args) == 0 {
				return errors.New("usage: marks rm <id>...")
			}

			var roots []model.Node
			for _, arg := range args {
				node, err := resolveNode(a.Repo, arg)
				if err != nil {
					return err
				}
				roots = append(roots, node)
			}

			if len(roots) == 1 {
				subtree := a.Repo.Subtree(roots[0].ID)
				if len(subtree) == 1 {
					removed, err := a.Repo.Delete(roots[0].ID)
					if err != nil {
						return err
					}
					if !removed {
						return fmt.Errorf("nothing matches %q anymore", args[0])
					}
					if err := a.Undo.StageSingle(subtree[0]); err != nil {
						return err
					}
					fmt.Printf("Deleted %s. Undo within %s: marks undo\n",
						subtree[0].Title, a.Undo.Remaining().Round(time.Second))
					return nil
				}
			}

			ids := make([]string, len(roots))
			for i, n := range roots {
				ids[i] = n.ID
			}
			removed, err := a.Repo.DeleteMany(ids)
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				return errors.New("nothing was deleted")
			}
			if err := a.Undo.StageBatch(removed); err != nil {
				return err
			}
			fmt.Printf("Deleted %d items. Undo within %s: marks undo\n",
				len(removed), a.Undo.Remaining().Round(time.Second))
			return nil
		}),
	}
}

func undoCommand() *cli.Command {
	return &cli.Command{
		Name:  "undo",
		Usage: "Restore the last deletion",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			node, err := a.Undo.UndoSingle()
			if err == nil {
				fmt.Printf("Restored %s\n", node.Title)
				return nil
			}
			if !errors.Is(err, apperr.ErrNotFound) {
				return err
			}

			nodes, err := a.Undo.UndoBatch()
			if err == nil {
				fmt.Printf("Restored %d items\n", len(nodes))
				return nil
			}
			if !errors.Is(err, apperr.ErrNotFound) {
				return err
			}
			return errors.New("nothing to undo, or the undo window elapsed")
		}),
	}
}

func mvCommand() *cli.Command {
	return &cli.Command{
		Name:      "mv",
		Usage:     "Move a bookmark or folder into another folder",
		ArgsUsage: "<id> <folder|root>",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			if cmd.Args().Len() != 2 {
				return errors.New("usage: marks mv <id> <folder|root>")
			}
			node, err := resolveNode(a.Repo, cmd.Args().First())
			if err != nil {
				return err
			}

			var parent *string
			dest := cmd.Args().Get(1)
			if dest != "root" {
				folder, err := resolveNode(a.Repo, dest)
				if err != nil {
					return err
				}
				parent = &folder.ID
			}

			moved, err := a.Repo.Move(node.ID, parent)
			if err != nil {
				return err
			}
			if parent == nil {
				fmt.Printf("Moved %s to the root\n", moved.Title)
			} else {
				fmt.Printf("Moved %s\n", moved.Title)
			}
			return nil
		}),
	}
}

func editCommand() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Edit a bookmark or folder",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Usage: "new title"},
			&cli.StringFlag{Name: "url", Usage: "new URL"},
			&cli.StringFlag{Name: "category", Usage: "category name, empty clears it"},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "new description"},
			&cli.StringSliceFlag{Name: "tag", Aliases: []string{"t"}, Usage: "replacement tag set, repeatable"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			if cmd.Args().First() == "" {
				return errors.New("usage: marks edit <id> [flags]")
			}
			node, err := resolveNode(a.Repo, cmd.Args().First())
			if err != nil {
				return err
			}

			patch := repository.NodePatch{}
			if cmd.IsSet("title") {
				v := cmd.String("title")
				patch.Title = &v
			}
			if cmd.IsSet("url") {
				v := cmd.String("url")
				patch.URL = &v
			}
			if cmd.IsSet("description") {
				v := cmd.String("description")
				patch.Description = &v
			}
			if cmd.IsSet("category") {
				id, err := ensureCategory(a, cmd.String("category"))
				if err != nil {
					return err
				}
				patch.CategoryID = &id
			}
			if cmd.IsSet("tag") {
				patch.Tags = dedupeTags(cmd.StringSlice("tag"))
			}

			updated, err := a.Repo.Update(node.ID, patch)
			if err != nil {
				return err
			}
			fmt.Printf("Updated %s\n", updated.Title)
			return nil
		}),
	}
}

func tagsCommand() *cli.Command {
	return &cli.Command{
		Name:      "tags",
		Usage:     "Show or replace a bookmark's tags",
		ArgsUsage: "<id> [tag...]",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			if cmd.Args().First() == "" {
				return errors.New("usage: marks tags <id> [tag...]")
			}
			node, err := resolveNode(a.Repo, cmd.Args().First())
			if err != nil {
				return err
			}

			rest := cmd.Args().Slice()[1:]
			if len(rest) == 0 {
				if len(node.Tags) == 0 {
					fmt.Printf("%s has no tags\n", node.Title)
				} else {
					fmt.Println(strings.Join(node.Tags, " "))
				}
				return nil
			}

			updated, err := a.Repo.Update(node.ID, repository.NodePatch{Tags: dedupeTags(rest)})
			if err != nil {
				return err
			}
			fmt.Printf("Tags for %s: %s\n", updated.Title, strings.Join(updated.Tags, " "))
			return nil
		}),
	}
}

func categoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "category",
		Usage: "Manage categories",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a category",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "color", Usage: "hex color like #ff8800"},
					&cli.StringFlag{Name: "icon", Usage: "icon glyph"},
				},
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					name := cmd.Args().First()
					if name == "" {
						return errors.New("usage: marks category add <name>")
					}
					id, err := a.Repo.AddCategory(model.NewCategoryParams{
						Name:  name,
						Color: cmd.String("color"),
						Icon:  cmd.String("icon"),
					})
					if err != nil {
						return err
					}
					fmt.Printf("Added category %s (%s)\n", name, shortID(id))
					return nil
				}),
			},
			{
				Name:  "ls",
				Usage: "List categories",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					categories := a.Repo.GetCategories()
					if len(categories) == 0 {
						fmt.Println("No categories.")
						return nil
					}
					counts := map[string]int{}
					for _, n := range a.Repo.GetAll() {
						if n.IsBookmark() {
							counts[n.CategoryID]++
						}
					}
					for _, c := range categories {
						line := fmt.Sprintf("%s  %s", shortID(c.ID), c.Name)
						if c.Color != "" {
							line += "  " + c.Color
						}
						if c.Icon != "" {
							line += "  " + c.Icon
						}
						fmt.Printf("%s  (%d bookmarks)\n", line, counts[c.ID])
					}
					return nil
				}),
			},
			{
				Name:      "rm",
				Usage:     "Delete a category (bookmarks keep working, they show as Uncategorized)",
				ArgsUsage: "<id|name>",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					if cmd.Args().First() == "" {
						return errors.New("usage: marks category rm <id|name>")
					}
					cat, err := resolveCategory(a, cmd.Args().First())
					if err != nil {
						return err
					}
					if err := a.Repo.DeleteCategory(cat.ID); err != nil {
						return err
					}
					fmt.Printf("Deleted category %s\n", cat.Name)
					return nil
				}),
			},
			{
				Name:      "edit",
				Usage:     "Edit a category",
				ArgsUsage: "<id|name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "new name"},
					&cli.StringFlag{Name: "color", Usage: "new hex color"},
					&cli.StringFlag{Name: "icon", Usage: "new icon glyph"},
				},
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					if cmd.Args().First() == "" {
						return errors.New("usage: marks category edit <id|name> [flags]")
					}
					cat, err := resolveCategory(a, cmd.Args().First())
					if err != nil {
						return err
					}

					patch := repository.CategoryPatch{}
					if cmd.IsSet("name") {
						v := cmd.String("name")
						patch.Name = &v
					}
					if cmd.IsSet("color") {
						v := cmd.String("color")
						patch.Color = &v
					}
					if cmd.IsSet("icon") {
						v := cmd.String("icon")
						patch.Icon = &v
					}

					updated, err := a.Repo.UpdateCategory(cat.ID, patch)
					if err != nil {
						return err
					}
					if updated == nil {
						return fmt.Errorf("no category matches %q", cmd.Args().First())
					}
					fmt.Printf("Updated category %s\n", updated.Name)
					return nil
				}),
			},
		},
	}
}

func dedupeCommand() *cli.Command {
	return &cli.Command{
		Name:  "dedupe",
		Usage: "Find bookmarks sharing a URL and merge them",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "apply", Usage: "merge the groups instead of only listing them"},
			&cli.StringSliceFlag{Name: "keep", Usage: "url=id picks the survivor for a url, repeatable"},
			&cli.BoolFlag{Name: "skip-tags", Usage: "do not union tags onto the survivor"},
			&cli.BoolFlag{Name: "skip-categories", Usage: "do not adopt a category from the duplicates"},
			&cli.BoolFlag{Name: "skip-descriptions", Usage: "do not adopt a longer description"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			groups := dedupe.FindGroups(a.Repo.GetAll())
			if len(groups) == 0 {
				fmt.Println("No duplicates found.")
				return nil
			}

			keep := map[string]string{}
			for _, pair := range cmd.StringSlice("keep") {
				cut := strings.LastIndex(pair, "=")
				if cut <= 0 || cut == len(pair)-1 {
					return fmt.Errorf("--keep wants url=id, got %q", pair)
				}
				keep[pair[:cut]] = pair[cut+1:]
			}

			for _, g := range groups {
				fmt.Println(g.URL)
				for i, n := range g.Nodes {
					marker := " "
					if keepID, ok := keep[g.URL]; (ok && n.ID == keepID) || (!ok && i == 0) {
						marker = "*"
					}
					fmt.Printf("  %s %s  %s\n", marker, shortID(n.ID), n.Title)
				}
			}

			if !cmd.Bool("apply") {
				fmt.Printf("%d duplicate groups. Re-run with --apply to merge each group into the starred entry.\n", len(groups))
				return nil
			}

			opts := dedupe.MergeOptions{
				Tags:         !cmd.Bool("skip-tags"),
				Categories:   !cmd.Bool("skip-categories"),
				Descriptions: !cmd.Bool("skip-descriptions"),
			}
			engine := dedupe.NewEngine(a.Repo, a.Undo, a.Logger)
			result, err := engine.Merge(groups, keep, opts)
			if err != nil {
				return err
			}
			fmt.Printf("Merged %d groups, removed %d duplicates. Undo within %s: marks undo\n",
				result.MergedGroups, len(result.Removed), a.Undo.Remaining().Round(time.Second))
			return nil
		}),
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Probe bookmark URLs and report dead ones",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "concurrency", Usage: "parallel requests"},
			&cli.StringFlag{Name: "timeout", Usage: "per-request timeout like 10s"},
			&cli.StringSliceFlag{Name: "exclude", Usage: "domain where 404 means private, repeatable"},
			&cli.BoolFlag{Name: "prune", Usage: "delete dead bookmarks, undoable as one batch"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			concurrency := a.Config.Checker.Concurrency
			if cmd.IsSet("concurrency") {
				v, err := strconv.Atoi(cmd.String("concurrency"))
				if err != nil {
					return fmt.Errorf("--concurrency wants a number: %w", err)
				}
				concurrency = v
			}

			timeout := a.Config.Checker.TimeoutDuration()
			if cmd.IsSet("timeout") {
				v, err := time.ParseDuration(cmd.String("timeout"))
				if err != nil {
					return fmt.Errorf("--timeout wants a duration like 10s: %w", err)
				}
				timeout = v
			}
			if timeout == 0 {
				timeout = 10 * time.Second
			}

			excludes := make([]string, 0, len(a.Config.Checker.ExcludeDomains))
			excludes = append(excludes, a.Config.Checker.ExcludeDomains...)
			excludes = append(excludes, cmd.StringSlice("exclude")...)

			results := checker.Check(a.Repo.GetAll(), concurrency, timeout, excludes,
				func(done, total int) {
					fmt.Fprintf(os.Stderr, "\rChecking %d/%d", done, total)
				})
			fmt.Fprintln(os.Stderr)

			if len(results) == 0 {
				fmt.Println("No bookmarks to check.")
				return nil
			}

			var dead, unreachable []checker.Result
			for _, r := range results {
				switch r.Status {
				case checker.Dead:
					dead = append(dead, r)
				case checker.Unreachable:
					unreachable = append(unreachable, r)
				}
			}

			for _, r := range dead {
				fmt.Printf("dead         %s  %s (%d)\n", shortID(r.Node.ID), r.Node.Title, r.StatusCode)
			}
			for _, r := range unreachable {
				fmt.Printf("unreachable  %s  %s (%s)\n", shortID(r.Node.ID), r.Node.Title, r.Error)
			}
			fmt.Printf("%d checked: %d healthy, %d dead, %d unreachable\n",
				len(results), len(results)-len(dead)-len(unreachable), len(dead), len(unreachable))

			if !cmd.Bool("prune") {
				return nil
			}
			if len(dead) == 0 {
				fmt.Println("Nothing to prune.")
				return nil
			}

			ids := make([]string, len(dead))
			for i, r := range dead {
				ids[i] = r.Node.ID
			}
			removed, err := a.Repo.DeleteMany(ids)
			if err != nil {
				return err
			}
			if err := a.Undo.StageBatch(removed); err != nil {
				return err
			}
			fmt.Printf("Pruned %d dead bookmarks. Undo within %s: marks undo\n",
				len(removed), a.Undo.Remaining().Round(time.Second))
			return nil
		}),
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import bookmarks from a browser HTML export",
		ArgsUsage: "<file.html>",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			path := cmd.Args().First()
			if path == "" {
				return errors.New("usage: marks import <file.html>")
			}

			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()

			drafts, err := importer.ParseNetscape(file)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", path, err)
			}
			if len(drafts) == 0 {
				fmt.Println("Nothing to import.")
				return nil
			}

			existing := map[string]bool{}
			for _, n := range a.Repo.GetAll() {
				if n.IsBookmark() && n.URL != "" {
					existing[n.URL] = true
				}
			}
			categoriesBefore := len(a.Repo.GetCategories())

			added, skipped := 0, 0
			for _, d := range drafts {
				if existing[d.URL] {
					skipped++
					continue
				}
				categoryID, err := ensureCategory(a, d.Category)
				if err != nil {
					return err
				}

				node := model.NewNode(model.NewNodeParams{
					Type:       model.TypeBookmark,
					Title:      d.Title,
					URL:        d.URL,
					CategoryID: categoryID,
				})
				if !d.CreatedAt.IsZero() {
					node.CreatedAt = d.CreatedAt
				}
				node.LastAccessed = nil

				if _, err := a.Repo.Restore(node); err != nil {
					return err
				}
				existing[d.URL] = true
				added++
			}

			fmt.Printf("Imported %d bookmarks", added)
			if skipped > 0 {
				fmt.Printf(" (%d duplicates skipped)", skipped)
			}
			if created := len(a.Repo.GetCategories()) - categoriesBefore; created > 0 {
				fmt.Printf(", created %d categories", created)
			}
			fmt.Println()
			return nil
		}),
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export bookmarks to browser-importable HTML",
		ArgsUsage: "[path]",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			outputPath := cmd.Args().First()
			if outputPath == "" {
				var err error
				outputPath, err = exporter.DefaultExportPath()
				if err != nil {
					return err
				}
			}

			nodes := a.Repo.GetAll()
			if err := os.WriteFile(outputPath, []byte(exporter.HTML(nodes)), 0o644); err != nil {
				return err
			}

			bookmarks, folders := 0, 0
			for _, n := range nodes {
				if n.IsFolder() {
					folders++
				} else {
					bookmarks++
				}
			}
			fmt.Printf("Exported %d bookmarks, %d folders to %s\n", bookmarks, folders, outputPath)
			return nil
		}),
	}
}

func backupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Write and restore JSON backups",
		Commands: []*cli.Command{
			{
				Name:      "now",
				Usage:     "Write a backup",
				ArgsUsage: "[path]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "target directory for generated names"},
					&cli.BoolFlag{Name: "split", Usage: "write separate bookmark and category files"},
				},
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					doc := backup.Snapshot(a.Repo.GetAll(), a.Repo.GetCategories(), a.Clicks.Snapshot())

					dir := cmd.String("dir")
					if dir == "" {
						dir = a.Config.Backup.Dir
					}
					if dir == "" {
						var err error
						dir, err = defaultBackupDir()
						if err != nil {
							return err
						}
					}

					if cmd.Bool("split") {
						paths, err := backup.WriteSplit(dir, doc)
						if err != nil {
							return err
						}
						for _, p := range paths {
							fmt.Printf("Wrote %s\n", p)
						}
						return nil
					}

					path := cmd.Args().First()
					if path == "" {
						name := "marks-manual-" + doc.ExportDate.Format("20060102-150405") + ".json"
						path = filepath.Join(dir, name)
					}
					if err := backup.WriteCombined(path, doc); err != nil {
						return err
					}
					fmt.Printf("Wrote %s (%d bookmarks, %d categories)\n",
						path, len(doc.Bookmarks), len(doc.Categories))
					return nil
				}),
			},
			{
				Name:      "restore",
				Usage:     "Replace the vault with the contents of backup files",
				ArgsUsage: "<file>...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "strategy", Usage: "conflict resolution: newest, oldest or merge"},
				},
				Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					paths := cmd.Args().Slice()
					if len(paths) == 0 {
						return errors.New("usage: marks backup restore <file>...")
					}

					strategy, err := backup.ParseStrategy(cmd.String("strategy"))
					if err != nil {
						return err
					}

					restorer := backup.NewRestorer(a.Store, a.Logger)
					result, err := restorer.Restore(paths, strategy)
					if err != nil {
						for _, c := range result.Conflicts {
							fmt.Fprintf(os.Stderr, "conflict: id %s appears in %d versions\n",
								shortID(c.ID), len(c.Versions))
						}
						return err
					}
					fmt.Printf("Restored %d bookmarks, %d categories from %d files\n",
						result.Bookmarks, result.Categories, len(paths))
					return nil
				}),
			},
		},
	}
}

func autobackupCommand() *cli.Command {
	return &cli.Command{
		Name:  "autobackup",
		Usage: "Run periodic backups until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "backup directory"},
			&cli.StringFlag{Name: "interval", Usage: "time between backups like 1h"},
			&cli.StringFlag{Name: "keep", Usage: "number of automatic backups to keep"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			dir := cmd.String("dir")
			if dir == "" {
				dir = a.Config.Backup.Dir
			}
			if dir == "" {
				var err error
				dir, err = defaultBackupDir()
				if err != nil {
					return err
				}
			}

			interval := a.Config.Backup.IntervalDuration()
			if cmd.IsSet("interval") {
				v, err := time.ParseDuration(cmd.String("interval"))
				if err != nil {
					return fmt.Errorf("--interval wants a duration like 1h: %w", err)
				}
				interval = v
			}

			keep := a.Config.Backup.Keep
			if cmd.IsSet("keep") {
				v, err := strconv.Atoi(cmd.String("keep"))
				if err != nil {
					return fmt.Errorf("--keep wants a number: %w", err)
				}
				keep = v
			}

			sched := backup.NewScheduler(a.Repo, a.Clicks, dir, interval, keep, a.Logger)

			path, err := sched.RunOnce()
			if err != nil {
				return err
			}
			fmt.Printf("Backup written to %s\n", path)

			sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, gCtx := errgroup.WithContext(sigCtx)
			g.Go(func() error {
				return sched.Run(gCtx)
			})
			g.Go(func() error {
				<-gCtx.Done()
				a.Logger.Info("shutting down")
				return nil
			})
			return g.Wait()
		}),
	}
}

// openNode records the visit and opens the bookmark in the browser.
func openNode(a *app.App, node model.Node) error {
	updated, err := a.Repo.RecordVisit(node.ID)
	if err != nil {
		return err
	}
	if _, err := a.Clicks.Record(node.ID); err != nil {
		a.Logger.Warn("recording click failed", slog.String("error", err.Error()))
	}
	fmt.Printf("Opening %s\n", updated.Title)
	openURL(updated.URL)
	return nil
}

// printTree walks the forest depth first, folders before bookmarks on each
// level, matching the export order.
func printTree(a *app.App, nodes []model.Node, parent *string, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		if n.IsFolder() && sameParent(n.ParentID, parent) {
			fmt.Printf("%s%s  %s/\n", indent, shortID(n.ID), n.Title)
			printTree(a, nodes, &n.ID, depth+1)
		}
	}
	for _, n := range nodes {
		if n.IsBookmark() && sameParent(n.ParentID, parent) {
			line := fmt.Sprintf("%s%s  %s  %s  (%s)",
				indent, shortID(n.ID), n.Title, n.URL, a.Repo.ResolveCategoryName(n.CategoryID))
			if len(n.Tags) > 0 {
				line += "  #" + strings.Join(n.Tags, " #")
			}
			fmt.Println(line)
		}
	}
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ensureCategory resolves a category name to its id, creating the category
// on first use. An empty name means no category.
func ensureCategory(a *app.App, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	for _, c := range a.Repo.GetCategories() {
		if strings.EqualFold(c.Name, name) {
			return c.ID, nil
		}
	}
	return a.Repo.AddCategory(model.NewCategoryParams{Name: name})
}

// ensureFolder resolves a root-level folder by title, creating it when
// missing.
func ensureFolder(a *app.App, title string) (string, error) {
	for _, n := range a.Repo.GetAll() {
		if n.IsFolder() && n.ParentID == nil && strings.EqualFold(n.Title, title) {
			return n.ID, nil
		}
	}
	node, err := a.Repo.Add(model.NewNodeParams{Type: model.TypeFolder, Title: title})
	if err != nil {
		return "", err
	}
	return node.ID, nil
}

// resolveCategory finds a category by id, unique id prefix or name.
func resolveCategory(a *app.App, arg string) (model.Category, error) {
	categories := a.Repo.GetCategories()

	var byPrefix []model.Category
	for _, c := range categories {
		if c.ID == arg {
			return c, nil
		}
		if strings.HasPrefix(c.ID, arg) {
			byPrefix = append(byPrefix, c)
		}
	}
	if len(byPrefix) == 1 {
		return byPrefix[0], nil
	}

	var byName []model.Category
	for _, c := range categories {
		if strings.EqualFold(c.Name, arg) {
			byName = append(byName, c)
		}
	}
	if len(byName) == 1 {
		return byName[0], nil
	}
	if len(byName) > 1 || len(byPrefix) > 1 {
		return model.Category{}, fmt.Errorf("%q is ambiguous, use the full id", arg)
	}
	return model.Category{}, fmt.Errorf("no category matches %q", arg)
}

// dedupeTags drops repeated tags, keeping first occurrences in order.
func dedupeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
