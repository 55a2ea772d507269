package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/nikbrunner/marks/internal/app"
	"github.com/nikbrunner/marks/internal/config"
	"github.com/nikbrunner/marks/internal/model"
	"github.com/nikbrunner/marks/internal/repository"
)

func main() {
	cmd := rootCommand()
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:  "marks",
		Usage: "Bookmark vault with folders, categories, deletion undo and backups",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the config file",
				Sources: cli.EnvVars("MARKS_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			addCommand(),
			folderCommand(),
			lsCommand(),
			searchCommand(),
			openCommand(),
			rmCommand(),
			undoCommand(),
			mvCommand(),
			editCommand(),
			tagsCommand(),
			categoryCommand(),
			dedupeCommand(),
			checkCommand(),
			importCommand(),
			exportCommand(),
			backupCommand(),
			autobackupCommand(),
		},
	}
}

// openApp loads the config and wires the application.
func openApp(cmd *cli.Command) (*app.App, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	return app.Open(cfg)
}

// withApp opens the application around a command action and closes it when
// the action returns.
func withApp(action func(ctx context.Context, cmd *cli.Command, a *app.App) error) func(context.Context, *cli.Command) error {
	return func(ctx context.Context, cmd *cli.Command) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return action(ctx, cmd, a)
	}
}

// openURL opens a URL in the default browser.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	}
	if cmd != nil {
		_ = cmd.Start()
	}
}

// resolveNode finds a node by full id, unique id prefix or unique title, so
// commands accept the short ids that ls prints.
func resolveNode(repo *repository.Repository, arg string) (model.Node, error) {
	nodes := repo.GetAll()

	var byPrefix []model.Node
	for _, n := range nodes {
		if n.ID == arg {
			return n, nil
		}
		if strings.HasPrefix(n.ID, arg) {
			byPrefix = append(byPrefix, n)
		}
	}
	if len(byPrefix) == 1 {
		return byPrefix[0], nil
	}
	if len(byPrefix) > 1 {
		return model.Node{}, fmt.Errorf("%q matches %d ids, be more specific", arg, len(byPrefix))
	}

	var byTitle []model.Node
	for _, n := range nodes {
		if strings.EqualFold(n.Title, arg) {
			byTitle = append(byTitle, n)
		}
	}
	if len(byTitle) == 1 {
		return byTitle[0], nil
	}
	if len(byTitle) > 1 {
		return model.Node{}, fmt.Errorf("%q matches %d titles, use the id", arg, len(byTitle))
	}
	return model.Node{}, fmt.Errorf("nothing matches %q", arg)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// defaultBackupDir returns the default backup directory: ~/.config/marks/backups
func defaultBackupDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "marks", "backups"), nil
}
