package app_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/nikbrunner/marks/internal/app"
	"github.com/nikbrunner/marks/internal/clickstats"
	"github.com/nikbrunner/marks/internal/config"
	"github.com/nikbrunner/marks/internal/model"
	"github.com/nikbrunner/marks/internal/repository"
	"github.com/nikbrunner/marks/internal/storage"
	"github.com/nikbrunner/marks/internal/undo"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenWiresEverything(t *testing.T) {
	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "marks.json"))

	a, err := app.Open(config.Default(), app.WithStore(store), app.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer a.Close()

	if a.Repo == nil || a.Clicks == nil || a.Undo == nil || a.Store == nil {
		t.Fatal("Open() left components unwired")
	}

	node, err := a.Repo.Add(model.NewNodeParams{Type: model.TypeBookmark, Title: "A", URL: "https://a.example.com"})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if _, ok := a.Repo.Find(node.ID); !ok {
		t.Error("added bookmark not findable")
	}
}

func TestOpenRehydratesStagedUndo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marks.json")

	// stage a deletion in a first "process"
	store := storage.NewJSONStore(path)
	repo := repository.New(store, discardLogger())
	node, err := repo.Add(model.NewNodeParams{Type: model.TypeBookmark, Title: "Gone", URL: "https://gone.example.com"})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	buffer := undo.New(store, repo, discardLogger(), undo.Options{})
	if _, err := repo.Delete(node.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := buffer.StageSingle(node); err != nil {
		t.Fatalf("StageSingle() error: %v", err)
	}
	buffer.Close()

	// a fresh app on the same file sees the staged undo
	a, err := app.Open(config.Default(),
		app.WithStore(storage.NewJSONStore(path)), app.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer a.Close()

	pending, ok := a.Undo.PendingSingle()
	if !ok {
		t.Fatal("staged undo lost across restart")
	}
	if pending.ID != node.ID {
		t.Errorf("pending.ID = %q, want %q", pending.ID, node.ID)
	}
}

func TestOpenMigratesTitleKeyedClicks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marks.json")

	store := storage.NewJSONStore(path)
	repo := repository.New(store, discardLogger())
	node, err := repo.Add(model.NewNodeParams{Type: model.TypeBookmark, Title: "Old Times", URL: "https://old.example.com"})
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	// click stats keyed by title, as old data files had them
	if err := store.Set(storage.KeyClicks, map[string]int{"Old Times": 7}); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	a, err := app.Open(config.Default(),
		app.WithStore(storage.NewJSONStore(path)), app.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer a.Close()

	if got := a.Clicks.Count(node.ID); got != 7 {
		t.Errorf("Count(%q) = %d, want 7 after migration", node.ID, got)
	}

	// the tracker of a later process agrees
	later := clickstats.New(storage.NewJSONStore(path), discardLogger())
	if got := later.Count(node.ID); got != 7 {
		t.Errorf("migrated count not persisted, got %d", got)
	}
}

func TestOpenExplicitBackendAndPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "marks.json")
	cfg := config.Default()
	cfg.Store.Backend = storage.BackendJSON
	cfg.Store.Path = path

	a, err := app.Open(cfg, app.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer a.Close()

	if _, err := a.Repo.Add(model.NewNodeParams{Type: model.TypeBookmark, Title: "A", URL: "https://a.example.com"}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("store file not created at configured path: %v", err)
	}
}
