package undo_test

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/nikbrunner/marks/internal/apperr"
	"github.com/nikbrunner/marks/internal/model"
	"github.com/nikbrunner/marks/internal/repository"
	"github.com/nikbrunner/marks/internal/storage"
	"github.com/nikbrunner/marks/internal/undo"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newBuffer wires a buffer to a real store and repository with short
// windows so expiry tests stay fast.
func newBuffer(t *testing.T, opts undo.Options) (*undo.Buffer, *repository.Repository, storage.Store) {
	t.Helper()
	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "marks.json"))
	repo := repository.New(store, discardLogger())
	buf := undo.New(store, repo, discardLogger(), opts)
	t.Cleanup(buf.Close)
	return buf, repo, store
}

func deleteBookmark(t *testing.T, repo *repository.Repository, title string) model.Node {
	t.Helper()
	node, err := repo.Add(model.NewNodeParams{
		Type:  model.TypeBookmark,
		Title: title,
		URL:   "https://example.com/" + title,
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := repo.Delete(node.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	return node
}

func TestStageAndUndoSingle(t *testing.T) {
	buf, repo, store := newBuffer(t, undo.Options{})

	node := deleteBookmark(t, repo, "go-blog")
	if err := buf.StageSingle(node); err != nil {
		t.Fatalf("StageSingle failed: %v", err)
	}

	if _, ok := buf.PendingSingle(); !ok {
		t.Fatal("expected pending single")
	}
	if left := buf.Remaining(); left <= 0 {
		t.Errorf("expected positive remaining window, got %v", left)
	}

	var persisted model.Node
	if found, err := store.Get(storage.KeyUndoNode, &persisted); err != nil || !found {
		t.Fatalf("expected persisted snapshot, found=%v err=%v", found, err)
	}
	if persisted.ID != node.ID {
		t.Errorf("expected persisted id %q, got %q", node.ID, persisted.ID)
	}

	restored, err := buf.UndoSingle()
	if err != nil {
		t.Fatalf("UndoSingle failed: %v", err)
	}
	if restored.ID != node.ID {
		t.Errorf("expected restored id %q, got %q", node.ID, restored.ID)
	}
	if _, ok := repo.Find(node.ID); !ok {
		t.Error("expected node back in the repository")
	}
	if _, ok := buf.PendingSingle(); ok {
		t.Error("expected buffer cleared after undo")
	}
	if found, _ := store.Get(storage.KeyUndoNode, &persisted); found {
		t.Error("expected persisted snapshot cleared after undo")
	}
}

func TestSingleExpiryClearsPersistedState(t *testing.T) {
	buf, repo, store := newBuffer(t, undo.Options{
		SingleWindow: 50 * time.Millisecond,
		Tick:         10 * time.Millisecond,
	})

	node := deleteBookmark(t, repo, "go-blog")
	if err := buf.StageSingle(node); err != nil {
		t.Fatal(err)
	}

	time.Sleep(250 * time.Millisecond)

	if _, ok := buf.PendingSingle(); ok {
		t.Error("expected pending state discarded after expiry")
	}
	var persisted model.Node
	if found, _ := store.Get(storage.KeyUndoNode, &persisted); found {
		t.Error("expected persisted snapshot cleared after expiry")
	}
	var exp time.Time
	if found, _ := store.Get(storage.KeyUndoExpire, &exp); found {
		t.Error("expected persisted expiry cleared after expiry")
	}
	if _, err := buf.UndoSingle(); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound after expiry, got %v", err)
	}
	if _, ok := repo.Find(node.ID); ok {
		t.Error("expired deletion must stay deleted")
	}
}

func TestPauseHaltsCountdown(t *testing.T) {
	buf, repo, _ := newBuffer(t, undo.Options{
		SingleWindow: 50 * time.Millisecond,
		Tick:         10 * time.Millisecond,
	})

	node := deleteBookmark(t, repo, "go-blog")
	if err := buf.StageSingle(node); err != nil {
		t.Fatal(err)
	}
	buf.Pause()

	// would have expired long ago without the pause
	time.Sleep(250 * time.Millisecond)

	if _, ok := buf.PendingSingle(); !ok {
		t.Fatal("expected paused buffer to survive past the window")
	}

	restored, err := buf.UndoSingle()
	if err != nil {
		t.Fatalf("UndoSingle while paused failed: %v", err)
	}
	if restored.ID != node.ID {
		t.Errorf("expected id %q, got %q", node.ID, restored.ID)
	}
}

func TestResumeReanchorsExpiry(t *testing.T) {
	buf, repo, store := newBuffer(t, undo.Options{
		SingleWindow: 60 * time.Millisecond,
		Tick:         10 * time.Millisecond,
	})

	node := deleteBookmark(t, repo, "go-blog")
	if err := buf.StageSingle(node); err != nil {
		t.Fatal(err)
	}
	buf.Pause()
	time.Sleep(150 * time.Millisecond)

	before := time.Now()
	if err := buf.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	if left := buf.Remaining(); left <= 0 || left > 60*time.Millisecond {
		t.Errorf("expected remaining within the original window, got %v", left)
	}
	var exp time.Time
	if found, err := store.Get(storage.KeyUndoExpire, &exp); err != nil || !found {
		t.Fatalf("expected persisted expiry, found=%v err=%v", found, err)
	}
	if !exp.After(before) {
		t.Errorf("expected re-anchored expiry after resume, got %v", exp)
	}

	time.Sleep(250 * time.Millisecond)
	if _, ok := buf.PendingSingle(); ok {
		t.Error("expected countdown to finish after resume")
	}
}

func TestStageSingleDropsBatch(t *testing.T) {
	buf, repo, store := newBuffer(t, undo.Options{})

	batchNode := deleteBookmark(t, repo, "batch-item")
	if err := buf.StageBatch([]model.Node{batchNode}); err != nil {
		t.Fatal(err)
	}

	single := deleteBookmark(t, repo, "single-item")
	if err := buf.StageSingle(single); err != nil {
		t.Fatal(err)
	}

	if got := buf.PendingBatch(); got != nil {
		t.Errorf("expected batch dropped, got %d nodes", len(got))
	}
	var batch []model.Node
	if found, _ := store.Get(storage.KeyUndoBatch, &batch); found {
		t.Error("expected persisted batch cleared")
	}
	if _, err := buf.UndoBatch(); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStageBatchDropsSingle(t *testing.T) {
	buf, repo, store := newBuffer(t, undo.Options{})

	single := deleteBookmark(t, repo, "single-item")
	if err := buf.StageSingle(single); err != nil {
		t.Fatal(err)
	}

	batchNode := deleteBookmark(t, repo, "batch-item")
	if err := buf.StageBatch([]model.Node{batchNode}); err != nil {
		t.Fatal(err)
	}

	if _, ok := buf.PendingSingle(); ok {
		t.Error("expected single dropped")
	}
	var node model.Node
	if found, _ := store.Get(storage.KeyUndoNode, &node); found {
		t.Error("expected persisted single cleared")
	}
}

func TestUndoBatch(t *testing.T) {
	buf, repo, store := newBuffer(t, undo.Options{})

	folder, err := repo.Add(model.NewNodeParams{Type: model.TypeFolder, Title: "Work"})
	if err != nil {
		t.Fatal(err)
	}
	child, err := repo.Add(model.NewNodeParams{
		Type: model.TypeBookmark, Title: "Repo", URL: "https://example.com", ParentID: &folder.ID,
	})
	if err != nil {
		t.Fatal(err)
	}

	removed, err := repo.DeleteMany([]string{folder.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed nodes, got %d", len(removed))
	}
	if err := buf.StageBatch(removed); err != nil {
		t.Fatal(err)
	}

	restored, err := buf.UndoBatch()
	if err != nil {
		t.Fatalf("UndoBatch failed: %v", err)
	}
	if len(restored) != 2 {
		t.Fatalf("expected 2 restored nodes, got %d", len(restored))
	}

	if _, ok := repo.Find(folder.ID); !ok {
		t.Error("expected folder back")
	}
	got, ok := repo.Find(child.ID)
	if !ok {
		t.Fatal("expected child back")
	}
	if got.ParentID == nil || *got.ParentID != folder.ID {
		t.Error("expected child parent link intact")
	}

	var batch []model.Node
	if found, _ := store.Get(storage.KeyUndoBatch, &batch); found {
		t.Error("expected persisted batch cleared after undo")
	}
}

func TestBatchExpires(t *testing.T) {
	buf, repo, _ := newBuffer(t, undo.Options{
		BatchWindow: 50 * time.Millisecond,
		Tick:        10 * time.Millisecond,
	})

	node := deleteBookmark(t, repo, "batch-item")
	if err := buf.StageBatch([]model.Node{node}); err != nil {
		t.Fatal(err)
	}

	time.Sleep(250 * time.Millisecond)

	if got := buf.PendingBatch(); got != nil {
		t.Error("expected batch discarded after expiry")
	}
	if _, err := buf.UndoBatch(); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStageBatchRejectsEmpty(t *testing.T) {
	buf, _, _ := newBuffer(t, undo.Options{})
	if err := buf.StageBatch(nil); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUndoWithoutPendingState(t *testing.T) {
	buf, _, _ := newBuffer(t, undo.Options{})

	if _, err := buf.UndoSingle(); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := buf.UndoBatch(); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if left := buf.Remaining(); left != 0 {
		t.Errorf("expected zero remaining, got %v", left)
	}
}

func TestRehydrateUnexpired(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marks.json")
	store := storage.NewJSONStore(path)
	repo := repository.New(store, discardLogger())

	// a previous run persisted a pending undo and exited
	node := model.NewNode(model.NewNodeParams{
		Type: model.TypeBookmark, Title: "Survivor", URL: "https://example.com",
	})
	if err := store.Set(storage.KeyUndoNode, node); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(storage.KeyUndoExpire, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	buf := undo.New(store, repo, discardLogger(), undo.Options{})
	t.Cleanup(buf.Close)
	buf.Rehydrate()

	pending, ok := buf.PendingSingle()
	if !ok {
		t.Fatal("expected rehydrated pending single")
	}
	if pending.ID != node.ID {
		t.Errorf("expected id %q, got %q", node.ID, pending.ID)
	}
	if left := buf.Remaining(); left <= 0 || left > time.Hour {
		t.Errorf("expected remaining within persisted window, got %v", left)
	}

	restored, err := buf.UndoSingle()
	if err != nil {
		t.Fatalf("UndoSingle after rehydrate failed: %v", err)
	}
	if _, ok := repo.Find(restored.ID); !ok {
		t.Error("expected node restored into repository")
	}
}

func TestRehydrateExpired(t *testing.T) {
	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "marks.json"))
	repo := repository.New(store, discardLogger())

	node := model.NewNode(model.NewNodeParams{
		Type: model.TypeBookmark, Title: "Too Late", URL: "https://example.com",
	})
	if err := store.Set(storage.KeyUndoNode, node); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(storage.KeyUndoExpire, time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	buf := undo.New(store, repo, discardLogger(), undo.Options{})
	t.Cleanup(buf.Close)
	buf.Rehydrate()

	if _, ok := buf.PendingSingle(); ok {
		t.Error("expected expired snapshot discarded on rehydrate")
	}
	var persisted model.Node
	if found, _ := store.Get(storage.KeyUndoNode, &persisted); found {
		t.Error("expected expired snapshot cleared from store")
	}
}
