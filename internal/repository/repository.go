// Package repository is the single source of truth for the bookmark node
// and category lists. Every read and write of the persisted lists passes
// through it.
package repository

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nikbrunner/marks/internal/apperr"
	"github.com/nikbrunner/marks/internal/model"
	"github.com/nikbrunner/marks/internal/storage"
)

// Repository owns the canonical node and category lists, persisted under
// two store keys. Mutations follow read-entire-list, mutate-in-memory,
// write-entire-list; a single mutex serializes them so two concurrent
// read-modify-write cycles cannot drop each other's writes.
type Repository struct {
	mu     sync.Mutex
	store  storage.Store
	logger *slog.Logger
}

// New creates a Repository on top of the given store.
func New(store storage.Store, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{store: store, logger: logger}
}

// NodePatch holds the fields Update may change. Nil fields are left
// untouched. ID, Type, and CreatedAt of an existing node are immutable;
// Type and CreatedAt only apply on the recreate branch when the id is not
// present. Re-parenting to root goes through Move, which also validates
// against cycles; ParentID here is merged raw, matching the store's
// tolerance for dangling references.
type NodePatch struct {
	Type         model.NodeType
	Title        *string
	URL          *string
	ParentID     *string
	CategoryID   *string
	Tags         []string
	Description  *string
	AccessCount  *int
	CreatedAt    *time.Time
	LastAccessed *time.Time
}

// PatchOf builds a full patch from a node snapshot, for restoring a deleted
// node through Update.
func PatchOf(n model.Node) NodePatch {
	return NodePatch{
		Type:         n.Type,
		Title:        &n.Title,
		URL:          &n.URL,
		ParentID:     n.ParentID,
		CategoryID:   &n.CategoryID,
		Tags:         n.Tags,
		Description:  &n.Description,
		AccessCount:  n.AccessCount,
		CreatedAt:    &n.CreatedAt,
		LastAccessed: n.LastAccessed,
	}
}

// loadNodes fails open: a storage error or corrupt value yields an empty
// list. The error is logged, never surfaced.
func (r *Repository) loadNodes() []model.Node {
	var nodes []model.Node
	found, err := r.store.Get(storage.KeyBookmarks, &nodes)
	if err != nil {
		r.logger.Warn("reading bookmarks failed, treating as empty",
			slog.String("error", err.Error()))
		return []model.Node{}
	}
	if !found || nodes == nil {
		return []model.Node{}
	}
	return nodes
}

func (r *Repository) saveNodes(nodes []model.Node) error {
	return r.store.Set(storage.KeyBookmarks, nodes)
}

// GetAll returns every node. Read failures yield an empty list, never an
// error.
func (r *Repository) GetAll() []model.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadNodes()
}

// Find returns the node with the given id.
func (r *Repository) Find(id string) (model.Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nodes := r.loadNodes()
	if i := indexOf(nodes, id); i >= 0 {
		return nodes[i], true
	}
	return model.Node{}, false
}

// Add materializes a draft into a stored node: it assigns a fresh id and
// createdAt, and for bookmarks initializes lastAccessed and a zero
// accessCount. Write failures propagate.
func (r *Repository) Add(params model.NewNodeParams) (model.Node, error) {
	if params.Type != model.TypeBookmark && params.Type != model.TypeFolder {
		return model.Node{}, fmt.Errorf("%w: unknown node type %q", apperr.ErrInvalidInput, params.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	node := model.NewNode(params)
	nodes := append(r.loadNodes(), node)
	if err := r.saveNodes(nodes); err != nil {
		return model.Node{}, err
	}
	return node, nil
}

// Update merges the patch onto the node with the given id. When the node is
// a bookmark its lastAccessed is refreshed no matter which fields changed.
// A missing id is not an error: the node is recreated from the patch plus
// the id (the recovery path undo relies on), without a lastAccessed
// refresh, so restored snapshots come back verbatim.
func (r *Repository) Update(id string, patch NodePatch) (model.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodes := r.loadNodes()
	i := indexOf(nodes, id)
	if i < 0 {
		node := nodeFromPatch(id, patch)
		nodes = append(nodes, node)
		if err := r.saveNodes(nodes); err != nil {
			return model.Node{}, err
		}
		return node, nil
	}

	n := &nodes[i]
	if patch.Title != nil {
		n.Title = *patch.Title
	}
	if patch.URL != nil {
		n.URL = *patch.URL
	}
	if patch.ParentID != nil {
		n.ParentID = patch.ParentID
	}
	if patch.CategoryID != nil {
		n.CategoryID = *patch.CategoryID
	}
	if patch.Tags != nil {
		n.Tags = patch.Tags
	}
	if patch.Description != nil {
		n.Description = *patch.Description
	}
	if patch.AccessCount != nil {
		n.AccessCount = patch.AccessCount
	}
	if n.Type == model.TypeBookmark {
		now := time.Now()
		n.LastAccessed = &now
	}

	if err := r.saveNodes(nodes); err != nil {
		return model.Node{}, err
	}
	return *n, nil
}

// Restore re-inserts a previously deleted node verbatim, replacing any node
// already stored under the same id. It is the explicit counterpart to
// Update's recreate branch and the path the undo buffer uses.
func (r *Repository) Restore(node model.Node) (model.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodes := r.loadNodes()
	if i := indexOf(nodes, node.ID); i >= 0 {
		nodes[i] = node
	} else {
		nodes = append(nodes, node)
	}
	if err := r.saveNodes(nodes); err != nil {
		return model.Node{}, err
	}
	return node, nil
}

// RestoreMany re-inserts several nodes verbatim in one write, the
// counterpart to DeleteMany for undoing a batch as one logical action.
func (r *Repository) RestoreMany(restore []model.Node) ([]model.Node, error) {
	if len(restore) == 0 {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	nodes := r.loadNodes()
	for _, node := range restore {
		if i := indexOf(nodes, node.ID); i >= 0 {
			nodes[i] = node
		} else {
			nodes = append(nodes, node)
		}
	}
	if err := r.saveNodes(nodes); err != nil {
		return nil, err
	}
	return restore, nil
}

// Delete removes the node and its transitive descendants in one write. It
// returns false, without writing, when the id does not exist.
func (r *Repository) Delete(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodes := r.loadNodes()
	if indexOf(nodes, id) < 0 {
		return false, nil
	}

	doomed := closureOf(nodes, []string{id})
	kept := nodes[:0:0]
	for _, n := range nodes {
		if !doomed[n.ID] {
			kept = append(kept, n)
		}
	}
	if kept == nil {
		kept = []model.Node{}
	}
	if err := r.saveNodes(kept); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteMany removes several roots and their descendants in one write, as
// one logical action, and returns the removed nodes in stored order. Ids
// that do not exist are ignored; when none exist nothing is written.
func (r *Repository) DeleteMany(ids []string) ([]model.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodes := r.loadNodes()
	var roots []string
	for _, id := range ids {
		if indexOf(nodes, id) >= 0 {
			roots = append(roots, id)
		}
	}
	if len(roots) == 0 {
		return nil, nil
	}

	doomed := closureOf(nodes, roots)
	var removed []model.Node
	kept := nodes[:0:0]
	for _, n := range nodes {
		if doomed[n.ID] {
			removed = append(removed, n)
		} else {
			kept = append(kept, n)
		}
	}
	if kept == nil {
		kept = []model.Node{}
	}
	if err := r.saveNodes(kept); err != nil {
		return nil, err
	}
	return removed, nil
}

// Subtree returns the node and its transitive descendants in stored order,
// without deleting anything. Callers snapshot a subtree before deleting it
// so the undo buffer can restore the whole thing.
func (r *Repository) Subtree(id string) []model.Node {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodes := r.loadNodes()
	if indexOf(nodes, id) < 0 {
		return nil
	}

	doomed := closureOf(nodes, []string{id})
	var subtree []model.Node
	for _, n := range nodes {
		if doomed[n.ID] {
			subtree = append(subtree, n)
		}
	}
	return subtree
}

// Move re-parents a node. Unlike Update's raw field merge this is the
// validated path: the target must be an existing folder (nil means root)
// and must not be the node itself or one of its descendants, otherwise a
// *apperr.CyclicMoveError is returned and nothing is written.
func (r *Repository) Move(id string, newParent *string) (model.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodes := r.loadNodes()
	i := indexOf(nodes, id)
	if i < 0 {
		return model.Node{}, fmt.Errorf("move %q: %w", id, apperr.ErrNotFound)
	}

	if newParent != nil {
		target := *newParent
		if target == id {
			return model.Node{}, &apperr.CyclicMoveError{NodeID: id, TargetID: target}
		}
		ti := indexOf(nodes, target)
		if ti < 0 {
			return model.Node{}, fmt.Errorf("move target %q: %w", target, apperr.ErrNotFound)
		}
		if !nodes[ti].IsFolder() {
			return model.Node{}, fmt.Errorf("%w: move target %q is not a folder", apperr.ErrInvalidInput, target)
		}
		if closureOf(nodes, []string{id})[target] {
			return model.Node{}, &apperr.CyclicMoveError{NodeID: id, TargetID: target}
		}
	}

	n := &nodes[i]
	n.ParentID = newParent
	if n.Type == model.TypeBookmark {
		now := time.Now()
		n.LastAccessed = &now
	}
	if err := r.saveNodes(nodes); err != nil {
		return model.Node{}, err
	}
	return *n, nil
}

// RecordVisit increments a bookmark's access count and refreshes its
// lastAccessed.
func (r *Repository) RecordVisit(id string) (model.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodes := r.loadNodes()
	i := indexOf(nodes, id)
	if i < 0 {
		return model.Node{}, fmt.Errorf("visit %q: %w", id, apperr.ErrNotFound)
	}
	n := &nodes[i]
	if !n.IsBookmark() {
		return model.Node{}, fmt.Errorf("%w: %q is not a bookmark", apperr.ErrInvalidInput, id)
	}

	count := 1
	if n.AccessCount != nil {
		count = *n.AccessCount + 1
	}
	n.AccessCount = &count
	now := time.Now()
	n.LastAccessed = &now

	if err := r.saveNodes(nodes); err != nil {
		return model.Node{}, err
	}
	return *n, nil
}

// nodeFromPatch builds a node for Update's recreate branch: the patch
// fields plus the given id, verbatim. The type defaults to bookmark and
// createdAt to now only when the patch does not carry them.
func nodeFromPatch(id string, patch NodePatch) model.Node {
	node := model.Node{
		ID:           id,
		Type:         patch.Type,
		ParentID:     patch.ParentID,
		Tags:         patch.Tags,
		AccessCount:  patch.AccessCount,
		LastAccessed: patch.LastAccessed,
	}
	if node.Type == "" {
		node.Type = model.TypeBookmark
	}
	if patch.Title != nil {
		node.Title = *patch.Title
	}
	if patch.URL != nil {
		node.URL = *patch.URL
	}
	if patch.CategoryID != nil {
		node.CategoryID = *patch.CategoryID
	}
	if patch.Description != nil {
		node.Description = *patch.Description
	}
	if patch.CreatedAt != nil {
		node.CreatedAt = *patch.CreatedAt
	} else {
		node.CreatedAt = time.Now()
	}
	if node.Tags == nil {
		node.Tags = []string{}
	}
	return node
}

// closureOf computes the ids of the roots plus every transitive descendant
// by repeated fixed-point scans over the flat list, which tolerates any
// sibling order and nesting depth.
func closureOf(nodes []model.Node, roots []string) map[string]bool {
	doomed := make(map[string]bool, len(roots))
	for _, id := range roots {
		doomed[id] = true
	}
	for changed := true; changed; {
		changed = false
		for _, n := range nodes {
			if doomed[n.ID] || n.ParentID == nil {
				continue
			}
			if doomed[*n.ParentID] {
				doomed[n.ID] = true
				changed = true
			}
		}
	}
	return doomed
}

func indexOf(nodes []model.Node, id string) int {
	for i := range nodes {
		if nodes[i].ID == id {
			return i
		}
	}
	return -1
}
