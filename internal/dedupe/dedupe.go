// Package dedupe finds bookmarks sharing a URL and merges each group down
// to one survivor.
package dedupe

import (
	"fmt"
	"log/slog"

	"github.com/nikbrunner/marks/internal/model"
	"github.com/nikbrunner/marks/internal/repository"
)

// Group is a set of bookmarks with the same URL, in insertion order.
type Group struct {
	URL   string
	Nodes []model.Node
}

// FindGroups collects duplicate groups from the node list. Only bookmark
// nodes count; folders never group, and neither do bookmarks without a
// URL. Matching is exact string comparison, no normalization, so
// "https://a.com" and "https://a.com/" stay distinct. Groups and their
// members keep insertion order; URLs with a single bookmark are not
// reported.
func FindGroups(nodes []model.Node) []Group {
	byURL := make(map[string]int)
	var groups []Group
	for _, n := range nodes {
		if !n.IsBookmark() || n.URL == "" {
			continue
		}
		if i, ok := byURL[n.URL]; ok {
			groups[i].Nodes = append(groups[i].Nodes, n)
			continue
		}
		byURL[n.URL] = len(groups)
		groups = append(groups, Group{URL: n.URL, Nodes: []model.Node{n}})
	}

	dupes := groups[:0:0]
	for _, g := range groups {
		if len(g.Nodes) >= 2 {
			dupes = append(dupes, g)
		}
	}
	return dupes
}

// Repo is the slice of the repository the engine needs.
type Repo interface {
	Find(id string) (model.Node, bool)
	Update(id string, patch repository.NodePatch) (model.Node, error)
	DeleteMany(ids []string) ([]model.Node, error)
}

// Stager receives the removed duplicates as one undoable batch.
type Stager interface {
	StageBatch(nodes []model.Node) error
}

// MergeOptions choose which fields flow from the duplicates onto the kept
// node.
type MergeOptions struct {
	Tags         bool
	Categories   bool
	Descriptions bool
}

// MergeAll turns on every merge rule.
func MergeAll() MergeOptions {
	return MergeOptions{Tags: true, Categories: true, Descriptions: true}
}

// Result reports what a merge run changed.
type Result struct {
	MergedGroups int
	Kept         []model.Node
	Removed      []model.Node
}

// Engine merges duplicate groups through the repository and stages the
// removed nodes for batch undo.
type Engine struct {
	repo   Repo
	stager Stager
	logger *slog.Logger
}

func NewEngine(repo Repo, stager Stager, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{repo: repo, stager: stager, logger: logger}
}

// Merge resolves each group down to one kept node. keep maps a group's URL
// to the id to survive; groups without an entry keep their first member.
// Members are re-resolved against the repository first, and groups left
// with fewer than two live members are skipped, so a stale detection run
// cannot delete anything on its own.
//
// The kept node receives the merged fields per opts: the tag union in
// first-seen member order, the first non-empty category in member order,
// and the longest description with ties going to the earlier member. All
// non-kept members across all groups are removed in one write and staged
// as a single batch undo.
func (e *Engine) Merge(groups []Group, keep map[string]string, opts MergeOptions) (Result, error) {
	var result Result
	var doomed []string

	for _, g := range groups {
		var members []model.Node
		for _, n := range g.Nodes {
			if cur, ok := e.repo.Find(n.ID); ok {
				members = append(members, cur)
			}
		}
		if len(members) < 2 {
			e.logger.Debug("skipping stale duplicate group", slog.String("url", g.URL))
			continue
		}

		keptIdx := 0
		if id, ok := keep[g.URL]; ok {
			for i, m := range members {
				if m.ID == id {
					keptIdx = i
					break
				}
			}
		}
		kept := members[keptIdx]

		patch := mergePatch(members, opts)
		if patch.Tags != nil || patch.CategoryID != nil || patch.Description != nil {
			merged, err := e.repo.Update(kept.ID, patch)
			if err != nil {
				return Result{}, fmt.Errorf("merging %s: %w", g.URL, err)
			}
			kept = merged
		}

		for i, m := range members {
			if i != keptIdx {
				doomed = append(doomed, m.ID)
			}
		}
		result.MergedGroups++
		result.Kept = append(result.Kept, kept)
	}

	if len(doomed) > 0 {
		removed, err := e.repo.DeleteMany(doomed)
		if err != nil {
			return Result{}, fmt.Errorf("removing duplicates: %w", err)
		}
		result.Removed = removed
		if e.stager != nil && len(removed) > 0 {
			if err := e.stager.StageBatch(removed); err != nil {
				e.logger.Warn("staging batch undo failed", slog.String("error", err.Error()))
			}
		}
	}
	return result, nil
}

func mergePatch(members []model.Node, opts MergeOptions) repository.NodePatch {
	var patch repository.NodePatch

	if opts.Tags {
		seen := make(map[string]bool)
		var union []string
		for _, m := range members {
			for _, tag := range m.Tags {
				if !seen[tag] {
					seen[tag] = true
					union = append(union, tag)
				}
			}
		}
		patch.Tags = union
	}

	if opts.Categories {
		for _, m := range members {
			if m.CategoryID != "" {
				cat := m.CategoryID
				patch.CategoryID = &cat
				break
			}
		}
	}

	if opts.Descriptions {
		longest := ""
		for _, m := range members {
			if len(m.Description) > len(longest) {
				longest = m.Description
			}
		}
		if longest != "" {
			patch.Description = &longest
		}
	}

	return patch
}
