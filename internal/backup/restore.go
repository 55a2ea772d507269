package backup

import (
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/nikbrunner/marks/internal/apperr"
	"github.com/nikbrunner/marks/internal/model"
	"github.com/nikbrunner/marks/internal/storage"
)

// Strategy decides how a restore resolves nodes that appear in more than
// one file with different content.
type Strategy string

const (
	// StrategyAsk aborts the restore when conflicts exist, so the caller
	// can come back with an explicit choice.
	StrategyAsk    Strategy = ""
	StrategyNewest Strategy = "newest"
	StrategyOldest Strategy = "oldest"
	StrategyMerge  Strategy = "merge"
)

// ParseStrategy validates a strategy flag value.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyAsk, StrategyNewest, StrategyOldest, StrategyMerge:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q (newest|oldest|merge)", apperr.ErrInvalidInput, s)
	}
}

// Conflict is one node id carried with different content by several files.
type Conflict struct {
	ID       string
	Versions []model.Node
}

// RestoreResult reports what a restore wrote.
type RestoreResult struct {
	Bookmarks  int
	Categories int
	Clicks     int
	Conflicts  []Conflict
}

// Restorer applies parsed backups to the store as a bulk replace.
type Restorer struct {
	store  storage.Store
	logger *slog.Logger
}

func NewRestorer(store storage.Store, logger *slog.Logger) *Restorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Restorer{store: store, logger: logger}
}

// Restore parses every file, resolves cross-file conflicts per strategy,
// and replaces the persisted lists wholesale. Any parse failure or an
// unresolved conflict aborts before the first write; a failed restore
// leaves the store exactly as it was.
func (r *Restorer) Restore(paths []string, strategy Strategy) (RestoreResult, error) {
	if len(paths) == 0 {
		return RestoreResult{}, fmt.Errorf("%w: no backup files given", apperr.ErrInvalidInput)
	}

	docs := make([]Document, 0, len(paths))
	for _, path := range paths {
		doc, err := ParseFile(path)
		if err != nil {
			return RestoreResult{}, err
		}
		docs = append(docs, doc)
	}

	nodes, conflicts := combineNodes(docs, strategy)
	if len(conflicts) > 0 && strategy == StrategyAsk {
		return RestoreResult{Conflicts: conflicts}, fmt.Errorf(
			"%w: %d conflicting ids across files, pick a strategy (newest|oldest|merge)",
			apperr.ErrInvalidInput, len(conflicts))
	}

	categories := combineCategories(docs)
	clicks := combineClicks(docs)

	if err := r.store.Set(storage.KeyBookmarks, nodes); err != nil {
		return RestoreResult{}, fmt.Errorf("writing bookmarks: %w", err)
	}
	if err := r.store.Set(storage.KeyCategories, categories); err != nil {
		return RestoreResult{}, fmt.Errorf("writing categories: %w", err)
	}
	if err := r.store.Set(storage.KeyClicks, clicks); err != nil {
		return RestoreResult{}, fmt.Errorf("writing click stats: %w", err)
	}

	r.logger.Info("restore applied",
		slog.Int("files", len(paths)),
		slog.Int("bookmarks", len(nodes)),
		slog.Int("categories", len(categories)),
		slog.Int("conflicts", len(conflicts)))

	return RestoreResult{
		Bookmarks:  len(nodes),
		Categories: len(categories),
		Clicks:     len(clicks),
		Conflicts:  conflicts,
	}, nil
}

// combineNodes folds the documents' node lists into one, resolving
// duplicate ids. Identical copies collapse silently; differing copies are
// reported as conflicts and resolved per strategy.
func combineNodes(docs []Document, strategy Strategy) ([]model.Node, []Conflict) {
	var order []string
	byID := make(map[string]model.Node)
	versions := make(map[string][]model.Node)

	for _, doc := range docs {
		for _, n := range doc.Bookmarks {
			if _, ok := byID[n.ID]; !ok {
				byID[n.ID] = n
				order = append(order, n.ID)
				versions[n.ID] = []model.Node{n}
				continue
			}
			versions[n.ID] = append(versions[n.ID], n)
			byID[n.ID] = resolve(byID[n.ID], n, strategy)
		}
	}

	var conflicts []Conflict
	for _, id := range order {
		vs := versions[id]
		if len(vs) < 2 {
			continue
		}
		distinct := vs[:1]
		for _, v := range vs[1:] {
			if !reflect.DeepEqual(v, distinct[0]) {
				distinct = append(distinct, v)
			}
		}
		if len(distinct) > 1 {
			conflicts = append(conflicts, Conflict{ID: id, Versions: vs})
		}
	}

	nodes := make([]model.Node, 0, len(order))
	for _, id := range order {
		nodes = append(nodes, byID[id])
	}
	return nodes, conflicts
}

// resolve picks or builds the surviving version of one node.
func resolve(a, b model.Node, strategy Strategy) model.Node {
	switch strategy {
	case StrategyOldest:
		if stamp(b).Before(stamp(a)) {
			return b
		}
		return a
	case StrategyMerge:
		return merge(a, b)
	default:
		// newest; also the provisional pick while StrategyAsk scans
		if stamp(b).After(stamp(a)) {
			return b
		}
		return a
	}
}

// stamp orders node versions by their last activity.
func stamp(n model.Node) time.Time {
	if n.LastAccessed != nil && n.LastAccessed.After(n.CreatedAt) {
		return *n.LastAccessed
	}
	return n.CreatedAt
}

// merge folds two versions of one node field by field: the newer version
// wins the scalar fields, tags union in first-seen order, the longer
// description survives, the earlier createdAt is kept as the true creation
// time, and counts resolve to the larger value.
func merge(a, b model.Node) model.Node {
	newest, oldest := a, b
	if stamp(b).After(stamp(a)) {
		newest, oldest = b, a
	}

	out := newest

	if oldest.CreatedAt.Before(newest.CreatedAt) && !oldest.CreatedAt.IsZero() {
		out.CreatedAt = oldest.CreatedAt
	}
	if len(oldest.Description) > len(out.Description) {
		out.Description = oldest.Description
	}
	if out.CategoryID == "" {
		out.CategoryID = oldest.CategoryID
	}

	seen := make(map[string]bool)
	var tags []string
	for _, set := range [][]string{a.Tags, b.Tags} {
		for _, tag := range set {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	out.Tags = tags

	if a.AccessCount != nil || b.AccessCount != nil {
		count := 0
		if a.AccessCount != nil {
			count = *a.AccessCount
		}
		if b.AccessCount != nil && *b.AccessCount > count {
			count = *b.AccessCount
		}
		out.AccessCount = &count
	}
	return out
}

// combineCategories concatenates category lists, first occurrence of an id
// wins.
func combineCategories(docs []Document) []model.Category {
	seen := make(map[string]bool)
	categories := []model.Category{}
	for _, doc := range docs {
		for _, c := range doc.Categories {
			if !seen[c.ID] {
				seen[c.ID] = true
				categories = append(categories, c)
			}
		}
	}
	return categories
}

// combineClicks unions the click maps; a key in several files keeps its
// largest count.
func combineClicks(docs []Document) map[string]int {
	clicks := map[string]int{}
	for _, doc := range docs {
		for key, count := range doc.Clicks {
			if count > clicks[key] {
				clicks[key] = count
			}
		}
	}
	return clicks
}
