// Package clickstats tracks how often bookmarks are opened. Counts live in
// a single persisted map keyed by node id.
package clickstats

import (
	"log/slog"
	"sync"

	"github.com/nikbrunner/marks/internal/model"
	"github.com/nikbrunner/marks/internal/storage"
)

// Tracker persists per-bookmark click counts. Older data keyed the map by
// bookmark title; MigrateLegacy folds those entries onto ids.
type Tracker struct {
	mu     sync.Mutex
	store  storage.Store
	logger *slog.Logger
}

// New creates a Tracker on top of the given store.
func New(store storage.Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, logger: logger}
}

// load fails open: errors yield an empty map, logged but never surfaced.
func (t *Tracker) load() map[string]int {
	var clicks map[string]int
	found, err := t.store.Get(storage.KeyClicks, &clicks)
	if err != nil {
		t.logger.Warn("reading click stats failed, treating as empty",
			slog.String("error", err.Error()))
		return map[string]int{}
	}
	if !found || clicks == nil {
		return map[string]int{}
	}
	return clicks
}

func (t *Tracker) save(clicks map[string]int) error {
	return t.store.Set(storage.KeyClicks, clicks)
}

// Record increments the count for the given node id and returns the new
// count.
func (t *Tracker) Record(id string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	clicks := t.load()
	clicks[id]++
	if err := t.save(clicks); err != nil {
		return 0, err
	}
	return clicks[id], nil
}

// Count returns the recorded count for the given node id, zero when none.
func (t *Tracker) Count(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load()[id]
}

// Snapshot returns a copy of the full click map.
func (t *Tracker) Snapshot() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	clicks := t.load()
	out := make(map[string]int, len(clicks))
	for k, v := range clicks {
		out[k] = v
	}
	return out
}

// Replace overwrites the persisted map, the bulk path backup restore uses.
func (t *Tracker) Replace(clicks map[string]int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if clicks == nil {
		clicks = map[string]int{}
	}
	return t.save(clicks)
}

// MigrateLegacy rewrites title-keyed entries onto node ids. A key that is
// no node id but matches a bookmark's exact title moves onto that
// bookmark's id, summing with any count already there. Keys matching
// neither are preserved untouched. Returns the number of migrated entries;
// nothing is written when the map is already clean.
func (t *Tracker) MigrateLegacy(nodes []model.Node) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make(map[string]bool, len(nodes))
	byTitle := make(map[string]string, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = true
		if n.IsBookmark() {
			if _, taken := byTitle[n.Title]; !taken {
				byTitle[n.Title] = n.ID
			}
		}
	}

	clicks := t.load()
	migrated := 0
	for key, count := range clicks {
		if ids[key] {
			continue
		}
		id, ok := byTitle[key]
		if !ok {
			continue
		}
		clicks[id] += count
		delete(clicks, key)
		migrated++
	}

	if migrated == 0 {
		return 0, nil
	}
	if err := t.save(clicks); err != nil {
		return 0, err
	}
	t.logger.Info("migrated legacy click stats", slog.Int("entries", migrated))
	return migrated, nil
}
