// Package undo keeps recently deleted nodes restorable for a short window.
// Pending state is persisted alongside the node lists, so an unexpired undo
// survives a process restart.
package undo

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nikbrunner/marks/internal/apperr"
	"github.com/nikbrunner/marks/internal/model"
	"github.com/nikbrunner/marks/internal/storage"
)

const (
	DefaultSingleWindow = 10 * time.Second
	DefaultBatchWindow  = 15 * time.Second
	DefaultTick         = 200 * time.Millisecond
)

// Restorer puts deleted nodes back. The repository satisfies it.
type Restorer interface {
	Restore(node model.Node) (model.Node, error)
	RestoreMany(nodes []model.Node) ([]model.Node, error)
}

// Options tune the undo windows. Zero values fall back to the defaults.
type Options struct {
	SingleWindow time.Duration
	BatchWindow  time.Duration
	Tick         time.Duration
}

func (o Options) withDefaults() Options {
	if o.SingleWindow <= 0 {
		o.SingleWindow = DefaultSingleWindow
	}
	if o.BatchWindow <= 0 {
		o.BatchWindow = DefaultBatchWindow
	}
	if o.Tick <= 0 {
		o.Tick = DefaultTick
	}
	return o
}

// Buffer holds at most one pending single deletion and one pending batch
// deletion. Staging one kind drops the other for good. A ticker drives the
// countdown; once a window expires the snapshot is discarded permanently,
// in memory and in the store.
type Buffer struct {
	store    storage.Store
	restorer Restorer
	logger   *slog.Logger
	opts     Options

	mu        sync.Mutex
	single    *model.Node
	singleExp time.Time
	paused    bool
	frozen    time.Duration

	batch    []model.Node
	batchExp time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Buffer and starts its countdown ticker. Call Close to stop
// it. Call Rehydrate to pick up a pending undo persisted by an earlier run.
func New(store storage.Store, restorer Restorer, logger *slog.Logger, opts Options) *Buffer {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Buffer{
		store:    store,
		restorer: restorer,
		logger:   logger,
		opts:     opts.withDefaults(),
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Buffer) run() {
	ticker := time.NewTicker(b.opts.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.expireDue()
		}
	}
}

// expireDue discards pending state whose window has elapsed. A paused
// single buffer never expires.
func (b *Buffer) expireDue() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if b.single != nil && !b.paused && now.After(b.singleExp) {
		b.single = nil
		b.clearSingleKeys()
	}
	if b.batch != nil && now.After(b.batchExp) {
		b.batch = nil
		b.clearBatchKeys()
	}
}

// clearSingleKeys removes the persisted single snapshot, best effort.
func (b *Buffer) clearSingleKeys() {
	for _, key := range []string{storage.KeyUndoNode, storage.KeyUndoExpire} {
		if err := b.store.Delete(key); err != nil {
			b.logger.Warn("clearing undo state failed",
				slog.String("key", key), slog.String("error", err.Error()))
		}
	}
}

func (b *Buffer) clearBatchKeys() {
	for _, key := range []string{storage.KeyUndoBatch, storage.KeyBatchExpire} {
		if err := b.store.Delete(key); err != nil {
			b.logger.Warn("clearing undo state failed",
				slog.String("key", key), slog.String("error", err.Error()))
		}
	}
}

// StageSingle makes a freshly deleted node the pending undo. Any previous
// pending state, single or batch, is dropped without being restored.
func (b *Buffer) StageSingle(node model.Node) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.batch = nil
	b.clearBatchKeys()

	exp := time.Now().Add(b.opts.SingleWindow)
	if err := b.store.Set(storage.KeyUndoNode, node); err != nil {
		return fmt.Errorf("staging undo: %w", err)
	}
	if err := b.store.Set(storage.KeyUndoExpire, exp); err != nil {
		return fmt.Errorf("staging undo: %w", err)
	}

	b.single = &node
	b.singleExp = exp
	b.paused = false
	return nil
}

// StageBatch makes a freshly deleted batch the pending undo. Any previous
// pending state, single or batch, is dropped without being restored. The
// batch window is fixed and cannot be paused.
func (b *Buffer) StageBatch(nodes []model.Node) error {
	if len(nodes) == 0 {
		return fmt.Errorf("staging undo: %w: empty batch", apperr.ErrInvalidInput)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.single = nil
	b.paused = false
	b.clearSingleKeys()

	exp := time.Now().Add(b.opts.BatchWindow)
	if err := b.store.Set(storage.KeyUndoBatch, nodes); err != nil {
		return fmt.Errorf("staging undo: %w", err)
	}
	if err := b.store.Set(storage.KeyBatchExpire, exp); err != nil {
		return fmt.Errorf("staging undo: %w", err)
	}

	b.batch = append([]model.Node(nil), nodes...)
	b.batchExp = exp
	return nil
}

// Pause freezes the single buffer's remaining window. The freeze itself is
// in-memory only: a restart while paused resumes from the persisted expiry.
func (b *Buffer) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.single == nil || b.paused {
		return
	}
	b.frozen = time.Until(b.singleExp)
	if b.frozen < 0 {
		b.frozen = 0
	}
	b.paused = true
}

// Resume re-anchors the single buffer's expiry to now plus the frozen
// remainder and persists it, so the countdown restarts where it stopped.
func (b *Buffer) Resume() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.single == nil || !b.paused {
		return nil
	}
	exp := time.Now().Add(b.frozen)
	if err := b.store.Set(storage.KeyUndoExpire, exp); err != nil {
		return fmt.Errorf("resuming undo countdown: %w", err)
	}
	b.singleExp = exp
	b.paused = false
	return nil
}

// UndoSingle restores the pending single node and clears the buffer.
func (b *Buffer) UndoSingle() (model.Node, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.single == nil {
		return model.Node{}, fmt.Errorf("no pending undo: %w", apperr.ErrNotFound)
	}
	if !b.paused && time.Now().After(b.singleExp) {
		b.single = nil
		b.clearSingleKeys()
		return model.Node{}, fmt.Errorf("undo window elapsed: %w", apperr.ErrNotFound)
	}

	node, err := b.restorer.Restore(*b.single)
	if err != nil {
		return model.Node{}, fmt.Errorf("restoring node: %w", err)
	}
	b.single = nil
	b.paused = false
	b.clearSingleKeys()
	return node, nil
}

// UndoBatch restores the pending batch in one write and clears the buffer.
func (b *Buffer) UndoBatch() ([]model.Node, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.batch == nil {
		return nil, fmt.Errorf("no pending batch undo: %w", apperr.ErrNotFound)
	}
	if time.Now().After(b.batchExp) {
		b.batch = nil
		b.clearBatchKeys()
		return nil, fmt.Errorf("undo window elapsed: %w", apperr.ErrNotFound)
	}

	nodes, err := b.restorer.RestoreMany(b.batch)
	if err != nil {
		return nil, fmt.Errorf("restoring batch: %w", err)
	}
	b.batch = nil
	b.clearBatchKeys()
	return nodes, nil
}

// Rehydrate loads pending state persisted by an earlier run. Unexpired
// snapshots resume their countdown with the remaining window; expired ones
// are cleared. Read failures fail open.
func (b *Buffer) Rehydrate() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()

	var node model.Node
	if exp, ok := b.loadSlot(storage.KeyUndoNode, storage.KeyUndoExpire, &node); ok {
		if exp.After(now) {
			b.single = &node
			b.singleExp = exp
			b.paused = false
		} else {
			b.clearSingleKeys()
		}
	}

	var batch []model.Node
	if exp, ok := b.loadSlot(storage.KeyUndoBatch, storage.KeyBatchExpire, &batch); ok {
		if exp.After(now) && len(batch) > 0 {
			b.batch = batch
			b.batchExp = exp
		} else {
			b.clearBatchKeys()
		}
	}
}

// loadSlot reads one persisted snapshot and its expiry. A snapshot without
// a readable expiry counts as expired.
func (b *Buffer) loadSlot(nodeKey, expKey string, v any) (time.Time, bool) {
	found, err := b.store.Get(nodeKey, v)
	if err != nil {
		b.logger.Warn("reading undo state failed",
			slog.String("key", nodeKey), slog.String("error", err.Error()))
		return time.Time{}, false
	}
	if !found {
		return time.Time{}, false
	}

	var exp time.Time
	found, err = b.store.Get(expKey, &exp)
	if err != nil || !found {
		return time.Time{}, true
	}
	return exp, true
}

// Remaining reports how long the active pending state stays restorable,
// the frozen remainder while paused, zero when nothing is pending.
func (b *Buffer) Remaining() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	var left time.Duration
	switch {
	case b.single != nil && b.paused:
		left = b.frozen
	case b.single != nil:
		left = time.Until(b.singleExp)
	case b.batch != nil:
		left = time.Until(b.batchExp)
	}
	if left < 0 {
		left = 0
	}
	return left
}

// PendingSingle returns the pending single node, if any.
func (b *Buffer) PendingSingle() (model.Node, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.single == nil {
		return model.Node{}, false
	}
	return *b.single, true
}

// PendingBatch returns a copy of the pending batch, nil when none.
func (b *Buffer) PendingBatch() []model.Node {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.batch == nil {
		return nil
	}
	return append([]model.Node(nil), b.batch...)
}

// Close stops the countdown ticker. Pending state stays persisted, so the
// next run can rehydrate it.
func (b *Buffer) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}
