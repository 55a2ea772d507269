package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nikbrunner/marks/internal/model"
)

const autoPrefix = "marks-backup-"

// Source provides the lists the scheduler snapshots.
type Source interface {
	GetAll() []model.Node
	GetCategories() []model.Category
}

// ClickSource provides the click map the scheduler snapshots.
type ClickSource interface {
	Snapshot() map[string]int
}

// Scheduler writes combined quick-backups on an interval and prunes old
// ones, keeping the newest files.
type Scheduler struct {
	source   Source
	clicks   ClickSource
	dir      string
	interval time.Duration
	keep     int
	logger   *slog.Logger
}

func NewScheduler(source Source, clicks ClickSource, dir string, interval time.Duration, keep int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if keep < 1 {
		keep = 5
	}
	return &Scheduler{
		source:   source,
		clicks:   clicks,
		dir:      dir,
		interval: interval,
		keep:     keep,
		logger:   logger,
	}
}

// Run writes a backup every interval until the context is cancelled. Tick
// failures are logged and the loop keeps going; only cancellation stops it.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("automatic backups started",
		slog.String("dir", s.dir),
		slog.Duration("interval", s.interval),
		slog.Int("keep", s.keep))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("automatic backups stopped")
			return nil
		case <-ticker.C:
			path, err := s.RunOnce()
			if err != nil {
				s.logger.Error("backup failed", slog.String("error", err.Error()))
				continue
			}
			s.logger.Info("backup written", slog.String("path", path))
		}
	}
}

// RunOnce writes one backup and prunes, returning the written path.
func (s *Scheduler) RunOnce() (string, error) {
	doc := Snapshot(s.source.GetAll(), s.source.GetCategories(), s.clicks.Snapshot())
	name := autoPrefix + doc.ExportDate.Format("20060102-150405") + ".json"
	path := filepath.Join(s.dir, name)

	if err := WriteCombined(path, doc); err != nil {
		return "", err
	}
	if err := s.prune(); err != nil {
		return "", fmt.Errorf("pruning backups: %w", err)
	}
	return path, nil
}

// prune removes automatic backups beyond the newest keep files. Manual
// backups in the same directory are left alone.
func (s *Scheduler) prune() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, autoPrefix) && strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	if len(names) <= s.keep {
		return nil
	}

	// the stamp format sorts lexically, newest last
	sort.Strings(names)
	for _, name := range names[:len(names)-s.keep] {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			return err
		}
	}
	return nil
}
