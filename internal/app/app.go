// Package app wires the application together: config, store, repository,
// click tracking and the undo buffer. All state is held explicitly on the
// App value, nothing lives in package globals.
package app

import (
	"log/slog"
	"os"

	"github.com/nikbrunner/marks/internal/clickstats"
	"github.com/nikbrunner/marks/internal/config"
	"github.com/nikbrunner/marks/internal/repository"
	"github.com/nikbrunner/marks/internal/storage"
	"github.com/nikbrunner/marks/internal/undo"
)

// App holds the wired application state.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Store  storage.Store
	Repo   *repository.Repository
	Clicks *clickstats.Tracker
	Undo   *undo.Buffer
}

// Option adjusts construction, mainly for tests.
type Option func(*App)

// WithStore overrides the configured store.
func WithStore(store storage.Store) Option {
	return func(a *App) { a.Store = store }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) { a.Logger = logger }
}

// Open builds the application from the given config: logger, store,
// repository, click tracker and undo buffer. The undo buffer is rehydrated
// so an undo staged before a restart stays available, and title-keyed click
// stats from old data files are migrated onto ids.
func Open(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{Config: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.Logger == nil {
		a.Logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.App.Level(),
		}))
	}
	slog.SetDefault(a.Logger)

	if a.Store == nil {
		store, err := openStore(cfg.Store)
		if err != nil {
			return nil, err
		}
		a.Store = store
	}

	a.Repo = repository.New(a.Store, a.Logger)
	a.Clicks = clickstats.New(a.Store, a.Logger)

	a.Undo = undo.New(a.Store, a.Repo, a.Logger, undo.Options{
		SingleWindow: cfg.Undo.WindowDuration(),
		BatchWindow:  cfg.Undo.BatchWindowDuration(),
		Tick:         cfg.Undo.TickDuration(),
	})
	a.Undo.Rehydrate()

	if migrated, err := a.Clicks.MigrateLegacy(a.Repo.GetAll()); err != nil {
		a.Logger.Warn("click stats migration failed", slog.String("error", err.Error()))
	} else if migrated > 0 {
		a.Logger.Info("click stats migrated", slog.Int("entries", migrated))
	}

	return a, nil
}

// Close stops the undo expiry ticker and closes the store.
func (a *App) Close() error {
	if a.Undo != nil {
		a.Undo.Close()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// openStore opens the configured backend. With nothing configured the
// default location decides, preferring an existing SQLite database.
func openStore(cfg config.StoreConfig) (storage.Store, error) {
	if cfg.Backend == "" && cfg.Path == "" {
		return storage.OpenDefault()
	}

	backend := cfg.Backend
	if backend == "" {
		backend = storage.BackendJSON
	}

	path := cfg.Path
	if path == "" {
		var err error
		switch backend {
		case storage.BackendSQLite:
			path, err = storage.DefaultSQLitePath()
		default:
			path, err = storage.DefaultJSONPath()
		}
		if err != nil {
			return nil, err
		}
	}
	return storage.Open(backend, path)
}
