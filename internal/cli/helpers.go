package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bornholm/go-x/slogx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/afero"

	"github.com/runnerr0/margin/internal/catalog"
	"github.com/runnerr0/margin/internal/config"
	"github.com/runnerr0/margin/internal/reader/history"
	"github.com/runnerr0/margin/internal/reader/locate"
	"github.com/runnerr0/margin/internal/reader/search"
	"github.com/runnerr0/margin/internal/reader/session"
	"github.com/runnerr0/margin/internal/render"
	"github.com/runnerr0/margin/internal/render/textbook"
	"github.com/runnerr0/margin/internal/storage"
)

// runtime bundles what a command needs: configuration, the library
// filesystem, a logger and, for commands that persist state, the store.
type runtime struct {
	cfg    *config.Config
	fs     afero.Fs
	logger *slog.Logger
	dbPath string
	db     *sql.DB
	store  *storage.SQLiteStore
}

// openRuntime loads the configuration, sets up logging and, when withStore
// is set, opens the database with migrations applied.
func openRuntime(globals *GlobalFlags, withStore bool) (*runtime, error) {
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Logging, globals != nil && globals.Verbose)
	slog.SetDefault(logger)

	rt := &runtime{cfg: cfg, fs: afero.NewOsFs(), logger: logger}
	if !withStore {
		return rt, nil
	}

	override := ""
	if globals != nil {
		override = globals.DBPath
	}
	rt.dbPath, err = resolveDBPath(cfg, override)
	if err != nil {
		return nil, err
	}

	rt.store, rt.db, err = openStore(cfg, rt.dbPath)
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) close() {
	if rt.store != nil {
		rt.store.Close()
	}
	if rt.db != nil {
		rt.db.Close()
	}
}

// loadConfig reads --config when given, otherwise the default config file,
// which is created with defaults on first use.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	if globals == nil || globals.Config == "" {
		cfg, err := config.LoadOrCreate()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}

	path, err := config.ExpandPath(globals.Config)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the stderr logger described by the logging section.
// Verbose forces the debug level.
func newLogger(cfg config.LoggingConfig, verbose bool) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(slogx.ContextHandler{Handler: handler})
}

// resolveDBPath determines the SQLite database file path.
// Priority: --db-path flag > config file.
func resolveDBPath(cfg *config.Config, override string) (string, error) {
	if override != "" {
		return config.ExpandPath(override)
	}
	return cfg.DBPath()
}

// openStore opens the database at dbPath, runs migrations, and returns a
// ready-to-use store and the underlying *sql.DB.
func openStore(cfg *config.Config, dbPath string) (*storage.SQLiteStore, *sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	runner := storage.NewMigrationRunner(db)
	if err := runner.SetJournalMode(cfg.Storage.SQLiteJournalMode); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("storage.sqlite_journal_mode: %w", err)
	}
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := storage.NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init store: %w", err)
	}

	return store, db, nil
}

// loadCatalog reads the library catalog named by the configuration.
func (rt *runtime) loadCatalog() (*catalog.Catalog, error) {
	path, err := rt.cfg.CatalogPath()
	if err != nil {
		return nil, err
	}
	return catalog.Load(rt.fs, path)
}

// style is the configured display style with the remembered reader
// preferences applied on top.
func (rt *runtime) style(ctx context.Context) render.Style {
	style := rt.cfg.Display.Style()
	if rt.store == nil {
		return style
	}

	if value, err := rt.store.GetSetting(ctx, storage.SettingTheme); err == nil {
		if theme, ok := render.ParseTheme(value); ok {
			style.Theme = theme
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		rt.logger.WarnContext(ctx, "could not read theme setting", slogx.Error(err))
	}

	if value, err := rt.store.GetSetting(ctx, storage.SettingFontSize); err == nil {
		if size, convErr := strconv.Atoi(value); convErr == nil {
			style.FontSize = size
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		rt.logger.WarnContext(ctx, "could not read font size setting", slogx.Error(err))
	}

	return style.Normalize()
}

// openBook opens the catalog entry id as a paginated text book.
func (rt *runtime) openBook(ctx context.Context, id string) (*textbook.Book, error) {
	cat, err := rt.loadCatalog()
	if err != nil {
		return nil, err
	}

	entry, ok := cat.ByID(id)
	if !ok {
		return nil, fmt.Errorf("unknown book %q", id)
	}

	dir := entry.Path
	if !filepath.IsAbs(dir) {
		root, err := rt.cfg.BooksPath()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(root, dir)
	}

	book, err := textbook.Open(ctx, rt.fs, dir,
		textbook.WithStyle(rt.style(ctx)),
		textbook.WithPageRunes(rt.cfg.Display.PageRunes),
		textbook.WithLogger(rt.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("open book %s: %w", id, err)
	}
	return book, nil
}

// recorder is the search history recorder over the store, or nil when the
// runtime has no store.
func (rt *runtime) recorder() *history.Recorder {
	if rt.store == nil {
		return nil
	}
	return history.NewRecorder(rt.store,
		history.WithLimit(rt.cfg.Search.HistoryLimit),
		history.WithLogger(rt.logger),
	)
}

// openSession starts a reading session over book. With progress set, the
// saved position is restored and every relocation is saved.
func (rt *runtime) openSession(ctx context.Context, book render.Book, progress bool) (*session.Session, error) {
	engineOpts := []search.Option{
		search.WithMaxHitsPerChapter(rt.cfg.Search.MaxHitsPerChapter),
		search.WithExcerptRadius(rt.cfg.Search.ExcerptRadius),
		search.WithLogger(rt.logger),
	}
	opts := []session.Option{
		session.WithResolver(locate.NewResolver(locate.WithLogger(rt.logger))),
		session.WithLogger(rt.logger),
	}

	if recorder := rt.recorder(); recorder != nil {
		engineOpts = append(engineOpts, search.WithHistory(recorder))
		opts = append(opts, session.WithHistory(recorder))
	}
	if progress && rt.store != nil {
		opts = append(opts, session.WithProgress(rt.store))
	}
	opts = append(opts, session.WithEngine(search.NewEngine(engineOpts...)))

	sess, err := session.Open(ctx, book, opts...)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return sess, nil
}

// withSession opens the book id and a session over it, runs fn, then
// closes both.
func (rt *runtime) withSession(ctx context.Context, id string, progress bool, fn func(*textbook.Book, *session.Session) error) error {
	book, err := rt.openBook(ctx, id)
	if err != nil {
		return err
	}
	defer book.Close()

	sess, err := rt.openSession(ctx, book, progress)
	if err != nil {
		return err
	}

	fnErr := fn(book, sess)

	if err := sess.Close(); err != nil {
		rt.logger.WarnContext(ctx, "could not close session", slogx.Error(err))
	}
	return fnErr
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// plural returns word, suffixed with s unless n is one.
func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
