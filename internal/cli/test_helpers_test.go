package cli

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/margin/internal/config"
	"github.com/runnerr0/margin/internal/storage"
)

const testLibrary = `
books:
  - id: test
    title: Test Book
    author: A. Writer
    category: Fiction
  - id: notes
    title: Field Notes
    author: B. Walker
    category: Nature
  - id: sea
    title: The Sea Around Us
    author: Rachel Carson
    category: nature
    path: /elsewhere/sea
`

const testManifest = `
title: Test Book
spine:
  - c1.xhtml
  - c2.md
  - c3.txt
toc:
  - label: Ch1
    href: c1.xhtml
    children:
      - label: Ch1.1
        href: c1.xhtml#s2
  - label: Ch2
    href: c2.md
  - label: Ch3
    href: c3.txt
`

const testChapter1 = `<html><body>
<h1>Chapter One</h1>
<p>It was a bright cold day.</p>
<section id="s2"><p>The clocks were striking thirteen by the lake.</p></section>
</body></html>`

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// openTestDB creates a migrated in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	runner := storage.NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	return db
}

// newTestFS writes the library catalog and the "test" book. c1 decodes to
// 84 runes, c2 to 45 and c3 to 50: with 20-rune pages the book has
// 5 + 3 + 3 = 11 pages.
func newTestFS(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/library/library.yaml":         testLibrary,
		"/library/books/test/book.yaml": testManifest,
		"/library/books/test/c1.xhtml":  testChapter1,
		"/library/books/test/c2.md":     "# Chapter Two\n\nThe sea was calm near the forest.\n",
		"/library/books/test/c3.txt":    strings.Repeat("abcdefghij", 5),
	}
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
	return fs
}

// newTestRuntime returns a runtime over the in-memory library and a fresh
// in-memory database.
func newTestRuntime(t *testing.T) *runtime {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Library.Path = "/library"
	cfg.Display.PageRunes = 20

	db := openTestDB(t)
	store, err := storage.NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &runtime{
		cfg:    cfg,
		fs:     newTestFS(t),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		db:     db,
		store:  store,
	}
}

// testGlobals returns global flags carrying a background context.
func testGlobals(asJSON bool) *GlobalFlags {
	return &GlobalFlags{JSON: asJSON, ctx: context.Background()}
}
