package cli

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/runnerr0/margin/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string          `json:"version"`
	DatabasePath      string          `json:"database_path"`
	DatabaseSizeBytes int64           `json:"database_size_bytes"`
	TotalQueries      int64           `json:"total_queries"`
	TotalBooks        int64           `json:"total_books"`
	TotalSettings     int64           `json:"total_settings"`
	LastRead          string          `json:"last_read,omitempty"`
	CatalogPath       string          `json:"catalog_path"`
	CatalogBooks      int             `json:"catalog_books"`
	Theme             string          `json:"theme"`
	FontSize          int             `json:"font_size"`
	TopBooks          []bookCountJSON `json:"top_books"`
}

type bookCountJSON struct {
	Title   string `json:"title"`
	Queries int64  `json:"queries"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	rt, err := openRuntime(c.globals, true)
	if err != nil {
		return err
	}
	defer rt.close()

	return c.executeWith(rt)
}

// executeWith runs status against a provided runtime (for testing).
func (c *StatusCommand) executeWith(rt *runtime) error {
	ctx := c.globals.context()

	stats, err := rt.store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	stats.DatabaseSizeBytes = getDatabaseSize(rt.db, rt.dbPath)

	catalogPath, err := rt.cfg.CatalogPath()
	if err != nil {
		return err
	}
	catalogBooks := -1
	if cat, err := rt.loadCatalog(); err == nil {
		catalogBooks = cat.Len()
	}

	style := rt.style(ctx)

	if c.globals.json() {
		out := statusJSON{
			Version:           c.version,
			DatabasePath:      rt.dbPath,
			DatabaseSizeBytes: stats.DatabaseSizeBytes,
			TotalQueries:      stats.TotalQueries,
			TotalBooks:        stats.TotalBooks,
			TotalSettings:     stats.TotalSettings,
			CatalogPath:       catalogPath,
			CatalogBooks:      max(catalogBooks, 0),
			Theme:             string(style.Theme),
			FontSize:          style.FontSize,
			TopBooks:          make([]bookCountJSON, len(stats.TopBooks)),
		}
		if !stats.LastRead.IsZero() {
			out.LastRead = stats.LastRead.UTC().Format(time.RFC3339)
		}
		for i, b := range stats.TopBooks {
			out.TopBooks[i] = bookCountJSON{Title: historyTitle(b.BookKey), Queries: b.Count}
		}
		return writeJSON(out)
	}

	fmt.Println("Margin Status")
	fmt.Println("=============")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Database:      %s (%s)\n", rt.dbPath, humanize.Bytes(uint64(stats.DatabaseSizeBytes)))
	fmt.Printf("Queries:       %s\n", humanize.Comma(stats.TotalQueries))
	fmt.Printf("Books read:    %s\n", humanize.Comma(stats.TotalBooks))
	fmt.Printf("Settings:      %s\n", humanize.Comma(stats.TotalSettings))
	if !stats.LastRead.IsZero() {
		fmt.Printf("Last read:     %s\n", humanize.Time(stats.LastRead))
	}

	if catalogBooks >= 0 {
		fmt.Printf("Library:       %s (%d %s)\n", catalogPath, catalogBooks, plural(catalogBooks, "book"))
	} else {
		fmt.Printf("Library:       %s (not readable)\n", catalogPath)
	}
	fmt.Printf("Theme:         %s, %dpx\n", style.Theme, style.FontSize)

	if len(stats.TopBooks) > 0 {
		fmt.Println()
		fmt.Println("Most Searched:")
		for _, b := range stats.TopBooks {
			fmt.Printf("  %-30s %s\n", historyTitle(b.BookKey), humanize.Comma(b.Count))
		}
	}

	return nil
}

// historyTitle recovers the book title from a search history key.
func historyTitle(key string) string {
	return strings.TrimPrefix(key, storage.HistoryKey(""))
}

// getDatabaseSize returns the database file size in bytes.
// For on-disk databases, it uses os.Stat. For in-memory databases,
// it queries page_count * page_size.
func getDatabaseSize(db *sql.DB, dbPath string) int64 {
	if info, err := os.Stat(dbPath); err == nil {
		return info.Size()
	}

	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}
