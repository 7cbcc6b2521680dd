package cli

import (
	"context"
	"database/sql"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	DBPath  string `long:"db-path" description:"Override the SQLite database path"`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`

	ctx context.Context
}

func (g *GlobalFlags) context() context.Context {
	if g == nil || g.ctx == nil {
		return context.Background()
	}
	return g.ctx
}

func (g *GlobalFlags) json() bool {
	return g != nil && g.JSON
}

// bookArgs is the positional book id shared by the per-book commands.
type bookArgs struct {
	Book string `positional-arg-name:"book" description:"Catalog id of the book" required:"yes"`
}

// BooksCommand lists the library catalog.
type BooksCommand struct {
	Category   string `long:"category" description:"Only books of this category (all for every book)"`
	Search     string `long:"search" description:"Only books whose title, author or category contains the term"`
	Categories bool   `long:"categories" description:"List the categories instead of the books"`

	globals *GlobalFlags
	version string
}

// TOCCommand prints the flattened table of contents of a book.
type TOCCommand struct {
	Args bookArgs `positional-args:"yes"`

	globals *GlobalFlags
	version string
}

// SearchCommand searches the full text of a book.
type SearchCommand struct {
	Args struct {
		Book  string   `positional-arg-name:"book" description:"Catalog id of the book" required:"yes"`
		Query []string `positional-arg-name:"query" description:"Search terms"`
	} `positional-args:"yes"`

	globals *GlobalFlags
	version string
}

// GotoCommand displays a search hit, a table-of-contents entry or a location.
type GotoCommand struct {
	Query    string `long:"query" description:"Search query whose hit to display"`
	Hit      int    `long:"hit" description:"1-based hit number of --query" default:"1"`
	TOC      int    `long:"toc" description:"1-based table-of-contents entry"`
	Location string `long:"location" description:"Renderer location token or chapter href"`

	Args bookArgs `positional-args:"yes"`

	globals *GlobalFlags
	version string
}

// ReadCommand prints the current page of a book, turning pages first.
type ReadCommand struct {
	Pages    int    `long:"pages" description:"Turn this many pages (negative to go back)"`
	Restart  bool   `long:"restart" description:"Start from the beginning instead of the saved position"`
	Theme    string `long:"theme" description:"Remember a reader theme: light, dark or sepia"`
	FontSize int    `long:"font-size" description:"Remember a reader font size (12 to 24)"`

	Args bookArgs `positional-args:"yes"`

	globals *GlobalFlags
	version string
}

// HistoryCommand lists or clears the remembered queries of a book.
type HistoryCommand struct {
	Clear bool `long:"clear" description:"Forget every remembered query"`

	Args bookArgs `positional-args:"yes"`

	globals *GlobalFlags
	version string
}

// StatusCommand shows database statistics and the configuration summary.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// PurgeCommand deletes ALL margin data with safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	db      *sql.DB // injectable for testing; nil means open default DB
}
