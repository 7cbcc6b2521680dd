package cli

import (
	"context"
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Books   *BooksCommand
	TOC     *TOCCommand
	Search  *SearchCommand
	Goto    *GotoCommand
	Read    *ReadCommand
	History *HistoryCommand
	Status  *StatusCommand
	Purge   *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "margin"
	parser.LongDescription = "Search, navigate and read the books of a local library from the terminal."

	cmds := &commands{
		Books:   &BooksCommand{globals: &globals, version: version},
		TOC:     &TOCCommand{globals: &globals, version: version},
		Search:  &SearchCommand{globals: &globals, version: version},
		Goto:    &GotoCommand{globals: &globals, version: version},
		Read:    &ReadCommand{globals: &globals, version: version},
		History: &HistoryCommand{globals: &globals, version: version},
		Status:  &StatusCommand{globals: &globals, version: version},
		Purge:   &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("books", "List the library", "List the books of the library catalog, optionally filtered by category or search term.", cmds.Books)
	parser.AddCommand("toc", "Print a book's table of contents", "Print the flattened table of contents of a book.", cmds.TOC)
	parser.AddCommand("search", "Search inside a book", "Search the full text of a book and print every hit with its excerpt.", cmds.Search)
	parser.AddCommand("goto", "Display a hit, chapter or location", "Display a search hit, a table-of-contents entry or a location token, with the hit highlighted.", cmds.Goto)
	parser.AddCommand("read", "Print the current page", "Print the current page of a book, resuming from the saved position.", cmds.Read)
	parser.AddCommand("history", "Show remembered queries", "List or clear the remembered search queries of a book.", cmds.History)
	parser.AddCommand("status", "Show database statistics", "Show database statistics and configuration summary.", cmds.Status)
	parser.AddCommand("purge", "Delete ALL margin data", "Delete ALL margin data. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the margin CLI using os.Args.
func Run(ctx context.Context, version string) error {
	return RunWithArgs(ctx, version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(ctx context.Context, version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("margin %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, globals, _ := buildParser(version)
	globals.ctx = ctx

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
