package cli

import (
	"fmt"
	"strings"

	"github.com/runnerr0/margin/internal/reader/toc"
)

type tocEntryJSON struct {
	Number int    `json:"number"`
	Label  string `json:"label"`
	Href   string `json:"href"`
	Depth  int    `json:"depth"`
}

type tocJSON struct {
	Book    string         `json:"book"`
	Title   string         `json:"title"`
	Entries []tocEntryJSON `json:"entries"`
}

// Execute implements the go-flags Commander interface for TOCCommand.
func (c *TOCCommand) Execute(args []string) error {
	rt, err := openRuntime(c.globals, false)
	if err != nil {
		return err
	}
	defer rt.close()

	return c.executeWith(rt)
}

// executeWith prints the table of contents using a provided runtime (for testing).
func (c *TOCCommand) executeWith(rt *runtime) error {
	book, err := rt.openBook(c.globals.context(), c.Args.Book)
	if err != nil {
		return err
	}
	defer book.Close()

	entries := toc.Flatten(book.Outline())

	if c.globals.json() {
		out := tocJSON{
			Book:    c.Args.Book,
			Title:   book.Title(),
			Entries: make([]tocEntryJSON, len(entries)),
		}
		for i, e := range entries {
			out.Entries[i] = tocEntryJSON{Number: i + 1, Label: e.Label, Href: e.Href, Depth: e.Depth}
		}
		return writeJSON(out)
	}

	fmt.Println(book.Title())
	if len(entries) == 0 {
		fmt.Println("No table of contents")
		return nil
	}
	fmt.Println()

	for i, e := range entries {
		indent := strings.Repeat("  ", e.Depth-1)
		fmt.Printf("%3d. %s%s (%s)\n", i+1, indent, e.Label, e.Href)
	}
	return nil
}
