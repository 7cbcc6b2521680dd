package cli

import "fmt"

type historyJSON struct {
	Book    string   `json:"book"`
	Title   string   `json:"title"`
	Cleared bool     `json:"cleared,omitempty"`
	Queries []string `json:"queries"`
}

// Execute implements the go-flags Commander interface for HistoryCommand.
func (c *HistoryCommand) Execute(args []string) error {
	rt, err := openRuntime(c.globals, true)
	if err != nil {
		return err
	}
	defer rt.close()

	return c.executeWith(rt)
}

// executeWith lists or clears the history using a provided runtime (for testing).
func (c *HistoryCommand) executeWith(rt *runtime) error {
	ctx := c.globals.context()

	// History is keyed by the manifest title, which may differ from the
	// catalog title.
	book, err := rt.openBook(ctx, c.Args.Book)
	if err != nil {
		return err
	}
	title := book.Title()
	book.Close()

	recorder := rt.recorder()

	queries := []string{}
	if c.Clear {
		if err := recorder.Clear(ctx, title); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
	} else {
		queries, err = recorder.List(ctx, title)
		if err != nil {
			return fmt.Errorf("list history: %w", err)
		}
	}

	if c.globals.json() {
		return writeJSON(historyJSON{Book: c.Args.Book, Title: title, Cleared: c.Clear, Queries: queries})
	}

	if c.Clear {
		fmt.Printf("Cleared search history of %s\n", title)
		return nil
	}
	if len(queries) == 0 {
		fmt.Printf("No remembered searches for %s\n", title)
		return nil
	}

	fmt.Printf("Recent searches in %s\n\n", title)
	for i, q := range queries {
		fmt.Printf("%2d. %s\n", i+1, q)
	}
	return nil
}
