package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/runnerr0/margin/internal/reader/search"
	"github.com/runnerr0/margin/internal/reader/session"
	"github.com/runnerr0/margin/internal/render/textbook"
)

// Execute implements the go-flags Commander interface for SearchCommand.
func (c *SearchCommand) Execute(args []string) error {
	rt, err := openRuntime(c.globals, true)
	if err != nil {
		return err
	}
	defer rt.close()

	return c.executeWith(rt)
}

// executeWith runs the search against a provided runtime (for testing).
func (c *SearchCommand) executeWith(rt *runtime) error {
	ctx := c.globals.context()
	query := strings.Join(c.Args.Query, " ")

	return rt.withSession(ctx, c.Args.Book, false, func(book *textbook.Book, sess *session.Session) error {
		res, err := sess.Search(ctx, query)
		if err != nil {
			if errors.Is(err, search.ErrEmptyQuery) {
				return fmt.Errorf("a search query is required")
			}
			return fmt.Errorf("search failed: %w", err)
		}

		if c.globals.json() {
			return writeJSON(newSearchJSON(c.Args.Book, res))
		}
		printResults(book.Title(), res)
		return nil
	})
}

type hitJSON struct {
	Number       int    `json:"number"`
	ChapterHref  string `json:"chapter_href"`
	ChapterIndex int    `json:"chapter_index"`
	ChapterLabel string `json:"chapter_label"`
	Offset       int    `json:"offset"`
	MatchedText  string `json:"matched_text"`
	Excerpt      string `json:"excerpt"`
}

type searchJSON struct {
	Book   string    `json:"book"`
	Query  string    `json:"query"`
	Status string    `json:"status"`
	Count  int       `json:"count"`
	Hits   []hitJSON `json:"hits"`
}

func newSearchJSON(id string, res session.Results) searchJSON {
	out := searchJSON{
		Book:   id,
		Query:  res.Query,
		Status: res.Status.String(),
		Count:  len(res.Hits),
		Hits:   make([]hitJSON, len(res.Hits)),
	}
	for i, h := range res.Hits {
		out.Hits[i] = hitJSON{
			Number:       i + 1,
			ChapterHref:  h.ChapterHref,
			ChapterIndex: h.ChapterIndex,
			ChapterLabel: h.ChapterLabel,
			Offset:       h.Offset,
			MatchedText:  h.MatchedText,
			Excerpt:      h.Excerpt,
		}
	}
	return out
}

func printResults(title string, res session.Results) {
	if res.Status == session.NoResults {
		fmt.Printf("No results found for %q in %s\n", res.Query, title)
		return
	}

	fmt.Printf("Found %d %s for %q in %s\n\n", len(res.Hits), plural(len(res.Hits), "result"), res.Query, title)

	for i, h := range res.Hits {
		label := h.ChapterLabel
		if label == "" {
			label = h.ChapterHref
		}
		fmt.Printf("%d. %s\n", i+1, label)
		fmt.Printf("   %s\n", h.Excerpt)
		fmt.Printf("   %s · offset %d\n", h.ChapterHref, h.Offset)

		if i < len(res.Hits)-1 {
			fmt.Println()
		}
	}
}
