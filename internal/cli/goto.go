package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/runnerr0/margin/internal/reader/nav"
	"github.com/runnerr0/margin/internal/reader/session"
	"github.com/runnerr0/margin/internal/render"
	"github.com/runnerr0/margin/internal/render/textbook"
)

// highlightMark surrounds highlighted text in human output.
const highlightMark = "**"

// Execute implements the go-flags Commander interface for GotoCommand.
func (c *GotoCommand) Execute(args []string) error {
	rt, err := openRuntime(c.globals, true)
	if err != nil {
		return err
	}
	defer rt.close()

	return c.executeWith(rt)
}

// executeWith displays the target using a provided runtime (for testing).
func (c *GotoCommand) executeWith(rt *runtime) error {
	targets := 0
	for _, set := range []bool{c.Query != "", c.TOC != 0, c.Location != ""} {
		if set {
			targets++
		}
	}
	if targets != 1 {
		return fmt.Errorf("exactly one of --query, --toc or --location is required")
	}

	ctx := c.globals.context()

	return rt.withSession(ctx, c.Args.Book, true, func(book *textbook.Book, sess *session.Session) error {
		var (
			snap      nav.Snapshot
			precision string
			err       error
		)

		switch {
		case c.Query != "":
			res, searchErr := sess.Search(ctx, c.Query)
			if searchErr != nil {
				return fmt.Errorf("search failed: %w", searchErr)
			}
			if res.Status == session.NoResults {
				return fmt.Errorf("no results found for %q", res.Query)
			}
			if c.Hit < 1 || c.Hit > len(res.Hits) {
				return fmt.Errorf("--hit must be between 1 and %d", len(res.Hits))
			}

			sel, selErr := sess.Select(ctx, c.Hit-1)
			if selErr != nil {
				return fmt.Errorf("select hit %d: %w", c.Hit, selErr)
			}
			snap, precision = sel.Snapshot, sel.Location.Precision.String()

		case c.TOC != 0:
			snap, err = sess.GotoTOC(ctx, c.TOC-1)
			if err != nil {
				return fmt.Errorf("table-of-contents entry %d: %w", c.TOC, err)
			}

		default:
			snap, err = sess.Goto(ctx, render.Token(c.Location))
			if err != nil {
				return fmt.Errorf("go to %s: %w", c.Location, err)
			}
		}

		return printPage(ctx, c.globals, book, snap, precision)
	})
}

type spanJSON struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type pageJSON struct {
	Title        string     `json:"title"`
	Location     string     `json:"location"`
	Href         string     `json:"href"`
	ChapterLabel string     `json:"chapter_label"`
	ChapterIndex int        `json:"chapter_index"`
	Page         int        `json:"page"`
	TotalPages   int        `json:"total_pages"`
	Precision    string     `json:"precision,omitempty"`
	Theme        string     `json:"theme"`
	FontSize     int        `json:"font_size"`
	Foreground   string     `json:"foreground"`
	Background   string     `json:"background"`
	Text         string     `json:"text"`
	Highlights   []spanJSON `json:"highlights"`
}

// printPage prints the displayed page of book. Precision is the resolution
// precision of a selected search hit, empty for other navigations.
func printPage(ctx context.Context, globals *GlobalFlags, book *textbook.Book, snap nav.Snapshot, precision string) error {
	view, err := book.View(ctx)
	if err != nil {
		return fmt.Errorf("render page: %w", err)
	}

	style := book.Style()

	if globals.json() {
		fg, bg := style.Theme.Colors()
		out := pageJSON{
			Title:        book.Title(),
			Location:     string(snap.Location),
			Href:         snap.Href,
			ChapterLabel: snap.ChapterLabel,
			ChapterIndex: snap.ChapterIndex,
			Page:         snap.Page,
			TotalPages:   snap.TotalPages,
			Precision:    precision,
			Theme:        string(style.Theme),
			FontSize:     style.FontSize,
			Foreground:   fg,
			Background:   bg,
			Text:         view.Text,
			Highlights:   make([]spanJSON, len(view.Highlights)),
		}
		for i, h := range view.Highlights {
			out.Highlights[i] = spanJSON{Start: h.Start, End: h.End}
		}
		return writeJSON(out)
	}

	header := book.Title()
	if snap.ChapterLabel != "" {
		header += " · " + snap.ChapterLabel
	}
	fmt.Println(header)
	fmt.Printf("Page %d of %d\n", snap.Page, snap.TotalPages)
	fmt.Printf("Location: %s\n", snap.Location)
	if precision != "" {
		fmt.Printf("Match:    %s\n", precision)
	}
	fmt.Println()
	fmt.Println(markHighlights(view.Text, view.Highlights))

	return nil
}

// markHighlights wraps each highlighted rune range of text in highlightMark.
// Overlapping spans are clipped to the text not yet marked.
func markHighlights(text string, spans []textbook.Span) string {
	if len(spans) == 0 {
		return text
	}

	sorted := append([]textbook.Span(nil), spans...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	runes := []rune(text)
	var b strings.Builder
	pos := 0

	for _, span := range sorted {
		start := max(span.Start, pos)
		end := min(span.End, len(runes))
		if start >= end {
			continue
		}
		b.WriteString(string(runes[pos:start]))
		b.WriteString(highlightMark)
		b.WriteString(string(runes[start:end]))
		b.WriteString(highlightMark)
		pos = end
	}
	b.WriteString(string(runes[pos:]))

	return b.String()
}
