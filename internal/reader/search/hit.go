package search

import (
	"regexp"

	"github.com/pkg/errors"
)

const ellipsis = "..."

// Hit is a human-readable search result. Offset is a rune offset into the
// whitespace-normalized chapter text and is only meaningful for display;
// it is not a location.
type Hit struct {
	ChapterHref  string
	ChapterIndex int
	ChapterLabel string
	Offset       int
	MatchedText  string
	Excerpt      string
}

// Excerpt returns normalized runes [start, end) with up to radius runes of
// context on each side. An ellipsis marks each side where the context was
// cut short of the text boundary.
func Excerpt(n Normalized, start, end, radius int) string {
	from := max(start-radius, 0)
	to := min(end+radius, n.Len())

	excerpt := n.Slice(from, to)
	if from > 0 {
		excerpt = ellipsis + excerpt
	}
	if to < n.Len() {
		excerpt += ellipsis
	}

	return excerpt
}

// Literal compiles a case-insensitive pattern matching query verbatim.
func Literal(query string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(query))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return re, nil
}
