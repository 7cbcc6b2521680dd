// Package locate turns search hits into renderer-addressable locations.
//
// Hits carry offsets into text that has since been unloaded, so a hit is
// re-found in a freshly loaded copy of its chapter and addressed through
// the renderer's own range primitive at the time of use.
package locate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bornholm/go-x/slogx"
	"github.com/pkg/errors"

	"github.com/runnerr0/margin/internal/reader/chapter"
	"github.com/runnerr0/margin/internal/reader/search"
	"github.com/runnerr0/margin/internal/render"
)

type Precision int

const (
	// Exact locations address the matched occurrence itself.
	Exact Precision = iota
	// ChapterFallback locations only address the containing chapter.
	ChapterFallback
)

func (p Precision) String() string {
	switch p {
	case Exact:
		return "exact"
	case ChapterFallback:
		return "chapter"
	default:
		return "unknown"
	}
}

type Location struct {
	Token     render.Token
	Href      string
	Precision Precision
}

var errNoOccurrence = errors.New("matched text not found")

type Resolver struct {
	logger *slog.Logger
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve never fails: when the chapter cannot be found, loaded, or no
// longer contains the matched text, the location degrades to the chapter.
func (r *Resolver) Resolve(ctx context.Context, spine []render.Chapter, hit search.Hit) Location {
	ch, ok := chapter.Find(spine, hit.ChapterHref)
	if !ok {
		r.logger.DebugContext(ctx, "hit chapter not in spine", slog.String("href", hit.ChapterHref))
		return Location{Token: render.Token(hit.ChapterHref), Href: hit.ChapterHref, Precision: ChapterFallback}
	}

	var (
		token render.Token
		base  render.Token
	)

	err := chapter.With(ctx, ch, func(doc render.Document) error {
		base = doc.Base()

		start, end, err := occurrence(doc.Text(), hit.MatchedText)
		if err != nil {
			return errors.WithStack(err)
		}

		token, err = doc.Range(start, end)
		if err != nil {
			return errors.Wrapf(err, "could not address range [%d, %d)", start, end)
		}

		return nil
	})
	if err != nil {
		r.logger.DebugContext(ctx, "falling back to chapter location",
			slog.String("href", ch.Href()),
			slog.String("text", hit.MatchedText),
			slogx.Error(err),
		)

		if base == "" {
			base = render.Token(ch.Href())
		}

		return Location{Token: base, Href: ch.Href(), Precision: ChapterFallback}
	}

	return Location{Token: token, Href: ch.Href(), Precision: Exact}
}

// occurrence finds the first occurrence of text in the normalized form of
// raw, exact first and case-insensitive second, and returns its raw rune
// range.
func occurrence(raw, text string) (int, int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, 0, errors.WithStack(errNoOccurrence)
	}

	norm := search.Normalize(raw)
	needle := search.Normalize(text).Text

	start := norm.Index(needle, 0)
	end := start + len([]rune(needle))

	if start < 0 {
		re, err := search.Literal(needle)
		if err != nil {
			return 0, 0, errors.WithStack(err)
		}

		loc := re.FindStringIndex(norm.Text)
		if loc == nil {
			return 0, 0, errors.WithStack(errNoOccurrence)
		}

		start, end = norm.RuneIndex(loc[0]), norm.RuneIndex(loc[1])
	}

	rawStart, rawEnd, ok := norm.RawRange(start, end)
	if !ok {
		return 0, 0, errors.WithStack(errNoOccurrence)
	}

	return rawStart, rawEnd, nil
}
