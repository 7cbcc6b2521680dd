// Package search runs literal, case-insensitive text search across every
// chapter of a book.
package search

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/bornholm/go-x/slogx"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/margin/internal/reader/chapter"
	"github.com/runnerr0/margin/internal/reader/toc"
	"github.com/runnerr0/margin/internal/render"
)

const (
	DefaultMaxHitsPerChapter = 5
	DefaultExcerptRadius     = 40
)

var (
	ErrEmptyQuery = errors.New("empty query")
	// ErrSuperseded is returned by a search that completed after a newer
	// search was started on the same engine. Its results are discarded.
	ErrSuperseded = errors.New("search superseded")
)

// HistoryRecorder persists successful queries for a book.
type HistoryRecorder interface {
	Record(ctx context.Context, bookTitle, query string) error
}

type Request struct {
	BookTitle string
	Query     string
	Spine     []render.Chapter
	TOC       *toc.Index
}

type Result struct {
	Generation uint64
	Query      string
	Hits       []Hit
}

type Engine struct {
	maxHits    int
	radius     int
	history    HistoryRecorder
	logger     *slog.Logger
	generation atomic.Uint64
}

type Option func(*Engine)

func WithMaxHitsPerChapter(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxHits = n
		}
	}
}

func WithExcerptRadius(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.radius = n
		}
	}
}

func WithHistory(history HistoryRecorder) Option {
	return func(e *Engine) {
		e.history = history
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		maxHits: DefaultMaxHitsPerChapter,
		radius:  DefaultExcerptRadius,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generation returns the generation of the most recently started search.
func (e *Engine) Generation() uint64 {
	return e.generation.Load()
}

// Search scans every chapter of the spine concurrently and returns hits in
// spine order, then offset order. A chapter that fails to load contributes
// no hits. If another search starts before this one completes, Search
// returns ErrSuperseded.
func (e *Engine) Search(ctx context.Context, req Request) (*Result, error) {
	query := Normalize(strings.TrimSpace(req.Query)).Text
	if query == "" {
		return nil, errors.WithStack(ErrEmptyQuery)
	}

	gen := e.generation.Add(1)

	re, err := Literal(query)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	perChapter := make([][]Hit, len(req.Spine))

	var group errgroup.Group
	for i, ch := range req.Spine {
		group.Go(func() error {
			perChapter[i] = e.searchChapter(ctx, ch, re, req.TOC)
			return nil
		})
	}
	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	if e.generation.Load() != gen {
		e.logger.DebugContext(ctx, "discarding stale search results", slog.String("query", query), slog.Uint64("generation", gen))
		return nil, errors.WithStack(ErrSuperseded)
	}

	hits := make([]Hit, 0)
	for _, chapterHits := range perChapter {
		hits = append(hits, chapterHits...)
	}

	if len(hits) > 0 && e.history != nil {
		if err := e.history.Record(ctx, req.BookTitle, query); err != nil {
			e.logger.WarnContext(ctx, "could not record search history", slog.String("query", query), slogx.Error(err))
		}
	}

	e.logger.DebugContext(ctx, "search completed",
		slog.String("query", query),
		slog.Int("chapters", len(req.Spine)),
		slog.Int("hits", len(hits)),
	)

	return &Result{Generation: gen, Query: query, Hits: hits}, nil
}

func (e *Engine) searchChapter(ctx context.Context, ch render.Chapter, re *regexp.Regexp, index *toc.Index) []Hit {
	var hits []Hit

	err := chapter.With(ctx, ch, func(doc render.Document) error {
		norm := Normalize(doc.Text())

		for _, loc := range re.FindAllStringIndex(norm.Text, e.maxHits) {
			start := norm.RuneIndex(loc[0])
			end := norm.RuneIndex(loc[1])

			hits = append(hits, Hit{
				ChapterHref:  ch.Href(),
				ChapterIndex: ch.Index(),
				Offset:       start,
				MatchedText:  norm.Text[loc[0]:loc[1]],
				Excerpt:      Excerpt(norm, start, end, e.radius),
			})
		}

		return nil
	})
	if err != nil {
		e.logger.WarnContext(ctx, "could not search chapter", slog.String("href", ch.Href()), slogx.Error(err))
		return nil
	}

	if len(hits) == 0 || index == nil || index.Len() == 0 {
		return hits
	}

	label := index.Resolve(ch.Href()).Label
	for i := range hits {
		hits[i].ChapterLabel = label
	}

	return hits
}
