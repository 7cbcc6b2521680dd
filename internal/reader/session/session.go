// Package session ties the reader core together for one open book: search,
// hit selection, table-of-contents and page navigation, highlights and
// reading progress.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bornholm/go-x/slogx"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/margin/internal/reader/highlight"
	"github.com/runnerr0/margin/internal/reader/locate"
	"github.com/runnerr0/margin/internal/reader/nav"
	"github.com/runnerr0/margin/internal/reader/search"
	"github.com/runnerr0/margin/internal/reader/toc"
	"github.com/runnerr0/margin/internal/render"
	"github.com/runnerr0/margin/internal/storage"
)

const DefaultWaitTimeout = 5 * time.Second

var (
	ErrEmptyBook = errors.New("book has no chapters")
	ErrNoSuchHit = errors.New("no such search hit")
)

type Status int

const (
	Idle Status = iota
	Searching
	NoResults
	Ready
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Searching:
		return "searching"
	case NoResults:
		return "no_results"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Results is the search state shown to the reader.
type Results struct {
	Status     Status
	Query      string
	Hits       []search.Hit
	Generation uint64
}

// Selection is the outcome of jumping to a search hit.
type Selection struct {
	Hit      search.Hit
	Location locate.Location
	Snapshot nav.Snapshot
}

// ProgressStore persists the reading position of a book.
type ProgressStore interface {
	SaveProgress(ctx context.Context, progress *storage.Progress) error
	GetProgress(ctx context.Context, key string) (*storage.Progress, error)
}

// HistoryLister reads the remembered queries of a book.
type HistoryLister interface {
	List(ctx context.Context, bookTitle string) ([]string, error)
}

type Option func(*Session)

func WithEngine(engine *search.Engine) Option {
	return func(s *Session) {
		s.engine = engine
	}
}

func WithResolver(resolver *locate.Resolver) Option {
	return func(s *Session) {
		s.resolver = resolver
	}
}

// WithProgress restores the saved position on open and saves every
// relocation.
func WithProgress(store ProgressStore) Option {
	return func(s *Session) {
		s.progress = store
	}
}

func WithHistory(history HistoryLister) Option {
	return func(s *Session) {
		s.history = history
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithWaitTimeout bounds how long a navigation waits for the renderer to
// report the new location.
func WithWaitTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.waitTimeout = d
		}
	}
}

type Session struct {
	id          string
	book        render.Book
	spine       []render.Chapter
	index       *toc.Index
	navigator   *nav.Navigator
	highlights  *highlight.Manager
	engine      *search.Engine
	resolver    *locate.Resolver
	progress    ProgressStore
	history     HistoryLister
	logger      *slog.Logger
	waitTimeout time.Duration

	cancel    context.CancelFunc
	loops     errgroup.Group
	closeOnce sync.Once

	mu        sync.Mutex
	latest    uint64
	running   map[uint64]string
	published Results
}

// Open starts a reading session. The saved position is restored when a
// progress store is configured; otherwise, or when restoring fails, the
// first spine item is displayed.
func Open(ctx context.Context, book render.Book, opts ...Option) (*Session, error) {
	spine := book.Spine()
	if len(spine) == 0 {
		return nil, errors.WithStack(ErrEmptyBook)
	}

	s := &Session{
		id:          uuid.New().String(),
		book:        book,
		spine:       spine,
		logger:      slog.Default(),
		waitTimeout: DefaultWaitTimeout,
		running:     map[uint64]string{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.engine == nil {
		s.engine = search.NewEngine(search.WithLogger(s.logger))
	}
	if s.resolver == nil {
		s.resolver = locate.NewResolver(locate.WithLogger(s.logger))
	}

	s.index = toc.New(toc.Flatten(book.Outline()), toc.WithLogger(s.logger))
	s.navigator = nav.New(book, s.index, nav.WithLogger(s.logger))
	s.highlights = highlight.New(book, highlight.WithLogger(s.logger))

	ctx = s.withAttrs(ctx)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.loops.Go(func() error {
		return s.navigator.Run(loopCtx, book.Relocations())
	})
	if s.progress != nil {
		updates, unsubscribe := s.navigator.Subscribe()
		s.loops.Go(func() error {
			defer unsubscribe()
			s.persist(loopCtx, updates)
			return nil
		})
	}

	if err := s.start(ctx); err != nil {
		s.Close()
		return nil, errors.WithStack(err)
	}

	s.logger.InfoContext(ctx, "session opened",
		slog.Int("chapters", len(spine)),
		slog.Int("toc_entries", s.index.Len()),
	)

	return s, nil
}

func (s *Session) start(ctx context.Context) error {
	first := render.Token(s.spine[0].Href())

	if s.progress != nil {
		p, err := s.progress.GetProgress(ctx, storage.ProgressKey(s.book.Title()))
		switch {
		case err == nil && p.Location != "":
			_, err := s.jump(ctx, nav.ToLocation(render.Token(p.Location)))
			if err == nil {
				return nil
			}
			s.logger.WarnContext(ctx, "could not restore reading position", slog.String("location", p.Location), slogx.Error(err))
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			s.logger.WarnContext(ctx, "could not read reading position", slogx.Error(err))
		}
	}

	_, err := s.jump(ctx, nav.ToLocation(first))
	return err
}

func (s *Session) persist(ctx context.Context, updates <-chan nav.Snapshot) {
	key := storage.ProgressKey(s.book.Title())
	saveCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			// Flush the position reported just before Close.
			select {
			case snap := <-updates:
				s.save(saveCtx, key, snap)
			default:
			}
			return
		case snap := <-updates:
			s.save(saveCtx, key, snap)
		}
	}
}

func (s *Session) save(ctx context.Context, key string, snap nav.Snapshot) {
	err := s.progress.SaveProgress(ctx, &storage.Progress{
		BookKey:  key,
		Location: string(snap.Location),
		Href:     snap.Href,
		Page:     snap.Page,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "could not save reading position", slogx.Error(err))
	}
}

func (s *Session) withAttrs(ctx context.Context) context.Context {
	return slogx.WithAttrs(ctx, slog.String("session", s.id), slog.String("book", s.book.Title()))
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Book() render.Book {
	return s.book
}

// TOC returns the flattened table of contents.
func (s *Session) TOC() []toc.Entry {
	return s.index.Entries()
}

func (s *Session) Snapshot() nav.Snapshot {
	return s.navigator.Snapshot()
}

// Highlights returns the active highlight tokens.
func (s *Session) Highlights() []render.Token {
	return s.highlights.Active()
}

// Subscribe streams navigation snapshots; see nav.Navigator.Subscribe.
func (s *Session) Subscribe() (<-chan nav.Snapshot, func()) {
	return s.navigator.Subscribe()
}

// Results returns the displayed search state. Results only ever move
// forward: a search that completes after a newer one was published is
// dropped.
func (s *Session) Results() Results {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results()
}

func (s *Session) results() Results {
	r := s.published
	r.Hits = append(make([]search.Hit, 0, len(r.Hits)), r.Hits...)

	var newest uint64
	for gen := range s.running {
		if gen > r.Generation && gen > newest {
			newest = gen
		}
	}
	if newest > 0 {
		r.Status = Searching
		r.Query = s.running[newest]
	}

	return r
}

// Search clears the highlights and runs query over the whole book.
func (s *Session) Search(ctx context.Context, query string) (Results, error) {
	ctx = s.withAttrs(ctx)

	query = strings.TrimSpace(query)
	if query == "" {
		return s.Results(), errors.WithStack(search.ErrEmptyQuery)
	}

	s.clearHighlights(ctx)

	s.mu.Lock()
	s.latest++
	gen := s.latest
	s.running[gen] = query
	s.mu.Unlock()

	res, err := s.engine.Search(ctx, search.Request{
		BookTitle: s.book.Title(),
		Query:     query,
		Spine:     s.spine,
		TOC:       s.index,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.running, gen)

	if err != nil {
		if errors.Is(err, search.ErrSuperseded) {
			return s.results(), nil
		}
		return s.results(), errors.WithStack(err)
	}

	if gen > s.published.Generation {
		status := NoResults
		if len(res.Hits) > 0 {
			status = Ready
		}
		s.published = Results{Status: status, Query: res.Query, Hits: res.Hits, Generation: gen}
	}

	return s.results(), nil
}

// Select jumps to the i-th hit of the displayed results and highlights it
// when its location could be resolved exactly. Highlights are cleared
// before the jump, so a failed jump never leaves a stale highlight.
func (s *Session) Select(ctx context.Context, i int) (*Selection, error) {
	ctx = s.withAttrs(ctx)

	s.mu.Lock()
	hits := s.published.Hits
	s.mu.Unlock()

	if i < 0 || i >= len(hits) {
		return nil, errors.Wrapf(ErrNoSuchHit, "hit %d of %d", i, len(hits))
	}
	hit := hits[i]

	s.clearHighlights(ctx)

	loc := s.resolver.Resolve(ctx, s.spine, hit)

	snap, err := s.jump(ctx, nav.ToLocation(loc.Token))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if loc.Precision == locate.Exact {
		if err := s.highlights.ApplyAll(ctx, []render.Token{loc.Token}); err != nil {
			s.logger.WarnContext(ctx, "could not highlight search hit", slogx.Error(err))
		}
	}

	s.logger.DebugContext(ctx, "search hit selected",
		slog.String("query", hit.MatchedText),
		slog.String("precision", loc.Precision.String()),
		slog.Int("page", snap.Page),
	)

	return &Selection{Hit: hit, Location: loc, Snapshot: snap}, nil
}

// GotoTOC clears the highlights and displays the i-th (0-based) flattened
// table-of-contents entry.
func (s *Session) GotoTOC(ctx context.Context, i int) (nav.Snapshot, error) {
	ctx = s.withAttrs(ctx)
	s.clearHighlights(ctx)
	return s.jump(ctx, nav.ToEntry(i))
}

// Goto displays a renderer location token.
func (s *Session) Goto(ctx context.Context, token render.Token) (nav.Snapshot, error) {
	ctx = s.withAttrs(ctx)
	s.clearHighlights(ctx)
	return s.jump(ctx, nav.ToLocation(token))
}

func (s *Session) Next(ctx context.Context) (nav.Snapshot, error) {
	return s.step(s.withAttrs(ctx), nav.Next)
}

func (s *Session) Prev(ctx context.Context) (nav.Snapshot, error) {
	return s.step(s.withAttrs(ctx), nav.Prev)
}

// Turn moves delta pages forward, or backward when delta is negative.
func (s *Session) Turn(ctx context.Context, delta int) (nav.Snapshot, error) {
	ctx = s.withAttrs(ctx)

	dir := nav.Next
	if delta < 0 {
		dir, delta = nav.Prev, -delta
	}

	snap := s.navigator.Snapshot()
	for i := 0; i < delta; i++ {
		var err error
		if snap, err = s.step(ctx, dir); err != nil {
			return snap, err
		}
	}
	return snap, nil
}

// History returns the remembered queries of the book, most recent first.
func (s *Session) History(ctx context.Context) ([]string, error) {
	if s.history == nil {
		return []string{}, nil
	}
	list, err := s.history.List(s.withAttrs(ctx), s.book.Title())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return list, nil
}

// Close clears the highlights and stops the session loops. The book is
// left open.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		ctx := s.withAttrs(context.Background())
		if clearErr := s.highlights.Clear(ctx); clearErr != nil {
			s.logger.WarnContext(ctx, "could not clear highlights", slogx.Error(clearErr))
		}

		s.cancel()
		if loopErr := s.loops.Wait(); loopErr != nil && !errors.Is(loopErr, context.Canceled) {
			err = errors.WithStack(loopErr)
		}
	})
	return err
}

func (s *Session) step(ctx context.Context, dir nav.Direction) (nav.Snapshot, error) {
	before := s.navigator.Snapshot()
	if dir == nav.Prev && before.Page <= 1 {
		return before, nil
	}

	if err := s.navigator.Step(ctx, dir); err != nil {
		return before, err
	}
	return s.wait(ctx, before.Version)
}

func (s *Session) jump(ctx context.Context, target nav.Target) (nav.Snapshot, error) {
	before := s.navigator.Snapshot()

	if err := s.navigator.Jump(ctx, target); err != nil {
		return before, err
	}
	return s.wait(ctx, before.Version)
}

func (s *Session) wait(ctx context.Context, after uint64) (nav.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.waitTimeout)
	defer cancel()

	snap, err := s.navigator.Wait(ctx, after)
	if err != nil {
		return snap, errors.Wrap(nav.ErrNavigationFailed, "renderer did not report the new location")
	}
	return snap, nil
}

func (s *Session) clearHighlights(ctx context.Context) {
	if err := s.highlights.Clear(ctx); err != nil {
		s.logger.WarnContext(ctx, "could not clear highlights", slogx.Error(err))
	}
}
