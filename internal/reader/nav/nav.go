// Package nav tracks where the reader currently is. The snapshot is only
// ever written from renderer relocation events; jumps and page steps issue
// renderer commands and wait for the resulting relocation.
package nav

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/runnerr0/margin/internal/reader/toc"
	"github.com/runnerr0/margin/internal/render"
)

var (
	ErrNavigationFailed = errors.New("navigation failed")
	ErrInvalidTarget    = errors.New("invalid navigation target")
)

// Snapshot is the displayed state of an open book.
type Snapshot struct {
	Location     render.Token
	Href         string
	ChapterLabel string
	ChapterIndex int // 1-based position in the flattened table of contents
	Page         int
	TotalPages   int

	// Version counts the relocations applied so far.
	Version uint64
}

func initialSnapshot() Snapshot {
	return Snapshot{Page: 1, TotalPages: 0, ChapterIndex: 1}
}

type Direction int

const (
	Prev Direction = iota
	Next
)

type targetKind int

const (
	targetLocation targetKind = iota
	targetTOC
	targetPages
)

// Target is a jump destination.
type Target struct {
	kind  targetKind
	token render.Token
	n     int
}

// ToLocation targets a renderer location token.
func ToLocation(token render.Token) Target {
	return Target{kind: targetLocation, token: token}
}

// ToEntry targets the i-th (0-based) flattened table-of-contents entry.
func ToEntry(i int) Target {
	return Target{kind: targetTOC, n: i}
}

// ByPages targets a relative page offset.
func ByPages(delta int) Target {
	return Target{kind: targetPages, n: delta}
}

type Navigator struct {
	renderer render.Navigable
	index    *toc.Index
	logger   *slog.Logger

	mu       sync.RWMutex
	snapshot Snapshot
	changed  chan struct{}
	subs     map[int]chan Snapshot
	nextSub  int
}

type Option func(*Navigator)

func WithLogger(logger *slog.Logger) Option {
	return func(n *Navigator) {
		n.logger = logger
	}
}

func New(renderer render.Navigable, index *toc.Index, opts ...Option) *Navigator {
	if index == nil {
		index = toc.New(nil)
	}

	n := &Navigator{
		renderer: renderer,
		index:    index,
		logger:   slog.Default(),
		snapshot: initialSnapshot(),
		changed:  make(chan struct{}),
		subs:     make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Run applies relocation events until ctx is done or events is closed.
func (n *Navigator) Run(ctx context.Context, events <-chan render.Relocation) error {
	for {
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case r, ok := <-events:
			if !ok {
				return nil
			}
			n.Relocated(ctx, r)
		}
	}
}

// Relocated applies a relocation reported by the renderer and returns the
// resulting snapshot.
func (n *Navigator) Relocated(ctx context.Context, r render.Relocation) Snapshot {
	match := n.index.Resolve(r.Start.Href)

	n.mu.Lock()

	s := n.snapshot
	s.Location = r.Start.Token
	s.Href = r.Start.Href
	if r.Start.Page > 0 {
		s.Page = r.Start.Page
	}
	s.TotalPages = r.Start.TotalPages
	if match.Index >= 0 {
		s.ChapterLabel = match.Label
		s.ChapterIndex = match.Index + 1
	}
	s.Version++

	n.snapshot = s
	close(n.changed)
	n.changed = make(chan struct{})

	for _, sub := range n.subs {
		select {
		case <-sub:
		default:
		}
		sub <- s
	}

	n.mu.Unlock()

	n.logger.DebugContext(ctx, "relocated",
		slog.String("location", string(s.Location)),
		slog.String("chapter", s.ChapterLabel),
		slog.Int("page", s.Page),
		slog.Int("total_pages", s.TotalPages),
	)

	return s
}

func (n *Navigator) Snapshot() Snapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.snapshot
}

// Subscribe returns a channel receiving the latest snapshot after each
// relocation. Slow subscribers only see the most recent one.
func (n *Navigator) Subscribe() (<-chan Snapshot, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextSub
	n.nextSub++
	ch := make(chan Snapshot, 1)
	n.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

// Wait blocks until a snapshot with a version greater than after has been
// applied, and returns it.
func (n *Navigator) Wait(ctx context.Context, after uint64) (Snapshot, error) {
	for {
		n.mu.RLock()
		s, changed := n.snapshot, n.changed
		n.mu.RUnlock()

		if s.Version > after {
			return s, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return s, errors.WithStack(ctx.Err())
		}
	}
}

// Jump asks the renderer to display target. The snapshot is left untouched
// until the renderer reports the relocation.
func (n *Navigator) Jump(ctx context.Context, target Target) error {
	switch target.kind {
	case targetLocation:
		if target.token == "" {
			return errors.WithStack(ErrInvalidTarget)
		}
		return n.display(ctx, target.token)

	case targetTOC:
		entry, ok := n.index.Entry(target.n)
		if !ok {
			return errors.Wrapf(ErrInvalidTarget, "no table of contents entry %d", target.n)
		}
		return n.display(ctx, render.Token(entry.Href))

	case targetPages:
		dir, steps := Next, target.n
		if steps < 0 {
			dir, steps = Prev, min(-steps, n.Snapshot().Page-1)
		}
		for i := 0; i < steps; i++ {
			if err := n.Step(ctx, dir); err != nil {
				return err
			}
		}
		return nil
	}

	return errors.WithStack(ErrInvalidTarget)
}

// Step moves one page. Stepping back from the first page does nothing;
// stepping forward is left to the renderer, which reports an unchanged
// location at the end of the book.
func (n *Navigator) Step(ctx context.Context, dir Direction) error {
	var err error

	switch dir {
	case Prev:
		if n.Snapshot().Page <= 1 {
			return nil
		}
		err = n.renderer.Prev(ctx)
	case Next:
		err = n.renderer.Next(ctx)
	default:
		return errors.WithStack(ErrInvalidTarget)
	}

	if err != nil {
		return errors.WithStack(fmt.Errorf("%w: %w", ErrNavigationFailed, err))
	}
	return nil
}

func (n *Navigator) display(ctx context.Context, token render.Token) error {
	if err := n.renderer.Display(ctx, token); err != nil {
		return errors.WithStack(fmt.Errorf("%w: could not display '%s': %w", ErrNavigationFailed, token, err))
	}
	return nil
}
