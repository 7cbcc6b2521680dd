// Package textbook renders unpacked book directories: a book.yaml manifest
// next to XHTML, markdown or plain text chapters. Pages are fixed-size rune
// windows whose size follows the reader style.
package textbook

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/runnerr0/margin/internal/render"
)

// DefaultPageRunes is the page size at the default font size and line height.
const DefaultPageRunes = 1800

const relocationBuffer = 16

type position struct {
	spine  int
	offset int
}

// Book is an opened textbook. It implements render.Book.
type Book struct {
	fs        afero.Fs
	dir       string
	manifest  *Manifest
	logger    *slog.Logger
	style     render.Style
	basePage  int
	pageRunes int

	chapters   []*spineItem
	firstPage  []int // 0-based global page index of each chapter's first page
	totalPages int

	relocations chan render.Relocation
	done        chan struct{}
	closeOnce   sync.Once

	mu          sync.Mutex
	closed      bool
	current     position
	annotations []render.Token
}

type Option func(*Book)

func WithStyle(style render.Style) Option {
	return func(b *Book) {
		b.style = style
	}
}

// WithPageRunes sets the page size measured at the default font size.
func WithPageRunes(n int) Option {
	return func(b *Book) {
		if n > 0 {
			b.basePage = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Book) {
		b.logger = logger
	}
}

// Open reads the manifest in dir and measures every spine item.
func Open(ctx context.Context, fs afero.Fs, dir string, opts ...Option) (*Book, error) {
	manifest, err := ReadManifest(fs, dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	b := &Book{
		fs:          fs,
		dir:         dir,
		manifest:    manifest,
		logger:      slog.Default(),
		style:       render.DefaultStyle(),
		basePage:    DefaultPageRunes,
		relocations: make(chan render.Relocation, relocationBuffer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.style = b.style.Normalize()
	b.pageRunes = b.style.PageRunes(b.basePage)

	b.chapters = make([]*spineItem, 0, len(manifest.Spine))
	b.firstPage = make([]int, 0, len(manifest.Spine))

	for i, href := range manifest.Spine {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(err)
		}

		item := &spineItem{book: b, index: i, href: href}

		c, err := item.decode()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		item.length = c.length
		item.anchors = c.anchors
		item.pages = pageCount(c.length, b.pageRunes)

		b.chapters = append(b.chapters, item)
		b.firstPage = append(b.firstPage, b.totalPages)
		b.totalPages += item.pages
	}

	b.logger.DebugContext(ctx, "book opened",
		slog.String("title", manifest.Title),
		slog.Int("chapters", len(b.chapters)),
		slog.Int("pages", b.totalPages),
		slog.Int("page_runes", b.pageRunes),
	)

	return b, nil
}

func pageCount(length, pageRunes int) int {
	if length <= 0 {
		return 1
	}
	return (length + pageRunes - 1) / pageRunes
}

func (b *Book) Title() string {
	return b.manifest.Title
}

func (b *Book) Author() string {
	return b.manifest.Author
}

func (b *Book) Style() render.Style {
	return b.style
}

func (b *Book) Outline() []render.OutlineItem {
	return b.manifest.Outline()
}

func (b *Book) Spine() []render.Chapter {
	spine := make([]render.Chapter, len(b.chapters))
	for i, item := range b.chapters {
		spine[i] = item
	}
	return spine
}

func (b *Book) TotalPages() int {
	return b.totalPages
}

func (b *Book) Relocations() <-chan render.Relocation {
	return b.relocations
}

// Location returns the currently displayed location.
func (b *Book) Location() render.Location {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.location(b.current)
}

// Display moves to target: a location token or a spine href with an
// optional #fragment.
func (b *Book) Display(ctx context.Context, target render.Token) error {
	pos, err := b.resolve(target)
	if err != nil {
		return errors.WithStack(err)
	}

	return b.move(ctx, func(position) position { return pos })
}

// Next moves one page forward. At the end of the book the unchanged
// location is reported again.
func (b *Book) Next(ctx context.Context) error {
	return b.move(ctx, func(cur position) position {
		item := b.chapters[cur.spine]
		if next := cur.offset + b.pageRunes; next < item.length {
			return position{spine: cur.spine, offset: next}
		}
		if cur.spine+1 < len(b.chapters) {
			return position{spine: cur.spine + 1}
		}
		return cur
	})
}

// Prev moves one page back. At the start of the book the unchanged location
// is reported again.
func (b *Book) Prev(ctx context.Context) error {
	return b.move(ctx, func(cur position) position {
		if cur.offset >= b.pageRunes {
			return position{spine: cur.spine, offset: cur.offset - b.pageRunes}
		}
		if cur.spine > 0 {
			prev := b.chapters[cur.spine-1]
			return position{spine: cur.spine - 1, offset: (prev.pages - 1) * b.pageRunes}
		}
		return cur
	})
}

func (b *Book) move(ctx context.Context, next func(cur position) position) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.WithStack(render.ErrClosed)
	}

	pos := next(b.current)
	pos.offset -= pos.offset % b.pageRunes
	b.current = pos

	r := render.Relocation{Start: b.location(pos)}

	select {
	case b.relocations <- r:
		return nil
	case <-b.done:
		return errors.WithStack(render.ErrClosed)
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
}

func (b *Book) location(pos position) render.Location {
	item := b.chapters[pos.spine]
	return render.Location{
		Token:      pointToken(pos.spine, pos.offset),
		Href:       item.href,
		Page:       b.firstPage[pos.spine] + pos.offset/b.pageRunes + 1,
		TotalPages: b.totalPages,
	}
}

func (b *Book) resolve(target render.Token) (position, error) {
	if target == "" {
		return position{}, errors.Wrap(render.ErrUnknownToken, "empty location")
	}

	if isCFI(target) {
		c, err := parseCFI(target)
		if err != nil {
			return position{}, err
		}
		if c.spine >= len(b.chapters) {
			return position{}, errors.Wrapf(render.ErrUnknownToken, "no spine item for '%s'", target)
		}
		item := b.chapters[c.spine]
		return position{spine: c.spine, offset: min(c.start, max(item.length-1, 0))}, nil
	}

	ref, fragment, _ := strings.Cut(string(target), "#")
	ref, _, _ = strings.Cut(ref, "?")

	item, ok := b.lookup(ref)
	if !ok {
		return position{}, errors.Wrapf(render.ErrUnknownToken, "no spine item for '%s'", target)
	}

	pos := position{spine: item.index}
	if fragment != "" {
		offset, ok := item.anchors[fragment]
		if !ok {
			b.logger.Debug("unknown anchor, displaying chapter start", slog.String("target", string(target)))
		}
		pos.offset = min(offset, max(item.length-1, 0))
	}

	return pos, nil
}

func (b *Book) lookup(ref string) (*spineItem, bool) {
	ref = strings.TrimPrefix(ref, "./")
	for _, item := range b.chapters {
		if item.href == ref {
			return item, true
		}
	}
	base := path.Base(ref)
	for _, item := range b.chapters {
		if path.Base(item.href) == base {
			return item, true
		}
	}
	return nil, false
}

// Highlight annotates a range token.
func (b *Book) Highlight(ctx context.Context, target render.Token) error {
	c, err := parseCFI(target)
	if err != nil {
		return errors.WithStack(err)
	}
	if !c.isRange || c.spine >= len(b.chapters) || c.end > b.chapters[c.spine].length {
		return errors.Wrapf(render.ErrInvalidRange, "cannot highlight '%s'", target)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.WithStack(render.ErrClosed)
	}
	for _, t := range b.annotations {
		if t == target {
			return nil
		}
	}
	b.annotations = append(b.annotations, target)

	return nil
}

// Unhighlight removes an annotation. Removing a token that is not
// annotated is an error.
func (b *Book) Unhighlight(ctx context.Context, target render.Token) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, t := range b.annotations {
		if t == target {
			b.annotations = append(b.annotations[:i], b.annotations[i+1:]...)
			return nil
		}
	}

	return errors.Wrapf(render.ErrUnknownToken, "no annotation '%s'", target)
}

// Annotations returns the annotated range tokens in insertion order.
func (b *Book) Annotations() []render.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]render.Token(nil), b.annotations...)
}

// Page returns the text of the displayed page.
func (b *Book) Page(ctx context.Context) (string, error) {
	view, err := b.View(ctx)
	if err != nil {
		return "", err
	}
	return view.Text, nil
}

// Span is an annotated rune range of a page view.
type Span struct {
	Start int
	End   int
}

// PageView is the displayed page with the annotations falling on it.
type PageView struct {
	Location   render.Location
	Text       string
	Highlights []Span
}

// View decodes the displayed page. Highlight spans are rune offsets into
// Text, clipped to the page.
func (b *Book) View(ctx context.Context) (*PageView, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errors.WithStack(render.ErrClosed)
	}
	pos := b.current
	loc := b.location(pos)
	annotations := append([]render.Token(nil), b.annotations...)
	b.mu.Unlock()

	item := b.chapters[pos.spine]
	c, err := item.decode()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	runes := []rune(c.text)
	start := min(pos.offset, len(runes))
	end := min(pos.offset+b.pageRunes, len(runes))

	view := &PageView{Location: loc, Text: string(runes[start:end])}

	for _, token := range annotations {
		a, err := parseCFI(token)
		if err != nil || a.spine != pos.spine {
			continue
		}
		s, e := max(a.start, start), min(a.end, end)
		if s >= e {
			continue
		}
		view.Highlights = append(view.Highlights, Span{Start: s - start, End: e - start})
	}

	return view, nil
}

// Close stops relocation delivery. Pending commands fail with
// render.ErrClosed.
func (b *Book) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)

		b.mu.Lock()
		b.closed = true
		close(b.relocations)
		b.mu.Unlock()
	})
	return nil
}

type spineItem struct {
	book    *Book
	index   int
	href    string
	length  int
	pages   int
	anchors map[string]int

	loaded atomic.Int32
}

func (s *spineItem) Index() int {
	return s.index
}

func (s *spineItem) Href() string {
	return s.href
}

func (s *spineItem) Load(ctx context.Context) (render.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	s.book.mu.Lock()
	closed := s.book.closed
	s.book.mu.Unlock()
	if closed {
		return nil, errors.WithStack(render.ErrClosed)
	}

	c, err := s.decode()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	s.loaded.Add(1)

	return &document{item: s, text: c.text, length: c.length}, nil
}

func (s *spineItem) Unload() {
	for {
		n := s.loaded.Load()
		if n <= 0 || s.loaded.CompareAndSwap(n, n-1) {
			return
		}
	}
}

func (s *spineItem) decode() (*content, error) {
	data, err := afero.ReadFile(s.book.fs, path.Join(s.book.dir, s.href))
	if err != nil {
		return nil, errors.Wrapf(err, "could not read chapter '%s'", s.href)
	}
	c, err := decode(s.href, data)
	if err != nil {
		return nil, errors.Wrapf(err, "could not decode chapter '%s'", s.href)
	}
	return c, nil
}

type document struct {
	item   *spineItem
	text   string
	length int
}

func (d *document) Text() string {
	return d.text
}

func (d *document) Range(start, end int) (render.Token, error) {
	if start < 0 || end <= start || end > d.length {
		return "", errors.Wrapf(render.ErrInvalidRange, "[%d, %d) outside chapter '%s'", start, end, d.item.href)
	}
	return rangeToken(d.item.index, start, end), nil
}

func (d *document) Base() render.Token {
	return render.Token(d.item.href)
}
