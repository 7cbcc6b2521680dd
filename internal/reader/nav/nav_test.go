package nav

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/margin/internal/reader/toc"
	"github.com/runnerr0/margin/internal/render"
)

type fakeRenderer struct {
	mu       sync.Mutex
	events   chan render.Relocation
	page     int
	total    int
	href     string
	displays []render.Token
	prevs    int
	err      error
}

func newFakeRenderer(total int) *fakeRenderer {
	return &fakeRenderer{events: make(chan render.Relocation, 16), page: 1, total: total, href: "c1.xhtml"}
}

func (r *fakeRenderer) emit() {
	r.events <- render.Relocation{Start: render.Location{
		Token:      render.Token(r.href),
		Href:       r.href,
		Page:       r.page,
		TotalPages: r.total,
	}}
}

func (r *fakeRenderer) Display(ctx context.Context, target render.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.displays = append(r.displays, target)
	r.href = string(target)
	r.emit()
	return nil
}

func (r *fakeRenderer) Next(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.page < r.total {
		r.page++
	}
	r.emit()
	return nil
}

func (r *fakeRenderer) Prev(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.prevs++
	r.page--
	r.emit()
	return nil
}

func (r *fakeRenderer) displayed() []render.Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]render.Token(nil), r.displays...)
}

func testIndex() *toc.Index {
	return toc.FromOutline([]render.OutlineItem{
		{Label: "Ch1", Href: "c1.xhtml", Subitems: []render.OutlineItem{
			{Label: "Ch1.1", Href: "c1.xhtml#s2"},
		}},
		{Label: "Ch2", Href: "c2.xhtml"},
	})
}

func startNavigator(t *testing.T, r *fakeRenderer) *Navigator {
	t.Helper()
	n := New(r, testIndex())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = n.Run(ctx, r.events)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return n
}

func waitFor(t *testing.T, n *Navigator, after uint64) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := n.Wait(ctx, after)
	require.NoError(t, err)
	return s
}

// --- Snapshot lifecycle ---

func TestNavigator_InitialSnapshot(t *testing.T) {
	n := New(newFakeRenderer(3), testIndex())

	s := n.Snapshot()
	assert.Equal(t, 1, s.Page)
	assert.Equal(t, 0, s.TotalPages)
	assert.Equal(t, 1, s.ChapterIndex)
	assert.Equal(t, uint64(0), s.Version)
}

func TestNavigator_RelocatedUpdatesChapter(t *testing.T) {
	n := New(newFakeRenderer(3), testIndex())

	s := n.Relocated(context.Background(), render.Relocation{Start: render.Location{
		Token: "epubcfi(/6/2!/4:10)", Href: "c1.xhtml#s2", Page: 2, TotalPages: 9,
	}})

	assert.Equal(t, "Ch1.1", s.ChapterLabel)
	assert.Equal(t, 2, s.ChapterIndex)
	assert.Equal(t, 2, s.Page)
	assert.Equal(t, 9, s.TotalPages)
	assert.Equal(t, render.Token("epubcfi(/6/2!/4:10)"), s.Location)
	assert.Equal(t, s, n.Snapshot())
}

func TestNavigator_JumpDoesNotMutateSnapshot(t *testing.T) {
	r := newFakeRenderer(5)
	n := New(r, testIndex())

	require.NoError(t, n.Jump(context.Background(), ToLocation("c2.xhtml")))

	s := n.Snapshot()
	assert.Equal(t, uint64(0), s.Version)
	assert.Equal(t, 1, s.Page)
	assert.Equal(t, 0, s.TotalPages)

	// The relocation is only applied once the event is consumed.
	n.Relocated(context.Background(), <-r.events)
	s = n.Snapshot()
	assert.Equal(t, "Ch2", s.ChapterLabel)
	assert.Equal(t, 3, s.ChapterIndex)
	assert.Equal(t, 5, s.TotalPages)
}

// --- Jumps ---

func TestNavigator_JumpToEntry(t *testing.T) {
	r := newFakeRenderer(5)
	n := startNavigator(t, r)

	require.NoError(t, n.Jump(context.Background(), ToEntry(1)))
	s := waitFor(t, n, 0)

	assert.Equal(t, []render.Token{"c1.xhtml#s2"}, r.displayed())
	assert.Equal(t, "Ch1.1", s.ChapterLabel)
	assert.Equal(t, 2, s.ChapterIndex)
}

func TestNavigator_JumpToInvalidEntry(t *testing.T) {
	n := New(newFakeRenderer(5), testIndex())

	assert.ErrorIs(t, n.Jump(context.Background(), ToEntry(7)), ErrInvalidTarget)
	assert.ErrorIs(t, n.Jump(context.Background(), ToEntry(-1)), ErrInvalidTarget)
	assert.ErrorIs(t, n.Jump(context.Background(), ToLocation("")), ErrInvalidTarget)
}

func TestNavigator_DisplayFailureKeepsSnapshot(t *testing.T) {
	r := newFakeRenderer(5)
	n := startNavigator(t, r)

	require.NoError(t, n.Jump(context.Background(), ToLocation("c2.xhtml")))
	before := waitFor(t, n, 0)

	cause := errors.New("renderer crashed")
	r.mu.Lock()
	r.err = cause
	r.mu.Unlock()

	err := n.Jump(context.Background(), ToLocation("c1.xhtml"))
	assert.ErrorIs(t, err, ErrNavigationFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, before, n.Snapshot())
}

func TestNavigator_JumpByPages(t *testing.T) {
	r := newFakeRenderer(10)
	n := startNavigator(t, r)

	require.NoError(t, n.Jump(context.Background(), ByPages(3)))
	s := waitFor(t, n, 2)
	assert.Equal(t, 4, s.Page)

	require.NoError(t, n.Jump(context.Background(), ByPages(-2)))
	s = waitFor(t, n, 4)
	assert.Equal(t, 2, s.Page)
}

func TestNavigator_JumpBackStopsAtFirstPage(t *testing.T) {
	r := newFakeRenderer(10)
	n := startNavigator(t, r)

	require.NoError(t, n.Jump(context.Background(), ByPages(1)))
	require.Equal(t, 2, waitFor(t, n, 0).Page)

	require.NoError(t, n.Jump(context.Background(), ByPages(-3)))
	assert.Equal(t, 1, waitFor(t, n, 1).Page)

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, 1, r.prevs)
	assert.Len(t, r.events, 0)
}

// --- Page steps ---

func TestNavigator_PrevAtFirstPageIsNoop(t *testing.T) {
	r := newFakeRenderer(3)
	n := New(r, testIndex())

	require.NoError(t, n.Step(context.Background(), Prev))
	assert.Len(t, r.events, 0)
	assert.Equal(t, 1, n.Snapshot().Page)
}

func TestNavigator_NextHasNoUpperBound(t *testing.T) {
	r := newFakeRenderer(2)
	n := startNavigator(t, r)

	require.NoError(t, n.Step(context.Background(), Next))
	s := waitFor(t, n, 0)
	assert.Equal(t, 2, s.Page)

	// The renderer reports an unchanged location at the end of the book.
	require.NoError(t, n.Step(context.Background(), Next))
	s = waitFor(t, n, s.Version)
	assert.Equal(t, 2, s.Page)
	assert.Equal(t, 2, s.TotalPages)
}

func TestNavigator_StepFailure(t *testing.T) {
	r := newFakeRenderer(2)
	r.err = errors.New("not ready")
	n := New(r, testIndex())

	assert.ErrorIs(t, n.Step(context.Background(), Next), ErrNavigationFailed)
	assert.ErrorIs(t, n.Step(context.Background(), Direction(9)), ErrInvalidTarget)
}

// --- Observers ---

func TestNavigator_Subscribe(t *testing.T) {
	r := newFakeRenderer(4)
	n := startNavigator(t, r)

	updates, cancel := n.Subscribe()
	defer cancel()

	require.NoError(t, n.Step(context.Background(), Next))

	select {
	case s := <-updates:
		assert.Equal(t, 2, s.Page)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot received")
	}

	cancel()
	cancel()

	require.NoError(t, n.Step(context.Background(), Next))
	waitFor(t, n, 1)
	assert.Len(t, updates, 0)
}

func TestNavigator_WaitHonorsContext(t *testing.T) {
	n := New(newFakeRenderer(1), testIndex())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := n.Wait(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNavigator_RunStopsWhenEventsClose(t *testing.T) {
	n := New(newFakeRenderer(1), testIndex())
	events := make(chan render.Relocation)
	close(events)

	assert.NoError(t, n.Run(context.Background(), events))
}
