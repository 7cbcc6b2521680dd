// Package history keeps the per-book list of recent search queries.
package history

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/runnerr0/margin/internal/storage"
)

// DefaultLimit is the number of queries remembered per book.
const DefaultLimit = 10

// Push returns list with query moved to the front. Duplicates are removed
// and the result holds at most max entries. list is not modified.
func Push(list []string, query string, max int) []string {
	query = strings.TrimSpace(query)
	if max <= 0 {
		max = DefaultLimit
	}

	out := make([]string, 0, min(len(list)+1, max))
	if query != "" {
		out = append(out, query)
	}
	for _, q := range list {
		if len(out) >= max {
			break
		}
		if q == query || q == "" {
			continue
		}
		out = append(out, q)
	}

	return out
}

// Store is the persistence needed by a Recorder.
type Store interface {
	SearchHistory(ctx context.Context, key string) ([]string, error)
	ReplaceSearchHistory(ctx context.Context, key string, queries []string) error
}

// Recorder remembers successful queries per book title.
type Recorder struct {
	store  Store
	limit  int
	logger *slog.Logger

	// Serializes read-modify-write cycles.
	mu sync.Mutex
}

type Option func(*Recorder)

func WithLimit(limit int) Option {
	return func(r *Recorder) {
		if limit > 0 {
			r.limit = limit
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:  store,
		limit:  DefaultLimit,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record pushes query onto the history of bookTitle and writes the whole
// list back.
func (r *Recorder) Record(ctx context.Context, bookTitle, query string) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := storage.HistoryKey(bookTitle)

	list, err := r.store.SearchHistory(ctx, key)
	if err != nil {
		return errors.Wrapf(err, "could not read search history of '%s'", bookTitle)
	}

	list = Push(list, query, r.limit)

	if err := r.store.ReplaceSearchHistory(ctx, key, list); err != nil {
		return errors.Wrapf(err, "could not write search history of '%s'", bookTitle)
	}

	r.logger.DebugContext(ctx, "search history updated", slog.String("book", bookTitle), slog.Int("entries", len(list)))

	return nil
}

// List returns the remembered queries of bookTitle, most recent first.
func (r *Recorder) List(ctx context.Context, bookTitle string) ([]string, error) {
	list, err := r.store.SearchHistory(ctx, storage.HistoryKey(bookTitle))
	if err != nil {
		return nil, errors.Wrapf(err, "could not read search history of '%s'", bookTitle)
	}
	return list, nil
}

// Clear forgets every query of bookTitle.
func (r *Recorder) Clear(ctx context.Context, bookTitle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.ReplaceSearchHistory(ctx, storage.HistoryKey(bookTitle), nil); err != nil {
		return errors.Wrapf(err, "could not clear search history of '%s'", bookTitle)
	}
	return nil
}
