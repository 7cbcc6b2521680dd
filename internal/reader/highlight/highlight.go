// Package highlight keeps track of the annotations applied to the renderer
// for the current search selection.
package highlight

import (
	"context"
	stderrors "errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/bornholm/go-x/slogx"
	"github.com/pkg/errors"

	"github.com/runnerr0/margin/internal/render"
)

type Manager struct {
	annotator render.Annotator
	logger    *slog.Logger

	mu     sync.Mutex
	active []render.Token
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func New(annotator render.Annotator, opts ...Option) *Manager {
	m := &Manager{
		annotator: annotator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ApplyAll replaces the active highlights with tokens. Previous highlights
// are always cleared first; tokens that could not be added are left out of
// the active set.
func (m *Manager) ApplyAll(ctx context.Context, tokens []render.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if err := m.clear(ctx); err != nil {
		errs = append(errs, err)
	}

	for _, token := range tokens {
		if token == "" || slices.Contains(m.active, token) {
			continue
		}
		if err := m.annotator.Highlight(ctx, token); err != nil {
			m.logger.WarnContext(ctx, "could not add highlight", slog.String("token", string(token)), slogx.Error(err))
			errs = append(errs, errors.Wrapf(err, "could not highlight '%s'", token))
			continue
		}
		m.active = append(m.active, token)
	}

	return errors.WithStack(stderrors.Join(errs...))
}

// Clear removes every active highlight. Each removal is attempted
// independently and the active set is empty afterwards.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return errors.WithStack(m.clear(ctx))
}

// Active returns the highlighted tokens in the order they were added.
func (m *Manager) Active() []render.Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]render.Token(nil), m.active...)
}

func (m *Manager) clear(ctx context.Context) error {
	var errs []error
	for _, token := range m.active {
		if err := m.annotator.Unhighlight(ctx, token); err != nil {
			m.logger.WarnContext(ctx, "could not remove highlight", slog.String("token", string(token)), slogx.Error(err))
			errs = append(errs, errors.Wrapf(err, "could not remove highlight '%s'", token))
		}
	}
	m.active = nil

	return stderrors.Join(errs...)
}
