// Package chapter provides scoped access to spine chapters: every load is
// paired with an unload on every exit path.
package chapter

import (
	"context"

	"github.com/pkg/errors"

	"github.com/runnerr0/margin/internal/reader/toc"
	"github.com/runnerr0/margin/internal/render"
)

// With loads ch, passes its document to fn and unloads ch before returning,
// whether fn succeeds, fails or panics.
func With(ctx context.Context, ch render.Chapter, fn func(doc render.Document) error) error {
	defer ch.Unload()

	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}

	doc, err := ch.Load(ctx)
	if err != nil {
		return errors.Wrapf(err, "could not load chapter '%s'", ch.Href())
	}

	return fn(doc)
}

// Text loads ch and returns a copy of its decoded text. The chapter is
// unloaded before Text returns.
func Text(ctx context.Context, ch render.Chapter) (string, error) {
	var text string
	err := With(ctx, ch, func(doc render.Document) error {
		text = doc.Text()
		return nil
	})
	return text, err
}

// Find locates the spine chapter addressed by ref. A chapter whose href
// equals ref wins outright; otherwise the backward matching discipline of
// table-of-contents resolution applies. Unlike the table of contents, there
// is no default: ok is false when nothing matches.
func Find(spine []render.Chapter, ref string) (render.Chapter, bool) {
	clean := toc.CleanRef(ref)
	if clean != "" {
		for _, ch := range spine {
			if toc.CleanRef(ch.Href()) == clean {
				return ch, true
			}
		}
	}

	i, _ := toc.BackwardScan(len(spine), func(i int) string {
		return spine[i].Href()
	}, ref)
	if i < 0 {
		return nil, false
	}
	return spine[i], true
}
