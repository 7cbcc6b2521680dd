// Package render defines the contract between the reader core and a
// paginating book renderer. The reader core only ever sees these
// interfaces; location tokens are produced and consumed by the renderer.
package render

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrInvalidRange = errors.New("invalid range")
	ErrUnknownToken = errors.New("unknown location token")
	ErrClosed       = errors.New("book closed")
)

// Token is an opaque, renderer-specific location identifier.
type Token string

// Location describes a displayed position as reported by the renderer.
type Location struct {
	Token      Token
	Href       string
	Page       int // 1-based
	TotalPages int
}

// Relocation is emitted by the renderer whenever the visible location changes.
type Relocation struct {
	Start Location
}

// OutlineItem is a node of the raw, possibly nested, table of contents.
type OutlineItem struct {
	Label    string
	Href     string
	Subitems []OutlineItem
}

// Document is the decoded content of a loaded chapter. It stays valid after
// the owning chapter is unloaded, but must not be retained past the
// operation that loaded it.
type Document interface {
	// Text returns the decoded text content.
	Text() string
	// Range returns a token addressing runes [start, end) of Text.
	Range(start, end int) (Token, error)
	// Base returns a token addressing the start of the chapter.
	Base() Token
}

// Chapter is a loadable spine item.
type Chapter interface {
	Index() int
	Href() string
	Load(ctx context.Context) (Document, error)
	Unload()
}

// Navigable accepts display commands. Each successful command eventually
// produces a Relocation.
type Navigable interface {
	Display(ctx context.Context, target Token) error
	Next(ctx context.Context) error
	Prev(ctx context.Context) error
}

// Annotator adds and removes highlight annotations keyed by range tokens.
type Annotator interface {
	Highlight(ctx context.Context, target Token) error
	Unhighlight(ctx context.Context, target Token) error
}

// Book is an opened book exposed by a renderer.
type Book interface {
	Navigable
	Annotator

	Title() string
	Outline() []OutlineItem
	Spine() []Chapter
	Relocations() <-chan Relocation
	Close() error
}
