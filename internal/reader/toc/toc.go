// Package toc flattens a book outline and maps runtime document references
// back to table-of-contents entries.
package toc

import (
	"context"
	"log/slog"
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/runnerr0/margin/internal/render"
)

const defaultMemoSize = 256

// Entry is one flattened table-of-contents entry. Depth starts at 1.
type Entry struct {
	Label string
	Href  string
	Depth int
}

// Rule names the matching rule that produced a Match.
type Rule string

const (
	RuleExact         Rule = "exact"
	RuleRuntimeSuffix Rule = "runtime_suffix"
	RuleEntrySuffix   Rule = "entry_suffix"
	RuleContains      Rule = "contains"
	RuleFilename      Rule = "filename"
	RuleDefault       Rule = "default"
	RuleNone          Rule = "none"
)

// Match is the result of resolving a runtime reference.
type Match struct {
	Index int // 0-based position in the flattened list, -1 when the list is empty
	Label string
	Rule  Rule
}

// Precise reports whether the match came from an actual reference
// comparison rather than the default fallback.
func (m Match) Precise() bool {
	return m.Rule != RuleDefault && m.Rule != RuleNone
}

// Flatten walks the outline depth-first; each node precedes its children.
func Flatten(outline []render.OutlineItem) []Entry {
	var entries []Entry
	var walk func(items []render.OutlineItem, depth int)
	walk = func(items []render.OutlineItem, depth int) {
		for _, item := range items {
			entries = append(entries, Entry{
				Label: strings.TrimSpace(item.Label),
				Href:  item.Href,
				Depth: depth,
			})
			walk(item.Subitems, depth+1)
		}
	}
	walk(outline, 1)
	return entries
}

// CleanRef strips the query string and fragment from a reference.
func CleanRef(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	return ref
}

// BaseName returns the final path segment of a cleaned reference.
func BaseName(ref string) string {
	ref = CleanRef(ref)
	if ref == "" {
		return ""
	}
	return path.Base(ref)
}

// MatchRule tests a cleaned runtime reference against a cleaned candidate
// using, in order: equality, runtime-ends-with-candidate,
// candidate-ends-with-runtime and containment either way.
func MatchRule(runtime, candidate string) (Rule, bool) {
	if runtime == "" || candidate == "" {
		return RuleNone, false
	}
	switch {
	case runtime == candidate:
		return RuleExact, true
	case strings.HasSuffix(runtime, candidate):
		return RuleRuntimeSuffix, true
	case strings.HasSuffix(candidate, runtime):
		return RuleEntrySuffix, true
	case strings.Contains(runtime, candidate), strings.Contains(candidate, runtime):
		return RuleContains, true
	}
	return RuleNone, false
}

// BackwardScan returns the highest index i in [0, n) for which ref(i)
// matches runtime under MatchRule, retrying on file names only when no full
// reference matches. It returns -1 when nothing matches.
func BackwardScan(n int, ref func(i int) string, runtime string) (int, Rule) {
	clean := CleanRef(runtime)
	for i := n - 1; i >= 0; i-- {
		if rule, ok := MatchRule(clean, CleanRef(ref(i))); ok {
			return i, rule
		}
	}

	base := BaseName(runtime)
	for i := n - 1; i >= 0; i-- {
		if _, ok := MatchRule(base, BaseName(ref(i))); ok {
			return i, RuleFilename
		}
	}

	return -1, RuleNone
}

// Index is an immutable flattened table of contents.
type Index struct {
	entries []Entry
	memo    *lru.Cache[string, Match]
	logger  *slog.Logger
}

type Option func(*Index)

func WithLogger(logger *slog.Logger) Option {
	return func(idx *Index) {
		idx.logger = logger
	}
}

// WithMemoSize bounds the number of memoized reference resolutions.
// A size <= 0 disables memoization.
func WithMemoSize(size int) Option {
	return func(idx *Index) {
		if size <= 0 {
			idx.memo = nil
			return
		}
		idx.memo, _ = lru.New[string, Match](size)
	}
}

// New builds an index over a copy of entries.
func New(entries []Entry, opts ...Option) *Index {
	idx := &Index{
		entries: append([]Entry(nil), entries...),
		logger:  slog.Default(),
	}
	idx.memo, _ = lru.New[string, Match](defaultMemoSize)

	for _, opt := range opts {
		opt(idx)
	}

	return idx
}

// FromOutline flattens the outline and builds an index over it.
func FromOutline(outline []render.OutlineItem, opts ...Option) *Index {
	return New(Flatten(outline), opts...)
}

func (idx *Index) Len() int {
	return len(idx.entries)
}

// Entries returns a copy of the flattened entries.
func (idx *Index) Entries() []Entry {
	return append([]Entry(nil), idx.entries...)
}

func (idx *Index) Entry(i int) (Entry, bool) {
	if i < 0 || i >= len(idx.entries) {
		return Entry{}, false
	}
	return idx.entries[i], true
}

// Resolve maps a runtime reference to the nearest matching entry. The scan
// runs from the last entry toward the first so that, among entries sharing
// a file, the most specific (latest) one wins. Without any match the first
// entry is returned.
func (idx *Index) Resolve(runtime string) Match {
	if len(idx.entries) == 0 {
		return Match{Index: -1, Rule: RuleNone}
	}

	if idx.memo != nil {
		if m, ok := idx.memo.Get(runtime); ok {
			return m
		}
	}

	i, rule := BackwardScan(len(idx.entries), func(i int) string {
		return idx.entries[i].Href
	}, runtime)

	if i < 0 {
		i, rule = 0, RuleDefault
		idx.logger.LogAttrs(context.Background(), slog.LevelDebug, "low precision toc match",
			slog.String("reference", runtime),
			slog.String("fallback", idx.entries[0].Href),
		)
	}

	m := Match{Index: i, Label: idx.entries[i].Label, Rule: rule}
	if idx.memo != nil {
		idx.memo.Add(runtime, m)
	}

	return m
}
