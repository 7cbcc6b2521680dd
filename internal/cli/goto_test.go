package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/margin/internal/render/textbook"
	"github.com/runnerr0/margin/internal/storage"
)

func newGotoCommand(asJSON bool) *GotoCommand {
	cmd := &GotoCommand{Hit: 1, globals: testGlobals(asJSON)}
	cmd.Args.Book = "test"
	return cmd
}

func TestGoto_SearchHitIsHighlighted(t *testing.T) {
	rt := newTestRuntime(t)
	cmd := newGotoCommand(false)
	cmd.Query = "thirteen"

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWith(rt))
	})

	assert.Contains(t, output, "Test Book · Ch1.1")
	assert.Contains(t, output, "Page 4 of 11")
	assert.Contains(t, output, "Match:    exact")
	assert.Contains(t, output, "ng **thirteen** by the l")
}

func TestGoto_SearchHitJSON(t *testing.T) {
	rt := newTestRuntime(t)
	cmd := newGotoCommand(true)
	cmd.Query = "thirteen"

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWith(rt))
	})

	var result pageJSON
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	assert.Equal(t, "c1.xhtml", result.Href)
	assert.Equal(t, 4, result.Page)
	assert.Equal(t, 11, result.TotalPages)
	assert.Equal(t, "exact", result.Precision)
	assert.Equal(t, "ng thirteen by the l", result.Text)
	assert.Equal(t, []spanJSON{{Start: 3, End: 11}}, result.Highlights)
	assert.Equal(t, "dark", result.Theme)
	assert.Equal(t, "#b8b8b8", result.Foreground)
	assert.Equal(t, "#0d0d0d", result.Background)
}

func TestGoto_SavesReadingPosition(t *testing.T) {
	rt := newTestRuntime(t)
	cmd := newGotoCommand(true)
	cmd.Query = "thirteen"

	captureOutput(t, func() {
		require.NoError(t, cmd.executeWith(rt))
	})

	p, err := rt.store.GetProgress(context.Background(), storage.ProgressKey("Test Book"))
	require.NoError(t, err)
	assert.Equal(t, 4, p.Page)
	assert.Equal(t, "c1.xhtml", p.Href)
}

func TestGoto_HitOutOfRange(t *testing.T) {
	rt := newTestRuntime(t)
	cmd := newGotoCommand(false)
	cmd.Query = "sea"
	cmd.Hit = 2

	err := cmd.executeWith(rt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--hit must be between 1 and 1")
}

func TestGoto_NoResults(t *testing.T) {
	rt := newTestRuntime(t)
	cmd := newGotoCommand(false)
	cmd.Query = "zebra"

	err := cmd.executeWith(rt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no results found for "zebra"`)
}

func TestGoto_TOCEntry(t *testing.T) {
	rt := newTestRuntime(t)
	cmd := newGotoCommand(true)
	cmd.TOC = 3

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWith(rt))
	})

	var result pageJSON
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	assert.Equal(t, "c2.md", result.Href)
	assert.Equal(t, "Ch2", result.ChapterLabel)
	assert.Equal(t, 3, result.ChapterIndex)
	assert.Equal(t, 6, result.Page)
	assert.Empty(t, result.Precision)
	assert.Empty(t, result.Highlights)
}

func TestGoto_InvalidTOCEntry(t *testing.T) {
	rt := newTestRuntime(t)
	cmd := newGotoCommand(false)
	cmd.TOC = 9

	err := cmd.executeWith(rt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table-of-contents entry 9")
}

func TestGoto_Location(t *testing.T) {
	rt := newTestRuntime(t)
	cmd := newGotoCommand(false)
	cmd.Location = "epubcfi(/6/6!/4:45)"

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWith(rt))
	})

	assert.Contains(t, output, "Test Book · Ch3")
	assert.Contains(t, output, "Page 11 of 11")
	assert.NotContains(t, output, "Match:")
}

func TestGoto_RequiresExactlyOneTarget(t *testing.T) {
	rt := newTestRuntime(t)

	none := newGotoCommand(false)
	err := none.executeWith(rt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of")

	two := newGotoCommand(false)
	two.Query = "sea"
	two.TOC = 1
	err = two.executeWith(rt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of")
}

// --- markHighlights ---

func TestMarkHighlights(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		spans []textbook.Span
		want  string
	}{
		{"none", "plain text", nil, "plain text"},
		{"single", "the sea was calm", []textbook.Span{{Start: 4, End: 7}}, "the **sea** was calm"},
		{"unsorted", "abcdef", []textbook.Span{{Start: 4, End: 5}, {Start: 0, End: 1}}, "**a**bcd**e**f"},
		{"overlap", "abcdef", []textbook.Span{{Start: 0, End: 3}, {Start: 2, End: 4}}, "**abc****d**ef"},
		{"clipped", "abc", []textbook.Span{{Start: 1, End: 10}}, "a**bc**"},
		{"multibyte", "café au lait", []textbook.Span{{Start: 3, End: 4}}, "caf**é** au lait"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, markHighlights(tt.text, tt.spans))
		})
	}
}
