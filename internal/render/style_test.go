package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTheme(t *testing.T) {
	tests := []struct {
		in    string
		want  Theme
		known bool
	}{
		{"light", ThemeLight, true},
		{" Sepia ", ThemeSepia, true},
		{"dark", ThemeDark, true},
		{"neon", ThemeDark, false},
		{"", ThemeDark, false},
	}

	for _, tc := range tests {
		got, known := ParseTheme(tc.in)
		assert.Equal(t, tc.want, got, "theme for %q", tc.in)
		assert.Equal(t, tc.known, known, "known for %q", tc.in)
	}
}

func TestThemeColors(t *testing.T) {
	fg, bg := ThemeSepia.Colors()
	assert.Equal(t, "#5c4b37", fg)
	assert.Equal(t, "#f4f1e8", bg)

	fg, bg = Theme("unknown").Colors()
	assert.Equal(t, "#b8b8b8", fg)
	assert.Equal(t, "#0d0d0d", bg)
}

func TestStyleNormalize_ClampsFontSize(t *testing.T) {
	assert.Equal(t, MinFontSize, Style{FontSize: 4}.Normalize().FontSize)
	assert.Equal(t, MaxFontSize, Style{FontSize: 40}.Normalize().FontSize)
	assert.Equal(t, DefaultFontSize, Style{}.Normalize().FontSize)
	assert.Equal(t, DefaultLineHeight, Style{}.Normalize().LineHeight)
}

func TestStyleWithFontDelta(t *testing.T) {
	s := DefaultStyle()
	assert.Equal(t, 18, s.WithFontDelta(2).FontSize)
	assert.Equal(t, MaxFontSize, s.WithFontDelta(100).FontSize)
	assert.Equal(t, MinFontSize, s.WithFontDelta(-100).FontSize)
}

func TestStylePageRunes(t *testing.T) {
	base := DefaultStyle()
	assert.Equal(t, 1800, base.PageRunes(1800))

	bigger := base
	bigger.FontSize = 24
	assert.Less(t, bigger.PageRunes(1800), base.PageRunes(1800))

	looser := base
	looser.LineHeight = 3.8
	assert.Equal(t, 900, looser.PageRunes(1800))
}
