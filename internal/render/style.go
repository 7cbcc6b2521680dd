package render

import "strings"

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeSepia Theme = "sepia"
)

const (
	MinFontSize = 12
	MaxFontSize = 24

	DefaultFontSize   = 16
	DefaultLineHeight = 1.9
)

// ParseTheme returns the theme named by s, or ThemeDark when s is unknown.
func ParseTheme(s string) (Theme, bool) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case ThemeLight, ThemeDark, ThemeSepia:
		return t, true
	default:
		return ThemeDark, false
	}
}

// Colors returns the foreground and background colors of the theme.
func (t Theme) Colors() (foreground, background string) {
	switch t {
	case ThemeLight:
		return "#333333", "#ffffff"
	case ThemeSepia:
		return "#5c4b37", "#f4f1e8"
	default:
		return "#b8b8b8", "#0d0d0d"
	}
}

// Style is the per-session presentation configuration handed to a renderer.
type Style struct {
	Theme         Theme
	FontSize      int
	LineHeight    float64
	LetterSpacing float64
}

func DefaultStyle() Style {
	return Style{
		Theme:      ThemeDark,
		FontSize:   DefaultFontSize,
		LineHeight: DefaultLineHeight,
	}
}

// Normalize clamps the font size, defaults the line height and replaces
// unknown themes with the dark theme.
func (s Style) Normalize() Style {
	s.Theme, _ = ParseTheme(string(s.Theme))

	switch {
	case s.FontSize == 0:
		s.FontSize = DefaultFontSize
	case s.FontSize < MinFontSize:
		s.FontSize = MinFontSize
	case s.FontSize > MaxFontSize:
		s.FontSize = MaxFontSize
	}

	if s.LineHeight <= 0 {
		s.LineHeight = DefaultLineHeight
	}

	if s.LetterSpacing < 0 {
		s.LetterSpacing = 0
	}

	return s
}

// WithFontDelta returns a copy of the style with the font size shifted by
// delta and clamped.
func (s Style) WithFontDelta(delta int) Style {
	s.FontSize += delta
	if s.FontSize < MinFontSize {
		s.FontSize = MinFontSize
	}
	return s.Normalize()
}

// PageRunes scales a base page size (in runes, measured at the default font
// size and line height) to the style.
func (s Style) PageRunes(base int) int {
	s = s.Normalize()

	scale := float64(DefaultFontSize) / float64(s.FontSize)
	n := float64(base) * scale * scale * (DefaultLineHeight / s.LineHeight)
	if s.LetterSpacing > 0 {
		n /= 1 + s.LetterSpacing/10
	}

	if n < 1 {
		return 1
	}
	return int(n)
}
