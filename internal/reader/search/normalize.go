package search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalized is chapter text with whitespace runs collapsed to a single
// space. It remembers, for every normalized rune, the rune offset it came
// from in the raw text.
type Normalized struct {
	Text    string
	runes   []rune
	offsets []int
}

func Normalize(raw string) Normalized {
	var sb strings.Builder
	sb.Grow(len(raw))

	runes := make([]rune, 0, utf8.RuneCountInString(raw))
	offsets := make([]int, 0, cap(runes))

	inSpace := false
	i := 0
	for _, r := range raw {
		if unicode.IsSpace(r) {
			if !inSpace {
				sb.WriteRune(' ')
				runes = append(runes, ' ')
				offsets = append(offsets, i)
			}
			inSpace = true
		} else {
			sb.WriteRune(r)
			runes = append(runes, r)
			offsets = append(offsets, i)
			inSpace = false
		}
		i++
	}

	return Normalized{Text: sb.String(), runes: runes, offsets: offsets}
}

// Len returns the length of the normalized text in runes.
func (n Normalized) Len() int {
	return len(n.runes)
}

// Slice returns normalized runes [start, end), clamped to the text.
func (n Normalized) Slice(start, end int) string {
	start = max(start, 0)
	end = min(end, len(n.runes))
	if start >= end {
		return ""
	}
	return string(n.runes[start:end])
}

// RuneIndex converts a byte offset into Text to a rune offset.
func (n Normalized) RuneIndex(byteOffset int) int {
	return utf8.RuneCountInString(n.Text[:byteOffset])
}

// RawRange maps normalized runes [start, end) to the raw rune range they
// were produced from.
func (n Normalized) RawRange(start, end int) (int, int, bool) {
	if start < 0 || end > len(n.offsets) || start >= end {
		return 0, 0, false
	}
	return n.offsets[start], n.offsets[end-1] + 1, true
}

// Index returns the rune offset of the first occurrence of sub in the
// normalized text at or after rune offset from, or -1.
func (n Normalized) Index(sub string, from int) int {
	if from > len(n.runes) {
		return -1
	}
	prefix := len(string(n.runes[:from]))
	i := strings.Index(n.Text[prefix:], sub)
	if i < 0 {
		return -1
	}
	return n.RuneIndex(prefix + i)
}
