package textbook

import (
	"bytes"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// content is the decoded text of a chapter with the rune offset of every
// element id found in the markup.
type content struct {
	text    string
	length  int
	anchors map[string]int
}

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
	),
)

var skipped = map[atom.Atom]bool{
	atom.Head:   true,
	atom.Script: true,
	atom.Style:  true,
	atom.Title:  true,
}

var blocks = map[atom.Atom]bool{
	atom.Address:    true,
	atom.Article:    true,
	atom.Aside:      true,
	atom.Blockquote: true,
	atom.Br:         true,
	atom.Dd:         true,
	atom.Div:        true,
	atom.Dt:         true,
	atom.Figcaption: true,
	atom.Figure:     true,
	atom.Footer:     true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Header:     true,
	atom.Hr:         true,
	atom.Li:         true,
	atom.Main:       true,
	atom.Nav:        true,
	atom.Ol:         true,
	atom.P:          true,
	atom.Pre:        true,
	atom.Section:    true,
	atom.Table:      true,
	atom.Tr:         true,
	atom.Ul:         true,
}

func decode(name string, data []byte) (*content, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".xhtml", ".html", ".htm":
		return decodeHTML(bytes.NewReader(data))

	case ".md", ".markdown":
		var buf bytes.Buffer
		if err := markdown.Convert(data, &buf); err != nil {
			return nil, errors.Wrapf(err, "could not convert markdown '%s'", name)
		}
		return decodeHTML(&buf)

	default:
		if !utf8.Valid(data) {
			return nil, errors.Errorf("'%s' is not valid utf-8 text", name)
		}
		text := string(data)
		return &content{text: text, length: utf8.RuneCountInString(text), anchors: map[string]int{}}, nil
	}
}

type textBuilder struct {
	buf   strings.Builder
	runes int
	last  rune
}

func (b *textBuilder) write(s string) {
	if s == "" {
		return
	}
	b.buf.WriteString(s)
	b.runes += utf8.RuneCountInString(s)
	b.last, _ = utf8.DecodeLastRuneInString(s)
}

func (b *textBuilder) newline() {
	if b.runes == 0 || b.last == '\n' {
		return
	}
	b.write("\n")
}

func decodeHTML(r io.Reader) (*content, error) {
	z := html.NewTokenizer(r)

	var (
		b       textBuilder
		skip    int
		anchors = map[string]int{}
	)

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				text := strings.TrimRight(b.buf.String(), "\n")
				return &content{
					text:    text,
					length:  utf8.RuneCountInString(text),
					anchors: anchors,
				}, nil
			}
			return nil, errors.Wrap(z.Err(), "could not tokenize markup")

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			a := atom.Lookup(name)

			if skipped[a] {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if skip > 0 {
				continue
			}

			if blocks[a] {
				b.newline()
			}

			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "id" && len(val) > 0 {
					if _, exists := anchors[string(val)]; !exists {
						anchors[string(val)] = b.runes
					}
				}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)

			if skipped[a] {
				if skip > 0 {
					skip--
				}
				continue
			}
			if skip == 0 && blocks[a] {
				b.newline()
			}

		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := string(z.Text())
			if b.last == '\n' || b.runes == 0 {
				text = strings.TrimLeft(text, " \t\r\n")
			}
			b.write(text)
		}
	}
}
