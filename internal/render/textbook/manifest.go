package textbook

import (
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/runnerr0/margin/internal/render"
)

// ManifestFile is the name of the manifest at the root of a book directory.
const ManifestFile = "book.yaml"

var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest describes an unpacked book directory.
type Manifest struct {
	Title  string     `yaml:"title"`
	Author string     `yaml:"author"`
	Spine  []string   `yaml:"spine"`
	TOC    []TOCEntry `yaml:"toc"`
}

type TOCEntry struct {
	Label    string     `yaml:"label"`
	Href     string     `yaml:"href"`
	Children []TOCEntry `yaml:"children,omitempty"`
}

// ReadManifest decodes the manifest of the book stored in dir.
func ReadManifest(fs afero.Fs, dir string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, path.Join(dir, ManifestFile))
	if err != nil {
		return nil, errors.Wrapf(err, "could not read manifest of '%s'", dir)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "could not parse manifest of '%s'", dir)
	}

	if err := m.normalize(dir); err != nil {
		return nil, errors.WithStack(err)
	}

	return &m, nil
}

func (m *Manifest) normalize(dir string) error {
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		m.Title = path.Base(dir)
	}

	spine := make([]string, 0, len(m.Spine))
	for _, href := range m.Spine {
		href = strings.TrimSpace(href)
		if href == "" {
			continue
		}
		if strings.Contains(href, "..") {
			return errors.Wrapf(ErrInvalidManifest, "spine item '%s' escapes the book directory", href)
		}
		spine = append(spine, href)
	}
	if len(spine) == 0 {
		return errors.Wrap(ErrInvalidManifest, "empty spine")
	}
	m.Spine = spine

	return nil
}

// Outline converts the manifest table of contents.
func (m *Manifest) Outline() []render.OutlineItem {
	return outline(m.TOC)
}

func outline(entries []TOCEntry) []render.OutlineItem {
	if len(entries) == 0 {
		return nil
	}
	items := make([]render.OutlineItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, render.OutlineItem{
			Label:    e.Label,
			Href:     e.Href,
			Subitems: outline(e.Children),
		})
	}
	return items
}
