// Package catalog lists the books available in the library.
package catalog

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// CategoryAll selects every book.
const CategoryAll = "all"

// Book is a catalog entry. Path is the book directory, relative to the books
// root unless absolute.
type Book struct {
	ID       string `yaml:"id" json:"id"`
	Title    string `yaml:"title" json:"title"`
	Author   string `yaml:"author" json:"author"`
	Category string `yaml:"category" json:"category"`
	Path     string `yaml:"path" json:"path"`
}

type file struct {
	Books []Book `yaml:"books"`
}

// Catalog is an immutable list of books in file order.
type Catalog struct {
	books []Book
}

// New builds a catalog from books. Entries without an id or a title are
// rejected, as are duplicate ids.
func New(books []Book) (*Catalog, error) {
	seen := make(map[string]bool, len(books))
	out := make([]Book, 0, len(books))

	for i, b := range books {
		b.ID = strings.TrimSpace(b.ID)
		b.Title = strings.TrimSpace(b.Title)
		b.Category = strings.TrimSpace(b.Category)

		if b.ID == "" {
			return nil, fmt.Errorf("book %d: missing id", i)
		}
		if b.Title == "" {
			return nil, fmt.Errorf("book %s: missing title", b.ID)
		}
		if seen[b.ID] {
			return nil, fmt.Errorf("book %s: duplicate id", b.ID)
		}
		seen[b.ID] = true

		if b.Path == "" {
			b.Path = b.ID
		}
		out = append(out, b)
	}

	return &Catalog{books: out}, nil
}

// Load reads a library catalog file.
func Load(fs afero.Fs, path string) (*Catalog, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	c, err := New(f.Books)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return c, nil
}

func (c *Catalog) All() []Book {
	return append([]Book(nil), c.books...)
}

func (c *Catalog) Len() int {
	return len(c.books)
}

// ByID returns the book with the given id.
func (c *Catalog) ByID(id string) (Book, bool) {
	for _, b := range c.books {
		if b.ID == id {
			return b, true
		}
	}
	return Book{}, false
}

// ByCategory returns the books of a category, compared case-insensitively.
// CategoryAll and the empty string return every book.
func (c *Catalog) ByCategory(category string) []Book {
	category = strings.TrimSpace(category)
	if category == "" || strings.EqualFold(category, CategoryAll) {
		return c.All()
	}

	out := []Book{}
	for _, b := range c.books {
		if strings.EqualFold(b.Category, category) {
			out = append(out, b)
		}
	}
	return out
}

// Search returns the books whose title, author or category contains term,
// ignoring case. An empty term returns every book.
func (c *Catalog) Search(term string) []Book {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return c.All()
	}

	out := []Book{}
	for _, b := range c.books {
		if strings.Contains(strings.ToLower(b.Title), term) ||
			strings.Contains(strings.ToLower(b.Author), term) ||
			strings.Contains(strings.ToLower(b.Category), term) {
			out = append(out, b)
		}
	}
	return out
}

// Categories lists CategoryAll followed by every category in first-seen order.
func (c *Catalog) Categories() []string {
	out := []string{CategoryAll}
	seen := map[string]bool{CategoryAll: true}

	for _, b := range c.books {
		key := strings.ToLower(b.Category)
		if b.Category == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, b.Category)
	}
	return out
}
