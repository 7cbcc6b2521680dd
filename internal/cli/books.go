package cli

import (
	"fmt"

	"github.com/runnerr0/margin/internal/catalog"
)

type booksJSON struct {
	Count    int            `json:"count"`
	Category string         `json:"category,omitempty"`
	Search   string         `json:"search,omitempty"`
	Books    []catalog.Book `json:"books"`
}

type categoriesJSON struct {
	Categories []string `json:"categories"`
}

// Execute implements the go-flags Commander interface for BooksCommand.
func (c *BooksCommand) Execute(args []string) error {
	rt, err := openRuntime(c.globals, false)
	if err != nil {
		return err
	}
	defer rt.close()

	return c.executeWith(rt)
}

// executeWith lists the catalog of a provided runtime (for testing).
func (c *BooksCommand) executeWith(rt *runtime) error {
	cat, err := rt.loadCatalog()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	if c.Categories {
		return c.printCategories(cat.Categories())
	}

	books := cat.ByCategory(c.Category)
	if c.Search != "" {
		books = intersect(books, cat.Search(c.Search))
	}

	if c.globals.json() {
		return writeJSON(booksJSON{
			Count:    len(books),
			Category: c.Category,
			Search:   c.Search,
			Books:    books,
		})
	}
	return c.printHuman(books)
}

func (c *BooksCommand) printCategories(categories []string) error {
	if c.globals.json() {
		return writeJSON(categoriesJSON{Categories: categories})
	}
	for _, name := range categories {
		fmt.Println(name)
	}
	return nil
}

func (c *BooksCommand) printHuman(books []catalog.Book) error {
	if len(books) == 0 {
		fmt.Println("No books found")
		return nil
	}

	fmt.Printf("Found %d %s\n\n", len(books), plural(len(books), "book"))

	for i, b := range books {
		fmt.Printf("%d. %s", i+1, b.Title)
		if b.Author != "" {
			fmt.Printf(" by %s", b.Author)
		}
		fmt.Println()

		meta := "id: " + b.ID
		if b.Category != "" {
			meta += " · " + b.Category
		}
		fmt.Printf("   %s\n", meta)

		if i < len(books)-1 {
			fmt.Println()
		}
	}
	return nil
}

// intersect keeps the books of a that also appear in b, in the order of a.
func intersect(a, b []catalog.Book) []catalog.Book {
	keep := make(map[string]bool, len(b))
	for _, book := range b {
		keep[book.ID] = true
	}

	out := make([]catalog.Book, 0, len(a))
	for _, book := range a {
		if keep[book.ID] {
			out = append(out, book)
		}
	}
	return out
}
