package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Library: LibraryConfig{
			Path:     "~/.config/margin",
			Catalog:  "library.yaml",
			BooksDir: "books",
		},
		Search: SearchConfig{
			MaxHitsPerChapter: 5,
			ExcerptRadius:     40,
			HistoryLimit:      10,
		},
		Display: DisplayConfig{
			Theme:         "dark",
			FontSize:      16,
			LineHeight:    1.9,
			LetterSpacing: 0,
			PageRunes:     1800,
		},
		Storage: StorageConfig{
			Path:              "~/.config/margin",
			SQLiteFile:        "margin.db",
			SQLiteJournalMode: "wal",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
