package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/runnerr0/margin/internal/render"
)

// Default config file path.
const DefaultConfigPath = "~/.config/margin/config.yaml"

// EnvPrefix prefixes every environment override, e.g. MARGIN_DISPLAY_THEME.
const EnvPrefix = "MARGIN_"

// Config holds all margin configuration.
type Config struct {
	Library LibraryConfig `yaml:"library" envPrefix:"LIBRARY_"`
	Search  SearchConfig  `yaml:"search" envPrefix:"SEARCH_"`
	Display DisplayConfig `yaml:"display" envPrefix:"DISPLAY_"`
	Storage StorageConfig `yaml:"storage" envPrefix:"STORAGE_"`
	Logging LoggingConfig `yaml:"logging" envPrefix:"LOGGING_"`
}

type LibraryConfig struct {
	Path     string `yaml:"path" env:"PATH,expand"`
	Catalog  string `yaml:"catalog" env:"CATALOG"`
	BooksDir string `yaml:"books_dir" env:"BOOKS_DIR"`
}

type SearchConfig struct {
	MaxHitsPerChapter int `yaml:"max_hits_per_chapter" env:"MAX_HITS_PER_CHAPTER"`
	ExcerptRadius     int `yaml:"excerpt_radius" env:"EXCERPT_RADIUS"`
	HistoryLimit      int `yaml:"history_limit" env:"HISTORY_LIMIT"`
}

type DisplayConfig struct {
	Theme         string  `yaml:"theme" env:"THEME"`
	FontSize      int     `yaml:"font_size" env:"FONT_SIZE"`
	LineHeight    float64 `yaml:"line_height" env:"LINE_HEIGHT"`
	LetterSpacing float64 `yaml:"letter_spacing" env:"LETTER_SPACING"`
	PageRunes     int     `yaml:"page_runes" env:"PAGE_RUNES"`
}

type StorageConfig struct {
	Path              string `yaml:"path" env:"PATH,expand"`
	SQLiteFile        string `yaml:"sqlite_file" env:"SQLITE_FILE"`
	SQLiteJournalMode string `yaml:"sqlite_journal_mode" env:"SQLITE_JOURNAL_MODE"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Style converts the display section into a normalized render style.
func (d DisplayConfig) Style() render.Style {
	theme, _ := render.ParseTheme(d.Theme)
	return render.Style{
		Theme:         theme,
		FontSize:      d.FontSize,
		LineHeight:    d.LineHeight,
		LetterSpacing: d.LetterSpacing,
	}.Normalize()
}

// Validate reports settings that cannot be used as configured.
func (c *Config) Validate() error {
	if c.Search.MaxHitsPerChapter <= 0 {
		return fmt.Errorf("search.max_hits_per_chapter must be positive, got %d", c.Search.MaxHitsPerChapter)
	}
	if c.Search.ExcerptRadius < 0 {
		return fmt.Errorf("search.excerpt_radius must not be negative, got %d", c.Search.ExcerptRadius)
	}
	if c.Search.HistoryLimit <= 0 {
		return fmt.Errorf("search.history_limit must be positive, got %d", c.Search.HistoryLimit)
	}
	if c.Display.PageRunes <= 0 {
		return fmt.Errorf("display.page_runes must be positive, got %d", c.Display.PageRunes)
	}
	if _, ok := render.ParseTheme(c.Display.Theme); !ok {
		return fmt.Errorf("display.theme: unknown theme %q", c.Display.Theme)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}
	return nil
}

// ApplyEnv overrides configuration values from MARGIN_* environment
// variables. Unset variables leave the current values untouched.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	return nil
}

// Load reads a YAML config file at path, merges it with defaults and applies
// environment overrides. Returns an error if the file cannot be read or
// contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
// Environment overrides apply in both cases but are never written back.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}

// CatalogPath is the absolute path of the library catalog file.
func (c *Config) CatalogPath() (string, error) {
	return c.libraryPath(c.Library.Catalog)
}

// BooksPath is the absolute path of the directory holding unpacked books.
func (c *Config) BooksPath() (string, error) {
	return c.libraryPath(c.Library.BooksDir)
}

// DBPath is the absolute path of the SQLite database file.
func (c *Config) DBPath() (string, error) {
	if filepath.IsAbs(c.Storage.SQLiteFile) {
		return c.Storage.SQLiteFile, nil
	}
	dir, err := ExpandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

func (c *Config) libraryPath(name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	dir, err := ExpandPath(c.Library.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
