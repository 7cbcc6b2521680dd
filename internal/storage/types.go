package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a keyed row does not exist.
var ErrNotFound = errors.New("not found")

// Progress is the last known reading position in a book.
type Progress struct {
	BookKey   string
	Location  string // renderer location token
	Href      string
	Page      int
	UpdatedAt time.Time
}

// Stats holds aggregate statistics about the margin database.
type Stats struct {
	TotalQueries      int64
	TotalBooks        int64
	TotalSettings     int64
	LastRead          time.Time
	DatabaseSizeBytes int64
	TopBooks          []BookCount
}

// BookCount pairs a history key with the number of remembered queries.
type BookCount struct {
	BookKey string
	Count   int64
}

// HistoryKey is the storage key of a book's search history.
func HistoryKey(title string) string {
	return "epub-search-history-" + title
}

// ProgressKey is the storage key of a book's reading position.
func ProgressKey(title string) string {
	return "epub-location-" + title
}

// Setting keys for reader preferences.
const (
	SettingTheme    = "reader-theme"
	SettingFontSize = "reader-font-size"
)
