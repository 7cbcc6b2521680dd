package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Store defines the interface for margin data operations.
type Store interface {
	SearchHistory(ctx context.Context, key string) ([]string, error)
	ReplaceSearchHistory(ctx context.Context, key string, queries []string) error
	SaveProgress(ctx context.Context, progress *Progress) error
	GetProgress(ctx context.Context, key string) (*Progress, error)
	SetSetting(ctx context.Context, key, value string) error
	GetSetting(ctx context.Context, key string) (string, error)
	PurgeAll(ctx context.Context) error
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	// Prepared statements
	selectHistory  *sql.Stmt
	upsertProgress *sql.Stmt
	selectProgress *sql.Stmt
	upsertSetting  *sql.Stmt
	selectSetting  *sql.Stmt
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.selectHistory, err = s.db.Prepare(`
		SELECT query FROM search_history WHERE book_key = ? ORDER BY position
	`)
	if err != nil {
		return err
	}

	s.upsertProgress, err = s.db.Prepare(`
		INSERT INTO reading_progress (book_key, location, href, page, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(book_key) DO UPDATE SET
			location = excluded.location,
			href = excluded.href,
			page = excluded.page,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}

	s.selectProgress, err = s.db.Prepare(`
		SELECT book_key, location, href, page, updated_at
		FROM reading_progress WHERE book_key = ?
	`)
	if err != nil {
		return err
	}

	s.upsertSetting, err = s.db.Prepare(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}

	s.selectSetting, err = s.db.Prepare(`SELECT value FROM settings WHERE key = ?`)
	if err != nil {
		return err
	}

	return nil
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05.999999999-07:00",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// SearchHistory returns the remembered queries of a book, most recent first.
// A book without history yields an empty slice.
func (s *SQLiteStore) SearchHistory(ctx context.Context, key string) ([]string, error) {
	rows, err := s.selectHistory.QueryContext(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("query search history: %w", err)
	}
	defer rows.Close()

	queries := []string{}
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan search history: %w", err)
		}
		queries = append(queries, q)
	}

	return queries, rows.Err()
}

// ReplaceSearchHistory overwrites the whole history list of a book in a
// single transaction.
func (s *SQLiteStore) ReplaceSearchHistory(ctx context.Context, key string, queries []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM search_history WHERE book_key = ?", key); err != nil {
		return fmt.Errorf("clear search history: %w", err)
	}

	for i, q := range queries {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO search_history (book_key, position, query) VALUES (?, ?, ?)",
			key, i, q,
		)
		if err != nil {
			return fmt.Errorf("insert search history: %w", err)
		}
	}

	return tx.Commit()
}

// SaveProgress upserts the reading position of a book. A zero UpdatedAt is
// set to the current time.
func (s *SQLiteStore) SaveProgress(ctx context.Context, p *Progress) error {
	if p.BookKey == "" {
		return fmt.Errorf("save progress: empty book key")
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}

	tsFormatted := p.UpdatedAt.UTC().Format(time.RFC3339)
	_, err := s.upsertProgress.ExecContext(ctx, p.BookKey, p.Location, p.Href, p.Page, tsFormatted)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}

	return nil
}

// GetProgress retrieves the reading position of a book.
func (s *SQLiteStore) GetProgress(ctx context.Context, key string) (*Progress, error) {
	var p Progress
	var tsStr string

	err := s.selectProgress.QueryRowContext(ctx, key).Scan(&p.BookKey, &p.Location, &p.Href, &p.Page, &tsStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("progress for %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("get progress: %w", err)
	}

	p.UpdatedAt, _ = parseTimestamp(tsStr)

	return &p, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	if _, err := s.upsertSetting.ExecContext(ctx, key, value); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	if err := s.selectSetting.QueryRowContext(ctx, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("setting %s: %w", key, ErrNotFound)
		}
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// PurgeAll deletes all history, progress and settings.
func (s *SQLiteStore) PurgeAll(ctx context.Context) error {
	stmts := []string{
		"DELETE FROM search_history",
		"DELETE FROM reading_progress",
		"DELETE FROM settings",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("purge (%s): %w", stmt, err)
		}
	}
	return nil
}

// GetStats returns aggregate statistics about the database.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM search_history").Scan(&stats.TotalQueries)
	if err != nil {
		return nil, fmt.Errorf("count queries: %w", err)
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reading_progress").Scan(&stats.TotalBooks)
	if err != nil {
		return nil, fmt.Errorf("count books: %w", err)
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM settings").Scan(&stats.TotalSettings)
	if err != nil {
		return nil, fmt.Errorf("count settings: %w", err)
	}

	// Last read (handle empty DB)
	if stats.TotalBooks > 0 {
		var lastStr string
		err = s.db.QueryRowContext(ctx, "SELECT MAX(updated_at) FROM reading_progress").Scan(&lastStr)
		if err != nil {
			return nil, fmt.Errorf("last read: %w", err)
		}
		stats.LastRead, _ = parseTimestamp(lastStr)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT book_key, COUNT(*) as cnt FROM search_history GROUP BY book_key ORDER BY cnt DESC, book_key LIMIT 10",
	)
	if err != nil {
		return nil, fmt.Errorf("top books: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bc BookCount
		if err := rows.Scan(&bc.BookKey, &bc.Count); err != nil {
			return nil, err
		}
		stats.TopBooks = append(stats.TopBooks, bc)
	}

	return stats, rows.Err()
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{
		s.selectHistory, s.upsertProgress, s.selectProgress,
		s.upsertSetting, s.selectSetting,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
