package storage

import "database/sql"

// migrateV001 creates the initial margin schema. Every statement uses
// IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		// ── Tables ──────────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS search_history (
			book_key   TEXT NOT NULL,
			position   INTEGER NOT NULL,
			query      TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (book_key, position)
		)`,

		`CREATE TABLE IF NOT EXISTS reading_progress (
			book_key   TEXT PRIMARY KEY,
			location   TEXT NOT NULL,
			href       TEXT NOT NULL DEFAULT '',
			page       INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// ── Indexes ────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_search_history_query ON search_history(book_key, query)`,
		`CREATE INDEX IF NOT EXISTS idx_reading_progress_ts  ON reading_progress(updated_at)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
