package storage

import "database/sql"

// migrateFaviconsV001 creates the favicon schema: icons keyed by favicon
// URL, their stored bitmaps, and the page-to-icon mapping.
func migrateFaviconsV001(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS favicons (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			url       TEXT NOT NULL UNIQUE,
			icon_type INTEGER NOT NULL DEFAULT 1
		)`,

		`CREATE TABLE IF NOT EXISTS favicon_bitmaps (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			icon_id        INTEGER NOT NULL REFERENCES favicons(id) ON DELETE CASCADE,
			last_updated   INTEGER NOT NULL DEFAULT 0,
			image_data     BLOB,
			width          INTEGER NOT NULL DEFAULT 0,
			height         INTEGER NOT NULL DEFAULT 0,
			last_requested INTEGER NOT NULL DEFAULT 0
		)`,

		// icon_id is nullable: a mapping may exist before its icon has been
		// fetched.
		`CREATE TABLE IF NOT EXISTS icon_mapping (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			page_url      TEXT NOT NULL UNIQUE,
			icon_id       INTEGER,
			page_url_type INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE INDEX IF NOT EXISTS idx_favicon_bitmaps_icon ON favicon_bitmaps(icon_id)`,
		`CREATE INDEX IF NOT EXISTS idx_icon_mapping_icon    ON icon_mapping(icon_id)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
