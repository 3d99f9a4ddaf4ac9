package storage

import "database/sql"

// migrateHistoryV001 creates the history schema: URL aggregates, visits,
// sync-source markers, search terms, segments, and download rows. Column
// names and integer codes follow the Chrome history format so existing
// tooling can read the file. Every statement uses IF NOT EXISTS for
// idempotency.
func migrateHistoryV001(tx *sql.Tx) error {
	stmts := []string{
		// ── Tables ──────────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS urls (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			url             TEXT NOT NULL UNIQUE,
			title           TEXT NOT NULL DEFAULT '',
			visit_count     INTEGER NOT NULL DEFAULT 0,
			typed_count     INTEGER NOT NULL DEFAULT 0,
			last_visit_time INTEGER NOT NULL DEFAULT 0,
			hidden          INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS visits (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			url_id           INTEGER NOT NULL REFERENCES urls(id),
			visit_time       INTEGER NOT NULL,
			from_visit       INTEGER NOT NULL DEFAULT 0,
			transition       INTEGER NOT NULL DEFAULT 0,
			visit_duration   INTEGER NOT NULL DEFAULT 0,
			is_known_to_sync INTEGER NOT NULL DEFAULT 0
		)`,

		// A row here marks a visit that did not originate locally. Absence
		// of a row means locally browsed.
		`CREATE TABLE IF NOT EXISTS visit_source (
			id     INTEGER PRIMARY KEY,
			source INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS keyword_search_terms (
			keyword_id INTEGER NOT NULL,
			url_id     INTEGER NOT NULL,
			term       TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS segments (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			name   TEXT NOT NULL DEFAULT '',
			url_id INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS downloads (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			guid               TEXT NOT NULL UNIQUE,
			current_path       TEXT NOT NULL DEFAULT '',
			target_path        TEXT NOT NULL DEFAULT '',
			start_time         INTEGER NOT NULL DEFAULT 0,
			received_bytes     INTEGER NOT NULL DEFAULT 0,
			total_bytes        INTEGER NOT NULL DEFAULT 0,
			state              INTEGER NOT NULL DEFAULT 0,
			danger_type        INTEGER NOT NULL DEFAULT 0,
			interrupt_reason   INTEGER NOT NULL DEFAULT 0,
			end_time           INTEGER NOT NULL DEFAULT 0,
			opened             INTEGER NOT NULL DEFAULT 0,
			transient          INTEGER NOT NULL DEFAULT 0,
			referrer           TEXT NOT NULL DEFAULT '',
			site_url           TEXT NOT NULL DEFAULT '',
			tab_url            TEXT NOT NULL DEFAULT '',
			tab_referrer_url   TEXT NOT NULL DEFAULT '',
			mime_type          TEXT NOT NULL DEFAULT '',
			original_mime_type TEXT NOT NULL DEFAULT '',
			etag               TEXT NOT NULL DEFAULT '',
			last_modified      TEXT NOT NULL DEFAULT ''
		)`,

		// ── Indexes ────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_visits_url_id      ON visits(url_id)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_visit_time  ON visits(visit_time)`,
		`CREATE INDEX IF NOT EXISTS idx_urls_visit_count   ON urls(visit_count)`,
		`CREATE INDEX IF NOT EXISTS idx_downloads_target   ON downloads(target_path)`,
		`CREATE INDEX IF NOT EXISTS idx_downloads_start    ON downloads(start_time)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
