package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/runnerr0/backtrail/internal/webkittime"
)

// HistoryStore owns the history database: URL aggregates, visits, and
// download rows. It is safe for concurrent callers; SQLite's transaction
// isolation plus the single-connection pool in Open keep multi-statement
// writes from interleaving.
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore wraps an already-opened and migrated history database.
// The *sql.DB remains owned by the caller.
func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// DB exposes the underlying handle for maintenance operations (vacuum,
// stats). Stores keep exclusive ownership of their tables; collaborators
// must not write through this.
func (s *HistoryStore) DB() *sql.DB { return s.db }

// normalizeURL truncates a URL to MaxURLLength. Truncation rather than
// rejection keeps an over-long URL aggregating onto a single row.
func normalizeURL(raw string) string {
	if len(raw) > MaxURLLength {
		return raw[:MaxURLLength]
	}
	return raw
}

// RecordVisit records one visit as a single atomic transaction: the urls
// aggregate is created or updated and a visits row is inserted, or neither
// happens. A visit must never exist without its aggregate update. Returns
// the new visit's id.
func (s *HistoryStore) RecordVisit(ctx context.Context, rawURL string, opts VisitOptions) (int64, error) {
	u := normalizeURL(rawURL)

	visitTime := opts.VisitTime
	if visitTime.IsZero() {
		visitTime = time.Now()
	}
	ts := webkittime.FromTime(visitTime)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var urlID int64
	var title string
	err = tx.QueryRowContext(ctx, "SELECT id, title FROM urls WHERE url = ?", u).Scan(&urlID, &title)
	switch {
	case err == sql.ErrNoRows:
		res, insErr := tx.ExecContext(ctx, `
			INSERT INTO urls (url, title, visit_count, typed_count, last_visit_time, hidden)
			VALUES (?, ?, 1, ?, ?, ?)`,
			u, opts.Title, boolToInt(opts.Transition == TransitionTyped), ts, boolToInt(opts.Hidden),
		)
		if insErr != nil {
			return 0, fmt.Errorf("insert url: %w", insErr)
		}
		urlID, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("url insert id: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("lookup url: %w", err)
	default:
		// Keep the old title when the new one is empty.
		newTitle := opts.Title
		if newTitle == "" {
			newTitle = title
		}
		typedInc := 0
		if opts.Transition == TransitionTyped {
			typedInc = 1
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE urls
			SET visit_count = visit_count + 1,
			    typed_count = typed_count + ?,
			    last_visit_time = ?,
			    title = ?
			WHERE id = ?`,
			typedInc, ts, newTitle, urlID,
		); err != nil {
			return 0, fmt.Errorf("update url: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO visits (url_id, visit_time, from_visit, transition, visit_duration, is_known_to_sync)
		VALUES (?, ?, ?, ?, ?, 0)`,
		urlID, ts, opts.ReferrerVisitID, opts.Transition, opts.DurationMicros,
	)
	if err != nil {
		return 0, fmt.Errorf("insert visit: %w", err)
	}
	visitID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("visit insert id: %w", err)
	}

	if !opts.IsLocal {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO visit_source (id, source) VALUES (?, 0)", visitID,
		); err != nil {
			return 0, fmt.Errorf("insert visit source: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit visit: %w", err)
	}
	return visitID, nil
}

// QueryHistory returns visits joined with their URL rows, newest first.
// The text filter matches title or URL case-insensitively; date bounds are
// inclusive; negative limit/offset values are ignored rather than rejected.
func (s *HistoryStore) QueryHistory(ctx context.Context, f HistoryFilter) ([]VisitView, error) {
	var clauses []string
	var args []interface{}

	if f.Text != "" {
		pat := "%" + strings.ToLower(f.Text) + "%"
		clauses = append(clauses, "(LOWER(u.title) LIKE ? OR LOWER(u.url) LIKE ?)")
		args = append(args, pat, pat)
	}
	if !f.StartDate.IsZero() {
		clauses = append(clauses, "v.visit_time >= ?")
		args = append(args, webkittime.FromTime(f.StartDate))
	}
	if !f.EndDate.IsZero() {
		clauses = append(clauses, "v.visit_time <= ?")
		args = append(args, webkittime.FromTime(f.EndDate))
	}

	query := `
		SELECT v.id, v.url_id, u.url, u.title, v.visit_time, v.transition
		FROM visits v
		JOIN urls u ON u.id = v.url_id
	`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY v.visit_time DESC"

	// Negative limit/offset values are invalid input; ignore them rather
	// than erroring, favoring best-effort results.
	limit, offset := f.Limit, f.Offset
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	if limit > 0 || offset > 0 {
		if limit == 0 {
			limit = -1 // SQLite: LIMIT -1 means unbounded
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	views := []VisitView{}
	for rows.Next() {
		var v VisitView
		var ts int64
		if err := rows.Scan(&v.VisitID, &v.URLID, &v.URL, &v.Title, &ts, &v.Transition); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		v.VisitTime = webkittime.ToTime(ts)
		views = append(views, v)
	}
	return views, rows.Err()
}

// GetTopSites returns non-hidden URLs ordered by visit count descending.
func (s *HistoryStore) GetTopSites(ctx context.Context, limit int) ([]URLRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, title, visit_count, typed_count, last_visit_time, hidden
		FROM urls
		WHERE hidden = 0
		ORDER BY visit_count DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top sites: %w", err)
	}
	defer rows.Close()
	return scanURLRecords(rows)
}

// GetVisitsForURL returns all visits referencing a url row, oldest first.
func (s *HistoryStore) GetVisitsForURL(ctx context.Context, urlID int64) ([]VisitRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url_id, visit_time, from_visit, transition, visit_duration, is_known_to_sync
		FROM visits WHERE url_id = ? ORDER BY visit_time ASC`, urlID)
	if err != nil {
		return nil, fmt.Errorf("query visits: %w", err)
	}
	defer rows.Close()

	var visits []VisitRecord
	for rows.Next() {
		var v VisitRecord
		if err := rows.Scan(&v.ID, &v.URLID, &v.VisitTime, &v.FromVisit, &v.Transition, &v.DurationMicros, &v.IsKnownToSync); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// GetLastVisitTimeForOrigin returns the most recent visit time among URLs
// starting with the given prefix, or a zero time when none match.
func (s *HistoryStore) GetLastVisitTimeForOrigin(ctx context.Context, prefix string) (time.Time, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(last_visit_time) FROM urls WHERE url LIKE ? ESCAPE '\\'",
		escapeLike(prefix)+"%",
	).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("query origin: %w", err)
	}
	if !ts.Valid || ts.Int64 == 0 {
		return time.Time{}, nil
	}
	return webkittime.ToTime(ts.Int64), nil
}

// DeleteURL removes a url row and everything referencing it: visits, their
// sync-source markers, search terms, and segments. Atomic.
func (s *HistoryStore) DeleteURL(ctx context.Context, urlID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmts := []string{
		"DELETE FROM visit_source WHERE id IN (SELECT id FROM visits WHERE url_id = ?)",
		"DELETE FROM visits WHERE url_id = ?",
		"DELETE FROM keyword_search_terms WHERE url_id = ?",
		"DELETE FROM segments WHERE url_id = ?",
		"DELETE FROM urls WHERE id = ?",
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, urlID); err != nil {
			return fmt.Errorf("delete url: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteHistoryRange deletes visits whose time falls inside the inclusive
// bounds. URL aggregates (visit_count, last_visit_time) are intentionally
// not recomputed; partial deletion leaves them stale. Returns the number of
// visits removed.
func (s *HistoryStore) DeleteHistoryRange(ctx context.Context, start, end time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	lo := webkittime.FromTime(start)
	hi := webkittime.FromTime(end)

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM visit_source WHERE id IN (
			SELECT id FROM visits WHERE visit_time >= ? AND visit_time <= ?
		)`, lo, hi,
	); err != nil {
		return 0, fmt.Errorf("delete visit sources: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"DELETE FROM visits WHERE visit_time >= ? AND visit_time <= ?", lo, hi,
	)
	if err != nil {
		return 0, fmt.Errorf("delete visits: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return n, tx.Commit()
}

// DeleteAllHistory clears every visit-related table. Download rows are left
// alone; clearing those is a separate category.
func (s *HistoryStore) DeleteAllHistory(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{
		"DELETE FROM visit_source",
		"DELETE FROM visits",
		"DELETE FROM keyword_search_terms",
		"DELETE FROM segments",
		"DELETE FROM urls",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
	}

	return tx.Commit()
}

// URLsWithoutVisits returns the URLs whose last visit row is gone, e.g.
// after a ranged delete. Their favicon mappings are no longer reachable
// through history.
func (s *HistoryStore) URLsWithoutVisits(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url FROM urls
		WHERE id NOT IN (SELECT DISTINCT url_id FROM visits)`)
	if err != nil {
		return nil, fmt.Errorf("query visitless urls: %w", err)
	}
	defer rows.Close()

	urls := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// Stats returns aggregate counts for the status surface.
func (s *HistoryStore) Stats(ctx context.Context) (*HistoryStats, error) {
	st := &HistoryStats{}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM urls").Scan(&st.URLCount); err != nil {
		return nil, fmt.Errorf("count urls: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM visits").Scan(&st.VisitCount); err != nil {
		return nil, fmt.Errorf("count visits: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM downloads").Scan(&st.DownloadCount); err != nil {
		return nil, fmt.Errorf("count downloads: %w", err)
	}

	if st.VisitCount > 0 {
		var lo, hi int64
		if err := s.db.QueryRowContext(ctx, "SELECT MIN(visit_time), MAX(visit_time) FROM visits").Scan(&lo, &hi); err != nil {
			return nil, fmt.Errorf("visit time range: %w", err)
		}
		st.OldestVisit = webkittime.ToTime(lo)
		st.NewestVisit = webkittime.ToTime(hi)
	}

	origins, err := s.topOrigins(ctx, 5)
	if err != nil {
		return nil, err
	}
	st.TopOrigins = origins

	return st, nil
}

// topOrigins groups accumulated visit counts by URL origin. The grouping
// happens in Go: SQLite has no URL functions, and the urls table is small
// enough to walk.
func (s *HistoryStore) topOrigins(ctx context.Context, limit int) ([]OriginCount, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT url, visit_count FROM urls")
	if err != nil {
		return nil, fmt.Errorf("query origins: %w", err)
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var u string
		var n int64
		if err := rows.Scan(&u, &n); err != nil {
			return nil, fmt.Errorf("scan origin: %w", err)
		}
		counts[originOf(u)] += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	origins := make([]OriginCount, 0, len(counts))
	for origin, visits := range counts {
		origins = append(origins, OriginCount{Origin: origin, Visits: visits})
	}
	sort.Slice(origins, func(i, j int) bool {
		if origins[i].Visits != origins[j].Visits {
			return origins[i].Visits > origins[j].Visits
		}
		return origins[i].Origin < origins[j].Origin
	})
	if len(origins) > limit {
		origins = origins[:limit]
	}
	return origins, nil
}

// originOf reduces a URL to scheme://host[:port].
func originOf(rawURL string) string {
	rest := rawURL
	scheme := ""
	if i := strings.Index(rest, "://"); i >= 0 {
		scheme = rest[:i+3]
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return scheme + rest
}

// Vacuum compacts the history database file.
func (s *HistoryStore) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum history: %w", err)
	}
	return nil
}

func scanURLRecords(rows *sql.Rows) ([]URLRecord, error) {
	var recs []URLRecord
	for rows.Next() {
		var r URLRecord
		if err := rows.Scan(&r.ID, &r.URL, &r.Title, &r.VisitCount, &r.TypedCount, &r.LastVisitTime, &r.Hidden); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// escapeLike escapes LIKE metacharacters so a prefix match stays literal.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
