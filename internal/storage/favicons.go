package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/runnerr0/backtrail/internal/imagemeta"
	"github.com/runnerr0/backtrail/internal/webkittime"
)

// Fetcher retrieves raw bytes for a URL. The favicon store uses it to pull
// icon images; the network client lives in a collaborator so the store never
// owns transport policy.
type Fetcher func(ctx context.Context, url string) ([]byte, error)

// FaviconStore owns the favicon database: icons, their bitmaps, and the
// page-to-icon mapping.
type FaviconStore struct {
	db     *sql.DB
	fetch  Fetcher
	logger *slog.Logger
}

// NewFaviconStore wraps an already-opened and migrated favicon database.
// fetch may be nil, in which case newly seen icons are stored without a
// bitmap until one is supplied another way.
func NewFaviconStore(db *sql.DB, fetch Fetcher, logger *slog.Logger) *FaviconStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FaviconStore{db: db, fetch: fetch, logger: logger}
}

// DB exposes the underlying handle for maintenance operations.
func (s *FaviconStore) DB() *sql.DB { return s.db }

// StoreFavicon maps pageURL to the icon at faviconURL, creating the icon
// row if this is the first time the icon URL is seen. For a new icon the
// image is fetched and sniffed *before* the write transaction opens, so
// network latency never extends the database's critical section. A failed
// fetch is logged and swallowed: a missing favicon is not a correctness
// failure, and the mapping is still recorded. Icon, bitmap, and mapping
// rows commit in one transaction so no icon is ever observable without its
// mapping.
func (s *FaviconStore) StoreFavicon(ctx context.Context, pageURL, faviconURL string, iconType IconType) error {
	if iconType == 0 {
		iconType = IconTypeFavicon
	}

	var iconID int64
	var data []byte
	isNew := false
	err := s.db.QueryRowContext(ctx, "SELECT id FROM favicons WHERE url = ?", faviconURL).Scan(&iconID)
	switch {
	case err == sql.ErrNoRows:
		isNew = true
		if s.fetch != nil {
			data, err = s.fetch(ctx, faviconURL)
			if err != nil {
				s.logger.Warn("favicon fetch failed", "url", faviconURL, "error", err)
				data = nil
			}
		}
	case err != nil:
		return fmt.Errorf("lookup favicon: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if isNew {
		iconID, err = insertIcon(ctx, tx, faviconURL, iconType, data)
		if err != nil {
			return err
		}
	}
	if err := mapPage(ctx, tx, pageURL, iconID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit favicon: %w", err)
	}
	return nil
}

// StoreFavicons stores only the first URL of a candidate list. Callers are
// expected to pre-rank candidates by preferred size.
func (s *FaviconStore) StoreFavicons(ctx context.Context, pageURL string, faviconURLs []string, iconType IconType) error {
	if len(faviconURLs) == 0 {
		return nil
	}
	return s.StoreFavicon(ctx, pageURL, faviconURLs[0], iconType)
}

// insertIcon writes a favicons row plus, when image data is present, one
// bitmap row, inside the caller's transaction.
func insertIcon(ctx context.Context, tx *sql.Tx, faviconURL string, iconType IconType, data []byte) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO favicons (url, icon_type) VALUES (?, ?)", faviconURL, int(iconType),
	)
	if err != nil {
		return 0, fmt.Errorf("insert favicon: %w", err)
	}
	iconID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("favicon insert id: %w", err)
	}

	if len(data) > 0 {
		w, h := imagemeta.SniffDimensions(data)
		now := webkittime.FromTime(time.Now())
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO favicon_bitmaps (icon_id, last_updated, image_data, width, height, last_requested)
			VALUES (?, ?, ?, ?, ?, 0)`,
			iconID, now, data, w, h,
		); err != nil {
			return 0, fmt.Errorf("insert bitmap: %w", err)
		}
	}

	return iconID, nil
}

// mapPage upserts the page_url -> icon_id mapping inside the caller's
// transaction.
func mapPage(ctx context.Context, tx *sql.Tx, pageURL string, iconID int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO icon_mapping (page_url, icon_id, page_url_type)
		VALUES (?, ?, ?)
		ON CONFLICT(page_url) DO UPDATE SET icon_id = excluded.icon_id`,
		pageURL, iconID, int(PageURLNormal),
	)
	if err != nil {
		return fmt.Errorf("upsert icon mapping: %w", err)
	}
	return nil
}

// GetFaviconsForURLs resolves page URLs to their favicon URLs in one query.
// Pages with no mapping (or a mapping with no icon yet) are absent from the
// result.
func (s *FaviconStore) GetFaviconsForURLs(ctx context.Context, pageURLs []string) (map[string]string, error) {
	result := map[string]string{}
	if len(pageURLs) == 0 {
		return result, nil
	}

	query := `
		SELECT m.page_url, f.url
		FROM icon_mapping m
		JOIN favicons f ON f.id = m.icon_id
		WHERE m.page_url IN (` + placeholders(len(pageURLs)) + `)`

	rows, err := s.db.QueryContext(ctx, query, stringArgs(pageURLs)...)
	if err != nil {
		return nil, fmt.Errorf("query icon mappings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var page, icon string
		if err := rows.Scan(&page, &icon); err != nil {
			return nil, fmt.Errorf("scan icon mapping: %w", err)
		}
		result[page] = icon
	}
	return result, rows.Err()
}

// GetFaviconBitmaps returns one bitmap per favicon URL in a single batch.
// With preferredSize 0 the smallest stored bitmap wins (cheapest to ship to
// a list view); otherwise the bitmap closest to the preferred width wins.
// Every bitmap read bumps last_requested as a recency signal.
func (s *FaviconStore) GetFaviconBitmaps(ctx context.Context, faviconURLs []string, preferredSize int) (map[string]BitmapView, error) {
	result := map[string]BitmapView{}
	if len(faviconURLs) == 0 {
		return result, nil
	}

	// Placeholder order is IN-list first, ORDER BY last; args must match.
	order := "b.width ASC"
	args := stringArgs(faviconURLs)
	if preferredSize > 0 {
		order = "ABS(b.width - ?) ASC"
		args = append(args, preferredSize)
	}

	query := `
		SELECT f.url, b.id, b.image_data, b.width, b.height
		FROM favicons f
		JOIN favicon_bitmaps b ON b.icon_id = f.id
		WHERE f.url IN (` + placeholders(len(faviconURLs)) + `)
		ORDER BY ` + order

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bitmaps: %w", err)
	}
	defer rows.Close()

	var readIDs []int64
	for rows.Next() {
		var url string
		var id int64
		var v BitmapView
		if err := rows.Scan(&url, &id, &v.ImageData, &v.Width, &v.Height); err != nil {
			return nil, fmt.Errorf("scan bitmap: %w", err)
		}
		if _, seen := result[url]; seen {
			continue // first row per icon is the preferred one
		}
		result[url] = v
		readIDs = append(readIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(readIDs) > 0 {
		now := webkittime.FromTime(time.Now())
		upd := "UPDATE favicon_bitmaps SET last_requested = ? WHERE id IN (" + placeholders(len(readIDs)) + ")"
		updArgs := []interface{}{now}
		for _, id := range readIDs {
			updArgs = append(updArgs, id)
		}
		if _, err := s.db.ExecContext(ctx, upd, updArgs...); err != nil {
			// Recency tracking is advisory; a failed bump never fails a read.
			s.logger.Warn("last_requested update failed", "error", err)
		}
	}

	return result, nil
}

// CleanupOrphanedFavicons deletes icons (and their bitmaps, via cascade)
// that no icon_mapping row references. Returns the number of icons removed.
func (s *FaviconStore) CleanupOrphanedFavicons(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM favicons
		WHERE id NOT IN (
			SELECT icon_id FROM icon_mapping WHERE icon_id IS NOT NULL
		)`)
	if err != nil {
		return 0, fmt.Errorf("cleanup favicons: %w", err)
	}
	return res.RowsAffected()
}

// DeleteFaviconForPage removes only the page's mapping. The icon itself may
// be shared by other pages and is left for orphan cleanup.
func (s *FaviconStore) DeleteFaviconForPage(ctx context.Context, pageURL string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM icon_mapping WHERE page_url = ?", pageURL,
	); err != nil {
		return fmt.Errorf("delete icon mapping: %w", err)
	}
	return nil
}

// DeleteMappingsForPages removes the mappings for a batch of page URLs.
// Icons the pages pointed at stay behind for orphan cleanup.
func (s *FaviconStore) DeleteMappingsForPages(ctx context.Context, pageURLs []string) error {
	if len(pageURLs) == 0 {
		return nil
	}
	query := "DELETE FROM icon_mapping WHERE page_url IN (" + placeholders(len(pageURLs)) + ")"
	if _, err := s.db.ExecContext(ctx, query, stringArgs(pageURLs)...); err != nil {
		return fmt.Errorf("delete icon mappings: %w", err)
	}
	return nil
}

// DeleteAllMappings removes every page-to-icon mapping, leaving the icons
// for orphan cleanup.
func (s *FaviconStore) DeleteAllMappings(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM icon_mapping"); err != nil {
		return fmt.Errorf("delete icon mappings: %w", err)
	}
	return nil
}

// DeleteAll clears every favicon table.
func (s *FaviconStore) DeleteAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{
		"DELETE FROM icon_mapping",
		"DELETE FROM favicon_bitmaps",
		"DELETE FROM favicons",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear favicons: %w", err)
		}
	}

	return tx.Commit()
}

// IconCount returns the number of stored icons, for the status surface.
func (s *FaviconStore) IconCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM favicons").Scan(&n); err != nil {
		return 0, fmt.Errorf("count favicons: %w", err)
	}
	return n, nil
}

// Vacuum compacts the favicon database file.
func (s *FaviconStore) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum favicons: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ss []string) []interface{} {
	args := make([]interface{}, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}
