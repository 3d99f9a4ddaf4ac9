package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// StartDownload inserts a new download row in IN_PROGRESS state and returns
// its row id. The guid must be unique; the tracker allocates one per live
// download and creates the row exactly once.
func (s *HistoryStore) StartDownload(ctx context.Context, rec DownloadRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO downloads (
			guid, current_path, target_path, start_time, received_bytes,
			total_bytes, state, danger_type, interrupt_reason, end_time,
			opened, transient, referrer, site_url, tab_url, tab_referrer_url,
			mime_type, original_mime_type, etag, last_modified
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.GUID, rec.CurrentPath, rec.TargetPath, rec.StartTime, rec.ReceivedBytes,
		rec.TotalBytes, int(DownloadInProgress), rec.DangerType, rec.InterruptReason, rec.EndTime,
		boolToInt(rec.Opened), boolToInt(rec.Transient), rec.Referrer, rec.SiteURL,
		rec.TabURL, rec.TabReferrerURL, rec.MimeType, rec.OriginalMimeType,
		rec.ETag, rec.LastModified,
	)
	if err != nil {
		return 0, fmt.Errorf("insert download: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("download insert id: %w", err)
	}
	return id, nil
}

// UpdateDownload patches an existing download row by guid. Nil fields in the
// patch are left untouched. Unknown guids are a no-op, not an error.
func (s *HistoryStore) UpdateDownload(ctx context.Context, guid string, p DownloadPatch) error {
	var sets []string
	var args []interface{}

	if p.CurrentPath != nil {
		sets = append(sets, "current_path = ?")
		args = append(args, *p.CurrentPath)
	}
	if p.TargetPath != nil {
		sets = append(sets, "target_path = ?")
		args = append(args, *p.TargetPath)
	}
	if p.ReceivedBytes != nil {
		sets = append(sets, "received_bytes = ?")
		args = append(args, *p.ReceivedBytes)
	}
	if p.TotalBytes != nil {
		sets = append(sets, "total_bytes = ?")
		args = append(args, *p.TotalBytes)
	}
	if p.State != nil {
		sets = append(sets, "state = ?")
		args = append(args, int(*p.State))
	}
	if p.EndTime != nil {
		sets = append(sets, "end_time = ?")
		args = append(args, *p.EndTime)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, guid)
	_, err := s.db.ExecContext(ctx,
		"UPDATE downloads SET "+strings.Join(sets, ", ")+" WHERE guid = ?", args...,
	)
	if err != nil {
		return fmt.Errorf("update download: %w", err)
	}
	return nil
}

// QueryDownloads returns download rows, newest first. The text filter
// matches target path case-insensitively.
func (s *HistoryStore) QueryDownloads(ctx context.Context, f DownloadFilter) ([]DownloadRecord, error) {
	var clauses []string
	var args []interface{}

	if f.Text != "" {
		clauses = append(clauses, "LOWER(target_path) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Text)+"%")
	}
	if f.State != nil {
		clauses = append(clauses, "state = ?")
		args = append(args, int(*f.State))
	}

	query := downloadColumns + " FROM downloads"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY start_time DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query downloads: %w", err)
	}
	defer rows.Close()

	recs := []DownloadRecord{}
	for rows.Next() {
		rec, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// GetDownloadByGUID returns a single download row, or (nil, nil) when the
// guid is unknown.
func (s *HistoryStore) GetDownloadByGUID(ctx context.Context, guid string) (*DownloadRecord, error) {
	row := s.db.QueryRowContext(ctx, downloadColumns+" FROM downloads WHERE guid = ?", guid)
	rec, err := scanDownload(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// IsNewestDownloadForPath reports whether the given download is the
// most-recently-started row targeting its path, and returns that path. The
// deletion-with-file-cleanup policy uses this to avoid removing a file a
// newer download owns.
func (s *HistoryStore) IsNewestDownloadForPath(ctx context.Context, guid string) (bool, string, error) {
	rec, err := s.GetDownloadByGUID(ctx, guid)
	if err != nil {
		return false, "", err
	}
	if rec == nil || rec.TargetPath == "" {
		return false, "", nil
	}

	var newestGUID string
	err = s.db.QueryRowContext(ctx, `
		SELECT guid FROM downloads
		WHERE target_path = ?
		ORDER BY start_time DESC, id DESC
		LIMIT 1`, rec.TargetPath,
	).Scan(&newestGUID)
	if err != nil {
		return false, "", fmt.Errorf("query newest for path: %w", err)
	}

	return newestGUID == guid, rec.TargetPath, nil
}

// DeleteDownloadByGUID removes a download row. Returns false when the guid
// was not present.
func (s *HistoryStore) DeleteDownloadByGUID(ctx context.Context, guid string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM downloads WHERE guid = ?", guid)
	if err != nil {
		return false, fmt.Errorf("delete download: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteAllDownloads clears the downloads table.
func (s *HistoryStore) DeleteAllDownloads(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM downloads"); err != nil {
		return fmt.Errorf("clear downloads: %w", err)
	}
	return nil
}

const downloadColumns = `
	SELECT id, guid, current_path, target_path, start_time, received_bytes,
	       total_bytes, state, danger_type, interrupt_reason, end_time,
	       opened, transient, referrer, site_url, tab_url, tab_referrer_url,
	       mime_type, original_mime_type, etag, last_modified`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDownload(sc scanner) (DownloadRecord, error) {
	var rec DownloadRecord
	var state int
	var opened, transient int
	err := sc.Scan(
		&rec.ID, &rec.GUID, &rec.CurrentPath, &rec.TargetPath, &rec.StartTime,
		&rec.ReceivedBytes, &rec.TotalBytes, &state, &rec.DangerType,
		&rec.InterruptReason, &rec.EndTime, &opened, &transient, &rec.Referrer,
		&rec.SiteURL, &rec.TabURL, &rec.TabReferrerURL, &rec.MimeType,
		&rec.OriginalMimeType, &rec.ETag, &rec.LastModified,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return rec, err
		}
		return rec, fmt.Errorf("scan download: %w", err)
	}
	rec.State = DownloadState(state)
	rec.Opened = opened != 0
	rec.Transient = transient != 0
	return rec, nil
}
