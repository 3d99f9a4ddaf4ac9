package storage

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/backtrail/internal/webkittime"
)

// openTestHistory creates a migrated in-memory HistoryStore for testing.
func openTestHistory(t *testing.T) *HistoryStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, HistoryMigrations(db).Run())
	return NewHistoryStore(db)
}

func TestRecordVisit_CreatesURLAndVisit(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()

	visitID, err := store.RecordVisit(ctx, "https://example.com/", VisitOptions{
		Title:      "Example",
		Transition: TransitionTyped,
		IsLocal:    true,
	})
	require.NoError(t, err)
	assert.Greater(t, visitID, int64(0))

	tops, err := store.GetTopSites(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tops, 1)
	assert.Equal(t, "https://example.com/", tops[0].URL)
	assert.Equal(t, "Example", tops[0].Title)
	assert.Equal(t, 1, tops[0].VisitCount)
	assert.Equal(t, 1, tops[0].TypedCount)
	assert.Greater(t, tops[0].LastVisitTime, int64(0))
}

func TestRecordVisit_UpsertInvariant(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()

	const n = 5
	for i := 0; i < n; i++ {
		_, err := store.RecordVisit(ctx, "https://example.com/", VisitOptions{
			Transition: TransitionLink,
			IsLocal:    true,
		})
		require.NoError(t, err)
	}

	tops, err := store.GetTopSites(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tops, 1)
	assert.Equal(t, n, tops[0].VisitCount)
	assert.Equal(t, 0, tops[0].TypedCount, "link transitions never bump typed_count")

	visits, err := store.GetVisitsForURL(ctx, tops[0].ID)
	require.NoError(t, err)
	assert.Len(t, visits, n, "exactly one visit row per RecordVisit call")
}

func TestRecordVisit_KeepsOldTitleWhenNewEmpty(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()

	_, err := store.RecordVisit(ctx, "https://example.com/", VisitOptions{Title: "First", IsLocal: true})
	require.NoError(t, err)
	_, err = store.RecordVisit(ctx, "https://example.com/", VisitOptions{IsLocal: true})
	require.NoError(t, err)

	tops, err := store.GetTopSites(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "First", tops[0].Title)
}

func TestRecordVisit_TruncatesLongURL(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()

	long := "https://example.com/" + strings.Repeat("a", 3000)
	_, err := store.RecordVisit(ctx, long, VisitOptions{IsLocal: true})
	require.NoError(t, err)

	tops, err := store.GetTopSites(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, tops[0].URL, MaxURLLength)
	assert.Equal(t, long[:MaxURLLength], tops[0].URL)

	// Recording the same over-long URL again must land on the same row.
	_, err = store.RecordVisit(ctx, long, VisitOptions{IsLocal: true})
	require.NoError(t, err)
	tops, err = store.GetTopSites(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tops, 1)
	assert.Equal(t, 2, tops[0].VisitCount)
}

func TestRecordVisit_NonLocalGetsSourceRow(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()

	visitID, err := store.RecordVisit(ctx, "https://synced.example/", VisitOptions{IsLocal: false})
	require.NoError(t, err)

	var count int
	require.NoError(t, store.DB().QueryRow(
		"SELECT COUNT(*) FROM visit_source WHERE id = ?", visitID,
	).Scan(&count))
	assert.Equal(t, 1, count)

	localID, err := store.RecordVisit(ctx, "https://local.example/", VisitOptions{IsLocal: true})
	require.NoError(t, err)
	require.NoError(t, store.DB().QueryRow(
		"SELECT COUNT(*) FROM visit_source WHERE id = ?", localID,
	).Scan(&count))
	assert.Equal(t, 0, count, "local visits leave no source marker")
}

func TestQueryHistory_TextAndDateFilters(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seed := []struct {
		url   string
		title string
		at    time.Time
	}{
		{"https://go.dev/doc", "Go Documentation", base},
		{"https://example.com/news", "Daily News", base.Add(time.Hour)},
		{"https://example.com/old", "Archive", base.Add(-48 * time.Hour)},
	}
	for _, s := range seed {
		_, err := store.RecordVisit(ctx, s.url, VisitOptions{Title: s.title, VisitTime: s.at, IsLocal: true})
		require.NoError(t, err)
	}

	// Case-insensitive text match against title or URL.
	got, err := store.QueryHistory(ctx, HistoryFilter{Text: "documentation"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://go.dev/doc", got[0].URL)

	got, err = store.QueryHistory(ctx, HistoryFilter{Text: "EXAMPLE.COM"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// Inclusive date bounds.
	got, err = store.QueryHistory(ctx, HistoryFilter{StartDate: base, EndDate: base.Add(time.Hour)})
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Descending by visit time.
	assert.Equal(t, "https://example.com/news", got[0].URL)
	assert.Equal(t, "https://go.dev/doc", got[1].URL)
}

func TestQueryHistory_InvalidLimitOffsetIgnored(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()

	for _, u := range []string{"https://a.example/", "https://b.example/", "https://c.example/"} {
		_, err := store.RecordVisit(ctx, u, VisitOptions{IsLocal: true})
		require.NoError(t, err)
	}

	got, err := store.QueryHistory(ctx, HistoryFilter{Limit: -7, Offset: -3})
	require.NoError(t, err)
	assert.Len(t, got, 3, "negative limit/offset are ignored, not applied")

	got, err = store.QueryHistory(ctx, HistoryFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = store.QueryHistory(ctx, HistoryFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestGetTopSites_SkipsHidden(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()

	_, err := store.RecordVisit(ctx, "https://visible.example/", VisitOptions{IsLocal: true})
	require.NoError(t, err)
	_, err = store.RecordVisit(ctx, "https://hidden.example/", VisitOptions{IsLocal: true, Hidden: true})
	require.NoError(t, err)

	tops, err := store.GetTopSites(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tops, 1)
	assert.Equal(t, "https://visible.example/", tops[0].URL)
}

func TestGetLastVisitTimeForOrigin(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()

	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.RecordVisit(ctx, "https://example.com/a", VisitOptions{VisitTime: early, IsLocal: true})
	require.NoError(t, err)
	_, err = store.RecordVisit(ctx, "https://example.com/b", VisitOptions{VisitTime: late, IsLocal: true})
	require.NoError(t, err)

	got, err := store.GetLastVisitTimeForOrigin(ctx, "https://example.com/")
	require.NoError(t, err)
	assert.True(t, got.Equal(late))

	got, err = store.GetLastVisitTimeForOrigin(ctx, "https://other.example/")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestDeleteURL_Cascades(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()

	_, err := store.RecordVisit(ctx, "https://doomed.example/", VisitOptions{IsLocal: false})
	require.NoError(t, err)
	_, err = store.RecordVisit(ctx, "https://doomed.example/", VisitOptions{IsLocal: true})
	require.NoError(t, err)
	_, err = store.RecordVisit(ctx, "https://kept.example/", VisitOptions{IsLocal: true})
	require.NoError(t, err)

	tops, err := store.GetTopSites(ctx, 10)
	require.NoError(t, err)
	var doomedID int64
	for _, u := range tops {
		if u.URL == "https://doomed.example/" {
			doomedID = u.ID
		}
	}
	require.NotZero(t, doomedID)

	require.NoError(t, store.DeleteURL(ctx, doomedID))

	visits, err := store.GetVisitsForURL(ctx, doomedID)
	require.NoError(t, err)
	assert.Empty(t, visits)

	var n int
	require.NoError(t, store.DB().QueryRow("SELECT COUNT(*) FROM urls").Scan(&n))
	assert.Equal(t, 1, n)
	require.NoError(t, store.DB().QueryRow("SELECT COUNT(*) FROM visit_source").Scan(&n))
	assert.Equal(t, 0, n)
}

func TestDeleteHistoryRange_LeavesAggregatesStale(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := store.RecordVisit(ctx, "https://example.com/", VisitOptions{
			VisitTime: base.Add(time.Duration(i) * time.Hour),
			IsLocal:   true,
		})
		require.NoError(t, err)
	}

	n, err := store.DeleteHistoryRange(ctx, base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	tops, err := store.GetTopSites(ctx, 1)
	require.NoError(t, err)
	// Visit count is NOT recomputed after a range deletion.
	assert.Equal(t, 3, tops[0].VisitCount)

	visits, err := store.GetVisitsForURL(ctx, tops[0].ID)
	require.NoError(t, err)
	assert.Len(t, visits, 1)
}

func TestDuplicateVisitTimesAreLegal(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()

	at := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		_, err := store.RecordVisit(ctx, "https://example.com/", VisitOptions{VisitTime: at, IsLocal: true})
		require.NoError(t, err)
	}

	got, err := store.QueryHistory(ctx, HistoryFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, webkittime.FromTime(at), webkittime.FromTime(got[0].VisitTime))
}

func TestStats_TopOriginsGroupedByHost(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()

	// Two pages on go.dev, one elsewhere: the origin aggregate must merge
	// per-URL counts.
	for _, u := range []string{"https://go.dev/doc/", "https://go.dev/blog/", "https://go.dev/doc/"} {
		_, err := store.RecordVisit(ctx, u, VisitOptions{IsLocal: true})
		require.NoError(t, err)
	}
	_, err := store.RecordVisit(ctx, "https://example.com/page?q=1", VisitOptions{IsLocal: true})
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)

	require.Len(t, stats.TopOrigins, 2)
	assert.Equal(t, OriginCount{Origin: "https://go.dev", Visits: 3}, stats.TopOrigins[0])
	assert.Equal(t, OriginCount{Origin: "https://example.com", Visits: 1}, stats.TopOrigins[1])
}

func TestStats_EmptyStore(t *testing.T) {
	store := openTestHistory(t)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.URLCount)
	assert.Empty(t, stats.TopOrigins)
}
