package clear

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/backtrail/internal/storage"
)

func openStores(t *testing.T) (*storage.HistoryStore, *storage.FaviconStore) {
	t.Helper()

	hdb, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { hdb.Close() })
	require.NoError(t, storage.HistoryMigrations(hdb).Run())

	fdb, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { fdb.Close() })
	require.NoError(t, storage.FaviconMigrations(fdb).Run())

	fetch := func(ctx context.Context, url string) ([]byte, error) {
		return []byte{0x89, 0x50, 0x4E, 0x47}, nil
	}
	return storage.NewHistoryStore(hdb), storage.NewFaviconStore(fdb, fetch, nil)
}

func seed(t *testing.T, history *storage.HistoryStore, favicons *storage.FaviconStore) {
	t.Helper()
	ctx := context.Background()

	for _, u := range []string{"https://a.example/", "https://b.example/"} {
		_, err := history.RecordVisit(ctx, u, storage.VisitOptions{IsLocal: true})
		require.NoError(t, err)
		require.NoError(t, favicons.StoreFavicon(ctx, u, u+"favicon.ico", storage.IconTypeFavicon))
	}

	_, err := history.StartDownload(ctx, storage.DownloadRecord{GUID: "g1", TargetPath: "/tmp/x"})
	require.NoError(t, err)
}

func TestClear_AllHistory(t *testing.T) {
	history, favicons := openStores(t)
	seed(t, history, favicons)
	ctx := context.Background()

	co := NewCoordinator(history, favicons, nil)
	res := co.Clear(ctx, Options{History: true})

	assert.True(t, res.Cleared["history"])
	assert.Empty(t, res.Errors)

	got, err := history.QueryHistory(ctx, storage.HistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)

	// Downloads were not requested and must survive.
	recs, err := history.QueryDownloads(ctx, storage.DownloadFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	// With every page gone, all icons became orphans and were pruned.
	assert.Equal(t, int64(2), res.FaviconsPruned)
	n, err := favicons.IconCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClear_HistoryRange(t *testing.T) {
	history, favicons := openStores(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		_, err := history.RecordVisit(ctx, "https://a.example/", storage.VisitOptions{
			VisitTime: base.Add(time.Duration(i) * time.Hour),
			IsLocal:   true,
		})
		require.NoError(t, err)
	}

	co := NewCoordinator(history, favicons, nil)
	res := co.Clear(ctx, Options{History: true, Since: base, Until: base.Add(time.Hour)})

	assert.True(t, res.Cleared["history"])
	assert.Equal(t, int64(2), res.VisitsDeleted)

	got, err := history.QueryHistory(ctx, storage.HistoryFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestClear_HistoryRangePrunesUnvisitedPageIcons(t *testing.T) {
	history, favicons := openStores(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Page a's only visit falls inside the range; page b keeps a later one.
	_, err := history.RecordVisit(ctx, "https://a.example/", storage.VisitOptions{VisitTime: base, IsLocal: true})
	require.NoError(t, err)
	_, err = history.RecordVisit(ctx, "https://b.example/", storage.VisitOptions{VisitTime: base.Add(48 * time.Hour), IsLocal: true})
	require.NoError(t, err)
	for _, u := range []string{"https://a.example/", "https://b.example/"} {
		require.NoError(t, favicons.StoreFavicon(ctx, u, u+"favicon.ico", storage.IconTypeFavicon))
	}

	co := NewCoordinator(history, favicons, nil)
	res := co.Clear(ctx, Options{History: true, Since: base, Until: base.Add(time.Hour)})

	assert.True(t, res.Cleared["history"])
	assert.Equal(t, int64(1), res.VisitsDeleted)
	assert.Equal(t, int64(1), res.FaviconsPruned)

	// Only the still-visited page's icon survives.
	got, err := favicons.GetFaviconsForURLs(ctx, []string{"https://a.example/", "https://b.example/"})
	require.NoError(t, err)
	assert.NotContains(t, got, "https://a.example/")
	assert.Equal(t, "https://b.example/favicon.ico", got["https://b.example/"])
}

func TestClear_FaviconsExplicit(t *testing.T) {
	history, favicons := openStores(t)
	seed(t, history, favicons)
	ctx := context.Background()

	co := NewCoordinator(history, favicons, nil)
	res := co.Clear(ctx, Options{Favicons: true})

	assert.True(t, res.Cleared["favicons"])
	n, err := favicons.IconCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// History untouched.
	got, err := history.QueryHistory(ctx, storage.HistoryFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestClear_HookFailureDoesNotHideSuccess(t *testing.T) {
	history, favicons := openStores(t)
	seed(t, history, favicons)
	ctx := context.Background()

	co := NewCoordinator(history, favicons, nil)
	co.CacheHook = func(ctx context.Context) error { return errors.New("cache backend offline") }

	res := co.Clear(ctx, Options{History: true, Cache: true, Cookies: true})

	assert.True(t, res.Cleared["history"], "history success is reported despite cache failure")
	assert.False(t, res.Cleared["cache"])
	assert.Contains(t, res.Errors["cache"], "cache backend offline")
	assert.True(t, res.Cleared["cookies"], "nil hook clears trivially")
}

func TestClear_DownloadsOnly(t *testing.T) {
	history, favicons := openStores(t)
	seed(t, history, favicons)
	ctx := context.Background()

	co := NewCoordinator(history, favicons, nil)
	res := co.Clear(ctx, Options{Downloads: true})

	assert.True(t, res.Cleared["downloads"])

	recs, err := history.QueryDownloads(ctx, storage.DownloadFilter{})
	require.NoError(t, err)
	assert.Empty(t, recs)

	got, err := history.QueryHistory(ctx, storage.HistoryFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2, "history survives a downloads-only clear")
}
