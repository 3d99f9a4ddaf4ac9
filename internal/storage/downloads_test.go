package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/backtrail/internal/webkittime"
)

func seedDownload(t *testing.T, store *HistoryStore, guid, target string, start time.Time) int64 {
	t.Helper()
	id, err := store.StartDownload(context.Background(), DownloadRecord{
		GUID:        guid,
		CurrentPath: target + ".partial",
		TargetPath:  target,
		StartTime:   webkittime.FromTime(start),
		TotalBytes:  1000,
		MimeType:    "application/zip",
	})
	require.NoError(t, err)
	return id
}

func TestStartDownload_AndQuery(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()

	id := seedDownload(t, store, "guid-1", "/tmp/file.zip", time.Now())
	assert.Greater(t, id, int64(0))

	recs, err := store.QueryDownloads(ctx, DownloadFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "guid-1", recs[0].GUID)
	assert.Equal(t, "/tmp/file.zip.partial", recs[0].CurrentPath)
	assert.Equal(t, "/tmp/file.zip", recs[0].TargetPath)
	assert.Equal(t, DownloadInProgress, recs[0].State)
}

func TestUpdateDownload_PatchesOnlyGivenFields(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()

	seedDownload(t, store, "guid-1", "/tmp/file.zip", time.Now())

	received := int64(512)
	state := DownloadComplete
	end := webkittime.FromTime(time.Now())
	require.NoError(t, store.UpdateDownload(ctx, "guid-1", DownloadPatch{
		ReceivedBytes: &received,
		State:         &state,
		EndTime:       &end,
	}))

	rec, err := store.GetDownloadByGUID(ctx, "guid-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(512), rec.ReceivedBytes)
	assert.Equal(t, DownloadComplete, rec.State)
	assert.Equal(t, end, rec.EndTime)
	assert.Equal(t, int64(1000), rec.TotalBytes, "unpatched field untouched")
	assert.Equal(t, "application/zip", rec.MimeType)
}

func TestUpdateDownload_UnknownGUIDIsNoOp(t *testing.T) {
	store := openTestHistory(t)
	state := DownloadCancelled
	require.NoError(t, store.UpdateDownload(context.Background(), "missing", DownloadPatch{State: &state}))
}

func TestIsNewestDownloadForPath(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	seedDownload(t, store, "older", "/tmp/file.zip", base)
	seedDownload(t, store, "newer", "/tmp/file.zip", base.Add(time.Minute))
	seedDownload(t, store, "other", "/tmp/other.zip", base)

	newest, path, err := store.IsNewestDownloadForPath(ctx, "newer")
	require.NoError(t, err)
	assert.True(t, newest)
	assert.Equal(t, "/tmp/file.zip", path)

	newest, path, err = store.IsNewestDownloadForPath(ctx, "older")
	require.NoError(t, err)
	assert.False(t, newest)
	assert.Equal(t, "/tmp/file.zip", path)

	newest, _, err = store.IsNewestDownloadForPath(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, newest)
}

func TestDeleteDownloadByGUID(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()

	seedDownload(t, store, "guid-1", "/tmp/file.zip", time.Now())

	ok, err := store.DeleteDownloadByGUID(ctx, "guid-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.DeleteDownloadByGUID(ctx, "guid-1")
	require.NoError(t, err)
	assert.False(t, ok, "second delete reports not found")
}

func TestQueryDownloads_Filters(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	seedDownload(t, store, "a", "/downloads/report.pdf", base)
	seedDownload(t, store, "b", "/downloads/song.mp3", base.Add(time.Minute))

	state := DownloadComplete
	require.NoError(t, store.UpdateDownload(ctx, "a", DownloadPatch{State: &state}))

	recs, err := store.QueryDownloads(ctx, DownloadFilter{Text: "REPORT"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0].GUID)

	recs, err = store.QueryDownloads(ctx, DownloadFilter{State: &state})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0].GUID)

	recs, err = store.QueryDownloads(ctx, DownloadFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0].GUID, "newest first")
}
