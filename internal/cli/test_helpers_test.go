package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/runnerr0/backtrail/internal/config"
	"github.com/runnerr0/backtrail/internal/storage"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// openTestStores opens a stores bundle backed by temp-dir databases.
func openTestStores(t *testing.T) *stores {
	t.Helper()
	dir := t.TempDir()

	historyPath := filepath.Join(dir, "history.db")
	historyDB, err := storage.Open(historyPath)
	require.NoError(t, err)
	require.NoError(t, storage.HistoryMigrations(historyDB).Run())

	faviconPath := filepath.Join(dir, "favicons.db")
	faviconDB, err := storage.Open(faviconPath)
	require.NoError(t, err)
	require.NoError(t, storage.FaviconMigrations(faviconDB).Run())

	st := &stores{
		History:     storage.NewHistoryStore(historyDB),
		Favicons:    storage.NewFaviconStore(faviconDB, nil, nil),
		Config:      config.DefaultConfig(),
		historyPath: historyPath,
		faviconPath: faviconPath,
		closers:     []func() error{historyDB.Close, faviconDB.Close},
	}
	t.Cleanup(st.Close)
	return st
}
