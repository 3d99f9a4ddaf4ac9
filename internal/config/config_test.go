package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "history.db", cfg.Storage.HistoryFile)
	assert.Equal(t, "favicons.db", cfg.Storage.FaviconFile)
	assert.Equal(t, 0, cfg.Retention.Days)
	assert.Equal(t, 5, cfg.Downloads.GraceSeconds)
	assert.Equal(t, 100, cfg.Downloads.NotifyIntervalMS)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestDefaultHiddenDomainsIsPopulated(t *testing.T) {
	domains := DefaultHiddenDomains()

	assert.NotEmpty(t, domains)
	assert.Contains(t, domains, "paypal.com")
	assert.Contains(t, domains, "1password.com")
}

func TestLoadValidYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
storage:
  path: /tmp/backtrail-test
  history_file: hist.sqlite
retention:
  days: 90
downloads:
  grace_seconds: 10
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/backtrail-test", cfg.Storage.Path)
	assert.Equal(t, "hist.sqlite", cfg.Storage.HistoryFile)
	// Unset fields keep defaults.
	assert.Equal(t, "favicons.db", cfg.Storage.FaviconFile)
	assert.Equal(t, 90, cfg.Retention.Days)
	assert.Equal(t, 10, cfg.Downloads.GraceSeconds)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAMLFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage: [not: a: map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadOrCreateAtWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg, err := LoadOrCreateAt(path)
	require.NoError(t, err)
	assert.Equal(t, "history.db", cfg.Storage.HistoryFile)

	// File now exists and round-trips.
	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := LoadOrCreateAt(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Storage.Path, again.Storage.Path)
}

func TestHiddenMatcher(t *testing.T) {
	m := NewHiddenMatcher(HiddenConfig{
		Domains: []string{"paypal.com"},
		Regex:   []string{`/checkout/`},
	})

	assert.True(t, m.Match("https://paypal.com/home"))
	assert.True(t, m.Match("https://www.paypal.com/signin"))
	assert.False(t, m.Match("https://notpaypal.com/"))
	assert.True(t, m.Match("https://shop.example.com/checkout/step1"))
	assert.False(t, m.Match("https://shop.example.com/cart"))
}

func TestHiddenMatcherSkipsInvalidRegex(t *testing.T) {
	m := NewHiddenMatcher(HiddenConfig{Regex: []string{"([unclosed"}})
	assert.False(t, m.Match("https://example.com/"))
}
