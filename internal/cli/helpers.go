package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/runnerr0/backtrail/internal/config"
	"github.com/runnerr0/backtrail/internal/iconfetch"
	"github.com/runnerr0/backtrail/internal/storage"
)

// stores bundles everything a subcommand needs from the two databases.
type stores struct {
	History  *storage.HistoryStore
	Favicons *storage.FaviconStore
	Config   *config.Config

	historyPath string
	faviconPath string
	closers     []func() error
}

// Close closes the underlying database connections.
func (s *stores) Close() {
	for _, fn := range s.closers {
		fn() //nolint:errcheck
	}
}

// loadConfig resolves the config, honoring the --config global flag.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	if globals != nil && globals.Config != "" {
		return config.Load(globals.Config)
	}
	return config.LoadOrCreate()
}

// openStores opens both databases, runs migrations, and wires the favicon
// store to an HTTP fetcher.
func openStores(globals *GlobalFlags) (*stores, error) {
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(globals, cfg)

	historyPath, err := cfg.Storage.HistoryPath()
	if err != nil {
		return nil, err
	}
	faviconPath, err := cfg.Storage.FaviconPath()
	if err != nil {
		return nil, err
	}

	historyDB, err := storage.Open(historyPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := storage.HistoryMigrations(historyDB).Run(); err != nil {
		historyDB.Close()
		return nil, fmt.Errorf("run history migrations: %w", err)
	}

	faviconDB, err := storage.Open(faviconPath)
	if err != nil {
		historyDB.Close()
		return nil, fmt.Errorf("open favicon database: %w", err)
	}
	if err := storage.FaviconMigrations(faviconDB).Run(); err != nil {
		historyDB.Close()
		faviconDB.Close()
		return nil, fmt.Errorf("run favicon migrations: %w", err)
	}

	fetcher := iconfetch.NewClient()

	return &stores{
		History:     storage.NewHistoryStore(historyDB),
		Favicons:    storage.NewFaviconStore(faviconDB, fetcher.Fetch, logger),
		Config:      cfg,
		historyPath: historyPath,
		faviconPath: faviconPath,
		closers:     []func() error{historyDB.Close, faviconDB.Close},
	}, nil
}

// newLogger builds a slog logger writing to stderr. --verbose forces debug.
func newLogger(globals *GlobalFlags, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil {
		switch strings.ToLower(cfg.Logging.Level) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	if globals != nil && globals.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// parseDuration parses a human-friendly duration string like "30d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 's':
		return time.Duration(n) * time.Second, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, m, or s suffix)", s)
	}
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
		if len(s) > remainder {
			result.WriteString(",")
		}
	}
	for i := remainder; i < len(s); i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
