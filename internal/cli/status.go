package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/runnerr0/backtrail/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version          string            `json:"version"`
	HistoryPath      string            `json:"history_path"`
	HistorySizeBytes int64             `json:"history_size_bytes"`
	FaviconPath      string            `json:"favicon_path"`
	FaviconSizeBytes int64             `json:"favicon_size_bytes"`
	URLs             int64             `json:"urls"`
	Visits           int64             `json:"visits"`
	Downloads        int64             `json:"downloads"`
	Icons            int64             `json:"icons"`
	OldestVisit      string            `json:"oldest_visit,omitempty"`
	NewestVisit      string            `json:"newest_visit,omitempty"`
	RetentionDays    int               `json:"retention_days"`
	TopOrigins       []originCountJSON `json:"top_origins"`
}

type originCountJSON struct {
	Origin string `json:"origin"`
	Visits int64  `json:"visits"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	st, err := openStores(c.globals)
	if err != nil {
		return err
	}
	defer st.Close()

	return c.executeWithStores(st)
}

// executeWithStores runs status against provided stores (for testing).
func (c *StatusCommand) executeWithStores(st *stores) error {
	ctx := context.Background()

	stats, err := st.History.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	icons, err := st.Favicons.IconCount(ctx)
	if err != nil {
		return fmt.Errorf("count icons: %w", err)
	}

	historySize := fileSize(st.historyPath)
	faviconSize := fileSize(st.faviconPath)

	retentionDays := 0
	if st.Config != nil {
		retentionDays = st.Config.Retention.Days
	}

	if c.globals != nil && c.globals.JSON {
		return c.printJSON(st, stats, icons, historySize, faviconSize, retentionDays)
	}
	return c.printHuman(st, stats, icons, historySize, faviconSize, retentionDays)
}

func (c *StatusCommand) printHuman(st *stores, stats *storage.HistoryStats, icons, historySize, faviconSize int64, retentionDays int) error {
	fmt.Println("Backtrail Status")
	fmt.Println("================")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("History:       %s (%s)\n", st.historyPath, formatBytes(historySize))
	fmt.Printf("Favicons:      %s (%s)\n", st.faviconPath, formatBytes(faviconSize))
	fmt.Printf("URLs:          %s\n", formatNumber(stats.URLCount))
	fmt.Printf("Visits:        %s\n", formatNumber(stats.VisitCount))
	fmt.Printf("Downloads:     %s\n", formatNumber(stats.DownloadCount))
	fmt.Printf("Icons:         %s\n", formatNumber(icons))

	if stats.VisitCount > 0 {
		fmt.Printf("Oldest:        %s\n", stats.OldestVisit.Local().Format("2006-01-02"))
		fmt.Printf("Newest:        %s\n", stats.NewestVisit.Local().Format("2006-01-02"))
	}

	if retentionDays > 0 {
		fmt.Printf("Retention:     %d days\n", retentionDays)
	} else {
		fmt.Println("Retention:     unlimited")
	}

	if len(stats.TopOrigins) > 0 {
		fmt.Println()
		fmt.Println("Top Origins:")
		for _, o := range stats.TopOrigins {
			fmt.Printf("  %-32s %s\n", o.Origin, formatNumber(o.Visits))
		}
	}

	return nil
}

func (c *StatusCommand) printJSON(st *stores, stats *storage.HistoryStats, icons, historySize, faviconSize int64, retentionDays int) error {
	out := statusJSON{
		Version:          c.version,
		HistoryPath:      st.historyPath,
		HistorySizeBytes: historySize,
		FaviconPath:      st.faviconPath,
		FaviconSizeBytes: faviconSize,
		URLs:             stats.URLCount,
		Visits:           stats.VisitCount,
		Downloads:        stats.DownloadCount,
		Icons:            icons,
		RetentionDays:    retentionDays,
		TopOrigins:       make([]originCountJSON, len(stats.TopOrigins)),
	}

	if stats.VisitCount > 0 {
		out.OldestVisit = stats.OldestVisit.UTC().Format(time.RFC3339)
		out.NewestVisit = stats.NewestVisit.UTC().Format(time.RFC3339)
	}

	for i, o := range stats.TopOrigins {
		out.TopOrigins[i] = originCountJSON{Origin: o.Origin, Visits: o.Visits}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// fileSize returns the file size in bytes, or 0 when the file is missing.
func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
