package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/runnerr0/backtrail/internal/storage"
	"github.com/runnerr0/backtrail/internal/webkittime"
)

// Execute implements the go-flags Commander interface for DownloadsCommand.
func (c *DownloadsCommand) Execute(args []string) error {
	st, err := openStores(c.globals)
	if err != nil {
		return err
	}
	defer st.Close()

	return c.executeWithStore(st.History)
}

func (c *DownloadsCommand) executeWithStore(store *storage.HistoryStore) error {
	ctx := context.Background()

	if c.Delete != "" {
		return c.deleteOne(ctx, store)
	}

	filter := storage.DownloadFilter{
		Text:  c.Contains,
		Limit: c.Limit,
	}
	if c.State != "" {
		state, err := parseDownloadState(c.State)
		if err != nil {
			return err
		}
		filter.State = &state
	}

	recs, err := store.QueryDownloads(ctx, filter)
	if err != nil {
		return fmt.Errorf("downloads query: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return c.printJSON(recs)
	}
	return c.printHuman(recs)
}

func (c *DownloadsCommand) deleteOne(ctx context.Context, store *storage.HistoryStore) error {
	deleted, err := store.DeleteDownloadByGUID(ctx, c.Delete)
	if err != nil {
		return fmt.Errorf("delete download: %w", err)
	}
	if !deleted {
		return fmt.Errorf("no download with GUID %q", c.Delete)
	}

	if c.globals != nil && c.globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(map[string]interface{}{"deleted": true, "guid": c.Delete})
	}
	fmt.Printf("Deleted download %s\n", c.Delete)
	return nil
}

func (c *DownloadsCommand) printHuman(recs []storage.DownloadRecord) error {
	if len(recs) == 0 {
		fmt.Println("No downloads recorded.")
		return nil
	}

	for _, r := range recs {
		fmt.Printf("%s  [%s]\n", r.GUID, r.State)
		fmt.Printf("  %s\n", r.TargetPath)
		progress := formatBytes(r.ReceivedBytes)
		if r.TotalBytes > 0 {
			progress += " / " + formatBytes(r.TotalBytes)
		}
		started := webkittime.ToTime(r.StartTime).Local().Format("2006-01-02 15:04")
		fmt.Printf("  %s · started %s\n", progress, started)
	}

	return nil
}

type downloadJSON struct {
	GUID          string `json:"guid"`
	URL           string `json:"url,omitempty"`
	TargetPath    string `json:"target_path"`
	State         string `json:"state"`
	ReceivedBytes int64  `json:"received_bytes"`
	TotalBytes    int64  `json:"total_bytes"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time,omitempty"`
	MimeType      string `json:"mime_type,omitempty"`
}

func (c *DownloadsCommand) printJSON(recs []storage.DownloadRecord) error {
	out := make([]downloadJSON, len(recs))
	for i, r := range recs {
		out[i] = downloadJSON{
			GUID:          r.GUID,
			URL:           r.SiteURL,
			TargetPath:    r.TargetPath,
			State:         r.State.String(),
			ReceivedBytes: r.ReceivedBytes,
			TotalBytes:    r.TotalBytes,
			StartTime:     webkittime.ToTime(r.StartTime).UTC().Format("2006-01-02T15:04:05Z"),
			MimeType:      r.MimeType,
		}
		if r.EndTime > 0 {
			out[i].EndTime = webkittime.ToTime(r.EndTime).UTC().Format("2006-01-02T15:04:05Z")
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func parseDownloadState(s string) (storage.DownloadState, error) {
	switch s {
	case "in_progress":
		return storage.DownloadInProgress, nil
	case "complete":
		return storage.DownloadComplete, nil
	case "cancelled":
		return storage.DownloadCancelled, nil
	case "interrupted":
		return storage.DownloadInterrupted, nil
	}
	return 0, fmt.Errorf("unknown state %q (use in_progress, complete, cancelled, or interrupted)", s)
}
