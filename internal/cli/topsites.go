package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/runnerr0/backtrail/internal/storage"
	"github.com/runnerr0/backtrail/internal/webkittime"
)

// Execute implements the go-flags Commander interface for TopSitesCommand.
func (c *TopSitesCommand) Execute(args []string) error {
	st, err := openStores(c.globals)
	if err != nil {
		return err
	}
	defer st.Close()

	return c.executeWithStore(st.History)
}

func (c *TopSitesCommand) executeWithStore(store *storage.HistoryStore) error {
	ctx := context.Background()
	sites, err := store.GetTopSites(ctx, c.Limit)
	if err != nil {
		return fmt.Errorf("top sites query: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		type siteJSON struct {
			URL        string `json:"url"`
			Title      string `json:"title"`
			VisitCount int    `json:"visit_count"`
			TypedCount int    `json:"typed_count"`
			LastVisit  string `json:"last_visit"`
		}
		out := make([]siteJSON, len(sites))
		for i, s := range sites {
			out[i] = siteJSON{
				URL:        s.URL,
				Title:      s.Title,
				VisitCount: s.VisitCount,
				TypedCount: s.TypedCount,
				LastVisit:  webkittime.ToTime(s.LastVisitTime).UTC().Format("2006-01-02T15:04:05Z"),
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(sites) == 0 {
		fmt.Println("No sites recorded yet.")
		return nil
	}

	for i, s := range sites {
		title := s.Title
		if title == "" {
			title = s.URL
		}
		fmt.Printf("%2d. %-48s %s visits\n", i+1, truncate(title, 48), formatNumber(int64(s.VisitCount)))
		fmt.Printf("    %s\n", s.URL)
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
