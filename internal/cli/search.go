package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/runnerr0/backtrail/internal/storage"
)

// Execute implements the go-flags Commander interface for SearchCommand.
func (c *SearchCommand) Execute(args []string) error {
	st, err := openStores(c.globals)
	if err != nil {
		return err
	}
	defer st.Close()

	return c.executeWithStore(st.History, args)
}

// executeWithStore runs the search against a provided store (for testing).
func (c *SearchCommand) executeWithStore(store *storage.HistoryStore, args []string) error {
	query := c.Query
	if query == "" && len(args) > 0 {
		query = strings.Join(args, " ")
	}

	now := time.Now()
	var start time.Time
	if c.Since != "" {
		dur, err := parseDuration(c.Since)
		if err != nil {
			return fmt.Errorf("invalid --since value %q: %w", c.Since, err)
		}
		start = now.Add(-dur)
	}

	var end time.Time
	if c.Until != "" {
		dur, err := parseDuration(c.Until)
		if err != nil {
			return fmt.Errorf("invalid --until value %q: %w", c.Until, err)
		}
		end = now.Add(-dur)
	}

	ctx := context.Background()
	results, err := store.QueryHistory(ctx, storage.HistoryFilter{
		Text:      query,
		StartDate: start,
		EndDate:   end,
		Limit:     c.Limit,
		Offset:    c.Offset,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return c.printJSON(query, results)
	}
	return c.printHuman(query, results)
}

func (c *SearchCommand) printHuman(query string, results []storage.VisitView) error {
	if len(results) == 0 {
		if query != "" {
			fmt.Printf("No results found for %q (since %s)\n", query, c.Since)
		} else {
			fmt.Printf("No results found (since %s)\n", c.Since)
		}
		return nil
	}

	resultWord := "results"
	if len(results) == 1 {
		resultWord = "result"
	}
	if query != "" {
		fmt.Printf("Found %d %s for %q (since %s)\n\n", len(results), resultWord, query, c.Since)
	} else {
		fmt.Printf("Found %d %s (since %s)\n\n", len(results), resultWord, c.Since)
	}

	for i, v := range results {
		title := v.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%d. %s\n", i+1+c.Offset, title)
		fmt.Printf("   %s\n", v.URL)
		fmt.Printf("   %s\n", v.VisitTime.Local().Format("2006-01-02 15:04"))

		if i < len(results)-1 {
			fmt.Println()
		}
	}

	return nil
}

type jsonSearchOutput struct {
	Count   int                 `json:"count"`
	Query   string              `json:"query"`
	Results []storage.VisitView `json:"results"`
}

func (c *SearchCommand) printJSON(query string, results []storage.VisitView) error {
	out := jsonSearchOutput{
		Count:   len(results),
		Query:   query,
		Results: results,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
