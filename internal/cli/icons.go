package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/runnerr0/backtrail/internal/storage"
)

// Execute implements the go-flags Commander interface for IconsCommand.
func (c *IconsCommand) Execute(args []string) error {
	st, err := openStores(c.globals)
	if err != nil {
		return err
	}
	defer st.Close()

	return c.executeWithStore(st.Favicons)
}

func (c *IconsCommand) executeWithStore(store *storage.FaviconStore) error {
	ctx := context.Background()

	var pruned int64
	if c.Cleanup {
		var err error
		pruned, err = store.CleanupOrphanedFavicons(ctx)
		if err != nil {
			return fmt.Errorf("cleanup favicons: %w", err)
		}
		if pruned > 0 {
			if err := store.Vacuum(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "warning: vacuum: %v\n", err)
			}
		}
	}

	count, err := store.IconCount(ctx)
	if err != nil {
		return fmt.Errorf("count icons: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		out := map[string]interface{}{
			"icons":  count,
			"pruned": pruned,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if c.Cleanup {
		fmt.Printf("Pruned %d unmapped favicons.\n", pruned)
	}
	fmt.Printf("Favicons stored: %s\n", formatNumber(count))
	return nil
}
