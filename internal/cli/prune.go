package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/runnerr0/backtrail/internal/storage"
)

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	st, err := openStores(c.globals)
	if err != nil {
		return err
	}
	defer st.Close()

	retention := time.Duration(st.Config.Retention.Days) * 24 * time.Hour
	return c.executeWithStore(st.History, st.Favicons, retention)
}

// executeWithStore runs pruning against provided stores (for testing).
func (c *PruneCommand) executeWithStore(history *storage.HistoryStore, favicons *storage.FaviconStore, retention time.Duration) error {
	if c.OlderThan != "" {
		dur, err := parseDuration(c.OlderThan)
		if err != nil {
			return fmt.Errorf("invalid --older-than value %q: %w", c.OlderThan, err)
		}
		retention = dur
	}

	if retention <= 0 {
		return fmt.Errorf("no retention period configured; set retention.days or pass --older-than")
	}

	cutoff := time.Now().Add(-retention)
	ctx := context.Background()

	if c.DryRun {
		matches, err := history.QueryHistory(ctx, storage.HistoryFilter{EndDate: cutoff})
		if err != nil {
			return fmt.Errorf("dry-run query: %w", err)
		}
		if c.globals != nil && c.globals.JSON {
			enc := json.NewEncoder(os.Stdout)
			return enc.Encode(map[string]interface{}{
				"dry_run":      true,
				"would_delete": len(matches),
				"cutoff":       cutoff.UTC().Format(time.RFC3339),
			})
		}
		fmt.Printf("Would delete %d visits older than %s.\n", len(matches), cutoff.Local().Format("2006-01-02"))
		return nil
	}

	deleted, err := history.DeleteHistoryRange(ctx, time.Time{}, cutoff)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}

	// Icons whose last page row went away are no longer reachable.
	var pruned int64
	if deleted > 0 && favicons != nil {
		pruned, err = favicons.CleanupOrphanedFavicons(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: favicon cleanup: %v\n", err)
		}
	}

	if c.globals != nil && c.globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(map[string]interface{}{
			"deleted_visits":  deleted,
			"pruned_favicons": pruned,
			"cutoff":          cutoff.UTC().Format(time.RFC3339),
		})
	}

	fmt.Printf("Deleted %d visits older than %s.\n", deleted, cutoff.Local().Format("2006-01-02"))
	if pruned > 0 {
		fmt.Printf("Pruned %d unmapped favicons.\n", pruned)
	}
	return nil
}
