package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/runnerr0/backtrail/internal/clear"
)

// Execute implements the go-flags Commander interface for ClearCommand.
func (c *ClearCommand) Execute(args []string) error {
	opts, err := c.buildOptions()
	if err != nil {
		return err
	}

	// Confirmation prompt unless --force
	if !c.Force {
		fmt.Println("⚠ WARNING: This will permanently delete browsing data:")
		if opts.History {
			fmt.Println("  - Visit history")
		}
		if opts.Downloads {
			fmt.Println("  - Download records")
		}
		if opts.Favicons {
			fmt.Println("  - Stored favicons")
		}
		fmt.Println()
		fmt.Println("This action cannot be undone.")
		fmt.Println()
		fmt.Print(`Type "CLEAR" to confirm: `)

		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			return fmt.Errorf("aborted: no input received")
		}
		input := strings.TrimSpace(scanner.Text())
		if input != "CLEAR" {
			return fmt.Errorf("aborted: confirmation text did not match")
		}
	}

	st, err := openStores(c.globals)
	if err != nil {
		return err
	}
	defer st.Close()

	coord := clear.NewCoordinator(st.History, st.Favicons, newLogger(c.globals, st.Config))
	return c.executeWithCoordinator(coord, opts)
}

// buildOptions translates flags into clear.Options. At least one category
// must be requested.
func (c *ClearCommand) buildOptions() (clear.Options, error) {
	opts := clear.Options{
		History:   c.History || c.All,
		Downloads: c.Downloads || c.All,
		Favicons:  c.Favicons || c.All,
	}

	if !opts.History && !opts.Downloads && !opts.Favicons {
		return opts, fmt.Errorf("nothing selected: pass --history, --downloads, --favicons, or --all")
	}

	if c.Since != "" {
		dur, err := parseDuration(c.Since)
		if err != nil {
			return opts, fmt.Errorf("invalid --since value %q: %w", c.Since, err)
		}
		opts.Since = time.Now().Add(-dur)
	}

	return opts, nil
}

// executeWithCoordinator runs the purge against a provided coordinator (for testing).
func (c *ClearCommand) executeWithCoordinator(coord *clear.Coordinator, opts clear.Options) error {
	res := coord.Clear(context.Background(), opts)

	if c.globals != nil && c.globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	categories := make([]string, 0, len(res.Cleared))
	for cat := range res.Cleared {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	for _, cat := range categories {
		if res.Cleared[cat] {
			fmt.Printf("Cleared %s.\n", cat)
		} else {
			fmt.Printf("Failed to clear %s: %s\n", cat, res.Errors[cat])
		}
	}
	if res.VisitsDeleted > 0 {
		fmt.Printf("Deleted %d visits.\n", res.VisitsDeleted)
	}
	if res.FaviconsPruned > 0 {
		fmt.Printf("Pruned %d unmapped favicons.\n", res.FaviconsPruned)
	}

	if len(res.Errors) > 0 {
		return fmt.Errorf("%d categories failed", len(res.Errors))
	}
	return nil
}
