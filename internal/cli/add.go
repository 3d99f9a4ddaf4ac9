package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/runnerr0/backtrail/internal/config"
	"github.com/runnerr0/backtrail/internal/iconfetch"
	"github.com/runnerr0/backtrail/internal/storage"
)

// Execute implements the go-flags Commander interface for AddCommand.
func (c *AddCommand) Execute(args []string) error {
	if c.URL == "" {
		return fmt.Errorf("--url is required for add command")
	}

	st, err := openStores(c.globals)
	if err != nil {
		return fmt.Errorf("opening stores: %w", err)
	}
	defer st.Close()

	c.fetch = iconfetch.NewClient().Fetch
	matcher := config.NewHiddenMatcher(st.Config.Hidden)
	return c.executeWithStores(st.History, st.Favicons, matcher)
}

// executeWithStores runs the add logic against provided stores (used by tests).
func (c *AddCommand) executeWithStores(history *storage.HistoryStore, favicons *storage.FaviconStore, matcher *config.HiddenMatcher) error {
	parsed, err := url.ParseRequestURI(c.URL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid URL: %s", c.URL)
	}

	var durationMicros int64
	if c.Duration != "" {
		d, err := parseDuration(c.Duration)
		if err != nil {
			return fmt.Errorf("invalid --duration value %q: %w", c.Duration, err)
		}
		durationMicros = d.Microseconds()
	}

	transition := storage.TransitionLink
	if c.Typed {
		transition = storage.TransitionTyped
	}

	hidden := c.Hidden
	if !hidden && matcher != nil {
		hidden = matcher.Match(c.URL)
	}

	ctx := context.Background()
	visitID, err := history.RecordVisit(ctx, c.URL, storage.VisitOptions{
		Title:          c.Title,
		Transition:     transition,
		DurationMicros: durationMicros,
		IsLocal:        true,
		Hidden:         hidden,
	})
	if err != nil {
		return fmt.Errorf("recording visit: %w", err)
	}

	// Favicon association is best-effort: a fetch failure still records the
	// mapping, so do not fail the add on it.
	if c.Favicon != "" && favicons != nil {
		if err := favicons.StoreFavicon(ctx, c.URL, c.Favicon, storage.IconTypeFavicon); err != nil {
			fmt.Fprintf(os.Stderr, "warning: storing favicon: %v\n", err)
		}
	}

	if c.Discover && favicons != nil && c.fetch != nil {
		if err := c.discoverFavicons(ctx, favicons, parsed); err != nil {
			fmt.Fprintf(os.Stderr, "warning: discovering favicons: %v\n", err)
		}
	}

	if c.globals != nil && c.globals.JSON {
		out := map[string]interface{}{
			"visit_id": visitID,
			"url":      c.URL,
			"title":    c.Title,
			"hidden":   hidden,
			"ts":       time.Now().Format(time.RFC3339),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Recorded visit %d\n", visitID)
	fmt.Printf("  URL: %s\n", c.URL)
	if c.Title != "" {
		fmt.Printf("  Title: %s\n", c.Title)
	}
	if hidden {
		fmt.Println("  Hidden: yes")
	}

	return nil
}

// discoverFavicons fetches the page, parses its declared icon links, and
// stores the best candidate.
func (c *AddCommand) discoverFavicons(ctx context.Context, favicons *storage.FaviconStore, page *url.URL) error {
	body, err := c.fetch(ctx, c.URL)
	if err != nil {
		return fmt.Errorf("fetch page: %w", err)
	}

	cands := iconfetch.DiscoverIcons(bytes.NewReader(body), page)
	if len(cands) == 0 {
		return nil
	}

	return favicons.StoreFavicons(ctx, c.URL, iconfetch.URLs(cands), cands[0].IconType)
}
