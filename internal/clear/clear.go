// Package clear coordinates cross-store purges of browsing data. Each
// requested category is cleared independently and best-effort: one failing
// category never hides another's success, and the caller gets a structured
// per-category result instead of a single error.
package clear

import (
	"context"
	"log/slog"
	"time"

	"github.com/runnerr0/backtrail/internal/storage"
)

// Options selects what to clear. Since/Until bound the purge for categories
// that support ranges (history); zero values mean unbounded.
type Options struct {
	History   bool `json:"history"`
	Downloads bool `json:"downloads"`
	Favicons  bool `json:"favicons"`
	Cache     bool `json:"cache"`
	Cookies   bool `json:"cookies"`
	Storage   bool `json:"storage"`

	Since time.Time `json:"since"`
	Until time.Time `json:"until"`

	// SkipVacuum leaves touched stores uncompacted. Compaction runs by
	// default.
	SkipVacuum bool `json:"skipVacuum"`
}

func (o Options) ranged() bool {
	return !o.Since.IsZero() || !o.Until.IsZero()
}

// Result reports per category what was actually cleared. A category absent
// from both maps was not requested.
type Result struct {
	Cleared map[string]bool   `json:"cleared"`
	Errors  map[string]string `json:"errors,omitempty"`

	// VisitsDeleted counts visits removed by a ranged history clear.
	VisitsDeleted int64 `json:"visitsDeleted,omitempty"`

	// FaviconsPruned counts icons removed by orphan cleanup.
	FaviconsPruned int64 `json:"faviconsPruned,omitempty"`
}

// HookFunc clears a category owned by an external collaborator (cache,
// cookies, site storage).
type HookFunc func(ctx context.Context) error

// Coordinator wires the stores and external hooks together.
type Coordinator struct {
	history  *storage.HistoryStore
	favicons *storage.FaviconStore
	logger   *slog.Logger

	// Hooks for categories this process does not own. Nil hooks make the
	// category an immediate no-op success.
	CacheHook   HookFunc
	CookiesHook HookFunc
	StorageHook HookFunc
}

// NewCoordinator creates a Coordinator over the two durable stores.
func NewCoordinator(history *storage.HistoryStore, favicons *storage.FaviconStore, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{history: history, favicons: favicons, logger: logger}
}

// Clear executes the purge. Every requested category runs even when an
// earlier one fails; failures land in Result.Errors keyed by category.
func (c *Coordinator) Clear(ctx context.Context, opts Options) Result {
	res := Result{Cleared: map[string]bool{}, Errors: map[string]string{}}

	vacuumHistory := false
	vacuumFavicons := false

	if opts.History {
		var err error
		if opts.ranged() {
			since, until := opts.Since, opts.Until
			if since.IsZero() {
				since = time.Unix(0, 0)
			}
			if until.IsZero() {
				until = time.Now()
			}
			res.VisitsDeleted, err = c.history.DeleteHistoryRange(ctx, since, until)
		} else {
			err = c.history.DeleteAllHistory(ctx)
		}
		c.record(&res, "history", err)
		vacuumHistory = vacuumHistory || err == nil
	}

	if opts.Downloads {
		err := c.history.DeleteAllDownloads(ctx)
		c.record(&res, "downloads", err)
		vacuumHistory = vacuumHistory || err == nil
	}

	switch {
	case opts.Favicons:
		err := c.favicons.DeleteAll(ctx)
		c.record(&res, "favicons", err)
		vacuumFavicons = err == nil
	case opts.History && res.Cleared["history"]:
		// History went away but favicons weren't requested: drop the
		// mappings of the cleared pages, then the icons nothing maps to.
		n, err := c.pruneFaviconsForClearedPages(ctx, opts.ranged())
		res.FaviconsPruned = n
		if err != nil {
			c.record(&res, "favicons", err)
		}
		vacuumFavicons = err == nil && n > 0
	}

	c.runHook(ctx, &res, "cache", opts.Cache, c.CacheHook)
	c.runHook(ctx, &res, "cookies", opts.Cookies, c.CookiesHook)
	c.runHook(ctx, &res, "storage", opts.Storage, c.StorageHook)

	if !opts.SkipVacuum {
		if vacuumHistory {
			if err := c.history.Vacuum(ctx); err != nil {
				c.logger.Warn("history vacuum failed", "error", err)
			}
		}
		if vacuumFavicons {
			if err := c.favicons.Vacuum(ctx); err != nil {
				c.logger.Warn("favicon vacuum failed", "error", err)
			}
		}
	}

	return res
}

// pruneFaviconsForClearedPages removes the icon mappings of pages history no
// longer knows, then deletes the icons left without any mapping. Mappings
// live in the favicon store, so clearing history alone never touches them.
func (c *Coordinator) pruneFaviconsForClearedPages(ctx context.Context, ranged bool) (int64, error) {
	if ranged {
		pages, err := c.history.URLsWithoutVisits(ctx)
		if err != nil {
			return 0, err
		}
		if err := c.favicons.DeleteMappingsForPages(ctx, pages); err != nil {
			return 0, err
		}
	} else {
		if err := c.favicons.DeleteAllMappings(ctx); err != nil {
			return 0, err
		}
	}
	return c.favicons.CleanupOrphanedFavicons(ctx)
}

func (c *Coordinator) record(res *Result, category string, err error) {
	if err != nil {
		c.logger.Error("clear failed", "category", category, "error", err)
		res.Cleared[category] = false
		res.Errors[category] = err.Error()
		return
	}
	res.Cleared[category] = true
}

func (c *Coordinator) runHook(ctx context.Context, res *Result, category string, requested bool, hook HookFunc) {
	if !requested {
		return
	}
	if hook == nil {
		res.Cleared[category] = true
		return
	}
	c.record(res, category, hook(ctx))
}
