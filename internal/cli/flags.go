package cli

import "context"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// StatusCommand — show store statistics and configuration summary.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// SearchCommand — search visit history by keyword with filters.
type SearchCommand struct {
	Query  string `long:"query" description:"Search text (or pass as positional args)"`
	Since  string `long:"since" description:"Only visits newer than duration (e.g., 7d, 24h)" default:"30d"`
	Until  string `long:"until" description:"Only visits older than duration"`
	Limit  int    `long:"limit" description:"Maximum results" default:"10"`
	Offset int    `long:"offset" description:"Skip first N results" default:"0"`

	globals *GlobalFlags
	version string
}

// AddCommand — manually record a visit.
type AddCommand struct {
	URL      string `long:"url" description:"URL to record (required)"`
	Title    string `long:"title" description:"Page title"`
	Typed    bool   `long:"typed" description:"Record as a typed navigation"`
	Hidden   bool   `long:"hidden" description:"Flag the URL as hidden"`
	Favicon  string `long:"favicon" description:"Favicon URL to fetch and associate"`
	Discover bool   `long:"discover" description:"Fetch the page and discover its declared icons"`
	Duration string `long:"duration" description:"Visit duration (e.g., 90s, 5m)"`

	globals *GlobalFlags
	version string
	fetch   func(ctx context.Context, url string) ([]byte, error) // injectable for testing
}

// TopSitesCommand — list the most-visited non-hidden URLs.
type TopSitesCommand struct {
	Limit int `long:"limit" description:"Number of sites to show" default:"10"`

	globals *GlobalFlags
	version string
}

// DownloadsCommand — list or delete persisted downloads.
type DownloadsCommand struct {
	State    string `long:"state" description:"Filter by state: in_progress | complete | cancelled | interrupted"`
	Contains string `long:"contains" description:"Filter by URL or path substring"`
	Limit    int    `long:"limit" description:"Maximum results" default:"20"`
	Delete   string `long:"delete" description:"Delete the download row with this GUID"`

	globals *GlobalFlags
	version string
}

// IconsCommand — favicon store maintenance.
type IconsCommand struct {
	Cleanup bool `long:"cleanup" description:"Delete favicons no page maps to"`

	globals *GlobalFlags
	version string
}

// PruneCommand — delete visits older than the retention period.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period (e.g., 90d)"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`

	globals *GlobalFlags
	version string
}

// ClearCommand — delete browsing data by category with safety confirmation.
type ClearCommand struct {
	History   bool   `long:"history" description:"Clear visit history"`
	Downloads bool   `long:"downloads" description:"Clear download rows"`
	Favicons  bool   `long:"favicons" description:"Clear all favicons"`
	All       bool   `long:"all" description:"Clear every category"`
	Since     string `long:"since" description:"Only clear data newer than duration (history only)"`
	Force     bool   `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
}

// WatchCommand — attach to a browser over DevTools and track its downloads.
type WatchCommand struct {
	RemoteURL string `long:"remote-url" description:"DevTools websocket URL (overrides config)"`
	Dir       string `long:"dir" description:"Download directory (overrides config)"`

	globals *GlobalFlags
	version string
}
