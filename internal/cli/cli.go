package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Status    *StatusCommand
	Search    *SearchCommand
	Add       *AddCommand
	TopSites  *TopSitesCommand
	Downloads *DownloadsCommand
	Icons     *IconsCommand
	Prune     *PruneCommand
	Clear     *ClearCommand
	Watch     *WatchCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "backtrail"
	parser.LongDescription = "Local browsing activity ledger: visit history, favicons, and download tracking."

	cmds := &commands{
		Status:    &StatusCommand{globals: &globals, version: version},
		Search:    &SearchCommand{globals: &globals, version: version},
		Add:       &AddCommand{globals: &globals, version: version},
		TopSites:  &TopSitesCommand{globals: &globals, version: version},
		Downloads: &DownloadsCommand{globals: &globals, version: version},
		Icons:     &IconsCommand{globals: &globals, version: version},
		Prune:     &PruneCommand{globals: &globals, version: version},
		Clear:     &ClearCommand{globals: &globals, version: version},
		Watch:     &WatchCommand{globals: &globals, version: version},
	}

	parser.AddCommand("status", "Show store statistics", "Show store statistics and configuration summary.", cmds.Status)
	parser.AddCommand("search", "Search visit history", "Search visit history by keyword, with optional filters.", cmds.Search)
	parser.AddCommand("add", "Manually record a visit", "Manually record a visit to a URL.", cmds.Add)
	parser.AddCommand("topsites", "List most-visited sites", "List the most-visited non-hidden URLs.", cmds.TopSites)
	parser.AddCommand("downloads", "List or delete downloads", "List persisted downloads, or delete one by GUID.", cmds.Downloads)
	parser.AddCommand("icons", "Favicon store maintenance", "Show favicon counts and clean up unmapped icons.", cmds.Icons)
	parser.AddCommand("prune", "Apply retention pruning", "Delete visits older than the retention period.", cmds.Prune)
	parser.AddCommand("clear", "Delete browsing data", "Delete browsing data by category. Destructive operation with safety prompt.", cmds.Clear)
	parser.AddCommand("watch", "Track a browser's downloads", "Attach to a running browser over DevTools and track its downloads.", cmds.Watch)

	return parser, &globals, cmds
}

// Run is the main entry point for the backtrail CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("backtrail %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
