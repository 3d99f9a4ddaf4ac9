package config

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:        "~/.local/share/backtrail",
			HistoryFile: "history.db",
			FaviconFile: "favicons.db",
		},
		Retention: RetentionConfig{
			Days:               0, // keep forever
			PruneIntervalHours: 24,
		},
		Hidden: HiddenConfig{
			Domains: DefaultHiddenDomains(),
		},
		Downloads: DownloadsConfig{
			Dir:              "~/Downloads",
			GraceSeconds:     5,
			NotifyIntervalMS: 100,
		},
		Browser: BrowserConfig{
			RemoteURL: "",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultHiddenDomains returns domains whose visits are recorded but flagged
// hidden by default. Covers banking, password managers, auth flows and
// healthcare portals.
func DefaultHiddenDomains() []string {
	return []string{
		// Banking and finance
		"chase.com",
		"bankofamerica.com",
		"wellsfargo.com",
		"citibank.com",
		"capitalone.com",
		"usbank.com",
		"fidelity.com",
		"vanguard.com",
		"schwab.com",
		"paypal.com",
		"venmo.com",

		// Password managers
		"1password.com",
		"lastpass.com",
		"bitwarden.com",
		"dashlane.com",
		"keepersecurity.com",

		// Auth and identity
		"accounts.google.com",
		"login.microsoftonline.com",
		"okta.com",
		"auth0.com",
		"id.me",
		"login.gov",

		// Healthcare
		"mychart.com",
		"healthcare.gov",
		"cvs.com",
		"walgreens.com",
	}
}
