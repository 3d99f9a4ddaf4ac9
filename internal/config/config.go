package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the default config file location.
const DefaultConfigPath = "~/.config/backtrail/config.yaml"

// Config holds all backtrail configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Retention RetentionConfig `yaml:"retention"`
	Hidden    HiddenConfig    `yaml:"hidden"`
	Downloads DownloadsConfig `yaml:"downloads"`
	Browser   BrowserConfig   `yaml:"browser"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StorageConfig locates the two independently-durable store files.
type StorageConfig struct {
	Path        string `yaml:"path"`
	HistoryFile string `yaml:"history_file"`
	FaviconFile string `yaml:"favicon_file"`
}

// HistoryPath returns the resolved history database path.
func (s StorageConfig) HistoryPath() (string, error) {
	dir, err := expandPath(s.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, s.HistoryFile), nil
}

// FaviconPath returns the resolved favicon database path.
func (s StorageConfig) FaviconPath() (string, error) {
	dir, err := expandPath(s.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, s.FaviconFile), nil
}

type RetentionConfig struct {
	Days               int `yaml:"days"`
	PruneIntervalHours int `yaml:"prune_interval_hours"`
}

// HiddenConfig lists URL rules whose visits are recorded but flagged hidden,
// keeping them out of top-sites and other prominent surfaces.
type HiddenConfig struct {
	Domains []string `yaml:"domains"`
	Regex   []string `yaml:"regex"`
}

type DownloadsConfig struct {
	Dir              string `yaml:"dir"`
	GraceSeconds     int    `yaml:"grace_seconds"`
	NotifyIntervalMS int    `yaml:"notify_interval_ms"`
}

type BrowserConfig struct {
	// RemoteURL is the DevTools websocket URL of the browser to watch.
	RemoteURL string `yaml:"remote_url"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := expandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}

// HiddenMatcher reports whether a URL matches the configured hidden rules.
type HiddenMatcher struct {
	domains []string
	regex   []*regexp.Regexp
}

// NewHiddenMatcher compiles the hidden-URL rules. Invalid regex entries are
// skipped rather than failing the whole config.
func NewHiddenMatcher(cfg HiddenConfig) *HiddenMatcher {
	m := &HiddenMatcher{domains: cfg.Domains}
	for _, expr := range cfg.Regex {
		re, err := regexp.Compile(expr)
		if err != nil {
			continue
		}
		m.regex = append(m.regex, re)
	}
	return m
}

// Match reports whether rawURL should be flagged hidden.
func (m *HiddenMatcher) Match(rawURL string) bool {
	host := hostOf(rawURL)
	for _, d := range m.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	for _, re := range m.regex {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// hostOf extracts the hostname without importing net/url's full parse cost
// for garbage input: scheme and path are stripped textually.
func hostOf(rawURL string) string {
	s := rawURL
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(s)
}
