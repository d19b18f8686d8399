package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "blogbuilder.yaml"

// Config represents the application configuration
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Pages   PagesConfig   `yaml:"pages"`
	Content ContentConfig `yaml:"content"`
	Media   MediaConfig   `yaml:"media"`
	Sitemap SitemapConfig `yaml:"sitemap"`
	Audit   AuditConfig   `yaml:"audit"`
	History HistoryConfig `yaml:"history"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// SiteConfig holds values shared by every emitted page.
type SiteConfig struct {
	Title       string    `yaml:"title"`
	Description string    `yaml:"description,omitempty"`
	Author      string    `yaml:"author,omitempty"`
	BaseURL     string    `yaml:"base_url,omitempty"`
	Stylesheet  string    `yaml:"stylesheet,omitempty"`
	Favicon     string    `yaml:"favicon,omitempty"`
	Copyright   string    `yaml:"copyright,omitempty"`
	Nav         []NavItem `yaml:"nav,omitempty"`
	StaticDir   string    `yaml:"static_dir,omitempty"`
	BlogTopN    int       `yaml:"blog_top_n"`
}

// NavItem is a navigation link. URL is relative to the site root.
type NavItem struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// HomeFilename is the fixed name of the home page.
const HomeFilename = "index.html"

// PagesConfig configures the Markdown driven static pages.
type PagesConfig struct {
	Home  HomePageConfig `yaml:"home"`
	About PageConfig     `yaml:"about"`
}

// HomePageConfig describes the home page, always written to HomeFilename.
type HomePageConfig struct {
	Title    string `yaml:"title"`
	Markdown string `yaml:"markdown"`
}

// PageConfig describes one static page.
type PageConfig struct {
	Title    string `yaml:"title"`
	Filename string `yaml:"filename"`
	Markdown string `yaml:"markdown"`
}

// ContentConfig controls how export records become posts.
type ContentConfig struct {
	UntitledTitle string   `yaml:"untitled_title"`
	PostTypes     []string `yaml:"post_types,omitempty"`
	Statuses      []string `yaml:"statuses,omitempty"`
	SanitizeBody  bool     `yaml:"sanitize_body"`
}

// MediaConfig controls remote image fetching.
type MediaConfig struct {
	Workers   int           `yaml:"workers"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxBytes  int64         `yaml:"max_bytes"`
	UserAgent string        `yaml:"user_agent"`
	Retry     RetryConfig   `yaml:"retry"`
}

// SitemapConfig holds optional per-URL sitemap fields. Empty values are omitted.
type SitemapConfig struct {
	ChangeFreq string   `yaml:"changefreq,omitempty"`
	Priority   *float64 `yaml:"priority,omitempty"`
}

// AuditConfig configures the post-build integrity audit.
type AuditConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

// NATSConfig configures publishing of audit findings to JetStream.
type NATSConfig struct {
	Enabled        bool          `yaml:"enabled"`
	URL            string        `yaml:"url,omitempty"`
	Subject        string        `yaml:"subject,omitempty"`
	Stream         string        `yaml:"stream,omitempty"`
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
}

// HistoryConfig configures the sqlite build history. An empty database disables it.
type HistoryConfig struct {
	Database string `yaml:"database,omitempty"`
}

// MetricsConfig configures the Prometheus textfile export. An empty path disables it.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// Load loads configuration from the specified file. A missing file is not an
// error: defaults apply. Environment files are loaded first and ${VAR}
// references in the YAML are expanded.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, ferrors.ConfigError("failed to load .env file").WithCause(err).Build()
	}

	cfg := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, ferrors.ConfigError("failed to read config file").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	default:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, ferrors.ConfigError("failed to unmarshal config").
				WithCause(err).
				WithContext("path", configPath).
				Build()
		}
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ValidationError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).Build()
	}

	example := Default()
	example.Site.Title = "My Blog"
	example.Site.Description = "Notes, recipes and travel writing"
	example.Site.Author = "Jane Doe"
	example.Site.BaseURL = "https://example.com"
	example.Site.Stylesheet = "styles.css"
	example.Site.StaticDir = "static"
	example.Sitemap.ChangeFreq = "monthly"
	priority := 0.8
	example.Sitemap.Priority = &priority
	example.Audit.NATS.URL = "nats://localhost:4222"
	example.History.Database = "blogbuilder-history.db"

	data, err := yaml.Marshal(example)
	if err != nil {
		return ferrors.InternalError("failed to marshal config").WithCause(err).Build()
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return ferrors.FileSystemError("failed to write config file").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	}
	return nil
}
