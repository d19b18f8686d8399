package config

import "time"

const (
	defaultUntitledTitle = "Untitled"
	defaultBlogTopN      = 5
	defaultWorkers       = 4
	defaultTimeout       = 30 * time.Second
	defaultMaxBytes      = 50 << 20
	defaultUserAgent     = "blogbuilder/1.0"
	defaultNATSSubject   = "blogbuilder.audit.findings"
	defaultNATSStream    = "BLOGBUILDER_AUDIT"
	defaultHomeMarkdown  = "## About me\n\nWelcome to my blog. Recent writing lives on the [blog](blog.html) page.\n"
	defaultAboutMarkdown = "## About this site\n\nThis site is generated from a blog export.\n"
)

// Default returns a configuration populated with every default value.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			Title:     "Blog",
			Favicon:   "favicon-32x32.png",
			BlogTopN:  defaultBlogTopN,
			Copyright: "All rights reserved.",
			Nav: []NavItem{
				{Name: "Home", URL: HomeFilename},
				{Name: "Blog", URL: "blog.html"},
				{Name: "About", URL: "about.html"},
			},
		},
		Pages: PagesConfig{
			Home:  HomePageConfig{Title: "Home", Markdown: defaultHomeMarkdown},
			About: PageConfig{Title: "About", Filename: "about.html", Markdown: defaultAboutMarkdown},
		},
		Content: ContentConfig{UntitledTitle: defaultUntitledTitle},
		Media: MediaConfig{
			Workers:   defaultWorkers,
			Timeout:   defaultTimeout,
			MaxBytes:  defaultMaxBytes,
			UserAgent: defaultUserAgent,
			Retry: RetryConfig{
				Mode:       RetryBackoffLinear,
				Initial:    time.Second,
				Max:        30 * time.Second,
				MaxRetries: 2,
			},
		},
		Audit: AuditConfig{
			NATS: NATSConfig{
				Subject:        defaultNATSSubject,
				Stream:         defaultNATSStream,
				ConnectTimeout: 5 * time.Second,
			},
		},
	}
}

// applyDefaults fills values a config file blanked out explicitly.
func applyDefaults(cfg *Config) {
	if cfg.Content.UntitledTitle == "" {
		cfg.Content.UntitledTitle = defaultUntitledTitle
	}
	if cfg.Site.BlogTopN == 0 {
		cfg.Site.BlogTopN = defaultBlogTopN
	}
	if cfg.Pages.About.Filename == "" {
		cfg.Pages.About.Filename = "about.html"
	}
	if cfg.Media.UserAgent == "" {
		cfg.Media.UserAgent = defaultUserAgent
	}
	if cfg.Media.MaxBytes == 0 {
		cfg.Media.MaxBytes = defaultMaxBytes
	}
	if m := NormalizeRetryBackoff(string(cfg.Media.Retry.Mode)); m != "" {
		cfg.Media.Retry.Mode = m
	}
	if cf, ok := changeFreqs.Normalize(cfg.Sitemap.ChangeFreq); ok {
		cfg.Sitemap.ChangeFreq = cf
	}
	if cfg.Audit.NATS.Subject == "" {
		cfg.Audit.NATS.Subject = defaultNATSSubject
	}
	if cfg.Audit.NATS.Stream == "" {
		cfg.Audit.NATS.Stream = defaultNATSStream
	}
	if cfg.Audit.NATS.ConnectTimeout <= 0 {
		cfg.Audit.NATS.ConnectTimeout = 5 * time.Second
	}
}
