package config

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"

	ferrors "git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/foundation/normalization"
)

var changeFreqs = normalization.New("always", "hourly", "daily", "weekly", "monthly", "yearly", "never")

// Validate checks the configuration and returns a classified config error
// describing the first problem found.
func (c *Config) Validate() error {
	checks := []func() error{
		c.validateSite,
		c.validatePages,
		c.validateMedia,
		c.validateSitemap,
		c.validateAudit,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func invalid(field string, format string, args ...any) error {
	return ferrors.ConfigError(fmt.Sprintf(format, args...)).WithContext("field", field).Build()
}

func (c *Config) validateSite() error {
	if c.Site.BlogTopN < 0 {
		return invalid("site.blog_top_n", "site.blog_top_n cannot be negative: %d", c.Site.BlogTopN)
	}
	if c.Site.BaseURL != "" {
		if err := ValidateBaseURL(c.Site.BaseURL); err != nil {
			return err
		}
	}
	return nil
}

// ValidateBaseURL ensures u is an absolute http(s) URL.
func ValidateBaseURL(u string) error {
	parsed, err := url.Parse(u)
	if err != nil {
		return ferrors.ConfigError("invalid base URL").WithCause(err).WithContext("field", "site.base_url").Build()
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return invalid("site.base_url", "base URL must be an absolute http(s) URL: %q", u)
	}
	return nil
}

// yearArchive matches the per-year archive pages the site builder emits.
var yearArchive = regexp.MustCompile(`^[0-9]{4}\.html$`)

// reservedPages are emitted by the site builder itself.
var reservedPages = []string{HomeFilename, "blog.html"}

func (c *Config) validatePages() error {
	const field = "pages.about.filename"
	name := c.Pages.About.Filename
	if strings.Contains(name, "/") || path.Ext(name) != ".html" {
		return invalid(field, "%s must be a plain .html filename: %q", field, name)
	}
	if slices.Contains(reservedPages, name) {
		return invalid(field, "about page cannot replace %s", name)
	}
	if yearArchive.MatchString(name) {
		return invalid(field, "about page %q collides with a year archive page", name)
	}
	return nil
}

func (c *Config) validateMedia() error {
	m := c.Media
	if m.Workers < 0 {
		return invalid("media.workers", "media.workers cannot be negative: %d", m.Workers)
	}
	if m.Timeout <= 0 {
		return invalid("media.timeout", "media.timeout must be positive")
	}
	if m.MaxBytes < 0 {
		return invalid("media.max_bytes", "media.max_bytes cannot be negative: %d", m.MaxBytes)
	}
	r := m.Retry
	if NormalizeRetryBackoff(string(r.Mode)) == "" {
		return invalid("media.retry.mode", "unknown retry mode %q (want one of %s)", r.Mode, retryModes.Valid())
	}
	if r.Initial <= 0 || r.Max <= 0 {
		return invalid("media.retry", "media.retry initial and max must be positive")
	}
	if r.Initial > r.Max {
		return invalid("media.retry", "media.retry initial %s exceeds max %s", r.Initial, r.Max)
	}
	if r.MaxRetries < 0 {
		return invalid("media.retry.max_retries", "media.retry.max_retries cannot be negative: %d", r.MaxRetries)
	}
	return nil
}

func (c *Config) validateSitemap() error {
	if cf := c.Sitemap.ChangeFreq; cf != "" {
		if _, ok := changeFreqs.Normalize(cf); !ok {
			return invalid("sitemap.changefreq", "invalid sitemap.changefreq %q (want one of %s)", cf, changeFreqs.Valid())
		}
	}
	if p := c.Sitemap.Priority; p != nil && (*p < 0 || *p > 1) {
		return invalid("sitemap.priority", "sitemap.priority must be within 0.0 and 1.0: %v", *p)
	}
	return nil
}

func (c *Config) validateAudit() error {
	n := c.Audit.NATS
	if n.Enabled && n.URL == "" {
		return invalid("audit.nats.url", "audit.nats.url is required when audit.nats.enabled is set")
	}
	return nil
}
