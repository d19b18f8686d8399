package commands

import (
	"fmt"
	"os"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/sitemap"
)

// SitemapCmd regenerates sitemap.xml for an already built site.
type SitemapCmd struct {
	Output  string `short:"o" help:"Site directory" default:"./site"`
	BaseURL string `name:"base-url" help:"Absolute site URL (defaults to site.base_url)"`
}

func (s *SitemapCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	base := baseURL(s.BaseURL, cfg)
	if base == "" {
		return ferrors.ValidationError("a base URL is required: pass --base-url or set site.base_url").Build()
	}
	if err := config.ValidateBaseURL(base); err != nil {
		return ferrors.ValidationError("invalid --base-url").WithCause(err).WithContext("base_url", base).Build()
	}
	if err := requireDir(s.Output); err != nil {
		return err
	}

	set, err := sitemap.Generate(s.Output, base, sitemap.Options{
		ChangeFreq: cfg.Sitemap.ChangeFreq,
		Priority:   cfg.Sitemap.Priority,
	})
	if err != nil {
		return err
	}
	if err := sitemap.Write(s.Output, set); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "Wrote %d URLs to %s\n", len(set.URLs), sitemap.Filename)
	return nil
}

// requireDir rejects a missing or non-directory site root.
func requireDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return ferrors.InputError("site directory not found").WithCause(err).WithContext("path", dir).Build()
	}
	if !info.IsDir() {
		return ferrors.InputError("site path is not a directory").WithContext("path", dir).Build()
	}
	return nil
}
