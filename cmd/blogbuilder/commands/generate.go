package commands

import (
	"fmt"

	"git.home.luguber.info/inful/blogbuilder/internal/build"
	"git.home.luguber.info/inful/blogbuilder/internal/config"
)

// GenerateCmd renders the site without sitemap or audit.
type GenerateCmd struct {
	Export    string `name:"export" short:"e" help:"WordPress export (WXR) file" required:"" type:"existingfile"`
	Output    string `short:"o" help:"Output directory for the generated site" default:"./site"`
	SkipMedia bool   `name:"skip-media" help:"Do not download images; link images to files already in <output>/media and drop the rest"`
}

func (c *GenerateCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return runBuild(g, cfg, build.Request{
		ExportPath:  c.Export,
		OutputDir:   c.Output,
		SkipMedia:   c.SkipMedia,
		SkipSitemap: true,
		SkipAudit:   true,
	})
}
