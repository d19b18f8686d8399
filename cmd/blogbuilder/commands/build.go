package commands

import (
	"fmt"

	"git.home.luguber.info/inful/blogbuilder/internal/build"
	"git.home.luguber.info/inful/blogbuilder/internal/config"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Export      string `name:"export" short:"e" help:"WordPress export (WXR) file" required:"" type:"existingfile"`
	Output      string `short:"o" help:"Output directory for the generated site" default:"./site"`
	BaseURL     string `name:"base-url" help:"Absolute site URL used in sitemap.xml (defaults to site.base_url)"`
	SkipMedia   bool   `name:"skip-media" help:"Do not download images; link images to files already in <output>/media and drop the rest"`
	SkipSitemap bool   `name:"skip-sitemap" help:"Do not write sitemap.xml"`
	SkipAudit   bool   `name:"skip-audit" help:"Do not audit the generated site"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return runBuild(g, cfg, build.Request{
		ExportPath:  b.Export,
		OutputDir:   b.Output,
		BaseURL:     baseURL(b.BaseURL, cfg),
		SkipMedia:   b.SkipMedia,
		SkipSitemap: b.SkipSitemap,
		SkipAudit:   b.SkipAudit,
	})
}

func runBuild(g *Global, cfg *config.Config, req build.Request) error {
	out := g.out()
	_, _ = fmt.Fprintln(out, "Starting blog build")

	deps := newService(g.context(), cfg, g.logger())
	defer deps.close()

	report, err := deps.svc.Run(g.context(), req)
	if report != nil {
		_, _ = fmt.Fprintln(out, report.Summary())
	}
	if err != nil {
		_, _ = fmt.Fprintln(out, "Build failed")
		return err
	}
	_, _ = fmt.Fprintf(out, "Site written to %s\n", req.OutputDir)
	return nil
}
