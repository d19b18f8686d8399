package commands

import (
	"fmt"

	"git.home.luguber.info/inful/blogbuilder/internal/build"
	"git.home.luguber.info/inful/blogbuilder/internal/config"
)

// MediaCmd downloads referenced images into <output>/media.
type MediaCmd struct {
	Export string `name:"export" short:"e" help:"WordPress export (WXR) file" required:"" type:"existingfile"`
	Output string `short:"o" help:"Site directory whose media/ folder receives the images" default:"./site"`
}

func (m *MediaCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	deps := newService(g.context(), cfg, g.logger())
	defer deps.close()

	report, err := deps.svc.FetchMedia(g.context(), build.Request{ExportPath: m.Export, OutputDir: m.Output})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "Fetched %d of %d images (%d failed)\n",
		report.Media.Fetched, report.Media.Distinct, report.Media.Failed)
	return nil
}
