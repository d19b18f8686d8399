package commands

import (
	"fmt"

	"git.home.luguber.info/inful/blogbuilder/internal/audit"
	"git.home.luguber.info/inful/blogbuilder/internal/config"
)

// AuditCmd audits an existing site and writes audit_report.json.
type AuditCmd struct {
	Output   string `short:"o" help:"Site directory to audit" default:"./site"`
	JSONOnly bool   `name:"json-only" help:"Only write the JSON report; skip the console summary"`
}

func (a *AuditCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := requireDir(a.Output); err != nil {
		return err
	}

	report, err := audit.NewAuditor(g.logger()).Run(a.Output)
	if err != nil {
		return err
	}
	if err := audit.WriteJSON(a.Output, report); err != nil {
		return err
	}

	if pub := newPublisher(g.context(), cfg, g.logger()); pub != nil {
		defer pub.Close()
		pub.Publish(g.context(), "", report)
	}

	if !a.JSONOnly {
		if err := audit.WriteText(g.out(), report); err != nil {
			return err
		}
	}
	return nil
}
