package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/blogbuilder/internal/audit"
	"git.home.luguber.info/inful/blogbuilder/internal/build"
	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/eventstore"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
	"git.home.luguber.info/inful/blogbuilder/internal/metrics"
)

// Global carries process-wide state into every command. A nil Logger
// falls back to slog.Default, which AfterApply configures.
type Global struct {
	Ctx    context.Context
	Logger *slog.Logger
	Out    io.Writer
}

func (g *Global) context() context.Context {
	if g.Ctx == nil {
		return context.Background()
	}
	return g.Ctx
}

func (g *Global) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

func (g *Global) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition and global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"blogbuilder.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build    BuildCmd    `cmd:"" help:"Run the full pipeline: pages, media, sitemap and audit"`
	Generate GenerateCmd `cmd:"" help:"Render pages (and media) without sitemap or audit"`
	Media    MediaCmd    `cmd:"" help:"Download every image referenced by the export"`
	Sitemap  SitemapCmd  `cmd:"" help:"Regenerate sitemap.xml over an existing site"`
	Audit    AuditCmd    `cmd:"" help:"Audit an existing site for empty posts and missing media"`
	History  HistoryCmd  `cmd:"" help:"List recorded builds"`
	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

// parseLogLevel honors -v first, then BLOGBUILDER_LOG_LEVEL.
func parseLogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("BLOGBUILDER_LOG_LEVEL"))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// serviceDeps are the optional collaborators of a build service. close
// releases them and writes the metrics textfile.
type serviceDeps struct {
	svc      *build.Service
	close    func()
	recorder *metrics.PrometheusRecorder
}

// newService wires the optional history store, metrics recorder and
// findings publisher configured in cfg. Optional parts that fail to start
// are logged and left out.
func newService(ctx context.Context, cfg *config.Config, logger *slog.Logger) *serviceDeps {
	deps := &serviceDeps{svc: build.NewService(cfg, logger)}
	var closers []func()

	if cfg.Metrics.Textfile != "" {
		deps.recorder = metrics.NewPrometheusRecorder(nil)
		deps.svc.WithRecorder(deps.recorder)
		closers = append(closers, func() {
			if err := deps.recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				logger.Warn("Failed to write metrics", logfields.Path(cfg.Metrics.Textfile), logfields.Error(err))
			}
		})
	}

	if cfg.History.Database != "" {
		store, err := eventstore.NewSQLiteStore(cfg.History.Database)
		if err != nil {
			logger.Warn("Build history disabled", logfields.Path(cfg.History.Database), logfields.Error(err))
		} else {
			deps.svc.WithHistory(store)
			closers = append(closers, func() { _ = store.Close() })
		}
	}

	if pub := newPublisher(ctx, cfg, logger); pub != nil {
		deps.svc.WithPublisher(pub)
		closers = append(closers, pub.Close)
	}

	deps.close = func() {
		for _, c := range closers {
			c()
		}
	}
	return deps
}

func newPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) *audit.Publisher {
	if !cfg.Audit.NATS.Enabled {
		return nil
	}
	pub, err := audit.NewPublisher(ctx, cfg.Audit.NATS, logger)
	if err != nil {
		logger.Warn("Audit publishing disabled", logfields.URL(cfg.Audit.NATS.URL), logfields.Error(err))
		return nil
	}
	return pub
}

// baseURL prefers the flag over the configured site.base_url.
func baseURL(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	return cfg.Site.BaseURL
}
