package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/eventstore"
	ferrors "git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
)

// HistoryCmd lists recent builds from the history database.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Number of builds to show (0 for all)" default:"10"`
	Build string `name:"build" help:"Show the stages of a single build"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.History.Database == "" {
		return ferrors.ConfigError("build history is disabled: set history.database").Build()
	}

	store, err := eventstore.NewSQLiteStore(cfg.History.Database)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	projection := eventstore.NewBuildHistoryProjection(store)
	if err := projection.Rebuild(g.context()); err != nil {
		return err
	}

	if h.Build != "" {
		summary, ok := projection.GetBuild(h.Build)
		if !ok {
			return ferrors.ValidationError("unknown build").WithContext("build_id", h.Build).Build()
		}
		return writeStages(g.out(), summary)
	}
	return writeHistory(g.out(), projection.GetHistory(h.Limit))
}

var historyColumns = []struct {
	title string
	width int
}{
	{"BUILD", 36},
	{"STARTED", 20},
	{"STATUS", 9},
	{"POSTS", 6},
	{"SKIPPED", 8},
	{"MEDIA", 9},
	{"FINDINGS", 9},
	{"DURATION", 0},
}

func writeHistory(w io.Writer, builds []eventstore.BuildSummary) error {
	if len(builds) == 0 {
		_, err := fmt.Fprintln(w, "No builds recorded.")
		return err
	}
	header := make([]string, len(historyColumns))
	for i, c := range historyColumns {
		header[i] = c.title
	}
	if err := writeRow(w, header); err != nil {
		return err
	}
	for _, b := range builds {
		duration := "-"
		if b.Status != eventstore.StatusRunning {
			duration = b.Duration.Round(time.Millisecond).String()
		}
		row := []string{
			b.BuildID,
			b.StartedAt.UTC().Format("2006-01-02 15:04:05"),
			b.Status,
			strconv.Itoa(b.Posts),
			strconv.Itoa(b.Skipped),
			fmt.Sprintf("%d/%d", b.MediaFetched, b.MediaFetched+b.MediaFailed),
			strconv.Itoa(b.Findings),
			duration,
		}
		if err := writeRow(w, row); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(w io.Writer, cells []string) error {
	var sb strings.Builder
	for i, cell := range cells {
		if width := historyColumns[i].width; width > 0 {
			sb.WriteString(runewidth.FillRight(cell, width))
			sb.WriteByte(' ')
			continue
		}
		sb.WriteString(cell)
	}
	_, err := fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
	return err
}

func writeStages(w io.Writer, b eventstore.BuildSummary) error {
	if _, err := fmt.Fprintf(w, "Build %s: %s\n", b.BuildID, b.Status); err != nil {
		return err
	}
	for _, s := range b.Stages {
		line := fmt.Sprintf("  %s %8.1fms", runewidth.FillRight(s.Stage, 20), s.DurationMS)
		if s.Error != "" {
			line += "  " + s.Error
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if b.ErrorMessage != "" {
		if _, err := fmt.Fprintf(w, "Failed in %s: %s\n", b.ErrorStage, b.ErrorMessage); err != nil {
			return err
		}
	}
	return nil
}
