package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"git.home.luguber.info/inful/blogbuilder/internal/audit"
	"git.home.luguber.info/inful/blogbuilder/internal/eventstore"
	"git.home.luguber.info/inful/blogbuilder/internal/export"
	ferrors "git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
	"git.home.luguber.info/inful/blogbuilder/internal/media"
	"git.home.luguber.info/inful/blogbuilder/internal/metrics"
	"git.home.luguber.info/inful/blogbuilder/internal/observability"
	"git.home.luguber.info/inful/blogbuilder/internal/post"
	"git.home.luguber.info/inful/blogbuilder/internal/retry"
	"git.home.luguber.info/inful/blogbuilder/internal/site"
	"git.home.luguber.info/inful/blogbuilder/internal/sitefs"
	"git.home.luguber.info/inful/blogbuilder/internal/sitemap"
	"git.home.luguber.info/inful/blogbuilder/internal/slug"
)

// run is the state of one build as it moves through the stages.
type run struct {
	s       *Service
	req     Request
	report  *Report
	logger  *slog.Logger
	stage   *staging
	root    string // where output is written
	records []export.RawPost
	posts   []post.Post
}

func (s *Service) begin(ctx context.Context, req Request) *run {
	report := newReport(s.newID(), s.now())
	report.OutputDir = req.OutputDir
	ctx = observability.WithBuildID(ctx, report.BuildID)
	r := &run{s: s, req: req, report: report, logger: observability.Logger(ctx, s.logger)}

	r.logger.Info("Build started", logfields.File(req.ExportPath), logfields.Path(req.OutputDir))
	r.appendHistory(ctx, func(at time.Time) (eventstore.Event, error) {
		return eventstore.NewBuildStarted(report.BuildID, at, eventstore.BuildStartedData{
			ExportPath: req.ExportPath,
			OutputDir:  req.OutputDir,
			BaseURL:    req.BaseURL,
		})
	})
	return r
}

// runStage times fn and records its result. A done context turns any
// outcome into a canceled error.
func (r *run) runStage(ctx context.Context, name StageName, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return canceled(name, err)
	}
	stageCtx := observability.WithStage(observability.WithBuildID(ctx, r.report.BuildID), string(name))
	observability.DebugContext(stageCtx, r.s.logger, "Stage started")

	start := time.Now()
	err := fn(stageCtx)
	elapsed := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil && !ferrors.HasCategory(err, ferrors.CategoryCanceled) {
		err = canceled(name, ctxErr)
	}

	r.report.Stages = append(r.report.Stages, StageTiming{Stage: name, Duration: elapsed})
	r.s.recorder.ObserveStageDuration(string(name), elapsed)
	r.s.recorder.IncStageResult(string(name), stageResult(err, r.report.Issues, name))

	data := eventstore.StageCompletedData{Stage: string(name), DurationMS: durationMS(elapsed)}
	if err != nil {
		data.Error = err.Error()
	}
	r.appendHistory(ctx, func(at time.Time) (eventstore.Event, error) {
		return eventstore.NewStageCompleted(r.report.BuildID, at, data)
	})

	if err != nil {
		observability.ErrorContext(stageCtx, r.s.logger, "Stage failed",
			logfields.DurationMS(durationMS(elapsed)), logfields.Error(err))
		return err
	}
	observability.InfoContext(stageCtx, r.s.logger, "Stage completed", logfields.DurationMS(durationMS(elapsed)))
	return nil
}

func stageResult(err error, issues []Issue, name StageName) metrics.ResultLabel {
	switch {
	case ferrors.HasCategory(err, ferrors.CategoryCanceled):
		return metrics.ResultCanceled
	case err != nil:
		return metrics.ResultFatal
	}
	for _, is := range issues {
		if is.Stage == name {
			return metrics.ResultWarning
		}
	}
	return metrics.ResultSuccess
}

func canceled(stage StageName, cause error) error {
	return ferrors.CanceledError("build canceled").
		WithCause(cause).
		WithContext("stage", string(stage)).
		Build()
}

func durationMS(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// end finalizes the report, records it and returns it with err.
func (r *run) end(ctx context.Context, failed StageName, err error) (*Report, error) {
	rep := r.report
	rep.FailedStage = failed
	rep.Err = err
	if err != nil {
		rep.addIssue(failed, SeverityError, err.Error())
	}
	rep.finish(r.s.now())

	rec := r.s.recorder
	rec.ObserveBuildDuration(rep.Duration())
	rec.IncBuildOutcome(string(rep.Outcome))
	rec.SetPostCounts(rep.Posts, len(rep.Skipped))
	rec.AddMediaResults(rep.Media.Fetched, rep.Media.Failed, rep.Media.Retried)

	data := eventstore.BuildCompletedData{
		Outcome:      string(rep.Outcome),
		DurationMS:   durationMS(rep.Duration()),
		Records:      rep.Records,
		Posts:        rep.Posts,
		Skipped:      len(rep.Skipped),
		Pages:        len(rep.Pages),
		MediaFetched: rep.Media.Fetched,
		MediaFailed:  rep.Media.Failed,
		SitemapURLs:  rep.SitemapURLs,
		Findings:     rep.Findings(),
		ErrorStage:   string(failed),
	}
	if err != nil {
		data.Error = err.Error()
	}
	// Recording must survive a canceled build context.
	r.appendHistory(context.WithoutCancel(ctx), func(at time.Time) (eventstore.Event, error) {
		return eventstore.NewBuildCompleted(rep.BuildID, at, data)
	})

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
	}
	r.logger.Log(ctx, level, "Build finished", slog.String("outcome", string(rep.Outcome)), slog.String("summary", rep.Summary()))
	return rep, err
}

func (r *run) appendHistory(ctx context.Context, mk func(time.Time) (eventstore.Event, error)) {
	if r.s.history == nil {
		return
	}
	ev, err := mk(r.s.now())
	if err == nil {
		err = r.s.history.Append(ctx, ev)
	}
	if err != nil {
		r.logger.Warn("Failed to record build history", logfields.Error(err))
	}
}

func (r *run) parseExport(_ context.Context) error {
	records, err := export.ParseFile(r.req.ExportPath)
	if err != nil {
		return err
	}
	r.records = records
	r.report.Records = len(records)
	r.logger.Info("Parsed export", logfields.File(r.req.ExportPath), logfields.Count(len(records)))
	return nil
}

func (r *run) canonicalize(_ context.Context) error {
	content := r.s.cfg.Content
	res := post.NewCanonicalizer(post.Options{
		UntitledTitle: content.UntitledTitle,
		PostTypes:     content.PostTypes,
		Statuses:      content.Statuses,
	}, r.logger).Canonicalize(r.records)

	r.posts = res.Posts
	r.report.Posts = len(res.Posts)
	r.report.Skipped = res.Skipped

	counts := res.SkipCounts()
	reasons := make([]post.SkipReason, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	slices.Sort(reasons)
	for _, reason := range reasons {
		r.report.addIssue(StageCanonicalize, SeverityWarning,
			fmt.Sprintf("%d record(s) skipped: %s", counts[reason], reason))
	}
	return nil
}

func (r *run) allocateFilenames(_ context.Context) error {
	alloc := slug.NewAllocator()
	for i := range r.posts {
		r.posts[i].Filename = alloc.Allocate(r.posts[i].Title)
		r.logger.Debug("Allocated filename",
			logfields.Post(r.posts[i].Title),
			logfields.Filename(r.posts[i].Filename))
	}
	return nil
}

func (r *run) mediaOptions() media.Options {
	mc := r.s.cfg.Media
	return media.Options{
		Workers:      mc.Workers,
		Timeout:      mc.Timeout,
		MaxBytes:     mc.MaxBytes,
		UserAgent:    mc.UserAgent,
		Retry:        retry.FromConfig(mc.Retry),
		SanitizeBody: r.s.cfg.Content.SanitizeBody,
		Client:       r.s.httpClient,
		Logger:       r.logger,
	}
}

func (r *run) resolveMedia(ctx context.Context) error {
	if r.req.SkipMedia {
		return r.relinkMedia()
	}

	dir := filepath.Join(r.root, "media")
	store, err := media.NewStore(dir)
	if err != nil {
		return ferrors.FileSystemError("failed to create media directory").
			WithCause(err).
			WithContext("path", dir).
			Build()
	}
	posts, stats, err := media.NewResolver(store, r.mediaOptions()).Resolve(ctx, r.posts)
	r.report.Media = stats
	if err != nil {
		return err
	}
	r.posts = posts
	if stats.Failed > 0 {
		r.report.addIssue(StageResolveMedia, SeverityWarning,
			fmt.Sprintf("%d of %d media file(s) could not be fetched", stats.Failed, stats.Distinct))
	}
	r.logger.Info("Resolved media",
		slog.Int("referenced", stats.Referenced),
		slog.Int("fetched", stats.Fetched),
		slog.Int("failed", stats.Failed),
		slog.Int("removed", stats.Removed))
	return nil
}

// relinkMedia links post images to the media directory a previous build or
// media run left in the output directory, without fetching. The stored
// files are carried into the new tree; images without one are removed.
func (r *run) relinkMedia() error {
	dir := filepath.Join(r.root, "media")
	prev := filepath.Join(filepath.Clean(r.req.OutputDir), "media")
	if info, err := os.Stat(prev); err == nil && info.IsDir() && prev != dir {
		if err := sitefs.CopyTree(prev, dir); err != nil {
			return ferrors.FileSystemError("failed to carry existing media").
				WithCause(err).
				WithContext("path", prev).
				Build()
		}
	}

	posts, stats, err := media.NewResolver(media.OpenStore(dir), r.mediaOptions()).Relink(r.posts)
	r.report.Media = stats
	if err != nil {
		return err
	}
	r.posts = posts
	if stats.Removed > 0 {
		r.report.addIssue(StageResolveMedia, SeverityWarning,
			fmt.Sprintf("%d image reference(s) removed: no stored media file", stats.Removed))
	}
	r.logger.Info("Linked stored media",
		logfields.Path(prev),
		slog.Int("referenced", stats.Referenced),
		slog.Int("linked", stats.Linked),
		slog.Int("removed", stats.Removed))
	return nil
}

func (r *run) renderSite(_ context.Context) error {
	builder, err := site.NewBuilder(r.root, r.s.cfg.Site, r.s.cfg.Pages, r.logger)
	if err != nil {
		return err
	}
	res, err := builder.Build(r.posts)
	if err != nil {
		return err
	}
	r.report.Pages = res.Pages
	r.logger.Info("Rendered site", logfields.Count(len(res.Pages)), slog.Int("years", len(res.Buckets)))
	return nil
}

func (r *run) generateSitemap(_ context.Context) error {
	set, err := sitemap.Generate(r.root, r.req.BaseURL, sitemap.Options{
		Now:        r.s.now,
		ChangeFreq: r.s.cfg.Sitemap.ChangeFreq,
		Priority:   r.s.cfg.Sitemap.Priority,
	})
	if err != nil {
		return err
	}
	if err := sitemap.Write(r.root, set); err != nil {
		return err
	}
	r.report.SitemapURLs = len(set.URLs)
	return nil
}

func (r *run) audit(ctx context.Context) error {
	rep, err := audit.NewAuditor(r.logger).Run(r.root)
	if err != nil {
		return err
	}
	if err := audit.WriteJSON(r.root, rep); err != nil {
		return err
	}
	r.report.Audit = rep

	for category, n := range map[audit.Category]int{
		audit.CategoryEmpty:        rep.Counts.Empty,
		audit.CategoryMinimal:      rep.Counts.Minimal,
		audit.CategoryMissingMedia: rep.Counts.MissingMedia,
		audit.CategoryBrokenTag:    rep.Counts.BrokenTag,
	} {
		r.s.recorder.SetAuditFindings(string(category), n)
	}
	if r.s.publisher != nil && len(rep.Findings) > 0 {
		sent := r.s.publisher.Publish(ctx, r.report.BuildID, rep)
		r.logger.Info("Published audit findings", logfields.Count(sent))
	}
	return nil
}

func (r *run) promote(_ context.Context) error {
	return r.stage.promote()
}
