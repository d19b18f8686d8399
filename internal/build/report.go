package build

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/blogbuilder/internal/audit"
	ferrors "git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/media"
	"git.home.luguber.info/inful/blogbuilder/internal/post"
)

// Outcome is the final result state of a build.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeWarning  Outcome = "warning"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// IssueSeverity represents normalized severity levels.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a discrete problem encountered during a build.
type Issue struct {
	Stage    StageName     `json:"stage"`
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// Report captures what a build did.
type Report struct {
	BuildID     string
	OutputDir   string
	Start       time.Time
	End         time.Time
	Outcome     Outcome
	Records     int // export items seen
	Posts       int // canonical posts rendered
	Skipped     []post.Skip
	Media       media.Stats
	Pages       []string
	SitemapURLs int
	Audit       *audit.Report // nil when the audit did not run
	Stages      []StageTiming
	Issues      []Issue
	// FailedStage is set when a stage returned a fatal error.
	FailedStage StageName
	Err         error
}

// StageTiming records how long one stage took.
type StageTiming struct {
	Stage    StageName
	Duration time.Duration
}

func newReport(buildID string, start time.Time) *Report {
	return &Report{BuildID: buildID, Start: start}
}

// Duration is the wall time of the build.
func (r *Report) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// StageDuration returns the recorded duration of stage.
func (r *Report) StageDuration(stage StageName) (time.Duration, bool) {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s.Duration, true
		}
	}
	return 0, false
}

func (r *Report) addIssue(stage StageName, severity IssueSeverity, msg string) {
	r.Issues = append(r.Issues, Issue{Stage: stage, Severity: severity, Message: msg})
}

// finish stamps the end time and derives the outcome.
func (r *Report) finish(end time.Time) {
	r.End = end
	switch {
	case r.Err != nil && ferrors.HasCategory(r.Err, ferrors.CategoryCanceled):
		r.Outcome = OutcomeCanceled
	case r.Err != nil:
		r.Outcome = OutcomeFailed
	case len(r.Skipped) > 0 || r.Media.Failed > 0:
		r.Outcome = OutcomeWarning
	default:
		r.Outcome = OutcomeSuccess
	}
}

// Findings is the number of audit findings, zero when the audit did not run.
func (r *Report) Findings() int {
	if r.Audit == nil {
		return 0
	}
	return r.Audit.Counts.Total()
}

// Summary returns a human-readable single-line summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("build=%s records=%d posts=%d skipped=%d media_fetched=%d media_failed=%d pages=%d sitemap_urls=%d findings=%d duration=%s outcome=%s",
		r.BuildID, r.Records, r.Posts, len(r.Skipped), r.Media.Fetched, r.Media.Failed,
		len(r.Pages), r.SitemapURLs, r.Findings(), r.Duration().Truncate(time.Millisecond), r.Outcome)
}
