package audit

import (
	"bytes"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	ferrors "git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
)

// Category classifies a finding.
type Category string

const (
	CategoryEmpty        Category = "empty"
	CategoryMinimal      Category = "minimal"
	CategoryMissingMedia Category = "missing-media"
	CategoryBrokenTag    Category = "broken-tag"
)

const (
	// EmptyThreshold is the text length below which a post counts as empty.
	EmptyThreshold = 10
	// MinimalThreshold is the text length below which a post counts as minimal.
	MinimalThreshold = 50

	// ReportFilename is written into the audited root.
	ReportFilename = "audit_report.json"

	brokenTagIssue = "Empty src attribute"
)

// Auditor scans a built site. It holds no per-run state and is safe to reuse.
type Auditor struct {
	logger *slog.Logger
}

// NewAuditor returns an auditor logging to logger (slog.Default when nil).
func NewAuditor(logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{logger: logger}
}

// Run audits every posts/*.html file below root in lexical order.
//
// Unreadable or unparsable files are recorded in the report's Errors and
// the scan continues. Only a failure to list the posts directory is
// returned as an error.
func (a *Auditor) Run(root string) (*Report, error) {
	postsDir := filepath.Join(root, "posts")
	entries, err := os.ReadDir(postsDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, ferrors.AuditError("failed to list posts").
			WithCause(err).
			WithContext("path", postsDir).
			Build()
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".html") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	report := newReport()
	for _, name := range names {
		report.TotalPosts++
		a.auditFile(root, name, report)
	}
	report.tally()

	a.logger.Info("Audit complete",
		logfields.Path(root),
		logfields.Count(report.TotalPosts),
		slog.Int("empty", report.Counts.Empty),
		slog.Int("minimal", report.Counts.Minimal),
		slog.Int("missing_media", report.Counts.MissingMedia),
		slog.Int("broken_tag", report.Counts.BrokenTag),
		slog.Int("errors", len(report.Errors)))
	return report, nil
}

func (a *Auditor) auditFile(root, name string, report *Report) {
	full := filepath.Join(root, "posts", name)
	data, err := os.ReadFile(full)
	if err != nil {
		a.logger.Warn("Audit could not read post", logfields.File(name), logfields.Error(err))
		report.Errors = append(report.Errors, FileError{File: name, Error: err.Error()})
		return
	}
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		a.logger.Warn("Audit could not parse post", logfields.File(name), logfields.Error(err))
		report.Errors = append(report.Errors, FileError{File: name, Error: err.Error()})
		return
	}

	scan := scanPage(doc)
	length := utf8.RuneCountInString(scan.text)
	switch {
	case length < EmptyThreshold:
		report.EmptyPosts = append(report.EmptyPosts, ContentEntry{
			File: name, ContentLength: length, ContentPreview: preview(scan.text),
		})
		report.addFinding(name, CategoryEmpty, lengthDetail(length))
	case length < MinimalThreshold:
		report.MinimalContentPosts = append(report.MinimalContentPosts, ContentEntry{
			File: name, ContentLength: length, ContentPreview: preview(scan.text),
		})
		report.addFinding(name, CategoryMinimal, lengthDetail(length))
	}

	var missing []string
	for _, src := range scan.images {
		if !imageExists(root, src) {
			missing = append(missing, src)
		}
	}
	if len(missing) > 0 {
		report.PostsWithMissingImages = append(report.PostsWithMissingImages, MissingImagesEntry{
			File: name, MissingImages: missing,
		})
		report.addFinding(name, CategoryMissingMedia, strings.Join(missing, ", "))
	}

	if scan.brokenTag {
		report.PostsWithBrokenImgTags = append(report.PostsWithBrokenImgTags, BrokenTagEntry{
			File: name, Issue: brokenTagIssue,
		})
		report.addFinding(name, CategoryBrokenTag, brokenTagIssue)
	}
}

// imageExists resolves src the way a browser would from posts/<file>:
// ../media/x and media/x live in <root>/media, /x is rooted at the site
// root and anything else is relative to the posts directory.
func imageExists(root, src string) bool {
	if isExternal(src) {
		return true
	}
	for _, candidate := range localCandidates(src) {
		if fileExists(filepath.Join(root, filepath.FromSlash(resolveLocal(candidate)))) {
			return true
		}
	}
	return false
}

// resolveLocal maps a local src to a slash path relative to the site root.
func resolveLocal(src string) string {
	var rel string
	switch {
	case strings.HasPrefix(src, "../media/"):
		rel = path.Join("media", strings.TrimPrefix(src, "../media/"))
	case strings.HasPrefix(src, "media/"):
		rel = path.Clean(src)
	case strings.HasPrefix(src, "/"):
		rel = strings.TrimPrefix(path.Clean(src), "/")
	default:
		rel = path.Join("posts", src)
	}
	// Browsers clamp .. at the site root.
	for rel == ".." || strings.HasPrefix(rel, "../") {
		rel = strings.TrimPrefix(strings.TrimPrefix(rel, ".."), "/")
	}
	return rel
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
