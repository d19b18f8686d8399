// Package post turns raw export records into canonical posts.
package post

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"git.home.luguber.info/inful/blogbuilder/internal/export"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
)

// DateLayout is the RFC 822 style publication timestamp used by exports.
// The day may have one or two digits.
const DateLayout = "Mon, 2 Jan 2006 15:04:05 -0700"

// DefaultUntitledTitle replaces absent titles.
const DefaultUntitledTitle = "Untitled"

// Post is a validated, date-parsed export record.
type Post struct {
	Title       string
	Body        string
	PublishedAt time.Time
	Year        string
	Filename    string
	MediaRefs   []MediaRef
	SourceID    string
	Seq         int
}

// MediaRef records one image reference of a post body and how it resolved.
type MediaRef struct {
	SourceURL     string
	LocalFilename string
	Resolved      bool
	Reason        string
}

// SkipReason classifies why a record did not become a post.
type SkipReason string

const (
	SkipMissingBody    SkipReason = "missing-body"
	SkipMissingDate    SkipReason = "missing-date"
	SkipInvalidDate    SkipReason = "invalid-date"
	SkipFilteredType   SkipReason = "filtered-type"
	SkipFilteredStatus SkipReason = "filtered-status"
)

// Skip describes a dropped record.
type Skip struct {
	SourceID string
	Title    string
	Reason   SkipReason
	Detail   string
}

// Result is the outcome of a canonicalization pass.
type Result struct {
	Posts   []Post
	Skipped []Skip
}

// Options configure a Canonicalizer. The zero value accepts every record.
type Options struct {
	UntitledTitle string
	// PostTypes and Statuses restrict which WXR records are accepted.
	// Records without the metadata are always accepted.
	PostTypes []string
	Statuses  []string
}

// Canonicalizer validates records and produces posts in encountered order.
type Canonicalizer struct {
	opts   Options
	logger *slog.Logger
}

// NewCanonicalizer creates a Canonicalizer. A nil logger uses slog.Default.
func NewCanonicalizer(opts Options, logger *slog.Logger) *Canonicalizer {
	if opts.UntitledTitle == "" {
		opts.UntitledTitle = DefaultUntitledTitle
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Canonicalizer{opts: opts, logger: logger}
}

// ParseDate parses a publication timestamp, ignoring surrounding whitespace.
func ParseDate(raw string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(raw))
}

// Canonicalize converts records into posts. Records that cannot become a
// post are reported in Result.Skipped and logged; this never fails.
func (c *Canonicalizer) Canonicalize(records []export.RawPost) Result {
	var res Result
	for _, rec := range records {
		title := c.opts.UntitledTitle
		if rec.Title != nil && strings.TrimSpace(*rec.Title) != "" {
			title = *rec.Title
		}

		skip := func(reason SkipReason, detail string) {
			res.Skipped = append(res.Skipped, Skip{SourceID: rec.SourceID, Title: title, Reason: reason, Detail: detail})
			c.logger.Warn("Skipping export record",
				logfields.Post(title),
				logfields.SourceID(rec.SourceID),
				logfields.Reason(string(reason)))
		}

		if rec.PostType != "" && len(c.opts.PostTypes) > 0 && !slices.Contains(c.opts.PostTypes, rec.PostType) {
			skip(SkipFilteredType, rec.PostType)
			continue
		}
		if rec.Status != "" && len(c.opts.Statuses) > 0 && !slices.Contains(c.opts.Statuses, rec.Status) {
			skip(SkipFilteredStatus, rec.Status)
			continue
		}
		if rec.Body == nil {
			skip(SkipMissingBody, "")
			continue
		}
		if rec.PublishedAt == nil || strings.TrimSpace(*rec.PublishedAt) == "" {
			skip(SkipMissingDate, "")
			continue
		}
		published, err := ParseDate(*rec.PublishedAt)
		if err != nil {
			skip(SkipInvalidDate, *rec.PublishedAt)
			continue
		}

		res.Posts = append(res.Posts, Post{
			Title:       title,
			Body:        *rec.Body,
			PublishedAt: published,
			Year:        fmt.Sprintf("%04d", published.Year()),
			SourceID:    rec.SourceID,
			Seq:         len(res.Posts),
		})
	}
	return res
}

// SkipCounts tallies skipped records per reason.
func (r Result) SkipCounts() map[SkipReason]int {
	counts := make(map[SkipReason]int, len(r.Skipped))
	for _, s := range r.Skipped {
		counts[s.Reason]++
	}
	return counts
}
