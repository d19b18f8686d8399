package audit

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	banner       = 60
	fileColumn   = 40
	previewWidth = 50
)

// WriteText prints the human-readable report. File names are padded by
// display width so columns stay aligned for wide characters.
func WriteText(w io.Writer, r *Report) error {
	tw := &textWriter{w: w}
	rule := strings.Repeat("=", banner)

	tw.line(rule)
	tw.line("BLOG POST AUDIT REPORT")
	tw.line(rule)
	tw.printf("Total posts analyzed: %d\n", r.TotalPosts)
	tw.printf("Findings: %d\n", r.Counts.Total())

	if len(r.EmptyPosts) > 0 {
		tw.section("Empty Posts", len(r.EmptyPosts))
		for _, e := range r.EmptyPosts {
			tw.printf("  - %s (%d chars)\n", column(e.File), e.ContentLength)
		}
	}

	if len(r.MinimalContentPosts) > 0 {
		tw.section("Minimal Content Posts", len(r.MinimalContentPosts))
		for _, e := range r.MinimalContentPosts {
			tw.printf("  - %s (%d chars)\n", column(e.File), e.ContentLength)
			tw.printf("    Preview: %s\n", runewidth.Truncate(e.ContentPreview, previewWidth, "..."))
		}
	}

	if len(r.PostsWithMissingImages) > 0 {
		tw.section("Posts with Missing Images", len(r.PostsWithMissingImages))
		for _, e := range r.PostsWithMissingImages {
			tw.printf("  - %s\n", e.File)
			for _, src := range e.MissingImages {
				tw.printf("    Missing: %s\n", src)
			}
		}
	}

	if len(r.PostsWithBrokenImgTags) > 0 {
		tw.section("Posts with Broken Image Tags", len(r.PostsWithBrokenImgTags))
		for _, e := range r.PostsWithBrokenImgTags {
			tw.printf("  - %s %s\n", column(e.File), e.Issue)
		}
	}

	if len(r.Errors) > 0 {
		tw.section("Unreadable Posts", len(r.Errors))
		for _, e := range r.Errors {
			tw.printf("  - %s %s\n", column(e.File), e.Error)
		}
	}

	if r.Counts.Total() == 0 && len(r.Errors) == 0 {
		tw.line("")
		tw.line("No issues found.")
	}
	tw.line("")
	tw.line(rule)
	return tw.err
}

func column(s string) string {
	return runewidth.FillRight(s, fileColumn)
}

// textWriter remembers the first write error so callers check once.
type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *textWriter) line(s string) {
	t.printf("%s\n", s)
}

func (t *textWriter) section(title string, n int) {
	t.printf("\n--- %s (%d) ---\n", title, n)
}
