// Package slug derives post filenames from titles and guarantees their
// uniqueness within one build.
package slug

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"git.home.luguber.info/inful/blogbuilder/internal/util/sets"
)

// Fallback is the slug used when a title has no usable characters.
const Fallback = "untitled"

// maxSlugBytes keeps <slug>-<n>.html below common 255 byte name limits.
const maxSlugBytes = 200

var lower = cases.Lower(language.Und)

// Slugify converts a title into a filename stem: NFC normalized, lower
// cased, each run of whitespace replaced by a single '-', and every rune
// other than a letter, number, '_' or '-' dropped.
func Slugify(title string) string {
	s := lower.String(norm.NFC.String(title))

	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('-')
				inSpace = true
			}
			continue
		}
		inSpace = false
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}

	out := truncate(b.String(), maxSlugBytes)
	if out == "" {
		return Fallback
	}
	return out
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// Allocator hands out unique post filenames. It is not safe for concurrent
// use; the pipeline allocates from a single goroutine.
type Allocator struct {
	issued sets.Set[string]
}

// NewAllocator creates an empty Allocator.
func NewAllocator() *Allocator {
	return &Allocator{issued: sets.New[string]()}
}

// Allocate returns <slug>.html for title, or <slug>-<n>.html with the
// smallest n >= 1 not yet issued.
func (a *Allocator) Allocate(title string) string {
	stem := Slugify(title)
	name := stem + ".html"
	for n := 1; !a.issued.Add(name); n++ {
		name = fmt.Sprintf("%s-%d.html", stem, n)
	}
	return name
}

// Issued returns the issued filenames in sorted order.
func (a *Allocator) Issued() []string { return sets.Sorted(a.issued) }

// Len returns the number of issued filenames.
func (a *Allocator) Len() int { return a.issued.Len() }
