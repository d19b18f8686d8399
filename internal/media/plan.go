package media

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"strings"
)

// fetchable reports whether src is an absolute http(s) URL.
func fetchable(src string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return nil, false
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, false
	}
	return u, true
}

// urlHash returns the first n hex digits of sha256(rawURL).
func urlHash(rawURL string, n int) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])[:n]
}

// baseName returns the percent-decoded last path segment of u, or "" when
// the path has none.
func baseName(u *url.URL) string {
	name := path.Base(u.Path)
	switch name {
	case ".", "/", "..":
		return ""
	}
	return strings.TrimSpace(name)
}

// planEntry is one distinct URL scheduled for fetching.
type planEntry struct {
	URL      string
	Filename string
}

// plan assigns local filenames to distinct URLs in first-seen order.
type plan struct {
	entries []planEntry
	byURL   map[string]int
	claimed map[string]string // filename -> URL
}

func newPlan() *plan {
	return &plan{byURL: map[string]int{}, claimed: map[string]string{}}
}

// add returns the plan index for rawURL, scheduling it on first sight.
func (p *plan) add(rawURL string, u *url.URL) int {
	if idx, ok := p.byURL[rawURL]; ok {
		return idx
	}
	name := p.nameFor(rawURL, u)
	p.claimed[name] = rawURL
	p.entries = append(p.entries, planEntry{URL: rawURL, Filename: name})
	p.byURL[rawURL] = len(p.entries) - 1
	return len(p.entries) - 1
}

// nameFor picks the basename, or <stem>-<8 hex><ext> when another URL
// already claimed it. Nameless URLs become media-<8 hex>.
func (p *plan) nameFor(rawURL string, u *url.URL) string {
	base := baseName(u)
	if base == "" {
		return p.free("media-"+urlHash(rawURL, 8), rawURL)
	}
	if _, taken := p.claimed[base]; !taken {
		return base
	}
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return p.free(stem+"-"+urlHash(rawURL, 8)+ext, rawURL)
}

// free falls back to the full digest in the unlikely case candidate is taken.
func (p *plan) free(candidate, rawURL string) string {
	if _, taken := p.claimed[candidate]; !taken {
		return candidate
	}
	return urlHash(rawURL, 64) + path.Ext(candidate)
}
