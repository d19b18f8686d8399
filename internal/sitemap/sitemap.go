// Package sitemap generates sitemap.xml for a built site tree.
//
// lastmod is the build date for every URL, not the content date. Posts
// carry no reliable modification time in the export, so the build date is
// the only value that is correct for every page.
package sitemap

import (
	"bytes"
	"encoding/xml"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/sitefs"
)

// Namespace is the sitemaps.org schema namespace.
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// Filename is the sitemap file written into the site root.
const Filename = "sitemap.xml"

// LastModLayout formats lastmod values.
const LastModLayout = "2006-01-02"

// URLSet is the sitemap document.
type URLSet struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNS   string   `xml:"xmlns,attr"`
	URLs    []URL    `xml:"url"`
}

// URL is one sitemap entry.
type URL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// Options control optional per-URL fields.
type Options struct {
	// Now supplies the build date. Defaults to time.Now.
	Now        func() time.Time
	ChangeFreq string
	Priority   *float64
}

// Generate builds a URLSet with one entry per .html file under root.
func Generate(root, baseURL string, opts Options) (*URLSet, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	lastMod := now().Format(LastModLayout)
	priority := ""
	if opts.Priority != nil {
		priority = formatPriority(*opts.Priority)
	}
	base := strings.TrimRight(baseURL, "/")

	set := &URLSet{XMLNS: Namespace, URLs: []URL{}}
	for rel, err := range sitefs.HTMLFiles(root) {
		if err != nil {
			return nil, ferrors.FileSystemError("walk site tree").
				WithCause(err).
				WithContext("path", root).
				Build()
		}
		set.URLs = append(set.URLs, URL{
			Loc:        Loc(base, rel),
			LastMod:    lastMod,
			ChangeFreq: opts.ChangeFreq,
			Priority:   priority,
		})
	}
	return set, nil
}

// Loc maps a slash-separated site path to its absolute URL. index.html at
// any level maps to its directory URL.
func Loc(base, rel string) string {
	base = strings.TrimRight(base, "/")
	if path.Base(rel) == "index.html" {
		rel = strings.TrimSuffix(rel, "index.html")
	}
	return base + "/" + escapePath(rel)
}

// escapePath percent-encodes every byte outside the unreserved set
// (A-Z a-z 0-9 - . _ ~), keeping '/' as the separator.
func escapePath(p string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(p); i++ {
		c := p[i]
		if isUnreserved(c) || c == '/' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z' || '0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

func formatPriority(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Marshal renders set as an indented XML document.
func Marshal(set *URLSet) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Write stores set as sitemap.xml in root.
func Write(root string, set *URLSet) error {
	data, err := Marshal(set)
	if err != nil {
		return ferrors.InternalError("encode sitemap").WithCause(err).Build()
	}
	target := filepath.Join(root, Filename)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return ferrors.FileSystemError("write sitemap").
			WithCause(err).
			WithContext("path", target).
			Build()
	}
	return nil
}
