package site

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/post"
)

//go:embed templates/*.html
var templateFS embed.FS

// DisplayDateLayout formats dates shown to readers.
const DisplayDateLayout = "02 Jan 2006"

type pageKind string

const (
	kindPost pageKind = "post"
	kindYear pageKind = "year"
	kindBlog pageKind = "blog"
	kindPage pageKind = "page"
)

const (
	postsDir   = "posts"
	blogFile   = "blog.html"
	rootPrefix = ""
	postPrefix = "../"
)

// pageData is the single value set handed to every page template.
type pageData struct {
	Site    config.SiteConfig
	Prefix  string
	Title   string
	Post    *postView
	Archive *archiveView
	Blog    *blogView
	Content template.HTML
}

type postView struct {
	Title    string
	Datetime string
	Date     string
	Year     string
	YearPage string
	Body     template.HTML
}

type entryView struct {
	Href  string
	Date  string
	Title string
}

type archiveView struct {
	Year    string
	Entries []entryView
}

type blogSection struct {
	Year        string
	ArchiveHref string
	Entries     []entryView
}

type blogView struct {
	Sections []blogSection
}

// link prefixes site-relative targets so the same values work from the
// root and from posts/. Absolute URLs and fragments are left alone.
func link(prefix, target string) string {
	if target == "" || strings.HasPrefix(target, "/") || strings.HasPrefix(target, "#") {
		return target
	}
	if u, err := url.Parse(target); err == nil && u.Scheme != "" {
		return target
	}
	return prefix + target
}

type renderer struct {
	pages map[pageKind]*template.Template
	md    goldmark.Markdown
}

func newRenderer() (*renderer, error) {
	base, err := template.New("base").
		Funcs(template.FuncMap{"link": link}).
		ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	r := &renderer{
		pages: map[pageKind]*template.Template{},
		md:    goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
	for _, kind := range []pageKind{kindPost, kindYear, kindBlog, kindPage} {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, "templates/"+string(kind)+".html"); err != nil {
			return nil, fmt.Errorf("parse %s template: %w", kind, err)
		}
		r.pages[kind] = t
	}
	return r, nil
}

func (r *renderer) render(w io.Writer, kind pageKind, data pageData) error {
	return r.pages[kind].ExecuteTemplate(w, "layout", data)
}

// markdown renders trusted configuration Markdown.
func (r *renderer) markdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil //nolint:gosec // configuration content
}

func yearPage(year string) string { return year + ".html" }

func displayDate(t time.Time) string { return t.Format(DisplayDateLayout) }

func entriesFor(posts []post.Post) []entryView {
	out := make([]entryView, len(posts))
	for i, p := range posts {
		out[i] = entryView{Href: postsDir + "/" + p.Filename, Date: displayDate(p.PublishedAt), Title: p.Title}
	}
	return out
}
