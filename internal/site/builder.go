package site

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
	"git.home.luguber.info/inful/blogbuilder/internal/post"
	"git.home.luguber.info/inful/blogbuilder/internal/sitefs"
	"git.home.luguber.info/inful/blogbuilder/internal/util/sets"
)

// Result lists what a build emitted.
type Result struct {
	Pages   []string // sorted, slash-separated, relative to the output root
	Buckets []YearBucket
}

// Builder writes the site for one run. A Builder refuses to write the same
// relative path twice.
type Builder struct {
	root    string
	site    config.SiteConfig
	pages   config.PagesConfig
	logger  *slog.Logger
	r       *renderer
	written sets.Set[string]
}

// NewBuilder creates a Builder writing under root.
func NewBuilder(root string, site config.SiteConfig, pages config.PagesConfig, logger *slog.Logger) (*Builder, error) {
	r, err := newRenderer()
	if err != nil {
		return nil, ferrors.InternalError("load page templates").WithCause(err).Build()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if site.BlogTopN <= 0 {
		site.BlogTopN = 5
	}
	return &Builder{root: root, site: site, pages: pages, logger: logger, r: r, written: sets.New[string]()}, nil
}

// Build writes every page for posts. Posts must carry their filenames.
func (b *Builder) Build(posts []post.Post) (Result, error) {
	if b.site.StaticDir != "" {
		if err := sitefs.CopyTree(b.site.StaticDir, b.root); err != nil {
			return Result{}, ferrors.FileSystemError("copy static assets").
				WithCause(err).
				WithContext("path", b.site.StaticDir).
				Build()
		}
	}

	buckets := Buckets(posts)

	for _, p := range posts {
		if err := b.writePost(p); err != nil {
			return Result{}, err
		}
	}
	for _, bucket := range buckets {
		if err := b.writeArchive(bucket); err != nil {
			return Result{}, err
		}
	}
	if err := b.writeBlog(buckets); err != nil {
		return Result{}, err
	}
	if err := b.writeMarkdownPage(config.HomeFilename, b.pages.Home.Title, b.pages.Home.Markdown); err != nil {
		return Result{}, err
	}
	if err := b.writeMarkdownPage(b.pages.About.Filename, b.pages.About.Title, b.pages.About.Markdown); err != nil {
		return Result{}, err
	}

	return Result{Pages: sets.Sorted(b.written), Buckets: buckets}, nil
}

func (b *Builder) writePost(p post.Post) error {
	if p.Filename == "" {
		return ferrors.InternalError("post has no filename").WithContext("post", p.Title).Build()
	}
	data := b.data(postPrefix, p.Title)
	data.Post = &postView{
		Title:    p.Title,
		Datetime: p.PublishedAt.Format(time.RFC3339),
		Date:     displayDate(p.PublishedAt),
		Year:     p.Year,
		YearPage: yearPage(p.Year),
		Body:     template.HTML(p.Body), //nolint:gosec // post body markup is passed through
	}
	return b.write(path.Join(postsDir, p.Filename), kindPost, data)
}

func (b *Builder) writeArchive(bucket YearBucket) error {
	data := b.data(rootPrefix, "Posts from "+bucket.Year)
	data.Archive = &archiveView{Year: bucket.Year, Entries: entriesFor(bucket.Posts)}
	return b.write(yearPage(bucket.Year), kindYear, data)
}

func (b *Builder) writeBlog(buckets []YearBucket) error {
	view := &blogView{Sections: make([]blogSection, 0, len(buckets))}
	for _, bucket := range buckets {
		top := bucket.Posts
		if len(top) > b.site.BlogTopN {
			top = top[:b.site.BlogTopN]
		}
		view.Sections = append(view.Sections, blogSection{
			Year:        bucket.Year,
			ArchiveHref: yearPage(bucket.Year),
			Entries:     entriesFor(top),
		})
	}
	data := b.data(rootPrefix, "Blog")
	data.Blog = view
	return b.write(blogFile, kindBlog, data)
}

func (b *Builder) writeMarkdownPage(filename, title, markdown string) error {
	content, err := b.r.markdown(markdown)
	if err != nil {
		return ferrors.BuildError("render page markdown").
			WithCause(err).
			WithContext("filename", filename).
			Build()
	}
	data := b.data(rootPrefix, title)
	data.Content = content
	return b.write(filename, kindPage, data)
}

func (b *Builder) data(prefix, title string) pageData {
	return pageData{Site: b.site, Prefix: prefix, Title: title}
}

// write renders one page to rel. Writing a path twice in one run is an
// internal error: filenames are unique by construction.
func (b *Builder) write(rel string, kind pageKind, data pageData) error {
	if b.written.Has(rel) {
		return ferrors.InternalError("output path written twice").
			WithContext("path", rel).
			Build()
	}

	var buf bytes.Buffer
	if err := b.r.render(&buf, kind, data); err != nil {
		return ferrors.BuildError("render page").WithCause(err).WithContext("path", rel).Build()
	}

	target := filepath.Join(b.root, filepath.FromSlash(rel))
	if _, err := os.Stat(target); err == nil {
		b.logger.Warn("Page replaces static asset", logfields.File(rel))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return ferrors.FileSystemError("stat output file").WithCause(err).WithContext("path", rel).Build()
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return ferrors.FileSystemError("create output directory").WithCause(err).WithContext("path", rel).Build()
	}
	if err := os.WriteFile(target, buf.Bytes(), 0o644); err != nil {
		return ferrors.FileSystemError("write page").WithCause(err).WithContext("path", rel).Build()
	}

	b.written.Add(rel)
	b.logger.Debug("Wrote page", logfields.File(rel))
	return nil
}
