package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func page(body string) string {
	return `<!DOCTYPE html><html><head><title>T</title><style>body{}</style></head><body>
<header><h1><a href="../index.html">Blog</a></h1></header>
<nav><a href="../index.html">Home</a></nav>
<main><article><h1>A post title that is long enough to matter</h1>
<footer class="post-meta"><time>01 Jan 2020</time></footer>
<div class="post-body">` + body + `</div></article>
<nav class="post-nav"><a href="../2020.html">More posts from 2020</a></nav></main>
<footer>All rights reserved.</footer><script>var x = "lots of script text";</script>
</body></html>`
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
}

func TestRun_ContentThresholds(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "posts/a-nine.html", page("<p>"+strings.Repeat("x", 9)+"</p>"))
	writeFile(t, root, "posts/b-ten.html", page("<p>"+strings.Repeat("y", 10)+"</p>"))
	writeFile(t, root, "posts/c-fifty.html", page("<p>"+strings.Repeat("z", 50)+"</p>"))
	writeFile(t, root, "posts/d-fortynine.html", page("<p>"+strings.Repeat("w", 49)+"</p>"))

	report, err := NewAuditor(nil).Run(root)
	require.NoError(t, err)

	assert.Equal(t, 4, report.TotalPosts)
	require.Len(t, report.EmptyPosts, 1)
	assert.Equal(t, "a-nine.html", report.EmptyPosts[0].File)
	assert.Equal(t, 9, report.EmptyPosts[0].ContentLength)
	assert.Equal(t, strings.Repeat("x", 9), report.EmptyPosts[0].ContentPreview)

	require.Len(t, report.MinimalContentPosts, 2)
	assert.Equal(t, "b-ten.html", report.MinimalContentPosts[0].File)
	assert.Equal(t, 10, report.MinimalContentPosts[0].ContentLength)
	assert.Equal(t, "d-fortynine.html", report.MinimalContentPosts[1].File)

	assert.Equal(t, Counts{Empty: 1, Minimal: 2}, report.Counts)
}

func TestRun_EmptyBodyPreview(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "posts/empty.html", page(""))

	report, err := NewAuditor(nil).Run(root)
	require.NoError(t, err)
	require.Len(t, report.EmptyPosts, 1)
	assert.Equal(t, 0, report.EmptyPosts[0].ContentLength)
	assert.Equal(t, "(empty)", report.EmptyPosts[0].ContentPreview)
}

func TestRun_CountsRunesNotBytes(t *testing.T) {
	root := t.TempDir()
	// Ten runes, thirty bytes.
	writeFile(t, root, "posts/wide.html", page("<p>"+strings.Repeat("日", 10)+"</p>"))

	report, err := NewAuditor(nil).Run(root)
	require.NoError(t, err)
	assert.Empty(t, report.EmptyPosts)
	require.Len(t, report.MinimalContentPosts, 1)
	assert.Equal(t, 10, report.MinimalContentPosts[0].ContentLength)
}

func TestRun_WithoutMainMeasuresWholeDocument(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "posts/bare.html",
		"<html><body><h1>Heading counted here</h1><p>"+strings.Repeat("q", 40)+"</p></body></html>")

	report, err := NewAuditor(nil).Run(root)
	require.NoError(t, err)
	assert.Empty(t, report.EmptyPosts)
	assert.Empty(t, report.MinimalContentPosts)
}

func TestRun_Images(t *testing.T) {
	root := t.TempDir()
	long := "<p>" + strings.Repeat("text ", 20) + "</p>"
	writeFile(t, root, "media/present.png", "png")
	writeFile(t, root, "media/with space.png", "png")
	writeFile(t, root, "posts/local.png", "png")
	writeFile(t, root, "rooted.png", "png")

	writeFile(t, root, "posts/ok.html", page(long+
		`<img src="../media/present.png">`+
		`<img src="../media/with%20space.png">`+
		`<img src="media/present.png">`+
		`<img src="local.png">`+
		`<img src="/rooted.png">`+
		`<img src="https://cdn.example.com/x.png">`+
		`<img src="//cdn.example.com/y.png">`+
		`<img src="data:image/png;base64,AAAA">`))
	writeFile(t, root, "posts/missing.html", page(long+
		`<img src="../media/gone.png"><img src="../media/present.png"><img src="nope.jpg">`))
	writeFile(t, root, "posts/broken.html", page(long+`<img><img src="  "><img src="">`))

	report, err := NewAuditor(nil).Run(root)
	require.NoError(t, err)

	require.Len(t, report.PostsWithMissingImages, 1)
	assert.Equal(t, MissingImagesEntry{
		File:          "missing.html",
		MissingImages: []string{"../media/gone.png", "nope.jpg"},
	}, report.PostsWithMissingImages[0])

	require.Len(t, report.PostsWithBrokenImgTags, 1)
	assert.Equal(t, BrokenTagEntry{File: "broken.html", Issue: "Empty src attribute"}, report.PostsWithBrokenImgTags[0])

	assert.Equal(t, Counts{MissingMedia: 1, BrokenTag: 1}, report.Counts)
	assert.Contains(t, report.Findings, Finding{
		File: "missing.html", Category: CategoryMissingMedia, Detail: "../media/gone.png, nope.jpg",
	})
}

func TestRun_RecordsUnreadableFilesAndContinues(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "posts/good.html", page("<p>"+strings.Repeat("g", 60)+"</p>"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "posts", "dir.html"), 0o750))
	require.NoError(t, os.Symlink(filepath.Join(root, "does-not-exist"), filepath.Join(root, "posts", "dangling.html")))

	report, err := NewAuditor(nil).Run(root)
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalPosts)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "dangling.html", report.Errors[0].File)
	assert.Zero(t, report.Counts.Total())
}

func TestRun_NoPostsDirectory(t *testing.T) {
	report, err := NewAuditor(nil).Run(t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, report.TotalPosts)
}

func TestRun_DoesNotModifyPages(t *testing.T) {
	root := t.TempDir()
	content := page(`<img src="../media/gone.png"><img src="">`)
	writeFile(t, root, "posts/p.html", content)

	_, err := NewAuditor(nil).Run(root)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(root, "posts", "p.html"))
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestResolveLocal_StaysUnderSiteRoot(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"../media/a.png", "media/a.png"},
		{"media/a.png", "media/a.png"},
		{"/media/a.png", "media/a.png"},
		{"a.png", "posts/a.png"},
		{"../media/../../x", "x"},
		{"media/../../x", "x"},
		{"/../../x", "x"},
		{"../../../x", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveLocal(tt.src))
		})
	}
}

func TestRun_ImageOutsideSiteRootIsMissing(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "site")
	writeFile(t, parent, "x.png", "png")
	writeFile(t, root, "posts/deep.html", page(`<p>`+strings.Repeat("y", 120)+`</p><img src="../media/../../../x.png">`))
	writeFile(t, root, "posts/shallow.html", page(`<p>`+strings.Repeat("y", 120)+`</p><img src="../media/../../x.png">`))

	report, err := NewAuditor(nil).Run(root)
	require.NoError(t, err)
	require.Len(t, report.PostsWithMissingImages, 2)
}

func TestWriteJSON(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "posts/short.html", page("<p>hi</p>"))

	report, err := NewAuditor(nil).Run(root)
	require.NoError(t, err)
	require.NoError(t, WriteJSON(root, report))

	info, err := os.Stat(filepath.Join(root, ReportFilename))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	data, err := os.ReadFile(filepath.Join(root, ReportFilename))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"total_posts\": 1,")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{
		"total_posts", "empty_posts", "minimal_content_posts",
		"posts_with_missing_images", "posts_with_broken_img_tags",
		"findings", "errors", "counts",
	} {
		assert.Contains(t, decoded, key)
	}
	assert.Equal(t, []any{}, decoded["posts_with_missing_images"])
	assert.Equal(t, map[string]any{
		"empty": float64(1), "minimal": float64(0), "missing_media": float64(0), "broken_tag": float64(0),
	}, decoded["counts"])
}

func TestWriteText(t *testing.T) {
	report := newReport()
	report.TotalPosts = 3
	report.EmptyPosts = append(report.EmptyPosts, ContentEntry{File: "日本.html", ContentLength: 2, ContentPreview: "hi"})
	report.MinimalContentPosts = append(report.MinimalContentPosts, ContentEntry{
		File: "m.html", ContentLength: 20, ContentPreview: strings.Repeat("p", 80),
	})
	report.PostsWithBrokenImgTags = append(report.PostsWithBrokenImgTags, BrokenTagEntry{File: "b.html", Issue: brokenTagIssue})
	report.addFinding("日本.html", CategoryEmpty, "2 chars")
	report.addFinding("m.html", CategoryMinimal, "20 chars")
	report.addFinding("b.html", CategoryBrokenTag, brokenTagIssue)
	report.tally()

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, report))
	out := buf.String()

	assert.Contains(t, out, "BLOG POST AUDIT REPORT")
	assert.Contains(t, out, "Total posts analyzed: 3")
	assert.Contains(t, out, "--- Empty Posts (1) ---")
	assert.Contains(t, out, "--- Minimal Content Posts (1) ---")
	assert.Contains(t, out, "--- Posts with Broken Image Tags (1) ---")
	assert.NotContains(t, out, "No issues found.")

	// Wide names are padded by display width: both lines put the count at the same column.
	var wide, narrow string
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "  - 日本.html"):
			wide = line
		case strings.HasPrefix(line, "  - m.html"):
			narrow = line
		}
	}
	require.NotEmpty(t, wide)
	require.NotEmpty(t, narrow)
	assert.Equal(t, len("  - ")+fileColumn, strings.Index(narrow, " (20 chars)"))
	assert.Equal(t, len("  - ")+fileColumn+len("日本")-4, strings.Index(wide, " (2 chars)"))
	assert.Contains(t, out, "Preview: "+strings.Repeat("p", 47)+"...")
}

func TestWriteText_Clean(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, newReport()))
	assert.Contains(t, buf.String(), "No issues found.")
}

type fakeStream struct {
	subjects []string
	events   []FindingEvent
	failOn   string
}

func (f *fakeStream) Publish(_ context.Context, subject string, payload []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	var ev FindingEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	if ev.File == f.failOn {
		return nil, errors.New("no responders")
	}
	f.subjects = append(f.subjects, subject)
	f.events = append(f.events, ev)
	return &jetstream.PubAck{Stream: "TEST"}, nil
}

func TestPublisher_PublishContinuesPastFailures(t *testing.T) {
	stream := &fakeStream{failOn: "bad.html"}
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &Publisher{js: stream, subject: "audit.findings", now: func() time.Time { return fixed }, logger: discardLogger()}

	report := newReport()
	report.addFinding("a.html", CategoryEmpty, "0 chars")
	report.addFinding("bad.html", CategoryBrokenTag, brokenTagIssue)
	report.addFinding("c.html", CategoryMissingMedia, "../media/x.png")

	sent := p.Publish(t.Context(), "build-1", report)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"audit.findings", "audit.findings"}, stream.subjects)
	assert.Equal(t, FindingEvent{
		BuildID: "build-1", File: "c.html", Category: CategoryMissingMedia,
		Detail: "../media/x.png", Timestamp: fixed,
	}, stream.events[1])
	p.Close()
}

func TestNewPublisher_Disabled(t *testing.T) {
	_, err := NewPublisher(t.Context(), configDisabled(), nil)
	require.Error(t, err)
}
