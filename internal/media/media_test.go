package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/post"
	"git.home.luguber.info/inful/blogbuilder/internal/retry"
)

func fastPolicy(retries int) retry.Policy {
	return retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, retries)
}

func newTestResolver(t *testing.T, opts Options) (*Resolver, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "media")
	store, err := NewStore(dir)
	require.NoError(t, err)
	if opts.Retry.Initial == 0 {
		opts.Retry = fastPolicy(0)
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	return NewResolver(store, opts), dir
}

func TestExtractRefs(t *testing.T) {
	body := `<p>intro<img src="https://cdn.example.org/a.jpg"></p><div><img alt="x"><img src=""></div><img src="b.png"/>`
	refs, err := ExtractRefs(body)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example.org/a.jpg", "", "", "b.png"}, refs)

	refs, err = ExtractRefs("<p>no images</p>")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestPlanCollisionPolicy(t *testing.T) {
	p := newPlan()
	add := func(raw string) string {
		u, ok := fetchable(raw)
		require.True(t, ok, raw)
		return p.entries[p.add(raw, u)].Filename
	}

	first := add("https://a.example.org/img/photo.jpg")
	second := add("https://b.example.org/other/photo.jpg")
	again := add("https://a.example.org/img/photo.jpg")
	nameless := add("https://c.example.org/")
	encoded := add("https://d.example.org/my%20pic.png")

	assert.Equal(t, "photo.jpg", first)
	assert.Equal(t, "photo-"+urlHash("https://b.example.org/other/photo.jpg", 8)+".jpg", second)
	assert.Equal(t, first, again)
	assert.Equal(t, "media-"+urlHash("https://c.example.org/", 8), nameless)
	assert.Equal(t, "my pic.png", encoded)
	assert.Len(t, p.entries, 4)
}

func TestFetchable(t *testing.T) {
	tests := map[string]bool{
		"https://example.org/a.jpg": true,
		"http://example.org/a.jpg":  true,
		"../media/a.jpg":            false,
		"data:image/png;base64,AA":  false,
		"ftp://example.org/a.jpg":   false,
		"https:///nohost.jpg":       false,
	}
	for raw, want := range tests {
		_, got := fetchable(raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestResolveRewritesAndDropsImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.jpg":
			_, _ = w.Write([]byte("jpeg-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	res, dir := newTestResolver(t, Options{Workers: 2})
	posts := []post.Post{
		{Title: "one", Body: `<p>a <img src="` + srv.URL + `/ok.jpg" srcset="` + srv.URL + `/ok-2x.jpg 2x"> b</p>`},
		{Title: "two", Body: `<p>plain text, untouched &amp; raw</p>`},
		{Title: "three", Body: `<img src="` + srv.URL + `/missing.jpg"><p>after</p><img src="">`},
		{Title: "four", Body: `<p><img src="` + srv.URL + `/ok.jpg"></p>`},
	}

	out, stats, err := res.Resolve(t.Context(), posts)
	require.NoError(t, err)

	assert.Equal(t, `<p>a <img src="../media/ok.jpg"/> b</p>`, out[0].Body)
	assert.Equal(t, posts[1].Body, out[1].Body, "bodies without images stay byte-identical")
	assert.Equal(t, `<p>after</p>`, out[2].Body)
	assert.Equal(t, `<p><img src="../media/ok.jpg"/></p>`, out[3].Body)

	data, err := os.ReadFile(filepath.Join(dir, "ok.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	require.Len(t, out[2].MediaRefs, 2)
	assert.Equal(t, ReasonFetchFailed, out[2].MediaRefs[0].Reason)
	assert.Equal(t, ReasonEmptySrc, out[2].MediaRefs[1].Reason)
	assert.True(t, out[0].MediaRefs[0].Resolved)

	assert.Equal(t, Stats{Referenced: 4, Distinct: 2, Fetched: 1, Failed: 1, Removed: 2}, stats)
	assert.Empty(t, posts[0].MediaRefs, "input posts are not mutated")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestResolveFetchesIdenticalURLOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	res, _ := newTestResolver(t, Options{Workers: 4})
	img := `<img src="` + srv.URL + `/same.png">`
	_, stats, err := res.Resolve(t.Context(), []post.Post{{Body: img}, {Body: img}, {Body: img + img}})
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 4, stats.Referenced)
	assert.Equal(t, 1, stats.Distinct)
}

func TestResolveRetriesTransientFailures(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls[r.URL.Path]++
		n := calls[r.URL.Path]
		mu.Unlock()
		switch r.URL.Path {
		case "/flaky.jpg":
			if n < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("ok"))
		case "/gone.jpg":
			w.WriteHeader(http.StatusGone)
		case "/limited.jpg":
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}))
	defer srv.Close()

	res, _ := newTestResolver(t, Options{Workers: 3, Retry: fastPolicy(2)})
	body := `<img src="` + srv.URL + `/flaky.jpg"><img src="` + srv.URL + `/gone.jpg"><img src="` + srv.URL + `/limited.jpg">`
	out, stats, err := res.Resolve(t.Context(), []post.Post{{Body: body}})
	require.NoError(t, err)

	assert.Equal(t, `<img src="../media/flaky.jpg"/>`, out[0].Body)
	assert.Equal(t, 3, calls["/flaky.jpg"])
	assert.Equal(t, 1, calls["/gone.jpg"], "permanent failures are not retried")
	assert.Equal(t, 3, calls["/limited.jpg"])
	assert.Equal(t, 1, stats.Fetched)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 4, stats.Retried)
}

func TestResolveEnforcesMaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	res, dir := newTestResolver(t, Options{Workers: 1, MaxBytes: 16})
	out, stats, err := res.Resolve(t.Context(), []post.Post{{Body: `<img src="` + srv.URL + `/big.bin">`}})
	require.NoError(t, err)
	assert.Empty(t, out[0].Body)
	assert.Equal(t, 1, stats.Failed)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResolveTimesOutSlowServers(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	res, _ := newTestResolver(t, Options{Workers: 1, Timeout: 50 * time.Millisecond})
	_, stats, err := res.Resolve(t.Context(), []post.Post{{Body: `<img src="` + srv.URL + `/slow.jpg">`}})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
}

func TestResolveCanceled(t *testing.T) {
	res, _ := newTestResolver(t, Options{Workers: 1})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, _, err := res.Resolve(ctx, []post.Post{{Body: `<img src="https://unreachable.invalid/a.jpg">`}})
	require.Error(t, err)
}

func TestResolveUnsupportedURLsAreRemoved(t *testing.T) {
	res, _ := newTestResolver(t, Options{})
	out, stats, err := res.Resolve(t.Context(), []post.Post{{Body: `<p>x<img src="/wp-content/a.jpg">y</p>`}})
	require.NoError(t, err)
	assert.Equal(t, `<p>xy</p>`, out[0].Body)
	assert.Equal(t, ReasonUnsupportedURL, out[0].MediaRefs[0].Reason)
	assert.Equal(t, 0, stats.Distinct)
	assert.Equal(t, 1, stats.Removed)
}

func TestResolveEscapesLocalNames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	res, dir := newTestResolver(t, Options{})
	out, _, err := res.Resolve(t.Context(), []post.Post{{Body: `<img src="` + srv.URL + `/my%20photo%3F.jpg">`}})
	require.NoError(t, err)
	assert.Equal(t, `<img src="../media/`+url.PathEscape("my photo?.jpg")+`"/>`, out[0].Body)
	_, err = os.Stat(filepath.Join(dir, "my photo?.jpg"))
	require.NoError(t, err)
}

func TestRelink_SanitizesWithoutImages(t *testing.T) {
	res, _ := newTestResolver(t, Options{SanitizeBody: true})
	out, stats, err := res.Relink([]post.Post{{Body: `<p onclick="x()">hi</p><script>alert(1)</script>`}})
	require.NoError(t, err)
	assert.Equal(t, `<p>hi</p>`, out[0].Body)
	assert.Zero(t, stats.Referenced)

	plain, _ := newTestResolver(t, Options{})
	in := []post.Post{{Body: `<script>x</script>`}}
	out, _, err = plain.Relink(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRelink_LinksStoredFilesAndDropsTheRest(t *testing.T) {
	res, dir := newTestResolver(t, Options{})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cat.png"), []byte("png"), 0o644))

	out, stats, err := res.Relink([]post.Post{{
		Title: "Pets",
		Body:  `<p><img src="https://cdn.example.org/a/cat.png"><img src="https://cdn.example.org/dog.png"><img src=""></p>`,
	}})
	require.NoError(t, err)

	assert.Equal(t, `<p><img src="../media/cat.png"/></p>`, out[0].Body)
	assert.Equal(t, 3, stats.Referenced)
	assert.Equal(t, 2, stats.Distinct)
	assert.Equal(t, 1, stats.Linked)
	assert.Equal(t, 2, stats.Removed)
	assert.Zero(t, stats.Fetched)
	require.Len(t, out[0].MediaRefs, 3)
	assert.Equal(t, ReasonNotStored, out[0].MediaRefs[1].Reason)
	assert.Equal(t, ReasonEmptySrc, out[0].MediaRefs[2].Reason)
}

func TestRelink_MatchesResolveForTheSamePosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	posts := []post.Post{
		{Body: `<img src="` + srv.URL + `/a/cat.jpg">`},
		{Body: `<img src="` + srv.URL + `/b/cat.jpg"><img src="` + srv.URL + `/a/cat.jpg">`},
	}
	res, _ := newTestResolver(t, Options{})
	fetched, _, err := res.Resolve(t.Context(), posts)
	require.NoError(t, err)

	linked, stats, err := res.Relink(posts)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Linked)
	assert.Zero(t, stats.Removed)
	for i := range posts {
		assert.Equal(t, fetched[i].Body, linked[i].Body)
	}
}

func TestRelink_MissingStoreDropsImages(t *testing.T) {
	res := NewResolver(OpenStore(filepath.Join(t.TempDir(), "absent")), Options{})
	out, stats, err := res.Relink([]post.Post{{Body: `<p>x<img src="https://cdn.example.org/a.png"></p>`}})
	require.NoError(t, err)
	assert.Equal(t, `<p>x</p>`, out[0].Body)
	assert.Equal(t, 1, stats.Removed)
}
