package commands

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/blogbuilder/internal/audit"
	ferrors "git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/sitemap"
)

const testExport = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:wp="http://wordpress.org/export/1.2/">
<channel><title>Export</title>
<item><title>First Post</title><guid>post-1</guid><pubDate>Wed, 01 Jan 2020 10:00:00 +0000</pubDate>
<content:encoded><![CDATA[<p>` + "This post has more than enough words to pass the minimal content threshold of the audit." + `</p>]]></content:encoded></item>
</channel></rss>
`

func writeTestExport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.xml")
	require.NoError(t, os.WriteFile(path, []byte(testExport), 0o600))
	return path
}

// writeTestConfig writes yaml to a config file, or returns a path that does
// not exist when yaml is empty so that defaults apply.
func writeTestConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blogbuilder.yaml")
	if yaml != "" {
		require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	}
	return path
}

func testGlobal(t *testing.T) (*Global, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return &Global{
		Ctx:    t.Context(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Out:    &out,
	}, &out
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		env     string
		verbose bool
		want    slog.Level
	}{
		{"", false, slog.LevelInfo},
		{"", true, slog.LevelDebug},
		{"error", true, slog.LevelDebug},
		{"DEBUG", false, slog.LevelDebug},
		{"warn", false, slog.LevelWarn},
		{"warning", false, slog.LevelWarn},
		{"error", false, slog.LevelError},
		{"bogus", false, slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("BLOGBUILDER_LOG_LEVEL", tt.env)
			assert.Equal(t, tt.want, parseLogLevel(tt.verbose))
		})
	}
}

func TestCLI_ParsesBuildFlags(t *testing.T) {
	export := writeTestExport(t)
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"})
	require.NoError(t, err)

	kctx, err := parser.Parse([]string{
		"-c", "custom.yaml", "build",
		"--export", export, "-o", "out", "--base-url", "https://example.com", "--skip-media",
	})
	require.NoError(t, err)
	assert.Equal(t, "build", kctx.Command())
	assert.Equal(t, "custom.yaml", cli.Config)
	assert.Equal(t, export, cli.Build.Export)
	assert.Equal(t, "out", cli.Build.Output)
	assert.Equal(t, "https://example.com", cli.Build.BaseURL)
	assert.True(t, cli.Build.SkipMedia)
	assert.False(t, cli.Build.SkipAudit)
}

func TestCLI_BuildRequiresExport(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"})
	require.NoError(t, err)
	_, err = parser.Parse([]string{"build"})
	require.Error(t, err)
}

func TestBaseURL_FlagWinsOverConfig(t *testing.T) {
	root := &CLI{Config: writeTestConfig(t, "site:\n  base_url: https://config.example.com\n")}
	g, _ := testGlobal(t)
	out := filepath.Join(t.TempDir(), "site")

	cmd := &BuildCmd{Export: writeTestExport(t), Output: out, BaseURL: "https://flag.example.com", SkipMedia: true}
	require.NoError(t, cmd.Run(g, root))

	data, err := os.ReadFile(filepath.Join(out, sitemap.Filename))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<loc>https://flag.example.com/</loc>")
	assert.NotContains(t, string(data), "config.example.com")
}

func TestBuildCmd_WritesSiteSitemapAndAudit(t *testing.T) {
	root := &CLI{Config: writeTestConfig(t, "site:\n  base_url: https://example.com\n")}
	g, stdout := testGlobal(t)
	out := filepath.Join(t.TempDir(), "site")

	cmd := &BuildCmd{Export: writeTestExport(t), Output: out, SkipMedia: true}
	require.NoError(t, cmd.Run(g, root))

	for _, name := range []string{"index.html", "blog.html", "about.html", "posts/first-post.html", sitemap.Filename, audit.ReportFilename} {
		assert.FileExists(t, filepath.Join(out, name))
	}
	assert.Contains(t, stdout.String(), "outcome=success")
	assert.Contains(t, stdout.String(), "Site written to "+out)
}

func TestBuildCmd_MissingBaseURLIsValidationError(t *testing.T) {
	root := &CLI{Config: writeTestConfig(t, "")}
	g, stdout := testGlobal(t)
	out := filepath.Join(t.TempDir(), "site")

	err := (&BuildCmd{Export: writeTestExport(t), Output: out, SkipMedia: true}).Run(g, root)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	assert.NoDirExists(t, out)
	assert.NotContains(t, stdout.String(), "Site written")
}

func TestGenerateCmd_SkipsSitemapAndAudit(t *testing.T) {
	root := &CLI{Config: writeTestConfig(t, "")}
	g, _ := testGlobal(t)
	out := filepath.Join(t.TempDir(), "site")

	require.NoError(t, (&GenerateCmd{Export: writeTestExport(t), Output: out, SkipMedia: true}).Run(g, root))

	assert.FileExists(t, filepath.Join(out, "index.html"))
	assert.NoFileExists(t, filepath.Join(out, sitemap.Filename))
	assert.NoFileExists(t, filepath.Join(out, audit.ReportFilename))
}

func TestBuildCmd_WritesMetricsTextfileAndHistory(t *testing.T) {
	dir := t.TempDir()
	metricsPath := filepath.Join(dir, "blogbuilder.prom")
	dbPath := filepath.Join(dir, "history.db")
	root := &CLI{Config: writeTestConfig(t,
		"site:\n  base_url: https://example.com\n"+
			"history:\n  database: "+dbPath+"\n"+
			"metrics:\n  textfile: "+metricsPath+"\n")}
	export := writeTestExport(t)

	for range 2 {
		g, _ := testGlobal(t)
		require.NoError(t, (&BuildCmd{Export: export, Output: filepath.Join(dir, "site"), SkipMedia: true}).Run(g, root))
	}

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "blogbuilder_build_outcomes_total")

	g, stdout := testGlobal(t)
	require.NoError(t, (&HistoryCmd{Limit: 10}).Run(g, root))
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "BUILD"))
	assert.Contains(t, lines[1], "success")
	assert.Contains(t, lines[2], "success")

	g, stdout = testGlobal(t)
	require.NoError(t, (&HistoryCmd{Limit: 1}).Run(g, root))
	assert.Len(t, strings.Split(strings.TrimSpace(stdout.String()), "\n"), 2)
}

func TestHistoryCmd_DisabledIsConfigError(t *testing.T) {
	root := &CLI{Config: writeTestConfig(t, "")}
	g, _ := testGlobal(t)

	err := (&HistoryCmd{Limit: 10}).Run(g, root)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestHistoryCmd_UnknownBuild(t *testing.T) {
	root := &CLI{Config: writeTestConfig(t, "history:\n  database: "+filepath.Join(t.TempDir(), "h.db")+"\n")}
	g, _ := testGlobal(t)

	err := (&HistoryCmd{Build: "nope"}).Run(g, root)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestSitemapCmd(t *testing.T) {
	site := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(site, "index.html"), []byte("<html></html>"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(site, "posts"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(site, "posts", "a.html"), []byte("<html></html>"), 0o600))
	root := &CLI{Config: writeTestConfig(t, "")}

	t.Run("requires base URL", func(t *testing.T) {
		g, _ := testGlobal(t)
		err := (&SitemapCmd{Output: site}).Run(g, root)
		require.Error(t, err)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	})

	t.Run("rejects relative base URL", func(t *testing.T) {
		g, _ := testGlobal(t)
		err := (&SitemapCmd{Output: site, BaseURL: "example.com"}).Run(g, root)
		require.Error(t, err)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	})

	t.Run("missing site", func(t *testing.T) {
		g, _ := testGlobal(t)
		err := (&SitemapCmd{Output: filepath.Join(site, "missing"), BaseURL: "https://example.com"}).Run(g, root)
		require.Error(t, err)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryInput))
	})

	t.Run("writes sitemap", func(t *testing.T) {
		g, stdout := testGlobal(t)
		require.NoError(t, (&SitemapCmd{Output: site, BaseURL: "https://example.com"}).Run(g, root))
		assert.Equal(t, "Wrote 2 URLs to sitemap.xml\n", stdout.String())
		assert.FileExists(t, filepath.Join(site, sitemap.Filename))
	})
}

func TestAuditCmd(t *testing.T) {
	site := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(site, "posts"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(site, "posts", "empty.html"),
		[]byte("<html><body><main><h1>Empty</h1></main></body></html>"), 0o600))
	root := &CLI{Config: writeTestConfig(t, "")}

	g, stdout := testGlobal(t)
	require.NoError(t, (&AuditCmd{Output: site}).Run(g, root))
	assert.Contains(t, stdout.String(), "BLOG POST AUDIT REPORT")
	assert.Contains(t, stdout.String(), "empty.html")
	assert.FileExists(t, filepath.Join(site, audit.ReportFilename))

	g, stdout = testGlobal(t)
	require.NoError(t, (&AuditCmd{Output: site, JSONOnly: true}).Run(g, root))
	assert.Empty(t, stdout.String())
}

func TestInitCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blogbuilder.yaml")
	root := &CLI{Config: path}

	g, stdout := testGlobal(t)
	require.NoError(t, (&InitCmd{}).Run(g, root))
	assert.Contains(t, stdout.String(), "initialized successfully")
	assert.FileExists(t, path)

	g, _ = testGlobal(t)
	err := (&InitCmd{}).Run(g, root)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	g, _ = testGlobal(t)
	require.NoError(t, (&InitCmd{Force: true}).Run(g, root))
}

func TestMediaThenGenerateSkipMediaKeepsFetchedImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("png"))
	}))
	defer srv.Close()

	export := filepath.Join(t.TempDir(), "export.xml")
	require.NoError(t, os.WriteFile(export, []byte(strings.Replace(testExport,
		"</p>]]>", `</p><img src="`+srv.URL+`/a/cat.png">]]>`, 1)), 0o600))
	root := &CLI{Config: writeTestConfig(t, "")}
	out := filepath.Join(t.TempDir(), "site")

	g, stdout := testGlobal(t)
	require.NoError(t, (&MediaCmd{Export: export, Output: out}).Run(g, root))
	assert.Equal(t, "Fetched 1 of 1 images (0 failed)\n", stdout.String())
	require.FileExists(t, filepath.Join(out, "media", "cat.png"))

	g, _ = testGlobal(t)
	require.NoError(t, (&GenerateCmd{Export: export, Output: out, SkipMedia: true}).Run(g, root))

	assert.FileExists(t, filepath.Join(out, "media", "cat.png"))
	data, err := os.ReadFile(filepath.Join(out, "posts", "first-post.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `<img src="../media/cat.png"/>`)
	assert.NotContains(t, string(data), srv.URL)
}
