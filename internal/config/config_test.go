package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	berrors "git.home.luguber.info/inful/blogbuilder/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blogbuilder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Setenv(DescriptionEnv, "")
	path := writeConfig(t, "site:\n  title: My Blog\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "My Blog", cfg.Site.Title)
	assert.Equal(t, DefaultPostsDir, cfg.Posts.Dir)
	assert.Equal(t, SourceDirectory, cfg.Posts.Source)
	assert.Equal(t, StemLegacy, cfg.Posts.StemMode)
	assert.True(t, cfg.Posts.FilterExtension)
	assert.Equal(t, DefaultRoutePrefix, cfg.Routes.Prefix)
	assert.Equal(t, DefaultOutputDir, cfg.Output.Directory)
	assert.True(t, cfg.Output.Clean)
	assert.True(t, cfg.Markdown.GFM)
	assert.Equal(t, DefaultPreviewPort, cfg.Preview.Port)
	assert.Equal(t, DefaultDebounce, cfg.Preview.Debounce)
}

func TestLoad_ExplicitEmptyPrefixYieldsBareRoutes(t *testing.T) {
	path := writeConfig(t, "routes:\n  prefix: \"\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Routes.Prefix)
}

func TestLoad_ExplicitFalseOverridesDefault(t *testing.T) {
	path := writeConfig(t, "posts:\n  filter_extension: false\noutput:\n  clean: false\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Posts.FilterExtension)
	assert.False(t, cfg.Output.Clean)
}

func TestLoad_ExpandsEnvAndDescriptionFallback(t *testing.T) {
	t.Setenv("POSTS_ROOT", "./content/posts")
	t.Setenv(DescriptionEnv, "Notes from the night shift")
	path := writeConfig(t, "posts:\n  dir: ${POSTS_ROOT}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "./content/posts", cfg.Posts.Dir)
	assert.Equal(t, "Notes from the night shift", cfg.Site.Description)
}

func TestLoad_ParsesDurationsAndEnumsCaseInsensitively(t *testing.T) {
	path := writeConfig(t, `
posts:
  source: Bundled
  stem_mode: EXTENSION
preview:
  debounce: 1s
  rebuild_interval: 5m
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SourceBundled, cfg.Posts.Source)
	assert.Equal(t, StemExtension, cfg.Posts.StemMode)
	assert.Equal(t, time.Second, cfg.Preview.Debounce)
	assert.Equal(t, 5*time.Minute, cfg.Preview.RebuildInterval)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, berrors.IsCategory(err, berrors.CategoryConfig))
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "site: [unterminated\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, berrors.IsCategory(err, berrors.CategoryConfig))
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name  string
		yaml  string
		field string
	}{
		{"unknown source", "posts:\n  source: webpack\n", "posts.source"},
		{"unknown stem mode", "posts:\n  stem_mode: fancy\n", "posts.stem_mode"},
		{"relative prefix", "routes:\n  prefix: blog/\n", "routes.prefix"},
		{"prefix without trailing slash", "routes:\n  prefix: /blog\n", "routes.prefix"},
		{"bad port", "preview:\n  port: 70000\n", "preview.port"},
		{"bad colour", "site:\n  loading_color: white\n", "site.loading_color"},
		{"stylesheet without href", "site:\n  stylesheets:\n    - media: screen\n", "site.stylesheets[0].href"},
		{"output equals posts", "posts:\n  dir: ./same\noutput:\n  directory: same\n", "output.directory"},
		{"output contains posts", "posts:\n  dir: ./assets/posts\noutput:\n  directory: ./assets\n", "output.directory"},
		{"output is working dir", "posts:\n  dir: ./assets/posts\noutput:\n  directory: .\n", "output.directory"},
		{"empty title", "site:\n  title: \"\"\n", "site.title"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml), "inline")
			require.Error(t, err)
			be, ok := berrors.As(err)
			require.True(t, ok, "expected BuildError, got %T", err)
			assert.Equal(t, berrors.CategoryValidation, be.Category)
			assert.Equal(t, tc.field, be.Context["field"])
		})
	}
}

func TestWithin(t *testing.T) {
	assert.True(t, Within("out", "out"))
	assert.True(t, Within("assets", "assets/posts"))
	assert.True(t, Within(".", "assets/posts"))
	assert.False(t, Within("assets/posts", "assets"))
	assert.False(t, Within("public", "posts"))
	assert.False(t, Within("pub", "public/x"))
	assert.True(t, Within("a", "a/..b"))
}

func TestLoad_RejectsOutputContainingConfig(t *testing.T) {
	path := writeConfig(t, "posts:\n  dir: ./posts\n")
	dir := filepath.Dir(path)
	postsDir := filepath.Join(t.TempDir(), "posts")
	cfg := fmt.Sprintf("posts:\n  dir: %s\noutput:\n  directory: %s\n", postsDir, dir)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	be, ok := berrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "output.directory", be.Context["field"])
	assert.Contains(t, be.Context["reason"], "config file")

	keep := fmt.Sprintf("posts:\n  dir: %s\noutput:\n  directory: %s\n  clean: false\n", postsDir, dir)
	require.NoError(t, os.WriteFile(path, []byte(keep), 0o600))
	_, err = Load(path)
	require.NoError(t, err)
}

func TestInit_WritesLoadableExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blogbuilder.yaml")
	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Reyna Neet", cfg.Site.Title)
	assert.Len(t, cfg.Site.Stylesheets, 2)
	assert.Equal(t, "#fff", cfg.Site.LoadingColor)

	err = Init(path, false)
	require.Error(t, err)
	assert.True(t, berrors.IsCategory(err, berrors.CategoryValidation))
	require.NoError(t, Init(path, true))
}

func TestResolveLogLevel(t *testing.T) {
	t.Setenv(LogLevelEnv, "")
	assert.Equal(t, "DEBUG", ResolveLogLevel(LoggingConfig{Level: "error"}, true).String())
	assert.Equal(t, "ERROR", ResolveLogLevel(LoggingConfig{Level: "error"}, false).String())

	t.Setenv(LogLevelEnv, "warn")
	assert.Equal(t, "WARN", ResolveLogLevel(LoggingConfig{Level: "error"}, false).String())
}

func TestLogWriter_TeesToRotatingFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "blogbuilder.log")
	var stderr testWriter
	w, closer := LogWriter(LoggingConfig{File: logFile, MaxSizeMB: 1}, &stderr)

	_, err := w.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
	assert.Equal(t, "hello\n", stderr.String())
}

func TestLogWriter_StderrOnly(t *testing.T) {
	var stderr testWriter
	w, closer := LogWriter(LoggingConfig{}, &stderr)
	_, err := w.Write([]byte("hi\n"))
	require.NoError(t, err)
	assert.Equal(t, "hi\n", stderr.String())
	assert.NoError(t, closer.Close())
}

type testWriter struct{ buf []byte }

func (w *testWriter) Write(p []byte) (int, error) { w.buf = append(w.buf, p...); return len(p), nil }
func (w *testWriter) String() string              { return string(w.buf) }
