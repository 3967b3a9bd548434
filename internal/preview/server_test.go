package preview

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/metrics"
	"git.home.luguber.info/inful/blogbuilder/internal/site"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBuilder struct {
	mu       sync.Mutex
	calls    int
	triggers []string
	out      string
	err      error
	release  chan struct{}
	started  chan struct{}
}

func (f *fakeBuilder) Generate(ctx context.Context, trigger string) (*site.Report, error) {
	f.mu.Lock()
	f.calls++
	f.triggers = append(f.triggers, trigger)
	f.mu.Unlock()

	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return &site.Report{Routes: []string{}}, ctx.Err()
		}
	}
	return &site.Report{
		BuildID: "fake",
		Routes:  []string{"/blog/fake"},
		Outcome: metrics.OutcomeSuccess,
	}, f.err
}

func (f *fakeBuilder) OutputDir() string { return f.out }

func (f *fakeBuilder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func siteConfig(t *testing.T, files map[string]string) *config.Config {
	t.Helper()
	root := t.TempDir()
	postsDir := filepath.Join(root, "posts")
	if files != nil {
		require.NoError(t, os.MkdirAll(postsDir, 0o750))
		for name, content := range files {
			require.NoError(t, os.WriteFile(filepath.Join(postsDir, name), []byte(content), 0o600))
		}
	}
	cfg := config.Default()
	cfg.Posts.Dir = postsDir
	cfg.Output.Directory = filepath.Join(root, "public")
	return cfg
}

func newSiteServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	gen, err := site.NewGenerator(cfg, site.WithLogger(discardLogger()))
	require.NoError(t, err)
	return New(cfg, gen, WithLogger(discardLogger()))
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeRoutes(t *testing.T, rec *httptest.ResponseRecorder) RoutesResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code)
	var resp RoutesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth_BeforeFirstBuild(t *testing.T) {
	s := New(config.Default(), &fakeBuilder{out: t.TempDir()}, WithLogger(discardLogger()))

	rec := get(t, s.Handler(), "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "starting", resp.Status)

	rec = get(t, s.Handler(), "/routes")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRebuild_ServesGeneratedSite(t *testing.T) {
	cfg := siteConfig(t, map[string]string{
		"hello.md": "---\ntitle: Hello\n---\n# Hello\n\nFirst post.\n",
	})
	s := newSiteServer(t, cfg)

	report, err := s.Rebuild(context.Background(), site.TriggerCLI)
	require.NoError(t, err)
	require.Equal(t, []string{"/blog/hello"}, report.Routes)

	rec := get(t, s.Handler(), "/blog/hello/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "First post.")
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-cache")

	rec = get(t, s.Handler(), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/blog/hello")

	resp := decodeRoutes(t, get(t, s.Handler(), "/routes"))
	assert.Equal(t, report.BuildID, resp.BuildID)
	assert.Equal(t, []string{"/blog/hello"}, resp.Routes)
	assert.Equal(t, "/blog/", resp.Prefix)
	assert.Empty(t, resp.EnumerationError)

	rec = get(t, s.Handler(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Builds)
}

func TestRoutes_ReadFailureDistinctFromEmpty(t *testing.T) {
	empty := newSiteServer(t, siteConfig(t, map[string]string{}))
	_, err := empty.Rebuild(context.Background(), site.TriggerCLI)
	require.NoError(t, err)
	emptyResp := decodeRoutes(t, get(t, empty.Handler(), "/routes"))
	assert.Equal(t, []string{}, emptyResp.Routes)
	assert.Empty(t, emptyResp.EnumerationError)

	missing := newSiteServer(t, siteConfig(t, nil))
	_, err = missing.Rebuild(context.Background(), site.TriggerCLI)
	require.NoError(t, err)
	missingResp := decodeRoutes(t, get(t, missing.Handler(), "/routes"))
	assert.Equal(t, []string{}, missingResp.Routes)
	assert.NotEmpty(t, missingResp.EnumerationError)
	assert.Equal(t, string(metrics.OutcomeWarning), missingResp.Outcome)
}

func TestRoutes_EmptyPrefix(t *testing.T) {
	cfg := siteConfig(t, map[string]string{"hello.md": "# Hello\n"})
	cfg.Routes.Prefix = ""
	s := newSiteServer(t, cfg)

	_, err := s.Rebuild(context.Background(), site.TriggerCLI)
	require.NoError(t, err)

	resp := decodeRoutes(t, get(t, s.Handler(), "/routes"))
	assert.Equal(t, []string{"hello"}, resp.Routes)
	assert.Empty(t, resp.Prefix)
}

func TestStatic_FailedBuildWithoutGoodBuild(t *testing.T) {
	fb := &fakeBuilder{out: t.TempDir(), err: errors.New("output not writable")}
	s := New(config.Default(), fb, WithLogger(discardLogger()))

	_, err := s.Rebuild(context.Background(), site.TriggerCLI)
	require.Error(t, err)

	rec := get(t, s.Handler(), "/")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "output not writable")

	rec = get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth_DegradedAfterGoodBuild(t *testing.T) {
	fb := &fakeBuilder{out: t.TempDir()}
	s := New(config.Default(), fb, WithLogger(discardLogger()))

	_, err := s.Rebuild(context.Background(), site.TriggerCLI)
	require.NoError(t, err)

	fb.err = errors.New("boom")
	_, err = s.Rebuild(context.Background(), site.TriggerWatch)
	require.Error(t, err)

	rec := get(t, s.Handler(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "boom", health.Error)
	assert.Equal(t, 2, health.Builds)
}

func TestRebuild_CollapsesConcurrentCalls(t *testing.T) {
	fb := &fakeBuilder{
		out:     t.TempDir(),
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	s := New(config.Default(), fb, WithLogger(discardLogger()))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.Rebuild(context.Background(), site.TriggerWatch)
	}()
	<-fb.started

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Rebuild(context.Background(), site.TriggerSchedule)
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(fb.release)
	wg.Wait()

	assert.Equal(t, 1, fb.callCount())
}

func TestRebuild_CanceledIsNotRecorded(t *testing.T) {
	fb := &fakeBuilder{out: t.TempDir(), release: make(chan struct{})}
	s := New(config.Default(), fb, WithLogger(discardLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Rebuild(ctx, site.TriggerWatch)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 0, s.status.snapshot().Builds)
}

func TestRequestReload_SwapsBuilder(t *testing.T) {
	first := &fakeBuilder{out: t.TempDir()}
	second := &fakeBuilder{out: t.TempDir()}
	s := New(config.Default(), first,
		WithLogger(discardLogger()),
		WithReload(func() (*config.Config, Builder, error) {
			cfg := config.Default()
			cfg.Routes.Prefix = "/posts/"
			return cfg, second, nil
		}))

	_, err := s.Rebuild(context.Background(), site.TriggerCLI)
	require.NoError(t, err)

	s.RequestReload()
	_, err = s.Rebuild(context.Background(), site.TriggerWatch)
	require.NoError(t, err)

	assert.Equal(t, 1, first.callCount())
	assert.Equal(t, 1, second.callCount())
	assert.Equal(t, second.out, s.outputDir())
	assert.Equal(t, "/posts/", s.routePrefix())
}

func TestRequestReload_AnnouncesNewPostsDir(t *testing.T) {
	fb := &fakeBuilder{out: t.TempDir()}
	newDir := filepath.Join(t.TempDir(), "posts")
	s := New(config.Default(), fb,
		WithLogger(discardLogger()),
		WithReload(func() (*config.Config, Builder, error) {
			cfg := config.Default()
			cfg.Posts.Dir = newDir
			return cfg, fb, nil
		}))

	s.RequestReload()
	_, err := s.Rebuild(context.Background(), site.TriggerWatch)
	require.NoError(t, err)

	select {
	case dir := <-s.postsDirChanged:
		assert.Equal(t, newDir, dir)
	default:
		t.Fatal("expected the new posts dir to be announced")
	}

	s.RequestReload()
	_, err = s.Rebuild(context.Background(), site.TriggerWatch)
	require.NoError(t, err)
	assert.Empty(t, s.postsDirChanged, "an unchanged posts dir is not announced again")
}

func TestRequestReload_FailureKeepsBuilder(t *testing.T) {
	fb := &fakeBuilder{out: t.TempDir()}
	s := New(config.Default(), fb,
		WithLogger(discardLogger()),
		WithReload(func() (*config.Config, Builder, error) { return nil, nil, errors.New("bad yaml") }))

	s.RequestReload()
	_, err := s.Rebuild(context.Background(), site.TriggerWatch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad yaml")
	assert.Equal(t, 0, fb.callCount())
	assert.Equal(t, fb.out, s.outputDir())

	_, err = s.Rebuild(context.Background(), site.TriggerWatch)
	require.NoError(t, err)
	assert.Equal(t, 1, fb.callCount())
}

func TestMetricsEndpoint(t *testing.T) {
	reg := metrics.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	rec.IncBuildOutcome(metrics.OutcomeSuccess)

	s := New(config.Default(), &fakeBuilder{out: t.TempDir()},
		WithLogger(discardLogger()),
		WithRegistry(reg))

	resp := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, strings.Contains(resp.Body.String(), "blogbuilder_build_outcomes_total"))
}

func TestMetricsEndpoint_DisabledWithoutRegistry(t *testing.T) {
	s := New(config.Default(), &fakeBuilder{out: t.TempDir()}, WithLogger(discardLogger()))
	_, err := s.Rebuild(context.Background(), site.TriggerCLI)
	require.NoError(t, err)

	rec := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
