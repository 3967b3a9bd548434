// Package site turns the enumerated posts into a static site: one page per route,
// an index, and a routes.json manifest.
package site

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	berrors "git.home.luguber.info/inful/blogbuilder/internal/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/eventstore"
	"git.home.luguber.info/inful/blogbuilder/internal/head"
	"git.home.luguber.info/inful/blogbuilder/internal/loader"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
	"git.home.luguber.info/inful/blogbuilder/internal/markdown"
	"git.home.luguber.info/inful/blogbuilder/internal/metrics"
	"git.home.luguber.info/inful/blogbuilder/internal/notify"
	"git.home.luguber.info/inful/blogbuilder/internal/posts"
)

// Trigger values recorded with BuildStarted.
const (
	TriggerCLI      = "cli"
	TriggerWatch    = "watch"
	TriggerSchedule = "schedule"
)

// Generator builds the site described by a Config. A Generator is safe for sequential
// reuse; callers serialize concurrent Generate calls.
type Generator struct {
	cfg        *config.Config
	outputDir  string
	enumerator posts.Enumerator
	postsFS    fs.FS
	loader     *loader.Loader
	layouts    *layouts
	siteHead   *head.Builder
	store      eventstore.Store
	publisher  notify.Publisher
	recorder   metrics.Recorder
	logger     *slog.Logger
	workers    int
	now        func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithEnumerator overrides the enumerator selected by posts.source.
func WithEnumerator(e posts.Enumerator) Option {
	return func(g *Generator) { g.enumerator = e }
}

// WithPostsFS overrides the file system post files are read from (rooted at the posts dir).
func WithPostsFS(fsys fs.FS) Option {
	return func(g *Generator) { g.postsFS = fsys }
}

// WithOutputDir overrides output.directory.
func WithOutputDir(dir string) Option {
	return func(g *Generator) {
		if dir != "" {
			g.outputDir = dir
		}
	}
}

// WithEventStore records build events in store.
func WithEventStore(store eventstore.Store) Option {
	return func(g *Generator) { g.store = store }
}

func WithPublisher(p notify.Publisher) Option {
	return func(g *Generator) {
		if p != nil {
			g.publisher = p
		}
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(g *Generator) {
		if r != nil {
			g.recorder = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithWorkers bounds concurrent page renders.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// NewGenerator wires a generator from cfg.
func NewGenerator(cfg *config.Config, opts ...Option) (*Generator, error) {
	l, err := parseLayouts()
	if err != nil {
		return nil, berrors.Wrap(err, berrors.CategoryInternal, berrors.SeverityFatal, "parse layout templates")
	}

	g := &Generator{
		cfg:       cfg,
		outputDir: cfg.Output.Directory,
		layouts:   l,
		siteHead:  head.ForSite(cfg.Site),
		publisher: notify.NoopPublisher{},
		recorder:  metrics.NoopRecorder{},
		logger:    slog.Default(),
		workers:   runtime.GOMAXPROCS(0),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	// Checked after options so an output override cannot swallow the posts directory.
	if err := config.CheckOutputDir(g.outputDir, cfg.Posts.Dir, "", cfg.Output.Clean); err != nil {
		return nil, err
	}

	if g.enumerator == nil {
		g.enumerator = posts.FromConfig(cfg, g.logger)
	}
	if g.postsFS == nil {
		g.postsFS = os.DirFS(cfg.Posts.Dir)
	}
	g.loader = loader.New(g.postsFS,
		markdown.NewRenderer(markdown.OptionsFromConfig(cfg.Markdown)),
		loader.WithCache(cfg.Preview.RenderCacheSize),
		loader.WithRecorder(g.recorder),
		loader.WithLogger(g.logger))
	return g, nil
}

// Loader exposes the route resolver backing the last build.
func (g *Generator) Loader() *loader.Loader { return g.loader }

// OutputDir is where pages are written.
func (g *Generator) OutputDir() string { return g.outputDir }

// Generate runs one build. Enumeration failures are reported in Report.EnumerationErr and
// do not fail the build; output and template failures do.
func (g *Generator) Generate(ctx context.Context, trigger string) (*Report, error) {
	report := &Report{
		BuildID:        uuid.NewString(),
		Start:          g.now(),
		Routes:         []string{},
		StageDurations: map[string]time.Duration{},
		OutputDir:      g.outputDir,
	}
	log := g.logger.With(logfields.BuildID(report.BuildID))
	log.Info("Build started", logfields.Trigger(trigger), logfields.Path(g.outputDir))

	g.record(ctx, log, func() (*eventstore.BaseEvent, error) {
		return eventstore.NewBuildStarted(report.BuildID, eventstore.BuildStartedPayload{
			Trigger:  trigger,
			Source:   string(g.cfg.Posts.Source),
			PostsDir: g.cfg.Posts.Dir,
			Prefix:   g.cfg.Routes.Prefix,
			Output:   g.outputDir,
		})
	})

	entries := g.enumerate(ctx, log, report)
	if err := ctx.Err(); err != nil {
		return g.finishCanceled(log, report, err)
	}

	if err := g.stage(report, metrics.StageRender, func() error {
		return g.renderPages(ctx, log, report, entries)
	}); err != nil {
		return g.fail(ctx, log, report, err)
	}

	g.complete(ctx, log, report)
	return report, nil
}

func (g *Generator) enumerate(ctx context.Context, log *slog.Logger, report *Report) []posts.Entry {
	start := g.now()
	entries, err := g.enumerator.Enumerate(ctx)
	report.StageDurations[metrics.StageEnumerate] = g.now().Sub(start)
	g.recorder.ObserveStageDuration(metrics.StageEnumerate, report.StageDurations[metrics.StageEnumerate])

	if entries == nil {
		entries = []posts.Entry{}
	}
	report.Routes = posts.Routes(entries)
	g.recorder.ObserveEnumeration(string(g.cfg.Posts.Source), len(entries), err)
	g.loader.SetEntries(entries)
	if ctx.Err() != nil {
		return entries
	}

	if err != nil {
		report.EnumerationErr = berrors.EnumerationFailed(g.cfg.Posts.Dir, err)
		g.recorder.IncStageResult(metrics.StageEnumerate, metrics.ResultWarning)
		log.Error("Post enumeration failed; continuing with collected routes",
			logfields.Path(g.cfg.Posts.Dir),
			logfields.Count(len(entries)),
			logfields.Error(err))
		g.record(ctx, log, func() (*eventstore.BaseEvent, error) {
			return eventstore.NewEnumerationFailed(report.BuildID, g.cfg.Posts.Dir, err, report.Routes)
		})
		return entries
	}

	g.recorder.IncStageResult(metrics.StageEnumerate, metrics.ResultSuccess)
	log.Info("Posts enumerated", logfields.Count(len(entries)), logfields.Prefix(g.cfg.Routes.Prefix))
	g.record(ctx, log, func() (*eventstore.BaseEvent, error) {
		return eventstore.NewRoutesEnumerated(report.BuildID, report.Routes)
	})
	return entries
}

func (g *Generator) renderPages(ctx context.Context, log *slog.Logger, report *Report, entries []posts.Entry) error {
	if err := prepareOutput(g.outputDir, g.cfg.Output.Clean); err != nil {
		return berrors.OutputError("prepare output directory", err).WithContext("path", g.outputDir)
	}

	pages := make([]*loader.Page, len(entries))
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, entry := range entries {
		eg.Go(func() error {
			page, err := g.loader.Load(egCtx, entry)
			if err != nil {
				if egCtx.Err() != nil {
					return egCtx.Err()
				}
				renderErr := berrors.RenderFailed(entry.Route, err)
				log.Warn("Skipping post that failed to render",
					logfields.Route(entry.Route),
					logfields.Source(entry.Source),
					logfields.Error(err))
				mu.Lock()
				report.FailedPages++
				mu.Unlock()
				g.record(egCtx, log, func() (*eventstore.BaseEvent, error) {
					return eventstore.NewPageFailed(report.BuildID, entry.Route, entry.Source, renderErr)
				})
				return nil
			}
			if err := g.writePage(page); err != nil {
				return err
			}
			pages[i] = page
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	written := make([]*loader.Page, 0, len(pages))
	for _, p := range pages {
		if p != nil {
			written = append(written, p)
		}
	}
	report.Pages = len(written)
	report.BrokenLinks = g.checkLinks(log, report.Routes, written)

	if err := g.stage(report, metrics.StageIndex, func() error { return g.writeIndex(written) }); err != nil {
		return err
	}
	return g.stage(report, metrics.StageManifest, func() error { return g.writeManifest(report, written) })
}

func (g *Generator) writePage(page *loader.Page) error {
	target, err := PagePath(g.outputDir, page.Route)
	if err != nil {
		return berrors.RenderFailed(page.Route, err)
	}

	h := g.siteHead.Clone()
	if page.Title != "" && page.Title != g.cfg.Site.Title {
		h.SetTitle(page.Title + " | " + g.cfg.Site.Title)
	}
	if page.Summary != "" {
		h.SetDescription(page.Summary)
	}

	data := g.layoutData(h)
	data.Page = &pageView{
		Title: page.Title,
		Date:  page.Date,
		Tags:  page.Tags,
		Body:  template.HTML(page.HTML), //nolint:gosec // produced by goldmark, raw HTML gated by markdown.unsafe_html
	}

	var buf bytes.Buffer
	if err := g.layouts.page.ExecuteTemplate(&buf, "base", data); err != nil {
		return berrors.RenderFailed(page.Route, fmt.Errorf("execute layout: %w", err))
	}
	if err := writeFile(target, buf.Bytes()); err != nil {
		return berrors.OutputError("write page", err).WithContext("path", target)
	}
	return nil
}

// writeIndex lists pages newest first, undated pages last, ties broken by route.
func (g *Generator) writeIndex(pages []*loader.Page) error {
	sorted := make([]*loader.Page, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.Route < b.Route
	})

	data := g.layoutData(g.siteHead.Clone())
	data.Posts = make([]indexEntry, 0, len(sorted))
	for _, p := range sorted {
		data.Posts = append(data.Posts, indexEntry{Href: href(p.Route), Title: p.Title, Date: p.Date, Summary: p.Summary})
	}

	var buf bytes.Buffer
	if err := g.layouts.index.ExecuteTemplate(&buf, "base", data); err != nil {
		return berrors.RenderFailed("index", fmt.Errorf("execute layout: %w", err))
	}
	target := filepath.Join(g.outputDir, "index.html")
	if err := writeFile(target, buf.Bytes()); err != nil {
		return berrors.OutputError("write index", err).WithContext("path", target)
	}
	return nil
}

func (g *Generator) writeManifest(report *Report, pages []*loader.Page) error {
	m := Manifest{
		BuildID:          report.BuildID,
		GeneratedAt:      g.now().UTC(),
		EnumerationError: report.enumerationError(),
		Routes:           make([]ManifestRoute, 0, len(pages)),
	}
	for _, p := range pages {
		m.Routes = append(m.Routes, ManifestRoute{Route: p.Route, Source: p.Source, Fingerprint: p.Fingerprint})
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return berrors.Wrap(err, berrors.CategoryInternal, berrors.SeverityFatal, "encode manifest")
	}
	target := filepath.Join(g.outputDir, ManifestFile)
	if err := writeFile(target, append(data, '\n')); err != nil {
		return berrors.OutputError("write manifest", err).WithContext("path", target)
	}
	return nil
}

// checkLinks warns about links below the route prefix that no post serves.
func (g *Generator) checkLinks(log *slog.Logger, routes []string, pages []*loader.Page) []BrokenLink {
	known := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		known[r] = struct{}{}
	}
	var broken []BrokenLink
	for _, p := range pages {
		for _, target := range markdown.InternalRoutes(p.Links, g.cfg.Routes.Prefix) {
			if _, ok := known[target]; ok {
				continue
			}
			broken = append(broken, BrokenLink{Route: p.Route, Target: target})
			log.Warn("Broken internal link", logfields.Route(p.Route), slog.String("target", target))
		}
	}
	sort.Slice(broken, func(i, j int) bool {
		if broken[i].Route != broken[j].Route {
			return broken[i].Route < broken[j].Route
		}
		return broken[i].Target < broken[j].Target
	})
	return broken
}

func (g *Generator) layoutData(h *head.Builder) layoutData {
	lang := g.cfg.Site.Lang
	if lang == "" {
		lang = "en"
	}
	return layoutData{
		Lang:      lang,
		Head:      h.Render(),
		Home:      "/",
		SiteTitle: g.cfg.Site.Title,
	}
}

func (g *Generator) stage(report *Report, name string, fn func() error) error {
	start := g.now()
	err := fn()
	d := g.now().Sub(start)
	report.StageDurations[name] = d
	g.recorder.ObserveStageDuration(name, d)
	switch {
	case err == nil:
		g.recorder.IncStageResult(name, metrics.ResultSuccess)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		g.recorder.IncStageResult(name, metrics.ResultCanceled)
	default:
		g.recorder.IncStageResult(name, metrics.ResultFatal)
	}
	return err
}

func (g *Generator) complete(ctx context.Context, log *slog.Logger, report *Report) {
	report.End = g.now()
	report.deriveOutcome()
	g.recorder.ObserveBuildDuration(report.Duration())
	g.recorder.IncBuildOutcome(report.Outcome)

	g.record(ctx, log, func() (*eventstore.BaseEvent, error) {
		return eventstore.NewBuildCompleted(report.BuildID, eventstore.BuildCompletedPayload{
			Outcome:          string(report.Outcome),
			Routes:           len(report.Routes),
			Pages:            report.Pages,
			FailedPages:      report.FailedPages,
			EnumerationError: report.enumerationError(),
			DurationMS:       report.Duration().Milliseconds(),
		})
	})

	err := g.publisher.Publish(ctx, notify.BuildNotification{
		BuildID:          report.BuildID,
		Outcome:          string(report.Outcome),
		Routes:           report.Routes,
		Pages:            report.Pages,
		EnumerationError: report.enumerationError(),
		CompletedAt:      report.End,
	})
	if _, noop := g.publisher.(notify.NoopPublisher); !noop {
		g.recorder.IncNotification(err == nil)
	}
	if err != nil {
		log.Warn("Failed to publish build notification", logfields.Error(err))
	}

	log.Info("Build completed",
		slog.String("outcome", string(report.Outcome)),
		logfields.Count(report.Pages),
		slog.Int("failed_pages", report.FailedPages),
		logfields.DurationMS(float64(report.Duration().Milliseconds())))
}

func (g *Generator) finishCanceled(log *slog.Logger, report *Report, err error) (*Report, error) {
	report.End = g.now()
	report.Outcome = metrics.OutcomeCanceled
	g.recorder.IncBuildOutcome(report.Outcome)
	log.Warn("Build canceled", logfields.Error(err))
	return report, err
}

func (g *Generator) fail(ctx context.Context, log *slog.Logger, report *Report, err error) (*Report, error) {
	if ctx.Err() != nil {
		return g.finishCanceled(log, report, ctx.Err())
	}
	report.End = g.now()
	report.Outcome = metrics.OutcomeFailed
	g.recorder.ObserveBuildDuration(report.Duration())
	g.recorder.IncBuildOutcome(report.Outcome)
	g.record(ctx, log, func() (*eventstore.BaseEvent, error) {
		return eventstore.NewBuildCompleted(report.BuildID, eventstore.BuildCompletedPayload{
			Outcome:          string(report.Outcome),
			Routes:           len(report.Routes),
			EnumerationError: report.enumerationError(),
			DurationMS:       report.Duration().Milliseconds(),
		})
	})
	log.Error("Build failed", logfields.Error(err))
	return report, err
}

// record appends an event when a store is configured. Failures are logged, never fatal.
func (g *Generator) record(ctx context.Context, log *slog.Logger, build func() (*eventstore.BaseEvent, error)) {
	if g.store == nil {
		return
	}
	e, err := build()
	if err == nil {
		err = g.store.Append(ctx, e)
	}
	if err != nil {
		log.Warn("Failed to record build event", logfields.Error(err))
	}
}

func href(route string) string {
	if strings.HasPrefix(route, "/") {
		return route
	}
	return "/" + route
}
