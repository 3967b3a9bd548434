// Package loader resolves route identifiers back to post files and turns them into
// rendered pages, caching renders by content fingerprint.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/inful/mdfp"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/blogbuilder/internal/frontmatter"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
	"git.home.luguber.info/inful/blogbuilder/internal/markdown"
	"git.home.luguber.info/inful/blogbuilder/internal/metrics"
	"git.home.luguber.info/inful/blogbuilder/internal/posts"
	perrors "git.home.luguber.info/inful/blogbuilder/internal/posts/errors"
)

// Page is one rendered post.
type Page struct {
	Route       string
	Source      string
	Title       string
	Date        time.Time
	Summary     string
	Tags        []string
	Attributes  map[string]any
	HTML        []byte
	Links       []markdown.Link
	Fingerprint string
}

// Loader is safe for concurrent use.
type Loader struct {
	fsys     fs.FS
	renderer *markdown.Renderer
	cache    *lru.Cache[string, *Page]
	recorder metrics.Recorder
	logger   *slog.Logger

	mu     sync.RWMutex
	routes map[string]posts.Entry
}

// Option configures a Loader.
type Option func(*Loader)

// WithCache keeps up to size rendered pages. A size of zero disables caching.
func WithCache(size int) Option {
	return func(l *Loader) {
		if size <= 0 {
			l.cache = nil
			return
		}
		// lru.New only fails for non-positive sizes.
		l.cache, _ = lru.New[string, *Page](size)
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(l *Loader) {
		if r != nil {
			l.recorder = r
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a loader reading post files from fsys, which is rooted at the posts directory.
func New(fsys fs.FS, renderer *markdown.Renderer, opts ...Option) *Loader {
	l := &Loader{
		fsys:     fsys,
		renderer: renderer,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		routes:   map[string]posts.Entry{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetEntries replaces the route table with the latest enumeration.
func (l *Loader) SetEntries(entries []posts.Entry) {
	routes := make(map[string]posts.Entry, len(entries))
	for _, e := range entries {
		routes[e.Route] = e
	}
	l.mu.Lock()
	l.routes = routes
	l.mu.Unlock()
}

// Resolve maps a route identifier back to its post file.
func (l *Loader) Resolve(route string) (posts.Entry, error) {
	l.mu.RLock()
	e, ok := l.routes[route]
	l.mu.RUnlock()
	if !ok {
		return posts.Entry{}, fmt.Errorf("%w: %s", perrors.ErrRouteNotFound, route)
	}
	return e, nil
}

// LoadRoute resolves and loads route.
func (l *Loader) LoadRoute(ctx context.Context, route string) (*Page, error) {
	e, err := l.Resolve(route)
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, e)
}

// Load reads and renders the post behind e. A cached page is reused while the file's
// fingerprint is unchanged.
func (l *Loader) Load(ctx context.Context, e posts.Entry) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := fs.ReadFile(l.fsys, e.Source)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Source, err)
	}

	doc, err := frontmatter.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", e.Source, err)
	}
	fingerprint := mdfp.CalculateFingerprintFromParts(strings.TrimSuffix(string(doc.Header), "\n"), string(doc.Body))

	if l.cache != nil {
		if cached, ok := l.cache.Get(e.Source); ok && cached.Fingerprint == fingerprint && cached.Route == e.Route {
			l.recorder.IncRenderCache(true)
			return cached, nil
		}
		l.recorder.IncRenderCache(false)
	}

	meta, err := frontmatter.DecodeMeta(doc.Header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Source, err)
	}
	rendered, err := l.renderer.Render(doc.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Source, err)
	}

	page := &Page{
		Route:       e.Route,
		Source:      e.Source,
		Title:       firstNonEmpty(meta.Title, rendered.Heading, TitleFromStem(e.Stem)),
		Date:        meta.Date,
		Summary:     firstNonEmpty(meta.Summary, rendered.Summary),
		Tags:        meta.Tags,
		Attributes:  meta.Fields,
		HTML:        rendered.HTML,
		Links:       rendered.Links,
		Fingerprint: fingerprint,
	}

	l.logger.Debug("Rendered post",
		logfields.Route(e.Route),
		logfields.Source(e.Source),
		slog.String("fingerprint", fingerprint))

	if l.cache != nil {
		l.cache.Add(e.Source, page)
	}
	return page, nil
}

// Purge drops every cached page.
func (l *Loader) Purge() {
	if l.cache != nil {
		l.cache.Purge()
	}
}

// TitleFromStem turns "hello-world_again" into "Hello World Again". Nested stems use
// their last segment.
func TitleFromStem(stem string) string {
	base := path.Base(stem)
	if base == "." || base == "/" {
		return ""
	}
	words := strings.FieldsFunc(base, func(r rune) bool { return r == '-' || r == '_' })
	// A Caser keeps state between calls and cannot be shared across goroutines.
	return cases.Title(language.Und).String(strings.Join(words, " "))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
