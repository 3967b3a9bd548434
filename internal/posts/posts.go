// Package posts enumerates the blog post files of a site and derives the route
// identifiers the generator pre-renders, one per post.
package posts

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
	perrors "git.home.luguber.info/inful/blogbuilder/internal/posts/errors"
)

// Entry pairs a route identifier with the post file it was derived from.
type Entry struct {
	Route  string `json:"route"`  // Route identifier, prefix included
	Stem   string `json:"stem"`   // Identifier without prefix
	Source string `json:"source"` // Slash-separated path of the post file relative to the posts root
}

// Options controls route derivation shared by both enumerators.
type Options struct {
	// Prefix is prepended verbatim to every stem ("/blog/" -> "/blog/hello").
	Prefix string
	// StemMode selects first-dot splitting (legacy) or final-extension stripping.
	StemMode config.StemMode
	// FilterExtension drops non-markdown entries from directory listings. When false the
	// directory is assumed to hold only post files.
	FilterExtension bool
	Logger          *slog.Logger
}

// OptionsFromConfig maps the posts/routes sections onto enumeration options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		Prefix:          cfg.Routes.Prefix,
		StemMode:        cfg.Posts.StemMode,
		FilterExtension: cfg.Posts.FilterExtension,
		Logger:          logger,
	}
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Enumerator produces the Route Set for one build.
type Enumerator interface {
	// Enumerate returns the entries in enumeration order. A non-nil error may be
	// accompanied by a partial, non-nil entry list.
	Enumerate(ctx context.Context) ([]Entry, error)
}

// FromConfig builds the enumerator selected by posts.source. Bundled mode snapshots the
// posts directory through os.DirFS.
func FromConfig(cfg *config.Config, logger *slog.Logger) Enumerator {
	opts := OptionsFromConfig(cfg, logger)
	if cfg.Posts.Source == config.SourceBundled {
		return NewBundledEnumerator(os.DirFS(cfg.Posts.Dir), opts)
	}
	return NewDirectoryEnumerator(cfg.Posts.Dir, opts)
}

// Routes projects entries onto their route identifiers. The result is never nil.
func Routes(entries []Entry) []string {
	routes := make([]string, 0, len(entries))
	for _, e := range entries {
		routes = append(routes, e.Route)
	}
	return routes
}

// collector accumulates entries, rejecting empty stems and route collisions.
type collector struct {
	opts    Options
	entries []Entry
	seen    map[string]string
	errs    []error
}

func newCollector(opts Options) *collector {
	return &collector{opts: opts, entries: make([]Entry, 0), seen: make(map[string]string)}
}

func (c *collector) add(stem, source string) {
	if stem == "" {
		c.opts.logger().Warn("Skipping post with empty stem", logfields.File(source))
		return
	}
	route := c.opts.Prefix + stem
	if prev, dup := c.seen[route]; dup {
		c.errs = append(c.errs, fmt.Errorf("%w: %s from %s and %s", perrors.ErrRouteCollision, route, prev, source))
		return
	}
	c.seen[route] = source
	c.entries = append(c.entries, Entry{Route: route, Stem: stem, Source: source})
}
