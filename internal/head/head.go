// Package head collects the elements of a page's <head> and renders them as escaped
// HTML. The site-wide defaults come from the site config section; pages override the
// title and description.
package head

import (
	"html/template"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
)

// Builder is not safe for concurrent use. Clone the site builder per page.
type Builder struct {
	title       string
	description string
	metas       []*html.Node
	links       []*html.Node
	seen        map[string]struct{}
}

func New() *Builder {
	return &Builder{seen: make(map[string]struct{})}
}

// ForSite seeds a builder with the site-wide head: charset, viewport, description,
// theme colour, favicon, stylesheets and extra meta tags.
func ForSite(site config.SiteConfig) *Builder {
	b := New()
	b.SetTitle(site.Title)
	b.SetDescription(site.Description)
	b.Meta("", "viewport", "width=device-width, initial-scale=1")
	if site.LoadingColor != "" {
		b.Meta("", "theme-color", site.LoadingColor)
	}
	for _, m := range site.Meta {
		if m.Property != "" {
			b.Property(m.Property, m.Content)
			continue
		}
		b.Meta(m.HID, m.Name, m.Content)
	}
	if site.Favicon != "" {
		b.Link("icon", site.Favicon, "", iconType(site.Favicon))
	}
	for _, s := range site.Stylesheets {
		b.Link("stylesheet", s.Href, s.Media, s.Type)
	}
	for _, href := range site.CSS {
		b.Link("stylesheet", href, "", "")
	}
	return b
}

// Clone returns an independent copy.
func (b *Builder) Clone() *Builder {
	c := &Builder{
		title:       b.title,
		description: b.description,
		metas:       append([]*html.Node(nil), b.metas...),
		links:       append([]*html.Node(nil), b.links...),
		seen:        make(map[string]struct{}, len(b.seen)),
	}
	for k := range b.seen {
		c.seen[k] = struct{}{}
	}
	return c
}

// SetTitle overrides the page <title>. The last caller wins.
func (b *Builder) SetTitle(t string) { b.title = t }

// SetDescription overrides the description meta tag. Empty omits it.
func (b *Builder) SetDescription(d string) { b.description = d }

// Title returns the current title text.
func (b *Builder) Title() string { return b.title }

// Meta adds <meta name content>. hid is rendered as data-hid and used as the
// de-duplication key when set; otherwise the name is.
func (b *Builder) Meta(hid, name, content string) {
	key := "meta:" + name
	if hid != "" {
		key = "meta-hid:" + hid
	}
	attrs := []html.Attribute{}
	if hid != "" {
		attrs = append(attrs, html.Attribute{Key: "data-hid", Val: hid})
	}
	attrs = append(attrs,
		html.Attribute{Key: "name", Val: name},
		html.Attribute{Key: "content", Val: content})
	b.add(key, &b.metas, element(atom.Meta, attrs...))
}

// Property adds <meta property content>, as used by Open Graph.
func (b *Builder) Property(property, content string) {
	b.add("meta-property:"+property, &b.metas, element(atom.Meta,
		html.Attribute{Key: "property", Val: property},
		html.Attribute{Key: "content", Val: content}))
}

// Link adds <link rel href> with optional media and type.
func (b *Builder) Link(rel, href, media, typ string) {
	attrs := []html.Attribute{{Key: "rel", Val: rel}, {Key: "href", Val: href}}
	if media != "" {
		attrs = append(attrs, html.Attribute{Key: "media", Val: media})
	}
	if typ != "" {
		attrs = append(attrs, html.Attribute{Key: "type", Val: typ})
	}
	b.add("link:"+rel+":"+href, &b.links, element(atom.Link, attrs...))
}

func (b *Builder) add(key string, tgt *[]*html.Node, n *html.Node) {
	if _, dup := b.seen[key]; dup {
		return
	}
	b.seen[key] = struct{}{}
	*tgt = append(*tgt, n)
}

// Render emits charset, title, description, metas then links, one per line.
func (b *Builder) Render() template.HTML {
	nodes := []*html.Node{element(atom.Meta, html.Attribute{Key: "charset", Val: "utf-8"})}
	if b.title != "" {
		t := element(atom.Title)
		t.AppendChild(&html.Node{Type: html.TextNode, Data: b.title})
		nodes = append(nodes, t)
	}
	if b.description != "" {
		nodes = append(nodes, element(atom.Meta,
			html.Attribute{Key: "data-hid", Val: "description"},
			html.Attribute{Key: "name", Val: "description"},
			html.Attribute{Key: "content", Val: b.description}))
	}
	nodes = append(nodes, b.metas...)
	nodes = append(nodes, b.links...)

	var sb strings.Builder
	for i, n := range nodes {
		if i > 0 {
			sb.WriteByte('\n')
		}
		// Rendering into a strings.Builder cannot fail.
		_ = html.Render(&sb, n)
	}
	return template.HTML(sb.String()) //nolint:gosec // every value is escaped by html.Render
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func iconType(href string) string {
	switch {
	case strings.HasSuffix(href, ".ico"):
		return "image/x-icon"
	case strings.HasSuffix(href, ".png"):
		return "image/png"
	case strings.HasSuffix(href, ".svg"):
		return "image/svg+xml"
	default:
		return ""
	}
}
