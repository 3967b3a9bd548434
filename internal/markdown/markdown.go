// Package markdown renders post bodies to HTML with goldmark and extracts the bits
// of document structure the generator reuses: the first heading, a plain-text
// summary and outgoing links.
package markdown

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
)

// summaryLimit bounds the derived summary in runes.
const summaryLimit = 200

// Options selects goldmark extensions and renderer flags.
type Options struct {
	GFM        bool
	HardWraps  bool
	UnsafeHTML bool
}

// OptionsFromConfig maps the markdown config section onto renderer options.
func OptionsFromConfig(cfg config.MarkdownConfig) Options {
	return Options{GFM: cfg.GFM, HardWraps: cfg.HardWraps, UnsafeHTML: cfg.UnsafeHTML}
}

// Renderer is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer builds a goldmark pipeline for opts. Heading IDs are always generated.
func NewRenderer(opts Options) *Renderer {
	var exts []goldmark.Extender
	if opts.GFM {
		exts = append(exts, extension.GFM)
	}

	var rendererOpts []goldmark.Option
	var htmlOpts []renderer.Option
	if opts.HardWraps {
		htmlOpts = append(htmlOpts, html.WithHardWraps())
	}
	if opts.UnsafeHTML {
		htmlOpts = append(htmlOpts, html.WithUnsafe())
	}
	if len(htmlOpts) > 0 {
		rendererOpts = append(rendererOpts, goldmark.WithRendererOptions(htmlOpts...))
	}

	md := goldmark.New(append(rendererOpts,
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)...)
	return &Renderer{md: md}
}

// Document is the rendered form of a post body.
type Document struct {
	HTML    []byte
	Heading string // Text of the first level-1 heading, if any
	Summary string // Plain text of the first paragraph, truncated
	Links   []Link
}

// Render parses body (frontmatter already removed) once and renders it.
func (r *Renderer) Render(body []byte) (Document, error) {
	ctx := parser.NewContext()
	root := r.md.Parser().Parse(text.NewReader(body), parser.WithContext(ctx))

	doc := Document{Links: make([]Link, 0)}
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Heading:
			if node.Level == 1 && doc.Heading == "" {
				doc.Heading = plainText(node, body)
			}
		case *gmast.Paragraph:
			if doc.Summary == "" {
				doc.Summary = truncate(plainText(node, body), summaryLimit)
			}
		case *gmast.AutoLink:
			doc.Links = append(doc.Links, Link{Kind: LinkKindAuto, Destination: string(node.URL(body))})
		case *gmast.Image:
			doc.Links = append(doc.Links, Link{Kind: LinkKindImage, Destination: string(node.Destination)})
		case *gmast.Link:
			doc.Links = append(doc.Links, Link{Kind: LinkKindInline, Destination: string(node.Destination)})
		}
		return gmast.WalkContinue, nil
	})

	// Reference definitions live in the parse context, not the AST.
	refs := ctx.References()
	sort.Slice(refs, func(i, j int) bool {
		return string(refs[i].Label()) < string(refs[j].Label())
	})
	for _, ref := range refs {
		doc.Links = append(doc.Links, Link{Kind: LinkKindReferenceDefinition, Destination: string(ref.Destination())})
	}

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, body, root); err != nil {
		return Document{}, fmt.Errorf("render markdown: %w", err)
	}
	doc.HTML = buf.Bytes()
	return doc, nil
}

// plainText concatenates the text segments below n.
func plainText(n gmast.Node, source []byte) string {
	var sb strings.Builder
	_ = gmast.Walk(n, func(c gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *gmast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *gmast.String:
			sb.Write(t.Value)
		case *gmast.CodeSpan:
			for cc := t.FirstChild(); cc != nil; cc = cc.NextSibling() {
				if seg, ok := cc.(*gmast.Text); ok {
					sb.Write(seg.Segment.Value(source))
				}
			}
			return gmast.WalkSkipChildren, nil
		}
		return gmast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(sb.String()), " ")
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit])) + "…"
}
