package markdown

import "strings"

type LinkKind string

const (
	LinkKindInline              LinkKind = "inline"
	LinkKindImage               LinkKind = "image"
	LinkKindAuto                LinkKind = "auto"
	LinkKindReferenceDefinition LinkKind = "reference_definition"
)

type Link struct {
	Kind        LinkKind
	Destination string
}

// InternalRoutes returns the destinations of links that point below prefix, with any
// fragment or query and trailing slash removed. Images are ignored.
func InternalRoutes(links []Link, prefix string) []string {
	if prefix == "" || prefix == "/" {
		return nil
	}
	var out []string
	for _, l := range links {
		if l.Kind == LinkKindImage || !strings.HasPrefix(l.Destination, prefix) {
			continue
		}
		dest := l.Destination
		if i := strings.IndexAny(dest, "#?"); i >= 0 {
			dest = dest[:i]
		}
		dest = strings.TrimSuffix(dest, "/")
		if dest == "" || dest+"/" == prefix {
			continue
		}
		out = append(out, dest)
	}
	return out
}
