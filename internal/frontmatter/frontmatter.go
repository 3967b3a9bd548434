// Package frontmatter splits a post into its YAML header and markdown body and decodes
// the header fields the site generator understands.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates the post opened a YAML header but never closed it.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

const delimiter = "---"

// Document is a post split at its `---` delimited header.
type Document struct {
	Header    []byte // Raw YAML without delimiters; empty when HasHeader is false
	Body      []byte
	HasHeader bool
	Newline   string // "\n" or "\r\n", detected from the first line break
}

// Split separates the YAML header from the markdown body. A document that does not
// start with a delimiter line is returned whole as Body.
func Split(content []byte) (Document, error) {
	doc := Document{Newline: detectNewline(content)}

	nl := doc.Newline
	open := []byte(delimiter + nl)
	if !bytes.HasPrefix(content, open) {
		doc.Body = content
		return doc, nil
	}

	rest := content[len(open):]
	if bytes.HasPrefix(rest, open) {
		doc.HasHeader = true
		doc.Header = []byte{}
		doc.Body = rest[len(open):]
		return doc, nil
	}

	closing := []byte(nl + delimiter + nl)
	idx := bytes.Index(rest, closing)
	if idx < 0 {
		// A header closed at EOF without a trailing newline is still a header.
		if bytes.HasSuffix(rest, []byte(nl+delimiter)) {
			doc.HasHeader = true
			doc.Header = rest[:len(rest)-len(delimiter)]
			doc.Body = []byte{}
			return doc, nil
		}
		return Document{}, ErrMissingClosingDelimiter
	}

	doc.HasHeader = true
	doc.Header = rest[:idx+len(nl)]
	doc.Body = rest[idx+len(closing):]
	return doc, nil
}

// Bytes reassembles the document. Split followed by Bytes reproduces the input.
func (d Document) Bytes() []byte {
	if !d.HasHeader {
		return d.Body
	}
	nl := d.Newline
	if nl == "" {
		nl = "\n"
	}
	out := make([]byte, 0, len(d.Header)+len(d.Body)+2*(len(delimiter)+len(nl)))
	out = append(out, delimiter+nl...)
	out = append(out, d.Header...)
	out = append(out, delimiter+nl...)
	out = append(out, d.Body...)
	return out
}

// ParseYAML parses a raw header into a map. An empty header yields an empty map.
func ParseYAML(header []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(header)) == 0 {
		return map[string]any{}, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal(header, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// Meta is the typed view of a post header.
type Meta struct {
	Title   string
	Date    time.Time // Zero when absent or unparseable
	Summary string
	Tags    []string
	// Fields holds every header key, including the ones above.
	Fields map[string]any
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// DecodeMeta parses header and extracts the known fields. "description" is accepted
// as an alias for "summary".
func DecodeMeta(header []byte) (Meta, error) {
	fields, err := ParseYAML(header)
	if err != nil {
		return Meta{}, fmt.Errorf("parse frontmatter: %w", err)
	}

	m := Meta{Fields: fields}
	m.Title = stringField(fields, "title")
	m.Summary = stringField(fields, "summary")
	if m.Summary == "" {
		m.Summary = stringField(fields, "description")
	}
	m.Date = dateField(fields["date"])

	switch tags := fields["tags"].(type) {
	case []any:
		for _, t := range tags {
			if s := strings.TrimSpace(fmt.Sprint(t)); s != "" {
				m.Tags = append(m.Tags, s)
			}
		}
	case string:
		for _, t := range strings.Split(tags, ",") {
			if s := strings.TrimSpace(t); s != "" {
				m.Tags = append(m.Tags, s)
			}
		}
	}
	return m, nil
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// yaml.v3 hands timestamps to interface{} targets as strings, but be lenient with both.
func dateField(v any) time.Time {
	switch d := v.(type) {
	case time.Time:
		return d
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(d)); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func detectNewline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
