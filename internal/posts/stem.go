package posts

import (
	"path"
	"strings"
	"unicode"
)

// MarkdownExt is the only extension that qualifies a file as a post.
const MarkdownExt = ".md"

// IsPostFile reports whether name carries the markdown extension (case-sensitive).
func IsPostFile(name string) bool {
	return strings.HasSuffix(name, MarkdownExt)
}

// BundleKey returns the key under which a build-time file listing exposes p:
// the slash-separated path relative to the posts root, prefixed with "./".
func BundleKey(p string) string {
	return "./" + strings.TrimPrefix(path.Clean(p), "./")
}

// LegacyBundleStem splits key on '.', takes the segment after the first dot and drops
// its first character (the path separator). "./hello.md" -> "hello", but
// "./release.v2.md" -> "release" and "./notes.draft.md" -> "notes".
func LegacyBundleStem(key string) string {
	parts := strings.Split(key, ".")
	if len(parts) < 2 || parts[1] == "" {
		return ""
	}
	return parts[1][1:]
}

// LegacyDirectoryStem returns everything before the first dot of a file name.
func LegacyDirectoryStem(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

// ExtensionStem strips only the final extension, keeping inner dots and directories.
func ExtensionStem(p string) string {
	return strings.TrimSuffix(p, path.Ext(p))
}

// Slug turns a title into a file stem: lower case letters and digits joined by single
// dashes. The result never contains a dot, so both stem modes derive the same route.
func Slug(title string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
