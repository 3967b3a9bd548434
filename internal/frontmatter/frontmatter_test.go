package frontmatter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSplit_NoFrontmatter_ReturnsBodyOnly(t *testing.T) {
	input := []byte("# Title\n\nHello\n")

	doc, err := Split(input)
	require.NoError(t, err)
	require.False(t, doc.HasHeader)
	require.Empty(t, doc.Header)
	require.Equal(t, input, doc.Body)
}

func TestSplit_YAMLFrontmatter_SplitsHeaderAndBody(t *testing.T) {
	doc, err := Split([]byte("---\ntitle: Hello\n---\n# Title\n"))
	require.NoError(t, err)
	require.True(t, doc.HasHeader)
	require.Equal(t, []byte("title: Hello\n"), doc.Header)
	require.Equal(t, []byte("# Title\n"), doc.Body)
}

func TestSplit_MissingClosingDelimiter_ReturnsError(t *testing.T) {
	_, err := Split([]byte("---\ntitle: Hello\n# Title\n"))
	require.ErrorIs(t, err, ErrMissingClosingDelimiter)
}

func TestSplit_HeaderClosedAtEOF(t *testing.T) {
	doc, err := Split([]byte("---\ntitle: Hello\n---"))
	require.NoError(t, err)
	require.True(t, doc.HasHeader)
	require.Equal(t, []byte("title: Hello\n"), doc.Header)
	require.Empty(t, doc.Body)
}

func TestSplit_CRLF(t *testing.T) {
	doc, err := Split([]byte("---\r\ntitle: Hello\r\n---\r\n# Title\r\n"))
	require.NoError(t, err)
	require.True(t, doc.HasHeader)
	require.Equal(t, "\r\n", doc.Newline)
	require.Equal(t, []byte("title: Hello\r\n"), doc.Header)
	require.Equal(t, []byte("# Title\r\n"), doc.Body)
}

func TestSplit_EmptyHeader(t *testing.T) {
	doc, err := Split([]byte("---\n---\n# Title\n"))
	require.NoError(t, err)
	require.True(t, doc.HasHeader)
	require.Empty(t, doc.Header)
	require.Equal(t, []byte("# Title\n"), doc.Body)
}

func TestDocumentBytes_RoundTrip(t *testing.T) {
	cases := []string{
		"# Title\n\nHello\n",
		"---\ntitle: Hello\n---\n# Title\n",
		"---\n---\n# Title\n",
		"---\r\ntitle: Hello\r\n---\r\n# Title\r\n",
	}
	for _, input := range cases {
		doc, err := Split([]byte(input))
		require.NoError(t, err)
		require.Equal(t, input, string(doc.Bytes()))
	}
}

func TestParseYAML(t *testing.T) {
	fields, err := ParseYAML([]byte("title: abc\ntags:\n  - one\n"))
	require.NoError(t, err)
	require.Equal(t, "abc", fields["title"])
	require.Equal(t, []any{"one"}, fields["tags"])

	fields, err = ParseYAML(nil)
	require.NoError(t, err)
	require.NotNil(t, fields)
	require.Empty(t, fields)

	_, err = ParseYAML([]byte(": not yaml"))
	require.Error(t, err)
}

func TestDecodeMeta(t *testing.T) {
	meta, err := DecodeMeta([]byte("title: \" Hello World \"\ndate: 2023-01-02\ndescription: A post\ntags: [go, blog]\nauthor: reyna\n"))
	require.NoError(t, err)
	require.Equal(t, "Hello World", meta.Title)
	require.Equal(t, time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), meta.Date)
	require.Equal(t, "A post", meta.Summary)
	require.Equal(t, []string{"go", "blog"}, meta.Tags)
	require.Equal(t, "reyna", meta.Fields["author"])
}

func TestDecodeMeta_LenientValues(t *testing.T) {
	meta, err := DecodeMeta([]byte("date: \"2023-01-02T10:30:00Z\"\nsummary: first\ndescription: second\ntags: \"a, b ,\"\n"))
	require.NoError(t, err)
	require.Equal(t, time.Date(2023, 1, 2, 10, 30, 0, 0, time.UTC), meta.Date)
	require.Equal(t, "first", meta.Summary)
	require.Equal(t, []string{"a", "b"}, meta.Tags)

	meta, err = DecodeMeta([]byte("date: someday\n"))
	require.NoError(t, err)
	require.True(t, meta.Date.IsZero())
}

func TestDecodeMeta_InvalidYAML(t *testing.T) {
	_, err := DecodeMeta([]byte("title: [unterminated\n"))
	require.Error(t, err)
}
