package errors

import (
	"bytes"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *BuildError
		expected string
	}{
		{
			name:     "error without cause",
			err:      New(CategoryConfig, SeverityFatal, "configuration invalid"),
			expected: "config (fatal): configuration invalid",
		},
		{
			name:     "error with cause",
			err:      Wrap(fmt.Errorf("file not found"), CategoryConfig, SeverityFatal, "failed to load config"),
			expected: "config (fatal): failed to load config: file not found",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if result := test.err.Error(); result != test.expected {
				t.Errorf("Error() = %q, want %q", result, test.expected)
			}
		})
	}
}

func TestBuildError_WithContext(t *testing.T) {
	err := New(CategoryRender, SeverityWarning, "render failed").
		WithContext("route", "/blog/hello").
		WithContext("attempt", 2)

	require.NotNil(t, err.Context)
	assert.Equal(t, "/blog/hello", err.Context["route"])
	assert.Equal(t, 2, err.Context["attempt"])
}

func TestIsCategory_FollowsWrapChain(t *testing.T) {
	enumErr := EnumerationFailed("./assets/posts", fmt.Errorf("permission denied"))
	wrapped := fmt.Errorf("generate: %w", enumErr)

	tests := []struct {
		name     string
		err      error
		category ErrorCategory
		expected bool
	}{
		{"direct match", enumErr, CategoryEnumeration, true},
		{"wrapped match", wrapped, CategoryEnumeration, true},
		{"wrong category", enumErr, CategoryRender, false},
		{"standard error", fmt.Errorf("plain"), CategoryEnumeration, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, IsCategory(test.err, test.category))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(PublishFailed("blog.builds", fmt.Errorf("timeout"))))
	assert.False(t, IsRetryable(ConfigNotFound("x.yaml")))
	assert.False(t, IsRetryable(fmt.Errorf("standard error")))
}

func TestGetCategory_DefaultsToInternal(t *testing.T) {
	assert.Equal(t, CategoryInternal, GetCategory(fmt.Errorf("boom")))
	assert.Equal(t, CategoryFileSystem, GetCategory(OutputError("mkdir", fmt.Errorf("denied"))))
}

func TestConvenienceFunctions(t *testing.T) {
	t.Run("ConfigNotFound", func(t *testing.T) {
		err := ConfigNotFound("/path/to/blogbuilder.yaml")
		assert.Equal(t, CategoryConfig, err.Category)
		assert.Equal(t, SeverityFatal, err.Severity)
		assert.Equal(t, "/path/to/blogbuilder.yaml", err.Context["path"])
	})

	t.Run("EnumerationFailed is a warning", func(t *testing.T) {
		cause := fmt.Errorf("no such directory")
		err := EnumerationFailed("./assets/posts", cause)
		assert.Equal(t, SeverityWarning, err.Severity)
		assert.True(t, stdErrors.Is(err, cause))
	})

	t.Run("ValidationFailed", func(t *testing.T) {
		err := ValidationFailed("posts.source", "unsupported value")
		assert.Equal(t, CategoryValidation, err.Category)
		assert.Equal(t, "posts.source", err.Context["field"])
		assert.Equal(t, "unsupported value", err.Context["reason"])
	})
}

func TestCLIErrorAdapter_ExitCodes(t *testing.T) {
	a := NewCLIErrorAdapter(false, nil)

	cases := map[string]struct {
		err  error
		code int
	}{
		"nil":         {nil, 0},
		"plain":       {fmt.Errorf("x"), 1},
		"validation":  {ValidationFailed("f", "r"), 2},
		"config":      {ConfigNotFound("c.yaml"), 7},
		"events":      {EventStoreFailed("append", fmt.Errorf("x")), 8},
		"enumeration": {EnumerationFailed("d", fmt.Errorf("x")), 11},
		"render":      {RenderFailed("/blog/a", fmt.Errorf("x")), 11},
		"runtime":     {ServerFailed(fmt.Errorf("x")), 12},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.code, a.ExitCodeFor(tc.err))
		})
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var logBuf, out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	a := NewCLIErrorAdapter(false, logger)
	a.out = &out
	exitCode := -1
	a.exit = func(code int) { exitCode = code }

	a.HandleError(ConfigNotFound("missing.yaml"))

	assert.Equal(t, 7, exitCode)
	assert.Equal(t, "configuration file not found\n", out.String())
	assert.Contains(t, logBuf.String(), "category=config")
	assert.Contains(t, logBuf.String(), "path=missing.yaml")
}
