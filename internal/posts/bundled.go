package posts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
	perrors "git.home.luguber.info/inful/blogbuilder/internal/posts/errors"
)

// BundledEnumerator derives routes synchronously from a file system snapshot taken at
// build time (an embed.FS, os.DirFS or fstest.MapFS). Every "*.md" file below the root is
// matched recursively, the way a bundler exposes a directory context.
type BundledEnumerator struct {
	fsys fs.FS
	opts Options
}

// NewBundledEnumerator creates an enumerator over fsys, which must be rooted at the posts directory.
func NewBundledEnumerator(fsys fs.FS, opts Options) *BundledEnumerator {
	return &BundledEnumerator{fsys: fsys, opts: opts}
}

// Keys returns "./"-prefixed paths of every markdown file, in lexical walk order.
func (b *BundledEnumerator) Keys() ([]string, error) {
	var keys []string
	err := fs.WalkDir(b.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsPostFile(d.Name()) {
			return nil
		}
		keys = append(keys, BundleKey(p))
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return keys, fmt.Errorf("%w: %w", perrors.ErrPostsDirNotFound, err)
		}
		return keys, fmt.Errorf("%w: %w", perrors.ErrPostsDirUnreadable, err)
	}
	return keys, nil
}

// Enumerate blocks until the whole snapshot is walked.
func (b *BundledEnumerator) Enumerate(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return []Entry{}, err
	}

	keys, err := b.Keys()
	c := newCollector(b.opts)
	for _, key := range keys {
		c.add(b.stem(key), strings.TrimPrefix(key, "./"))
	}

	b.opts.logger().Debug("Bundled posts enumerated",
		logfields.Source(string(config.SourceBundled)),
		logfields.Count(len(c.entries)))

	return c.entries, errors.Join(append([]error{err}, c.errs...)...)
}

func (b *BundledEnumerator) stem(key string) string {
	if b.opts.StemMode == config.StemExtension {
		return ExtensionStem(strings.TrimPrefix(key, "./"))
	}
	return LegacyBundleStem(key)
}
