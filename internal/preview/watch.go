package preview

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
)

// changeKind classifies a filesystem event.
type changeKind int

const (
	changeNone changeKind = iota
	changePosts
	changeConfig
)

// watcher follows the posts tree and the configuration file.
type watcher struct {
	fs         *fsnotify.Watcher
	postsDir   string
	configPath string
	logger     *slog.Logger
}

// newWatcher watches postsDir recursively when it exists. configPath is optional; its parent
// directory is watched so editors that replace the file on save are still seen.
func newWatcher(postsDir, configPath string, logger *slog.Logger) (*watcher, error) {
	absPosts, err := filepath.Abs(postsDir)
	if err != nil {
		return nil, fmt.Errorf("resolve posts dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	w := &watcher{fs: fsw, postsDir: absPosts, logger: logger}

	if st, statErr := os.Stat(absPosts); statErr != nil || !st.IsDir() {
		logger.Warn("Posts dir not found; watching configuration only", logfields.Path(absPosts))
	} else {
		w.addDirsRecursive(absPosts)
	}

	if configPath != "" {
		absConfig, err := filepath.Abs(configPath)
		if err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		w.configPath = absConfig
		if err := fsw.Add(filepath.Dir(absConfig)); err != nil {
			logger.Warn("Watch add failed", logfields.Path(filepath.Dir(absConfig)), logfields.Error(err))
		}
	}
	return w, nil
}

func (w *watcher) Close() error { return w.fs.Close() }

// classify decides what an event means for the site. New directories under the posts
// dir are added to the watch set.
func (w *watcher) classify(ev fsnotify.Event) changeKind {
	if ev.Op == fsnotify.Chmod {
		return changeNone
	}
	path, err := filepath.Abs(ev.Name)
	if err != nil {
		return changeNone
	}
	if w.configPath != "" && path == w.configPath {
		return changeConfig
	}
	if shouldIgnoreEvent(path) || !within(w.postsDir, path) {
		return changeNone
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			w.addDirsRecursive(path)
		}
	}
	return changePosts
}

// setPostsDir moves the posts watch to dir. The configuration directory stays watched.
func (w *watcher) setPostsDir(dir string) error {
	absPosts, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve posts dir: %w", err)
	}
	if absPosts == w.postsDir {
		return nil
	}

	configDir := ""
	if w.configPath != "" {
		configDir = filepath.Dir(w.configPath)
	}
	for _, p := range w.fs.WatchList() {
		if p != configDir && within(w.postsDir, p) {
			_ = w.fs.Remove(p)
		}
	}
	w.postsDir = absPosts

	if st, statErr := os.Stat(absPosts); statErr != nil || !st.IsDir() {
		w.logger.Warn("Posts dir not found; watching configuration only", logfields.Path(absPosts))
		return nil
	}
	w.addDirsRecursive(absPosts)
	return nil
}

func (w *watcher) addDirsRecursive(root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.fs.Add(path); err != nil {
				w.logger.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
			}
		}
		return nil
	})
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// shouldIgnoreEvent returns true for filesystem events that should not trigger rebuilds.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	// Hidden files, including editor lock files like .#post.md
	if strings.HasPrefix(base, ".") {
		return true
	}

	// Editor temp/swap files
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}

	return base == "Thumbs.db"
}

// debouncer coalesces bursts of triggers into one request on a buffered channel.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	C     chan struct{}
}

func newDebouncer(delay time.Duration) *debouncer {
	if delay <= 0 {
		delay = 300 * time.Millisecond
	}
	return &debouncer{delay: delay, C: make(chan struct{}, 1)}
}

func (d *debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		select {
		case d.C <- struct{}{}:
		default:
		}
	})
}

func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
