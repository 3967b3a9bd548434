package posts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync/atomic"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
	perrors "git.home.luguber.info/inful/blogbuilder/internal/posts/errors"
)

// State is the lifecycle of one directory enumeration.
type State int32

const (
	StateIdle State = iota
	StateReading
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the single outcome of a directory enumeration. Err is set when the listing
// failed or routes collided; Entries then holds whatever was collected (possibly empty).
type Result struct {
	Entries []Entry
	Err     error
}

// Routes returns the route identifiers of r.
func (r Result) Routes() []string { return Routes(r.Entries) }

// Task is a single-resolution handle on an in-flight enumeration.
type Task struct {
	state  atomic.Int32
	done   chan struct{}
	result Result
}

// Done is closed exactly once, after the result is available.
func (t *Task) Done() <-chan struct{} { return t.done }

// State reports where the task is in its lifecycle.
func (t *Task) State() State { return State(t.state.Load()) }

// Result blocks until the enumeration finishes.
func (t *Task) Result() Result {
	<-t.done
	return t.result
}

// Wait blocks until the enumeration finishes or ctx is done. On cancellation the
// returned Result carries ctx.Err() and no entries; the task itself still completes.
func (t *Task) Wait(ctx context.Context) Result {
	select {
	case <-t.done:
		return t.result
	case <-ctx.Done():
		return Result{Entries: []Entry{}, Err: ctx.Err()}
	}
}

// DirectoryEnumerator lists a posts directory in the background and derives one route
// per file name.
type DirectoryEnumerator struct {
	dir     string
	opts    Options
	readDir func(string) ([]os.DirEntry, error)
}

// NewDirectoryEnumerator creates an enumerator for dir (e.g. "./assets/posts").
func NewDirectoryEnumerator(dir string, opts Options) *DirectoryEnumerator {
	return &DirectoryEnumerator{dir: dir, opts: opts, readDir: os.ReadDir}
}

// Dir returns the directory being enumerated.
func (d *DirectoryEnumerator) Dir() string { return d.dir }

// Start issues the listing without blocking and returns its task.
func (d *DirectoryEnumerator) Start(ctx context.Context) *Task {
	t := &Task{done: make(chan struct{})}
	t.state.Store(int32(StateReading))
	go func() {
		res := d.run(ctx)
		t.result = res
		if res.Err != nil {
			t.state.Store(int32(StateFailed))
		} else {
			t.state.Store(int32(StateCompleted))
		}
		close(t.done)
	}()
	return t
}

// Enumerate starts a task and waits for it.
func (d *DirectoryEnumerator) Enumerate(ctx context.Context) ([]Entry, error) {
	res := d.Start(ctx).Wait(ctx)
	return res.Entries, res.Err
}

// EnumerateFunc delivers the outcome to fn exactly once, from another goroutine.
// routes is never nil; err distinguishes a failed listing from an empty directory.
func (d *DirectoryEnumerator) EnumerateFunc(ctx context.Context, fn func(routes []string, err error)) {
	t := d.Start(ctx)
	go func() {
		res := t.Result()
		fn(res.Routes(), res.Err)
	}()
}

func (d *DirectoryEnumerator) run(ctx context.Context) Result {
	log := d.opts.logger()
	c := newCollector(d.opts)

	if err := ctx.Err(); err != nil {
		return Result{Entries: c.entries, Err: err}
	}

	// os.ReadDir returns the entries read before a failure, so keep going with them.
	dirEntries, readErr := d.readDir(d.dir)
	if readErr != nil {
		sentinel := perrors.ErrPostsDirUnreadable
		if errors.Is(readErr, fs.ErrNotExist) {
			sentinel = perrors.ErrPostsDirNotFound
		}
		readErr = fmt.Errorf("%w: %s: %w", sentinel, d.dir, readErr)
		log.Error("Failed to read posts directory", logfields.Path(d.dir), logfields.Error(readErr))
	}

	names := make([]string, 0, len(dirEntries))
	for _, e := range dirEntries {
		names = append(names, e.Name())
	}
	log.Debug("Posts directory listing", logfields.Path(d.dir), "files", names)

	for _, e := range dirEntries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		if d.opts.FilterExtension && !IsPostFile(name) {
			log.Debug("Skipping non-markdown entry", logfields.File(name))
			continue
		}
		c.add(d.stem(name), name)
	}

	log.Debug("Posts directory enumerated",
		logfields.Source(string(config.SourceDirectory)),
		logfields.Count(len(c.entries)))

	return Result{Entries: c.entries, Err: errors.Join(append([]error{readErr}, c.errs...)...)}
}

func (d *DirectoryEnumerator) stem(name string) string {
	if d.opts.StemMode == config.StemExtension {
		return ExtensionStem(name)
	}
	return LegacyDirectoryStem(name)
}
