package preview

import (
	"sync"

	"git.home.luguber.info/inful/blogbuilder/internal/site"
)

// buildStatus tracks the outcome of the most recent build for the HTTP handlers.
type buildStatus struct {
	mu           sync.RWMutex
	last         *site.Report // last report, including failed builds
	lastError    error
	hasGoodBuild bool // true if at least one build wrote the site
	builds       int
}

// statusSnapshot is a copy of buildStatus safe to read without the lock.
type statusSnapshot struct {
	Last         *site.Report
	LastError    error
	HasGoodBuild bool
	Builds       int
}

func (bs *buildStatus) record(report *site.Report, err error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.builds++
	if report != nil {
		bs.last = report
	}
	bs.lastError = err
	if err == nil {
		bs.hasGoodBuild = true
	}
}

func (bs *buildStatus) snapshot() statusSnapshot {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return statusSnapshot{
		Last:         bs.last,
		LastError:    bs.lastError,
		HasGoodBuild: bs.hasGoodBuild,
		Builds:       bs.builds,
	}
}
