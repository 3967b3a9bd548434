package site

import (
	"time"

	"git.home.luguber.info/inful/blogbuilder/internal/metrics"
)

// BrokenLink is an internal link whose target is not in the Route Set.
type BrokenLink struct {
	Route  string `json:"route"`
	Target string `json:"target"`
}

// Report summarizes one Generate call.
type Report struct {
	BuildID string
	Start   time.Time
	End     time.Time
	// Routes is the enumerated Route Set, in enumeration order. It is never nil and may be
	// partial when EnumerationErr is set.
	Routes []string
	// EnumerationErr is non-nil when listing failed or routes collided. It is not fatal.
	EnumerationErr error
	Pages          int // pages written
	FailedPages    int // routes that could not be loaded or rendered
	BrokenLinks    []BrokenLink
	StageDurations map[string]time.Duration
	Outcome        metrics.BuildOutcome
	OutputDir      string
}

// Duration is the wall time of the build.
func (r *Report) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

func (r *Report) deriveOutcome() {
	switch {
	case r.EnumerationErr != nil, r.FailedPages > 0:
		r.Outcome = metrics.OutcomeWarning
	default:
		r.Outcome = metrics.OutcomeSuccess
	}
}

func (r *Report) enumerationError() string {
	if r.EnumerationErr == nil {
		return ""
	}
	return r.EnumerationErr.Error()
}
