// Package eventstore records build events in SQLite and projects them into a build
// history.
package eventstore

import (
	"context"
	"sort"
	"time"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
)

// BuildSummary is the read model of one build.
type BuildSummary struct {
	BuildID          string        `json:"build_id"`
	Status           string        `json:"status"` // running, or the outcome once completed
	Trigger          string        `json:"trigger,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	Duration         time.Duration `json:"duration,omitempty"`
	Routes           []string      `json:"routes,omitempty"`
	Pages            int           `json:"pages"`
	FailedPages      int           `json:"failed_pages"`
	EnumerationError string        `json:"enumeration_error,omitempty"`
}

// BuildHistory folds events into summaries, newest first.
type BuildHistory struct {
	builds map[string]*BuildSummary
	order  []*BuildSummary
}

// NewBuildHistory returns an empty projection.
func NewBuildHistory() *BuildHistory {
	return &BuildHistory{builds: make(map[string]*BuildSummary)}
}

// LoadHistory replays every stored event.
func LoadHistory(ctx context.Context, store Store) (*BuildHistory, error) {
	events, err := store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return nil, err
	}
	h := NewBuildHistory()
	for _, e := range events {
		h.Apply(e)
	}
	return h, nil
}

// Apply folds one event into the projection. Undecodable payloads are ignored.
func (h *BuildHistory) Apply(e Event) {
	buildID := e.BuildID()
	if buildID == "" {
		return
	}

	s, ok := h.builds[buildID]
	if !ok {
		s = &BuildSummary{BuildID: buildID, Status: StatusRunning, StartedAt: e.Timestamp()}
		h.builds[buildID] = s
		h.order = append(h.order, s)
	}

	switch e.Type() {
	case TypeBuildStarted:
		var p BuildStartedPayload
		if Decode(e, &p) == nil {
			s.Trigger = p.Trigger
		}
		s.StartedAt = e.Timestamp()
	case TypeRoutesEnumerated:
		var p RoutesEnumeratedPayload
		if Decode(e, &p) == nil {
			s.Routes = p.Routes
		}
	case TypeEnumerationFailed:
		var p EnumerationFailedPayload
		if Decode(e, &p) == nil {
			s.EnumerationError = p.Error
			s.Routes = p.Partial
		}
	case TypeBuildCompleted:
		var p BuildCompletedPayload
		if Decode(e, &p) == nil {
			s.Pages = p.Pages
			s.FailedPages = p.FailedPages
			if p.EnumerationError != "" {
				s.EnumerationError = p.EnumerationError
			}
			s.Status = p.Outcome
		}
		if s.Status == "" || s.Status == StatusRunning {
			s.Status = StatusCompleted
		}
		done := e.Timestamp()
		s.CompletedAt = &done
		s.Duration = done.Sub(s.StartedAt)
	}
}

// List returns up to limit summaries, newest first. limit <= 0 returns all.
func (h *BuildHistory) List(limit int) []BuildSummary {
	sorted := make([]*BuildSummary, len(h.order))
	copy(sorted, h.order)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartedAt.After(sorted[j].StartedAt)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]BuildSummary, 0, len(sorted))
	for _, s := range sorted {
		out = append(out, *s)
	}
	return out
}

// Get returns the summary for buildID.
func (h *BuildHistory) Get(buildID string) (BuildSummary, bool) {
	s, ok := h.builds[buildID]
	if !ok {
		return BuildSummary{}, false
	}
	return *s, true
}
