package eventstore

import (
	"encoding/json"
	"time"

	berrors "git.home.luguber.info/inful/blogbuilder/internal/errors"
)

// Event type names as stored in the events table.
const (
	TypeBuildStarted      = "BuildStarted"
	TypeRoutesEnumerated  = "RoutesEnumerated"
	TypeEnumerationFailed = "EnumerationFailed"
	TypePageFailed        = "PageFailed"
	TypeBuildCompleted    = "BuildCompleted"
)

// BuildStartedPayload describes how a build was configured.
type BuildStartedPayload struct {
	Trigger  string `json:"trigger"` // cli, watch, schedule
	Source   string `json:"source"`  // directory or bundled
	PostsDir string `json:"posts_dir"`
	Prefix   string `json:"prefix"`
	Output   string `json:"output"`
}

// RoutesEnumeratedPayload is the Route Set a build will render.
type RoutesEnumeratedPayload struct {
	Count  int      `json:"count"`
	Routes []string `json:"routes"`
}

// EnumerationFailedPayload records a failed listing. Partial holds routes collected
// before the failure; the build continues with them.
type EnumerationFailedPayload struct {
	Dir     string   `json:"dir"`
	Error   string   `json:"error"`
	Partial []string `json:"partial"`
}

// PageFailedPayload records one route that could not be rendered.
type PageFailedPayload struct {
	Route  string `json:"route"`
	Source string `json:"source"`
	Error  string `json:"error"`
}

// BuildCompletedPayload summarizes a finished build.
type BuildCompletedPayload struct {
	Outcome          string `json:"outcome"`
	Routes           int    `json:"routes"`
	Pages            int    `json:"pages"`
	FailedPages      int    `json:"failed_pages"`
	EnumerationError string `json:"enumeration_error,omitempty"`
	DurationMS       int64  `json:"duration_ms"`
}

func newEvent(buildID, eventType string, payload any) (*BaseEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, berrors.EventStoreFailed("marshal "+eventType+" payload", err).
			WithContext("build_id", buildID)
	}
	return &BaseEvent{
		EventBuildID:   buildID,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   data,
	}, nil
}

func NewBuildStarted(buildID string, p BuildStartedPayload) (*BaseEvent, error) {
	e, err := newEvent(buildID, TypeBuildStarted, p)
	if err != nil {
		return nil, err
	}
	e.EventMetadata = map[string]string{"trigger": p.Trigger}
	return e, nil
}

func NewRoutesEnumerated(buildID string, routes []string) (*BaseEvent, error) {
	if routes == nil {
		routes = []string{}
	}
	return newEvent(buildID, TypeRoutesEnumerated, RoutesEnumeratedPayload{Count: len(routes), Routes: routes})
}

func NewEnumerationFailed(buildID, dir string, cause error, partial []string) (*BaseEvent, error) {
	if partial == nil {
		partial = []string{}
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return newEvent(buildID, TypeEnumerationFailed, EnumerationFailedPayload{Dir: dir, Error: msg, Partial: partial})
}

func NewPageFailed(buildID, route, source string, cause error) (*BaseEvent, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return newEvent(buildID, TypePageFailed, PageFailedPayload{Route: route, Source: source, Error: msg})
}

func NewBuildCompleted(buildID string, p BuildCompletedPayload) (*BaseEvent, error) {
	e, err := newEvent(buildID, TypeBuildCompleted, p)
	if err != nil {
		return nil, err
	}
	e.EventMetadata = map[string]string{"outcome": p.Outcome}
	return e, nil
}

// Decode unmarshals the payload of e into v.
func Decode(e Event, v any) error {
	if err := json.Unmarshal(e.Payload(), v); err != nil {
		return berrors.EventStoreFailed("unmarshal "+e.Type()+" payload", err).
			WithContext("event_id", e.ID())
	}
	return nil
}
