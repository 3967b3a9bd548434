package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// BuildOutcome is the final status of a build.
type BuildOutcome string

const (
	OutcomeSuccess  BuildOutcome = "success"
	OutcomeWarning  BuildOutcome = "warning" // built, but enumeration or some pages failed
	OutcomeFailed   BuildOutcome = "failed"
	OutcomeCanceled BuildOutcome = "canceled"
)

// Stage names used as label values.
const (
	StageEnumerate = "enumerate"
	StageRender    = "render"
	StageIndex     = "index"
	StageManifest  = "manifest"
)

// Recorder defines observability hooks for builds. Implementations must tolerate a
// nil receiver.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome BuildOutcome)
	// ObserveEnumeration records one route enumeration for source ("directory" or "bundled").
	ObserveEnumeration(source string, routes int, err error)
	IncRenderCache(hit bool)
	IncNotification(success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncBuildOutcome(BuildOutcome)               {}
func (NoopRecorder) ObserveEnumeration(string, int, error)      {}
func (NoopRecorder) IncRenderCache(bool)                        {}
func (NoopRecorder) IncNotification(bool)                       {}

var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
)
