package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "blogbuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration *prom.HistogramVec
	stageResults  *prom.CounterVec
	buildDuration prom.Histogram
	buildOutcome  *prom.CounterVec
	enumerations  *prom.CounterVec
	routes        *prom.GaugeVec
	renderCache   *prom.CounterVec
	notifications *prom.CounterVec
	lastBuildUnix prom.Gauge
}

// NewPrometheusRecorder constructs the collectors and registers them on reg
// (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		enumerations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "route_enumerations_total",
			Help:      "Route enumerations by source and result",
		}, []string{"source", "result"}),
		routes: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "routes",
			Help:      "Routes produced by the most recent enumeration",
		}, []string{"source"}),
		renderCache: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "render_cache_lookups_total",
			Help:      "Rendered page cache lookups by result",
		}, []string{"result"}),
		notifications: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Build notifications published by result",
		}, []string{"result"}),
		lastBuildUnix: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_build_timestamp_seconds",
			Help:      "Unix time the last build finished",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.buildDuration, pr.buildOutcome,
		pr.enumerations, pr.routes, pr.renderCache, pr.notifications, pr.lastBuildUnix)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcome) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
	p.lastBuildUnix.SetToCurrentTime()
}

func (p *PrometheusRecorder) ObserveEnumeration(source string, routes int, err error) {
	if p == nil {
		return
	}
	p.enumerations.WithLabelValues(source, resultOf(err == nil)).Inc()
	p.routes.WithLabelValues(source).Set(float64(routes))
}

func (p *PrometheusRecorder) IncRenderCache(hit bool) {
	if p == nil {
		return
	}
	res := "miss"
	if hit {
		res = "hit"
	}
	p.renderCache.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) IncNotification(success bool) {
	if p == nil {
		return
	}
	p.notifications.WithLabelValues(resultOf(success)).Inc()
}

func resultOf(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
