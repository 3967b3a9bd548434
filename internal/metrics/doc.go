// Package metrics records build observability for blogbuilder.
//
// Components receive a Recorder and call it unconditionally. NoopRecorder is the
// default, so nothing needs nil checks; PrometheusRecorder is swapped in when
// metrics.enabled is set and exposed through HTTPHandler by the preview server.
//
//	rec := metrics.NewPrometheusRecorder(reg)
//	gen := site.NewGenerator(cfg, site.WithRecorder(rec))
package metrics
