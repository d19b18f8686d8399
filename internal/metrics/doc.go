// Package metrics records build metrics.
//
// Components receive a Recorder through injection and default to
// NoopRecorder, so no call site checks whether metrics are enabled:
//
//	svc := build.NewService(cfg, logger).WithRecorder(metrics.NewPrometheusRecorder(nil))
//
// PrometheusRecorder keeps its own registry. A one-shot CLI has nothing to
// scrape it, so the registry is written in the node_exporter textfile
// format at the end of the run (WriteTextfile).
package metrics
