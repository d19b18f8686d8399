package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	ferrors "git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
)

const namespace = "blogbuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg           *prom.Registry
	stageDuration *prom.HistogramVec
	buildDuration prom.Histogram
	stageResults  *prom.CounterVec
	buildOutcome  *prom.CounterVec
	posts         *prom.GaugeVec
	media         *prom.CounterVec
	findings      *prom.GaugeVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg
// (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of individual build stages",
		Buckets:   prom.DefBuckets,
	}, []string{"stage"})
	pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "build_duration_seconds",
		Help:      "Total build duration",
		Buckets:   prom.DefBuckets,
	})
	pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "stage_results_total",
		Help:      "Stage result counts by outcome",
	}, []string{"stage", "result"})
	pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "build_outcomes_total",
		Help:      "Build outcomes by final status",
	}, []string{"outcome"})
	pr.posts = prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "posts",
		Help:      "Export records of the last build by disposition",
	}, []string{"state"})
	pr.media = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "media_fetches_total",
		Help:      "Media fetch attempts by result",
	}, []string{"result"})
	pr.findings = prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_findings",
		Help:      "Audit findings of the last build by category",
	}, []string{"category"})
	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcome, pr.posts, pr.media, pr.findings)
	return pr
}

// Registry returns the registry the metrics are registered with.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.reg }

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) SetPostCounts(accepted, skipped int) {
	if p == nil {
		return
	}
	p.posts.WithLabelValues("accepted").Set(float64(accepted))
	p.posts.WithLabelValues("skipped").Set(float64(skipped))
}

func (p *PrometheusRecorder) AddMediaResults(fetched, failed, retried int) {
	if p == nil {
		return
	}
	p.media.WithLabelValues("fetched").Add(float64(fetched))
	p.media.WithLabelValues("failed").Add(float64(failed))
	p.media.WithLabelValues("retried").Add(float64(retried))
}

func (p *PrometheusRecorder) SetAuditFindings(category string, n int) {
	if p == nil {
		return
	}
	p.findings.WithLabelValues(category).Set(float64(n))
}

// WriteTextfile writes every registered metric to path in the text
// exposition format, replacing the file atomically.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prom.WriteToTextfile(path, p.reg); err != nil {
		return ferrors.FileSystemError("failed to write metrics textfile").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return nil
}
