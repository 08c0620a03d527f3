// Package metrics holds the prometheus collectors and the otel instruments
// shared across the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/metric"

	"paperboy/pkg/serrors"
)

// DefaultBuckets provides a common set of histogram buckets in seconds that can
// be reused across the application for latency metrics.
var DefaultBuckets = []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300} //nolint: gochecknoglobals

// Metrics groups the application's instruments. Counters use the prometheus
// client directly; the pipeline latency histogram is recorded through otel and
// surfaces on the same /metrics endpoint via the prometheus exporter.
type Metrics struct {
	// PipelineRuns counts pipeline invocations by kind (article, video).
	PipelineRuns *prometheus.CounterVec
	// PipelineFailures counts failed runs by failing stage.
	PipelineFailures *prometheus.CounterVec
	// Confirmations counts confirmation workflow outcomes
	// (accepted, rejected, timed_out).
	Confirmations *prometheus.CounterVec
	// Commands counts executed moderator commands by name.
	Commands *prometheus.CounterVec

	// PipelineDuration observes wall time of successful pipeline runs.
	PipelineDuration metric.Float64Histogram
}

// New registers the collectors on the default prometheus registerer and
// creates the otel instruments on the given meter.
func New(meter metric.Meter) (*Metrics, error) {
	duration, err := meter.Float64Histogram("paperboy.pipeline.duration",
		metric.WithDescription("Wall time of content pipeline runs in seconds"),
		metric.WithExplicitBucketBoundaries(DefaultBuckets...))
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not create duration histogram")
	}

	return &Metrics{
		PipelineRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "paperboy_pipeline_runs_total",
			Help: "Content pipeline invocations by source kind.",
		}, []string{"kind"}),
		PipelineFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "paperboy_pipeline_failures_total",
			Help: "Failed content pipeline runs by failing stage.",
		}, []string{"stage"}),
		Confirmations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "paperboy_confirmations_total",
			Help: "Domain confirmation workflow outcomes.",
		}, []string{"outcome"}),
		Commands: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "paperboy_commands_total",
			Help: "Moderator commands executed by name.",
		}, []string{"command"}),

		PipelineDuration: duration,
	}, nil
}
