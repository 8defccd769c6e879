// Package metrics exposes pipeline and external call counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonathan/keyword-miner/internal/resilience"
	"github.com/jonathan/keyword-miner/internal/types"
)

const namespace = "keyword_miner"

// Recorder implements pipeline.Recorder on top of Prometheus collectors.
type Recorder struct {
	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	credits       *prometheus.CounterVec
	degraded      *prometheus.CounterVec
	externalCalls *prometheus.CounterVec
}

// New creates a Recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by mode and outcome",
		}, []string{"mode", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Pipeline run latency by mode",
			Buckets:   []float64{1, 5, 15, 30, 60, 90, 120, 150, 180},
		}, []string{"mode"}),
		credits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_debited_total",
			Help:      "Credits charged by mode",
		}, []string{"mode"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_stages_total",
			Help:      "Secondary stages that fell back to a default",
		}, []string{"mode", "stage"}),
		externalCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_calls_total",
			Help:      "Calls to external services by outcome",
		}, []string{"service", "operation", "outcome"}),
	}
	reg.MustRegister(r.runs, r.runDuration, r.credits, r.degraded, r.externalCalls)
	return r
}

// RunFinished records one finished request.
func (r *Recorder) RunFinished(mode types.Mode, outcome string, d time.Duration) {
	r.runs.WithLabelValues(string(mode), outcome).Inc()
	r.runDuration.WithLabelValues(string(mode)).Observe(d.Seconds())
}

// CreditsDebited adds a successful charge.
func (r *Recorder) CreditsDebited(mode types.Mode, amount int) {
	if amount <= 0 {
		return
	}
	r.credits.WithLabelValues(string(mode)).Add(float64(amount))
}

// StageDegraded counts a stage that used its fallback.
func (r *Recorder) StageDegraded(mode types.Mode, stage string) {
	r.degraded.WithLabelValues(string(mode), stage).Inc()
}

// ExternalCall records the outcome of one call to service.
func (r *Recorder) ExternalCall(service, operation string, err error) {
	r.externalCalls.WithLabelValues(service, operation, CallOutcome(err)).Inc()
}

// Observer returns a callback bound to one service, usable as llm.CallObserver.
func (r *Recorder) Observer(service string) func(operation string, err error) {
	return func(operation string, err error) {
		r.ExternalCall(service, operation, err)
	}
}

// CallOutcome buckets an error for the outcome label.
func CallOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case resilience.IsTransient(err):
		return "transient"
	default:
		return "error"
	}
}
