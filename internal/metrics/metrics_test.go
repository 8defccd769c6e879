package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/keyword-miner/internal/resilience"
	"github.com/jonathan/keyword-miner/internal/types"
)

func TestRecorder_Runs(t *testing.T) {
	rec := New(prometheus.NewRegistry())

	rec.RunFinished(types.ModeKeywordMining, "success", 2*time.Second)
	rec.RunFinished(types.ModeKeywordMining, "success", 3*time.Second)
	rec.RunFinished(types.ModeDeepDive, "rejected", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.runs.WithLabelValues("keyword_mining", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.runs.WithLabelValues("deep_dive", "rejected")))
	assert.Equal(t, 2, testutil.CollectAndCount(rec.runDuration))
}

func TestRecorder_CreditsAndDegraded(t *testing.T) {
	rec := New(prometheus.NewRegistry())

	rec.CreditsDebited(types.ModeBatchTranslation, 60)
	rec.CreditsDebited(types.ModeBatchTranslation, 0)
	rec.StageDegraded(types.ModeDeepDive, "deepdive-competition")
	rec.StageDegraded(types.ModeDeepDive, "deepdive-competition")

	assert.Equal(t, 60.0, testutil.ToFloat64(rec.credits.WithLabelValues("batch_translation")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.degraded.WithLabelValues("deep_dive", "deepdive-competition")))
}

func TestRecorder_Observer(t *testing.T) {
	rec := New(prometheus.NewRegistry())
	observe := rec.Observer("llm")

	observe("generate_json", nil)
	observe("generate_json", resilience.Transient(errors.New("overloaded"), 503))
	observe("generate_content", errors.New("bad request"))

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.externalCalls.WithLabelValues("llm", "generate_json", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.externalCalls.WithLabelValues("llm", "generate_json", "transient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.externalCalls.WithLabelValues("llm", "generate_content", "error")))
}

func TestCallOutcome(t *testing.T) {
	assert.Equal(t, "ok", CallOutcome(nil))
	assert.Equal(t, "timeout", CallOutcome(context.DeadlineExceeded))
	assert.Equal(t, "transient", CallOutcome(errors.New("read: connection reset by peer")))
	assert.Equal(t, "error", CallOutcome(errors.New("invalid api key")))
}

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
