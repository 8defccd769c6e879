package pipeline

import (
	"go.uber.org/zap"

	"github.com/jonathan/keyword-miner/internal/types"
)

// Outcome is a stage result that may have fallen back to a default.
type Outcome[T any] struct {
	Value    T
	Degraded bool
	Reason   string
}

func succeeded[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

func degraded[T any](v T, reason string) Outcome[T] {
	return Outcome[T]{Value: v, Degraded: true, Reason: reason}
}

// Degradation names a stage that returned a fallback and why.
type Degradation struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// run collects what a pipeline produced for the router.
type run struct {
	mode          types.Mode
	data          any
	count         int
	cost          int
	description   string
	relatedEntity string
	degraded      []Degradation
}

// note records a degraded outcome on the run and logs it.
func note[T any](r *run, stage string, o Outcome[T]) T {
	if o.Degraded {
		r.degraded = append(r.degraded, Degradation{Stage: stage, Reason: o.Reason})
		zap.L().Warn("pipeline stage degraded",
			zap.String("mode", string(r.mode)),
			zap.String("stage", stage),
			zap.String("error", o.Reason),
		)
	}
	return o.Value
}
