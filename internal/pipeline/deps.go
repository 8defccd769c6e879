// Package pipeline implements the three keyword pipelines and the Mode Router
// that meters them against the credit ledger.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jonathan/keyword-miner/internal/enrichment"
	"github.com/jonathan/keyword-miner/internal/ledger"
	"github.com/jonathan/keyword-miner/internal/llm"
	"github.com/jonathan/keyword-miner/internal/serp"
	"github.com/jonathan/keyword-miner/internal/types"
	"github.com/jonathan/keyword-miner/internal/workflow"
)

// Ledger is the subset of the Ledger Accessor the router uses.
type Ledger interface {
	Require(ctx context.Context, accountID uuid.UUID, cost int) (*ledger.Balance, error)
	Debit(ctx context.Context, req ledger.DebitRequest) (*ledger.Balance, error)
}

// ConfigResolver resolves the workflow config of a request.
type ConfigResolver interface {
	Resolve(ctx context.Context, req workflow.Request) (*types.WorkflowConfig, error)
}

// Recorder receives pipeline metrics. internal/metrics implements it.
type Recorder interface {
	RunFinished(mode types.Mode, outcome string, duration time.Duration)
	CreditsDebited(mode types.Mode, amount int)
	StageDegraded(mode types.Mode, stage string)
}

type nopRecorder struct{}

func (nopRecorder) RunFinished(types.Mode, string, time.Duration) {}
func (nopRecorder) CreditsDebited(types.Mode, int)                {}
func (nopRecorder) StageDegraded(types.Mode, string)              {}

// Options tunes pipeline behavior.
type Options struct {
	// Timeout bounds one request end to end. Zero means no deadline.
	Timeout time.Duration
	// SynthesisReserve is the time kept back for the deep dive verdict and
	// render; competition scans stop when less than this remains.
	SynthesisReserve time.Duration
	// DifficultyThreshold is the KD above which translation skips analysis.
	DifficultyThreshold int
	// SerpTopN is how many search results feed each competition note.
	SerpTopN int
	// MaxCompetitionScans caps the core keywords scanned in a deep dive.
	MaxCompetitionScans int
	// TranslateConcurrency bounds parallel translation calls.
	TranslateConcurrency int
	// AllowSkipCheck honors the skipCreditsCheck request flag.
	AllowSkipCheck bool
}

// MaxCompetitionScans is the hard cap on deep dive searches per request.
const MaxCompetitionScans = 5

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:              150 * time.Second,
		SynthesisReserve:     25 * time.Second,
		DifficultyThreshold:  40,
		SerpTopN:             5,
		MaxCompetitionScans:  MaxCompetitionScans,
		TranslateConcurrency: 5,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.DifficultyThreshold <= 0 {
		o.DifficultyThreshold = def.DifficultyThreshold
	}
	if o.SerpTopN <= 0 {
		o.SerpTopN = def.SerpTopN
	}
	if o.MaxCompetitionScans <= 0 || o.MaxCompetitionScans > MaxCompetitionScans {
		o.MaxCompetitionScans = MaxCompetitionScans
	}
	if o.TranslateConcurrency <= 0 {
		o.TranslateConcurrency = def.TranslateConcurrency
	}
	return o
}

// Deps are the collaborators of every pipeline. Enrichment and Search may be
// nil; the stages that need them then degrade.
type Deps struct {
	LLM        llm.Client
	Enrichment enrichment.Client
	Search     serp.Searcher
	// SearchLimiter paces deep dive searches. Nil disables pacing.
	SearchLimiter *rate.Limiter
	Ledger        Ledger
	Workflows     ConfigResolver
	Recorder      Recorder
	Options       Options
}
