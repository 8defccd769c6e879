// Package workflow resolves the per-request workflow config and the prompt
// each pipeline stage runs with.
package workflow

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/jonathan/keyword-miner/internal/db"
	"github.com/jonathan/keyword-miner/internal/prompts"
	"github.com/jonathan/keyword-miner/internal/types"
)

// Stage ids.
const (
	StageMiningGen           = "mining-gen"
	StageMiningAnalyze       = "mining-analyze"
	StageBatchTranslate      = "batch-translate"
	StageBatchAnalyze        = "batch-analyze"
	StageDeepDiveStrategy    = "deepdive-strategy"
	StageDeepDiveExtract     = "deepdive-extract"
	StageDeepDiveCompetition = "deepdive-competition"
	StageDeepDiveProbability = "deepdive-probability"
)

// Resolution errors. Both are returned before any external call.
var (
	ErrWorkflowMismatch = errors.New("workflow config does not match the requested mode")
	ErrConfigNotFound   = errors.New("workflow config not found")
)

// MismatchError carries the two disagreeing workflow ids.
type MismatchError struct {
	Expected types.Mode
	Got      types.Mode
}

func (e *MismatchError) Error() string {
	return "workflow config is for " + string(e.Got) + ", request mode is " + string(e.Expected)
}

// Is lets errors.Is match ErrWorkflowMismatch.
func (e *MismatchError) Is(target error) bool {
	return target == ErrWorkflowMismatch
}

// Store loads saved configs. *db.DB implements it.
type Store interface {
	GetWorkflowConfig(ctx context.Context, id, userID uuid.UUID) (*db.WorkflowConfigRow, error)
}

// Resolver is the Workflow Config Resolver.
type Resolver struct {
	store Store
}

// NewResolver creates a Resolver. store may be nil when saved configs are unsupported.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Request is what a pipeline knows about the caller's config choice.
type Request struct {
	AccountID uuid.UUID
	ConfigID  string
	Inline    *types.WorkflowConfig
	Expected  types.Mode
}

// Resolve returns the config for this request, or nil when none was supplied.
// A config id takes precedence over an inline config.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*types.WorkflowConfig, error) {
	var cfg *types.WorkflowConfig

	switch {
	case req.ConfigID != "":
		loaded, err := r.load(ctx, req.AccountID, req.ConfigID)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case req.Inline != nil:
		cfg = req.Inline
	default:
		return nil, nil
	}

	if cfg.WorkflowID != req.Expected {
		return nil, &MismatchError{Expected: req.Expected, Got: cfg.WorkflowID}
	}
	return cfg, nil
}

func (r *Resolver) load(ctx context.Context, accountID uuid.UUID, rawID string) (*types.WorkflowConfig, error) {
	id, err := uuid.Parse(rawID)
	if err != nil || r.store == nil {
		return nil, ErrConfigNotFound
	}

	row, err := r.store.GetWorkflowConfig(ctx, id, accountID)
	if err != nil {
		if errors.Is(err, db.ErrWorkflowConfigNotFound) {
			return nil, ErrConfigNotFound
		}
		return nil, eris.Wrap(err, "workflow: load config")
	}

	cfg := &types.WorkflowConfig{
		ID:         row.ID.String(),
		WorkflowID: types.Mode(row.WorkflowID),
		Name:       row.Name,
		Nodes:      make([]types.WorkflowNode, 0, len(row.Nodes)),
	}
	for _, n := range row.Nodes {
		cfg.Nodes = append(cfg.Nodes, types.WorkflowNode{ID: n.ID, Prompt: n.Prompt})
	}
	return cfg, nil
}

// PromptFor returns the instruction for a stage: the config node's prompt,
// then the caller's override, then the compiled-in default.
func PromptFor(cfg *types.WorkflowConfig, stageID, override string) string {
	if node, ok := cfg.Node(stageID); ok && node.Prompt != "" {
		return node.Prompt
	}
	if override != "" {
		return override
	}
	prompt, err := prompts.Default(stageID)
	if err != nil {
		// Stage ids are compile-time constants with embedded defaults.
		panic(err)
	}
	return prompt
}
