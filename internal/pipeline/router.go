package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/keyword-miner/internal/ledger"
	"github.com/jonathan/keyword-miner/internal/types"
	"github.com/jonathan/keyword-miner/internal/workflow"
)

// debitTimeout bounds the post-run debit, which runs even if the pipeline
// used up the request deadline.
const debitTimeout = 10 * time.Second

// Run outcomes reported to the Recorder.
const (
	OutcomeSuccess     = "success"
	OutcomeDegraded    = "degraded"
	OutcomeDebitFailed = "debit_failed"
	OutcomeRejected    = "rejected"
	OutcomeFailed      = "failed"
)

// Response is the body of a successful mode request.
type Response struct {
	Success bool       `json:"success"`
	Mode    types.Mode `json:"mode"`
	Data    any        `json:"data"`
	Warning string     `json:"warning,omitempty"`
}

// Router is the Mode Router: it validates a request, checks the account can
// pay the estimated cost, dispatches to a pipeline and debits the actual cost.
type Router struct {
	deps Deps
	opts Options
	rec  Recorder
}

// NewRouter creates a Router.
func NewRouter(deps Deps) *Router {
	rec := deps.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Router{deps: deps, opts: deps.Options.normalized(), rec: rec}
}

// Handle decodes a raw request body and runs it for accountID.
func (r *Router) Handle(ctx context.Context, accountID uuid.UUID, body []byte) (*Response, error) {
	var req types.KeywordRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, decodeError(err)
	}
	return r.Run(ctx, accountID, &req)
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return invalidInput(typeErr.Field)
	}
	return invalidInput("body")
}

// Run executes a decoded request.
func (r *Router) Run(ctx context.Context, accountID uuid.UUID, req *types.KeywordRequest) (*Response, error) {
	if accountID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if err := req.Validate(); err != nil {
		if fields := types.InvalidFields(err); len(fields) > 0 {
			return nil, invalidInput(fields...)
		}
		return nil, invalidInput("body")
	}

	cost, err := EstimateCost(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	// A honored skip is a test run: no pre-check and no debit.
	skipCredits := req.SkipCreditsCheck && r.opts.AllowSkipCheck
	if !skipCredits {
		if _, err := r.deps.Ledger.Require(ctx, accountID, cost); err != nil {
			r.rec.RunFinished(req.Mode, OutcomeRejected, time.Since(start))
			return nil, err
		}
	}

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	res, err := r.dispatch(ctx, accountID, req)
	if err != nil {
		outcome := OutcomeFailed
		var inv *InvalidInputError
		if errors.As(err, &inv) || errors.Is(err, workflow.ErrConfigNotFound) || errors.Is(err, workflow.ErrWorkflowMismatch) {
			outcome = OutcomeRejected
		}
		r.rec.RunFinished(req.Mode, outcome, time.Since(start))
		return nil, err
	}
	for _, d := range res.degraded {
		r.rec.StageDegraded(req.Mode, d.Stage)
	}

	resp := &Response{Success: true, Mode: req.Mode, Data: res.data}
	outcome := OutcomeSuccess
	if len(res.degraded) > 0 {
		outcome = OutcomeDegraded
	}
	if !skipCredits {
		if warning := r.debit(ctx, accountID, res); warning != "" {
			resp.Warning = warning
			outcome = OutcomeDebitFailed
		}
	}
	r.rec.RunFinished(req.Mode, outcome, time.Since(start))
	return resp, nil
}

// EstimateCost is the pre-work credit estimate for a request.
func EstimateCost(req *types.KeywordRequest) (int, error) {
	switch req.Mode {
	case types.ModeKeywordMining:
		if strings.TrimSpace(req.SeedKeyword) == "" {
			return 0, invalidInput("seedKeyword")
		}
		return ledger.CostForKeywords(req.ClampedWordsPerRound()), nil
	case types.ModeBatchTranslation:
		n := len(req.Keywords.Normalize())
		if n == 0 {
			return 0, invalidInput("keywords")
		}
		return ledger.CostForKeywords(n), nil
	case types.ModeDeepDive:
		if req.Keyword == nil || req.Keyword.Keyword == "" {
			return 0, invalidInput("keyword")
		}
		return ledger.DeepDiveCost, nil
	default:
		return 0, invalidInput("mode")
	}
}

func (r *Router) dispatch(ctx context.Context, accountID uuid.UUID, req *types.KeywordRequest) (*run, error) {
	cfg, err := r.resolve(ctx, accountID, req)
	if err != nil {
		return nil, err
	}

	switch req.Mode {
	case types.ModeKeywordMining:
		return r.mine(ctx, req, cfg)
	case types.ModeBatchTranslation:
		return r.translateBatch(ctx, req, cfg)
	case types.ModeDeepDive:
		return r.deepDive(ctx, req, cfg)
	default:
		return nil, invalidInput("mode")
	}
}

func (r *Router) resolve(ctx context.Context, accountID uuid.UUID, req *types.KeywordRequest) (*types.WorkflowConfig, error) {
	if r.deps.Workflows == nil {
		if req.WorkflowConfigID != "" {
			return nil, workflow.ErrConfigNotFound
		}
		if req.WorkflowConfig != nil && req.WorkflowConfig.WorkflowID != req.Mode {
			return nil, &workflow.MismatchError{Expected: req.Mode, Got: req.WorkflowConfig.WorkflowID}
		}
		return req.WorkflowConfig, nil
	}
	return r.deps.Workflows.Resolve(ctx, workflow.Request{
		AccountID: accountID,
		ConfigID:  req.WorkflowConfigID,
		Inline:    req.WorkflowConfig,
		Expected:  req.Mode,
	})
}

// debit charges the actual cost. A failure is returned as a warning because
// the work has already been produced.
func (r *Router) debit(ctx context.Context, accountID uuid.UUID, res *run) string {
	if res.cost <= 0 {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), debitTimeout)
	defer cancel()

	_, err := r.deps.Ledger.Debit(ctx, ledger.DebitRequest{
		AccountID:     accountID,
		Amount:        res.cost,
		ModeID:        string(res.mode),
		Description:   res.description,
		RelatedEntity: res.relatedEntity,
	})
	if err != nil {
		zap.L().Warn("credit debit failed after successful run",
			zap.String("mode", string(res.mode)),
			zap.String("account_id", accountID.String()),
			zap.Int("amount", res.cost),
			zap.Error(err),
		)
		return "Credits could not be deducted: " + err.Error()
	}
	r.rec.CreditsDebited(res.mode, res.cost)
	return ""
}
