package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jonathan/keyword-miner/internal/ledger"
	"github.com/jonathan/keyword-miner/internal/llm"
	"github.com/jonathan/keyword-miner/internal/prompts"
	"github.com/jonathan/keyword-miner/internal/schemas"
	"github.com/jonathan/keyword-miner/internal/types"
	"github.com/jonathan/keyword-miner/internal/workflow"
)

// MiningData is the keyword_mining response payload.
type MiningData struct {
	SeedKeyword string                `json:"seedKeyword"`
	RoundIndex  int                   `json:"roundIndex"`
	Strategy    string                `json:"strategy"`
	Keywords    []types.KeywordRecord `json:"keywords"`
	Degraded    []Degradation         `json:"degraded,omitempty"`
}

type generatedKeyword struct {
	Keyword      string          `json:"keyword"`
	Translation  string          `json:"translation"`
	Intent       string          `json:"intent"`
	SearchIntent string          `json:"searchIntent"`
	Volume       json.RawMessage `json:"volume"`
}

// UnmarshalJSON also accepts a bare keyword string.
func (g *generatedKeyword) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		*g = generatedKeyword{}
		return json.Unmarshal(data, &g.Keyword)
	}
	type plain generatedKeyword
	return json.Unmarshal(data, (*plain)(g))
}

var miningFormat = llm.OutputFormat([]llm.OutputField{
	{Name: "keyword", Description: "in the target market language"},
	{Name: "translation", Description: "meaning in the explanation language"},
	{Name: "searchIntent", Description: "Informational, Commercial, Transactional or Navigational"},
	{Name: "volume", Type: "number", Description: "estimated monthly searches"},
}, true)

func (r *Router) mine(ctx context.Context, req *types.KeywordRequest, cfg *types.WorkflowConfig) (*run, error) {
	res := &run{mode: types.ModeKeywordMining}
	seed := strings.TrimSpace(req.SeedKeyword)
	count := req.ClampedWordsPerRound()
	strategy := req.Strategy()

	existing := "(none)"
	if len(req.ExistingKeywords) > 0 {
		existing = strings.Join(req.ExistingKeywords, ", ")
	}
	steering := ""
	if s := strings.TrimSpace(req.UserSuggestion); s != "" {
		steering = "User guidance: " + s
	}

	prompt, err := prompts.Render("mining.json", "generate", map[string]string{
		"Instruction":      workflow.PromptFor(cfg, workflow.StageMiningGen, req.SystemInstruction),
		"Seed":             seed,
		"TargetLanguage":   req.TargetLanguage,
		"UILanguage":       req.DisplayLanguage(),
		"Round":            fmt.Sprint(req.RoundIndex),
		"Strategy":         strategy,
		"StrategyGuidance": prompts.MustGet("mining.json", strategy),
		"Steering":         steering,
		"Existing":         existing,
		"Count":            fmt.Sprint(count),
		"Format":           miningFormat,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: build mining prompt")
	}

	text, err := r.deps.LLM.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		return nil, &ExternalServiceError{Stage: workflow.StageMiningGen, Err: err}
	}

	records, err := parseGenerated(text, req.ExistingKeywords, count)
	if err != nil {
		return nil, &ExternalServiceError{Stage: workflow.StageMiningGen, Err: err}
	}

	if req.WantsAnalysis() {
		records = note(res, workflow.StageMiningAnalyze, r.analyze(ctx, analysisPrompt{
			file:           "mining.json",
			instruction:    workflow.PromptFor(cfg, workflow.StageMiningAnalyze, req.AnalyzePrompt),
			targetLanguage: req.TargetLanguage,
			uiLanguage:     req.DisplayLanguage(),
		}, records))
	}

	res.count = len(records)
	res.cost = ledger.CostForKeywords(res.count)
	res.description = fmt.Sprintf("Keyword mining for %q: %d keywords", seed, res.count)
	res.relatedEntity = seed
	res.data = &MiningData{
		SeedKeyword: seed,
		RoundIndex:  req.RoundIndex,
		Strategy:    strategy,
		Keywords:    records,
		Degraded:    res.degraded,
	}
	return res, nil
}

// parseGenerated turns the generation reply into at most limit new records,
// skipping blanks and anything already seen.
func parseGenerated(text string, existing []string, limit int) ([]types.KeywordRecord, error) {
	var raw json.RawMessage
	if err := llm.ArrayExtractor.Extract(text, &raw); err != nil {
		return nil, err
	}
	if err := schemas.Validate(schemas.KeywordList, raw); err != nil {
		zap.L().Debug("generated keywords do not match schema", zap.Error(err))
	}

	var items []generatedKeyword
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, eris.Wrapf(llm.ErrExtractionFailed, "decode keywords: %v", err)
	}

	seen := make(map[string]struct{}, len(existing)+len(items))
	for _, kw := range existing {
		seen[strings.ToLower(strings.TrimSpace(kw))] = struct{}{}
	}

	records := make([]types.KeywordRecord, 0, min(len(items), limit))
	for _, it := range items {
		kw := strings.TrimSpace(it.Keyword)
		key := strings.ToLower(kw)
		if kw == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		intent := it.SearchIntent
		if intent == "" {
			intent = it.Intent
		}
		records = append(records, types.KeywordRecord{
			ID:           uuid.NewString(),
			Keyword:      kw,
			Translation:  strings.TrimSpace(it.Translation),
			SearchIntent: types.ParseSearchIntent(intent),
			Volume:       types.ParseVolume(it.Volume),
		})
		if len(records) == limit {
			break
		}
	}
	if len(records) == 0 {
		return nil, eris.Wrap(llm.ErrExtractionFailed, "no usable keywords in reply")
	}
	return records, nil
}
