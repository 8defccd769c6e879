package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/keyword-miner/internal/enrichment"
	"github.com/jonathan/keyword-miner/internal/ledger"
	"github.com/jonathan/keyword-miner/internal/llm"
	"github.com/jonathan/keyword-miner/internal/prompts"
	"github.com/jonathan/keyword-miner/internal/types"
	"github.com/jonathan/keyword-miner/internal/workflow"
)

// Translation is one keyword's round trip through the target language.
type Translation struct {
	Original        string `json:"original"`
	Translated      string `json:"translated"`
	TranslationBack string `json:"translationBack"`
}

// TranslationData is the batch_translation response payload.
type TranslationData struct {
	TargetLanguage string                `json:"targetLanguage"`
	Keywords       []types.KeywordRecord `json:"keywords"`
	Translations   []Translation         `json:"translations"`
	Degraded       []Degradation         `json:"degraded,omitempty"`
}

var translationFormat = llm.OutputFormat([]llm.OutputField{
	{Name: "original", Description: "the keyword exactly as given"},
	{Name: "translated", Description: "what a local searcher would type"},
	{Name: "translationBack", Description: "the translation rendered back into the explanation language"},
}, false)

// HighDifficultyReasoning is attached to keywords skipped for being too hard.
func HighDifficultyReasoning(kd int) string {
	return fmt.Sprintf("Keyword Difficulty (KD %d) is too high for a new page to rank; skipped deep analysis.", kd)
}

func (r *Router) translateBatch(ctx context.Context, req *types.KeywordRequest, cfg *types.WorkflowConfig) (*run, error) {
	res := &run{mode: types.ModeBatchTranslation}
	keywords := req.Keywords.Normalize()
	if len(keywords) == 0 {
		return nil, invalidInput("keywords")
	}

	translations, fallbacks, err := r.translateAll(ctx, req, cfg, keywords)
	if err != nil {
		return nil, err
	}
	if fallbacks > 0 {
		note(res, workflow.StageBatchTranslate, degraded(struct{}{},
			fmt.Sprintf("%d of %d translations were unreadable; originals kept", fallbacks, len(keywords))))
	}

	records := translationRecords(translations)
	translated := make([]string, len(records))
	for i, rec := range records {
		translated[i] = rec.Keyword
	}

	enrichment.Apply(records, note(res, stageEnrichment, r.lookupData(ctx, translated, req.TargetLanguage)))

	threshold := r.opts.DifficultyThreshold
	toAnalyze := make([]types.KeywordRecord, 0, len(records))
	var skipped []types.KeywordRecord
	for _, rec := range records {
		if kd := rec.Difficulty(); kd > threshold {
			rec.RankingProbability = types.ProbabilityLow
			rec.Reasoning = HighDifficultyReasoning(kd)
			skipped = append(skipped, rec)
			continue
		}
		toAnalyze = append(toAnalyze, rec)
	}

	if req.WantsAnalysis() && len(toAnalyze) > 0 {
		toAnalyze = note(res, workflow.StageBatchAnalyze, r.analyze(ctx, analysisPrompt{
			file:           "translation.json",
			instruction:    workflow.PromptFor(cfg, workflow.StageBatchAnalyze, req.AnalyzePrompt),
			targetLanguage: req.TargetLanguage,
			uiLanguage:     req.DisplayLanguage(),
		}, toAnalyze))
	}

	out := append(toAnalyze, skipped...)
	res.count = len(out)
	res.cost = ledger.CostForKeywords(res.count)
	res.description = fmt.Sprintf("Batch translation to %s: %d keywords", req.TargetLanguage, res.count)
	res.relatedEntity = strings.Join(keywords[:min(3, len(keywords))], ", ")
	res.data = &TranslationData{
		TargetLanguage: req.TargetLanguage,
		Keywords:       out,
		Translations:   translations,
		Degraded:       res.degraded,
	}
	return res, nil
}

// translationRecords turns translations into records, one per distinct
// translated keyword. Inputs that land on the same phrase share a record whose
// Translation lists every original.
func translationRecords(translations []Translation) []types.KeywordRecord {
	records := make([]types.KeywordRecord, 0, len(translations))
	byKeyword := make(map[string]int, len(translations))
	for _, t := range translations {
		key := strings.ToLower(strings.TrimSpace(t.Translated))
		if i, dup := byKeyword[key]; dup {
			records[i].Translation += ", " + t.Original
			continue
		}
		byKeyword[key] = len(records)
		records = append(records, types.KeywordRecord{
			ID:           uuid.NewString(),
			Keyword:      t.Translated,
			Translation:  t.Original,
			SearchIntent: types.IntentInformational,
		})
	}
	return records
}

// translateAll translates every keyword with bounded concurrency. A transport
// failure on any call fails the batch; unreadable replies keep the original.
func (r *Router) translateAll(ctx context.Context, req *types.KeywordRequest, cfg *types.WorkflowConfig, keywords []string) ([]Translation, int, error) {
	instruction := workflow.PromptFor(cfg, workflow.StageBatchTranslate, req.SystemInstruction)
	out := make([]Translation, len(keywords))
	var fallbacks atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.TranslateConcurrency)
	for i, kw := range keywords {
		g.Go(func() error {
			t, ok, err := r.translateOne(gctx, instruction, req, kw)
			if err != nil {
				return err
			}
			if !ok {
				fallbacks.Add(1)
			}
			out[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, &ExternalServiceError{Stage: workflow.StageBatchTranslate, Err: err}
	}
	return out, int(fallbacks.Load()), nil
}

func (r *Router) translateOne(ctx context.Context, instruction string, req *types.KeywordRequest, keyword string) (Translation, bool, error) {
	fallback := Translation{Original: keyword, Translated: keyword}

	prompt, err := prompts.Render("translation.json", "translate", map[string]string{
		"Instruction":    instruction,
		"TargetLanguage": req.TargetLanguage,
		"UILanguage":     req.DisplayLanguage(),
		"Keywords":       keyword,
		"Format":         translationFormat,
	})
	if err != nil {
		return fallback, false, eris.Wrap(err, "pipeline: build translation prompt")
	}

	text, err := r.deps.LLM.GenerateJSON(ctx, prompt, llm.TierLite)
	if err != nil {
		return fallback, false, err
	}

	var t Translation
	if err := llm.Extract(text, &t); err != nil || strings.TrimSpace(t.Translated) == "" {
		return fallback, false, nil
	}
	return Translation{
		Original:        keyword,
		Translated:      strings.TrimSpace(t.Translated),
		TranslationBack: strings.TrimSpace(t.TranslationBack),
	}, true, nil
}
