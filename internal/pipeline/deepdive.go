package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/jonathan/keyword-miner/internal/enrichment"
	"github.com/jonathan/keyword-miner/internal/ledger"
	"github.com/jonathan/keyword-miner/internal/llm"
	"github.com/jonathan/keyword-miner/internal/prompts"
	"github.com/jonathan/keyword-miner/internal/rendering"
	"github.com/jonathan/keyword-miner/internal/schemas"
	"github.com/jonathan/keyword-miner/internal/serp"
	"github.com/jonathan/keyword-miner/internal/types"
	"github.com/jonathan/keyword-miner/internal/workflow"
)

// Core keyword bounds for the competition scan.
const (
	minCoreKeywords = 3
	maxCoreKeywords = 8
)

const stageRender = "render"

// DeepDiveData is the deep_dive response payload.
type DeepDiveData struct {
	Keyword            types.KeywordRecord     `json:"keyword"`
	Strategy           *types.StrategyReport   `json:"strategy"`
	CoreKeywords       []types.KeywordRecord   `json:"coreKeywords"`
	Competition        []types.CompetitionNote `json:"competition"`
	RankingProbability types.Probability       `json:"rankingProbability"`
	SearchIntent       string                  `json:"searchIntent,omitempty"`
	IntentMatch        string                  `json:"intentMatch,omitempty"`
	RankingAnalysis    string                  `json:"rankingAnalysis"`
	HTML               string                  `json:"html"`
	Degraded           []Degradation           `json:"degraded,omitempty"`
}

// Verdict is the probability synthesis of a deep dive.
type Verdict struct {
	Probability  string `json:"probability"`
	SearchIntent string `json:"searchIntent"`
	IntentMatch  string `json:"intentMatch"`
	Analysis     string `json:"analysis"`
}

var strategyFormat = llm.OutputFormat([]llm.OutputField{
	{Name: "pageTitle", Description: "target language"},
	{Name: "pageTitleTranslation", Description: "explanation language"},
	{Name: "metaDescription", Description: "under 160 characters"},
	{Name: "metaDescriptionTranslation"},
	{Name: "urlSlug", Description: "lowercase, hyphenated"},
	{Name: "contentStructure", Type: `[{"header": string, "headerTranslation": string, "body": string, "bodyTranslation": string}]`, Description: "H2/H3 outline in order"},
	{Name: "longTailKeywords", Type: "[string]"},
	{Name: "longTailKeywordsTranslation", Type: "[string]"},
	{Name: "recommendedWordCount", Type: "integer"},
}, false)

var verdictFormat = llm.OutputFormat([]llm.OutputField{
	{Name: "probability", Description: "High, Medium or Low"},
	{Name: "searchIntent", Description: "the dominant intent behind the keyword"},
	{Name: "intentMatch", Description: "how well the planned page matches that intent"},
	{Name: "analysis", Description: "a short paragraph justifying the call"},
}, false)

func (r *Router) deepDive(ctx context.Context, req *types.KeywordRequest, cfg *types.WorkflowConfig) (*run, error) {
	res := &run{mode: types.ModeDeepDive}
	if req.Keyword == nil || req.Keyword.Keyword == "" {
		return nil, invalidInput("keyword")
	}
	seed := req.Keyword.Record()

	parsed, err := r.strategy(ctx, req, cfg, seed)
	if err != nil {
		return nil, err
	}
	report := note(res, workflow.StageDeepDiveStrategy, reportOutcome(parsed, seed.Keyword))

	coreWords := note(res, workflow.StageDeepDiveExtract, r.coreKeywords(ctx, req, cfg, seed.Keyword, report))
	core := make([]types.KeywordRecord, len(coreWords))
	for i, kw := range coreWords {
		core[i] = types.KeywordRecord{ID: uuid.NewString(), Keyword: kw, SearchIntent: seed.SearchIntent}
	}
	idx := note(res, stageEnrichment, r.lookupData(ctx, coreWords, req.TargetLanguage))
	enrichment.Apply(core, idx)
	if d, ok := idx[strings.ToLower(seed.Keyword)]; ok {
		seed.ApplyEnrichment(d)
	}

	notes := note(res, workflow.StageDeepDiveCompetition, r.competition(ctx, req, cfg, core))

	v := note(res, workflow.StageDeepDiveProbability, r.synthesize(ctx, req, cfg, seed, report, core, notes))
	prob, ok := types.ParseProbability(v.Probability)
	if !ok {
		prob = types.ProbabilityMedium
	}
	seed.RankingProbability = prob
	seed.Reasoning = v.Analysis

	html, err := rendering.RenderHTML(rendering.ReportData{
		Lang:         req.DisplayLanguage(),
		Seed:         seed,
		Report:       report,
		CoreKeywords: core,
		Competition:  notes,
		Probability:  prob,
		SearchIntent: v.SearchIntent,
		IntentMatch:  v.IntentMatch,
		Analysis:     v.Analysis,
	})
	if err != nil {
		note(res, stageRender, degraded("", err.Error()))
	}

	res.count = 1
	res.cost = ledger.DeepDiveCost
	res.description = fmt.Sprintf("Deep dive for %q", seed.Keyword)
	res.relatedEntity = seed.Keyword
	res.data = &DeepDiveData{
		Keyword:            seed,
		Strategy:           report,
		CoreKeywords:       core,
		Competition:        notes,
		RankingProbability: prob,
		SearchIntent:       v.SearchIntent,
		IntentMatch:        v.IntentMatch,
		RankingAnalysis:    v.Analysis,
		HTML:               html,
		Degraded:           res.degraded,
	}
	return res, nil
}

// parsedReport carries the strategy reply until it is known to be usable.
type parsedReport struct {
	report *types.StrategyReport
	err    error
}

// strategy runs the primary deep dive call. Only transport failures are
// returned; an unusable reply is carried in the result.
func (r *Router) strategy(ctx context.Context, req *types.KeywordRequest, cfg *types.WorkflowConfig, seed types.KeywordRecord) (parsedReport, error) {
	prompt, err := prompts.Render("deepdive.json", "strategy", map[string]string{
		"Instruction":    workflow.PromptFor(cfg, workflow.StageDeepDiveStrategy, req.StrategyPrompt),
		"Keyword":        seed.Keyword,
		"Intent":         string(seed.SearchIntent),
		"Volume":         fmt.Sprint(seed.Volume),
		"TargetLanguage": req.TargetLanguage,
		"UILanguage":     req.DisplayLanguage(),
		"Format":         strategyFormat,
	})
	if err != nil {
		return parsedReport{}, eris.Wrap(err, "pipeline: build strategy prompt")
	}

	text, err := r.deps.LLM.GenerateJSON(ctx, prompt, llm.TierAdvanced)
	if err != nil {
		return parsedReport{}, &ExternalServiceError{Stage: workflow.StageDeepDiveStrategy, Err: err}
	}

	var raw json.RawMessage
	if err := llm.Extract(text, &raw); err != nil {
		return parsedReport{err: err}, nil
	}
	if err := schemas.Validate(schemas.StrategyReport, raw); err != nil {
		return parsedReport{err: err}, nil
	}
	var report types.StrategyReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return parsedReport{err: err}, nil
	}
	return parsedReport{report: &report}, nil
}

func reportOutcome(p parsedReport, keyword string) Outcome[*types.StrategyReport] {
	if p.err != nil || p.report == nil {
		reason := "empty strategy"
		if p.err != nil {
			reason = p.err.Error()
		}
		return degraded(types.FallbackStrategyReport(keyword), reason)
	}
	p.report.Normalize(keyword)
	return succeeded(p.report)
}

// outline renders the report as plain text for follow-up prompts.
func outline(report *types.StrategyReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", report.PageTitle)
	for _, s := range report.ContentStructure {
		fmt.Fprintf(&sb, "- %s", s.Header)
		if s.Body != "" {
			fmt.Fprintf(&sb, ": %s", s.Body)
		}
		sb.WriteString("\n")
	}
	if len(report.LongTailKeywords) > 0 {
		fmt.Fprintf(&sb, "Long-tail keywords: %s\n", strings.Join(report.LongTailKeywords, ", "))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// coreKeywords asks for 3-8 core keywords. Failure or too few falls back to
// the seed plus the report's long-tail keywords.
func (r *Router) coreKeywords(ctx context.Context, req *types.KeywordRequest, cfg *types.WorkflowConfig, seed string, report *types.StrategyReport) Outcome[[]string] {
	fallback := dedupeKeywords(append([]string{seed}, report.LongTailKeywords...), maxCoreKeywords)

	prompt, err := prompts.Render("deepdive.json", "extract", map[string]string{
		"Instruction":    workflow.PromptFor(cfg, workflow.StageDeepDiveExtract, ""),
		"TargetLanguage": req.TargetLanguage,
		"Keyword":        seed,
		"Plan":           outline(report),
	})
	if err != nil {
		return degraded(fallback, err.Error())
	}

	text, err := r.deps.LLM.GenerateJSON(ctx, prompt, llm.TierLite)
	if err != nil {
		return degraded(fallback, err.Error())
	}
	words, err := extractList[string](text, "keywords")
	if err != nil {
		return degraded(fallback, err.Error())
	}
	words = dedupeKeywords(words, maxCoreKeywords)
	if len(words) < minCoreKeywords {
		return degraded(fallback, fmt.Sprintf("only %d core keywords extracted", len(words)))
	}
	return succeeded(words)
}

func dedupeKeywords(words []string, limit int) []string {
	list := types.KeywordList(words).Normalize()
	return list[:min(len(list), limit)]
}

// competition writes a note for each of the top core keywords. Failures
// become per-keyword placeholders. The scan stops early when the request is
// cancelled or too little time is left for synthesis.
func (r *Router) competition(ctx context.Context, req *types.KeywordRequest, cfg *types.WorkflowConfig, core []types.KeywordRecord) Outcome[[]types.CompetitionNote] {
	top := core[:min(len(core), r.opts.MaxCompetitionScans)]
	notes := make([]types.CompetitionNote, 0, len(top))
	if r.deps.Search == nil {
		for _, kw := range top {
			notes = append(notes, failedNote(kw.Keyword))
		}
		return degraded(notes, "search service not configured")
	}

	instruction := workflow.PromptFor(cfg, workflow.StageDeepDiveCompetition, "")
	failures := 0
	for i, kw := range top {
		if reason, stop := r.outOfTime(ctx); stop {
			return degraded(notes, fmt.Sprintf("competition scan stopped after %d of %d keywords: %s", i, len(top), reason))
		}
		if r.deps.SearchLimiter != nil {
			if err := r.deps.SearchLimiter.Wait(ctx); err != nil {
				return degraded(notes, eris.Wrap(err, "search rate limit wait").Error())
			}
		}

		n, ok := r.scanKeyword(ctx, req, instruction, kw.Keyword)
		if !ok {
			failures++
		}
		notes = append(notes, n)
	}
	if failures > 0 {
		return degraded(notes, fmt.Sprintf("%d of %d keyword scans failed", failures, len(top)))
	}
	return succeeded(notes)
}

func (r *Router) outOfTime(ctx context.Context) (string, bool) {
	if err := ctx.Err(); err != nil {
		return err.Error(), true
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < r.opts.SynthesisReserve {
		return "deadline too close", true
	}
	return "", false
}

func (r *Router) scanKeyword(ctx context.Context, req *types.KeywordRequest, instruction, keyword string) (types.CompetitionNote, bool) {
	results, err := r.deps.Search.Search(ctx, keyword, req.TargetLanguage, r.opts.SerpTopN)
	if err != nil {
		return failedNote(keyword), false
	}

	prompt, err := prompts.Render("deepdive.json", "competition", map[string]string{
		"Instruction": instruction,
		"Keyword":     keyword,
		"UILanguage":  req.DisplayLanguage(),
		"Results":     serp.Format(results),
	})
	if err != nil {
		return failedNote(keyword), false
	}
	analysis, err := r.deps.LLM.GenerateContent(ctx, prompt, llm.TierLite)
	if err != nil {
		return failedNote(keyword), false
	}

	sources := make([]types.Source, len(results))
	for i, res := range results {
		sources[i] = types.Source{Title: res.Title, URL: res.URL}
	}
	return types.CompetitionNote{
		Keyword:  keyword,
		Analysis: strings.TrimSpace(analysis),
		Sources:  sources,
	}, true
}

func failedNote(keyword string) types.CompetitionNote {
	return types.CompetitionNote{Keyword: keyword, Analysis: types.SearchFailedNote, SearchFailed: true}
}

// synthesize produces the ranking verdict. An unreadable reply becomes a
// Medium verdict whose analysis is the raw reply.
func (r *Router) synthesize(ctx context.Context, req *types.KeywordRequest, cfg *types.WorkflowConfig, seed types.KeywordRecord, report *types.StrategyReport, core []types.KeywordRecord, notes []types.CompetitionNote) Outcome[Verdict] {
	fallback := Verdict{Probability: string(types.ProbabilityMedium)}

	var comp strings.Builder
	for _, n := range notes {
		fmt.Fprintf(&comp, "[%s] %s\n", n.Keyword, n.Analysis)
	}
	if comp.Len() == 0 {
		comp.WriteString("(none)")
	}

	prompt, err := prompts.Render("deepdive.json", "probability", map[string]string{
		"Instruction": workflow.PromptFor(cfg, workflow.StageDeepDiveProbability, ""),
		"Keyword":     seed.Keyword,
		"Intent":      string(seed.SearchIntent),
		"UILanguage":  req.DisplayLanguage(),
		"Plan":        outline(report),
		"KeywordData": describeKeywords(core),
		"Competition": strings.TrimRight(comp.String(), "\n"),
		"Format":      verdictFormat,
	})
	if err != nil {
		return degraded(fallback, err.Error())
	}

	text, err := r.deps.LLM.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		return degraded(fallback, err.Error())
	}

	raw := Verdict{Probability: fallback.Probability, Analysis: text}
	var span json.RawMessage
	if err := llm.Extract(text, &span); err != nil {
		return degraded(raw, err.Error())
	}
	if err := schemas.Validate(schemas.ProbabilityVerdict, span); err != nil {
		return degraded(raw, err.Error())
	}
	var v Verdict
	if err := json.Unmarshal(span, &v); err != nil {
		return degraded(raw, err.Error())
	}
	prob, _ := types.ParseProbability(v.Probability)
	v.Probability = string(prob)
	return succeeded(v)
}
