package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/jonathan/keyword-miner/internal/enrichment"
	"github.com/jonathan/keyword-miner/internal/llm"
	"github.com/jonathan/keyword-miner/internal/prompts"
	"github.com/jonathan/keyword-miner/internal/types"
)

// Stage names for steps that have no prompt of their own.
const stageEnrichment = "enrichment"

type analysisItem struct {
	Keyword           string `json:"keyword"`
	Probability       string `json:"probability"`
	TopCompetitorType string `json:"topCompetitorType"`
	Reasoning         string `json:"reasoning"`
}

var analysisFormat = llm.OutputFormat([]llm.OutputField{
	{Name: "keyword", Description: "exactly as listed"},
	{Name: "probability", Description: "High, Medium or Low"},
	{Name: "topCompetitorType", Description: "brand, marketplace, forum, blog, news, government or video"},
	{Name: "reasoning", Description: "one or two sentences"},
}, true)

type analysisPrompt struct {
	file           string
	instruction    string
	targetLanguage string
	uiLanguage     string
}

// analyze attaches ranking probability, top competitor type and reasoning.
// On any failure the input records are returned unchanged.
func (r *Router) analyze(ctx context.Context, p analysisPrompt, records []types.KeywordRecord) Outcome[[]types.KeywordRecord] {
	if len(records) == 0 {
		return succeeded(records)
	}

	prompt, err := prompts.Render(p.file, "analyze", map[string]string{
		"Instruction":    p.instruction,
		"TargetLanguage": p.targetLanguage,
		"UILanguage":     p.uiLanguage,
		"Keywords":       describeKeywords(records),
		"Format":         analysisFormat,
	})
	if err != nil {
		return degraded(records, err.Error())
	}

	text, err := r.deps.LLM.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		return degraded(records, err.Error())
	}

	items, err := extractList[analysisItem](text, "keywords")
	if err != nil {
		return degraded(records, err.Error())
	}

	out := slices.Clone(records)
	byKeyword := make(map[string][]int, len(out))
	for i, rec := range out {
		key := strings.ToLower(strings.TrimSpace(rec.Keyword))
		byKeyword[key] = append(byKeyword[key], i)
	}

	covered := make([]bool, len(out))
	matched := 0
	for _, it := range items {
		prob, ok := types.ParseProbability(it.Probability)
		if !ok {
			continue
		}
		for _, i := range byKeyword[strings.ToLower(strings.TrimSpace(it.Keyword))] {
			if !covered[i] {
				covered[i] = true
				matched++
			}
			out[i].RankingProbability = prob
			out[i].TopCompetitorType = strings.TrimSpace(it.TopCompetitorType)
			out[i].Reasoning = strings.TrimSpace(it.Reasoning)
		}
	}
	switch {
	case matched == 0:
		return degraded(records, "analysis matched none of the keywords")
	case matched < len(out):
		return degraded(out, fmt.Sprintf("analysis covered %d of %d keywords", matched, len(out)))
	}
	return succeeded(out)
}

// describeKeywords lists records one per line with any known keyword data.
func describeKeywords(records []types.KeywordRecord) string {
	var sb strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&sb, "- %s", rec.Keyword)
		if d := rec.EnrichmentData; d != nil {
			fmt.Fprintf(&sb, " (volume %d, KD %d, CPC %.2f)", d.Volume, d.Difficulty, d.CPC)
		} else if rec.Volume > 0 {
			fmt.Fprintf(&sb, " (estimated volume %d)", rec.Volume)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// extractList decodes a JSON array from text. Models sometimes wrap the array
// in an object under key, which is accepted too.
func extractList[T any](text, key string) ([]T, error) {
	var items []T
	if err := (llm.FirstOf{llm.ArrayExtractor, llm.FieldExtractor{Key: key}}).Extract(text, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// lookupData runs one bulk keyword data lookup. Failure yields an empty index.
func (r *Router) lookupData(ctx context.Context, keywords []string, targetLanguage string) Outcome[map[string]*types.EnrichmentData] {
	empty := map[string]*types.EnrichmentData{}
	if r.deps.Enrichment == nil {
		return degraded(empty, "keyword data service not configured")
	}
	if len(keywords) == 0 {
		return succeeded(empty)
	}

	results, err := r.deps.Enrichment.Lookup(ctx, keywords, enrichment.Region(targetLanguage))
	if err != nil {
		return degraded(empty, eris.Wrap(err, "keyword data lookup").Error())
	}
	return succeeded(enrichment.Index(results))
}
