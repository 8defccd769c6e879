// Package enrichment looks up search volume and difficulty for keywords from
// the third-party keyword data provider.
package enrichment

import (
	"context"
	"strings"

	"golang.org/x/text/language"

	"github.com/jonathan/keyword-miner/internal/types"
)

// Result is the provider's answer for one keyword. IsDataFound=false is a
// valid answer meaning the provider has no data for the keyword.
type Result struct {
	Keyword      string             `json:"keyword"`
	IsDataFound  bool               `json:"isDataFound"`
	Volume       *int               `json:"volume,omitempty"`
	Difficulty   *int               `json:"difficulty,omitempty"`
	CPC          *float64           `json:"cpc,omitempty"`
	Competition  *float64           `json:"competition,omitempty"`
	HistoryTrend []types.TrendPoint `json:"historyTrend,omitempty"`
}

// Data converts a result to record enrichment, or nil when nothing was found.
func (r Result) Data() *types.EnrichmentData {
	if !r.IsDataFound {
		return nil
	}
	d := &types.EnrichmentData{HistoryTrend: r.HistoryTrend}
	if r.Volume != nil {
		d.Volume = *r.Volume
	}
	if r.Difficulty != nil {
		d.Difficulty = *r.Difficulty
	}
	if r.CPC != nil {
		d.CPC = *r.CPC
	}
	if r.Competition != nil {
		d.Competition = *r.Competition
	}
	return d
}

// Client performs bulk keyword data lookups.
type Client interface {
	Lookup(ctx context.Context, keywords []string, region string) ([]Result, error)
}

// Index maps lowercased keywords to their enrichment. Keywords without data
// are absent.
func Index(results []Result) map[string]*types.EnrichmentData {
	idx := make(map[string]*types.EnrichmentData, len(results))
	for _, r := range results {
		if d := r.Data(); d != nil {
			idx[normalizeKeyword(r.Keyword)] = d
		}
	}
	return idx
}

// Apply attaches indexed enrichment to each record by keyword.
func Apply(records []types.KeywordRecord, idx map[string]*types.EnrichmentData) {
	for i := range records {
		records[i].ApplyEnrichment(idx[normalizeKeyword(records[i].Keyword)])
	}
}

func normalizeKeyword(kw string) string {
	return strings.ToLower(strings.TrimSpace(kw))
}

// DefaultRegion is used when a language carries no usable region.
const DefaultRegion = "us"

// Region derives the provider's lowercase country code from a BCP 47
// language, e.g. "ko" is "kr" and "en-GB" is "gb".
func Region(lang string) string {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return DefaultRegion
	}
	region, conf := tag.Region()
	if conf == language.No {
		return DefaultRegion
	}
	code := strings.ToLower(region.String())
	if code == "" || code == "zz" {
		return DefaultRegion
	}
	return code
}
