// Package types provides type definitions for structured data used throughout the keyword miner.
package types

import (
	"strings"
)

// SearchIntent classifies why a user searches for a keyword.
type SearchIntent string

// Search intent values.
const (
	IntentInformational SearchIntent = "Informational"
	IntentCommercial    SearchIntent = "Commercial"
	IntentTransactional SearchIntent = "Transactional"
	IntentNavigational  SearchIntent = "Navigational"
)

// ParseSearchIntent normalizes free-form model output to a known intent.
// Unknown values map to Informational.
func ParseSearchIntent(s string) SearchIntent {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "commercial":
		return IntentCommercial
	case "transactional":
		return IntentTransactional
	case "navigational":
		return IntentNavigational
	default:
		return IntentInformational
	}
}

// Probability is the estimated chance a new page ranks for a keyword.
type Probability string

// Ranking probability values.
const (
	ProbabilityHigh   Probability = "High"
	ProbabilityMedium Probability = "Medium"
	ProbabilityLow    Probability = "Low"
)

// ParseProbability normalizes model output. ok is false for unrecognized values.
func ParseProbability(s string) (Probability, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return ProbabilityHigh, true
	case "medium":
		return ProbabilityMedium, true
	case "low":
		return ProbabilityLow, true
	default:
		return "", false
	}
}

// TrendPoint is one month of search volume history.
type TrendPoint struct {
	Month  string `json:"month"`
	Volume int    `json:"volume"`
}

// EnrichmentData is third-party keyword data. A nil pointer on a record means
// the provider had nothing for the keyword, which is itself a signal.
type EnrichmentData struct {
	Volume       int          `json:"volume"`
	Difficulty   int          `json:"difficulty"`
	CPC          float64      `json:"cpc"`
	Competition  float64      `json:"competition"`
	HistoryTrend []TrendPoint `json:"historyTrend,omitempty"`
}

// KeywordRecord is the unit every pipeline produces.
type KeywordRecord struct {
	ID                 string          `json:"id"`
	Keyword            string          `json:"keyword"`
	Translation        string          `json:"translation"`
	SearchIntent       SearchIntent    `json:"searchIntent"`
	Volume             int             `json:"volume"`
	RankingProbability Probability     `json:"rankingProbability,omitempty"`
	TopCompetitorType  string          `json:"topCompetitorType,omitempty"`
	Reasoning          string          `json:"reasoning,omitempty"`
	EnrichmentData     *EnrichmentData `json:"enrichmentData,omitempty"`
}

// ApplyEnrichment attaches provider data; its volume replaces the model's estimate.
func (k *KeywordRecord) ApplyEnrichment(data *EnrichmentData) {
	if data == nil {
		return
	}
	k.EnrichmentData = data
	k.Volume = data.Volume
}

// Difficulty returns the enrichment difficulty, or -1 when there is no enrichment.
func (k *KeywordRecord) Difficulty() int {
	if k.EnrichmentData == nil {
		return -1
	}
	return k.EnrichmentData.Difficulty
}
